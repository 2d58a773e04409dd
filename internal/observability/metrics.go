// Package observability provides Prometheus metrics for sync runs.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds all Prometheus metrics for one process. A batch job has no
// scrape endpoint, so metrics live on a private registry and are pushed.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	LastSuccessfulRun prometheus.Gauge

	// Table metrics
	TableRows         prometheus.Gauge
	TableSeries       prometheus.Gauge
	SeriesAdded       prometheus.Counter
	SeriesUnavailable prometheus.Gauge
	WindowChange      *prometheus.GaugeVec

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec
	ExportErrors    prometheus.Counter
}

// NewMetrics creates a new Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "etf_flow_lab"
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by status",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Sync run duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful sync run",
		}),

		TableRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "table",
			Name:      "rows",
			Help:      "Rows in the saved table",
		}),
		TableSeries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "table",
			Name:      "series",
			Help:      "Series columns in the saved table",
		}),
		SeriesAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "table",
			Name:      "series_added_total",
			Help:      "Series columns added by schema growth",
		}),
		SeriesUnavailable: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "series_unavailable",
			Help:      "Series unavailable in the latest observation",
		}),
		WindowChange: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "metrics",
			Name:      "window_change",
			Help:      "Aggregate change of the latest row per window",
		}, []string{"window"}),

		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		ExportErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metrics",
			Name:      "export_errors_total",
			Help:      "Failed flow metric exports",
		}),
	}
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, d time.Duration, finished time.Time) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
	if status == StatusSuccess {
		m.LastSuccessfulRun.Set(float64(finished.Unix()))
	}
}

// RecordStoreOp records one store call.
func (m *Metrics) RecordStoreOp(backend, op string, d time.Duration) {
	m.StoreOpDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

// RecordTable updates table shape gauges.
func (m *Metrics) RecordTable(rows, series, added int) {
	m.TableRows.Set(float64(rows))
	m.TableSeries.Set(float64(series))
	m.SeriesAdded.Add(float64(added))
}

// Push sends every metric to a Pushgateway under job, replacing the group.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
