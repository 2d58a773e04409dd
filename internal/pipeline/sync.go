// Package pipeline runs one load-reconcile-save cycle for a dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/metrics"
	"etf-flow-lab/internal/notify"
	"etf-flow-lab/internal/observability"
	"etf-flow-lab/internal/reconcile"
	"etf-flow-lab/internal/reporting"
	"etf-flow-lab/internal/source"
	"etf-flow-lab/internal/storage"
)

// RunResult is the outcome of one sync run.
type RunResult struct {
	RunID       string
	Observation domain.Observation
	Reconcile   *reconcile.Result
	Metrics     []domain.MetricsRow
	ChangeSet   domain.ChangeSet
	Exported    int // flow metric points written, 0 when export is disabled or failed
}

// Syncer orchestrates collect -> load -> reconcile -> save -> metrics -> notify.
type Syncer struct {
	dataset       string
	collector     *source.Collector
	store         storage.TableStore
	reconciler    *reconcile.Reconciler
	engine        *metrics.Engine
	reportWindows []domain.Window
	notifier      notify.Notifier

	exporter *metrics.Exporter      // optional
	metrics  *observability.Metrics // optional
	backend  string                 // label for store op metrics
	logger   logrus.FieldLogger
	clock    func() time.Time
	loc      *time.Location
}

// NewSyncer creates a syncer. notifier may be nil.
func NewSyncer(
	dataset string,
	collector *source.Collector,
	store storage.TableStore,
	reconciler *reconcile.Reconciler,
	engine *metrics.Engine,
	reportWindows []domain.Window,
	notifier notify.Notifier,
) *Syncer {
	return &Syncer{
		dataset:       dataset,
		collector:     collector,
		store:         store,
		reconciler:    reconciler,
		engine:        engine,
		reportWindows: reportWindows,
		notifier:      notifier,
		backend:       "table",
		logger:        logrus.StandardLogger(),
		clock:         time.Now,
		loc:           time.UTC,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (s *Syncer) WithClock(clock func() time.Time) *Syncer {
	s.clock = clock
	return s
}

// WithLocation sets the timezone that decides the observation date.
func (s *Syncer) WithLocation(loc *time.Location) *Syncer {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// WithLogger sets the logger. Run adds run_id and dataset fields.
func (s *Syncer) WithLogger(logger logrus.FieldLogger) *Syncer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithExporter enables flow metrics export.
func (s *Syncer) WithExporter(e *metrics.Exporter) *Syncer {
	s.exporter = e
	return s
}

// WithMetrics enables Prometheus run metrics.
func (s *Syncer) WithMetrics(m *observability.Metrics) *Syncer {
	s.metrics = m
	return s
}

// WithBackendName labels store operation metrics.
func (s *Syncer) WithBackendName(name string) *Syncer {
	s.backend = name
	return s
}

// Run performs one sync. Any Load error other than ErrNotFound aborts the run
// before Save. Export failures are logged and counted; a notifier error is
// returned after the table has been saved.
func (s *Syncer) Run(ctx context.Context) (*RunResult, error) {
	start := s.clock()
	res := &RunResult{RunID: uuid.NewString()}
	log := s.logger.WithFields(logrus.Fields{
		"run_id":  res.RunID,
		"dataset": s.dataset,
	})

	err := s.run(ctx, log, res)

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailure
	}
	if s.metrics != nil {
		finished := s.clock()
		s.metrics.RecordRun(status, finished.Sub(start), finished)
	}

	if err != nil {
		return res, err
	}
	log.WithFields(logrus.Fields{
		"date":     res.Observation.Date.Format(domain.DateLayout),
		"rows":     res.Reconcile.Table.Len(),
		"changes":  len(res.ChangeSet.Changes),
		"exported": res.Exported,
	}).Info("sync complete")
	return res, nil
}

func (s *Syncer) run(ctx context.Context, log logrus.FieldLogger, res *RunResult) error {
	date := domain.Today(s.clock(), s.loc)

	obs, err := s.collector.Collect(ctx, date)
	if err != nil {
		return err
	}
	res.Observation = obs

	current, err := s.load(ctx, log)
	if err != nil {
		return err
	}

	rec, err := s.reconciler.Reconcile(current, obs)
	if err != nil {
		return fmt.Errorf("reconcile observation: %w", err)
	}
	res.Reconcile = rec
	if len(rec.AddedSeries) > 0 && current.Len() > 0 {
		log.WithField("series", rec.AddedSeries).Info("added series to existing table")
	}

	if err := s.save(ctx, rec.Table); err != nil {
		return err
	}

	res.Metrics = s.engine.Compute(rec.Table)
	res.Exported = s.export(ctx, log, res)

	var latest *domain.MetricsRow
	if row, ok := metrics.Latest(res.Metrics, obs.Date); ok {
		latest = &row
	}
	res.ChangeSet = reporting.BuildChangeSet(s.dataset, obs, rec.Previous, latest, s.reportWindows)
	s.record(obs, rec, latest)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, res.ChangeSet); err != nil {
			return fmt.Errorf("notify change set: %w", err)
		}
	}
	return nil
}

// load returns the stored table, or an empty scaffold of the collected series
// on first run.
func (s *Syncer) load(ctx context.Context, log logrus.FieldLogger) (*domain.Table, error) {
	begin := time.Now()
	t, err := s.store.Load(ctx)
	if s.metrics != nil {
		s.metrics.RecordStoreOp(s.backend, "load", time.Since(begin))
	}

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, storage.ErrNotFound):
		log.Info("no stored table, starting a new one")
		return domain.NewTable(s.collector.Series()...), nil
	case errors.Is(err, storage.ErrMalformedTable):
		log.WithError(err).Error("stored table is malformed, aborting without save")
		return nil, fmt.Errorf("load table: %w", err)
	default:
		return nil, fmt.Errorf("load table: %w", err)
	}
}

func (s *Syncer) save(ctx context.Context, t *domain.Table) error {
	begin := time.Now()
	err := s.store.Save(ctx, t)
	if s.metrics != nil {
		s.metrics.RecordStoreOp(s.backend, "save", time.Since(begin))
	}
	if err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	return nil
}

func (s *Syncer) export(ctx context.Context, log logrus.FieldLogger, res *RunResult) int {
	if s.exporter == nil || len(res.Metrics) == 0 {
		return 0
	}

	begin := time.Now()
	n, err := s.exporter.Export(ctx, res.Metrics, res.RunID)
	if s.metrics != nil {
		s.metrics.RecordStoreOp("clickhouse", "export", time.Since(begin))
	}
	if err != nil {
		log.WithError(err).Warn("flow metrics export failed")
		if s.metrics != nil {
			s.metrics.ExportErrors.Inc()
		}
		return 0
	}
	return n
}

func (s *Syncer) record(obs domain.Observation, rec *reconcile.Result, latest *domain.MetricsRow) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordTable(rec.Table.Len(), len(rec.Table.Series), len(rec.AddedSeries))

	unavailable := 0
	for _, series := range obs.Series {
		if !obs.Values.Get(series).Available() {
			unavailable++
		}
	}
	s.metrics.SeriesUnavailable.Set(float64(unavailable))

	if latest == nil {
		return
	}
	for _, w := range s.engine.Windows() {
		if d, ok := latest.Window(w.Name); ok {
			s.metrics.WindowChange.WithLabelValues(w.Name).Set(d.Change)
		}
	}
}
