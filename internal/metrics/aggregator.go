package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
)

// ErrNoRows is returned when there are no metrics rows to export.
var ErrNoRows = errors.New("no metrics rows to export")

// Exporter flattens metrics rows into flow metric points and stores them.
type Exporter struct {
	store   storage.FlowMetricsStore
	dataset string
	windows []domain.Window
	clock   func() time.Time
}

// NewExporter creates an exporter for one dataset.
func NewExporter(store storage.FlowMetricsStore, dataset string, windows []domain.Window) *Exporter {
	w := make([]domain.Window, len(windows))
	copy(w, windows)
	return &Exporter{
		store:   store,
		dataset: dataset,
		windows: w,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (e *Exporter) WithClock(clock func() time.Time) *Exporter {
	e.clock = clock
	return e
}

// Points converts rows into one point per (date, window).
// Undefined windows are kept with nil Change so that every date appears per window.
func (e *Exporter) Points(rows []domain.MetricsRow, runID string) []*domain.FlowMetricPoint {
	computedAt := e.clock().UnixMilli()
	points := make([]*domain.FlowMetricPoint, 0, len(rows)*len(e.windows))

	for _, row := range rows {
		for _, w := range e.windows {
			p := &domain.FlowMetricPoint{
				Dataset:      e.dataset,
				Date:         row.Date,
				Window:       w.Name,
				Offset:       w.Offset,
				Aggregate:    row.Aggregate,
				RunID:        runID,
				ComputedAtMs: computedAt,
			}
			if d, ok := row.Window(w.Name); ok {
				change := d.Change
				p.Change = &change
				if d.Pct != nil {
					pct := *d.Pct
					p.Pct = &pct
				}
			}
			points = append(points, p)
		}
	}

	return points
}

// Export stores points for rows. Returns ErrNoRows if rows is empty.
func (e *Exporter) Export(ctx context.Context, rows []domain.MetricsRow, runID string) (int, error) {
	if len(rows) == 0 {
		return 0, ErrNoRows
	}

	points := e.Points(rows, runID)
	if err := e.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert flow metrics: %w", err)
	}
	return len(points), nil
}
