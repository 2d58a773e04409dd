package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/metrics"
	"etf-flow-lab/internal/storage"
)

// Generator produces reports from the stored table.
type Generator struct {
	store   storage.TableStore
	engine  *metrics.Engine
	dataset string
	now     func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.TableStore, engine *metrics.Engine, dataset string) *Generator {
	return &Generator{
		store:   store,
		engine:  engine,
		dataset: dataset,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads the table and computes its metrics. A missing table yields
// an empty report; a malformed one is returned as an error.
// The computed rows are returned alongside for CSV export.
func (g *Generator) Generate(ctx context.Context) (*Report, []domain.MetricsRow, error) {
	table, err := g.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		table = domain.NewTable()
	} else if err != nil {
		return nil, nil, fmt.Errorf("load table: %w", err)
	}

	rows := g.engine.Compute(table)
	r := &Report{
		GeneratedAt:   g.now(),
		Dataset:       g.dataset,
		Rows:          table.Len(),
		Windows:       g.engine.Windows(),
		MovingAverage: g.engine.MovingAverage(),
	}

	sorted := table.SortedRows()
	if len(sorted) > 0 {
		r.FirstDate = sorted[0].Date
		r.LastDate = sorted[len(sorted)-1].Date
	}

	for _, s := range table.Series {
		sum := SeriesSummary{Series: s}
		for _, row := range sorted {
			if !row.Value(s).Available() {
				sum.UnavailableDays++
			}
		}
		if len(sorted) > 0 {
			sum.Latest = sorted[len(sorted)-1].Value(s)
		}
		r.Series = append(r.Series, sum)
	}

	if len(rows) > 0 {
		latest := rows[len(rows)-1]
		r.Latest = &latest
	}

	return r, rows, nil
}
