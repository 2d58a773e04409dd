package metrics

import (
	"math"
	"time"

	"etf-flow-lab/internal/domain"
)

// DefaultMovingAverage is the trailing row count of the aggregate moving average.
const DefaultMovingAverage = 14

// Engine computes trailing-window metrics over a table.
// It is deterministic and performs no I/O.
type Engine struct {
	windows       []domain.Window
	movingAverage int
}

// NewEngine creates an engine for the given windows.
// movingAverage is the row count of the aggregate moving average; 0 disables it.
func NewEngine(windows []domain.Window, movingAverage int) *Engine {
	w := make([]domain.Window, len(windows))
	copy(w, windows)
	return &Engine{windows: w, movingAverage: movingAverage}
}

// Windows returns the configured windows.
func (e *Engine) Windows() []domain.Window {
	w := make([]domain.Window, len(e.windows))
	copy(w, e.windows)
	return w
}

// MovingAverage returns the moving average row count, 0 when disabled.
func (e *Engine) MovingAverage() int {
	return e.movingAverage
}

// Compute returns one metrics row per table row, in ascending date order.
//
// Aggregates count unavailable cells as zero. Per-series deltas skip any pair
// where either side is unavailable. A window needs Offset prior rows; earlier
// rows simply have no entry for it.
func (e *Engine) Compute(t *domain.Table) []domain.MetricsRow {
	if t == nil || len(t.Rows) == 0 {
		return nil
	}

	rows := t.SortedRows()
	aggregates := make([]float64, len(rows))
	out := make([]domain.MetricsRow, len(rows))

	for i, row := range rows {
		agg, unavailable := aggregate(row, t.Series)
		aggregates[i] = agg
		out[i] = domain.MetricsRow{
			Date:        row.Date,
			Aggregate:   agg,
			Unavailable: unavailable,
			Windows:     make(map[string]domain.Delta),
			Series:      make(map[string]map[string]domain.Delta),
		}
	}

	for i := range rows {
		for _, w := range e.windows {
			j := i - w.Offset
			if w.Offset <= 0 || j < 0 {
				continue
			}
			out[i].Windows[w.Name] = computeDelta(aggregates[i], aggregates[j])

			for _, s := range t.Series {
				cur, ok := rows[i].Value(s).Float()
				if !ok {
					continue
				}
				base, ok := rows[j].Value(s).Float()
				if !ok {
					continue
				}
				if out[i].Series[s] == nil {
					out[i].Series[s] = make(map[string]domain.Delta)
				}
				out[i].Series[s][w.Name] = computeDelta(cur, base)
			}
		}

		if ma, ok := computeMovingAverage(aggregates[:i+1], e.movingAverage); ok {
			out[i].MovingAverage = &ma
		}
	}

	return out
}

// Latest returns the metrics row for date, falling back to the last row.
func Latest(rows []domain.MetricsRow, date time.Time) (domain.MetricsRow, bool) {
	if len(rows) == 0 {
		return domain.MetricsRow{}, false
	}
	day := domain.Day(date)
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Date.Equal(day) {
			return rows[i], true
		}
	}
	return rows[len(rows)-1], true
}

// aggregate sums a row with unavailable cells counted as zero.
func aggregate(row domain.Row, series []string) (sum float64, unavailable int) {
	for _, s := range series {
		f, ok := row.Value(s).Float()
		if !ok {
			unavailable++
			continue
		}
		sum += f
	}
	return sum, unavailable
}

// computeDelta returns cur-base and the percentage of base. Pct is nil for a
// zero base and whenever base or change is not finite.
func computeDelta(cur, base float64) domain.Delta {
	d := domain.Delta{Base: base, Change: cur - base}
	if base != 0 && isFinite(base) && isFinite(d.Change) {
		pct := d.Change / base * 100
		d.Pct = &pct
	}
	return d
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// computeMovingAverage averages the trailing n values; needs n values.
func computeMovingAverage(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n), true
}
