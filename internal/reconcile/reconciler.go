// Package reconcile merges fresh observations into the historical table.
package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"etf-flow-lab/internal/domain"
)

// ErrInvalidObservation is returned for observations that cannot be keyed.
var ErrInvalidObservation = errors.New("invalid observation")

// BackfillPolicy decides what historical rows receive for a newly added series.
type BackfillPolicy int

const (
	// BackfillUnavailable leaves historical cells empty (the unavailable sentinel).
	BackfillUnavailable BackfillPolicy = iota
	// BackfillZero writes an explicit 0 into historical cells.
	BackfillZero
)

// ParseBackfillPolicy maps a config string to a policy.
func ParseBackfillPolicy(s string) (BackfillPolicy, error) {
	switch s {
	case "", "unavailable":
		return BackfillUnavailable, nil
	case "zero":
		return BackfillZero, nil
	default:
		return 0, fmt.Errorf("unknown backfill policy %q", s)
	}
}

// String returns the config spelling of p.
func (p BackfillPolicy) String() string {
	if p == BackfillZero {
		return "zero"
	}
	return "unavailable"
}

func (p BackfillPolicy) fill() domain.Value {
	if p == BackfillZero {
		return domain.Number(0)
	}
	return domain.Unavailable()
}

// Result is the outcome of merging observations into a table.
type Result struct {
	Table       *domain.Table
	Previous    domain.Snapshot // last pre-merge row, restricted to the observed series
	AddedSeries []string        // columns appended by this merge
	Replaced    int             // rows overwritten because their date already existed
	Inserted    int             // rows added
}

// Reconciler performs the pure table merge. It holds only its policy.
type Reconciler struct {
	backfill BackfillPolicy
}

// NewReconciler creates a reconciler with the given backfill policy.
func NewReconciler(backfill BackfillPolicy) *Reconciler {
	return &Reconciler{backfill: backfill}
}

// Reconcile merges obs into current and returns a new table; current is not modified.
// A nil current is treated as an empty table.
//
// The returned table has exactly one row per date, rows in ascending date order,
// and a value for every column in every row.
func (r *Reconciler) Reconcile(current *domain.Table, obs domain.Observation) (*Result, error) {
	return r.ReconcileAll(current, obs)
}

// ReconcileAll merges several observations in order; later ones win on equal dates.
// Previous is taken from current before any of them is applied.
func (r *Reconciler) ReconcileAll(current *domain.Table, observations ...domain.Observation) (*Result, error) {
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: no observations", ErrInvalidObservation)
	}
	for _, obs := range observations {
		if err := validate(obs); err != nil {
			return nil, err
		}
	}

	var table *domain.Table
	if current == nil {
		table = domain.NewTable()
	} else {
		table = current.Clone()
	}
	r.normalize(table)

	res := &Result{
		Table:    table,
		Previous: previousRow(table, observations[0].Series),
	}

	for _, obs := range observations {
		res.AddedSeries = append(res.AddedSeries, r.addColumns(table, obs.Series)...)
		if r.merge(table, obs) {
			res.Replaced++
		} else {
			res.Inserted++
		}
	}

	return res, nil
}

// normalize sorts rows by date, collapses duplicate dates (the physically later
// row wins) and fills cells missing from any row.
func (r *Reconciler) normalize(t *domain.Table) {
	sorted := t.SortedRows()
	rows := sorted[:0]
	for _, row := range sorted {
		if n := len(rows); n > 0 && rows[n-1].Date.Equal(row.Date) {
			rows[n-1] = row
			continue
		}
		rows = append(rows, row)
	}
	t.Rows = rows

	for i := range t.Rows {
		if t.Rows[i].Values == nil {
			t.Rows[i].Values = make(domain.Snapshot, len(t.Series))
		}
		for _, s := range t.Series {
			if _, ok := t.Rows[i].Values[s]; !ok {
				t.Rows[i].Values[s] = r.backfill.fill()
			}
		}
	}
}

// addColumns appends unknown series at the right edge and backfills every existing row.
func (r *Reconciler) addColumns(t *domain.Table, series []string) []string {
	var added []string
	for _, s := range series {
		if t.HasSeries(s) {
			continue
		}
		t.Series = append(t.Series, s)
		for i := range t.Rows {
			t.Rows[i].Values[s] = r.backfill.fill()
		}
		added = append(added, s)
	}
	return added
}

// merge writes obs as a row, replacing any row with the same date.
// Reports whether an existing row was replaced.
func (r *Reconciler) merge(t *domain.Table, obs domain.Observation) bool {
	date := domain.Day(obs.Date)
	row := domain.Row{Date: date, Values: make(domain.Snapshot, len(t.Series))}
	for _, s := range t.Series {
		// Known series missing from this run count as unobserved, not backfilled.
		row.Values[s] = obs.Values.Get(s)
	}

	idx := sort.Search(len(t.Rows), func(i int) bool {
		return !t.Rows[i].Date.Before(date)
	})
	if idx < len(t.Rows) && t.Rows[idx].Date.Equal(date) {
		t.Rows[idx] = row
		return true
	}

	t.Rows = append(t.Rows, domain.Row{})
	copy(t.Rows[idx+1:], t.Rows[idx:])
	t.Rows[idx] = row
	return false
}

// previousRow returns the last row's values for series; all Unavailable on an empty table.
func previousRow(t *domain.Table, series []string) domain.Snapshot {
	prev := make(domain.Snapshot, len(series))
	last, ok := t.Last()
	for _, s := range series {
		if !ok {
			prev[s] = domain.Unavailable()
			continue
		}
		prev[s] = last.Value(s)
	}
	return prev
}

func validate(obs domain.Observation) error {
	if obs.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidObservation)
	}
	if len(obs.Series) == 0 {
		return fmt.Errorf("%w: no series", ErrInvalidObservation)
	}
	seen := make(map[string]struct{}, len(obs.Series))
	for _, s := range obs.Series {
		if s == "" {
			return fmt.Errorf("%w: empty series key", ErrInvalidObservation)
		}
		if s == domain.DateColumn {
			return fmt.Errorf("%w: series key %q collides with the date column", ErrInvalidObservation, s)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: duplicate series %q", ErrInvalidObservation, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
