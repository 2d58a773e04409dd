package domain

import (
	"sort"
	"time"
)

const (
	// DateLayout is the civil date format used for row keys.
	DateLayout = "2006-01-02"
	// DateColumn is the header of the leading date column.
	DateColumn = "Date"
)

// Day returns the civil date of t (in t's own location) as midnight UTC.
// Rows are keyed by this value so that dates compare with ==.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// Snapshot maps series keys to values.
type Snapshot map[string]Value

// Get returns the value for series, or Unavailable when absent.
func (s Snapshot) Get(series string) Value {
	if s == nil {
		return Unavailable()
	}
	return s[series]
}

// Observation is one freshly observed row, before reconciliation.
type Observation struct {
	Date   time.Time // civil date, see Day
	Series []string  // series keys in configured order
	Values Snapshot  // series key -> observed value
}

// NewObservation builds an observation dated date for the given series.
// Series missing from values are recorded as Unavailable.
func NewObservation(date time.Time, series []string, values map[string]Value) Observation {
	snap := make(Snapshot, len(series))
	for _, s := range series {
		snap[s] = values[s]
	}
	keys := make([]string, len(series))
	copy(keys, series)
	return Observation{Date: Day(date), Series: keys, Values: snap}
}

// Row is one persisted observation row.
type Row struct {
	Date   time.Time
	Values Snapshot
}

// Value returns the row's value for series, or Unavailable when absent.
func (r Row) Value(series string) Value {
	return r.Values.Get(series)
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	values := make(Snapshot, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{Date: r.Date, Values: values}
}

// Table is the historical dataset: a column set plus rows keyed by date.
// Series order is header order; new series are only ever appended.
type Table struct {
	Series []string
	Rows   []Row
}

// NewTable returns an empty table scaffold with the given columns.
func NewTable(series ...string) *Table {
	cols := make([]string, 0, len(series))
	seen := make(map[string]struct{}, len(series))
	for _, s := range series {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		cols = append(cols, s)
	}
	return &Table{Series: cols}
}

// HasSeries reports whether series is in the column set.
func (t *Table) HasSeries(series string) bool {
	for _, s := range t.Series {
		if s == series {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Last returns the chronologically last row.
func (t *Table) Last() (Row, bool) {
	if len(t.Rows) == 0 {
		return Row{}, false
	}
	last := t.Rows[0]
	for _, r := range t.Rows[1:] {
		if !r.Date.Before(last.Date) {
			last = r
		}
	}
	return last, true
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{
		Series: make([]string, len(t.Series)),
		Rows:   make([]Row, len(t.Rows)),
	}
	copy(out.Series, t.Series)
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// SortedRows returns the rows in ascending date order without modifying t.
// Rows sharing a date keep their physical order.
func (t *Table) SortedRows() []Row {
	rows := make([]Row, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}
