package domain

import "time"

// Window is a trailing comparison defined in rows, not calendar time.
type Window struct {
	Name   string // e.g. "WoW"
	Offset int    // rows back, e.g. 5
}

// Default comparison windows. Offsets approximate one business day, week and month.
var (
	WindowDoD = Window{Name: "DoD", Offset: 1}
	WindowWoW = Window{Name: "WoW", Offset: 5}
	WindowMoM = Window{Name: "MoM", Offset: 21}
)

// DefaultWindows returns DoD, WoW and MoM.
func DefaultWindows() []Window {
	return []Window{WindowDoD, WindowWoW, WindowMoM}
}

// Delta is a defined trailing-window difference.
// Pct is nil when the base value is zero.
type Delta struct {
	Base   float64
	Change float64
	Pct    *float64
}

// MetricsRow holds derived values for one date of the ordered table.
// Windows only contains defined deltas; a missing key means there was not
// enough history (or, for per-series deltas, a gap on either side).
type MetricsRow struct {
	Date          time.Time
	Aggregate     float64                     // sum of all series, unavailable counted as zero
	Unavailable   int                         // number of series unavailable in this row
	Windows       map[string]Delta            // window name -> aggregate delta
	Series        map[string]map[string]Delta // series -> window name -> delta
	MovingAverage *float64                    // trailing mean of Aggregate, nil until enough rows
}

// Window returns the aggregate delta for name.
func (m MetricsRow) Window(name string) (Delta, bool) {
	d, ok := m.Windows[name]
	return d, ok
}

// SeriesWindow returns the per-series delta for series and window name.
func (m MetricsRow) SeriesWindow(series, name string) (Delta, bool) {
	d, ok := m.Series[series][name]
	return d, ok
}

// FlowMetricPoint is one exported (dataset, date, window) metric.
// Corresponds to the flow_metrics table in ClickHouse.
type FlowMetricPoint struct {
	Dataset      string
	Date         time.Time
	Window       string
	Offset       int
	Aggregate    float64
	Change       *float64 // nil when the window is undefined for this date
	Pct          *float64 // nil when undefined or the base was zero
	RunID        string
	ComputedAtMs int64
}
