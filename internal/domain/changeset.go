package domain

import "time"

// Direction of a numeric change.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// SeriesChange is one series whose value differs from the previous row.
// Direction is DirectionNone when either side is unavailable.
type SeriesChange struct {
	Series    string
	Current   Value
	Previous  Value
	Direction Direction
}

// WindowFigure is a defined aggregate window for the latest row.
type WindowFigure struct {
	Name   string
	Offset int
	Change float64
	Pct    *float64 // nil when the base aggregate was zero
}

// ChangeSet is the structured summary handed to notifiers.
type ChangeSet struct {
	Dataset   string
	Date      time.Time
	Current   []SeriesValue // every observed series, in configured order
	Changes   []SeriesChange
	NoChanges bool
	Aggregate *float64 // latest aggregate, nil when no metrics row matched
	Figures   []WindowFigure
}

// SeriesValue pairs a series key with its observed value.
type SeriesValue struct {
	Series string
	Value  Value
}
