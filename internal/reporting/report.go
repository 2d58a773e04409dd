package reporting

import (
	"time"

	"etf-flow-lab/internal/domain"
)

// Report summarizes a stored dataset and its latest metrics.
type Report struct {
	GeneratedAt time.Time
	Dataset     string

	// Data Summary
	Rows      int
	FirstDate time.Time
	LastDate  time.Time

	// Per-series state, in column order
	Series []SeriesSummary

	// Flow metrics for the last row; nil for an empty table
	Latest        *domain.MetricsRow
	Windows       []domain.Window
	MovingAverage int
}

// SeriesSummary describes one column.
type SeriesSummary struct {
	Series          string
	Latest          domain.Value
	UnavailableDays int
}
