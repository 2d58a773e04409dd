package storage

import (
	"context"

	"etf-flow-lab/internal/domain"
)

// TableStore holds the serialized historical table as one object.
// Load and Save are full-object operations; there is no partial update.
type TableStore interface {
	// Load returns the whole table. Returns ErrNotFound if nothing was stored yet,
	// and an error wrapping ErrMalformedTable if the stored object does not parse.
	Load(ctx context.Context) (*domain.Table, error)

	// Save replaces the stored table. Readers observe either the old or the new table.
	Save(ctx context.Context, t *domain.Table) error
}

// FlowMetricsStore provides access to flow_metrics storage.
type FlowMetricsStore interface {
	// Upsert writes points, replacing any existing point with the same (dataset, date, window).
	Upsert(ctx context.Context, points []*domain.FlowMetricPoint) error

	// GetByDataset retrieves all points for a dataset, ordered by date ASC, window ASC.
	GetByDataset(ctx context.Context, dataset string) ([]*domain.FlowMetricPoint, error)
}
