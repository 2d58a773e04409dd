package postgres

import (
	"context"
	"fmt"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
	"etf-flow-lab/internal/storage/csvtable"
)

// TableSnapshotStore implements storage.TableStore with one row per dataset.
// The table body is kept in the same spreadsheet encoding as the object
// store backends so snapshots can be moved between them unchanged.
type TableSnapshotStore struct {
	pool    *Pool
	dataset string
}

// NewTableSnapshotStore creates a store bound to one dataset.
func NewTableSnapshotStore(pool *Pool, dataset string) *TableSnapshotStore {
	return &TableSnapshotStore{pool: pool, dataset: dataset}
}

// Compile-time interface check.
var _ storage.TableStore = (*TableSnapshotStore)(nil)

// Load returns the stored table. Returns ErrNotFound if the dataset has no snapshot.
func (s *TableSnapshotStore) Load(ctx context.Context) (*domain.Table, error) {
	query := `
		SELECT body
		FROM table_snapshots
		WHERE dataset = $1
	`

	var body []byte
	if err := s.pool.QueryRow(ctx, query, s.dataset).Scan(&body); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get table snapshot: %w", err)
	}

	t, err := csvtable.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("decode table snapshot %s: %w", s.dataset, err)
	}
	return t, nil
}

// Save replaces the dataset snapshot in a single statement.
func (s *TableSnapshotStore) Save(ctx context.Context, t *domain.Table) error {
	body, err := csvtable.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode table snapshot: %w", err)
	}

	query := `
		INSERT INTO table_snapshots (dataset, body, row_count, series, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (dataset) DO UPDATE SET
			body = EXCLUDED.body,
			row_count = EXCLUDED.row_count,
			series = EXCLUDED.series,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, s.dataset, body, t.Len(), t.Series); err != nil {
		return fmt.Errorf("upsert table snapshot: %w", err)
	}
	return nil
}
