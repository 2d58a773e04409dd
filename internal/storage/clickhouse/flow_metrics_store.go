package clickhouse

import (
	"context"
	"fmt"
	"time"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
)

// chRows is the subset of driver.Rows used by scanners.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// FlowMetricsStore implements storage.FlowMetricsStore using ClickHouse.
type FlowMetricsStore struct {
	conn *Conn
}

// NewFlowMetricsStore creates a new FlowMetricsStore.
func NewFlowMetricsStore(conn *Conn) *FlowMetricsStore {
	return &FlowMetricsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FlowMetricsStore = (*FlowMetricsStore)(nil)

// Upsert writes points in one batch. Later computed_at wins on merge, and
// reads use FINAL, so a rerun for the same dates replaces earlier points.
func (s *FlowMetricsStore) Upsert(ctx context.Context, points []*domain.FlowMetricPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.Dataset == "" || p.Window == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO flow_metrics (
			dataset, date, window_name, offset_rows, aggregate,
			change, pct, run_id, computed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Dataset,
			p.Date,
			p.Window,
			uint16(p.Offset),
			p.Aggregate,
			p.Change,
			p.Pct,
			p.RunID,
			uint64(p.ComputedAtMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByDataset returns every point of a dataset ordered by date, then window.
func (s *FlowMetricsStore) GetByDataset(ctx context.Context, dataset string) ([]*domain.FlowMetricPoint, error) {
	query := `
		SELECT dataset, date, window_name, offset_rows, aggregate,
			change, pct, run_id, computed_at
		FROM flow_metrics FINAL
		WHERE dataset = ?
		ORDER BY date ASC, window_name ASC
	`

	rows, err := s.conn.Query(ctx, query, dataset)
	if err != nil {
		return nil, fmt.Errorf("query flow metrics: %w", err)
	}
	defer rows.Close()

	return scanFlowMetrics(rows)
}

func scanFlowMetrics(rows chRows) ([]*domain.FlowMetricPoint, error) {
	var points []*domain.FlowMetricPoint

	for rows.Next() {
		var p domain.FlowMetricPoint
		var date time.Time
		var offset uint16
		var computedAt uint64

		if err := rows.Scan(
			&p.Dataset,
			&date,
			&p.Window,
			&offset,
			&p.Aggregate,
			&p.Change,
			&p.Pct,
			&p.RunID,
			&computedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flow metric: %w", err)
		}

		p.Date = domain.Day(date)
		p.Offset = int(offset)
		p.ComputedAtMs = int64(computedAt)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow metrics: %w", err)
	}
	return points, nil
}
