package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
)

// FlowMetricsStore is an in-memory implementation of storage.FlowMetricsStore.
type FlowMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FlowMetricPoint // keyed by (dataset, date, window)
}

// NewFlowMetricsStore creates a new in-memory flow metrics store.
func NewFlowMetricsStore() *FlowMetricsStore {
	return &FlowMetricsStore{
		data: make(map[string]*domain.FlowMetricPoint),
	}
}

// flowKey generates a unique key for a flow metric point.
func flowKey(p *domain.FlowMetricPoint) string {
	return fmt.Sprintf("%s|%s|%s", p.Dataset, p.Date.Format(domain.DateLayout), p.Window)
}

// Upsert writes points, replacing existing keys. Validates the whole batch first.
func (s *FlowMetricsStore) Upsert(_ context.Context, points []*domain.FlowMetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.Dataset == "" || p.Window == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		copy := *p
		s.data[flowKey(p)] = &copy
	}

	return nil
}

// GetByDataset retrieves all points for a dataset, ordered by date ASC, window ASC.
func (s *FlowMetricsStore) GetByDataset(_ context.Context, dataset string) ([]*domain.FlowMetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FlowMetricPoint
	for _, p := range s.data {
		if p.Dataset == dataset {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Window < result[j].Window
	})

	return result, nil
}

var _ storage.FlowMetricsStore = (*FlowMetricsStore)(nil)
