package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func TestFlowMetricsStore_UpsertAndGet(t *testing.T) {
	store := NewFlowMetricsStore()
	ctx := context.Background()

	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	points := []*domain.FlowMetricPoint{
		{Dataset: "oil", Date: d2, Window: "WoW", Offset: 5, Aggregate: 10},
		{Dataset: "oil", Date: d1, Window: "WoW", Offset: 5, Aggregate: 9},
		{Dataset: "oil", Date: d1, Window: "MoM", Offset: 21, Aggregate: 9},
		{Dataset: "tsa", Date: d1, Window: "WoW", Offset: 5, Aggregate: 1},
	}

	if err := store.Upsert(ctx, points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByDataset(ctx, "oil")
	if err != nil {
		t.Fatalf("GetByDataset failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(got))
	}

	// Ordered by date then window name
	if !got[0].Date.Equal(d1) || got[0].Window != "MoM" {
		t.Errorf("First should be d1/MoM, got %v/%s", got[0].Date, got[0].Window)
	}
	if !got[1].Date.Equal(d1) || got[1].Window != "WoW" {
		t.Errorf("Second should be d1/WoW, got %v/%s", got[1].Date, got[1].Window)
	}
	if !got[2].Date.Equal(d2) {
		t.Errorf("Third should be d2, got %v", got[2].Date)
	}
}

func TestFlowMetricsStore_UpsertReplaces(t *testing.T) {
	store := NewFlowMetricsStore()
	ctx := context.Background()
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	_ = store.Upsert(ctx, []*domain.FlowMetricPoint{{Dataset: "oil", Date: d, Window: "WoW", RunID: "a"}})
	_ = store.Upsert(ctx, []*domain.FlowMetricPoint{{Dataset: "oil", Date: d, Window: "WoW", RunID: "b", Change: ptr(5.0)}})

	got, _ := store.GetByDataset(ctx, "oil")
	if len(got) != 1 {
		t.Fatalf("Expected 1 point after replace, got %d", len(got))
	}
	if got[0].RunID != "b" || got[0].Change == nil || *got[0].Change != 5 {
		t.Errorf("Expected replaced point, got %+v", got[0])
	}
}

func TestFlowMetricsStore_InvalidInput(t *testing.T) {
	store := NewFlowMetricsStore()
	ctx := context.Background()

	err := store.Upsert(ctx, []*domain.FlowMetricPoint{nil})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil point, got %v", err)
	}

	err = store.Upsert(ctx, []*domain.FlowMetricPoint{
		{Dataset: "oil", Window: "WoW"},
		{Dataset: "", Window: "WoW"},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty dataset, got %v", err)
	}

	got, _ := store.GetByDataset(ctx, "oil")
	if len(got) != 0 {
		t.Errorf("Expected 0 points (batch rejected), got %d", len(got))
	}
}

func TestFlowMetricsStore_EmptyUpsert(t *testing.T) {
	store := NewFlowMetricsStore()

	if err := store.Upsert(context.Background(), nil); err != nil {
		t.Errorf("Empty upsert should succeed, got %v", err)
	}
}
