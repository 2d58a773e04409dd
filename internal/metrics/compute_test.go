package metrics

import (
	"math"
	"reflect"
	"testing"
	"time"

	"etf-flow-lab/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// linearTable builds a single-series table whose row i holds values[i].
func linearTable(values ...float64) *domain.Table {
	t := domain.NewTable("USO")
	for i, v := range values {
		t.Rows = append(t.Rows, domain.Row{Date: day(i), Values: domain.Snapshot{"USO": domain.Number(v)}})
	}
	return t
}

func TestCompute_SingleRow(t *testing.T) {
	table := &domain.Table{
		Series: []string{"USO", "BNO"},
		Rows: []domain.Row{
			{Date: day(1), Values: domain.Snapshot{"USO": domain.Number(100), "BNO": domain.Number(50)}},
		},
	}

	rows := NewEngine(domain.DefaultWindows(), DefaultMovingAverage).Compute(table)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Aggregate != 150 {
		t.Errorf("Aggregate = %v, want 150", rows[0].Aggregate)
	}
	if len(rows[0].Windows) != 0 {
		t.Errorf("expected no defined windows, got %v", rows[0].Windows)
	}
	if rows[0].MovingAverage != nil {
		t.Error("moving average should be undefined")
	}
}

func TestCompute_WoWDefinednessBoundary(t *testing.T) {
	engine := NewEngine([]domain.Window{domain.WindowWoW}, 0)

	five := engine.Compute(linearTable(1, 2, 3, 4, 5))
	if _, ok := five[4].Window("WoW"); ok {
		t.Error("WoW must be undefined with exactly 5 rows")
	}

	six := engine.Compute(linearTable(1, 2, 3, 4, 5, 6))
	d, ok := six[5].Window("WoW")
	if !ok {
		t.Fatal("WoW must be defined for the latest of 6 rows")
	}
	if d.Change != 5 {
		t.Errorf("WoW change = %v, want 5", d.Change)
	}
	if d.Pct == nil || math.Abs(*d.Pct-500) > 1e-9 {
		t.Errorf("WoW pct = %v, want 500", d.Pct)
	}
	for i := 0; i < 5; i++ {
		if _, ok := six[i].Window("WoW"); ok {
			t.Errorf("row %d should have no WoW", i)
		}
	}
}

func TestCompute_MoMLinearScenario(t *testing.T) {
	values := make([]float64, 0, 22)
	for i := 0; i < 21; i++ {
		values = append(values, 100+10*float64(i)) // 100 .. 300
	}
	values = append(values, 320)

	rows := NewEngine(domain.DefaultWindows(), 0).Compute(linearTable(values...))
	latest := rows[len(rows)-1]

	mom, ok := latest.Window("MoM")
	if !ok {
		t.Fatal("MoM should be defined on row 22")
	}
	if mom.Change != 220 {
		t.Errorf("MoM change = %v, want 220", mom.Change)
	}
	if mom.Pct == nil || math.Abs(*mom.Pct-220) > 1e-9 {
		t.Errorf("MoM pct = %v, want 220", mom.Pct)
	}

	if _, ok := rows[20].Window("MoM"); ok {
		t.Error("MoM should be undefined on row 21")
	}
}

func TestCompute_ZeroBaseHasNoPercentage(t *testing.T) {
	rows := NewEngine([]domain.Window{domain.WindowWoW}, 0).Compute(linearTable(0, 1, 1, 1, 1, 100))

	d, ok := rows[5].Window("WoW")
	if !ok {
		t.Fatal("WoW should be defined")
	}
	if d.Change != 100 {
		t.Errorf("change = %v, want 100", d.Change)
	}
	if d.Pct != nil {
		t.Errorf("pct = %v, want undefined", *d.Pct)
	}
}

func TestComputeDelta_NonFiniteHasNoPercentage(t *testing.T) {
	tests := []struct {
		name      string
		cur, base float64
	}{
		{"infinite base", math.Inf(1), math.Inf(1)},
		{"infinite current", math.Inf(1), 10},
		{"nan base", 5, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := computeDelta(tt.cur, tt.base); d.Pct != nil {
				t.Errorf("pct = %v, want undefined", *d.Pct)
			}
		})
	}
}

func TestCompute_OverflowingAggregateHasNoPercentage(t *testing.T) {
	table := &domain.Table{
		Series: []string{"USO", "BNO"},
		Rows: []domain.Row{
			{Date: day(0), Values: domain.Snapshot{"USO": domain.Number(math.MaxFloat64), "BNO": domain.Number(math.MaxFloat64)}},
			{Date: day(1), Values: domain.Snapshot{"USO": domain.Number(math.MaxFloat64), "BNO": domain.Number(math.MaxFloat64)}},
		},
	}

	rows := NewEngine([]domain.Window{domain.WindowDoD}, 0).Compute(table)
	d, ok := rows[1].Window("DoD")
	if !ok {
		t.Fatal("DoD should be defined")
	}
	if d.Pct != nil {
		t.Errorf("pct = %v, want undefined", *d.Pct)
	}
	// Each series on its own stays finite.
	s, ok := rows[1].SeriesWindow("USO", "DoD")
	if !ok || s.Pct == nil || *s.Pct != 0 {
		t.Errorf("USO DoD = %+v, want 0%%", s)
	}
}

func TestCompute_UnavailableZeroFilledInAggregate(t *testing.T) {
	table := &domain.Table{
		Series: []string{"USO", "BNO"},
		Rows: []domain.Row{
			{Date: day(0), Values: domain.Snapshot{"USO": domain.Number(100), "BNO": domain.Number(50)}},
			{Date: day(1), Values: domain.Snapshot{"USO": domain.Unavailable(), "BNO": domain.Number(60)}},
		},
	}

	rows := NewEngine([]domain.Window{domain.WindowDoD}, 0).Compute(table)

	if rows[1].Aggregate != 60 {
		t.Errorf("Aggregate = %v, want 60", rows[1].Aggregate)
	}
	if rows[1].Unavailable != 1 {
		t.Errorf("Unavailable = %d, want 1", rows[1].Unavailable)
	}
	if _, ok := rows[1].SeriesWindow("USO", "DoD"); ok {
		t.Error("USO delta must be skipped across an unavailable cell")
	}
	bno, ok := rows[1].SeriesWindow("BNO", "DoD")
	if !ok || bno.Change != 10 {
		t.Errorf("BNO DoD = %+v, %v; want change 10", bno, ok)
	}
}

func TestCompute_SortsRows(t *testing.T) {
	table := linearTable(1, 2, 3)
	table.Rows[0], table.Rows[2] = table.Rows[2], table.Rows[0]

	rows := NewEngine([]domain.Window{domain.WindowDoD}, 0).Compute(table)
	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Date.Before(rows[i].Date) {
			t.Fatalf("rows not ascending at %d", i)
		}
	}
	if d, _ := rows[2].Window("DoD"); d.Change != 1 {
		t.Errorf("DoD change = %v, want 1", d.Change)
	}
}

func TestCompute_MovingAverage(t *testing.T) {
	rows := NewEngine(nil, 3).Compute(linearTable(3, 6, 9, 12))

	if rows[1].MovingAverage != nil {
		t.Error("MA should be undefined before 3 rows")
	}
	if rows[2].MovingAverage == nil || *rows[2].MovingAverage != 6 {
		t.Errorf("MA[2] = %v, want 6", rows[2].MovingAverage)
	}
	if rows[3].MovingAverage == nil || *rows[3].MovingAverage != 9 {
		t.Errorf("MA[3] = %v, want 9", rows[3].MovingAverage)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	engine := NewEngine(domain.DefaultWindows(), DefaultMovingAverage)
	table := linearTable(5, 4, 3, 7, 9, 11, 2, 8, 6, 1, 0, 13, 15, 17, 19, 21, 23, 25, 27, 29, 31, 33)

	first := engine.Compute(table)
	second := engine.Compute(table)
	if !reflect.DeepEqual(first, second) {
		t.Error("Compute is not deterministic")
	}
}

func TestCompute_EmptyTable(t *testing.T) {
	engine := NewEngine(domain.DefaultWindows(), 0)
	if rows := engine.Compute(nil); rows != nil {
		t.Errorf("expected nil for nil table, got %v", rows)
	}
	if rows := engine.Compute(domain.NewTable("USO")); rows != nil {
		t.Errorf("expected nil for empty table, got %v", rows)
	}
}

func TestLatest(t *testing.T) {
	rows := NewEngine(nil, 0).Compute(linearTable(1, 2, 3))

	got, ok := Latest(rows, day(1).Add(15*time.Hour))
	if !ok || !got.Date.Equal(day(1)) {
		t.Errorf("Latest(day 1) = %v, %v", got.Date, ok)
	}

	got, ok = Latest(rows, day(10))
	if !ok || !got.Date.Equal(day(2)) {
		t.Errorf("Latest fallback = %v, want last row", got.Date)
	}

	if _, ok := Latest(nil, day(0)); ok {
		t.Error("Latest on no rows should report false")
	}
}
