package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testDataset() *domain.Dataset {
	return domain.NewDataset([]domain.Incident{
		{Date: date(2021, 1, 4), Year: 2021, Month: 1, Day: 4, DayName: "Monday", Line: "L1", System: "Doors", Category: "1", VehicleID: "V1", DelayMinutes: ptr(10)},
		{Date: date(2021, 1, 6), Year: 2021, Month: 1, Day: 6, DayName: "Wednesday", Line: "L1", System: "Brakes", Category: "2", VehicleID: "V2", DelayMinutes: ptr(20), CausedEvacuation: true},
		{Date: date(2022, 3, 1), Year: 2022, Month: 3, Day: 1, DayName: "Tuesday", Line: "L2", System: "Doors", Category: "1", VehicleID: "V3"},
		{Date: date(2023, 7, 9), Year: 2023, Month: 7, Day: 9, DayName: "Sunday", Line: "L2", System: "HVAC", Category: "3", VehicleID: "V3", DelayMinutes: ptr(5)},
	})
}

func TestEngineApplyDefaultSelection(t *testing.T) {
	engine, err := NewEngine(0)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	ds := testDataset()
	sel := domain.NewFilterModel(ds.Domains()).Default()

	view, err := engine.Apply(ds, sel)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if view.Len() != ds.Len() {
		t.Errorf("expected %d rows, got %d", ds.Len(), view.Len())
	}
}

func TestEngineApplyDimensions(t *testing.T) {
	engine, _ := NewEngine(0)
	ds := testDataset()
	model := domain.NewFilterModel(ds.Domains())

	t.Run("line", func(t *testing.T) {
		sel := model.Default()
		sel.Lines = []string{"L2"}

		view, err := engine.Apply(ds, sel)
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		if view.Len() != 2 {
			t.Fatalf("expected 2 rows, got %d", view.Len())
		}
		for _, r := range view.Rows {
			if r.Line != "L2" {
				t.Errorf("unexpected line %s", r.Line)
			}
		}
	})

	t.Run("year range is inclusive", func(t *testing.T) {
		sel := model.Default()
		sel.Years = domain.YearRange{Min: 2021, Max: 2022}

		view, _ := engine.Apply(ds, sel)
		if view.Len() != 3 {
			t.Errorf("expected 3 rows, got %d", view.Len())
		}
	})

	t.Run("single year", func(t *testing.T) {
		sel := model.Default()
		sel.Years = domain.YearRange{Min: 2023, Max: 2023}

		view, _ := engine.Apply(ds, sel)
		if view.Len() != 1 || view.Rows[0].System != "HVAC" {
			t.Errorf("expected only the 2023 HVAC row, got %+v", view.Rows)
		}
	})

	t.Run("conjunction across dimensions", func(t *testing.T) {
		sel := model.Default()
		sel.Systems = []string{"Doors"}
		sel.Lines = []string{"L1"}

		view, _ := engine.Apply(ds, sel)
		if view.Len() != 1 || view.Rows[0].VehicleID != "V1" {
			t.Errorf("expected only V1, got %+v", view.Rows)
		}
	})

	t.Run("no match is empty not error", func(t *testing.T) {
		sel := model.Default()
		sel.Lines = []string{"L1"}
		sel.Systems = []string{"HVAC"}

		view, err := engine.Apply(ds, sel)
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		if view.Len() != 0 {
			t.Errorf("expected empty view, got %d rows", view.Len())
		}
	})
}

func TestEngineApplyPreservesOrder(t *testing.T) {
	engine, _ := NewEngine(0)
	ds := testDataset()
	sel := domain.NewFilterModel(ds.Domains()).Default()
	sel.Systems = []string{"HVAC", "Doors"}

	view, _ := engine.Apply(ds, sel)
	want := []string{"V1", "V3", "V3"}
	if view.Len() != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), view.Len())
	}
	for i, r := range view.Rows {
		if r.VehicleID != want[i] {
			t.Errorf("row %d: expected %s, got %s", i, want[i], r.VehicleID)
		}
	}
	if view.Rows[1].Year != 2022 || view.Rows[2].Year != 2023 {
		t.Errorf("rows out of source order: %+v", view.Rows)
	}
}

func TestEngineWhere(t *testing.T) {
	engine, _ := NewEngine(2)
	ds := testDataset()
	model := domain.NewFilterModel(ds.Domains())

	t.Run("measure predicate", func(t *testing.T) {
		sel := model.Default()
		sel.Where = "has_delay && delay_minutes >= 10.0"

		view, err := engine.Apply(ds, sel)
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		if view.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", view.Len())
		}
	})

	t.Run("evacuation flag", func(t *testing.T) {
		sel := model.Default()
		sel.Where = "caused_evacuation"

		view, _ := engine.Apply(ds, sel)
		if view.Len() != 1 || view.Rows[0].System != "Brakes" {
			t.Errorf("expected the Brakes row, got %+v", view.Rows)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		sel := model.Default()
		sel.Where = "this is not valid CEL !!!"

		_, err := engine.Apply(ds, sel)
		var invalid *domain.InvalidSelectionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidSelectionError, got %v", err)
		}
		if invalid.Dimension != domain.DimensionWhere {
			t.Errorf("expected where dimension, got %s", invalid.Dimension)
		}
	})

	t.Run("non-bool expression", func(t *testing.T) {
		if err := engine.Compile("delay_minutes * 2.0"); err == nil {
			t.Error("expected error for non-bool expression")
		}
	})

	t.Run("program cache stays bounded", func(t *testing.T) {
		for _, expr := range []string{"year > 2000", "month < 13", "day > 0", "line != ''"} {
			if err := engine.Compile(expr); err != nil {
				t.Fatalf("compile %q: %v", expr, err)
			}
		}
		engine.mu.RLock()
		n := len(engine.programs)
		engine.mu.RUnlock()
		if n > 2 {
			t.Errorf("expected at most 2 cached programs, got %d", n)
		}
	})
}
