package domain

import (
	"errors"
	"testing"
)

func testDomains() Domains {
	return NewDataset([]Incident{
		{Year: 2020, Line: "L2", System: "Doors", Category: "10", VehicleID: "V1"},
		{Year: 2022, Line: "L1", System: "Brakes", Category: "2", VehicleID: "V2"},
		{Year: 2021, Line: "L1", System: "Doors", Category: "1", VehicleID: "V1"},
	}).Domains()
}

func TestDatasetDomains(t *testing.T) {
	d := testDomains()

	if d.Years.Min != 2020 || d.Years.Max != 2022 {
		t.Errorf("expected years 2020..2022, got %+v", d.Years)
	}
	if len(d.Lines) != 2 || d.Lines[0] != "L1" {
		t.Errorf("expected lexical lines, got %v", d.Lines)
	}

	want := []string{"1", "2", "10"}
	for i, c := range want {
		if d.Categories[i] != c {
			t.Errorf("expected numeric category order %v, got %v", want, d.Categories)
			break
		}
	}
}

func TestDatasetFingerprint(t *testing.T) {
	a := NewDataset([]Incident{{Year: 2020, Line: "L1"}})
	b := NewDataset([]Incident{{Year: 2020, Line: "L1"}})
	c := NewDataset([]Incident{{Year: 2021, Line: "L1"}})

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected equal datasets to share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("expected different datasets to differ")
	}
}

func TestFilterModelDefaultIsValid(t *testing.T) {
	model := NewFilterModel(testDomains())
	sel := model.Default()

	if err := model.Validate(sel); err != nil {
		t.Fatalf("default selection should be valid: %v", err)
	}
	if sel.Years.Min != 2020 || sel.Years.Max != 2022 {
		t.Errorf("expected full year span, got %+v", sel.Years)
	}
}

func TestFilterModelValidate(t *testing.T) {
	model := NewFilterModel(testDomains())

	tests := []struct {
		name   string
		mutate func(*Selection)
		dim    Dimension
	}{
		{"empty lines", func(s *Selection) { s.Lines = nil }, DimensionLines},
		{"empty vehicles", func(s *Selection) { s.Vehicles = []string{} }, DimensionVehicles},
		{"unknown system", func(s *Selection) { s.Systems = []string{"Wings"} }, DimensionSystems},
		{"inverted years", func(s *Selection) { s.Years = YearRange{Min: 2022, Max: 2020} }, DimensionYears},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := model.Default()
			tt.mutate(&sel)

			err := model.Validate(sel)
			var invalid *InvalidSelectionError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidSelectionError, got %v", err)
			}
			if invalid.Dimension != tt.dim {
				t.Errorf("expected dimension %s, got %s", tt.dim, invalid.Dimension)
			}
		})
	}

	t.Run("first empty dimension wins", func(t *testing.T) {
		sel := model.Default()
		sel.Categories = nil
		sel.Lines = nil

		var invalid *InvalidSelectionError
		if !errors.As(model.Validate(sel), &invalid) || invalid.Dimension != DimensionLines {
			t.Errorf("expected lines to be reported, got %v", invalid)
		}
	})

	t.Run("years outside the dataset are allowed", func(t *testing.T) {
		sel := model.Default()
		sel.Years = YearRange{Min: 1990, Max: 2030}
		if err := model.Validate(sel); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFilterModelSelectAllAndClear(t *testing.T) {
	model := NewFilterModel(testDomains())
	sel := model.Default()
	sel.Systems = []string{"Doors"}

	cleared := model.Clear(sel, DimensionLines)
	if len(cleared.Lines) != 0 {
		t.Errorf("expected no lines, got %v", cleared.Lines)
	}
	if len(sel.Lines) != 2 {
		t.Error("Clear must not modify its input")
	}
	if err := model.Validate(cleared); err == nil {
		t.Error("expected cleared selection to be invalid")
	}

	all := model.SelectAll(cleared, DimensionLines)
	if len(all.Lines) != 2 {
		t.Errorf("expected every line, got %v", all.Lines)
	}
	if len(all.Systems) != 1 {
		t.Errorf("SelectAll touched another dimension: %v", all.Systems)
	}
}

func TestSelectionKey(t *testing.T) {
	a := Selection{Years: YearRange{2020, 2021}, Lines: []string{"L1", "L2"}, Systems: []string{"S"}}
	b := Selection{Years: YearRange{2020, 2021}, Lines: []string{"L2", "L1"}, Systems: []string{"S"}}
	c := Selection{Years: YearRange{2020, 2022}, Lines: []string{"L1", "L2"}, Systems: []string{"S"}}

	if a.Key() != b.Key() {
		t.Error("expected member order not to change the key")
	}
	if a.Key() == c.Key() {
		t.Error("expected different years to change the key")
	}

	c = a
	c.Where = "has_delay"
	if a.Key() == c.Key() {
		t.Error("expected where expression to change the key")
	}
}

func TestParseDimension(t *testing.T) {
	if d, err := ParseDimension("vehicles"); err != nil || d != DimensionVehicles {
		t.Errorf("expected vehicles, got %s (%v)", d, err)
	}
	if _, err := ParseDimension("years"); err == nil {
		t.Error("expected years to be rejected as a set dimension")
	}
}
