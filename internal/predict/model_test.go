package predict

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
)

func loadTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := Load(filepath.Join("testdata", "model.json"))
	if err != nil {
		t.Fatalf("failed to load model: %v", err)
	}
	return m
}

func validRequest() domain.PredictionRequest {
	return domain.PredictionRequest{
		Year:              2024,
		Month:             3,
		Day:               4,
		DayName:           "Monday",
		Line:              "1",
		System:            "Doors",
		VehicleID:         "101",
		DescriptionLength: 10,
	}
}

func TestPredict(t *testing.T) {
	m := loadTestModel(t)

	tests := []struct {
		name  string
		req   func() domain.PredictionRequest
		label string
		p1    float64
	}{
		{
			name:  "short door report",
			req:   validRequest,
			label: "0",
			p1:    0.125,
		},
		{
			name: "long brake report on line 2",
			req: func() domain.PredictionRequest {
				r := validRequest()
				r.System = "Brakes"
				r.Line = "2"
				r.DescriptionLength = 120
				return r
			},
			label: "1",
			p1:    0.875,
		},
		{
			name: "long brake report on line 1",
			req: func() domain.PredictionRequest {
				r := validRequest()
				r.System = "Brakes"
				r.DescriptionLength = 120
				return r
			},
			label: "1",
			p1:    0.625,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := m.Predict(tt.req())
			if err != nil {
				t.Fatalf("predict failed: %v", err)
			}
			if resp.Label != tt.label {
				t.Errorf("expected label %s, got %s", tt.label, resp.Label)
			}
			if len(resp.Probabilities) != 2 {
				t.Fatalf("expected 2 probabilities, got %d", len(resp.Probabilities))
			}
			if resp.Probabilities[0].Class != "0" || resp.Probabilities[1].Class != "1" {
				t.Errorf("probabilities not in artifact class order: %+v", resp.Probabilities)
			}
			if math.Abs(resp.Probabilities[1].Probability-tt.p1) > 1e-9 {
				t.Errorf("expected P(1)=%f, got %f", tt.p1, resp.Probabilities[1].Probability)
			}

			var sum float64
			for _, p := range resp.Probabilities {
				sum += p.Probability
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("probabilities sum to %f", sum)
			}
			if resp.ID == "" || resp.ModelVersion != "test" {
				t.Errorf("unexpected metadata: %+v", resp)
			}
		})
	}
}

func TestPredictIncompatibleInput(t *testing.T) {
	m := loadTestModel(t)

	t.Run("unseen system", func(t *testing.T) {
		req := validRequest()
		req.System = "Pantograph"

		resp, err := m.Predict(req)
		var incompatible *domain.ModelIncompatibleInputError
		if !errors.As(err, &incompatible) {
			t.Fatalf("expected ModelIncompatibleInputError, got %v", err)
		}
		if incompatible.Feature != domain.FeatureSystem || incompatible.Value != "Pantograph" {
			t.Errorf("unexpected error detail: %+v", incompatible)
		}
		if resp != nil {
			t.Error("expected no response")
		}
	})

	t.Run("missing feature", func(t *testing.T) {
		req := validRequest()
		req.DayName = ""

		_, err := m.Predict(req)
		var incompatible *domain.ModelIncompatibleInputError
		if !errors.As(err, &incompatible) || incompatible.Feature != domain.FeatureDayName {
			t.Fatalf("expected missing day_name, got %v", err)
		}
	})
}

func TestPredictFromForm(t *testing.T) {
	m := loadTestModel(t)

	date := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	req := domain.NewPredictionRequest(date, "2", "Brakes", "102", "Puertas no cierran en estación")

	if req.DayName != "Wednesday" || req.DescriptionLength != 30 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if _, err := m.Predict(req); err != nil {
		t.Errorf("predict failed: %v", err)
	}
}

func TestClassOrderFollowsArtifact(t *testing.T) {
	a, err := LoadArtifact(filepath.Join("testdata", "model.json"))
	if err != nil {
		t.Fatalf("failed to load artifact: %v", err)
	}
	a.Classes = []string{"yes", "no"}

	m, err := NewModel(a)
	if err != nil {
		t.Fatalf("failed to build model: %v", err)
	}
	resp, err := m.Predict(validRequest())
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if resp.Label != "yes" || resp.Probabilities[0].Class != "yes" {
		t.Errorf("expected artifact order, got %+v", resp)
	}
}

func TestArtifactValidation(t *testing.T) {
	base := func() *Artifact {
		a, err := LoadArtifact(filepath.Join("testdata", "model.json"))
		if err != nil {
			t.Fatalf("failed to load artifact: %v", err)
		}
		return a
	}

	tests := []struct {
		name   string
		mutate func(*Artifact)
	}{
		{"no classes", func(a *Artifact) { a.Classes = nil }},
		{"no trees", func(a *Artifact) { a.Trees = nil }},
		{"unknown kind", func(a *Artifact) { a.Features[0].Kind = "ordinal" }},
		{"unknown column", func(a *Artifact) { a.Trees[0].Nodes[0].Column = "system=Wings" }},
		{"leaf width", func(a *Artifact) { a.Trees[0].Nodes[1].Value = []float64{1} }},
		{"backward child", func(a *Artifact) { a.Trees[1].Nodes[2].Left = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base()
			tt.mutate(a)
			if _, err := NewModel(a); !errors.Is(err, ErrInvalidArtifact) {
				t.Errorf("expected ErrInvalidArtifact, got %v", err)
			}
		})
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	info := loadTestModel(t).Describe()
	if info.Name != "evacuation_rf" || info.Trees != 2 || len(info.Features) != 8 {
		t.Errorf("unexpected info: %+v", info)
	}
}
