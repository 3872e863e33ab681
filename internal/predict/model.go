package predict

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/railwatch/railwatch/internal/domain"
)

type compiledNode struct {
	column    int
	threshold float64
	left      int
	right     int
	weights   []float64 // normalized, nil for splits
}

// Model is a loaded, validated classifier. It is never modified after
// NewModel returns and may be shared between goroutines.
type Model struct {
	artifact *Artifact
	columns  map[string]int
	width    int
	trees    [][]compiledNode
}

// NewModel validates an artifact and prepares it for prediction.
func NewModel(a *Artifact) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	cols := a.Columns()
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}

	trees := make([][]compiledNode, len(a.Trees))
	for ti, t := range a.Trees {
		nodes := make([]compiledNode, len(t.Nodes))
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				var sum float64
				for _, v := range n.Value {
					sum += v
				}
				w := make([]float64, len(n.Value))
				for i, v := range n.Value {
					w[i] = v / sum
				}
				nodes[ni] = compiledNode{weights: w}
				continue
			}
			nodes[ni] = compiledNode{
				column:    index[n.Column],
				threshold: n.Threshold,
				left:      n.Left,
				right:     n.Right,
			}
		}
		trees[ti] = nodes
	}

	return &Model{
		artifact: a,
		columns:  index,
		width:    len(cols),
		trees:    trees,
	}, nil
}

// Load reads an artifact file and builds a model from it.
func Load(path string) (*Model, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return NewModel(a)
}

// Classes returns the class labels in artifact order.
func (m *Model) Classes() []string {
	out := make([]string, len(m.artifact.Classes))
	copy(out, m.artifact.Classes)
	return out
}

// Predict classifies a request. Probabilities follow the artifact's class
// order; Label is the most probable class, the earliest one on ties.
func (m *Model) Predict(req domain.PredictionRequest) (*domain.PredictionResponse, error) {
	x, err := m.encode(req.Record())
	if err != nil {
		return nil, err
	}

	proba := m.predictProba(x)

	best := 0
	for i := range proba {
		if proba[i] > proba[best] {
			best = i
		}
	}

	probs := make([]domain.ClassProbability, len(proba))
	for i, p := range proba {
		probs[i] = domain.ClassProbability{Class: m.artifact.Classes[i], Probability: p}
	}

	return &domain.PredictionResponse{
		ID:            uuid.New().String(),
		Label:         m.artifact.Classes[best],
		Probabilities: probs,
		Model:         m.artifact.Name,
		ModelVersion:  m.artifact.Version,
	}, nil
}

// encode turns a feature record into the model's column vector.
func (m *Model) encode(record map[string]any) ([]float64, error) {
	x := make([]float64, m.width)

	for _, f := range m.artifact.Features {
		raw, ok := record[f.Name]
		if !ok {
			return nil, &domain.ModelIncompatibleInputError{
				Feature: f.Name,
				Reason:  "required feature is missing",
			}
		}

		switch f.Kind {
		case KindNumeric:
			v, ok := toFloat(raw)
			if !ok {
				return nil, &domain.ModelIncompatibleInputError{
					Feature: f.Name,
					Value:   toString(raw),
					Reason:  "expected a number",
				}
			}
			x[m.columns[f.Name]] = v

		case KindCategorical:
			value := toString(raw)
			col, ok := m.columns[f.Name+"="+value]
			if !ok {
				return nil, &domain.ModelIncompatibleInputError{
					Feature: f.Name,
					Value:   value,
					Reason:  "category not seen in training",
				}
			}
			x[col] = 1
		}
	}

	return x, nil
}

func (m *Model) predictProba(x []float64) []float64 {
	proba := make([]float64, len(m.artifact.Classes))
	for _, nodes := range m.trees {
		n := &nodes[0]
		for n.weights == nil {
			if x[n.column] <= n.threshold {
				n = &nodes[n.left]
			} else {
				n = &nodes[n.right]
			}
		}
		for i, w := range n.weights {
			proba[i] += w
		}
	}

	k := float64(len(m.trees))
	for i := range proba {
		proba[i] /= k
	}
	return proba
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// Info describes a loaded model.
type Info struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Target   string    `json:"target"`
	Classes  []string  `json:"classes"`
	Features []Feature `json:"features"`
	Trees    int       `json:"trees"`
}

// Describe returns the model's metadata.
func (m *Model) Describe() Info {
	return Info{
		Name:     m.artifact.Name,
		Version:  m.artifact.Version,
		Target:   m.artifact.Target,
		Classes:  m.Classes(),
		Features: m.artifact.Features,
		Trees:    len(m.trees),
	}
}
