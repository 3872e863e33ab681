// Package predict serves the pre-trained evacuation classifier.
//
// The classifier is a random forest exported to JSON. Categorical features
// are one-hot encoded into "name=value" columns, numeric features pass
// through unchanged. A split node sends a row left when its column value is
// less than or equal to the threshold.
package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Feature kinds.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
)

// Artifact is the serialized classifier.
type Artifact struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Target   string    `json:"target"`
	Classes  []string  `json:"classes"`
	Features []Feature `json:"features"`
	Trees    []Tree    `json:"trees"`
}

// Feature is one model input.
type Feature struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Categories []string `json:"categories,omitempty"`
}

// Tree is one decision tree. Node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is either a split (Column set) or a leaf (Value set).
type Node struct {
	Column    string    `json:"column,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf reports whether the node carries class weights.
func (n *Node) IsLeaf() bool {
	return len(n.Value) > 0
}

var (
	// ErrInvalidArtifact is returned for artifacts that cannot be served.
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

// LoadArtifact reads and decodes an artifact file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return &a, nil
}

// Columns returns the encoded column names in feature order.
func (a *Artifact) Columns() []string {
	var cols []string
	for _, f := range a.Features {
		if f.Kind == KindCategorical {
			for _, c := range f.Categories {
				cols = append(cols, f.Name+"="+c)
			}
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// Validate checks the artifact is complete and every tree is well formed.
func (a *Artifact) Validate() error {
	if len(a.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidArtifact)
	}
	if len(a.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrInvalidArtifact)
	}
	if len(a.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidArtifact)
	}

	seen := make(map[string]bool)
	for _, f := range a.Features {
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate feature %s", ErrInvalidArtifact, f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case KindNumeric:
		case KindCategorical:
			if len(f.Categories) == 0 {
				return fmt.Errorf("%w: feature %s has no categories", ErrInvalidArtifact, f.Name)
			}
		default:
			return fmt.Errorf("%w: feature %s has unknown kind %q", ErrInvalidArtifact, f.Name, f.Kind)
		}
	}

	columns := make(map[string]bool)
	for _, c := range a.Columns() {
		columns[c] = true
	}

	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrInvalidArtifact, ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				if len(n.Value) != len(a.Classes) {
					return fmt.Errorf("%w: tree %d node %d has %d weights for %d classes",
						ErrInvalidArtifact, ti, ni, len(n.Value), len(a.Classes))
				}
				var sum float64
				for _, v := range n.Value {
					if v < 0 {
						return fmt.Errorf("%w: tree %d node %d has a negative weight", ErrInvalidArtifact, ti, ni)
					}
					sum += v
				}
				if sum == 0 {
					return fmt.Errorf("%w: tree %d node %d has no weight", ErrInvalidArtifact, ti, ni)
				}
				continue
			}

			if !columns[n.Column] {
				return fmt.Errorf("%w: tree %d node %d splits on unknown column %q", ErrInvalidArtifact, ti, ni, n.Column)
			}
			// Children always come after their parent, so traversal terminates.
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has out of range children", ErrInvalidArtifact, ti, ni)
			}
		}
	}

	return nil
}
