package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// YearRange is an inclusive [Min, Max] year interval.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether year falls within the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// Selection is the operator's current filter choice.
type Selection struct {
	Years      YearRange `json:"years"`
	Lines      []string  `json:"lines"`
	Systems    []string  `json:"systems"`
	Categories []string  `json:"categories"`
	Vehicles   []string  `json:"vehicles"`

	// Where is an optional CEL expression further restricting the view.
	Where string `json:"where,omitempty"`
}

// Values returns the selected values of a set-valued dimension.
func (s Selection) Values(dim Dimension) []string {
	switch dim {
	case DimensionLines:
		return s.Lines
	case DimensionSystems:
		return s.Systems
	case DimensionCategories:
		return s.Categories
	case DimensionVehicles:
		return s.Vehicles
	default:
		return nil
	}
}

// with returns a copy of s with dim replaced by values.
func (s Selection) with(dim Dimension, values []string) Selection {
	out := s.clone()
	switch dim {
	case DimensionLines:
		out.Lines = values
	case DimensionSystems:
		out.Systems = values
	case DimensionCategories:
		out.Categories = values
	case DimensionVehicles:
		out.Vehicles = values
	}
	return out
}

func (s Selection) clone() Selection {
	return Selection{
		Years:      s.Years,
		Lines:      cloneStrings(s.Lines),
		Systems:    cloneStrings(s.Systems),
		Categories: cloneStrings(s.Categories),
		Vehicles:   cloneStrings(s.Vehicles),
		Where:      s.Where,
	}
}

// Key returns a canonical identifier for the selection. Two selections with
// the same members in any order share a key.
func (s Selection) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "years=%d..%d;", s.Years.Min, s.Years.Max)
	for _, dim := range SetDimensions {
		values := cloneStrings(s.Values(dim))
		sort.Strings(values)
		b.WriteString(string(dim))
		b.WriteByte('=')
		b.WriteString(strings.Join(values, "\x1f"))
		b.WriteByte(';')
	}
	b.WriteString("where=")
	b.WriteString(strings.TrimSpace(s.Where))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// FilterModel validates selections against the domains of a dataset.
type FilterModel struct {
	domains Domains
}

// NewFilterModel creates a filter model for the given domains.
func NewFilterModel(domains Domains) *FilterModel {
	return &FilterModel{domains: domains}
}

// Domains returns the domains the model was built from.
func (m *FilterModel) Domains() Domains {
	return m.domains
}

// Default returns a selection with every value and the full year span.
func (m *FilterModel) Default() Selection {
	return Selection{
		Years:      YearRange{Min: m.domains.Years.Min, Max: m.domains.Years.Max},
		Lines:      cloneStrings(m.domains.Lines),
		Systems:    cloneStrings(m.domains.Systems),
		Categories: cloneStrings(m.domains.Categories),
		Vehicles:   cloneStrings(m.domains.Vehicles),
	}
}

// SelectAll returns a copy of sel with every domain value selected for dim.
func (m *FilterModel) SelectAll(sel Selection, dim Dimension) Selection {
	return sel.with(dim, cloneStrings(m.domains.Values(dim)))
}

// Clear returns a copy of sel with nothing selected for dim. The result is
// rejected by Validate until a value is chosen again.
func (m *FilterModel) Clear(sel Selection, dim Dimension) Selection {
	return sel.with(dim, []string{})
}

// Validate checks that every set dimension is non-empty and drawn from its
// domain, and that the year range is not inverted.
func (m *FilterModel) Validate(sel Selection) error {
	for _, dim := range SetDimensions {
		values := sel.Values(dim)
		if len(values) == 0 {
			return &InvalidSelectionError{
				Dimension: dim,
				Reason:    "at least one value must be selected",
			}
		}
		for _, v := range values {
			if m.domains.Index(dim, v) < 0 {
				return &InvalidSelectionError{
					Dimension: dim,
					Reason:    fmt.Sprintf("unknown value %q", v),
				}
			}
		}
	}

	if sel.Years.Min > sel.Years.Max {
		return &InvalidSelectionError{
			Dimension: DimensionYears,
			Reason:    fmt.Sprintf("range %d..%d is inverted", sel.Years.Min, sel.Years.Max),
		}
	}

	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
