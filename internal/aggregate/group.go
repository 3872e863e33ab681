// Package aggregate computes the report families of a filtered view.
//
// Every function here is a pure function of its view: no shared state, no
// I/O, safe for concurrent callers. An empty view yields empty results.
package aggregate

import (
	"sort"

	"github.com/railwatch/railwatch/internal/domain"
)

// grouping is an ordered list of dimensions an aggregate is keyed by.
// The order decides how ties are broken.
type grouping []domain.Dimension

var (
	byLineCategory    = grouping{domain.DimensionLines, domain.DimensionCategories}
	byLineSystem      = grouping{domain.DimensionLines, domain.DimensionSystems}
	bySystemLine      = grouping{domain.DimensionSystems, domain.DimensionLines}
	byLineVehicle     = grouping{domain.DimensionLines, domain.DimensionVehicles}
	byVehicleCategory = grouping{domain.DimensionVehicles, domain.DimensionCategories}
)

func (g grouping) keys(inc *domain.Incident) domain.GroupKeys {
	var k domain.GroupKeys
	for _, dim := range g {
		switch dim {
		case domain.DimensionLines:
			k.Line = inc.Line
		case domain.DimensionSystems:
			k.System = inc.System
		case domain.DimensionCategories:
			k.Category = inc.Category
		case domain.DimensionVehicles:
			k.Vehicle = inc.VehicleID
		}
	}
	return k
}

// less orders keys by domain position, dimension by dimension.
func (g grouping) less(d *domain.Domains, a, b domain.GroupKeys) bool {
	for _, dim := range g {
		av, bv := keyValue(a, dim), keyValue(b, dim)
		if av == bv {
			continue
		}
		return domainLess(d, dim, av, bv)
	}
	return false
}

func keyValue(k domain.GroupKeys, dim domain.Dimension) string {
	switch dim {
	case domain.DimensionLines:
		return k.Line
	case domain.DimensionSystems:
		return k.System
	case domain.DimensionCategories:
		return k.Category
	case domain.DimensionVehicles:
		return k.Vehicle
	}
	return ""
}

// domainLess compares two values by their position in the dimension's
// domain. Values outside the domain sort after it, lexically.
func domainLess(d *domain.Domains, dim domain.Dimension, a, b string) bool {
	ai, bi := d.Index(dim, a), d.Index(dim, b)
	switch {
	case ai >= 0 && bi >= 0:
		return ai < bi
	case ai >= 0:
		return true
	case bi >= 0:
		return false
	default:
		return a < b
	}
}

// countBy counts rows per group, keeping only rows accepted by keep.
// Results are ordered by count descending, ties in domain order.
func countBy(view domain.View, g grouping, keep func(*domain.Incident) bool) []domain.GroupCount {
	counts := make(map[domain.GroupKeys]int)
	for i := range view.Rows {
		inc := &view.Rows[i]
		if keep != nil && !keep(inc) {
			continue
		}
		counts[g.keys(inc)]++
	}

	out := make([]domain.GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, domain.GroupCount{Keys: k, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return g.less(&view.Domains, out[i].Keys, out[j].Keys)
	})
	return out
}

type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) add(v *float64) {
	if v == nil {
		return
	}
	a.sum += *v
	a.n++
}

func (a meanAcc) mean() float64 {
	return a.sum / float64(a.n)
}

// meanBy averages a measure per group, skipping rows where it is missing.
// Groups without a single present value are omitted. Results are ordered
// by mean descending, ties in domain order.
func meanBy(view domain.View, g grouping, measure func(*domain.Incident) *float64) []domain.GroupMean {
	accs := make(map[domain.GroupKeys]*meanAcc)
	for i := range view.Rows {
		inc := &view.Rows[i]
		k := g.keys(inc)
		acc, ok := accs[k]
		if !ok {
			acc = &meanAcc{}
			accs[k] = acc
		}
		acc.add(measure(inc))
	}

	out := make([]domain.GroupMean, 0, len(accs))
	for k, acc := range accs {
		if acc.n == 0 {
			continue
		}
		out = append(out, domain.GroupMean{Keys: k, Mean: acc.mean(), N: acc.n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			return out[i].Mean > out[j].Mean
		}
		return g.less(&view.Domains, out[i].Keys, out[j].Keys)
	})
	return out
}
