package aggregate

import (
	"sort"

	"github.com/railwatch/railwatch/internal/domain"
)

func evacuated(inc *domain.Incident) bool {
	return inc.CausedEvacuation
}

// EvacuationsBySystem counts evacuating failures per (line, system).
func EvacuationsBySystem(view domain.View) []domain.GroupCount {
	return countBy(view, byLineSystem, evacuated)
}

// EvacuationsByCategory counts evacuating failures per (line, category).
func EvacuationsByCategory(view domain.View) []domain.GroupCount {
	return countBy(view, byLineCategory, evacuated)
}

// EvacuationsByVehicle counts evacuating failures per (line, vehicle).
func EvacuationsByVehicle(view domain.View) []domain.GroupCount {
	return countBy(view, byLineVehicle, evacuated)
}

type evacKey struct {
	system    string
	evacuated bool
}

// EvacuationDelay is the mean delay per system, split by whether the
// failure caused an evacuation. Ordered by system, non-evacuating first.
func EvacuationDelay(view domain.View) []domain.EvacuationDelay {
	accs := make(map[evacKey]*meanAcc)
	for i := range view.Rows {
		inc := &view.Rows[i]
		k := evacKey{system: inc.System, evacuated: inc.CausedEvacuation}
		acc, ok := accs[k]
		if !ok {
			acc = &meanAcc{}
			accs[k] = acc
		}
		acc.add(inc.DelayMinutes)
	}

	out := make([]domain.EvacuationDelay, 0, len(accs))
	for k, acc := range accs {
		if acc.n == 0 {
			continue
		}
		out = append(out, domain.EvacuationDelay{
			System:           k.system,
			CausedEvacuation: k.evacuated,
			MeanDelay:        acc.mean(),
			N:                acc.n,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].System != out[j].System {
			return domainLess(&view.Domains, domain.DimensionSystems, out[i].System, out[j].System)
		}
		return !out[i].CausedEvacuation && out[j].CausedEvacuation
	})
	return out
}

// EvacuationScatter passes each row's evacuation percentage and delay
// through unaggregated, in view order. Missing measures stay nil.
func EvacuationScatter(view domain.View) []domain.ScatterPoint {
	out := make([]domain.ScatterPoint, 0, len(view.Rows))
	for i := range view.Rows {
		inc := &view.Rows[i]
		out = append(out, domain.ScatterPoint{
			EvacuationPercentage: inc.EvacuationPercentage,
			DelayMinutes:         inc.DelayMinutes,
			Line:                 inc.Line,
			Category:             inc.Category,
			Vehicle:              inc.VehicleID,
			System:               inc.System,
		})
	}
	return out
}
