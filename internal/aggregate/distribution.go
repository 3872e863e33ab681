package aggregate

import (
	"sort"

	"github.com/railwatch/railwatch/internal/domain"
)

type dayKey struct {
	line string
	day  string
}

// DayOfWeek counts failures per line and weekday. Days are ordered Monday
// to Sunday, lines in domain order within a day.
func DayOfWeek(view domain.View) []domain.DayCount {
	counts := make(map[dayKey]int)
	for i := range view.Rows {
		inc := &view.Rows[i]
		counts[dayKey{line: inc.Line, day: inc.DayName}]++
	}

	out := make([]domain.DayCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, domain.DayCount{Line: k.line, DayName: k.day, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DayName != out[j].DayName {
			return dayLess(out[i].DayName, out[j].DayName)
		}
		return domainLess(&view.Domains, domain.DimensionLines, out[i].Line, out[j].Line)
	})
	return out
}

// dayLess orders day names in calendar order. Unrecognised names go last.
func dayLess(a, b string) bool {
	ai, bi := domain.WeekdayIndex(a), domain.WeekdayIndex(b)
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

// ByCategory counts failures per (line, category).
func ByCategory(view domain.View) []domain.GroupCount {
	return countBy(view, byLineCategory, nil)
}

// BySystem counts failures per (line, system).
func BySystem(view domain.View) []domain.GroupCount {
	return countBy(view, byLineSystem, nil)
}

// ByVehicleCategory counts failures per (vehicle, category).
func ByVehicleCategory(view domain.View) []domain.GroupCount {
	return countBy(view, byVehicleCategory, nil)
}
