package aggregate

import (
	"github.com/railwatch/railwatch/internal/domain"
)

// Compute builds every report family for view. An empty view produces a
// report with Empty set and zero rows in each family.
func Compute(view domain.View) *domain.Report {
	return &domain.Report{
		RowCount: view.Len(),
		Empty:    view.Len() == 0,

		WeeklyTrend:  WeeklyTrend(view),
		MonthlyTrend: MonthlyTrend(view),
		DayOfWeek:    DayOfWeek(view),

		ByCategory:        ByCategory(view),
		BySystem:          BySystem(view),
		ByVehicleCategory: ByVehicleCategory(view),

		DelayBySystem:   DelayBySystem(view),
		DelayByCategory: DelayByCategory(view),
		DelayByVehicle:  DelayByVehicle(view),

		EvacuationsBySystem:   EvacuationsBySystem(view),
		EvacuationsByCategory: EvacuationsByCategory(view),
		EvacuationsByVehicle:  EvacuationsByVehicle(view),

		EvacuationDelay:   EvacuationDelay(view),
		EvacuationScatter: EvacuationScatter(view),

		Correlation: Correlation(view),
	}
}
