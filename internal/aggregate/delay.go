package aggregate

import (
	"github.com/railwatch/railwatch/internal/domain"
)

func delayOf(inc *domain.Incident) *float64 {
	return inc.DelayMinutes
}

// DelayBySystem is the mean delay per (system, line).
func DelayBySystem(view domain.View) []domain.GroupMean {
	return meanBy(view, bySystemLine, delayOf)
}

// DelayByCategory is the mean delay per (line, category).
func DelayByCategory(view domain.View) []domain.GroupMean {
	return meanBy(view, byLineCategory, delayOf)
}

// DelayByVehicle is the mean delay per (line, vehicle).
func DelayByVehicle(view domain.View) []domain.GroupMean {
	return meanBy(view, byLineVehicle, delayOf)
}
