// Package domain defines the core interfaces and types for Railwatch.
package domain

import (
	"time"
)

// Incident is one row of the failure dataset.
type Incident struct {
	// Date is nil when the source value could not be parsed.
	Date *time.Time `json:"date,omitempty"`

	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day"`
	DayName string `json:"dayName"`

	// Categorical dimensions
	Line               string `json:"line"`
	VehicleID          string `json:"vehicleId"`
	System             string `json:"system"`
	Category           string `json:"category"`
	SupervisorReviewed string `json:"supervisorReviewed"`
	ServiceReliability string `json:"serviceReliability"`

	CausedEvacuation bool `json:"causedEvacuation"`

	// Measures, nil when missing
	DelayMinutes         *float64 `json:"delayMinutes"`
	EvacuationPercentage *float64 `json:"evacuationPercentage"`

	DescriptionLength int `json:"descriptionLength"`
}

// HasDate reports whether the incident carries a parsed calendar date.
func (i *Incident) HasDate() bool {
	return i.Date != nil
}

// Weekdays lists day names in calendar order, Monday first.
var Weekdays = []string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// WeekdayIndex returns the calendar position of a day name, or -1.
func WeekdayIndex(name string) int {
	for i, d := range Weekdays {
		if d == name {
			return i
		}
	}
	return -1
}

// IncidentRow is an incident as stored by the repository, with its
// position in the source dataset.
type IncidentRow struct {
	Seq      int64     `json:"seq"`
	Incident Incident  `json:"incident"`
	LoadedAt time.Time `json:"loadedAt"`
}
