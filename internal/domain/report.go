package domain

import "time"

// View is the filtered subsequence of a dataset, in source order.
type View struct {
	Rows    []Incident `json:"rows"`
	Domains Domains    `json:"-"`
}

// Len returns the number of rows in the view.
func (v View) Len() int {
	return len(v.Rows)
}

// TrendPoint is one period of a per-line failure trend.
type TrendPoint struct {
	Line   string    `json:"line"`
	Year   int       `json:"year"`
	Period time.Time `json:"period"`

	// Week is the ISO week for weekly trends, Month the calendar month for
	// monthly trends. The other is zero.
	Week  int `json:"week,omitempty"`
	Month int `json:"month,omitempty"`

	Count       int     `json:"count"`
	Seasonality float64 `json:"seasonality"`
}

// DayCount is the number of failures of a line on a weekday.
type DayCount struct {
	Line    string `json:"line"`
	DayName string `json:"dayName"`
	Count   int    `json:"count"`
}

// GroupCount is a count keyed by two categorical dimensions.
type GroupCount struct {
	Keys  GroupKeys `json:"keys"`
	Count int       `json:"count"`
}

// GroupMean is an arithmetic mean keyed by two categorical dimensions.
type GroupMean struct {
	Keys GroupKeys `json:"keys"`
	Mean float64   `json:"mean"`
	// N is the number of rows that contributed to Mean.
	N int `json:"n"`
}

// GroupKeys holds the grouping values of an aggregate row. Only the
// dimensions of the grouping are set.
type GroupKeys struct {
	Line     string `json:"line,omitempty"`
	System   string `json:"system,omitempty"`
	Category string `json:"category,omitempty"`
	Vehicle  string `json:"vehicle,omitempty"`
}

// EvacuationDelay is the mean delay of a system split by whether the
// failure caused an evacuation.
type EvacuationDelay struct {
	System           string  `json:"system"`
	CausedEvacuation bool    `json:"causedEvacuation"`
	MeanDelay        float64 `json:"meanDelay"`
	N                int     `json:"n"`
}

// ScatterPoint is one unaggregated row of the evacuation/delay relationship.
type ScatterPoint struct {
	EvacuationPercentage *float64 `json:"evacuationPercentage"`
	DelayMinutes         *float64 `json:"delayMinutes"`
	Line                 string   `json:"line"`
	Category             string   `json:"category"`
	Vehicle              string   `json:"vehicle"`
	System               string   `json:"system"`
}

// CorrelationMatrix is a square Spearman matrix. A nil entry means the
// coefficient is undefined.
type CorrelationMatrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// At returns the coefficient between columns i and j.
func (m CorrelationMatrix) At(i, j int) (float64, bool) {
	v := m.Values[i][j]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Report bundles every aggregate family for one view.
type Report struct {
	SelectionKey string `json:"selectionKey"`
	RowCount     int    `json:"rowCount"`
	Empty        bool   `json:"empty"`

	WeeklyTrend  []TrendPoint `json:"weeklyTrend"`
	MonthlyTrend []TrendPoint `json:"monthlyTrend"`
	DayOfWeek    []DayCount   `json:"dayOfWeek"`

	ByCategory        []GroupCount `json:"byCategory"`
	BySystem          []GroupCount `json:"bySystem"`
	ByVehicleCategory []GroupCount `json:"byVehicleCategory"`

	DelayBySystem   []GroupMean `json:"delayBySystem"`
	DelayByCategory []GroupMean `json:"delayByCategory"`
	DelayByVehicle  []GroupMean `json:"delayByVehicle"`

	EvacuationsBySystem   []GroupCount `json:"evacuationsBySystem"`
	EvacuationsByCategory []GroupCount `json:"evacuationsByCategory"`
	EvacuationsByVehicle  []GroupCount `json:"evacuationsByVehicle"`

	EvacuationDelay   []EvacuationDelay `json:"evacuationDelay"`
	EvacuationScatter []ScatterPoint    `json:"evacuationScatter"`

	Correlation CorrelationMatrix `json:"correlation"`

	Warnings []string `json:"warnings,omitempty"`
}

// Report family names, as addressed by the API.
const (
	FamilyWeeklyTrend           = "weekly-trend"
	FamilyMonthlyTrend          = "monthly-trend"
	FamilyDayOfWeek             = "day-of-week"
	FamilyByCategory            = "by-category"
	FamilyBySystem              = "by-system"
	FamilyByVehicleCategory     = "by-vehicle-category"
	FamilyDelayBySystem         = "delay-by-system"
	FamilyDelayByCategory       = "delay-by-category"
	FamilyDelayByVehicle        = "delay-by-vehicle"
	FamilyEvacuationsBySystem   = "evacuations-by-system"
	FamilyEvacuationsByCategory = "evacuations-by-category"
	FamilyEvacuationsByVehicle  = "evacuations-by-vehicle"
	FamilyEvacuationDelay       = "evacuation-delay"
	FamilyEvacuationScatter     = "evacuation-scatter"
	FamilyCorrelation           = "correlation"
)

// Family returns one aggregate family of the report by name.
func (r *Report) Family(name string) (any, bool) {
	switch name {
	case FamilyWeeklyTrend:
		return r.WeeklyTrend, true
	case FamilyMonthlyTrend:
		return r.MonthlyTrend, true
	case FamilyDayOfWeek:
		return r.DayOfWeek, true
	case FamilyByCategory:
		return r.ByCategory, true
	case FamilyBySystem:
		return r.BySystem, true
	case FamilyByVehicleCategory:
		return r.ByVehicleCategory, true
	case FamilyDelayBySystem:
		return r.DelayBySystem, true
	case FamilyDelayByCategory:
		return r.DelayByCategory, true
	case FamilyDelayByVehicle:
		return r.DelayByVehicle, true
	case FamilyEvacuationsBySystem:
		return r.EvacuationsBySystem, true
	case FamilyEvacuationsByCategory:
		return r.EvacuationsByCategory, true
	case FamilyEvacuationsByVehicle:
		return r.EvacuationsByVehicle, true
	case FamilyEvacuationDelay:
		return r.EvacuationDelay, true
	case FamilyEvacuationScatter:
		return r.EvacuationScatter, true
	case FamilyCorrelation:
		return r.Correlation, true
	default:
		return nil, false
	}
}
