package domain

import (
	"time"
	"unicode/utf8"
)

// Feature names the classifier was trained on.
const (
	FeatureYear              = "year"
	FeatureMonth             = "month"
	FeatureDay               = "day"
	FeatureDayName           = "day_name"
	FeatureLine              = "line"
	FeatureSystem            = "system"
	FeatureVehicleID         = "vehicle_id"
	FeatureDescriptionLength = "description_length"
)

// PredictionFeatures lists every feature a PredictionRequest carries.
var PredictionFeatures = []string{
	FeatureYear,
	FeatureMonth,
	FeatureDay,
	FeatureDayName,
	FeatureLine,
	FeatureSystem,
	FeatureVehicleID,
	FeatureDescriptionLength,
}

// PredictionRequest is a synthesized incident to classify.
type PredictionRequest struct {
	Year              int    `json:"year"`
	Month             int    `json:"month"`
	Day               int    `json:"day"`
	DayName           string `json:"day_name"`
	Line              string `json:"line"`
	System            string `json:"system"`
	VehicleID         string `json:"vehicle_id"`
	DescriptionLength int    `json:"description_length"`
}

// NewPredictionRequest derives a request from an incident date, its
// dimensions and a free-text description.
func NewPredictionRequest(date time.Time, line, system, vehicleID, description string) PredictionRequest {
	return PredictionRequest{
		Year:              date.Year(),
		Month:             int(date.Month()),
		Day:               date.Day(),
		DayName:           date.Weekday().String(),
		Line:              line,
		System:            system,
		VehicleID:         vehicleID,
		DescriptionLength: utf8.RuneCountInString(description),
	}
}

// Record returns the request as a feature map. Zero date parts and empty
// strings are treated as missing and left out.
func (r PredictionRequest) Record() map[string]any {
	rec := make(map[string]any, len(PredictionFeatures))
	if r.Year != 0 {
		rec[FeatureYear] = float64(r.Year)
	}
	if r.Month != 0 {
		rec[FeatureMonth] = float64(r.Month)
	}
	if r.Day != 0 {
		rec[FeatureDay] = float64(r.Day)
	}
	if r.DayName != "" {
		rec[FeatureDayName] = r.DayName
	}
	if r.Line != "" {
		rec[FeatureLine] = r.Line
	}
	if r.System != "" {
		rec[FeatureSystem] = r.System
	}
	if r.VehicleID != "" {
		rec[FeatureVehicleID] = r.VehicleID
	}
	rec[FeatureDescriptionLength] = float64(r.DescriptionLength)
	return rec
}

// ClassProbability is the probability of one class.
type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// PredictionResponse is the classifier output. Probabilities follow the
// artifact's class order.
type PredictionResponse struct {
	ID            string             `json:"id"`
	Label         string             `json:"label"`
	Probabilities []ClassProbability `json:"probabilities"`
	Model         string             `json:"model"`
	ModelVersion  string             `json:"modelVersion"`
}

// PredictionLog is a persisted prediction.
type PredictionLog struct {
	ID        string             `json:"id"`
	TraceID   string             `json:"traceId,omitempty"`
	Request   PredictionRequest  `json:"request"`
	Response  PredictionResponse `json:"response"`
	CreatedAt time.Time          `json:"createdAt"`
}
