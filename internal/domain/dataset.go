package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
)

// Dimension names a set-valued filter dimension.
type Dimension string

const (
	DimensionLines      Dimension = "lines"
	DimensionSystems    Dimension = "systems"
	DimensionCategories Dimension = "categories"
	DimensionVehicles   Dimension = "vehicles"
	DimensionYears      Dimension = "years"
	DimensionWhere      Dimension = "where"
)

// SetDimensions lists the set-valued dimensions in validation order.
var SetDimensions = []Dimension{
	DimensionLines,
	DimensionSystems,
	DimensionCategories,
	DimensionVehicles,
}

// ParseDimension maps a dimension name to a set-valued Dimension.
func ParseDimension(name string) (Dimension, error) {
	for _, d := range SetDimensions {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension: %s", name)
}

// YearBounds is the inclusive year span covered by a dataset.
type YearBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Domains holds the category domains of a dataset, fixed at load time.
type Domains struct {
	Lines      []string   `json:"lines"`
	Systems    []string   `json:"systems"`
	Categories []string   `json:"categories"`
	Vehicles   []string   `json:"vehicles"`
	Years      YearBounds `json:"years"`
}

// Values returns the domain of a set-valued dimension.
func (d *Domains) Values(dim Dimension) []string {
	switch dim {
	case DimensionLines:
		return d.Lines
	case DimensionSystems:
		return d.Systems
	case DimensionCategories:
		return d.Categories
	case DimensionVehicles:
		return d.Vehicles
	default:
		return nil
	}
}

// Index returns the position of value within a dimension's domain, or -1.
func (d *Domains) Index(dim Dimension, value string) int {
	for i, v := range d.Values(dim) {
		if v == value {
			return i
		}
	}
	return -1
}

// Dataset is the loaded incident table. It is immutable once built and
// safe to share between goroutines.
type Dataset struct {
	incidents   []Incident
	domains     Domains
	fingerprint string
}

// NewDataset builds a dataset and derives its domains.
func NewDataset(incidents []Incident) *Dataset {
	rows := make([]Incident, len(incidents))
	copy(rows, incidents)

	return &Dataset{
		incidents:   rows,
		domains:     deriveDomains(rows),
		fingerprint: fingerprint(rows),
	}
}

// Incidents returns the rows in source order. Callers must not modify them.
func (ds *Dataset) Incidents() []Incident {
	return ds.incidents
}

// Len returns the number of rows.
func (ds *Dataset) Len() int {
	return len(ds.incidents)
}

// Domains returns the category domains and year bounds.
func (ds *Dataset) Domains() Domains {
	return ds.domains
}

// Fingerprint identifies the dataset contents. Used to namespace cached reports.
func (ds *Dataset) Fingerprint() string {
	return ds.fingerprint
}

func deriveDomains(rows []Incident) Domains {
	lines := make(map[string]struct{})
	systems := make(map[string]struct{})
	categories := make(map[string]struct{})
	vehicles := make(map[string]struct{})

	var years YearBounds
	for i, r := range rows {
		lines[r.Line] = struct{}{}
		systems[r.System] = struct{}{}
		categories[r.Category] = struct{}{}
		vehicles[r.VehicleID] = struct{}{}

		if i == 0 || r.Year < years.Min {
			years.Min = r.Year
		}
		if i == 0 || r.Year > years.Max {
			years.Max = r.Year
		}
	}

	return Domains{
		Lines:      sortedCategories(lines),
		Systems:    sortedCategories(systems),
		Categories: sortedCategories(categories),
		Vehicles:   sortedCategories(vehicles),
		Years:      years,
	}
}

// sortedCategories orders values numerically when all of them are numbers,
// lexically otherwise.
func sortedCategories(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	numeric := true
	for v := range set {
		values = append(values, v)
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			numeric = false
		}
	}

	if numeric {
		sort.Slice(values, func(i, j int) bool {
			a, _ := strconv.ParseFloat(values[i], 64)
			b, _ := strconv.ParseFloat(values[j], 64)
			if a == b {
				return values[i] < values[j]
			}
			return a < b
		})
	} else {
		sort.Strings(values)
	}
	return values
}

func fingerprint(rows []Incident) string {
	h := sha256.New()
	for _, r := range rows {
		date := ""
		if r.Date != nil {
			date = r.Date.Format("2006-01-02")
		}
		delay := ""
		if r.DelayMinutes != nil {
			delay = strconv.FormatFloat(*r.DelayMinutes, 'g', -1, 64)
		}
		evac := ""
		if r.EvacuationPercentage != nil {
			evac = strconv.FormatFloat(*r.EvacuationPercentage, 'g', -1, 64)
		}
		fmt.Fprintf(h, "%s|%d|%d|%d|%s|%s|%s|%s|%s|%s|%s|%t|%s|%s|%d\n",
			date, r.Year, r.Month, r.Day, r.DayName,
			r.Line, r.VehicleID, r.System, r.Category,
			r.SupervisorReviewed, r.ServiceReliability, r.CausedEvacuation,
			delay, evac, r.DescriptionLength,
		)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
