// Package loader reads the incident dataset from its sources.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
)

// Source column names.
const (
	ColDate                 = "Fecha"
	ColYear                 = "year"
	ColMonth                = "month"
	ColDay                  = "day"
	ColDayName              = "day_name"
	ColLine                 = "Linea"
	ColVehicle              = "Veh"
	ColSystem               = "Sistema"
	ColCategory             = "Cat"
	ColCausedEvacuation     = "Causó_desalojo"
	ColSupervisorReviewed   = "Supervisor_reviso"
	ColServiceReliability   = "Fiabilidad_Servicio"
	ColDelayMinutes         = "Retraso_minutos"
	ColEvacuationPercentage = "Porcentaje_desalojo"
	ColDescriptionLength    = "long_desc"
)

var requiredColumns = []string{
	ColDate,
	ColYear,
	ColMonth,
	ColDay,
	ColDayName,
	ColLine,
	ColVehicle,
	ColSystem,
	ColCategory,
	ColCausedEvacuation,
	ColDelayMinutes,
	ColEvacuationPercentage,
	ColDescriptionLength,
}

// Header spellings seen in exports that lost their accents.
var columnAliases = map[string]string{
	"Causo_desalojo": ColCausedEvacuation,
	"Línea":          ColLine,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
}

// Options controls CSV parsing.
type Options struct {
	// Delimiter separates fields. Defaults to ';'.
	Delimiter rune
}

// LoadCSV reads a dataset file.
func LoadCSV(path string, opts Options) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	incidents, err := ReadCSV(f, opts)
	if err != nil {
		return nil, err
	}
	return domain.NewDataset(incidents), nil
}

// ReadCSV parses incidents from r. Unparseable dates become absent; any
// other malformed value is a *domain.DatasetContractViolation.
func ReadCSV(r io.Reader, opts Options) ([]domain.Incident, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = ';'
	}

	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.DatasetContractViolation{Column: "header", Reason: "file is empty"}
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if alias, ok := columnAliases[h]; ok {
			h = alias
		}
		cols[h] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, &domain.DatasetContractViolation{Column: c, Reason: "required column is missing"}
		}
	}

	var incidents []domain.Incident
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		inc, err := parseRecord(record, cols, line)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}

	return incidents, nil
}

type rowParser struct {
	record []string
	cols   map[string]int
	line   int
	err    error
}

func (p *rowParser) field(col string) string {
	i, ok := p.cols[col]
	if !ok || i >= len(p.record) {
		return ""
	}
	return strings.TrimSpace(p.record[i])
}

func (p *rowParser) fail(col, reason string) {
	if p.err == nil {
		p.err = &domain.DatasetContractViolation{Row: p.line, Column: col, Reason: reason}
	}
}

func (p *rowParser) required(col string) string {
	v := p.field(col)
	if v == "" {
		p.fail(col, "value is required")
	}
	return v
}

func (p *rowParser) integer(col string) int {
	v := p.required(col)
	if v == "" {
		return 0
	}
	f, ok := parseNumber(v)
	if !ok || f != math.Trunc(f) {
		p.fail(col, fmt.Sprintf("%q is not an integer", v))
		return 0
	}
	return int(f)
}

func (p *rowParser) optionalNumber(col string) *float64 {
	v := p.field(col)
	if v == "" || strings.EqualFold(v, "nan") {
		return nil
	}
	f, ok := parseNumber(v)
	if !ok {
		p.fail(col, fmt.Sprintf("%q is not a number", v))
		return nil
	}
	return &f
}

func (p *rowParser) nonNegative(col string) *float64 {
	f := p.optionalNumber(col)
	if f != nil && *f < 0 {
		p.fail(col, fmt.Sprintf("%v must not be negative", *f))
		return nil
	}
	return f
}

func (p *rowParser) flag(col string) bool {
	v := p.required(col)
	switch strings.ToLower(v) {
	case "1", "1.0", "true", "si", "sí", "yes", "s", "y":
		return true
	case "0", "0.0", "false", "no", "n", "":
		return false
	}
	p.fail(col, fmt.Sprintf("%q is not a yes/no value", v))
	return false
}

func parseRecord(record []string, cols map[string]int, line int) (domain.Incident, error) {
	p := &rowParser{record: record, cols: cols, line: line}

	inc := domain.Incident{
		Date:                 parseDate(p.field(ColDate)),
		Year:                 p.integer(ColYear),
		Month:                p.integer(ColMonth),
		Day:                  p.integer(ColDay),
		DayName:              p.required(ColDayName),
		Line:                 p.required(ColLine),
		VehicleID:            p.required(ColVehicle),
		System:               p.required(ColSystem),
		Category:             p.required(ColCategory),
		CausedEvacuation:     p.flag(ColCausedEvacuation),
		SupervisorReviewed:   p.field(ColSupervisorReviewed),
		ServiceReliability:   p.field(ColServiceReliability),
		DelayMinutes:         p.nonNegative(ColDelayMinutes),
		EvacuationPercentage: p.optionalNumber(ColEvacuationPercentage),
	}

	if desc := p.nonNegative(ColDescriptionLength); desc != nil {
		if *desc != math.Trunc(*desc) {
			p.fail(ColDescriptionLength, fmt.Sprintf("%v is not an integer", *desc))
		} else {
			inc.DescriptionLength = int(*desc)
		}
	}

	if p.err == nil && (inc.Month < 1 || inc.Month > 12) {
		p.fail(ColMonth, fmt.Sprintf("%d is not a month", inc.Month))
	}
	if p.err == nil && domain.WeekdayIndex(inc.DayName) < 0 {
		p.fail(ColDayName, fmt.Sprintf("%q is not a weekday", inc.DayName))
	}

	return inc, p.err
}

func parseDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// parseNumber accepts a decimal point or, failing that, a decimal comma.
func parseNumber(v string) (float64, bool) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	if strings.Count(v, ",") == 1 && !strings.Contains(v, ".") {
		if f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
