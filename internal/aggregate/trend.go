package aggregate

import (
	"sort"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
)

// Seasonality windows, in periods. The first periods of a series average
// over whatever history exists.
const (
	WeeklySeasonalityWindow  = 12
	MonthlySeasonalityWindow = 12
)

type periodKey struct {
	line   string
	year   int
	bucket int // ISO week or calendar month
}

// WeeklyTrend counts failures per line and ISO week. Year is the ISO year,
// which can differ from the calendar year around New Year. Rows without a
// date are left out.
func WeeklyTrend(view domain.View) []domain.TrendPoint {
	counts := make(map[periodKey]int)
	periods := make(map[periodKey]time.Time)

	for i := range view.Rows {
		inc := &view.Rows[i]
		if !inc.HasDate() {
			continue
		}
		year, week := inc.Date.ISOWeek()
		k := periodKey{line: inc.Line, year: year, bucket: week}
		if _, ok := periods[k]; !ok {
			periods[k] = isoMonday(*inc.Date)
		}
		counts[k]++
	}

	points := make([]domain.TrendPoint, 0, len(counts))
	for k, n := range counts {
		points = append(points, domain.TrendPoint{
			Line:   k.line,
			Year:   k.year,
			Week:   k.bucket,
			Period: periods[k],
			Count:  n,
		})
	}
	return seasonality(view.Domains, points, WeeklySeasonalityWindow)
}

// MonthlyTrend counts failures per line and calendar month, using the
// year and month columns. Period is the first day of the month.
func MonthlyTrend(view domain.View) []domain.TrendPoint {
	counts := make(map[periodKey]int)
	for i := range view.Rows {
		inc := &view.Rows[i]
		if inc.Month < 1 || inc.Month > 12 {
			continue
		}
		counts[periodKey{line: inc.Line, year: inc.Year, bucket: inc.Month}]++
	}

	points := make([]domain.TrendPoint, 0, len(counts))
	for k, n := range counts {
		points = append(points, domain.TrendPoint{
			Line:   k.line,
			Year:   k.year,
			Month:  k.bucket,
			Period: time.Date(k.year, time.Month(k.bucket), 1, 0, 0, 0, 0, time.UTC),
			Count:  n,
		})
	}
	return seasonality(view.Domains, points, MonthlySeasonalityWindow)
}

// isoMonday returns the Monday starting the ISO week of t.
func isoMonday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -offset)
}

// seasonality sorts points by line then period and fills in the trailing
// rolling mean of Count over window periods of the same line.
func seasonality(d domain.Domains, points []domain.TrendPoint, window int) []domain.TrendPoint {
	sort.Slice(points, func(i, j int) bool {
		if points[i].Line != points[j].Line {
			return domainLess(&d, domain.DimensionLines, points[i].Line, points[j].Line)
		}
		return points[i].Period.Before(points[j].Period)
	})

	start := 0
	sum := 0
	for i := range points {
		if i > 0 && points[i].Line != points[i-1].Line {
			start, sum = i, 0
		}
		sum += points[i].Count
		if i-start >= window {
			sum -= points[i-window].Count
		}
		n := i - start + 1
		if n > window {
			n = window
		}
		points[i].Seasonality = float64(sum) / float64(n)
	}
	return points
}
