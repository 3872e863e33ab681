package aggregate

import (
	"math"
	"sort"

	"github.com/railwatch/railwatch/internal/domain"
)

// NumericColumns are the view columns entered into the correlation matrix,
// in matrix order.
var NumericColumns = []string{
	"year",
	"month",
	"day",
	"delay_minutes",
	"evacuation_percentage",
	"description_length",
}

func numericValue(inc *domain.Incident, column string) (float64, bool) {
	switch column {
	case "year":
		return float64(inc.Year), true
	case "month":
		return float64(inc.Month), true
	case "day":
		return float64(inc.Day), true
	case "delay_minutes":
		if inc.DelayMinutes == nil {
			return 0, false
		}
		return *inc.DelayMinutes, true
	case "evacuation_percentage":
		if inc.EvacuationPercentage == nil {
			return 0, false
		}
		return *inc.EvacuationPercentage, true
	case "description_length":
		return float64(inc.DescriptionLength), true
	}
	return 0, false
}

// Correlation computes the pairwise Spearman rank correlation of the
// numeric columns. Each pair uses the rows where both values are present.
// A coefficient is nil when fewer than two such rows exist or either side
// is constant over them; this includes the diagonal of a constant column.
func Correlation(view domain.View) domain.CorrelationMatrix {
	if view.Len() == 0 {
		return domain.CorrelationMatrix{Columns: []string{}, Values: [][]*float64{}}
	}

	n := len(NumericColumns)
	values := make([][]float64, n)
	present := make([][]bool, n)
	for c, col := range NumericColumns {
		values[c] = make([]float64, view.Len())
		present[c] = make([]bool, view.Len())
		for i := range view.Rows {
			values[c][i], present[c][i] = numericValue(&view.Rows[i], col)
		}
	}

	matrix := make([][]*float64, n)
	for i := range matrix {
		matrix[i] = make([]*float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var xs, ys []float64
			for r := range view.Rows {
				if present[i][r] && present[j][r] {
					xs = append(xs, values[i][r])
					ys = append(ys, values[j][r])
				}
			}

			rho, ok := spearman(xs, ys)
			if !ok {
				continue
			}
			if i == j {
				rho = 1
			}
			a, b := rho, rho
			matrix[i][j] = &a
			matrix[j][i] = &b
		}
	}

	columns := make([]string, n)
	copy(columns, NumericColumns)
	return domain.CorrelationMatrix{Columns: columns, Values: matrix}
}

// spearman returns the Pearson correlation of the average ranks of xs and
// ys, clamped to [-1, 1].
func spearman(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	rho, ok := pearson(ranks(xs), ranks(ys))
	if !ok {
		return 0, false
	}
	return math.Max(-1, math.Min(1, rho)), true
}

// ranks assigns 1-based ranks, giving tied values the mean of their ranks.
func ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}
