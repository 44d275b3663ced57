package panel

import "sort"

// Percentile returns the p-th continuous percentile of values using linear
// interpolation between order statistics. The input is not modified. Returns
// 0 for an empty sample; p is clamped to [0, 100].
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Percentiles is the standard five-point distribution summary.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// SummarizePercentiles computes the five-point summary of a sample.
func SummarizePercentiles(values []float64) Percentiles {
	return Percentiles{
		P10: Percentile(values, 10),
		P25: Percentile(values, 25),
		P50: Percentile(values, 50),
		P75: Percentile(values, 75),
		P90: Percentile(values, 90),
	}
}
