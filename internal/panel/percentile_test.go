package panel

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{42}, 90, 42},
		{"median_even", []float64{1, 2, 3, 4}, 50, 2.5},
		{"median_odd", []float64{3, 1, 2}, 50, 2},
		{"p25_interpolated", []float64{10, 20, 30, 40}, 25, 17.5},
		{"p0_is_min", []float64{5, 1, 9}, 0, 1},
		{"p100_is_max", []float64{5, 1, 9}, 100, 9},
		{"clamped_above", []float64{5, 1, 9}, 150, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.values, tt.p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Percentile(%v, %.0f) = %v, want %v", tt.values, tt.p, got, tt.want)
			}
		})
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Percentile(values, 50)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input mutated: %v", values)
	}
}

func TestSummarizePercentiles(t *testing.T) {
	values := make([]float64, 101)
	for i := range values {
		values[i] = float64(i)
	}
	s := SummarizePercentiles(values)
	if s.P10 != 10 || s.P25 != 25 || s.P50 != 50 || s.P75 != 75 || s.P90 != 90 {
		t.Errorf("summary = %+v", s)
	}
}
