package accum

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes one measurement series: the same shape serves loss-rate
// and delay series alike, since both are plain float64 distributions.
type Stats struct {
	Count int
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
}

// ComputeStats summarizes values, computing percentiles with gonum/stat
// rather than a hand-rolled quantile function. Returns the zero Stats
// for an empty series.
func ComputeStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Stats{
		Count: len(values),
		Mean:  stat.Mean(values, nil),
		P50:   stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P95:   stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		P99:   stat.Quantile(0.99, stat.LinInterp, sorted, nil),
	}
}

// percentiles computes a custom set of percentile points from already
// gathered samples, used for link ground-truth delay stats where the
// output keys (e.g. "50", "95", "99") are caller-supplied rather than this
// package's fixed Stats shape.
func percentiles(values []float64, points []int) map[int]float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := make(map[int]float64, len(points))
	for _, p := range points {
		out[p] = stat.Quantile(float64(p)/100, stat.LinInterp, sorted, nil)
	}
	return out
}
