package benchaux

import (
	"fmt"
	"sort"

	"github.com/soypat/querytime"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BackendStats summarizes the per-query latencies of one backend in microseconds.
type BackendStats struct {
	Name    string
	Samples int
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64
	Median  float64
	P95     float64
}

func (s BackendStats) String() string {
	return fmt.Sprintf("%s: n=%d min=%.3gµs max=%.3gµs mean=%.3gµs σ=%.3gµs median=%.3gµs p95=%.3gµs",
		s.Name, s.Samples, s.Min, s.Max, s.Mean, s.StdDev, s.Median, s.P95)
}

// ComputeStats returns latency statistics of every backend over the completed rows of res.
func ComputeStats(res *querytime.Result) []BackendStats {
	n := res.RowsCompleted * res.Width
	out := make([]BackendStats, len(res.Backends))
	x := make([]float64, n)
	for k, b := range res.Backends {
		out[k].Name = b.Name
		out[k].Samples = n
		if n == 0 {
			continue
		}
		for i, v := range b.Timing.Data[:n] {
			x[i] = float64(v)
		}
		sort.Float64s(x)
		out[k].Min = floats.Min(x)
		out[k].Max = floats.Max(x)
		out[k].Mean, out[k].StdDev = stat.MeanStdDev(x, nil)
		out[k].Median = stat.Quantile(0.5, stat.Empirical, x, nil)
		out[k].P95 = stat.Quantile(0.95, stat.Empirical, x, nil)
	}
	return out
}
