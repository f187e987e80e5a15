package querytime

import "github.com/chewxy/math32"

// DivergenceTracker tracks the running maximum absolute difference between
// backend outputs. The maximum never decreases. NaN outputs count as infinite divergence.
type DivergenceTracker struct {
	max float32
}

// Observe records the disagreement between two backend outputs for the same query.
func (d *DivergenceTracker) Observe(a, b float32) {
	diff := absf(a - b)
	if math32.IsNaN(diff) {
		diff = math32.Inf(1)
	}
	if diff > d.max {
		d.max = diff
	}
}

// ObserveAll records the largest pairwise disagreement between values,
// which all answer the same query.
func (d *DivergenceTracker) ObserveAll(values []float32) {
	if len(values) < 2 {
		return
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if math32.IsNaN(v) {
			d.max = math32.Inf(1)
			return
		}
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}
	d.Observe(lo, hi)
}

// Max returns the largest disagreement observed so far.
func (d *DivergenceTracker) Max() float32 { return d.max }

// Exceeds reports whether the observed disagreement is strictly above threshold.
func (d *DivergenceTracker) Exceeds(threshold float32) bool { return d.max > threshold }
