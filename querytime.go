// Package querytime measures and compares the latency of signed distance queries
// answered by interchangeable backends over a planar slice of a sampling domain.
//
// A sweep projects an image grid onto a [Quad], queries every registered [Backend]
// for each pixel under a [Timer], accumulates latencies in a per-backend [Histogram]
// keyed by normalized distance to the surface and tracks the numerical disagreement
// between backends with a [DivergenceTracker]. The timing grids produced can then be
// exported as heatmaps with package heatmap.
package querytime

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

const (
	// DefaultBucketCount is the number of normalized distance buckets of a [Histogram].
	DefaultBucketCount = 40
	// DefaultDivergenceThreshold is the maximum absolute difference between backends
	// tolerated before a sweep is terminated.
	DefaultDivergenceThreshold = 1e-5
	// DefaultSliceZ is the depth of the sampling plane used by the querytime tool.
	DefaultSliceZ = 0.163
)

var (
	// ErrInvalidConfig is returned by [Sweep] when the configuration can not produce a sweep.
	ErrInvalidConfig = errors.New("invalid sweep configuration")
	errNoBackends    = errors.New("no backends")
)

// Backend answers signed distance queries. Negative distances are inside the surface.
// Implementations must be safe for repeated read-only queries.
type Backend interface {
	Distance(p ms3.Vec) float32
}

// SampleAreaer is implemented by backends that declare the domain over which they
// were built, usually the reference backend of a sweep.
type SampleAreaer interface {
	SampleArea() ms3.Box
}

// NamedBackend pairs a [Backend] with the name used to report it.
type NamedBackend struct {
	Name    string
	Backend Backend
}

// Named is shorthand for creating a [NamedBackend].
func Named(name string, b Backend) NamedBackend {
	return NamedBackend{Name: name, Backend: b}
}

func clampf(v, Min, Max float32) float32 {
	if v < Min {
		return Min
	} else if v > Max {
		return Max
	}
	return v
}

func mixVec(a, b ms3.Vec, t float32) ms3.Vec {
	return ms3.Add(ms3.Scale(1-t, a), ms3.Scale(t, b))
}

func absf(a float32) float32 {
	return math32.Abs(a)
}
