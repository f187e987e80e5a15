package querytime

import (
	"fmt"
	"log/slog"

	"github.com/chewxy/math32"
)

// SweepConfig configures a [Sweep].
type SweepConfig struct {
	// Quad is the slice of the domain sampled by the image grid.
	Quad Quad
	// Width is the side length of the square image grid in pixels.
	Width int
	// Diagonal is the length of the domain diagonal used to normalize distances
	// for histogram bucketing.
	Diagonal float32
	// BucketCount is the number of histogram buckets. Zero selects [DefaultBucketCount].
	BucketCount int
	// DivergenceThreshold stops the sweep after the row in which backends disagreed by more
	// than this value. Zero selects [DefaultDivergenceThreshold]. Negative values disable the check.
	DivergenceThreshold float32
	// Repeat is how many times each query is repeated to average its latency. Zero selects 1.
	Repeat int
	// Timer measures query latency. If nil a [WallTimer] is used.
	Timer Timer
}

// Grid is a dense row-major width×width scalar field. Data[j*Width+i] holds pixel (i,j).
type Grid struct {
	Width int
	Data  []float32
}

// NewGrid returns a zeroed width×width grid.
func NewGrid(width int) Grid {
	return Grid{Width: width, Data: make([]float32, width*width)}
}

// At returns the value of pixel (i, j).
func (g Grid) At(i, j int) float32 { return g.Data[j*g.Width+i] }

// Set sets the value of pixel (i, j).
func (g Grid) Set(i, j int, v float32) { g.Data[j*g.Width+i] = v }

// Range returns the minimum and maximum values of the first rows of the grid.
// Unvisited rows of an aborted sweep should be excluded by passing rows < Width.
func (g Grid) Range(rows int) (lo, hi float32) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, v := range g.Data[:rows*g.Width] {
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}
	return lo, hi
}

// BackendResult holds everything a sweep measured for one backend.
type BackendResult struct {
	Name string
	// Timing holds per-pixel query latency in microseconds.
	Timing Grid
	// Distance holds the distance returned for each pixel.
	Distance Grid
	// Histogram holds latency accumulated per normalized distance bucket.
	Histogram *Histogram
}

// Result is the outcome of a [Sweep]. Backends are in registration order, the
// first one being the reference.
type Result struct {
	Width    int
	Backends []BackendResult
	// RowsCompleted is the number of image rows sampled. Equal to Width unless Aborted.
	RowsCompleted int
	// Aborted is set when the sweep stopped early because backends diverged.
	Aborted bool
	// MaxDivergence is the maximum absolute difference observed between backends.
	MaxDivergence float32
}

// Backend returns the result of the backend registered with name.
func (r *Result) Backend(name string) (BackendResult, bool) {
	for _, b := range r.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendResult{}, false
}

// Sweep samples every pixel of the configured grid, querying each backend in order for
// the same point and timing each query. The first backend is the reference: its distance
// selects the histogram bucket shared by all backends for that sample. This conflates
// proximity to the surface with the reference's own (possibly wrong) answer.
//
// Divergence is checked once per completed row. When exceeded the sweep stops and the
// remaining rows of every grid are left zeroed. Divergence is not an error.
//
// Sweep runs on the calling goroutine and never in parallel so latencies are uncontended.
func Sweep(cfg SweepConfig, backends []NamedBackend) (*Result, error) {
	if err := cfg.validate(backends); err != nil {
		return nil, err
	}
	bucketCount := cfg.BucketCount
	if bucketCount == 0 {
		bucketCount = DefaultBucketCount
	}
	threshold := cfg.DivergenceThreshold
	if threshold == 0 {
		threshold = DefaultDivergenceThreshold
	}
	repeat := max(cfg.Repeat, 1)
	timer := cfg.Timer
	if timer == nil {
		timer = &WallTimer{}
	}
	width := cfg.Width
	invRepeat := 1 / float32(repeat)
	log := Logger()

	result := &Result{
		Width:    width,
		Backends: make([]BackendResult, len(backends)),
	}
	for k, b := range backends {
		result.Backends[k] = BackendResult{
			Name:      b.Name,
			Timing:    NewGrid(width),
			Distance:  NewGrid(width),
			Histogram: NewHistogram(bucketCount),
		}
	}
	var div DivergenceTracker
	dists := make([]float32, len(backends))
	for j := 0; j < width; j++ {
		for i := 0; i < width; i++ {
			pos := cfg.Quad.Project(i, j, width)
			bucket := -1
			for k, b := range backends {
				var d float32
				timer.Start()
				for r := 0; r < repeat; r++ {
					d = b.Backend.Distance(pos)
				}
				elapsed := timer.ElapsedMicroseconds() * invRepeat
				br := &result.Backends[k]
				br.Timing.Set(i, j, elapsed)
				br.Distance.Set(i, j, d)
				dists[k] = d
				if k == 0 {
					if idx, ok := BucketIndex(d, cfg.Diagonal, bucketCount); ok {
						bucket = idx
					}
				}
				if bucket >= 0 {
					br.Histogram.Record(bucket, elapsed)
				}
			}
			div.ObserveAll(dists)
		}
		result.RowsCompleted = j + 1
		log.Debug("sweep row done", slog.Int("row", j), slog.Float64("maxDivergence", float64(div.Max())))
		if threshold > 0 && div.Exceeds(threshold) {
			result.Aborted = j+1 < width
			break
		}
	}
	result.MaxDivergence = div.Max()
	if result.Aborted {
		log.Warn("sweep terminated early, backends diverged",
			slog.Int("rows", result.RowsCompleted),
			slog.Int("width", width),
			slog.Float64("maxDivergence", float64(result.MaxDivergence)))
	}
	return result, nil
}

func (cfg SweepConfig) validate(backends []NamedBackend) error {
	switch {
	case len(backends) == 0:
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errNoBackends)
	case cfg.Width < 1:
		return fmt.Errorf("%w: image width must be positive, got %d", ErrInvalidConfig, cfg.Width)
	case cfg.BucketCount != 0 && cfg.BucketCount < 2:
		return fmt.Errorf("%w: need at least 2 buckets, got %d", ErrInvalidConfig, cfg.BucketCount)
	case !(cfg.Diagonal > 0) || math32.IsInf(cfg.Diagonal, 1):
		return fmt.Errorf("%w: domain diagonal must be positive and finite, got %g", ErrInvalidConfig, cfg.Diagonal)
	case cfg.Repeat < 0:
		return fmt.Errorf("%w: negative repeat count %d", ErrInvalidConfig, cfg.Repeat)
	}
	for i, b := range backends {
		if b.Backend == nil {
			return fmt.Errorf("%w: nil backend %q at index %d", ErrInvalidConfig, b.Name, i)
		}
	}
	return nil
}
