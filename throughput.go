package querytime

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/soypat/geometry/ms3"
)

// ThroughputConfig configures a [Throughput] benchmark.
type ThroughputConfig struct {
	// Area is the box uniformly sampled for query points.
	Area ms3.Box
	// Samples is the amount of random query points.
	Samples int
	// Seed seeds the sample generator so runs are reproducible.
	Seed int64
	// Timer measures the batch latency. If nil a [WallTimer] is used.
	Timer Timer
}

// ThroughputResult is the throughput of one backend.
type ThroughputResult struct {
	Name string
	// MicrosPerQuery is the mean latency over all samples.
	MicrosPerQuery float32
	// RMSE is the root mean square difference to the reference backend's distances.
	RMSE float64
}

// Throughput times every backend over the same batch of random points of the area and
// reports each backend's error against the first backend. Unlike [Sweep] points are
// queried in batch so per-query timer overhead is excluded.
func Throughput(cfg ThroughputConfig, backends []NamedBackend) ([]ThroughputResult, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errNoBackends)
	} else if cfg.Samples < 1 {
		return nil, fmt.Errorf("%w: need at least one sample, got %d", ErrInvalidConfig, cfg.Samples)
	}
	timer := cfg.Timer
	if timer == nil {
		timer = &WallTimer{}
	}
	// Shrink slightly so samples stay strictly inside the area.
	size := ms3.AddScalar(-1e-5, cfg.Area.Size())
	center := cfg.Area.Center()
	rng := rand.New(rand.NewSource(cfg.Seed))
	samples := make([]ms3.Vec, cfg.Samples)
	for i := range samples {
		u := ms3.Vec{X: rng.Float32() - 0.5, Y: rng.Float32() - 0.5, Z: rng.Float32() - 0.5}
		samples[i] = ms3.Add(center, ms3.MulElem(u, size))
	}

	var ref []float32
	dist := make([]float32, len(samples))
	results := make([]ThroughputResult, len(backends))
	for k, b := range backends {
		timer.Start()
		for i, p := range samples {
			dist[i] = b.Backend.Distance(p)
		}
		elapsed := timer.ElapsedMicroseconds()
		results[k] = ThroughputResult{Name: b.Name, MicrosPerQuery: elapsed / float32(len(samples))}
		if k == 0 {
			ref = append([]float32(nil), dist...)
			continue
		}
		var acc float64
		for i, d := range dist {
			diff := float64(d - ref[i])
			acc += diff * diff
		}
		results[k].RMSE = math.Sqrt(acc / float64(len(dist)))
		Logger().Debug("throughput", slog.String("backend", b.Name),
			slog.Float64("microsPerQuery", float64(results[k].MicrosPerQuery)),
			slog.Float64("rmse", results[k].RMSE))
	}
	return results, nil
}
