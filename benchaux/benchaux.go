// Package benchaux wires the querytime packages into a complete benchmark run: it loads
// a reference field and a mesh, sweeps the configured backends and writes heatmaps,
// reports, plots and run records.
package benchaux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"github.com/soypat/querytime"
	"github.com/soypat/querytime/heatmap"
	"github.com/soypat/querytime/meshdist"
	"github.com/soypat/querytime/store"
)

// ReferenceName is the name the reference backend is reported under.
const ReferenceName = "reference"

const (
	legendWidth  = 256
	legendHeight = 48
)

// DomainRange is the resolved color interval of one color domain.
type DomainRange struct {
	Name   string
	Lo, Hi float32
}

// Report is everything produced by a benchmark run.
type Report struct {
	// ID is set when the run was saved to a database.
	ID     uuid.UUID
	Sweep  *querytime.Result
	Stats  []BackendStats
	Ranges []DomainRange
	// Images lists written image names in order.
	Images     []string
	Throughput []querytime.ThroughputResult
}

// Run loads the reference field at exactPath and the mesh at modelPath and benchmarks
// the configured backends over a width×width grid. Images are written as PNG files to cfg.OutputDir.
func Run(cfg Config, exactPath, modelPath string, width int) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.logf()
	watch := stopwatch()
	ref, err := LoadReference(exactPath)
	if err != nil {
		return nil, fmt.Errorf("loading reference field: %w", err)
	}
	log("loaded reference field", exactPath, "in", watch())
	watch = stopwatch()
	mesh, err := meshdist.LoadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}
	log("loaded", mesh.NumTriangles(), "triangles from", modelPath, "in", watch())
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, err
		}
	}
	rep, err := Bench(cfg, ref, mesh, width, heatmap.PNGSink{Dir: cfg.OutputDir})
	if err != nil {
		return nil, err
	}
	if cfg.PlotFile != "" {
		if err := WritePlot(cfg.outPath(cfg.PlotFile), rep); err != nil {
			return rep, fmt.Errorf("writing plot: %w", err)
		}
	}
	if cfg.HTMLFile != "" {
		if err := writeHTMLFile(cfg.outPath(cfg.HTMLFile), rep); err != nil {
			return rep, fmt.Errorf("writing HTML report: %w", err)
		}
	}
	if cfg.Database != "" {
		err = saveRun(cfg, rep, filepath.Base(exactPath), filepath.Base(modelPath))
		if err != nil {
			return rep, fmt.Errorf("saving run: %w", err)
		}
		log("saved run", rep.ID.String(), "to", cfg.Database)
	}
	return rep, nil
}

// Bench sweeps the reference followed by the configured backends built over mesh and
// writes heatmaps to sink. The mesh is normalized in place when cfg.Normalize is set.
func Bench(cfg Config, ref Reference, mesh *meshdist.Mesh, width int, sink heatmap.ImageSink) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ref == nil || mesh == nil || sink == nil {
		return nil, errors.New("Bench requires reference, mesh and sink")
	}
	log := cfg.logf()
	slogger := querytime.Logger()
	if cfg.Normalize {
		if err := mesh.Normalize(); err != nil {
			return nil, err
		}
	}
	backends := []querytime.NamedBackend{querytime.Named(ReferenceName, ref)}
	for _, name := range cfg.Backends {
		watch := stopwatch()
		b, err := NewBackend(name, mesh)
		if err != nil {
			return nil, fmt.Errorf("building %s backend: %w", name, err)
		}
		log("built", name, "backend in", watch())
		backends = append(backends, querytime.Named(name, b))
	}

	area := ref.SampleArea()
	watch := stopwatch()
	res, err := querytime.Sweep(querytime.SweepConfig{
		Quad:                querytime.NewQuad(area, cfg.SliceZ),
		Width:               width,
		Diagonal:            area.Diagonal(),
		BucketCount:         cfg.BucketCount,
		DivergenceThreshold: cfg.DivergenceThreshold,
		Repeat:              cfg.Repeat,
		Timer:               cfg.Timer,
	}, backends)
	if err != nil {
		return nil, err
	}
	log("swept", res.RowsCompleted, "rows of", width, "in", watch())
	slogger.Info("sweep done", slog.Float64("maxDivergence", float64(res.MaxDivergence)),
		slog.Int("rows", res.RowsCompleted), slog.Bool("aborted", res.Aborted))

	rep := &Report{Sweep: res, Stats: ComputeStats(res)}
	observedLo, observedHi := float32(math32.Inf(1)), float32(math32.Inf(-1))
	for _, b := range res.Backends {
		lo, hi := b.Timing.Range(res.RowsCompleted)
		slogger.Info("time interval", slog.String("backend", b.Name),
			slog.Float64("minMicros", float64(lo)), slog.Float64("maxMicros", float64(hi)))
		observedLo = math32.Min(observedLo, lo)
		observedHi = math32.Max(observedHi, hi)
	}

	interp, _ := heatmap.ParseInterpolation(cfg.Interpolation) // Validated above.
	ramp := heatmap.DefaultRamp()
	ramp.Interp = interp
	exp := &heatmap.Exporter{Ramp: ramp, Sink: sink}
	written := func(name string) { rep.Images = append(rep.Images, name) }

	watch = stopwatch()
	for di, d := range cfg.ColorDomains {
		lo, hi := d.Resolve(observedLo, observedHi)
		if !(hi > lo) || math32.IsInf(hi, 0) || math32.IsInf(lo, 0) {
			// Constant latency over the whole grid or no rows swept.
			slogger.Warn("degenerate color domain widened", slog.String("domain", d.Name),
				slog.Float64("lo", float64(lo)), slog.Float64("hi", float64(hi)))
			if math32.IsInf(lo, 0) || math32.IsNaN(lo) {
				lo = 0
			}
			hi = lo + 1
		}
		rep.Ranges = append(rep.Ranges, DomainRange{Name: d.Name, Lo: lo, Hi: hi})
		for _, b := range res.Backends {
			name := heatmap.ImageName(cfg.Prefix+d.Name, di, b.Name)
			if err := exp.Export(name, width, b.Timing.Data, lo, hi); err != nil {
				return rep, err
			}
			written(name)
		}
		if cfg.Legend {
			name := fmt.Sprintf("%s%s%d-legend.png", cfg.Prefix, d.Name, di)
			if err := exp.ExportLegend(name, lo, hi, "us", legendWidth, legendHeight); err != nil {
				return rep, err
			}
			written(name)
		}
	}
	if cfg.DistanceImage {
		name := cfg.Prefix + "distance.png"
		refDist := res.Backends[0].Distance.Data
		if err := exp.ExportDistances(name, width, refDist, heatmap.DistanceColor(area.Diagonal()/3)); err != nil {
			return rep, err
		}
		written(name)
	}
	if cfg.ErrorImages {
		for _, b := range res.Backends[1:] {
			errGrid, maxErr := absDiff(res.Backends[0].Distance, b.Distance)
			name := cfg.Prefix + "error-" + b.Name + ".png"
			if err := exp.Export(name, width, errGrid.Data, 0, math32.Max(maxErr, minErrorDomain)); err != nil {
				return rep, err
			}
			written(name)
		}
	}
	log("wrote", len(rep.Images), "images in", watch())

	if cfg.ThroughputSamples > 0 {
		watch = stopwatch()
		rep.Throughput, err = querytime.Throughput(querytime.ThroughputConfig{
			Area:    area,
			Samples: cfg.ThroughputSamples,
			Seed:    1,
			Timer:   cfg.Timer,
		}, backends)
		if err != nil {
			return rep, err
		}
		log("throughput benchmark took", watch())
	}
	if !cfg.Silent {
		if err := WriteReport(cfg.output(), rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// minErrorDomain keeps error heatmaps of exact backends non degenerate.
const minErrorDomain = 1e-6

// absDiff returns the absolute difference of a and b and its largest finite value.
// NaN differences are stored as +Inf.
func absDiff(a, b querytime.Grid) (querytime.Grid, float32) {
	g := querytime.NewGrid(a.Width)
	var maxErr float32
	for k := range g.Data {
		e := math32.Abs(a.Data[k] - b.Data[k])
		if math32.IsNaN(e) {
			e = math32.Inf(1)
		}
		g.Data[k] = e
		if !math32.IsInf(e, 0) {
			maxErr = math32.Max(maxErr, e)
		}
	}
	return g, maxErr
}

func saveRun(cfg Config, rep *Report, reference, model string) error {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	run := &store.Run{
		CreatedAt:     time.Now(),
		Model:         model,
		Reference:     reference,
		Width:         rep.Sweep.Width,
		RowsCompleted: rep.Sweep.RowsCompleted,
		Aborted:       rep.Sweep.Aborted,
		MaxDivergence: float64(rep.Sweep.MaxDivergence),
		ConfigJSON:    string(cfgJSON),
	}
	for _, s := range rep.Stats {
		run.Backends = append(run.Backends, store.Backend{
			Name:       s.Name,
			Samples:    s.Samples,
			MinMicros:  s.Min,
			MaxMicros:  s.Max,
			MeanMicros: s.Mean,
		})
	}
	if err := db.SaveRun(context.Background(), run); err != nil {
		return err
	}
	rep.ID = run.ID
	return nil
}

func (c *Config) logf() func(args ...any) {
	w := c.output()
	return func(args ...any) {
		if !c.Silent {
			fmt.Fprintln(w, args...)
		}
	}
}

func (c *Config) output() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *Config) outPath(name string) string {
	if filepath.IsAbs(name) || c.OutputDir == "" {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
