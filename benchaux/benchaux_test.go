package benchaux_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/querytime"
	"github.com/soypat/querytime/benchaux"
	"github.com/soypat/querytime/heatmap"
	"github.com/soypat/querytime/meshdist"
	"github.com/soypat/querytime/sdffield"
	"github.com/soypat/querytime/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTimer struct {
	elapsed float32
}

func (ft *fixedTimer) Start()                       {}
func (ft *fixedTimer) ElapsedMicroseconds() float32 { return ft.elapsed }

// normalizedCube returns a closed cube spanning [-1, 1] on every axis, each face
// split into an n*n grid of quads.
func normalizedCube(t *testing.T, n int) *meshdist.Mesh {
	t.Helper()
	var tris []ms3.Triangle
	face := func(origin, u, v ms3.Vec) {
		at := func(i, j int) ms3.Vec {
			return ms3.Add(origin, ms3.Add(ms3.Scale(float32(i)/float32(n), u), ms3.Scale(float32(j)/float32(n), v)))
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a, b, c, d := at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1)
				tris = append(tris, ms3.Triangle{a, b, c}, ms3.Triangle{a, c, d})
			}
		}
	}
	const h = 1
	face(ms3.Vec{X: -h, Y: -h, Z: -h}, ms3.Vec{Z: 2 * h}, ms3.Vec{Y: 2 * h})
	face(ms3.Vec{X: h, Y: -h, Z: -h}, ms3.Vec{Y: 2 * h}, ms3.Vec{Z: 2 * h})
	face(ms3.Vec{X: -h, Y: -h, Z: -h}, ms3.Vec{X: 2 * h}, ms3.Vec{Z: 2 * h})
	face(ms3.Vec{X: -h, Y: h, Z: -h}, ms3.Vec{Z: 2 * h}, ms3.Vec{X: 2 * h})
	face(ms3.Vec{X: -h, Y: -h, Z: -h}, ms3.Vec{Y: 2 * h}, ms3.Vec{X: 2 * h})
	face(ms3.Vec{X: -h, Y: -h, Z: h}, ms3.Vec{X: 2 * h}, ms3.Vec{Y: 2 * h})
	m, err := meshdist.FromTriangles(tris)
	require.NoError(t, err)
	return m
}

func testConfig() benchaux.Config {
	cfg := benchaux.DefaultConfig()
	cfg.Backends = []string{benchaux.BackendBVH, benchaux.BackendBruteForce}
	cfg.ColorDomains = []benchaux.ColorDomain{
		{Name: "image", Mode: benchaux.DomainObserved},
		{Name: "half", Mode: benchaux.DomainFraction, Fraction: 0.5},
		{Name: "fixed", Mode: benchaux.DomainFixed, Min: 0, Max: 20},
	}
	cfg.DivergenceThreshold = -1
	cfg.Timer = &fixedTimer{elapsed: 4}
	cfg.Silent = true
	return cfg
}

func TestBench(t *testing.T) {
	const width = 8
	mesh := normalizedCube(t, 2)
	ref, err := sdffield.Build(mesh, sdffield.Config{})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.DistanceImage = true
	cfg.ErrorImages = true
	cfg.Legend = true
	cfg.ThroughputSamples = 50
	var sink heatmap.MemorySink
	rep, err := benchaux.Bench(cfg, ref, mesh, width, &sink)
	require.NoError(t, err)

	res := rep.Sweep
	assert.Equal(t, width, res.RowsCompleted)
	assert.False(t, res.Aborted)
	assert.Less(t, res.MaxDivergence, float32(1e-4))
	require.Len(t, res.Backends, 3)
	assert.Equal(t, benchaux.ReferenceName, res.Backends[0].Name)

	require.Len(t, rep.Stats, 3)
	for _, s := range rep.Stats {
		assert.Equal(t, width*width, s.Samples)
		assert.InDelta(t, 4, s.Mean, 1e-9)
		assert.InDelta(t, 0, s.StdDev, 1e-9)
	}

	require.Len(t, rep.Ranges, 3)
	assert.Equal(t, benchaux.DomainRange{Name: "image", Lo: 4, Hi: 5}, rep.Ranges[0])
	assert.Equal(t, benchaux.DomainRange{Name: "half", Lo: 0, Hi: 2}, rep.Ranges[1])
	assert.Equal(t, benchaux.DomainRange{Name: "fixed", Lo: 0, Hi: 20}, rep.Ranges[2])

	for di, d := range cfg.ColorDomains {
		for _, b := range res.Backends {
			name := heatmap.ImageName(d.Name, di, b.Name)
			img, ok := sink.Image(name)
			require.True(t, ok, name)
			assert.Equal(t, width, img.Width)
			assert.Equal(t, width, img.Height)
			assert.Len(t, img.Pix, width*width*heatmap.Channels)
		}
	}
	names := sink.Names()
	assert.Contains(t, names, "distance.png")
	assert.Contains(t, names, "error-bvh.png")
	assert.Contains(t, names, "error-bruteforce.png")
	assert.Contains(t, names, "image0-legend.png")
	assert.Equal(t, rep.Images, names)

	require.Len(t, rep.Throughput, 3)
	for _, tr := range rep.Throughput[1:] {
		assert.Less(t, tr.RMSE, 1e-4)
	}
}

func TestBenchDiverged(t *testing.T) {
	mesh := normalizedCube(t, 1)
	ref, err := sdffield.Build(mesh, sdffield.Config{})
	require.NoError(t, err)
	// A reference shifted by a whole unit disagrees with the mesh backends on the first row.
	shifted := shiftedReference{Reference: ref, offset: 1}
	cfg := testConfig()
	cfg.DivergenceThreshold = 1e-3
	cfg.Backends = []string{benchaux.BackendBVH}
	var sink heatmap.MemorySink
	rep, err := benchaux.Bench(cfg, shifted, mesh, 6, &sink)
	require.NoError(t, err)
	assert.True(t, rep.Sweep.Aborted)
	assert.Equal(t, 1, rep.Sweep.RowsCompleted)
	assert.Equal(t, 6, rep.Stats[0].Samples)
	assert.InDelta(t, 1, rep.Sweep.MaxDivergence, 1e-4)
}

type shiftedReference struct {
	benchaux.Reference
	offset float32
}

func (s shiftedReference) Distance(p ms3.Vec) float32 {
	return s.Reference.Distance(p) + s.offset
}

// nanReference fails to evaluate the half space x > 0.
type nanReference struct {
	benchaux.Reference
}

func (n nanReference) Distance(p ms3.Vec) float32 {
	if p.X > 0 {
		return math32.NaN()
	}
	return n.Reference.Distance(p)
}

func TestBenchNaNReference(t *testing.T) {
	const width = 6
	mesh := normalizedCube(t, 1)
	ref, err := sdffield.Build(mesh, sdffield.Config{})
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Backends = []string{benchaux.BackendBVH}
	cfg.DistanceImage = true
	cfg.ErrorImages = true
	cfg.ThroughputSamples = 0
	var sink heatmap.MemorySink
	rep, err := benchaux.Bench(cfg, nanReference{Reference: ref}, mesh, width, &sink)
	require.NoError(t, err)
	assert.Equal(t, width, rep.Sweep.RowsCompleted)
	assert.True(t, math32.IsInf(rep.Sweep.MaxDivergence, 1))

	img, ok := sink.Image("error-bvh.png")
	require.True(t, ok)
	require.Len(t, img.Pix, width*width*heatmap.Channels)
	top := heatmap.DefaultRamp().ColorAt(1, 0, 1).RGBA()
	var failed int
	for k, d := range rep.Sweep.Backends[0].Distance.Data {
		if !math32.IsNaN(d) {
			continue
		}
		failed++
		px := img.Pix[k*heatmap.Channels : (k+1)*heatmap.Channels]
		assert.Equal(t, []byte{top.R, top.G, top.B, top.A}, px, "pixel %d", k)
	}
	assert.Positive(t, failed)
	assert.Contains(t, sink.Names(), "distance.png")
}

func TestBenchDegenerateDomain(t *testing.T) {
	mesh := normalizedCube(t, 1)
	ref, err := sdffield.Build(mesh, sdffield.Config{})
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Backends = []string{benchaux.BackendBVH}
	// A zero latency clock collapses every color domain but the fixed one.
	cfg.Timer = &fixedTimer{elapsed: 0}
	var sink heatmap.MemorySink
	rep, err := benchaux.Bench(cfg, ref, mesh, 4, &sink)
	require.NoError(t, err)
	require.Len(t, rep.Ranges, 3)
	assert.Equal(t, benchaux.DomainRange{Name: "image", Lo: 0, Hi: 1}, rep.Ranges[0])
	assert.Equal(t, benchaux.DomainRange{Name: "half", Lo: 0, Hi: 1}, rep.Ranges[1])
	assert.Equal(t, benchaux.DomainRange{Name: "fixed", Lo: 0, Hi: 20}, rep.Ranges[2])
	for di, d := range cfg.ColorDomains {
		_, ok := sink.Image(heatmap.ImageName(d.Name, di, benchaux.BackendBVH))
		assert.True(t, ok, d.Name)
	}
}

func TestWriteReport(t *testing.T) {
	mesh := normalizedCube(t, 1)
	ref, err := sdffield.Build(mesh, sdffield.Config{})
	require.NoError(t, err)
	cfg := testConfig()
	cfg.ThroughputSamples = 10
	rep, err := benchaux.Bench(cfg, ref, mesh, 4, &heatmap.MemorySink{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, benchaux.WriteReport(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "sampled 4 of 4 rows")
	assert.Contains(t, out, "bvh histogram:")
	assert.Contains(t, out, "bruteforce throughput")
	assert.NotContains(t, out, "no data")

	buf.Reset()
	require.NoError(t, benchaux.WriteHTML(&buf, rep))
	assert.Contains(t, buf.String(), "Mean latency by distance to surface")

	p, err := benchaux.NewHistogramPlot(rep)
	require.NoError(t, err)
	assert.Equal(t, "Mean latency (µs)", p.Y.Label.Text)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	mesh := normalizedCube(t, 2)
	field, err := sdffield.Build(mesh, sdffield.Config{})
	require.NoError(t, err)
	fieldPath := filepath.Join(dir, "cube.qtof")
	require.NoError(t, field.WriteFile(fieldPath))

	// The model is stored at a different scale and normalized back on load.
	scaled := normalizedCube(t, 2)
	scaled.Apply(func(v ms3.Vec) ms3.Vec { return ms3.Add(ms3.Scale(3, v), ms3.Vec{X: 5}) })
	modelPath := filepath.Join(dir, "cube.stl")
	fp, err := os.Create(modelPath)
	require.NoError(t, err)
	_, err = meshdist.WriteBinarySTL(fp, scaled.Triangles())
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	cfg := testConfig()
	cfg.DivergenceThreshold = 1e-4
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Prefix = "cube-"
	cfg.PlotFile = "histogram.png"
	cfg.HTMLFile = "report.html"
	cfg.Database = filepath.Join(dir, "runs.db")
	rep, err := benchaux.Run(cfg, fieldPath, modelPath, 6)
	require.NoError(t, err)
	assert.False(t, rep.Sweep.Aborted)

	for _, name := range append(rep.Images, "histogram.png", "report.html") {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}
	assert.True(t, strings.HasPrefix(rep.Images[0], "cube-image0-"))

	db, err := store.Open(cfg.Database)
	require.NoError(t, err)
	defer db.Close()
	run, err := db.Run(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, "cube.stl", run.Model)
	assert.Equal(t, "cube.qtof", run.Reference)
	assert.Equal(t, 6, run.Width)
	require.Len(t, run.Backends, 3)
	assert.Equal(t, benchaux.ReferenceName, run.Backends[0].Name)
	assert.Contains(t, run.ConfigJSON, `"backends":["bvh","bruteforce"]`)

	_, err = benchaux.Run(cfg, filepath.Join(dir, "cube.sdf"), modelPath, 6)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	cfg, err := benchaux.LoadConfig(write("ok.json", `{"repeat": 3, "backends": ["model3d"], "interpolation": "hsv"}`))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Repeat)
	assert.Equal(t, []string{benchaux.BackendModel3D}, cfg.Backends)
	assert.Equal(t, float32(querytime.DefaultSliceZ), cfg.SliceZ)
	assert.Equal(t, querytime.DefaultBucketCount, cfg.BucketCount)
	assert.True(t, cfg.Normalize)

	_, err = benchaux.LoadConfig(write("bad.yaml", `{}`))
	assert.ErrorContains(t, err, ".json extension")

	_, err = benchaux.LoadConfig(write("unknown.json", `{"backends": ["octree"]}`))
	assert.ErrorIs(t, err, benchaux.ErrUnknownBackend)
	assert.ErrorIs(t, err, querytime.ErrInvalidConfig)

	_, err = benchaux.LoadConfig(write("domain.json", `{"color_domains": [{"name": "x", "mode": "fixed", "min": 2, "max": 1}]}`))
	assert.ErrorIs(t, err, querytime.ErrInvalidConfig)

	_, err = benchaux.LoadConfig(write("syntax.json", `{"repeat": }`))
	assert.Error(t, err)

	_, err = benchaux.LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestColorDomainResolve(t *testing.T) {
	lo, hi := benchaux.ColorDomain{Mode: benchaux.DomainObserved}.Resolve(1, 9)
	assert.Equal(t, [2]float32{1, 9}, [2]float32{lo, hi})
	lo, hi = benchaux.ColorDomain{Mode: benchaux.DomainFraction, Fraction: 0.25}.Resolve(1, 8)
	assert.Equal(t, [2]float32{0, 2}, [2]float32{lo, hi})
	lo, hi = benchaux.ColorDomain{Mode: benchaux.DomainFixed, Min: 3, Max: 7}.Resolve(1, 8)
	assert.Equal(t, [2]float32{3, 7}, [2]float32{lo, hi})
}

func TestNewBackend(t *testing.T) {
	mesh := normalizedCube(t, 1)
	for _, name := range benchaux.BackendNames() {
		b, err := benchaux.NewBackend(name, mesh)
		require.NoError(t, err, name)
		assert.InDelta(t, 1, abs(b.Distance(ms3.Vec{X: 2})), 1e-4, name)
	}
	_, err := benchaux.NewBackend("gpu", mesh)
	assert.ErrorIs(t, err, benchaux.ErrUnknownBackend)
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestLoadShapeReference(t *testing.T) {
	sdfxSphere, err := benchaux.LoadReference("sdfx:sphere")
	require.NoError(t, err)
	sphere, err := benchaux.LoadReference("analytic:sphere")
	require.NoError(t, err)
	sdfxBox, err := benchaux.LoadReference("sdfx:box")
	require.NoError(t, err)
	box, err := benchaux.LoadReference("analytic:box")
	require.NoError(t, err)

	const m = benchaux.ShapeMargin
	area := sphere.SampleArea()
	assert.InDelta(t, -1-m, area.Min.Y, 1e-6)
	assert.InDelta(t, 1+m, area.Max.Z, 1e-6)
	assert.InDelta(t, -1, sphere.Distance(ms3.Vec{}), 1e-6)
	assert.InDelta(t, 1, sdfxSphere.Distance(ms3.Vec{X: 2}), 1e-6)
	assert.InDelta(t, -0.4, box.Distance(ms3.Vec{}), 1e-6)

	for _, p := range []ms3.Vec{
		{X: 0.3, Y: -0.2, Z: 0.1}, {X: 1.5, Y: 0.4, Z: -0.9}, {X: -0.9, Y: 0.7, Z: 0.5}, {Z: 3},
	} {
		assert.InDelta(t, sphere.Distance(p), sdfxSphere.Distance(p), 1e-5, "sphere at %v", p)
		assert.InDelta(t, box.Distance(p), sdfxBox.Distance(p), 1e-5, "box at %v", p)
	}
	for _, name := range benchaux.ShapeNames() {
		ref, err := benchaux.LoadReference(benchaux.SDFXPrefix + name)
		require.NoError(t, err, name)
		assert.Less(t, ref.Distance(ms3.Vec{X: 3}), float32(3), name)
		assert.Greater(t, ref.Distance(ms3.Vec{X: 3}), float32(1), name)
	}

	moved, err := benchaux.LoadReference("analytic:box@0.5,0,0")
	require.NoError(t, err)
	assert.InDelta(t, -0.4, moved.Distance(ms3.Vec{X: 0.5}), 1e-6)
	assert.InDelta(t, -0.5-m, moved.SampleArea().Min.X, 1e-6)

	_, err = benchaux.LoadReference("sdfx:torus")
	assert.ErrorIs(t, err, benchaux.ErrUnknownShape)
	_, err = benchaux.LoadReference("analytic:capsule")
	assert.ErrorIs(t, err, benchaux.ErrUnknownShape)
	_, err = benchaux.LoadReference("analytic:sphere@1,2")
	assert.Error(t, err)
	_, err = benchaux.LoadReference("field.obj")
	assert.Error(t, err)
}

func TestBenchShapeReference(t *testing.T) {
	ref, err := benchaux.LoadReference("analytic:rounded-box")
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Backends = []string{benchaux.BackendBVH}
	var sink heatmap.MemorySink
	rep, err := benchaux.Bench(cfg, ref, normalizedCube(t, 2), 6, &sink)
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Sweep.RowsCompleted)
	// Only the rounded edges differ from the sharp cube.
	assert.Less(t, rep.Sweep.MaxDivergence, float32(0.05))
	assert.NotEmpty(t, sink.Names())
}
