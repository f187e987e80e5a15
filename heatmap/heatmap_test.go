package heatmap_test

import (
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/querytime/heatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func near(a, b heatmap.RGB, tol float32) bool {
	abs := func(f float32) float32 {
		if f < 0 {
			return -f
		}
		return f
	}
	return abs(a.R-b.R) <= tol && abs(a.G-b.G) <= tol && abs(a.B-b.B) <= tol
}

func TestRampBoundaries(t *testing.T) {
	// Epsilon keeps the top value slightly away from the last palette color.
	const tol = 0.011
	r := heatmap.DefaultRamp()
	p := heatmap.DefaultPalette
	tests := []struct {
		v    float32
		want heatmap.RGB
	}{
		{v: 0, want: p[0]},
		{v: 0.25, want: p[1]},
		{v: 0.5, want: p[2]},
		{v: 0.75, want: p[3]},
		{v: 1, want: p[4]},
		{v: 0.125, want: heatmap.RGB{R: 0.5, G: 0, B: 1}},
		// Clamped.
		{v: -3, want: p[0]},
		{v: 7, want: p[4]},
		{v: float32(math.NaN()), want: p[0]},
	}
	for _, test := range tests {
		got := r.ColorAt(test.v, 0, 1)
		if !near(got, test.want, tol) {
			t.Errorf("ColorAt(%g): got %+v, want %+v", test.v, got, test.want)
		}
	}
}

func TestRampDomain(t *testing.T) {
	r := heatmap.DefaultRamp()
	a := r.ColorAt(15, 10, 20)
	b := r.ColorAt(0.5, 0, 1)
	assert.Equal(t, a, b)
	assert.Panics(t, func() { r.ColorAt(1, 2, 2) })
	assert.Panics(t, func() { r.ColorAt(1, 3, 2) })
	assert.Panics(t, func() { heatmap.Ramp{Palette: heatmap.Palette{{R: 1}}}.ColorAt(0, 0, 1) })
}

func TestRampHSV(t *testing.T) {
	r := heatmap.Ramp{Palette: heatmap.Palette{{R: 1}, {G: 1}}, Interp: heatmap.InterpHSV}
	mid := r.ColorAt(0.5, 0, 1)
	// Halfway between red and green in hue is yellow at full saturation.
	assert.InDelta(t, 1, mid.R, 0.02)
	assert.InDelta(t, 1, mid.G, 0.02)
	assert.InDelta(t, 0, mid.B, 0.02)
	interp, err := heatmap.ParseInterpolation("hsv")
	require.NoError(t, err)
	assert.Equal(t, heatmap.InterpHSV, interp)
	assert.Equal(t, "hsv", interp.String())
	_, err = heatmap.ParseInterpolation("lab")
	assert.Error(t, err)
}

func TestRGBAConversion(t *testing.T) {
	c := heatmap.RGB{R: 1, G: 0.5, B: -1}.RGBA()
	assert.Equal(t, heatmap.RGBA{R: 255, G: 127, B: 0, A: 255}, c)
	assert.Equal(t, [4]byte{255, 127, 0, 255}, c.Bytes())
}

func TestExport(t *testing.T) {
	const width = 3
	var sink heatmap.MemorySink
	e := heatmap.Exporter{Ramp: heatmap.DefaultRamp(), Sink: &sink}
	data := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8}
	name := heatmap.ImageName("image", 0, "bvh")
	assert.Equal(t, "image0-bvh.png", name)
	require.NoError(t, e.Export(name, width, data, 0, 8))

	img, ok := sink.Image(name)
	require.True(t, ok)
	assert.Equal(t, width, img.Width)
	assert.Equal(t, width, img.Height)
	assert.Equal(t, 4, img.Channels)
	assert.Equal(t, 4*width, img.Stride)
	require.Len(t, img.Pix, width*width*4)
	for k := 3; k < len(img.Pix); k += 4 {
		assert.EqualValues(t, 255, img.Pix[k], "alpha at byte %d", k)
	}
	// First pixel is magenta, last pixel close to red.
	assert.Equal(t, []byte{255, 0, 255, 255}, img.Pix[:4])
	last := img.Pix[len(img.Pix)-4:]
	assert.EqualValues(t, 255, last[0])
	assert.Less(t, last[1], uint8(10))
	assert.Equal(t, []string{name}, sink.Names())

	err := e.Export("bad", width, data, 1, 1)
	assert.ErrorIs(t, err, heatmap.ErrDegenerateDomain)
	err = e.Export("bad", width+1, data, 0, 1)
	assert.Error(t, err)
}

func TestExportInfinite(t *testing.T) {
	const width = 2
	inf := float32(math.Inf(1))
	var sink heatmap.MemorySink
	e := heatmap.Exporter{Ramp: heatmap.DefaultRamp(), Sink: &sink}
	data := []float32{0, 0, inf, -inf}
	err := e.Export("unbounded", width, data, 0, inf)
	assert.ErrorIs(t, err, heatmap.ErrDegenerateDomain)
	err = e.Export("unbounded", width, data, -inf, 1)
	assert.ErrorIs(t, err, heatmap.ErrDegenerateDomain)
	assert.Empty(t, sink.Names())

	require.NoError(t, e.Export("clamped", width, data, 0, 1))
	img, ok := sink.Image("clamped")
	require.True(t, ok)
	px := heatmap.NewPixels(width, width)
	r := heatmap.DefaultRamp()
	for k, v := range data {
		px.Set(k%width, k/width, r.ColorAt(v, 0, 1).RGBA())
	}
	assert.Equal(t, px.Bytes(), img.Pix)
	assert.Equal(t, r.ColorAt(1, 0, 1).RGBA(), px.At(0, 1))
	assert.Equal(t, r.ColorAt(0, 0, 1).RGBA(), px.At(1, 1))

	// Infinite bounds never reach the palette with a NaN position.
	assert.NotPanics(t, func() { r.ColorAt(inf, 0, inf) })
	assert.Equal(t, r.ColorAt(1, 0, 1), r.ColorAt(inf, -inf, inf))
	assert.Equal(t, r.ColorAt(0, 0, 1), r.ColorAt(-inf, -inf, inf))
}

func TestExportDistances(t *testing.T) {
	var sink heatmap.MemorySink
	e := heatmap.Exporter{Ramp: heatmap.DefaultRamp(), Sink: &sink}
	data := []float32{-1, 0, 1, float32(math.NaN())}
	require.NoError(t, e.ExportDistances("dist", 2, data, heatmap.DistanceColor(1)))
	img, ok := sink.Image("dist")
	require.True(t, ok)
	// NaN is red, the surface line is white.
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pix[12:16])
	assert.Equal(t, []byte{255, 255, 255, 255}, img.Pix[4:8])
	inside, outside := img.Pix[0:4], img.Pix[8:12]
	assert.Greater(t, inside[2], inside[0], "inside is blue tinted")
	assert.Greater(t, outside[0], outside[2], "outside is orange tinted")
}

func TestPNGSinkAndLegend(t *testing.T) {
	dir := t.TempDir()
	e := heatmap.Exporter{Ramp: heatmap.DefaultRamp(), Sink: heatmap.PNGSink{Dir: dir}}
	require.NoError(t, e.Export("grid", 2, []float32{0, 1, 2, 3}, 0, 3))
	require.NoError(t, e.ExportLegend("legend.png", 0, 12.5, "µs", 256, 48))

	fp, err := os.Open(filepath.Join(dir, "grid.png"))
	require.NoError(t, err)
	defer fp.Close()
	img, err := png.Decode(fp)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, color.RGBA64{R: 0xffff, G: 0, B: 0xffff, A: 0xffff}, color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: uint16(a)})

	lp, err := os.Open(filepath.Join(dir, "legend.png"))
	require.NoError(t, err)
	defer lp.Close()
	legend, err := png.Decode(lp)
	require.NoError(t, err)
	assert.Equal(t, 256, legend.Bounds().Dx())
	assert.Equal(t, 48, legend.Bounds().Dy())

	_, err = heatmap.DefaultRamp().Legend(1, 0, "", 256, 48)
	assert.ErrorIs(t, err, heatmap.ErrDegenerateDomain)
}
