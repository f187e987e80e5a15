package heatmap

import (
	"fmt"
	"image/color"

	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
)

// HSV interpolation logic in this file taken from Esme Lamb's (@dedelala)
// excellent color manipulation work presented at Gophercon AU 2024.
// https://github.com/dedelala/disco/tree/main/color

// RGB is a color with float components in 0..1.
type RGB struct {
	R, G, B float32
}

// RGBA is a 32 bit color as stored in an image buffer.
type RGBA struct {
	R, G, B, A uint8
}

// Bytes returns the color in R, G, B, A byte order.
func (c RGBA) Bytes() [4]byte { return [4]byte{c.R, c.G, c.B, c.A} }

// RGBA converts c to an opaque 32 bit color. Components are clamped to 0..1 and truncated.
func (c RGB) RGBA() RGBA {
	return RGBA{
		R: uint8(ms1.Clamp(c.R, 0, 1) * math.MaxUint8),
		G: uint8(ms1.Clamp(c.G, 0, 1) * math.MaxUint8),
		B: uint8(ms1.Clamp(c.B, 0, 1) * math.MaxUint8),
		A: math.MaxUint8,
	}
}

func (c RGB) vec() ms3.Vec { return ms3.Vec{X: c.R, Y: c.G, Z: c.B} }

func rgbFromVec(v ms3.Vec) RGB { return RGB{R: v.X, G: v.Y, B: v.Z} }

// Palette is an ordered list of colors a [Ramp] interpolates between.
type Palette []RGB

// DefaultPalette goes from fast to slow through magenta, blue, green, yellow and red.
var DefaultPalette = Palette{
	{R: 1, G: 0, B: 1},
	{R: 0, G: 0, B: 1},
	{R: 0, G: 1, B: 0},
	{R: 1, G: 1, B: 0},
	{R: 1, G: 0, B: 0},
}

// DefaultEpsilon keeps the segment index of the largest value inside the palette.
const DefaultEpsilon = 0.01

// Interpolation selects the color space a [Ramp] blends palette colors in.
type Interpolation uint8

const (
	InterpRGB Interpolation = iota
	InterpHSV
)

func (i Interpolation) String() string {
	switch i {
	case InterpRGB:
		return "rgb"
	case InterpHSV:
		return "hsv"
	}
	return fmt.Sprintf("Interpolation(%d)", uint8(i))
}

// ParseInterpolation parses the names returned by [Interpolation.String].
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "rgb":
		return InterpRGB, nil
	case "hsv":
		return InterpHSV, nil
	}
	return 0, fmt.Errorf("unknown color interpolation %q", s)
}

// Ramp maps scalar values to colors by piecewise linear interpolation of a palette.
type Ramp struct {
	Palette Palette
	// Epsilon is subtracted from the maximum segment position so the top value
	// interpolates within the last segment. Zero uses DefaultEpsilon.
	Epsilon float32
	Interp  Interpolation
}

// DefaultRamp returns a ramp over [DefaultPalette].
func DefaultRamp() Ramp {
	return Ramp{Palette: DefaultPalette, Epsilon: DefaultEpsilon}
}

// ColorAt maps value within [lo, hi] to a color. Values outside the domain are clamped
// and NaN maps to the first palette color. Infinite values map to the domain ends. ColorAt panics if hi <= lo or the palette
// has less than 2 colors.
func (r Ramp) ColorAt(value, lo, hi float32) RGB {
	n := len(r.Palette)
	if n < 2 {
		panic("ramp palette needs at least 2 colors")
	} else if !(hi > lo) {
		panic(fmt.Sprintf("degenerate color domain [%g, %g]", lo, hi))
	}
	if math.IsNaN(value) {
		return r.Palette[0]
	}
	eps := r.Epsilon
	if eps == 0 {
		eps = DefaultEpsilon
	}
	t := (value - lo) / (hi - lo)
	if math.IsNaN(t) {
		// Infinite value or domain bound.
		t = 0
		if value > lo {
			t = 1
		}
	}
	t = ms1.Clamp(t, 0, 1)
	s := ms1.Clamp(t*float32(n-1), 0, float32(n-1)-eps)
	seg := int(s)
	frac := s - float32(seg)
	c0, c1 := r.Palette[seg], r.Palette[seg+1]
	if r.Interp == InterpHSV {
		h0, s0, v0 := rgbToHSV(c0.R, c0.G, c0.B)
		h1, s1, v1 := rgbToHSV(c1.R, c1.G, c1.B)
		h, s, v := interpHSV(h0, s0, v0, h1, s1, v1, frac)
		if h > 1 {
			h -= 1
		}
		red, green, blue := hsvToRGB(h, s, v)
		return RGB{R: red, G: green, B: blue}
	}
	return rgbFromVec(ms3.InterpElem(c0.vec(), c1.vec(), ms3.Vec{X: frac, Y: frac, Z: frac}))
}

var red = color.RGBA{R: 255, A: 255}

// DistanceColor creates a color conversion for signed distances using [Inigo Quilez]'s style:
// warm outside, cold inside with contour bands and a white surface line.
// A good value for characteristic distance is the bounding box diagonal divided by 3. Returns red for NaN values.
//
// [Inigo Quilez]: https://iquilezles.org/articles/distfunctions2d/
func DistanceColor(characteristicDistance float32) func(float32) color.RGBA {
	inv := 1. / characteristicDistance
	return func(d float32) color.RGBA {
		if math.IsNaN(d) {
			return red
		}
		d *= inv
		var one = ms3.Vec{X: 1, Y: 1, Z: 1}
		var c ms3.Vec
		if d > 0 {
			c = ms3.Vec{X: 0.9, Y: 0.6, Z: 0.3}
		} else {
			c = ms3.Vec{X: 0.65, Y: 0.85, Z: 1.0}
		}
		c = ms3.Scale(1-math.Exp(-6*math.Abs(d)), c)
		c = ms3.Scale(0.8+0.2*math.Cos(150*d), c)
		max := 1 - ms1.SmoothStep(0, 0.01, math.Abs(d))
		c = ms3.InterpElem(c, one, ms3.Vec{X: max, Y: max, Z: max})
		return color.RGBA{
			R: uint8(c.X * 255),
			G: uint8(c.Y * 255),
			B: uint8(c.Z * 255),
			A: 255,
		}
	}
}

func interpHSV(h0, s0, v0, h1, s1, v1, t float32) (h, s, v float32) {
	switch {
	case h1-h0 > 0.5:
		h0 += 1.0
	case h1-h0 < -0.5:
		h1 += 1.0
	}
	h = ms1.Interp(h0, h1, t)
	s = ms1.Interp(s0, s1, t)
	v = ms1.Interp(v0, v1, t)
	return h, s, v
}

// hsvToRGB converts hue, saturation and brightness values on the range of 0.0
// to 1.0 to RGB floating point values on the range of 0.0 to 1.0
func hsvToRGB(h, s, v float32) (r, g, b float32) {
	var (
		c = s * v
		x = c * (1 - math.Abs(math.Mod(h*6, 2)-1))
		m = v - c
	)

	switch {
	case h >= 0 && h <= 1.0/6:
		r, g, b = c, x, 0
	case h > 1.0/6 && h <= 2.0/6:
		r, g, b = x, c, 0
	case h > 2.0/6 && h <= 3.0/6:
		r, g, b = 0, c, x
	case h > 3.0/6 && h <= 4.0/6:
		r, g, b = 0, x, c
	case h > 4.0/6 && h <= 5.0/6:
		r, g, b = x, 0, c
	case h > 5.0/6 && h <= 1.0:
		r, g, b = c, 0, x
	}

	r, g, b = r+m, g+m, b+m
	return r, g, b
}

// rgbToHSV converts red, green, and blue floating point values on the range
// 0.0 to 1.0 to hue, saturation and brightness values on the range 0.0 to 1.0
func rgbToHSV(r, g, b float32) (h, s, v float32) {
	var (
		xmax = max(r, g, b)
		xmin = min(r, g, b)
		c    = xmax - xmin
	)
	v = xmax
	switch {
	case c == 0:
		h = 0
	case v == r:
		h = (g - b) / (c * 6)
	case v == g:
		h = 1.0/3 + (b-r)/(c*6)
	case v == b:
		h = 2.0/3 + (r-g)/(c*6)
	}
	if h < 0 {
		h += 1
	}
	if xmax > 0 {
		s = c / xmax
	}
	return
}
