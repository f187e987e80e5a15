// Package heatmap converts latency grids to false color images. Grid values are mapped
// through a [Ramp] to packed RGBA pixels which an [ImageSink] persists.
package heatmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	math "github.com/chewxy/math32"
)

var (
	// ErrDegenerateDomain is returned when a color domain has max <= min or an infinite bound.
	ErrDegenerateDomain = errors.New("degenerate color domain")
	errBadDimensions    = errors.New("image dimensions do not match pixel buffer")
)

// Channels is the amount of bytes per pixel of exported images.
const Channels = 4

// ImageSink persists packed 8 bit images. pix holds height rows of stride bytes.
type ImageSink interface {
	WriteImage(name string, width, height, channels int, pix []byte, stride int) error
}

// Pixels is a row-major buffer of colors.
type Pixels struct {
	Width, Height int
	Data          []RGBA
}

// NewPixels allocates a width*height pixel buffer.
func NewPixels(width, height int) *Pixels {
	if width < 1 || height < 1 {
		panic("bad pixel buffer dimensions")
	}
	return &Pixels{Width: width, Height: height, Data: make([]RGBA, width*height)}
}

// Set sets the color at column i and row j.
func (p *Pixels) Set(i, j int, c RGBA) { p.Data[j*p.Width+i] = c }

// At returns the color at column i and row j.
func (p *Pixels) At(i, j int) RGBA { return p.Data[j*p.Width+i] }

// Bytes serializes the buffer as packed R, G, B, A bytes.
func (p *Pixels) Bytes() []byte {
	b := make([]byte, 0, Channels*len(p.Data))
	for _, c := range p.Data {
		b = append(b, c.R, c.G, c.B, c.A)
	}
	return b
}

// Exporter colors square grids with a ramp and writes them to a sink.
type Exporter struct {
	Ramp Ramp
	Sink ImageSink
}

// Export maps grid data of the given width through the ramp over [lo, hi]
// and writes the resulting image named name.
func (e *Exporter) Export(name string, width int, data []float32, lo, hi float32) error {
	if !(hi > lo) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return fmt.Errorf("%w: [%g, %g] for %s", ErrDegenerateDomain, lo, hi, name)
	} else if width < 1 || len(data) != width*width {
		return fmt.Errorf("%w: width %d and %d values", errBadDimensions, width, len(data))
	}
	px := NewPixels(width, width)
	for k, v := range data {
		px.Data[k] = e.Ramp.ColorAt(v, lo, hi).RGBA()
	}
	return e.Sink.WriteImage(name, px.Width, px.Height, Channels, px.Bytes(), Channels*px.Width)
}

// ExportDistances colors a square grid of signed distances with conv and writes it to the sink.
func (e *Exporter) ExportDistances(name string, width int, data []float32, conv func(float32) color.RGBA) error {
	if width < 1 || len(data) != width*width {
		return fmt.Errorf("%w: width %d and %d values", errBadDimensions, width, len(data))
	}
	px := NewPixels(width, width)
	for k, d := range data {
		c := conv(d)
		px.Data[k] = RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	}
	return e.Sink.WriteImage(name, px.Width, px.Height, Channels, px.Bytes(), Channels*px.Width)
}

// PNGSink writes images as PNG files inside Dir. Names without extension get ".png" appended.
type PNGSink struct {
	Dir string
}

func (s PNGSink) WriteImage(name string, width, height, channels int, pix []byte, stride int) error {
	if channels != Channels || stride < channels*width || len(pix) < stride*(height-1)+channels*width {
		return errBadDimensions
	}
	img := &image.NRGBA{Pix: pix, Stride: stride, Rect: image.Rect(0, 0, width, height)}
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	fp, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return err
	}
	err = png.Encode(fp, img)
	if err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// Image is an image kept by a [MemorySink].
type Image struct {
	Width, Height, Channels, Stride int
	Pix                             []byte
}

// MemorySink keeps written images in memory. It is safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	images map[string]Image
	order  []string
}

func (s *MemorySink) WriteImage(name string, width, height, channels int, pix []byte, stride int) error {
	if len(pix) < stride*height {
		return errBadDimensions
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images == nil {
		s.images = make(map[string]Image)
	}
	if _, ok := s.images[name]; !ok {
		s.order = append(s.order, name)
	}
	s.images[name] = Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Stride:   stride,
		Pix:      append([]byte(nil), pix...),
	}
	return nil
}

// Image returns the image written with name.
func (s *MemorySink) Image(name string) (Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[name]
	return img, ok
}

// Names returns image names in the order they were first written.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// ImageName returns the conventional file name of a backend heatmap.
func ImageName(prefix string, index int, backend string) string {
	return fmt.Sprintf("%s%d-%s.png", prefix, index, backend)
}
