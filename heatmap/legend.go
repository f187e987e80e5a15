package heatmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const (
	legendFontSize = 12
	legendPad      = 3
	// legendTextHeight is the band below the color bar reserved for labels.
	legendTextHeight = legendFontSize + 2*legendPad
)

// Legend draws a horizontal color bar of the ramp over [lo, hi] with the domain limits
// printed at its ends and label centered between them.
func (r Ramp) Legend(lo, hi float32, label string, width, height int) (*image.NRGBA, error) {
	if !(hi > lo) {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrDegenerateDomain, lo, hi)
	} else if width < 8*legendFontSize || height < 2*legendTextHeight {
		return nil, errors.New("legend too small for labels")
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	barHeight := height - legendTextHeight
	for i := 0; i < width; i++ {
		v := lo + (hi-lo)*(float32(i)+0.5)/float32(width)
		c := r.ColorAt(v, lo, hi).RGBA()
		nc := color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
		for j := 0; j < barHeight; j++ {
			img.SetNRGBA(i, j, nc)
		}
	}

	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: legendFontSize, DPI: 72, Hinting: font.HintingFull})
	defer face.Close()
	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	baseline := fixed.I(height - legendPad - 1)
	drawAt := func(s string, x fixed.Int26_6) {
		d.Dot = fixed.Point26_6{X: x, Y: baseline}
		d.DrawString(s)
	}
	drawAt(formatLimit(lo), fixed.I(legendPad))
	hiText := formatLimit(hi)
	drawAt(hiText, fixed.I(width-legendPad)-d.MeasureString(hiText))
	if label != "" {
		drawAt(label, (fixed.I(width)-d.MeasureString(label))/2)
	}
	return img, nil
}

func formatLimit(v float32) string {
	return fmt.Sprintf("%.4g", v)
}

// ExportLegend draws the exporter ramp's legend and writes it to the sink.
func (e *Exporter) ExportLegend(name string, lo, hi float32, label string, width, height int) error {
	img, err := e.Ramp.Legend(lo, hi, label, width, height)
	if err != nil {
		return err
	}
	return e.Sink.WriteImage(name, width, height, Channels, img.Pix, img.Stride)
}
