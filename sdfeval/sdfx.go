package sdfeval

import (
	"github.com/deadsy/sdfx/sdf"
	"github.com/soypat/geometry/ms3"
)

// SDFX adapts a github.com/deadsy/sdfx [sdf.SDF3] to the vectorized [SDF3] interface.
// sdfx evaluates in float64, results are rounded to float32.
type SDFX struct {
	s sdf.SDF3
}

// FromSDFX wraps an sdfx shape.
func FromSDFX(s sdf.SDF3) (*SDFX, error) {
	if s == nil {
		return nil, errNilSDF
	}
	return &SDFX{s: s}, nil
}

func (x *SDFX) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	for i, p := range pos {
		dist[i] = float32(x.s.Evaluate(sdf.V3{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}))
	}
	return nil
}

func (x *SDFX) Bounds() ms3.Box {
	bb := x.s.BoundingBox()
	return ms3.Box{
		Min: ms3.Vec{X: float32(bb.Min.X), Y: float32(bb.Min.Y), Z: float32(bb.Min.Z)},
		Max: ms3.Vec{X: float32(bb.Max.X), Y: float32(bb.Max.Y), Z: float32(bb.Max.Z)},
	}
}
