// Package sdfeval contains analytic signed distance field evaluators and adapters that
// turn vectorized evaluators into single point query backends.
package sdfeval

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// SDF3 implements a 3D signed distance field in vectorized form.
type SDF3 interface {
	// Evaluate evaluates the signed distance field over pos positions.
	// dist and pos must be of same length. Resulting distances are stored
	// in dist.
	//
	// userData facilitates getting auxiliary data to the evaluators.
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
	// Bounds returns the SDF's bounding box such that all of the shape is contained within.
	Bounds() ms3.Box
}

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
	errNilSDF               = errors.New("nil SDF3")
)

func checkBuffers(pos []ms3.Vec, dist []float32) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	return nil
}

// PointSDF answers single point queries against an [SDF3]. It implements the
// querytime Backend and SampleAreaer interfaces.
type PointSDF struct {
	sdf  SDF3
	area ms3.Box
	pos  [1]ms3.Vec
	dist [1]float32
	// lastErr holds the last evaluation error, queries that fail return NaN.
	lastErr error
}

// NewPointSDF wraps sdf for single point queries. The sample area is the SDF bounds
// grown by margin on every side.
func NewPointSDF(sdf SDF3, margin float32) (*PointSDF, error) {
	if sdf == nil {
		return nil, errNilSDF
	}
	bb := sdf.Bounds()
	m := ms3.Vec{X: margin, Y: margin, Z: margin}
	return &PointSDF{
		sdf:  sdf,
		area: ms3.Box{Min: ms3.Sub(bb.Min, m), Max: ms3.Add(bb.Max, m)},
	}, nil
}

// Distance returns the signed distance at p or NaN if the underlying evaluator failed.
// PointSDF reuses internal buffers and is not safe for concurrent use.
func (ps *PointSDF) Distance(p ms3.Vec) float32 {
	ps.pos[0] = p
	err := ps.sdf.Evaluate(ps.pos[:], ps.dist[:], nil)
	if err != nil {
		ps.lastErr = err
		return math32.NaN()
	}
	return ps.dist[0]
}

// SampleArea returns the domain over which the SDF is sampled.
func (ps *PointSDF) SampleArea() ms3.Box { return ps.area }

// Err returns the last evaluation error, if any.
func (ps *PointSDF) Err() error { return ps.lastErr }
