package sdfeval

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// largenum bounds shapes that extend infinitely such as planes.
const largenum = 1e20

// Plane is the signed distance to the plane dot(Normal, p) = Offset. Points on the side
// Normal points towards are outside (positive). Extent limits the declared bounds since
// the plane itself is unbounded.
type Plane struct {
	normal ms3.Vec
	offset float32
	extent ms3.Box
}

// NewPlane returns a plane with the given normal and offset. The normal is normalized.
// extent is returned by Bounds, if empty a very large box is used instead.
func NewPlane(normal ms3.Vec, offset float32, extent ms3.Box) (*Plane, error) {
	n := ms3.Norm(normal)
	if n == 0 || math32.IsNaN(n) {
		return nil, errors.New("plane normal must be non-zero")
	}
	if extent.Size() == (ms3.Vec{}) {
		extent = ms3.Box{
			Min: ms3.Vec{X: -largenum, Y: -largenum, Z: -largenum},
			Max: ms3.Vec{X: largenum, Y: largenum, Z: largenum},
		}
	}
	return &Plane{normal: ms3.Scale(1/n, normal), offset: offset, extent: extent}, nil
}

func (pl *Plane) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	n, off := pl.normal, pl.offset
	for i, p := range pos {
		dist[i] = ms3.Dot(n, p) - off
	}
	return nil
}

func (pl *Plane) Bounds() ms3.Box { return pl.extent }

// Sphere is a sphere of radius R centered at the origin.
type Sphere struct {
	r float32
}

// NewSphere returns a sphere of radius r.
func NewSphere(r float32) (*Sphere, error) {
	if r <= 0 {
		return nil, errors.New("sphere radius must be positive")
	}
	return &Sphere{r: r}, nil
}

func (s *Sphere) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	r := s.r
	for i, p := range pos {
		dist[i] = ms3.Norm(p) - r
	}
	return nil
}

func (s *Sphere) Bounds() ms3.Box {
	r := s.r
	return ms3.Box{Min: ms3.Vec{X: -r, Y: -r, Z: -r}, Max: ms3.Vec{X: r, Y: r, Z: r}}
}

// Box is an axis aligned box centered at the origin with optional rounded edges.
type Box struct {
	dims  ms3.Vec
	round float32
}

// NewBox returns a box of the given full dimensions. round must be less than half the
// smallest dimension.
func NewBox(x, y, z, round float32) (*Box, error) {
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, errors.New("box dimensions must be positive")
	} else if round < 0 || round > math32.Min(x, math32.Min(y, z))/2 {
		return nil, errors.New("invalid box rounding")
	}
	return &Box{dims: ms3.Vec{X: x, Y: y, Z: z}, round: round}, nil
}

func (b *Box) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	d := ms3.Scale(0.5, b.dims)
	r := b.round
	for i, p := range pos {
		q := ms3.AddScalar(r, ms3.Sub(ms3.AbsElem(p), d))
		dist[i] = ms3.Norm(ms3.MaxElem(q, ms3.Vec{})) + math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0.0) - r
	}
	return nil
}

func (b *Box) Bounds() ms3.Box {
	d := ms3.Scale(0.5, b.dims)
	return ms3.Box{Min: ms3.Scale(-1, d), Max: d}
}

// Translate displaces an SDF3 by offset.
type Translate struct {
	s      SDF3
	offset ms3.Vec
	buf    []ms3.Vec
}

// NewTranslate returns s displaced by offset.
func NewTranslate(s SDF3, offset ms3.Vec) (*Translate, error) {
	if s == nil {
		return nil, errNilSDF
	}
	return &Translate{s: s, offset: offset}, nil
}

func (t *Translate) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	if cap(t.buf) < len(pos) {
		t.buf = make([]ms3.Vec, len(pos))
	}
	moved := t.buf[:len(pos)]
	for i, p := range pos {
		moved[i] = ms3.Sub(p, t.offset)
	}
	return t.s.Evaluate(moved, dist, userData)
}

func (t *Translate) Bounds() ms3.Box {
	bb := t.s.Bounds()
	return ms3.Box{Min: ms3.Add(bb.Min, t.offset), Max: ms3.Add(bb.Max, t.offset)}
}
