package meshdist

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Feature identifies the part of a triangle closest to a query point.
type Feature uint8

const (
	FeatureFace Feature = iota
	FeatureVertex0
	FeatureVertex1
	FeatureVertex2
	FeatureEdge01
	FeatureEdge12
	FeatureEdge20
)

// ClosestPoint returns the point of triangle t closest to p and the feature it lies on.
// Adapted from Ericson's Real-Time Collision Detection, section 5.1.5.
func ClosestPoint(t ms3.Triangle, p ms3.Vec) (ms3.Vec, Feature) {
	a, b, c := t[0], t[1], t[2]
	ab := ms3.Sub(b, a)
	ac := ms3.Sub(c, a)
	ap := ms3.Sub(p, a)
	d1 := ms3.Dot(ab, ap)
	d2 := ms3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a, FeatureVertex0
	}
	bp := ms3.Sub(p, b)
	d3 := ms3.Dot(ab, bp)
	d4 := ms3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b, FeatureVertex1
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return ms3.Add(a, ms3.Scale(v, ab)), FeatureEdge01
	}
	cp := ms3.Sub(p, c)
	d5 := ms3.Dot(ab, cp)
	d6 := ms3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c, FeatureVertex2
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return ms3.Add(a, ms3.Scale(w, ac)), FeatureEdge20
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return ms3.Add(b, ms3.Scale(w, ms3.Sub(c, b))), FeatureEdge12
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return ms3.Add(a, ms3.Add(ms3.Scale(v, ab), ms3.Scale(w, ac))), FeatureFace
}

// Surface is a mesh prepared for signed distance queries. Signs are resolved with
// angle weighted pseudonormals (Bærentzen and Aanæs) which are exact for closed,
// consistently oriented manifold meshes.
type Surface struct {
	tris  []ms3.Triangle
	bb    ms3.Box
	faceN []ms3.Vec
	// Pseudonormals per triangle vertex and edge so queries need no map lookups.
	vertN [][3]ms3.Vec
	edgeN [][3]ms3.Vec
}

type edgeKey [2]uint32

func makeEdgeKey(a, b uint32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// NewSurface computes the pseudonormals of mesh m.
func NewSurface(m *Mesh) (*Surface, error) {
	nt := m.NumTriangles()
	if nt == 0 {
		return nil, ErrEmptyMesh
	}
	s := &Surface{
		tris:  m.Triangles(),
		bb:    m.Bounds(),
		faceN: make([]ms3.Vec, nt),
		vertN: make([][3]ms3.Vec, nt),
		edgeN: make([][3]ms3.Vec, nt),
	}
	vertexAcc := make([]ms3.Vec, len(m.Vertices))
	edgeAcc := make(map[edgeKey]ms3.Vec, 3*nt/2)
	for i, t := range s.tris {
		n := ms3.Cross(ms3.Sub(t[1], t[0]), ms3.Sub(t[2], t[0]))
		if l := ms3.Norm(n); l > 0 {
			n = ms3.Scale(1/l, n)
		}
		s.faceN[i] = n
		idx := m.Indices[3*i : 3*i+3]
		for k := 0; k < 3; k++ {
			angle := cornerAngle(t[k], t[(k+1)%3], t[(k+2)%3])
			vertexAcc[idx[k]] = ms3.Add(vertexAcc[idx[k]], ms3.Scale(angle, n))
			key := makeEdgeKey(idx[k], idx[(k+1)%3])
			edgeAcc[key] = ms3.Add(edgeAcc[key], n)
		}
	}
	for i := range s.tris {
		idx := m.Indices[3*i : 3*i+3]
		for k := 0; k < 3; k++ {
			s.vertN[i][k] = vertexAcc[idx[k]]
			s.edgeN[i][k] = edgeAcc[makeEdgeKey(idx[k], idx[(k+1)%3])]
		}
	}
	return s, nil
}

func cornerAngle(corner, b, c ms3.Vec) float32 {
	e1 := ms3.Sub(b, corner)
	e2 := ms3.Sub(c, corner)
	l := ms3.Norm(e1) * ms3.Norm(e2)
	if l == 0 {
		return 0
	}
	cos := ms3.Dot(e1, e2) / l
	return math32.Acos(math32.Max(-1, math32.Min(1, cos)))
}

// NumTriangles returns the amount of triangles of the surface.
func (s *Surface) NumTriangles() int { return len(s.tris) }

// Triangle returns the i'th triangle.
func (s *Surface) Triangle(i int) ms3.Triangle { return s.tris[i] }

// Bounds returns the bounding box of the surface.
func (s *Surface) Bounds() ms3.Box { return s.bb }

// Nearest tracks the closest triangle found so far during a distance query.
// The zero value is not valid, use [NewNearest].
type Nearest struct {
	Tri     int
	Point   ms3.Vec
	Feature Feature
	Dist2   float32
}

// NewNearest returns a Nearest with no triangle found yet.
func NewNearest() Nearest {
	return Nearest{Tri: -1, Dist2: math32.Inf(1)}
}

// Consider updates n if triangle ti is closer to p than the current best.
func (s *Surface) Consider(n *Nearest, ti int, p ms3.Vec) {
	q, f := ClosestPoint(s.tris[ti], p)
	pq := ms3.Sub(p, q)
	d2 := ms3.Dot(pq, pq)
	if d2 < n.Dist2 {
		*n = Nearest{Tri: ti, Point: q, Feature: f, Dist2: d2}
	}
}

// SignedDistance converts the result of a nearest triangle search into a signed distance.
// It returns +Inf if no triangle was found.
func (s *Surface) SignedDistance(n Nearest, p ms3.Vec) float32 {
	if n.Tri < 0 {
		return math32.Inf(1)
	}
	d := math32.Sqrt(n.Dist2)
	if ms3.Dot(ms3.Sub(p, n.Point), s.pseudonormal(n.Tri, n.Feature)) < 0 {
		return -d
	}
	return d
}

func (s *Surface) pseudonormal(ti int, f Feature) ms3.Vec {
	switch f {
	case FeatureVertex0, FeatureVertex1, FeatureVertex2:
		return s.vertN[ti][f-FeatureVertex0]
	case FeatureEdge01, FeatureEdge12, FeatureEdge20:
		return s.edgeN[ti][f-FeatureEdge01]
	}
	return s.faceN[ti]
}

// BoxDistance2 returns the squared distance from p to the closest point of box bb,
// zero if p is inside the box.
func BoxDistance2(bb ms3.Box, p ms3.Vec) float32 {
	d := ms3.MaxElem(ms3.Sub(bb.Min, p), ms3.Sub(p, bb.Max))
	d = ms3.MaxElem(d, ms3.Vec{})
	return ms3.Dot(d, d)
}
