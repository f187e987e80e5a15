// Package meshdist computes signed distances to triangle meshes. It provides the mesh
// type and readers for common mesh formats, and the backends built over it: a brute
// force scan, a bounding volume hierarchy and an adapter for github.com/unixpickle/model3d.
package meshdist

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

var (
	// ErrEmptyMesh is returned when a mesh has no triangles.
	ErrEmptyMesh = errors.New("mesh has no triangles")
)

// Mesh is an indexed triangle mesh. Every three consecutive indices form a
// counter-clockwise triangle when viewed from outside the surface.
type Mesh struct {
	Vertices []ms3.Vec
	Indices  []uint32
}

// NewMesh validates vertices and indices and returns a mesh referencing them.
func NewMesh(vertices []ms3.Vec, indices []uint32) (*Mesh, error) {
	if len(indices) == 0 {
		return nil, ErrEmptyMesh
	} else if len(indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d not a multiple of 3", len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, fmt.Errorf("index %d at position %d out of range of %d vertices", idx, i, len(vertices))
		}
	}
	return &Mesh{Vertices: vertices, Indices: indices}, nil
}

// FromTriangles builds an indexed mesh from a triangle soup, merging bit-identical
// vertices so neighbouring triangles share edges.
func FromTriangles(tris []ms3.Triangle) (*Mesh, error) {
	if len(tris) == 0 {
		return nil, ErrEmptyMesh
	}
	seen := make(map[ms3.Vec]uint32, len(tris))
	m := &Mesh{Indices: make([]uint32, 0, 3*len(tris))}
	for _, t := range tris {
		for _, v := range t {
			idx, ok := seen[v]
			if !ok {
				idx = uint32(len(m.Vertices))
				seen[v] = idx
				m.Vertices = append(m.Vertices, v)
			}
			m.Indices = append(m.Indices, idx)
		}
	}
	return m, nil
}

// NumTriangles returns the amount of triangles in the mesh.
func (m *Mesh) NumTriangles() int { return len(m.Indices) / 3 }

// Triangle returns the i'th triangle of the mesh.
func (m *Mesh) Triangle(i int) ms3.Triangle {
	idx := m.Indices[3*i : 3*i+3]
	return ms3.Triangle{m.Vertices[idx[0]], m.Vertices[idx[1]], m.Vertices[idx[2]]}
}

// Triangles returns the mesh as a triangle soup.
func (m *Mesh) Triangles() []ms3.Triangle {
	tris := make([]ms3.Triangle, m.NumTriangles())
	for i := range tris {
		tris[i] = m.Triangle(i)
	}
	return tris
}

// Bounds returns the bounding box of the referenced vertices.
func (m *Mesh) Bounds() ms3.Box {
	bb := ms3.Box{
		Min: ms3.Vec{X: math32.Inf(1), Y: math32.Inf(1), Z: math32.Inf(1)},
		Max: ms3.Vec{X: math32.Inf(-1), Y: math32.Inf(-1), Z: math32.Inf(-1)},
	}
	for _, idx := range m.Indices {
		v := m.Vertices[idx]
		bb.Min = ms3.MinElem(bb.Min, v)
		bb.Max = ms3.MaxElem(bb.Max, v)
	}
	return bb
}

// Apply transforms every vertex of the mesh in place.
func (m *Mesh) Apply(transform func(ms3.Vec) ms3.Vec) {
	for i, v := range m.Vertices {
		m.Vertices[i] = transform(v)
	}
}

// Normalize centers the mesh bounding box at the origin and scales it uniformly so
// its largest dimension spans 2 units.
func (m *Mesh) Normalize() error {
	bb := m.Bounds()
	sz := bb.Size()
	maxdim := math32.Max(sz.X, math32.Max(sz.Y, sz.Z))
	if !(maxdim > 0) || math32.IsInf(maxdim, 1) {
		return fmt.Errorf("can not normalize mesh with bounds %v", bb)
	}
	center := bb.Center()
	scale := 2 / maxdim
	m.Apply(func(v ms3.Vec) ms3.Vec {
		return ms3.Scale(scale, ms3.Sub(v, center))
	})
	return nil
}
