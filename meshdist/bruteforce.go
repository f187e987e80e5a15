package meshdist

import "github.com/soypat/geometry/ms3"

// BruteForce computes signed distances by testing every triangle of the mesh.
// It is the slowest backend and serves as ground truth for the others.
type BruteForce struct {
	surf *Surface
}

// NewBruteForce prepares mesh m for brute force queries.
func NewBruteForce(m *Mesh) (*BruteForce, error) {
	surf, err := NewSurface(m)
	if err != nil {
		return nil, err
	}
	return &BruteForce{surf: surf}, nil
}

// Distance returns the signed distance from p to the mesh, negative inside.
func (bf *BruteForce) Distance(p ms3.Vec) float32 {
	n := NewNearest()
	for i := 0; i < bf.surf.NumTriangles(); i++ {
		bf.surf.Consider(&n, i, p)
	}
	return bf.surf.SignedDistance(n, p)
}

// SampleArea returns the mesh bounding box.
func (bf *BruteForce) SampleArea() ms3.Box { return bf.surf.Bounds() }

// Surface returns the prepared mesh surface.
func (bf *BruteForce) Surface() *Surface { return bf.surf }
