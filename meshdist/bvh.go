package meshdist

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// bvhNode is a node of a bounding volume hierarchy. Internal nodes have two
// children, leaves reference a run of triangle indices.
type bvhNode struct {
	box         ms3.Box
	left, right *bvhNode
	tris        []int32
}

// maxTrianglesPerLeaf is the threshold for splitting BVH nodes.
const maxTrianglesPerLeaf = 4

// BVH computes exact signed distances to a mesh by descending a bounding volume
// hierarchy and pruning nodes farther than the best triangle found so far.
// BVH is safe for concurrent use.
type BVH struct {
	surf *Surface
	root *bvhNode
	area ms3.Box
}

// NewBVH builds a bounding volume hierarchy over mesh m.
func NewBVH(m *Mesh) (*BVH, error) {
	surf, err := NewSurface(m)
	if err != nil {
		return nil, err
	}
	idx := make([]int32, surf.NumTriangles())
	centroids := make([]ms3.Vec, len(idx))
	for i := range idx {
		idx[i] = int32(i)
		t := surf.Triangle(i)
		centroids[i] = ms3.Scale(1.0/3, ms3.Add(t[0], ms3.Add(t[1], t[2])))
	}
	b := &BVH{surf: surf, area: surf.Bounds()}
	b.root = b.build(idx, centroids)
	return b, nil
}

func (b *BVH) build(idx []int32, centroids []ms3.Vec) *bvhNode {
	node := &bvhNode{box: b.trianglesBox(idx)}
	if len(idx) <= maxTrianglesPerLeaf {
		node.tris = idx
		return node
	}
	// Split along the longest axis at the median centroid.
	extent := node.box.Size()
	key := func(v ms3.Vec) float32 { return v.X }
	if extent.Y > extent.X && extent.Y > extent.Z {
		key = func(v ms3.Vec) float32 { return v.Y }
	} else if extent.Z > extent.X && extent.Z > extent.Y {
		key = func(v ms3.Vec) float32 { return v.Z }
	}
	sort.Slice(idx, func(i, j int) bool {
		return key(centroids[idx[i]]) < key(centroids[idx[j]])
	})
	mid := len(idx) / 2
	node.left = b.build(idx[:mid], centroids)
	node.right = b.build(idx[mid:], centroids)
	return node
}

func (b *BVH) trianglesBox(idx []int32) ms3.Box {
	bb := ms3.Box{
		Min: ms3.Vec{X: math32.Inf(1), Y: math32.Inf(1), Z: math32.Inf(1)},
		Max: ms3.Vec{X: math32.Inf(-1), Y: math32.Inf(-1), Z: math32.Inf(-1)},
	}
	for _, ti := range idx {
		for _, v := range b.surf.Triangle(int(ti)) {
			bb.Min = ms3.MinElem(bb.Min, v)
			bb.Max = ms3.MaxElem(bb.Max, v)
		}
	}
	return bb
}

// Distance returns the signed distance from p to the mesh, negative inside.
func (b *BVH) Distance(p ms3.Vec) float32 {
	n := NewNearest()
	b.nearest(b.root, p, &n)
	return b.surf.SignedDistance(n, p)
}

func (b *BVH) nearest(node *bvhNode, p ms3.Vec, n *Nearest) {
	if node.left == nil {
		for _, ti := range node.tris {
			b.surf.Consider(n, int(ti), p)
		}
		return
	}
	// Visit the nearer child first so the farther one is more likely pruned.
	first, second := node.left, node.right
	d1 := BoxDistance2(first.box, p)
	d2 := BoxDistance2(second.box, p)
	if d2 < d1 {
		first, second = second, first
		d1, d2 = d2, d1
	}
	if d1 < n.Dist2 {
		b.nearest(first, p, n)
	}
	if d2 < n.Dist2 {
		b.nearest(second, p, n)
	}
}

// SampleArea returns the mesh bounding box.
func (b *BVH) SampleArea() ms3.Box { return b.area }

// Depth returns the depth of the hierarchy, a single leaf has depth 1.
func (b *BVH) Depth() int { return nodeDepth(b.root) }

func nodeDepth(n *bvhNode) int {
	if n == nil {
		return 0
	}
	return 1 + max(nodeDepth(n.left), nodeDepth(n.right))
}
