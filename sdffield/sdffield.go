// Package sdffield implements an exact signed distance field of a triangle mesh stored
// in an adaptive octree. Every leaf keeps the triangles that can possibly be closest to
// some point inside it so a query only tests a handful of triangles. Fields are built
// once, saved to a compact binary file and loaded as the reference backend of a sweep.
package sdffield

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/querytime"
	"github.com/soypat/querytime/meshdist"
)

var (
	// ErrBadFieldFile is returned when a field file is malformed.
	ErrBadFieldFile = errors.New("bad field file")
)

const (
	// DefaultMaxCandidates is the leaf candidate count below which cells are not subdivided.
	DefaultMaxCandidates = 8
	// DefaultCellsPerAxis sets the default resolution to the area's long axis divided by it.
	DefaultCellsPerAxis = 64
	// DefaultMargin pads the mesh bounds relative to their largest dimension.
	DefaultMargin = 0.05
)

// Config controls field construction. The zero value uses package defaults.
type Config struct {
	// Area is the region of space covered by the octree. If empty the mesh bounds
	// padded by Margin are used.
	Area ms3.Box
	// Margin is the mesh bounds padding relative to the largest mesh dimension.
	Margin float32
	// Resolution is the size of the smallest octree cell.
	Resolution float32
	// MaxCandidates stops subdivision of cells with at most this many candidate triangles.
	MaxCandidates int
}

type node struct {
	// Child is the index of the first of 8 consecutive children, -1 for leaves.
	Child int32
	Start uint32
	Count uint32
}

// Field is an exact signed distance field of a mesh. It is safe for concurrent use.
type Field struct {
	mesh  *meshdist.Mesh
	surf  *meshdist.Surface
	area  ms3.Box
	top   icube
	orig  ms3.Vec
	res   float32
	nodes []node
	cands []uint32
}

// Build computes the octree field of mesh m.
func Build(m *meshdist.Mesh, cfg Config) (*Field, error) {
	surf, err := meshdist.NewSurface(m)
	if err != nil {
		return nil, err
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	area := cfg.Area
	if area.Size() == (ms3.Vec{}) {
		margin := cfg.Margin
		if margin <= 0 {
			margin = DefaultMargin
		}
		bb := m.Bounds()
		sz := bb.Size()
		pad := margin * math32.Max(sz.X, math32.Max(sz.Y, sz.Z))
		area = ms3.Box{Min: ms3.AddScalar(-pad, bb.Min), Max: ms3.AddScalar(pad, bb.Max)}
	}
	res := cfg.Resolution
	if res == 0 {
		sz := area.Size()
		res = math32.Max(sz.X, math32.Max(sz.Y, sz.Z)) / DefaultCellsPerAxis
	}
	top, origin, err := makeICube(area, res)
	if err != nil {
		return nil, err
	}
	f := &Field{
		mesh: m,
		surf: surf,
		area: area,
		top:  top,
		orig: origin,
		res:  res,
	}
	start := time.Now()
	f.build(cfg.MaxCandidates)
	log := querytime.Logger()
	log.Debug("built octree field", slog.Int("triangles", surf.NumTriangles()),
		slog.Int("nodes", len(f.nodes)), slog.Int("candidates", len(f.cands)),
		slog.Duration("elapsed", time.Since(start)))
	return f, nil
}

type buildItem struct {
	node  int32
	cube  icube
	cands []uint32
}

// build decomposes the octree depth first. Children inherit the filtered candidate
// list of their parent so the list only shrinks with depth.
func (f *Field) build(maxCandidates int) {
	nt := f.surf.NumTriangles()
	triBoxes := make([]ms3.Box, nt)
	all := make([]uint32, nt)
	for i := range all {
		all[i] = uint32(i)
		t := f.surf.Triangle(i)
		triBoxes[i] = ms3.Box{
			Min: ms3.MinElem(t[0], ms3.MinElem(t[1], t[2])),
			Max: ms3.MaxElem(t[0], ms3.MaxElem(t[1], t[2])),
		}
	}
	f.nodes = []node{{Child: -1}}
	stack := []buildItem{{node: 0, cube: f.top, cands: all}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cands := f.filter(it.cube, it.cands, triBoxes)
		if it.cube.lvl == 1 || len(cands) <= maxCandidates {
			f.nodes[it.node] = node{Child: -1, Start: uint32(len(f.cands)), Count: uint32(len(cands))}
			f.cands = append(f.cands, cands...)
			continue
		}
		first := int32(len(f.nodes))
		f.nodes[it.node].Child = first
		for k, sub := range it.cube.octree() {
			f.nodes = append(f.nodes, node{Child: -1})
			stack = append(stack, buildItem{node: first + int32(k), cube: sub, cands: cands})
		}
	}
}

// filter returns the candidates that may be the closest triangle to a point in cube.
// The upper bound is the smallest over candidates of the farthest cube corner distance,
// since distance to a triangle is convex and peaks at a corner.
func (f *Field) filter(cube icube, cands []uint32, triBoxes []ms3.Box) []uint32 {
	// Slack keeps triangles that tie with the bound under float32 rounding.
	const slack = 1e-5
	corners := cube.corners(f.orig, f.res)
	upper2 := math32.Inf(1)
	for _, ti := range cands {
		t := f.surf.Triangle(int(ti))
		var far2 float32
		for _, c := range corners {
			q, _ := meshdist.ClosestPoint(t, c)
			cq := ms3.Sub(c, q)
			far2 = math32.Max(far2, ms3.Dot(cq, cq))
		}
		upper2 = math32.Min(upper2, far2)
	}
	limit := upper2*(1+slack) + slack*f.res*f.res
	cb := cube.box(f.orig, f.res)
	filtered := make([]uint32, 0, len(cands))
	for _, ti := range cands {
		if boxDistance2(cb, triBoxes[ti]) <= limit {
			filtered = append(filtered, ti)
		}
	}
	return filtered
}

// Distance returns the signed distance from p to the mesh, negative inside.
// Points outside the octree are answered by testing all triangles.
func (f *Field) Distance(p ms3.Vec) float32 {
	n := meshdist.NewNearest()
	if !boxContains(f.top.box(f.orig, f.res), p) {
		for i := 0; i < f.surf.NumTriangles(); i++ {
			f.surf.Consider(&n, i, p)
		}
		return f.surf.SignedDistance(n, p)
	}
	leaf := f.leaf(p)
	for _, ti := range f.cands[leaf.Start : leaf.Start+leaf.Count] {
		f.surf.Consider(&n, int(ti), p)
	}
	return f.surf.SignedDistance(n, p)
}

func (f *Field) leaf(p ms3.Vec) node {
	cube := f.top
	nd := f.nodes[0]
	for nd.Child >= 0 {
		k := cube.octant(p, f.orig, f.res)
		cube = cube.octree()[k]
		nd = f.nodes[nd.Child+int32(k)]
	}
	return nd
}

// SampleArea returns the region the field was built for.
func (f *Field) SampleArea() ms3.Box { return f.area }

// Mesh returns the mesh the field was built from.
func (f *Field) Mesh() *meshdist.Mesh { return f.mesh }

// Stats summarizes the octree structure.
type Stats struct {
	Nodes         int
	Leaves        int
	Candidates    int
	MaxCandidates int
}

func (s Stats) String() string {
	mean := float32(0)
	if s.Leaves > 0 {
		mean = float32(s.Candidates) / float32(s.Leaves)
	}
	return fmt.Sprintf("%d nodes, %d leaves, %.2f mean and %d max candidates per leaf", s.Nodes, s.Leaves, mean, s.MaxCandidates)
}

// Stats returns octree statistics.
func (f *Field) Stats() Stats {
	s := Stats{Nodes: len(f.nodes), Candidates: len(f.cands)}
	for _, nd := range f.nodes {
		if nd.Child < 0 {
			s.Leaves++
			s.MaxCandidates = max(s.MaxCandidates, int(nd.Count))
		}
	}
	return s
}
