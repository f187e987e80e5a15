package sdffield

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// This file contains basic low level algorithms regarding Octrees.

// ivec is an integer position in units of the smallest cube size.
type ivec struct {
	x, y, z int
}

// icube is an octree cube. Its ivec is the minimum corner and lvl=1 is the smallest cube.
type icube struct {
	ivec
	lvl int
}

func makeICube(bb ms3.Box, minResolution float32) (topCube icube, origin ms3.Vec, err error) {
	if minResolution <= 0 || math32.IsNaN(minResolution) || math32.IsInf(minResolution, 0) {
		return icube{}, ms3.Vec{}, errors.New("invalid octree cube resolution")
	}
	sz := bb.Size()
	longAxis := math32.Max(sz.X, math32.Max(sz.Y, sz.Z))
	// how many cube levels for the octree?
	log2 := math32.Log2(longAxis / minResolution)
	levels := int(math32.Ceil(log2)) + 1
	if levels <= 1 {
		return icube{}, ms3.Vec{}, errors.New("resolution not fine enough for octree")
	} else if levels > maxLevels {
		return icube{}, ms3.Vec{}, errors.New("resolution too fine for octree")
	}
	return icube{lvl: levels}, bb.Min, nil
}

const maxLevels = 24

// size returns the length of the cube's edge.
func (c icube) size(res float32) float32 {
	return res * float32(int(1)<<(c.lvl-1))
}

func (c icube) box(origin ms3.Vec, res float32) ms3.Box {
	min := ms3.Add(origin, ms3.Scale(res, ms3.Vec{X: float32(c.x), Y: float32(c.y), Z: float32(c.z)}))
	size := c.size(res)
	return ms3.Box{Min: min, Max: ms3.AddScalar(size, min)}
}

func (c icube) center(origin ms3.Vec, res float32) ms3.Vec {
	return c.box(origin, res).Center()
}

func (c icube) corners(origin ms3.Vec, res float32) [8]ms3.Vec {
	bb := c.box(origin, res)
	return [8]ms3.Vec{
		bb.Min,
		{X: bb.Max.X, Y: bb.Min.Y, Z: bb.Min.Z},
		{X: bb.Min.X, Y: bb.Max.Y, Z: bb.Min.Z},
		{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Min.Z},
		{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Max.Z},
		{X: bb.Max.X, Y: bb.Min.Y, Z: bb.Max.Z},
		{X: bb.Min.X, Y: bb.Max.Y, Z: bb.Max.Z},
		bb.Max,
	}
}

// octree returns the decomposition of c into its 8 sub-cubes. Sub-cube k is offset by
// half the cube size along x if k&1, y if k&2 and z if k&4.
func (c icube) octree() [8]icube {
	if c.lvl <= 1 {
		panic("can not decompose smallest cube")
	}
	lvl := c.lvl - 1
	s := 1 << (lvl - 1)
	var sub [8]icube
	for k := range sub {
		sub[k] = icube{
			ivec: ivec{x: c.x + s*(k&1), y: c.y + s*((k>>1)&1), z: c.z + s*((k>>2)&1)},
			lvl:  lvl,
		}
	}
	return sub
}

// octant returns the index of the sub-cube of c containing p. Points on a shared face
// are assigned to the upper sub-cube.
func (c icube) octant(p, origin ms3.Vec, res float32) int {
	ctr := c.center(origin, res)
	k := 0
	if p.X >= ctr.X {
		k |= 1
	}
	if p.Y >= ctr.Y {
		k |= 2
	}
	if p.Z >= ctr.Z {
		k |= 4
	}
	return k
}

func boxContains(bb ms3.Box, p ms3.Vec) bool {
	return p.X >= bb.Min.X && p.Y >= bb.Min.Y && p.Z >= bb.Min.Z &&
		p.X <= bb.Max.X && p.Y <= bb.Max.Y && p.Z <= bb.Max.Z
}

// boxDistance2 returns the squared distance between two boxes, zero if they overlap.
func boxDistance2(a, b ms3.Box) float32 {
	d := ms3.MaxElem(ms3.Sub(a.Min, b.Max), ms3.Sub(b.Min, a.Max))
	d = ms3.MaxElem(d, ms3.Vec{})
	return ms3.Dot(d, d)
}
