package meshdist_test

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/querytime"
	"github.com/soypat/querytime/meshdist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ querytime.SampleAreaer = (*meshdist.BVH)(nil)
	_ querytime.SampleAreaer = (*meshdist.BruteForce)(nil)
	_ querytime.SampleAreaer = (*meshdist.Model3D)(nil)
)

// cubeMesh returns an outward facing axis aligned cube centered at the origin.
// Vertex i has coordinate bits x=i&1, y=i&2, z=i&4.
func cubeMesh(half float32) *meshdist.Mesh {
	var verts []ms3.Vec
	for i := 0; i < 8; i++ {
		v := ms3.Vec{X: -half, Y: -half, Z: -half}
		if i&1 != 0 {
			v.X = half
		}
		if i&2 != 0 {
			v.Y = half
		}
		if i&4 != 0 {
			v.Z = half
		}
		verts = append(verts, v)
	}
	quads := [6][4]uint32{
		{0, 4, 6, 2}, {1, 3, 7, 5},
		{0, 1, 5, 4}, {2, 6, 7, 3},
		{0, 2, 3, 1}, {4, 5, 7, 6},
	}
	var idx []uint32
	for _, q := range quads {
		idx = append(idx, q[0], q[1], q[2], q[0], q[2], q[3])
	}
	m, err := meshdist.NewMesh(verts, idx)
	if err != nil {
		panic(err)
	}
	return m
}

// boxDistance is the exact signed distance to an axis aligned cube.
func boxDistance(p ms3.Vec, half float32) float32 {
	q := ms3.AddScalar(-half, ms3.AbsElem(p))
	return ms3.Norm(ms3.MaxElem(q, ms3.Vec{})) + math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0)
}

func randVec(rng *rand.Rand, scale float32) ms3.Vec {
	return ms3.Vec{
		X: scale * (2*rng.Float32() - 1),
		Y: scale * (2*rng.Float32() - 1),
		Z: scale * (2*rng.Float32() - 1),
	}
}

func TestSignedDistanceCube(t *testing.T) {
	const half = 0.5
	const tol = 2e-5
	m := cubeMesh(half)
	bvh, err := meshdist.NewBVH(m)
	if err != nil {
		t.Fatal(err)
	}
	bf, err := meshdist.NewBruteForce(m)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		p := randVec(rng, 1.5)
		want := boxDistance(p, half)
		gotBVH := bvh.Distance(p)
		gotBF := bf.Distance(p)
		if math32.Abs(gotBVH-want) > tol {
			t.Errorf("bvh at %v: got %g, want %g", p, gotBVH, want)
		}
		if math32.Abs(gotBVH-gotBF) > 1e-6 {
			t.Errorf("bvh and brute force disagree at %v: %g != %g", p, gotBVH, gotBF)
		}
	}
	if got := bvh.Distance(ms3.Vec{}); math32.Abs(got+half) > tol {
		t.Errorf("center distance %g, want %g", got, -half)
	}

	surf := bf.Surface()
	if surf.NumTriangles() != m.NumTriangles() || surf.Bounds() != m.Bounds() {
		t.Fatalf("surface has %d triangles in %v, want %d in %v", surf.NumTriangles(), surf.Bounds(), m.NumTriangles(), m.Bounds())
	}
	// Nearest triangle search over the only face facing +X.
	p := ms3.Vec{X: 2, Y: 0.1, Z: -0.2}
	n := meshdist.NewNearest()
	for i := 0; i < surf.NumTriangles(); i++ {
		if surf.Triangle(i).Normal().X > 0 {
			surf.Consider(&n, i, p)
		}
	}
	if got, want := surf.SignedDistance(n, p), bf.Distance(p); math32.Abs(got-want) > 1e-6 {
		t.Errorf("surface distance %g, brute force %g", got, want)
	}
}

func TestModel3DMagnitude(t *testing.T) {
	const half = 0.5
	const tol = 1e-4
	md, err := meshdist.NewModel3D(cubeMesh(half))
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		p := randVec(rng, 1.5)
		want := math32.Abs(boxDistance(p, half))
		got := math32.Abs(md.Distance(p))
		if math32.Abs(got-want) > tol {
			t.Errorf("model3d at %v: got |d|=%g, want %g", p, got, want)
		}
	}
	bb := md.SampleArea()
	if bb.Min != (ms3.Vec{X: -half, Y: -half, Z: -half}) || bb.Max != (ms3.Vec{X: half, Y: half, Z: half}) {
		t.Errorf("unexpected sample area %v", bb)
	}
}

func TestBVHLargeMesh(t *testing.T) {
	// Subdivided cube surface to force a deep hierarchy.
	const n = 8
	const half = 1
	var tris []ms3.Triangle
	cube := cubeMesh(half)
	for _, t0 := range cube.Triangles() {
		tris = append(tris, subdivide(t0, n)...)
	}
	m, err := meshdist.FromTriangles(tris)
	require.NoError(t, err)
	bvh, err := meshdist.NewBVH(m)
	require.NoError(t, err)
	bf, err := meshdist.NewBruteForce(m)
	require.NoError(t, err)
	assert.Greater(t, bvh.Depth(), 4)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		p := randVec(rng, 2)
		assert.InDelta(t, bf.Distance(p), bvh.Distance(p), 1e-6, "at %v", p)
		assert.InDelta(t, boxDistance(p, half), bvh.Distance(p), 5e-5, "at %v", p)
	}
}

// subdivide splits a triangle into n*n triangles keeping its winding.
func subdivide(t ms3.Triangle, n int) []ms3.Triangle {
	at := func(i, j int) ms3.Vec {
		u := float32(i) / float32(n)
		v := float32(j) / float32(n)
		return ms3.Add(t[0], ms3.Add(ms3.Scale(u, ms3.Sub(t[1], t[0])), ms3.Scale(v, ms3.Sub(t[2], t[0]))))
	}
	var out []ms3.Triangle
	for i := 0; i < n; i++ {
		for j := 0; i+j < n; j++ {
			out = append(out, ms3.Triangle{at(i, j), at(i+1, j), at(i, j+1)})
			if i+j+1 < n {
				out = append(out, ms3.Triangle{at(i+1, j), at(i+1, j+1), at(i, j+1)})
			}
		}
	}
	return out
}

func TestClosestPointFeatures(t *testing.T) {
	tri := ms3.Triangle{{}, {X: 1}, {Y: 1}}
	tests := []struct {
		p       ms3.Vec
		want    ms3.Vec
		feature meshdist.Feature
	}{
		{p: ms3.Vec{X: 0.25, Y: 0.25, Z: 1}, want: ms3.Vec{X: 0.25, Y: 0.25}, feature: meshdist.FeatureFace},
		{p: ms3.Vec{X: -1, Y: -1}, want: ms3.Vec{}, feature: meshdist.FeatureVertex0},
		{p: ms3.Vec{X: 2, Y: -0.5}, want: ms3.Vec{X: 1}, feature: meshdist.FeatureVertex1},
		{p: ms3.Vec{Y: 3}, want: ms3.Vec{Y: 1}, feature: meshdist.FeatureVertex2},
		{p: ms3.Vec{X: 0.5, Y: -1}, want: ms3.Vec{X: 0.5}, feature: meshdist.FeatureEdge01},
		{p: ms3.Vec{X: 1, Y: 1}, want: ms3.Vec{X: 0.5, Y: 0.5}, feature: meshdist.FeatureEdge12},
		{p: ms3.Vec{X: -1, Y: 0.5}, want: ms3.Vec{Y: 0.5}, feature: meshdist.FeatureEdge20},
	}
	for _, test := range tests {
		got, f := meshdist.ClosestPoint(tri, test.p)
		if f != test.feature {
			t.Errorf("at %v: feature %d, want %d", test.p, f, test.feature)
		}
		if ms3.Norm(ms3.Sub(got, test.want)) > 1e-6 {
			t.Errorf("at %v: closest %v, want %v", test.p, got, test.want)
		}
	}
}

func TestMeshHelpers(t *testing.T) {
	m := cubeMesh(0.5)
	welded, err := meshdist.FromTriangles(m.Triangles())
	require.NoError(t, err)
	assert.Len(t, welded.Vertices, 8)
	assert.Equal(t, 12, welded.NumTriangles())

	welded.Apply(func(v ms3.Vec) ms3.Vec {
		return ms3.Add(ms3.Vec{X: 10, Y: -3}, ms3.Vec{X: 4 * v.X, Y: v.Y, Z: v.Z})
	})
	require.NoError(t, welded.Normalize())
	bb := welded.Bounds()
	assert.InDelta(t, 2, bb.Size().X, 1e-6)
	assert.InDelta(t, 0.5, bb.Size().Y, 1e-6)
	assert.InDelta(t, 0, bb.Center().X, 1e-6)
	assert.InDelta(t, 0, bb.Center().Y, 1e-6)

	_, err = meshdist.NewMesh(m.Vertices, []uint32{0, 1})
	assert.Error(t, err)
	_, err = meshdist.NewMesh(m.Vertices, []uint32{0, 1, 8})
	assert.Error(t, err)
	_, err = meshdist.FromTriangles(nil)
	assert.ErrorIs(t, err, meshdist.ErrEmptyMesh)
	_, err = meshdist.NewBVH(&meshdist.Mesh{})
	assert.ErrorIs(t, err, meshdist.ErrEmptyMesh)
}

func TestBinarySTLRoundTrip(t *testing.T) {
	tris := cubeMesh(0.5).Triangles()
	var buf bytes.Buffer
	n, err := meshdist.WriteBinarySTL(&buf, tris)
	require.NoError(t, err)
	assert.Equal(t, 84+50*len(tris), n)
	assert.Equal(t, n, buf.Len())

	tr, err := meshdist.NewSTLReader(&buf)
	require.NoError(t, err)
	got, err := meshdist.ReadAllTriangles(tr)
	require.NoError(t, err)
	assert.Equal(t, tris, got)
}

func TestASCIISTL(t *testing.T) {
	const src = `solid tri
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 1 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
endsolid tri
`
	m, err := meshdist.ReadSTL(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumTriangles())
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, ms3.Triangle{{X: 1}, {X: 1, Y: 1}, {Y: 1}}, m.Triangle(1))

	_, err = meshdist.ReadSTL(strings.NewReader("solid bad\nfacet\nouter loop\nvertex 0 0 0\nendloop\nendsolid\n"))
	assert.Error(t, err)
}

func TestOBJ(t *testing.T) {
	const src = `# unit quad and a triangle with negative references
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1/1/1 2/2/1 3/3/1 4/4/1
v 0 0 1
f -1 -5 -4
`
	m, err := meshdist.ReadOBJ(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumTriangles())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 0, 1}, m.Indices)

	_, err = meshdist.ReadOBJ(strings.NewReader("v 0 0 0\nf 1 2 3\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	stlPath := filepath.Join(dir, "cube.stl")
	fp, err := os.Create(stlPath)
	require.NoError(t, err)
	_, err = meshdist.WriteBinarySTL(fp, cubeMesh(1).Triangles())
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	m, err := meshdist.LoadFile(stlPath)
	require.NoError(t, err)
	assert.Equal(t, 12, m.NumTriangles())
	assert.Len(t, m.Vertices, 8)

	_, err = meshdist.LoadFile(filepath.Join(dir, "cube.ply"))
	assert.Error(t, err)
}
