package sdffield

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/querytime/meshdist"
)

const (
	fileVersion = 1
	// maxFileElems bounds element counts read from a file header.
	maxFileElems = 1 << 27
)

var fileMagic = [4]byte{'Q', 'T', 'O', 'F'}

// fileHeader is the fixed size start of a field file. It is followed by the vertices,
// indices, octree nodes and leaf candidate lists. All values are little endian.
type fileHeader struct {
	Magic         [4]byte
	Version       uint32
	Area          ms3.Box
	Origin        ms3.Vec
	Resolution    float32
	Levels        uint32
	NumVertices   uint32
	NumIndices    uint32
	NumNodes      uint32
	NumCandidates uint32
}

// WriteTo writes the field in binary form to w.
func (f *Field) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: bufio.NewWriter(w)}
	hdr := fileHeader{
		Magic:         fileMagic,
		Version:       fileVersion,
		Area:          f.area,
		Origin:        f.orig,
		Resolution:    f.res,
		Levels:        uint32(f.top.lvl),
		NumVertices:   uint32(len(f.mesh.Vertices)),
		NumIndices:    uint32(len(f.mesh.Indices)),
		NumNodes:      uint32(len(f.nodes)),
		NumCandidates: uint32(len(f.cands)),
	}
	for _, v := range []any{&hdr, f.mesh.Vertices, f.mesh.Indices, f.nodes, f.cands} {
		if err := binary.Write(cw, binary.LittleEndian, v); err != nil {
			return cw.n, err
		}
	}
	return cw.n, cw.w.(*bufio.Writer).Flush()
}

type countWriter struct {
	w io.Writer
	n int64
}

func (cw *countWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	return n, err
}

// Read reads a field written by [Field.WriteTo].
func Read(r io.Reader) (*Field, error) {
	br := bufio.NewReader(r)
	var hdr fileHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrBadFieldFile, err)
	}
	if hdr.Magic != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadFieldFile, hdr.Magic[:])
	} else if hdr.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFieldFile, hdr.Version)
	} else if hdr.Levels < 1 || hdr.Levels > maxLevels {
		return nil, fmt.Errorf("%w: invalid level count %d", ErrBadFieldFile, hdr.Levels)
	} else if !(hdr.Resolution > 0) || math32.IsInf(hdr.Resolution, 1) {
		return nil, fmt.Errorf("%w: invalid resolution %g", ErrBadFieldFile, hdr.Resolution)
	} else if hdr.NumNodes == 0 {
		return nil, fmt.Errorf("%w: no octree nodes", ErrBadFieldFile)
	}
	for _, n := range []uint32{hdr.NumVertices, hdr.NumIndices, hdr.NumNodes, hdr.NumCandidates} {
		if n > maxFileElems {
			return nil, fmt.Errorf("%w: element count %d too large", ErrBadFieldFile, n)
		}
	}
	verts := make([]ms3.Vec, hdr.NumVertices)
	indices := make([]uint32, hdr.NumIndices)
	nodes := make([]node, hdr.NumNodes)
	cands := make([]uint32, hdr.NumCandidates)
	for _, v := range []any{verts, indices, nodes, cands} {
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrBadFieldFile, err)
		}
	}
	m, err := meshdist.NewMesh(verts, indices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFieldFile, err)
	}
	nt := uint32(m.NumTriangles())
	for i, nd := range nodes {
		if nd.Child >= 0 {
			if nd.Child <= int32(i) || int(nd.Child)+8 > len(nodes) {
				return nil, fmt.Errorf("%w: node %d has invalid child %d", ErrBadFieldFile, i, nd.Child)
			}
			continue
		}
		if uint64(nd.Start)+uint64(nd.Count) > uint64(len(cands)) {
			return nil, fmt.Errorf("%w: node %d candidates out of range", ErrBadFieldFile, i)
		}
	}
	if err := checkDepth(nodes, int(hdr.Levels)); err != nil {
		return nil, err
	}
	for _, ti := range cands {
		if ti >= nt {
			return nil, fmt.Errorf("%w: candidate triangle %d out of range", ErrBadFieldFile, ti)
		}
	}
	surf, err := meshdist.NewSurface(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFieldFile, err)
	}
	return &Field{
		mesh:  m,
		surf:  surf,
		area:  hdr.Area,
		top:   icube{lvl: int(hdr.Levels)},
		orig:  hdr.Origin,
		res:   hdr.Resolution,
		nodes: nodes,
		cands: cands,
	}, nil
}

// checkDepth walks the octree from the root and verifies only cubes above the smallest
// level are subdivided and that every node has a single parent.
func checkDepth(nodes []node, levels int) error {
	type visit struct {
		idx int32
		lvl int
	}
	seen := make([]bool, len(nodes))
	seen[0] = true
	stack := []visit{{idx: 0, lvl: levels}}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := nodes[v.idx]
		if nd.Child < 0 {
			continue
		} else if v.lvl <= 1 {
			return fmt.Errorf("%w: node %d subdivides a level %d cube", ErrBadFieldFile, v.idx, v.lvl)
		}
		for k := int32(0); k < 8; k++ {
			c := nd.Child + k
			if seen[c] {
				return fmt.Errorf("%w: node %d has more than one parent", ErrBadFieldFile, c)
			}
			seen[c] = true
			stack = append(stack, visit{idx: c, lvl: v.lvl - 1})
		}
	}
	return nil
}

// ReadFile loads a field from a file.
func ReadFile(filename string) (*Field, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	f, err := Read(fp)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filename, err)
	}
	return f, nil
}

// WriteFile saves the field to a file, replacing it if it exists.
func (f *Field) WriteFile(filename string) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	_, err = f.WriteTo(fp)
	if err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
