package meshdist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadOBJ reads the vertices and faces of a Wavefront OBJ file. Polygonal faces are
// triangulated as fans. Texture and normal references are ignored.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	sc := bufio.NewScanner(r)
	m := &Mesh{}
	var face []uint32
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: vertex needs 3 coordinates", line)
			}
			v, err := parseVec(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			m.Vertices = append(m.Vertices, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 vertices", line)
			}
			face = face[:0]
			for _, ref := range fields[1:] {
				idx, err := objIndex(ref, len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				face = append(face, idx)
			}
			for k := 1; k+1 < len(face); k++ {
				m.Indices = append(m.Indices, face[0], face[k], face[k+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewMesh(m.Vertices, m.Indices)
}

// objIndex resolves a face vertex reference such as "7", "7/1/3" or "-1".
func objIndex(ref string, nverts int) (uint32, error) {
	if slash := strings.IndexByte(ref, '/'); slash >= 0 {
		ref = ref[:slash]
	}
	i, err := strconv.Atoi(ref)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += nverts
	} else {
		i--
	}
	if i < 0 || i >= nverts {
		return 0, fmt.Errorf("vertex reference %s out of range", ref)
	}
	return uint32(i), nil
}

// ReadSTL reads a binary or ASCII STL stream into an indexed mesh.
func ReadSTL(r io.Reader) (*Mesh, error) {
	tr, err := NewSTLReader(r)
	if err != nil {
		return nil, err
	}
	tris, err := ReadAllTriangles(tr)
	if err != nil {
		return nil, err
	}
	return FromTriangles(tris)
}

// LoadFile reads a mesh from an .stl or .obj file.
func LoadFile(filename string) (*Mesh, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	var m *Mesh
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".stl":
		m, err = ReadSTL(fp)
	case ".obj":
		m, err = ReadOBJ(fp)
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return m, nil
}
