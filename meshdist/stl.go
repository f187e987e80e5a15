package meshdist

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/soypat/geometry/ms3"
)

// TriangleReader reads triangles in batches. It returns io.EOF once all triangles are read.
type TriangleReader interface {
	ReadTriangles(dst []ms3.Triangle) (n int, err error)
}

// ReadAllTriangles reads the full contents of a TriangleReader and returns the slice read.
// It does not return error on io.EOF, like the io.ReadAll implementation.
func ReadAllTriangles(r TriangleReader) ([]ms3.Triangle, error) {
	const startSize = 4096
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

var errSTLTruncated = errors.New("truncated binary STL")

// NewSTLReader returns a TriangleReader for binary or ASCII STL data.
func NewSTLReader(r io.Reader) (TriangleReader, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	// Some binary STL exporters also start their header with "solid" so look for ASCII keywords.
	if bytes.HasPrefix(bytes.TrimSpace(peek), []byte("solid")) &&
		(bytes.Contains(peek, []byte("facet")) || bytes.Contains(peek, []byte("endsolid"))) {
		return &asciiSTLReader{sc: bufio.NewScanner(br)}, nil
	}
	var hdr [stlHeaderSize + 4]byte
	if _, err = io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading STL header: %w", err)
	}
	return &binarySTLReader{r: br, remaining: binary.LittleEndian.Uint32(hdr[stlHeaderSize:])}, nil
}

type binarySTLReader struct {
	r         io.Reader
	remaining uint32
	buf       [stlTriangleSize]byte
}

func (br *binarySTLReader) ReadTriangles(dst []ms3.Triangle) (n int, err error) {
	for n < len(dst) && br.remaining > 0 {
		_, err = io.ReadFull(br.r, br.buf[:])
		if err != nil {
			return n, errSTLTruncated
		}
		// Skip the stored normal, it is recomputed from winding when needed.
		for v := 0; v < 3; v++ {
			off := 12 * (v + 1)
			dst[n][v] = ms3.Vec{
				X: math.Float32frombits(binary.LittleEndian.Uint32(br.buf[off:])),
				Y: math.Float32frombits(binary.LittleEndian.Uint32(br.buf[off+4:])),
				Z: math.Float32frombits(binary.LittleEndian.Uint32(br.buf[off+8:])),
			}
		}
		n++
		br.remaining--
	}
	if br.remaining == 0 {
		return n, io.EOF
	}
	return n, nil
}

type asciiSTLReader struct {
	sc     *bufio.Scanner
	line   int
	verts  [3]ms3.Vec
	nverts int
}

func (ar *asciiSTLReader) ReadTriangles(dst []ms3.Triangle) (n int, err error) {
	for n < len(dst) {
		if !ar.sc.Scan() {
			if err = ar.sc.Err(); err != nil {
				return n, err
			}
			if ar.nverts != 0 {
				return n, fmt.Errorf("ASCII STL ended mid-facet at line %d", ar.line)
			}
			return n, io.EOF
		}
		ar.line++
		fields := strings.Fields(ar.sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) != 4 || ar.nverts == 3 {
				return n, fmt.Errorf("malformed vertex at line %d", ar.line)
			}
			v, err := parseVec(fields[1:])
			if err != nil {
				return n, fmt.Errorf("line %d: %w", ar.line, err)
			}
			ar.verts[ar.nverts] = v
			ar.nverts++
		case "endloop":
			if ar.nverts != 3 {
				return n, fmt.Errorf("facet with %d vertices at line %d", ar.nverts, ar.line)
			}
			dst[n] = ms3.Triangle(ar.verts)
			n++
			ar.nverts = 0
		}
	}
	return n, nil
}

func parseVec(fields []string) (ms3.Vec, error) {
	var xyz [3]float32
	for i := range xyz {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return ms3.Vec{}, err
		}
		xyz[i] = float32(f)
	}
	return ms3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// WriteBinarySTL writes triangles to w in binary STL format with facet normals
// computed from the triangle winding.
func WriteBinarySTL(w io.Writer, triangles []ms3.Triangle) (int, error) {
	if uint64(len(triangles)) > math.MaxUint32 {
		return 0, errors.New("too many triangles for STL")
	}
	bw := bufio.NewWriter(w)
	var hdr [stlHeaderSize + 4]byte
	copy(hdr[:], "binary STL")
	binary.LittleEndian.PutUint32(hdr[stlHeaderSize:], uint32(len(triangles)))
	n, err := bw.Write(hdr[:])
	if err != nil {
		return n, err
	}
	var buf [stlTriangleSize]byte
	putVec := func(off int, v ms3.Vec) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(v.Z))
	}
	for _, t := range triangles {
		normal := ms3.Cross(ms3.Sub(t[1], t[0]), ms3.Sub(t[2], t[0]))
		if l := ms3.Norm(normal); l > 0 {
			normal = ms3.Scale(1/l, normal)
		}
		putVec(0, normal)
		putVec(12, t[0])
		putVec(24, t[1])
		putVec(36, t[2])
		buf[48], buf[49] = 0, 0
		ni, err := bw.Write(buf[:])
		n += ni
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
