package benchaux

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/deadsy/sdfx/sdf"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/querytime/sdfeval"
)

// Reference prefixes selecting a shape instead of a field file in [LoadReference].
const (
	SDFXPrefix     = "sdfx:"
	AnalyticPrefix = "analytic:"
)

// ShapeMargin pads the sample area of shape references on every side.
const ShapeMargin = 0.1

// ErrUnknownShape is returned for shape names not in [ShapeNames].
var ErrUnknownShape = errors.New("unknown shape")

// ShapeNames returns the demo shapes accepted by [SDFXShape]. Shapes span [-1, 1] along
// their longest axis so they agree with normalized meshes tessellated from them.
func ShapeNames() []string {
	return []string{"box-sphere", "sphere", "box", "capsule"}
}

// AnalyticShapeNames returns the shapes accepted after [AnalyticPrefix].
func AnalyticShapeNames() []string {
	return []string{"sphere", "box", "rounded-box"}
}

// SDFXShape returns the named demo shape built with github.com/deadsy/sdfx.
func SDFXShape(name string) (sdf.SDF3, error) {
	switch name {
	case "box-sphere":
		b, err := sdf.Box3D(sdf.V3{X: 2, Y: 2, Z: 2}, 0.1)
		if err != nil {
			return nil, err
		}
		s, err := sdf.Sphere3D(1.2)
		if err != nil {
			return nil, err
		}
		return sdf.Difference3D(b, s), nil
	case "sphere":
		return sdf.Sphere3D(1)
	case "box":
		return sdf.Box3D(sdf.V3{X: 2, Y: 1.2, Z: 0.8}, 0)
	case "capsule":
		return sdf.Capsule3D(2, 0.5)
	}
	return nil, fmt.Errorf("%w %q, want one of %s", ErrUnknownShape, name, strings.Join(ShapeNames(), ", "))
}

// analyticShape parses name[@x,y,z] and returns the named analytic shape displaced by
// the optional offset.
func analyticShape(spec string) (sdfeval.SDF3, error) {
	name, at, moved := strings.Cut(spec, "@")
	var (
		s   sdfeval.SDF3
		err error
	)
	switch name {
	case "sphere":
		s, err = sdfeval.NewSphere(1)
	case "box":
		s, err = sdfeval.NewBox(2, 1.2, 0.8, 0)
	case "rounded-box":
		s, err = sdfeval.NewBox(2, 2, 2, 0.1)
	default:
		return nil, fmt.Errorf("%w %q, want one of %s", ErrUnknownShape, name, strings.Join(AnalyticShapeNames(), ", "))
	}
	if err != nil || !moved {
		return s, err
	}
	offset, err := parseOffset(at)
	if err != nil {
		return nil, err
	}
	return sdfeval.NewTranslate(s, offset)
}

func parseOffset(s string) (ms3.Vec, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return ms3.Vec{}, fmt.Errorf("offset %q must have 3 comma separated values", s)
	}
	var v [3]float32
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return ms3.Vec{}, fmt.Errorf("offset %q: %w", s, err)
		}
		v[i] = float32(x)
	}
	return ms3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func loadShape(ref string) (Reference, error) {
	var (
		s   sdfeval.SDF3
		err error
	)
	if name, ok := strings.CutPrefix(ref, SDFXPrefix); ok {
		var x sdf.SDF3
		x, err = SDFXShape(name)
		if err == nil {
			s, err = sdfeval.FromSDFX(x)
		}
	} else {
		s, err = analyticShape(strings.TrimPrefix(ref, AnalyticPrefix))
	}
	if err != nil {
		return nil, err
	}
	ps, err := sdfeval.NewPointSDF(s, ShapeMargin)
	if err != nil {
		return nil, err
	}
	return ps, nil
}
