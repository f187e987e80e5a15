package meshdist

import (
	"github.com/soypat/geometry/ms3"
	"github.com/unixpickle/model3d/model3d"
)

// Model3D answers distance queries with github.com/unixpickle/model3d's mesh SDF.
// model3d reports positive distances inside the mesh so results are negated.
type Model3D struct {
	sdf  model3d.SDF
	area ms3.Box
}

// NewModel3D converts m to a model3d mesh and builds its SDF.
func NewModel3D(m *Mesh) (*Model3D, error) {
	if m.NumTriangles() == 0 {
		return nil, ErrEmptyMesh
	}
	mm := model3d.NewMesh()
	for i := 0; i < m.NumTriangles(); i++ {
		t := m.Triangle(i)
		mm.Add(&model3d.Triangle{toCoord(t[0]), toCoord(t[1]), toCoord(t[2])})
	}
	return &Model3D{sdf: model3d.MeshToSDF(mm), area: m.Bounds()}, nil
}

func toCoord(v ms3.Vec) model3d.Coord3D {
	return model3d.XYZ(float64(v.X), float64(v.Y), float64(v.Z))
}

// Distance returns the signed distance from p to the mesh, negative inside.
func (md *Model3D) Distance(p ms3.Vec) float32 {
	return float32(-md.sdf.SDF(toCoord(p)))
}

// SampleArea returns the mesh bounding box.
func (md *Model3D) SampleArea() ms3.Box { return md.area }
