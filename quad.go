package querytime

import "github.com/soypat/geometry/ms3"

// Quad is a planar slice of the sampling domain onto which an image grid is projected.
// Image row 0 lies along the top edge and column 0 along the left edge.
type Quad struct {
	TopLeft, TopRight       ms3.Vec
	BottomLeft, BottomRight ms3.Vec
}

// NewQuad returns the axis aligned quad spanning the XY extent of area at depth z.
// The top edge lies at area.Max.Y so images read with Y pointing up.
func NewQuad(area ms3.Box, z float32) Quad {
	return Quad{
		TopLeft:     ms3.Vec{X: area.Min.X, Y: area.Max.Y, Z: z},
		TopRight:    ms3.Vec{X: area.Max.X, Y: area.Max.Y, Z: z},
		BottomLeft:  ms3.Vec{X: area.Min.X, Y: area.Min.Y, Z: z},
		BottomRight: ms3.Vec{X: area.Max.X, Y: area.Min.Y, Z: z},
	}
}

// At bilinearly interpolates the quad at parametric coordinates tx (left to right)
// and ty (top to bottom). At(0.5, 0.5) is the quad centroid.
func (q Quad) At(tx, ty float32) ms3.Vec {
	top := mixVec(q.TopLeft, q.TopRight, tx)
	bottom := mixVec(q.BottomLeft, q.BottomRight, tx)
	return mixVec(top, bottom, ty)
}

// Project returns the point sampled by pixel (i, j) of a width×width grid.
// Pixel centers are sampled so no sample lies on the quad boundary.
func (q Quad) Project(i, j, width int) ms3.Vec {
	inv := 1 / float32(width)
	tx := inv * (0.5 + float32(i))
	ty := inv * (0.5 + float32(j))
	return q.At(tx, ty)
}
