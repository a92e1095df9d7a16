package stereo

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// OffAxis returns the view-projection matrix for an eye at lateral position
// (x, y) looking perpendicular at a width x height screen. near, focal and
// far are distances from the eye to the near clipping plane, the physical
// screen and the far clipping plane. The screen lies in the plane z = 0 of
// model space with the eye at z = focal.
//
// The frustum is asymmetric: its edges pass through the physical screen
// edges, so the screen maps onto the full normalized device range for any
// eye position. Only the physical screen size enters; non-square pixels are
// absorbed by the viewport.
func OffAxis(width, height, near, focal, far, x, y float64) *mat.Dense {
	scale := near / focal
	left := (-width/2 - x) * scale
	right := (width/2 - x) * scale
	bottom := (-height/2 - y) * scale
	top := (height/2 - y) * scale

	proj := mat.NewDense(4, 4, []float64{
		2 * near / (right - left), 0, (right + left) / (right - left), 0,
		0, 2 * near / (top - bottom), (top + bottom) / (top - bottom), 0,
		0, 0, -(far + near) / (far - near), -2 * far * near / (far - near),
		0, 0, -1, 0,
	})
	view := mat.NewDense(4, 4, []float64{
		1, 0, 0, -x,
		0, 1, 0, -y,
		0, 0, 1, -focal,
		0, 0, 0, 1,
	})

	var vp mat.Dense
	vp.Mul(proj, view)
	return &vp
}

// Project maps a model-space point through m and returns normalized device
// coordinates after the perspective divide.
func Project(m mat.Matrix, p r3.Vec) r3.Vec {
	in := mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1})
	var out mat.VecDense
	out.MulVec(m, in)
	w := out.AtVec(3)
	return r3.Vec{X: out.AtVec(0) / w, Y: out.AtVec(1) / w, Z: out.AtVec(2) / w}
}

// ColumnMajor flattens a 4x4 matrix in the column-major float32 layout GPU
// uniform uploads expect.
func ColumnMajor(m mat.Matrix) [16]float32 {
	var out [16]float32
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			out[c*4+r] = float32(m.At(r, c))
		}
	}
	return out
}
