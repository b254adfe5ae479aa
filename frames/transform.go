// Package frames implements rigid-body homogeneous transforms: composition,
// closed-form inversion and axis-angle conversion.
//
// All lengths are metres. Conversion to the RDK's millimetre poses happens
// only at the endpoint boundary through Pose.Spatial and FromSpatial.
package frames

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Transform is a 4x4 homogeneous transform stored row-major. The top-left
// 3x3 block is a rotation, the top-right column a translation and the
// bottom row is (0, 0, 0, 1).
type Transform [16]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// New builds a transform from a row-major rotation block and a translation.
// Callers are responsible for supplying an orthonormal rotation.
func New(rot [3][3]float64, pos r3.Vector) Transform {
	t := Identity()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t[4*r+c] = rot[r][c]
		}
	}
	return t.WithPosition(pos)
}

// Translation returns a pure translation by v.
func Translation(v r3.Vector) Transform {
	return Identity().WithPosition(v)
}

// At returns the element at the given row and column.
func (t Transform) At(r, c int) float64 {
	return t[4*r+c]
}

// Rotation returns the rotation block.
func (t Transform) Rotation() [3][3]float64 {
	var rot [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rot[r][c] = t[4*r+c]
		}
	}
	return rot
}

// Position returns the translation column.
func (t Transform) Position() r3.Vector {
	return r3.Vector{X: t[3], Y: t[7], Z: t[11]}
}

// WithPosition returns a copy of t whose translation is replaced by p.
func (t Transform) WithPosition(p r3.Vector) Transform {
	t[3], t[7], t[11] = p.X, p.Y, p.Z
	return t
}

// WithRotation returns a copy of t whose rotation block is replaced by rot.
func (t Transform) WithRotation(rot [3][3]float64) Transform {
	return New(rot, t.Position())
}

// Axis returns column c of the rotation block, i.e. the direction of the
// local x (0), y (1) or z (2) axis expressed in the parent frame.
func (t Transform) Axis(c int) r3.Vector {
	return r3.Vector{X: t[c], Y: t[4+c], Z: t[8+c]}
}

// Apply maps a point from the local frame into the parent frame.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

func (t Transform) String() string {
	p := t.Position()
	return fmt.Sprintf("[x=(%.3f %.3f %.3f) ex=%v ey=%v ez=%v]", p.X, p.Y, p.Z, t.Axis(0), t.Axis(1), t.Axis(2))
}

func (t Transform) dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, t[:])
	return mat.NewDense(4, 4, data)
}

func fromDense(m mat.Matrix) Transform {
	var t Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			t[4*r+c] = m.At(r, c)
		}
	}
	return t
}

// Compose returns the left-to-right matrix product ts[0]·ts[1]·…·ts[n-1].
// Composing nothing yields the identity.
func Compose(ts ...Transform) Transform {
	if len(ts) == 0 {
		return Identity()
	}
	acc := ts[0].dense()
	for _, t := range ts[1:] {
		var prod mat.Dense
		prod.Mul(acc, t.dense())
		acc = &prod
	}
	return fromDense(acc)
}

// Invert returns the rigid-body inverse (Rᵀ, −Rᵀt).
func Invert(t Transform) Transform {
	out := Identity()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[4*r+c] = t[4*c+r]
		}
	}
	p := t.Position()
	for r := 0; r < 3; r++ {
		out[4*r+3] = -(out[4*r]*p.X + out[4*r+1]*p.Y + out[4*r+2]*p.Z)
	}
	return out
}

// Residual is the Frobenius norm of a−b. It mixes translation (metres) and
// rotation (unitless) error and is used to rank how well an endpoint
// reached a requested pose.
func Residual(a, b Transform) float64 {
	var diff mat.Dense
	diff.Sub(a.dense(), b.dense())
	return mat.Norm(&diff, 2)
}
