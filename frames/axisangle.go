package frames

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/spatialmath"
)

const (
	// below this norm of the skew part the rotation angle is 0 or π and the
	// axis must be recovered from the symmetric part.
	skewTolerance = 1e-9

	metresToMm = 1000.0
)

// Pose is a position in metres plus an axis-angle orientation.
type Pose struct {
	Position    r3.Vector
	Orientation spatialmath.R4AA
}

// NewPose builds a pose, normalizing the axis. A zero axis yields the
// identity orientation.
func NewPose(pos, axis r3.Vector, angle float64) Pose {
	n := axis.Norm()
	if n == 0 {
		return Pose{Position: pos, Orientation: spatialmath.R4AA{RZ: 1}}
	}
	return Pose{
		Position:    pos,
		Orientation: spatialmath.R4AA{Theta: angle, RX: axis.X / n, RY: axis.Y / n, RZ: axis.Z / n},
	}
}

// Axis returns the orientation axis.
func (p Pose) Axis() r3.Vector {
	return r3.Vector{X: p.Orientation.RX, Y: p.Orientation.RY, Z: p.Orientation.RZ}
}

// Transform is shorthand for FromAxisAngle(p).
func (p Pose) Transform() Transform {
	return FromAxisAngle(p)
}

// Offset returns the pose translated by d, orientation unchanged.
func (p Pose) Offset(d r3.Vector) Pose {
	p.Position = p.Position.Add(d)
	return p
}

func (p Pose) String() string {
	o := p.Orientation
	return fmt.Sprintf("x=(%.3f %.3f %.3f) o=(%.3f %.3f %.3f %.3f)",
		p.Position.X, p.Position.Y, p.Position.Z, o.RX, o.RY, o.RZ, o.Theta)
}

// Spatial converts the pose to the RDK representation (millimetres).
func (p Pose) Spatial() spatialmath.Pose {
	o := p.Orientation
	if o.RX == 0 && o.RY == 0 && o.RZ == 0 {
		o = *spatialmath.NewR4AA()
	}
	return spatialmath.NewPose(p.Position.Mul(metresToMm), &o)
}

// FromSpatial converts an RDK pose (millimetres) into a Pose.
func FromSpatial(sp spatialmath.Pose) Pose {
	aa := sp.Orientation().AxisAngles()
	return NewPose(sp.Point().Mul(1/metresToMm), r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}, aa.Theta)
}

// PositionError is the Euclidean distance between the two positions.
func PositionError(a, b Pose) float64 {
	return a.Position.Sub(b.Position).Norm()
}

// OrientationError is the norm of the difference of the two orientations
// read as 4-vectors (axis, angle).
func OrientationError(a, b Pose) float64 {
	dx := a.Orientation.RX - b.Orientation.RX
	dy := a.Orientation.RY - b.Orientation.RY
	dz := a.Orientation.RZ - b.Orientation.RZ
	dt := a.Orientation.Theta - b.Orientation.Theta
	return math.Sqrt(dx*dx + dy*dy + dz*dz + dt*dt)
}

// RotationAboutAxis returns the rotation by angle radians about axis
// (Rodrigues' formula). A zero axis yields the identity.
func RotationAboutAxis(axis r3.Vector, angle float64) Transform {
	n := axis.Norm()
	if n == 0 {
		return Identity()
	}
	u := axis.Mul(1 / n)
	c, s := math.Cos(angle), math.Sin(angle)
	k := 1 - c
	rot := [3][3]float64{
		{c + u.X*u.X*k, u.X*u.Y*k - u.Z*s, u.X*u.Z*k + u.Y*s},
		{u.Y*u.X*k + u.Z*s, c + u.Y*u.Y*k, u.Y*u.Z*k - u.X*s},
		{u.Z*u.X*k - u.Y*s, u.Z*u.Y*k + u.X*s, c + u.Z*u.Z*k},
	}
	return New(rot, r3.Vector{})
}

// FromAxisAngle builds the transform of a pose.
func FromAxisAngle(p Pose) Transform {
	return RotationAboutAxis(p.Axis(), p.Orientation.Theta).WithPosition(p.Position)
}

// ToAxisAngle extracts position and axis-angle orientation from t. The
// angle lies in [0, π].
func ToAxisAngle(t Transform) Pose {
	rot := t.Rotation()
	v := r3.Vector{
		X: rot[2][1] - rot[1][2],
		Y: rot[0][2] - rot[2][0],
		Z: rot[1][0] - rot[0][1],
	}
	s := v.Norm()
	trace := rot[0][0] + rot[1][1] + rot[2][2]
	angle := math.Atan2(0.5*s, 0.5*(trace-1))

	switch {
	case s > skewTolerance:
		return NewPose(t.Position(), v, angle)
	case trace > 0:
		return NewPose(t.Position(), r3.Vector{Z: 1}, 0)
	default:
		return NewPose(t.Position(), halfTurnAxis(rot), math.Pi)
	}
}

// halfTurnAxis recovers the axis of a rotation by π, where R = 2aaᵀ − I.
func halfTurnAxis(rot [3][3]float64) r3.Vector {
	k := 0
	for i := 1; i < 3; i++ {
		if rot[i][i] > rot[k][k] {
			k = i
		}
	}
	var a [3]float64
	a[k] = math.Sqrt(math.Max(0, (rot[k][k]+1)/2))
	for j := 0; j < 3; j++ {
		if j != k {
			a[j] = (rot[k][j] + rot[j][k]) / (4 * a[k])
		}
	}
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}
