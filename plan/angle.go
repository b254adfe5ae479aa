package plan

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/utils"

	"github.com/lorejam/karma/frames"
)

// NormalizeDegrees wraps theta into (-180, 180].
func NormalizeDegrees(theta float64) float64 {
	t := math.Mod(theta, 360)
	switch {
	case t > 180:
		t -= 360
	case t <= -180:
		t += 360
	}
	return t
}

// sincos returns the sine and cosine of an angle in degrees.
func sincos(deg float64) (float64, float64) {
	return math.Sincos(utils.DegToRad(deg))
}

// baseFrame is the object frame centred at c: x rightward, y forward,
// z upward, i.e. the root frame rotated 90° about z.
func baseFrame(c r3.Vector) frames.Transform {
	return frames.New([3][3]float64{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}, c)
}

// handBase is HR, the hand orientation every pose-mode rotation starts
// from: palm facing down, fingers pointing away from the torso.
var handBase = [3][3]float64{
	{-1, 0, 0},
	{0, 0, -1},
	{0, -1, 0},
}

// aboutDownAxis is a rotation by rad about -z.
func aboutDownAxis(rad float64) frames.Transform {
	return frames.RotationAboutAxis(r3.Vector{Z: -1}, rad)
}
