package plan

import (
	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/frames"
)

type handKey struct {
	arm  Arm
	pose HandPose
}

// handRotations holds the (fi, psi) pair, in degrees, for every arm and
// hand pose. The approach angle does not change the entry.
var handRotations = map[handKey][2]float64{
	{Right, Legacy}:    {0, 0},
	{Left, Legacy}:     {0, 0},
	{Right, Neutral}:   {0, -50},
	{Left, Neutral}:    {0, -50},
	{Right, Pronation}: {120, -30},
	{Left, Pronation}:  {-120, -30},
}

// HandRotation returns the roll (fi) and yaw (psi) offsets, in degrees,
// applied on top of the base hand orientation.
func HandRotation(arm Arm, pose HandPose) (fi, psi float64) {
	e := handRotations[handKey{arm, pose}]
	return e[0], e[1]
}

// HandOrientation returns HR·Ax(fi)·Az(psi) for the table entry of arm and
// pose, as a pure rotation.
func HandOrientation(arm Arm, pose HandPose) frames.Transform {
	fi, psi := HandRotation(arm, pose)
	sf, cf := sincos(fi)
	sp, cp := sincos(psi)
	ax := frames.New([3][3]float64{
		{1, 0, 0},
		{0, cf, sf},
		{0, -sf, cf},
	}, r3.Vector{})
	az := frames.New([3][3]float64{
		{cp, sp, 0},
		{-sp, cp, 0},
		{0, 0, 1},
	}, r3.Vector{})
	return frames.Compose(frames.New(handBase, r3.Vector{}), ax, az)
}
