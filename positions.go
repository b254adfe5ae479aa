package karma

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rdk/utils"

	"github.com/lorejam/karma/frames"
	"github.com/lorejam/karma/plan"
)

// ExplorationStep is one viewpoint of the tool exploration: where the hand
// goes, where the gaze fixates first, which wrist joint shakes and how many
// solver samples to collect there.
type ExplorationStep struct {
	Name       string
	Pose       frames.Pose
	GazeOffset r3.Vector
	WristJoint int
	Quota      int
}

// Fixation is the point the gaze looks at before tracking the tip.
func (s ExplorationStep) Fixation() r3.Vector {
	return s.Pose.Position.Add(s.GazeOffset)
}

type axisTurn struct {
	axis r3.Vector
	deg  float64
}

// rightExploration holds the right-arm viewpoints, recorded in the root
// frame (metres). Turns apply right to left on top of the palm-down hand.
var rightExploration = []struct {
	position r3.Vector
	offset   r3.Vector
	turns    []axisTurn
	joint    int
	quota    int
}{
	{
		position: r3.Vector{X: -0.35},
		offset:   r3.Vector{Z: 0.1},
		turns:    []axisTurn{{axis: r3.Vector{X: -1}, deg: 0}},
		joint:    4, quota: 25,
	},
	{
		position: r3.Vector{X: -0.35, Y: 0.15},
		offset:   r3.Vector{Y: -0.1, Z: 0.1},
		turns:    []axisTurn{{axis: r3.Vector{X: -1}, deg: -30}},
		joint:    4, quota: 25,
	},
	{
		position: r3.Vector{X: -0.35, Y: 0.15, Z: 0.15},
		offset:   r3.Vector{Y: -0.2, Z: 0.1},
		turns:    []axisTurn{{axis: r3.Vector{X: -1}, deg: -20}},
		joint:    4, quota: 25,
	},
	{
		position: r3.Vector{X: -0.3, Y: 0.05, Z: -0.05},
		offset:   r3.Vector{Y: -0.2, Z: 0.1},
		turns:    []axisTurn{{axis: r3.Vector{X: -1}, deg: -10}},
		joint:    4, quota: 25,
	},
	{
		position: r3.Vector{X: -0.35, Y: 0.05, Z: 0.1},
		offset:   r3.Vector{Y: -0.1, Z: 0.1},
		turns:    []axisTurn{{axis: r3.Vector{X: -1}, deg: -45}},
		joint:    4, quota: 25,
	},
	{
		position: r3.Vector{X: -0.35, Y: 0.1},
		offset:   r3.Vector{Y: 0.05, Z: 0.1},
		turns: []axisTurn{
			{axis: r3.Vector{X: -1}, deg: 45},
			{axis: r3.Vector{Z: 1}, deg: 45},
		},
		joint: 6, quota: 50,
	},
}

// ExplorationScript returns the six viewpoints for arm. The left arm
// mirrors the right one across the sagittal plane.
func ExplorationScript(a plan.Arm) []ExplorationStep {
	palmDown := plan.HandOrientation(a, plan.Legacy)
	mirror := a == plan.Left

	steps := make([]ExplorationStep, 0, len(rightExploration))
	for i, p := range rightExploration {
		pos, offset := p.position, p.offset
		ts := make([]frames.Transform, 0, len(p.turns)+1)
		for _, t := range p.turns {
			deg := t.deg
			if mirror {
				deg = -deg
			}
			ts = append(ts, frames.RotationAboutAxis(t.axis, utils.DegToRad(deg)))
		}
		if mirror {
			pos.Y, offset.Y = -pos.Y, -offset.Y
		}
		orient := frames.Compose(append(ts, palmDown)...)
		steps = append(steps, ExplorationStep{
			Name:       "viewpoint " + string(rune('1'+i)),
			Pose:       frames.ToAxisAngle(orient.WithPosition(pos)),
			GazeOffset: offset,
			WristJoint: p.joint,
			Quota:      p.quota,
		})
	}
	return steps
}
