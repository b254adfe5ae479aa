package plan

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/frames"
)

// DrawWaypoints are the world-frame hand targets of a draw, tool applied.
// Reach is where the hand lands on the object, Pull is where it ends after
// dragging the object back.
type DrawWaypoints struct {
	Reach frames.Pose
	Pull  frames.Pose
	// SagittalY is the lateral coordinate of the reach point on the
	// sagittal plane, before the lateral shift and the tool.
	SagittalY float64
}

// PlanDraw plans a draw on the sagittal projection of centroid, then moves
// both waypoints back to the real lateral offset. Pose modes measure theta
// from the forward axis (theta-90) and skip the corrective yaw.
func PlanDraw(mode HandPose, arm Arm, centroid r3.Vector, theta, radius, pull float64, tool frames.Transform) DrawWaypoints {
	sagittal := centroid
	sagittal.Y = 0

	angle := theta
	if mode != Legacy {
		angle = theta - 90
	}
	s, c := sincos(angle)

	reach := frames.Compose(baseFrame(sagittal), frames.Translation(r3.Vector{X: radius * c, Y: radius * s}))
	end := frames.Compose(reach, frames.Translation(r3.Vector{Y: -pull}))
	sagittalY := reach.Position().Y

	rot := HandOrientation(arm, mode).Rotation()
	reach = reach.WithRotation(rot)
	end = end.WithRotation(rot)

	if centroid.Y != 0 {
		var yaw float64
		if mode == Legacy {
			yaw = math.Atan2(centroid.Y, math.Abs(centroid.X))
		}
		reach = reproject(reach, yaw, centroid.Y)
		end = reproject(end, yaw, centroid.Y)
	}

	invTool := frames.Invert(tool)
	return DrawWaypoints{
		Reach:     frames.ToAxisAngle(frames.Compose(reach, invTool)),
		Pull:      frames.ToAxisAngle(frames.Compose(end, invTool)),
		SagittalY: sagittalY,
	}
}

// reproject shifts h laterally by dy and yaws its orientation by rad about
// -z, keeping the shifted position.
func reproject(h frames.Transform, rad, dy float64) frames.Transform {
	p := h.Position()
	p.Y += dy
	return frames.Compose(aboutDownAxis(rad).WithPosition(p), h.WithPosition(r3.Vector{}))
}
