package karma

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/frames"
	"github.com/lorejam/karma/plan"
)

const (
	drawApproachLift = 0.05
	// torsoClearance is the distance from the origin under which a
	// simulated draw counts as colliding with the body.
	torsoClearance = 0.15
	torsoPenalty   = 10.0
)

// DrawRequest asks to pull the object at Centroid back by Pull metres,
// reaching it Radius away along Theta (degrees).
type DrawRequest struct {
	Centroid r3.Vector
	Theta    float64
	Radius   float64
	Pull     float64
	Hand     plan.HandPose
	Arm      plan.ArmHint
	// Simulate only asks the controller and reports Outcome.Quality.
	Simulate bool
}

// Validate checks the request before anything moves.
func (req DrawRequest) Validate() error {
	if err := validateTarget(req.Centroid, req.Theta, req.Radius); err != nil {
		return err
	}
	if math.IsNaN(req.Pull) || math.IsInf(req.Pull, 0) {
		return invalidf("pull distance must be finite")
	}
	return nil
}

// DrawQuality scores how far the controller's answers got and reached
// are from the planned waypoints. Either answer ending near the torso
// adds a fixed penalty.
func DrawQuality(want plan.DrawWaypoints, reach, pull frames.Pose) float64 {
	q := frames.PositionError(want.Reach, reach) + frames.OrientationError(want.Reach, reach) +
		frames.PositionError(want.Pull, pull) + frames.OrientationError(want.Pull, pull)
	if reach.Position.Norm() < torsoClearance || pull.Position.Norm() < torsoClearance {
		q += torsoPenalty
	}
	return q
}

// DrawSegments times a draw. pull is the duration of the dragging
// segment.
func DrawSegments(wp plan.DrawWaypoints, pull time.Duration) []Segment {
	return []Segment{
		{Name: "draw approach", Pose: wp.Reach.Offset(r3.Vector{Z: drawApproachLift}), Duration: 2 * time.Second, Timeout: 5 * time.Second},
		{Name: "draw reach", Pose: wp.Reach, Duration: 1500 * time.Millisecond, Timeout: 5 * time.Second},
		{Name: "draw pull", Pose: wp.Pull, Duration: pull, Timeout: 5 * time.Second},
	}
}

// Draw plans a draw and either executes it or, with Simulate, scores it.
func (r *Robot) Draw(ctx context.Context, req DrawRequest) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}
	ctx, release, err := r.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	tool := r.tool.Snapshot()
	hint := resolveHint(req.Arm, tool.Hint)

	var (
		a        plan.Arm
		wp       plan.DrawWaypoints
		pullTime = r.cfg.MovTime
		elbow    bool
	)
	if req.Hand == plan.Legacy {
		// The legacy orientation is the same for both arms.
		wp = plan.PlanDraw(plan.Legacy, plan.Right, req.Centroid, req.Theta, req.Radius, req.Pull, tool.Frame)
		a = plan.SelectArm(wp.SagittalY, hint)
		pullTime = 3500 * time.Millisecond
		elbow = true
	} else {
		a = plan.SelectArm(req.Centroid.Y, hint)
		wp = plan.PlanDraw(req.Hand, a, req.Centroid, req.Theta, req.Radius, req.Pull, tool.Frame)
	}
	r.logger.Infof("draw (%s, simulate %t) with %s arm: centroid %v theta %.1f radius %.3f pull %.3f",
		req.Hand, req.Simulate, a, req.Centroid, req.Theta, req.Radius, req.Pull)

	out := Outcome{Arm: a}
	err = r.withArmContext(ctx, a, r.tweaks(drawStraightness, elbow), endpoint.AllDOF(r.cfg.DOF, 1),
		func(ctx context.Context, ctrl endpoint.Motion) error {
			if !req.Simulate {
				return r.runSegments(ctx, ctrl, DrawSegments(wp, pullTime), &out)
			}
			reach, err := r.askDraw(ctx, ctrl, wp.Reach)
			if err != nil {
				return err
			}
			pull, err := r.askDraw(ctx, ctrl, wp.Pull)
			if err != nil {
				return err
			}
			out.Quality = DrawQuality(wp, reach, pull)
			r.logger.Infof("simulated draw quality %.4f", out.Quality)
			return nil
		})
	return finish(out, err)
}

// askDraw asks for target; an unreachable answer still carries the pose
// the controller would settle on.
func (r *Robot) askDraw(ctx context.Context, ctrl endpoint.Motion, target frames.Pose) (frames.Pose, error) {
	if r.cancelled(ctx) {
		return frames.Pose{}, errCancelled
	}
	got, err := ctrl.AskPose(ctx, target)
	if err != nil && !errors.Is(err, endpoint.ErrUnreachable) {
		return frames.Pose{}, r.abort(ctx, "ask draw pose", err)
	}
	return got, nil
}
