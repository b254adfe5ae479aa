package karma

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/plan"
)

// PushRequest asks to push the object at Centroid starting Radius away
// from it along Theta (degrees).
type PushRequest struct {
	Centroid r3.Vector
	Theta    float64
	Radius   float64
	Hand     plan.HandPose
	Arm      plan.ArmHint
}

func validateTarget(centroid r3.Vector, theta, radius float64) error {
	for _, v := range []float64{centroid.X, centroid.Y, centroid.Z, theta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidf("centroid and theta must be finite")
		}
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return invalidf("radius must be positive, got %v", radius)
	}
	return nil
}

// Validate checks the request before anything moves.
func (req PushRequest) Validate() error {
	return validateTarget(req.Centroid, req.Theta, req.Radius)
}

// resolveHint prefers the request's arm over the arm holding the tool.
func resolveHint(req, tool plan.ArmHint) plan.ArmHint {
	if req != plan.Auto {
		return req
	}
	return tool
}

// PushSegments times a push path. contact is the duration of the sliding
// segment.
func PushSegments(path plan.PushPath, contact time.Duration) []Segment {
	return []Segment{
		{Name: "push approach", Pose: path.Approach, Duration: time.Second, Timeout: 4 * time.Second},
		{Name: "push start", Pose: path.Start, Duration: time.Second, Timeout: 4 * time.Second},
		{Name: "push contact", Pose: path.Contact, Duration: contact, Timeout: 3 * time.Second},
		{Name: "push retreat", Pose: path.Retreat, Duration: time.Second, Timeout: 2 * time.Second},
	}
}

func (r *Robot) pushMask() endpoint.DofMask {
	return endpoint.AllDOF(r.cfg.DOF, 1)
}

// Push plans and executes a push. Legacy pushes pick between the inward
// and outward candidates with the arm's controller; pose-mode pushes follow
// the hand-rotation table directly.
func (r *Robot) Push(ctx context.Context, req PushRequest) (Outcome, error) {
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

	if req.Hand != plan.Legacy {
		a := plan.SelectArm(req.Centroid.Y, hint)
		path := plan.PlanPosePush(req.Hand, a, req.Centroid, req.Theta, req.Radius, tool.Frame)
		r.logger.Infof("push (%s) with %s arm: centroid %v theta %.1f radius %.3f",
			req.Hand, a, req.Centroid, req.Theta, req.Radius)
		return r.executePush(ctx, a, PushSegments(path, r.cfg.MovTime), r.tweaks(pushStraightness, false))
	}

	cands := plan.PlanPush(req.Centroid, req.Theta, req.Radius, tool.Frame)
	a := plan.SelectArm(cands.Inward.Position().Y, hint)
	r.logger.Infof("push with %s arm: centroid %v theta %.1f radius %.3f", a, req.Centroid, req.Theta, req.Radius)

	out := Outcome{Arm: a}
	err = r.withArmContext(ctx, a, r.tweaks(pushStraightness, true), r.pushMask(),
		func(ctx context.Context, ctrl endpoint.Motion) error {
			if r.cancelled(ctx) {
				return errCancelled
			}
			choice, err := plan.ChooseCandidate(ctx, cands, a, ctrl)
			if err != nil {
				return r.abort(ctx, "choose push candidate", err)
			}
			out.Choice = &choice
			r.logger.Infof("push candidate %s (forced %t, epsilon %t, residuals %v)",
				choice.Candidate, choice.Forced, choice.UsedEpsilon, choice.Residuals)

			path := plan.PushMotion(choice.Transform, req.Centroid, tool.Frame)
			contact := plan.TrajectoryTime(req.Theta, req.Radius, tool.Attached())
			return r.runSegments(ctx, ctrl, PushSegments(path, contact), &out)
		})
	return finish(out, err)
}

// ExecutePush runs already planned push segments on arm inside a scoped
// controller context.
func (r *Robot) ExecutePush(ctx context.Context, a plan.Arm, segs []Segment) (Outcome, error) {
	ctx, release, err := r.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer release()
	return r.executePush(ctx, a, segs, r.tweaks(pushStraightness, false))
}

func (r *Robot) executePush(ctx context.Context, a plan.Arm, segs []Segment, tweaks endpoint.Tweaks) (Outcome, error) {
	out := Outcome{Arm: a}
	err := r.withArmContext(ctx, a, tweaks, r.pushMask(), func(ctx context.Context, ctrl endpoint.Motion) error {
		return r.runSegments(ctx, ctrl, segs, &out)
	})
	return finish(out, err)
}
