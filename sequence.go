package karma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"go.viam.com/rdk/spatialmath"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/frames"
	"github.com/lorejam/karma/plan"
)

const (
	pushStraightness = 10
	drawStraightness = 30
)

// Segment is one GoToPose followed by a bounded wait.
type Segment struct {
	Name     string
	Pose     frames.Pose
	Duration time.Duration
	Timeout  time.Duration
}

// Outcome reports what an action did. A cancelled action returns an
// Outcome with Cancelled set and a nil error.
type Outcome struct {
	Arm       plan.Arm
	Cancelled bool
	// Segments counts the segments that completed.
	Segments int
	// Quality is the simulated draw cost; lower is better.
	Quality float64
	// ToolTip is the solver's tip estimate after FindToolTip.
	ToolTip r3.Vector
	// Choice is set by legacy pushes.
	Choice *plan.Choice
}

func (r *Robot) tweaks(straightness float64, elbow bool) endpoint.Tweaks {
	t := endpoint.Tweaks{Straightness: straightness}
	if elbow && r.cfg.Elbow != nil {
		t.Elbow = &endpoint.ElbowTask{Height: r.cfg.Elbow.Height, Weight: r.cfg.Elbow.Weight}
	}
	return t
}

// withArmContext runs body between a store and a restore of arm's
// controller context. Cleanup runs on every exit path, even after ctx is
// cancelled, and its errors join body's.
func (r *Robot) withArmContext(
	ctx context.Context,
	a plan.Arm,
	tweaks endpoint.Tweaks,
	mask endpoint.DofMask,
	body func(ctx context.Context, ctrl endpoint.Motion) error,
) (err error) {
	ctrl := r.arms[a]
	token, err := ctrl.StoreContext(ctx)
	if err != nil {
		return r.abort(ctx, "store "+a.String()+" arm context", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if rerr := ctrl.RestoreContext(cleanupCtx, token); rerr != nil {
			err = multierr.Append(err, fault("restore "+a.String()+" arm context", rerr))
		}
		if derr := ctrl.DeleteContext(cleanupCtx, token); derr != nil {
			err = multierr.Append(err, fault("delete "+a.String()+" arm context", derr))
		}
	}()

	if err := ctrl.SetTweaks(ctx, tweaks); err != nil {
		return r.abort(ctx, "set tweaks", err)
	}
	if err := ctrl.SetDOF(ctx, mask); err != nil {
		return r.abort(ctx, "set dof", err)
	}
	return body(ctx, ctrl)
}

// abort reports errCancelled for a call cut short by Interrupt and an
// endpoint fault otherwise.
func (r *Robot) abort(ctx context.Context, op string, err error) error {
	if r.cancelled(ctx) {
		return errCancelled
	}
	return fault(op, err)
}

// runSegments executes segs in order, checking for cancellation before
// each one.
func (r *Robot) runSegments(ctx context.Context, ctrl endpoint.Motion, segs []Segment, out *Outcome) error {
	r.visualize(segs)
	for _, seg := range segs {
		if r.cancelled(ctx) {
			return errCancelled
		}
		r.logger.Debugf("%s: %v over %v", seg.Name, seg.Pose, seg.Duration)
		if err := ctrl.GoToPose(ctx, seg.Pose, seg.Duration); err != nil {
			return r.abort(ctx, seg.Name, err)
		}
		done, err := ctrl.WaitMotionDone(ctx, r.cfg.WaitPoll, seg.Timeout)
		if r.cancelled(ctx) {
			return errCancelled
		}
		if err != nil {
			return fault(seg.Name, err)
		}
		if !done {
			return fmt.Errorf("%s: %w: motion not done after %v", seg.Name, ErrEndpointFault, seg.Timeout)
		}
		out.Segments++
	}
	return nil
}

// finish turns the cancellation sentinel into an Outcome flag. Cleanup
// errors that came with it still surface.
func finish(out Outcome, err error) (Outcome, error) {
	if !errors.Is(err, errCancelled) {
		return out, err
	}
	out.Cancelled = true
	var rest error
	for _, e := range multierr.Errors(err) {
		if !errors.Is(e, errCancelled) {
			rest = multierr.Append(rest, e)
		}
	}
	return out, rest
}

var segmentColors = []string{"yellow", "blue", "red", "green"}

func (r *Robot) visualize(segs []Segment) {
	if !r.cfg.Visualize || r.drawPoses == nil {
		return
	}
	poses := make([]spatialmath.Pose, 0, len(segs))
	colors := make([]string, 0, len(segs))
	for i, seg := range segs {
		poses = append(poses, seg.Pose.Spatial())
		colors = append(colors, segmentColors[i%len(segmentColors)])
	}
	if err := r.drawPoses(poses, colors, true); err != nil {
		r.logger.Warnf("failed to draw waypoints: %v", err)
	}
}
