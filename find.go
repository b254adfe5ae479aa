package karma

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/multierr"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/plan"
)

// pixelWindow accumulates tool-tip observations over one convergence
// window.
type pixelWindow struct {
	start time.Time
	sum   r2.Point
	count int
}

func (w *pixelWindow) add(px r2.Point) {
	w.sum = w.sum.Add(px)
	w.count++
}

func (w *pixelWindow) reset(now time.Time) {
	*w = pixelWindow{start: now}
}

// converged reports whether the mean vertical pixel sits within tolerance
// of target with more than minSamples observations.
func (w *pixelWindow) converged(cfg ExploreConfig) bool {
	if w.count <= cfg.MinSamples {
		return false
	}
	meanV := w.sum.Y / float64(w.count)
	return math.Abs(meanV-cfg.PixelTarget) < cfg.PixelTolerance
}

// FindToolTip moves arm through the exploration viewpoints while the gaze
// tracks the tool tip seen by eye, feeding the solver, and returns the
// solver's estimate of the tip in the hand frame.
func (r *Robot) FindToolTip(ctx context.Context, a plan.Arm, eye endpoint.Eye) (out Outcome, err error) {
	if r.gaze == nil || r.feed == nil || r.solver == nil {
		return Outcome{}, fmt.Errorf("tool exploration needs gaze, pixel feed and solver: %w", ErrInvalidParameter)
	}
	ctx, release, err := r.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	out = Outcome{Arm: a}
	gazeToken, err := r.gaze.StoreContext(ctx)
	if err != nil {
		return finish(out, r.abort(ctx, "store gaze context", err))
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if rerr := r.gaze.RestoreContext(cleanupCtx, gazeToken); rerr != nil {
			err = multierr.Append(err, fault("restore gaze context", rerr))
		}
		if derr := r.gaze.DeleteContext(cleanupCtx, gazeToken); derr != nil {
			err = multierr.Append(err, fault("delete gaze context", derr))
		}
	}()

	r.logger.Infof("exploring tool tip with %s arm, %s eye", a, eye)
	err = r.withArmContext(ctx, a, endpoint.Tweaks{}, endpoint.AllDOF(r.cfg.DOF, 0, 1),
		func(ctx context.Context, ctrl endpoint.Motion) error {
			if err := r.solver.Clear(ctx); err != nil {
				return r.abort(ctx, "clear solver", err)
			}
			if err := r.solver.Select(ctx, a.String(), eye); err != nil {
				return r.abort(ctx, "select solver", err)
			}
			for _, step := range ExplorationScript(a) {
				if r.cancelled(ctx) {
					return errCancelled
				}
				if err := r.explore(ctx, a, eye, ctrl, gazeToken, step); err != nil {
					return err
				}
			}
			if r.cancelled(ctx) {
				return errCancelled
			}
			tip, err := r.solver.Find(ctx)
			if err != nil {
				return r.abort(ctx, "find tool tip", err)
			}
			out.ToolTip = tip
			r.logger.Infof("tool tip estimate %v", tip)
			return nil
		})
	return finish(out, err)
}

// explore visits one viewpoint: fixate, move, shake the wrist, wait for
// the gaze to lock on the tip and collect the step's quota of samples.
func (r *Robot) explore(
	ctx context.Context,
	a plan.Arm,
	eye endpoint.Eye,
	ctrl endpoint.Motion,
	gazeToken endpoint.ContextToken,
	step ExplorationStep,
) (err error) {
	cfg := r.cfg.Explore
	r.logger.Infof("%s: %v, quota %d", step.Name, step.Pose, step.Quota)

	if err := r.gaze.RestoreContext(ctx, gazeToken); err != nil {
		return r.abort(ctx, "reset gaze", err)
	}
	if err := r.gaze.SetTrackingMode(ctx, true); err != nil {
		return r.abort(ctx, "gaze tracking", err)
	}
	if err := r.gaze.LookAtPoint(ctx, step.Fixation()); err != nil {
		return r.abort(ctx, "gaze fixation", err)
	}
	if err := ctrl.GoToPose(ctx, step.Pose, cfg.MoveTime); err != nil {
		return r.abort(ctx, step.Name, err)
	}
	done, err := ctrl.WaitMotionDone(ctx, r.cfg.WaitPoll, cfg.MoveTimeout)
	if r.cancelled(ctx) {
		return errCancelled
	}
	if err != nil {
		return r.abort(ctx, step.Name, err)
	}
	if !done {
		return fmt.Errorf("%s: %w: motion not done after %v", step.Name, ErrEndpointFault, cfg.MoveTimeout)
	}

	if err := r.gaze.SetSaccades(ctx, false); err != nil {
		return r.abort(ctx, "gaze saccades", err)
	}
	if err := r.gaze.SetTrajTimes(ctx, cfg.NeckTime, cfg.EyesTime); err != nil {
		return r.abort(ctx, "gaze trajectory times", err)
	}

	stop := r.startShaking(ctx, r.wrists[a][step.WristJoint])
	defer func() {
		if serr := stop(); serr != nil {
			err = multierr.Append(err, fault("stop wrist", serr))
		}
	}()

	converged, err := r.converge(ctx, eye)
	if err != nil {
		return err
	}
	if !converged {
		return errCancelled
	}
	return r.collect(ctx, eye, step.Quota)
}

// forwardPixel hands a fresh observation to the gaze, shifted down by the
// configured offset.
func (r *Robot) forwardPixel(ctx context.Context, eye endpoint.Eye) (r2.Point, bool, error) {
	px, ok, err := r.feed.Latest(ctx)
	if err != nil {
		return px, false, r.abort(ctx, "read pixel feed", err)
	}
	if !ok {
		return px, false, nil
	}
	px.Y += r.cfg.Explore.PixelVOffset
	if err := r.gaze.LookAtPixel(ctx, eye, px); err != nil {
		return px, false, r.abort(ctx, "look at pixel", err)
	}
	return px, true, nil
}

// converge tracks the tip until the gaze holds it near the target row
// for a whole window. It has no timeout; it returns false only when the
// action is cancelled.
func (r *Robot) converge(ctx context.Context, eye endpoint.Eye) (bool, error) {
	cfg := r.cfg.Explore
	ticker := r.clock.Ticker(cfg.Tick)
	defer ticker.Stop()

	var win pixelWindow
	win.reset(r.clock.Now())
	for {
		if r.cancelled(ctx) {
			return false, nil
		}
		px, ok, err := r.forwardPixel(ctx, eye)
		if err != nil {
			if r.cancelled(ctx) {
				return false, nil
			}
			return false, err
		}
		if ok {
			win.add(px)
		}
		if now := r.clock.Now(); now.Sub(win.start) >= cfg.Window {
			if win.converged(cfg) {
				r.logger.Debugf("gaze converged on %d samples", win.count)
				return true, nil
			}
			r.logger.Debugf("gaze not converged (%d samples), restarting window", win.count)
			win.reset(now)
		}
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

// collect enables the solver and waits until it gathered quota new
// samples, keeping the gaze on the tip.
func (r *Robot) collect(ctx context.Context, eye endpoint.Eye, quota int) (err error) {
	if err := r.solver.Enable(ctx); err != nil {
		return r.abort(ctx, "enable solver", err)
	}
	defer func() {
		if derr := r.solver.Disable(context.WithoutCancel(ctx)); derr != nil {
			err = multierr.Append(err, fault("disable solver", derr))
		}
	}()

	base, err := r.solver.Count(ctx)
	if err != nil {
		return r.abort(ctx, "count solver samples", err)
	}
	ticker := r.clock.Ticker(r.cfg.Explore.QuotaPoll)
	defer ticker.Stop()
	for {
		n, err := r.solver.Count(ctx)
		if err != nil {
			return r.abort(ctx, "count solver samples", err)
		}
		if n >= base+quota {
			r.logger.Debugf("collected %d samples", n-base)
			return nil
		}
		if _, _, err := r.forwardPixel(ctx, eye); err != nil {
			return err
		}
		if r.cancelled(ctx) {
			return errCancelled
		}
		select {
		case <-ctx.Done():
			return errCancelled
		case <-ticker.C:
		}
	}
}
