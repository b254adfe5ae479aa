package karma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/frames"
	"github.com/lorejam/karma/plan"
)

// withDeadline runs f under a context that expires after d. A call that
// outlives d while ctx is still live is an endpoint fault.
func withDeadline[T any](ctx context.Context, d time.Duration, op string, f func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	v, err := f(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return v, fmt.Errorf("%s: %w: no answer within %v", op, ErrEndpointFault, d)
	}
	return v, err
}

func withDeadlineErr(ctx context.Context, d time.Duration, op string, f func(context.Context) error) error {
	_, err := withDeadline(ctx, d, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	})
	return err
}

type boundedMotion struct {
	inner   endpoint.Motion
	timeout time.Duration
}

func (m boundedMotion) StoreContext(ctx context.Context) (endpoint.ContextToken, error) {
	return withDeadline(ctx, m.timeout, "store context", m.inner.StoreContext)
}

func (m boundedMotion) RestoreContext(ctx context.Context, token endpoint.ContextToken) error {
	return withDeadlineErr(ctx, m.timeout, "restore context", func(ctx context.Context) error {
		return m.inner.RestoreContext(ctx, token)
	})
}

func (m boundedMotion) DeleteContext(ctx context.Context, token endpoint.ContextToken) error {
	return withDeadlineErr(ctx, m.timeout, "delete context", func(ctx context.Context) error {
		return m.inner.DeleteContext(ctx, token)
	})
}

func (m boundedMotion) SetTweaks(ctx context.Context, tweaks endpoint.Tweaks) error {
	return withDeadlineErr(ctx, m.timeout, "set tweaks", func(ctx context.Context) error {
		return m.inner.SetTweaks(ctx, tweaks)
	})
}

func (m boundedMotion) SetDOF(ctx context.Context, mask endpoint.DofMask) error {
	return withDeadlineErr(ctx, m.timeout, "set dof", func(ctx context.Context) error {
		return m.inner.SetDOF(ctx, mask)
	})
}

func (m boundedMotion) AskPose(ctx context.Context, target frames.Pose) (frames.Pose, error) {
	return withDeadline(ctx, m.timeout, "ask pose", func(ctx context.Context) (frames.Pose, error) {
		return m.inner.AskPose(ctx, target)
	})
}

func (m boundedMotion) GoToPose(ctx context.Context, target frames.Pose, d time.Duration) error {
	return withDeadlineErr(ctx, m.timeout, "go to pose", func(ctx context.Context) error {
		return m.inner.GoToPose(ctx, target, d)
	})
}

// WaitMotionDone gets the wait's own timeout on top of the call timeout.
func (m boundedMotion) WaitMotionDone(ctx context.Context, poll, timeout time.Duration) (bool, error) {
	return withDeadline(ctx, timeout+m.timeout, "wait motion done", func(ctx context.Context) (bool, error) {
		return m.inner.WaitMotionDone(ctx, poll, timeout)
	})
}

func (m boundedMotion) Stop(ctx context.Context) error {
	return withDeadlineErr(ctx, m.timeout, "stop", m.inner.Stop)
}

type boundedGaze struct {
	inner   endpoint.Gaze
	timeout time.Duration
}

func (g boundedGaze) StoreContext(ctx context.Context) (endpoint.ContextToken, error) {
	return withDeadline(ctx, g.timeout, "gaze store context", g.inner.StoreContext)
}

func (g boundedGaze) RestoreContext(ctx context.Context, token endpoint.ContextToken) error {
	return withDeadlineErr(ctx, g.timeout, "gaze restore context", func(ctx context.Context) error {
		return g.inner.RestoreContext(ctx, token)
	})
}

func (g boundedGaze) DeleteContext(ctx context.Context, token endpoint.ContextToken) error {
	return withDeadlineErr(ctx, g.timeout, "gaze delete context", func(ctx context.Context) error {
		return g.inner.DeleteContext(ctx, token)
	})
}

func (g boundedGaze) SetTrackingMode(ctx context.Context, on bool) error {
	return withDeadlineErr(ctx, g.timeout, "gaze tracking", func(ctx context.Context) error {
		return g.inner.SetTrackingMode(ctx, on)
	})
}

func (g boundedGaze) LookAtPoint(ctx context.Context, p r3.Vector) error {
	return withDeadlineErr(ctx, g.timeout, "look at point", func(ctx context.Context) error {
		return g.inner.LookAtPoint(ctx, p)
	})
}

func (g boundedGaze) LookAtPixel(ctx context.Context, eye endpoint.Eye, px r2.Point) error {
	return withDeadlineErr(ctx, g.timeout, "look at pixel", func(ctx context.Context) error {
		return g.inner.LookAtPixel(ctx, eye, px)
	})
}

func (g boundedGaze) SetSaccades(ctx context.Context, on bool) error {
	return withDeadlineErr(ctx, g.timeout, "gaze saccades", func(ctx context.Context) error {
		return g.inner.SetSaccades(ctx, on)
	})
}

func (g boundedGaze) SetTrajTimes(ctx context.Context, neck, eyes time.Duration) error {
	return withDeadlineErr(ctx, g.timeout, "gaze trajectory times", func(ctx context.Context) error {
		return g.inner.SetTrajTimes(ctx, neck, eyes)
	})
}

func (g boundedGaze) Stop(ctx context.Context) error {
	return withDeadlineErr(ctx, g.timeout, "gaze stop", g.inner.Stop)
}

type boundedFeed struct {
	inner   endpoint.PixelFeed
	timeout time.Duration
}

type pixelSample struct {
	px r2.Point
	ok bool
}

func (f boundedFeed) Latest(ctx context.Context) (r2.Point, bool, error) {
	s, err := withDeadline(ctx, f.timeout, "pixel feed", func(ctx context.Context) (pixelSample, error) {
		px, ok, err := f.inner.Latest(ctx)
		return pixelSample{px, ok}, err
	})
	return s.px, s.ok, err
}

type boundedSolver struct {
	inner   endpoint.ToolSolver
	timeout time.Duration
}

func (s boundedSolver) Clear(ctx context.Context) error {
	return withDeadlineErr(ctx, s.timeout, "solver clear", s.inner.Clear)
}

func (s boundedSolver) Select(ctx context.Context, arm string, eye endpoint.Eye) error {
	return withDeadlineErr(ctx, s.timeout, "solver select", func(ctx context.Context) error {
		return s.inner.Select(ctx, arm, eye)
	})
}

func (s boundedSolver) Enable(ctx context.Context) error {
	return withDeadlineErr(ctx, s.timeout, "solver enable", s.inner.Enable)
}

func (s boundedSolver) Disable(ctx context.Context) error {
	return withDeadlineErr(ctx, s.timeout, "solver disable", s.inner.Disable)
}

func (s boundedSolver) Count(ctx context.Context) (int, error) {
	return withDeadline(ctx, s.timeout, "solver count", s.inner.Count)
}

func (s boundedSolver) Find(ctx context.Context) (r3.Vector, error) {
	return withDeadline(ctx, s.timeout, "solver find", s.inner.Find)
}

type boundedWrist struct {
	inner   endpoint.Wrist
	timeout time.Duration
}

func (w boundedWrist) Position(ctx context.Context) (float64, error) {
	return withDeadline(ctx, w.timeout, "wrist position", w.inner.Position)
}

func (w boundedWrist) SetVelocity(ctx context.Context, degPerSec float64) error {
	return withDeadlineErr(ctx, w.timeout, "wrist velocity", func(ctx context.Context) error {
		return w.inner.SetVelocity(ctx, degPerSec)
	})
}

func (w boundedWrist) Stop(ctx context.Context) error {
	return withDeadlineErr(ctx, w.timeout, "wrist stop", w.inner.Stop)
}

// bound puts every collaborator in eps behind timeout. Missing optional
// collaborators stay nil.
func bound(eps Endpoints, timeout time.Duration) Endpoints {
	out := Endpoints{
		Arms:   make(map[plan.Arm]endpoint.Motion, len(eps.Arms)),
		Wrists: make(map[plan.Arm]map[int]endpoint.Wrist, len(eps.Wrists)),
	}
	for a, m := range eps.Arms {
		if m != nil {
			out.Arms[a] = boundedMotion{inner: m, timeout: timeout}
		}
	}
	for a, joints := range eps.Wrists {
		out.Wrists[a] = make(map[int]endpoint.Wrist, len(joints))
		for j, w := range joints {
			if w != nil {
				out.Wrists[a][j] = boundedWrist{inner: w, timeout: timeout}
			}
		}
	}
	if eps.Gaze != nil {
		out.Gaze = boundedGaze{inner: eps.Gaze, timeout: timeout}
	}
	if eps.Feed != nil {
		out.Feed = boundedFeed{inner: eps.Feed, timeout: timeout}
	}
	if eps.Solver != nil {
		out.Solver = boundedSolver{inner: eps.Solver, timeout: timeout}
	}
	return out
}
