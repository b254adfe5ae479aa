package karma

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	viz "github.com/viam-labs/motion-tools/client/client"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/rdk/spatialmath"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/plan"
)

// Endpoints are the collaborators a Robot drives.
type Endpoints struct {
	Arms   map[plan.Arm]endpoint.Motion
	Wrists map[plan.Arm]map[int]endpoint.Wrist
	Gaze   endpoint.Gaze
	Feed   endpoint.PixelFeed
	Solver endpoint.ToolSolver
}

// Robot runs push, draw and tool exploration on a dual-arm machine. It
// runs one action at a time; Interrupt may be called from any goroutine.
type Robot struct {
	logger logging.Logger
	cfg    Config
	clock  clock.Clock

	arms   map[plan.Arm]endpoint.Motion
	wrists map[plan.Arm]map[int]endpoint.Wrist
	gaze   endpoint.Gaze
	feed   endpoint.PixelFeed
	solver endpoint.ToolSolver

	tool ToolState

	// action is held for the whole of an action.
	action      sync.Mutex
	interrupted atomic.Bool

	cancelMu     sync.Mutex
	cancelAction context.CancelFunc

	drawPoses func(poses []spatialmath.Pose, colors []string, arrowHeadAtPose bool) error
}

// Option customises a Robot.
type Option func(*Robot)

// WithClock replaces the wall clock used by the exploration loops.
func WithClock(c clock.Clock) Option {
	return func(r *Robot) { r.clock = c }
}

// New builds a Robot over already bound collaborators. Every call into
// them is bounded by cfg.CallTimeout.
func New(cfg Config, eps Endpoints, logger logging.Logger, opts ...Option) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, a := range plan.Arms {
		if eps.Arms[a] == nil {
			return nil, fmt.Errorf("%s arm controller: %w", a, ErrInvalidParameter)
		}
	}
	eps = bound(eps, cfg.CallTimeout)
	r := &Robot{
		logger:    logger,
		cfg:       cfg,
		clock:     clock.New(),
		arms:      eps.Arms,
		wrists:    eps.Wrists,
		gaze:      eps.Gaze,
		feed:      eps.Feed,
		solver:    eps.Solver,
		drawPoses: viz.DrawPoses,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewRobot looks up every collaborator on machine. Arms and the motion
// service are required; exploration resources are optional and
// FindToolTip fails without them.
func NewRobot(ctx context.Context, machine robot.Robot, cfg Config, logger logging.Logger) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	motionSvc, err := motion.FromProvider(machine, cfg.MotionService)
	if err != nil {
		return nil, fmt.Errorf("motion service: %w", err)
	}

	eps := Endpoints{
		Arms:   map[plan.Arm]endpoint.Motion{},
		Wrists: map[plan.Arm]map[int]endpoint.Wrist{},
	}
	for _, a := range plan.Arms {
		ac := cfg.ArmConfig(a)
		armRes, err := arm.FromProvider(machine, ac.Arm)
		if err != nil {
			return nil, fmt.Errorf("%s arm (%s): %w", a, ac.Arm, err)
		}
		ctrl := endpoint.NewViamArm(armRes, motionSvc, logger)
		ctrl.SpeedCommand = ac.SpeedCommand
		eps.Arms[a] = ctrl

		eps.Wrists[a] = map[int]endpoint.Wrist{}
		for joint, name := range ac.WristMotors {
			m, err := motor.FromProvider(machine, name)
			if err != nil {
				logger.Warnf("%s wrist joint %d (%s) not available: %v", a, joint, name, err)
				continue
			}
			eps.Wrists[a][joint] = endpoint.NewViamWrist(m)
		}
	}

	if res, err := machine.ResourceByName(generic.Named(cfg.Gaze)); err != nil {
		logger.Warnf("gaze service (%s) not available: %v", cfg.Gaze, err)
	} else {
		eps.Gaze = endpoint.NewViamGaze(res)
	}
	if res, err := machine.ResourceByName(generic.Named(cfg.Solver)); err != nil {
		logger.Warnf("tool solver (%s) not available: %v", cfg.Solver, err)
	} else {
		eps.Solver = endpoint.NewViamSolver(res)
	}
	if s, err := sensor.FromProvider(machine, cfg.PixelSensor); err != nil {
		logger.Warnf("pixel sensor (%s) not available: %v", cfg.PixelSensor, err)
	} else {
		eps.Feed = endpoint.NewViamPixelFeed(s)
	}

	return New(cfg, eps, logger)
}

// begin claims the action slot and clears a stale interrupt. The returned
// context is cancelled by Interrupt and by release.
func (r *Robot) begin(ctx context.Context) (context.Context, func(), error) {
	if !r.action.TryLock() {
		return nil, nil, ErrBusy
	}
	r.interrupted.Store(false)
	ctx, cancel := context.WithCancel(ctx)
	r.cancelMu.Lock()
	r.cancelAction = cancel
	r.cancelMu.Unlock()

	release := func() {
		r.cancelMu.Lock()
		r.cancelAction = nil
		r.cancelMu.Unlock()
		cancel()
		r.action.Unlock()
	}
	return ctx, release, nil
}

// cancelled reports whether the running action must unwind.
func (r *Robot) cancelled(ctx context.Context) bool {
	return r.interrupted.Load() || ctx.Err() != nil
}

// Interrupt cancels the running action and stops every moving part. A
// call blocked in a collaborator returns at once; the action then
// releases its contexts.
func (r *Robot) Interrupt(ctx context.Context) error {
	r.interrupted.Store(true)
	r.logger.Info("interrupt requested")
	r.cancelMu.Lock()
	if r.cancelAction != nil {
		r.cancelAction()
	}
	r.cancelMu.Unlock()

	// the caller may be the action itself, whose context is now done
	ctx = context.WithoutCancel(ctx)

	var errs error
	if r.gaze != nil {
		errs = multierr.Append(errs, r.gaze.Stop(ctx))
	}
	for _, a := range plan.Arms {
		if err := r.arms[a].Stop(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop %s arm: %w", a, err))
		}
		for joint, w := range r.wrists[a] {
			if err := w.Stop(ctx); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("stop %s wrist %d: %w", a, joint, err))
			}
		}
	}
	return errs
}

// Tool returns the current tool frame.
func (r *Robot) Tool() ToolSnapshot {
	return r.tool.Snapshot()
}

// AttachTool binds a tool to the hand of hint with its tip at tip.
func (r *Robot) AttachTool(hint plan.ArmHint, tip r3.Vector, kind ToolKind) {
	r.tool.Attach(hint, tip, kind)
	r.logger.Infof("tool attached to %s arm, tip %v", hint, tip)
}

// RemoveTool forgets the attached tool.
func (r *Robot) RemoveTool() {
	r.tool.Remove()
	r.logger.Info("tool removed")
}
