package endpoint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	goutils "go.viam.com/utils"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/motionplan"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/rdk/spatialmath"

	"github.com/lorejam/karma/frames"
)

const (
	// MotionServiceName is the resource name of the builtin motion service.
	MotionServiceName = "builtin"

	// straightnessToleranceMm is the line tolerance at straightness 1. A
	// straightness of 10 keeps the hand within 1 mm of the line.
	straightnessToleranceMm = 10.0
	orientationToleranceDegs = 2.0

	minLinearSpeedMmPerSec = 5.0
)

// ArmClient is the part of arm.Arm the controller needs.
type ArmClient interface {
	Name() resource.Name
	EndPosition(ctx context.Context, extra map[string]interface{}) (spatialmath.Pose, error)
	IsMoving(ctx context.Context) (bool, error)
	Stop(ctx context.Context, extra map[string]interface{}) error
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// MotionClient is the part of motion.Service the controller needs.
type MotionClient interface {
	Move(ctx context.Context, req motion.MoveReq) (bool, error)
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// controllerSettings is everything a context snapshot captures.
type controllerSettings struct {
	tweaks Tweaks
	dof    DofMask
}

func (s controllerSettings) clone() controllerSettings {
	s.dof = append(DofMask(nil), s.dof...)
	if s.tweaks.Elbow != nil {
		e := *s.tweaks.Elbow
		s.tweaks.Elbow = &e
	}
	return s
}

// extra is forwarded to the motion service with every request.
func (s controllerSettings) extra() map[string]interface{} {
	extra := map[string]interface{}{}
	if off := s.dof.Disabled(); len(off) > 0 {
		extra["frozen_dof"] = off
	}
	if e := s.tweaks.Elbow; e != nil {
		extra["elbow_height_m"] = e.Height
		extra["elbow_weight"] = e.Weight
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

type moveTask struct {
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// ViamArm implements Motion with an arm component and the motion service.
// Pose commands run motion.Move in the background; controller contexts are
// local snapshots of the tweak and DOF settings keyed by uuid.
type ViamArm struct {
	name   string
	arm    ArmClient
	motion MotionClient
	logger logging.Logger

	// SpeedCommand, when set, is the arm DoCommand key used to set the
	// linear speed (mm/s) that makes a pose command last its duration.
	SpeedCommand string

	mu       sync.Mutex
	settings controllerSettings
	contexts map[ContextToken]controllerSettings
	inflight *moveTask
}

// NewViamArm binds a controller to arm a, planning through m.
func NewViamArm(a ArmClient, m MotionClient, logger logging.Logger) *ViamArm {
	return &ViamArm{
		name:     a.Name().Name,
		arm:      a,
		motion:   m,
		logger:   logger,
		contexts: map[ContextToken]controllerSettings{},
	}
}

// StoreContext snapshots the current settings.
func (a *ViamArm) StoreContext(_ context.Context) (ContextToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	token := ContextToken(uuid.NewString())
	a.contexts[token] = a.settings.clone()
	return token, nil
}

// RestoreContext reinstates a snapshot.
func (a *ViamArm) RestoreContext(_ context.Context, token ContextToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.contexts[token]
	if !ok {
		return fmt.Errorf("%s restore %s: %w", a.name, token, ErrUnknownContext)
	}
	a.settings = s.clone()
	return nil
}

// DeleteContext releases a snapshot.
func (a *ViamArm) DeleteContext(_ context.Context, token ContextToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.contexts[token]; !ok {
		return fmt.Errorf("%s delete %s: %w", a.name, token, ErrUnknownContext)
	}
	delete(a.contexts, token)
	return nil
}

// SetTweaks replaces the task tweaks.
func (a *ViamArm) SetTweaks(_ context.Context, tweaks Tweaks) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings.tweaks = tweaks
	a.settings = a.settings.clone()
	return nil
}

// SetDOF replaces the DOF mask.
func (a *ViamArm) SetDOF(_ context.Context, mask DofMask) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings.dof = append(DofMask(nil), mask...)
	return nil
}

// moveReq builds the motion request for target under the current settings.
// Callers hold a.mu.
func (a *ViamArm) moveReq(target frames.Pose) motion.MoveReq {
	req := motion.MoveReq{
		ComponentName: a.name,
		Destination:   referenceframe.NewPoseInFrame(referenceframe.World, target.Spatial()),
		Extra:         a.settings.extra(),
	}
	if s := a.settings.tweaks.Straightness; s > 0 {
		req.Constraints = motionplan.NewConstraints(
			[]motionplan.LinearConstraint{{
				LineToleranceMm:          straightnessToleranceMm / s,
				OrientationToleranceDegs: orientationToleranceDegs,
			}},
			nil, nil, nil,
		)
	}
	return req
}

// AskPose plans to target without executing. When a plan exists the arm
// would reach the target; otherwise the current end position is returned
// together with ErrUnreachable.
func (a *ViamArm) AskPose(ctx context.Context, target frames.Pose) (frames.Pose, error) {
	a.mu.Lock()
	req := a.moveReq(target)
	a.mu.Unlock()

	traj, err := doPlan(ctx, a.motion, req)
	if err == nil && len(traj) > 0 {
		return target, nil
	}
	if err != nil {
		a.logger.Debugf("%s: no plan to %v: %v", a.name, target, err)
	}

	current, perr := a.arm.EndPosition(ctx, nil)
	if perr != nil {
		return frames.Pose{}, fmt.Errorf("%s end position: %w", a.name, perr)
	}
	return frames.FromSpatial(current), ErrUnreachable
}

// GoToPose starts moving towards target, superseding any motion in flight.
func (a *ViamArm) GoToPose(ctx context.Context, target frames.Pose, d time.Duration) error {
	if a.SpeedCommand != "" && d > 0 {
		if err := a.setSpeed(ctx, target, d); err != nil {
			return err
		}
	}

	a.mu.Lock()
	if a.inflight != nil {
		a.inflight.cancel()
	}
	req := a.moveReq(target)
	moveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := &moveTask{done: make(chan struct{}), cancel: cancel}
	a.inflight = task
	a.mu.Unlock()

	a.logger.Debugf("%s: moving to %v over %v", a.name, target, d)
	goutils.PanicCapturingGo(func() {
		defer close(task.done)
		defer cancel()
		_, task.err = a.motion.Move(moveCtx, req)
	})
	return nil
}

func (a *ViamArm) setSpeed(ctx context.Context, target frames.Pose, d time.Duration) error {
	current, err := a.arm.EndPosition(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s end position: %w", a.name, err)
	}
	distMm := current.Point().Distance(target.Spatial().Point())
	speed := math.Max(distMm/d.Seconds(), minLinearSpeedMmPerSec)
	if _, err := a.arm.DoCommand(ctx, map[string]interface{}{a.SpeedCommand: speed}); err != nil {
		return fmt.Errorf("%s %s: %w", a.name, a.SpeedCommand, err)
	}
	return nil
}

// WaitMotionDone polls until the last GoToPose finished and the arm
// reports it is no longer moving.
func (a *ViamArm) WaitMotionDone(ctx context.Context, poll, timeout time.Duration) (bool, error) {
	a.mu.Lock()
	task := a.inflight
	a.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		done, err := a.motionDone(ctx, task)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

func (a *ViamArm) motionDone(ctx context.Context, task *moveTask) (bool, error) {
	if task != nil {
		select {
		case <-task.done:
			if task.err != nil && !errors.Is(task.err, context.Canceled) {
				return false, fmt.Errorf("%s move: %w", a.name, task.err)
			}
		default:
			return false, nil
		}
	}
	moving, err := a.arm.IsMoving(ctx)
	if err != nil {
		return false, fmt.Errorf("%s is moving: %w", a.name, err)
	}
	return !moving, nil
}

// Stop cancels the motion in flight and stops the arm.
func (a *ViamArm) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.inflight != nil {
		a.inflight.cancel()
	}
	a.mu.Unlock()
	if err := a.arm.Stop(ctx, nil); err != nil {
		return fmt.Errorf("%s stop: %w", a.name, err)
	}
	return nil
}

// doPlan asks the motion service for a trajectory without executing it.
func doPlan(ctx context.Context, m MotionClient, req motion.MoveReq) (motionplan.Trajectory, error) {
	proto, err := req.ToProto(MotionServiceName)
	if err != nil {
		return nil, fmt.Errorf("build plan proto: %w", err)
	}
	bytes, err := protojson.Marshal(proto)
	if err != nil {
		return nil, fmt.Errorf("marshal plan request: %w", err)
	}
	resp, err := m.DoCommand(ctx, map[string]interface{}{
		"plan": string(bytes),
	})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	raw, ok := resp["plan"]
	if !ok {
		return nil, errors.New("plan response missing 'plan' key")
	}
	var trajectory motionplan.Trajectory
	if err := mapstructure.Decode(raw, &trajectory); err != nil {
		return nil, fmt.Errorf("decode trajectory: %w", err)
	}
	return trajectory, nil
}
