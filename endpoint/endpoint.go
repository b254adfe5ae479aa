// Package endpoint defines the collaborators the motor engine drives (arm
// controllers, gaze, the tool-tip pixel feed, the tool solver and the wrist
// joints) and binds each of them to resources of a Viam machine.
package endpoint

import (
	"context"
	"errors"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/frames"
)

var (
	// ErrUnreachable is returned by AskPose when the controller cannot find
	// a solution for the target. The returned pose is the best the
	// controller can offer, usually its current pose.
	ErrUnreachable = errors.New("target pose unreachable")

	// ErrUnknownContext is returned when restoring or deleting a token the
	// endpoint never issued or already released.
	ErrUnknownContext = errors.New("unknown controller context")
)

// ContextToken identifies a saved controller configuration.
type ContextToken string

// ElbowTask biases the elbow towards a height while reaching.
type ElbowTask struct {
	Height float64
	Weight float64
}

// Tweaks are task-level options applied on top of a pose command.
type Tweaks struct {
	// Straightness weights how closely the hand follows a straight line.
	// Zero leaves the path unconstrained.
	Straightness float64
	Elbow        *ElbowTask
}

// DofMask enables (true) or freezes (false) each controlled axis, torso
// axes first.
type DofMask []bool

// AllDOF returns a mask of n enabled axes with the listed axes frozen.
func AllDOF(n int, frozen ...int) DofMask {
	m := make(DofMask, n)
	for i := range m {
		m[i] = true
	}
	for _, i := range frozen {
		if i >= 0 && i < n {
			m[i] = false
		}
	}
	return m
}

// Disabled returns the indices of the frozen axes.
func (m DofMask) Disabled() []int {
	var out []int
	for i, on := range m {
		if !on {
			out = append(out, i)
		}
	}
	return out
}

// Motion is a Cartesian controller for one arm.
type Motion interface {
	StoreContext(ctx context.Context) (ContextToken, error)
	RestoreContext(ctx context.Context, token ContextToken) error
	DeleteContext(ctx context.Context, token ContextToken) error

	SetTweaks(ctx context.Context, tweaks Tweaks) error
	SetDOF(ctx context.Context, mask DofMask) error

	// AskPose reports where the arm would end up for target without moving.
	AskPose(ctx context.Context, target frames.Pose) (frames.Pose, error)
	// GoToPose starts a motion towards target lasting roughly d and returns
	// without waiting for it.
	GoToPose(ctx context.Context, target frames.Pose, d time.Duration) error
	// WaitMotionDone polls every poll until the last motion finished,
	// returning false if timeout elapses first.
	WaitMotionDone(ctx context.Context, poll, timeout time.Duration) (bool, error)
	Stop(ctx context.Context) error
}

// Eye selects the camera a pixel observation belongs to.
type Eye string

const (
	LeftEye  Eye = "left"
	RightEye Eye = "right"
)

// ParseEye accepts "left" or "right".
func ParseEye(s string) (Eye, error) {
	switch Eye(s) {
	case LeftEye, RightEye:
		return Eye(s), nil
	}
	return "", errors.New("eye must be left or right")
}

// Gaze is the head and eye controller.
type Gaze interface {
	StoreContext(ctx context.Context) (ContextToken, error)
	RestoreContext(ctx context.Context, token ContextToken) error
	DeleteContext(ctx context.Context, token ContextToken) error

	SetTrackingMode(ctx context.Context, on bool) error
	LookAtPoint(ctx context.Context, p r3.Vector) error
	LookAtPixel(ctx context.Context, eye Eye, px r2.Point) error
	SetSaccades(ctx context.Context, on bool) error
	SetTrajTimes(ctx context.Context, neck, eyes time.Duration) error
	Stop(ctx context.Context) error
}

// PixelFeed yields the latest tool-tip observation. Latest never blocks;
// ok is false when nothing new arrived since the previous call.
type PixelFeed interface {
	Latest(ctx context.Context) (px r2.Point, ok bool, err error)
}

// ToolSolver collects tool-tip observations and estimates the tip offset.
type ToolSolver interface {
	Clear(ctx context.Context) error
	Select(ctx context.Context, arm string, eye Eye) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Find(ctx context.Context) (r3.Vector, error)
}

// Wrist is a single velocity-controlled hand joint, in degrees.
type Wrist interface {
	Position(ctx context.Context) (float64, error)
	SetVelocity(ctx context.Context, degPerSec float64) error
	Stop(ctx context.Context) error
}
