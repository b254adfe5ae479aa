package karma

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/frames"
	"github.com/lorejam/karma/plan"
)

// ToolKind selects how an attached tool is oriented in the hand.
type ToolKind int

const (
	// Oriented tools point along the tip vector projected on the hand's
	// horizontal plane.
	Oriented ToolKind = iota
	// Aligned tools keep the hand's orientation.
	Aligned
)

// ToolState is the tool frame every planning call composes with. The
// zero value is "no tool": identity frame, auto arm.
type ToolState struct {
	mu    sync.RWMutex
	hint  plan.ArmHint
	frame frames.Transform
	set   bool
}

// ToolSnapshot is a consistent read of ToolState.
type ToolSnapshot struct {
	Hint  plan.ArmHint
	Frame frames.Transform
}

// Attached reports whether a tool is bound to a specific arm.
func (s ToolSnapshot) Attached() bool {
	return s.Hint != plan.Auto
}

// Snapshot returns the current tool frame.
func (t *ToolState) Snapshot() ToolSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.set {
		return ToolSnapshot{Hint: plan.Auto, Frame: frames.Identity()}
	}
	return ToolSnapshot{Hint: t.hint, Frame: t.frame}
}

// Attach binds a tool with its tip at tip (hand frame, metres).
func (t *ToolState) Attach(hint plan.ArmHint, tip r3.Vector, kind ToolKind) {
	frame := frames.Translation(tip)
	if kind == Oriented {
		rot := frames.RotationAboutAxis(r3.Vector{Z: -1}, math.Atan2(-tip.Y, tip.X))
		frame = rot.WithPosition(tip)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hint, t.frame, t.set = hint, frame, true
}

// Get returns the arm the tool is attached to and the tip offset.
func (t *ToolState) Get() (plan.ArmHint, r3.Vector) {
	s := t.Snapshot()
	return s.Hint, s.Frame.Position()
}

// Remove resets the tool to identity on an auto arm.
func (t *ToolState) Remove() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hint, t.frame, t.set = plan.Auto, frames.Identity(), false
}
