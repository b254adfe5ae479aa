// Package plan turns an affordance request (centroid, approach angle,
// radius, pull distance, tool frame) into end-effector targets, and picks
// the arm and candidate that carry it out.
package plan

import (
	"fmt"
	"strings"
)

// Arm identifies one of the two manipulators.
type Arm int

const (
	// Right serves the front-right hemisphere (lateral coordinate >= 0).
	Right Arm = iota
	// Left serves the front-left hemisphere.
	Left
)

func (a Arm) String() string {
	if a == Left {
		return "left"
	}
	return "right"
}

// Arms lists both arms in a fixed order.
var Arms = []Arm{Right, Left}

// ParseArm accepts "left" or "right".
func ParseArm(s string) (Arm, error) {
	switch strings.ToLower(s) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return Right, fmt.Errorf("unknown arm %q", s)
	}
}

// ArmHint is the caller's arm preference.
type ArmHint int

const (
	// Auto lets the planner decide by lateral position.
	Auto ArmHint = iota
	LeftHint
	RightHint
)

func (h ArmHint) String() string {
	switch h {
	case LeftHint:
		return "left"
	case RightHint:
		return "right"
	default:
		return "selectable"
	}
}

// HintFor returns the explicit hint naming arm a.
func HintFor(a Arm) ArmHint {
	if a == Left {
		return LeftHint
	}
	return RightHint
}

// ParseArmHint accepts "left", "right" and, for auto, "selectable", "auto"
// or the empty string.
func ParseArmHint(s string) (ArmHint, error) {
	switch strings.ToLower(s) {
	case "", "auto", "selectable":
		return Auto, nil
	case "left":
		return LeftHint, nil
	case "right":
		return RightHint, nil
	default:
		return Auto, fmt.Errorf("unknown arm hint %q", s)
	}
}

// SelectArm resolves hint into an arm. An explicit hint always wins;
// otherwise a non-negative lateral coordinate selects the right arm.
func SelectArm(lateral float64, hint ArmHint) Arm {
	switch hint {
	case LeftHint:
		return Left
	case RightHint:
		return Right
	}
	if lateral >= 0 {
		return Right
	}
	return Left
}

// HandPose selects how the hand is rotated about the approach direction.
type HandPose int

const (
	// Legacy is the fixed palm-down orientation of the original push and
	// draw primitives.
	Legacy HandPose = iota
	// Neutral presents the palm or the back of the hand to the object.
	Neutral
	// Pronation presents the top or bottom edge of the hand to the object.
	Pronation
)

func (p HandPose) String() string {
	switch p {
	case Neutral:
		return "neutral"
	case Pronation:
		return "pronation"
	default:
		return "legacy"
	}
}

// HandPoseFromIndex maps the wire index of the pose-mode commands
// (0 neutral, 1 pronation).
func HandPoseFromIndex(i int) (HandPose, error) {
	switch i {
	case 0:
		return Neutral, nil
	case 1:
		return Pronation, nil
	default:
		return Legacy, fmt.Errorf("unknown hand pose index %d", i)
	}
}
