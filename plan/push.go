package plan

import (
	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/frames"
)

const (
	// epsilonOffset is the extra radial reach of the fallback candidates.
	epsilonOffset = 0.05
	// approachLift is how far above a push waypoint the hand hovers first.
	approachLift = 0.1
)

// Candidate names one of the two push approaches on the circle around the
// centroid.
type Candidate int

const (
	// Inward has the hand z-axis pointing at the centroid (palm push).
	Inward Candidate = iota
	// Outward has the hand z-axis pointing away (back-of-hand push).
	Outward
)

func (c Candidate) String() string {
	if c == Outward {
		return "outward"
	}
	return "inward"
}

// PushCandidates are the world-frame hand targets of a legacy push, tool
// already applied.
type PushCandidates struct {
	// Theta is the normalized approach angle in degrees.
	Theta float64

	Inward     frames.Transform
	Outward    frames.Transform
	InwardEps  frames.Transform
	OutwardEps frames.Transform
}

// Get returns the transform of candidate c, or its radial fallback.
func (pc PushCandidates) Get(c Candidate, eps bool) frames.Transform {
	switch {
	case c == Inward && eps:
		return pc.InwardEps
	case c == Inward:
		return pc.Inward
	case eps:
		return pc.OutwardEps
	default:
		return pc.Outward
	}
}

// PlanPush builds the inward and outward candidates at radius around
// centroid, plus their fallbacks pushed epsilonOffset further out. Each is
// H0·Hk·tool⁻¹. Radius is assumed positive.
func PlanPush(centroid r3.Vector, theta, radius float64, tool frames.Transform) PushCandidates {
	th := NormalizeDegrees(theta)
	s, c := sincos(th)

	inward := [3][3]float64{
		{-s, 0, -c},
		{c, 0, -s},
		{0, -1, 0},
	}
	outward := [3][3]float64{
		{s, 0, c},
		{-c, 0, s},
		{0, -1, 0},
	}
	onCircle := r3.Vector{X: radius * c, Y: radius * s}
	beyond := r3.Vector{X: (radius + epsilonOffset) * c, Y: (radius + epsilonOffset) * s}

	h0 := baseFrame(centroid)
	invTool := frames.Invert(tool)
	world := func(rot [3][3]float64, p r3.Vector) frames.Transform {
		return frames.Compose(h0, frames.New(rot, p), invTool)
	}

	return PushCandidates{
		Theta:      th,
		Inward:     world(inward, onCircle),
		Outward:    world(outward, onCircle),
		InwardEps:  world(inward, beyond),
		OutwardEps: world(outward, beyond),
	}
}

// PushPath is the ordered waypoint list of one push.
type PushPath struct {
	Approach frames.Pose
	Start    frames.Pose
	Contact  frames.Pose
	Retreat  frames.Pose
}

// Poses returns the waypoints in execution order.
func (p PushPath) Poses() []frames.Pose {
	return []frames.Pose{p.Approach, p.Start, p.Contact, p.Retreat}
}

// PushMotion expands the chosen legacy candidate into its four waypoints:
// hover above it, descend, slide until the tool tip sits on the centroid,
// and return to the start.
func PushMotion(chosen frames.Transform, centroid r3.Vector, tool frames.Transform) PushPath {
	start := frames.ToAxisAngle(chosen)
	contact := start
	contact.Position = chosen.WithPosition(centroid).Apply(tool.Position().Mul(-1))
	return PushPath{
		Approach: start.Offset(r3.Vector{Z: approachLift}),
		Start:    start,
		Contact:  contact,
		Retreat:  start,
	}
}

// PlanPosePush plans a pose-mode push: hover at P1', descend to P1 at
// radius along theta, slide across the centroid to the opposite point P2
// and lift to P3. The hand orientation comes from the decision table.
func PlanPosePush(mode HandPose, arm Arm, centroid r3.Vector, theta, radius float64, tool frames.Transform) PushPath {
	th := NormalizeDegrees(theta)
	object := frames.Translation(centroid)
	hand := HandOrientation(arm, mode)
	invTool := frames.Invert(tool)

	at := func(angle, lift float64) frames.Pose {
		s, c := sincos(angle)
		target := frames.Translation(r3.Vector{X: radius * c, Y: radius * s, Z: lift})
		return frames.ToAxisAngle(frames.Compose(object, target, hand, invTool))
	}

	return PushPath{
		Approach: at(th, approachLift),
		Start:    at(th, 0),
		Contact:  at(th+180, 0),
		Retreat:  at(th+180, approachLift),
	}
}
