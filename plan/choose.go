package plan

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/frames"
)

// singularityBand is the half-width, in degrees, of the bands around ±90°
// where the candidate is fixed by arm identity. The mapping is an empirical
// calibration of the hardware, not a geometric law.
const singularityBand = 45.0

// Asker reports the pose an arm would reach for target without moving.
type Asker interface {
	AskPose(ctx context.Context, target frames.Pose) (frames.Pose, error)
}

// Choice is the outcome of ChooseCandidate.
type Choice struct {
	Candidate Candidate
	Transform frames.Transform
	Pose      frames.Pose
	// Forced is set when a singularity band decided without asking.
	Forced bool
	// UsedEpsilon is set when the radial fallback replaced the candidate.
	UsedEpsilon bool
	// Residuals are indexed by Candidate; NaN when not asked, +Inf when the
	// endpoint reported the target unreachable.
	Residuals [2]float64
}

// ChooseCandidate picks between the inward and outward candidates for arm.
// Near ±90° the arm alone decides; elsewhere both candidates are asked of
// the endpoint and the lower residual wins, ties going outward.
func ChooseCandidate(ctx context.Context, cands PushCandidates, arm Arm, asker Asker) (Choice, error) {
	choice := Choice{Residuals: [2]float64{math.NaN(), math.NaN()}}

	if cand, ok := forcedCandidate(cands.Theta, arm); ok {
		choice.Candidate = cand
		choice.Forced = true
	} else {
		for _, cand := range []Candidate{Inward, Outward} {
			res, err := askResidual(ctx, asker, cands.Get(cand, false))
			if err != nil {
				return Choice{}, fmt.Errorf("ask %s candidate: %w", cand, err)
			}
			choice.Residuals[cand] = res
		}
		choice.Candidate = Outward
		if choice.Residuals[Inward] < choice.Residuals[Outward] {
			choice.Candidate = Inward
		}
	}

	choice.UsedEpsilon = needsEpsilon(cands.Theta, arm, choice.Candidate)
	choice.Transform = cands.Get(choice.Candidate, choice.UsedEpsilon)
	choice.Pose = frames.ToAxisAngle(choice.Transform)
	return choice, nil
}

func forcedCandidate(theta float64, arm Arm) (Candidate, bool) {
	switch {
	case math.Abs(theta-90) < singularityBand:
		if arm == Right {
			return Inward, true
		}
		return Outward, true
	case math.Abs(theta+90) < singularityBand:
		if arm == Right {
			return Outward, true
		}
		return Inward, true
	}
	return Inward, false
}

// needsEpsilon reports the configurations with a known reachability
// degradation: right arm outward or left arm inward at negative theta.
func needsEpsilon(theta float64, arm Arm, cand Candidate) bool {
	if theta >= 0 {
		return false
	}
	return (arm == Right && cand == Outward) || (arm == Left && cand == Inward)
}

func askResidual(ctx context.Context, asker Asker, want frames.Transform) (float64, error) {
	got, err := asker.AskPose(ctx, frames.ToAxisAngle(want))
	if errors.Is(err, endpoint.ErrUnreachable) {
		return math.Inf(1), nil
	}
	if err != nil {
		return 0, err
	}
	return frames.Residual(want, got.Transform()), nil
}
