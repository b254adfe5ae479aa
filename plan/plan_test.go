package plan

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/frames"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func nearVec(a, b r3.Vector) bool { return a.Sub(b).Norm() < eps }

type askFunc func(ctx context.Context, target frames.Pose) (frames.Pose, error)

func (f askFunc) AskPose(ctx context.Context, target frames.Pose) (frames.Pose, error) {
	return f(ctx, target)
}

func TestNormalizeDegrees(t *testing.T) {
	cases := map[float64]float64{
		0:     0,
		180:   180,
		-180:  180,
		181:   -179,
		-181:  179,
		359:   -1,
		360:   0,
		540:   180,
		-540:  180,
		720.5: 0.5,
	}
	for in, want := range cases {
		if got := NormalizeDegrees(in); !near(got, want) {
			t.Errorf("NormalizeDegrees(%v) = %v, want %v", in, got, want)
		}
	}

	for theta := -2000.0; theta <= 2000; theta += 7.3 {
		n := NormalizeDegrees(theta)
		if n <= -180 || n > 180 {
			t.Errorf("NormalizeDegrees(%v) = %v out of range", theta, n)
		}
		if NormalizeDegrees(n) != n {
			t.Errorf("NormalizeDegrees not idempotent at %v", theta)
		}
	}
}

func TestSelectArm(t *testing.T) {
	for _, y := range []float64{0, 0.01, 3} {
		if got := SelectArm(y, Auto); got != Right {
			t.Errorf("SelectArm(%v, auto) = %v, want right", y, got)
		}
		if got := SelectArm(y, LeftHint); got != Left {
			t.Errorf("left hint ignored at y=%v", y)
		}
	}
	for _, y := range []float64{-0.01, -3} {
		if got := SelectArm(y, Auto); got != Left {
			t.Errorf("SelectArm(%v, auto) = %v, want left", y, got)
		}
		if got := SelectArm(y, RightHint); got != Right {
			t.Errorf("right hint ignored at y=%v", y)
		}
	}
}

func TestPlanPush_FrontRightScenario(t *testing.T) {
	centroid := r3.Vector{X: 0.3, Y: 0.1}
	cands := PlanPush(centroid, 0, 0.1, frames.Identity())

	if arm := SelectArm(cands.Inward.Position().Y, Auto); arm != Right {
		t.Errorf("expected right arm, got %v", arm)
	}

	want := r3.Vector{X: 0.3, Y: 0.2}
	if !nearVec(cands.Inward.Position(), want) || !nearVec(cands.Outward.Position(), want) {
		t.Errorf("candidates at %v and %v, want both at %v", cands.Inward.Position(), cands.Outward.Position(), want)
	}

	// local z and the tangential x flip, the vertical y is shared
	if !nearVec(cands.Inward.Axis(2), cands.Outward.Axis(2).Mul(-1)) {
		t.Errorf("z axes not opposite: %v %v", cands.Inward.Axis(2), cands.Outward.Axis(2))
	}
	if !nearVec(cands.Inward.Axis(0), cands.Outward.Axis(0).Mul(-1)) {
		t.Errorf("x axes not opposite: %v %v", cands.Inward.Axis(0), cands.Outward.Axis(0))
	}
	if !nearVec(cands.Inward.Axis(1), cands.Outward.Axis(1)) {
		t.Errorf("y axes differ: %v %v", cands.Inward.Axis(1), cands.Outward.Axis(1))
	}
	// inward points at the centroid
	if !nearVec(cands.Inward.Axis(2), r3.Vector{Y: -1}) {
		t.Errorf("inward z axis = %v", cands.Inward.Axis(2))
	}

	wantEps := r3.Vector{X: 0.3, Y: 0.25}
	if !nearVec(cands.InwardEps.Position(), wantEps) || !nearVec(cands.OutwardEps.Position(), wantEps) {
		t.Errorf("fallbacks at %v and %v, want %v", cands.InwardEps.Position(), cands.OutwardEps.Position(), wantEps)
	}

	var asked int
	choice, err := ChooseCandidate(context.Background(), cands, Right, askFunc(
		func(_ context.Context, target frames.Pose) (frames.Pose, error) {
			asked++
			return target, nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	if choice.Forced || asked != 2 {
		t.Errorf("expected residual comparison at 0°, forced=%v asked=%d", choice.Forced, asked)
	}
}

func TestPlanPush_MirrorSymmetry(t *testing.T) {
	centroid := r3.Vector{X: 0.35, Z: -0.05}
	for _, theta := range []float64{0, 15, 60, 90, 135, -30, -100} {
		a := PlanPush(centroid, theta, 0.12, frames.Identity())
		b := PlanPush(centroid, 180-theta, 0.12, frames.Identity())
		for _, pair := range [][2]frames.Transform{{a.Inward, b.Inward}, {a.Outward, b.Outward}, {a.InwardEps, b.InwardEps}} {
			pa, pb := pair[0].Position(), pair[1].Position()
			if !nearVec(pa, r3.Vector{X: pb.X, Y: -pb.Y, Z: pb.Z}) {
				t.Errorf("theta=%v: %v is not the mirror of %v", theta, pa, pb)
			}
		}
	}
}

func TestPlanPush_RotationsAreRigid(t *testing.T) {
	tool := frames.RotationAboutAxis(r3.Vector{Z: -1}, 0.4).WithPosition(r3.Vector{X: 0.1, Y: 0.05})
	cands := PlanPush(r3.Vector{X: 0.3, Y: -0.2, Z: 0.1}, 37, 0.1, tool)
	for _, tf := range []frames.Transform{cands.Inward, cands.Outward, cands.InwardEps, cands.OutwardEps} {
		if r := frames.Residual(frames.Compose(tf, frames.Invert(tf)), frames.Identity()); r > 1e-9 {
			t.Errorf("candidate not rigid, residual %v", r)
		}
		if !near(tf.Axis(0).Cross(tf.Axis(1)).Dot(tf.Axis(2)), 1) {
			t.Errorf("candidate basis not right handed")
		}
	}
}

func TestChooseCandidate_Singularity(t *testing.T) {
	never := askFunc(func(context.Context, frames.Pose) (frames.Pose, error) {
		t.Fatal("endpoint asked inside a singularity band")
		return frames.Pose{}, nil
	})
	centroid := r3.Vector{X: 0.3}

	cases := []struct {
		theta   float64
		arm     Arm
		want    Candidate
		wantEps bool
	}{
		{90, Right, Inward, false},
		{90, Left, Outward, false},
		{50, Right, Inward, false},
		{-90, Right, Outward, true},
		{-90, Left, Inward, true},
		{-130, Left, Inward, true},
		{270, Right, Outward, true},
	}
	for _, tc := range cases {
		cands := PlanPush(centroid, tc.theta, 0.1, frames.Identity())
		choice, err := ChooseCandidate(context.Background(), cands, tc.arm, never)
		if err != nil {
			t.Fatal(err)
		}
		if !choice.Forced || choice.Candidate != tc.want || choice.UsedEpsilon != tc.wantEps {
			t.Errorf("theta=%v arm=%v: got %v forced=%v eps=%v", tc.theta, tc.arm, choice.Candidate, choice.Forced, choice.UsedEpsilon)
		}
		if frames.Residual(choice.Transform, cands.Get(tc.want, tc.wantEps)) > eps {
			t.Errorf("theta=%v arm=%v: transform does not match candidate", tc.theta, tc.arm)
		}
		if !math.IsNaN(choice.Residuals[Inward]) || !math.IsNaN(choice.Residuals[Outward]) {
			t.Errorf("residuals should be unset when forced")
		}
	}
}

// reachOnly answers exactly for the given candidate and misses the other by
// 5 cm.
func reachOnly(cands PushCandidates, c Candidate) askFunc {
	return func(_ context.Context, target frames.Pose) (frames.Pose, error) {
		if frames.Residual(target.Transform(), cands.Get(c, false)) < 1e-6 {
			return target, nil
		}
		return target.Offset(r3.Vector{Z: 0.05}), nil
	}
}

func TestChooseCandidate_Residuals(t *testing.T) {
	ctx := context.Background()
	centroid := r3.Vector{X: 0.3, Y: 0.1}

	cands := PlanPush(centroid, 0, 0.1, frames.Identity())
	choice, err := ChooseCandidate(ctx, cands, Right, reachOnly(cands, Inward))
	if err != nil {
		t.Fatal(err)
	}
	if choice.Candidate != Inward || choice.UsedEpsilon {
		t.Errorf("expected inward without fallback, got %v eps=%v", choice.Candidate, choice.UsedEpsilon)
	}
	if choice.Residuals[Inward] > 1e-6 || !near(choice.Residuals[Outward], 0.05) {
		t.Errorf("unexpected residuals %v", choice.Residuals)
	}

	choice, err = ChooseCandidate(ctx, cands, Right, reachOnly(cands, Outward))
	if err != nil {
		t.Fatal(err)
	}
	if choice.Candidate != Outward {
		t.Errorf("expected outward, got %v", choice.Candidate)
	}

	// equal residuals go outward
	choice, err = ChooseCandidate(ctx, cands, Left, askFunc(func(_ context.Context, target frames.Pose) (frames.Pose, error) {
		return target.Offset(r3.Vector{Z: 0.05}), nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if choice.Candidate != Outward {
		t.Errorf("tie should pick outward, got %v", choice.Candidate)
	}

	// negative theta with the arm's degraded candidate swaps in the fallback
	cands = PlanPush(centroid, -20, 0.1, frames.Identity())
	choice, err = ChooseCandidate(ctx, cands, Left, reachOnly(cands, Inward))
	if err != nil {
		t.Fatal(err)
	}
	if choice.Candidate != Inward || !choice.UsedEpsilon {
		t.Errorf("expected inward fallback, got %v eps=%v", choice.Candidate, choice.UsedEpsilon)
	}
	if !nearVec(choice.Pose.Position, cands.InwardEps.Position()) {
		t.Errorf("pose %v is not the fallback %v", choice.Pose.Position, cands.InwardEps.Position())
	}
	choice, err = ChooseCandidate(ctx, cands, Right, reachOnly(cands, Inward))
	if err != nil {
		t.Fatal(err)
	}
	if choice.UsedEpsilon {
		t.Errorf("right arm inward should not use the fallback")
	}
}

func TestChooseCandidate_Unreachable(t *testing.T) {
	cands := PlanPush(r3.Vector{X: 0.3, Y: 0.1}, 10, 0.1, frames.Identity())
	choice, err := ChooseCandidate(context.Background(), cands, Right, askFunc(
		func(_ context.Context, target frames.Pose) (frames.Pose, error) {
			if frames.Residual(target.Transform(), cands.Outward) < 1e-6 {
				return frames.Pose{}, endpoint.ErrUnreachable
			}
			return target.Offset(r3.Vector{X: 0.2}), nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	if choice.Candidate != Inward || !math.IsInf(choice.Residuals[Outward], 1) {
		t.Errorf("unreachable outward should lose, got %v %v", choice.Candidate, choice.Residuals)
	}

	boom := errors.New("link down")
	_, err = ChooseCandidate(context.Background(), cands, Right, askFunc(
		func(context.Context, frames.Pose) (frames.Pose, error) { return frames.Pose{}, boom }))
	if !errors.Is(err, boom) {
		t.Errorf("expected endpoint error, got %v", err)
	}
}

func TestTrajectoryTime(t *testing.T) {
	closeTo := func(d time.Duration, secs float64) bool {
		return math.Abs(d.Seconds()-secs) < 1e-6
	}

	if d := TrajectoryTime(0, 0.01, false); !closeTo(d, 0.40) {
		t.Errorf("short radius at 0° = %v", d)
	}
	if d := TrajectoryTime(-178, 1, false); !closeTo(d, 0.60) {
		t.Errorf("long radius near 180° = %v", d)
	}
	if d := TrajectoryTime(45, 0.11, false); !closeTo(d, 0.65) {
		t.Errorf("mid radius at 45° = %v", d)
	}
	if d := TrajectoryTime(0, 0.18, true); !closeTo(d, 0.78) {
		t.Errorf("tool at 0° = %v", d)
	}
	if d := TrajectoryTime(90, 0.04, true); !closeTo(d, 0.65) {
		t.Errorf("tool at 90° = %v", d)
	}

	for _, theta := range []float64{0, 5, 45, 90, -120, 175, 540} {
		for _, tool := range []bool{false, true} {
			prev := time.Duration(0)
			for r := 0.0; r <= 0.3; r += 0.005 {
				d := TrajectoryTime(theta, r, tool)
				if d < prev {
					t.Errorf("theta=%v tool=%v: time decreased at r=%v", theta, tool, r)
				}
				prev = d
			}
		}
	}
}

func TestHandRotationTable(t *testing.T) {
	cases := []struct {
		arm     Arm
		pose    HandPose
		fi, psi float64
	}{
		{Right, Legacy, 0, 0},
		{Left, Legacy, 0, 0},
		{Right, Neutral, 0, -50},
		{Left, Neutral, 0, -50},
		{Right, Pronation, 120, -30},
		{Left, Pronation, -120, -30},
	}
	for _, tc := range cases {
		fi, psi := HandRotation(tc.arm, tc.pose)
		if fi != tc.fi || psi != tc.psi {
			t.Errorf("%v/%v: got (%v, %v) want (%v, %v)", tc.arm, tc.pose, fi, psi, tc.fi, tc.psi)
		}
	}

	hr := frames.New(handBase, r3.Vector{})
	if r := frames.Residual(HandOrientation(Left, Legacy), hr); r > eps {
		t.Errorf("legacy orientation is not HR, residual %v", r)
	}
	// neutral is HR followed by a yaw of -psi about the local z
	want := frames.Compose(hr, frames.RotationAboutAxis(r3.Vector{Z: 1}, 50*math.Pi/180))
	if r := frames.Residual(HandOrientation(Right, Neutral), want); r > eps {
		t.Errorf("neutral orientation residual %v", r)
	}
}

func TestPushMotion_ToolTipReachesCentroid(t *testing.T) {
	centroid := r3.Vector{X: 0.3, Y: 0.1}
	tool := frames.Translation(r3.Vector{Z: 0.1})
	cands := PlanPush(centroid, 0, 0.1, tool)

	// the tip, not the hand, sits on the circle
	tip := frames.Compose(cands.Inward, tool).Position()
	if !nearVec(tip, r3.Vector{X: 0.3, Y: 0.2}) {
		t.Errorf("tool tip at %v", tip)
	}

	path := PushMotion(cands.Inward, centroid, tool)
	if got := path.Contact.Transform().Apply(tool.Position()); !nearVec(got, centroid) {
		t.Errorf("contact tip at %v, want centroid", got)
	}
	if !nearVec(path.Approach.Position, path.Start.Position.Add(r3.Vector{Z: 0.1})) {
		t.Errorf("approach %v is not 10 cm above start %v", path.Approach.Position, path.Start.Position)
	}
	if path.Retreat != path.Start {
		t.Errorf("retreat %v differs from start %v", path.Retreat, path.Start)
	}
	if len(path.Poses()) != 4 {
		t.Errorf("expected four waypoints")
	}
}

func TestPlanPosePush(t *testing.T) {
	centroid := r3.Vector{X: 0.3, Y: 0.1, Z: 0.05}
	path := PlanPosePush(Neutral, Right, centroid, 0, 0.1, frames.Identity())

	want := []r3.Vector{
		centroid.Add(r3.Vector{X: 0.1, Z: 0.1}),
		centroid.Add(r3.Vector{X: 0.1}),
		centroid.Add(r3.Vector{X: -0.1}),
		centroid.Add(r3.Vector{X: -0.1, Z: 0.1}),
	}
	orient := HandOrientation(Right, Neutral)
	for i, p := range path.Poses() {
		if !nearVec(p.Position, want[i]) {
			t.Errorf("waypoint %d at %v, want %v", i, p.Position, want[i])
		}
		if r := frames.Residual(p.Transform().WithPosition(r3.Vector{}), orient); r > 1e-6 {
			t.Errorf("waypoint %d orientation residual %v", i, r)
		}
	}
}

func TestPlanDraw_Sagittal(t *testing.T) {
	wp := PlanDraw(Legacy, Left, r3.Vector{X: 0.3}, 90, 0.1, 0.1, frames.Identity())
	if !nearVec(wp.Reach.Position, r3.Vector{X: 0.2}) {
		t.Errorf("reach at %v", wp.Reach.Position)
	}
	if !nearVec(wp.Pull.Position, r3.Vector{X: 0.3}) {
		t.Errorf("pull at %v", wp.Pull.Position)
	}
	hr := frames.New(handBase, r3.Vector{})
	for _, p := range []frames.Pose{wp.Reach, wp.Pull} {
		if r := frames.Residual(p.Transform().WithPosition(r3.Vector{}), hr); r > 1e-6 {
			t.Errorf("orientation residual %v", r)
		}
	}
}

func TestPlanDraw_LateralReprojection(t *testing.T) {
	centroid := r3.Vector{X: 0.3, Y: 0.2}
	wp := PlanDraw(Legacy, Right, centroid, 90, 0.1, 0.1, frames.Identity())
	if !nearVec(wp.Reach.Position, r3.Vector{X: 0.2, Y: 0.2}) {
		t.Errorf("reach at %v", wp.Reach.Position)
	}
	if !nearVec(wp.Pull.Position, r3.Vector{X: 0.3, Y: 0.2}) {
		t.Errorf("pull at %v", wp.Pull.Position)
	}
	yaw := math.Atan2(0.2, 0.3)
	want := frames.Compose(frames.RotationAboutAxis(r3.Vector{Z: -1}, yaw), frames.New(handBase, r3.Vector{}))
	if r := frames.Residual(wp.Reach.Transform().WithPosition(r3.Vector{}), want); r > 1e-6 {
		t.Errorf("reach orientation residual %v", r)
	}

	// pose modes shift without yawing
	wp = PlanDraw(Neutral, Right, centroid, 90, 0.1, 0.1, frames.Identity())
	if !nearVec(wp.Reach.Position, r3.Vector{X: 0.3, Y: 0.3}) {
		t.Errorf("pose-mode reach at %v", wp.Reach.Position)
	}
	if r := frames.Residual(wp.Reach.Transform().WithPosition(r3.Vector{}), HandOrientation(Right, Neutral)); r > 1e-6 {
		t.Errorf("pose-mode orientation residual %v", r)
	}
}

func TestPlanDraw_SagittalY(t *testing.T) {
	tip := frames.Translation(r3.Vector{X: 0.05, Y: 0.2})
	for _, theta := range []float64{0, 45, 90, 150} {
		wp := PlanDraw(Legacy, Right, r3.Vector{X: 0.3, Y: -0.3}, theta, 0.1, 0.1, tip)
		want := 0.1 * math.Cos(theta*math.Pi/180)
		if math.Abs(wp.SagittalY-want) > 1e-9 {
			t.Errorf("theta %v: sagittal y %v, want %v", theta, wp.SagittalY, want)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	if a, err := ParseArm("LEFT"); err != nil || a != Left {
		t.Errorf("ParseArm(LEFT) = %v, %v", a, err)
	}
	if _, err := ParseArm("middle"); err == nil {
		t.Errorf("expected error for unknown arm")
	}
	for _, s := range []string{"", "auto", "selectable"} {
		if h, err := ParseArmHint(s); err != nil || h != Auto {
			t.Errorf("ParseArmHint(%q) = %v, %v", s, h, err)
		}
	}
	if p, err := HandPoseFromIndex(1); err != nil || p != Pronation {
		t.Errorf("HandPoseFromIndex(1) = %v, %v", p, err)
	}
	if _, err := HandPoseFromIndex(2); err == nil {
		t.Errorf("expected error for pose index 2")
	}
}
