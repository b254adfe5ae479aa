package karma

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/frames"
	"github.com/lorejam/karma/plan"
)

type fakeMotion struct {
	mu        sync.Mutex
	stored    int
	restored  int
	deleted   int
	stops     int
	tweaks    []endpoint.Tweaks
	masks     []endpoint.DofMask
	targets   []frames.Pose
	durations []time.Duration
	asked     []frames.Pose

	AskPoseFunc        func(ctx context.Context, target frames.Pose) (frames.Pose, error)
	WaitMotionDoneFunc func(ctx context.Context, call int) (bool, error)
}

func (m *fakeMotion) StoreContext(context.Context) (endpoint.ContextToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored++
	return "ctx", nil
}

func (m *fakeMotion) RestoreContext(_ context.Context, token endpoint.ContextToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token != "ctx" {
		return endpoint.ErrUnknownContext
	}
	m.restored++
	return nil
}

func (m *fakeMotion) DeleteContext(_ context.Context, token endpoint.ContextToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token != "ctx" {
		return endpoint.ErrUnknownContext
	}
	m.deleted++
	return nil
}

func (m *fakeMotion) SetTweaks(_ context.Context, t endpoint.Tweaks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tweaks = append(m.tweaks, t)
	return nil
}

func (m *fakeMotion) SetDOF(_ context.Context, mask endpoint.DofMask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masks = append(m.masks, mask)
	return nil
}

func (m *fakeMotion) AskPose(ctx context.Context, target frames.Pose) (frames.Pose, error) {
	m.mu.Lock()
	m.asked = append(m.asked, target)
	m.mu.Unlock()
	if m.AskPoseFunc == nil {
		return target, nil
	}
	return m.AskPoseFunc(ctx, target)
}

func (m *fakeMotion) GoToPose(_ context.Context, target frames.Pose, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, target)
	m.durations = append(m.durations, d)
	return nil
}

func (m *fakeMotion) WaitMotionDone(ctx context.Context, _, _ time.Duration) (bool, error) {
	m.mu.Lock()
	call := len(m.targets)
	m.mu.Unlock()
	if m.WaitMotionDoneFunc == nil {
		return true, nil
	}
	return m.WaitMotionDoneFunc(ctx, call)
}

func (m *fakeMotion) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *fakeMotion) gotos() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.targets)
}

type fakeGaze struct {
	mu       sync.Mutex
	stored   int
	restored int
	deleted  int
	stops    int
	points   []r3.Vector
	pixels   []r2.Point
	tracking []bool

	LookAtPointFunc func(ctx context.Context) error
}

func (g *fakeGaze) StoreContext(context.Context) (endpoint.ContextToken, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stored++
	return "gaze", nil
}

func (g *fakeGaze) RestoreContext(context.Context, endpoint.ContextToken) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restored++
	return nil
}

func (g *fakeGaze) DeleteContext(context.Context, endpoint.ContextToken) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted++
	return nil
}

func (g *fakeGaze) SetTrackingMode(_ context.Context, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracking = append(g.tracking, on)
	return nil
}

func (g *fakeGaze) LookAtPoint(ctx context.Context, p r3.Vector) error {
	g.mu.Lock()
	g.points = append(g.points, p)
	g.mu.Unlock()
	if g.LookAtPointFunc == nil {
		return nil
	}
	return g.LookAtPointFunc(ctx)
}

func (g *fakeGaze) LookAtPixel(_ context.Context, _ endpoint.Eye, px r2.Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pixels = append(g.pixels, px)
	return nil
}

func (g *fakeGaze) SetSaccades(context.Context, bool) error { return nil }

func (g *fakeGaze) SetTrajTimes(context.Context, time.Duration, time.Duration) error { return nil }

func (g *fakeGaze) Stop(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stops++
	return nil
}

type feedFunc func(ctx context.Context) (r2.Point, bool, error)

func (f feedFunc) Latest(ctx context.Context) (r2.Point, bool, error) {
	return f(ctx)
}

// fakeSolver gains one sample per Count call while enabled.
type fakeSolver struct {
	mu       sync.Mutex
	enabled  bool
	samples  int
	enables  int
	disables int
	finds    int
	selected []string

	CountFunc func(n int) // called with the new count
}

func (s *fakeSolver) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = 0
	return nil
}

func (s *fakeSolver) Select(_ context.Context, arm string, eye endpoint.Eye) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append(s.selected, arm, string(eye))
	return nil
}

func (s *fakeSolver) Enable(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	s.enables++
	return nil
}

func (s *fakeSolver) Disable(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	s.disables++
	return nil
}

func (s *fakeSolver) Count(context.Context) (int, error) {
	s.mu.Lock()
	if s.enabled {
		s.samples++
	}
	n := s.samples
	s.mu.Unlock()
	if s.CountFunc != nil {
		s.CountFunc(n)
	}
	return n, nil
}

func (s *fakeSolver) Find(context.Context) (r3.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	return r3.Vector{X: 0.01, Y: 0.02, Z: 0.15}, nil
}

type fakeWrist struct {
	mu         sync.Mutex
	positions  []float64
	velocities []float64
	stops      int
}

func (w *fakeWrist) Position(context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.positions) == 0 {
		return 0, nil
	}
	p := w.positions[0]
	if len(w.positions) > 1 {
		w.positions = w.positions[1:]
	}
	return p, nil
}

func (w *fakeWrist) SetVelocity(_ context.Context, v float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.velocities = append(w.velocities, v)
	return nil
}

func (w *fakeWrist) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stops++
	return nil
}

type testRig struct {
	robot  *Robot
	arms   map[plan.Arm]*fakeMotion
	gaze   *fakeGaze
	solver *fakeSolver
	wrists map[plan.Arm]map[int]*fakeWrist
}

func newTestRig(t *testing.T, cfg Config, feed endpoint.PixelFeed, opts ...Option) *testRig {
	t.Helper()
	rig := &testRig{
		arms:   map[plan.Arm]*fakeMotion{plan.Right: {}, plan.Left: {}},
		gaze:   &fakeGaze{},
		solver: &fakeSolver{},
		wrists: map[plan.Arm]map[int]*fakeWrist{},
	}
	eps := Endpoints{
		Arms:   map[plan.Arm]endpoint.Motion{},
		Wrists: map[plan.Arm]map[int]endpoint.Wrist{},
		Gaze:   rig.gaze,
		Feed:   feed,
		Solver: rig.solver,
	}
	for _, a := range plan.Arms {
		eps.Arms[a] = rig.arms[a]
		rig.wrists[a] = map[int]*fakeWrist{4: {}, 6: {}}
		eps.Wrists[a] = map[int]endpoint.Wrist{4: rig.wrists[a][4], 6: rig.wrists[a][6]}
	}
	r, err := New(cfg, eps, logging.NewTestLogger(t), opts...)
	test.That(t, err, test.ShouldBeNil)
	r.drawPoses = func([]spatialmath.Pose, []string, bool) error { return nil }
	rig.robot = r
	return rig
}
