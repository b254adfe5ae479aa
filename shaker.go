package karma

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"

	"github.com/lorejam/karma/endpoint"
)

// shaker swings a wrist joint between -amplitude and +amplitude degrees so
// the tool tip moves in front of the cameras.
type shaker struct {
	r     *Robot
	wrist endpoint.Wrist
	flip  float64
}

// step reverses the target once the joint has crossed it, then drives the
// joint towards the target at the configured speed.
func (s *shaker) step(ctx context.Context) error {
	pos, err := s.wrist.Position(ctx)
	if err != nil {
		return err
	}
	e := s.flip - pos
	if (s.flip > 0 && e < 0) || (s.flip < 0 && e > 0) {
		s.flip = -s.flip
		e = s.flip - pos
	}
	v := s.r.cfg.Explore.ShakeSpeed
	if e < 0 {
		v = -v
	}
	return s.wrist.SetVelocity(ctx, v)
}

// startShaking runs the shaker in the background until the returned stop
// function is called. A missing wrist shakes nothing.
func (r *Robot) startShaking(ctx context.Context, wrist endpoint.Wrist) (stop func() error) {
	if wrist == nil {
		return func() error { return nil }
	}
	s := &shaker{r: r, wrist: wrist, flip: r.cfg.Explore.ShakeAmplitude}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	goutils.PanicCapturingGo(func() {
		defer wg.Done()
		ticker := r.clock.Ticker(r.cfg.Explore.ShakePeriod)
		defer ticker.Stop()
		for {
			if !r.interrupted.Load() {
				if err := s.step(ctx); err != nil && ctx.Err() == nil {
					r.logger.Debugf("wrist shake: %v", err)
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	return func() error {
		cancel()
		wg.Wait()
		return wrist.Stop(context.WithoutCancel(ctx))
	}
}
