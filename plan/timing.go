package plan

import (
	"math"
	"time"
)

const (
	minContactRadius = 0.04
	maxContactRadius = 0.18
	// toolTimeScale slows the contact segment down when a tool is held.
	toolTimeScale = 1.3
	// axialBand is how close to 0° or 180° theta must be for the fast profile.
	axialBand = 10.0
)

// TrajectoryTime is the duration of the push contact segment: linear in
// radius over [0.04, 0.18] m and clamped to the bounds of theta's profile.
func TrajectoryTime(theta, radius float64, toolAttached bool) time.Duration {
	th := NormalizeDegrees(theta)

	tmin, tmax := 0.50, 0.80
	if math.Abs(th) < axialBand || math.Abs(th) > 180-axialBand {
		tmin, tmax = 0.40, 0.60
	}
	if toolAttached {
		tmin *= toolTimeScale
		tmax *= toolTimeScale
	}

	t := tmin + (tmax-tmin)/(maxContactRadius-minContactRadius)*(radius-minContactRadius)
	t = math.Max(tmin, math.Min(tmax, t))
	return time.Duration(t * float64(time.Second))
}
