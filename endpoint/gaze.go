package endpoint

import (
	"context"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// ViamGaze drives a gaze controller exposed as a generic service. Every
// call is a DoCommand {"command": verb, ...}.
type ViamGaze struct {
	svc doer
}

// NewViamGaze wraps a resource answering the gaze verbs.
func NewViamGaze(svc doer) *ViamGaze {
	return &ViamGaze{svc: svc}
}

// StoreContext saves the gaze controller settings and returns their token.
func (g *ViamGaze) StoreContext(ctx context.Context) (ContextToken, error) {
	return storeRemoteContext(ctx, g.svc)
}

// RestoreContext reinstates the settings saved under token.
func (g *ViamGaze) RestoreContext(ctx context.Context, token ContextToken) error {
	_, err := call(ctx, g.svc, "restore_context", map[string]interface{}{"context": string(token)})
	return err
}

// DeleteContext releases token.
func (g *ViamGaze) DeleteContext(ctx context.Context, token ContextToken) error {
	_, err := call(ctx, g.svc, "delete_context", map[string]interface{}{"context": string(token)})
	return err
}

// SetTrackingMode turns continuous fixation tracking on or off.
func (g *ViamGaze) SetTrackingMode(ctx context.Context, on bool) error {
	_, err := call(ctx, g.svc, "set_tracking", map[string]interface{}{"enabled": on})
	return err
}

// LookAtPoint fixates p, in metres in the robot root frame.
func (g *ViamGaze) LookAtPoint(ctx context.Context, p r3.Vector) error {
	_, err := call(ctx, g.svc, "look_at_point", map[string]interface{}{"x": p.X, "y": p.Y, "z": p.Z})
	return err
}

// LookAtPixel moves the gaze so px in eye's image becomes the fixation.
func (g *ViamGaze) LookAtPixel(ctx context.Context, eye Eye, px r2.Point) error {
	_, err := call(ctx, g.svc, "look_at_pixel", map[string]interface{}{"eye": string(eye), "u": px.X, "v": px.Y})
	return err
}

// SetSaccades enables or disables spontaneous saccades.
func (g *ViamGaze) SetSaccades(ctx context.Context, on bool) error {
	_, err := call(ctx, g.svc, "set_saccades", map[string]interface{}{"enabled": on})
	return err
}

// SetTrajTimes sets the neck and eye trajectory durations.
func (g *ViamGaze) SetTrajTimes(ctx context.Context, neck, eyes time.Duration) error {
	_, err := call(ctx, g.svc, "set_traj_times", map[string]interface{}{
		"neck_s": neck.Seconds(),
		"eyes_s": eyes.Seconds(),
	})
	return err
}

// Stop halts head and eyes.
func (g *ViamGaze) Stop(ctx context.Context) error {
	_, err := call(ctx, g.svc, "stop", nil)
	return err
}
