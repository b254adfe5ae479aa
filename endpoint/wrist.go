package endpoint

import (
	"context"
	"fmt"
)

// MotorClient is the part of motor.Motor a wrist needs.
type MotorClient interface {
	SetRPM(ctx context.Context, rpm float64, extra map[string]interface{}) error
	Position(ctx context.Context, extra map[string]interface{}) (float64, error)
	Stop(ctx context.Context, extra map[string]interface{}) error
}

// ViamWrist exposes a motor as a wrist joint in degrees.
type ViamWrist struct {
	motor MotorClient
}

// NewViamWrist wraps m.
func NewViamWrist(m MotorClient) *ViamWrist {
	return &ViamWrist{motor: m}
}

// Position converts the motor's revolutions to degrees.
func (w *ViamWrist) Position(ctx context.Context) (float64, error) {
	rev, err := w.motor.Position(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("wrist position: %w", err)
	}
	return rev * 360, nil
}

// SetVelocity converts degrees per second to RPM.
func (w *ViamWrist) SetVelocity(ctx context.Context, degPerSec float64) error {
	if err := w.motor.SetRPM(ctx, degPerSec/6, nil); err != nil {
		return fmt.Errorf("wrist velocity: %w", err)
	}
	return nil
}

// Stop halts the motor.
func (w *ViamWrist) Stop(ctx context.Context) error {
	if err := w.motor.Stop(ctx, nil); err != nil {
		return fmt.Errorf("wrist stop: %w", err)
	}
	return nil
}
