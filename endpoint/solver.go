package endpoint

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
)

// ViamSolver talks to the tool-dimension solver exposed as a generic
// service.
type ViamSolver struct {
	svc doer
}

// NewViamSolver wraps a resource answering the solver verbs.
func NewViamSolver(svc doer) *ViamSolver {
	return &ViamSolver{svc: svc}
}

// Clear drops every collected sample.
func (s *ViamSolver) Clear(ctx context.Context) error {
	_, err := call(ctx, s.svc, "clear", nil)
	return err
}

// Select names the arm holding the tool and the eye observing it.
func (s *ViamSolver) Select(ctx context.Context, arm string, eye Eye) error {
	_, err := call(ctx, s.svc, "select", map[string]interface{}{"arm": arm, "eye": string(eye)})
	return err
}

// Enable starts sample collection.
func (s *ViamSolver) Enable(ctx context.Context) error {
	_, err := call(ctx, s.svc, "enable", nil)
	return err
}

// Disable stops sample collection.
func (s *ViamSolver) Disable(ctx context.Context) error {
	_, err := call(ctx, s.svc, "disable", nil)
	return err
}

// Count returns how many samples the solver has collected.
func (s *ViamSolver) Count(ctx context.Context) (int, error) {
	resp, err := call(ctx, s.svc, "num", nil)
	if err != nil {
		return 0, err
	}
	var reply struct {
		Count int `mapstructure:"count"`
	}
	if err := decode(resp, &reply); err != nil {
		return 0, fmt.Errorf("decode num reply: %w", err)
	}
	return reply.Count, nil
}

// Find asks for the tool tip estimate, in metres in the hand frame.
func (s *ViamSolver) Find(ctx context.Context) (r3.Vector, error) {
	resp, err := call(ctx, s.svc, "find", nil)
	if err != nil {
		return r3.Vector{}, err
	}
	var reply struct {
		X *float64 `mapstructure:"x"`
		Y *float64 `mapstructure:"y"`
		Z *float64 `mapstructure:"z"`
	}
	if err := decode(resp, &reply); err != nil {
		return r3.Vector{}, fmt.Errorf("decode find reply: %w", err)
	}
	if reply.X == nil || reply.Y == nil || reply.Z == nil {
		return r3.Vector{}, fmt.Errorf("find reply missing coordinates: %v", resp)
	}
	return r3.Vector{X: *reply.X, Y: *reply.Y, Z: *reply.Z}, nil
}
