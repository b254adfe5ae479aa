package endpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/geo/r2"
)

// ReadingsClient is the part of sensor.Sensor the pixel feed needs.
type ReadingsClient interface {
	Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
}

// ViamPixelFeed reads tool-tip observations from a sensor whose readings
// carry "u", "v" and an increasing "seq". A reading without u and v means
// the tip is not visible; a repeated seq is not new.
type ViamPixelFeed struct {
	sensor ReadingsClient

	mu      sync.Mutex
	lastSeq *int64
}

// NewViamPixelFeed wraps s.
func NewViamPixelFeed(s ReadingsClient) *ViamPixelFeed {
	return &ViamPixelFeed{sensor: s}
}

type pixelReading struct {
	U   *float64 `mapstructure:"u"`
	V   *float64 `mapstructure:"v"`
	Seq *int64   `mapstructure:"seq"`
}

// Latest returns the newest observation, if any arrived since the last call.
func (f *ViamPixelFeed) Latest(ctx context.Context) (r2.Point, bool, error) {
	readings, err := f.sensor.Readings(ctx, nil)
	if err != nil {
		return r2.Point{}, false, fmt.Errorf("pixel readings: %w", err)
	}
	var r pixelReading
	if err := decode(readings, &r); err != nil {
		return r2.Point{}, false, fmt.Errorf("decode pixel reading: %w", err)
	}
	if r.U == nil || r.V == nil {
		return r2.Point{}, false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Seq != nil {
		if f.lastSeq != nil && *f.lastSeq == *r.Seq {
			return r2.Point{}, false, nil
		}
		seq := *r.Seq
		f.lastSeq = &seq
	}
	return r2.Point{X: *r.U, Y: *r.V}, true, nil
}
