package karma

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/plan"
)

// ArmConfig names the resources behind one arm.
type ArmConfig struct {
	// Arm is the arm component.
	Arm string `mapstructure:"arm"`
	// WristMotors maps a hand joint index (4 or 6) to the motor driving it.
	WristMotors map[int]string `mapstructure:"wrist_motors"`
	// SpeedCommand is the arm DoCommand key that sets the Cartesian speed
	// in mm/s before a move. Empty leaves the speed alone.
	SpeedCommand string `mapstructure:"speed_command"`
}

// ElbowConfig biases the elbow height while pushing and drawing.
type ElbowConfig struct {
	Height float64 `mapstructure:"height"`
	Weight float64 `mapstructure:"weight"`
}

// ExploreConfig holds the tool exploration timings and thresholds.
type ExploreConfig struct {
	Tick           time.Duration `mapstructure:"tick"`
	Window         time.Duration `mapstructure:"window"`
	MinSamples     int           `mapstructure:"min_samples"`
	PixelVOffset   float64       `mapstructure:"pixel_v_offset"`
	PixelTarget    float64       `mapstructure:"pixel_target"`
	PixelTolerance float64       `mapstructure:"pixel_tolerance"`
	QuotaPoll      time.Duration `mapstructure:"quota_poll"`
	MoveTime       time.Duration `mapstructure:"move_time"`
	MoveTimeout    time.Duration `mapstructure:"move_timeout"`
	NeckTime       time.Duration `mapstructure:"neck_time"`
	EyesTime       time.Duration `mapstructure:"eyes_time"`

	ShakeAmplitude float64       `mapstructure:"shake_amplitude_deg"`
	ShakeSpeed     float64       `mapstructure:"shake_speed_deg_s"`
	ShakePeriod    time.Duration `mapstructure:"shake_period"`
}

// Config is everything the engine needs besides its collaborators.
type Config struct {
	Left  ArmConfig `mapstructure:"left"`
	Right ArmConfig `mapstructure:"right"`

	MotionService string `mapstructure:"motion_service"`
	Gaze          string `mapstructure:"gaze"`
	Solver        string `mapstructure:"solver"`
	PixelSensor   string `mapstructure:"pixel_sensor"`

	// DOF is the number of axes each arm controller drives, torso first.
	DOF int `mapstructure:"dof"`
	// Elbow enables the elbow height task. Nil disables it.
	Elbow *ElbowConfig `mapstructure:"elbow_set"`
	// MovTime is the contact duration of pose-mode pushes and draws.
	MovTime  time.Duration `mapstructure:"mov_time"`
	WaitPoll time.Duration `mapstructure:"wait_poll"`
	// CallTimeout bounds every collaborator call. A motion wait gets its
	// own timeout plus this.
	CallTimeout time.Duration `mapstructure:"call_timeout"`

	// Visualize draws every planned waypoint with motion-tools.
	Visualize bool `mapstructure:"visualize"`

	Explore ExploreConfig `mapstructure:"explore"`
}

// DefaultConfig returns the configuration the engine was tuned with.
func DefaultConfig() Config {
	return Config{
		Left:          ArmConfig{Arm: "left-arm"},
		Right:         ArmConfig{Arm: "right-arm"},
		MotionService: endpoint.MotionServiceName,
		Gaze:          "gaze",
		Solver:        "tool-solver",
		PixelSensor:   "tool-tip-tracker",
		DOF:           10,
		MovTime:       time.Second,
		WaitPoll:      100 * time.Millisecond,
		CallTimeout:   5 * time.Second,
		Explore: ExploreConfig{
			Tick:           20 * time.Millisecond,
			Window:         3 * time.Second,
			MinSamples:     20,
			PixelVOffset:   50,
			PixelTarget:    120,
			PixelTolerance: 30,
			QuotaPoll:      100 * time.Millisecond,
			MoveTime:       time.Second,
			MoveTimeout:    10 * time.Second,
			NeckTime:       2500 * time.Millisecond,
			EyesTime:       1500 * time.Millisecond,
			ShakeAmplitude: 6,
			ShakeSpeed:     120,
			ShakePeriod:    20 * time.Millisecond,
		},
	}
}

// ArmConfig returns the resource names for a.
func (c Config) ArmConfig(a plan.Arm) ArmConfig {
	if a == plan.Left {
		return c.Left
	}
	return c.Right
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	for _, a := range plan.Arms {
		if c.ArmConfig(a).Arm == "" {
			return invalidf("%s arm name is empty", a)
		}
	}
	if c.DOF < 2 {
		return invalidf("dof must be at least 2, got %d", c.DOF)
	}
	if c.MovTime <= 0 || c.WaitPoll <= 0 || c.CallTimeout <= 0 {
		return invalidf("mov_time, wait_poll and call_timeout must be positive")
	}
	if c.Elbow != nil && c.Elbow.Weight < 0 {
		return invalidf("elbow weight must not be negative")
	}
	e := c.Explore
	if e.Tick <= 0 || e.Window <= 0 || e.QuotaPoll <= 0 || e.ShakePeriod <= 0 {
		return invalidf("explore periods must be positive")
	}
	if e.MoveTimeout <= 0 || e.MoveTime <= 0 {
		return invalidf("explore move time and timeout must be positive")
	}
	if e.MinSamples < 0 || e.PixelTolerance <= 0 {
		return invalidf("explore thresholds must be positive")
	}
	return nil
}

// elbowDefaults fills an elbow block that names neither field.
var elbowDefaults = ElbowConfig{Height: 0.4, Weight: 30}

// LoadConfig reads a JSON config file on top of DefaultConfig. Durations
// are strings such as "20ms".
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	if e, ok := raw["elbow_set"].(map[string]interface{}); ok {
		if _, ok := e["height"]; !ok {
			e["height"] = elbowDefaults.Height
		}
		if _, ok := e["weight"]; !ok {
			e["weight"] = elbowDefaults.Weight
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("decoding config file: %w", err)
	}
	return cfg, cfg.Validate()
}
