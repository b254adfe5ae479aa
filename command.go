package karma

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"

	"github.com/lorejam/karma/endpoint"
	"github.com/lorejam/karma/plan"
)

// targetArgs are the fields shared by push and draw commands.
type targetArgs struct {
	Centroid []float64 `mapstructure:"centroid"`
	Theta    float64   `mapstructure:"theta"`
	Radius   float64   `mapstructure:"radius"`
	Dist     float64   `mapstructure:"dist"`
	Pose     *int      `mapstructure:"pose"`
	Arm      string    `mapstructure:"arm"`
}

func (t targetArgs) centroid() (r3.Vector, error) {
	return vec3(t.Centroid, "centroid")
}

func (t targetArgs) hand(withPose bool) (plan.HandPose, error) {
	if !withPose {
		return plan.Legacy, nil
	}
	if t.Pose == nil {
		return plan.Legacy, invalidf("pose index is required")
	}
	h, err := plan.HandPoseFromIndex(*t.Pose)
	if err != nil {
		return plan.Legacy, invalidf("%v", err)
	}
	return h, nil
}

type findArgs struct {
	Arm string `mapstructure:"arm"`
	Eye string `mapstructure:"eye"`
}

type toolArgs struct {
	Action string    `mapstructure:"action"`
	Arm    string    `mapstructure:"arm"`
	Point  []float64 `mapstructure:"point"`
}

func vec3(v []float64, name string) (r3.Vector, error) {
	if len(v) != 3 {
		return r3.Vector{}, invalidf("%s needs 3 values, got %d", name, len(v))
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

func decodeArgs(cmd map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(cmd); err != nil {
		return invalidf("%v", err)
	}
	return nil
}

// DoCommand runs one command map {"command": verb, ...} and builds its
// reply. Failed commands reply {"ack": false, "error": ...} and also return
// the error.
func (r *Robot) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	verb, _ := cmd["command"].(string)
	resp, err := r.doCommand(ctx, verb, cmd)
	if err != nil {
		r.logger.Warnf("%s failed: %v", verb, err)
		return map[string]interface{}{"ack": false, "error": err.Error()}, err
	}
	resp["ack"] = true
	return resp, nil
}

func (r *Robot) doCommand(ctx context.Context, verb string, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch verb {
	case "push", "pusp":
		var args targetArgs
		if err := decodeArgs(cmd, &args); err != nil {
			return nil, err
		}
		req, err := pushRequest(args, verb == "pusp")
		if err != nil {
			return nil, err
		}
		out, err := r.Push(ctx, req)
		return outcomeReply(out), err

	case "draw", "vdra", "drap", "vdrp":
		var args targetArgs
		if err := decodeArgs(cmd, &args); err != nil {
			return nil, err
		}
		req, err := drawRequest(args, verb == "drap" || verb == "vdrp")
		if err != nil {
			return nil, err
		}
		req.Simulate = verb == "vdra" || verb == "vdrp"
		out, err := r.Draw(ctx, req)
		if err != nil {
			return nil, err
		}
		resp := outcomeReply(out)
		if req.Simulate && !out.Cancelled {
			resp["quality"] = out.Quality
		}
		return resp, nil

	case "find":
		var args findArgs
		if err := decodeArgs(cmd, &args); err != nil {
			return nil, err
		}
		a, err := plan.ParseArm(args.Arm)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		eye, err := endpoint.ParseEye(args.Eye)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		out, err := r.FindToolTip(ctx, a, eye)
		if err != nil {
			return nil, err
		}
		resp := outcomeReply(out)
		if !out.Cancelled {
			resp["tool_tip"] = []float64{out.ToolTip.X, out.ToolTip.Y, out.ToolTip.Z}
		}
		return resp, nil

	case "tool", "toop":
		var args toolArgs
		if err := decodeArgs(cmd, &args); err != nil {
			return nil, err
		}
		return r.toolCommand(args, verb == "tool")

	case "stop":
		return map[string]interface{}{}, r.Interrupt(ctx)

	default:
		return nil, invalidf("unknown command %q", verb)
	}
}

func pushRequest(args targetArgs, withPose bool) (PushRequest, error) {
	c, err := args.centroid()
	if err != nil {
		return PushRequest{}, err
	}
	hand, err := args.hand(withPose)
	if err != nil {
		return PushRequest{}, err
	}
	hint, err := plan.ParseArmHint(args.Arm)
	if err != nil {
		return PushRequest{}, invalidf("%v", err)
	}
	return PushRequest{Centroid: c, Theta: args.Theta, Radius: args.Radius, Hand: hand, Arm: hint}, nil
}

func drawRequest(args targetArgs, withPose bool) (DrawRequest, error) {
	p, err := pushRequest(args, withPose)
	if err != nil {
		return DrawRequest{}, err
	}
	return DrawRequest{
		Centroid: p.Centroid, Theta: p.Theta, Radius: p.Radius, Pull: args.Dist,
		Hand: p.Hand, Arm: p.Arm,
	}, nil
}

func outcomeReply(out Outcome) map[string]interface{} {
	resp := map[string]interface{}{"arm": out.Arm.String()}
	if out.Cancelled {
		resp["cancelled"] = true
	}
	return resp
}

func (r *Robot) toolCommand(args toolArgs, oriented bool) (map[string]interface{}, error) {
	switch args.Action {
	case "attach":
		hint, err := plan.ParseArmHint(args.Arm)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		tip, err := vec3(args.Point, "point")
		if err != nil {
			return nil, err
		}
		kind := Aligned
		if oriented {
			kind = Oriented
		}
		r.AttachTool(hint, tip, kind)
		return map[string]interface{}{}, nil
	case "get":
		hint, tip := r.tool.Get()
		return map[string]interface{}{
			"arm":   hint.String(),
			"point": []float64{tip.X, tip.Y, tip.Z},
		}, nil
	case "remove":
		r.RemoveTool()
		return map[string]interface{}{}, nil
	default:
		return nil, invalidf("unknown tool action %q", args.Action)
	}
}

// ParseLine turns a whitespace separated command line such as
// "push 0.3 0.1 -0.1 45 0.05" into a DoCommand map. Push and draw lines
// take an optional trailing arm.
func ParseLine(line string) (map[string]interface{}, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, invalidf("empty command")
	}
	verb, rest := strings.ToLower(fields[0]), fields[1:]
	cmd := map[string]interface{}{"command": verb}

	switch verb {
	case "push", "pusp", "draw", "vdra", "drap", "vdrp":
		withPose := verb == "pusp" || verb == "drap" || verb == "vdrp"
		withDist := verb != "push" && verb != "pusp"
		if withPose {
			if len(rest) == 0 {
				return nil, invalidf("%s needs a pose index", verb)
			}
			pose, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, invalidf("pose index %q: %v", rest[0], err)
			}
			cmd["pose"] = pose
			rest = rest[1:]
		}
		want := 5
		if withDist {
			want = 6
		}
		if len(rest) != want && len(rest) != want+1 {
			return nil, invalidf("%s needs %d numbers, got %d", verb, want, len(rest))
		}
		nums, err := parseFloats(rest[:want])
		if err != nil {
			return nil, err
		}
		cmd["centroid"] = nums[:3]
		cmd["theta"] = nums[3]
		cmd["radius"] = nums[4]
		if withDist {
			cmd["dist"] = nums[5]
		}
		if len(rest) > want {
			cmd["arm"] = rest[want]
		}

	case "find":
		if len(rest) != 2 {
			return nil, invalidf("find needs an arm and an eye")
		}
		cmd["arm"], cmd["eye"] = rest[0], rest[1]

	case "tool", "toop":
		if len(rest) == 0 {
			return nil, invalidf("%s needs an action", verb)
		}
		cmd["action"] = strings.ToLower(rest[0])
		if cmd["action"] == "attach" {
			if len(rest) != 5 {
				return nil, invalidf("%s attach needs an arm and 3 numbers", verb)
			}
			nums, err := parseFloats(rest[2:])
			if err != nil {
				return nil, err
			}
			cmd["arm"], cmd["point"] = rest[1], nums
		}

	case "stop":

	default:
		return nil, invalidf("unknown command %q", verb)
	}
	return cmd, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidParameter, f)
		}
		out[i] = v
	}
	return out, nil
}
