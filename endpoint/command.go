package endpoint

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// doer is the DoCommand half of every Viam resource.
type doer interface {
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// commandKey is the field naming the verb of a DoCommand request.
const commandKey = "command"

// call sends verb with args to d. A reply carrying an "error" string is
// turned into an error.
func call(ctx context.Context, d doer, verb string, args map[string]interface{}) (map[string]interface{}, error) {
	cmd := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		cmd[k] = v
	}
	cmd[commandKey] = verb

	resp, err := d.DoCommand(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", verb, err)
	}
	if msg, ok := resp["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("%s: %s", verb, msg)
	}
	return resp, nil
}

// decode copies a DoCommand reply into out, converting numeric types.
func decode(resp map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(resp)
}

// contextReply is the reply to a store_context verb.
type contextReply struct {
	Context string `mapstructure:"context"`
}

func storeRemoteContext(ctx context.Context, d doer) (ContextToken, error) {
	resp, err := call(ctx, d, "store_context", nil)
	if err != nil {
		return "", err
	}
	var reply contextReply
	if err := decode(resp, &reply); err != nil {
		return "", fmt.Errorf("decode store_context reply: %w", err)
	}
	if reply.Context == "" {
		return "", fmt.Errorf("store_context: empty token")
	}
	return ContextToken(reply.Context), nil
}
