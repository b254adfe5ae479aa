package karma

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	goutils "go.viam.com/utils"
)

// isAction reports whether verb moves the robot and so runs in the
// background.
func isAction(verb interface{}) bool {
	switch verb {
	case "push", "pusp", "draw", "vdra", "drap", "vdrp", "find":
		return true
	}
	return false
}

// Run serves command lines read from in until in is exhausted or ctx is
// done, writing one JSON reply per line to out. Actions run in the
// background so a "stop" line interrupts the running one; a second action
// while one runs is refused with ErrBusy. Tool and stop commands answer
// in order.
func Run(ctx context.Context, r *Robot, in io.Reader, out io.Writer) error {
	r.logger.Info("serving commands")

	var (
		wg    sync.WaitGroup
		outMu sync.Mutex
	)
	reply := func(resp map[string]interface{}) {
		outMu.Lock()
		defer outMu.Unlock()
		if err := json.NewEncoder(out).Encode(resp); err != nil {
			r.logger.Warnf("failed to write reply: %v", err)
		}
	}
	defer wg.Wait()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	goutils.PanicCapturingGo(func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	})

	for {
		var line string
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down")
			if err := r.Interrupt(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warnf("interrupt on shutdown: %v", err)
			}
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading commands: %w", err)
					}
				default:
				}
				return nil
			}
			line = l
		}

		cmd, err := ParseLine(line)
		if err != nil {
			reply(map[string]interface{}{"ack": false, "error": err.Error()})
			continue
		}
		if !isAction(cmd["command"]) {
			resp, _ := r.DoCommand(ctx, cmd)
			reply(resp)
			continue
		}

		wg.Add(1)
		goutils.PanicCapturingGo(func() {
			defer wg.Done()
			resp, _ := r.DoCommand(ctx, cmd)
			reply(resp)
		})
	}
}
