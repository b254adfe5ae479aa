package karma

import (
	"errors"
	"fmt"

	"github.com/lorejam/karma/endpoint"
)

var (
	// ErrInvalidParameter is returned for requests the engine refuses to plan.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnreachable is the endpoint's answer for a pose it cannot solve.
	ErrUnreachable = endpoint.ErrUnreachable

	// ErrEndpointFault is returned when a collaborator fails or does not
	// finish a motion in time. Faults are not retried.
	ErrEndpointFault = errors.New("endpoint fault")

	// ErrBusy is returned when an action is requested while another runs.
	ErrBusy = errors.New("another action is running")

	// errCancelled unwinds an action after Interrupt. It never leaves the
	// package; callers see Outcome.Cancelled instead.
	errCancelled = errors.New("action cancelled")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func fault(op string, err error) error {
	if errors.Is(err, ErrEndpointFault) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrEndpointFault, err)
}
