package bridge

import (
	"errors"
	"fmt"
)

// ErrLinkLost marks a process exit caused by the connection worker stopping.
var ErrLinkLost = errors.New("lost connection to meshtastic device")

// WorkerExitError carries how the connection worker ended. It matches
// ErrLinkLost and, when present, the worker's own error.
type WorkerExitError struct {
	Link string
	Err  error
}

func (e *WorkerExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: worker for %s exited without error", ErrLinkLost, e.Link)
	}
	return fmt.Sprintf("%s: worker for %s: %v", ErrLinkLost, e.Link, e.Err)
}

func (e *WorkerExitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLinkLost}
	}
	return []error{ErrLinkLost, e.Err}
}
