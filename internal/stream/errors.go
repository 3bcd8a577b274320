package stream

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCancelled is the terminal error of a session stopped by its caller.
	ErrCancelled = fmt.Errorf("stream session cancelled: %w", context.Canceled)

	// ErrIdle is reported when no message arrives within the idle timeout.
	ErrIdle = errors.New("no message within idle timeout")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
)

// TransportFault is a recoverable connection failure. The session reports
// it in logs and reconnects.
type TransportFault struct {
	Attempt int
	Err     error
}

func (e *TransportFault) Error() string {
	return fmt.Sprintf("transport fault (attempt %d): %v", e.Attempt, e.Err)
}

func (e *TransportFault) Unwrap() error { return e.Err }

// FatalStreamError ends a session; reconnecting cannot fix it.
type FatalStreamError struct {
	Err error
}

func (e *FatalStreamError) Error() string {
	return fmt.Sprintf("fatal stream error: %v", e.Err)
}

func (e *FatalStreamError) Unwrap() error { return e.Err }
