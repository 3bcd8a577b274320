package gateway

import (
	"errors"
	"fmt"
)

// ProviderError is an error reported in-band by the streaming provider.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Provider error codes.
const (
	CodeInvalidSyntax       = 400
	CodeNotAuthenticated    = 401
	CodeAuthFailed          = 402
	CodeAlreadyAuthed       = 403
	CodeAuthTimeout         = 404
	CodeSymbolLimit         = 405
	CodeConnectionLimit     = 406
	CodeSlowClient          = 407
	CodeInsufficientSub     = 409
	CodeInvalidSubscription = 410
	CodeInternal            = 500
)

// Fatal reports whether reconnecting cannot fix the error. Auth timeouts,
// duplicate auth, connection limits (a previous socket not yet released)
// and slow-client disconnects are recoverable; so is any 5xx.
func (e *ProviderError) Fatal() bool {
	switch e.Code {
	case CodeAlreadyAuthed, CodeAuthTimeout, CodeConnectionLimit, CodeSlowClient:
		return false
	}
	return e.Code < 500
}

// IsFatal reports whether err carries a fatal provider error.
func IsFatal(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Fatal()
}
