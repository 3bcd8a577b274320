package historical

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is returned when the caller cancels a fetch.
var ErrCancelled = fmt.Errorf("historical fetch cancelled: %w", context.Canceled)

// FetchError is a gateway failure with enough context to resume.
type FetchError struct {
	Symbol    string
	PageToken string    // Token of the page that failed; empty for the first page
	Last      time.Time // Timestamp of the last bar handled before the failure
	Err       error
}

// Position returns where FetchSymbol should restart.
func (e *FetchError) Position() Position {
	return Position{PageToken: e.PageToken, After: e.Last}
}

func (e *FetchError) Error() string {
	if e.PageToken == "" {
		return fmt.Sprintf("fetch %s (first page): %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("fetch %s (page %s): %v", e.Symbol, e.PageToken, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OrderingViolation reports a bar older than its predecessor.
type OrderingViolation struct {
	Symbol    string
	PageToken string
	Prev      time.Time
	Got       time.Time
}

func (e *OrderingViolation) Error() string {
	return fmt.Sprintf("ordering violation for %s: %s after %s",
		e.Symbol, e.Got.Format(time.RFC3339Nano), e.Prev.Format(time.RFC3339Nano))
}

// BarError wraps a normalization or handler failure with its position.
type BarError struct {
	Symbol    string
	PageToken string
	Err       error
}

func (e *BarError) Error() string {
	return fmt.Sprintf("%s (page token %q): %v", e.Symbol, e.PageToken, e.Err)
}

func (e *BarError) Unwrap() error { return e.Err }

// ctxErr maps a done context to the error a fetch reports.
func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return fmt.Errorf("historical fetch: %w", err)
}
