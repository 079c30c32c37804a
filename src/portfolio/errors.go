package portfolio

import (
	"errors"
	"fmt"
	"time"
)

// Global error declarations.
var (
	ErrInvalidRange   = errors.New("end must be on or after start")
	ErrBenchmarkEmpty = errors.New("benchmark index has no points")
)

// ValidationError rejects a request before any durable state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientSharesError means a SELL would drive a ticker's share count
// negative at some point of the ledger replay.
type InsufficientSharesError struct {
	Ticker string
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("SELL exceeds shares for %s", e.Ticker)
}

// NotFoundError means the resource does not exist or does not belong to
// the requesting user. The two cases are deliberately indistinguishable.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// PriceUnavailableError means no price exists on or before the requested
// date for a required lookup, e.g. auto-filling a transaction price.
type PriceUnavailableError struct {
	Ticker     string
	OnOrBefore time.Time
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("no price found for %s on/before %s", e.Ticker, e.OnOrBefore.Format(dateLayout))
}
