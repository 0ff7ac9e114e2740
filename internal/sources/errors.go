package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorKind classifies an adapter failure.
type ErrorKind string

// Adapter failure kinds.
const (
	KindTimeout      ErrorKind = "timeout"
	KindRateLimited  ErrorKind = "rate_limited"
	KindParseFailure ErrorKind = "parse_failure"
	KindUnavailable  ErrorKind = "unavailable"
)

// Adapter failure sentinels, matched with errors.Is on an *AdapterError.
var (
	ErrTimeout      = errors.New("source timed out")
	ErrRateLimited  = errors.New("source rate limited")
	ErrParseFailure = errors.New("source response could not be parsed")
	ErrUnavailable  = errors.New("source unavailable")

	// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")

	// ErrBodyTooLarge indicates a response larger than the configured buffer.
	ErrBodyTooLarge = errors.New("response body exceeds buffer size")
)

// AdapterError is the typed failure every adapter returns.
type AdapterError struct {
	Err        error
	Source     string
	Kind       ErrorKind
	RetryAfter time.Duration
}

// NewAdapterError builds an AdapterError.
func NewAdapterError(source string, kind ErrorKind, err error) *AdapterError {
	return &AdapterError{Source: source, Kind: kind, Err: err}
}

func (e *AdapterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *AdapterError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindRateLimited:
		return ErrRateLimited
	case KindParseFailure:
		return ErrParseFailure
	}

	return ErrUnavailable
}

// Classify turns any adapter error into an *AdapterError. Errors already typed
// keep their kind; context expiry and network timeouts become KindTimeout and
// anything else KindUnavailable.
func Classify(source string, err error) *AdapterError {
	if err == nil {
		return nil
	}

	var ae *AdapterError
	if errors.As(err, &ae) {
		if ae.Source == "" {
			ae.Source = source
		}

		return ae
	}

	if isTimeout(err) {
		return NewAdapterError(source, KindTimeout, err)
	}

	return NewAdapterError(source, KindUnavailable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
