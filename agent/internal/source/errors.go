package source

import (
	"context"
	"errors"
	"net"

	"github.com/sony/gobreaker"
)

var (
	// ErrUnavailable marks a source that could not be reached.
	ErrUnavailable = errors.New("source unavailable")

	// ErrMalformed marks a response that could not be parsed.
	ErrMalformed = errors.New("malformed response")
)

// Failure classes returned by Classify.
const (
	ClassTimeout     = "timeout"
	ClassUnavailable = "unavailable"
	ClassMalformed   = "malformed"
	ClassBreakerOpen = "breaker_open"
	ClassError       = "error"
)

// Classify returns the failure class of a sampling error.
func Classify(err error) string {
	var ne net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ClassBreakerOpen
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return ClassTimeout
	case errors.Is(err, ErrMalformed):
		return ClassMalformed
	case errors.Is(err, ErrUnavailable):
		return ClassUnavailable
	default:
		return ClassError
	}
}
