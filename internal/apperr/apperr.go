// Package apperr defines the error taxonomy shared across the acquisition
// and processing pipelines. Every component that can fail returns (or wraps)
// an *Error so callers can branch on Kind instead of parsing message strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable classification of a failure.
type Kind string

const (
	KindUnknown               Kind = "UNKNOWN"
	KindNetwork               Kind = "NETWORK"
	KindAPIKeyMissing         Kind = "API_KEY_MISSING"
	KindRateLimit             Kind = "RATE_LIMIT"
	KindInvalidCoordinates    Kind = "INVALID_COORDINATES"
	KindDataNotAvailable      Kind = "DATA_NOT_AVAILABLE"
	KindFileSizeExceeded      Kind = "FILE_SIZE_EXCEEDED"
	KindCache                 Kind = "CACHE"
	KindProcessing            Kind = "PROCESSING"
	KindCoordinateConversion  Kind = "COORDINATE_CONVERSION"
	KindAuth                  Kind = "AUTH"
	KindTimeout               Kind = "TIMEOUT"
	KindCancelled             Kind = "CANCELLED"
	KindMissingDSM            Kind = "MISSING_DSM"
)

// Error is the concrete error type returned by adapters, the router, the
// orchestrator, and the pipeline. It satisfies errors.Is/As via Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, apperr.New(KindX, "")) match on Kind alone,
// regardless of Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error carrying cause; Error() formats message with it.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of returns the Kind of err if it is (or wraps) an *Error, the empty Kind
// for a nil err, else KindUnknown.
func Of(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return Of(err) == kind
}
