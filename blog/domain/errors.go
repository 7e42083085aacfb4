package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an identity lookup misses. It is an expected outcome, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord matches any *MalformedRecordError via errors.Is.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNoMorePages is returned by LoadMore on a list whose cursor is exhausted.
	ErrNoMorePages = errors.New("no more pages to load")

	// ErrInvalidCursor is returned when a cursor was not issued by the store it is presented to.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrLoadMoreInFlight is returned by LoadMore while another load on the same list is outstanding.
	ErrLoadMoreInFlight = errors.New("load more already in flight")
)

// MalformedRecordError reports a record missing a field the normalizer requires.
type MalformedRecordError struct {
	UID    string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed record %q: field %s: %s", e.UID, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record %q: missing required field %s", e.UID, e.Field)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// TransportError wraps a failed call to the content store.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("content store: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("content store: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call could succeed.
// Client errors (4xx other than 429) are permanent.
func (e *TransportError) Retryable() bool {
	if e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 429 {
		return false
	}
	return true
}

// IsTransportError reports whether err came from a failed content store call.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable()
}
