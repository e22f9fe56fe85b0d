package feeds

import (
	"errors"
	"fmt"
)

var (
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
	errUnexpected   = errors.New("unexpected status code")
	errMissingField = errors.New("missing field")
	errEmptyArray   = errors.New("empty array")
)

// FetchError reports a transport failure or non-2xx response from a feed.
type FetchError struct {
	Feed   string
	Status int // zero when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s fetch: status %d: %v", e.Feed, e.Status, e.Err)
	}
	return fmt.Sprintf("%s fetch: %v", e.Feed, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports a malformed payload or a missing/mistyped field.
type DecodeError struct {
	Feed  string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s decode %s: %v", e.Feed, e.Field, e.Err)
	}
	return fmt.Sprintf("%s decode: %v", e.Feed, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func missing(feed, field string) error {
	return &DecodeError{Feed: feed, Field: field, Err: errMissingField}
}
