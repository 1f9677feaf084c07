package client

import (
	"errors"
	"fmt"
)

type (
	// HTTPError reports a non-successful upstream status
	HTTPError struct {
		Status     int
		StatusText string
		Body       string
	}

	// TimeoutError reports that an attempt's deadline elapsed before the
	// upstream responded
	TimeoutError struct {
		Timeout string
		Err     error
	}

	// TransportError reports a network-level failure or an unreadable
	// upstream reply
	TransportError struct {
		Err error
	}

	// RetriesExhaustedError wraps the final failure once every attempt has
	// been spent
	RetriesExhaustedError struct {
		Attempts  int
		LastError error
	}
)

var (
	ErrUpstreamHTTP         = errors.New("upstream returned HTTP error")
	ErrTimeout              = errors.New("upstream request timed out")
	ErrTransport            = errors.New("upstream transport failure")
	ErrRetriesExhausted     = errors.New("upstream retries exhausted")
	ErrStreamingNotGranted  = errors.New("streaming requested but not granted")
	ErrInvalidUpstreamShape = errors.New(
		"invalid API response: missing outputs",
	)
	ErrInvalidResponseBody = errors.New("upstream returned invalid JSON")
	ErrInvalidConfig       = errors.New("invalid client configuration")
)

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %d %s - %s",
		ErrUpstreamHTTP, e.Status, e.StatusText, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrUpstreamHTTP
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrTimeout, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v",
		ErrRetriesExhausted, e.Attempts, e.LastError)
}

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastError
}
