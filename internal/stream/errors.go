package stream

import (
	"errors"
	"fmt"
)

type (
	// ParseError reports an event whose payload was not valid JSON. It does
	// not end the session
	ParseError struct {
		Data string
		Err  error
	}

	// TransportError reports a connection-level failure. It ends the session
	TransportError struct {
		Err error
	}
)

var (
	ErrStreamParse     = errors.New("error parsing stream data")
	ErrStreamTransport = errors.New("stream error")
	ErrStreamEnded     = errors.New("stream ended without close event")
	ErrMissingURL      = errors.New("stream URL is required")
	ErrSubscribeStatus = errors.New("stream subscription rejected")
	ErrLineTooLong     = errors.New("stream line exceeds maximum size")
)

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStreamParse, e.Err)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrStreamParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStreamTransport, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrStreamTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
