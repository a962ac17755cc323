package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a submission is empty after trimming whitespace.
	ErrInvalidInput = errors.New("message is empty")
	// ErrMalformedRecord marks a streamed record whose payload could not be decoded. Callers skip the
	// record and keep reading.
	ErrMalformedRecord = errors.New("malformed stream record")
	// ErrPostNotFound is returned by post stores for an unknown slug.
	ErrPostNotFound = errors.New("post not found")
)

// RequestError is returned when the remote endpoint answers with a non-2xx status before any content is
// streamed. Message holds the provider's error.message when one was present in the body.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, msg)
}

// StreamError is returned when the transport fails after streaming has started. Partial is the text
// assembled before the failure.
type StreamError struct {
	Err     error
	Partial string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
