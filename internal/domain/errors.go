package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrUnsupportedService = errors.New("unsupported service")
)

// TransportError is a network or API-level failure while talking to an external service.
type TransportError struct {
	Adapter    string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Adapter, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Adapter, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedShapeError means the service answered but the payload lacks the fields we need.
type UnexpectedShapeError struct {
	Adapter string
	Reason  string
	Err     error
}

func (e *UnexpectedShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unexpected response: %s: %v", e.Adapter, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response: %s", e.Adapter, e.Reason)
}

func (e *UnexpectedShapeError) Unwrap() error { return e.Err }

// RenderError is a failure of the presentation renderer.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
