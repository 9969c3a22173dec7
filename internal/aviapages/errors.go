package aviapages

import (
	"errors"
	"strings"
)

// ErrConnection is matched by every ConnectionError.
var ErrConnection = errors.New("Connection failure")

// ConnectionError means an Aviapages service could not be reached or
// answered with an unexpected status.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return ErrConnection.Error()
	}
	return ErrConnection.Error() + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// NotFoundError means a directory search returned no usable entry.
type NotFoundError struct {
	Subject string // "Departure airport", "Arrival airport", "Aircraft".
}

func (e *NotFoundError) Error() string { return e.Subject + " not found" }

// CalcError carries the messages the flight calculator rejected a request
// with, for example an infeasible payload or range.
type CalcError struct {
	Messages []string
}

func (e *CalcError) Error() string { return strings.Join(e.Messages, "\n") }
