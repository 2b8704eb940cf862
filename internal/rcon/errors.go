package rcon

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured     = errors.New("rcon: client not configured")
	ErrNotConnected      = errors.New("rcon: not connected")
	ErrAuthFailed        = errors.New("rcon: authentication failed")
	ErrTimeout           = errors.New("rcon: answer timed out")
	ErrIO                = errors.New("rcon: connection i/o failed")
	ErrCorrelatorStarted = errors.New("rcon: correlator already started")
)

// ConnectionError is returned by Configure/Open when dialing or login fails.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rcon: connect failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("rcon: connect failed: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}
