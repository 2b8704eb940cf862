package rcon

import (
	"context"
	"errors"

	"github.com/danmuck/rconctl/internal/protocol/frame"
)

// FailureKind classifies why a send produced EmptyAnswer.
type FailureKind string

const (
	FailureTimeout       FailureKind = "timeout"
	FailureNotConfigured FailureKind = "not_configured"
	FailureNotConnected  FailureKind = "not_connected"
	FailureIO            FailureKind = "io"
	FailureCanceled      FailureKind = "canceled"
)

// Failure is delivered to Config.OnFailure for every send that fails.
type Failure struct {
	Kind      FailureKind
	RequestID int32
	Type      frame.MessageType
	Command   string
	Err       error
}

func ClassifyError(err error) FailureKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, ErrNotConfigured):
		return FailureNotConfigured
	case errors.Is(err, ErrNotConnected):
		return FailureNotConnected
	default:
		return FailureIO
	}
}
