package rcon

import "github.com/danmuck/rconctl/internal/protocol/frame"

// Answer is an immutable result of one request.
type Answer struct {
	Success       bool
	Data          []byte
	CorrelationID int32
}

// EmptyAnswer stands for "nothing yet", "failed" and "timed out" alike. A server
// answer with no output is Success=true with empty Data and is not EmptyAnswer.
var EmptyAnswer = Answer{Success: false, CorrelationID: frame.InvalidRequestID}

// Text is the UTF-8 payload.
func (a Answer) Text() string {
	return string(a.Data)
}

func (a Answer) IsEmpty() bool {
	return !a.Success && len(a.Data) == 0 && a.CorrelationID == frame.InvalidRequestID
}

func answerFromFrame(f frame.Frame) Answer {
	return Answer{
		Success:       f.RequestID > frame.InvalidRequestID,
		Data:          f.Payload,
		CorrelationID: f.RequestID,
	}
}
