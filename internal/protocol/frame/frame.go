package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderLen covers length, request id and type.
	HeaderLen = 12
	// MinLength is the length field value of a frame with an empty payload.
	MinLength = 10
	// PaddingLen trailing zero bytes follow every payload.
	PaddingLen = 2

	InvalidRequestID int32 = -1
)

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrShortPayload    = errors.New("frame: short payload")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// MessageType is the RCON packet type field.
type MessageType int32

const (
	Invalid  MessageType = -1
	Response MessageType = 0
	Command  MessageType = 2
	Login    MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case Response:
		return "response"
	case Command:
		return "command"
	case Login:
		return "login"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("type(%d)", int32(t))
	}
}

// Frame is one decoded wire packet. Padding is consumed, never stored.
type Frame struct {
	Length    int32
	RequestID int32
	Type      MessageType
	Payload   []byte
}

// Limits constrains decode memory use.
type Limits struct {
	MaxPayloadBytes int32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 1 << 20,
	}
}

// Encode builds the wire form of one frame: 14 bytes of framing plus the UTF-8 command.
func Encode(typ MessageType, command string, requestID int32) []byte {
	payloadLen := len(command)
	buf := make([]byte, HeaderLen+payloadLen+PaddingLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(MinLength+payloadLen)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(requestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(typ))
	copy(buf[HeaderLen:], command)
	return buf
}

// WriteFrame writes one encoded frame with a single Write call.
func WriteFrame(w io.Writer, typ MessageType, command string, requestID int32) error {
	_, err := w.Write(Encode(typ, command, requestID))
	return err
}

// ReadFrame decodes one frame. Any short read surfaces as an error; callers treat
// that as the peer going away.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	f := Frame{
		Length:    int32(binary.LittleEndian.Uint32(head[0:4])),
		RequestID: int32(binary.LittleEndian.Uint32(head[4:8])),
		Type:      MessageType(int32(binary.LittleEndian.Uint32(head[8:12]))),
	}

	payloadLen := f.Length - MinLength
	if payloadLen < 0 {
		payloadLen = 0
	}
	if limits.MaxPayloadBytes > 0 && payloadLen > limits.MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	f.Payload = make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, ErrShortPayload
			}
			return Frame{}, err
		}
	}

	var pad [PaddingLen]byte
	if _, err := io.ReadFull(r, pad[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortPayload
		}
		return Frame{}, err
	}
	return f, nil
}
