package messages

import (
	"fmt"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/wire"
)

// ErrorResponseOpcode is the opcode of the device fault report. The pump may
// send it on any channel in place of the expected response.
const ErrorResponseOpcode = 77

// ErrorCode is a device-reported fault code.
type ErrorCode uint8

// Device fault codes.
const (
	ErrorCodeUndefined        ErrorCode = 0
	ErrorCodeInvalidLength    ErrorCode = 1
	ErrorCodeInvalidParameter ErrorCode = 2
	ErrorCodeUnknownOpcode    ErrorCode = 3
	ErrorCodeBusy             ErrorCode = 4
	ErrorCodeNotReady         ErrorCode = 5
	ErrorCodeInvalidSignature ErrorCode = 6
	ErrorCodeStaleCounter     ErrorCode = 7
)

// String returns a human-readable name for the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeUndefined:
		return "undefined"
	case ErrorCodeInvalidLength:
		return "invalid length"
	case ErrorCodeInvalidParameter:
		return "invalid parameter"
	case ErrorCodeUnknownOpcode:
		return "unknown opcode"
	case ErrorCodeBusy:
		return "busy"
	case ErrorCodeNotReady:
		return "not ready"
	case ErrorCodeInvalidSignature:
		return "invalid signature"
	case ErrorCodeStaleCounter:
		return "stale counter"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// ErrorResponse reports that the pump rejected a request.
type ErrorResponse struct {
	Channel       message.Channel
	RequestOpcode uint8
	Code          ErrorCode
}

// Props returns the fault's properties on the channel it arrived on.
func (m *ErrorResponse) Props() message.Props { return errorResponseProps(m.Channel) }

func (m *ErrorResponse) Cargo() []byte {
	return wire.NewWriter(2).Uint8(m.RequestOpcode).Uint8(uint8(m.Code)).Finish()
}

func errorResponseProps(ch message.Channel) message.Props {
	return message.Props{
		Opcode:    ErrorResponseOpcode,
		Channel:   ch,
		Direction: message.DirectionResponse,
		Size:      2,
	}
}

func faultEntries() []message.Entry {
	entries := make([]message.Entry, 0, len(message.Channels))
	for _, ch := range message.Channels {
		ch := ch
		entries = append(entries, message.Entry{
			Props: errorResponseProps(ch),
			Fault: true,
			Decode: func(cargo []byte) (message.Message, error) {
				r := wire.NewReader(cargo)
				m := &ErrorResponse{Channel: ch, RequestOpcode: r.Uint8(), Code: ErrorCode(r.Uint8())}
				return m, r.Err()
			},
		})
	}
	return entries
}
