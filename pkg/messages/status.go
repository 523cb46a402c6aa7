package messages

import (
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/wire"
)

// Status is a read-only query on the current-status channel.
type Status interface {
	message.Message
	isStatus()
}

func statusProps(opcode uint8, dir message.Direction, size int) message.Props {
	return message.Props{Opcode: opcode, Channel: message.ChannelCurrentStatus, Direction: dir, Size: size}
}

var (
	apiVersionRequestProps      = statusProps(32, message.DirectionRequest, 0)
	apiVersionResponseProps     = statusProps(33, message.DirectionResponse, 4)
	timeSinceResetRequestProps  = statusProps(54, message.DirectionRequest, 0)
	timeSinceResetResponseProps = statusProps(55, message.DirectionResponse, 8)
)

// APIVersionRequest asks for the pump's protocol API version.
type APIVersionRequest struct{}

func (m *APIVersionRequest) Props() message.Props  { return apiVersionRequestProps }
func (m *APIVersionRequest) ResponseOpcode() uint8 { return apiVersionResponseProps.Opcode }
func (m *APIVersionRequest) Cargo() []byte         { return []byte{} }
func (m *APIVersionRequest) isStatus()             {}

// APIVersionResponse reports the pump's protocol API version.
type APIVersionResponse struct {
	MajorVersion uint16
	MinorVersion uint16
}

func (m *APIVersionResponse) Props() message.Props { return apiVersionResponseProps }
func (m *APIVersionResponse) isStatus()            {}

func (m *APIVersionResponse) Cargo() []byte {
	return wire.NewWriter(4).Uint16(m.MajorVersion).Uint16(m.MinorVersion).Finish()
}

// TimeSinceResetRequest asks for the device counter used in signatures.
type TimeSinceResetRequest struct{}

func (m *TimeSinceResetRequest) Props() message.Props  { return timeSinceResetRequestProps }
func (m *TimeSinceResetRequest) ResponseOpcode() uint8 { return timeSinceResetResponseProps.Opcode }
func (m *TimeSinceResetRequest) Cargo() []byte         { return []byte{} }
func (m *TimeSinceResetRequest) isStatus()             {}

// TimeSinceResetResponse carries the pump clock and its time since reset, in seconds.
type TimeSinceResetResponse struct {
	CurrentTime        uint32
	PumpTimeSinceReset uint32
}

func (m *TimeSinceResetResponse) Props() message.Props { return timeSinceResetResponseProps }
func (m *TimeSinceResetResponse) isStatus()            {}

func (m *TimeSinceResetResponse) Cargo() []byte {
	return wire.NewWriter(8).Uint32(m.CurrentTime).Uint32(m.PumpTimeSinceReset).Finish()
}

func statusEntries() []message.Entry {
	return []message.Entry{
		{Props: apiVersionRequestProps, Decode: func([]byte) (message.Message, error) {
			return &APIVersionRequest{}, nil
		}},
		{Props: apiVersionResponseProps, Decode: func(cargo []byte) (message.Message, error) {
			r := wire.NewReader(cargo)
			m := &APIVersionResponse{MajorVersion: r.Uint16(), MinorVersion: r.Uint16()}
			return m, r.Err()
		}},
		{Props: timeSinceResetRequestProps, Decode: func([]byte) (message.Message, error) {
			return &TimeSinceResetRequest{}, nil
		}},
		{Props: timeSinceResetResponseProps, Decode: func(cargo []byte) (message.Message, error) {
			r := wire.NewReader(cargo)
			m := &TimeSinceResetResponse{CurrentTime: r.Uint32(), PumpTimeSinceReset: r.Uint32()}
			return m, r.Err()
		}},
	}
}
