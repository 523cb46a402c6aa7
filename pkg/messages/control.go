package messages

import (
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/wire"
)

// Control is a signed command on the control channel.
type Control interface {
	message.Message
	isControl()
}

func controlProps(opcode uint8, dir message.Direction, size int) message.Props {
	return message.Props{
		Opcode:                  opcode,
		Channel:                 message.ChannelControl,
		Direction:               dir,
		Size:                    size,
		Signed:                  true,
		ModifiesInsulinDelivery: dir == message.DirectionRequest,
	}
}

var (
	resumePumpingRequestProps   = controlProps(154, message.DirectionRequest, 0)
	resumePumpingResponseProps  = controlProps(155, message.DirectionResponse, 1)
	suspendPumpingRequestProps  = controlProps(156, message.DirectionRequest, 0)
	suspendPumpingResponseProps = controlProps(157, message.DirectionResponse, 1)
)

// SuspendPumpingRequest stops insulin delivery.
type SuspendPumpingRequest struct{}

func (m *SuspendPumpingRequest) Props() message.Props  { return suspendPumpingRequestProps }
func (m *SuspendPumpingRequest) ResponseOpcode() uint8 { return suspendPumpingResponseProps.Opcode }
func (m *SuspendPumpingRequest) Cargo() []byte         { return []byte{} }
func (m *SuspendPumpingRequest) isControl()            {}

// SuspendPumpingResponse acknowledges a suspend. Status 0 is success.
type SuspendPumpingResponse struct {
	Status uint8
}

func (m *SuspendPumpingResponse) Props() message.Props { return suspendPumpingResponseProps }
func (m *SuspendPumpingResponse) Cargo() []byte        { return []byte{m.Status} }
func (m *SuspendPumpingResponse) isControl()           {}

// ResumePumpingRequest restarts insulin delivery.
type ResumePumpingRequest struct{}

func (m *ResumePumpingRequest) Props() message.Props  { return resumePumpingRequestProps }
func (m *ResumePumpingRequest) ResponseOpcode() uint8 { return resumePumpingResponseProps.Opcode }
func (m *ResumePumpingRequest) Cargo() []byte         { return []byte{} }
func (m *ResumePumpingRequest) isControl()            {}

// ResumePumpingResponse acknowledges a resume. Status 0 is success.
type ResumePumpingResponse struct {
	Status uint8
}

func (m *ResumePumpingResponse) Props() message.Props { return resumePumpingResponseProps }
func (m *ResumePumpingResponse) Cargo() []byte        { return []byte{m.Status} }
func (m *ResumePumpingResponse) isControl()           {}

func controlEntries() []message.Entry {
	return []message.Entry{
		{Props: suspendPumpingRequestProps, Decode: func([]byte) (message.Message, error) {
			return &SuspendPumpingRequest{}, nil
		}},
		{Props: suspendPumpingResponseProps, Decode: func(cargo []byte) (message.Message, error) {
			r := wire.NewReader(cargo)
			m := &SuspendPumpingResponse{Status: r.Uint8()}
			return m, r.Err()
		}},
		{Props: resumePumpingRequestProps, Decode: func([]byte) (message.Message, error) {
			return &ResumePumpingRequest{}, nil
		}},
		{Props: resumePumpingResponseProps, Decode: func(cargo []byte) (message.Message, error) {
			r := wire.NewReader(cargo)
			m := &ResumePumpingResponse{Status: r.Uint8()}
			return m, r.Err()
		}},
	}
}
