package message

import "fmt"

// Props describes a message type: where it travels, how large its cargo is and
// whether it must be signed. Props are fixed per type.
type Props struct {
	Opcode    uint8
	Channel   Channel
	Direction Direction

	// Size is the cargo length, excluding the signature trailer.
	Size int

	// Signed marks messages carrying the time-since-reset counter and HMAC.
	Signed bool

	// ModifiesInsulinDelivery marks commands gated by the safety interlock.
	ModifiesInsulinDelivery bool
}

// String returns a compact description used in logs.
func (p Props) String() string {
	return fmt.Sprintf("%s/%s opcode=%d size=%d signed=%t", p.Channel, p.Direction, p.Opcode, p.Size, p.Signed)
}

// Message is a typed message that can produce its wire cargo.
type Message interface {
	Props() Props
	Cargo() []byte
}

// Request is a message sent by the application that expects a response.
type Request interface {
	Message
	ResponseOpcode() uint8
}

// ApplicationMessage is the untyped form the framer works on.
type ApplicationMessage struct {
	Opcode                  uint8
	Channel                 Channel
	Direction               Direction
	Signed                  bool
	ModifiesInsulinDelivery bool
	Cargo                   []byte
}

// PayloadLength is the declared length written into the header.
func (m ApplicationMessage) PayloadLength() int {
	if m.Signed {
		return len(m.Cargo) + SignatureSize
	}
	return len(m.Cargo)
}

// ToApplication encodes m into an ApplicationMessage, checking the cargo
// against the declared size.
func ToApplication(m Message) (ApplicationMessage, error) {
	props := m.Props()
	cargo := m.Cargo()
	if len(cargo) != props.Size {
		return ApplicationMessage{}, fmt.Errorf("%w: %s encoded %d bytes", ErrCargoLength, props, len(cargo))
	}
	return ApplicationMessage{
		Opcode:                  props.Opcode,
		Channel:                 props.Channel,
		Direction:               props.Direction,
		Signed:                  props.Signed,
		ModifiesInsulinDelivery: props.ModifiesInsulinDelivery,
		Cargo:                   cargo,
	}, nil
}
