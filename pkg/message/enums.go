// Package message implements the pump wire format: the application message
// model, the signed/unsigned envelope, fragmentation into wire packets and
// reassembly with integrity verification.
//
// An envelope is laid out as:
//
//	opcode | txId | length | cargo | [timeSinceReset(4) | HMAC-SHA1(20)] | CRC16(2)
//
// and is carried in one or more packets, each prefixed by the number of
// packets still to come and the transaction id:
//
//	remaining | txId | chunk
package message

import "fmt"

// Channel is a logical transport channel. Each channel maps to one BLE
// characteristic and has its own chunking and signing expectations.
type Channel uint8

const (
	// ChannelCurrentStatus carries read-only status requests and responses.
	ChannelCurrentStatus Channel = iota
	// ChannelQualifyingEvents carries pump-initiated event notifications.
	ChannelQualifyingEvents
	// ChannelHistoryLog carries history log streams.
	ChannelHistoryLog
	// ChannelAuthorization carries the pairing handshake.
	ChannelAuthorization
	// ChannelControl carries signed commands.
	ChannelControl
	// ChannelControlStream carries signed command progress notifications.
	ChannelControlStream

	numChannels
)

// Channels lists every channel in wire order.
var Channels = []Channel{
	ChannelCurrentStatus,
	ChannelQualifyingEvents,
	ChannelHistoryLog,
	ChannelAuthorization,
	ChannelControl,
	ChannelControlStream,
}

// Chunk sizes.
const (
	// TelemetryChunkSize is the maximum chunk size on unsigned telemetry channels.
	TelemetryChunkSize = 18

	// ControlChunkSize is the maximum chunk size on the control channels and
	// for every signed message.
	ControlChunkSize = 40
)

// ServiceUUID is the pump's primary BLE service.
const ServiceUUID = "0000fdfb-0000-1000-8000-00805f9b34fb"

var channelUUIDs = [numChannels]string{
	ChannelCurrentStatus:    "7b83fff6-9f77-4e5c-8064-aae2c24838b9",
	ChannelQualifyingEvents: "7b83fff7-9f77-4e5c-8064-aae2c24838b9",
	ChannelHistoryLog:       "7b83fff8-9f77-4e5c-8064-aae2c24838b9",
	ChannelAuthorization:    "7b83fff9-9f77-4e5c-8064-aae2c24838b9",
	ChannelControl:          "7b83fffc-9f77-4e5c-8064-aae2c24838b9",
	ChannelControlStream:    "7b83fffd-9f77-4e5c-8064-aae2c24838b9",
}

// String returns a human-readable name for the channel.
func (c Channel) String() string {
	switch c {
	case ChannelCurrentStatus:
		return "CurrentStatus"
	case ChannelQualifyingEvents:
		return "QualifyingEvents"
	case ChannelHistoryLog:
		return "HistoryLog"
	case ChannelAuthorization:
		return "Authorization"
	case ChannelControl:
		return "Control"
	case ChannelControlStream:
		return "ControlStream"
	default:
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
}

// IsValid reports whether c is a defined channel.
func (c Channel) IsValid() bool {
	return c < numChannels
}

// UUID returns the BLE characteristic UUID of the channel.
func (c Channel) UUID() string {
	if !c.IsValid() {
		return ""
	}
	return channelUUIDs[c]
}

// MaxChunkSize returns the default chunk size for unsigned messages on c.
func (c Channel) MaxChunkSize() int {
	switch c {
	case ChannelControl, ChannelControlStream:
		return ControlChunkSize
	default:
		return TelemetryChunkSize
	}
}

// ExpectsSigned reports whether messages on c are normally signed.
func (c Channel) ExpectsSigned() bool {
	return c == ChannelControl || c == ChannelControlStream
}

// ChannelForUUID maps a characteristic UUID back to its channel.
func ChannelForUUID(uuid string) (Channel, bool) {
	for c, u := range channelUUIDs {
		if u == uuid {
			return Channel(c), true
		}
	}
	return 0, false
}

// Direction distinguishes requests from responses.
type Direction uint8

const (
	// DirectionRequest is a message sent by the application.
	DirectionRequest Direction = iota
	// DirectionResponse is a message sent by the pump.
	DirectionResponse
)

// String returns a human-readable name for the direction.
func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "Request"
	case DirectionResponse:
		return "Response"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}
