package exchange

import (
	"time"

	"github.com/backkem/pumpx2/pkg/message"
)

// Response timeouts per channel.
const (
	// StatusTimeout applies to CurrentStatus, HistoryLog and QualifyingEvents.
	StatusTimeout = 5 * time.Second

	// AuthorizationTimeout applies to handshake messages. The pump computes
	// EC-JPAKE rounds before answering.
	AuthorizationTimeout = 10 * time.Second

	// ControlTimeout applies to Control and ControlStream.
	ControlTimeout = 15 * time.Second
)

// Retry defaults for device faults.
const (
	DefaultRetryBase        = 500 * time.Millisecond
	DefaultRetryMultiplier  = 2.0
	DefaultRetryMaxAttempts = 3
)

// ChannelTimeout returns the response timeout for ch.
func ChannelTimeout(ch message.Channel) time.Duration {
	switch ch {
	case message.ChannelAuthorization:
		return AuthorizationTimeout
	case message.ChannelControl, message.ChannelControlStream:
		return ControlTimeout
	default:
		return StatusTimeout
	}
}
