// Package transport carries wire packets between the application and the
// pump on the six logical channels.
//
// Two implementations are provided: Pipe, an in-memory link built on pion's
// test bridge for tests and simulation, and Bridge, a TCP link to a network
// BLE relay that holds the radio connection.
package transport

import (
	"context"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
)

// Transport is the boundary the exchange layer talks to. Implementations must
// be safe for concurrent use.
type Transport interface {
	// Transmit writes one packet to channel ch.
	Transmit(ctx context.Context, ch message.Channel, packet []byte) error

	// AwaitPacket blocks for the next inbound packet on ch. It returns
	// ErrTimeout once timeout elapses; a timeout <= 0 waits on ctx alone.
	AwaitPacket(ctx context.Context, ch message.Channel, timeout time.Duration) ([]byte, error)

	// Close releases the link. Pending and future waits return ErrClosed.
	Close() error
}

// DefaultInboxDepth is the number of packets buffered per channel.
const DefaultInboxDepth = 64
