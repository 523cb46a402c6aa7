package pump

import (
	"io"
	"time"

	"github.com/backkem/pumpx2/pkg/exchange"
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/backkem/pumpx2/pkg/transport"
	"github.com/pion/logging"
)

// ClientConfig holds all configuration for a Client.
type ClientConfig struct {
	// Link - Required
	Transport transport.Transport // BLE link, relay bridge or in-memory pipe
	Serial    string              // Pump serial number; keys the pairing record

	// Storage - Optional (default: in-memory)
	Store session.PairingStore

	// Identity - Optional
	AppInstanceID uint16 // default: session.DefaultAppInstanceID

	// Safety - Optional
	AllowInsulinActions bool // Required for commands that modify insulin delivery

	// Exchange - Optional (uses defaults if zero)
	RetryPolicy *exchange.RetryPolicy
	Timeout     time.Duration     // Overrides per-channel response timeouts
	Registry    *message.Registry // default: messages.NewRegistry()

	// Randomness and time - Testing
	Rand io.Reader
	Now  func() time.Time

	// Callbacks - Optional
	OnStateChanged func(state ClientState)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *ClientConfig) Validate() error {
	if c.Transport == nil {
		return ErrTransportRequired
	}
	if c.Serial == "" {
		return ErrSerialRequired
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *ClientConfig) applyDefaults() {
	if c.Store == nil {
		c.Store = session.NewMemoryStore()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
