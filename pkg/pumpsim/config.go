package pumpsim

import (
	"io"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/pion/logging"
)

// Simulator defaults.
const (
	DefaultSerial   = "00000000"
	DefaultModel    = "x2-sim"
	DefaultAPIMajor = 3
	DefaultAPIMinor = 5

	// DefaultMaxCounterSkew is the largest difference, in seconds, between a
	// signed request's time since reset and the pump's own counter.
	DefaultMaxCounterSkew = 30

	// DefaultPacketTimeout bounds the wait for the next packet of a request.
	DefaultPacketTimeout = time.Second
)

// Config configures a simulated pump.
type Config struct {
	// PairingCode is the code the pump displays. Required.
	PairingCode string

	// Serial and Model are reported in mDNS TXT records.
	Serial string
	Model  string

	// AuthenticationKey, when set, makes the pump accept signed requests
	// without a handshake.
	AuthenticationKey []byte

	// TimeSinceReset is the pump's counter when the simulator is created.
	// It advances with Now.
	TimeSinceReset uint32

	// MaxCounterSkew overrides DefaultMaxCounterSkew when positive.
	MaxCounterSkew uint32

	// APIMajor and APIMinor are returned by APIVersionRequest.
	APIMajor uint16
	APIMinor uint16

	// PacketTimeout overrides DefaultPacketTimeout when positive.
	PacketTimeout time.Duration

	// Registry decodes requests. If nil, messages.NewRegistry() is used.
	Registry *message.Registry

	// Rand is the source for nonces and EC-JPAKE scalars.
	// If nil, crypto/rand is used.
	Rand io.Reader

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.Serial == "" {
		c.Serial = DefaultSerial
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.APIMajor == 0 && c.APIMinor == 0 {
		c.APIMajor = DefaultAPIMajor
		c.APIMinor = DefaultAPIMinor
	}
	if c.MaxCounterSkew == 0 {
		c.MaxCounterSkew = DefaultMaxCounterSkew
	}
	if c.PacketTimeout <= 0 {
		c.PacketTimeout = DefaultPacketTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
