package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/cenkalti/backoff"
	"github.com/pion/logging"
)

// Bridge frame layout: u16 LE length | channel | packet. The length counts the
// channel byte and the packet.
const (
	bridgeLengthSize = 2
	maxBridgePayload = 1 + message.PacketHeaderSize + message.ControlChunkSize
)

// Bridge dial defaults.
const (
	DefaultDialTimeout     = 5 * time.Second
	DefaultMaxDialAttempts = 5
	DefaultInitialBackoff  = 250 * time.Millisecond
	DefaultMaxBackoff      = 4 * time.Second
)

// Dialer opens the stream to the relay. net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Address is the relay's host:port.
	Address string

	// Dialer opens the connection. If nil, a net.Dialer is used.
	Dialer Dialer

	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration

	// MaxDialAttempts is the number of connection attempts before giving up.
	MaxDialAttempts int

	// InitialBackoff and MaxBackoff shape the delay between attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InboxDepth is the number of packets buffered per channel.
	InboxDepth int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *BridgeConfig) applyDefaults() {
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.MaxDialAttempts <= 0 {
		c.MaxDialAttempts = DefaultMaxDialAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
}

// Bridge is a Transport over a TCP stream to a BLE relay. The relay owns the
// radio link and forwards characteristic writes and notifications as frames.
type Bridge struct {
	conn  net.Conn
	inbox *inbox
	log   logging.LeveledLogger

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// DialBridge connects to the relay at cfg.Address, retrying with exponential
// backoff up to cfg.MaxDialAttempts times.
func DialBridge(ctx context.Context, cfg BridgeConfig) (*Bridge, error) {
	cfg.applyDefaults()

	var log logging.LeveledLogger
	if cfg.LoggerFactory != nil {
		log = cfg.LoggerFactory.NewLogger("bridge")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxDialAttempts-1)), ctx)

	var conn net.Conn
	dial := func() error {
		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		c, err := cfg.Dialer.DialContext(dctx, "tcp", cfg.Address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		if log != nil {
			log.Warnf("dial %s failed: %v; retrying in %v", cfg.Address, err, wait)
		}
	}

	if err := backoff.RetryNotify(dial, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	if log != nil {
		log.Infof("connected to relay %s", cfg.Address)
	}
	return NewBridgeConn(conn, cfg), nil
}

// NewBridgeConn wraps an established relay connection.
func NewBridgeConn(conn net.Conn, cfg BridgeConfig) *Bridge {
	br := &Bridge{
		conn: conn,
	}
	if cfg.LoggerFactory != nil {
		br.log = cfg.LoggerFactory.NewLogger("bridge")
	}
	br.inbox = newInbox(cfg.InboxDepth, br.log)

	br.wg.Add(1)
	go br.readLoop()
	return br
}

func (br *Bridge) readLoop() {
	defer br.wg.Done()

	for {
		ch, packet, err := ReadBridgeFrame(br.conn)
		if err != nil {
			if errors.Is(err, ErrInvalidFrame) && br.log != nil {
				br.log.Errorf("malformed frame from relay")
			}
			br.linkDown(err)
			return
		}
		br.inbox.deliver(ch, packet)
	}
}

func (br *Bridge) linkDown(err error) {
	if br.inbox.isClosed() {
		return
	}
	if br.log != nil && !errors.Is(err, net.ErrClosed) {
		br.log.Warnf("relay link down: %v", err)
	}
	br.inbox.close(ErrDisconnected)
}

// Transmit implements Transport.
func (br *Bridge) Transmit(ctx context.Context, ch message.Channel, packet []byte) error {
	if !ch.IsValid() {
		return ErrInvalidChannel
	}
	if 1+len(packet) > maxBridgePayload {
		return ErrFrameTooLarge
	}
	if br.inbox.isClosed() {
		return br.inbox.closeErr()
	}

	br.writeMu.Lock()
	defer br.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		br.conn.SetWriteDeadline(deadline)
		defer br.conn.SetWriteDeadline(time.Time{})
	}
	if err := WriteBridgeFrame(br.conn, ch, packet); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		br.linkDown(err)
		return ErrDisconnected
	}
	return nil
}

// AwaitPacket implements Transport.
func (br *Bridge) AwaitPacket(ctx context.Context, ch message.Channel, timeout time.Duration) ([]byte, error) {
	return br.inbox.await(ctx, ch, timeout)
}

// Close implements Transport.
func (br *Bridge) Close() error {
	br.closeOnce.Do(func() {
		br.inbox.close(ErrClosed)
		br.closeErr = br.conn.Close()
		br.wg.Wait()
	})
	return br.closeErr
}

// WriteBridgeFrame writes one relay frame to w. The relay side and tests use
// it to inject notifications.
func WriteBridgeFrame(w io.Writer, ch message.Channel, packet []byte) error {
	if 1+len(packet) > maxBridgePayload {
		return ErrFrameTooLarge
	}
	frame := make([]byte, bridgeLengthSize+1+len(packet))
	binary.LittleEndian.PutUint16(frame, uint16(1+len(packet)))
	frame[bridgeLengthSize] = byte(ch)
	copy(frame[bridgeLengthSize+1:], packet)
	_, err := w.Write(frame)
	return err
}

// ReadBridgeFrame reads one relay frame from r.
func ReadBridgeFrame(r io.Reader) (message.Channel, []byte, error) {
	var lenBuf [bridgeLengthSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := int(binary.LittleEndian.Uint16(lenBuf[:]))
	if n < 1 || n > maxBridgePayload {
		return 0, nil, ErrInvalidFrame
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return 0, nil, err
	}
	return message.Channel(frame[0]), frame[1:], nil
}
