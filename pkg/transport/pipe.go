package transport

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures link behavior simulation.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers packets.
	// Default: 1ms
	ProcessInterval time.Duration

	// InboxDepth is the number of packets buffered per channel and endpoint.
	InboxDepth int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory BLE link between a central (the application) and a
// peripheral (a simulated pump). It wraps pion's test.Bridge; each bridge
// datagram is a channel byte followed by one packet.
//
// By default, Pipe delivers packets in a background goroutine. Disable
// AutoProcess and call Tick or Process for step-by-step tests.
type Pipe struct {
	bridge *test.Bridge

	central    *PipeEndpoint
	peripheral *PipeEndpoint

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}

	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	var centralLog, peripheralLog logging.LeveledLogger
	if config.LoggerFactory != nil {
		centralLog = config.LoggerFactory.NewLogger("pipe-central")
		peripheralLog = config.LoggerFactory.NewLogger("pipe-peripheral")
	}
	p.central = newPipeEndpoint(p, p.bridge.GetConn0(), config.InboxDepth, centralLog)
	p.peripheral = newPipeEndpoint(p, p.bridge.GetConn1(), config.InboxDepth, peripheralLog)

	if p.autoProcess {
		p.startAutoProcess()
	}

	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				for p.bridge.Tick() > 0 {
				}
			}
		}
	}()
}

// Central returns the application side of the link.
func (p *Pipe) Central() *PipeEndpoint {
	return p.central
}

// Peripheral returns the pump side of the link.
func (p *Pipe) Peripheral() *PipeEndpoint {
	return p.peripheral
}

// SetCondition configures link simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// shouldDrop applies the configured drop rate.
func (p *Pipe) shouldDrop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.condition.DropRate > 0 && p.rng.Float64() < p.condition.DropRate
}

// Tick delivers one packet in each direction (if available).
// Returns the number of packets delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued packets.
// Returns the number of packets delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.central.Close()
	p.peripheral.Close()

	var errs []error
	if err := p.bridge.GetConn0().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.bridge.GetConn1().Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// PipeEndpoint is one side of a Pipe. It implements Transport.
type PipeEndpoint struct {
	pipe  *Pipe
	conn  net.Conn
	inbox *inbox
	log   logging.LeveledLogger
}

func newPipeEndpoint(p *Pipe, conn net.Conn, depth int, log logging.LeveledLogger) *PipeEndpoint {
	e := &PipeEndpoint{
		pipe:  p,
		conn:  conn,
		inbox: newInbox(depth, log),
		log:   log,
	}
	go e.readLoop()
	return e
}

func (e *PipeEndpoint) readLoop() {
	buf := make([]byte, 1+message.MaxEnvelopeSize+message.PacketHeaderSize)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			e.inbox.close(ErrClosed)
			return
		}
		if n < 1 {
			continue
		}
		packet := make([]byte, n-1)
		copy(packet, buf[1:n])
		e.inbox.deliver(message.Channel(buf[0]), packet)
	}
}

// Transmit implements Transport.
func (e *PipeEndpoint) Transmit(ctx context.Context, ch message.Channel, packet []byte) error {
	if !ch.IsValid() {
		return ErrInvalidChannel
	}
	if e.inbox.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.pipe.shouldDrop() {
		if e.log != nil {
			e.log.Debugf("dropping %d-byte packet on %s", len(packet), ch)
		}
		return nil
	}

	datagram := make([]byte, 0, 1+len(packet))
	datagram = append(datagram, byte(ch))
	datagram = append(datagram, packet...)
	if _, err := e.conn.Write(datagram); err != nil {
		return ErrClosed
	}
	return nil
}

// AwaitPacket implements Transport.
func (e *PipeEndpoint) AwaitPacket(ctx context.Context, ch message.Channel, timeout time.Duration) ([]byte, error) {
	return e.inbox.await(ctx, ch, timeout)
}

// Close stops this endpoint: waits return ErrClosed and transmits fail.
// The underlying bridge connection is released by Pipe.Close.
func (e *PipeEndpoint) Close() error {
	e.inbox.close(ErrClosed)
	return nil
}
