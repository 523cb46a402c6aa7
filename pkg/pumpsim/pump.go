// Package pumpsim is a simulated pump. It answers the message catalogue on
// the peripheral side of a Transport, runs the responder side of both pairing
// handshakes and signs its control responses, so the application stack can be
// exercised without hardware.
package pumpsim

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/backkem/pumpx2/pkg/crypto"
	"github.com/backkem/pumpx2/pkg/crypto/ecjpake"
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/messages"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/backkem/pumpx2/pkg/transport"
	"github.com/pion/logging"
)

type opKey struct {
	channel message.Channel
	opcode  uint8
}

type injectedFault struct {
	code      messages.ErrorCode
	remaining int
}

// Pump is a simulated pump. Its pairing state survives across Serve calls,
// as a real pump keeps it across BLE connections.
type Pump struct {
	config   Config
	code     string
	kind     session.HandshakeKind
	registry *message.Registry
	rand     io.Reader
	started  time.Time
	log      logging.LeveledLogger

	mu                  sync.Mutex
	authKey             []byte
	suspended           bool
	requests            map[opKey]int
	faults              map[opKey]*injectedFault
	corruptConfirmation bool

	// EC-JPAKE responder state.
	engine     *ecjpake.Engine
	round1     []byte
	peerRound1 []byte
	secret     []byte
	pendingKey []byte

	// Legacy responder state.
	hmacKey []byte
}

// New creates a simulated pump.
func New(cfg Config) (*Pump, error) {
	code, kind, err := session.ParsePairingCode(cfg.PairingCode)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	p := &Pump{
		config:   cfg,
		code:     code,
		kind:     kind,
		registry: cfg.Registry,
		rand:     crypto.NewLockedReader(cfg.Rand),
		started:  cfg.Now(),
		requests: make(map[opKey]int),
		faults:   make(map[opKey]*injectedFault),
	}
	if p.registry == nil {
		p.registry = messages.NewRegistry()
	}
	if len(cfg.AuthenticationKey) > 0 {
		p.authKey = append([]byte(nil), cfg.AuthenticationKey...)
	}
	if cfg.LoggerFactory != nil {
		p.log = cfg.LoggerFactory.NewLogger("pumpsim")
	}
	return p, nil
}

// Serve answers requests arriving on t until ctx is done or t is closed.
// Each channel is served by its own goroutine.
func (p *Pump) Serve(parent context.Context, t transport.Transport) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	errs := make(chan error, len(message.Channels))
	var wg sync.WaitGroup
	for _, ch := range message.Channels {
		wg.Add(1)
		go func(ch message.Channel) {
			defer wg.Done()
			errs <- p.serveChannel(ctx, t, ch)
		}(ch)
	}

	first := <-errs
	cancel()
	wg.Wait()

	if parent.Err() != nil || errors.Is(first, transport.ErrClosed) {
		return nil
	}
	return first
}

func (p *Pump) serveChannel(ctx context.Context, t transport.Transport, ch message.Channel) error {
	for {
		pkt, err := t.AwaitPacket(ctx, ch, 0)
		if err != nil {
			return err
		}

		req, h, err := p.receive(ctx, t, ch, pkt)
		if err != nil {
			if isLinkError(ctx, err) {
				return err
			}
			code, reply := faultFor(err)
			if p.log != nil {
				p.log.Debugf("rejecting request on %s: %v", ch, err)
			}
			if !reply {
				continue
			}
			if err := p.send(ctx, t, ch, h.TxID, &messages.ErrorResponse{Channel: ch, RequestOpcode: h.Opcode, Code: code}); err != nil {
				return err
			}
			continue
		}

		resp := p.respond(ch, h, req)
		if err := p.send(ctx, t, ch, h.TxID, resp); err != nil {
			return err
		}
	}
}

// receive reassembles and verifies the request whose first packet is first.
func (p *Pump) receive(ctx context.Context, t transport.Transport, ch message.Channel, first []byte) (message.Message, message.Header, error) {
	pkt, err := message.ParsePacket(first)
	if err != nil {
		return nil, message.Header{}, err
	}
	h, err := message.DecodeHeader(pkt.Chunk)
	if err != nil {
		return nil, message.Header{}, err
	}
	exp, err := p.registry.ExpectRequest(h, ch)
	if err != nil {
		return nil, h, err
	}

	r := message.NewReassembly(exp)
	done, err := r.Add(first)
	for err == nil && !done {
		var next []byte
		next, err = t.AwaitPacket(ctx, ch, p.config.PacketTimeout)
		if err != nil {
			return nil, h, err
		}
		done, err = r.Add(next)
	}
	if err != nil {
		return nil, h, err
	}

	env, err := r.Verify(p.AuthenticationKey())
	if err != nil {
		return nil, h, err
	}
	if env.Signed {
		now := p.timeSinceReset()
		if skew(env.TimeSinceReset, now) > p.config.MaxCounterSkew {
			return nil, h, errStaleCounter
		}
	}
	msg, err := p.registry.Decode(env, ch)
	return msg, h, err
}

func (p *Pump) send(ctx context.Context, t transport.Transport, ch message.Channel, txID uint8, m message.Message) error {
	app, err := message.ToApplication(m)
	if err != nil {
		return err
	}
	opts := message.FrameOptions{AllowInsulinActions: true}
	if app.Signed {
		tsr := p.timeSinceReset()
		opts.Key = p.AuthenticationKey()
		opts.TimeSinceReset = &tsr
	}
	packets, err := message.Frame(app, txID, opts)
	if err != nil {
		return err
	}
	for _, pkt := range packets {
		if err := t.Transmit(ctx, ch, pkt.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// timeSinceReset is the configured counter advanced by whole elapsed seconds.
func (p *Pump) timeSinceReset() uint32 {
	elapsed := p.config.Now().Sub(p.started)
	if elapsed < 0 {
		elapsed = 0
	}
	return p.config.TimeSinceReset + uint32(elapsed/time.Second)
}

func skew(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// InjectFault answers the next count requests with opcode on ch by an
// ErrorResponse carrying code. A count of zero clears the injection.
func (p *Pump) InjectFault(ch message.Channel, opcode uint8, code messages.ErrorCode, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := opKey{ch, opcode}
	if count <= 0 {
		delete(p.faults, k)
		return
	}
	p.faults[k] = &injectedFault{code: code, remaining: count}
}

// CorruptConfirmation makes the pump send a wrong key-confirmation digest.
func (p *Pump) CorruptConfirmation(corrupt bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.corruptConfirmation = corrupt
}

// Requests returns how many verified requests with opcode arrived on ch.
func (p *Pump) Requests(ch message.Channel, opcode uint8) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[opKey{ch, opcode}]
}

// Suspended reports whether insulin delivery is suspended.
func (p *Pump) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

// AuthenticationKey returns the key the pump verifies signed requests with.
func (p *Pump) AuthenticationKey() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authKey == nil {
		return nil
	}
	return append([]byte(nil), p.authKey...)
}

// Unpair forgets the authentication key and any handshake state.
func (p *Pump) Unpair() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authKey = nil
	p.resetJPAKE()
	p.secret = nil
	p.hmacKey = nil
}
