// Package exchange sends one request to the pump and waits for its response.
//
// An Exchange frames the request with the session's key and counter, writes
// the packets to the transport, and reassembles and verifies the response on
// the same channel. Device fault reports are classified and, when transient,
// the request is sent again under a RetryPolicy. Exchanges are serialized:
// only one request is outstanding at a time.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/messages"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/backkem/pumpx2/pkg/transport"
	"github.com/pion/logging"
)

// Config configures an Exchange.
type Config struct {
	// Transport carries packets to the pump. Required.
	Transport transport.Transport

	// Session supplies the key, counter and transaction ids. Required.
	Session *session.Session

	// Registry decodes responses. If nil, messages.NewRegistry() is used.
	Registry *message.Registry

	// RetryPolicy governs device fault retries. If nil, DefaultRetryPolicy().
	RetryPolicy *RetryPolicy

	// AllowInsulinActions permits requests that modify insulin delivery.
	AllowInsulinActions bool

	// Timeout overrides the per-channel response timeout when positive.
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Exchange performs request/response round trips over one transport.
type Exchange struct {
	transport    transport.Transport
	session      *session.Session
	registry     *message.Registry
	policy       RetryPolicy
	allowInsulin bool
	timeout      time.Duration
	log          logging.LeveledLogger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// New creates an Exchange.
func New(cfg Config) (*Exchange, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.Session == nil {
		return nil, ErrNoSession
	}

	e := &Exchange{
		transport:    cfg.Transport,
		session:      cfg.Session,
		registry:     cfg.Registry,
		policy:       DefaultRetryPolicy(),
		allowInsulin: cfg.AllowInsulinActions,
		timeout:      cfg.Timeout,
		sleep:        sleepContext,
	}
	if e.registry == nil {
		e.registry = messages.NewRegistry()
	}
	if cfg.RetryPolicy != nil {
		e.policy = *cfg.RetryPolicy
	}
	if cfg.LoggerFactory != nil {
		e.log = cfg.LoggerFactory.NewLogger("exchange")
	}
	return e, nil
}

// Session returns the session the exchange signs with.
func (e *Exchange) Session() *session.Session {
	return e.session
}

// Request sends req and returns the decoded response. Device faults surface
// as *DeviceFault once the retry policy gives up.
func (e *Exchange) Request(ctx context.Context, req message.Request) (message.Message, error) {
	props := req.Props()
	if props.ModifiesInsulinDelivery && !e.allowInsulin {
		return nil, fmt.Errorf("%w: %s", message.ErrInsulinActionsDisabled, props)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if props.Signed {
		if !e.session.IsAuthenticated() {
			return nil, ErrNotAuthenticated
		}
		if _, ok := e.session.TimeSinceReset(); !ok {
			if err := e.refreshTimeSinceReset(ctx); err != nil {
				return nil, fmt.Errorf("exchange: reading time since reset: %w", err)
			}
		}
	}

	for attempt := 1; ; attempt++ {
		resp, err := e.roundTrip(ctx, req)
		if err != nil {
			return nil, err
		}

		fault, ok := resp.(*messages.ErrorResponse)
		if !ok {
			return resp, nil
		}

		class := Classify(fault.Code)
		decision := e.policy.Decide(class, attempt)
		if decision != DecisionRetry {
			if e.log != nil {
				e.log.Warnf("%s: device fault %s (%s), %s", props, fault.Code, class, decision)
			}
			return nil, &DeviceFault{
				Request:  props,
				Code:     fault.Code,
				Class:    class,
				Attempts: attempt,
				Decision: decision,
			}
		}

		delay := e.policy.Delay(attempt)
		if e.log != nil {
			e.log.Debugf("%s: device fault %s on attempt %d, retrying in %v", props, fault.Code, attempt, delay)
		}
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// Requester sends one request and returns the response. *Exchange
// implements it.
type Requester interface {
	Request(ctx context.Context, req message.Request) (message.Message, error)
}

// RequestAs sends req through r and asserts the response type.
func RequestAs[T message.Message](ctx context.Context, r Requester, req message.Request) (T, error) {
	var zero T
	resp, err := r.Request(ctx, req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %s", ErrUnexpectedResponse, resp.Props())
	}
	return typed, nil
}

func (e *Exchange) refreshTimeSinceReset(ctx context.Context) error {
	resp, err := e.roundTrip(ctx, &messages.TimeSinceResetRequest{})
	if err != nil {
		return err
	}
	tsr, ok := resp.(*messages.TimeSinceResetResponse)
	if !ok {
		return fmt.Errorf("%w: got %s", ErrUnexpectedResponse, resp.Props())
	}
	e.session.ObserveTimeSinceReset(tsr.PumpTimeSinceReset)
	return nil
}

type result struct {
	msg message.Message
	err error
}

// roundTrip performs one send and wait, without retries.
func (e *Exchange) roundTrip(ctx context.Context, req message.Request) (message.Message, error) {
	props := req.Props()

	app, err := message.ToApplication(req)
	if err != nil {
		return nil, err
	}

	txID := e.session.NextTxID()
	opts := e.session.FrameOptions()
	opts.AllowInsulinActions = e.allowInsulin

	packets, err := message.Frame(app, txID, opts)
	if err != nil {
		return nil, err
	}
	exp, err := e.registry.Expect(req, txID)
	if err != nil {
		return nil, err
	}

	timeout := e.timeout
	if timeout <= 0 {
		timeout = ChannelTimeout(props.Channel)
	}
	deadline := time.Now().Add(timeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan result, 1)
	go e.collect(ctx, props.Channel, exp, deadline, out)

	if e.log != nil {
		e.log.Tracef("-> %s txId=%d packets=%d", props, txID, len(packets))
	}
	for _, p := range packets {
		if err := e.transport.Transmit(ctx, props.Channel, p.Bytes()); err != nil {
			return nil, err
		}
	}

	r := <-out
	if r.err != nil {
		if e.log != nil {
			e.log.Debugf("%s txId=%d: %v", props, txID, r.err)
		}
		return nil, r.err
	}
	if e.log != nil {
		e.log.Tracef("<- %s txId=%d", r.msg.Props(), txID)
	}
	return r.msg, nil
}

// collect reassembles the response matching exp and posts exactly one result.
func (e *Exchange) collect(ctx context.Context, ch message.Channel, exp message.Expectation, deadline time.Time, out chan<- result) {
	r := message.NewReassembly(exp)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			out <- result{err: transport.ErrTimeout}
			return
		}
		pkt, err := e.transport.AwaitPacket(ctx, ch, remaining)
		if err != nil {
			out <- result{err: err}
			return
		}

		done, err := r.Add(pkt)
		if err != nil {
			if _, started := r.Header(); !started && errors.Is(err, message.ErrTxIDMismatch) {
				// Late packet from an earlier, abandoned exchange.
				if e.log != nil {
					e.log.Debugf("dropping stale packet on %s: %v", ch, err)
				}
				continue
			}
			out <- result{err: err}
			return
		}
		if !done {
			continue
		}

		env, err := r.Verify(e.session.AuthenticationKey())
		if err != nil {
			out <- result{err: err}
			return
		}
		if env.Signed {
			e.session.ObserveTimeSinceReset(env.TimeSinceReset)
		}

		msg, err := e.registry.Decode(env, ch)
		out <- result{msg: msg, err: err}
		return
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
