package pump

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/pumpx2/pkg/exchange"
	"github.com/backkem/pumpx2/pkg/handshake"
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/messages"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/pion/logging"
)

// Client talks to one pump.
type Client struct {
	config ClientConfig
	log    logging.LeveledLogger

	mu       sync.Mutex
	state    ClientState
	session  *session.Session
	exchange *exchange.Exchange
}

// NewClient creates a client. No I/O happens until Pair or Resume.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Client{
		config: config,
		state:  ClientStateUnpaired,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("pump")
	}
	return c, nil
}

// State returns the current client state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState must be called with c.mu held.
func (c *Client) setState(s ClientState) {
	if c.state == s {
		return
	}
	if c.log != nil {
		c.log.Debugf("state %s -> %s", c.state, s)
	}
	c.state = s
	if c.config.OnStateChanged != nil {
		c.config.OnStateChanged(s)
	}
}

// Session returns the active session, or nil before Pair or Resume.
func (c *Client) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Pair authenticates with the code shown on the pump and stores the pairing.
func (c *Client) Pair(ctx context.Context, code string) error {
	sess, err := session.New(session.Config{
		PairingCode:   code,
		AppInstanceID: c.config.AppInstanceID,
		Now:           c.config.Now,
	})
	if err != nil {
		return err
	}
	return c.authenticate(ctx, sess)
}

// Resume restores the stored pairing for the configured serial and
// re-establishes the key. It returns session.ErrNotPaired when nothing is
// stored.
func (c *Client) Resume(ctx context.Context) error {
	rec, err := c.config.Store.Load(c.config.Serial)
	if err != nil {
		return err
	}
	sess, err := session.FromRecord(rec, c.config.Now)
	if err != nil {
		return err
	}
	return c.authenticate(ctx, sess)
}

func (c *Client) authenticate(ctx context.Context, sess *session.Session) error {
	c.mu.Lock()
	if !c.state.CanPair() {
		state := c.state
		c.mu.Unlock()
		if state == ClientStateClosed {
			return ErrClosed
		}
		return ErrBusy
	}
	c.setState(ClientStatePairing)
	c.mu.Unlock()

	ex, err := exchange.New(exchange.Config{
		Transport:           c.config.Transport,
		Session:             sess,
		Registry:            c.config.Registry,
		RetryPolicy:         c.config.RetryPolicy,
		AllowInsulinActions: c.config.AllowInsulinActions,
		Timeout:             c.config.Timeout,
		LoggerFactory:       c.config.LoggerFactory,
	})
	if err == nil {
		err = handshake.Run(ctx, handshake.Config{
			Requester:     ex,
			Session:       sess,
			Rand:          c.config.Rand,
			LoggerFactory: c.config.LoggerFactory,
		})
	}
	if err == nil {
		err = c.config.Store.Save(sess.Record(c.config.Serial))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClientStateClosed {
		return ErrClosed
	}
	if err != nil {
		if c.log != nil {
			c.log.Warnf("authentication with %s failed: %v", c.config.Serial, err)
		}
		c.setState(ClientStateFailed)
		return err
	}
	c.session = sess
	c.exchange = ex
	c.setState(ClientStateAuthenticated)
	if c.log != nil {
		c.log.Infof("authenticated with pump %s (%s)", c.config.Serial, sess.Kind())
	}
	return nil
}

// Unpair forgets the key and deletes the stored pairing.
func (c *Client) Unpair() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ClientStateClosed {
		return ErrClosed
	}
	if c.session != nil {
		c.session.ClearKeys()
	}
	c.session = nil
	c.exchange = nil
	c.setState(ClientStateUnpaired)

	if err := c.config.Store.Delete(c.config.Serial); err != nil && !errors.Is(err, session.ErrNotPaired) {
		return err
	}
	return nil
}

// Request sends req and returns the pump's response.
func (c *Client) Request(ctx context.Context, req message.Request) (message.Message, error) {
	c.mu.Lock()
	state, ex := c.state, c.exchange
	c.mu.Unlock()

	switch {
	case state == ClientStateClosed:
		return nil, ErrClosed
	case ex == nil:
		return nil, ErrNotAuthenticated
	}
	return ex.Request(ctx, req)
}

// APIVersion returns the pump's protocol API version.
func (c *Client) APIVersion(ctx context.Context) (major, minor uint16, err error) {
	resp, err := exchange.RequestAs[*messages.APIVersionResponse](ctx, c, &messages.APIVersionRequest{})
	if err != nil {
		return 0, 0, err
	}
	return resp.MajorVersion, resp.MinorVersion, nil
}

// TimeSinceReset reads the pump's counter and records it on the session.
func (c *Client) TimeSinceReset(ctx context.Context) (uint32, error) {
	resp, err := exchange.RequestAs[*messages.TimeSinceResetResponse](ctx, c, &messages.TimeSinceResetRequest{})
	if err != nil {
		return 0, err
	}
	if sess := c.Session(); sess != nil {
		sess.ObserveTimeSinceReset(resp.PumpTimeSinceReset)
	}
	return resp.PumpTimeSinceReset, nil
}

// SuspendPumping stops insulin delivery. AllowInsulinActions must be set.
func (c *Client) SuspendPumping(ctx context.Context) error {
	resp, err := exchange.RequestAs[*messages.SuspendPumpingResponse](ctx, c, &messages.SuspendPumpingRequest{})
	if err != nil {
		return err
	}
	return statusError("suspend", resp.Status)
}

// ResumePumping restarts insulin delivery. AllowInsulinActions must be set.
func (c *Client) ResumePumping(ctx context.Context) error {
	resp, err := exchange.RequestAs[*messages.ResumePumpingResponse](ctx, c, &messages.ResumePumpingRequest{})
	if err != nil {
		return err
	}
	return statusError("resume", resp.Status)
}

func statusError(op string, status uint8) error {
	if status != 0 {
		return fmt.Errorf("pump: %s refused with status %d", op, status)
	}
	return nil
}

// Close releases the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == ClientStateClosed {
		c.mu.Unlock()
		return nil
	}
	if c.session != nil {
		c.session.ClearKeys()
	}
	c.setState(ClientStateClosed)
	c.mu.Unlock()

	return c.config.Transport.Close()
}
