package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/backkem/pumpx2/pkg/crypto"
	"github.com/backkem/pumpx2/pkg/crypto/ecjpake"
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/messages"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/pion/logging"
)

// JPAKE drives the application side of the EC-JPAKE handshake. Each Step
// sends one request and consumes its response; Run steps to completion.
type JPAKE struct {
	requester Requester
	session   *session.Session
	rand      io.Reader
	log       logging.LeveledLogger

	mu    sync.Mutex // serializes steps
	state atomic.Int32
	err   error

	engine     *ecjpake.Engine
	round1     []byte // own round-1 payload
	peerRound1 []byte
	secret     []byte
	nonce      []byte // server nonce
	authKey    []byte
}

// NewJPAKE starts a full handshake at BOOTSTRAP.
func NewJPAKE(cfg Config) (*JPAKE, error) {
	j, err := newJPAKE(cfg)
	if err != nil {
		return nil, err
	}
	j.state.Store(int32(StateBootstrap))
	return j, nil
}

// ResumeJPAKE starts at CONFIRM_INITIAL from the derived secret stored on
// the session, skipping both EC-JPAKE rounds.
func ResumeJPAKE(cfg Config) (*JPAKE, error) {
	j, err := newJPAKE(cfg)
	if err != nil {
		return nil, err
	}
	secret, _ := cfg.Session.DerivedSecret()
	if len(secret) == 0 {
		return nil, ErrNoStoredSecret
	}
	j.secret = secret
	j.state.Store(int32(StateConfirmInitial))
	return j, nil
}

func newJPAKE(cfg Config) (*JPAKE, error) {
	if cfg.Requester == nil || cfg.Session == nil {
		return nil, errors.New("handshake: requester and session are required")
	}
	if cfg.Session.Kind() != session.HandshakeJPAKE {
		return nil, ErrWrongKind
	}
	j := &JPAKE{
		requester: cfg.Requester,
		session:   cfg.Session,
		rand:      cfg.Rand,
	}
	if j.rand == nil {
		j.rand = crypto.Reader
	}
	if cfg.LoggerFactory != nil {
		j.log = cfg.LoggerFactory.NewLogger("handshake")
	}
	return j, nil
}

// State returns the current state. It may be called while a step is in flight.
func (j *JPAKE) State() State {
	return State(j.state.Load())
}

// Run steps until COMPLETE or the first error.
func (j *JPAKE) Run(ctx context.Context) error {
	for {
		if j.State() == StateComplete {
			return nil
		}
		if err := j.Step(ctx); err != nil {
			return err
		}
	}
}

// Step advances the handshake by one request and its response. The final
// step from CONFIRM_RECEIVED installs the key without any I/O.
func (j *JPAKE) Step(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.err != nil {
		return j.err
	}
	state := j.State()
	if state.IsTerminal() {
		return ErrTerminal
	}

	var err error
	switch state {
	case StateBootstrap:
		err = j.round1a(ctx)
	case StateRound1AReceived:
		err = j.round1b(ctx)
	case StateRound1BReceived:
		err = j.round2(ctx)
	case StateRound2Received, StateConfirmInitial:
		err = j.sessionKey(ctx)
	case StateSessionKeyReceived:
		err = j.confirm(ctx)
	case StateConfirmReceived:
		j.complete()
	default:
		err = fmt.Errorf("handshake: cannot step from %s", state)
	}
	if err != nil {
		j.abort(err)
		return j.err
	}
	return nil
}

func (j *JPAKE) setState(s State) {
	if j.log != nil {
		j.log.Debugf("%s -> %s", j.State(), s)
	}
	j.state.Store(int32(s))
}

// abort discards partial secrets. Only a confirmation mismatch is INVALID;
// every other failure leaves the state where it stopped.
func (j *JPAKE) abort(err error) {
	j.engine = nil
	j.round1 = nil
	j.peerRound1 = nil
	j.secret = nil
	j.authKey = nil

	switch {
	case errors.Is(err, ErrConfirmationMismatch):
		j.setState(StateInvalid)
		j.session.ClearKeys()
		j.err = err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		j.err = fmt.Errorf("%w: %v", ErrAborted, err)
	default:
		j.err = err
	}
	if j.log != nil {
		j.log.Warnf("handshake failed in %s: %v", j.State(), err)
	}
}

func (j *JPAKE) request(ctx context.Context, req message.Request, sent State) (message.Message, error) {
	j.setState(sent)
	return j.requester.Request(ctx, req)
}

func (j *JPAKE) challenge(payload []byte) messages.JpakeChallenge {
	return messages.JpakeChallenge{AppInstanceID: j.session.AppInstanceID(), Challenge: payload}
}

func (j *JPAKE) round1a(ctx context.Context) error {
	engine, err := ecjpake.NewEngine(ecjpake.RoleClient, []byte(j.session.PairingCode()), j.rand)
	if err != nil {
		return err
	}
	round1, err := engine.Round1()
	if err != nil {
		return err
	}
	j.engine = engine
	j.round1 = round1

	resp, err := j.request(ctx, &messages.Jpake1aRequest{JpakeChallenge: j.challenge(round1[:messages.JpakeChallengeSize])}, StateRound1ASent)
	if err != nil {
		return err
	}
	r, ok := resp.(*messages.Jpake1aResponse)
	if !ok {
		return unexpected(resp)
	}
	j.peerRound1 = append(j.peerRound1[:0], r.Challenge...)
	j.setState(StateRound1AReceived)
	return nil
}

func (j *JPAKE) round1b(ctx context.Context) error {
	resp, err := j.request(ctx, &messages.Jpake1bRequest{JpakeChallenge: j.challenge(j.round1[messages.JpakeChallengeSize:])}, StateRound1BSent)
	if err != nil {
		return err
	}
	r, ok := resp.(*messages.Jpake1bResponse)
	if !ok {
		return unexpected(resp)
	}
	j.peerRound1 = append(j.peerRound1, r.Challenge...)
	if err := j.engine.ConsumeRound1(j.peerRound1); err != nil {
		return err
	}
	j.setState(StateRound1BReceived)
	return nil
}

func (j *JPAKE) round2(ctx context.Context) error {
	round2, err := j.engine.Round2()
	if err != nil {
		return err
	}
	resp, err := j.request(ctx, &messages.Jpake2Request{JpakeChallenge: j.challenge(round2)}, StateRound2Sent)
	if err != nil {
		return err
	}
	r, ok := resp.(*messages.Jpake2Response)
	if !ok {
		return unexpected(resp)
	}
	if err := j.engine.ConsumeRound2(r.Challenge); err != nil {
		return err
	}
	secret, err := j.engine.DeriveSecret()
	if err != nil {
		return err
	}
	j.secret = secret
	j.engine = nil
	j.round1 = nil
	j.peerRound1 = nil
	j.setState(StateRound2Received)
	return nil
}

func (j *JPAKE) sessionKey(ctx context.Context) error {
	resp, err := j.request(ctx, &messages.Jpake3SessionKeyRequest{}, StateSessionKeySent)
	if err != nil {
		return err
	}
	r, ok := resp.(*messages.Jpake3SessionKeyResponse)
	if !ok {
		return unexpected(resp)
	}
	j.nonce = append([]byte(nil), r.DeviceKeyNonce[:]...)
	key, err := ConfirmationKey(j.secret, j.nonce)
	if err != nil {
		return err
	}
	j.authKey = key
	j.setState(StateSessionKeyReceived)
	return nil
}

func (j *JPAKE) confirm(ctx context.Context) error {
	nonce, err := crypto.ReadRandom(j.rand, messages.NonceSize)
	if err != nil {
		return err
	}
	req := &messages.Jpake4KeyConfirmationRequest{}
	req.AppInstanceID = j.session.AppInstanceID()
	copy(req.Nonce[:], nonce)
	req.HashDigest = ConfirmationMAC(j.authKey, nonce)

	resp, err := j.request(ctx, req, StateConfirmSent)
	if err != nil {
		return err
	}
	r, ok := resp.(*messages.Jpake4KeyConfirmationResponse)
	if !ok {
		return unexpected(resp)
	}
	if !VerifyConfirmation(j.authKey, r.Nonce[:], r.HashDigest[:]) {
		return ErrConfirmationMismatch
	}
	j.setState(StateConfirmReceived)
	return nil
}

func (j *JPAKE) complete() {
	// The key is non-empty here, so SetAuthenticationKey cannot fail.
	_ = j.session.SetAuthenticationKey(j.authKey)
	j.session.SetDerivedSecret(j.secret, j.nonce)
	j.setState(StateComplete)
	if j.log != nil {
		j.log.Infof("paired, app instance %d", j.session.AppInstanceID())
	}
}

func unexpected(resp message.Message) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Props())
}
