package handshake_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backkem/pumpx2/pkg/crypto"
	"github.com/backkem/pumpx2/pkg/exchange"
	"github.com/backkem/pumpx2/pkg/handshake"
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/messages"
	"github.com/backkem/pumpx2/pkg/pumpsim"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/backkem/pumpx2/pkg/transport"
)

const jpakeCode = "246810"

// servePump runs a simulated pump on a fresh pipe and returns the central end.
func servePump(t *testing.T, pump *pumpsim.Pump) transport.Transport {
	t.Helper()
	pipe := transport.NewPipe()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pump.Serve(ctx, pipe.Peripheral())
	}()
	t.Cleanup(func() {
		cancel()
		pipe.Close()
		wg.Wait()
	})
	return pipe.Central()
}

func newExchange(t *testing.T, tr transport.Transport, sess *session.Session) *exchange.Exchange {
	t.Helper()
	ex, err := exchange.New(exchange.Config{Transport: tr, Session: sess, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("exchange.New() error = %v", err)
	}
	return ex
}

func newSession(t *testing.T, code string) *session.Session {
	t.Helper()
	sess, err := session.New(session.Config{PairingCode: code})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	return sess
}

func newPump(t *testing.T, code string) *pumpsim.Pump {
	t.Helper()
	pump, err := pumpsim.New(pumpsim.Config{PairingCode: code})
	if err != nil {
		t.Fatalf("pumpsim.New() error = %v", err)
	}
	return pump
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state handshake.State
		want  string
	}{
		{handshake.StateBootstrap, "BOOTSTRAP"},
		{handshake.StateRound1BSent, "ROUND1B_SENT"},
		{handshake.StateConfirmInitial, "CONFIRM_INITIAL"},
		{handshake.StateComplete, "COMPLETE"},
		{handshake.StateInvalid, "INVALID"},
		{handshake.State(99), "State(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if !handshake.StateInvalid.IsTerminal() || handshake.StateConfirmSent.IsTerminal() {
		t.Error("IsTerminal() wrong")
	}
}

func TestConfirmation_Symmetry(t *testing.T) {
	secret := crypto.SHA256Slice([]byte("shared secret"))
	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	k1, err := handshake.ConfirmationKey(secret, nonce)
	if err != nil {
		t.Fatalf("ConfirmationKey() error = %v", err)
	}
	k2, _ := handshake.ConfirmationKey(secret, nonce)
	if len(k1) != handshake.AuthenticationKeySize || !bytes.Equal(k1, k2) {
		t.Fatalf("keys differ or wrong size: %x %x", k1, k2)
	}

	clientNonce := []byte("client-n")
	mac := handshake.ConfirmationMAC(k1, clientNonce)
	if !handshake.VerifyConfirmation(k2, clientNonce, mac[:]) {
		t.Error("VerifyConfirmation() rejected a matching digest")
	}

	other, _ := handshake.ConfirmationKey(secret, []byte{8, 7, 6, 5, 4, 3, 2, 1})
	if handshake.VerifyConfirmation(other, clientNonce, mac[:]) {
		t.Error("VerifyConfirmation() accepted a digest under another nonce's key")
	}
}

func TestJPAKE_StepsThroughStates(t *testing.T) {
	pump := newPump(t, jpakeCode)
	sess := newSession(t, jpakeCode)
	ex := newExchange(t, servePump(t, pump), sess)

	j, err := handshake.NewJPAKE(handshake.Config{Requester: ex, Session: sess})
	if err != nil {
		t.Fatalf("NewJPAKE() error = %v", err)
	}
	if j.State() != handshake.StateBootstrap {
		t.Fatalf("initial state = %s", j.State())
	}

	want := []handshake.State{
		handshake.StateRound1AReceived,
		handshake.StateRound1BReceived,
		handshake.StateRound2Received,
		handshake.StateSessionKeyReceived,
		handshake.StateConfirmReceived,
		handshake.StateComplete,
	}
	ctx := context.Background()
	for _, w := range want {
		if err := j.Step(ctx); err != nil {
			t.Fatalf("Step() to %s error = %v", w, err)
		}
		if got := j.State(); got != w {
			t.Fatalf("state = %s, want %s", got, w)
		}
	}
	if err := j.Step(ctx); !errors.Is(err, handshake.ErrTerminal) {
		t.Errorf("Step() after COMPLETE error = %v, want ErrTerminal", err)
	}

	if !bytes.Equal(sess.AuthenticationKey(), pump.AuthenticationKey()) {
		t.Error("application and pump keys differ")
	}
	secret, nonce := sess.DerivedSecret()
	if len(secret) != 32 || len(nonce) != messages.NonceSize {
		t.Errorf("derived secret %d bytes, nonce %d bytes", len(secret), len(nonce))
	}
}

func TestJPAKE_ResumeFromRecord(t *testing.T) {
	pump := newPump(t, jpakeCode)
	tr := servePump(t, pump)

	first := newSession(t, jpakeCode)
	if err := handshake.Run(context.Background(), handshake.Config{Requester: newExchange(t, tr, first), Session: first}); err != nil {
		t.Fatalf("pairing error = %v", err)
	}
	rec := first.Record("1234567")

	resumed, err := session.FromRecord(rec, nil)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if resumed.IsAuthenticated() {
		t.Fatal("restored session already holds a key")
	}

	j, err := handshake.ResumeJPAKE(handshake.Config{Requester: newExchange(t, tr, resumed), Session: resumed})
	if err != nil {
		t.Fatalf("ResumeJPAKE() error = %v", err)
	}
	if j.State() != handshake.StateConfirmInitial {
		t.Fatalf("initial state = %s", j.State())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := pump.Requests(message.ChannelAuthorization, 32); got != 1 {
		t.Errorf("round 1 ran %d times, want 1", got)
	}
	if got := pump.Requests(message.ChannelAuthorization, 38); got != 2 {
		t.Errorf("session key requested %d times, want 2", got)
	}
	if !bytes.Equal(resumed.AuthenticationKey(), pump.AuthenticationKey()) {
		t.Error("resumed key differs from the pump's")
	}
	if bytes.Equal(resumed.AuthenticationKey(), first.AuthenticationKey()) {
		t.Error("resumed key equals the previous key despite a fresh nonce")
	}
}

func TestJPAKE_ConfirmationMismatch(t *testing.T) {
	pump := newPump(t, jpakeCode)
	pump.CorruptConfirmation(true)
	sess := newSession(t, jpakeCode)
	ex := newExchange(t, servePump(t, pump), sess)

	j, err := handshake.NewJPAKE(handshake.Config{Requester: ex, Session: sess})
	if err != nil {
		t.Fatal(err)
	}
	err = j.Run(context.Background())
	if !errors.Is(err, handshake.ErrConfirmationMismatch) {
		t.Fatalf("Run() error = %v, want ErrConfirmationMismatch", err)
	}
	if j.State() != handshake.StateInvalid {
		t.Errorf("state = %s, want INVALID", j.State())
	}
	if sess.IsAuthenticated() {
		t.Error("session authenticated after a mismatch")
	}
	if secret, _ := sess.DerivedSecret(); secret != nil {
		t.Error("derived secret kept after a mismatch")
	}
}

// scripted answers each request with the next canned response.
type scripted struct {
	requests  []message.Request
	responses []message.Message
	errs      []error
}

func (s *scripted) Request(ctx context.Context, req message.Request) (message.Message, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, errors.New("no scripted response")
	}
	return s.responses[i], nil
}

func TestJPAKE_AbortDiscardsState(t *testing.T) {
	sess := newSession(t, jpakeCode)
	req := &scripted{errs: []error{context.Canceled}}

	j, err := handshake.NewJPAKE(handshake.Config{Requester: req, Session: sess})
	if err != nil {
		t.Fatal(err)
	}
	err = j.Run(context.Background())
	if !errors.Is(err, handshake.ErrAborted) {
		t.Fatalf("Run() error = %v, want ErrAborted", err)
	}
	if j.State() == handshake.StateInvalid {
		t.Error("cancellation moved the handshake to INVALID")
	}
	if err := j.Step(context.Background()); !errors.Is(err, handshake.ErrAborted) {
		t.Errorf("Step() after abort error = %v, want ErrAborted", err)
	}
	if len(req.requests) != 1 {
		t.Errorf("sent %d requests after abort", len(req.requests))
	}
}

func TestJPAKE_UnexpectedResponse(t *testing.T) {
	sess := newSession(t, jpakeCode)
	req := &scripted{responses: []message.Message{&messages.APIVersionResponse{}}}

	j, err := handshake.NewJPAKE(handshake.Config{Requester: req, Session: sess})
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Step(context.Background()); !errors.Is(err, handshake.ErrUnexpectedResponse) {
		t.Errorf("Step() error = %v, want ErrUnexpectedResponse", err)
	}
	if _, ok := req.requests[0].(*messages.Jpake1aRequest); !ok {
		t.Errorf("first request %T, want *messages.Jpake1aRequest", req.requests[0])
	}
}

func TestJPAKE_Constructors(t *testing.T) {
	legacy := newSession(t, "ABCDEFGHJKLMNPQR")
	if _, err := handshake.NewJPAKE(handshake.Config{Requester: &scripted{}, Session: legacy}); !errors.Is(err, handshake.ErrWrongKind) {
		t.Errorf("NewJPAKE(legacy) error = %v, want ErrWrongKind", err)
	}
	fresh := newSession(t, jpakeCode)
	if _, err := handshake.ResumeJPAKE(handshake.Config{Requester: &scripted{}, Session: fresh}); !errors.Is(err, handshake.ErrNoStoredSecret) {
		t.Errorf("ResumeJPAKE() error = %v, want ErrNoStoredSecret", err)
	}
	if _, err := handshake.NewLegacy(handshake.Config{Requester: &scripted{}, Session: fresh}); !errors.Is(err, handshake.ErrWrongKind) {
		t.Errorf("NewLegacy(jpake) error = %v, want ErrWrongKind", err)
	}
}

func TestLegacy_ChallengeResponse(t *testing.T) {
	const code = "ABCD-EFGH-JKLM-NPQR"
	sess := newSession(t, code)

	central := &messages.CentralChallengeResponse{AppInstanceID: 1}
	copy(central.HMACKey[:], "8bytekey")
	req := &scripted{responses: []message.Message{
		central,
		&messages.PumpChallengeResponse{AppInstanceID: 1, Success: true},
	}}

	l, err := handshake.NewLegacy(handshake.Config{Requester: req, Session: sess})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	pumpReq, ok := req.requests[1].(*messages.PumpChallengeRequest)
	if !ok {
		t.Fatalf("second request %T", req.requests[1])
	}
	want := crypto.HMACSHA1([]byte("ABCDEFGHJKLMNPQR"), []byte("8bytekey"))
	if pumpReq.PumpChallengeHash != want {
		t.Errorf("PumpChallengeHash = %x, want %x", pumpReq.PumpChallengeHash, want)
	}
	if string(sess.AuthenticationKey()) != "ABCDEFGHJKLMNPQR" {
		t.Errorf("key = %q", sess.AuthenticationKey())
	}
}

func TestRun_LegacyAgainstPump(t *testing.T) {
	const code = "ABCDEFGHJKLMNPQR"
	pump := newPump(t, code)
	sess := newSession(t, code)

	if err := handshake.Run(context.Background(), handshake.Config{Requester: newExchange(t, servePump(t, pump), sess), Session: sess}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !bytes.Equal(sess.AuthenticationKey(), pump.AuthenticationKey()) {
		t.Error("keys differ")
	}
}
