package session

import (
	"sync"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
)

// DefaultAppInstanceID is the application instance id sent in handshake
// messages when none is configured.
const DefaultAppInstanceID = 1

// Config configures a new Session.
type Config struct {
	// PairingCode is the code shown on the pump. Separators are ignored.
	PairingCode string

	// AppInstanceID identifies this application to the pump.
	// Default: DefaultAppInstanceID
	AppInstanceID uint16

	// InitialTxID is the first transaction id handed out.
	InitialTxID uint8

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Session is the context of one pump connection. It is safe for concurrent use.
type Session struct {
	kind          HandshakeKind
	pairingCode   string
	appInstanceID uint16
	txIDs         *message.TxIDCounter
	now           func() time.Time

	mu            sync.RWMutex
	authKey       []byte
	derivedSecret []byte
	serverNonce   []byte

	tsr      uint32
	tsrAt    time.Time
	tsrKnown bool
}

// New creates a session for the given pairing code.
func New(cfg Config) (*Session, error) {
	code, kind, err := ParsePairingCode(cfg.PairingCode)
	if err != nil {
		return nil, err
	}
	if cfg.AppInstanceID == 0 {
		cfg.AppInstanceID = DefaultAppInstanceID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		kind:          kind,
		pairingCode:   code,
		appInstanceID: cfg.AppInstanceID,
		txIDs:         message.NewTxIDCounterWithValue(cfg.InitialTxID),
		now:           cfg.Now,
	}, nil
}

// FromRecord restores a session from a stored pairing. The authentication key
// is not restored: a JPAKE session must confirm its stored secret again, a
// legacy session re-derives the key from the code.
func FromRecord(rec *PairingRecord, now func() time.Time) (*Session, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	s, err := New(Config{PairingCode: rec.PairingCode, AppInstanceID: rec.AppInstanceID, Now: now})
	if err != nil {
		return nil, err
	}
	if rec.Kind == HandshakeJPAKE {
		s.SetDerivedSecret(rec.DerivedSecret, rec.ServerNonce)
	}
	return s, nil
}

// Kind returns the handshake kind chosen from the pairing code.
func (s *Session) Kind() HandshakeKind {
	return s.kind
}

// PairingCode returns the normalized pairing code.
func (s *Session) PairingCode() string {
	return s.pairingCode
}

// AppInstanceID returns the application instance id.
func (s *Session) AppInstanceID() uint16 {
	return s.appInstanceID
}

// NextTxID returns the next transaction id.
func (s *Session) NextTxID() uint8 {
	return s.txIDs.Next()
}

// SetAuthenticationKey installs the key used to sign and verify messages.
func (s *Session) SetAuthenticationKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authKey = append([]byte(nil), key...)
	return nil
}

// AuthenticationKey returns a copy of the key, or nil before a handshake
// completes.
func (s *Session) AuthenticationKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.authKey == nil {
		return nil
	}
	return append([]byte(nil), s.authKey...)
}

// IsAuthenticated reports whether a key is installed.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authKey != nil
}

// SetDerivedSecret records the EC-JPAKE shared secret and the pump nonce it
// was confirmed with.
func (s *Session) SetDerivedSecret(secret, serverNonce []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derivedSecret = append([]byte(nil), secret...)
	s.serverNonce = append([]byte(nil), serverNonce...)
}

// DerivedSecret returns copies of the stored secret and server nonce. The
// secret is nil when none is held.
func (s *Session) DerivedSecret() (secret, serverNonce []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.derivedSecret) == 0 {
		return nil, nil
	}
	return append([]byte(nil), s.derivedSecret...), append([]byte(nil), s.serverNonce...)
}

// ClearKeys drops the authentication key and derived secret.
func (s *Session) ClearKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.authKey {
		s.authKey[i] = 0
	}
	for i := range s.derivedSecret {
		s.derivedSecret[i] = 0
	}
	s.authKey, s.derivedSecret, s.serverNonce = nil, nil, nil
}

// ObserveTimeSinceReset records a counter value reported by the pump.
func (s *Session) ObserveTimeSinceReset(v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tsr = v
	s.tsrAt = s.now()
	s.tsrKnown = true
}

// TimeSinceReset returns the last observed counter advanced by the whole
// seconds elapsed since it was observed.
func (s *Session) TimeSinceReset() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.tsrKnown {
		return 0, false
	}
	elapsed := s.now().Sub(s.tsrAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return s.tsr + uint32(elapsed/time.Second), true
}

// FrameOptions returns framing options carrying the key and the current
// counter, when known.
func (s *Session) FrameOptions() message.FrameOptions {
	opts := message.FrameOptions{Key: s.AuthenticationKey()}
	if tsr, ok := s.TimeSinceReset(); ok {
		opts.TimeSinceReset = &tsr
	}
	return opts
}

// Record returns the persistent form of the session for the pump with the
// given serial number.
func (s *Session) Record(serial string) *PairingRecord {
	secret, nonce := s.DerivedSecret()
	return &PairingRecord{
		Serial:        serial,
		Kind:          s.kind,
		PairingCode:   s.pairingCode,
		AppInstanceID: s.appInstanceID,
		DerivedSecret: secret,
		ServerNonce:   nonce,
		PairedAt:      s.now().UTC(),
	}
}
