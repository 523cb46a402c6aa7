package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/backkem/pumpx2/pkg/crypto"
	"github.com/backkem/pumpx2/pkg/messages"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/pion/logging"
)

// LegacyChallengeHash answers the pump's HMAC key with the pairing code.
func LegacyChallengeHash(pairingCode string, hmacKey []byte) [crypto.SHA1LenBytes]byte {
	return crypto.HMACSHA1([]byte(pairingCode), hmacKey)
}

// Legacy runs the two-exchange challenge handshake used with sixteen-character
// pairing codes. The resulting authentication key is the pairing code itself.
type Legacy struct {
	requester Requester
	session   *session.Session
	rand      io.Reader
	log       logging.LeveledLogger
}

// NewLegacy creates a legacy handshake.
func NewLegacy(cfg Config) (*Legacy, error) {
	if cfg.Requester == nil || cfg.Session == nil {
		return nil, errors.New("handshake: requester and session are required")
	}
	if cfg.Session.Kind() != session.HandshakeLegacy {
		return nil, ErrWrongKind
	}
	l := &Legacy{
		requester: cfg.Requester,
		session:   cfg.Session,
		rand:      cfg.Rand,
	}
	if l.rand == nil {
		l.rand = crypto.Reader
	}
	if cfg.LoggerFactory != nil {
		l.log = cfg.LoggerFactory.NewLogger("handshake")
	}
	return l, nil
}

// Run performs the handshake and installs the key on the session.
func (l *Legacy) Run(ctx context.Context) error {
	challenge, err := crypto.ReadRandom(l.rand, messages.CentralChallengeSize)
	if err != nil {
		return err
	}
	req := &messages.CentralChallengeRequest{AppInstanceID: l.session.AppInstanceID()}
	copy(req.CentralChallenge[:], challenge)

	resp, err := l.requester.Request(ctx, req)
	if err != nil {
		return wrapAbort(err)
	}
	central, ok := resp.(*messages.CentralChallengeResponse)
	if !ok {
		return unexpected(resp)
	}
	// The pump's hash over our challenge uses a key we do not hold; it is
	// recorded but not checked.
	if l.log != nil {
		l.log.Debugf("central challenge hash %x", central.CentralChallengeHash)
	}

	code := l.session.PairingCode()
	resp, err = l.requester.Request(ctx, &messages.PumpChallengeRequest{
		AppInstanceID:     l.session.AppInstanceID(),
		PumpChallengeHash: LegacyChallengeHash(code, central.HMACKey[:]),
	})
	if err != nil {
		return wrapAbort(err)
	}
	pump, ok := resp.(*messages.PumpChallengeResponse)
	if !ok {
		return unexpected(resp)
	}
	if !pump.Success {
		return ErrPairingRejected
	}

	if err := l.session.SetAuthenticationKey([]byte(code)); err != nil {
		return err
	}
	if l.log != nil {
		l.log.Infof("paired with legacy code, app instance %d", l.session.AppInstanceID())
	}
	return nil
}

func wrapAbort(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return err
}
