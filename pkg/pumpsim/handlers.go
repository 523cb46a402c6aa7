package pumpsim

import (
	"context"
	"errors"

	"github.com/backkem/pumpx2/pkg/crypto"
	"github.com/backkem/pumpx2/pkg/crypto/ecjpake"
	"github.com/backkem/pumpx2/pkg/handshake"
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/messages"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/backkem/pumpx2/pkg/transport"
)

var errStaleCounter = errors.New("pumpsim: stale time since reset")

// faultFor maps a receive error to the code reported back, if any. Requests
// that cannot be attributed to an opcode, or fail their CRC, are dropped.
func faultFor(err error) (messages.ErrorCode, bool) {
	switch {
	case errors.Is(err, errStaleCounter):
		return messages.ErrorCodeStaleCounter, true
	case errors.Is(err, message.ErrMACMismatch), errors.Is(err, message.ErrMissingKey):
		return messages.ErrorCodeInvalidSignature, true
	case errors.Is(err, message.ErrLengthMismatch), errors.Is(err, message.ErrCargoLength):
		return messages.ErrorCodeInvalidLength, true
	default:
		return 0, false
	}
}

func isLinkError(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, transport.ErrClosed) ||
		errors.Is(err, transport.ErrDisconnected)
}

// respond produces the answer to a verified request.
func (p *Pump) respond(ch message.Channel, h message.Header, req message.Message) message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := opKey{ch, h.Opcode}
	p.requests[k]++
	if f, ok := p.faults[k]; ok {
		f.remaining--
		if f.remaining <= 0 {
			delete(p.faults, k)
		}
		return &messages.ErrorResponse{Channel: ch, RequestOpcode: h.Opcode, Code: f.code}
	}

	resp, code := p.handle(req)
	if resp == nil {
		if p.log != nil {
			p.log.Debugf("opcode %d on %s failed: %s", h.Opcode, ch, code)
		}
		return &messages.ErrorResponse{Channel: ch, RequestOpcode: h.Opcode, Code: code}
	}
	return resp
}

// handle runs with p.mu held. A nil response reports code instead.
func (p *Pump) handle(req message.Message) (message.Message, messages.ErrorCode) {
	switch m := req.(type) {
	case *messages.APIVersionRequest:
		return &messages.APIVersionResponse{MajorVersion: p.config.APIMajor, MinorVersion: p.config.APIMinor}, 0

	case *messages.TimeSinceResetRequest:
		return &messages.TimeSinceResetResponse{
			CurrentTime:        uint32(p.config.Now().Unix()),
			PumpTimeSinceReset: p.timeSinceReset(),
		}, 0

	case *messages.CentralChallengeRequest:
		return p.centralChallenge(m)
	case *messages.PumpChallengeRequest:
		return p.pumpChallenge(m)

	case *messages.Jpake1aRequest:
		return p.jpake1a(m)
	case *messages.Jpake1bRequest:
		return p.jpake1b(m)
	case *messages.Jpake2Request:
		return p.jpake2(m)
	case *messages.Jpake3SessionKeyRequest:
		return p.jpake3(m)
	case *messages.Jpake4KeyConfirmationRequest:
		return p.jpake4(m)

	case *messages.SuspendPumpingRequest:
		p.suspended = true
		return &messages.SuspendPumpingResponse{}, 0
	case *messages.ResumePumpingRequest:
		p.suspended = false
		return &messages.ResumePumpingResponse{}, 0

	default:
		return nil, messages.ErrorCodeUnknownOpcode
	}
}

func (p *Pump) centralChallenge(m *messages.CentralChallengeRequest) (message.Message, messages.ErrorCode) {
	if p.kind != session.HandshakeLegacy {
		return nil, messages.ErrorCodeInvalidParameter
	}
	key, err := crypto.ReadRandom(p.rand, messages.CentralChallengeSize)
	if err != nil {
		return nil, messages.ErrorCodeNotReady
	}
	p.hmacKey = key

	resp := &messages.CentralChallengeResponse{AppInstanceID: m.AppInstanceID}
	resp.CentralChallengeHash = crypto.HMACSHA1(key, m.CentralChallenge[:])
	copy(resp.HMACKey[:], key)
	return resp, 0
}

func (p *Pump) pumpChallenge(m *messages.PumpChallengeRequest) (message.Message, messages.ErrorCode) {
	if p.kind != session.HandshakeLegacy || p.hmacKey == nil {
		return nil, messages.ErrorCodeInvalidParameter
	}
	want := handshake.LegacyChallengeHash(p.code, p.hmacKey)
	p.hmacKey = nil

	ok := crypto.HMACEqual(want[:], m.PumpChallengeHash[:])
	if ok {
		p.authKey = []byte(p.code)
	}
	return &messages.PumpChallengeResponse{AppInstanceID: m.AppInstanceID, Success: ok}, 0
}

func (p *Pump) resetJPAKE() {
	p.engine = nil
	p.round1 = nil
	p.peerRound1 = nil
	p.pendingKey = nil
}

func (p *Pump) jpake1a(m *messages.Jpake1aRequest) (message.Message, messages.ErrorCode) {
	if p.kind != session.HandshakeJPAKE {
		return nil, messages.ErrorCodeInvalidParameter
	}
	p.resetJPAKE()

	engine, err := ecjpake.NewEngine(ecjpake.RoleServer, []byte(p.code), p.rand)
	if err != nil {
		return nil, messages.ErrorCodeNotReady
	}
	round1, err := engine.Round1()
	if err != nil {
		return nil, messages.ErrorCodeNotReady
	}
	p.engine = engine
	p.round1 = round1
	p.peerRound1 = append([]byte(nil), m.Challenge...)

	return &messages.Jpake1aResponse{JpakeChallenge: messages.JpakeChallenge{
		AppInstanceID: m.AppInstanceID,
		Challenge:     round1[:messages.JpakeChallengeSize],
	}}, 0
}

func (p *Pump) jpake1b(m *messages.Jpake1bRequest) (message.Message, messages.ErrorCode) {
	if p.engine == nil || len(p.peerRound1) != messages.JpakeChallengeSize {
		return nil, messages.ErrorCodeInvalidParameter
	}
	p.peerRound1 = append(p.peerRound1, m.Challenge...)
	if err := p.engine.ConsumeRound1(p.peerRound1); err != nil {
		p.resetJPAKE()
		return nil, messages.ErrorCodeInvalidParameter
	}
	return &messages.Jpake1bResponse{JpakeChallenge: messages.JpakeChallenge{
		AppInstanceID: m.AppInstanceID,
		Challenge:     p.round1[messages.JpakeChallengeSize:],
	}}, 0
}

func (p *Pump) jpake2(m *messages.Jpake2Request) (message.Message, messages.ErrorCode) {
	if p.engine == nil {
		return nil, messages.ErrorCodeInvalidParameter
	}
	round2, err := p.engine.Round2()
	if err != nil {
		p.resetJPAKE()
		return nil, messages.ErrorCodeInvalidParameter
	}
	if err := p.engine.ConsumeRound2(m.Challenge); err != nil {
		p.resetJPAKE()
		return nil, messages.ErrorCodeInvalidParameter
	}
	secret, err := p.engine.DeriveSecret()
	if err != nil {
		p.resetJPAKE()
		return nil, messages.ErrorCodeInvalidParameter
	}
	p.resetJPAKE()
	p.secret = secret

	return &messages.Jpake2Response{JpakeChallenge: messages.JpakeChallenge{
		AppInstanceID: m.AppInstanceID,
		Challenge:     round2,
	}}, 0
}

func (p *Pump) jpake3(m *messages.Jpake3SessionKeyRequest) (message.Message, messages.ErrorCode) {
	if p.secret == nil {
		return nil, messages.ErrorCodeInvalidParameter
	}
	nonce, err := crypto.ReadRandom(p.rand, messages.NonceSize)
	if err != nil {
		return nil, messages.ErrorCodeNotReady
	}
	key, err := handshake.ConfirmationKey(p.secret, nonce)
	if err != nil {
		return nil, messages.ErrorCodeNotReady
	}
	p.pendingKey = key

	resp := &messages.Jpake3SessionKeyResponse{}
	copy(resp.DeviceKeyNonce[:], nonce)
	return resp, 0
}

func (p *Pump) jpake4(m *messages.Jpake4KeyConfirmationRequest) (message.Message, messages.ErrorCode) {
	if p.pendingKey == nil {
		return nil, messages.ErrorCodeInvalidParameter
	}
	key := p.pendingKey
	p.pendingKey = nil

	if !handshake.VerifyConfirmation(key, m.Nonce[:], m.HashDigest[:]) {
		return nil, messages.ErrorCodeInvalidSignature
	}
	nonce, err := crypto.ReadRandom(p.rand, messages.NonceSize)
	if err != nil {
		return nil, messages.ErrorCodeNotReady
	}

	resp := &messages.Jpake4KeyConfirmationResponse{}
	resp.AppInstanceID = m.AppInstanceID
	copy(resp.Nonce[:], nonce)
	resp.HashDigest = handshake.ConfirmationMAC(key, nonce)
	if p.corruptConfirmation {
		resp.HashDigest[0] ^= 0xFF
	}
	p.authKey = key
	return resp, 0
}
