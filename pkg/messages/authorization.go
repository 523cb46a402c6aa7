// Package messages is the catalogue of typed messages the protocol core
// speaks: the authorization handshake, the status queries it depends on, a
// pair of signed control commands and the device fault report.
//
// Each family is a sealed interface; NewRegistry returns the (opcode, channel)
// table used to decode inbound envelopes.
package messages

import (
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/wire"
)

// Handshake payload sizes.
const (
	// JpakeChallengeSize is one half of a round-1 payload, or a client round-2 payload.
	JpakeChallengeSize = 165

	// JpakeServerRound2Size is the pump's round-2 payload, which carries ECParameters.
	JpakeServerRound2Size = 168

	// NonceSize is the size of the key-confirmation nonces.
	NonceSize = 8

	// DigestSize is the size of the key-confirmation HMAC-SHA256.
	DigestSize = 32

	// CentralChallengeSize is the legacy handshake challenge size.
	CentralChallengeSize = 8

	// ChallengeHashSize is the legacy HMAC-SHA1 size.
	ChallengeHashSize = 20
)

// Authorization is a message of the pairing handshake.
type Authorization interface {
	message.Message
	isAuthorization()
}

func authProps(opcode uint8, dir message.Direction, size int) message.Props {
	return message.Props{Opcode: opcode, Channel: message.ChannelAuthorization, Direction: dir, Size: size}
}

var (
	centralChallengeRequestProps  = authProps(16, message.DirectionRequest, 2+CentralChallengeSize)
	centralChallengeResponseProps = authProps(17, message.DirectionResponse, 2+ChallengeHashSize+CentralChallengeSize)
	pumpChallengeRequestProps     = authProps(18, message.DirectionRequest, 2+ChallengeHashSize)
	pumpChallengeResponseProps    = authProps(19, message.DirectionResponse, 3)

	jpake1aRequestProps  = authProps(32, message.DirectionRequest, 2+JpakeChallengeSize)
	jpake1aResponseProps = authProps(33, message.DirectionResponse, 2+JpakeChallengeSize)
	jpake1bRequestProps  = authProps(34, message.DirectionRequest, 2+JpakeChallengeSize)
	jpake1bResponseProps = authProps(35, message.DirectionResponse, 2+JpakeChallengeSize)
	jpake2RequestProps   = authProps(36, message.DirectionRequest, 2+JpakeChallengeSize)
	jpake2ResponseProps  = authProps(37, message.DirectionResponse, 2+JpakeServerRound2Size)

	jpake3SessionKeyRequestProps  = authProps(38, message.DirectionRequest, 2)
	jpake3SessionKeyResponseProps = authProps(39, message.DirectionResponse, 2+2*NonceSize)

	jpake4KeyConfirmationRequestProps  = authProps(40, message.DirectionRequest, 2+2*NonceSize+DigestSize)
	jpake4KeyConfirmationResponseProps = authProps(41, message.DirectionResponse, 2+2*NonceSize+DigestSize)
)

// CentralChallengeRequest opens the legacy handshake with a random challenge.
type CentralChallengeRequest struct {
	AppInstanceID    uint16
	CentralChallenge [CentralChallengeSize]byte
}

func (m *CentralChallengeRequest) Props() message.Props { return centralChallengeRequestProps }
func (m *CentralChallengeRequest) ResponseOpcode() uint8 {
	return centralChallengeResponseProps.Opcode
}
func (m *CentralChallengeRequest) isAuthorization() {}

func (m *CentralChallengeRequest) Cargo() []byte {
	return wire.NewWriter(m.Props().Size).Uint16(m.AppInstanceID).Bytes(m.CentralChallenge[:]).Finish()
}

func decodeCentralChallengeRequest(cargo []byte) (message.Message, error) {
	r := wire.NewReader(cargo)
	m := &CentralChallengeRequest{AppInstanceID: r.Uint16()}
	copy(m.CentralChallenge[:], r.Bytes(CentralChallengeSize))
	return m, r.Err()
}

// CentralChallengeResponse carries the pump's hash of the challenge and the
// HMAC key the application must sign with the pairing code.
type CentralChallengeResponse struct {
	AppInstanceID        uint16
	CentralChallengeHash [ChallengeHashSize]byte
	HMACKey              [CentralChallengeSize]byte
}

func (m *CentralChallengeResponse) Props() message.Props { return centralChallengeResponseProps }
func (m *CentralChallengeResponse) isAuthorization()     {}

func (m *CentralChallengeResponse) Cargo() []byte {
	return wire.NewWriter(m.Props().Size).
		Uint16(m.AppInstanceID).
		Bytes(m.CentralChallengeHash[:]).
		Bytes(m.HMACKey[:]).
		Finish()
}

func decodeCentralChallengeResponse(cargo []byte) (message.Message, error) {
	r := wire.NewReader(cargo)
	m := &CentralChallengeResponse{AppInstanceID: r.Uint16()}
	copy(m.CentralChallengeHash[:], r.Bytes(ChallengeHashSize))
	copy(m.HMACKey[:], r.Bytes(CentralChallengeSize))
	return m, r.Err()
}

// PumpChallengeRequest answers the pump's HMAC key.
type PumpChallengeRequest struct {
	AppInstanceID     uint16
	PumpChallengeHash [ChallengeHashSize]byte
}

func (m *PumpChallengeRequest) Props() message.Props  { return pumpChallengeRequestProps }
func (m *PumpChallengeRequest) ResponseOpcode() uint8 { return pumpChallengeResponseProps.Opcode }
func (m *PumpChallengeRequest) isAuthorization()      {}

func (m *PumpChallengeRequest) Cargo() []byte {
	return wire.NewWriter(m.Props().Size).Uint16(m.AppInstanceID).Bytes(m.PumpChallengeHash[:]).Finish()
}

func decodePumpChallengeRequest(cargo []byte) (message.Message, error) {
	r := wire.NewReader(cargo)
	m := &PumpChallengeRequest{AppInstanceID: r.Uint16()}
	copy(m.PumpChallengeHash[:], r.Bytes(ChallengeHashSize))
	return m, r.Err()
}

// PumpChallengeResponse reports whether legacy pairing succeeded.
type PumpChallengeResponse struct {
	AppInstanceID uint16
	Success       bool
}

func (m *PumpChallengeResponse) Props() message.Props { return pumpChallengeResponseProps }
func (m *PumpChallengeResponse) isAuthorization()     {}

func (m *PumpChallengeResponse) Cargo() []byte {
	return wire.NewWriter(m.Props().Size).Uint16(m.AppInstanceID).Bool(m.Success).Finish()
}

func decodePumpChallengeResponse(cargo []byte) (message.Message, error) {
	r := wire.NewReader(cargo)
	m := &PumpChallengeResponse{AppInstanceID: r.Uint16(), Success: r.Bool()}
	return m, r.Err()
}

// JpakeChallenge is the common layout of the EC-JPAKE round messages: an
// app instance id followed by a fixed-size slice of the round payload.
type JpakeChallenge struct {
	AppInstanceID uint16
	Challenge     []byte
}

func (c JpakeChallenge) encode(size int) []byte {
	return wire.NewWriter(size).Uint16(c.AppInstanceID).FixedBytes(c.Challenge, size-2).Finish()
}

func decodeJpakeChallenge(cargo []byte) (JpakeChallenge, error) {
	r := wire.NewReader(cargo)
	c := JpakeChallenge{AppInstanceID: r.Uint16()}
	c.Challenge = r.Bytes(r.Remaining())
	return c, r.Err()
}

// Jpake1aRequest carries bytes [0, 165) of the application's round-1 payload.
type Jpake1aRequest struct{ JpakeChallenge }

func (m *Jpake1aRequest) Props() message.Props  { return jpake1aRequestProps }
func (m *Jpake1aRequest) ResponseOpcode() uint8 { return jpake1aResponseProps.Opcode }
func (m *Jpake1aRequest) Cargo() []byte         { return m.encode(m.Props().Size) }
func (m *Jpake1aRequest) isAuthorization()      {}

// Jpake1aResponse carries bytes [0, 165) of the pump's round-1 payload.
type Jpake1aResponse struct{ JpakeChallenge }

func (m *Jpake1aResponse) Props() message.Props { return jpake1aResponseProps }
func (m *Jpake1aResponse) Cargo() []byte        { return m.encode(m.Props().Size) }
func (m *Jpake1aResponse) isAuthorization()     {}

// Jpake1bRequest carries bytes [165, 330) of the application's round-1 payload.
type Jpake1bRequest struct{ JpakeChallenge }

func (m *Jpake1bRequest) Props() message.Props  { return jpake1bRequestProps }
func (m *Jpake1bRequest) ResponseOpcode() uint8 { return jpake1bResponseProps.Opcode }
func (m *Jpake1bRequest) Cargo() []byte         { return m.encode(m.Props().Size) }
func (m *Jpake1bRequest) isAuthorization()      {}

// Jpake1bResponse carries bytes [165, 330) of the pump's round-1 payload.
type Jpake1bResponse struct{ JpakeChallenge }

func (m *Jpake1bResponse) Props() message.Props { return jpake1bResponseProps }
func (m *Jpake1bResponse) Cargo() []byte        { return m.encode(m.Props().Size) }
func (m *Jpake1bResponse) isAuthorization()     {}

// Jpake2Request carries the application's round-2 payload.
type Jpake2Request struct{ JpakeChallenge }

func (m *Jpake2Request) Props() message.Props  { return jpake2RequestProps }
func (m *Jpake2Request) ResponseOpcode() uint8 { return jpake2ResponseProps.Opcode }
func (m *Jpake2Request) Cargo() []byte         { return m.encode(m.Props().Size) }
func (m *Jpake2Request) isAuthorization()      {}

// Jpake2Response carries the pump's round-2 payload.
type Jpake2Response struct{ JpakeChallenge }

func (m *Jpake2Response) Props() message.Props { return jpake2ResponseProps }
func (m *Jpake2Response) Cargo() []byte        { return m.encode(m.Props().Size) }
func (m *Jpake2Response) isAuthorization()     {}

// Jpake3SessionKeyRequest asks the pump for its key-derivation nonce.
type Jpake3SessionKeyRequest struct {
	ChallengeParam uint16
}

func (m *Jpake3SessionKeyRequest) Props() message.Props { return jpake3SessionKeyRequestProps }
func (m *Jpake3SessionKeyRequest) ResponseOpcode() uint8 {
	return jpake3SessionKeyResponseProps.Opcode
}
func (m *Jpake3SessionKeyRequest) isAuthorization() {}

func (m *Jpake3SessionKeyRequest) Cargo() []byte {
	return wire.NewWriter(2).Uint16(m.ChallengeParam).Finish()
}

func decodeJpake3SessionKeyRequest(cargo []byte) (message.Message, error) {
	r := wire.NewReader(cargo)
	m := &Jpake3SessionKeyRequest{ChallengeParam: r.Uint16()}
	return m, r.Err()
}

// Jpake3SessionKeyResponse carries the pump's nonce used as HKDF salt.
type Jpake3SessionKeyResponse struct {
	AppInstanceID     uint16
	DeviceKeyNonce    [NonceSize]byte
	DeviceKeyReserved [NonceSize]byte
}

func (m *Jpake3SessionKeyResponse) Props() message.Props { return jpake3SessionKeyResponseProps }
func (m *Jpake3SessionKeyResponse) isAuthorization()     {}

func (m *Jpake3SessionKeyResponse) Cargo() []byte {
	return wire.NewWriter(m.Props().Size).
		Uint16(m.AppInstanceID).
		Bytes(m.DeviceKeyNonce[:]).
		Bytes(m.DeviceKeyReserved[:]).
		Finish()
}

func decodeJpake3SessionKeyResponse(cargo []byte) (message.Message, error) {
	r := wire.NewReader(cargo)
	m := &Jpake3SessionKeyResponse{AppInstanceID: r.Uint16()}
	copy(m.DeviceKeyNonce[:], r.Bytes(NonceSize))
	copy(m.DeviceKeyReserved[:], r.Bytes(NonceSize))
	return m, r.Err()
}

// KeyConfirmation is the common layout of the Jpake4 messages.
type KeyConfirmation struct {
	AppInstanceID uint16
	Nonce         [NonceSize]byte
	Reserved      [NonceSize]byte
	HashDigest    [DigestSize]byte
}

func (c KeyConfirmation) encode(size int) []byte {
	return wire.NewWriter(size).
		Uint16(c.AppInstanceID).
		Bytes(c.Nonce[:]).
		Bytes(c.Reserved[:]).
		Bytes(c.HashDigest[:]).
		Finish()
}

func decodeKeyConfirmation(cargo []byte) (KeyConfirmation, error) {
	r := wire.NewReader(cargo)
	c := KeyConfirmation{AppInstanceID: r.Uint16()}
	copy(c.Nonce[:], r.Bytes(NonceSize))
	copy(c.Reserved[:], r.Bytes(NonceSize))
	copy(c.HashDigest[:], r.Bytes(DigestSize))
	return c, r.Err()
}

// Jpake4KeyConfirmationRequest proves possession of the derived key.
type Jpake4KeyConfirmationRequest struct{ KeyConfirmation }

func (m *Jpake4KeyConfirmationRequest) Props() message.Props {
	return jpake4KeyConfirmationRequestProps
}
func (m *Jpake4KeyConfirmationRequest) ResponseOpcode() uint8 {
	return jpake4KeyConfirmationResponseProps.Opcode
}
func (m *Jpake4KeyConfirmationRequest) Cargo() []byte    { return m.encode(m.Props().Size) }
func (m *Jpake4KeyConfirmationRequest) isAuthorization() {}

// Jpake4KeyConfirmationResponse is the pump's proof of the derived key.
type Jpake4KeyConfirmationResponse struct{ KeyConfirmation }

func (m *Jpake4KeyConfirmationResponse) Props() message.Props {
	return jpake4KeyConfirmationResponseProps
}
func (m *Jpake4KeyConfirmationResponse) Cargo() []byte    { return m.encode(m.Props().Size) }
func (m *Jpake4KeyConfirmationResponse) isAuthorization() {}

func challengeDecoder(wrap func(JpakeChallenge) message.Message) message.DecodeFunc {
	return func(cargo []byte) (message.Message, error) {
		c, err := decodeJpakeChallenge(cargo)
		if err != nil {
			return nil, err
		}
		return wrap(c), nil
	}
}

func confirmationDecoder(wrap func(KeyConfirmation) message.Message) message.DecodeFunc {
	return func(cargo []byte) (message.Message, error) {
		c, err := decodeKeyConfirmation(cargo)
		if err != nil {
			return nil, err
		}
		return wrap(c), nil
	}
}

func authorizationEntries() []message.Entry {
	return []message.Entry{
		{Props: centralChallengeRequestProps, Decode: decodeCentralChallengeRequest},
		{Props: centralChallengeResponseProps, Decode: decodeCentralChallengeResponse},
		{Props: pumpChallengeRequestProps, Decode: decodePumpChallengeRequest},
		{Props: pumpChallengeResponseProps, Decode: decodePumpChallengeResponse},
		{Props: jpake1aRequestProps, Decode: challengeDecoder(func(c JpakeChallenge) message.Message { return &Jpake1aRequest{c} })},
		{Props: jpake1aResponseProps, Decode: challengeDecoder(func(c JpakeChallenge) message.Message { return &Jpake1aResponse{c} })},
		{Props: jpake1bRequestProps, Decode: challengeDecoder(func(c JpakeChallenge) message.Message { return &Jpake1bRequest{c} })},
		{Props: jpake1bResponseProps, Decode: challengeDecoder(func(c JpakeChallenge) message.Message { return &Jpake1bResponse{c} })},
		{Props: jpake2RequestProps, Decode: challengeDecoder(func(c JpakeChallenge) message.Message { return &Jpake2Request{c} })},
		{Props: jpake2ResponseProps, Decode: challengeDecoder(func(c JpakeChallenge) message.Message { return &Jpake2Response{c} })},
		{Props: jpake3SessionKeyRequestProps, Decode: decodeJpake3SessionKeyRequest},
		{Props: jpake3SessionKeyResponseProps, Decode: decodeJpake3SessionKeyResponse},
		{Props: jpake4KeyConfirmationRequestProps, Decode: confirmationDecoder(func(c KeyConfirmation) message.Message {
			return &Jpake4KeyConfirmationRequest{c}
		})},
		{Props: jpake4KeyConfirmationResponseProps, Decode: confirmationDecoder(func(c KeyConfirmation) message.Message {
			return &Jpake4KeyConfirmationResponse{c}
		})},
	}
}
