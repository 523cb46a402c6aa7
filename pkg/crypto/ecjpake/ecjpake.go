// Package ecjpake implements the EC-JPAKE password-authenticated key exchange
// over P-256 with SHA-256, using the TLS wire encoding of points and proofs.
//
// Both sides hold the same low-entropy password. Each publishes two ephemeral
// public keys with Schnorr proofs (round 1), then one password-bound key with a
// proof over a combined generator (round 2). The shared secret is the SHA-256
// of the x-coordinate of the agreed point.
//
// Protocol flow:
//
//	Client                                   Server
//	------                                   ------
//	NewEngine(RoleClient, pw)                NewEngine(RoleServer, pw)
//	Round1() ----------- 330 bytes -------->  ConsumeRound1()
//	ConsumeRound1() <--- 330 bytes ---------  Round1()
//	Round2() ----------- 165 bytes -------->  ConsumeRound2()
//	ConsumeRound2() <--- 168 bytes ---------  Round2()
//	DeriveSecret()                           DeriveSecret()
//
// The engine performs no I/O and is not safe for concurrent use; a handshake
// owns exactly one engine.
package ecjpake

import (
	"fmt"
	"io"
	"math/big"

	"github.com/backkem/pumpx2/pkg/crypto"
)

// Encoding sizes.
const (
	// ScalarSizeBytes is the size of a P-256 scalar.
	ScalarSizeBytes = 32

	// PointSizeBytes is the size of an uncompressed P-256 point.
	PointSizeBytes = 65

	// KeyPayloadSize is one public key with its proof:
	// (1 + 65) point + (1 + 65) V + (1 + 32) r.
	KeyPayloadSize = 2*(1+PointSizeBytes) + 1 + ScalarSizeBytes

	// Round1Size is the size of a round-1 payload (two keys with proofs).
	Round1Size = 2 * KeyPayloadSize

	// Round2Size is the size of a client round-2 payload.
	Round2Size = KeyPayloadSize

	// ServerRound2Size is the size of a server round-2 payload, which carries
	// the 3-byte ECParameters prefix.
	ServerRound2Size = 3 + KeyPayloadSize

	// SecretSize is the size of the derived shared secret.
	SecretSize = crypto.SHA256LenBytes

	blindingSizeBytes = 16
)

// Role identifies the side of the exchange. The role selects the identity
// strings bound into the proofs and whether round 2 carries ECParameters.
type Role int

const (
	// RoleClient is the initiator (the companion application).
	RoleClient Role = iota
	// RoleServer is the responder (the pump).
	RoleServer
)

// String returns the identity string used in proofs.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) peer() Role {
	if r == RoleClient {
		return RoleServer
	}
	return RoleClient
}

// Engine holds one side of an EC-JPAKE exchange.
type Engine struct {
	role   Role
	myID   []byte
	peerID []byte
	s      *big.Int

	// Own round-1 key pairs.
	x1, x2 *big.Int
	X1, X2 *point

	// Peer round-1 public keys.
	X3, X4 *point

	// Peer round-2 public key.
	Xp *point

	secret []byte

	local1, peer1 bool
	local2, peer2 bool
	failed        bool

	rand io.Reader
}

// NewEngine creates an engine for role using password as the shared secret.
// The password bytes are read as a big-endian integer reduced mod n.
// A nil r uses the default secure random source.
func NewEngine(role Role, password []byte, r io.Reader) (*Engine, error) {
	if role != RoleClient && role != RoleServer {
		return nil, ErrInvalidRole
	}
	if len(password) == 0 {
		return nil, ErrInvalidPassword
	}

	s := new(big.Int).SetBytes(password)
	s.Mod(s, p256.Params().N)
	if s.Sign() == 0 {
		return nil, ErrInvalidPassword
	}

	if r == nil {
		r = crypto.Reader
	}

	return &Engine{
		role:   role,
		myID:   []byte(role.String()),
		peerID: []byte(role.peer().String()),
		s:      s,
		rand:   r,
	}, nil
}

// Role returns the engine's role.
func (e *Engine) Role() Role {
	return e.role
}

// Round1 generates the two ephemeral key pairs and returns the 330-byte
// round-1 payload. It may be called once.
func (e *Engine) Round1() ([]byte, error) {
	if e.failed || e.local1 {
		return nil, ErrInvalidState
	}

	x1, X1, proof1, err := e.generateKey()
	if err != nil {
		return nil, err
	}
	x2, X2, proof2, err := e.generateKey()
	if err != nil {
		return nil, err
	}

	e.x1, e.X1 = x1, X1
	e.x2, e.X2 = x2, X2
	e.local1 = true

	out := make([]byte, 0, Round1Size)
	out = appendPoint(out, X1)
	out = appendProof(out, proof1)
	out = appendPoint(out, X2)
	out = appendProof(out, proof2)
	return out, nil
}

func (e *Engine) generateKey() (*big.Int, *point, *zkp, error) {
	x, err := generateRandomScalar(e.rand)
	if err != nil {
		return nil, nil, nil, err
	}
	X := scalarBaseMult(x)
	proof, err := makeProof(basePoint, x, X, e.myID, e.rand)
	if err != nil {
		return nil, nil, nil, err
	}
	return x, X, proof, nil
}

// ConsumeRound1 parses and verifies the peer's round-1 payload.
func (e *Engine) ConsumeRound1(data []byte) error {
	if e.failed || e.peer1 {
		return ErrInvalidState
	}

	r := &reader{buf: data}
	X3 := r.readPoint()
	proof3 := r.readProof()
	X4 := r.readPoint()
	proof4 := r.readProof()
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return ErrInvalidEncoding
	}

	if !verifyProof(basePoint, X3, proof3, e.peerID) || !verifyProof(basePoint, X4, proof4, e.peerID) {
		e.fail()
		return ErrProofRejected
	}

	e.X3, e.X4 = X3, X4
	e.peer1 = true
	return nil
}

// Round2 returns the round-2 payload: x2*s over the generator X1+X3+X4 with
// its proof. The server prefixes the payload with ECParameters.
func (e *Engine) Round2() ([]byte, error) {
	if e.failed || !e.local1 || !e.peer1 || e.local2 {
		return nil, ErrInvalidState
	}

	g := pointAdd(pointAdd(e.X1, e.X3), e.X4)
	if g.isInfinity() {
		return nil, ErrInvalidPoint
	}

	xm, err := mulSecret(e.x2, e.s, e.rand)
	if err != nil {
		return nil, err
	}
	Xm := scalarMult(g, xm)
	proof, err := makeProof(g, xm, Xm, e.myID, e.rand)
	if err != nil {
		return nil, err
	}
	e.local2 = true

	out := make([]byte, 0, ServerRound2Size)
	if e.role == RoleServer {
		out = append(out, ecParameters...)
	}
	out = appendPoint(out, Xm)
	out = appendProof(out, proof)
	return out, nil
}

// ConsumeRound2 parses and verifies the peer's round-2 payload.
func (e *Engine) ConsumeRound2(data []byte) error {
	if e.failed || !e.local1 || !e.peer1 || e.peer2 {
		return ErrInvalidState
	}

	r := &reader{buf: data}
	if e.role == RoleClient {
		r.readECParameters()
	}
	Xp := r.readPoint()
	proof := r.readProof()
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return ErrInvalidEncoding
	}

	// The peer's generator is its first key plus both of ours.
	g := pointAdd(pointAdd(e.X3, e.X1), e.X2)
	if g.isInfinity() {
		return ErrInvalidPoint
	}
	if !verifyProof(g, Xp, proof, e.peerID) {
		e.fail()
		return ErrProofRejected
	}

	e.Xp = Xp
	e.peer2 = true
	return nil
}

// DeriveSecret computes K = x2 * (Xp - x2*s*X4) and returns SHA-256 of its
// x-coordinate. The result is cached.
func (e *Engine) DeriveSecret() ([]byte, error) {
	if e.failed || !e.peer2 {
		return nil, ErrInvalidState
	}
	if e.secret != nil {
		return copyBytes(e.secret), nil
	}

	xm, err := mulSecret(e.x2, e.s, e.rand)
	if err != nil {
		return nil, err
	}
	k := scalarMult(pointSub(e.Xp, scalarMult(e.X4, xm)), e.x2)
	if k.isInfinity() {
		return nil, ErrInvalidPoint
	}

	xBytes := make([]byte, ScalarSizeBytes)
	k.x.FillBytes(xBytes)
	sum := crypto.SHA256(xBytes)
	e.secret = sum[:]

	return copyBytes(e.secret), nil
}

// fail makes the engine unusable and drops its secrets.
func (e *Engine) fail() {
	e.failed = true
	e.x1, e.x2, e.s = nil, nil, nil
	e.secret = nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
