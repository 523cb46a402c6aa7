// Package crypto provides the cryptographic primitives used by the pump protocol:
// SHA-1 and SHA-256 digests, HMAC over both, HKDF-SHA256 and a secure random source.
package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// Digest sizes.
const (
	// SHA1LenBytes is the SHA-1 output length in bytes.
	SHA1LenBytes = 20

	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = 32
)

// SHA1 computes the SHA-1 digest of a message.
// SHA-1 is only used as the HMAC hash of the message envelope.
func SHA1(message []byte) [SHA1LenBytes]byte {
	return sha1.Sum(message)
}

// SHA256 computes the SHA-256 digest of a message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// SHA256Slice computes the SHA-256 digest and returns it as a slice.
func SHA256Slice(message []byte) []byte {
	h := sha256.Sum256(message)
	return h[:]
}

// NewSHA256 returns a new hash.Hash for computing SHA-256 digests incrementally.
//
// Usage:
//
//	h := crypto.NewSHA256()
//	h.Write(part1)
//	h.Write(part2)
//	digest := h.Sum(nil)
func NewSHA256() hash.Hash {
	return sha256.New()
}
