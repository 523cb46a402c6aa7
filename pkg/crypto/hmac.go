package crypto

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// HMACSHA1 computes the HMAC-SHA1 of a message using the given key.
// This is the message authentication code carried by signed envelopes and
// the legacy challenge response.
func HMACSHA1(key, message []byte) [SHA1LenBytes]byte {
	h := hmac.New(sha1.New, key)
	h.Write(message)
	var result [SHA1LenBytes]byte
	copy(result[:], h.Sum(nil))
	return result
}

// NewHMACSHA1 returns a new hash.Hash for computing HMAC-SHA1 incrementally.
func NewHMACSHA1(key []byte) hash.Hash {
	return hmac.New(sha1.New, key)
}

// HMACSHA256 computes the HMAC-SHA256 of a message using the given key.
// Used for EC-JPAKE key confirmation.
func HMACSHA256(key, message []byte) [SHA256LenBytes]byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	var result [SHA256LenBytes]byte
	copy(result[:], h.Sum(nil))
	return result
}

// HMACSHA256Slice computes the HMAC-SHA256 and returns it as a slice.
func HMACSHA256Slice(key, message []byte) []byte {
	h := HMACSHA256(key, message)
	return h[:]
}

// HMACEqual compares two MACs for equality in constant time.
// This should be used instead of bytes.Equal to prevent timing attacks.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}
