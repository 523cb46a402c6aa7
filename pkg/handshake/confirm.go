package handshake

import (
	"github.com/backkem/pumpx2/pkg/crypto"
)

// AuthenticationKeySize is the size of the key derived from an EC-JPAKE secret.
const AuthenticationKeySize = 32

// ConfirmationKey derives the session authentication key from the EC-JPAKE
// shared secret, salted with the pump's nonce.
func ConfirmationKey(secret, serverNonce []byte) ([]byte, error) {
	return crypto.HKDFSHA256(secret, serverNonce, nil, AuthenticationKeySize)
}

// ConfirmationMAC is the digest each side sends over its own nonce.
func ConfirmationMAC(key, nonce []byte) [crypto.SHA256LenBytes]byte {
	return crypto.HMACSHA256(key, nonce)
}

// VerifyConfirmation checks a peer digest in constant time.
func VerifyConfirmation(key, nonce, digest []byte) bool {
	mac := ConfirmationMAC(key, nonce)
	return crypto.HMACEqual(mac[:], digest)
}
