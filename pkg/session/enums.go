// Package session holds the per-connection protocol context: which handshake
// paired the pump, the authentication key, the device time-since-reset counter
// and the transaction id sequence.
//
// A Session is threaded through framing, the exchange layer and the handshake
// orchestrator; nothing in this module keeps that state globally. Pairing
// records persist across restarts through a PairingStore.
package session

// HandshakeKind identifies how the authentication key was established. It is
// decided once, from the pairing code, when the session is created.
type HandshakeKind int

const (
	// HandshakeUnknown indicates an uninitialized kind.
	HandshakeUnknown HandshakeKind = iota

	// HandshakeJPAKE pairs with a 6-digit code through EC-JPAKE.
	HandshakeJPAKE

	// HandshakeLegacy pairs with a 16-character code through the
	// challenge/response scheme; the code itself is the key.
	HandshakeLegacy
)

// String returns a human-readable name for the kind.
func (k HandshakeKind) String() string {
	switch k {
	case HandshakeJPAKE:
		return "JPAKE"
	case HandshakeLegacy:
		return "Legacy"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the kind is a defined value.
func (k HandshakeKind) IsValid() bool {
	return k == HandshakeJPAKE || k == HandshakeLegacy
}
