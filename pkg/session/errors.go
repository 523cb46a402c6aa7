package session

import "errors"

// Session package errors.
var (
	// ErrInvalidPairingCode is returned for a code that is neither 6 digits
	// nor 16 alphanumeric characters.
	ErrInvalidPairingCode = errors.New("session: invalid pairing code")

	// ErrInvalidKind is returned when a handshake kind is not JPAKE or Legacy.
	ErrInvalidKind = errors.New("session: invalid handshake kind")

	// ErrInvalidKey is returned when an authentication key is empty.
	ErrInvalidKey = errors.New("session: invalid authentication key")

	// ErrNotPaired is returned when no pairing record exists.
	ErrNotPaired = errors.New("session: not paired")

	// ErrInvalidRecord is returned when a stored pairing record is inconsistent.
	ErrInvalidRecord = errors.New("session: invalid pairing record")
)
