package handshake

import "errors"

// Handshake errors.
var (
	// ErrConfirmationMismatch is returned when the pump's key confirmation
	// does not match the locally derived key. The handshake moves to INVALID.
	ErrConfirmationMismatch = errors.New("handshake: key confirmation mismatch")

	// ErrAborted is returned when the handshake is cancelled or failed
	// earlier. Partial secrets are discarded.
	ErrAborted = errors.New("handshake: aborted")

	// ErrUnexpectedResponse is returned when the pump answers with a message
	// the current step does not accept.
	ErrUnexpectedResponse = errors.New("handshake: unexpected response")

	// ErrPairingRejected is returned when the pump refuses the legacy
	// challenge response.
	ErrPairingRejected = errors.New("handshake: pairing rejected by pump")

	// ErrNoStoredSecret is returned when resuming without a derived secret.
	ErrNoStoredSecret = errors.New("handshake: no stored secret to resume from")

	// ErrWrongKind is returned when the session's handshake kind does not
	// match the handshake being run.
	ErrWrongKind = errors.New("handshake: wrong handshake kind for session")

	// ErrTerminal is returned when stepping a finished handshake.
	ErrTerminal = errors.New("handshake: already finished")
)
