package pump

// ClientState represents the lifecycle state of a Client.
type ClientState int

const (
	// ClientStateUnpaired means no key is installed.
	ClientStateUnpaired ClientState = iota

	// ClientStatePairing means a handshake is in progress.
	ClientStatePairing

	// ClientStateAuthenticated means requests can be signed.
	ClientStateAuthenticated

	// ClientStateFailed means the last handshake failed. Pair may be retried.
	ClientStateFailed

	// ClientStateClosed means the client has been shut down.
	ClientStateClosed
)

// String returns a human-readable name for the state.
func (s ClientState) String() string {
	switch s {
	case ClientStateUnpaired:
		return "Unpaired"
	case ClientStatePairing:
		return "Pairing"
	case ClientStateAuthenticated:
		return "Authenticated"
	case ClientStateFailed:
		return "Failed"
	case ClientStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// CanPair returns true if Pair or Resume can be called in this state.
func (s ClientState) CanPair() bool {
	return s != ClientStatePairing && s != ClientStateClosed
}
