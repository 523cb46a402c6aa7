package handshake

import "fmt"

// State is the position of the EC-JPAKE orchestrator. States only move
// forward; INVALID is reached only from a confirmation mismatch.
type State int

const (
	StateBootstrap State = iota
	StateRound1ASent
	StateRound1AReceived
	StateRound1BSent
	StateRound1BReceived
	StateRound2Sent
	StateRound2Received
	StateConfirmInitial
	StateSessionKeySent
	StateSessionKeyReceived
	StateConfirmSent
	StateConfirmReceived
	StateComplete
	StateInvalid
)

var stateNames = [...]string{
	StateBootstrap:          "BOOTSTRAP",
	StateRound1ASent:        "ROUND1A_SENT",
	StateRound1AReceived:    "ROUND1A_RECEIVED",
	StateRound1BSent:        "ROUND1B_SENT",
	StateRound1BReceived:    "ROUND1B_RECEIVED",
	StateRound2Sent:         "ROUND2_SENT",
	StateRound2Received:     "ROUND2_RECEIVED",
	StateConfirmInitial:     "CONFIRM_INITIAL",
	StateSessionKeySent:     "SESSION_KEY_SENT",
	StateSessionKeyReceived: "SESSION_KEY_RECEIVED",
	StateConfirmSent:        "CONFIRM_SENT",
	StateConfirmReceived:    "CONFIRM_RECEIVED",
	StateComplete:           "COMPLETE",
	StateInvalid:            "INVALID",
}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsTerminal reports whether no further step is possible.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateInvalid
}
