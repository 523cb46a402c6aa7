package message

import (
	"errors"
	"fmt"
)

// Framing errors.
var (
	// ErrEnvelopeTooLarge is returned when an envelope would reach MaxEnvelopeSize.
	ErrEnvelopeTooLarge = errors.New("message: envelope exceeds maximum size")

	// ErrMissingKey is returned when a signed message is framed without a key.
	ErrMissingKey = errors.New("message: signed message requires an authentication key")

	// ErrMissingTimeSinceReset is returned when a signed message is framed without
	// the device time-since-reset counter.
	ErrMissingTimeSinceReset = errors.New("message: signed message requires time since reset")

	// ErrInsulinActionsDisabled is returned when a message that modifies insulin
	// delivery is framed without the safety interlock enabled.
	ErrInsulinActionsDisabled = errors.New("message: insulin-affecting actions are disabled")

	// ErrCargoLength is returned when encoded cargo does not match the declared size.
	ErrCargoLength = errors.New("message: cargo length does not match declared size")

	// ErrInvalidChunkSize is returned for a chunk size that cannot carry the header.
	ErrInvalidChunkSize = errors.New("message: invalid chunk size")

	// ErrPacketTooShort is returned for a packet without sequence and txId bytes.
	ErrPacketTooShort = errors.New("message: packet too short")

	// ErrHeaderTooShort is returned when the first chunk cannot hold a header.
	ErrHeaderTooShort = errors.New("message: envelope header too short")
)

// Sequencing errors, wrapped in SequenceError.
var (
	ErrTxIDMismatch   = errors.New("message: transaction id mismatch")
	ErrOpcodeMismatch = errors.New("message: unexpected opcode")
	ErrOutOfOrder     = errors.New("message: packet out of order")
	ErrLengthMismatch = errors.New("message: declared length mismatch")
	ErrAlreadyDone    = errors.New("message: reassembly already complete")
)

// Integrity errors, wrapped in IntegrityError.
var (
	ErrCRCMismatch = errors.New("message: CRC16 mismatch")
	ErrMACMismatch = errors.New("message: HMAC mismatch")
	ErrTruncated   = errors.New("message: envelope truncated")
)

// Registry errors.
var (
	// ErrUnknownMessage is returned when no codec is registered for (opcode, channel).
	ErrUnknownMessage = errors.New("message: unknown message")

	// ErrDuplicateMessage is returned when registering an (opcode, channel) twice.
	ErrDuplicateMessage = errors.New("message: duplicate registration")
)

// ErrIncomplete is returned when a result is requested before the final packet.
var ErrIncomplete = errors.New("message: reassembly incomplete")

// SequenceError reports a packet that does not belong to the exchange in progress.
type SequenceError struct {
	Err      error
	Expected int
	Got      int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%v (expected %d, got %d)", e.Err, e.Expected, e.Got)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}

// IntegrityError reports an assembled envelope that failed verification.
type IntegrityError struct {
	Err    error
	Opcode uint8
	TxID   uint8
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v (opcode %d, txId %d)", e.Err, e.Opcode, e.TxID)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsIntegrityError reports whether err is an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsSequenceError reports whether err is a SequenceError.
func IsSequenceError(err error) bool {
	var se *SequenceError
	return errors.As(err, &se)
}
