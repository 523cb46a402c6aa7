package message

import (
	"bytes"

	"github.com/backkem/pumpx2/pkg/crypto"
	"github.com/backkem/pumpx2/pkg/wire"
)

// IntegrityBypassKey disables CRC and HMAC checks when passed to Verify.
// It exists for replaying captured traffic in tests and must never be used
// with a live pump.
var IntegrityBypassKey = []byte("IGNORE_HMAC_SIGNATURE_EXCEPTION")

// Alternate is a response, other than the expected one, that the device may
// send instead (for example a fault report).
type Alternate struct {
	Opcode      uint8
	CargoLength int
	Signed      bool
}

// Expectation seeds a Reassembly with what the response should look like.
type Expectation struct {
	TxID        uint8
	Opcode      uint8
	CargoLength int
	Signed      bool
	Alternates  []Alternate
}

// Envelope is a verified, decoded envelope.
type Envelope struct {
	Header         Header
	Cargo          []byte
	Signed         bool
	TimeSinceReset uint32
	MAC            []byte
}

// Reassembly accumulates the packets of one response. It is owned by a single
// exchange and discarded once verified or failed.
type Reassembly struct {
	exp Expectation

	started  bool
	done     bool
	header   Header
	signed   bool
	expected int // total envelope bytes
	next     int // sequence the next packet must carry; negative when complete
	buf      []byte
}

// NewReassembly starts a reassembly for exp.
func NewReassembly(exp Expectation) *Reassembly {
	return &Reassembly{exp: exp}
}

// Add consumes one raw packet and reports whether the envelope is complete.
// Errors are sequencing or framing faults; the reassembly should be dropped.
func (r *Reassembly) Add(data []byte) (bool, error) {
	p, err := ParsePacket(data)
	if err != nil {
		return false, err
	}
	if r.done {
		return true, &SequenceError{Err: ErrAlreadyDone, Expected: -1, Got: int(p.Remaining)}
	}
	if p.TxID != r.exp.TxID {
		return false, &SequenceError{Err: ErrTxIDMismatch, Expected: int(r.exp.TxID), Got: int(p.TxID)}
	}

	if !r.started {
		if err := r.start(p); err != nil {
			return false, err
		}
	} else {
		if int(p.Remaining) != r.next {
			return false, &SequenceError{Err: ErrOutOfOrder, Expected: r.next, Got: int(p.Remaining)}
		}
		r.buf = append(r.buf, p.Chunk...)
	}
	r.next = int(p.Remaining) - 1

	if len(r.buf) > r.expected {
		return false, &SequenceError{Err: ErrLengthMismatch, Expected: r.expected, Got: len(r.buf)}
	}
	if r.next < 0 {
		if len(r.buf) != r.expected {
			return false, &SequenceError{Err: ErrLengthMismatch, Expected: r.expected, Got: len(r.buf)}
		}
		r.done = true
	}
	return r.done, nil
}

func (r *Reassembly) start(p Packet) error {
	h, err := DecodeHeader(p.Chunk)
	if err != nil {
		return err
	}

	cargoLen, signed, ok := r.target(h.Opcode)
	if !ok {
		return &SequenceError{Err: ErrOpcodeMismatch, Expected: int(r.exp.Opcode), Got: int(h.Opcode)}
	}

	declared := int(h.Length)
	switch {
	case declared == cargoLen:
	case signed && declared == cargoLen+SignatureSize:
		// Signed responses may count the trailer in the declared length.
	default:
		return &SequenceError{Err: ErrLengthMismatch, Expected: cargoLen, Got: declared}
	}

	r.started = true
	r.header = h
	r.signed = signed
	r.expected = HeaderSize + declared + CRCSize
	r.buf = append(r.buf[:0], p.Chunk...)
	return nil
}

func (r *Reassembly) target(opcode uint8) (int, bool, bool) {
	if opcode == r.exp.Opcode {
		return r.exp.CargoLength, r.exp.Signed, true
	}
	for _, alt := range r.exp.Alternates {
		if alt.Opcode == opcode {
			return alt.CargoLength, alt.Signed, true
		}
	}
	return 0, false, false
}

// Done reports whether the final packet has been received.
func (r *Reassembly) Done() bool {
	return r.done
}

// Header returns the header of the first packet.
func (r *Reassembly) Header() (Header, bool) {
	return r.header, r.started
}

// Verify checks the CRC16 and, for signed envelopes, the HMAC, and returns
// the decoded envelope. It depends only on the accumulated bytes and may be
// called repeatedly.
func (r *Reassembly) Verify(key []byte) (*Envelope, error) {
	if !r.done {
		return nil, ErrIncomplete
	}
	env, err := OpenEnvelope(r.buf, r.signed, key)
	if err != nil {
		return nil, err
	}
	// A signed envelope declaring only the cargo length carries its trailer
	// inside the expected cargo and comes out short.
	if want, _, _ := r.target(env.Header.Opcode); len(env.Cargo) != want {
		return nil, &SequenceError{Err: ErrLengthMismatch, Expected: want, Got: len(env.Cargo)}
	}
	return env, nil
}

// OpenEnvelope verifies and decodes a complete envelope.
func OpenEnvelope(data []byte, signed bool, key []byte) (*Envelope, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data) != HeaderSize+int(h.Length)+CRCSize {
		return nil, &IntegrityError{Err: ErrTruncated, Opcode: h.Opcode, TxID: h.TxID}
	}

	bypass := bytes.Equal(key, IntegrityBypassKey)
	body := data[:len(data)-CRCSize]

	if !bypass && CRC16(body) != readCRC16(data[len(body):]) {
		return nil, &IntegrityError{Err: ErrCRCMismatch, Opcode: h.Opcode, TxID: h.TxID}
	}

	env := &Envelope{Header: h, Signed: signed}
	payload := body[HeaderSize:]

	if !signed {
		env.Cargo = append([]byte(nil), payload...)
		return env, nil
	}

	if len(payload) < SignatureSize {
		return nil, &IntegrityError{Err: ErrTruncated, Opcode: h.Opcode, TxID: h.TxID}
	}
	macOff := len(body) - MACSize
	tsrOff := macOff - TimeSinceResetSize

	if !bypass {
		if len(key) == 0 {
			return nil, ErrMissingKey
		}
		mac := crypto.HMACSHA1(key, body[:macOff])
		if !crypto.HMACEqual(mac[:], body[macOff:]) {
			return nil, &IntegrityError{Err: ErrMACMismatch, Opcode: h.Opcode, TxID: h.TxID}
		}
	}

	env.Cargo = append([]byte(nil), body[HeaderSize:tsrOff]...)
	env.TimeSinceReset = wire.Uint32(body[tsrOff:macOff])
	env.MAC = append([]byte(nil), body[macOff:]...)
	return env, nil
}
