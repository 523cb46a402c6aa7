package message

// Envelope layout sizes.
const (
	// HeaderSize is the envelope header: opcode, txId, declared length.
	HeaderSize = 3

	// CRCSize is the size of the trailing CRC16.
	CRCSize = 2

	// TimeSinceResetSize is the size of the signed time-since-reset counter.
	TimeSinceResetSize = 4

	// MACSize is the size of the HMAC-SHA1 signature.
	MACSize = 20

	// SignatureSize is the trailer appended to signed cargo.
	SignatureSize = TimeSinceResetSize + MACSize

	// MaxEnvelopeSize is the exclusive upper bound on an envelope's length.
	MaxEnvelopeSize = 256

	// PacketHeaderSize is the per-packet prefix: remaining count and txId.
	PacketHeaderSize = 2

	// MaxPackets is the number of packets representable by the 4-bit sequence.
	MaxPackets = 16
)

// Header is the envelope header.
type Header struct {
	Opcode uint8
	TxID   uint8
	// Length is the declared payload length: cargo plus the signature trailer
	// for signed messages.
	Length uint8
}

// AppendTo appends the encoded header to dst.
func (h Header) AppendTo(dst []byte) []byte {
	return append(dst, h.Opcode, h.TxID, h.Length)
}

// DecodeHeader reads a header from the start of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrHeaderTooShort
	}
	return Header{Opcode: data[0], TxID: data[1], Length: data[2]}, nil
}
