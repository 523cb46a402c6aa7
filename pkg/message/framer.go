package message

import (
	"fmt"

	"github.com/backkem/pumpx2/pkg/crypto"
	"github.com/backkem/pumpx2/pkg/wire"
)

// FrameOptions controls how a message is enveloped and chunked.
type FrameOptions struct {
	// Key is the authentication key. Required for signed messages.
	Key []byte

	// TimeSinceReset is the device counter bound into the signature.
	// Required for signed messages.
	TimeSinceReset *uint32

	// MaxChunkSize overrides the channel default. Signed messages always use
	// ControlChunkSize.
	MaxChunkSize int

	// AllowInsulinActions must be set to frame messages that modify insulin
	// delivery.
	AllowInsulinActions bool
}

func (o FrameOptions) chunkSize(m ApplicationMessage) int {
	if m.Signed {
		return ControlChunkSize
	}
	if o.MaxChunkSize > 0 {
		return o.MaxChunkSize
	}
	return m.Channel.MaxChunkSize()
}

// BuildEnvelope encodes m as a complete envelope for txID.
func BuildEnvelope(m ApplicationMessage, txID uint8, opts FrameOptions) ([]byte, error) {
	if m.ModifiesInsulinDelivery && !opts.AllowInsulinActions {
		return nil, ErrInsulinActionsDisabled
	}

	payloadLen := m.PayloadLength()
	if HeaderSize+payloadLen+CRCSize >= MaxEnvelopeSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrEnvelopeTooLarge, HeaderSize+payloadLen+CRCSize)
	}

	buf := make([]byte, 0, HeaderSize+payloadLen+CRCSize)
	buf = Header{Opcode: m.Opcode, TxID: txID, Length: uint8(payloadLen)}.AppendTo(buf)
	buf = append(buf, m.Cargo...)

	if m.Signed {
		if len(opts.Key) == 0 {
			return nil, ErrMissingKey
		}
		if opts.TimeSinceReset == nil {
			return nil, ErrMissingTimeSinceReset
		}
		buf = wire.NewWriter(0).Bytes(buf).Uint32(*opts.TimeSinceReset).Finish()
		mac := crypto.HMACSHA1(opts.Key, buf)
		buf = append(buf, mac[:]...)
	}

	return appendCRC16(buf, CRC16(buf)), nil
}

// Frame envelopes m and splits it into packets no larger than the chunk size.
// Packets are numbered from count-1 down to 0 and share txID.
func Frame(m ApplicationMessage, txID uint8, opts FrameOptions) ([]Packet, error) {
	chunkSize := opts.chunkSize(m)
	if chunkSize < HeaderSize {
		return nil, ErrInvalidChunkSize
	}

	envelope, err := BuildEnvelope(m, txID, opts)
	if err != nil {
		return nil, err
	}

	count := (len(envelope) + chunkSize - 1) / chunkSize
	if count > MaxPackets {
		return nil, fmt.Errorf("%w: %d packets", ErrEnvelopeTooLarge, count)
	}

	packets := make([]Packet, 0, count)
	for i := 0; i < count; i++ {
		end := (i + 1) * chunkSize
		if end > len(envelope) {
			end = len(envelope)
		}
		packets = append(packets, Packet{
			Remaining: uint8(count - 1 - i),
			TxID:      txID,
			Chunk:     envelope[i*chunkSize : end],
		})
	}
	return packets, nil
}
