package message

// Packet is one transport write: a chunk of an envelope with its position.
type Packet struct {
	// Remaining is the number of packets that follow this one (low nibble).
	Remaining uint8
	TxID      uint8
	Chunk     []byte
}

// Bytes encodes the packet for the transport.
func (p Packet) Bytes() []byte {
	out := make([]byte, 0, PacketHeaderSize+len(p.Chunk))
	out = append(out, p.Remaining&0x0F, p.TxID)
	return append(out, p.Chunk...)
}

// ParsePacket decodes a packet received from the transport.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < PacketHeaderSize {
		return Packet{}, ErrPacketTooShort
	}
	return Packet{
		Remaining: data[0] & 0x0F,
		TxID:      data[1],
		Chunk:     append([]byte(nil), data[PacketHeaderSize:]...),
	}, nil
}
