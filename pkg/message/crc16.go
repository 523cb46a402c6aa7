package message

// CRC-16/CCITT-FALSE parameters. The pump firmware fixes these; they are not
// negotiable.
const (
	// CRC16Polynomial is the CRC-16-CCITT polynomial.
	CRC16Polynomial uint16 = 0x1021

	// CRC16InitialValue is the register preset.
	CRC16InitialValue uint16 = 0xFFFF

	crc16HighBit uint16 = 0x8000
)

// crc16HighByteFirst selects the on-wire order of the two CRC bytes.
//
// The order is an assumption that has not yet been checked against captured
// pump traffic (see "CRC byte order" in DESIGN.md). If captures show the low
// byte first, flip this constant; nothing else depends on the order.
const crc16HighByteFirst = true

// CRC16 computes CRC-16/CCITT-FALSE over data: no input or output
// reflection, no final XOR.
func CRC16(data []byte) uint16 {
	crc := CRC16InitialValue

	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&crc16HighBit != 0 {
				crc = (crc << 1) ^ CRC16Polynomial
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}

func appendCRC16(dst []byte, crc uint16) []byte {
	if crc16HighByteFirst {
		return append(dst, byte(crc>>8), byte(crc))
	}
	return append(dst, byte(crc), byte(crc>>8))
}

func readCRC16(b []byte) uint16 {
	if crc16HighByteFirst {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[1])<<8 | uint16(b[0])
}
