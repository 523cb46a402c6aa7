package ecjpake

import (
	"bytes"
	"math/big"
)

// ecParameters is the TLS ECParameters structure for named_curve secp256r1.
var ecParameters = []byte{0x03, 0x00, 0x17}

// reader is a cursor over a peer payload.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = ErrInvalidEncoding
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

// readPoint reads a length-prefixed uncompressed point.
func (r *reader) readPoint() *point {
	l := r.next(1)
	if l == nil {
		return nil
	}
	if int(l[0]) != PointSizeBytes {
		r.err = ErrInvalidEncoding
		return nil
	}
	data := r.next(PointSizeBytes)
	if data == nil {
		return nil
	}
	p, err := decodePoint(data)
	if err != nil {
		r.err = err
		return nil
	}
	return p
}

// readProof reads V followed by a length-prefixed r.
func (r *reader) readProof() *zkp {
	v := r.readPoint()
	if v == nil {
		return nil
	}
	l := r.next(1)
	if l == nil {
		return nil
	}
	if l[0] == 0 || int(l[0]) > ScalarSizeBytes {
		r.err = ErrInvalidEncoding
		return nil
	}
	data := r.next(int(l[0]))
	if data == nil {
		return nil
	}
	return &zkp{v: v, r: new(big.Int).SetBytes(data)}
}

func (r *reader) readECParameters() {
	data := r.next(len(ecParameters))
	if data == nil {
		return
	}
	if !bytes.Equal(data, ecParameters) {
		r.err = ErrUnsupportedCurve
	}
}

func appendPoint(dst []byte, p *point) []byte {
	dst = append(dst, byte(PointSizeBytes))
	return append(dst, encodePoint(p)...)
}

// appendProof always writes r as a full 32-byte scalar so payload sizes are fixed.
func appendProof(dst []byte, proof *zkp) []byte {
	dst = appendPoint(dst, proof.v)
	dst = append(dst, byte(ScalarSizeBytes))
	return append(dst, scalarBytes(proof.r)...)
}
