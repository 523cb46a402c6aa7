// Package wire provides the fixed-width little-endian encoding helpers used by
// message cargo layouts.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a read runs past the end of the input.
var ErrShortBuffer = errors.New("wire: short buffer")

// Writer appends little-endian fields to a byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Uint8 appends a single byte.
func (w *Writer) Uint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// Bool appends 1 for true and 0 for false.
func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.Uint8(1)
	}
	return w.Uint8(0)
}

// Uint16 appends a little-endian uint16.
func (w *Writer) Uint16(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

// Uint32 appends a little-endian uint32.
func (w *Writer) Uint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// Bytes appends data as-is.
func (w *Writer) Bytes(data []byte) *Writer {
	w.buf = append(w.buf, data...)
	return w
}

// FixedBytes appends data truncated or zero-padded to exactly n bytes.
func (w *Writer) FixedBytes(data []byte, n int) *Writer {
	w.buf = append(w.buf, fixed(data, n)...)
	return w
}

// FixedString appends s truncated or NUL-padded to exactly n bytes.
func (w *Writer) FixedString(s string, n int) *Writer {
	return w.FixedBytes([]byte(s), n)
}

// Finish returns the encoded bytes.
func (w *Writer) Finish() []byte {
	return w.buf
}

func fixed(data []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, data)
	return out
}

// Reader consumes little-endian fields. The first failure is sticky and
// reported by Err; subsequent reads return zero values.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool reads a byte and reports whether it is non-zero.
func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Bytes reads n bytes and returns a copy.
func (r *Reader) Bytes(n int) []byte {
	b := r.next(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// FixedString reads n bytes and returns them up to the first NUL.
func (r *Reader) FixedString(n int) string {
	b := r.next(n)
	if b == nil {
		return ""
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// Uint32 reads a little-endian uint32 from b[0:4].
func Uint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
