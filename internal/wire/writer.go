package wire

import (
	"encoding/binary"
	"math"
)

// Writer is a growable append buffer for the tagged format.
// Multi-byte fixed-width values are big-endian; variable-width integers
// use MSB-continuation varints with zigzag for signed values.
type Writer struct {
	data []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{data: make([]byte, 0, capacity)}
}

// Bytes returns the accumulated encoded bytes.
func (w *Writer) Bytes() []byte {
	return w.data
}

func (w *Writer) Len() int {
	return len(w.data)
}

// Reset clears the buffer for reuse.
func (w *Writer) Reset() {
	w.data = w.data[:0]
}

// grow ensures room for n additional bytes, returning the write offset.
func (w *Writer) grow(n int) int {
	off := len(w.data)
	need := off + n
	if need <= cap(w.data) {
		w.data = w.data[:need]
		return off
	}
	newCap := cap(w.data) * 2
	if newCap < need {
		newCap = need
	}
	tmp := make([]byte, need, newCap)
	copy(tmp, w.data)
	w.data = tmp
	return off
}

func (w *Writer) WriteUint8(v uint8) {
	off := w.grow(1)
	w.data[off] = v
}

// WriteVarUint appends an unsigned varint (7 bits per byte, MSB continuation).
func (w *Writer) WriteVarUint(v uint64) {
	for v >= 0x80 {
		w.WriteUint8(byte(v) | 0x80)
		v >>= 7
	}
	w.WriteUint8(byte(v))
}

// WriteVarInt appends a signed varint using zigzag encoding.
func (w *Writer) WriteVarInt(v int64) {
	w.WriteVarUint(uint64(v<<1) ^ uint64(v>>63))
}

func (w *Writer) WriteFloat64(v float64) {
	off := w.grow(8)
	binary.BigEndian.PutUint64(w.data[off:], math.Float64bits(v))
}

// WriteString appends a varuint length prefix followed by the raw bytes.
func (w *Writer) WriteString(s string) {
	w.WriteVarUint(uint64(len(s)))
	off := w.grow(len(s))
	copy(w.data[off:], s)
}

func (w *Writer) WriteBytes(p []byte) {
	w.WriteVarUint(uint64(len(p)))
	off := w.grow(len(p))
	copy(w.data[off:], p)
}

// WriteRaw appends bytes with no prefix.
func (w *Writer) WriteRaw(p []byte) {
	off := w.grow(len(p))
	copy(w.data[off:], p)
}
