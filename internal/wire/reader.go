package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reader is a bounds-checked cursor over an immutable tagged buffer.
// Every read fails cleanly on truncation; the cursor never moves past
// the end of the buffer.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) Len() int {
	return len(r.data)
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// IsFinished reports whether the cursor has consumed the whole buffer.
func (r *Reader) IsFinished() bool {
	return r.off == len(r.data)
}

func (r *Reader) ReadUint8() (uint8, error) {
	if r.off >= len(r.data) {
		return 0, fmt.Errorf("%w: need 1 byte at offset %d", ErrTruncated, r.off)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// ReadVarUint consumes an unsigned varint, capped at 10 bytes.
func (r *Reader) ReadVarUint() (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		if i == 9 && b > 1 {
			return 0, ErrVarintOverflow
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
	return 0, ErrVarintOverflow
}

// ReadVarInt consumes a zigzag-encoded signed varint.
func (r *Reader) ReadVarInt() (int64, error) {
	u, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	raw, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
}

// ReadString consumes a varuint length prefix and the raw bytes after it.
func (r *Reader) ReadString() (string, error) {
	raw, err := r.readPrefixed()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	raw, err := r.readPrefixed()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (r *Reader) readPrefixed() ([]byte, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: declared %d bytes, %d remain", ErrLengthOverrun, n, r.Remaining())
	}
	return r.ReadRaw(int(n))
}

// ReadRaw consumes exactly n bytes, returning a view into the buffer.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if n > r.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, n, r.off)
	}
	raw := r.data[r.off : r.off+n]
	r.off += n
	return raw, nil
}
