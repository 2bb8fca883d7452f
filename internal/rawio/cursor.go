package rawio

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read or write would run past the end
	// of the buffer.
	ErrShortBuffer = errors.New("rawio: buffer too short")
)

// ByteOrder is the byte order of every multi-byte field in a frame file.
var ByteOrder = binary.LittleEndian

// reader is a bounds-checked cursor over a byte slice.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) bool { return r.pos+n <= len(r.data) }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || !r.need(n) {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint64(b), nil
}

func (r *reader) float32() (float32, error) {
	v, err := r.uint32()
	return math.Float32frombits(v), err
}

// writer appends little-endian fields to a growing buffer.
type writer struct {
	buf []byte
}

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) uint16(v uint16) { w.buf = ByteOrder.AppendUint16(w.buf, v) }

func (w *writer) uint32(v uint32) { w.buf = ByteOrder.AppendUint32(w.buf, v) }

func (w *writer) uint64(v uint64) { w.buf = ByteOrder.AppendUint64(w.buf, v) }

func (w *writer) float32(v float32) { w.uint32(math.Float32bits(v)) }
