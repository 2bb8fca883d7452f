// Package rawio reads and writes single raw Bayer frames dumped from a clip.
//
// A frame file starts with a fixed 44-byte little-endian header:
//
//	offset size field
//	0      4    magic "RRF1"
//	4      2    version (1)
//	6      2    flags (bit 0: zstd payload)
//	8      4    width
//	12     4    height
//	16     2    bit depth
//	18     2    reserved
//	20     4    black level (float32)
//	24     4    white level (float32)
//	28     4    CFA pattern code
//	32     4    camera model ID
//	36     8    payload length in bytes
//
// The payload is width*height uint16 samples in row-major order, optionally
// zstd-compressed.
package rawio

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/mrjoshuak/go-rawrecon/raw"
)

const (
	// Magic identifies frame files.
	Magic = "RRF1"

	// Version is the only header version understood.
	Version = 1

	// HeaderSize is the size of the fixed header.
	HeaderSize = 44

	// FlagZstd marks a zstd-compressed payload.
	FlagZstd = 1 << 0

	// MaxDimension bounds width and height when reading.
	MaxDimension = 1 << 14
)

var (
	ErrBadMagic    = errors.New("rawio: not a raw frame file")
	ErrBadVersion  = errors.New("rawio: unsupported frame version")
	ErrBadSize     = errors.New("rawio: invalid frame dimensions")
	ErrPayloadSize = errors.New("rawio: payload size does not match dimensions")
)

// Frame is one raw frame together with the camera it came from.
type Frame struct {
	Plane    *raw.Plane
	CameraID uint32
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(2*MaxDimension*MaxDimension))
)

// Marshal encodes f. Samples are rounded and clamped to the uint16 range.
func Marshal(f *Frame, compress bool) ([]byte, error) {
	p := f.Plane
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.Width * p.Height
	payload := make([]byte, 0, 2*n)
	for _, v := range p.Pix[:n] {
		payload = ByteOrder.AppendUint16(payload, raw.ClampUint16(v))
	}
	var flags uint16
	if compress {
		payload = encoder.EncodeAll(payload, nil)
		flags |= FlagZstd
	}

	w := &writer{buf: make([]byte, 0, HeaderSize+len(payload))}
	w.bytes([]byte(Magic))
	w.uint16(Version)
	w.uint16(flags)
	w.uint32(uint32(p.Width))
	w.uint32(uint32(p.Height))
	w.uint16(uint16(p.BitDepth))
	w.uint16(0)
	w.float32(p.Black)
	w.float32(p.White)
	w.uint32(p.CFA.Code())
	w.uint32(f.CameraID)
	w.uint64(uint64(len(payload)))
	w.bytes(payload)
	return w.buf, nil
}

// Unmarshal decodes a frame file.
func Unmarshal(data []byte) (*Frame, error) {
	r := &reader{data: data}
	magic, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, ErrBadMagic
	}
	version, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	flags, err := r.uint16()
	if err != nil {
		return nil, err
	}
	width, err := r.uint32()
	if err != nil {
		return nil, err
	}
	height, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadSize, width, height)
	}
	depth, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if _, err := r.uint16(); err != nil {
		return nil, err
	}
	black, err := r.float32()
	if err != nil {
		return nil, err
	}
	white, err := r.float32()
	if err != nil {
		return nil, err
	}
	code, err := r.uint32()
	if err != nil {
		return nil, err
	}
	cfa, err := raw.CFAFromCode(code)
	if err != nil {
		return nil, err
	}
	camera, err := r.uint32()
	if err != nil {
		return nil, err
	}
	size, err := r.uint64()
	if err != nil {
		return nil, err
	}
	if size > uint64(len(data)) {
		return nil, ErrShortBuffer
	}
	payload, err := r.bytes(int(size))
	if err != nil {
		return nil, err
	}
	n := int(width) * int(height)
	if flags&FlagZstd != 0 {
		payload, err = decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("rawio: zstd payload: %w", err)
		}
	}
	if len(payload) != 2*n {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrPayloadSize, len(payload), 2*n)
	}

	p := raw.NewPlane(int(width), int(height), cfa)
	p.BitDepth = int(depth)
	p.Black = black
	p.White = white
	for i := range p.Pix {
		p.Pix[i] = float32(ByteOrder.Uint16(payload[2*i:]))
	}
	return &Frame{Plane: p, CameraID: camera}, nil
}

// Read decodes a frame from r.
func Read(r io.Reader) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rawio: read: %w", err)
	}
	return Unmarshal(data)
}

// Write encodes f to w.
func Write(w io.Writer, f *Frame, compress bool) error {
	data, err := Marshal(f, compress)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
