package rawio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-rawrecon/raw"
)

func testFrame() *Frame {
	p := raw.NewPlane(6, 4, raw.GBRG)
	p.BitDepth = 14
	p.Black = 2047
	p.White = 15000
	for i := range p.Pix {
		p.Pix[i] = float32(2047 + 37*i)
	}
	return &Frame{Plane: p, CameraID: 0x80000285}
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		f := testFrame()
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, compress))
		if !compress {
			assert.Equal(t, HeaderSize+2*6*4, buf.Len())
		}

		got, err := Read(&buf)
		require.NoError(t, err)
		assert.Equal(t, f.CameraID, got.CameraID)
		assert.Equal(t, f.Plane.Width, got.Plane.Width)
		assert.Equal(t, f.Plane.Height, got.Plane.Height)
		assert.Equal(t, f.Plane.BitDepth, got.Plane.BitDepth)
		assert.Equal(t, f.Plane.Black, got.Plane.Black)
		assert.Equal(t, f.Plane.White, got.Plane.White)
		assert.Equal(t, f.Plane.CFA, got.Plane.CFA)
		assert.Equal(t, f.Plane.Pix, got.Plane.Pix)
	}
}

func TestMarshalClampsSamples(t *testing.T) {
	f := testFrame()
	f.Plane.Pix[0] = -4
	f.Plane.Pix[1] = 1e6
	data, err := Marshal(f, false)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, float32(0), got.Plane.Pix[0])
	assert.Equal(t, float32(65535), got.Plane.Pix[1])
}

func TestUnmarshalErrors(t *testing.T) {
	good, err := Marshal(testFrame(), false)
	require.NoError(t, err)

	badMagic := append([]byte(nil), good...)
	copy(badMagic, "XXXX")
	_, err = Unmarshal(badMagic)
	assert.ErrorIs(t, err, ErrBadMagic)

	badVersion := append([]byte(nil), good...)
	ByteOrder.PutUint16(badVersion[4:], 9)
	_, err = Unmarshal(badVersion)
	assert.ErrorIs(t, err, ErrBadVersion)

	zeroWidth := append([]byte(nil), good...)
	ByteOrder.PutUint32(zeroWidth[8:], 0)
	_, err = Unmarshal(zeroWidth)
	assert.ErrorIs(t, err, ErrBadSize)

	badCFA := append([]byte(nil), good...)
	ByteOrder.PutUint32(badCFA[28:], 0x02020202)
	_, err = Unmarshal(badCFA)
	assert.ErrorIs(t, err, raw.ErrInvalidCFA)

	_, err = Unmarshal(good[:HeaderSize+3])
	assert.ErrorIs(t, err, ErrShortBuffer)

	wrongPayload := append([]byte(nil), good...)
	ByteOrder.PutUint64(wrongPayload[36:], 2)
	_, err = Unmarshal(wrongPayload)
	assert.ErrorIs(t, err, ErrPayloadSize)
}

func TestMarshalRejectsEmptyPlane(t *testing.T) {
	_, err := Marshal(&Frame{Plane: raw.NewPlane(0, 0, raw.RGGB)}, false)
	if !errors.Is(err, raw.ErrEmptyPlane) {
		t.Errorf("Marshal(empty) error = %v, want ErrEmptyPlane", err)
	}
}

func FuzzUnmarshal(f *testing.F) {
	good, _ := Marshal(testFrame(), false)
	packed, _ := Marshal(testFrame(), true)
	f.Add(good)
	f.Add(packed)
	f.Add([]byte{})
	f.Add([]byte("RRF1"))
	f.Add(good[:HeaderSize])

	f.Fuzz(func(t *testing.T, data []byte) {
		fr, err := Unmarshal(data)
		if err != nil {
			return
		}
		p := fr.Plane
		if len(p.Pix) != p.Width*p.Height {
			t.Errorf("decoded %d samples for %dx%d", len(p.Pix), p.Width, p.Height)
		}
	})
}
