package export

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-jpeg2000"
	"golang.org/x/image/tiff"

	"github.com/mrjoshuak/go-rawrecon/raw"
)

func testImage(w, h int) *raw.RGB16 {
	img := &raw.RGB16{Width: w, Height: h, Pix: make([]uint16, 3*w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := 3 * (y*w + x)
			img.Pix[i] = uint16(x * 65535 / max(w-1, 1))
			img.Pix[i+1] = uint16(y * 65535 / max(h-1, 1))
			img.Pix[i+2] = uint16((x*31 + y*17) * 97 % 65536)
		}
	}
	return img
}

func checkPixels(t *testing.T, want *raw.RGB16, got image.Image) {
	t.Helper()
	if b := got.Bounds(); b.Dx() != want.Width || b.Dy() != want.Height {
		t.Fatalf("bounds = %v, want %dx%d", b, want.Width, want.Height)
	}
	for y := 0; y < want.Height; y++ {
		for x := 0; x < want.Width; x++ {
			r, g, b, _ := got.At(x, y).RGBA()
			wr, wg, wb := want.At(x, y)
			if uint16(r) != wr || uint16(g) != wg || uint16(b) != wb {
				t.Fatalf("(%d, %d) = %d,%d,%d, want %d,%d,%d", x, y, r, g, b, wr, wg, wb)
			}
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"tiff", TIFF},
		{".TIF", TIFF},
		{"png", PNG},
		{"j2k", J2K},
		{"jpeg2000", J2K},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("exr"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(exr) error = %v, want ErrUnknownFormat", err)
	}
	if _, err := FormatFromPath("frame"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("FormatFromPath(frame) error = %v, want ErrUnknownFormat", err)
	}
	if f, err := FormatFromPath("/tmp/out.png"); err != nil || f != PNG {
		t.Errorf("FormatFromPath(out.png) = %v, %v", f, err)
	}
	for _, f := range []Format{TIFF, PNG, J2K} {
		if g, _ := ParseFormat(f.Ext()); g != f {
			t.Errorf("ParseFormat(%v.Ext()) = %v", f, g)
		}
	}
}

func TestEncodeTIFF(t *testing.T) {
	img := testImage(33, 17)
	for _, unc := range []bool{false, true} {
		var buf bytes.Buffer
		if err := Encode(&buf, img, Options{Format: TIFF, Uncompressed: unc}); err != nil {
			t.Fatalf("Encode(uncompressed=%v): %v", unc, err)
		}
		got, err := tiff.Decode(&buf)
		if err != nil {
			t.Fatalf("tiff.Decode: %v", err)
		}
		checkPixels(t, img, got)
	}
}

func TestEncodePNG(t *testing.T) {
	img := testImage(20, 11)
	var buf bytes.Buffer
	if err := Encode(&buf, img, Options{Format: PNG}); err != nil {
		t.Fatal(err)
	}
	got, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	checkPixels(t, img, got)
}

func TestEncodeJ2K(t *testing.T) {
	img := testImage(64, 48)
	var buf bytes.Buffer
	if err := Encode(&buf, img, Options{Format: J2K, Resolutions: 3}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// SOC marker
	if len(data) < 2 || data[0] != 0xff || data[1] != 0x4f {
		t.Fatalf("codestream starts with % x, want ff 4f", data[:min(len(data), 2)])
	}
	got, err := jpeg2000.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := got.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded bounds = %v, want 64x48", b)
	}
}

func TestEncodeErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &raw.RGB16{}, Options{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty image error = %v, want ErrEmptyImage", err)
	}
	short := &raw.RGB16{Width: 4, Height: 4, Pix: make([]uint16, 10)}
	if err := Encode(&buf, short, Options{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("short image error = %v, want ErrEmptyImage", err)
	}
	if err := Encode(&buf, testImage(2, 2), Options{Format: Format(9)}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("bad format error = %v, want ErrUnknownFormat", err)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	img := testImage(16, 8)
	if err := WriteFile(path, img, Options{Format: PNG}); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	checkPixels(t, img, got)

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the output", len(entries))
	}
}

func BenchmarkEncodeTIFF(b *testing.B) {
	img := testImage(1920, 1080)
	var buf bytes.Buffer
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := Encode(&buf, img, Options{Format: TIFF}); err != nil {
			b.Fatal(err)
		}
	}
}
