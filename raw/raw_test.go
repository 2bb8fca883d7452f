package raw

import (
	"errors"
	"testing"
)

func TestCFAColor(t *testing.T) {
	tests := []struct {
		cfa  CFA
		x, y int
		want int
	}{
		{RGGB, 0, 0, Red},
		{RGGB, 1, 0, Green},
		{RGGB, 0, 1, Green},
		{RGGB, 1, 1, Blue},
		{RGGB, 4, 6, Red},
		{GBRG, 0, 0, Green},
		{GBRG, 1, 0, Blue},
		{GBRG, 0, 1, Red},
		{BGGR, 3, 3, Red},
	}
	for _, tt := range tests {
		if got := tt.cfa.Color(tt.x, tt.y); got != tt.want {
			t.Errorf("%v.Color(%d, %d) = %d, want %d", tt.cfa, tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCFAShift(t *testing.T) {
	if got := RGGB.Shift(0, 1); got != GBRG {
		t.Errorf("RGGB.Shift(0, 1) = %v, want GBRG", got)
	}
	if got := RGGB.Shift(1, 0); got != GRBG {
		t.Errorf("RGGB.Shift(1, 0) = %v, want GRBG", got)
	}
	if got := RGGB.Shift(1, 1); got != BGGR {
		t.Errorf("RGGB.Shift(1, 1) = %v, want BGGR", got)
	}
}

func TestCFACode(t *testing.T) {
	if got := RGGB.Code(); got != 0x02010100 {
		t.Errorf("RGGB.Code() = 0x%08x, want 0x02010100", got)
	}
	c, err := CFAFromCode(0x02010100)
	if err != nil || c != RGGB {
		t.Errorf("CFAFromCode(0x02010100) = %v, %v; want RGGB", c, err)
	}
	if _, err := CFAFromCode(0x02020100); !errors.Is(err, ErrInvalidCFA) {
		t.Errorf("CFAFromCode(bad) error = %v, want ErrInvalidCFA", err)
	}
}

func TestParseCFA(t *testing.T) {
	for _, s := range []string{"RGGB", "grbg", " GBRG", "BGGR"} {
		c, err := ParseCFA(s)
		if err != nil {
			t.Errorf("ParseCFA(%q) error: %v", s, err)
			continue
		}
		if !c.Valid() {
			t.Errorf("ParseCFA(%q) = %v, not valid", s, c)
		}
	}
	for _, s := range []string{"RGB", "RRGB", "RGBG", "XYZW"} {
		if _, err := ParseCFA(s); err == nil {
			t.Errorf("ParseCFA(%q) succeeded, want error", s)
		}
	}
}

func TestPlaneValidate(t *testing.T) {
	p := NewPlane(4, 4, RGGB)
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if err := NewPlane(0, 4, RGGB).Validate(); !errors.Is(err, ErrEmptyPlane) {
		t.Errorf("zero width Validate() = %v, want ErrEmptyPlane", err)
	}
	short := NewPlane(4, 4, RGGB)
	short.Pix = short.Pix[:10]
	if err := short.Validate(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short Validate() = %v, want ErrShortBuffer", err)
	}
	lv := NewPlane(4, 4, RGGB)
	lv.Black = 20000
	if err := lv.Validate(); !errors.Is(err, ErrLevels) {
		t.Errorf("levels Validate() = %v, want ErrLevels", err)
	}
}

func TestPlaneTranspose(t *testing.T) {
	p := NewPlane(3, 2, RGGB)
	for i := range p.Pix {
		p.Pix[i] = float32(i)
	}
	tp := p.Transpose()
	if tp.Width != 2 || tp.Height != 3 {
		t.Fatalf("Transpose size = %dx%d, want 2x3", tp.Width, tp.Height)
	}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			if got, want := tp.Pix[x*tp.Width+y], p.Pix[y*p.Width+x]; got != want {
				t.Errorf("transposed (%d,%d) = %v, want %v", y, x, got, want)
			}
			if got, want := tp.Color(y, x), p.Color(x, y); got != want {
				t.Errorf("transposed colour (%d,%d) = %d, want %d", y, x, got, want)
			}
		}
	}
}

func TestClampUint16(t *testing.T) {
	tests := []struct {
		in   float32
		want uint16
	}{
		{-5, 0},
		{0, 0},
		{8191.6, 8192},
		{65535, 65535},
		{70000, 65535},
	}
	for _, tt := range tests {
		if got := ClampUint16(tt.in); got != tt.want {
			t.Errorf("ClampUint16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRGB16Image(t *testing.T) {
	img := &RGB16{Width: 2, Height: 1, Pix: []uint16{1, 2, 3, 4, 5, 6}}
	out := img.Image()
	c := out.RGBA64At(1, 0)
	if c.R != 4 || c.G != 5 || c.B != 6 || c.A != 0xffff {
		t.Errorf("RGBA64At(1,0) = %+v, want {4 5 6 65535}", c)
	}
}
