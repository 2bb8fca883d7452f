package raw

import (
	"fmt"
	"strings"
)

// Colour channel indices used across the engine.
const (
	Red   = 0
	Green = 1
	Blue  = 2
)

// CFA describes a 2x2 Bayer colour filter layout. Entry i holds the channel of
// the photosite at (i&1, i>>1) inside the repeating quad.
type CFA [4]uint8

// Common Bayer layouts.
var (
	RGGB = CFA{Red, Green, Green, Blue}
	GRBG = CFA{Green, Red, Blue, Green}
	GBRG = CFA{Green, Blue, Red, Green}
	BGGR = CFA{Blue, Green, Green, Red}
)

// Color returns the channel of the photosite at (x, y).
func (c CFA) Color(x, y int) int {
	return int(c[(y&1)<<1|(x&1)])
}

// IsGreen reports whether the photosite at (x, y) is green.
func (c CFA) IsGreen(x, y int) bool {
	return c.Color(x, y) == Green
}

// Shift returns the layout seen by an image whose origin is moved by (dx, dy).
func (c CFA) Shift(dx, dy int) CFA {
	var s CFA
	for i := 0; i < 4; i++ {
		x, y := i&1, i>>1
		s[i] = uint8(c.Color(x+dx, y+dy))
	}
	return s
}

// Valid reports whether the layout is a Bayer pattern: two diagonal greens
// and one red and one blue.
func (c CFA) Valid() bool {
	var n [3]int
	for _, v := range c {
		if v > Blue {
			return false
		}
		n[v]++
	}
	if n[Red] != 1 || n[Green] != 2 || n[Blue] != 1 {
		return false
	}
	return c[0] == c[3] || c[1] == c[2]
}

// Code packs the layout into the 32-bit pattern code used by raw video
// containers, one byte per quad position starting at the low byte.
func (c CFA) Code() uint32 {
	return uint32(c[0]) | uint32(c[1])<<8 | uint32(c[2])<<16 | uint32(c[3])<<24
}

// CFAFromCode unpacks a 32-bit pattern code.
func CFAFromCode(code uint32) (CFA, error) {
	c := CFA{uint8(code), uint8(code >> 8), uint8(code >> 16), uint8(code >> 24)}
	if !c.Valid() {
		return CFA{}, fmt.Errorf("%w: code 0x%08x", ErrInvalidCFA, code)
	}
	return c, nil
}

// ParseCFA parses names such as "RGGB" or "gbrg".
func ParseCFA(s string) (CFA, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 4 {
		return CFA{}, fmt.Errorf("%w: %q", ErrInvalidCFA, s)
	}
	var c CFA
	for i := 0; i < 4; i++ {
		switch s[i] {
		case 'R':
			c[i] = Red
		case 'G':
			c[i] = Green
		case 'B':
			c[i] = Blue
		default:
			return CFA{}, fmt.Errorf("%w: %q", ErrInvalidCFA, s)
		}
	}
	if !c.Valid() {
		return CFA{}, fmt.Errorf("%w: %q", ErrInvalidCFA, s)
	}
	return c, nil
}

func (c CFA) String() string {
	const names = "RGB"
	var b [4]byte
	for i, v := range c {
		if v > Blue {
			return fmt.Sprintf("CFA(0x%08x)", c.Code())
		}
		b[i] = names[v]
	}
	return string(b[:])
}
