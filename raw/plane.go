// Package raw defines the sensor plane and colour output types shared by the
// reconstruction packages.
package raw

import (
	"errors"
	"fmt"
)

// Errors returned by plane validation.
var (
	ErrEmptyPlane  = errors.New("raw: width and height must be positive")
	ErrShortBuffer = errors.New("raw: sample buffer smaller than width*height")
	ErrInvalidCFA  = errors.New("raw: invalid CFA layout")
	ErrLevels      = errors.New("raw: white level must exceed black level")
)

// Plane is a single-channel Bayer mosaic. Engines borrow it for one call and
// do not keep references to Pix afterwards.
type Plane struct {
	Width    int
	Height   int
	BitDepth int
	Black    float32
	White    float32
	CFA      CFA
	Pix      []float32
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int, cfa CFA) *Plane {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Plane{
		Width:    width,
		Height:   height,
		BitDepth: 14,
		White:    16383,
		CFA:      cfa,
		Pix:      make([]float32, width*height),
	}
}

// Validate checks the dimensions, buffer length and levels.
func (p *Plane) Validate() error {
	if p == nil || p.Width <= 0 || p.Height <= 0 {
		return ErrEmptyPlane
	}
	if len(p.Pix) < p.Width*p.Height {
		return fmt.Errorf("%w: have %d, need %d", ErrShortBuffer, len(p.Pix), p.Width*p.Height)
	}
	if !p.CFA.Valid() {
		return ErrInvalidCFA
	}
	if p.White <= p.Black {
		return fmt.Errorf("%w: black %v, white %v", ErrLevels, p.Black, p.White)
	}
	return nil
}

// At returns the sample at (x, y) with coordinates clamped to the plane.
func (p *Plane) At(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= p.Width {
		x = p.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.Height {
		y = p.Height - 1
	}
	return p.Pix[y*p.Width+x]
}

// Color returns the CFA channel of (x, y).
func (p *Plane) Color(x, y int) int {
	return p.CFA.Color(x, y)
}

// Clone returns a deep copy.
func (p *Plane) Clone() *Plane {
	c := *p
	c.Pix = append([]float32(nil), p.Pix[:p.Width*p.Height]...)
	return &c
}

// Transpose returns a copy with rows and columns swapped. The CFA is
// transposed along with the samples.
func (p *Plane) Transpose() *Plane {
	t := *p
	t.Width, t.Height = p.Height, p.Width
	t.CFA = CFA{p.CFA[0], p.CFA[2], p.CFA[1], p.CFA[3]}
	t.Pix = make([]float32, len(p.Pix[:p.Width*p.Height]))
	for y := 0; y < p.Height; y++ {
		row := p.Pix[y*p.Width : (y+1)*p.Width]
		for x, v := range row {
			t.Pix[x*p.Height+y] = v
		}
	}
	return &t
}

// EvenHeight returns the largest even row count not above Height.
func (p *Plane) EvenHeight() int {
	return p.Height &^ 1
}
