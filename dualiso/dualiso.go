// Package dualiso fuses dual-ISO frames, in which pairs of sensor rows
// alternate between two analog gains, into a single frame with the dynamic
// range of both exposures.
//
// Processing runs as a fixed sequence of stages:
//
//	DetectCFAPhase -> DetectInterlace -> DetectWhiteLevels -> MatchExposures
//	  -> Interpolate -> FullresReconstruct -> MixImages -> BuildAliasMap
//	  -> FinalBlend -> Downconvert
//
// Any of the first four stages may reject the frame. The caller then keeps
// the unmodified plane and renders it as a normal single-exposure frame.
package dualiso

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

var (
	ErrNoInterlace           = errors.New("dualiso: no interlaced exposures found")
	ErrInconsistentInterlace = errors.New("dualiso: inconsistent interlace pattern")
	ErrWhiteLevel            = errors.New("dualiso: cannot estimate white levels")
	ErrExposureMatch         = errors.New("dualiso: cannot match exposures")
)

// Interp selects how the rows missing from each exposure are rebuilt.
type Interp uint8

const (
	// EdgeDirected searches diagonal directions where accuracy matters and
	// interpolates vertically elsewhere.
	EdgeDirected Interp = iota

	// Mean23 averages the two (red, blue) or three (green) nearest samples.
	Mean23
)

func (m Interp) String() string {
	switch m {
	case EdgeDirected:
		return "edge"
	case Mean23:
		return "mean23"
	}
	return fmt.Sprintf("Interp(%d)", m)
}

// ParseInterp parses "edge" or "mean23".
func ParseInterp(s string) (Interp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edge", "edge-directed", "amaze-edge":
		return EdgeDirected, nil
	case "mean23", "mean":
		return Mean23, nil
	}
	return 0, fmt.Errorf("dualiso: unknown interpolation %q", s)
}

// Chroma selects the chroma smoothing window.
type Chroma uint8

const (
	ChromaOff Chroma = iota
	Chroma2x2
	Chroma3x3
	Chroma5x5
)

func (c Chroma) String() string {
	switch c {
	case ChromaOff:
		return "off"
	case Chroma2x2:
		return "2x2"
	case Chroma3x3:
		return "3x3"
	case Chroma5x5:
		return "5x5"
	}
	return fmt.Sprintf("Chroma(%d)", c)
}

// ChromaFromSize maps a window size of 0, 2, 3 or 5 to a Chroma.
func ChromaFromSize(n int) (Chroma, error) {
	switch n {
	case 0:
		return ChromaOff, nil
	case 2:
		return Chroma2x2, nil
	case 3:
		return Chroma3x3, nil
	case 5:
		return Chroma5x5, nil
	}
	return 0, fmt.Errorf("dualiso: unsupported chroma smoothing size %d", n)
}

// AliasMapMax is the alias map value meaning "trust only the half
// resolution image".
const AliasMapMax = 8192

// AliasMap holds, per pixel, how strongly full resolution detail is
// suspected of aliasing, from 0 to AliasMapMax.
type AliasMap []uint16

// Options configures Process.
type Options struct {
	Interp   Interp
	AliasMap bool
	FullRes  bool
	Chroma   Chroma

	// LUT is an EV table for black level 0. Process builds one when nil.
	LUT *evlut.Table

	// Seed seeds the dither noise of the final conversion.
	Seed int64

	Parallel parallel.Config
}

// Interlace describes the exposure layout of a frame and how the two
// exposures relate. Levels are in raw units of the input plane.
type Interlace struct {
	CFA raw.CFA

	// Bright[k] is set when rows with y%4 == k carry the high ISO exposure.
	Bright [4]bool

	BrightBlack, DarkBlack float32
	BrightWhite, DarkWhite float32

	// Gain and Offset map black-subtracted dark samples onto the bright
	// exposure: bright = Gain*dark + Offset.
	Gain, Offset float64
}

// IsBright reports whether row y belongs to the bright exposure.
func (il *Interlace) IsBright(y int) bool {
	return il.Bright[y&3]
}

// GainEV returns the ISO difference in EV.
func (il *Interlace) GainEV() float64 {
	return log2(il.Gain)
}

func (il *Interlace) String() string {
	var b strings.Builder
	for _, br := range il.Bright {
		if br {
			b.WriteByte('B')
		} else {
			b.WriteByte('d')
		}
	}
	return fmt.Sprintf("%v %s gain %.3f (%.2f EV) offset %.1f white %.0f/%.0f",
		il.CFA, b.String(), il.Gain, il.GainEV(), il.Offset, il.BrightWhite, il.DarkWhite)
}

// Analyze runs the detection stages on p without modifying it.
func Analyze(p *raw.Plane) (*Interlace, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	il := &Interlace{
		CFA:         detectCFAPhase(p),
		BrightBlack: p.Black,
		DarkBlack:   p.Black,
	}
	if il.CFA != p.CFA {
		monitoring.Logf("dualiso: CFA phase looks like %v, plane says %v", il.CFA, p.CFA)
	}
	bright, err := detectInterlace(p, il.CFA)
	if err != nil {
		return nil, err
	}
	il.Bright = bright
	if err := detectWhiteLevels(p, il); err != nil {
		return nil, err
	}
	if err := matchExposures(p, il); err != nil {
		return nil, err
	}
	monitoring.Logf("dualiso: %v", il)
	return il, nil
}

// Process fuses the dual-ISO frame p in place. On success p holds 16-bit
// samples with updated black and white levels; on failure p is unchanged
// and the error wraps one of the detection errors.
func Process(p *raw.Plane, opts Options) error {
	il, err := Analyze(p)
	if err != nil {
		return err
	}
	lut := opts.LUT
	if lut == nil {
		lut = evlut.Build(0)
	}
	f := newFusion(p, il, lut, opts)
	f.interpolate()
	f.fullresReconstruct()
	f.mixImages()
	f.chromaSmooth()
	f.buildAliasMap()
	f.finalBlend()
	f.downconvert()
	return nil
}
