// Package demosaic converts single-channel Bayer mosaics into three colour
// planes.
//
// Every algorithm satisfies the Demosaicer interface and is selected through
// the Algorithm enum. A Context owns the lookup tables and scratch memory the
// engines share and can be reused across frames and goroutines.
//
// Results never depend on the worker count: tiled engines (AMaZE, RCD) use a
// tile grid anchored at the image origin and hand whole tile rows to workers,
// and the other engines run each pass over phase-aligned row chunks with a
// join between passes.
package demosaic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// Algorithm selects a demosaic engine.
type Algorithm int

const (
	None Algorithm = iota
	Simple
	Bilinear
	AMaZE
	RCD
	LMMSE
	AHD
	IGV
)

var algorithmNames = [...]string{
	None:     "none",
	Simple:   "simple",
	Bilinear: "bilinear",
	AMaZE:    "amaze",
	RCD:      "rcd",
	LMMSE:    "lmmse",
	AHD:      "ahd",
	IGV:      "igv",
}

func (a Algorithm) String() string {
	if a >= 0 && int(a) < len(algorithmNames) {
		return algorithmNames[a]
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps a name such as "amaze" or "LMMSE" to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range algorithmNames {
		if name == s {
			return Algorithm(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(algorithmNames))
	for i := range out {
		out[i] = Algorithm(i)
	}
	return out
}

var (
	ErrUnknownAlgorithm = errors.New("demosaic: unknown algorithm")
)

// Input is the read-only view of a mosaic handed to an engine.
type Input struct {
	Width, Height int
	CFA           raw.CFA
	Black, White  float32
	Pix           []float32
}

// at returns the sample at (x, y), reflecting out-of-range coordinates about
// the image edges so the CFA colour is preserved.
func (in *Input) at(x, y int) float32 {
	return in.Pix[mirror(y, in.Height)*in.Width+mirror(x, in.Width)]
}

// blackBelow returns the black level clamped to [0, white). Engines that
// work in a perceptual domain subtract it before the curve.
func (in *Input) blackBelow(white float32) float32 {
	if in.Black <= 0 || in.Black >= white {
		return 0
	}
	return in.Black
}

// Demosaicer is implemented by every engine.
type Demosaicer interface {
	// Demosaic fills out, which has the input's size, using cfg for
	// worker scheduling.
	Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error
}

// Reconstruct demosaics p with alg using a process-wide default Context.
func Reconstruct(p *raw.Plane, alg Algorithm, threads int) (*raw.ColorPlanes, error) {
	return defaultContext().Reconstruct(p, alg, threads)
}

// Reconstruct demosaics p with alg on up to threads workers. Values below 2
// run on the calling goroutine. Width or height that is not positive returns
// raw.ErrEmptyPlane and no planes.
func (c *Context) Reconstruct(p *raw.Plane, alg Algorithm, threads int) (*raw.ColorPlanes, error) {
	if p == nil || p.Width <= 0 || p.Height <= 0 {
		return nil, raw.ErrEmptyPlane
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	eng, err := c.Engine(alg)
	if err != nil {
		return nil, err
	}
	if threads < 1 {
		threads = 1
	}
	in := &Input{
		Width:  p.Width,
		Height: p.Height,
		CFA:    p.CFA,
		Black:  p.Black,
		White:  p.White,
		Pix:    p.Pix[:p.Width*p.Height],
	}
	out := raw.NewColorPlanes(p.Width, p.Height)
	cfg := parallel.Config{Workers: threads}
	if n := len(parallel.Chunks(p.EvenHeight(), threads, parallel.MinChunkRows)); n < threads {
		monitoring.Logf("demosaic: %v on %dx%d uses %d of %d threads", alg, p.Width, p.Height, n, threads)
	}
	if err := eng.Demosaic(in, out, cfg); err != nil {
		return nil, fmt.Errorf("demosaic: %v: %w", alg, err)
	}
	return out, nil
}

// Engine returns the Demosaicer for alg.
func (c *Context) Engine(alg Algorithm) (Demosaicer, error) {
	switch alg {
	case None:
		return noneEngine{}, nil
	case Simple:
		return simpleEngine{}, nil
	case Bilinear:
		return bilinearEngine{}, nil
	case AMaZE:
		return &amazeEngine{ctx: c}, nil
	case RCD:
		return &rcdEngine{ctx: c}, nil
	case LMMSE:
		return lmmseEngine{}, nil
	case AHD:
		return &ahdEngine{ctx: c}, nil
	case IGV:
		return igvEngine{}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownAlgorithm, alg)
}

// mirror reflects i into [0, n) without repeating the edge sample, which
// keeps the parity of i and therefore the CFA colour. Tiny images that
// cannot be reflected far enough fall back to the nearest index with the same
// parity.
func mirror(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ulim clamps x to the interval spanned by y and z in either order.
func ulim(x, y, z float32) float32 {
	if y < z {
		return clampf(x, y, z)
	}
	return clampf(x, z, y)
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sqr(v float32) float32 { return v * v }

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
