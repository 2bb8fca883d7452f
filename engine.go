// Package rawrecon reconstructs RGB images from raw Bayer sensor frames.
//
// An Engine bundles everything that outlives a single frame: EV lookup
// tables, pixel defect maps, demosaic lookup tables and scratch memory, and
// the tuning parameters. Create one Engine per application and share it
// between goroutines.
//
// The subpackages can also be used on their own:
//
//   - raw: Bayer planes and CFA layouts
//   - evlut: raw to EV lookup tables
//   - defect: focus pixel, bad pixel and pattern noise correction
//   - dualiso: dual-ISO fusion and chroma smoothing
//   - demosaic: the demosaic engines
//   - export: TIFF, PNG and JPEG 2000 output
package rawrecon

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/mrjoshuak/go-rawrecon/config"
	"github.com/mrjoshuak/go-rawrecon/defect"
	"github.com/mrjoshuak/go-rawrecon/demosaic"
	"github.com/mrjoshuak/go-rawrecon/dualiso"
	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/interleave"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// Engine is the reconstruction context. It is safe for concurrent use.
type Engine struct {
	tuning   *config.Tuning
	luts     evlut.Cache
	maps     *defect.MapCache
	demosaic *demosaic.Context

	linearOnce sync.Once
	linear     *evlut.Table // black level 0, for dual-ISO intermediates
}

// New returns an Engine configured by t. A nil t uses the built-in defaults.
func New(t *config.Tuning) (*Engine, error) {
	if t == nil {
		t = config.Empty()
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("rawrecon: %w", err)
	}
	return &Engine{
		tuning:   t,
		maps:     defect.NewMapCache(t.GetMapDir()),
		demosaic: demosaic.NewContext(t.GetMemoryLimit()),
	}, nil
}

// Tuning returns the parameters the engine was created with.
func (e *Engine) Tuning() *config.Tuning { return e.tuning }

// Maps returns the defect map cache.
func (e *Engine) Maps() *defect.MapCache { return e.maps }

// ScratchStats returns how many tile arenas the demosaic engines checked out
// and how many were newly allocated rather than recycled.
func (e *Engine) ScratchStats() (gets, allocs int64) {
	return e.demosaic.ScratchStats()
}

// ResetMaps drops every cached focus and bad pixel map. The next frame
// reloads maps from the map directory, picking up files written since.
func (e *Engine) ResetMaps() {
	e.maps.Forget()
}

// threads resolves a requested worker count: positive values are used as
// given, anything else falls back to the tuning and then to one per CPU.
func (e *Engine) threads(n int) int {
	if n > 0 {
		return n
	}
	if n = e.tuning.GetThreads(); n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Engine) parallel() parallel.Config {
	return parallel.Config{Workers: e.threads(0)}
}

// LUT returns the EV tables for the black level of p, building them if the
// cached tables were made for another level.
func (e *Engine) LUT(p *raw.Plane) *evlut.Table {
	return e.luts.Get(int(math.Round(float64(p.Black))))
}

func (e *Engine) linearLUT() *evlut.Table {
	e.linearOnce.Do(func() { e.linear = evlut.Build(0) })
	return e.linear
}

// ReconstructPlanes demosaics p into three float planes. A threads value of
// 0 uses the tuning.
func (e *Engine) ReconstructPlanes(p *raw.Plane, alg demosaic.Algorithm, threads int) (*raw.ColorPlanes, error) {
	return e.demosaic.Reconstruct(p, alg, e.threads(threads))
}

// Reconstruct demosaics p into an interleaved 16-bit RGB frame with every
// sample clamped to [0, 65535].
func (e *Engine) Reconstruct(p *raw.Plane, alg demosaic.Algorithm, threads int) (*raw.RGB16, error) {
	planes, err := e.ReconstructPlanes(p, alg, threads)
	if err != nil {
		return nil, err
	}
	w, h := planes.Width, planes.Height
	img := &raw.RGB16{Width: w, Height: h, Pix: make([]uint16, 3*w*h)}
	parallel.Items(parallel.Config{Workers: e.threads(threads)}, h, func(r parallel.Range) {
		interleave.Rows(planes.R, planes.G, planes.B, w, r.Start, r.End, img.Pix)
	})
	return img, nil
}

// FixFocusPixels interpolates the focus pixels listed in the map for the
// camera and resolution of p. Dual-ISO frames are interpolated along rows
// only. It returns the number of pixels replaced; a missing map or one made
// for another camera replaces nothing.
func (e *Engine) FixFocusPixels(p *raw.Plane, cameraID uint32, dualISO bool) int {
	m := e.maps.Focus(signature(p, cameraID))
	if !m.Usable() {
		return 0
	}
	n := defect.Interpolate(p, m.Points, e.LUT(p), interpMode(dualISO), e.parallel())
	e.maps.MarkApplied(m)
	return n
}

// FixBadPixels interpolates the bad pixels of clip. The map is loaded from
// the map directory or, when absent, detected on p and saved. The error
// reports a failed save; the pixels are fixed regardless.
func (e *Engine) FixBadPixels(p *raw.Plane, cameraID uint32, clip string, opts defect.DetectOptions) (int, error) {
	lut := e.LUT(p)
	cfg := e.parallel()
	m, err := e.maps.Bad(signature(p, cameraID), clip, func() []defect.Point {
		return defect.DetectBadPixels(p, lut, opts, cfg)
	})
	if !m.Usable() {
		return 0, err
	}
	n := defect.Interpolate(p, m.Points, lut, interpMode(opts.DualISO), cfg)
	e.maps.MarkApplied(m)
	return n, err
}

// FixPatternNoise removes fixed column and row offsets from p.
func (e *Engine) FixPatternNoise(p *raw.Plane) defect.PatternOffsets {
	return defect.FixPatternNoise(p, e.LUT(p), e.parallel())
}

// DualISO fuses a dual-ISO frame in place. On failure p is unchanged and the
// error wraps one of the dualiso detection errors. Zero-valued LUT and
// Parallel fields of opts are filled in by the engine.
func (e *Engine) DualISO(p *raw.Plane, opts dualiso.Options) error {
	if opts.LUT == nil {
		opts.LUT = e.linearLUT()
	}
	if opts.Parallel.Workers == 0 {
		opts.Parallel = e.parallel()
	}
	return dualiso.Process(p, opts)
}

// ChromaSmooth applies median chroma smoothing to the mosaic p in place.
func (e *Engine) ChromaSmooth(p *raw.Plane, m dualiso.Chroma) error {
	if err := p.Validate(); err != nil {
		return err
	}
	dualiso.ChromaSmooth(p, m, e.LUT(p), e.parallel())
	return nil
}

// DualISOOptions builds dual-ISO options from the tuning.
func (e *Engine) DualISOOptions() dualiso.Options {
	interp, err := dualiso.ParseInterp(e.tuning.GetDualISOInterpolation())
	if err != nil {
		interp = dualiso.EdgeDirected
	}
	chroma, err := dualiso.ChromaFromSize(e.tuning.GetChromaSmooth())
	if err != nil {
		chroma = dualiso.Chroma2x2
	}
	return dualiso.Options{
		Interp:   interp,
		AliasMap: e.tuning.GetDualISOAliasMap(),
		FullRes:  e.tuning.GetDualISOFullRes(),
		Chroma:   chroma,
	}
}

func signature(p *raw.Plane, cameraID uint32) defect.Signature {
	return defect.Signature{CameraID: cameraID, Width: p.Width, Height: p.Height}
}

func interpMode(dualISO bool) defect.Mode {
	if dualISO {
		return defect.Horizontal
	}
	return defect.FourDir
}
