package dualiso

import (
	"math"

	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/internal/vec"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

const (
	// outBits is the precision of the intermediate image.
	outBits = 20
	outMax  = 1<<outBits - 1

	// searchDX is the largest horizontal offset, in pixels, tried by the
	// edge-directed interpolation. Offsets are even so colours match.
	searchDX = 10

	// verticalBias scales the vertical direction's score so it wins ties.
	verticalBias = 0.8

	// shadowRaw is the dark exposure level, in raw units above black,
	// below which bright data is interpolated with direction search.
	shadowRaw = 64

	// darkFloorRaw is where the dark exposure becomes usable, in raw
	// units above black.
	darkFloorRaw = 16

	// mixHigh is the fraction of the bright clip level where the mix is
	// fully dark.
	mixHigh = 0.9

	// Mixing transition width bounds, in EV.
	minTransitionEV = 0.25
	maxTransitionEV = 2

	// aliasFullEV is the full/half resolution disagreement that saturates
	// the alias map.
	aliasFullEV = 1

	// blurRadius is the radius of the alias and overexposure smoothing.
	blurRadius = 2
)

// fusion holds the per-frame buffers. All intensities are black-subtracted
// and scaled so the brightest representable value is outMax minus the
// output black level.
type fusion struct {
	p    *raw.Plane
	il   *Interlace
	lut  *evlut.Table
	opts Options
	w, h int

	scale   float32 // bright raw units to output units
	black20 float32
	top     float32 // largest intensity
	clip    float32 // bright exposure clip level
	shadow  float32
	floor   float32
	mixLo   float32 // EV where dark data starts to mix in
	mixHi   float32 // EV where only dark data is used

	nat        []float32 // native samples of both exposures
	brightFull []float32
	darkFull   []float32
	fullres    []float32
	halfres    []float32
	weight     []float32 // dark share of the mix
	alias      AliasMap
	out        []float32
}

func newFusion(p *raw.Plane, il *Interlace, lut *evlut.Table, opts Options) *fusion {
	w, h := p.Width, p.Height
	f := &fusion{p: p, il: il, lut: lut, opts: opts, w: w, h: h}

	bits := p.BitDepth
	if bits <= 0 || bits > 16 {
		bits = 16
	}
	f.black20 = p.Black * float32(int(1)<<(outBits-bits))
	maxBright := float32(il.Gain)*(il.DarkWhite-il.DarkBlack) + float32(il.Offset)
	maxBright = max(maxBright, il.BrightWhite-il.BrightBlack)
	f.scale = (outMax - f.black20) / maxBright
	f.top = outMax - f.black20
	f.clip = (il.BrightWhite - il.BrightBlack) * f.scale
	f.shadow = float32(il.Gain) * shadowRaw * f.scale
	f.floor = float32(il.Gain) * darkFloorRaw * f.scale

	hi := log2(float64(f.clip * mixHigh))
	overlap := log2(float64(f.clip / f.floor))
	width := math.Min(math.Max(overlap/2, minTransitionEV), maxTransitionEV)
	f.mixHi = float32(hi)
	f.mixLo = float32(hi - width)

	f.nat = make([]float32, w*h)
	gain, offset := float32(il.Gain), float32(il.Offset)
	parallel.Rows(opts.Parallel, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			row := p.Pix[y*w : (y+1)*w]
			dst := f.nat[y*w : (y+1)*w]
			if il.IsBright(y) {
				vec.AddScalar(dst, row, -il.BrightBlack)
				vec.Clamp(dst, 0, math.MaxFloat32)
				vec.Scale(dst, dst, f.scale)
				continue
			}
			for x, v := range row {
				dst[x] = max(gain*(v-il.DarkBlack)+offset, 0) * f.scale
			}
		}
	})
	return f
}

// ev returns the EV of an intensity as a float.
func (f *fusion) ev(v float32) float32 {
	return float32(f.lut.EVf(v)) / evlut.Resolution
}

func (f *fusion) at(x, y int) float32 {
	if x < 0 {
		x = -x
	} else if x >= f.w {
		x = 2*(f.w-1) - x
	}
	x = min(max(x, 0), f.w-1)
	return f.nat[y*f.w+x]
}

// sameExposure reports whether row y exists and belongs to the bright
// (bright == true) or dark exposure.
func (f *fusion) sameExposure(y int, bright bool) bool {
	return y >= 0 && y < f.h && f.il.IsBright(y) == bright
}

// interpolate builds one full frame per exposure: native rows are copied
// and the rows of the other exposure are interpolated.
func (f *fusion) interpolate() {
	f.brightFull = make([]float32, f.w*f.h)
	f.darkFull = make([]float32, f.w*f.h)
	parallel.Rows(f.opts.Parallel, f.h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			native := f.il.IsBright(y)
			nrow := f.nat[y*f.w : (y+1)*f.w]
			for _, img := range []struct {
				dst    []float32
				bright bool
			}{{f.brightFull, true}, {f.darkFull, false}} {
				row := img.dst[y*f.w : (y+1)*f.w]
				if native == img.bright {
					copy(row, nrow)
					continue
				}
				for x := range row {
					row[x] = f.missing(x, y, img.bright)
				}
			}
		}
	})
}

// missing estimates the sample of the given exposure at (x, y), a row of
// the other exposure.
func (f *fusion) missing(x, y int, bright bool) float32 {
	yu, yd := y-2, y+2
	okU, okD := f.sameExposure(yu, bright), f.sameExposure(yd, bright)
	switch {
	case !okU && !okD:
		return f.nat[y*f.w+x]
	case !okU:
		yu = yd
	case !okD:
		yd = yu
	}
	a, b := f.at(x, yu), f.at(x, yd)

	if f.opts.Interp == Mean23 {
		if !f.il.CFA.IsGreen(x, y) {
			return (a + b) / 2
		}
		ya := y - 1
		if !f.sameExposure(ya, bright) {
			ya = y + 1
		}
		if !f.sameExposure(ya, bright) {
			return (a + b) / 2
		}
		diag := (f.at(x-1, ya) + f.at(x+1, ya)) / 2
		return (a + b + diag) / 3
	}

	// Direction search only where this exposure carries the useful data:
	// shadows for the bright frame, highlights for the dark one.
	own := f.nat[y*f.w+x]
	search := (bright && own < f.shadow) || (!bright && own >= f.clip*mixHigh)
	if !search || yu == yd {
		return (a + b) / 2
	}
	bestDX := 0
	bestScore := float32(math.Inf(1))
	for dx := -searchDX; dx <= searchDX; dx += 2 {
		if x+dx-2 < 0 || x-dx-2 < 0 || x+dx+2 >= f.w || x-dx+2 >= f.w {
			continue
		}
		var score float32
		for k := -2; k <= 2; k += 2 {
			u := f.ev(f.nat[yu*f.w+x+dx+k])
			d := f.ev(f.nat[yd*f.w+x-dx+k])
			score += absf(u - d)
		}
		if dx == 0 {
			score *= verticalBias
		}
		if score < bestScore {
			bestDX, bestScore = dx, score
		}
	}
	return (f.at(x+bestDX, yu) + f.at(x-bestDX, yd)) / 2
}

// fullresReconstruct keeps every native sample except clipped bright ones,
// which are replaced by the interpolated dark exposure.
func (f *fusion) fullresReconstruct() {
	f.fullres = make([]float32, f.w*f.h)
	parallel.Rows(f.opts.Parallel, f.h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			bright := f.il.IsBright(y)
			for i := y * f.w; i < (y+1)*f.w; i++ {
				if bright && f.nat[i] >= f.clip {
					f.fullres[i] = f.darkFull[i]
				} else {
					f.fullres[i] = f.nat[i]
				}
			}
		}
	})
}

// mixWeight is the share of dark data for a bright intensity v: 0 below
// mixLo, 1 above mixHi and a raised cosine between.
func (f *fusion) mixWeight(v float32) float32 {
	e := f.ev(v)
	switch {
	case e <= f.mixLo:
		return 0
	case e >= f.mixHi:
		return 1
	}
	t := float64((e - f.mixLo) / (f.mixHi - f.mixLo))
	return float32((1 - math.Cos(math.Pi*t)) / 2)
}

// mixImages builds the half resolution image. Each exposure is estimated
// again at its own native rows from the interpolated rows two above and
// below, so no native sample survives, and is then smoothed with a 3x3
// same-colour box. The two frames are blended by the raised-cosine weight of
// the bright one.
func (f *fusion) mixImages() {
	bright := boxBlur(f.reinterpolate(f.brightFull, true), f.w, f.h, 1, 2, f.opts.Parallel)
	dark := boxBlur(f.reinterpolate(f.darkFull, false), f.w, f.h, 1, 2, f.opts.Parallel)
	f.halfres = make([]float32, f.w*f.h)
	f.weight = make([]float32, f.w*f.h)
	parallel.Rows(f.opts.Parallel, f.h, func(r parallel.Range) {
		lo, hi := r.Start*f.w, r.End*f.w
		for i := lo; i < hi; i++ {
			f.weight[i] = f.mixWeight(bright[i])
		}
		vec.Lerp(f.halfres[lo:hi], bright[lo:hi], dark[lo:hi], f.weight[lo:hi])
	})
}

// reinterpolate returns a copy of full, an interpolated frame of one
// exposure, whose native rows are replaced by the mean of the rows two above
// and below. Those rows always belong to the other exposure, so they hold
// interpolated data.
func (f *fusion) reinterpolate(full []float32, bright bool) []float32 {
	out := make([]float32, len(full))
	parallel.Rows(f.opts.Parallel, f.h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			row := out[y*f.w : (y+1)*f.w]
			yu, yd := y-2, y+2
			if yu < 0 {
				yu = yd
			}
			if yd >= f.h {
				yd = yu
			}
			if f.il.IsBright(y) != bright || yu < 0 || yu >= f.h {
				copy(row, full[y*f.w:(y+1)*f.w])
				continue
			}
			up, down := full[yu*f.w:(yu+1)*f.w], full[yd*f.w:(yd+1)*f.w]
			for x := range row {
				row[x] = (up[x] + down[x]) / 2
			}
		}
	})
	return out
}

func (f *fusion) plane(pix []float32) *raw.Plane {
	return &raw.Plane{
		Width:    f.w,
		Height:   f.h,
		BitDepth: outBits,
		Black:    0,
		White:    f.top,
		CFA:      f.il.CFA,
		Pix:      pix,
	}
}

func (f *fusion) chromaSmooth() {
	if f.opts.Chroma == ChromaOff {
		return
	}
	ChromaSmooth(f.plane(f.fullres), f.opts.Chroma, f.lut, f.opts.Parallel)
	ChromaSmooth(f.plane(f.halfres), f.opts.Chroma, f.lut, f.opts.Parallel)
}

// buildAliasMap scores how far the full resolution image strays from the
// half resolution one, then spreads the score with a 3x3 maximum and a box
// blur.
func (f *fusion) buildAliasMap() {
	if !f.opts.AliasMap {
		return
	}
	n := f.w * f.h
	score := make([]float32, n)
	parallel.Rows(f.opts.Parallel, f.h, func(r parallel.Range) {
		lo, hi := r.Start*f.w, r.End*f.w
		ef := make([]float32, hi-lo)
		eh := make([]float32, hi-lo)
		for i := lo; i < hi; i++ {
			ef[i-lo] = f.ev(f.fullres[i])
			eh[i-lo] = f.ev(f.halfres[i])
		}
		d := score[lo:hi]
		vec.AbsDiff(d, ef, eh)
		for i, v := range d {
			d[i] = min(v/aliasFullEV, 1) * AliasMapMax
		}
	})
	spread := boxBlur(maxFilter3(score, f.w, f.h, f.opts.Parallel), f.w, f.h, blurRadius, 1, f.opts.Parallel)
	f.alias = make(AliasMap, n)
	for i, v := range spread {
		f.alias[i] = uint16(min(max(v+0.5, 0), AliasMapMax))
	}
}

// finalBlend uses the full resolution image where the bright exposure is
// near clipping, less so where the alias map objects, and the half
// resolution image elsewhere.
func (f *fusion) finalBlend() {
	over := boxBlur(f.weight, f.w, f.h, blurRadius, 1, f.opts.Parallel)
	f.out = make([]float32, f.w*f.h)
	parallel.Rows(f.opts.Parallel, f.h, func(r parallel.Range) {
		for i := r.Start * f.w; i < r.End*f.w; i++ {
			fw := over[i]
			if f.alias != nil {
				fw *= 1 - float32(f.alias[i])/AliasMapMax
			}
			if !f.opts.FullRes {
				fw = 0
			}
			half := f.halfres[i]
			v := half + fw*(f.fullres[i]-half)
			// Noisy full resolution shadows would punch dark holes.
			if half < f.shadow && v < half/2 {
				v = half
			}
			f.out[i] = min(max(v, 0), f.top)
		}
	})
}

// downconvert writes the 20-bit result into the plane as dithered 16-bit
// samples.
func (f *fusion) downconvert() {
	const shift = 1 << (outBits - 16)
	vec.AddScalar(f.out, f.out, f.black20)
	Downconvert(f.out, f.p.Pix, f.w, f.h, f.opts.Seed, f.opts.Parallel)
	f.p.Black = f.black20 / shift
	f.p.White = 65535
	f.p.BitDepth = 16
	f.p.CFA = f.il.CFA
	monitoring.Logf("dualiso: fused %dx%d, black %v", f.w, f.h, f.p.Black)
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
