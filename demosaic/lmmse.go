package demosaic

import (
	"math"

	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/internal/vec"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// lmmseWindow is M, the half width of the window over which the local
// signal and noise statistics are gathered.
const lmmseWindow = 4

// lmmsePad is the symmetric extension around the image. Each pass consumes
// part of it: 2 for the directional filters, 4 for the smoothing, 4 for the
// window statistics and 2 for the red/blue fill.
const lmmsePad = 12

// lmmseVarEps keeps both variances strictly positive.
const lmmseVarEps = 1e-7

// lmmseGauss is the normalised smoothing kernel exp(-k*k/8), k = -4..4.
var lmmseGauss = func() [2*lmmseWindow + 1]float32 {
	var k [2*lmmseWindow + 1]float64
	sum := 0.0
	for i := range k {
		d := float64(i - lmmseWindow)
		k[i] = math.Exp(-d * d / 8)
		sum += k[i]
	}
	var out [2*lmmseWindow + 1]float32
	for i := range k {
		out[i] = float32(k[i] / sum)
	}
	return out
}()

// lmmseEngine is the Zhang-Wu directional linear minimum mean square error
// estimator. It runs over the whole image as a sequence of row-parallel
// passes.
type lmmseEngine struct{}

// paddedPlane is an image extended by pad pixels on every side.
type paddedPlane struct {
	w, h, pad, stride int
	pix               []float32
}

func newPaddedPlane(w, h, pad int) *paddedPlane {
	stride := w + 2*pad
	return &paddedPlane{w: w, h: h, pad: pad, stride: stride, pix: make([]float32, stride*(h+2*pad))}
}

func (p *paddedPlane) rows() int { return p.h + 2*p.pad }

// passRows runs fn for every padded row in [lo, hi) across workers.
func passRows(cfg parallel.Config, lo, hi int, fn func(y int)) {
	if hi <= lo {
		return
	}
	parallel.Rows(cfg, hi-lo, func(r parallel.Range) {
		for y := lo + r.Start; y < lo+r.End; y++ {
			fn(y)
		}
	})
}

func (lmmseEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	const pad = lmmsePad
	w, h := in.Width, in.Height
	cfa := newPaddedPlane(w, h, pad)
	s := cfa.stride
	rows := cfa.rows()
	color := func(x, y int) int { return in.CFA.Color(x-pad, y-pad) }

	passRows(cfg, 0, rows, func(y int) {
		row := cfa.pix[y*s : (y+1)*s]
		for x := range row {
			row[x] = clampf(in.at(x-pad, y-pad)/65535, 0, 1)
		}
	})

	// Directional green minus chroma differences.
	dh := make([]float32, len(cfa.pix))
	dv := make([]float32, len(cfa.pix))
	passRows(cfg, 2, rows-2, func(y int) {
		c := cfa.pix
		for x := 2; x < s-2; x++ {
			i := y*s + x
			sign := float32(1)
			if color(x, y) == raw.Green {
				sign = -1
			}
			dh[i] = sign * (-0.25*c[i-2] + 0.5*c[i-1] - 0.5*c[i] + 0.5*c[i+1] - 0.25*c[i+2])
			dv[i] = sign * (-0.25*c[i-2*s] + 0.5*c[i-s] - 0.5*c[i] + 0.5*c[i+s] - 0.25*c[i+2*s])
		}
	})

	// Smoothed differences along the same direction.
	sh := make([]float32, len(cfa.pix))
	sv := make([]float32, len(cfa.pix))
	const m = lmmseWindow
	passRows(cfg, 2+m, rows-2-m, func(y int) {
		for x := 2 + m; x < s-2-m; x++ {
			i := y*s + x
			var a, b float32
			for k := -m; k <= m; k++ {
				a += lmmseGauss[k+m] * dh[i+k]
				b += lmmseGauss[k+m] * dv[i+k*s]
			}
			sh[i], sv[i] = a, b
		}
	})

	// Fused difference at red and blue sites, then green.
	green := newPaddedPlane(w, h, pad)
	diff := make([]float32, len(cfa.pix))
	copy(green.pix, cfa.pix)
	lo, hi := 2+2*m, rows-2-2*m
	passRows(cfg, lo, hi, func(y int) {
		for x := lo; x < s-lo; x++ {
			if color(x, y) == raw.Green {
				continue
			}
			i := y*s + x
			xh, vh := lmmseEstimate(dh, sh, i, 1)
			xv, vv := lmmseEstimate(dv, sv, i, s)
			d := (xh*vv + xv*vh) / (vh + vv)
			diff[i] = d
			green.pix[i] = clampf(cfa.pix[i]+d, 0, 1)
		}
	})

	red := newPaddedPlane(w, h, pad)
	blue := newPaddedPlane(w, h, pad)
	chroma := [3]*paddedPlane{raw.Red: red, raw.Blue: blue}
	g := green.pix

	// Opposite chroma at red and blue sites from the four diagonal
	// differences.
	passRows(cfg, lo+1, hi-1, func(y int) {
		for x := lo + 1; x < s-lo-1; x++ {
			c := color(x, y)
			if c == raw.Green {
				continue
			}
			i := y*s + x
			chroma[c].pix[i] = cfa.pix[i]
			dsum := diff[i-s-1] + diff[i-s+1] + diff[i+s-1] + diff[i+s+1]
			chroma[2-c].pix[i] = clampf(g[i]-0.25*dsum, 0, 1)
		}
	})

	// Red and blue at green sites from the four axial differences.
	passRows(cfg, lo+2, hi-2, func(y int) {
		for x := lo + 2; x < s-lo-2; x++ {
			if color(x, y) != raw.Green {
				continue
			}
			i := y*s + x
			for _, p := range [2]*paddedPlane{red, blue} {
				c := p.pix
				dsum := (g[i-s] - c[i-s]) + (g[i+s] - c[i+s]) + (g[i-1] - c[i-1]) + (g[i+1] - c[i+1])
				c[i] = clampf(g[i]-0.25*dsum, 0, 1)
			}
		}
	})

	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			src := (y+pad)*s + pad
			dst := y * w
			vec.Scale(out.R[dst:dst+w], red.pix[src:src+w], 65535)
			vec.Scale(out.G[dst:dst+w], g[src:src+w], 65535)
			vec.Scale(out.B[dst:dst+w], blue.pix[src:src+w], 65535)
		}
	})
	return nil
}

// lmmseEstimate fuses the raw difference d and its smoothed version sm at i
// along stride step. It returns the estimate and its error variance.
func lmmseEstimate(d, sm []float32, i, step int) (est, variance float32) {
	const m = lmmseWindow
	var mu float32
	for k := -m; k <= m; k++ {
		mu += sm[i+k*step]
	}
	mu /= 2*m + 1

	var signal, noise float32
	for k := -m; k <= m; k++ {
		j := i + k*step
		signal += sqr(sm[j] - mu)
		noise += sqr(d[j] - sm[j])
	}
	signal = lmmseVarEps + signal/(2*m+1)
	noise = lmmseVarEps + noise/(2*m+1)

	est = mu + signal*(d[i]-mu)/(signal+noise)
	variance = signal * noise / (signal + noise)
	return est, variance
}
