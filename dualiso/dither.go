package dualiso

import (
	"math"
	"math/rand"

	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
)

// DitherSigma is the standard deviation, in output LSB, of the noise added
// before the 20 to 16 bit truncation.
const DitherSigma = 0.5

// Downconvert maps 20-bit samples in src to 16-bit values in dst, adding
// Gaussian noise so smooth gradients do not band. Every row draws from its
// own generator seeded from seed and the row index, so the result does not
// depend on how rows are split between workers.
func Downconvert(src, dst []float32, w, h int, seed int64, cfg parallel.Config) {
	const shift = 1 << (outBits - 16)
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			rng := rand.New(rand.NewSource(seed ^ int64(y)*0x5851f42d4c957f2d))
			for i := y * w; i < (y+1)*w; i++ {
				v := float64(src[i])/shift + 0.5 + rng.NormFloat64()*DitherSigma
				v = math.Floor(v)
				dst[i] = float32(min(max(v, 0), 65535))
			}
		}
	})
}

// boxBlur is a separable mean filter over 2*radius+1 taps spaced step
// apart. A step of 2 averages same-colour samples of a Bayer mosaic. Taps
// outside the frame are reflected about the edge, which keeps their parity.
func boxBlur(src []float32, w, h, radius, step int, cfg parallel.Config) []float32 {
	tmp := make([]float32, len(src))
	out := make([]float32, len(src))
	norm := 1 / float32(2*radius+1)
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			row := src[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				var s float32
				for k := -radius; k <= radius; k++ {
					s += row[mirror(x+k*step, w)]
				}
				tmp[y*w+x] = s * norm
			}
		}
	})
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				var s float32
				for k := -radius; k <= radius; k++ {
					s += tmp[mirror(y+k*step, h)*w+x]
				}
				out[y*w+x] = s * norm
			}
		}
	})
	return out
}

// mirror reflects i into [0, n) without repeating the edge sample.
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

// maxFilter3 returns the maximum over each 3x3 neighbourhood.
func maxFilter3(src []float32, w, h int, cfg parallel.Config) []float32 {
	out := make([]float32, len(src))
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				m := src[y*w+x]
				for dy := -1; dy <= 1; dy++ {
					yy := min(max(y+dy, 0), h-1)
					for dx := -1; dx <= 1; dx++ {
						xx := min(max(x+dx, 0), w-1)
						m = max(m, src[yy*w+xx])
					}
				}
				out[y*w+x] = m
			}
		}
	})
	return out
}
