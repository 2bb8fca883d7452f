package demosaic

import (
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

const (
	igvVarEps  = 1e-10
	igvGradEps = 1e-5
)

// igvEngine interpolates green from horizontal and vertical colour
// differences weighted by the inverse of their local variance, then fills
// red and blue from gradient-weighted colour differences.
type igvEngine struct{}

func (igvEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	w, h := in.Width, in.Height
	n := w * h
	idx := func(x, y int) int { return mirror(y, h)*w + mirror(x, w) }
	sample := func(x, y int) float32 { return clampf(in.at(x, y)/65535, 0, 1) }

	// hd and vd hold green minus the other colour along each axis.
	hd := make([]float32, n)
	vd := make([]float32, n)
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				c := sample(x, y)
				hn := (sample(x-1, y) + sample(x+1, y)) / 2
				vn := (sample(x, y-1) + sample(x, y+1)) / 2
				if in.CFA.Color(x, y) == raw.Green {
					hd[i], vd[i] = c-hn, c-vn
				} else {
					hd[i], vd[i] = hn-c, vn-c
				}
			}
		}
	})

	rgb := [3][]float32{make([]float32, n), make([]float32, n), make([]float32, n)}
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				c := sample(x, y)
				own := in.CFA.Color(x, y)
				rgb[own][i] = c
				if own == raw.Green {
					continue
				}
				hs := 0.5*hd[i] + 0.25*(hd[idx(x-2, y)]+hd[idx(x+2, y)])
				vs := 0.5*vd[i] + 0.25*(vd[idx(x, y-2)]+vd[idx(x, y+2)])
				var hv, vv float32
				for k := -2; k <= 2; k++ {
					hv += sqr(hd[idx(x+k, y)] - hs)
					vv += sqr(vd[idx(x, y+k)] - vs)
				}
				wh := 1 / (igvVarEps + hv)
				wv := 1 / (igvVarEps + vv)
				rgb[raw.Green][i] = clampf(c+(wh*hs+wv*vs)/(wh+wv), 0, 1)
			}
		}
	})

	g := rgb[raw.Green]
	// Opposite chroma at red and blue sites along the diagonals.
	parallel.Rows(cfg, h, func(r parallel.Range) {
		diag := [4][2]int{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				own := in.CFA.Color(x, y)
				if own == raw.Green {
					continue
				}
				i := y*w + x
				var num, den float32
				for _, o := range diag {
					j := idx(x+o[0], y+o[1])
					k := idx(x-o[0], y-o[1])
					wt := 1 / (igvGradEps + absf(sample(x+o[0], y+o[1])-sample(x-o[0], y-o[1])) + absf(g[i]-g[j]) + absf(g[j]-g[k]))
					num += wt * (sample(x+o[0], y+o[1]) - g[j])
					den += wt
				}
				rgb[2-own][i] = clampf(g[i]+num/den, 0, 1)
			}
		}
	})

	// Red and blue at green sites along the axes.
	parallel.Rows(cfg, h, func(r parallel.Range) {
		axes := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				if in.CFA.Color(x, y) != raw.Green {
					continue
				}
				i := y*w + x
				for _, ch := range [2]int{raw.Red, raw.Blue} {
					c := rgb[ch]
					var num, den float32
					for _, o := range axes {
						j := idx(x+o[0], y+o[1])
						k := idx(x-o[0], y-o[1])
						wt := 1 / (igvGradEps + absf(c[j]-c[k]) + absf(g[i]-g[j]))
						num += wt * (c[j] - g[j])
						den += wt
					}
					c[i] = clampf(g[i]+num/den, 0, 1)
				}
			}
		}
	})

	parallel.Rows(cfg, h, func(r parallel.Range) {
		for i := r.Start * w; i < r.End*w; i++ {
			out.R[i] = rgb[raw.Red][i] * 65535
			out.G[i] = g[i] * 65535
			out.B[i] = rgb[raw.Blue][i] * 65535
		}
	})
	return nil
}
