package demosaic

import (
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// linear sRGB (D65) to XYZ, rows normalised so that white maps to Y = 1.
var ahdXYZ = [3][3]float32{
	{0.4124564 / 0.95047, 0.3575761 / 0.95047, 0.1804375 / 0.95047},
	{0.2126729, 0.7151522, 0.0721750},
	{0.0193339 / 1.08883, 0.1191920 / 1.08883, 0.9503041 / 1.08883},
}

const (
	ahdHorizontal = 0
	ahdVertical   = 1
)

// ahdEngine is adaptive homogeneity-directed demosaicing: a full horizontal
// and a full vertical interpolation are built, both are converted to CIELab,
// and every pixel takes the direction whose 3x3 neighbourhood is more
// homogeneous.
type ahdEngine struct {
	ctx *Context
}

type ahdPlanes struct {
	rgb [3][]float32
	lab [3][]float32
	// homo counts homogeneous neighbours per pixel.
	homo []float32
}

func (e *ahdEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	w, h := in.Width, in.Height
	n := w * h
	lab := e.ctx.labTables()
	idx := func(x, y int) int { return mirror(y, h)*w + mirror(x, w) }
	sample := func(x, y int) float32 { return clampf(in.at(x, y)/65535, 0, 1) }
	black := in.blackBelow(65535) / 65535

	var dir [2]ahdPlanes
	for d := range dir {
		for c := 0; c < 3; c++ {
			dir[d].rgb[c] = make([]float32, n)
			dir[d].lab[c] = make([]float32, n)
		}
		dir[d].homo = make([]float32, n)
	}

	// Hamilton-Adams green along each direction.
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				c := sample(x, y)
				if in.CFA.Color(x, y) == raw.Green {
					dir[ahdHorizontal].rgb[raw.Green][i] = c
					dir[ahdVertical].rgb[raw.Green][i] = c
					continue
				}
				l, rt := sample(x-1, y), sample(x+1, y)
				gh := (l+rt)/2 + (2*c-sample(x-2, y)-sample(x+2, y))/4
				dir[ahdHorizontal].rgb[raw.Green][i] = ulim(gh, l, rt)

				u, dn := sample(x, y-1), sample(x, y+1)
				gv := (u+dn)/2 + (2*c-sample(x, y-2)-sample(x, y+2))/4
				dir[ahdVertical].rgb[raw.Green][i] = ulim(gv, u, dn)
			}
		}
	})

	// Red and blue from green differences, then CIELab.
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for d := range dir {
			p := &dir[d]
			g := p.rgb[raw.Green]
			for y := r.Start; y < r.End; y++ {
				for x := 0; x < w; x++ {
					i := y*w + x
					own := in.CFA.Color(x, y)
					if own != raw.Green {
						other := 2 - own
						p.rgb[own][i] = sample(x, y)
						var sum float32
						for _, o := range [4][2]int{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}} {
							j := idx(x+o[0], y+o[1])
							sum += sample(x+o[0], y+o[1]) - g[j]
						}
						p.rgb[other][i] = clampf(g[i]+sum/4, 0, 1)
					} else {
						hc := in.CFA.Color(x+1, y)
						a, b := idx(x-1, y), idx(x+1, y)
						p.rgb[hc][i] = clampf(g[i]+(sample(x-1, y)-g[a]+sample(x+1, y)-g[b])/2, 0, 1)
						a, b = idx(x, y-1), idx(x, y+1)
						p.rgb[2-hc][i] = clampf(g[i]+(sample(x, y-1)-g[a]+sample(x, y+1)-g[b])/2, 0, 1)
					}
					ahdToLab(lab, p, i, black)
				}
			}
		}
	})

	// Homogeneity maps.
	parallel.Rows(cfg, h, func(r parallel.Range) {
		neigh := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				var ldiff, abdiff [2][4]float32
				for d := range dir {
					p := &dir[d]
					for k, o := range neigh {
						j := idx(x+o[0], y+o[1])
						ldiff[d][k] = absf(p.lab[0][i] - p.lab[0][j])
						abdiff[d][k] = sqr(p.lab[1][i]-p.lab[1][j]) + sqr(p.lab[2][i]-p.lab[2][j])
					}
				}
				leps := minf(maxf(ldiff[ahdHorizontal][0], ldiff[ahdHorizontal][1]), maxf(ldiff[ahdVertical][2], ldiff[ahdVertical][3]))
				abeps := minf(maxf(abdiff[ahdHorizontal][0], abdiff[ahdHorizontal][1]), maxf(abdiff[ahdVertical][2], abdiff[ahdVertical][3]))
				for d := range dir {
					var count float32
					for k := range neigh {
						if ldiff[d][k] <= leps && abdiff[d][k] <= abeps {
							count++
						}
					}
					dir[d].homo[i] = count
				}
			}
		}
	})

	// Direction choice over the 3x3 homogeneity sum.
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				var hm [2]float32
				for d := range dir {
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							hm[d] += dir[d].homo[idx(x+dx, y+dy)]
						}
					}
				}
				i := y*w + x
				hp, vp := &dir[ahdHorizontal], &dir[ahdVertical]
				var rgb [3]float32
				for c := 0; c < 3; c++ {
					switch {
					case hm[ahdHorizontal] > hm[ahdVertical]:
						rgb[c] = hp.rgb[c][i]
					case hm[ahdVertical] > hm[ahdHorizontal]:
						rgb[c] = vp.rgb[c][i]
					default:
						rgb[c] = (hp.rgb[c][i] + vp.rgb[c][i]) / 2
					}
				}
				out.R[i] = rgb[raw.Red] * 65535
				out.G[i] = rgb[raw.Green] * 65535
				out.B[i] = rgb[raw.Blue] * 65535
			}
		}
	})
	return nil
}

// ahdToLab converts pixel i to Lab after removing the black level.
func ahdToLab(lab *labTable, p *ahdPlanes, i int, black float32) {
	r, g, b := p.rgb[raw.Red][i]-black, p.rgb[raw.Green][i]-black, p.rgb[raw.Blue][i]-black
	var f [3]float32
	for k, row := range ahdXYZ {
		f[k] = lab.encode(row[0]*r + row[1]*g + row[2]*b)
	}
	p.lab[0][i] = 116*f[1] - 16
	p.lab[1][i] = 500 * (f[0] - f[1])
	p.lab[2][i] = 200 * (f[1] - f[2])
}
