package demosaic

import (
	"github.com/mrjoshuak/go-rawrecon/internal/arena"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// AMaZE (Aliasing Minimization and Zipper Elimination) works on
// amazeTileSize tiles whose outer amazeBorder pixels are reloaded from the
// source for every tile and discarded after processing.
const (
	amazeTileSize = 224
	amazeBorder   = 16
)

const (
	amazeEps   = 1e-9
	amazeEpsSq = 1e-18

	// Ratio-corrected estimates are used only while the colour ratio stays
	// within arThresh of 1.
	arThresh = 0.75

	// nyqThresh scales the luminance gradient energy the colour-difference
	// energy must exceed before a site is flagged as Nyquist texture.
	nyqThresh = 0.5

	// Highlights above clipFrac of the clip point fall back to
	// Hamilton-Adams estimates.
	clipFrac = 0.8
)

// Gaussian weights over the quincunx, the even lattice and the gradient
// neighbourhood used by the texture test and the refinement steps.
var (
	gaussOdd  = [4]float32{0.14659727707323927, 0.103592713382435, 0.0732036125103057, 0.0365543548389495}
	gaussGrad = [6]float32{
		nyqThresh * 0.07384411893421103, nyqThresh * 0.06207511968171489,
		nyqThresh * 0.0521818194747806, nyqThresh * 0.03687419286733595,
		nyqThresh * 0.03099732204057846, nyqThresh * 0.018413194161458882,
	}
	gaussEven = [2]float32{0.13719494435797422, 0.05640252782101291}
	gQuinc    = [4]float32{0.169917, 0.108947, 0.069855, 0.0287182}
)

type amazeEngine struct {
	ctx *Context
}

func (e *amazeEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	const ts = amazeTileSize
	lab := e.ctx.labTables()
	g := newTileGrid(in.Width, in.Height, ts, amazeBorder)
	pool := e.ctx.tilePool("amaze", 28*ts*ts, 2*ts*ts)

	white := in.White
	if white <= 0 || white > 65535 {
		white = 65535
	}
	black := in.blackBelow(white)
	clip := lab.encode((white - black) / 65535)

	return e.ctx.runTiles(g, cfg, pool, func(a *arena.Arena, top, left int) {
		t := newAmazeTile(a, in.CFA, top, left)
		loadTile(in, top, left, ts, black, 65535, t.cfa)
		for i, v := range t.cfa {
			t.cfa[i] = lab.encode(v)
		}
		t.clip = clip
		t.run()
		storeCore(out, g, top, left, func(rr, cc int) (float32, float32, float32) {
			r, gr, b := t.pixel(rr, cc)
			return lab.decode(r)*65535 + black, lab.decode(gr)*65535 + black, lab.decode(b)*65535 + black
		})
	})
}

// amazeTile holds the named scratch planes of one tile. All planes share
// the tile's row stride.
type amazeTile struct {
	cfaLayout raw.CFA
	top, left int
	clip      float32

	cfa, green        []float32
	delh, delv        []float32
	delhsq, delvsq    []float32
	dirwts0, dirwts1  []float32
	vcd, hcd          []float32
	vcdalt, hcdalt    []float32
	cddiffsq, hvwt    []float32
	dgrb0, dgrb1      []float32
	delp, delm        []float32
	rbint, dgrbh2     []float32
	dgrbv2, dgintv    []float32
	dginth, dgrbpsq1  []float32
	dgrbmsq1, pmwt    []float32
	rbp, rbm          []float32
	nyquist, nyquist2 []int32
}

func newAmazeTile(a *arena.Arena, cfa raw.CFA, top, left int) *amazeTile {
	const n = amazeTileSize * amazeTileSize
	return &amazeTile{
		cfaLayout: cfa,
		top:       top,
		left:      left,
		cfa:       a.Float32("cfa", n),
		green:     a.Float32("green", n),
		delh:      a.Float32("delh", n),
		delv:      a.Float32("delv", n),
		delhsq:    a.Float32("delhsq", n),
		delvsq:    a.Float32("delvsq", n),
		dirwts0:   a.Float32("dirwts0", n),
		dirwts1:   a.Float32("dirwts1", n),
		vcd:       a.Float32("vcd", n),
		hcd:       a.Float32("hcd", n),
		vcdalt:    a.Float32("vcdalt", n),
		hcdalt:    a.Float32("hcdalt", n),
		cddiffsq:  a.Float32("cddiffsq", n),
		hvwt:      a.Float32("hvwt", n),
		dgrb0:     a.Float32("dgrb0", n),
		dgrb1:     a.Float32("dgrb1", n),
		delp:      a.Float32("delp", n),
		delm:      a.Float32("delm", n),
		rbint:     a.Float32("rbint", n),
		dgrbh2:    a.Float32("dgrbh2", n),
		dgrbv2:    a.Float32("dgrbv2", n),
		dgintv:    a.Float32("dgintv", n),
		dginth:    a.Float32("dginth", n),
		dgrbpsq1:  a.Float32("dgrbpsq1", n),
		dgrbmsq1:  a.Float32("dgrbmsq1", n),
		pmwt:      a.Float32("pmwt", n),
		rbp:       a.Float32("rbp", n),
		rbm:       a.Float32("rbm", n),
		nyquist:   a.Int32("nyquist", n),
		nyquist2:  a.Int32("nyquist2", n),
	}
}

// fc returns the CFA colour at tile position (rr, cc).
func (t *amazeTile) fc(rr, cc int) int {
	return t.cfaLayout.Color(t.left+cc, t.top+rr)
}

// rbStart returns the first column >= from in row rr holding a red or
// blue sample.
func (t *amazeTile) rbStart(rr, from int) int {
	if t.fc(rr, from) == raw.Green {
		return from + 1
	}
	return from
}

func (t *amazeTile) run() {
	t.gradients()
	t.cardinalGreen()
	t.varianceSelect()
	t.directionWeights()
	t.nyquistTest()
	t.nyquistArea()
	t.greenAtRB()
	t.nyquistRefine()
	t.diagonalGradients()
	t.diagonalRB()
	t.greenFromRB()
	t.chroma()
}

// gradients computes cardinal gradients and direction weights from the raw
// tile.
func (t *amazeTile) gradients() {
	const ts, v1, v2 = amazeTileSize, amazeTileSize, 2 * amazeTileSize
	cfa := t.cfa
	copy(t.green, cfa)
	for rr := 2; rr < ts-2; rr++ {
		for cc, indx := 2, rr*ts+2; cc < ts-2; cc, indx = cc+1, indx+1 {
			t.delh[indx] = absf(cfa[indx+1] - cfa[indx-1])
			t.delv[indx] = absf(cfa[indx+v1] - cfa[indx-v1])
			t.dirwts0[indx] = amazeEps + absf(cfa[indx+v2]-cfa[indx]) + absf(cfa[indx]-cfa[indx-v2]) + t.delv[indx]
			t.dirwts1[indx] = amazeEps + absf(cfa[indx+2]-cfa[indx]) + absf(cfa[indx]-cfa[indx-2]) + t.delh[indx]
			t.delhsq[indx] = sqr(t.delh[indx])
			t.delvsq[indx] = sqr(t.delv[indx])
		}
	}
}

// ratioEstimate returns the colour-ratio estimate when the ratio is close
// enough to 1 and the Hamilton-Adams estimate otherwise.
func ratioEstimate(center, ratio, ha float32) float32 {
	if absf(1-ratio) < arThresh {
		return center * ratio
	}
	return ha
}

// cardinalGreen interpolates colour differences vertically and horizontally
// with both ratio-corrected and Hamilton-Adams green estimates.
func (t *amazeTile) cardinalGreen() {
	const ts, v1, v2 = amazeTileSize, amazeTileSize, 2 * amazeTileSize
	cfa, d0, d1 := t.cfa, t.dirwts0, t.dirwts1
	clip := t.clip
	for rr := 4; rr < ts-4; rr++ {
		for cc, indx := 4, rr*ts+4; cc < ts-4; cc, indx = cc+1, indx+1 {
			sgn := float32(1)
			if t.fc(rr, cc) == raw.Green {
				sgn = -1
			}
			c := cfa[indx]

			cru := cfa[indx-v1] * (d0[indx-v2] + d0[indx]) / (d0[indx-v2]*(amazeEps+c) + d0[indx]*(amazeEps+cfa[indx-v2]))
			crd := cfa[indx+v1] * (d0[indx+v2] + d0[indx]) / (d0[indx+v2]*(amazeEps+c) + d0[indx]*(amazeEps+cfa[indx+v2]))
			crl := cfa[indx-1] * (d1[indx-2] + d1[indx]) / (d1[indx-2]*(amazeEps+c) + d1[indx]*(amazeEps+cfa[indx-2]))
			crr := cfa[indx+1] * (d1[indx+2] + d1[indx]) / (d1[indx+2]*(amazeEps+c) + d1[indx]*(amazeEps+cfa[indx+2]))

			guha := minf(clip, cfa[indx-v1]+0.5*(c-cfa[indx-v2]))
			gdha := minf(clip, cfa[indx+v1]+0.5*(c-cfa[indx+v2]))
			glha := minf(clip, cfa[indx-1]+0.5*(c-cfa[indx-2]))
			grha := minf(clip, cfa[indx+1]+0.5*(c-cfa[indx+2]))

			guar := ratioEstimate(c, cru, guha)
			gdar := ratioEstimate(c, crd, gdha)
			glar := ratioEstimate(c, crl, glha)
			grar := ratioEstimate(c, crr, grha)

			hwt := d1[indx-1] / (d1[indx-1] + d1[indx+1])
			vwt := d0[indx-v1] / (d0[indx+v1] + d0[indx-v1])

			gintvar := vwt*gdar + (1-vwt)*guar
			ginthar := hwt*grar + (1-hwt)*glar
			gintvha := vwt*gdha + (1-vwt)*guha
			ginthha := hwt*grha + (1-hwt)*glha

			t.vcd[indx] = sgn * (gintvar - c)
			t.hcd[indx] = sgn * (ginthar - c)
			t.vcdalt[indx] = sgn * (gintvha - c)
			t.hcdalt[indx] = sgn * (ginthha - c)

			if c > clipFrac*clip || gintvha > clipFrac*clip || ginthha > clipFrac*clip {
				guar, gdar, glar, grar = guha, gdha, glha, grha
				t.vcd[indx] = t.vcdalt[indx]
				t.hcd[indx] = t.hcdalt[indx]
			}

			t.dgintv[indx] = minf(sqr(guha-gdha), sqr(guar-gdar))
			t.dginth[indx] = minf(sqr(glha-grha), sqr(glar-grar))
		}
	}
}

// triVar is 3*(a²+b²+c²) - (a+b+c)², a scaled variance of three samples.
func triVar(a, b, c float32) float32 {
	return 3*(a*a+b*b+c*c) - sqr(a+b+c)
}

// varianceSelect keeps whichever estimate has the smoother colour difference
// and bounds the result near saturation.
func (t *amazeTile) varianceSelect() {
	const ts, v1, v2 = amazeTileSize, amazeTileSize, 2 * amazeTileSize
	cfa, hcd, vcd := t.cfa, t.hcd, t.vcd
	clip := t.clip
	for rr := 4; rr < ts-4; rr++ {
		for cc, indx := 4, rr*ts+4; cc < ts-4; cc, indx = cc+1, indx+1 {
			if triVar(t.hcdalt[indx-2], t.hcdalt[indx], t.hcdalt[indx+2]) < triVar(hcd[indx-2], hcd[indx], hcd[indx+2]) {
				hcd[indx] = t.hcdalt[indx]
			}
			if triVar(t.vcdalt[indx-v2], t.vcdalt[indx], t.vcdalt[indx+v2]) < triVar(vcd[indx-v2], vcd[indx], vcd[indx+v2]) {
				vcd[indx] = t.vcdalt[indx]
			}

			c := cfa[indx]
			if t.fc(rr, cc) == raw.Green {
				ginth := -hcd[indx] + c
				gintv := -vcd[indx] + c
				if hcd[indx] > 0 {
					lim := -ulim(ginth, cfa[indx-1], cfa[indx+1]) + c
					if 3*hcd[indx] > ginth+c {
						hcd[indx] = lim
					} else {
						w := 1 - 3*hcd[indx]/(amazeEps+ginth+c)
						hcd[indx] = w*hcd[indx] + (1-w)*lim
					}
				}
				if vcd[indx] > 0 {
					lim := -ulim(gintv, cfa[indx-v1], cfa[indx+v1]) + c
					if 3*vcd[indx] > gintv+c {
						vcd[indx] = lim
					} else {
						w := 1 - 3*vcd[indx]/(amazeEps+gintv+c)
						vcd[indx] = w*vcd[indx] + (1-w)*lim
					}
				}
				if ginth > clip {
					hcd[indx] = -ulim(ginth, cfa[indx-1], cfa[indx+1]) + c
				}
				if gintv > clip {
					vcd[indx] = -ulim(gintv, cfa[indx-v1], cfa[indx+v1]) + c
				}
			} else {
				ginth := hcd[indx] + c
				gintv := vcd[indx] + c
				if hcd[indx] < 0 {
					lim := ulim(ginth, cfa[indx-1], cfa[indx+1]) - c
					if 3*hcd[indx] < -(ginth + c) {
						hcd[indx] = lim
					} else {
						w := 1 + 3*hcd[indx]/(amazeEps+ginth+c)
						hcd[indx] = w*hcd[indx] + (1-w)*lim
					}
				}
				if vcd[indx] < 0 {
					lim := ulim(gintv, cfa[indx-v1], cfa[indx+v1]) - c
					if 3*vcd[indx] < -(gintv + c) {
						vcd[indx] = lim
					} else {
						w := 1 + 3*vcd[indx]/(amazeEps+gintv+c)
						vcd[indx] = w*vcd[indx] + (1-w)*lim
					}
				}
				if ginth > clip {
					hcd[indx] = ulim(ginth, cfa[indx-1], cfa[indx+1]) - c
				}
				if gintv > clip {
					vcd[indx] = ulim(gintv, cfa[indx-v1], cfa[indx+v1]) - c
				}
			}
			t.cddiffsq[indx] = sqr(vcd[indx] - hcd[indx])
		}
	}
}

// sqDev returns the summed squared deviation of four samples from their
// sum-based mean proxy.
func sqDev(a, b, c, d, ave float32) float32 {
	return sqr(a-ave) + sqr(b-ave) + sqr(c-ave) + sqr(d-ave)
}

// directionWeights computes the horizontal/vertical blend weight at red and
// blue sites from colour-difference variances and interpolation fluctuation.
func (t *amazeTile) directionWeights() {
	const ts, v1, v2, v3 = amazeTileSize, amazeTileSize, 2 * amazeTileSize, 3 * amazeTileSize
	vcd, hcd, d0, d1 := t.vcd, t.hcd, t.dirwts0, t.dirwts1
	for rr := 6; rr < ts-6; rr++ {
		for cc := t.rbStart(rr, 6); cc < ts-6; cc += 2 {
			indx := rr*ts + cc
			uave := vcd[indx] + vcd[indx-v1] + vcd[indx-v2] + vcd[indx-v3]
			dave := vcd[indx] + vcd[indx+v1] + vcd[indx+v2] + vcd[indx+v3]
			lave := hcd[indx] + hcd[indx-1] + hcd[indx-2] + hcd[indx-3]
			rave := hcd[indx] + hcd[indx+1] + hcd[indx+2] + hcd[indx+3]

			varu := sqDev(vcd[indx], vcd[indx-v1], vcd[indx-v2], vcd[indx-v3], uave)
			vard := sqDev(vcd[indx], vcd[indx+v1], vcd[indx+v2], vcd[indx+v3], dave)
			varl := sqDev(hcd[indx], hcd[indx-1], hcd[indx-2], hcd[indx-3], lave)
			varr := sqDev(hcd[indx], hcd[indx+1], hcd[indx+2], hcd[indx+3], rave)

			hwt := d1[indx-1] / (d1[indx-1] + d1[indx+1])
			vwt := d0[indx-v1] / (d0[indx+v1] + d0[indx-v1])

			vcdvar := amazeEpsSq + vwt*vard + (1-vwt)*varu
			hcdvar := amazeEpsSq + hwt*varr + (1-hwt)*varl

			flu := t.dgintv[indx] + t.dgintv[indx-v1] + t.dgintv[indx-v2]
			fld := t.dgintv[indx] + t.dgintv[indx+v1] + t.dgintv[indx+v2]
			fll := t.dginth[indx] + t.dginth[indx-1] + t.dginth[indx-2]
			flr := t.dginth[indx] + t.dginth[indx+1] + t.dginth[indx+2]
			vcdvar1 := amazeEpsSq + vwt*fld + (1-vwt)*flu
			hcdvar1 := amazeEpsSq + hwt*flr + (1-hwt)*fll

			varwt := hcdvar / (vcdvar + hcdvar)
			diffwt := hcdvar1 / (vcdvar1 + hcdvar1)

			// Prefer the variance weight only when both agree on the
			// direction and it discriminates more strongly.
			if (0.5-varwt)*(0.5-diffwt) > 0 && absf(0.5-diffwt) < absf(0.5-varwt) {
				t.hvwt[indx] = varwt
			} else {
				t.hvwt[indx] = diffwt
			}
		}
	}
}

// nyquistTest flags red/blue sites where the colour-difference disagreement
// between directions exceeds the local luminance gradient energy.
func (t *amazeTile) nyquistTest() {
	const ts = amazeTileSize
	const v1, v2 = ts, 2 * ts
	const m1, p1, m2, p2 = ts + 1, -ts + 1, 2*ts + 2, -2*ts + 2
	cd, dh, dv := t.cddiffsq, t.delhsq, t.delvsq
	g := func(i int) float32 { return dh[i] + dv[i] }
	for rr := 6; rr < ts-6; rr++ {
		for cc := t.rbStart(rr, 6); cc < ts-6; cc += 2 {
			indx := rr*ts + cc
			tex := gaussOdd[0]*cd[indx] +
				gaussOdd[1]*(cd[indx-m1]+cd[indx+p1]+cd[indx-p1]+cd[indx+m1]) +
				gaussOdd[2]*(cd[indx-v2]+cd[indx-2]+cd[indx+2]+cd[indx+v2]) +
				gaussOdd[3]*(cd[indx-m2]+cd[indx+p2]+cd[indx-p2]+cd[indx+m2])

			grad := gaussGrad[0]*g(indx) +
				gaussGrad[1]*(g(indx-v1)+g(indx+1)+g(indx-1)+g(indx+v1)) +
				gaussGrad[2]*(g(indx-m1)+g(indx+p1)+g(indx-p1)+g(indx+m1)) +
				gaussGrad[3]*(g(indx-v2)+g(indx-2)+g(indx+2)+g(indx+v2)) +
				gaussGrad[4]*(g(indx-v2-1)+g(indx-v2+1)+g(indx-ts-2)+g(indx-ts+2)+
					g(indx+ts-2)+g(indx+ts+2)+g(indx+v2-1)+g(indx+v2+1)) +
				gaussGrad[5]*(g(indx-m2)+g(indx+p2)+g(indx-p2)+g(indx+m2))

			if tex > grad {
				t.nyquist[indx] = 1
			}
		}
	}

	// Majority vote over the nine same-lattice neighbours.
	ny := t.nyquist
	for rr := 8; rr < ts-8; rr++ {
		for cc := t.rbStart(rr, 8); cc < ts-8; cc += 2 {
			indx := rr*ts + cc
			votes := ny[indx-v2] + ny[indx-m1] + ny[indx+p1] + ny[indx-2] + ny[indx] +
				ny[indx+2] + ny[indx-p1] + ny[indx+m1] + ny[indx+v2]
			if votes > 4 {
				t.nyquist2[indx] = 1
			}
		}
	}
}

// nyquistArea replaces the directional weight with an area-based estimate
// inside Nyquist texture.
func (t *amazeTile) nyquistArea() {
	const ts, v1 = amazeTileSize, amazeTileSize
	cfa := t.cfa
	for rr := 8; rr < ts-8; rr++ {
		for cc := t.rbStart(rr, 8); cc < ts-8; cc += 2 {
			indx := rr*ts + cc
			if t.nyquist2[indx] == 0 {
				continue
			}
			var sumh, sumv, sumsqh, sumsqv, areawt float32
			for i := -6; i < 7; i += 2 {
				y := rr + i
				if y < 1 || y >= ts-1 {
					continue
				}
				for j := -6; j < 7; j += 2 {
					x := cc + j
					if x < 1 || x >= ts-1 {
						continue
					}
					k := y*ts + x
					if t.nyquist2[k] == 0 {
						continue
					}
					sumh += cfa[k] - 0.5*(cfa[k-1]+cfa[k+1])
					sumv += cfa[k] - 0.5*(cfa[k-v1]+cfa[k+v1])
					sumsqh += 0.5 * (sqr(cfa[k]-cfa[k-1]) + sqr(cfa[k]-cfa[k+1]))
					sumsqv += 0.5 * (sqr(cfa[k]-cfa[k-v1]) + sqr(cfa[k]-cfa[k+v1]))
					areawt++
				}
			}
			hcdvar := amazeEpsSq + absf(areawt*sumsqh-sumh*sumh)
			vcdvar := amazeEpsSq + absf(areawt*sumsqv-sumv*sumv)
			t.hvwt[indx] = hcdvar / (vcdvar + hcdvar)
		}
	}
}

// greenAtRB produces green at red and blue sites from the blended colour
// differences.
func (t *amazeTile) greenAtRB() {
	const ts, v1 = amazeTileSize, amazeTileSize
	const m1, p1 = ts + 1, -ts + 1
	hv := t.hvwt
	for rr := 8; rr < ts-8; rr++ {
		for cc := t.rbStart(rr, 8); cc < ts-8; cc += 2 {
			indx := rr*ts + cc
			alt := 0.25 * (hv[indx-m1] + hv[indx+p1] + hv[indx-p1] + hv[indx+m1])
			if absf(0.5-hv[indx]) < absf(0.5-alt) {
				hv[indx] = alt
			}
			t.dgrb0[indx] = t.hcd[indx]*(1-hv[indx]) + t.vcd[indx]*hv[indx]
			t.green[indx] = t.cfa[indx] + t.dgrb0[indx]
			if t.nyquist2[indx] != 0 {
				gr := t.green
				t.dgrbh2[indx] = sqr(gr[indx] - 0.5*(gr[indx-1]+gr[indx+1]))
				t.dgrbv2[indx] = sqr(gr[indx] - 0.5*(gr[indx-v1]+gr[indx+v1]))
			} else {
				t.dgrbh2[indx] = 0
				t.dgrbv2[indx] = 0
			}
		}
	}
}

// nyquistRefine re-weights green inside Nyquist texture using the local
// curvature of the provisional green plane.
func (t *amazeTile) nyquistRefine() {
	const ts, v2 = amazeTileSize, 2 * amazeTileSize
	const m1, p1, m2, p2 = ts + 1, -ts + 1, 2*ts + 2, -2*ts + 2
	quinc := func(d []float32, indx int) float32 {
		return amazeEpsSq + gQuinc[0]*d[indx] +
			gQuinc[1]*(d[indx-m1]+d[indx+p1]+d[indx-p1]+d[indx+m1]) +
			gQuinc[2]*(d[indx-v2]+d[indx-2]+d[indx+2]+d[indx+v2]) +
			gQuinc[3]*(d[indx-m2]+d[indx+p2]+d[indx-p2]+d[indx+m2])
	}
	for rr := 8; rr < ts-8; rr++ {
		for cc := t.rbStart(rr, 8); cc < ts-8; cc += 2 {
			indx := rr*ts + cc
			if t.nyquist2[indx] == 0 {
				continue
			}
			gvarh := quinc(t.dgrbh2, indx)
			gvarv := quinc(t.dgrbv2, indx)
			t.dgrb0[indx] = (t.hcd[indx]*gvarv + t.vcd[indx]*gvarh) / (gvarv + gvarh)
			t.green[indx] = t.cfa[indx] + t.dgrb0[indx]
		}
	}
}

// diagonalGradients fills the diagonal gradients at red/blue sites and the
// diagonal colour energies at green sites.
func (t *amazeTile) diagonalGradients() {
	const ts = amazeTileSize
	const m1, p1 = ts + 1, -ts + 1
	cfa := t.cfa
	for rr := 6; rr < ts-6; rr++ {
		for cc := 6; cc < ts-6; cc++ {
			indx := rr*ts + cc
			if t.fc(rr, cc) != raw.Green {
				t.delp[indx] = absf(cfa[indx+p1] - cfa[indx-p1])
				t.delm[indx] = absf(cfa[indx+m1] - cfa[indx-m1])
			} else {
				t.dgrbpsq1[indx] = sqr(cfa[indx]-cfa[indx-p1]) + sqr(cfa[indx]-cfa[indx+p1])
				t.dgrbmsq1[indx] = sqr(cfa[indx]-cfa[indx-m1]) + sqr(cfa[indx]-cfa[indx+m1])
			}
		}
	}
}

// diagEstimate is ratioEstimate for the diagonal neighbour pair.
func diagEstimate(center, near, far float32) float32 {
	cr := 2 * near / (amazeEps + center + far)
	if absf(1-cr) < arThresh {
		return center * cr
	}
	return near + 0.5*(center-far)
}

// diagonalRB interpolates the opposite chroma at red/blue sites along the
// two diagonals and weights them by their colour-difference variance.
func (t *amazeTile) diagonalRB() {
	const ts, v1, v2 = amazeTileSize, amazeTileSize, 2 * amazeTileSize
	const m1, p1, m2, p2 = ts + 1, -ts + 1, 2*ts + 2, -2*ts + 2
	cfa, dm, dp := t.cfa, t.delm, t.delp
	even := func(d []float32, indx int) float32 {
		return amazeEpsSq + gaussEven[0]*(d[indx-v1]+d[indx-1]+d[indx+1]+d[indx+v1]) +
			gaussEven[1]*(d[indx-v2-1]+d[indx-v2+1]+d[indx-2-v1]+d[indx+2-v1]+
				d[indx-2+v1]+d[indx+2+v1]+d[indx+v2-1]+d[indx+v2+1])
	}
	for rr := 8; rr < ts-8; rr++ {
		for cc := t.rbStart(rr, 8); cc < ts-8; cc += 2 {
			indx := rr*ts + cc
			c := cfa[indx]
			rbse := diagEstimate(c, cfa[indx+m1], cfa[indx+m2])
			rbnw := diagEstimate(c, cfa[indx-m1], cfa[indx-m2])
			rbne := diagEstimate(c, cfa[indx+p1], cfa[indx+p2])
			rbsw := diagEstimate(c, cfa[indx-p1], cfa[indx-p2])

			wtse := amazeEps + dm[indx] + dm[indx+m1] + dm[indx+m2]
			wtnw := amazeEps + dm[indx] + dm[indx-m1] + dm[indx-m2]
			wtne := amazeEps + dp[indx] + dp[indx+p1] + dp[indx+p2]
			wtsw := amazeEps + dp[indx] + dp[indx-p1] + dp[indx-p2]

			t.rbm[indx] = (wtse*rbnw + wtnw*rbse) / (wtse + wtnw)
			t.rbp[indx] = (wtne*rbsw + wtsw*rbne) / (wtne + wtsw)

			rbvarm := even(t.dgrbmsq1, indx)
			rbvarp := even(t.dgrbpsq1, indx)
			t.pmwt[indx] = rbvarm / (rbvarp + rbvarm)

			t.rbp[indx] = boundDiag(t.rbp[indx], c, cfa[indx-p1], cfa[indx+p1], t.clip)
			t.rbm[indx] = boundDiag(t.rbm[indx], c, cfa[indx-m1], cfa[indx+m1], t.clip)
		}
	}

	pm := t.pmwt
	for rr := 10; rr < ts-10; rr++ {
		for cc := t.rbStart(rr, 10); cc < ts-10; cc += 2 {
			indx := rr*ts + cc
			alt := 0.25 * (pm[indx-m1] + pm[indx+p1] + pm[indx-p1] + pm[indx+m1])
			if absf(0.5-pm[indx]) < absf(0.5-alt) {
				pm[indx] = alt
			}
			t.rbint[indx] = 0.5 * (cfa[indx] + t.rbm[indx]*(1-pm[indx]) + t.rbp[indx]*pm[indx])
		}
	}
}

// boundDiag limits a diagonal estimate near saturation and where it falls
// far below the centre sample.
func boundDiag(est, center, a, b, clip float32) float32 {
	if est < center {
		if 2*est < center {
			est = ulim(est, a, b)
		} else {
			w := 2 * (center - est) / (amazeEps + est + center)
			est = w*est + (1-w)*ulim(est, a, b)
		}
	}
	if est > clip {
		est = ulim(est, a, b)
	}
	return est
}

// greenFromRB re-interpolates green at red/blue sites from the combined
// red+blue estimate where the diagonal discrimination is stronger than the
// cardinal one.
func (t *amazeTile) greenFromRB() {
	const ts, v1, v2 = amazeTileSize, amazeTileSize, 2 * amazeTileSize
	cfa, rb, d0, d1 := t.cfa, t.rbint, t.dirwts0, t.dirwts1
	est := func(near, rbc, rbfar float32) float32 {
		cr := near * 2 / (amazeEps + rbc + rbfar)
		if absf(1-cr) < arThresh {
			return rbc * cr
		}
		return near + 0.5*(rbc-rbfar)
	}
	for rr := 12; rr < ts-12; rr++ {
		for cc := t.rbStart(rr, 12); cc < ts-12; cc += 2 {
			indx := rr*ts + cc
			if absf(0.5-t.pmwt[indx]) < absf(0.5-t.hvwt[indx]) {
				continue
			}
			gu := est(cfa[indx-v1], rb[indx], rb[indx-v2])
			gd := est(cfa[indx+v1], rb[indx], rb[indx+v2])
			gl := est(cfa[indx-1], rb[indx], rb[indx-2])
			gr := est(cfa[indx+1], rb[indx], rb[indx+2])

			gintv := (d0[indx-v1]*gd + d0[indx+v1]*gu) / (d0[indx+v1] + d0[indx-v1])
			ginth := (d1[indx-1]*gr + d1[indx+1]*gl) / (d1[indx-1] + d1[indx+1])

			gintv = boundDiag(gintv, rb[indx], cfa[indx-v1], cfa[indx+v1], t.clip)
			ginth = boundDiag(ginth, rb[indx], cfa[indx-1], cfa[indx+1], t.clip)

			t.green[indx] = ginth*(1-t.hvwt[indx]) + gintv*t.hvwt[indx]
			t.dgrb0[indx] = t.green[indx] - cfa[indx]
		}
	}
}

// chroma splits the colour differences into G-R and G-B planes and fills
// the missing one at every red/blue site with an edge-weighted diagonal
// kernel.
func (t *amazeTile) chroma() {
	const ts, v2 = amazeTileSize, 2 * amazeTileSize
	const m1, p1, m3, p3 = ts + 1, -ts + 1, 3*ts + 3, -3*ts + 3

	for rr := 8; rr < ts-8; rr++ {
		for cc := t.rbStart(rr, 8); cc < ts-8; cc += 2 {
			indx := rr*ts + cc
			if t.fc(rr, cc) == raw.Blue {
				t.dgrb1[indx] = t.dgrb0[indx]
				t.dgrb0[indx] = 0
			}
		}
	}

	for rr := 12; rr < ts-12; rr++ {
		for cc := t.rbStart(rr, 12); cc < ts-12; cc += 2 {
			indx := rr*ts + cc
			d := t.dgrb1
			if t.fc(rr, cc) == raw.Blue {
				d = t.dgrb0
			}
			wtnw := 1 / (amazeEps + absf(d[indx-m1]-d[indx+m1]) + absf(d[indx-m1]-d[indx-m3]) + absf(d[indx+m1]-d[indx-m3]))
			wtne := 1 / (amazeEps + absf(d[indx+p1]-d[indx-p1]) + absf(d[indx+p1]-d[indx+p3]) + absf(d[indx-p1]-d[indx+p3]))
			wtsw := 1 / (amazeEps + absf(d[indx-p1]-d[indx+p1]) + absf(d[indx-p1]-d[indx+m3]) + absf(d[indx+p1]-d[indx-p3]))
			wtse := 1 / (amazeEps + absf(d[indx+m1]-d[indx-m1]) + absf(d[indx+m1]-d[indx-p3]) + absf(d[indx-m1]-d[indx+m3]))

			d[indx] = (wtnw*(1.325*d[indx-m1]-0.175*d[indx-m3]-0.075*d[indx-m1-2]-0.075*d[indx-m1-v2]) +
				wtne*(1.325*d[indx+p1]-0.175*d[indx+p3]-0.075*d[indx+p1+2]-0.075*d[indx+p1+v2]) +
				wtsw*(1.325*d[indx-p1]-0.175*d[indx-p3]-0.075*d[indx-p1-2]-0.075*d[indx-p1-v2]) +
				wtse*(1.325*d[indx+m1]-0.175*d[indx+m3]-0.075*d[indx+m1+2]-0.075*d[indx+m1+v2])) /
				(wtnw + wtne + wtsw + wtse)
		}
	}
}

// pixel returns the encoded RGB value at tile position (rr, cc). Green sites
// take their chroma from the four cardinal red/blue neighbours weighted by
// the direction weights.
func (t *amazeTile) pixel(rr, cc int) (r, g, b float32) {
	const ts, v1 = amazeTileSize, amazeTileSize
	indx := rr*ts + cc
	g = t.green[indx]
	if t.fc(rr, cc) != raw.Green {
		return g - t.dgrb0[indx], g, g - t.dgrb1[indx]
	}
	hv := t.hvwt
	wu, wr, wl, wd := hv[indx-v1], 1-hv[indx+1], 1-hv[indx-1], hv[indx+v1]
	norm := 1 / (wu + wr + wl + wd)
	d0, d1 := t.dgrb0, t.dgrb1
	r = g - (wu*d0[indx-v1]+wr*d0[indx+1]+wl*d0[indx-1]+wd*d0[indx+v1])*norm
	b = g - (wu*d1[indx-v1]+wr*d1[indx+1]+wl*d1[indx-1]+wd*d1[indx+v1])*norm
	return r, g, b
}
