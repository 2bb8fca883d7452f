package demosaic

import (
	"github.com/mrjoshuak/go-rawrecon/internal/arena"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// RCD (ratio corrected demosaicing) tiles: rcdTileSize squares whose
// rcdBorder-wide halo overlaps the neighbouring tiles and is discarded.
const (
	rcdTileSize = 194
	rcdBorder   = 9

	// rcdEdge is the width of the image frame filled by the 3x3 border
	// demosaic instead of the tiled core.
	rcdEdge = 4
)

const (
	rcdEps   = 1e-5
	rcdEpsSq = 1e-10
)

type rcdEngine struct {
	ctx *Context
}

func (e *rcdEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	const ts = rcdTileSize
	g := newTileGrid(in.Width, in.Height, ts, rcdBorder)
	pool := e.ctx.tilePool("rcd", 9*ts*ts, 0)

	err := e.ctx.runTiles(g, cfg, pool, func(a *arena.Arena, top, left int) {
		t := &rcdTile{
			cfaLayout: in.CFA,
			top:       top,
			left:      left,
			cfa:       a.Float32("cfa", ts*ts),
			vhDir:     a.Float32("vhdir", ts*ts),
			pqDir:     a.Float32("pqdir", ts*ts),
			lpf:       a.Float32("lpf", ts*ts),
			hpfV:      a.Float32("hpfv", ts*ts),
			hpfH:      a.Float32("hpfh", ts*ts),
		}
		t.rgb[raw.Red] = a.Float32("red", ts*ts)
		t.rgb[raw.Green] = a.Float32("green", ts*ts)
		t.rgb[raw.Blue] = a.Float32("blue", ts*ts)
		loadTile(in, top, left, ts, 0, 65535, t.cfa)
		for i, v := range t.cfa {
			if v > 1 {
				t.cfa[i] = 1
			}
		}
		t.run()
		storeCore(out, g, top, left, func(rr, cc int) (float32, float32, float32) {
			i := rr*ts + cc
			return t.rgb[raw.Red][i] * 65535, t.rgb[raw.Green][i] * 65535, t.rgb[raw.Blue][i] * 65535
		})
	})
	if err != nil {
		return err
	}
	borderDemosaic(in, out, rcdEdge, cfg)
	return nil
}

type rcdTile struct {
	cfaLayout raw.CFA
	top, left int

	cfa        []float32
	rgb        [3][]float32
	vhDir      []float32
	pqDir      []float32
	lpf        []float32
	hpfV, hpfH []float32
}

func (t *rcdTile) fc(rr, cc int) int {
	return t.cfaLayout.Color(t.left+cc, t.top+rr)
}

func (t *rcdTile) rbStart(rr, from int) int {
	if t.fc(rr, from) == raw.Green {
		return from + 1
	}
	return from
}

func (t *rcdTile) greenStart(rr, from int) int {
	if t.fc(rr, from) != raw.Green {
		return from + 1
	}
	return from
}

func (t *rcdTile) run() {
	const ts = rcdTileSize
	for rr := 0; rr < ts; rr++ {
		for cc := 0; cc < ts; cc++ {
			i := rr*ts + cc
			t.rgb[t.fc(rr, cc)][i] = t.cfa[i]
		}
	}
	t.directions()
	t.lowPass()
	t.green()
	t.diagonals()
	t.redBlueAtRB()
	t.redBlueAtGreen()
}

// hpf is the seven-tap colour-difference high pass filter along stride s,
// squared.
func hpf(cfa []float32, i, s int) float32 {
	return sqr((cfa[i-3*s] - cfa[i-s] - cfa[i+s] + cfa[i+3*s]) - 3*(cfa[i-2*s]+cfa[i+2*s]) + 6*cfa[i])
}

// directions measures vertical versus horizontal discrimination.
func (t *rcdTile) directions() {
	const ts, w1 = rcdTileSize, rcdTileSize
	for rr := 3; rr < ts-3; rr++ {
		for cc := 3; cc < ts-3; cc++ {
			i := rr*ts + cc
			t.hpfV[i] = hpf(t.cfa, i, w1)
			t.hpfH[i] = hpf(t.cfa, i, 1)
		}
	}
	for rr := 4; rr < ts-4; rr++ {
		for cc := 4; cc < ts-4; cc++ {
			i := rr*ts + cc
			vStat := maxf(rcdEpsSq, t.hpfV[i-w1]+t.hpfV[i]+t.hpfV[i+w1])
			hStat := maxf(rcdEpsSq, t.hpfH[i-1]+t.hpfH[i]+t.hpfH[i+1])
			t.vhDir[i] = vStat / (vStat + hStat)
		}
	}
}

// lowPass is a 3x3 low pass mixing all three colours, evaluated at red and
// blue sites.
func (t *rcdTile) lowPass() {
	const ts, w1 = rcdTileSize, rcdTileSize
	cfa := t.cfa
	for rr := 2; rr < ts-2; rr++ {
		for cc := t.rbStart(rr, 2); cc < ts-2; cc += 2 {
			i := rr*ts + cc
			t.lpf[i] = cfa[i] +
				0.5*(cfa[i-w1]+cfa[i+w1]+cfa[i-1]+cfa[i+1]) +
				0.25*(cfa[i-w1-1]+cfa[i-w1+1]+cfa[i+w1-1]+cfa[i+w1+1])
		}
	}
}

// refine swaps the central discrimination for the diagonal neighbourhood
// average when the latter is more decisive.
func refine(dir []float32, i, w int) float32 {
	central := dir[i]
	neigh := 0.25 * (dir[i-w-1] + dir[i-w+1] + dir[i+w-1] + dir[i+w+1])
	if absf(0.5-central) < absf(0.5-neigh) {
		return neigh
	}
	return central
}

// green interpolates green at red and blue sites.
func (t *rcdTile) green() {
	const ts = rcdTileSize
	const w1, w2, w3, w4 = ts, 2 * ts, 3 * ts, 4 * ts
	cfa, lpf := t.cfa, t.lpf
	for rr := 4; rr < ts-4; rr++ {
		for cc := t.rbStart(rr, 4); cc < ts-4; cc += 2 {
			i := rr*ts + cc

			nGrad := rcdEps + absf(cfa[i-w1]-cfa[i+w1]) + absf(cfa[i]-cfa[i-w2]) + absf(cfa[i-w1]-cfa[i-w3]) + absf(cfa[i-w2]-cfa[i-w4])
			sGrad := rcdEps + absf(cfa[i+w1]-cfa[i-w1]) + absf(cfa[i]-cfa[i+w2]) + absf(cfa[i+w1]-cfa[i+w3]) + absf(cfa[i+w2]-cfa[i+w4])
			wGrad := rcdEps + absf(cfa[i-1]-cfa[i+1]) + absf(cfa[i]-cfa[i-2]) + absf(cfa[i-1]-cfa[i-3]) + absf(cfa[i-2]-cfa[i-4])
			eGrad := rcdEps + absf(cfa[i+1]-cfa[i-1]) + absf(cfa[i]-cfa[i+2]) + absf(cfa[i+1]-cfa[i+3]) + absf(cfa[i+2]-cfa[i+4])

			nEst := cfa[i-w1] * (1 + (lpf[i]-lpf[i-w2])/(rcdEps+lpf[i]+lpf[i-w2]))
			sEst := cfa[i+w1] * (1 + (lpf[i]-lpf[i+w2])/(rcdEps+lpf[i]+lpf[i+w2]))
			wEst := cfa[i-1] * (1 + (lpf[i]-lpf[i-2])/(rcdEps+lpf[i]+lpf[i-2]))
			eEst := cfa[i+1] * (1 + (lpf[i]-lpf[i+2])/(rcdEps+lpf[i]+lpf[i+2]))

			vEst := (sGrad*nEst + nGrad*sEst) / (nGrad + sGrad)
			hEst := (wGrad*eEst + eGrad*wEst) / (eGrad + wGrad)

			disc := refine(t.vhDir, i, w1)
			t.rgb[raw.Green][i] = clampf(disc*hEst+(1-disc)*vEst, 0, 1)
		}
	}
}

// diagonals measures P (NW-SE) versus Q (NE-SW) discrimination at red and
// blue sites.
func (t *rcdTile) diagonals() {
	const ts, w1 = rcdTileSize, rcdTileSize
	// hpfV and hpfH are reused for the P and Q filters.
	p, q := t.hpfV, t.hpfH
	clear(p)
	clear(q)
	for rr := 3; rr < ts-3; rr++ {
		for cc := t.rbStart(rr, 3); cc < ts-3; cc += 2 {
			i := rr*ts + cc
			p[i] = hpf(t.cfa, i, w1+1)
			q[i] = hpf(t.cfa, i, w1-1)
		}
	}
	for rr := 4; rr < ts-4; rr++ {
		for cc := t.rbStart(rr, 4); cc < ts-4; cc += 2 {
			i := rr*ts + cc
			pStat := maxf(rcdEpsSq, p[i-w1-1]+p[i]+p[i+w1+1])
			qStat := maxf(rcdEpsSq, q[i-w1+1]+q[i]+q[i+w1-1])
			t.pqDir[i] = pStat / (pStat + qStat)
		}
	}
}

// redBlueAtRB fills the opposite chroma at red and blue sites from the
// diagonal colour differences.
func (t *rcdTile) redBlueAtRB() {
	const ts = rcdTileSize
	const w1, w2, w3 = ts, 2 * ts, 3 * ts
	g := t.rgb[raw.Green]
	for rr := 4; rr < ts-4; rr++ {
		for cc := t.rbStart(rr, 4); cc < ts-4; cc += 2 {
			i := rr*ts + cc
			c := t.rgb[2-t.fc(rr, cc)]
			disc := refine(t.pqDir, i, w1)

			nwGrad := rcdEps + absf(c[i-w1-1]-c[i+w1+1]) + absf(c[i-w1-1]-c[i-w3-3]) + absf(g[i]-g[i-w2-2])
			neGrad := rcdEps + absf(c[i-w1+1]-c[i+w1-1]) + absf(c[i-w1+1]-c[i-w3+3]) + absf(g[i]-g[i-w2+2])
			swGrad := rcdEps + absf(c[i+w1-1]-c[i-w1+1]) + absf(c[i+w1-1]-c[i+w3-3]) + absf(g[i]-g[i+w2-2])
			seGrad := rcdEps + absf(c[i+w1+1]-c[i-w1-1]) + absf(c[i+w1+1]-c[i+w3+3]) + absf(g[i]-g[i+w2+2])

			nwEst := c[i-w1-1] - g[i-w1-1]
			neEst := c[i-w1+1] - g[i-w1+1]
			swEst := c[i+w1-1] - g[i+w1-1]
			seEst := c[i+w1+1] - g[i+w1+1]

			pEst := (nwGrad*seEst + seGrad*nwEst) / (nwGrad + seGrad)
			qEst := (neGrad*swEst + swGrad*neEst) / (neGrad + swGrad)

			c[i] = clampf(g[i]+(1-disc)*pEst+disc*qEst, 0, 1)
		}
	}
}

// redBlueAtGreen fills red and blue at green sites from the cardinal colour
// differences.
func (t *rcdTile) redBlueAtGreen() {
	const ts = rcdTileSize
	const w1, w2, w3 = ts, 2 * ts, 3 * ts
	g := t.rgb[raw.Green]
	for rr := 4; rr < ts-4; rr++ {
		for cc := t.greenStart(rr, 4); cc < ts-4; cc += 2 {
			i := rr*ts + cc
			disc := refine(t.vhDir, i, w1)
			for _, ch := range [2]int{raw.Red, raw.Blue} {
				c := t.rgb[ch]
				nGrad := rcdEps + absf(g[i]-g[i-w2]) + absf(c[i-w1]-c[i+w1]) + absf(c[i-w1]-c[i-w3])
				sGrad := rcdEps + absf(g[i]-g[i+w2]) + absf(c[i+w1]-c[i-w1]) + absf(c[i+w1]-c[i+w3])
				wGrad := rcdEps + absf(g[i]-g[i-2]) + absf(c[i-1]-c[i+1]) + absf(c[i-1]-c[i-3])
				eGrad := rcdEps + absf(g[i]-g[i+2]) + absf(c[i+1]-c[i-1]) + absf(c[i+1]-c[i+3])

				nEst := c[i-w1] - g[i-w1]
				sEst := c[i+w1] - g[i+w1]
				wEst := c[i-1] - g[i-1]
				eEst := c[i+1] - g[i+1]

				vEst := (nGrad*sEst + sGrad*nEst) / (nGrad + sGrad)
				hEst := (eGrad*wEst + wGrad*eEst) / (eGrad + wGrad)

				c[i] = clampf(g[i]+(1-disc)*vEst+disc*hEst, 0, 1)
			}
		}
	}
}

// borderDemosaic recomputes the outer edge pixels of the image by averaging
// each colour over the 3x3 neighbourhood, clipped to the image.
func borderDemosaic(in *Input, out *raw.ColorPlanes, edge int, cfg parallel.Config) {
	w, h := in.Width, in.Height
	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				if y >= edge && y < h-edge && x >= edge && x < w-edge {
					x = w - edge - 1
					continue
				}
				var sum [3]float32
				var n [3]int
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						yy, xx := y+dy, x+dx
						if yy < 0 || yy >= h || xx < 0 || xx >= w {
							continue
						}
						c := in.CFA.Color(xx, yy)
						sum[c] += in.Pix[yy*w+xx]
						n[c]++
					}
				}
				i := y*w + x
				own := in.CFA.Color(x, y)
				vals := [3]float32{}
				for c := 0; c < 3; c++ {
					switch {
					case c == own:
						vals[c] = in.Pix[i]
					case n[c] > 0:
						vals[c] = sum[c] / float32(n[c])
					default:
						vals[c] = in.Pix[i]
					}
				}
				out.R[i], out.G[i], out.B[i] = vals[raw.Red], vals[raw.Green], vals[raw.Blue]
			}
		}
	})
}
