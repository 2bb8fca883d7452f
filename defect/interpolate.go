package defect

import (
	"math"

	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// Mode selects the neighbours used to rebuild a defective sample.
type Mode uint8

const (
	// FourDir averages the same-colour neighbours on both axes.
	FourDir Mode = iota

	// Horizontal uses only the same row. Dual-ISO frames need it because
	// the rows above and below carry the other exposure.
	Horizontal
)

func (m Mode) String() string {
	if m == Horizontal {
		return "horizontal"
	}
	return "four-direction"
}

// edgeMargin is the distance from the border inside which samples are
// copied from the nearest usable neighbour.
const edgeMargin = 2

// nearestOffsets lists same-colour offsets by increasing distance.
var nearestOffsets = [][2]int{
	{-2, 0}, {2, 0}, {0, -2}, {0, 2},
	{-2, -2}, {2, -2}, {-2, 2}, {2, 2},
	{-4, 0}, {4, 0}, {0, -4}, {0, 4},
}

// Interpolate replaces every point of pts in p with an estimate from its
// same-colour neighbours. Averages are taken in the EV domain; each axis is
// weighted by how flat it is, so edges are followed rather than blurred.
// Neighbours that are themselves listed in pts are never used. lut must be
// built for p's black level.
func Interpolate(p *raw.Plane, pts []Point, lut *evlut.Table, mode Mode, cfg parallel.Config) int {
	w, h := p.Width, p.Height
	if len(pts) == 0 || w <= 0 || h <= 0 {
		return 0
	}
	defective := make([]bool, w*h)
	for _, pt := range pts {
		if pt.X >= 0 && pt.Y >= 0 && pt.X < w && pt.Y < h {
			defective[pt.Y*w+pt.X] = true
		}
	}
	usable := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && !defective[y*w+x]
	}

	fixed := make([]float32, len(pts))
	ok := make([]bool, len(pts))
	parallel.Items(cfg, len(pts), func(r parallel.Range) {
		for i := r.Start; i < r.End; i++ {
			pt := pts[i]
			if pt.X < 0 || pt.Y < 0 || pt.X >= w || pt.Y >= h {
				continue
			}
			fixed[i], ok[i] = estimate(p, pt, lut, mode, usable)
		}
	})

	n := 0
	for i, pt := range pts {
		if ok[i] {
			p.Pix[pt.Y*w+pt.X] = fixed[i]
			n++
		}
	}
	return n
}

func estimate(p *raw.Plane, pt Point, lut *evlut.Table, mode Mode, usable func(x, y int) bool) (float32, bool) {
	x, y := pt.X, pt.Y
	w := p.Width
	ev := func(x, y int) int32 { return lut.EVf(p.Pix[y*w+x]) }

	edge := x < edgeMargin || x >= p.Width-edgeMargin
	if mode == FourDir {
		edge = edge || y < edgeMargin || y >= p.Height-edgeMargin
	}
	if !edge {
		axes := [][2][2]int{{{-2, 0}, {2, 0}}}
		if mode == FourDir {
			axes = append(axes, [2][2]int{{0, -2}, {0, 2}})
		} else {
			axes = append(axes, [2][2]int{{-4, 0}, {4, 0}})
		}
		var num, den float64
		for _, ax := range axes {
			a, b := ax[0], ax[1]
			okA, okB := usable(x+a[0], y+a[1]), usable(x+b[0], y+b[1])
			switch {
			case okA && okB:
				ea, eb := ev(x+a[0], y+a[1]), ev(x+b[0], y+b[1])
				grad := float64(absInt32(ea-eb)) / evlut.Resolution
				wt := 1 / (1 + grad*grad)
				num += wt * float64(ea+eb) / 2
				den += wt
			case okA || okB:
				o := a
				if okB {
					o = b
				}
				const wt = 0.5
				num += wt * float64(ev(x+o[0], y+o[1]))
				den += wt
			}
		}
		if den > 0 {
			e := num / den
			return float32(lut.Raw(int32(math.Round(e)))), true
		}
	}

	for _, o := range nearestOffsets {
		if mode == Horizontal && o[1] != 0 {
			continue
		}
		if usable(x+o[0], y+o[1]) {
			return p.Pix[(y+o[1])*w+x+o[0]], true
		}
	}
	return 0, false
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
