package defect

import (
	"slices"

	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// Detection thresholds.
const (
	// ColdNoiseFactor times the dark noise below black marks a cold pixel.
	ColdNoiseFactor = 8

	// HotEV is how far above the second-highest same-colour neighbour a
	// hot pixel sits.
	HotEV = 2

	// AggressiveHotEV is the threshold against the third-highest neighbour
	// in aggressive mode.
	AggressiveHotEV = 1
)

// DefaultDarkNoise is used when no dark noise estimate is supplied.
const DefaultDarkNoise = 8

// DetectOptions tunes DetectBadPixels.
type DetectOptions struct {
	// Aggressive compares against the third-highest neighbour with a 1 EV
	// threshold instead of the second-highest with 2 EV.
	Aggressive bool

	// DarkNoise is the standard deviation of the black level in raw units.
	DarkNoise float32

	// DualISO restricts the neighbourhood to the same row, since the rows
	// above and below belong to the other exposure.
	DualISO bool
}

func (o DetectOptions) darkNoise() float32 {
	if o.DarkNoise > 0 {
		return o.DarkNoise
	}
	return DefaultDarkNoise
}

// Same-colour neighbour offsets on a Bayer mosaic.
var (
	neighbours8 = [][2]int{
		{-2, -2}, {0, -2}, {2, -2},
		{-2, 0}, {2, 0},
		{-2, 2}, {0, 2}, {2, 2},
	}
	neighboursRow = [][2]int{{-4, 0}, {-2, 0}, {2, 0}, {4, 0}}
)

// DetectBadPixels returns the hot and cold pixels of p in row-major order.
// lut must be built for p's black level.
func DetectBadPixels(p *raw.Plane, lut *evlut.Table, opts DetectOptions, cfg parallel.Config) []Point {
	w, h := p.Width, p.Height
	cold := p.Black - ColdNoiseFactor*opts.darkNoise()
	offs := neighbours8
	if opts.DualISO {
		offs = neighboursRow
	}
	rank, limit := 1, int32(HotEV*evlut.Resolution)
	if opts.Aggressive {
		rank, limit = 2, int32(AggressiveHotEV*evlut.Resolution)
	}

	found := make([][]Point, h)
	parallel.Rows(cfg, h, func(r parallel.Range) {
		evs := make([]int32, 0, len(offs))
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < w; x++ {
				v := p.Pix[y*w+x]
				if v < cold {
					found[y] = append(found[y], Point{x, y})
					continue
				}
				evs = evs[:0]
				for _, o := range offs {
					nx, ny := x+o[0], y+o[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					evs = append(evs, lut.EVf(p.Pix[ny*w+nx]))
				}
				if len(evs) <= rank {
					continue
				}
				slices.Sort(evs)
				ref := evs[len(evs)-1-rank]
				if lut.EVf(v)-ref > limit {
					found[y] = append(found[y], Point{x, y})
				}
			}
		}
	})

	var pts []Point
	for _, row := range found {
		pts = append(pts, row...)
	}
	return pts
}
