package defect

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

const (
	// patternReach is how many same-colour neighbours on each side feed the
	// horizontal median.
	patternReach = 4

	// patternEdgeEV stops the median at steps larger than this.
	patternEdgeEV = 1

	// patternSaturation is the fraction of the white level above which
	// samples are ignored.
	patternSaturation = 0.95
)

// PatternOffsets holds the per-column and per-row corrections that were
// subtracted by FixPatternNoise.
type PatternOffsets struct {
	Columns []float32
	Rows    []float32
}

// FixPatternNoise removes constant column offsets and then, working on the
// transposed plane, constant row offsets. lut must be built for p's black
// level.
func FixPatternNoise(p *raw.Plane, lut *evlut.Table, cfg parallel.Config) PatternOffsets {
	var off PatternOffsets
	off.Columns = fixColumns(p, lut, cfg)

	t := p.Transpose()
	off.Rows = fixColumns(t, lut, cfg)
	back := t.Transpose()
	copy(p.Pix, back.Pix)
	return off
}

// fixColumns estimates and subtracts a constant offset for every column.
// The offset is the median, over the column, of the difference between each
// sample and an edge-aware horizontal median of its row. Offsets are then
// centred per CFA column phase so the overall colour balance is unchanged.
func fixColumns(p *raw.Plane, lut *evlut.Table, cfg parallel.Config) []float32 {
	w, h := p.Width, p.Height
	if w < 3 || h < 1 {
		return make([]float32, max(w, 0))
	}
	sat := p.Black + (p.White-p.Black)*patternSaturation
	diff := make([]float32, w*h)

	parallel.Rows(cfg, h, func(r parallel.Range) {
		var buf [2*patternReach + 1]float32
		for y := r.Start; y < r.End; y++ {
			row := p.Pix[y*w : (y+1)*w]
			for x, v := range row {
				i := y*w + x
				if v >= sat {
					diff[i] = float32(math.NaN())
					continue
				}
				ev := lut.EVf(v)
				vals := append(buf[:0], v)
				for _, dir := range [2]int{-1, 1} {
					for k := 1; k <= patternReach; k++ {
						nx := x + dir*2*k
						if nx < 0 || nx >= w {
							break
						}
						n := row[nx]
						if n >= sat || absInt32(lut.EVf(n)-ev) > patternEdgeEV*evlut.Resolution {
							break
						}
						vals = append(vals, n)
					}
				}
				if len(vals) < 3 {
					diff[i] = float32(math.NaN())
					continue
				}
				slices.Sort(vals)
				diff[i] = v - vals[len(vals)/2]
			}
		}
	})

	offsets := make([]float32, w)
	parallel.Items(cfg, w, func(r parallel.Range) {
		col := make([]float64, 0, h)
		for x := r.Start; x < r.End; x++ {
			col = col[:0]
			for y := 0; y < h; y++ {
				if d := diff[y*w+x]; !math.IsNaN(float64(d)) {
					col = append(col, float64(d))
				}
			}
			offsets[x] = float32(median(col))
		}
	})

	// Centre each column phase on zero.
	for phase := 0; phase < 2; phase++ {
		var vals []float64
		for x := phase; x < w; x += 2 {
			vals = append(vals, float64(offsets[x]))
		}
		m := float32(median(vals))
		for x := phase; x < w; x += 2 {
			offsets[x] -= m
		}
	}

	parallel.Rows(cfg, h, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			row := p.Pix[y*w : (y+1)*w]
			for x := range row {
				if row[x] >= sat {
					continue
				}
				row[x] = max(row[x]-offsets[x], 0)
			}
		}
	})
	return offsets
}

// median sorts xs in place and returns its median, or 0 when empty.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sort.Float64s(xs)
	return stat.Quantile(0.5, stat.Empirical, xs, nil)
}
