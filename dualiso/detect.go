package dualiso

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mrjoshuak/go-rawrecon/raw"
)

const (
	// maxSamples caps the samples gathered per statistic.
	maxSamples = 1 << 17

	// phaseMinSwitch is the minimum improvement, in summed EV quantile
	// distance, before the CFA phase is flipped.
	phaseMinSwitch = 0.05

	// minInterlaceEV is the smallest brightness gap between the two row
	// groups accepted as interlacing.
	minInterlaceEV = 0.1

	// whiteOutliers is the number of brightest samples ignored as hot
	// pixels when estimating a white level.
	whiteOutliers = 16

	// whiteClipFrac marks an exposure as clipped when its estimate reaches
	// this fraction of the nominal range.
	whiteClipFrac = 0.95

	// whiteMargin is the safety margin below the estimated white level.
	whiteMargin = 0.02

	// minSignal is the smallest usable range above black, in raw units.
	minSignal = 64
)

var phaseQuantiles = []float64{0.1, 0.25, 0.5, 0.75, 0.9}

func log2(v float64) float64 { return math.Log2(v) }

// evAbove returns log2 of v above black, floored at one raw unit.
func evAbove(v, black float32) float64 {
	s := float64(v - black)
	if s < 1 {
		s = 1
	}
	return math.Log2(s)
}

// quantiles sorts xs and returns the requested quantiles.
func quantiles(xs []float64, qs []float64) []float64 {
	sort.Float64s(xs)
	out := make([]float64, len(qs))
	if len(xs) == 0 {
		return out
	}
	for i, q := range qs {
		out[i] = stat.Quantile(q, stat.Empirical, xs, nil)
	}
	return out
}

// stride returns a step that keeps n items under maxSamples.
func stride(n int) int {
	if n <= maxSamples {
		return 1
	}
	return (n + maxSamples - 1) / maxSamples
}

// detectCFAPhase checks which diagonal of the 2x2 Bayer cell carries the
// greens by comparing the EV distributions of the four cell positions. Both
// green positions see the same light, so their distributions agree. The
// plane's layout is kept unless the other diagonal matches clearly better.
func detectCFAPhase(p *raw.Plane) raw.CFA {
	w, h := p.Width, p.Height
	if w < 2 || h < 2 {
		return p.CFA
	}
	var pos [4][]float64
	step := stride(w * h / 4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ((y/2)*(w/2)+x/2)%step != 0 {
				continue
			}
			i := (y&1)<<1 | (x & 1)
			pos[i] = append(pos[i], evAbove(p.Pix[y*w+x], p.Black))
		}
	}
	var q [4][]float64
	for i := range pos {
		q[i] = quantiles(pos[i], phaseQuantiles)
	}
	dist := func(a, b int) float64 {
		var d float64
		for k := range q[a] {
			d += math.Abs(q[a][k] - q[b][k])
		}
		return d
	}
	anti := dist(1, 2) // greens of RGGB and BGGR
	main := dist(0, 3) // greens of GRBG and GBRG

	greensAnti := p.CFA[1] == raw.Green && p.CFA[2] == raw.Green
	switch {
	case greensAnti && main < anti/2 && anti-main > phaseMinSwitch:
		return p.CFA.Shift(0, 1)
	case !greensAnti && anti < main/2 && main-anti > phaseMinSwitch:
		return p.CFA.Shift(0, 1)
	}
	return p.CFA
}

// detectInterlace classifies the four row phases (y mod 4) as bright or dark
// from green percentiles. Of several percentiles the one that separates the
// phases most cleanly is used. Exactly two adjacent phases must be bright.
func detectInterlace(p *raw.Plane, cfa raw.CFA) ([4]bool, error) {
	var bright [4]bool
	w, h := p.Width, p.Height
	if h < 4 {
		return bright, fmt.Errorf("%w: %d rows", ErrNoInterlace, h)
	}
	var phases [4][]float64
	step := stride(w * h / 2)
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !cfa.IsGreen(x, y) {
				continue
			}
			if n++; n%step != 0 {
				continue
			}
			phases[y&3] = append(phases[y&3], evAbove(p.Pix[y*w+x], p.Black))
		}
	}
	var q [4][]float64
	for k := range phases {
		if len(phases[k]) == 0 {
			return bright, fmt.Errorf("%w: no green samples in row phase %d", ErrNoInterlace, k)
		}
		q[k] = quantiles(phases[k], phaseQuantiles)
	}

	bestGap := math.Inf(-1)
	found := false
	for qi := range phaseQuantiles {
		lo, hi := math.Inf(1), math.Inf(-1)
		for k := range q {
			lo = math.Min(lo, q[k][qi])
			hi = math.Max(hi, q[k][qi])
		}
		mid := (lo + hi) / 2
		var cls [4]bool
		count := 0
		minBright, maxDark := math.Inf(1), math.Inf(-1)
		for k := range q {
			v := q[k][qi]
			if v > mid {
				cls[k] = true
				count++
				minBright = math.Min(minBright, v)
			} else {
				maxDark = math.Max(maxDark, v)
			}
		}
		if count != 2 {
			continue
		}
		if gap := minBright - maxDark; gap > bestGap {
			bestGap, bright, found = gap, cls, true
		}
	}
	if !found || bestGap < minInterlaceEV {
		return [4]bool{}, ErrNoInterlace
	}
	for k := 0; k < 4; k++ {
		if bright[k] && bright[(k+1)&3] {
			return bright, nil
		}
	}
	return bright, fmt.Errorf("%w: bright phases %v", ErrInconsistentInterlace, bright)
}

// detectWhiteLevels estimates the clipping point of each exposure from the
// k-th largest sample, skipping a few outliers. An exposure that does not
// reach the nominal white level keeps the nominal value.
func detectWhiteLevels(p *raw.Plane, il *Interlace) error {
	w, h := p.Width, p.Height
	const bins = 1 << 16
	var hist [2][]int
	hist[0] = make([]int, bins)
	hist[1] = make([]int, bins)
	var count [2]int
	for y := 0; y < h; y++ {
		e := 0
		if il.IsBright(y) {
			e = 1
		}
		for _, v := range p.Pix[y*w : (y+1)*w] {
			hist[e][int(raw.ClampUint16(v))]++
			count[e]++
		}
	}
	full := p.White - p.Black
	var white [2]float32
	for e := range hist {
		k := max(whiteOutliers, count[e]/100000)
		est := float32(0)
		seen := 0
		for v := bins - 1; v >= 0; v-- {
			seen += hist[e][v]
			if seen >= k {
				est = float32(v)
				break
			}
		}
		if est >= p.Black+whiteClipFrac*full {
			white[e] = est - whiteMargin*(est-p.Black)
		} else {
			white[e] = p.White - whiteMargin*full
		}
		if white[e]-p.Black < minSignal {
			return fmt.Errorf("%w: white %v, black %v", ErrWhiteLevel, white[e], p.Black)
		}
	}
	il.DarkWhite, il.BrightWhite = white[0], white[1]
	return nil
}
