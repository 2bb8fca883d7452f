package dualiso

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/mrjoshuak/go-rawrecon/raw"
)

const (
	// minGain is the smallest ISO ratio worth fusing.
	minGain = 1.2

	// matchClip excludes bright samples above this fraction of the bright
	// white level.
	matchClip = 0.9

	// matchFloor excludes dark samples within this many raw units of black.
	matchFloor = 16

	// matchBandLo and matchBandHi bound the bright percentile band used
	// for the fit.
	matchBandLo = 0.1
	matchBandHi = 0.9

	// Votes are cast into voteBins bins per EV over [0, voteMaxEV).
	voteBins  = 128
	voteMaxEV = 10
	voteSpan  = 3

	// inlierEV is the distance from the voted gain within which pairs enter
	// the final regression.
	inlierEV = 0.1

	minPairs = 64
)

// matchExposures fits bright = Gain*dark + Offset between each bright
// sample and the dark estimate at the same position (the mean of the
// same-colour rows two above and two below). Candidate gains are voted on
// in EV, and the pairs near the winning gain are fitted by least squares.
func matchExposures(p *raw.Plane, il *Interlace) error {
	w, h := p.Width, p.Height
	black := p.Black
	brightClip := (il.BrightWhite - black) * matchClip
	darkClip := il.DarkWhite - black

	var bs, ds []float64
	step := stride(w * h / 2)
	n := 0
	for y := 2; y < h-2; y++ {
		if !il.IsBright(y) || il.IsBright(y-2) || il.IsBright(y+2) {
			continue
		}
		for x := 0; x < w; x++ {
			if n++; n%step != 0 {
				continue
			}
			b := p.Pix[y*w+x] - black
			d := (p.Pix[(y-2)*w+x]+p.Pix[(y+2)*w+x])/2 - black
			if b <= 0 || b >= brightClip || d <= matchFloor || d >= darkClip {
				continue
			}
			bs = append(bs, float64(b))
			ds = append(ds, float64(d))
		}
	}
	if len(bs) < minPairs {
		return fmt.Errorf("%w: %d usable sample pairs", ErrExposureMatch, len(bs))
	}

	band := quantiles(append([]float64(nil), bs...), []float64{matchBandLo, matchBandHi})
	var votes [voteBins * voteMaxEV]int
	for i := range bs {
		if bs[i] < band[0] || bs[i] > band[1] {
			continue
		}
		r := math.Log2(bs[i] / ds[i])
		if r < 0 || r >= voteMaxEV {
			continue
		}
		votes[int(r*voteBins)]++
	}
	best, bestScore := -1, 0
	for i := range votes {
		score := 0
		for j := max(i-voteSpan, 0); j <= min(i+voteSpan, len(votes)-1); j++ {
			score += votes[j]
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return fmt.Errorf("%w: no gain candidate", ErrExposureMatch)
	}
	peak := (float64(best) + 0.5) / voteBins

	var xs, ys []float64
	for i := range bs {
		if bs[i] < band[0] || bs[i] > band[1] {
			continue
		}
		if math.Abs(math.Log2(bs[i]/ds[i])-peak) < inlierEV {
			xs = append(xs, ds[i])
			ys = append(ys, bs[i])
		}
	}
	if len(xs) < minPairs/2 {
		return fmt.Errorf("%w: %d inliers", ErrExposureMatch, len(xs))
	}
	offset, gain := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(gain) || gain < minGain {
		return fmt.Errorf("%w: gain %.3f below %.1f", ErrExposureMatch, gain, minGain)
	}
	il.Gain, il.Offset = gain, offset
	return nil
}
