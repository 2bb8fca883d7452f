package dualiso

import (
	"slices"

	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// chromaWindow returns the same-colour site offsets, in pixels, of the
// smoothing window.
func chromaWindow(m Chroma) []int {
	switch m {
	case Chroma2x2:
		return []int{0, 2}
	case Chroma3x3:
		return []int{-2, 0, 2}
	case Chroma5x5:
		return []int{-4, -2, 0, 2, 4}
	}
	return nil
}

// ChromaSmooth replaces the colour difference (red or blue minus green, in
// EV) at every red and blue site with the median over a window of
// same-colour sites. Green is interpolated both horizontally and vertically;
// the direction whose differences vary less over the window is used. Green
// sites and a border the size of the window are left untouched. lut must be
// built for p's black level.
func ChromaSmooth(p *raw.Plane, m Chroma, lut *evlut.Table, cfg parallel.Config) {
	offs := chromaWindow(m)
	if offs == nil {
		return
	}
	w, h := p.Width, p.Height
	margin := -offs[0] + 1
	if offs[0] == 0 {
		margin = 1
	}
	reach := offs[len(offs)-1] + 1
	if w <= margin+reach || h <= margin+reach {
		return
	}
	src := append([]float32(nil), p.Pix[:w*h]...)
	ev := func(v float32) int32 { return lut.EVf(v) }

	parallel.Rows(cfg, h, func(r parallel.Range) {
		n := len(offs) * len(offs)
		dh := make([]int32, 0, n)
		dv := make([]int32, 0, n)
		for y := max(r.Start, margin); y < min(r.End, h-reach); y++ {
			for x := margin; x < w-reach; x++ {
				if p.CFA.IsGreen(x, y) {
					continue
				}
				dh, dv = dh[:0], dv[:0]
				for _, oy := range offs {
					for _, ox := range offs {
						xx, yy := x+ox, y+oy
						c := ev(src[yy*w+xx])
						gh := (src[yy*w+xx-1] + src[yy*w+xx+1]) / 2
						gv := (src[(yy-1)*w+xx] + src[(yy+1)*w+xx]) / 2
						dh = append(dh, c-ev(gh))
						dv = append(dv, c-ev(gv))
					}
				}
				i := y*w + x
				gh := (src[i-1] + src[i+1]) / 2
				gv := (src[i-w] + src[i+w]) / 2
				g, d := gh, dh
				if variation(dv) < variation(dh) {
					g, d = gv, dv
				}
				slices.Sort(d)
				med := d[len(d)/2]
				if len(d)%2 == 0 {
					med = int32((int64(d[len(d)/2-1]) + int64(d[len(d)/2])) / 2)
				}
				p.Pix[i] = float32(lut.Raw(ev(g) + med))
			}
		}
	})
}

// variation is the total variation of a window of differences, taken in
// the order the window was scanned.
func variation(d []int32) int64 {
	var tv int64
	for i := 1; i < len(d); i++ {
		v := int64(d[i]) - int64(d[i-1])
		if v < 0 {
			v = -v
		}
		tv += v
	}
	return tv
}
