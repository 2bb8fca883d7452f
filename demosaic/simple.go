package demosaic

import (
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// noneEngine copies each mosaic sample into all three channels.
type noneEngine struct{}

func (noneEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	parallel.Rows(cfg, in.Height, func(r parallel.Range) {
		lo, hi := r.Start*in.Width, r.End*in.Width
		copy(out.R[lo:hi], in.Pix[lo:hi])
		copy(out.G[lo:hi], in.Pix[lo:hi])
		copy(out.B[lo:hi], in.Pix[lo:hi])
	})
	return nil
}

// simpleEngine builds one RGB value per 2x2 quad and repeats it over the
// quad's four pixels.
type simpleEngine struct{}

func (simpleEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	parallel.Rows(cfg, in.Height, func(r parallel.Range) {
		for y := r.Start &^ 1; y < r.End; y += 2 {
			for x := 0; x < in.Width; x += 2 {
				var sum [3]float32
				var n [3]int
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						c := in.CFA.Color(x+dx, y+dy)
						sum[c] += in.at(x+dx, y+dy)
						n[c]++
					}
				}
				red := sum[raw.Red] / float32(n[raw.Red])
				green := sum[raw.Green] / float32(n[raw.Green])
				blue := sum[raw.Blue] / float32(n[raw.Blue])
				for dy := 0; dy < 2 && y+dy < r.End; dy++ {
					for dx := 0; dx < 2 && x+dx < in.Width; dx++ {
						i := (y+dy)*in.Width + x + dx
						out.R[i], out.G[i], out.B[i] = red, green, blue
					}
				}
			}
		}
	})
	return nil
}

// bilinearEngine averages the nearest same-colour samples. Neighbours
// outside the image are reflected back inside so edges keep their colour.
type bilinearEngine struct{}

func (bilinearEngine) Demosaic(in *Input, out *raw.ColorPlanes, cfg parallel.Config) error {
	parallel.Rows(cfg, in.Height, func(r parallel.Range) {
		for y := r.Start; y < r.End; y++ {
			for x := 0; x < in.Width; x++ {
				i := y*in.Width + x
				v := in.Pix[i]
				cross := (in.at(x-1, y) + in.at(x+1, y) + in.at(x, y-1) + in.at(x, y+1)) * 0.25
				horiz := (in.at(x-1, y) + in.at(x+1, y)) * 0.5
				vert := (in.at(x, y-1) + in.at(x, y+1)) * 0.5
				diag := (in.at(x-1, y-1) + in.at(x+1, y-1) + in.at(x-1, y+1) + in.at(x+1, y+1)) * 0.25

				switch in.CFA.Color(x, y) {
				case raw.Red:
					out.R[i], out.G[i], out.B[i] = v, cross, diag
				case raw.Blue:
					out.R[i], out.G[i], out.B[i] = diag, cross, v
				default:
					// Green: the row neighbours carry one colour, the column
					// neighbours the other.
					if in.CFA.Color(x+1, y) == raw.Red {
						out.R[i], out.G[i], out.B[i] = horiz, v, vert
					} else {
						out.R[i], out.G[i], out.B[i] = vert, v, horiz
					}
				}
			}
		}
	})
	return nil
}
