package demosaic

import (
	"sync"

	"github.com/mrjoshuak/go-rawrecon/internal/arena"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// tileGrid places size x size tiles so that their cores (the tile minus a
// border on every side) cover the image edge to edge. Tile (0, 0) has its
// core at the image origin, so tile positions depend only on the image size.
type tileGrid struct {
	size, border, core int
	rows, cols         int
}

func newTileGrid(width, height, size, border int) tileGrid {
	core := size - 2*border
	return tileGrid{
		size:   size,
		border: border,
		core:   core,
		rows:   (height + core - 1) / core,
		cols:   (width + core - 1) / core,
	}
}

// origin returns the image coordinates of the tile's top-left halo pixel.
func (g tileGrid) origin(ty, tx int) (top, left int) {
	return ty*g.core - g.border, tx*g.core - g.border
}

// tileFunc processes one tile using scratch memory from a.
type tileFunc func(a *arena.Arena, top, left int)

// runTiles hands whole tile rows to workers. Each worker checks out one arena
// and reuses it for every tile it processes.
func (c *Context) runTiles(g tileGrid, cfg parallel.Config, pool *arena.Pool, fn tileFunc) error {
	var (
		once     sync.Once
		firstErr error
	)
	parallel.Items(cfg, g.rows, func(r parallel.Range) {
		a, err := pool.Get()
		if err != nil {
			once.Do(func() { firstErr = err })
			return
		}
		defer pool.Put(a)
		for ty := r.Start; ty < r.End; ty++ {
			for tx := 0; tx < g.cols; tx++ {
				a.Reset()
				top, left := g.origin(ty, tx)
				fn(a, top, left)
			}
		}
	})
	return firstErr
}

// loadTile copies the tile at (top, left) into dst, reflecting rows and
// columns outside the image. Samples have offset subtracted, are scaled by
// 1/scale and clamped below at 0.
func loadTile(in *Input, top, left, size int, offset, scale float32, dst []float32) {
	inv := 1 / scale
	for rr := 0; rr < size; rr++ {
		y := mirror(top+rr, in.Height)
		src := in.Pix[y*in.Width : (y+1)*in.Width]
		row := dst[rr*size : (rr+1)*size]
		for cc := range row {
			v := (src[mirror(left+cc, in.Width)] - offset) * inv
			if v < 0 {
				v = 0
			}
			row[cc] = v
		}
	}
}

// storeCore writes the core of a tile into out. pixel returns the linear
// RGB value of tile position (rr, cc).
func storeCore(out *raw.ColorPlanes, g tileGrid, top, left int, pixel func(rr, cc int) (r, gr, b float32)) {
	for rr := g.border; rr < g.size-g.border; rr++ {
		y := top + rr
		if y < 0 || y >= out.Height {
			continue
		}
		for cc := g.border; cc < g.size-g.border; cc++ {
			x := left + cc
			if x < 0 || x >= out.Width {
				continue
			}
			i := y*out.Width + x
			out.R[i], out.G[i], out.B[i] = pixel(rr, cc)
		}
	}
}
