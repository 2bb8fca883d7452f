package demosaic

import (
	"math"
	"sync"

	"github.com/mrjoshuak/go-rawrecon/internal/arena"
)

// Context owns state shared by engines: the perceptual lookup table built on
// first use and pools of tile scratch memory. A Context is safe for
// concurrent use.
type Context struct {
	labOnce sync.Once
	lab     *labTable

	poolMu      sync.Mutex
	pools       map[string]*arena.Pool
	memoryLimit int64
}

// NewContext returns a Context whose tile pools may hold at most memoryLimit
// bytes at once; 0 means unlimited.
func NewContext(memoryLimit int64) *Context {
	return &Context{memoryLimit: memoryLimit}
}

var (
	defaultOnce sync.Once
	defaultCtx  *Context
)

func defaultContext() *Context {
	defaultOnce.Do(func() { defaultCtx = NewContext(0) })
	return defaultCtx
}

// labTables returns the perceptual encoding table, building it on first use.
func (c *Context) labTables() *labTable {
	c.labOnce.Do(func() { c.lab = newLabTable() })
	return c.lab
}

// tilePool returns the arena pool registered under name, creating it with
// the given capacity.
func (c *Context) tilePool(name string, floats, ints int) *arena.Pool {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	if c.pools == nil {
		c.pools = make(map[string]*arena.Pool)
	}
	p, ok := c.pools[name]
	if !ok {
		p = arena.NewPool(floats, ints, c.memoryLimit)
		c.pools[name] = p
	}
	return p
}

// ScratchStats reports, summed over every tile pool, how many tile arenas
// were checked out and how many of those had to be freshly allocated.
func (c *Context) ScratchStats() (gets, allocs int64) {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	for _, p := range c.pools {
		g, a := p.Stats()
		gets += g
		allocs += a
	}
	return gets, allocs
}

// labSize is the number of table entries over [0, 1].
const labSize = 1 << 16

// CIE lightness curve constants.
const (
	labEpsilon = 216.0 / 24389.0
	labKappa   = 24389.0 / 27.0
)

// labTable maps normalized linear values to the CIE L* style cube-root
// encoding: f(t) = cbrt(t) above labEpsilon and a linear toe below.
type labTable struct {
	fwd []float32
}

func newLabTable() *labTable {
	t := &labTable{fwd: make([]float32, labSize+1)}
	for i := range t.fwd {
		t.fwd[i] = float32(labCurve(float64(i) / labSize))
	}
	return t
}

func labCurve(t float64) float64 {
	if t > labEpsilon {
		return math.Cbrt(t)
	}
	return (labKappa*t + 16) / 116
}

// encode maps a normalized linear value to the cube-root domain,
// interpolating the table inside [0, 1].
func (t *labTable) encode(v float32) float32 {
	if v <= 0 {
		return t.fwd[0]
	}
	if v >= 1 {
		return float32(labCurve(float64(v)))
	}
	f := v * labSize
	i := int(f)
	frac := f - float32(i)
	return t.fwd[i] + frac*(t.fwd[i+1]-t.fwd[i])
}

// decode inverts encode.
func (t *labTable) decode(y float32) float32 {
	const knee = 16.0/116 + labKappa*labEpsilon/116
	if y > float32(knee) {
		return y * y * y
	}
	return (y*116 - 16) / float32(labKappa)
}
