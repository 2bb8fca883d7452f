// Package arena provides contiguous scratch memory for tile-based engines.
//
// An Arena is one []float32 slab carved into named views. Each view is a
// full slice expression (len == cap) so writes past its end panic instead of
// spilling into the neighbouring buffer. Arenas are recycled through a Pool.
package arena

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// LimitError is returned when a Pool would exceed its memory limit.
type LimitError struct {
	Requested int64
	Current   int64
	Limit     int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("arena: memory limit exceeded (requested %d, in use %d, limit %d bytes)",
		e.Requested, e.Current, e.Limit)
}

// Arena is a single allocation subdivided into named typed views.
type Arena struct {
	slab  []float32
	ints  []int32
	off   int
	ioff  int
	views map[string][]float32
	iview map[string][]int32
}

// New returns an arena able to hold floats float32 values and ints int32
// values.
func New(floats, ints int) *Arena {
	return &Arena{
		slab:  make([]float32, floats),
		ints:  make([]int32, ints),
		views: make(map[string][]float32),
		iview: make(map[string][]int32),
	}
}

// Float32 carves a zeroed view of n values named name. Requesting the same
// name twice returns the existing view when it is large enough.
func (a *Arena) Float32(name string, n int) []float32 {
	if v, ok := a.views[name]; ok && len(v) == n {
		return v
	}
	if a.off+n > len(a.slab) {
		panic(fmt.Sprintf("arena: view %q needs %d floats, %d left", name, n, len(a.slab)-a.off))
	}
	v := a.slab[a.off : a.off+n : a.off+n]
	a.off += n
	clear(v)
	a.views[name] = v
	return v
}

// Int32 carves a zeroed int32 view.
func (a *Arena) Int32(name string, n int) []int32 {
	if v, ok := a.iview[name]; ok && len(v) == n {
		return v
	}
	if a.ioff+n > len(a.ints) {
		panic(fmt.Sprintf("arena: view %q needs %d ints, %d left", name, n, len(a.ints)-a.ioff))
	}
	v := a.ints[a.ioff : a.ioff+n : a.ioff+n]
	a.ioff += n
	clear(v)
	a.iview[name] = v
	return v
}

// Reset forgets all views so the memory can be carved again.
func (a *Arena) Reset() {
	a.off = 0
	a.ioff = 0
	clear(a.views)
	clear(a.iview)
}

// Bytes returns the size of the arena's backing memory.
func (a *Arena) Bytes() int64 {
	return int64(len(a.slab))*4 + int64(len(a.ints))*4
}

// Pool recycles arenas of one shape.
type Pool struct {
	floats, ints int
	pool         sync.Pool
	limit        int64
	inUse        atomic.Int64
	gets         atomic.Int64
	news         atomic.Int64
}

// NewPool returns a pool of arenas with the given capacity. limit caps the
// bytes of arenas checked out at once; 0 means unlimited.
func NewPool(floats, ints int, limit int64) *Pool {
	p := &Pool{floats: floats, ints: ints, limit: limit}
	p.pool.New = func() any {
		p.news.Add(1)
		return New(floats, ints)
	}
	return p
}

// Get checks out an arena. The bytes are reserved before the arena is
// taken, so concurrent callers never hold more than the limit together.
func (p *Pool) Get() (*Arena, error) {
	size := int64(p.floats)*4 + int64(p.ints)*4
	for {
		cur := p.inUse.Load()
		if p.limit > 0 && cur+size > p.limit {
			return nil, &LimitError{Requested: size, Current: cur, Limit: p.limit}
		}
		if p.inUse.CompareAndSwap(cur, cur+size) {
			break
		}
	}
	p.gets.Add(1)
	a := p.pool.Get().(*Arena)
	a.Reset()
	return a, nil
}

// Put returns an arena obtained from Get.
func (p *Pool) Put(a *Arena) {
	if a == nil {
		return
	}
	p.inUse.Add(-a.Bytes())
	p.pool.Put(a)
}

// InUse returns the bytes currently checked out.
func (p *Pool) InUse() int64 { return p.inUse.Load() }

// Stats returns the number of Get calls and fresh allocations.
func (p *Pool) Stats() (gets, allocs int64) {
	return p.gets.Load(), p.news.Load()
}
