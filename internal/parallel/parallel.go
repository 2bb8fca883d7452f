// Package parallel runs reconstruction passes over disjoint row ranges.
//
// Work is split into phase-aligned chunks (even row counts so every chunk
// starts on the same Bayer row parity) and executed by a fixed-size pool that
// is joined before the call returns.
package parallel

import (
	"fmt"
	"runtime"
)

// MinChunkRows is the smallest chunk height the tiled engines accept. When an
// even split would produce chunks this small or smaller the worker count is
// reduced instead.
const MinChunkRows = 32

// Config controls how many workers a call may use.
type Config struct {
	// Workers is the number of goroutines. 0 means runtime.GOMAXPROCS(0).
	Workers int

	// MinRows overrides MinChunkRows when positive.
	MinRows int
}

// workers returns the effective worker count for c.
func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

func (c Config) minRows() int {
	if c.MinRows > 0 {
		return c.MinRows
	}
	return MinChunkRows
}

// Range is a half-open row interval [Start, End).
type Range struct {
	Start, End int
}

// Len returns the number of rows in r.
func (r Range) Len() int { return r.End - r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Chunks splits n rows into at most threads ranges. Every range except the
// last has an even height, so each chunk starts on an even row. When an even
// split yields chunks of minRows rows or fewer the thread count is reduced
// until chunks are taller than minRows or a single chunk remains.
func Chunks(n, threads, minRows int) []Range {
	if n <= 0 {
		return nil
	}
	if threads < 1 {
		threads = 1
	}
	for threads > 1 && chunkHeight(n, threads) <= minRows {
		threads--
	}
	if threads == 1 {
		return []Range{{0, n}}
	}
	h := chunkHeight(n, threads)
	ranges := make([]Range, 0, threads)
	for i := 0; i < threads; i++ {
		start := i * h
		end := start + h
		if i == threads-1 {
			end = n
		}
		ranges = append(ranges, Range{start, end})
	}
	return ranges
}

// chunkHeight is the per-thread height rounded down to a multiple of 2.
func chunkHeight(n, threads int) int {
	return (n / threads) &^ 1
}

// CheckAligned panics if any range but the last starts or ends on an odd
// row. Mixing phases between chunks corrupts the colour layout.
func CheckAligned(ranges []Range) {
	for i, r := range ranges {
		if r.Start&1 != 0 || (i < len(ranges)-1 && r.End&1 != 0) {
			panic(fmt.Sprintf("parallel: chunk %d %v is not aligned to the Bayer phase", i, r))
		}
	}
}

// Rows runs fn over phase-aligned chunks of n rows using the configured
// worker count and waits for all of them.
func Rows(cfg Config, n int, fn func(r Range)) {
	ranges := Chunks(n, cfg.workers(), cfg.minRows())
	CheckAligned(ranges)
	Run(len(ranges), ranges, fn)
}

// Items runs fn over chunks of n independent items (tiles, columns) with no
// alignment requirement.
func Items(cfg Config, n int, fn func(r Range)) {
	ranges := ItemChunks(n, cfg.workers())
	Run(len(ranges), ranges, fn)
}

// ItemChunks splits n items into at most threads contiguous ranges of
// near-equal size.
func ItemChunks(n, threads int) []Range {
	if n <= 0 {
		return nil
	}
	if threads < 1 {
		threads = 1
	}
	if threads > n {
		threads = n
	}
	size := (n + threads - 1) / threads
	ranges := make([]Range, 0, threads)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{start, end})
	}
	return ranges
}

// Run executes fn for every range on up to workers goroutines and joins.
// A single range or a single worker runs on the calling goroutine.
func Run(workers int, ranges []Range, fn func(r Range)) {
	if len(ranges) == 0 {
		return
	}
	if workers <= 1 || len(ranges) == 1 {
		for _, r := range ranges {
			fn(r)
		}
		return
	}
	if workers > len(ranges) {
		workers = len(ranges)
	}
	pool := startPool(workers, len(ranges), fn)
	for _, r := range ranges {
		pool.push(r)
	}
	pool.drain()
}
