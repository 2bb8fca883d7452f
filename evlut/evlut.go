// Package evlut maps linear sensor values to a fixed-point logarithmic (EV)
// domain and back.
//
// Values are expressed in Resolution units per EV relative to the black level:
// a sample s maps to log2(1 + (s - black)) EV above black, and samples below
// black map to the mirrored negative curve. Tables cover the 20-bit
// intermediate range used by the dual-ISO pipeline, which also covers 14 and
// 16 bit sensor data.
package evlut

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	// Resolution is the number of fixed-point units per EV.
	Resolution = 65536

	// RawRange is the number of entries in the raw-to-EV table.
	RawRange = 1 << 20

	// MinEV and MaxEV bound the EV-to-raw table, in whole EV.
	MinEV = -20
	MaxEV = 20
)

// Table holds both directions of the mapping for one black level. A built
// Table is never modified and can be shared freely between goroutines.
type Table struct {
	Black   int
	White   int
	RawToEV []int32
	EVToRaw []int32
}

// Build constructs the tables for black level black.
func Build(black int) *Table {
	black = clampBlack(black)
	t := &Table{
		Black:   black,
		White:   RawRange - 1,
		RawToEV: make([]int32, RawRange),
		EVToRaw: make([]int32, (MaxEV-MinEV)*Resolution),
	}
	for i := range t.RawToEV {
		signal := float64(i - black)
		var ev float64
		if signal >= 0 {
			ev = math.Log2(1 + signal)
		} else {
			ev = -math.Log2(1 - signal)
		}
		t.RawToEV[i] = int32(math.Round(ev * Resolution))
	}
	for i := range t.EVToRaw {
		ev := float64(i+MinEV*Resolution) / Resolution
		var v float64
		if ev >= 0 {
			v = float64(black) + math.Exp2(ev) - 1
		} else {
			v = float64(black) - (math.Exp2(-ev) - 1)
		}
		v = math.Round(v)
		if v < 0 {
			v = 0
		} else if v > float64(t.White) {
			v = float64(t.White)
		}
		t.EVToRaw[i] = int32(v)
	}
	return t
}

// clampBlack limits a black level to the table range.
func clampBlack(black int) int {
	if black < 0 {
		return 0
	}
	if black >= RawRange {
		return RawRange - 1
	}
	return black
}

// EV returns the fixed-point EV of raw sample v, clamping v to the table.
func (t *Table) EV(v int) int32 {
	if v < 0 {
		v = 0
	} else if v >= RawRange {
		v = RawRange - 1
	}
	return t.RawToEV[v]
}

// EVf is EV for float samples, rounding to the nearest integer first.
func (t *Table) EVf(v float32) int32 {
	return t.EV(int(v + 0.5))
}

// Raw returns the raw value for fixed-point EV ev, clamped to the table.
func (t *Table) Raw(ev int32) int32 {
	i := int(ev) - MinEV*Resolution
	if i < 0 {
		i = 0
	} else if i >= len(t.EVToRaw) {
		i = len(t.EVToRaw) - 1
	}
	return t.EVToRaw[i]
}

// Cache keeps the most recently built Table and rebuilds it only when a
// different black level is requested. Builds are serialised.
type Cache struct {
	mu     sync.Mutex
	table  atomic.Pointer[Table]
	builds atomic.Int64
}

// Get returns the table for black, building it if the cached one was built
// for a different black level. Out-of-range levels are clamped as in Build.
func (c *Cache) Get(black int) *Table {
	black = clampBlack(black)
	if t := c.table.Load(); t != nil && t.Black == black {
		return t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.table.Load(); t != nil && t.Black == black {
		return t
	}
	t := Build(black)
	c.table.Store(t)
	c.builds.Add(1)
	return t
}

// Builds returns how many tables the cache has built.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}
