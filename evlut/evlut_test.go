package evlut

import (
	"sync"
	"testing"
)

func TestBuildMonotonic(t *testing.T) {
	tb := Build(2048)
	for i := 1; i < 70000; i++ {
		if tb.RawToEV[i] < tb.RawToEV[i-1] {
			t.Fatalf("RawToEV not monotonic at %d: %d < %d", i, tb.RawToEV[i], tb.RawToEV[i-1])
		}
	}
	if got := tb.EV(2048); got != 0 {
		t.Errorf("EV(black) = %d, want 0", got)
	}
	if got := tb.EV(2048 + 1); got != Resolution {
		t.Errorf("EV(black+1) = %d, want %d", got, Resolution)
	}
	if got := tb.EV(2048 + 3); got != 2*Resolution {
		t.Errorf("EV(black+3) = %d, want %d", got, 2*Resolution)
	}
}

func TestRoundTrip(t *testing.T) {
	tb := Build(512)
	for _, v := range []int{0, 100, 511, 512, 513, 1000, 8192, 16383, 65535} {
		got := int(tb.Raw(tb.EV(v)))
		diff := got - v
		if diff < -1 || diff > 1 {
			t.Errorf("Raw(EV(%d)) = %d, want within 1 LSB", v, got)
		}
	}
}

func TestClamp(t *testing.T) {
	tb := Build(0)
	if got, want := tb.EV(-10), tb.RawToEV[0]; got != want {
		t.Errorf("EV(-10) = %d, want %d", got, want)
	}
	if got, want := tb.EV(RawRange+5), tb.RawToEV[RawRange-1]; got != want {
		t.Errorf("EV(overflow) = %d, want %d", got, want)
	}
	if got := tb.Raw(1 << 30); got != int32(tb.White) {
		t.Errorf("Raw(huge) = %d, want %d", got, tb.White)
	}
	if got := tb.Raw(-1 << 30); got != 0 {
		t.Errorf("Raw(-huge) = %d, want 0", got)
	}
}

func TestCacheRebuildsOnlyOnBlackChange(t *testing.T) {
	var c Cache
	a := c.Get(1024)
	b := c.Get(1024)
	if a != b {
		t.Errorf("Get(1024) twice returned different tables")
	}
	if c.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", c.Builds())
	}

	again := Build(1024)
	for i := 0; i < RawRange; i += 997 {
		if a.RawToEV[i] != again.RawToEV[i] {
			t.Fatalf("rebuild with same black differs at %d", i)
		}
	}

	d := c.Get(2048)
	if d == a {
		t.Errorf("Get(2048) reused the black=1024 table")
	}
	if c.Builds() != 2 {
		t.Errorf("Builds() = %d, want 2", c.Builds())
	}
	if d.RawToEV[3000] == a.RawToEV[3000] {
		t.Errorf("tables for different black levels agree at 3000")
	}
}

func TestCacheOutOfRangeBlack(t *testing.T) {
	tests := []struct {
		black, want int
	}{
		{-40, 0},
		{RawRange + 5, RawRange - 1},
	}
	for _, tt := range tests {
		var c Cache
		a := c.Get(tt.black)
		if a.Black != tt.want {
			t.Errorf("Get(%d).Black = %d, want %d", tt.black, a.Black, tt.want)
		}
		if b := c.Get(tt.black); b != a {
			t.Errorf("Get(%d) twice returned different tables", tt.black)
		}
		if c.Get(tt.want) != a {
			t.Errorf("Get(%d) did not reuse the clamped table", tt.want)
		}
		if c.Builds() != 1 {
			t.Errorf("black %d: Builds() = %d, want 1", tt.black, c.Builds())
		}
	}
}

func TestCacheConcurrentFirstUse(t *testing.T) {
	var c Cache
	var wg sync.WaitGroup
	tables := make([]*Table, 8)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i] = c.Get(256)
		}(i)
	}
	wg.Wait()
	for i, tb := range tables {
		if tb != tables[0] {
			t.Errorf("goroutine %d got a different table", i)
		}
	}
	if c.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", c.Builds())
	}
}

func BenchmarkBuild(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Build(2048)
	}
}
