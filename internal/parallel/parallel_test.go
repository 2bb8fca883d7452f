package parallel

import (
	"sync/atomic"
	"testing"
)

func TestChunksEvenHeights(t *testing.T) {
	tests := []struct {
		n, threads, minRows int
		wantChunks          int
	}{
		{1000, 4, 32, 4},
		{1001, 4, 32, 4},
		{1000, 1, 32, 1},
		{100, 8, 32, 2},
		{64, 2, 32, 1},
		{66, 2, 32, 1},
		{68, 2, 32, 2},
		{10, 16, 32, 1},
		{4, 4, 0, 2},
	}
	for _, tt := range tests {
		ranges := Chunks(tt.n, tt.threads, tt.minRows)
		if len(ranges) != tt.wantChunks {
			t.Errorf("Chunks(%d, %d, %d) gave %d chunks, want %d: %v",
				tt.n, tt.threads, tt.minRows, len(ranges), tt.wantChunks, ranges)
			continue
		}
		next := 0
		for i, r := range ranges {
			if r.Start != next {
				t.Errorf("Chunks(%d, %d): chunk %d starts at %d, want %d", tt.n, tt.threads, i, r.Start, next)
			}
			if r.Start%2 != 0 {
				t.Errorf("Chunks(%d, %d): chunk %d starts on odd row %d", tt.n, tt.threads, i, r.Start)
			}
			if i < len(ranges)-1 && r.Len()%2 != 0 {
				t.Errorf("Chunks(%d, %d): chunk %d height %d is odd", tt.n, tt.threads, i, r.Len())
			}
			if len(ranges) > 1 && r.Len() <= tt.minRows {
				t.Errorf("Chunks(%d, %d): chunk %d height %d <= %d", tt.n, tt.threads, i, r.Len(), tt.minRows)
			}
			next = r.End
		}
		if next != tt.n {
			t.Errorf("Chunks(%d, %d) covers %d rows, want %d", tt.n, tt.threads, next, tt.n)
		}
	}
}

func TestChunksEmpty(t *testing.T) {
	if got := Chunks(0, 4, 32); got != nil {
		t.Errorf("Chunks(0) = %v, want nil", got)
	}
	if got := ItemChunks(-1, 4); got != nil {
		t.Errorf("ItemChunks(-1) = %v, want nil", got)
	}
}

func TestCheckAlignedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("CheckAligned accepted an odd chunk boundary")
		}
	}()
	CheckAligned([]Range{{0, 33}, {33, 64}})
}

func TestItemChunks(t *testing.T) {
	ranges := ItemChunks(10, 3)
	total := 0
	for _, r := range ranges {
		total += r.Len()
	}
	if total != 10 || len(ranges) != 3 {
		t.Errorf("ItemChunks(10, 3) = %v", ranges)
	}
}

func TestRowsCoversEveryRowOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 3, 8} {
		hits := make([]int32, 999)
		Rows(Config{Workers: workers}, len(hits), func(r Range) {
			for y := r.Start; y < r.End; y++ {
				atomic.AddInt32(&hits[y], 1)
			}
		})
		for y, h := range hits {
			if h != 1 {
				t.Fatalf("workers=%d: row %d visited %d times", workers, y, h)
			}
		}
	}
}

func TestRunMoreWorkersThanRanges(t *testing.T) {
	ranges := ItemChunks(5, 5)
	var visited int32
	Run(16, ranges, func(r Range) {
		atomic.AddInt32(&visited, int32(r.Len()))
	})
	if visited != 5 {
		t.Errorf("Run visited %d items, want 5", visited)
	}
}

func TestRangePoolQueueDepth(t *testing.T) {
	var n int32
	p := startPool(3, 1, func(r Range) {
		atomic.AddInt32(&n, int32(r.Len()))
	})
	for i := 0; i < 50; i++ {
		p.push(Range{i * 2, i*2 + 2})
	}
	p.drain()
	if n != 100 {
		t.Errorf("pool processed %d rows, want 100", n)
	}
}
