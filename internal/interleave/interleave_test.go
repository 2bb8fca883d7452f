package interleave

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInterleave(t *testing.T) {
	r := []float32{1, 4, 70000}
	g := []float32{2, 5, -3}
	b := []float32{3, 6.6, float32(math.NaN())}

	got := Interleave(r, g, b, nil)
	want := []uint16{1, 2, 3, 4, 5, 7, 65535, 0, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Interleave mismatch (-want +got):\n%s", diff)
	}
}

func TestInterleaveReusesBuffer(t *testing.T) {
	out := make([]uint16, 6)
	got := Interleave([]float32{1, 2}, []float32{3, 4}, []float32{5, 6}, out)
	if &got[0] != &out[0] {
		t.Errorf("Interleave allocated although out was large enough")
	}
}

func TestRows(t *testing.T) {
	const w, h = 2, 3
	r := make([]float32, w*h)
	g := make([]float32, w*h)
	b := make([]float32, w*h)
	for i := range r {
		r[i], g[i], b[i] = float32(i), float32(10+i), float32(20+i)
	}
	out := make([]uint16, 3*w*h)
	Rows(r, g, b, w, 1, 2, out)
	want := []uint16{0, 0, 0, 0, 0, 0, 2, 12, 22, 3, 13, 23, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func BenchmarkInterleave(b *testing.B) {
	const n = 1920 * 1080
	r, g, bl := make([]float32, n), make([]float32, n), make([]float32, n)
	out := make([]uint16, 3*n)
	b.SetBytes(n * 6)
	for i := 0; i < b.N; i++ {
		Interleave(r, g, bl, out)
	}
}
