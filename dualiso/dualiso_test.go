package dualiso

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-rawrecon/evlut"
	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/internal/parallel"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

func init() {
	monitoring.SetLogger(nil)
}

var zeroLUT = evlut.Build(0)

const (
	synthBlack = 2048
	synthWhite = 16383
)

var pairsBright = [4]bool{true, true, false, false}

// scene is a smooth grey test scene, linear in y for any fixed x so the
// mean of the rows two above and below equals the row itself.
func scene(x, y, w, h int, peak float64) float64 {
	return peak * (0.05 + 0.95*float64(x)/float64(w-1)) * (1 + 0.1*float64(y)/float64(h))
}

// synth builds an interlaced frame: bright rows see the scene clipped at
// white, dark rows see it divided by gain.
func synth(w, h int, gain, peak float64, bright [4]bool) *raw.Plane {
	p := raw.NewPlane(w, h, raw.RGGB)
	p.Black = synthBlack
	p.White = synthWhite
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := scene(x, y, w, h, peak)
			if !bright[y&3] {
				s /= gain
			}
			p.Pix[y*w+x] = float32(math.Min(synthBlack+s, synthWhite))
		}
	}
	return p
}

func TestAnalyze(t *testing.T) {
	p := synth(128, 128, 4, 12000, pairsBright)
	il, err := Analyze(p)
	require.NoError(t, err)
	assert.Equal(t, pairsBright, il.Bright)
	assert.Equal(t, raw.RGGB, il.CFA)
	assert.InDelta(t, 4, il.Gain, 0.04)
	assert.InDelta(t, 0, il.Offset, 20)
	assert.InDelta(t, 2, il.GainEV(), 0.02)
	assert.Greater(t, il.BrightWhite, float32(synthBlack))
}

func TestAnalyzeShiftedPattern(t *testing.T) {
	shifted := [4]bool{false, true, true, false}
	il, err := Analyze(synth(96, 96, 8, 12000, shifted))
	require.NoError(t, err)
	assert.Equal(t, shifted, il.Bright)
	assert.InDelta(t, 8, il.Gain, 0.08)
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name   string
		plane  *raw.Plane
		target error
	}{
		{"flat", synth(64, 64, 4, 8000, [4]bool{true, true, true, true}), ErrNoInterlace},
		{"alternate rows", synth(64, 64, 4, 8000, [4]bool{true, false, true, false}), ErrInconsistentInterlace},
		{"low gain", synth(128, 128, 1.1, 8000, pairsBright), ErrExposureMatch},
		{"too short", synth(64, 3, 4, 8000, pairsBright), ErrNoInterlace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(tt.plane)
			if !errors.Is(err, tt.target) {
				t.Errorf("Analyze error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestProcessFailureLeavesPlane(t *testing.T) {
	p := synth(64, 64, 4, 8000, [4]bool{true, false, true, false})
	before := p.Clone()
	err := Process(p, Options{LUT: zeroLUT})
	require.ErrorIs(t, err, ErrInconsistentInterlace)
	assert.Equal(t, before.Pix, p.Pix)
	assert.Equal(t, before.Black, p.Black)
	assert.Equal(t, before.BitDepth, p.BitDepth)
}

// After fusion, bright and dark rows must describe the same scene.
func TestProcessRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		gain, peak float64
		opts       Options
	}{
		{"unclipped edge", 4, 12000, Options{Interp: EdgeDirected, AliasMap: true, FullRes: true}},
		{"unclipped mean23", 4, 12000, Options{Interp: Mean23, FullRes: true}},
		{"clipped edge", 8, 40000, Options{Interp: EdgeDirected, AliasMap: true, FullRes: true, Chroma: Chroma2x2}},
		{"clipped mean23 halfres", 8, 40000, Options{Interp: Mean23, Chroma: Chroma3x3}},
		{"clipped 5x5", 8, 40000, Options{AliasMap: true, FullRes: true, Chroma: Chroma5x5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const w, h = 128, 128
			p := synth(w, h, tt.gain, tt.peak, pairsBright)
			opts := tt.opts
			opts.LUT = zeroLUT
			opts.Seed = 1
			opts.Parallel = parallel.Config{Workers: 3}
			require.NoError(t, Process(p, opts))
			assert.Equal(t, 16, p.BitDepth)
			assert.Equal(t, float32(65535), p.White)
			assert.Equal(t, float32(synthBlack*4), p.Black)

			for y := 8; y < h-8; y++ {
				if !pairsBright[y&3] {
					continue
				}
				for x := 8; x < w-8; x++ {
					b := float64(p.Pix[y*w+x] - p.Black)
					d := float64(p.Pix[(y+2)*w+x] - p.Black)
					want := math.Log2(scene(x, y, w, h, 1) / scene(x, y+2, w, h, 1))
					if b <= 0 || d <= 0 {
						t.Fatalf("(%d, %d): non-positive output %v / %v", x, y, b, d)
					}
					if got := math.Log2(b / d); math.Abs(got-want) > 0.1 {
						t.Fatalf("(%d, %d): bright/dark rows differ by %.3f EV, want %.3f", x, y, got, want)
					}
				}
			}
		})
	}
}

// Stripes four pixels wide are kept by the full resolution image but washed
// out of the half resolution one, so the alias map must flag them. The
// smooth half of the frame must stay unflagged.
func TestAliasMapFlagsFineDetail(t *testing.T) {
	const w, h = 128, 128
	p := synth(w, h, 4, 8000, pairsBright)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			k := float32(0.5)
			if x%8 < 4 {
				k = 1.5
			}
			i := y*w + x
			p.Pix[i] = synthBlack + (p.Pix[i]-synthBlack)*k
		}
	}
	il, err := Analyze(p)
	require.NoError(t, err)

	f := newFusion(p, il, zeroLUT, Options{Interp: EdgeDirected, AliasMap: true, FullRes: true,
		Parallel: parallel.Config{Workers: 2}})
	f.interpolate()
	f.fullresReconstruct()
	f.mixImages()
	f.buildAliasMap()
	require.Len(t, f.alias, w*h)

	mean := func(x0, x1 int) float64 {
		var sum float64
		for y := 8; y < h-8; y++ {
			for x := x0; x < x1; x++ {
				sum += float64(f.alias[y*w+x])
			}
		}
		return sum / float64((h-16)*(x1-x0))
	}
	assert.Greater(t, mean(72, w-8), float64(AliasMapMax)/4)
	assert.Less(t, mean(8, 48), float64(AliasMapMax)/16)
}

// A native outlier stays in the full resolution image but only reaches the
// half resolution one through two rounds of interpolation and the box.
func TestHalfresDampsNativeSamples(t *testing.T) {
	const w, h = 64, 64
	const x, y = 6, 32
	halfres := func(outlier bool) (full, half float32) {
		p := synth(w, h, 4, 8000, pairsBright)
		il, err := Analyze(p)
		require.NoError(t, err)
		require.True(t, il.IsBright(y))
		if outlier {
			p.Pix[y*w+x] = synthBlack + (p.Pix[y*w+x]-synthBlack)/4
		}
		f := newFusion(p, il, zeroLUT, Options{Parallel: parallel.Config{Workers: 1}})
		f.interpolate()
		f.fullresReconstruct()
		f.mixImages()
		return f.fullres[y*w+x], f.halfres[y*w+x]
	}
	cleanFull, cleanHalf := halfres(false)
	full, half := halfres(true)
	assert.InDelta(t, 0.25, full/cleanFull, 0.01)
	assert.Greater(t, half/cleanHalf, float32(0.8))
}

func TestProcessThreadInvariant(t *testing.T) {
	run := func(workers int) []float32 {
		p := synth(96, 96, 8, 40000, pairsBright)
		err := Process(p, Options{AliasMap: true, FullRes: true, Chroma: Chroma3x3, LUT: zeroLUT, Seed: 9,
			Parallel: parallel.Config{Workers: workers}})
		require.NoError(t, err)
		return p.Pix
	}
	assert.Equal(t, run(1), run(4))
}

func TestChromaSmoothRemovesOutlier(t *testing.T) {
	const v = 3000
	p := raw.NewPlane(24, 24, raw.RGGB)
	p.White = 16383
	for i := range p.Pix {
		p.Pix[i] = v
	}
	p.Pix[10*24+10] = 2 * v // a red site
	ChromaSmooth(p, Chroma3x3, zeroLUT, parallel.Config{Workers: 2})
	assert.InDelta(t, v, p.Pix[10*24+10], 1)
	for i, got := range p.Pix {
		if i == 10*24+10 {
			continue
		}
		if math.Abs(float64(got-v)) > 1 {
			t.Fatalf("pixel %d = %v, want %v", i, got, v)
		}
	}
}

func TestChromaSmoothOffIsNoop(t *testing.T) {
	p := raw.NewPlane(8, 8, raw.RGGB)
	p.Pix[9] = 123
	ChromaSmooth(p, ChromaOff, zeroLUT, parallel.Config{})
	assert.Equal(t, float32(123), p.Pix[9])
}

func TestDownconvert(t *testing.T) {
	const w, h = 256, 256
	src := make([]float32, w*h)
	for i := range src {
		src[i] = 16*1000 + 8 // 1000.5 in 16-bit units
	}
	a := make([]float32, w*h)
	b := make([]float32, w*h)
	Downconvert(src, a, w, h, 42, parallel.Config{Workers: 1})
	Downconvert(src, b, w, h, 42, parallel.Config{Workers: 4})
	require.Equal(t, a, b)

	var sum, sq float64
	for _, v := range a {
		require.Equal(t, math.Floor(float64(v)), float64(v))
		sum += float64(v)
	}
	mean := sum / float64(len(a))
	for _, v := range a {
		sq += (float64(v) - mean) * (float64(v) - mean)
	}
	sd := math.Sqrt(sq / float64(len(a)))
	assert.InDelta(t, 1000.5, mean, 0.05)
	assert.Greater(t, sd, 0.45)
	assert.Less(t, sd, 0.7)
}

func TestDownconvertClamps(t *testing.T) {
	src := []float32{-100, 1 << 21}
	dst := make([]float32, 2)
	Downconvert(src, dst, 2, 1, 0, parallel.Config{})
	assert.Equal(t, []float32{0, 65535}, dst)
}

func TestParseOptions(t *testing.T) {
	m, err := ParseInterp("mean23")
	require.NoError(t, err)
	assert.Equal(t, Mean23, m)
	m, err = ParseInterp("Edge")
	require.NoError(t, err)
	assert.Equal(t, EdgeDirected, m)
	_, err = ParseInterp("bicubic")
	assert.Error(t, err)

	for size, want := range map[int]Chroma{0: ChromaOff, 2: Chroma2x2, 3: Chroma3x3, 5: Chroma5x5} {
		c, err := ChromaFromSize(size)
		require.NoError(t, err)
		assert.Equal(t, want, c)
	}
	_, err = ChromaFromSize(4)
	assert.Error(t, err)
}

func BenchmarkProcess(b *testing.B) {
	src := synth(1024, 512, 8, 40000, pairsBright)
	opts := Options{AliasMap: true, FullRes: true, Chroma: Chroma2x2, LUT: zeroLUT}
	for i := 0; i < b.N; i++ {
		p := src.Clone()
		if err := Process(p, opts); err != nil {
			b.Fatal(err)
		}
	}
}
