package rawrecon

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-rawrecon/config"
	"github.com/mrjoshuak/go-rawrecon/defect"
	"github.com/mrjoshuak/go-rawrecon/demosaic"
	"github.com/mrjoshuak/go-rawrecon/dualiso"
	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

func init() {
	monitoring.SetLogger(nil)
}

func ptr[T any](v T) *T { return &v }

func newEngine(t *testing.T, tune *config.Tuning) *Engine {
	t.Helper()
	if tune == nil {
		tune = config.Empty()
	}
	if tune.MapDir == nil {
		tune.MapDir = ptr(t.TempDir())
	}
	e, err := New(tune)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func flat(w, h int, v float32) *raw.Plane {
	p := raw.NewPlane(w, h, raw.RGGB)
	p.Black = 2048
	p.White = 16383
	for i := range p.Pix {
		p.Pix[i] = v
	}
	return p
}

// interlaced builds a grey dual-ISO frame with bright row pairs 0 and 1.
func interlaced(w, h int, gain float64) *raw.Plane {
	p := flat(w, h, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := 30000 * (0.05 + 0.95*float64(x)/float64(w-1)) * (1 + 0.1*float64(y)/float64(h))
			if y&3 > 1 {
				s /= gain
			}
			p.Pix[y*w+x] = float32(math.Min(2048+s, 16383))
		}
	}
	return p
}

func TestNewRejectsInvalidTuning(t *testing.T) {
	if _, err := New(&config.Tuning{Threads: ptr(-1)}); err == nil {
		t.Error("New accepted negative threads")
	}
	e, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Tuning() == nil || e.Maps() == nil {
		t.Error("New(nil) left the engine incomplete")
	}
}

func TestThreads(t *testing.T) {
	e := newEngine(t, &config.Tuning{Threads: ptr(3)})
	if got := e.threads(5); got != 5 {
		t.Errorf("threads(5) = %d, want 5", got)
	}
	if got := e.threads(0); got != 3 {
		t.Errorf("threads(0) = %d, want 3 from tuning", got)
	}
	if got := newEngine(t, nil).threads(0); got < 1 {
		t.Errorf("default threads = %d", got)
	}
}

func TestLUTFollowsBlackLevel(t *testing.T) {
	e := newEngine(t, nil)
	a := e.LUT(flat(4, 4, 0))
	if b := e.LUT(flat(8, 8, 0)); a != b {
		t.Error("same black level rebuilt the table")
	}
	p := flat(4, 4, 0)
	p.Black = 512
	if c := e.LUT(p); c == a || c.Black != 512 {
		t.Errorf("black 512 table has black %d", c.Black)
	}
	if n := e.luts.Builds(); n != 2 {
		t.Errorf("Builds() = %d, want 2", n)
	}
}

func TestReconstructUniform(t *testing.T) {
	e := newEngine(t, nil)
	for _, alg := range []demosaic.Algorithm{demosaic.Bilinear, demosaic.AMaZE, demosaic.LMMSE} {
		img, err := e.Reconstruct(flat(40, 30, 5000), alg, 2)
		if err != nil {
			t.Fatalf("%v: %v", alg, err)
		}
		if img.Width != 40 || img.Height != 30 || len(img.Pix) != 3*40*30 {
			t.Fatalf("%v: got %dx%d with %d samples", alg, img.Width, img.Height, len(img.Pix))
		}
		for i, v := range img.Pix {
			if v < 4999 || v > 5001 {
				t.Fatalf("%v: sample %d = %d, want 5000", alg, i, v)
			}
		}
	}
	if gets, allocs := e.ScratchStats(); gets == 0 || allocs == 0 {
		t.Errorf("ScratchStats() = %d, %d after an AMaZE frame", gets, allocs)
	}
	if _, err := e.Reconstruct(&raw.Plane{}, demosaic.Bilinear, 1); !errors.Is(err, raw.ErrEmptyPlane) {
		t.Errorf("empty plane error = %v, want ErrEmptyPlane", err)
	}
}

func TestFixFocusPixels(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, &config.Tuning{MapDir: ptr(dir)})
	p := flat(32, 32, 3000)
	p.Pix[10*32+11] = 9000
	sig := defect.Signature{CameraID: 0x80000331, Width: 32, Height: 32}
	mf := &defect.MapFile{CameraID: sig.CameraID, HasID: true, Points: []defect.Point{{X: 11, Y: 10}}}
	if err := defect.SaveMapFile(filepath.Join(dir, defect.FocusMapName(sig)), mf); err != nil {
		t.Fatal(err)
	}

	if n := e.FixFocusPixels(p, sig.CameraID, false); n != 1 {
		t.Fatalf("FixFocusPixels = %d, want 1", n)
	}
	if got := p.Pix[10*32+11]; math.Abs(float64(got-3000)) > 1 {
		t.Errorf("focus pixel = %v, want 3000", got)
	}
	if n := e.FixFocusPixels(p, 0x12345678, false); n != 0 {
		t.Errorf("other camera fixed %d pixels, want 0", n)
	}
}

func TestResetMapsReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, &config.Tuning{MapDir: ptr(dir)})
	sig := defect.Signature{CameraID: 0x80000346, Width: 16, Height: 16}
	p := flat(16, 16, 3000)
	p.Pix[6*16+7] = 12000
	if n := e.FixFocusPixels(p, sig.CameraID, false); n != 0 {
		t.Fatalf("FixFocusPixels without a map = %d, want 0", n)
	}

	mf := &defect.MapFile{CameraID: sig.CameraID, HasID: true, Points: []defect.Point{{X: 7, Y: 6}}}
	if err := defect.SaveMapFile(filepath.Join(dir, defect.FocusMapName(sig)), mf); err != nil {
		t.Fatal(err)
	}
	if n := e.FixFocusPixels(p, sig.CameraID, false); n != 0 {
		t.Errorf("cached NotFound map fixed %d pixels before reset", n)
	}
	e.ResetMaps()
	if n := e.FixFocusPixels(p, sig.CameraID, false); n != 1 {
		t.Errorf("FixFocusPixels after reset = %d, want 1", n)
	}
}

func TestReconstructRowsMatchPlanes(t *testing.T) {
	e := newEngine(t, nil)
	p := interlaced(70, 45, 1)
	planes, err := e.ReconstructPlanes(p, demosaic.Bilinear, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, threads := range []int{1, 4, 64} {
		img, err := e.Reconstruct(p, demosaic.Bilinear, threads)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 70*45; i++ {
			want := uint16(math.Round(float64(planes.G[i])))
			if got := img.Pix[3*i+1]; got != want {
				t.Fatalf("threads=%d: green %d = %d, want %d", threads, i, got, want)
			}
		}
	}
}

func TestFixBadPixelsSavesMap(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, &config.Tuning{MapDir: ptr(dir)})
	p := flat(32, 32, 3000)
	p.Pix[20*32+20] = 16000
	n, err := e.FixBadPixels(p, 1, "/clips/A001.mlv", defect.DetectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("FixBadPixels = %d, want 1", n)
	}
	if got := p.Pix[20*32+20]; math.Abs(float64(got-3000)) > 1 {
		t.Errorf("bad pixel = %v, want 3000", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "A001.bpm")); err != nil {
		t.Errorf("bad pixel map not saved: %v", err)
	}
}

func TestChromaSmooth(t *testing.T) {
	e := newEngine(t, nil)
	p := flat(16, 16, 3000)
	if err := e.ChromaSmooth(p, dualiso.Chroma3x3); err != nil {
		t.Fatal(err)
	}
	for i, v := range p.Pix {
		if math.Abs(float64(v-3000)) > 1 {
			t.Fatalf("pixel %d = %v, want 3000", i, v)
		}
	}
	if err := e.ChromaSmooth(&raw.Plane{}, dualiso.Chroma2x2); !errors.Is(err, raw.ErrEmptyPlane) {
		t.Errorf("empty plane error = %v", err)
	}
}

func TestDualISOOptionsFromTuning(t *testing.T) {
	e := newEngine(t, &config.Tuning{
		DualISOInterpolation: ptr("mean23"),
		DualISOAliasMap:      ptr(false),
		ChromaSmooth:         ptr(5),
	})
	opts := e.DualISOOptions()
	if opts.Interp != dualiso.Mean23 || opts.AliasMap || !opts.FullRes || opts.Chroma != dualiso.Chroma5x5 {
		t.Errorf("DualISOOptions() = %+v", opts)
	}
}

func TestProcessDualISO(t *testing.T) {
	e := newEngine(t, &config.Tuning{
		Algorithm:   ptr("bilinear"),
		FocusPixels: ptr(false),
		BadPixels:   ptr("off"),
		Threads:     ptr(2),
	})
	p := interlaced(96, 64, 8)
	img, rep, err := e.Process(Job{Plane: p, CameraID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.DualISO || rep.DualISOErr != nil {
		t.Errorf("report = %+v, want fused frame", rep)
	}
	if p.BitDepth != 16 || img.Width != 96 || img.Height != 64 {
		t.Errorf("bit depth %d, image %dx%d", p.BitDepth, img.Width, img.Height)
	}
}

func TestProcessSingleExposure(t *testing.T) {
	e := newEngine(t, &config.Tuning{
		Algorithm:    ptr("rcd"),
		PatternNoise: ptr(true),
	})
	p := flat(48, 32, 4000)
	img, rep, err := e.Process(Job{Plane: p, CameraID: 1, Clip: "B002.mlv"})
	if err != nil {
		t.Fatal(err)
	}
	if rep.DualISO || !errors.Is(rep.DualISOErr, dualiso.ErrNoInterlace) {
		t.Errorf("dual-ISO report = %v / %v, want ErrNoInterlace", rep.DualISO, rep.DualISOErr)
	}
	if rep.Algorithm != demosaic.RCD || rep.Pattern == nil || rep.BadPixels != 0 {
		t.Errorf("report = %+v", rep)
	}
	if p.BitDepth != 14 {
		t.Errorf("plane bit depth changed to %d", p.BitDepth)
	}
	for i, v := range img.Pix {
		if v < 3999 || v > 4001 {
			t.Fatalf("sample %d = %d, want 4000", i, v)
		}
	}
}

func TestProcessEmptyPlane(t *testing.T) {
	e := newEngine(t, nil)
	if _, _, err := e.Process(Job{Plane: &raw.Plane{}}); !errors.Is(err, raw.ErrEmptyPlane) {
		t.Errorf("error = %v, want ErrEmptyPlane", err)
	}
}

func BenchmarkProcess(b *testing.B) {
	e, err := New(&config.Tuning{MapDir: ptr(""), BadPixels: ptr("off")})
	if err != nil {
		b.Fatal(err)
	}
	src := flat(1024, 768, 4000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := e.Process(Job{Plane: src.Clone()}); err != nil {
			b.Fatal(err)
		}
	}
}
