package defect

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
)

// mapSuffixes are tried in order when looking for a map file.
var mapSuffixes = []string{"", ".gz", ".zst"}

type cacheKey struct {
	kind Kind
	sig  Signature
	clip string
}

// cacheEntry holds one map. once guards its load and, for bad pixels, its
// detection; other keys proceed while it runs.
type cacheEntry struct {
	once sync.Once
	m    *PixelMap
}

// MapCache loads each pixel map at most once and keeps it for the lifetime of
// the cache. Lookups for the same key from several goroutines share one load
// (and, for bad pixels, one detection).
type MapCache struct {
	dir string

	mu   sync.Mutex
	maps map[cacheKey]*cacheEntry
}

// NewMapCache returns a cache reading and writing maps in dir. An empty dir
// disables loading and saving; bad pixels are then always detected.
func NewMapCache(dir string) *MapCache {
	return &MapCache{dir: dir, maps: make(map[cacheKey]*cacheEntry)}
}

// entry returns the entry for key, adding an empty one if needed. Only the
// map lookup runs under the cache lock.
func (c *MapCache) entry(key cacheKey) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.maps[key]
	if !ok {
		e = &cacheEntry{}
		c.maps[key] = e
	}
	return e
}

// Dir returns the map directory.
func (c *MapCache) Dir() string { return c.dir }

// Focus returns the focus pixel map for sig. A missing file, a file for
// another camera or an unreadable file all yield a map in the NotFound
// state.
func (c *MapCache) Focus(sig Signature) *PixelMap {
	e := c.entry(cacheKey{kind: Focus, sig: sig})
	e.once.Do(func() { e.m = c.loadFocus(sig) })
	return e.m
}

func (c *MapCache) loadFocus(sig Signature) *PixelMap {
	m := NewPixelMap(Focus, sig)
	m.State = NotFound

	mf, path, err := c.load(FocusMapName(sig))
	switch {
	case err == nil && mf.HasID && mf.CameraID != sig.CameraID:
		monitoring.Logf("%v", &SignatureError{Path: path, Want: sig.CameraID, Got: mf.CameraID})
	case err == nil:
		m.Add(mf.Points...)
		m.State = Loaded
		monitoring.Logf("defect: loaded %d focus pixels from %s", m.Len(), path)
	case !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrNoMapDir):
		monitoring.Logf("defect: focus map for %v: %v", sig, err)
	}
	return m
}

// Bad returns the bad pixel map of a clip. When no saved map exists detect
// is run once; a non-empty result is saved next to the other maps. The
// returned error reports a failed save only; the map is usable either way.
//
// Detection for one clip does not hold up lookups of other clips. Callers
// asking for the same clip meanwhile wait and share the result; only the
// call that ran detection sees a save error.
func (c *MapCache) Bad(sig Signature, clip string, detect func() []Point) (*PixelMap, error) {
	name := BadMapName(clip)
	e := c.entry(cacheKey{kind: Bad, sig: sig, clip: name})
	var err error
	e.once.Do(func() { e.m, err = c.loadBad(sig, clip, name, detect) })
	return e.m, err
}

func (c *MapCache) loadBad(sig Signature, clip, name string, detect func() []Point) (*PixelMap, error) {
	m := NewPixelMap(Bad, sig)
	mf, path, err := c.load(name)
	if err == nil {
		m.Add(mf.Points...)
		m.State = Loaded
		monitoring.Logf("defect: loaded %d bad pixels from %s", m.Len(), path)
		return m, nil
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrNoMapDir) {
		monitoring.Logf("defect: bad pixel map for %s: %v", clip, err)
	}
	m.State = NotFound

	if detect == nil {
		return m, nil
	}
	m.Add(detect()...)
	if m.Len() == 0 {
		m.State = NoneFound
		return m, nil
	}
	m.State = Detected
	monitoring.Logf("defect: detected %d bad pixels in %s", m.Len(), clip)
	if c.dir == "" {
		return m, nil
	}
	out := filepath.Join(c.dir, name)
	if err := SaveMapFile(out, &MapFile{Points: m.Points}); err != nil {
		return m, err
	}
	return m, nil
}

// MarkApplied records that m was interpolated into a frame.
func (c *MapCache) MarkApplied(m *PixelMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m.State = Applied
}

// Forget drops every cached map, so the next lookup reloads from disk. Loads
// already running finish into the dropped entries.
func (c *MapCache) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.maps)
}

func (c *MapCache) load(name string) (*MapFile, string, error) {
	if c.dir == "" {
		return nil, "", ErrNoMapDir
	}
	base := filepath.Join(c.dir, name)
	for _, sfx := range mapSuffixes {
		path := base + sfx
		if _, err := os.Stat(path); err != nil {
			continue
		}
		mf, err := LoadMapFile(path)
		return mf, path, err
	}
	return nil, base, fs.ErrNotExist
}
