package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsFile(t *testing.T) {
	cfg, err := Load("tuning.defaults.json")
	require.NoError(t, err)

	assert.Equal(t, "amaze", cfg.GetAlgorithm())
	assert.Equal(t, 0, cfg.GetThreads())
	assert.Equal(t, "normal", cfg.GetBadPixels())
	assert.Equal(t, 8.0, cfg.GetDarkNoise())
	assert.Equal(t, "edge", cfg.GetDualISOInterpolation())
	assert.Equal(t, 2, cfg.GetChromaSmooth())
	assert.True(t, cfg.GetDualISOAliasMap())
	assert.False(t, cfg.GetPatternNoise())
}

// Every Get method on an empty config must agree with the defaults file so
// partial configs behave like the shipped defaults.
func TestEmptyMatchesDefaultsFile(t *testing.T) {
	file, err := Load("tuning.defaults.json")
	require.NoError(t, err)
	empty := Empty()

	assert.Equal(t, file.GetAlgorithm(), empty.GetAlgorithm())
	assert.Equal(t, file.GetThreads(), empty.GetThreads())
	assert.Equal(t, file.GetFocusPixels(), empty.GetFocusPixels())
	assert.Equal(t, file.GetBadPixels(), empty.GetBadPixels())
	assert.Equal(t, file.GetDarkNoise(), empty.GetDarkNoise())
	assert.Equal(t, file.GetPatternNoise(), empty.GetPatternNoise())
	assert.Equal(t, file.GetMapDir(), empty.GetMapDir())
	assert.Equal(t, file.GetDualISO(), empty.GetDualISO())
	assert.Equal(t, file.GetDualISOInterpolation(), empty.GetDualISOInterpolation())
	assert.Equal(t, file.GetDualISOAliasMap(), empty.GetDualISOAliasMap())
	assert.Equal(t, file.GetDualISOFullRes(), empty.GetDualISOFullRes())
	assert.Equal(t, file.GetChromaSmooth(), empty.GetChromaSmooth())
	assert.Equal(t, file.GetMemoryLimit(), empty.GetMemoryLimit())
}

func TestPartialConfig(t *testing.T) {
	cfg, err := Parse([]byte(`{"algorithm": "RCD", "chroma_smooth": 5}`))
	require.NoError(t, err)
	assert.Equal(t, "rcd", cfg.GetAlgorithm())
	assert.Equal(t, 5, cfg.GetChromaSmooth())
	assert.Equal(t, DefaultDarkNoise, cfg.GetDarkNoise())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"algorithm", `{"algorithm": "vng"}`, "unknown algorithm"},
		{"threads", `{"threads": -1}`, "threads"},
		{"bad pixels", `{"bad_pixels": "always"}`, "bad_pixels"},
		{"dark noise", `{"dark_noise": -2}`, "dark_noise"},
		{"interp", `{"dual_iso_interpolation": "cubic"}`, "dual_iso_interpolation"},
		{"chroma", `{"chroma_smooth": 4}`, "chroma_smooth"},
		{"memory", `{"memory_limit_bytes": -5}`, "memory_limit_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "tuning.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json")

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	big := filepath.Join(dir, "big.json")
	require.NoError(t, os.WriteFile(big, []byte(`{"map_dir": "`+strings.Repeat("a", maxFileSize)+`"}`), 0o644))
	_, err = Load(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"threads": `), 0o644))
	_, err = Load(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}
