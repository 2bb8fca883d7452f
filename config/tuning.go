// Package config loads reconstruction tuning parameters from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the repository copy of the tuning defaults.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxFileSize caps tuning files at 1 MB.
const maxFileSize = 1 << 20

// Built-in fallbacks used when a field is absent from the JSON.
const (
	DefaultAlgorithm      = "amaze"
	DefaultDarkNoise      = 8.0
	DefaultInterpolation  = "edge"
	DefaultChromaSmooth   = 2
	DefaultMapDir         = "."
	DefaultBadPixelMode   = "normal"
	DefaultDualISOEnabled = true
)

// Tuning holds every user-adjustable reconstruction parameter. Pointer fields
// distinguish "not set" from zero values; use the Get methods to read them.
type Tuning struct {
	// Demosaic
	Algorithm *string `json:"algorithm,omitempty"`
	Threads   *int    `json:"threads,omitempty"`

	// Defect correction
	FocusPixels  *bool    `json:"focus_pixels,omitempty"`
	BadPixels    *string  `json:"bad_pixels,omitempty"` // "off", "normal", "aggressive"
	DarkNoise    *float64 `json:"dark_noise,omitempty"`
	PatternNoise *bool    `json:"pattern_noise,omitempty"`
	MapDir       *string  `json:"map_dir,omitempty"`

	// Dual ISO
	DualISO              *bool   `json:"dual_iso,omitempty"`
	DualISOInterpolation *string `json:"dual_iso_interpolation,omitempty"` // "edge" or "mean23"
	DualISOAliasMap      *bool   `json:"dual_iso_alias_map,omitempty"`
	DualISOFullRes       *bool   `json:"dual_iso_fullres,omitempty"`
	ChromaSmooth         *int    `json:"chroma_smooth,omitempty"` // 0, 2, 3 or 5

	// Resources
	MemoryLimit *int64 `json:"memory_limit_bytes,omitempty"`
}

// Empty returns a Tuning with every field unset.
func Empty() *Tuning {
	return &Tuning{}
}

// Load reads a Tuning from a .json file no larger than 1 MB and validates it.
// Fields missing from the file fall back to the built-in defaults.
func Load(path string) (*Tuning, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates JSON tuning data.
func Parse(data []byte) (*Tuning, error) {
	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations of the fields that are set.
func (c *Tuning) Validate() error {
	if c.Algorithm != nil {
		switch strings.ToLower(*c.Algorithm) {
		case "none", "simple", "bilinear", "amaze", "rcd", "lmmse", "ahd", "igv":
		default:
			return fmt.Errorf("unknown algorithm %q", *c.Algorithm)
		}
	}
	if c.Threads != nil && *c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", *c.Threads)
	}
	if c.BadPixels != nil {
		switch *c.BadPixels {
		case "off", "normal", "aggressive":
		default:
			return fmt.Errorf("bad_pixels must be off, normal or aggressive, got %q", *c.BadPixels)
		}
	}
	if c.DarkNoise != nil && (*c.DarkNoise < 0 || *c.DarkNoise > 1000) {
		return fmt.Errorf("dark_noise must be between 0 and 1000, got %v", *c.DarkNoise)
	}
	if c.DualISOInterpolation != nil {
		switch *c.DualISOInterpolation {
		case "edge", "mean23":
		default:
			return fmt.Errorf("dual_iso_interpolation must be edge or mean23, got %q", *c.DualISOInterpolation)
		}
	}
	if c.ChromaSmooth != nil {
		switch *c.ChromaSmooth {
		case 0, 2, 3, 5:
		default:
			return fmt.Errorf("chroma_smooth must be 0, 2, 3 or 5, got %d", *c.ChromaSmooth)
		}
	}
	if c.MemoryLimit != nil && *c.MemoryLimit < 0 {
		return fmt.Errorf("memory_limit_bytes must be >= 0, got %d", *c.MemoryLimit)
	}
	return nil
}

func (c *Tuning) GetAlgorithm() string {
	if c.Algorithm == nil {
		return DefaultAlgorithm
	}
	return strings.ToLower(*c.Algorithm)
}

// GetThreads returns the worker count; 0 means one per CPU.
func (c *Tuning) GetThreads() int {
	if c.Threads == nil {
		return 0
	}
	return *c.Threads
}

func (c *Tuning) GetFocusPixels() bool {
	if c.FocusPixels == nil {
		return true
	}
	return *c.FocusPixels
}

func (c *Tuning) GetBadPixels() string {
	if c.BadPixels == nil {
		return DefaultBadPixelMode
	}
	return *c.BadPixels
}

func (c *Tuning) GetDarkNoise() float64 {
	if c.DarkNoise == nil {
		return DefaultDarkNoise
	}
	return *c.DarkNoise
}

func (c *Tuning) GetPatternNoise() bool {
	if c.PatternNoise == nil {
		return false
	}
	return *c.PatternNoise
}

func (c *Tuning) GetMapDir() string {
	if c.MapDir == nil {
		return DefaultMapDir
	}
	return *c.MapDir
}

func (c *Tuning) GetDualISO() bool {
	if c.DualISO == nil {
		return DefaultDualISOEnabled
	}
	return *c.DualISO
}

func (c *Tuning) GetDualISOInterpolation() string {
	if c.DualISOInterpolation == nil {
		return DefaultInterpolation
	}
	return *c.DualISOInterpolation
}

func (c *Tuning) GetDualISOAliasMap() bool {
	if c.DualISOAliasMap == nil {
		return true
	}
	return *c.DualISOAliasMap
}

func (c *Tuning) GetDualISOFullRes() bool {
	if c.DualISOFullRes == nil {
		return true
	}
	return *c.DualISOFullRes
}

func (c *Tuning) GetChromaSmooth() int {
	if c.ChromaSmooth == nil {
		return DefaultChromaSmooth
	}
	return *c.ChromaSmooth
}

// GetMemoryLimit returns the scratch memory cap in bytes; 0 is unlimited.
func (c *Tuning) GetMemoryLimit() int64 {
	if c.MemoryLimit == nil {
		return 0
	}
	return *c.MemoryLimit
}
