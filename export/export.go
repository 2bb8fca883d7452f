// Package export writes reconstructed RGB frames to image files.
//
// Three lossless 16-bit formats are supported: TIFF (deflate compressed),
// PNG and JPEG 2000 codestreams. Builds with the gocv tag hand TIFF and PNG
// files to OpenCV instead of the Go encoders.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrjoshuak/go-jpeg2000"
	"golang.org/x/image/tiff"

	"github.com/mrjoshuak/go-rawrecon/raw"
)

// Format is an output file format.
type Format uint8

const (
	TIFF Format = iota
	PNG
	J2K
)

var (
	ErrUnknownFormat = errors.New("export: unknown output format")
	ErrEmptyImage    = errors.New("export: empty image")
)

func (f Format) String() string {
	switch f {
	case TIFF:
		return "tiff"
	case PNG:
		return "png"
	case J2K:
		return "j2k"
	}
	return fmt.Sprintf("Format(%d)", f)
}

// Ext returns the preferred file extension, including the dot.
func (f Format) Ext() string {
	switch f {
	case TIFF:
		return ".tif"
	case PNG:
		return ".png"
	case J2K:
		return ".j2k"
	}
	return ""
}

// ParseFormat parses a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "tif", "tiff":
		return TIFF, nil
	case "png":
		return PNG, nil
	case "j2k", "j2c", "jpeg2000":
		return J2K, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks the format from a file name's extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// Options controls encoding.
type Options struct {
	Format Format

	// Uncompressed disables TIFF deflate compression.
	Uncompressed bool

	// Resolutions is the number of JPEG 2000 resolution levels. Zero means 6.
	Resolutions int
}

const defaultResolutions = 6

// Encode writes img to w.
func Encode(w io.Writer, img *raw.RGB16, opts Options) error {
	if img == nil || img.Width <= 0 || img.Height <= 0 || len(img.Pix) < 3*img.Width*img.Height {
		return ErrEmptyImage
	}
	m := img.Image()
	switch opts.Format {
	case TIFF:
		to := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
		if opts.Uncompressed {
			to = &tiff.Options{Compression: tiff.Uncompressed}
		}
		if err := tiff.Encode(w, m, to); err != nil {
			return fmt.Errorf("export: tiff: %w", err)
		}
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(w, m); err != nil {
			return fmt.Errorf("export: png: %w", err)
		}
	case J2K:
		res := opts.Resolutions
		if res <= 0 {
			res = defaultResolutions
		}
		jo := &jpeg2000.Options{
			Format:         jpeg2000.FormatJ2K,
			Lossless:       true,
			NumResolutions: res,
		}
		if err := jpeg2000.Encode(w, m, jo); err != nil {
			return fmt.Errorf("export: jpeg2000: %w", err)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFormat, opts.Format)
	}
	return nil
}

// WriteFile encodes img into path. The file is written to a temporary name
// in the same directory and renamed into place once complete.
func WriteFile(path string, img *raw.RGB16, opts Options) error {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return ErrEmptyImage
	}
	if ok, err := nativeWrite(path, img, opts); ok {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
