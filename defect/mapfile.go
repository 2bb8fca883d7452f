package defect

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// File name extensions.
const (
	FocusExt = ".fpm"
	BadExt   = ".bpm"
)

// maxMapLine bounds a single line of a map file.
const maxMapLine = 256

// MapFile is the parsed content of a pixel map file.
type MapFile struct {
	// CameraID is set when the file carries a "#FPM <hex id>" header.
	CameraID uint32
	HasID    bool
	Points   []Point
}

// FocusMapName returns the file name of the focus map for sig.
func FocusMapName(sig Signature) string {
	return sig.String() + FocusExt
}

// BadMapName returns the file name of the bad pixel map for the clip at
// clipPath: its base name with the extension replaced.
func BadMapName(clipPath string) string {
	base := filepath.Base(clipPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + BadExt
}

// ReadMap parses a map: one "x<tab>y" pair per line, blank lines and
// "#" comments ignored, and an optional "#FPM <hex camera id>" header.
func ReadMap(r io.Reader) (*MapFile, error) {
	mf := &MapFile{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, maxMapLine), maxMapLine)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "#") {
			if rest, ok := strings.CutPrefix(s, "#FPM"); ok {
				id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(rest), "0x"), 16, 32)
				if err != nil {
					return nil, fmt.Errorf("%w %d: camera id: %v", ErrBadLine, line, err)
				}
				mf.CameraID, mf.HasID = uint32(id), true
			}
			continue
		}
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w %d: %q", ErrBadLine, line, s)
		}
		x, errX := strconv.Atoi(fields[0])
		y, errY := strconv.Atoi(fields[1])
		if errX != nil || errY != nil || x < 0 || y < 0 {
			return nil, fmt.Errorf("%w %d: %q", ErrBadLine, line, s)
		}
		mf.Points = append(mf.Points, Point{x, y})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("defect: reading map: %w", err)
	}
	return mf, nil
}

// WriteMap writes mf in the format ReadMap understands. The header is
// written only when mf.HasID is set.
func WriteMap(w io.Writer, mf *MapFile) error {
	bw := bufio.NewWriter(w)
	if mf.HasID {
		fmt.Fprintf(bw, "#FPM %x\n", mf.CameraID)
	}
	for _, p := range mf.Points {
		bw.WriteString(strconv.Itoa(p.X))
		bw.WriteByte('\t')
		bw.WriteString(strconv.Itoa(p.Y))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// compression picks the codec from the file name: ".gz" and ".zst" suffixes
// after the map extension are decompressed transparently.
func compression(path string) string {
	switch ext := filepath.Ext(path); ext {
	case ".gz", ".zst":
		return ext
	case FocusExt, BadExt, ".txt":
		return ""
	default:
		return "?"
	}
}

// LoadMapFile reads the map at path.
func LoadMapFile(path string) (*MapFile, error) {
	codec := compression(path)
	if codec == "?" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch codec {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("defect: %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("defect: %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	mf, err := ReadMap(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mf, nil
}

// SaveMapFile writes mf to path, compressing according to the suffix. The
// file is written to a temporary name first and renamed into place.
func SaveMapFile(path string, mf *MapFile) (err error) {
	codec := compression(path)
	if codec == "?" {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".map-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	switch codec {
	case ".gz":
		zw := gzip.NewWriter(tmp)
		if err = WriteMap(zw, mf); err != nil {
			return err
		}
		if err = zw.Close(); err != nil {
			return err
		}
	case ".zst":
		zw, zerr := zstd.NewWriter(tmp)
		if zerr != nil {
			return zerr
		}
		if err = WriteMap(zw, mf); err != nil {
			zw.Close()
			return err
		}
		if err = zw.Close(); err != nil {
			return err
		}
	default:
		if err = WriteMap(tmp, mf); err != nil {
			return err
		}
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
