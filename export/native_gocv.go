//go:build gocv

package export

import (
	"encoding/binary"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/mrjoshuak/go-rawrecon/raw"
)

// Native reports whether files are written through OpenCV.
const Native = true

// nativeWrite hands TIFF and PNG output to OpenCV's imwrite. JPEG 2000
// support in OpenCV builds varies, so it stays on the Go encoder.
func nativeWrite(path string, img *raw.RGB16, opts Options) (bool, error) {
	if opts.Format != TIFF && opts.Format != PNG {
		return false, nil
	}
	if len(img.Pix) < 3*img.Width*img.Height {
		return true, ErrEmptyImage
	}
	// OpenCV expects BGR order in native byte order.
	n := 3 * img.Width * img.Height
	data := make([]byte, 0, 2*n)
	for i := 0; i < n; i += 3 {
		data = binary.NativeEndian.AppendUint16(data, img.Pix[i+2])
		data = binary.NativeEndian.AppendUint16(data, img.Pix[i+1])
		data = binary.NativeEndian.AppendUint16(data, img.Pix[i])
	}
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV16UC3, data)
	if err != nil {
		return true, fmt.Errorf("export: %w", err)
	}
	defer mat.Close()
	if !gocv.IMWrite(path, mat) {
		return true, fmt.Errorf("export: opencv could not write %s", path)
	}
	return true, nil
}
