//go:build !gocv

package export

import "github.com/mrjoshuak/go-rawrecon/raw"

// nativeWrite is unavailable without OpenCV; the Go encoders are used.
func nativeWrite(_ string, _ *raw.RGB16, _ Options) (bool, error) {
	return false, nil
}

// Native reports whether files are written through OpenCV.
const Native = false
