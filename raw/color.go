package raw

import (
	"image"
	"image/color"
)

// ColorPlanes is the reconstruction output: three planes the size of the
// input mosaic.
type ColorPlanes struct {
	Width, Height int
	R, G, B       []float32
}

// NewColorPlanes allocates three zeroed planes.
func NewColorPlanes(width, height int) *ColorPlanes {
	n := width * height
	buf := make([]float32, 3*n)
	return &ColorPlanes{
		Width:  width,
		Height: height,
		R:      buf[:n:n],
		G:      buf[n : 2*n : 2*n],
		B:      buf[2*n:],
	}
}

// Plane returns the plane for channel c (Red, Green or Blue).
func (cp *ColorPlanes) Plane(c int) []float32 {
	switch c {
	case Red:
		return cp.R
	case Green:
		return cp.G
	default:
		return cp.B
	}
}

// RGB16 is an interleaved 16-bit RGB frame, three samples per pixel.
type RGB16 struct {
	Width, Height int
	Pix           []uint16
}

// At returns the red, green and blue samples at (x, y).
func (img *RGB16) At(x, y int) (r, g, b uint16) {
	i := 3 * (y*img.Width + x)
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// Image converts the frame into an image.RGBA64 for encoders from the image
// ecosystem.
func (img *RGB16) Image() *image.RGBA64 {
	out := image.NewRGBA64(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			out.SetRGBA64(x, y, color.RGBA64{R: r, G: g, B: b, A: 0xffff})
		}
	}
	return out
}

// ClampUint16 rounds v to the nearest integer in [0, 65535].
func ClampUint16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}
