// Package interleave converts planar float colour data into the interleaved
// 16-bit RGB layout handed to callers.
//
// The planar layout stores each channel contiguously; the interleaved layout
// stores the three samples of a pixel next to each other:
//
//	Planar:      [R0 R1 R2 ...] [G0 G1 G2 ...] [B0 B1 B2 ...]
//	Interleaved: [R0 G0 B0 R1 G1 B1 R2 G2 B2 ...]
package interleave

// Interleave packs three planes into out, rounding and clamping every sample
// to [0, 65535]. NaN becomes 0. If out is nil or too small a new buffer is
// allocated. The planes must have equal length.
func Interleave(r, g, b []float32, out []uint16) []uint16 {
	n := len(r)
	if len(out) < 3*n {
		out = make([]uint16, 3*n)
	}
	g, b = g[:n], b[:n]
	for i := 0; i < n; i++ {
		o := out[3*i : 3*i+3 : 3*i+3]
		o[0] = clamp16(r[i])
		o[1] = clamp16(g[i])
		o[2] = clamp16(b[i])
	}
	return out[:3*n]
}

// Rows interleaves only rows [y0, y1) of width-wide planes into out, which
// must already hold the whole frame. Workers use it on disjoint row ranges.
func Rows(r, g, b []float32, width, y0, y1 int, out []uint16) {
	lo, hi := y0*width, y1*width
	Interleave(r[lo:hi], g[lo:hi], b[lo:hi], out[3*lo:3*hi])
}

func clamp16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}
