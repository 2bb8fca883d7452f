// Package vec is a small width-agnostic vector layer for float32 planes.
//
// Each operation has a scalar reference implementation. On amd64 and arm64 the
// exported functions use a 4-lane unrolled path built on F32x4; the purego
// build tag (or any other architecture) selects the scalar path. Both paths
// produce bit-identical results: every lane performs the same float32
// operations in the same order, with explicit conversions so no
// multiply-add is fused.
package vec

// Lanes is the number of float32 lanes in F32x4.
const Lanes = 4

// F32x4 is a group of four float32 lanes.
type F32x4 [Lanes]float32

// Load reads four lanes starting at s[0].
func Load(s []float32) F32x4 {
	_ = s[3]
	return F32x4{s[0], s[1], s[2], s[3]}
}

// Splat broadcasts v to every lane.
func Splat(v float32) F32x4 { return F32x4{v, v, v, v} }

// Store writes the lanes to s[0:4].
func (a F32x4) Store(s []float32) {
	_ = s[3]
	s[0], s[1], s[2], s[3] = a[0], a[1], a[2], a[3]
}

func (a F32x4) Add(b F32x4) F32x4 { return F32x4{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]} }
func (a F32x4) Sub(b F32x4) F32x4 { return F32x4{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]} }
func (a F32x4) Mul(b F32x4) F32x4 { return F32x4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]} }

func (a F32x4) Min(b F32x4) F32x4 {
	for i := range a {
		if b[i] < a[i] {
			a[i] = b[i]
		}
	}
	return a
}

func (a F32x4) Max(b F32x4) F32x4 {
	for i := range a {
		if b[i] > a[i] {
			a[i] = b[i]
		}
	}
	return a
}

func (a F32x4) Abs() F32x4 {
	for i := range a {
		if a[i] < 0 {
			a[i] = -a[i]
		}
	}
	return a
}

// Clamp limits every value of dst to [lo, hi].
func Clamp(dst []float32, lo, hi float32) { clampImpl(dst, lo, hi) }

// Scale sets dst[i] = src[i] * k.
func Scale(dst, src []float32, k float32) { scaleImpl(dst, src, k) }

// Lerp sets dst[i] = a[i] + w[i]*(b[i]-a[i]).
func Lerp(dst, a, b, w []float32) { lerpImpl(dst, a, b, w) }

// AbsDiff sets dst[i] = |a[i] - b[i]|.
func AbsDiff(dst, a, b []float32) { absDiffImpl(dst, a, b) }

// AddScalar sets dst[i] = src[i] + k.
func AddScalar(dst, src []float32, k float32) { addScalarImpl(dst, src, k) }

func scalarClamp(dst []float32, lo, hi float32) {
	for i, v := range dst {
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		dst[i] = v
	}
}

func scalarScale(dst, src []float32, k float32) {
	for i := range dst {
		dst[i] = src[i] * k
	}
}

func scalarLerp(dst, a, b, w []float32) {
	for i := range dst {
		dst[i] = a[i] + float32(w[i]*(b[i]-a[i]))
	}
}

func scalarAbsDiff(dst, a, b []float32) {
	for i := range dst {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		dst[i] = d
	}
}

func scalarAddScalar(dst, src []float32, k float32) {
	for i := range dst {
		dst[i] = src[i] + k
	}
}
