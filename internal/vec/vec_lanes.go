//go:build (amd64 || arm64) && !purego

package vec

func clampImpl(dst []float32, lo, hi float32) {
	l, h := Splat(lo), Splat(hi)
	i := 0
	for ; i+Lanes <= len(dst); i += Lanes {
		Load(dst[i:]).Max(l).Min(h).Store(dst[i:])
	}
	scalarClamp(dst[i:], lo, hi)
}

func scaleImpl(dst, src []float32, k float32) {
	kk := Splat(k)
	src = src[:len(dst)]
	i := 0
	for ; i+Lanes <= len(dst); i += Lanes {
		Load(src[i:]).Mul(kk).Store(dst[i:])
	}
	scalarScale(dst[i:], src[i:], k)
}

func lerpImpl(dst, a, b, w []float32) {
	n := len(dst)
	a, b, w = a[:n], b[:n], w[:n]
	i := 0
	for ; i+Lanes <= n; i += Lanes {
		va := Load(a[i:])
		d := Load(w[i:]).Mul(Load(b[i:]).Sub(va))
		va.Add(d).Store(dst[i:])
	}
	scalarLerp(dst[i:], a[i:], b[i:], w[i:])
}

func absDiffImpl(dst, a, b []float32) {
	n := len(dst)
	a, b = a[:n], b[:n]
	i := 0
	for ; i+Lanes <= n; i += Lanes {
		Load(a[i:]).Sub(Load(b[i:])).Abs().Store(dst[i:])
	}
	scalarAbsDiff(dst[i:], a[i:], b[i:])
}

func addScalarImpl(dst, src []float32, k float32) {
	kk := Splat(k)
	src = src[:len(dst)]
	i := 0
	for ; i+Lanes <= len(dst); i += Lanes {
		Load(src[i:]).Add(kk).Store(dst[i:])
	}
	scalarAddScalar(dst[i:], src[i:], k)
}
