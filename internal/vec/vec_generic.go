//go:build purego || !(amd64 || arm64)

package vec

func clampImpl(dst []float32, lo, hi float32) { scalarClamp(dst, lo, hi) }

func scaleImpl(dst, src []float32, k float32) { scalarScale(dst, src, k) }

func lerpImpl(dst, a, b, w []float32) { scalarLerp(dst, a, b, w) }

func absDiffImpl(dst, a, b []float32) { scalarAbsDiff(dst, a, b) }

func addScalarImpl(dst, src []float32, k float32) { scalarAddScalar(dst, src, k) }
