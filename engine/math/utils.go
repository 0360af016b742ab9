package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// PackSnorm1010102 packs three signed-normalized components plus a 2-bit
// field into a single 32-bit value: 10 bits per component (two's complement),
// the extra field in the top 2 bits. Components are clamped to [-1, 1].
func PackSnorm1010102(x, y, z float32, w uint32) uint32 {
	return packSnorm10(x) |
		packSnorm10(y)<<10 |
		packSnorm10(z)<<20 |
		(w&0x3)<<30
}

// UnpackSnorm1010102 is the inverse of PackSnorm1010102.
func UnpackSnorm1010102(packed uint32) (x, y, z float32, w uint32) {
	x = unpackSnorm10(packed)
	y = unpackSnorm10(packed >> 10)
	z = unpackSnorm10(packed >> 20)
	w = (packed >> 30) & 0x3
	return x, y, z, w
}

func packSnorm10(v float32) uint32 {
	scaled := gomath.Round(float64(Clamp(v, -1.0, 1.0)) * 511.0)
	return uint32(int32(scaled)) & 0x3FF
}

func unpackSnorm10(bits uint32) float32 {
	i := int32(bits & 0x3FF)
	if i >= 512 {
		i -= 1024
	}
	return Clamp(float32(i)/511.0, -1.0, 1.0)
}
