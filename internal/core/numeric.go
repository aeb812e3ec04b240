package core

import "math"

const twoPow32 = 4294967296.0

// ToInt32 applies the JS ToInt32 coercion to a double: truncate toward
// zero, reduce modulo 2^32, reinterpret as two's-complement. Wrapping,
// never saturating. NaN and the infinities coerce to 0.
func ToInt32(f float64) int32 {
	return int32(ToUint32(f))
}

// ToUint32 applies the JS ToUint32 coercion to a double.
func ToUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	t := math.Trunc(f)
	m := math.Mod(t, twoPow32)
	if m < 0 {
		m += twoPow32
	}
	return uint32(m)
}

// LossyInt64 converts a 64-bit integer to its double transport form.
// Precision loss above 2^53 is the deterministic round-to-nearest-even of
// the IEEE conversion; the same input always produces the same double.
func LossyInt64(n int64) float64 { return float64(n) }

// LossyUint64 converts an unsigned 64-bit integer to its double transport form.
func LossyUint64(n uint64) float64 { return float64(n) }

// integral reports whether f is a finite value with no fractional part.
func integral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Trunc(f) == f
}
