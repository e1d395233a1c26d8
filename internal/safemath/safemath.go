// Package safemath holds overflow-checked arithmetic and range checks for immediates and
// branch displacements.
package safemath

import (
	"errors"
	"math/bits"
)

var ErrOverflow = errors.New("number overflow")

type Signed interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int
}

// Add returns a+b and false when the sum overflows T.
func Add[T Signed](a, b T) (T, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

// Sub returns a-b and false when the difference overflows T.
func Sub[T Signed](a, b T) (T, bool) {
	c := a - b
	if (c < a) != (b > 0) {
		return 0, false
	}
	return c, true
}

func Add64(a, b uint64) (uint64, bool) {
	v, carry := bits.Add64(a, b, 0)
	return v, carry == 0
}

func Sub64(a, b uint64) (uint64, bool) {
	v, borrow := bits.Sub64(a, b, 0)
	return v, borrow == 0
}

// FitsSigned reports whether v is representable as a two's complement integer of width bits.
func FitsSigned(v int64, width uint) bool {
	if width == 0 {
		return false
	}
	if width >= 64 {
		return true
	}
	lim := int64(1) << (width - 1)
	return v >= -lim && v < lim
}

// FitsUnsigned reports whether v is non-negative and below 2^width.
func FitsUnsigned(v int64, width uint) bool {
	if v < 0 {
		return false
	}
	if width >= 63 {
		return true
	}
	return v < int64(1)<<width
}
