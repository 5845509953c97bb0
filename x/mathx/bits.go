package mathx

import "golang.org/x/exp/constraints"

// Mask returns a mask of width bits starting at bit lo.
func Mask[T constraints.Unsigned](lo, width uint) T {
	return ((T(1) << width) - 1) << lo
}

// Field extracts bits [lo, lo+width) of v, shifted down.
func Field[T constraints.Unsigned](v T, lo, width uint) T {
	return (v >> lo) & ((T(1) << width) - 1)
}

// ReplaceField stores f into bits [lo, lo+width) of v. Bits of f above
// width are dropped; callers validate width first.
func ReplaceField[T constraints.Unsigned](v, f T, lo, width uint) T {
	m := Mask[T](lo, width)
	return (v &^ m) | ((f << lo) & m)
}

// Fits reports whether f fits into width bits.
func Fits[T constraints.Unsigned](f T, width uint) bool {
	return f>>width == 0
}

// Bit reports bit n of v.
func Bit[T constraints.Unsigned](v T, n uint) bool { return v&(T(1)<<n) != 0 }

// WithBit sets or clears bit n of v.
func WithBit[T constraints.Unsigned](v T, n uint, on bool) T {
	if on {
		return v | T(1)<<n
	}
	return v &^ (T(1) << n)
}
