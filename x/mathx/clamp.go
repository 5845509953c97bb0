package mathx

import "golang.org/x/exp/constraints"

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Even reports whether v has its low bit clear.
func Even[T constraints.Integer](v T) bool { return v&1 == 0 }

// IndexOf returns the position of v in table, or -1.
func IndexOf[T comparable](table []T, v T) int {
	for i, x := range table {
		if x == v {
			return i
		}
	}
	return -1
}
