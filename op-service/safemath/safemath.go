// Package safemath has overflow-aware arithmetic on unsigned integers of any width.
package safemath

import "golang.org/x/exp/constraints"

// SafeAdd returns a+b, wrapped, and whether it overflowed.
func SafeAdd[V constraints.Unsigned](a, b V) (out V, overflow bool) {
	out = a + b
	return out, out < a
}

// SafeSub returns a-b, wrapped, and whether it underflowed.
func SafeSub[V constraints.Unsigned](a, b V) (out V, underflow bool) {
	out = a - b
	return out, out > a
}

// SafeMul returns a*b, wrapped, and whether it overflowed.
func SafeMul[V constraints.Unsigned](a, b V) (out V, overflow bool) {
	out = a * b
	return out, a != 0 && out/a != b
}

// SaturatingAdd returns a+b, capped at the max value of the type.
func SaturatingAdd[V constraints.Unsigned](a, b V) V {
	if out, overflow := SafeAdd(a, b); !overflow {
		return out
	}
	return ^V(0)
}

// SaturatingSub returns a-b, floored at zero.
func SaturatingSub[V constraints.Unsigned](a, b V) V {
	if out, underflow := SafeSub(a, b); !underflow {
		return out
	}
	return 0
}
