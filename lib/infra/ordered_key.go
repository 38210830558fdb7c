package infra

import "cmp"

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

type Integer interface {
	Signed | Unsigned
}

type Float interface {
	~float32 | ~float64
}

// OrderedKey is the key domain of the ordered containers.
// Floats are ordered by cmp.Compare, NaN sorts below every other value.
// byte => ~uint8
type OrderedKey interface {
	Integer | Float | ~string
}

// CompareKeys is a three-way comparison.
// Assume i is the new key.
//  1. i == j, return 0
//  2. i > j, return 1, turn to right part.
//  3. i < j, return -1, turn to left part.
//
// NaN equals NaN and is less than any other float.
func CompareKeys[K OrderedKey](i, j K) int {
	return cmp.Compare(i, j)
}
