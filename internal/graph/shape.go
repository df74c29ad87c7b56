package graph

import (
	"slices"
	"strconv"
	"strings"
)

// Shape is a tensor shape. Rank 4 shapes are NCHW, rank 2 shapes are (N, features).
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Elems returns the total number of elements.
func (s Shape) Elems() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// PerSample returns the number of elements of one batch entry.
func (s Shape) PerSample() int {
	if len(s) == 0 {
		return 0
	}
	return Shape(s[1:]).Elems()
}

// Equal reports whether both shapes have identical dimensions.
func (s Shape) Equal(o Shape) bool { return slices.Equal(s, o) }

// Clone returns a copy that does not alias s.
func (s Shape) Clone() Shape { return slices.Clone(s) }

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
