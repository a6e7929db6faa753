package types

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// Set is a mutable hash set. The zero value is nil; use NewSet or make.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](data ...T) Set[T] {
	set := make(Set[T], len(data))
	set.Add(data...)
	return set
}

func (s Set[T]) Add(values ...T) {
	for _, val := range values {
		s[val] = struct{}{}
	}
}

func (s Set[T]) Delete(values ...T) {
	for _, val := range values {
		delete(s, val)
	}
}

func (s Set[T]) Has(value T) bool {
	_, ok := s[value]
	return ok
}

// ToIter yields the members in no particular order.
func (s Set[T]) ToIter() iter.Seq[T] {
	return maps.Keys(s)
}

// ToSlice returns the members in no particular order.
func (s Set[T]) ToSlice() []T {
	return slices.Collect(s.ToIter())
}

// Difference returns the members of s missing from other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	diff := make(Set[T])
	for val := range s {
		if !other.Has(val) {
			diff[val] = struct{}{}
		}
	}
	return diff
}

func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for val := range s {
		if !other.Has(val) {
			return false
		}
	}
	return true
}

// Sorted returns the members of s in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return slices.Sorted(s.ToIter())
}
