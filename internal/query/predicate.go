// Package query filters, orders and pages read-only snapshots of cases.
// Nothing here mutates; callers pass in sequences taken from the registry.
package query

import (
	"cmp"
	"iter"
	"slices"
)

// Predicate reports whether an item belongs in a result.
type Predicate[T any] func(T) bool

// All matches every item.
func All[T any]() Predicate[T] {
	return func(T) bool { return true }
}

// And matches items satisfying every p. And() matches everything.
func And[T any](ps ...Predicate[T]) Predicate[T] {
	ps = compact(ps)
	return func(v T) bool {
		for _, p := range ps {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

// Or matches items satisfying at least one p. Or() matches nothing.
func Or[T any](ps ...Predicate[T]) Predicate[T] {
	ps = compact(ps)
	return func(v T) bool {
		for _, p := range ps {
			if p(v) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not[T any](p Predicate[T]) Predicate[T] {
	return func(v T) bool { return !p(v) }
}

func compact[T any](ps []Predicate[T]) []Predicate[T] {
	return slices.DeleteFunc(slices.Clone(ps), func(p Predicate[T]) bool { return p == nil })
}

// Search lazily yields the items of seq matching p, in seq order.
func Search[T any](seq iter.Seq[T], p Predicate[T]) iter.Seq[T] {
	if p == nil {
		p = All[T]()
	}
	return func(yield func(T) bool) {
		for v := range seq {
			if p(v) && !yield(v) {
				return
			}
		}
	}
}

// SortBy drains seq and yields it ordered by compare. Equal items keep their input order.
func SortBy[T any](seq iter.Seq[T], compare func(a, b T) int) iter.Seq[T] {
	return func(yield func(T) bool) {
		items := slices.Collect(seq)
		slices.SortStableFunc(items, compare)
		for _, v := range items {
			if !yield(v) {
				return
			}
		}
	}
}

// Descending reverses compare.
func Descending[T any](compare func(a, b T) int) func(a, b T) int {
	return func(a, b T) int { return -compare(a, b) }
}

// Page skips offset items and yields at most limit; limit <= 0 means no cap.
func Page[T any](seq iter.Seq[T], offset, limit int) iter.Seq[T] {
	offset = max(offset, 0)
	return func(yield func(T) bool) {
		skipped, emitted := 0, 0
		for v := range seq {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && emitted >= limit {
				return
			}
			emitted++
			if !yield(v) {
				return
			}
		}
	}
}

// compareKeys orders by key and is the building block for field comparators.
func compareKeys[T any, K cmp.Ordered](key func(T) K) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(key(a), key(b)) }
}
