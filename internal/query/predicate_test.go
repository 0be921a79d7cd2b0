package query

import (
	"cmp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombinators(t *testing.T) {
	even := Predicate[int](func(n int) bool { return n%2 == 0 })
	big := Predicate[int](func(n int) bool { return n > 5 })
	nums := slices.Values([]int{1, 2, 3, 4, 6, 7, 8})

	tests := []struct {
		name string
		p    Predicate[int]
		want []int
	}{
		{"all", All[int](), []int{1, 2, 3, 4, 6, 7, 8}},
		{"and", And(even, big), []int{6, 8}},
		{"or", Or(even, big), []int{2, 4, 6, 7, 8}},
		{"not", Not(even), []int{1, 3, 7}},
		{"empty and matches all", And[int](), []int{1, 2, 3, 4, 6, 7, 8}},
		{"empty or matches nothing", Or[int](), nil},
		{"nil predicates are ignored", And(nil, even), []int{2, 4, 6, 8}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, slices.Collect(Search(nums, tc.p)))
		})
	}
}

func TestSearchIsLazyAndRestartable(t *testing.T) {
	calls := 0
	seq := func(yield func(int) bool) {
		for _, n := range []int{1, 2, 3, 4} {
			calls++
			if !yield(n) {
				return
			}
		}
	}
	for n := range Search(seq, All[int]()) {
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, calls)

	assert.Len(t, slices.Collect(Search(seq, All[int]())), 4)
}

func TestSortByIsStable(t *testing.T) {
	type pair struct {
		key   int
		label string
	}
	in := []pair{{2, "a"}, {1, "b"}, {2, "c"}, {1, "d"}}
	byKey := func(a, b pair) int { return cmp.Compare(a.key, b.key) }

	asc := slices.Collect(SortBy(slices.Values(in), byKey))
	assert.Equal(t, []pair{{1, "b"}, {1, "d"}, {2, "a"}, {2, "c"}}, asc)

	desc := slices.Collect(SortBy(slices.Values(in), Descending(byKey)))
	assert.Equal(t, []pair{{2, "a"}, {2, "c"}, {1, "b"}, {1, "d"}}, desc)
}

func TestPage(t *testing.T) {
	nums := slices.Values([]int{1, 2, 3, 4, 5})
	assert.Equal(t, []int{3, 4}, slices.Collect(Page(nums, 2, 2)))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, slices.Collect(Page(nums, -1, 0)))
	assert.Nil(t, slices.Collect(Page(nums, 10, 2)))
}
