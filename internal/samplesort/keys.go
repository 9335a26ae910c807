package samplesort

import (
	psort "github.com/exascience/pargo/sort"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Key is the type of sortable keys.
type Key interface {
	constraints.Integer
}

// keySlice adapts a key slice to pargo's parallel sorter.
type keySlice[K Key] []K

func (s keySlice[K]) SequentialSort(i, j int) { slices.Sort(s[i:j]) }

func (s keySlice[K]) Len() int { return len(s) }

func (s keySlice[K]) Less(i, j int) bool { return s[i] < s[j] }

func (s keySlice[K]) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// LocalSort sorts keys in place in non-decreasing order.
// Large arrays are split across goroutines by a parallel quicksort.
func LocalSort[K Key](keys []K) {
	psort.Sort(keySlice[K](keys))
}

// IsSorted reports whether keys is in non-decreasing order.
func IsSorted[K Key](keys []K) bool {
	return psort.IsSorted(keySlice[K](keys))
}
