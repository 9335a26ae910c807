package samplesort

import "container/heap"

// MergeRuns merges sorted runs into one new sorted slice.
func MergeRuns[K Key](runs [][]K) []K {
	total := 0
	h := make(runHeap[K], 0, len(runs))
	for _, r := range runs {
		total += len(r)
		if len(r) > 0 {
			h = append(h, r)
		}
	}

	out := make([]K, 0, total)
	switch len(h) {
	case 0:
		return out
	case 1:
		return append(out, h[0]...)
	}

	heap.Init(&h)
	for len(h) > 1 {
		top := h[0]
		out = append(out, top[0])
		if len(top) == 1 {
			heap.Pop(&h)
			continue
		}
		h[0] = top[1:]
		heap.Fix(&h, 0)
	}
	return append(out, h[0]...)
}

// runHeap orders non-empty runs by their head key.
type runHeap[K Key] [][]K

func (h runHeap[K]) Len() int           { return len(h) }
func (h runHeap[K]) Less(i, j int) bool { return h[i][0] < h[j][0] }
func (h runHeap[K]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *runHeap[K]) Push(x any) { *h = append(*h, x.([]K)) }

func (h *runHeap[K]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
