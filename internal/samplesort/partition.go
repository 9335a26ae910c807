package samplesort

import "golang.org/x/exp/slices"

// Partition splits a sorted array into len(pivots)+1 buckets. Key k goes to
// bucket i when pivots[i-1] < k <= pivots[i]; bucket 0 is open below and the
// last bucket is open above. One forward sweep suffices because both the
// keys and the pivots are sorted.
//
// Buckets are capped sub-slices of sorted, so appending to one never
// overwrites its neighbour. Buckets may be empty.
func Partition[K Key](sorted []K, pivots []K) [][]K {
	buckets := make([][]K, len(pivots)+1)
	b, start := 0, 0
	for i, k := range sorted {
		for b < len(pivots) && k > pivots[b] {
			buckets[b] = sorted[start:i:i]
			start = i
			b++
		}
	}
	buckets[b] = sorted[start:len(sorted):len(sorted)]
	return buckets
}

// BucketOf returns the bucket Partition assigns key to.
func BucketOf[K Key](pivots []K, key K) int {
	i, _ := slices.BinarySearch(pivots, key)
	return i
}
