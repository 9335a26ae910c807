package samplesort

import "fmt"

// Verify checks that parts, taken in rank order, form one sorted sequence
// and, when pivots is non-nil, that every key sits in its pivot range.
func Verify(parts [][]int64, pivots []int64) error {
	var prev int64
	seen := false
	for r, part := range parts {
		if !IsSorted(part) {
			return fmt.Errorf("rank %d: partition not sorted", r)
		}
		if len(part) == 0 {
			continue
		}
		if seen && part[0] < prev {
			return fmt.Errorf("rank %d: first key %d below previous rank's last key %d", r, part[0], prev)
		}
		if pivots != nil {
			for _, k := range []int64{part[0], part[len(part)-1]} {
				if b := BucketOf(pivots, k); b != r {
					return fmt.Errorf("rank %d: key %d belongs to range %d", r, k, b)
				}
			}
		}
		prev, seen = part[len(part)-1], true
	}
	return nil
}
