package samplesort

// SelectSamples picks p-1 regularly spaced keys from a sorted local array.
// Sample i is taken at floor((i+1)*n/p), clamped to n-1 so very small shares
// still yield p-1 keys (repeating their last key). An empty array yields no
// samples.
func SelectSamples[K Key](sorted []K, p int) []K {
	n := len(sorted)
	if p <= 1 || n == 0 {
		return nil
	}
	samples := make([]K, p-1)
	for i := range samples {
		pos := (i + 1) * n / p
		if pos >= n {
			pos = n - 1
		}
		samples[i] = sorted[pos]
	}
	return samples
}
