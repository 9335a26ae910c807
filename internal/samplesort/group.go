package samplesort

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidProcessCount = errors.New("process count must be positive")
	ErrEmptyShare          = errors.New("fewer keys than processes")
	ErrInvalidRank         = errors.New("rank out of range")
	ErrUnknownStrategy     = errors.New("unknown exchange strategy")
	ErrSizeMismatch        = errors.New("announced and received sizes differ")
	ErrAborted             = errors.New("sort aborted")
)

// ValidateGroup reports configuration errors for n keys over p processes.
// It must pass before any rank sends its first message.
func ValidateGroup(n, p int) error {
	if p <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidProcessCount, p)
	}
	if n < p {
		return fmt.Errorf("%w: %d keys for %d processes", ErrEmptyShare, n, p)
	}
	return nil
}

// ShareSize is the number of keys rank owns when n keys are spread over p
// processes: floor(n/p), plus one for the first n mod p ranks.
func ShareSize(n, p, rank int) int {
	share := n / p
	if rank < n%p {
		share++
	}
	return share
}
