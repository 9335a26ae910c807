package samplesort

import (
	"context"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/dreamware/samplesort/internal/comm"
)

// SelectPivots sorts the gathered samples of a p-rank group and picks pivot
// i at index (i+1)*p-1. With every rank contributing p-1 samples this
// approximates the p-quantiles of the whole key population. If fewer samples
// were gathered the index is clamped to the last sample, which may repeat
// pivots. The input is not modified.
func SelectPivots[K Key](samples []K, p int) []K {
	if p <= 1 || len(samples) == 0 {
		return nil
	}
	all := slices.Clone(samples)
	slices.Sort(all)

	pivots := make([]K, p-1)
	for i := range pivots {
		idx := (i+1)*p - 1
		if idx >= len(all) {
			idx = len(all) - 1
		}
		pivots[i] = all[idx]
	}
	return pivots
}

// PivotPhase turns every rank's local samples into the group's pivot set.
// Every rank calls Pivots with its own samples and gets back the identical
// p-1 pivots. How the pivots are computed and by whom is up to the phase.
type PivotPhase interface {
	Pivots(ctx context.Context, c comm.Communicator, samples []int64) ([]int64, error)
}

// RootPivots collects all samples at Root, selects the pivots there and
// broadcasts them back.
type RootPivots struct {
	Root int
}

func (r RootPivots) Pivots(ctx context.Context, c comm.Communicator, samples []int64) ([]int64, error) {
	if r.Root < 0 || r.Root >= c.Size() {
		return nil, fmt.Errorf("%w: pivot root %d", ErrInvalidRank, r.Root)
	}

	gathered, err := comm.Gather(ctx, c, r.Root, samples)
	if err != nil {
		return nil, fmt.Errorf("collect samples: %w", err)
	}

	var pivots []int64
	if c.Rank() == r.Root {
		all := make([]int64, 0, c.Size()*(c.Size()-1))
		for _, s := range gathered {
			all = append(all, s...)
		}
		pivots = SelectPivots(all, c.Size())
	}

	pivots, err = comm.Bcast(ctx, c, r.Root, pivots)
	if err != nil {
		return nil, fmt.Errorf("distribute pivots: %w", err)
	}
	if want := c.Size() - 1; len(pivots) != want {
		return nil, fmt.Errorf("%w: got %d pivots, want %d", ErrSizeMismatch, len(pivots), want)
	}
	return pivots, nil
}
