package samplesort

import (
	"context"
	"fmt"

	"github.com/dreamware/samplesort/internal/comm"
)

// Strategy names an Exchanger implementation.
type Strategy string

const (
	// StrategyCollective exchanges sizes in one all-to-all step and payloads
	// in a second, posting to every peer at once.
	StrategyCollective Strategy = "collective"
	// StrategyPairwise walks the peers one by one with explicit sends and
	// receives, first for the sizes and then for the payloads.
	StrategyPairwise Strategy = "pairwise"
)

// Exchanged is the outcome of the all-to-all shuffle on one rank.
type Exchanged struct {
	SendCounts []int     // keys sent to each rank, this rank's row of the count matrix
	RecvCounts []int     // keys received from each rank, this rank's column
	Received   []int64   // all received keys, grouped by source rank
	Fragments  [][]int64 // Received split by source rank; each is sorted
}

// Exchanger sends buckets[j] to rank j and collects what every rank sent
// here. len(buckets) must equal the group size. Both strategies announce
// sizes before any payload moves and fail with ErrSizeMismatch when a
// payload disagrees with its announcement.
type Exchanger interface {
	Exchange(ctx context.Context, c comm.Communicator, buckets [][]int64) (*Exchanged, error)
}

// NewExchanger returns the Exchanger for s.
func NewExchanger(s Strategy) (Exchanger, error) {
	switch s {
	case StrategyCollective, "":
		return CollectiveExchanger{}, nil
	case StrategyPairwise:
		return PairwiseExchanger{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

type CollectiveExchanger struct{}

func (CollectiveExchanger) Exchange(ctx context.Context, c comm.Communicator, buckets [][]int64) (*Exchanged, error) {
	if len(buckets) != c.Size() {
		return nil, fmt.Errorf("exchange: %d buckets for %d ranks", len(buckets), c.Size())
	}

	counts := make([]int64, len(buckets))
	for j, b := range buckets {
		counts[j] = int64(len(b))
	}
	recvCounts, err := comm.Alltoall(ctx, c, counts)
	if err != nil {
		return nil, fmt.Errorf("exchange sizes: %w", err)
	}

	parts, err := comm.Alltoallv(ctx, c, buckets)
	if err != nil {
		return nil, fmt.Errorf("exchange payload: %w", err)
	}

	ex, err := newExchanged(counts, recvCounts)
	if err != nil {
		return nil, err
	}
	for src, part := range parts {
		if err := ex.place(src, part); err != nil {
			return nil, err
		}
	}
	return ex, nil
}

type PairwiseExchanger struct{}

func (PairwiseExchanger) Exchange(ctx context.Context, c comm.Communicator, buckets [][]int64) (*Exchanged, error) {
	if len(buckets) != c.Size() {
		return nil, fmt.Errorf("exchange: %d buckets for %d ranks", len(buckets), c.Size())
	}
	me := c.Rank()

	counts := make([]int64, len(buckets))
	for j, b := range buckets {
		counts[j] = int64(len(b))
	}
	for dst := range buckets {
		if dst == me {
			continue
		}
		if err := c.Send(ctx, dst, comm.TagCounts, counts[dst:dst+1]); err != nil {
			return nil, fmt.Errorf("announce size to rank %d: %w", dst, err)
		}
	}

	recvCounts := make([]int64, len(buckets))
	for src := range buckets {
		if src == me {
			recvCounts[src] = counts[me]
			continue
		}
		got, err := c.Recv(ctx, src, comm.TagCounts)
		if err != nil {
			return nil, fmt.Errorf("size from rank %d: %w", src, err)
		}
		if len(got) != 1 {
			return nil, fmt.Errorf("%w: rank %d sent %d size values", ErrSizeMismatch, src, len(got))
		}
		recvCounts[src] = got[0]
	}

	for dst, b := range buckets {
		if dst == me {
			continue
		}
		if err := c.Send(ctx, dst, comm.TagPayload, b); err != nil {
			return nil, fmt.Errorf("send bucket to rank %d: %w", dst, err)
		}
	}

	ex, err := newExchanged(counts, recvCounts)
	if err != nil {
		return nil, err
	}
	for src := range buckets {
		part := buckets[me]
		if src != me {
			got, err := c.Recv(ctx, src, comm.TagPayload)
			if err != nil {
				return nil, fmt.Errorf("bucket from rank %d: %w", src, err)
			}
			part = got
		}
		if err := ex.place(src, part); err != nil {
			return nil, err
		}
	}
	return ex, nil
}

// newExchanged sizes the receive buffer from the announced counts.
func newExchanged(sent, recv []int64) (*Exchanged, error) {
	ex := &Exchanged{
		SendCounts: make([]int, len(sent)),
		RecvCounts: make([]int, len(recv)),
		Fragments:  make([][]int64, len(recv)),
	}
	total := 0
	for i := range sent {
		if recv[i] < 0 {
			return nil, fmt.Errorf("%w: rank %d announced %d keys", ErrSizeMismatch, i, recv[i])
		}
		ex.SendCounts[i] = int(sent[i])
		ex.RecvCounts[i] = int(recv[i])
		total += int(recv[i])
	}
	ex.Received = make([]int64, total)
	return ex, nil
}

// place copies src's payload into its slot of the receive buffer.
func (ex *Exchanged) place(src int, part []int64) error {
	if len(part) != ex.RecvCounts[src] {
		return fmt.Errorf("%w: rank %d announced %d keys, sent %d",
			ErrSizeMismatch, src, ex.RecvCounts[src], len(part))
	}
	off := 0
	for i := 0; i < src; i++ {
		off += ex.RecvCounts[i]
	}
	ex.Fragments[src] = ex.Received[off : off+len(part) : off+len(part)]
	copy(ex.Fragments[src], part)
	return nil
}
