package comm

import (
	"context"
	"fmt"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Collectives must be entered by every rank of the group in the same order.
// They are built on Send/Recv with their own tags, so they never match a
// point-to-point message of the pipeline.

// Gather collects keys from every rank at root. The result is indexed by
// source rank at root and nil elsewhere.
func Gather(ctx context.Context, c Communicator, root int, keys []int64) ([][]int64, error) {
	if err := checkRank(c, root); err != nil {
		return nil, err
	}
	if c.Rank() != root {
		if err := c.Send(ctx, root, TagGather, keys); err != nil {
			return nil, fmt.Errorf("gather: %w", err)
		}
		return nil, nil
	}

	out := make([][]int64, c.Size())
	for src := range out {
		if src == root {
			out[src] = slices.Clone(keys)
			continue
		}
		got, err := c.Recv(ctx, src, TagGather)
		if err != nil {
			return nil, fmt.Errorf("gather from rank %d: %w", src, err)
		}
		out[src] = got
	}
	return out, nil
}

// Bcast delivers root's keys to every rank and returns them everywhere.
// keys is ignored on non-root ranks.
func Bcast(ctx context.Context, c Communicator, root int, keys []int64) ([]int64, error) {
	if err := checkRank(c, root); err != nil {
		return nil, err
	}
	if c.Rank() != root {
		got, err := c.Recv(ctx, root, TagBcast)
		if err != nil {
			return nil, fmt.Errorf("bcast from rank %d: %w", root, err)
		}
		return got, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for dst := 0; dst < c.Size(); dst++ {
		if dst == root {
			continue
		}
		g.Go(func() error {
			if err := c.Send(gctx, dst, TagBcast, keys); err != nil {
				return fmt.Errorf("bcast to rank %d: %w", dst, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Clone(keys), nil
}

// Alltoall sends send[j] to rank j and returns recv with recv[i] taken from
// rank i. len(send) must equal the group size.
func Alltoall(ctx context.Context, c Communicator, send []int64) ([]int64, error) {
	if len(send) != c.Size() {
		return nil, fmt.Errorf("alltoall: %d values for %d ranks", len(send), c.Size())
	}
	parts := make([][]int64, len(send))
	for j, v := range send {
		parts[j] = []int64{v}
	}
	got, err := exchange(ctx, c, TagAlltoall, parts)
	if err != nil {
		return nil, fmt.Errorf("alltoall: %w", err)
	}
	recv := make([]int64, len(got))
	for i, part := range got {
		if len(part) != 1 {
			return nil, fmt.Errorf("alltoall: rank %d sent %d values", i, len(part))
		}
		recv[i] = part[0]
	}
	return recv, nil
}

// Alltoallv sends send[j] to rank j and returns recv with recv[i] being what
// rank i sent here. The rank's own part is copied, not sent.
func Alltoallv(ctx context.Context, c Communicator, send [][]int64) ([][]int64, error) {
	if len(send) != c.Size() {
		return nil, fmt.Errorf("alltoallv: %d parts for %d ranks", len(send), c.Size())
	}
	recv, err := exchange(ctx, c, TagAlltoallv, send)
	if err != nil {
		return nil, fmt.Errorf("alltoallv: %w", err)
	}
	return recv, nil
}

// exchange posts every outgoing part at once, then receives from every peer.
func exchange(ctx context.Context, c Communicator, tag Tag, send [][]int64) ([][]int64, error) {
	me := c.Rank()

	g, gctx := errgroup.WithContext(ctx)
	for dst, part := range send {
		if dst == me {
			continue
		}
		g.Go(func() error {
			if err := c.Send(gctx, dst, tag, part); err != nil {
				return fmt.Errorf("to rank %d: %w", dst, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recv := make([][]int64, c.Size())
	for src := range recv {
		if src == me {
			recv[src] = slices.Clone(send[me])
			continue
		}
		got, err := c.Recv(ctx, src, tag)
		if err != nil {
			return nil, fmt.Errorf("from rank %d: %w", src, err)
		}
		recv[src] = got
	}
	return recv, nil
}

// Barrier returns once every rank of the group has entered it.
func Barrier(ctx context.Context, c Communicator) error {
	const root = 0
	if c.Rank() != root {
		if err := c.Send(ctx, root, TagBarrier, nil); err != nil {
			return fmt.Errorf("barrier: %w", err)
		}
		if _, err := c.Recv(ctx, root, TagBarrier); err != nil {
			return fmt.Errorf("barrier: %w", err)
		}
		return nil
	}

	for src := 1; src < c.Size(); src++ {
		if _, err := c.Recv(ctx, src, TagBarrier); err != nil {
			return fmt.Errorf("barrier: rank %d: %w", src, err)
		}
	}
	for dst := 1; dst < c.Size(); dst++ {
		if err := c.Send(ctx, dst, TagBarrier, nil); err != nil {
			return fmt.Errorf("barrier: rank %d: %w", dst, err)
		}
	}
	return nil
}
