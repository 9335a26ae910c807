package comm

import (
	"context"
	"errors"
	"fmt"
)

// Tag separates the message streams of the protocol. Two messages between
// the same pair of ranks are only ordered if they carry the same tag.
type Tag int

const (
	TagGather Tag = iota
	TagBcast
	TagAlltoall
	TagAlltoallv
	TagBarrier
	TagCounts
	TagPayload
)

var ErrInvalidRank = errors.New("invalid rank")

// Communicator is one rank's view of a process group.
// Send must not wait for the matching Recv.
type Communicator interface {
	Rank() int
	Size() int
	Send(ctx context.Context, dst int, tag Tag, keys []int64) error
	Recv(ctx context.Context, src int, tag Tag) ([]int64, error)
}

func checkRank(c Communicator, r int) error {
	if r < 0 || r >= c.Size() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidRank, r, c.Size())
	}
	return nil
}
