package comm

import (
	"context"

	"github.com/dreamware/samplesort/internal/mailbox"
)

// LocalGroup connects P in-process ranks through their mailboxes.
type LocalGroup struct {
	boxes []*mailbox.MemoryMailbox
}

// Local is a single rank of a LocalGroup.
type Local struct {
	group *LocalGroup
	rank  int
}

// NewLocalGroup creates p connected ranks, returned in rank order.
func NewLocalGroup(p int) []*Local {
	g := &LocalGroup{boxes: make([]*mailbox.MemoryMailbox, p)}
	ranks := make([]*Local, p)
	for i := range ranks {
		g.boxes[i] = mailbox.NewMemoryMailbox()
		ranks[i] = &Local{group: g, rank: i}
	}
	return ranks
}

func (l *Local) Rank() int { return l.rank }

func (l *Local) Size() int { return len(l.group.boxes) }

func (l *Local) Send(ctx context.Context, dst int, tag Tag, keys []int64) error {
	if err := checkRank(l, dst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.group.boxes[dst].Deliver(l.rank, int(tag), keys)
}

func (l *Local) Recv(ctx context.Context, src int, tag Tag) ([]int64, error) {
	if err := checkRank(l, src); err != nil {
		return nil, err
	}
	return l.group.boxes[l.rank].Receive(ctx, src, int(tag))
}

// Abort fails every pending and future receive of the whole group with err.
func (l *Local) Abort(err error) {
	for _, box := range l.group.boxes {
		box.Close(err)
	}
}

// Stats returns the delivery statistics of this rank's mailbox.
func (l *Local) Stats() mailbox.Stats {
	return l.group.boxes[l.rank].Stats()
}
