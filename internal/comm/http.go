package comm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dreamware/samplesort/internal/cluster"
	"github.com/dreamware/samplesort/internal/mailbox"
)

// HTTPComm sends each message as a POST of a cluster.Envelope to the peer's
// /msg endpoint. Incoming messages are queued in box by Handler.
type HTTPComm struct {
	box   mailbox.Mailbox
	peers []cluster.NodeInfo
	rank  int
}

// NewHTTPComm creates the communicator for rank. peers must be ordered by rank.
func NewHTTPComm(rank int, peers []cluster.NodeInfo, box mailbox.Mailbox) (*HTTPComm, error) {
	if rank < 0 || rank >= len(peers) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidRank, rank, len(peers))
	}
	for i, p := range peers {
		if p.Addr == "" {
			return nil, fmt.Errorf("peer %d has no address", i)
		}
	}
	return &HTTPComm{
		box:   box,
		peers: append([]cluster.NodeInfo(nil), peers...),
		rank:  rank,
	}, nil
}

func (h *HTTPComm) Rank() int { return h.rank }

func (h *HTTPComm) Size() int { return len(h.peers) }

// Send to self is queued locally without a request.
func (h *HTTPComm) Send(ctx context.Context, dst int, tag Tag, keys []int64) error {
	if err := checkRank(h, dst); err != nil {
		return err
	}
	if dst == h.rank {
		return h.box.Deliver(h.rank, int(tag), keys)
	}
	env := cluster.Envelope{From: h.rank, Tag: int(tag), Keys: keys}
	if err := cluster.PostJSON(ctx, h.peers[dst].Addr+"/msg", env, nil); err != nil {
		return fmt.Errorf("send to rank %d: %w", dst, err)
	}
	return nil
}

func (h *HTTPComm) Recv(ctx context.Context, src int, tag Tag) ([]int64, error) {
	if err := checkRank(h, src); err != nil {
		return nil, err
	}
	return h.box.Receive(ctx, src, int(tag))
}

// MessageHandler serves POST /msg by queuing the envelope into box.
// It does not need a communicator, so a node can accept messages from faster
// peers before it has processed its own start request.
func MessageHandler(box mailbox.Mailbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var env cluster.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if env.From < 0 {
			http.Error(w, "invalid sender rank", http.StatusBadRequest)
			return
		}
		if err := box.Deliver(env.From, env.Tag, env.Keys); err != nil {
			http.Error(w, err.Error(), http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
