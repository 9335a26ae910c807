// Package coordinator implements the control plane of a distributed sample sort.
// See doc.go for complete package documentation.
package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/samplesort/internal/cluster"
)

var (
	// ErrGroupFull is returned when a new node registers after every rank is taken.
	ErrGroupFull = errors.New("process group is full")
	// ErrUnknownRank is returned for ranks that have not been assigned yet.
	ErrUnknownRank = errors.New("rank not assigned")
)

// RankRegistry hands out ranks 0..size-1 to nodes in registration order and
// remembers which node holds which rank.
//
// Ranks are the only identity the sort protocol knows about. Once a rank is
// assigned it stays with its node ID for the life of the registry: a node
// that registers again (for example after a coordinator-side timeout)
// keeps its rank and only updates its address.
//
// Architecture:
//
//	┌─────────────────────────────────────┐
//	│           RankRegistry              │
//	├─────────────────────────────────────┤
//	│  nodes:  [rank] → NodeInfo          │
//	│  byID:   nodeID → rank              │
//	│  size:   fixed group size P         │
//	├─────────────────────────────────────┤
//	│  "node-a" → 0, "node-c" → 1, ...    │
//	└─────────────────────────────────────┘
//
// Concurrency Model:
//   - Read operations use RLock for parallel access
//   - Write operations use Lock for exclusive access
//   - All returned data is copied to prevent races
type RankRegistry struct {
	// byID maps node IDs to their assigned rank.
	byID map[string]int

	// nodes holds the registered nodes indexed by rank.
	// len(nodes) is the number of ranks handed out so far.
	nodes []cluster.NodeInfo

	mu sync.RWMutex

	// size is the number of processes in the group, fixed at creation.
	size int
}

// NewRankRegistry creates a registry for a group of size processes.
//
// Example:
//
//	registry := NewRankRegistry(4)
//	rank, err := registry.Register(cluster.NodeInfo{ID: "n1", Addr: "http://10.0.0.5:8081"})
func NewRankRegistry(size int) *RankRegistry {
	return &RankRegistry{
		byID:  make(map[string]int),
		nodes: make([]cluster.NodeInfo, 0, size),
		size:  size,
	}
}

// Register assigns the next free rank to node, or returns the rank the node
// already holds.
//
// Returns:
//   - the node's rank on success
//   - error if the ID or address is empty, or ErrGroupFull
//
// Thread Safety:
// Safe for concurrent calls; ranks are never handed out twice.
func (r *RankRegistry) Register(node cluster.NodeInfo) (int, error) {
	if node.ID == "" {
		return -1, errors.New("node ID cannot be empty")
	}
	if node.Addr == "" {
		return -1, errors.New("node address cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rank, ok := r.byID[node.ID]; ok {
		node.Rank = rank
		r.nodes[rank] = node
		return rank, nil
	}
	if len(r.nodes) >= r.size {
		return -1, fmt.Errorf("%w: %d of %d ranks taken", ErrGroupFull, len(r.nodes), r.size)
	}

	node.Rank = len(r.nodes)
	r.nodes = append(r.nodes, node)
	r.byID[node.ID] = node.Rank
	return node.Rank, nil
}

// RankOf returns the rank held by nodeID.
func (r *RankRegistry) RankOf(nodeID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rank, ok := r.byID[nodeID]
	return rank, ok
}

// Node returns the node holding rank.
func (r *RankRegistry) Node(rank int) (cluster.NodeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rank < 0 || rank >= len(r.nodes) {
		return cluster.NodeInfo{}, fmt.Errorf("%w: %d", ErrUnknownRank, rank)
	}
	return r.nodes[rank], nil
}

// Roster returns the registered nodes ordered by rank.
func (r *RankRegistry) Roster() []cluster.NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.nodes)
}

// Complete reports whether every rank has been assigned.
func (r *RankRegistry) Complete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes) == r.size
}

// Registered returns how many ranks have been assigned.
func (r *RankRegistry) Registered() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Size returns the group size.
func (r *RankRegistry) Size() int {
	return r.size
}
