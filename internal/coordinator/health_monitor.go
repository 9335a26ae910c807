// Package coordinator provides the sort coordinator's control plane.
// This file implements liveness monitoring for the ranks of a running job.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/samplesort/internal/cluster"
)

// Status is the liveness state of one rank.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusHealthy Status = "healthy"
	// StatusLost is terminal: the protocol has no way to resume a rank.
	StatusLost Status = "lost"
)

// PeerHealth tracks the liveness of a single rank's node.
type PeerHealth struct {
	LastCheck        time.Time // Timestamp of the last probe
	LastHealthy      time.Time // Timestamp of the last successful probe
	NodeID           string
	Status           Status
	Rank             int
	ConsecutiveFails int
}

// HealthMonitor probes every rank of a running job and reports a rank as lost
// after maxFailures consecutive failed probes. Since a sort cannot finish
// without all of its ranks, the lost callback is expected to abort the job.
// Thread-safe: All methods are safe for concurrent access.
type HealthMonitor struct {
	peers       map[string]*PeerHealth
	probe       func(ctx context.Context, addr string) error
	onLost      func(node cluster.NodeInfo)
	httpClient  *http.Client
	ctx         context.Context
	cancel      context.CancelFunc
	interval    time.Duration
	timeout     time.Duration
	mu          sync.RWMutex
	wg          sync.WaitGroup
	maxFailures int
}

// NewHealthMonitor creates a monitor probing every interval. A rank is lost
// after maxFailures consecutive failures (3 if maxFailures <= 0).
//
// Example:
//
//	monitor := NewHealthMonitor(time.Second, 3)
//	monitor.OnLost(func(n cluster.NodeInfo) { job.Fail(...) })
//	go monitor.Run(ctx, registry.Roster)
func NewHealthMonitor(interval time.Duration, maxFailures int) *HealthMonitor {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &HealthMonitor{
		peers:       make(map[string]*PeerHealth),
		interval:    interval,
		timeout:     2 * time.Second,
		maxFailures: maxFailures,
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		ctx:         ctx,
		cancel:      cancel,
	}
	h.probe = h.httpProbe
	return h
}

// OnLost sets the callback invoked once per rank when it is declared lost.
// The callback runs on its own goroutine.
func (h *HealthMonitor) OnLost(fn func(node cluster.NodeInfo)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLost = fn
}

// SetProbe replaces the HTTP /health probe.
func (h *HealthMonitor) SetProbe(fn func(ctx context.Context, addr string) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probe = fn
}

// Run probes the nodes returned by roster until ctx is done or Stop is called.
// It blocks; start it on its own goroutine.
func (h *HealthMonitor) Run(ctx context.Context, roster func() []cluster.NodeInfo) {
	h.wg.Add(1)
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	log.Printf("health monitor started with interval %v", h.interval)
	h.probeAll(roster())

	for {
		select {
		case <-ticker.C:
			h.probeAll(roster())
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop ends Run and waits for it to return. Safe to call more than once.
func (h *HealthMonitor) Stop() {
	h.cancel()
	h.wg.Wait()
}

// probeAll probes every node concurrently and forgets nodes no longer listed.
func (h *HealthMonitor) probeAll(nodes []cluster.NodeInfo) {
	listed := make(map[string]bool, len(nodes))
	var g errgroup.Group
	for _, n := range nodes {
		listed[n.ID] = true
		g.Go(func() error {
			h.probeNode(n)
			return nil
		})
	}
	_ = g.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.peers {
		if !listed[id] {
			delete(h.peers, id)
		}
	}
}

func (h *HealthMonitor) probeNode(node cluster.NodeInfo) {
	h.mu.Lock()
	peer, ok := h.peers[node.ID]
	if !ok {
		peer = &PeerHealth{NodeID: node.ID, Rank: node.Rank, Status: StatusUnknown}
		h.peers[node.ID] = peer
	}
	probe := h.probe
	lost := peer.Status == StatusLost
	h.mu.Unlock()

	if lost {
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	err := probe(ctx, node.Addr)
	cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	peer.LastCheck = now
	if err == nil {
		peer.Status = StatusHealthy
		peer.ConsecutiveFails = 0
		peer.LastHealthy = now
		return
	}

	peer.ConsecutiveFails++
	log.Printf("rank %d (%s) probe failed (%d/%d): %v",
		node.Rank, node.ID, peer.ConsecutiveFails, h.maxFailures, err)
	if peer.ConsecutiveFails < h.maxFailures {
		return
	}

	peer.Status = StatusLost
	log.Printf("rank %d (%s) lost", node.Rank, node.ID)
	if h.onLost != nil {
		go h.onLost(node)
	}
}

// httpProbe expects 200 OK from GET <addr>/health.
func (h *HealthMonitor) httpProbe(ctx context.Context, addr string) error {
	url := addr
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		url = "http://" + addr
	}
	url = strings.TrimRight(url, "/") + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Peer returns a copy of the health record for nodeID.
func (h *HealthMonitor) Peer(nodeID string) (PeerHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.peers[nodeID]
	if !ok {
		return PeerHealth{}, false
	}
	return *p, true
}

// Peers returns a copy of every health record keyed by node ID.
func (h *HealthMonitor) Peers() map[string]PeerHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]PeerHealth, len(h.peers))
	for id, p := range h.peers {
		out[id] = *p
	}
	return out
}

// Healthy reports whether nodeID passed its latest probe.
func (h *HealthMonitor) Healthy(nodeID string) bool {
	p, ok := h.Peer(nodeID)
	return ok && p.Status == StatusHealthy
}
