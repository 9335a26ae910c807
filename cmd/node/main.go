// Package main implements the sort node, one rank of a distributed sample
// sort. A node registers with the coordinator, waits for the start request,
// generates its share of keys and runs the sort pipeline against its peers.
//
// The node is a worker in the sort group, responsible for:
//   - Registering with the coordinator to obtain a rank
//   - Queuing point-to-point messages from peers in its mailbox
//   - Running the pipeline once the start request arrives
//   - Reporting its final slice summary to the coordinator
//   - Stopping immediately when the coordinator aborts the job
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                Node                     │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /start   - Begin the sort            │
//	│    /msg     - Peer message delivery     │
//	│    /abort   - Stop the running sort     │
//	│    /health  - Health check              │
//	│    /info    - Node information          │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    Mailbox   - (src, tag) queues        │
//	│    HTTPComm  - Send/Recv over /msg      │
//	│    Pipeline  - sample sort stages       │
//	└─────────────────────────────────────────┘
//
// Configuration (see internal/config):
//   - NODE_ID: Unique node identifier (required)
//   - COORDINATOR_ADDR: Coordinator URL (required)
//   - NODE_LISTEN: Listen address (default: ":8081")
//   - NODE_ADDR: Public address for peers (default: "http://127.0.0.1:8081")
//
// Example usage:
//
//	NODE_ID=node-1 \
//	NODE_LISTEN=:8081 \
//	NODE_ADDR=http://localhost:8081 \
//	COORDINATOR_ADDR=http://localhost:8080 \
//	./node
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/samplesort/internal/cluster"
	"github.com/dreamware/samplesort/internal/comm"
	"github.com/dreamware/samplesort/internal/config"
	"github.com/dreamware/samplesort/internal/dataset"
	"github.com/dreamware/samplesort/internal/mailbox"
	"github.com/dreamware/samplesort/internal/samplesort"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

// reportTimeout bounds the result POST to the coordinator.
const reportTimeout = 10 * time.Second

// Node is one rank of a sort group.
//
// The mailbox exists from startup, before the node knows its rank: faster
// peers may deliver messages before this node has processed its own start
// request, and those messages must not be lost.
//
// A node runs at most one job. After an abort its mailbox is closed and every
// later message or start request is refused.
type Node struct {
	box         *mailbox.MemoryMailbox
	cancel      context.CancelFunc
	done        chan struct{}
	ID          string
	coordinator string
	jobID       string
	state       string
	rank        int
	mu          sync.Mutex
}

// NewNode creates an idle node that reports results to coordinator.
func NewNode(id, coordinator string) *Node {
	return &Node{
		box:         mailbox.NewMemoryMailbox(),
		ID:          id,
		coordinator: coordinator,
		state:       "idle",
		rank:        -1,
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("SORT_CONFIG"))
	if err != nil {
		logFatal("config: %v", err)
		return
	}
	if cfg.NodeID == "" {
		logFatal("missing env NODE_ID")
		return
	}
	if cfg.Coordinator == "" {
		logFatal("missing env COORDINATOR_ADDR")
		return
	}

	node := NewNode(cfg.NodeID, cfg.Coordinator)

	s := &http.Server{
		Addr:              cfg.NodeListen,
		Handler:           node.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("node[%s] listening on %s (public %s)", cfg.NodeID, cfg.NodeListen, cfg.NodeAddr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	register(context.Background(), cfg.Coordinator, cfg.NodeID, cfg.NodeAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	node.abort(samplesort.ErrAborted)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := node.wait(ctx); err != nil {
		log.Printf("node[%s] job did not stop: %v", node.ID, err)
	}
	if err := s.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("node stopped")
}

func (n *Node) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/start", n.handleStart)
	mux.Handle("/msg", comm.MessageHandler(n.box))
	mux.HandleFunc("/abort", n.handleAbort)
	mux.HandleFunc("/info", n.handleInfo)
	return mux
}

// register announces the node to the coordinator, retrying while the
// coordinator starts up. Persistent failure is fatal.
//
// Retry strategy:
//   - 10 attempts maximum
//   - 400ms delay between attempts
func register(ctx context.Context, coord, id, addr string) {
	body := cluster.RegisterRequest{Node: cluster.NodeInfo{ID: id, Addr: addr, Rank: -1}}
	var lastErr error

	for i := 0; i < 10; i++ {
		var resp cluster.RegisterResponse
		lastErr = cluster.PostJSON(ctx, coord+"/register", body, &resp)
		if lastErr == nil {
			log.Printf("registered with coordinator @ %s as rank %d of %d", coord, resp.Rank, resp.Size)
			return
		}
		log.Printf("register retry %d: %v", i+1, lastErr)
		time.Sleep(400 * time.Millisecond)
	}

	logFatal("failed to register with coordinator: %v", lastErr)
}

// handleStart begins the sort described by the request.
//
// Endpoint: POST /start
//
// Response:
//   - 202 Accepted: the pipeline is running
//   - 400 Bad Request: bad JSON, or this node is not in the peer list
//   - 409 Conflict: a job was already started or aborted on this node
func (n *Node) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cluster.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	rank := slices.IndexFunc(req.Peers, func(p cluster.NodeInfo) bool { return p.ID == n.ID })
	if rank < 0 {
		http.Error(w, fmt.Sprintf("node %s not in peer list", n.ID), http.StatusBadRequest)
		return
	}
	c, err := comm.NewHTTPComm(rank, req.Peers, n.box)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pipe, err := samplesort.NewPipeline(samplesort.Config{
		Strategy: samplesort.Strategy(req.Strategy),
		Root:     req.Root,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	if n.state != "idle" {
		state := n.state
		n.mu.Unlock()
		http.Error(w, "node is "+state, http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	n.jobID = req.JobID
	n.rank = rank
	n.state = "running"
	done := n.done
	n.mu.Unlock()

	log.Printf("node[%s] starting job %s as rank %d of %d", n.ID, req.JobID, rank, len(req.Peers))
	go func() {
		defer close(done)
		defer cancel()
		n.report(n.run(ctx, c, pipe, req))
	}()

	w.WriteHeader(http.StatusAccepted)
}

// run executes one rank of the job and summarizes the outcome. Keys are
// generated locally from the job seed, so no scatter is needed. The
// barriers around the pipeline time the parallel part only.
func (n *Node) run(ctx context.Context, c *comm.HTTPComm, pipe *samplesort.Pipeline, req cluster.StartRequest) cluster.ResultReport {
	rank, size := c.Rank(), c.Size()
	rep := cluster.ResultReport{JobID: req.JobID, NodeID: n.ID, Rank: rank}

	fail := func(err error) cluster.ResultReport {
		log.Printf("rank[%d] failed: %v", rank, err)
		rep.Err = err.Error()
		// peers blocked on us must not wait for the health monitor
		n.box.Close(err)
		return rep
	}

	if err := samplesort.ValidateGroup(req.Total, size); err != nil {
		return fail(err)
	}
	keys := dataset.Generate(req.Total, size, rank, req.Seed, req.MaxKey)
	rep.InputCount, rep.InputSum = dataset.Checksum(keys)

	if err := comm.Barrier(ctx, c); err != nil {
		return fail(err)
	}
	start := time.Now()
	res, err := pipe.Run(ctx, c, keys)
	if err != nil {
		return fail(err)
	}
	if err := comm.Barrier(ctx, c); err != nil {
		return fail(err)
	}
	rep.Elapsed = time.Since(start).Seconds()

	rep.Count, rep.Sum = dataset.Checksum(res.Keys)
	rep.Sorted = samplesort.IsSorted(res.Keys)
	if len(res.Keys) > 0 {
		rep.Min, rep.Max = res.Keys[0], res.Keys[len(res.Keys)-1]
	}
	if rank == 0 {
		log.Printf("%s sample sort finished. total size %d, %.6f seconds", strategyName(req.Strategy), req.Total, rep.Elapsed)
	}
	return rep
}

func (n *Node) report(rep cluster.ResultReport) {
	n.mu.Lock()
	if n.state == "running" {
		if rep.Err != "" {
			n.state = "failed"
		} else {
			n.state = "done"
		}
	}
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if err := cluster.PostJSON(ctx, n.coordinator+"/result", rep, nil); err != nil {
		log.Printf("rank[%d] report result: %v", rep.Rank, err)
	}
}

// abort stops the running job, if any, and refuses all later messages.
func (n *Node) abort(err error) {
	n.mu.Lock()
	if n.state == "idle" || n.state == "running" {
		n.state = "aborted"
	}
	cancel := n.cancel
	n.mu.Unlock()

	n.box.Close(err)
	if cancel != nil {
		cancel()
	}
}

// handleAbort stops the job on the coordinator's request.
//
// Endpoint: POST /abort
func (n *Node) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cluster.AbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	log.Printf("node[%s] abort job %s: %s", n.ID, req.JobID, req.Reason)
	n.abort(fmt.Errorf("%w: %s", samplesort.ErrAborted, req.Reason))
	w.WriteHeader(http.StatusNoContent)
}

// handleInfo returns the node's identity, job state and mailbox counters.
func (n *Node) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n.mu.Lock()
	info := struct {
		NodeID  string        `json:"node_id"`
		JobID   string        `json:"job_id,omitempty"`
		State   string        `json:"state"`
		Rank    int           `json:"rank"`
		Mailbox mailbox.Stats `json:"mailbox"`
	}{
		NodeID: n.ID,
		JobID:  n.jobID,
		State:  n.state,
		Rank:   n.rank,
	}
	n.mu.Unlock()
	info.Mailbox = n.box.Stats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

// wait blocks until the running job has reported. Returns immediately if no
// job was started.
func (n *Node) wait(ctx context.Context) error {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func strategyName(s string) string {
	if samplesort.Strategy(s) == samplesort.StrategyPairwise {
		return "Point-to-point"
	}
	return "Collective"
}
