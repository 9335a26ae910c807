// Package main implements the sort coordinator, which assembles a process
// group out of registering nodes, starts one distributed sample sort across
// them and collects the per-rank results.
//
// The coordinator never touches keys. Its job is the control plane:
//   - Assigning ranks 0..P-1 to nodes in registration order
//   - Broadcasting the start request once all P ranks are present
//   - Watching rank liveness while the job runs
//   - Aborting every rank when one fails or is lost
//   - Checking global order and key conservation from the rank reports
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│              Coordinator                │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /register  - Rank assignment         │
//	│    /nodes     - Registered ranks        │
//	│    /result    - Rank result report      │
//	│    /fail      - Abort the job           │
//	│    /job       - Job summary             │
//	│    /health    - Health check            │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    RankRegistry  - node → rank          │
//	│    Job           - result aggregation   │
//	│    HealthMonitor - lost rank detection  │
//	└─────────────────────────────────────────┘
//
// Configuration (see internal/config):
//   - SORT_CONFIG: optional YAML file
//   - COORDINATOR_LISTEN: listen address (default ":8080")
//   - SORT_PROCS, SORT_TOTAL, SORT_STRATEGY, SORT_ROOT, SORT_SEED, SORT_MAX_KEY
//
// Example usage:
//
//	SORT_PROCS=3 SORT_TOTAL=300000 ./coordinator
//	curl localhost:8080/job
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/samplesort/internal/cluster"
	"github.com/dreamware/samplesort/internal/config"
	"github.com/dreamware/samplesort/internal/coordinator"
)

const (
	broadcastTimeout = 5 * time.Second
	probeInterval    = time.Second
	maxProbeFailures = 3
)

func main() {
	cfg, err := config.Load(os.Getenv("SORT_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	srv := newServer(cfg)
	defer srv.close()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("coordinator listening on %s, waiting for %d ranks (job %s)", cfg.Listen, cfg.Procs, srv.job.ID())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Println("coordinator stopped")
}

type server struct {
	cfg      *config.Config
	registry *coordinator.RankRegistry
	job      *coordinator.Job
	monitor  *coordinator.HealthMonitor
	ctx      context.Context
	cancel   context.CancelFunc
	start    sync.Once
}

func newServer(cfg *config.Config) *server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &server{
		cfg:      cfg,
		registry: coordinator.NewRankRegistry(cfg.Procs),
		job:      coordinator.NewJob(fmt.Sprintf("sort-%d", time.Now().UnixNano()), cfg.Procs),
		monitor:  coordinator.NewHealthMonitor(probeInterval, maxProbeFailures),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.monitor.OnLost(func(n cluster.NodeInfo) {
		s.abort(fmt.Sprintf("rank %d (%s) lost", n.Rank, n.ID))
	})
	return s
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/nodes", s.handleListNodes)
	mux.HandleFunc("/result", s.handleResult)
	mux.HandleFunc("/fail", s.handleFail)
	mux.HandleFunc("/job", s.handleJob)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *server) close() {
	s.cancel()
	s.monitor.Stop()
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cluster.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	rank, err := s.registry.Register(req.Node)
	switch {
	case errors.Is(err, coordinator.ErrGroupFull):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("node %s registered as rank %d (%d/%d)", req.Node.ID, rank, s.registry.Registered(), s.registry.Size())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cluster.RegisterResponse{Rank: rank, Size: s.registry.Size()})

	if s.registry.Complete() {
		s.start.Do(func() { go s.startJob() })
	}
}

// startJob broadcasts the start request to every rank and begins monitoring.
func (s *server) startJob() {
	if err := s.job.Start(); err != nil {
		log.Printf("start job: %v", err)
		return
	}
	roster := s.registry.Roster()
	req := cluster.StartRequest{
		JobID:    s.job.ID(),
		Peers:    roster,
		Total:    s.cfg.Total,
		Strategy: s.cfg.Strategy,
		Root:     s.cfg.Root,
		Seed:     s.cfg.Seed,
		MaxKey:   s.cfg.MaxKey,
	}
	log.Printf("starting job %s: %d keys over %d ranks (%s)", req.JobID, req.Total, len(roster), req.Strategy)

	ctx, cancel := context.WithTimeout(s.ctx, broadcastTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range roster {
		g.Go(func() error {
			if err := cluster.PostJSON(gctx, n.Addr+"/start", req, nil); err != nil {
				return fmt.Errorf("start rank %d (%s): %w", n.Rank, n.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.abort(err.Error())
		return
	}

	go s.monitor.Run(s.ctx, s.registry.Roster)
}

// abort fails the job and tells every rank to stop. Only the first call
// has any effect.
func (s *server) abort(reason string) {
	if !s.job.Fail(reason) {
		return
	}
	s.broadcastAbort(reason)
}

func (s *server) broadcastAbort(reason string) {
	log.Printf("job %s failed: %s", s.job.ID(), reason)
	req := cluster.AbortRequest{JobID: s.job.ID(), Reason: reason}

	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()
	var wg sync.WaitGroup
	for _, n := range s.registry.Roster() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cluster.PostJSON(ctx, n.Addr+"/abort", req, nil); err != nil {
				log.Printf("abort rank %d (%s): %v", n.Rank, n.ID, err)
			}
		}()
	}
	wg.Wait()
	s.cancel()
}

func (s *server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Nodes []cluster.NodeInfo `json:"nodes"`
		Size  int                `json:"size"`
	}{Nodes: s.registry.Roster(), Size: s.registry.Size()})
}

func (s *server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var rep cluster.ResultReport
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if rep.JobID != s.job.ID() {
		http.Error(w, fmt.Sprintf("unknown job %q", rep.JobID), http.StatusNotFound)
		return
	}

	done, err := s.job.Record(rep)
	switch {
	case errors.Is(err, coordinator.ErrUnknownRank):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if rep.Err != "" {
		log.Printf("rank %d reported failure: %s", rep.Rank, rep.Err)
	} else {
		log.Printf("rank %d finished with %d keys in %.3fs", rep.Rank, rep.Count, rep.Elapsed)
	}
	w.WriteHeader(http.StatusNoContent)

	if !done {
		return
	}
	sum := s.job.Summary()
	if sum.State == coordinator.JobFailed {
		go s.broadcastAbort(sum.Reason)
		return
	}
	log.Printf("job %s done: %d keys sorted across %d ranks in %.3fs", sum.ID, sum.Total, sum.Size, sum.Elapsed)
	s.cancel()
}

func (s *server) handleFail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cluster.AbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		req.Reason = "aborted by request"
	}
	if !s.job.Fail(req.Reason) {
		http.Error(w, "job already finished", http.StatusConflict)
		return
	}
	go s.broadcastAbort(req.Reason)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.job.Summary())
}
