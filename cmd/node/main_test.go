package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/samplesort/internal/cluster"
	"github.com/dreamware/samplesort/internal/samplesort"
)

// fakeCoordinator collects result reports.
type fakeCoordinator struct {
	*httptest.Server
	mu      sync.Mutex
	reports []cluster.ResultReport
}

func newFakeCoordinator(t *testing.T) *fakeCoordinator {
	fc := &fakeCoordinator{}
	fc.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/result" {
			http.NotFound(w, r)
			return
		}
		var rep cluster.ResultReport
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&rep))
		fc.mu.Lock()
		fc.reports = append(fc.reports, rep)
		fc.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(fc.Close)
	return fc
}

func (fc *fakeCoordinator) results() []cluster.ResultReport {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	out := append([]cluster.ResultReport(nil), fc.reports...)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// newGroup starts p nodes on test servers and returns them with their
// peer list ordered by rank.
func newGroup(t *testing.T, p int, coord string) ([]*Node, []cluster.NodeInfo) {
	nodes := make([]*Node, p)
	peers := make([]cluster.NodeInfo, p)
	for i := range nodes {
		nodes[i] = NewNode("node-"+string(rune('a'+i)), coord)
		srv := httptest.NewServer(nodes[i].routes())
		t.Cleanup(srv.Close)
		peers[i] = cluster.NodeInfo{ID: nodes[i].ID, Addr: srv.URL, Rank: i}
	}
	return nodes, peers
}

func startRequest(peers []cluster.NodeInfo, total int, strategy samplesort.Strategy) cluster.StartRequest {
	return cluster.StartRequest{
		JobID:    "job-1",
		Peers:    peers,
		Total:    total,
		Strategy: string(strategy),
		Seed:     7,
		MaxKey:   1000,
	}
}

func doStart(t *testing.T, n *Node, req cluster.StartRequest) *httptest.ResponseRecorder {
	data, err := json.Marshal(req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	n.handleStart(rec, httptest.NewRequest(http.MethodPost, "/start", bytes.NewReader(data)))
	return rec
}

// TestRegister tests registration against a coordinator
func TestRegister(t *testing.T) {
	var got cluster.RegisterRequest
	coord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(cluster.RegisterResponse{Rank: 2, Size: 4})
	}))
	defer coord.Close()

	oldLogFatal := logFatal
	defer func() { logFatal = oldLogFatal }()
	logFatal = func(format string, v ...interface{}) {
		t.Errorf("unexpected fatal: "+format, v...)
	}

	register(context.Background(), coord.URL, "node-1", "http://localhost:8081")

	assert.Equal(t, "node-1", got.Node.ID)
	assert.Equal(t, "http://localhost:8081", got.Node.Addr)
}

// TestRegisterWithUnreachableServer verifies persistent failure is fatal
func TestRegisterWithUnreachableServer(t *testing.T) {
	if testing.Short() {
		t.Skip("retries take several seconds")
	}
	oldLogFatal := logFatal
	defer func() { logFatal = oldLogFatal }()

	fatalCalled := false
	logFatal = func(format string, v ...interface{}) {
		fatalCalled = true
	}

	register(context.Background(), "http://localhost:99999", "node-1", "http://localhost:8081")
	assert.True(t, fatalCalled)
}

// TestHandleStartRejects covers start requests that cannot run
func TestHandleStartRejects(t *testing.T) {
	peers := []cluster.NodeInfo{{ID: "node-a", Addr: "http://a", Rank: 0}}
	tests := []struct {
		name   string
		method string
		body   any
		code   int
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"not a peer", http.MethodPost, startRequest([]cluster.NodeInfo{{ID: "other", Addr: "http://o"}}, 10, ""), http.StatusBadRequest},
		{"missing address", http.MethodPost, startRequest([]cluster.NodeInfo{{ID: "node-a"}}, 10, ""), http.StatusBadRequest},
		{"unknown strategy", http.MethodPost, startRequest(peers, 10, "bogus"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNode("node-a", "http://coord")
			var body []byte
			if s, ok := tt.body.(string); ok {
				body = []byte(s)
			} else if tt.body != nil {
				var err error
				body, err = json.Marshal(tt.body)
				require.NoError(t, err)
			}
			rec := httptest.NewRecorder()
			n.handleStart(rec, httptest.NewRequest(tt.method, "/start", bytes.NewReader(body)))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "idle", n.state)
		})
	}
}

// TestNodesSortTogether runs a whole job across three nodes over HTTP
func TestNodesSortTogether(t *testing.T) {
	for _, strategy := range []samplesort.Strategy{samplesort.StrategyCollective, samplesort.StrategyPairwise} {
		t.Run(string(strategy), func(t *testing.T) {
			coord := newFakeCoordinator(t)
			nodes, peers := newGroup(t, 3, coord.URL)
			req := startRequest(peers, 3000, strategy)

			// start in reverse order so early messages hit idle nodes
			for i := len(nodes) - 1; i >= 0; i-- {
				rec := doStart(t, nodes[i], req)
				require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for _, n := range nodes {
				require.NoError(t, n.wait(ctx))
			}

			reps := coord.results()
			require.Len(t, reps, 3)
			var inCount, outCount int
			var inSum, outSum int64
			for i, rep := range reps {
				assert.Empty(t, rep.Err)
				assert.Equal(t, i, rep.Rank)
				assert.Equal(t, "job-1", rep.JobID)
				assert.True(t, rep.Sorted)
				assert.Equal(t, 1000, rep.InputCount)
				inCount += rep.InputCount
				inSum += rep.InputSum
				outCount += rep.Count
				outSum += rep.Sum
				if i > 0 && rep.Count > 0 && reps[i-1].Count > 0 {
					assert.LessOrEqual(t, reps[i-1].Max, rep.Min)
				}
			}
			assert.Equal(t, inCount, outCount)
			assert.Equal(t, inSum, outSum)
			for _, n := range nodes {
				assert.Equal(t, "done", n.state)
			}
		})
	}
}

// TestStartTwice verifies a node runs a single job
func TestStartTwice(t *testing.T) {
	coord := newFakeCoordinator(t)
	nodes, peers := newGroup(t, 1, coord.URL)
	req := startRequest(peers, 10, "")

	require.Equal(t, http.StatusAccepted, doStart(t, nodes[0], req).Code)
	assert.Equal(t, http.StatusConflict, doStart(t, nodes[0], req).Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, nodes[0].wait(ctx))
	require.Len(t, coord.results(), 1)
	assert.Equal(t, 10, coord.results()[0].Count)
}

// TestAbortStopsRunningJob verifies a rank blocked on a missing peer
// reports failure once aborted
func TestAbortStopsRunningJob(t *testing.T) {
	coord := newFakeCoordinator(t)
	nodes, peers := newGroup(t, 2, coord.URL)

	// only rank 0 starts, so it blocks in the first barrier
	require.Equal(t, http.StatusAccepted, doStart(t, nodes[0], startRequest(peers, 100, "")).Code)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, coord.results())

	body, _ := json.Marshal(cluster.AbortRequest{JobID: "job-1", Reason: "rank 1 lost"})
	rec := httptest.NewRecorder()
	nodes[0].handleAbort(rec, httptest.NewRequest(http.MethodPost, "/abort", bytes.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, nodes[0].wait(ctx))

	reps := coord.results()
	require.Len(t, reps, 1)
	assert.Contains(t, reps[0].Err, "rank 1 lost")
	assert.Equal(t, "aborted", nodes[0].state)

	// an aborted node refuses further work
	assert.Equal(t, http.StatusConflict, doStart(t, nodes[0], startRequest(peers, 100, "")).Code)
}

// TestMessagesBeforeStart verifies peers can deliver before the start request
func TestMessagesBeforeStart(t *testing.T) {
	n := NewNode("node-a", "http://coord")
	srv := httptest.NewServer(n.routes())
	defer srv.Close()

	err := cluster.PostJSON(context.Background(), srv.URL+"/msg", cluster.Envelope{From: 1, Tag: 3, Keys: []int64{4, 5}}, nil)
	require.NoError(t, err)

	st := n.box.Stats()
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 2, st.Keys)
}

// TestHandleInfo tests the node info endpoint
func TestHandleInfo(t *testing.T) {
	n := NewNode("node-a", "http://coord")
	srv := httptest.NewServer(n.routes())
	defer srv.Close()

	var info struct {
		NodeID string `json:"node_id"`
		State  string `json:"state"`
		Rank   int    `json:"rank"`
	}
	require.NoError(t, cluster.GetJSON(context.Background(), srv.URL+"/info", &info))
	assert.Equal(t, "node-a", info.NodeID)
	assert.Equal(t, "idle", info.State)
	assert.Equal(t, -1, info.Rank)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestStrategyName tests the banner wording
func TestStrategyName(t *testing.T) {
	assert.Equal(t, "Point-to-point", strategyName("pairwise"))
	assert.Equal(t, "Collective", strategyName("collective"))
	assert.Equal(t, "Collective", strategyName(""))
}
