package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/samplesort/internal/cluster"
	"github.com/dreamware/samplesort/internal/coordinator"
)

// TestSystem is a coordinator and its nodes running as real processes.
type TestSystem struct {
	t          *testing.T
	bin        string
	coord      *exec.Cmd
	nodes      []*exec.Cmd
	coordAddr  string
	nodeAddrs  []string
	httpClient *http.Client
}

func NewTestSystem(t *testing.T, bin string, ranks int) *TestSystem {
	ts := &TestSystem{
		t:          t,
		bin:        bin,
		coordAddr:  "http://127.0.0.1:18090",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for i := 0; i < ranks; i++ {
		ts.nodeAddrs = append(ts.nodeAddrs, fmt.Sprintf("http://127.0.0.1:%d", 18091+i))
	}
	return ts
}

// buildBinaries compiles the coordinator and node into a temporary directory.
func buildBinaries(t *testing.T) string {
	bin := t.TempDir()
	for _, name := range []string{"coordinator", "node"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(bin, name), "../../cmd/"+name)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		require.NoError(t, cmd.Run(), "build %s", name)
	}
	return bin
}

// Start launches the coordinator and then every node. env is added to the
// coordinator's environment.
func (ts *TestSystem) Start(env ...string) error {
	ts.coord = exec.Command(filepath.Join(ts.bin, "coordinator"))
	ts.coord.Env = append(os.Environ(), "COORDINATOR_LISTEN=:18090", fmt.Sprintf("SORT_PROCS=%d", len(ts.nodeAddrs)))
	ts.coord.Env = append(ts.coord.Env, env...)
	ts.coord.Stdout = os.Stdout
	ts.coord.Stderr = os.Stderr
	if err := ts.coord.Start(); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}
	if err := ts.waitForService(ts.coordAddr + "/health"); err != nil {
		return fmt.Errorf("coordinator failed to start: %w", err)
	}

	for i, addr := range ts.nodeAddrs {
		node := exec.Command(filepath.Join(ts.bin, "node"))
		node.Env = append(os.Environ(),
			fmt.Sprintf("NODE_ID=n%d", i+1),
			fmt.Sprintf("NODE_LISTEN=:%d", 18091+i),
			fmt.Sprintf("NODE_ADDR=%s", addr),
			fmt.Sprintf("COORDINATOR_ADDR=%s", ts.coordAddr),
		)
		node.Stdout = os.Stdout
		node.Stderr = os.Stderr
		if err := node.Start(); err != nil {
			return fmt.Errorf("failed to start node %d: %w", i+1, err)
		}
		ts.nodes = append(ts.nodes, node)
		if err := ts.waitForService(addr + "/health"); err != nil {
			return fmt.Errorf("node %d failed to start: %w", i+1, err)
		}
	}
	return nil
}

// Stop kills every process.
func (ts *TestSystem) Stop() {
	for _, node := range ts.nodes {
		if node != nil && node.Process != nil {
			node.Process.Kill()
			node.Wait()
		}
	}
	if ts.coord != nil && ts.coord.Process != nil {
		ts.coord.Process.Kill()
		ts.coord.Wait()
	}
}

func (ts *TestSystem) waitForService(url string) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := ts.httpClient.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("service at %s did not become ready", url)
}

// waitForJob polls /job until the job leaves the waiting and running states.
func (ts *TestSystem) waitForJob(timeout time.Duration) (coordinator.JobSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		var sum coordinator.JobSummary
		if err := cluster.GetJSON(ctx, ts.coordAddr+"/job", &sum); err == nil {
			if sum.State == coordinator.JobDone || sum.State == coordinator.JobFailed {
				return sum, nil
			}
		}
		select {
		case <-ctx.Done():
			return sum, fmt.Errorf("job not finished: %w", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestDistributedSort(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs binaries")
	}
	bin := buildBinaries(t)

	for _, strategy := range []string{"collective", "pairwise"} {
		t.Run(strategy, func(t *testing.T) {
			ts := NewTestSystem(t, bin, 3)
			defer ts.Stop()

			require.NoError(t, ts.Start(
				"SORT_TOTAL=30000",
				"SORT_STRATEGY="+strategy,
				"SORT_SEED=42",
			))

			sum, err := ts.waitForJob(30 * time.Second)
			require.NoError(t, err)
			require.Equal(t, coordinator.JobDone, sum.State, sum.Reason)

			assert.True(t, sum.Sorted)
			assert.True(t, sum.Conserved)
			assert.Equal(t, 30000, sum.Total)
			require.Len(t, sum.Reports, 3)
			for i, rep := range sum.Reports {
				assert.Equal(t, i, rep.Rank)
				assert.Equal(t, 10000, rep.InputCount)
				assert.Empty(t, rep.Err)
			}
		})
	}
}

func TestLostRankFailsJob(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs binaries")
	}
	bin := buildBinaries(t)

	ts := NewTestSystem(t, bin, 2)
	defer ts.Stop()

	// a large job keeps the ranks busy long enough to lose one
	require.NoError(t, ts.Start("SORT_TOTAL=20000000", "SORT_STRATEGY=pairwise"))
	require.Eventually(t, func() bool {
		var sum coordinator.JobSummary
		err := cluster.GetJSON(context.Background(), ts.coordAddr+"/job", &sum)
		return err == nil && sum.State == coordinator.JobRunning
	}, 10*time.Second, 50*time.Millisecond)

	ts.nodes[1].Process.Kill()
	ts.nodes[1].Wait()
	ts.nodes[1] = nil

	sum, err := ts.waitForJob(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, coordinator.JobFailed, sum.State)
	assert.NotEmpty(t, sum.Reason)
}
