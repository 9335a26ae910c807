// Package coordinator provides the sort coordinator's control plane.
// This file tracks the outcome of one distributed sort run.
package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/samplesort/internal/cluster"
)

// JobState is the lifecycle state of a sort job.
type JobState string

const (
	JobWaiting JobState = "waiting" // ranks still registering
	JobRunning JobState = "running" // start broadcast, results pending
	JobDone    JobState = "done"    // every rank reported success
	JobFailed  JobState = "failed"  // a rank failed or was lost, or results are inconsistent
)

var (
	ErrJobNotRunning = errors.New("job is not running")
	ErrDuplicate     = errors.New("rank already reported")
)

// JobSummary is a point-in-time view of a job.
type JobSummary struct {
	ID        string                 `json:"id"`
	State     JobState               `json:"state"`
	Size      int                    `json:"size"`
	Reported  int                    `json:"reported"`
	Reason    string                 `json:"reason,omitempty"`
	Total     int                    `json:"total"`
	Sorted    bool                   `json:"sorted"`
	Conserved bool                   `json:"conserved"`
	Elapsed   float64                `json:"elapsed_seconds"`
	Reports   []cluster.ResultReport `json:"reports"`
}

// Job collects the per-rank result reports of one run and, once all are in,
// checks that the ranks' slices line up into one sorted sequence and that
// no key was created or lost.
//
// The global check needs no keys: each report carries its count, bounds and
// a checksum of both its input share and its final slice. Slices are in
// order when every non-empty slice starts at or above the end of the
// previous non-empty slice.
type Job struct {
	started time.Time
	reports []*cluster.ResultReport
	id      string
	state   JobState
	reason  string
	mu      sync.RWMutex
	got     int
}

// NewJob creates a waiting job for size ranks.
func NewJob(id string, size int) *Job {
	return &Job{
		id:      id,
		state:   JobWaiting,
		reports: make([]*cluster.ResultReport, size),
	}
}

func (j *Job) ID() string { return j.id }

// Start moves a waiting job to running.
func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobWaiting {
		return fmt.Errorf("start job in state %s", j.state)
	}
	j.state = JobRunning
	j.started = time.Now()
	return nil
}

// Record stores one rank's report. A report carrying Err fails the job.
// Returns true when this report completed the job (successfully or not).
func (j *Job) Record(rep cluster.ResultReport) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != JobRunning {
		return false, fmt.Errorf("%w: %s", ErrJobNotRunning, j.state)
	}
	if rep.Rank < 0 || rep.Rank >= len(j.reports) {
		return false, fmt.Errorf("%w: %d", ErrUnknownRank, rep.Rank)
	}
	if j.reports[rep.Rank] != nil {
		return false, fmt.Errorf("%w: %d", ErrDuplicate, rep.Rank)
	}

	j.reports[rep.Rank] = &rep
	j.got++

	if rep.Err != "" {
		j.fail(fmt.Sprintf("rank %d: %s", rep.Rank, rep.Err))
		return true, nil
	}
	if j.got < len(j.reports) {
		return false, nil
	}

	if err := j.check(); err != nil {
		j.fail(err.Error())
	} else {
		j.state = JobDone
	}
	return true, nil
}

// Fail aborts a waiting or running job. Returns false if it had already ended.
func (j *Job) Fail(reason string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == JobDone || j.state == JobFailed {
		return false
	}
	j.fail(reason)
	return true
}

func (j *Job) fail(reason string) {
	j.state = JobFailed
	j.reason = reason
}

// check verifies global order and conservation over the complete report set.
func (j *Job) check() error {
	var inCount, outCount int
	var inSum, outSum int64
	var prevMax int64
	prevRank := -1

	for r, rep := range j.reports {
		inCount += rep.InputCount
		inSum += rep.InputSum
		outCount += rep.Count
		outSum += rep.Sum

		if !rep.Sorted {
			return fmt.Errorf("rank %d: slice not sorted", r)
		}
		if rep.Count == 0 {
			continue
		}
		if prevRank >= 0 && rep.Min < prevMax {
			return fmt.Errorf("rank %d starts at %d below rank %d's end %d", r, rep.Min, prevRank, prevMax)
		}
		prevMax, prevRank = rep.Max, r
	}

	if inCount != outCount || inSum != outSum {
		return fmt.Errorf("keys not conserved: in %d (sum %d), out %d (sum %d)", inCount, inSum, outCount, outSum)
	}
	return nil
}

// Summary returns a copy of the job's current state.
func (j *Job) Summary() JobSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := JobSummary{
		ID:       j.id,
		State:    j.state,
		Size:     len(j.reports),
		Reported: j.got,
		Reason:   j.reason,
		Reports:  make([]cluster.ResultReport, 0, j.got),
	}
	for _, rep := range j.reports {
		if rep == nil {
			continue
		}
		s.Reports = append(s.Reports, *rep)
		s.Total += rep.Count
		if rep.Elapsed > s.Elapsed {
			s.Elapsed = rep.Elapsed
		}
	}
	if j.state == JobDone {
		s.Sorted, s.Conserved = true, true
	}
	return s
}
