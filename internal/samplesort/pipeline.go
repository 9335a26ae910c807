package samplesort

import (
	"context"
	"fmt"
	"log"

	"github.com/dreamware/samplesort/internal/comm"
)

// Config selects the interchangeable parts of a Pipeline.
type Config struct {
	// Strategy picks the Exchanger; empty means StrategyCollective.
	Strategy Strategy
	// Root is the rank that selects pivots when Pivots is nil.
	Root int
	// Pivots overrides the pivot phase.
	Pivots PivotPhase
	// Logf receives stage-completion messages; nil means log.Printf.
	Logf func(format string, args ...any)
}

// Pipeline runs the sample sort protocol for one rank.
type Pipeline struct {
	exchanger Exchanger
	pivots    PivotPhase
	logf      func(format string, args ...any)
}

// Result is one rank's view of a finished run.
type Result struct {
	Keys      []int64 // this rank's slice of the global order
	Samples   []int64
	Pivots    []int64
	Exchanged *Exchanged
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	ex, err := NewExchanger(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		exchanger: ex,
		pivots:    cfg.Pivots,
		logf:      cfg.Logf,
	}
	if p.pivots == nil {
		p.pivots = RootPivots{Root: cfg.Root}
	}
	if p.logf == nil {
		p.logf = log.Printf
	}
	return p, nil
}

// Run sorts local in place, then takes part in the group protocol and
// returns this rank's final partition. Every rank of c must call Run. Any
// error leaves the group unusable; callers abort the whole group.
func (p *Pipeline) Run(ctx context.Context, c comm.Communicator, local []int64) (*Result, error) {
	rank, size := c.Rank(), c.Size()
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProcessCount, size)
	}

	LocalSort(local)
	p.logf("rank[%d] local sort done (%d keys)", rank, len(local))

	res := &Result{Samples: SelectSamples(local, size)}

	pivots, err := p.pivots.Pivots(ctx, c, res.Samples)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", rank, err)
	}
	res.Pivots = pivots
	if rank == 0 {
		p.logf("rank[%d] pivots selected %v", rank, pivots)
	}

	buckets := Partition(local, pivots)
	p.logf("rank[%d] partitioning done", rank)

	ex, err := p.exchanger.Exchange(ctx, c, buckets)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", rank, err)
	}
	res.Exchanged = ex
	p.logf("rank[%d] redistribution done (%d keys received)", rank, len(ex.Received))

	res.Keys = MergeRuns(ex.Fragments)
	p.logf("rank[%d] final local sort done", rank)
	return res, nil
}
