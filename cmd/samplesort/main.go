// Package main runs a whole sample sort group inside one process: P ranks on
// goroutines connected by in-memory mailboxes. It is the quickest way to
// benchmark the pipeline without a coordinator and nodes.
//
// Usage:
//
//	samplesort [total]
//
// The optional argument overrides SORT_TOTAL. Every other setting comes from
// internal/config (SORT_CONFIG, SORT_PROCS, SORT_STRATEGY, SORT_ROOT,
// SORT_SEED, SORT_MAX_KEY).
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/samplesort/internal/comm"
	"github.com/dreamware/samplesort/internal/config"
	"github.com/dreamware/samplesort/internal/dataset"
	"github.com/dreamware/samplesort/internal/samplesort"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if _, err := run(context.Background(), cfg, os.Stdout); err != nil {
		log.Fatalf("sort failed: %v", err)
	}
}

func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load(os.Getenv("SORT_CONFIG"))
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("total %q: %w", args[0], err)
		}
		cfg.Total = n
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run sorts cfg.Total generated keys over cfg.Procs ranks, verifies the
// result and prints the rank-0 summary to out. It returns every rank's final
// slice in rank order.
func run(ctx context.Context, cfg *config.Config, out io.Writer) ([][]int64, error) {
	pipe, err := samplesort.NewPipeline(samplesort.Config{
		Strategy: samplesort.Strategy(cfg.Strategy),
		Root:     cfg.Root,
	})
	if err != nil {
		return nil, err
	}

	ranks := comm.NewLocalGroup(cfg.Procs)
	parts := make([][]int64, cfg.Procs)
	inSums := make([]int64, cfg.Procs)
	var pivots []int64
	var elapsed time.Duration

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range ranks {
		g.Go(func() error {
			rank := c.Rank()
			keys := dataset.Generate(cfg.Total, cfg.Procs, rank, cfg.Seed, cfg.MaxKey)
			_, inSums[rank] = dataset.Checksum(keys)

			err := func() error {
				if err := comm.Barrier(gctx, c); err != nil {
					return err
				}
				start := time.Now()
				res, err := pipe.Run(gctx, c, keys)
				if err != nil {
					return err
				}
				if err := comm.Barrier(gctx, c); err != nil {
					return err
				}
				parts[rank] = res.Keys
				if rank == 0 {
					elapsed = time.Since(start)
					pivots = res.Pivots
				}
				return nil
			}()
			if err != nil {
				// release peers blocked on this rank
				c.Abort(err)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := samplesort.Verify(parts, pivots); err != nil {
		return nil, err
	}
	var inSum, outSum int64
	outCount := 0
	for r, part := range parts {
		n, sum := dataset.Checksum(part)
		inSum += inSums[r]
		outSum += sum
		outCount += n
	}
	if outCount != cfg.Total || outSum != inSum {
		return nil, fmt.Errorf("keys not conserved: %d of %d keys, sum %d want %d", outCount, cfg.Total, outSum, inSum)
	}

	fmt.Fprintf(out, "%s sample sort finished.\n", strategyName(cfg.Strategy))
	fmt.Fprintf(out, "total size: %d\n", cfg.Total)
	fmt.Fprintf(out, "elapsed: %.6f seconds\n", elapsed.Seconds())
	return parts, nil
}

func strategyName(s string) string {
	if samplesort.Strategy(s) == samplesort.StrategyPairwise {
		return "Point-to-point"
	}
	return "Collective"
}
