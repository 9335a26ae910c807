// Package coordinator implements the control plane of a distributed sample
// sort: it turns a set of independently started node processes into a
// numbered process group, watches the group while it sorts, and decides
// whether the run succeeded.
//
// # Overview
//
// The coordinator never touches keys. The sort protocol runs entirely
// between the ranks; the coordinator only needs to know who the ranks are,
// whether they are alive, and what each one reported at the end.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         COORDINATOR                 │
//	├─────────────────────────────────────┤
//	│  ┌──────────────────────────────┐   │
//	│  │   Rank Registry              │   │
//	│  │   - node ID → rank           │   │
//	│  │   - rank-ordered roster      │   │
//	│  └──────────────────────────────┘   │
//	│  ┌──────────────────────────────┐   │
//	│  │   Health Monitor             │   │
//	│  │   - periodic /health probes  │   │
//	│  │   - lost rank → abort        │   │
//	│  └──────────────────────────────┘   │
//	│  ┌──────────────────────────────┐   │
//	│  │   Job                        │   │
//	│  │   - per-rank reports         │   │
//	│  │   - order + conservation     │   │
//	│  └──────────────────────────────┘   │
//	└─────────────────────────────────────┘
//
// # Lifecycle
//
//  1. Nodes register; RankRegistry assigns ranks 0..P-1 in arrival order
//  2. When the registry is complete the job starts and the roster is
//     broadcast to every node
//  3. The HealthMonitor probes every rank while the job runs
//  4. Each rank posts a cluster.ResultReport; Job checks the full set
//  5. A failed report or a lost rank fails the job and the group is told
//     to abort
//
// # Failure Handling
//
// The sort has no checkpoints, so there is no recovery. A rank that misses
// maxFailures probes in a row is marked lost permanently, and any failure
// ends the job in JobFailed with a reason. Reports arriving after that are
// rejected.
//
// # Concurrency Model
//
// All types are safe for concurrent use. Read paths take RLock; no lock is
// held while probing a node or invoking a callback.
//
// # See Also
//
//   - internal/cluster: wire types exchanged with nodes
//   - internal/samplesort: the protocol the ranks run
package coordinator
