// Package samplesort implements distributed sample sort over a group of P
// ranks that share no memory and talk only through a comm.Communicator.
//
// # Overview
//
// Every rank starts with its own share of the keys and ends with one
// contiguous slice of the global order; concatenating the slices in rank
// order yields the fully sorted dataset. A run goes through seven stages:
//
//	local sort → sample → pivots (collect, compute, broadcast)
//	    → partition → exchange sizes → exchange payload → merge
//
// The stages are sequential on each rank. Ranks only wait for each other
// where data forces them to: pivot selection needs every rank's samples,
// partitioning needs the pivots, a payload can only be checked once its size
// was announced, and the final merge needs every incoming bucket.
//
// # Pivots
//
// Each rank takes P-1 keys at regular intervals of its sorted share. The
// pivot phase gathers the P(P-1) samples, sorts them and keeps every P-th
// one. RootPivots does this on one configurable rank; PivotPhase is the seam
// for other arrangements. Pivots are non-decreasing but may repeat, e.g.
// when all keys are equal; repeated pivots just produce empty buckets.
//
// # Buckets
//
// Key k belongs to bucket i when pivots[i-1] < k <= pivots[i], with the
// first and last buckets open-ended. Bucket i goes to rank i.
//
// # Exchange
//
// Two Exchangers move the buckets, chosen by Strategy:
//
//   - collective: one all-to-all step for the sizes, one for the payloads,
//     each posting to all peers concurrently
//   - pairwise: explicit sends to and receives from each peer in rank order
//
// Both announce sizes first, size the receive buffer from them and reject a
// payload that disagrees with its announcement. A rank's bucket for itself
// is copied, never sent.
//
// # Balance
//
// Balance is approximate. With evenly spread keys no rank ends far from N/P;
// with heavy duplication one rank may receive most keys.
//
// # Failure Handling
//
// There is no retry and no partial result. Configuration errors are caught
// by ValidateGroup before the run. Any transport error ends Run on that rank
// and the caller is expected to abort the whole group.
package samplesort
