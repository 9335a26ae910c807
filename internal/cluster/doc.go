// Package cluster defines the wire types and HTTP helpers shared by the
// sample sort coordinator and its rank processes.
//
// # Overview
//
// A distributed run is made of one coordinator and P node processes. The
// coordinator only handles membership and bookkeeping: it hands out ranks,
// tells everyone when the group is complete, collects results, and aborts the
// group when a rank is lost. The sort itself runs entirely between the nodes,
// which exchange Envelopes directly with each other.
//
//	              ┌──────────────┐
//	              │ Coordinator  │
//	              │ - Ranks      │
//	              │ - Health Mon │
//	              │ - Job status │
//	              └──────┬───────┘
//	   register/start/   │   result/abort
//	      ┌──────────────┼──────────────┐
//	      │              │              │
//	┌─────▼─────┐  ┌─────▼─────┐  ┌─────▼─────┐
//	│  Rank 0   │◄─►  Rank 1   │◄─►  Rank 2   │
//	└───────────┘  └───────────┘  └───────────┘
//	          POST /msg (Envelope) between ranks
//
// # Communication Protocol
//
// Node Registration (POST /register):
//   - Node sends its ID and public address
//   - Coordinator answers with the assigned rank and group size
//
// Start (POST /start on every node):
//   - Sent once the group is full
//   - Carries the rank-ordered peer list and the run parameters
//
// Messages (POST /msg between nodes):
//   - One Envelope per point-to-point message
//   - The receiving node queues it in its mailbox keyed by (From, Tag)
//
// Results (POST /result on the coordinator):
//   - One ResultReport per rank, with counts, bounds and checksums
//   - A report with Err set aborts the whole group
//
// Abort (POST /abort on every node):
//   - Fails every pending receive on the node; the run cannot resume
//
// # Failure Handling
//
// There is no retry inside the protocol. Every HTTP call uses a shared client
// with a 30s timeout and a non-2xx answer is an error. Registration is the
// one place callers retry, since the coordinator may start after its nodes.
package cluster
