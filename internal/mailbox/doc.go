// Package mailbox provides the per-rank receive queues that back every
// point-to-point message in a sample sort run.
//
// # Overview
//
// A rank never reads another rank's memory. Everything it learns about its
// peers (samples, pivots, bucket sizes, bucket payloads) arrives as a message
// addressed to it, and every message lands in that rank's Mailbox before the
// protocol code asks for it. Transports only have to call Deliver; the
// pipeline only has to call Receive.
//
// # Matching
//
// Messages are matched on the pair (source rank, tag):
//
//	┌───────────────────────────────────────┐
//	│              Mailbox (rank 2)          │
//	├───────────────────────────────────────┤
//	│  (src=0, tag=gather)  → [[..]]         │
//	│  (src=0, tag=bcast)   → [[..]]         │
//	│  (src=1, tag=payload) → [[..], [..]]   │
//	│  (src=3, tag=counts)  → []  ← waiting  │
//	└───────────────────────────────────────┘
//
// Each slot is a FIFO queue, so two messages sent by the same source with the
// same tag are received in the order they were sent. Messages from different
// sources, or with different tags, are never ordered relative to each other.
// Receive blocks until a matching message is queued, the context is done, or
// the mailbox is closed.
//
// # Aborting
//
// Close(err) wakes every blocked receiver and makes every later Receive fail
// with err. This is how a run is torn down when one rank fails: the failing
// rank's error is pushed into every peer's mailbox and each peer's pipeline
// returns at its next receive.
//
// # Concurrency Model
//
//   - All methods are safe for concurrent use
//   - Deliver never blocks; queues are unbounded
//   - Payloads are copied on Deliver so senders may reuse their buffers
//
// # Usage Example
//
//	box := mailbox.NewMemoryMailbox()
//	_ = box.Deliver(1, 3, []int64{4, 8, 15})
//	keys, err := box.Receive(ctx, 1, 3)
package mailbox
