// Package comm provides the message-passing layer a sample sort rank uses to
// talk to its group: point-to-point Send/Recv through a Communicator, and the
// collective operations built on top of it.
//
// Two Communicators are provided. LocalGroup wires P ranks of one process
// together through in-memory mailboxes, which is what the single-binary
// runner and most tests use. HTTPComm reaches peers over HTTP by posting
// cluster.Envelope values to their /msg endpoint; MessageHandler is the
// receiving side.
//
// Collectives (Gather, Bcast, Alltoall, Alltoallv, Barrier) are plain
// functions over any Communicator. Every rank must call them in the same
// order, as with MPI collectives. Sends never wait for the receiver, so a
// rank may post all of its outgoing messages before reading any.
package comm
