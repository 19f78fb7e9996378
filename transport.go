package treewalk

import "context"

// Transport is the point-to-point substrate between ranks of one run.
//
// Messages between an ordered pair of ranks must be delivered in send order.
// No ordering is required across different senders.
type Transport interface {
	// Rank is this participant's identity in 0..Size()-1.
	Rank() int
	// Size is the fixed number of ranks in the run.
	Size() int
	// Send queues payload for dest and returns without waiting for the peer.
	// The returned Pending completes once the payload buffer has been handed
	// off; it never waits for the peer to receive it.
	Send(dest int, tag Tag, payload []byte) (Pending, error)
	// Probe reports whether a message is ready for Recv. It never blocks.
	Probe() bool
	// Recv returns the next inbound message. It blocks when nothing is ready.
	Recv() (Envelope, error)
	// Gather is collective: every rank contributes payload and root receives
	// all contributions indexed by rank. Non-root ranks get a nil slice.
	Gather(ctx context.Context, root int, payload []byte) ([][]byte, error)
}

// Pending is the completion handle of an asynchronous Send.
type Pending interface {
	// Wait blocks until the send completes and returns its error.
	Wait() error
	// Test reports whether the send has completed without blocking. err is
	// only meaningful once done is true.
	Test() (done bool, err error)
}

type donePending struct{ err error }

func (d donePending) Wait() error         { return d.err }
func (d donePending) Test() (bool, error) { return true, d.err }

// Completed returns a Pending that is already complete with err.
func Completed(err error) Pending { return donePending{err: err} }
