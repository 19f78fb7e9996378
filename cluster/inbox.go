package cluster

import (
	"sync"

	"github.com/unkn0wn-root/treewalk"
)

// inbox is the unbounded queue every inbound connection feeds. Readers never
// block on it, so a slow walker cannot stall a peer's writer.
//
// A failed inbox still hands out what was queued before the failure; after
// that take reports the failure instead of blocking.
type inbox struct {
	mu     sync.Mutex
	q      []treewalk.Envelope
	head   int
	err    error
	closed bool
	notify chan struct{}
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

// signal must be called with mu held.
func (b *inbox) signal() {
	if b.closed {
		return
	}
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *inbox) put(env treewalk.Envelope) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.q = append(b.q, env)
	b.signal()
	return true
}

// fail records the first failure and wakes a blocked reader.
func (b *inbox) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
	b.signal()
}

// ready reports whether take would return without blocking.
func (b *inbox) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head < len(b.q) || b.err != nil
}

// take returns the next envelope, or the reason none will come.
// ok=false with a nil error means the caller should wait.
func (b *inbox) take() (treewalk.Envelope, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.head < len(b.q) {
		env := b.q[b.head]
		b.q[b.head] = treewalk.Envelope{}
		b.head++
		if b.head > 64 && b.head*2 >= len(b.q) {
			n := copy(b.q, b.q[b.head:])
			b.q = b.q[:n]
			b.head = 0
		}
		return env, true, nil
	}
	switch {
	case b.err != nil:
		return treewalk.Envelope{}, false, b.err
	case b.closed:
		return treewalk.Envelope{}, false, ErrClosed
	}
	return treewalk.Envelope{}, false, nil
}

// wait blocks until something was put, the inbox failed, or it closed.
func (b *inbox) wait() {
	<-b.notify
}

func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.notify)
	}
}
