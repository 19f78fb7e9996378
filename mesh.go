package treewalk

import (
	"context"
	"fmt"
	"sync"
)

// Mesh connects a fixed number of ranks living in one process. Each rank
// gets its own Endpoint and must be driven by its own goroutine. Payloads are
// copied on Send so ranks never share memory.
//
// A Mesh supports a single Gather round, matching the single-use Walker.
type Mesh struct {
	size   int
	boxes  []*mailbox
	gather gatherRound
}

type mailbox struct {
	mu     sync.Mutex
	q      []Envelope
	head   int
	closed bool
	notify chan struct{}
}

type gatherRound struct {
	mu    sync.Mutex
	root  int
	slots [][]byte
	seen  []bool
	got   int
	done  chan struct{}
}

// NewMesh creates a mesh of n ranks.
func NewMesh(n int) *Mesh {
	if n < 1 {
		n = 1
	}
	m := &Mesh{
		size:  n,
		boxes: make([]*mailbox, n),
		gather: gatherRound{
			root:  -1,
			slots: make([][]byte, n),
			seen:  make([]bool, n),
			done:  make(chan struct{}),
		},
	}
	for i := range m.boxes {
		m.boxes[i] = &mailbox{notify: make(chan struct{}, 1)}
	}
	return m
}

// Size returns the number of ranks.
func (m *Mesh) Size() int { return m.size }

// Endpoint returns rank's view of the mesh. It panics on an invalid rank.
func (m *Mesh) Endpoint(rank int) *MeshEndpoint {
	if rank < 0 || rank >= m.size {
		panic(fmt.Sprintf("treewalk: mesh rank %d out of range [0,%d)", rank, m.size))
	}
	return &MeshEndpoint{m: m, rank: rank}
}

// Close wakes any rank blocked in Recv; further Recv calls on an empty
// mailbox fail with ErrMeshClosed. Close is idempotent.
func (m *Mesh) Close() {
	for _, b := range m.boxes {
		b.mu.Lock()
		if !b.closed {
			b.closed = true
			close(b.notify)
		}
		b.mu.Unlock()
	}
}

func (b *mailbox) put(env Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrMeshClosed
	}
	b.q = append(b.q, env)
	// signal under the lock so Close cannot close notify in between
	select {
	case b.notify <- struct{}{}:
	default:
	}
	b.mu.Unlock()
	return nil
}

func (b *mailbox) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head < len(b.q)
}

func (b *mailbox) take() (Envelope, bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.head < len(b.q) {
		env := b.q[b.head]
		b.q[b.head] = Envelope{}
		b.head++
		// compact once the consumed prefix dominates
		if b.head > 64 && b.head*2 >= len(b.q) {
			n := copy(b.q, b.q[b.head:])
			b.q = b.q[:n]
			b.head = 0
		}
		return env, true, b.closed
	}
	return Envelope{}, false, b.closed
}

// MeshEndpoint is one rank's Transport on a Mesh.
type MeshEndpoint struct {
	m    *Mesh
	rank int
}

var _ Transport = (*MeshEndpoint)(nil)

func (e *MeshEndpoint) Rank() int { return e.rank }
func (e *MeshEndpoint) Size() int { return e.m.size }

func (e *MeshEndpoint) Send(dest int, tag Tag, payload []byte) (Pending, error) {
	if dest < 0 || dest >= e.m.size {
		return nil, fmt.Errorf("%w: send to %d", ErrBadRank, dest)
	}
	env := Envelope{
		Source:  e.rank,
		Tag:     tag,
		Payload: append([]byte(nil), payload...),
	}
	if err := e.m.boxes[dest].put(env); err != nil {
		return nil, err
	}
	return Completed(nil), nil
}

func (e *MeshEndpoint) Probe() bool {
	return e.m.boxes[e.rank].ready()
}

func (e *MeshEndpoint) Recv() (Envelope, error) {
	b := e.m.boxes[e.rank]
	for {
		env, ok, closed := b.take()
		if ok {
			return env, nil
		}
		if closed {
			return Envelope{}, ErrMeshClosed
		}
		<-b.notify
	}
}

func (e *MeshEndpoint) Gather(ctx context.Context, root int, payload []byte) ([][]byte, error) {
	if root < 0 || root >= e.m.size {
		return nil, fmt.Errorf("%w: gather root %d", ErrBadRank, root)
	}
	g := &e.m.gather

	g.mu.Lock()
	if g.root == -1 {
		g.root = root
	}
	if g.root != root {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: gather root %d disagrees with %d", ErrUnexpectedMessage, root, g.root)
	}
	if g.seen[e.rank] {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: rank %d gathered twice", ErrUnexpectedMessage, e.rank)
	}
	g.seen[e.rank] = true
	g.slots[e.rank] = append([]byte(nil), payload...)
	g.got++
	if g.got == e.m.size {
		close(g.done)
	}
	g.mu.Unlock()

	if e.rank != root {
		return nil, nil
	}

	select {
	case <-g.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := make([][]byte, e.m.size)
	copy(out, g.slots)
	return out, nil
}
