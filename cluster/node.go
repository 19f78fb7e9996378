package cluster

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/treewalk"
)

// Node is one rank of a walk spread over OS processes. It implements
// treewalk.Transport: every rank dials every other rank once, and frames
// from a given peer arrive on that peer's single connection in send order.
type Node struct {
	cfg  Config
	log  logrus.FieldLogger
	size int

	ln net.Listener

	peersMu sync.RWMutex
	peers   []*peerConn

	box      *inbox
	gatherCh chan treewalk.Envelope

	connsMu  sync.Mutex
	conns    map[net.Conn]struct{}
	inbound  []bool
	departed []bool

	connected atomic.Bool
	byeCh     chan struct{}
	failed    chan struct{}
	failOnce  sync.Once
	failErr   error

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

var _ treewalk.Transport = (*Node)(nil)

// Listen validates cfg, binds the listen address, and starts accepting
// peers. Call Connect before handing the node to a walker.
func Listen(cfg Config) (*Node, error) {
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	size := len(cfg.Peers)
	n := &Node{
		cfg:      cfg,
		log:      cfg.Logger.WithField("rank", cfg.Rank),
		size:     size,
		peers:    make([]*peerConn, size),
		box:      newInbox(),
		gatherCh: make(chan treewalk.Envelope, size),
		conns:    make(map[net.Conn]struct{}),
		inbound:  make([]bool, size),
		departed: make([]bool, size),
		byeCh:    make(chan struct{}, size),
		failed:   make(chan struct{}),
		stop:     make(chan struct{}),
	}

	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", cfg.BindAddr)
	}
	n.ln = ln

	n.wg.Add(1)
	go n.acceptLoop(ln)
	return n, nil
}

// Addr is the bound listen address.
func (n *Node) Addr() net.Addr { return n.ln.Addr() }

// Connect dials every other rank, retrying with capped exponential backoff
// until all are reachable or ctx ends.
func (n *Node) Connect(ctx context.Context) error {
	for rank, addr := range n.cfg.Peers {
		if rank == n.cfg.Rank {
			continue
		}
		if err := n.connectOne(ctx, rank, addr); err != nil {
			return err
		}
	}
	n.connected.Store(true)
	n.log.WithField("peers", n.size-1).Debug("connected to all peers")
	return nil
}

func (n *Node) connectOne(ctx context.Context, rank int, addr string) error {
	delay := n.cfg.DialBackoff
	for attempt := 1; ; attempt++ {
		p, err := dialPeer(ctx, n.cfg.Rank, n.size, rank, addr, &n.cfg, n.log)
		if err == nil {
			n.peersMu.Lock()
			old := n.peers[rank]
			n.peers[rank] = p
			n.peersMu.Unlock()
			if old != nil {
				_ = old.close()
			}
			return nil
		}
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrBadPeer) {
			return errors.Wrapf(err, "hello rank %d at %s", rank, addr)
		}

		n.log.WithFields(logrus.Fields{"peer": rank, "addr": addr, "attempt": attempt}).Debugf("dial failed: %v", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Wrapf(ctx.Err(), "dial rank %d at %s (last error: %v)", rank, addr, err)
		case <-n.stop:
			t.Stop()
			return ErrClosed
		case <-t.C:
		}
		delay *= 2
		if delay > n.cfg.DialBackoffMax {
			delay = n.cfg.DialBackoffMax
		}
	}
}

func (n *Node) Rank() int { return n.cfg.Rank }
func (n *Node) Size() int { return n.size }

// Send queues payload for dest. Write failures surface through the
// returned handle, not here.
func (n *Node) Send(dest int, tag treewalk.Tag, payload []byte) (treewalk.Pending, error) {
	if dest < 0 || dest >= n.size || dest == n.cfg.Rank {
		return nil, fmt.Errorf("%w: send to rank %d", treewalk.ErrBadRank, dest)
	}

	n.peersMu.RLock()
	p := n.peers[dest]
	n.peersMu.RUnlock()
	if p == nil {
		return nil, fmt.Errorf("%w: rank %d", ErrNotConnected, dest)
	}

	raw, err := cborEnc.Marshal(&msgData{base: base{T: ftData}, Tag: uint8(tag), Payload: payload})
	if err != nil {
		return nil, err
	}
	h, err := p.enqueue(raw)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (n *Node) Probe() bool { return n.box.ready() }

func (n *Node) Recv() (treewalk.Envelope, error) {
	for {
		env, ok, err := n.box.take()
		if ok {
			return env, nil
		}
		if err != nil {
			return treewalk.Envelope{}, err
		}
		n.box.wait()
	}
}

// Gather sends payload to root; on root it waits for every rank's payload.
// Walk messages still in flight are not mixed in: gather frames travel
// under their own tag and are queued separately.
func (n *Node) Gather(ctx context.Context, root int, payload []byte) ([][]byte, error) {
	if root < 0 || root >= n.size {
		return nil, fmt.Errorf("%w: gather root %d", treewalk.ErrBadRank, root)
	}

	if n.cfg.Rank != root {
		h, err := n.Send(root, treewalk.TagGather, payload)
		if err != nil {
			return nil, err
		}
		if err := h.Wait(); err != nil {
			return nil, errors.Wrap(err, "gather send")
		}
		return nil, nil
	}

	if n.cfg.GatherTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.GatherTimeout)
		defer cancel()
	}

	out := make([][]byte, n.size)
	seen := make([]bool, n.size)
	out[root] = append([]byte(nil), payload...)
	seen[root] = true
	for got := 1; got < n.size; {
		select {
		case env := <-n.gatherCh:
			if seen[env.Source] {
				return nil, fmt.Errorf("%w: rank %d gathered twice", treewalk.ErrUnexpectedMessage, env.Source)
			}
			seen[env.Source] = true
			out[env.Source] = env.Payload
			got++
		case <-ctx.Done():
			missing := make([]int, 0, n.size)
			for r, ok := range seen {
				if !ok {
					missing = append(missing, r)
				}
			}
			return nil, errors.Wrapf(ctx.Err(), "gather: still waiting for ranks %v", missing)
		case <-n.failed:
			return nil, errors.Wrap(n.failErr, "gather")
		case <-n.stop:
			return nil, ErrClosed
		}
	}
	return out, nil
}

// fail marks the fleet broken: Recv reports err once the inbox is drained
// and a pending Gather returns it.
func (n *Node) fail(err error) {
	n.failOnce.Do(func() {
		n.failErr = err
		close(n.failed)
		n.box.fail(err)
		n.log.Warnf("peer lost: %v", err)
	})
}

// Close says bye to every peer, waits for the peers to say bye back (so a
// slower rank never sees its connections vanish mid-walk), then stops
// accepting, closes every connection and wakes Recv. It is idempotent; the
// first call returns the combined close errors.
func (n *Node) Close() error {
	return n.shutdown(true)
}

// abort tears the node down without the bye exchange, as a crash would.
func (n *Node) abort() error {
	return n.shutdown(false)
}

func (n *Node) shutdown(linger bool) error {
	var result *multierror.Error
	n.stopOnce.Do(func() {
		if linger {
			n.linger()
		}
		close(n.stop)
		if err := n.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}

		n.peersMu.Lock()
		for _, p := range n.peers {
			if p == nil {
				continue
			}
			if err := p.close(); err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "close rank %d", p.rank))
			}
		}
		n.peersMu.Unlock()

		n.connsMu.Lock()
		for c := range n.conns {
			_ = c.Close()
		}
		n.connsMu.Unlock()

		n.box.close()
		n.wg.Wait()
	})
	return result.ErrorOrNil()
}

func (n *Node) linger() {
	raw, err := cborEnc.Marshal(&base{T: ftBye})
	if err != nil {
		return
	}

	n.peersMu.RLock()
	peers := append([]*peerConn(nil), n.peers...)
	n.peersMu.RUnlock()

	for _, p := range peers {
		if p == nil {
			continue
		}
		h, err := p.enqueue(raw)
		if err == nil {
			err = h.Wait()
		}
		if err != nil {
			n.log.WithField("peer", p.rank).Debugf("bye not delivered: %v", err)
		}
	}

	if !n.connected.Load() {
		return
	}
	t := time.NewTimer(n.cfg.LingerTimeout)
	defer t.Stop()
	for got := 0; got < n.size-1; got++ {
		select {
		case <-n.byeCh:
		case <-n.failed:
			return
		case <-t.C:
			n.log.Warnf("closing with %d of %d peers still running", n.size-1-got, n.size-1)
			return
		}
	}
}

func (n *Node) acceptLoop(ln net.Listener) {
	defer n.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-n.stop:
				return
			default:
			}
			if isFatalTransport(err) {
				n.log.Warnf("accept: %v", err)
				return
			}
			continue
		}
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
			_ = tc.SetKeepAlive(true)
			_ = tc.SetKeepAlivePeriod(45 * time.Second)
		}

		n.connsMu.Lock()
		select {
		case <-n.stop:
			n.connsMu.Unlock()
			_ = c.Close()
			return
		default:
		}
		n.conns[c] = struct{}{}
		n.connsMu.Unlock()

		n.wg.Add(1)
		go n.serveConn(c)
	}
}

// serveConn authenticates one dialing peer and then feeds its data frames
// into the inbox (or the gather queue) until the connection ends.
func (n *Node) serveConn(c net.Conn) {
	defer n.wg.Done()
	defer func() {
		n.connsMu.Lock()
		delete(n.conns, c)
		n.connsMu.Unlock()
		_ = c.Close()
	}()

	r := bufio.NewReaderSize(c, n.cfg.ReadBufSize)
	w := bufio.NewWriterSize(c, 4<<10)

	from, err := n.acceptHello(c, r, w)
	if err != nil {
		n.log.WithField("remote", c.RemoteAddr().String()).Warnf("rejected peer: %v", err)
		return
	}
	log := n.log.WithField("peer", from)
	defer func() {
		n.connsMu.Lock()
		n.inbound[from] = false
		n.connsMu.Unlock()
	}()

	for {
		frame, err := inboundFrames.read(r, n.cfg.Sec.MaxFrameSize)
		if err != nil {
			select {
			case <-n.stop:
				return
			default:
			}
			n.connsMu.Lock()
			clean := n.departed[from]
			n.connsMu.Unlock()
			if clean {
				log.Debugf("inbound connection ended after bye: %v", err)
				return
			}
			n.fail(fmt.Errorf("%w: rank %d: %v", ErrPeerClosed, from, err))
			return
		}

		var m msgData
		err = cborDec.Unmarshal(frame, &m)
		if err == nil && m.T == ftBye {
			inboundFrames.put(frame)
			n.connsMu.Lock()
			n.departed[from] = true
			n.connsMu.Unlock()
			select {
			case n.byeCh <- struct{}{}:
			default:
			}
			continue
		}
		if err != nil || m.T != ftData {
			inboundFrames.put(frame)
			n.fail(fmt.Errorf("%w: undecodable frame (type %d) from rank %d: %v", ErrBadPeer, m.T, from, err))
			return
		}

		// the payload must not alias the pooled buffer
		payload := append([]byte(nil), m.Payload...)
		inboundFrames.put(frame)
		env := treewalk.Envelope{Source: from, Tag: treewalk.Tag(m.Tag), Payload: payload}
		if env.Tag == treewalk.TagGather {
			select {
			case n.gatherCh <- env:
			case <-n.stop:
				return
			}
			continue
		}
		if !n.box.put(env) {
			return
		}
	}
}

func (n *Node) acceptHello(c net.Conn, r *bufio.Reader, w *bufio.Writer) (int, error) {
	_ = c.SetReadDeadline(time.Now().Add(n.cfg.Sec.ReadTimeout))
	raw, err := readFrame(r, n.cfg.Sec.MaxFrameSize)
	if err != nil {
		return -1, err
	}
	_ = c.SetReadDeadline(time.Time{})

	var b base
	if err := cborDec.Unmarshal(raw, &b); err != nil || b.T != ftHello {
		return -1, fmt.Errorf("%w: expected hello", ErrBadPeer)
	}
	var h msgHello
	if err := cborDec.Unmarshal(raw, &h); err != nil {
		return -1, err
	}

	var (
		reason string
		code   uint8
	)
	switch {
	case n.cfg.Sec.AuthToken != "" && h.Token != n.cfg.Sec.AuthToken:
		reason, code = "unauthorized", rejectAuth
	case h.Size != n.size:
		reason, code = fmt.Sprintf("fleet size mismatch: peer has %d, we have %d", h.Size, n.size), rejectPeer
	case h.From < 0 || h.From >= n.size || h.From == n.cfg.Rank:
		reason, code = fmt.Sprintf("bad rank %d", h.From), rejectPeer
	}
	if reason == "" {
		n.connsMu.Lock()
		if n.inbound[h.From] {
			reason, code = fmt.Sprintf("rank %d already connected", h.From), rejectPeer
		} else {
			n.inbound[h.From] = true
		}
		n.connsMu.Unlock()
	}

	ack := msgHelloResp{base: base{T: ftHelloResp}, OK: reason == "", Code: code, Err: reason}
	out, _ := cborEnc.Marshal(&ack)
	_ = c.SetWriteDeadline(time.Now().Add(n.cfg.Sec.WriteTimeout))
	if err := writeFrameBuf(w, out); err != nil {
		return -1, err
	}
	_ = c.SetWriteDeadline(time.Time{})
	switch code {
	case rejectAuth:
		return -1, fmt.Errorf("%w: %s", ErrUnauthorized, reason)
	case rejectPeer:
		return -1, fmt.Errorf("%w: %s", ErrBadPeer, reason)
	}
	return h.From, nil
}
