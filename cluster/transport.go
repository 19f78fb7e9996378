package cluster

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// peerConn is the outbound half of one ordered rank pair. A single writer
// goroutine drains outq, so frames reach the peer in Send order.
type peerConn struct {
	rank      int
	addr      string
	conn      net.Conn
	r         *bufio.Reader
	w         *bufio.Writer
	outq      chan *sendHandle
	closed    chan struct{}
	closeOnce sync.Once
	maxFrame  int
	readTO    time.Duration
	writeTO   time.Duration
	log       logrus.FieldLogger

	errMu sync.Mutex
	err   error // first write failure; every later frame fails with it
}

// sendHandle is the Pending returned by Node.Send. It completes once the
// frame has been written to the socket.
type sendHandle struct {
	raw    []byte
	done   chan struct{}
	closed <-chan struct{}
	err    error
}

func (h *sendHandle) Test() (bool, error) {
	select {
	case <-h.done:
		return true, h.err
	default:
	}
	select {
	case <-h.closed:
		return true, ErrPeerClosed
	default:
		return false, nil
	}
}

func (h *sendHandle) Wait() error {
	select {
	case <-h.done:
		return h.err
	case <-h.closed:
		select {
		case <-h.done:
			return h.err
		default:
			return ErrPeerClosed
		}
	}
}

// dialPeer connects to the rank at addr, performs the hello handshake, and
// starts the writer goroutine.
func dialPeer(ctx context.Context, self, size, rank int, addr string, cfg *Config, log logrus.FieldLogger) (*peerConn, error) {
	d := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 45 * time.Second,
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			_ = c.Control(func(fd uintptr) {
				_ = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
			})
			return ctrlErr
		},
	}

	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(45 * time.Second)
	}

	p := &peerConn{
		rank:     rank,
		addr:     addr,
		conn:     c,
		r:        bufio.NewReaderSize(c, 4<<10),
		w:        bufio.NewWriterSize(c, cfg.WriteBufSize),
		outq:     make(chan *sendHandle, cfg.SendQueue),
		closed:   make(chan struct{}),
		maxFrame: cfg.Sec.MaxFrameSize,
		readTO:   cfg.Sec.ReadTimeout,
		writeTO:  cfg.Sec.WriteTimeout,
		log:      log.WithFields(logrus.Fields{"peer": rank, "addr": addr}),
	}
	if err := p.hello(self, size, cfg.Sec.AuthToken); err != nil {
		_ = c.Close()
		return nil, err
	}
	go p.writeLoop()
	return p, nil
}

func (p *peerConn) hello(self, size int, token string) error {
	msg := &msgHello{base: base{T: ftHello}, From: self, Size: size, Token: token}
	raw, err := cborEnc.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.writeFrame(raw); err != nil {
		return err
	}

	respRaw, err := p.readFrame()
	if err != nil {
		return err
	}

	var b base
	if err := cborDec.Unmarshal(respRaw, &b); err != nil {
		return err
	}
	if b.T != ftHelloResp {
		return fmt.Errorf("%w: frame type %d in place of hello ack", ErrBadPeer, b.T)
	}

	var hr msgHelloResp
	if err := cborDec.Unmarshal(respRaw, &hr); err != nil {
		return err
	}
	if !hr.OK {
		if hr.Err == "" {
			hr.Err = "rejected"
		}
		if hr.Code == rejectAuth {
			return fmt.Errorf("%w: %s", ErrUnauthorized, hr.Err)
		}
		return fmt.Errorf("%w: %s", ErrBadPeer, hr.Err)
	}
	// the connection is write-only from here on
	_ = p.conn.SetReadDeadline(time.Time{})
	return nil
}

// enqueue hands raw to the writer goroutine. It blocks only while the
// per-peer queue is full. Once a write has failed the peer is dead and every
// later frame is refused with that error.
func (p *peerConn) enqueue(raw []byte) (*sendHandle, error) {
	select {
	case <-p.closed:
		return nil, ErrPeerClosed
	default:
	}
	if err := p.stickyErr(); err != nil {
		return nil, err
	}

	h := &sendHandle{raw: raw, done: make(chan struct{}), closed: p.closed}
	select {
	case p.outq <- h:
		return h, nil
	case <-p.closed:
		return nil, ErrPeerClosed
	}
}

func (p *peerConn) writeLoop() {
	for {
		select {
		case h := <-p.outq:
			err := p.stickyErr()
			if err == nil {
				if err = p.writeFrame(h.raw); err != nil {
					p.setErr(err)
					p.log.Debugf("write failed: %v", err)
				}
			}
			h.err = err
			h.raw = nil
			close(h.done)
		case <-p.closed:
			return
		}
	}
}

func (p *peerConn) stickyErr() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *peerConn) setErr(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
}

func (p *peerConn) close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (p *peerConn) readFrame() ([]byte, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(p.readTO))
	return readFrame(p.r, p.maxFrame)
}

func (p *peerConn) writeFrame(payload []byte) error {
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTO))
	return writeFrameBuf(p.w, payload)
}

// readFrame reads one length-prefixed frame. The returned slice is freshly
// allocated.
func readFrame(r io.Reader, maxFrame int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := int(binary.BigEndian.Uint32(hdr[:]))
	if maxFrame > 0 && n > maxFrame {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrameBuf(w *bufio.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}
