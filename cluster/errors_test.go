package cluster

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsFatalTransport(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{nil, false},
		{ErrTimeout, false},
		{timeoutErr{}, false},
		{io.EOF, true},
		{fmt.Errorf("read: %w", net.ErrClosed), true},
		{ErrPeerClosed, true},
		{syscall.ECONNRESET, true},
		{syscall.EPIPE, true},
		{errors.New("something else"), false},
	}
	for _, tc := range cases {
		if got := isFatalTransport(tc.err); got != tc.fatal {
			t.Fatalf("isFatalTransport(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	for _, p := range [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{7}, 5000)} {
		if err := writeFrameBuf(w, p); err != nil {
			t.Fatal(err)
		}
	}
	r := bytes.NewReader(buf.Bytes())

	got, err := readFrame(r, 0)
	if err != nil || string(got) != "hello" {
		t.Fatalf("frame 1: %q %v", got, err)
	}
	got, err = readFrame(r, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("frame 2: %q %v", got, err)
	}
	got, err = readFrame(r, 0)
	if err != nil || len(got) != 5000 || got[4999] != 7 {
		t.Fatalf("frame 3: n=%d %v", len(got), err)
	}

	if _, err := readFrame(r, 0); !errors.Is(err, io.EOF) {
		t.Fatalf("want EOF, got %v", err)
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeFrameBuf(w, make([]byte, 100)); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	if _, err := readFrame(bytes.NewReader(raw), 99); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("readFrame: %v", err)
	}
	if _, err := inboundFrames.read(bytes.NewReader(raw), 99); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("inboundFrames.read: %v", err)
	}
}
