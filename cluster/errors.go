package cluster

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	ErrTimeout       = errors.New("timeout")
	ErrClosed        = errors.New("cluster closed")
	ErrBadPeer       = errors.New("bad peer response")
	ErrPeerClosed    = errors.New("peer closed")
	ErrBadConfig     = errors.New("invalid cluster config")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotConnected  = errors.New("peer not connected")
	ErrFrameTooLarge = errors.New("frame too large")
)

// isFatalTransport reports whether an error indicates a broken or unusable
// connection rather than a slow one.
func isFatalTransport(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) {
		return false
	}

	if errors.Is(err, ErrPeerClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	return false
}
