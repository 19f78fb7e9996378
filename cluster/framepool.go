package cluster

import (
	"encoding/binary"
	"io"
	"math/bits"
	"sync"
)

// framePool recycles inbound frame buffers. Buffers come in power-of-two
// capacities from 1<<minShift to 1<<maxShift; a frame above the largest
// class gets an exact allocation that is never pooled.
type framePool struct {
	minShift int
	maxShift int
	classes  []sync.Pool
}

// inboundFrames serves every inbound connection: 1 KiB up to 256 KiB. Walk
// messages are small; only large work replies and gathered results reach
// the upper classes.
var inboundFrames = newFramePool(10, 18)

func newFramePool(minShift, maxShift int) *framePool {
	fp := &framePool{
		minShift: minShift,
		maxShift: maxShift,
		classes:  make([]sync.Pool, maxShift-minShift+1),
	}
	for i := range fp.classes {
		size := 1 << (minShift + i)
		fp.classes[i].New = func() any { return make([]byte, size) }
	}
	return fp
}

// class returns the index of the smallest class holding n bytes, or -1 when
// n exceeds the largest one.
func (fp *framePool) class(n int) int {
	shift := fp.minShift
	if n > 1<<fp.minShift {
		shift = bits.Len(uint(n - 1))
	}
	if shift > fp.maxShift {
		return -1
	}
	return shift - fp.minShift
}

func (fp *framePool) get(n int) []byte {
	if i := fp.class(n); i >= 0 {
		return fp.classes[i].Get().([]byte)[:n]
	}
	return make([]byte, n)
}

// put takes back a buffer handed out by get. Capacities that are not one of
// the classes are left to the garbage collector.
func (fp *framePool) put(b []byte) {
	c := cap(b)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	shift := bits.TrailingZeros(uint(c))
	if shift < fp.minShift || shift > fp.maxShift {
		return
	}
	fp.classes[shift-fp.minShift].Put(b[:c])
}

// read reads one length-prefixed frame into a pooled buffer. The caller
// owns the frame until it hands it back with put.
func (fp *framePool) read(r io.Reader, maxFrame int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := int(binary.BigEndian.Uint32(hdr[:]))
	if maxFrame > 0 && n > maxFrame {
		return nil, ErrFrameTooLarge
	}

	frame := fp.get(n)
	if _, err := io.ReadFull(r, frame); err != nil {
		fp.put(frame)
		return nil, err
	}
	return frame, nil
}
