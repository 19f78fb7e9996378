package cluster

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func TestFramePoolClass(t *testing.T) {
	fp := newFramePool(6, 8) // 64, 128, 256
	cases := map[int]int{0: 0, 1: 0, 64: 0, 65: 1, 128: 1, 129: 2, 256: 2, 257: -1}
	for n, want := range cases {
		if got := fp.class(n); got != want {
			t.Fatalf("class(%d)=%d want %d", n, got, want)
		}
	}
}

func TestFramePoolGetPut(t *testing.T) {
	fp := newFramePool(6, 7)

	b := fp.get(50)
	if len(b) != 50 || cap(b) != 64 {
		t.Fatalf("unexpected buf: len=%d cap=%d", len(b), cap(b))
	}
	fp.put(b)

	big := fp.get(300)
	if len(big) != 300 || cap(big) != 300 {
		t.Fatalf("unexpected big buf: len=%d cap=%d", len(big), cap(big))
	}
	// neither an oversized nor an odd capacity may be filed under a class
	fp.put(big)
	fp.put(make([]byte, 10, 96))
	if c := fp.get(100); cap(c) != 128 {
		t.Fatalf("class 128 handed out cap=%d", cap(c))
	}
}

func TestFramePoolRead(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeFrameBuf(w, bytes.Repeat([]byte{7}, 100)); err != nil {
		t.Fatal(err)
	}
	if err := writeFrameBuf(w, make([]byte, 1000)); err != nil {
		t.Fatal(err)
	}
	r := bytes.NewReader(buf.Bytes())

	fp := newFramePool(6, 8)
	frame, err := fp.read(r, 0)
	if err != nil || len(frame) != 100 || cap(frame) != 128 || frame[99] != 7 {
		t.Fatalf("frame 1: len=%d cap=%d err=%v", len(frame), cap(frame), err)
	}
	fp.put(frame)

	frame, err = fp.read(r, 0)
	if err != nil || len(frame) != 1000 {
		t.Fatalf("frame 2: len=%d err=%v", len(frame), err)
	}

	if _, err := fp.read(bytes.NewReader(buf.Bytes()), 99); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("want ErrFrameTooLarge, got %v", err)
	}
}
