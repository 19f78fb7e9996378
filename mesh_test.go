package treewalk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMeshFIFOPerPair(t *testing.T) {
	m := NewMesh(2)
	a, b := m.Endpoint(0), m.Endpoint(1)

	for i := 0; i < 100; i++ {
		if _, err := a.Send(1, TagToken, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 100; i++ {
		if !b.Probe() {
			t.Fatalf("probe false at %d", i)
		}
		env, err := b.Recv()
		if err != nil {
			t.Fatal(err)
		}
		if env.Source != 0 || env.Tag != TagToken || env.Payload[0] != byte(i) {
			t.Fatalf("message %d: got %+v", i, env)
		}
	}
	if b.Probe() {
		t.Fatalf("probe true on empty mailbox")
	}
}

func TestMeshSendCopiesPayload(t *testing.T) {
	m := NewMesh(2)
	buf := []byte{1, 2, 3}
	if _, err := m.Endpoint(0).Send(1, TagShutdown, buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 9
	env, _ := m.Endpoint(1).Recv()
	if env.Payload[0] != 1 {
		t.Fatalf("payload aliased sender buffer")
	}
}

func TestMeshSendBadRank(t *testing.T) {
	m := NewMesh(2)
	if _, err := m.Endpoint(0).Send(2, TagToken, nil); !errors.Is(err, ErrBadRank) {
		t.Fatalf("want ErrBadRank, got %v", err)
	}
}

func TestMeshRecvBlocksUntilSend(t *testing.T) {
	m := NewMesh(2)
	got := make(chan Envelope, 1)
	go func() {
		env, err := m.Endpoint(1).Recv()
		if err == nil {
			got <- env
		}
	}()
	time.Sleep(10 * time.Millisecond)
	select {
	case <-got:
		t.Fatalf("recv returned before send")
	default:
	}
	if _, err := m.Endpoint(0).Send(1, TagWorkRequest, nil); err != nil {
		t.Fatal(err)
	}
	select {
	case env := <-got:
		if env.Tag != TagWorkRequest {
			t.Fatalf("tag %s", env.Tag)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("recv never woke")
	}
}

func TestMeshCloseWakesRecv(t *testing.T) {
	m := NewMesh(1)
	done := make(chan error, 1)
	go func() {
		_, err := m.Endpoint(0).Recv()
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	m.Close()
	m.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrMeshClosed) {
			t.Fatalf("want ErrMeshClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("recv not woken by close")
	}
	if _, err := m.Endpoint(0).Send(0, TagToken, nil); !errors.Is(err, ErrMeshClosed) {
		t.Fatalf("send after close: %v", err)
	}
}

func TestMeshGather(t *testing.T) {
	const n = 5
	m := NewMesh(n)
	var wg sync.WaitGroup
	var rootOut [][]byte
	errs := make([]error, n)
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			out, err := m.Endpoint(r).Gather(context.Background(), 0, []byte(fmt.Sprintf("r%d", r)))
			errs[r] = err
			if r == 0 {
				rootOut = out
			} else if out != nil {
				errs[r] = fmt.Errorf("non-root got %v", out)
			}
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", r, err)
		}
	}
	for r, p := range rootOut {
		if string(p) != fmt.Sprintf("r%d", r) {
			t.Fatalf("slot %d = %q", r, p)
		}
	}
}

func TestMeshGatherRootHonorsContext(t *testing.T) {
	m := NewMesh(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Endpoint(0).Gather(ctx, 0, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestMeshGatherTwice(t *testing.T) {
	m := NewMesh(2)
	if _, err := m.Endpoint(1).Gather(context.Background(), 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Endpoint(1).Gather(context.Background(), 0, nil); !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("want ErrUnexpectedMessage, got %v", err)
	}
}
