package treewalk

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Hooks are the per-node extension points. OnDirectory and OnFile run on
// the rank's only goroutine and may mutate results freely; they should be
// fast, since a rank inside a hook cannot answer its peers.
type Hooks[R any] struct {
	OnDirectory func(path string, results *R)
	OnFile      func(path string, results *R)
	// OnError is called for a node abandoned because of a filesystem error.
	OnError     func(path string, err error)
	// OnFinish runs once after the loop ends and before results are
	// gathered, so callers can fold Stats into results.
	OnFinish    func(results *R, stats Stats)
}

// Walker is one rank of a distributed tree walk. Set Results (and Codec, if
// the default CBOR encoding does not fit R) before calling Execute.
//
// A Walker is single-use.
type Walker[R any] struct {
	Results R
	Codec   Codec[R]

	cfg   Config
	tr    Transport
	fs    FS
	hooks Hooks[R]
	log   logrus.FieldLogger
	rng   *rand.Rand

	rank int
	size int
	next int

	queue      workQueue
	ring       ringState
	requesting bool
	pending    Pending
	inflight   []inflight
	finished   bool
	executed   bool
	stats      Stats
}

// inflight is a send whose delivery has not been confirmed yet.
type inflight struct {
	dest int
	tag  Tag
	p    Pending
}

// New constructs a walker for the rank tr represents.
func New[R any](cfg Config, tr Transport, fs FS, hooks Hooks[R]) *Walker[R] {
	cfg.FillDefaults()

	w := &Walker[R]{
		cfg:   cfg,
		tr:    tr,
		fs:    fs,
		hooks: hooks,
	}
	if tr != nil {
		w.rank = tr.Rank()
		w.size = tr.Size()
		if w.size > 0 {
			w.next = (w.rank + 1) % w.size
		}
	}
	w.log = cfg.Logger.WithField("rank", w.rank)

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	w.rng = rand.New(rand.NewPCG(seed, uint64(w.rank)+0x9e3779b97f4a7c15))
	return w
}

// Rank returns the walker's rank.
func (w *Walker[R]) Rank() int { return w.rank }

// Stats returns the rank-local counters.
func (w *Walker[R]) Stats() Stats { return w.stats }

// Execute walks the tree rooted at root. Only rank 0's root is used; other
// ranks may pass anything. Rank 0 returns every rank's results ordered by
// rank; other ranks return nil once their part is done.
//
// ctx bounds the final gather only. Once started, the walk itself runs until
// the fleet agrees it is complete.
func (w *Walker[R]) Execute(ctx context.Context, root string) ([]R, error) {
	if w.executed {
		return nil, ErrAlreadyExecuted
	}
	w.executed = true

	if w.tr == nil {
		return nil, ErrNoTransport
	}
	if w.fs == nil {
		return nil, ErrNoFS
	}

	if w.rank == 0 {
		if root == "" {
			return nil, ErrEmptyRoot
		}
		w.queue.push(WorkItem{Path: root, Kind: KindDirectory})
		w.ring = ringState{color: White, token: White, first: true}
	} else {
		w.ring = ringState{color: White, token: noToken}
	}

	start := time.Now()
	for !w.finished {
		if err := w.step(); err != nil {
			return nil, err
		}
	}
	if err := w.flush(); err != nil {
		return nil, err
	}
	w.log.WithFields(logrus.Fields{
		"dirs":    w.stats.Dirs,
		"files":   w.stats.Files,
		"errors":  w.stats.Errors,
		"elapsed": time.Since(start),
	}).Debug("walk finished")

	if w.hooks.OnFinish != nil {
		w.hooks.OnFinish(&w.Results, w.stats)
	}
	return w.gather(ctx)
}

// step runs one iteration of the rank's loop, then checks the sends it has
// in flight. A send that failed is fatal: the items, token or shutdown it
// carried would otherwise be lost and the ring could never finish.
func (w *Walker[R]) step() error {
	if err := w.iterate(); err != nil {
		return err
	}
	return w.reap()
}

// iterate drains every pending message, then either processes one node or,
// when idle, advances termination detection and asks a peer for work.
func (w *Walker[R]) iterate() error {
	drained, err := w.drain()
	if err != nil {
		return err
	}
	if w.finished {
		return nil
	}

	if w.queue.len() > 0 {
		w.processNode()
		return nil
	}

	// The token is held while our own request is unanswered: a reply may be
	// carrying work, and it must land before the token moves past us.
	if !w.requesting {
		if err := w.checkTermination(); err != nil {
			return err
		}
		if w.finished {
			return nil
		}
		if w.size > 1 {
			if err := w.askForWork(); err != nil {
				return err
			}
			return nil
		}
	}

	if drained == 0 {
		w.idle()
	}
	return nil
}

// drain receives and dispatches every message that is ready right now.
func (w *Walker[R]) drain() (int, error) {
	n := 0
	for w.tr.Probe() {
		env, err := w.tr.Recv()
		if err != nil {
			return n, newWalkError("recv", w.rank, err)
		}
		n++
		if err := w.dispatch(env); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (w *Walker[R]) dispatch(env Envelope) error {
	msg, err := decodeMessage(env)
	if err != nil {
		return newWalkError("decode", w.rank, err)
	}

	switch m := msg.(type) {
	case *MsgWorkRequest:
		return w.answerRequest(env.Source)
	case *MsgWorkReply:
		return w.takeReply(env.Source, m)
	case *MsgToken:
		if w.ring.token != noToken {
			return newWalkError("token", w.rank, errDuplicateToken(env.Source))
		}
		w.ring.token = m.Color
	case *MsgShutdown:
		if w.rank == 0 {
			return newWalkError("shutdown", w.rank, errShutdownAtRoot(env.Source))
		}
		w.finished = true
	}
	return nil
}

// processNode pops one item, resolves its kind if needed, expands it when
// it is a directory, and runs the matching hook. Filesystem errors abandon
// the node without failing the run.
func (w *Walker[R]) processNode() {
	it := w.queue.pop()

	if it.Kind == KindUnknown {
		w.stats.Lstats++
		isDir, err := w.fs.Lstat(it.Path)
		if err != nil {
			w.nodeFailed(it.Path, err)
			return
		}
		if isDir {
			it.Kind = KindDirectory
		} else {
			it.Kind = KindRegular
		}
	}

	if it.Kind != KindDirectory {
		w.stats.Files++
		if w.hooks.OnFile != nil {
			w.hooks.OnFile(it.Path, &w.Results)
		}
		return
	}

	entries, err := w.fs.ReadDir(it.Path)
	if err != nil {
		w.nodeFailed(it.Path, err)
		return
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." || e.Name == "" {
			continue
		}
		w.queue.push(WorkItem{Path: filepath.Join(it.Path, e.Name), Kind: e.Kind})
	}
	w.stats.Dirs++
	if w.hooks.OnDirectory != nil {
		w.hooks.OnDirectory(it.Path, &w.Results)
	}
}

func (w *Walker[R]) nodeFailed(path string, err error) {
	w.stats.Errors++
	w.log.WithField("path", path).Warnf("cannot access: %v", err)
	if w.hooks.OnError != nil {
		w.hooks.OnError(path, err)
	}
}

func (w *Walker[R]) send(dest int, msg any) (Pending, error) {
	tag, raw, err := encodeMessage(msg)
	if err != nil {
		return nil, newWalkError("encode", w.rank, err)
	}
	p, err := w.tr.Send(dest, tag, raw)
	if err != nil {
		return nil, newWalkError("send "+tag.String(), w.rank, err)
	}
	w.inflight = append(w.inflight, inflight{dest: dest, tag: tag, p: p})
	return p, nil
}

// reap forgets completed sends and reports the first one that failed.
func (w *Walker[R]) reap() error {
	keep := w.inflight[:0]
	for _, s := range w.inflight {
		done, err := s.p.Test()
		if !done {
			keep = append(keep, s)
			continue
		}
		if err != nil {
			return w.sendFailed(s, err)
		}
	}
	for i := len(keep); i < len(w.inflight); i++ {
		w.inflight[i] = inflight{}
	}
	w.inflight = keep
	return nil
}

// flush waits for every send still in flight once the loop has ended.
func (w *Walker[R]) flush() error {
	for _, s := range w.inflight {
		if err := s.p.Wait(); err != nil {
			return w.sendFailed(s, err)
		}
	}
	w.inflight = nil
	return nil
}

func (w *Walker[R]) sendFailed(s inflight, err error) error {
	return newWalkError("send "+s.tag.String(), w.rank, fmt.Errorf("to rank %d: %w", s.dest, err))
}

func (w *Walker[R]) idle() {
	if w.cfg.IdleBackoff > 0 {
		time.Sleep(w.cfg.IdleBackoff)
		return
	}
	runtime.Gosched()
}

// gather ships Results to rank 0 and, on rank 0, decodes everyone's.
func (w *Walker[R]) gather(ctx context.Context) ([]R, error) {
	codec := w.Codec
	if codec == nil {
		codec = CBORCodec[R]{}
	}

	raw, err := codec.Encode(w.Results)
	if err != nil {
		return nil, newWalkError("encode results", w.rank, err)
	}

	parts, err := w.tr.Gather(ctx, 0, raw)
	if err != nil {
		return nil, newWalkError("gather", w.rank, err)
	}
	if w.rank != 0 {
		return nil, nil
	}

	out := make([]R, len(parts))
	for i, p := range parts {
		v, err := codec.Decode(p)
		if err != nil {
			return nil, newWalkError("decode results", i, err)
		}
		out[i] = v
	}
	return out, nil
}
