package treewalk

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// askForWork sends a work request to a uniformly random peer. At most one
// request is outstanding per rank so two idle ranks cannot bounce a backlog
// back and forth.
func (w *Walker[R]) askForWork() error {
	target := w.rng.IntN(w.size - 1)
	if target >= w.rank {
		target++
	}

	p, err := w.send(target, &MsgWorkRequest{})
	if err != nil {
		return err
	}
	w.pending = p
	w.requesting = true
	w.stats.RequestsSent++
	return nil
}

// answerRequest gives src a random share of the local queue, taken from the
// oldest end. A rank with one item or fewer answers "no work".
func (w *Walker[R]) answerRequest(src int) error {
	n := w.queue.len()
	if n <= 1 {
		_, err := w.send(src, &MsgWorkReply{NoWork: true})
		return err
	}

	k := 1 + w.rng.IntN(n-1)
	items := w.queue.split(k)
	if _, err := w.send(src, &MsgWorkReply{Items: items}); err != nil {
		return err
	}
	w.stats.ItemsGiven += uint64(k)

	// work moved against ring order: the token may already have passed src
	if src < w.rank {
		w.ring.color = Black
	}

	w.log.WithFields(logrus.Fields{"peer": src, "items": k, "kept": n - k}).Trace("gave work")
	return nil
}

// takeReply consumes the answer to our outstanding request.
func (w *Walker[R]) takeReply(src int, m *MsgWorkReply) error {
	if !w.requesting {
		return newWalkError("work-reply", w.rank,
			fmt.Errorf("%w: reply from rank %d with no request outstanding", ErrUnexpectedMessage, src))
	}

	// the request was sent before its reply could exist; this only releases
	// the send buffer and never waits on the peer
	if w.pending != nil {
		if err := w.pending.Wait(); err != nil {
			return newWalkError("send work-request", w.rank, err)
		}
	}

	if m.NoWork {
		w.stats.RepliesEmpty++
	} else {
		w.queue.push(m.Items...)
		w.stats.ItemsReceived += uint64(len(m.Items))
	}
	w.pending = nil
	w.requesting = false
	return nil
}

func errDuplicateToken(src int) error {
	return fmt.Errorf("%w: second token from rank %d", ErrUnexpectedMessage, src)
}

func errShutdownAtRoot(src int) error {
	return fmt.Errorf("%w: shutdown from rank %d", ErrUnexpectedMessage, src)
}
