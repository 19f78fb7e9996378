package treewalk

// ringState is one rank's view of the Dijkstra–Misra–Bringhurst ring.
//
// color turns Black when the rank hands work to a lower rank (a peer the
// token may already have passed). token is the color of the token while it
// is held here, noToken otherwise. first is only meaningful on rank 0: the
// token it holds at start has not been around the ring yet and proves
// nothing about the other ranks.
type ringState struct {
	color Color
	token Color
	first bool
}

type ringAction struct {
	forward  Color // token color to send to the next rank, noToken for none
	shutdown bool  // rank 0 only: broadcast shutdown and finish
}

// advance is the detector's step for an idle rank. It is a pure function of
// the state and whether this is rank 0.
func advance(s ringState, root bool) (ringState, ringAction) {
	var act ringAction
	if s.token == noToken {
		return s, act
	}

	if root {
		if s.token == White && s.color == White {
			if s.first {
				s.first = false
			} else {
				act.shutdown = true
			}
		}
		// a new circuit always starts white
		s.color = White
		if !act.shutdown {
			act.forward = White
		}
	} else {
		act.forward = s.token
		if s.color == Black {
			act.forward = Black
			s.color = White
		}
	}
	s.token = noToken
	return s, act
}

// checkTermination runs the detector on an idle rank with no request
// outstanding, and performs whatever sends the step calls for.
func (w *Walker[R]) checkTermination() error {
	if w.size == 1 {
		w.finished = true
		return nil
	}

	next, act := advance(w.ring, w.rank == 0)
	w.ring = next

	if act.shutdown {
		for dest := 1; dest < w.size; dest++ {
			if _, err := w.send(dest, &MsgShutdown{}); err != nil {
				return err
			}
		}
		w.finished = true
		w.log.Debug("ring idle twice in a row; shutdown sent")
	}

	if act.forward != noToken {
		if _, err := w.send(w.next, &MsgToken{Color: act.forward}); err != nil {
			return err
		}
		w.stats.TokensForwarded++
	}
	return nil
}
