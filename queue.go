package treewalk

// workQueue is a rank-local list of pending items. The tail is the active
// end: newly discovered children and stolen batches are appended there and
// pop takes from there, giving depth-first locality. Requesters are served
// from the head, which holds the oldest items.
//
// Only the owning rank's loop touches it; there is no locking.
type workQueue struct {
	items []WorkItem
}

func (q *workQueue) len() int { return len(q.items) }

// push appends items at the active end.
func (q *workQueue) push(items ...WorkItem) {
	q.items = append(q.items, items...)
}

// pop removes the most recently pushed item. Callers must check len first.
func (q *workQueue) pop() WorkItem {
	n := len(q.items) - 1
	it := q.items[n]
	q.items[n] = WorkItem{}
	q.items = q.items[:n]
	return it
}

// split removes and returns the k oldest items. The returned slice does not
// alias the queue's storage.
func (q *workQueue) split(k int) []WorkItem {
	if k <= 0 {
		return nil
	}
	if k > len(q.items) {
		k = len(q.items)
	}
	out := make([]WorkItem, k)
	copy(out, q.items[:k])

	rest := copy(q.items, q.items[k:])
	for i := rest; i < len(q.items); i++ {
		q.items[i] = WorkItem{}
	}
	q.items = q.items[:rest]
	return out
}
