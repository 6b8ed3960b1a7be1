// internal/sched/timerqueue.go

package sched

import "container/heap"

type timerEntry struct {
	when int64  // monotonic ns
	seq  uint64 // insertion order, breaks ties between equal wake times
	slot uint32 // arena slot of the sleeping task
}

// timerHeap implements heap.Interface. Every time an entry lands on a new
// position, onMove is told about it; a popped entry is reported at -1.
type timerHeap struct {
	entries []timerEntry
	onMove  func(slot uint32, pos int)
}

func (h *timerHeap) Len() int { return len(h.entries) }

func (h *timerHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.when != b.when {
		return a.when < b.when
	}
	return a.seq < b.seq
}

func (h *timerHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.moved(i)
	h.moved(j)
}

// Push never reallocates: callers reserve capacity first.
func (h *timerHeap) Push(x any) {
	h.entries = append(h.entries, x.(timerEntry))
	h.moved(len(h.entries) - 1)
}

func (h *timerHeap) Pop() any {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries[n-1] = timerEntry{}
	h.entries = h.entries[:n-1]
	if h.onMove != nil {
		h.onMove(e.slot, -1)
	}
	return e
}

func (h *timerHeap) moved(pos int) {
	if h.onMove != nil {
		h.onMove(h.entries[pos].slot, pos)
	}
}

// timerQueue is the minimum-wake-time queue over sleeping tasks.
type timerQueue struct {
	h     timerHeap
	limit int // 0 = unlimited
	seq   uint64
}

func newTimerQueue(capacity, limit int, onMove func(slot uint32, pos int)) *timerQueue {
	if capacity < 1 {
		capacity = 1
	}
	if limit > 0 && capacity > limit {
		capacity = limit
	}
	return &timerQueue{
		h:     timerHeap{entries: make([]timerEntry, 0, capacity), onMove: onMove},
		limit: limit,
	}
}

func (q *timerQueue) len() int { return len(q.h.entries) }

// reserve makes room for n more entries, doubling the backing array as
// needed. On failure the queue is left exactly as it was.
func (q *timerQueue) reserve(n int) error {
	need := len(q.h.entries) + n
	if q.limit > 0 && need > q.limit {
		return ErrTimerCapacity
	}
	if need <= cap(q.h.entries) {
		return nil
	}
	newCap := cap(q.h.entries) * 2
	if newCap < 8 {
		newCap = 8
	}
	for newCap < need {
		newCap *= 2
	}
	if q.limit > 0 && newCap > q.limit {
		newCap = q.limit
	}
	grown := make([]timerEntry, len(q.h.entries), newCap)
	copy(grown, q.h.entries)
	q.h.entries = grown
	return nil
}

// insert adds slot with the given wake time and returns its sequence number.
func (q *timerQueue) insert(slot uint32, when int64) (uint64, error) {
	if err := q.reserve(1); err != nil {
		return 0, err
	}
	q.seq++
	heap.Push(&q.h, timerEntry{when: when, seq: q.seq, slot: slot})
	return q.seq, nil
}

func (q *timerQueue) peekMin() (timerEntry, bool) {
	if len(q.h.entries) == 0 {
		return timerEntry{}, false
	}
	return q.h.entries[0], true
}

func (q *timerQueue) popMin() (timerEntry, bool) {
	if len(q.h.entries) == 0 {
		return timerEntry{}, false
	}
	return heap.Pop(&q.h).(timerEntry), true
}

// remove takes out the entry at pos and restores heap order around the
// element that replaced it.
func (q *timerQueue) remove(pos int) (timerEntry, error) {
	if pos < 0 || pos >= len(q.h.entries) {
		return timerEntry{}, ErrInvalidArgument
	}
	return heap.Remove(&q.h, pos).(timerEntry), nil
}
