// internal/sched/runqueue.go

package sched

import "github.com/emirpasic/gods/lists/doublylinkedlist"

// runQueue is the FIFO of runnable task ids.
type runQueue struct {
	list *doublylinkedlist.List
}

func newRunQueue() *runQueue {
	return &runQueue{list: doublylinkedlist.New()}
}

func (q *runQueue) push(id TaskID) { q.list.Add(id) }

func (q *runQueue) pop() (TaskID, bool) {
	v, ok := q.list.Get(0)
	if !ok {
		return 0, false
	}
	q.list.Remove(0)
	return v.(TaskID), true
}

// remove drops id from anywhere in the queue. Only cancellation needs it.
func (q *runQueue) remove(id TaskID) bool {
	i := q.list.IndexOf(id)
	if i < 0 {
		return false
	}
	q.list.Remove(i)
	return true
}

func (q *runQueue) len() int { return q.list.Size() }
