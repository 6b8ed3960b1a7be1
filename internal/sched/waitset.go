// internal/sched/waitset.go

package sched

import "github.com/emirpasic/gods/trees/redblacktree"

// waitSet holds the tasks parked in WaitingEvent, keyed by id.
type waitSet struct {
	tree *redblacktree.Tree
}

func newWaitSet() *waitSet {
	return &waitSet{tree: redblacktree.NewWith(cmpTaskID)}
}

func (w *waitSet) add(id TaskID) { w.tree.Put(id, struct{}{}) }

func (w *waitSet) has(id TaskID) bool {
	_, ok := w.tree.Get(id)
	return ok
}

func (w *waitSet) remove(id TaskID) { w.tree.Remove(id) }

func (w *waitSet) len() int { return w.tree.Size() }

// cmpTaskID implements the gods comparator for TaskID keys.
func cmpTaskID(a, b any) int {
	ka, kb := a.(TaskID), b.(TaskID)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}
