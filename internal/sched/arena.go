// internal/sched/arena.go

package sched

// arena stores task records contiguously and hands out stable slot indices.
// Released slots go on a free list and are reused before the slice grows.
// Pointers returned by get are only valid until the next alloc.
type arena struct {
	tasks []Task
	gens  []uint32
	free  []uint32
	live  int
}

func (a *arena) alloc() TaskID {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.tasks))
		a.tasks = append(a.tasks, Task{})
		a.gens = append(a.gens, 0)
	}
	a.gens[slot]++
	if a.gens[slot] == 0 {
		a.gens[slot] = 1
	}
	id := makeTaskID(slot, a.gens[slot])
	a.tasks[slot] = Task{id: id, heapIndex: -1, fd: -1, used: true}
	a.live++
	return id
}

// get resolves id, returning nil for zero, stale or released handles.
func (a *arena) get(id TaskID) *Task {
	slot := id.slot()
	if id == 0 || int(slot) >= len(a.tasks) {
		return nil
	}
	t := &a.tasks[slot]
	if !t.used || t.id != id {
		return nil
	}
	return t
}

func (a *arena) at(slot uint32) *Task { return &a.tasks[slot] }

func (a *arena) release(id TaskID) {
	t := a.get(id)
	if t == nil {
		return
	}
	slot := id.slot()
	a.tasks[slot] = Task{heapIndex: -1, fd: -1}
	a.free = append(a.free, slot)
	a.live--
}

func (a *arena) len() int { return a.live }
