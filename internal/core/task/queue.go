package task

import (
	"container/heap"
	"sync"

	"github.com/roea-ai/botmind/pkg/types"
)

// Queue is a priority-ordered holding area for tasks that have not started.
// Higher priority pops first; equal priorities pop in insertion order.
// Any goroutine may push; only the owning manager pops.
type Queue struct {
	mu    sync.Mutex
	items taskHeap
	seq   uint64
}

type queued struct {
	task *types.Task
	seq  uint64
}

type taskHeap []queued

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queued{}
	*h = old[:n-1]
	return item
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a task behind every queued task of the same priority.
func (q *Queue) Push(t *types.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	heap.Push(&q.items, queued{task: t, seq: q.seq})
}

// pushWithSeq re-inserts a task at its original position.
func (q *Queue) pushWithSeq(t *types.Task, seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.items, queued{task: t, seq: seq})
}

// Pop removes the highest-priority task.
func (q *Queue) Pop() (*types.Task, bool) {
	t, _, ok := q.pop()
	return t, ok
}

func (q *Queue) pop() (*types.Task, uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, 0, false
	}
	item := heap.Pop(&q.items).(queued)
	return item.task, item.seq, true
}

// Remove drops a queued task by ID.
func (q *Queue) Remove(id string) (*types.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.task.ID == id {
			heap.Remove(&q.items, i)
			return item.task, true
		}
	}
	return nil, false
}

// Find returns a copy of a queued task by ID.
func (q *Queue) Find(id string) (*types.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.task.ID == id {
			return item.task.Clone(), true
		}
	}
	return nil, false
}

// Clear drops every queued task and returns them.
func (q *Queue) Clear() []*types.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := make([]*types.Task, 0, len(q.items))
	for _, item := range q.items {
		dropped = append(dropped, item.task)
	}
	q.items = nil
	return dropped
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Snapshot returns copies of the queued tasks in pop order.
func (q *Queue) Snapshot() []*types.Task {
	q.mu.Lock()
	tmp := make(taskHeap, len(q.items))
	copy(tmp, q.items)
	q.mu.Unlock()

	out := make([]*types.Task, 0, len(tmp))
	for tmp.Len() > 0 {
		item := heap.Pop(&tmp).(queued)
		out = append(out, item.task.Clone())
	}
	return out
}
