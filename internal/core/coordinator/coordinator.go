// Package coordinator orders competing reactive combat modules within a tick.
package coordinator

import (
	"container/heap"
	"sync"
	"time"
)

// ModuleKind identifies a reactive combat module.
type ModuleKind string

const (
	ModuleEscape   ModuleKind = "escape"
	ModuleShield   ModuleKind = "shield"
	ModulePressure ModuleKind = "pressure"
)

var baselines = map[ModuleKind]int{
	ModuleEscape:   100,
	ModuleShield:   80,
	ModulePressure: 50,
}

// Baseline returns the base priority of a module kind. Unknown kinds get 0.
func Baseline(kind ModuleKind) int {
	return baselines[kind]
}

// Execution is one queued module call.
type Execution struct {
	Kind      ModuleKind `json:"kind"`
	Action    string     `json:"action"`
	Priority  int        `json:"priority"`
	Timestamp time.Time  `json:"timestamp"`
	Executed  bool       `json:"executed"`

	seq uint64
}

type execHeap []*Execution

func (h execHeap) Len() int { return len(h) }

func (h execHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h execHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *execHeap) Push(x any) { *h = append(*h, x.(*Execution)) }

func (h *execHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

const defaultCapacity = 32

// Coordinator is a bounded priority queue of module executions.
// Callers bound the enqueue rate; entries that never win are simply evicted.
type Coordinator struct {
	mu       sync.Mutex
	items    execHeap
	seq      uint64
	capacity int
	last     *Execution
	now      func() time.Time
}

// New creates a Coordinator holding at most capacity entries.
func New(capacity int) *Coordinator {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Coordinator{capacity: capacity, now: time.Now}
}

// QueueExecution inserts an execution at baseline(kind)+bonus. When full, the
// lowest-ranked entry is evicted if the new one outranks it; otherwise the
// new entry is rejected and false is returned.
func (c *Coordinator) QueueExecution(kind ModuleKind, action string, bonus int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	e := &Execution{
		Kind:      kind,
		Action:    action,
		Priority:  Baseline(kind) + bonus,
		Timestamp: c.now(),
		seq:       c.seq,
	}

	if len(c.items) >= c.capacity {
		worst := c.worstIndex()
		// Equal priority loses: the newcomer would sort after it anyway.
		if e.Priority <= c.items[worst].Priority {
			return false
		}
		heap.Remove(&c.items, worst)
	}
	heap.Push(&c.items, e)
	return true
}

// worstIndex finds the entry that would pop last. Must hold mu.
func (c *Coordinator) worstIndex() int {
	worst := 0
	for i := 1; i < len(c.items); i++ {
		if c.items.Less(worst, i) {
			worst = i
		}
	}
	return worst
}

// PeekNext returns the highest-ranked execution without removing it.
func (c *Coordinator) PeekNext() (Execution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return Execution{}, false
	}
	return *c.items[0], true
}

// MarkExecuted pops the highest-ranked execution and records it as the last one.
func (c *Coordinator) MarkExecuted() (Execution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return Execution{}, false
	}
	e := heap.Pop(&c.items).(*Execution)
	e.Executed = true
	c.last = e
	return *e, true
}

// LastExecution returns the most recently executed entry.
func (c *Coordinator) LastExecution() (Execution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return Execution{}, false
	}
	return *c.last, true
}

// Len returns the number of pending executions.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Reset drops all pending executions. The last execution is kept.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
}
