// Package execution routes task bodies to the backend that can run them.
package execution

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/pkg/types"
)

// Backend is an execution backend for some command kinds.
type Backend interface {
	task.Executor

	// Name returns the backend name.
	Name() string

	// CanExecute checks if the backend can handle this task.
	CanExecute(t *types.Task) bool
}

// ActiveExecution describes a task body that is running on a backend.
type ActiveExecution struct {
	TaskID    string            `json:"task_id"`
	Kind      types.CommandKind `json:"kind"`
	Backend   string            `json:"backend"`
	StartedAt time.Time         `json:"started_at"`
}

type activeExecution struct {
	info    ActiveExecution
	backend Backend
}

// Router implements the executor contract by delegating each task to the
// first registered backend that accepts it.
type Router struct {
	backendsMu sync.RWMutex
	backends   []Backend

	activeMu sync.RWMutex
	active   map[string]*activeExecution
}

var (
	_ task.Executor        = (*Router)(nil)
	_ task.FailureReporter = (*Router)(nil)
)

// NewRouter creates a new Router.
func NewRouter(backends ...Backend) *Router {
	r := &Router{active: make(map[string]*activeExecution)}
	for _, b := range backends {
		r.RegisterBackend(b)
	}
	return r
}

// RegisterBackend adds a backend. Earlier backends take precedence.
func (r *Router) RegisterBackend(b Backend) {
	r.backendsMu.Lock()
	defer r.backendsMu.Unlock()

	r.backends = append(r.backends, b)
}

// Backends returns the registered backend names.
func (r *Router) Backends() []string {
	r.backendsMu.RLock()
	defer r.backendsMu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name())
	}
	return names
}

func (r *Router) findBackend(t *types.Task) Backend {
	r.backendsMu.RLock()
	defer r.backendsMu.RUnlock()

	for _, b := range r.backends {
		if b.CanExecute(t) {
			return b
		}
	}
	return nil
}

func (r *Router) lookup(taskID string) (Backend, bool) {
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()

	a, ok := r.active[taskID]
	if !ok {
		return nil, false
	}
	return a.backend, true
}

func (r *Router) forget(taskID string) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()

	delete(r.active, taskID)
}

// Execute starts the task on a matching backend.
func (r *Router) Execute(t *types.Task) error {
	b := r.findBackend(t)
	if b == nil {
		return fmt.Errorf("no backend available for %s", t.Kind)
	}
	if err := b.Execute(t); err != nil {
		return fmt.Errorf("failed to start %s on %s: %w", t.ID, b.Name(), err)
	}

	r.activeMu.Lock()
	r.active[t.ID] = &activeExecution{
		info: ActiveExecution{
			TaskID:    t.ID,
			Kind:      t.Kind,
			Backend:   b.Name(),
			StartedAt: time.Now(),
		},
		backend: b,
	}
	r.activeMu.Unlock()
	return nil
}

// IsComplete reports whether the task's body finished.
func (r *Router) IsComplete(t *types.Task) bool {
	b, ok := r.lookup(t.ID)
	if !ok {
		return false
	}
	if b.IsComplete(t) {
		r.forget(t.ID)
		return true
	}
	return false
}

// Failure reports a failed body for backends that can detect one.
func (r *Router) Failure(t *types.Task) (string, bool) {
	b, ok := r.lookup(t.ID)
	if !ok {
		return "", false
	}
	reporter, ok := b.(task.FailureReporter)
	if !ok {
		return "", false
	}
	reason, failed := reporter.Failure(t)
	if failed {
		r.forget(t.ID)
	}
	return reason, failed
}

// Pause suspends the task's body.
func (r *Router) Pause(t *types.Task) error {
	b, ok := r.lookup(t.ID)
	if !ok {
		return fmt.Errorf("no active execution for %s", t.ID)
	}
	return b.Pause(t)
}

// Resume continues the task's body.
func (r *Router) Resume(t *types.Task) error {
	b, ok := r.lookup(t.ID)
	if !ok {
		return fmt.Errorf("no active execution for %s", t.ID)
	}
	return b.Resume(t)
}

// Cancel stops the task's body. Unknown tasks are already stopped.
func (r *Router) Cancel(t *types.Task) error {
	b, ok := r.lookup(t.ID)
	if !ok {
		return nil
	}
	defer r.forget(t.ID)
	return b.Cancel(t)
}

// ActiveExecutions lists running task bodies ordered by start time.
func (r *Router) ActiveExecutions() []ActiveExecution {
	r.activeMu.RLock()
	out := make([]ActiveExecution, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, a.info)
	}
	r.activeMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
