// Package sim provides simulated task bodies: each command kind advances one
// work unit per completion check.
package sim

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/roea-ai/botmind/internal/core/execution"
	"github.com/roea-ai/botmind/pkg/types"
)

// Body is the running state of one simulated task.
type Body struct {
	TaskID    string
	Kind      types.CommandKind
	Units     int
	Done      int
	Paused    bool
	Failure   string
	StartedAt time.Time
	Data      map[string]string
}

// Strategy plans the work for one command kind.
type Strategy interface {
	// Plan returns how many work units the task needs.
	Plan(t *types.Task) (int, error)
}

// Stepper is implemented by strategies that act on every unit. An error
// fails the body.
type Stepper interface {
	Step(t *types.Task, b *Body) (advance bool, err error)
}

// Canceller is implemented by strategies holding resources for a body.
type Canceller interface {
	Cancel(t *types.Task, b *Body)
}

// Executor runs simulated task bodies.
type Executor struct {
	strategies map[types.CommandKind]Strategy
	logger     *log.Logger

	bodiesMu sync.Mutex
	bodies   map[string]*Body
}

var _ execution.Backend = (*Executor)(nil)

// NewExecutor creates an Executor with the given strategies.
func NewExecutor(strategies map[types.CommandKind]Strategy, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{
		strategies: strategies,
		logger:     logger,
		bodies:     make(map[string]*Body),
	}
}

// Name returns the executor name.
func (e *Executor) Name() string {
	return "sim"
}

// CanExecute checks if a strategy exists for the task's kind.
func (e *Executor) CanExecute(t *types.Task) bool {
	_, ok := e.strategies[t.Kind]
	return ok
}

// Execute plans the task and registers its body. Progress recorded in
// PauseData by an earlier run is carried over.
func (e *Executor) Execute(t *types.Task) error {
	strategy, ok := e.strategies[t.Kind]
	if !ok {
		return fmt.Errorf("no strategy for %s", t.Kind)
	}
	units, err := strategy.Plan(t)
	if err != nil {
		return fmt.Errorf("failed to plan %s: %w", t.Kind, err)
	}

	b := &Body{
		TaskID:    t.ID,
		Kind:      t.Kind,
		Units:     units,
		StartedAt: time.Now(),
		Data:      make(map[string]string),
	}
	if done, err := strconv.Atoi(t.PauseData["done"]); err == nil && done < units {
		b.Done = done
	}

	e.bodiesMu.Lock()
	e.bodies[t.ID] = b
	e.bodiesMu.Unlock()

	e.logger.Printf("sim: started %s %s (%d units)", t.Kind, t.ID, units)
	return nil
}

// IsComplete advances the body by one unit and reports whether it is done.
func (e *Executor) IsComplete(t *types.Task) bool {
	e.bodiesMu.Lock()
	defer e.bodiesMu.Unlock()

	b, ok := e.bodies[t.ID]
	if !ok || b.Paused || b.Failure != "" {
		return false
	}

	if stepper, ok := e.strategies[t.Kind].(Stepper); ok {
		advance, err := stepper.Step(t, b)
		if err != nil {
			b.Failure = err.Error()
			return false
		}
		if !advance {
			return false
		}
	}

	b.Done++
	if b.Done < b.Units {
		return false
	}
	delete(e.bodies, t.ID)
	return true
}

// Failure reports a failed body.
func (e *Executor) Failure(t *types.Task) (string, bool) {
	e.bodiesMu.Lock()
	defer e.bodiesMu.Unlock()

	b, ok := e.bodies[t.ID]
	if !ok || b.Failure == "" {
		return "", false
	}
	delete(e.bodies, t.ID)
	return b.Failure, true
}

// Pause suspends the body and records its progress in the task.
func (e *Executor) Pause(t *types.Task) error {
	e.bodiesMu.Lock()
	defer e.bodiesMu.Unlock()

	b, ok := e.bodies[t.ID]
	if !ok {
		return fmt.Errorf("no body for %s", t.ID)
	}
	b.Paused = true
	t.PauseData = map[string]string{
		"done":  strconv.Itoa(b.Done),
		"units": strconv.Itoa(b.Units),
	}
	return nil
}

// Resume continues a paused body.
func (e *Executor) Resume(t *types.Task) error {
	e.bodiesMu.Lock()
	defer e.bodiesMu.Unlock()

	b, ok := e.bodies[t.ID]
	if !ok {
		return fmt.Errorf("no body for %s", t.ID)
	}
	b.Paused = false
	return nil
}

// Cancel drops the body.
func (e *Executor) Cancel(t *types.Task) error {
	e.bodiesMu.Lock()
	b, ok := e.bodies[t.ID]
	delete(e.bodies, t.ID)
	e.bodiesMu.Unlock()

	if !ok {
		return nil
	}
	if c, ok := e.strategies[t.Kind].(Canceller); ok {
		c.Cancel(t, b)
	}
	return nil
}

// Progress returns done and total units for a running body.
func (e *Executor) Progress(taskID string) (done, units int, ok bool) {
	e.bodiesMu.Lock()
	defer e.bodiesMu.Unlock()

	b, ok := e.bodies[taskID]
	if !ok {
		return 0, 0, false
	}
	return b.Done, b.Units, true
}
