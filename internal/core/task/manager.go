// Package task provides the per-bot task queue and lifecycle manager.
package task

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roea-ai/botmind/pkg/types"
)

// Executor carries out tasks. The manager only does state bookkeeping;
// executors must not call back into the manager from inside these methods.
type Executor interface {
	// Execute starts the task body.
	Execute(task *types.Task) error

	// IsComplete reports whether the task body finished successfully.
	IsComplete(task *types.Task) bool

	// Pause suspends the task body. It may record resume state in task.PauseData.
	Pause(task *types.Task) error

	// Resume continues a paused task body.
	Resume(task *types.Task) error

	// Cancel stops the task body for good.
	Cancel(task *types.Task) error
}

// FailureReporter is implemented by executors that can report a failed body.
type FailureReporter interface {
	Failure(task *types.Task) (reason string, failed bool)
}

// Locker is the ownership lock held for the executing task's lifetime.
type Locker interface {
	LockTask(task *types.Task, owner string)
	UnlockTask()
}

// FeedbackSink receives task outcomes keyed by command kind.
type FeedbackSink interface {
	Record(behavior string, success bool)
}

// Archiver receives terminal tasks for persistence.
type Archiver interface {
	Archive(world, bot string, task *types.Task)
}

// Publisher broadcasts scheduler events.
type Publisher interface {
	Publish(event *types.Event)
}

// ErrDuplicateTask is returned when a task ID is already queued.
var ErrDuplicateTask = errors.New("task already queued")

const (
	defaultHistoryLimit  = 100
	defaultStartAttempts = 3
)

// Options configures a Manager.
type Options struct {
	World         string
	Bot           string
	HistoryLimit  int
	StartAttempts int // Failed Execute calls before the task is marked FAILED
	Lock          Locker
	Feedback      FeedbackSink
	Archive       Archiver
	Events        Publisher
	Logger        *log.Logger
	Now           func() time.Time
}

// Manager owns one bot's queue and its single current task.
type Manager struct {
	world string
	bot   string

	queue *Queue

	mu         sync.Mutex
	current    *types.Task
	currentSeq uint64
	running    Executor // executor that started the current task

	history      map[string]*types.Task
	historyOrder []string
	historyLimit int
	maxAttempts  int

	lock     Locker
	feedback FeedbackSink
	archive  Archiver
	events   Publisher
	logger   *log.Logger
	now      func() time.Time
}

// NewManager creates a new task Manager.
func NewManager(opts Options) *Manager {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.StartAttempts <= 0 {
		opts.StartAttempts = defaultStartAttempts
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		world:        opts.World,
		bot:          opts.Bot,
		queue:        NewQueue(),
		history:      make(map[string]*types.Task),
		historyLimit: opts.HistoryLimit,
		maxAttempts:  opts.StartAttempts,
		lock:         opts.Lock,
		feedback:     opts.Feedback,
		archive:      opts.Archive,
		events:       opts.Events,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// QueueTask creates a task from a parsed command and appends it to the queue.
func (m *Manager) QueueTask(cmd types.ParsedCommand, priority types.TaskPriority, issuedBy string) *types.Task {
	t := &types.Task{
		ID:         uuid.NewString(),
		Kind:       cmd.Kind,
		Priority:   priority,
		Parameters: copyParams(cmd.Parameters),
		Status:     types.TaskQueued,
		IssuedBy:   issuedBy,
		CreatedAt:  m.now(),
	}
	m.queue.Push(t)
	m.publish(types.EventTaskQueued, t, "", "")
	return t.Clone()
}

// QueueCommand queues a command at the priority its kind maps to.
func (m *Manager) QueueCommand(cmd types.ParsedCommand, issuedBy string) *types.Task {
	return m.QueueTask(cmd, PriorityFor(cmd.Kind), issuedBy)
}

// EnqueueTask accepts a pre-built task, typically a delegated subtask.
// Safe to call from any goroutine.
func (m *Manager) EnqueueTask(task *types.Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	t := task.Clone()
	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if m.isLive(t.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	if t.Priority == 0 {
		t.Priority = PriorityFor(t.Kind)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	t.Status = types.TaskQueued
	t.StartedAt = nil
	t.CompletedAt = nil
	t.FailureReason = ""
	t.StartAttempts = 0

	m.queue.Push(t)
	m.publish(types.EventTaskQueued, t, "", "")
	return nil
}

// isLive reports whether id is the current task or already queued.
func (m *Manager) isLive(id string) bool {
	m.mu.Lock()
	cur := m.current != nil && m.current.ID == id
	m.mu.Unlock()
	if cur {
		return true
	}
	_, ok := m.queue.Find(id)
	return ok
}

// Tick advances the lifecycle by one step: finish the current task if its
// body is done, then start the next queued task if the bot is free.
func (m *Manager) Tick(exec Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkCurrentLocked()
	if m.current == nil && exec != nil {
		m.startNextLocked(exec)
	}
}

func (m *Manager) checkCurrentLocked() {
	t := m.current
	if t == nil || t.Status != types.TaskExecuting || m.running == nil {
		return
	}

	if reporter, ok := m.running.(FailureReporter); ok {
		var reason string
		var failed bool
		err := guard("failure check", func() error {
			reason, failed = reporter.Failure(t)
			return nil
		})
		if err != nil {
			m.logger.Printf("[%s] task %s: %v", m.bot, t.ID, err)
			return
		}
		if failed {
			m.finishLocked(types.TaskFailed, reason)
			return
		}
	}

	var done bool
	if err := guard("completion check", func() error {
		done = m.running.IsComplete(t)
		return nil
	}); err != nil {
		m.logger.Printf("[%s] task %s: %v", m.bot, t.ID, err)
		return
	}
	if done {
		m.finishLocked(types.TaskCompleted, "")
	}
}

func (m *Manager) startNextLocked(exec Executor) {
	t, seq, ok := m.queue.pop()
	if !ok {
		return
	}

	now := m.now()
	t.Status = types.TaskExecuting
	t.StartedAt = &now
	m.current = t
	m.currentSeq = seq
	if m.lock != nil {
		m.lock.LockTask(t, t.IssuedBy)
	}

	if err := guard("execute", func() error { return exec.Execute(t) }); err != nil {
		t.StartAttempts++
		m.logger.Printf("[%s] failed to start task %s (%s), attempt %d/%d: %v",
			m.bot, t.ID, t.Kind, t.StartAttempts, m.maxAttempts, err)
		t.Status = types.TaskQueued
		t.StartedAt = nil
		if t.StartAttempts >= m.maxAttempts {
			// The body never started, so there is nothing to cancel.
			m.finishLocked(types.TaskFailed, fmt.Sprintf("failed to start: %v", err))
			return
		}
		// Leave the bot as it was before this tick; the task keeps its place.
		if m.lock != nil {
			m.lock.UnlockTask()
		}
		m.current = nil
		m.currentSeq = 0
		m.queue.pushWithSeq(t, seq)
		return
	}

	m.running = exec
	m.publish(types.EventTaskStarted, t, string(types.TaskQueued), "")
}

// finishLocked moves the current task into history with a terminal status.
func (m *Manager) finishLocked(status types.TaskStatus, reason string) {
	t := m.current
	old := t.Status
	now := m.now()
	t.Status = status
	t.CompletedAt = &now
	if reason != "" {
		t.FailureReason = reason
	}

	m.current = nil
	m.currentSeq = 0
	m.running = nil
	if m.lock != nil {
		m.lock.UnlockTask()
	}
	m.archiveLocked(t)

	if status == types.TaskCompleted || status == types.TaskFailed {
		m.recordFeedback(string(t.Kind), status == types.TaskCompleted)
	}
	m.publish(eventFor(status), t, string(old), reason)
}

func (m *Manager) archiveLocked(t *types.Task) {
	if _, exists := m.history[t.ID]; !exists {
		m.historyOrder = append(m.historyOrder, t.ID)
	}
	m.history[t.ID] = t
	for len(m.historyOrder) > m.historyLimit {
		oldest := m.historyOrder[0]
		m.historyOrder = m.historyOrder[1:]
		delete(m.history, oldest)
	}
	if m.archive != nil {
		m.archive.Archive(m.world, m.bot, t.Clone())
	}
}

func (m *Manager) recordFeedback(behavior string, success bool) {
	if m.feedback == nil {
		return
	}
	if err := guard("feedback", func() error {
		m.feedback.Record(behavior, success)
		return nil
	}); err != nil {
		m.logger.Printf("[%s] %v", m.bot, err)
	}
}

// PauseCurrentTask suspends the executing task. No-op unless one is executing.
func (m *Manager) PauseCurrentTask() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.current
	if t == nil || t.Status != types.TaskExecuting {
		return false
	}
	if m.running != nil {
		if err := guard("pause", func() error { return m.running.Pause(t) }); err != nil {
			m.logger.Printf("[%s] failed to pause task %s: %v", m.bot, t.ID, err)
			return false
		}
	}
	t.Status = types.TaskPaused
	t.PauseCount++
	m.publish(types.EventTaskPaused, t, string(types.TaskExecuting), "")
	return true
}

// ResumeCurrentTask continues a paused task. No-op unless one is paused.
func (m *Manager) ResumeCurrentTask() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.current
	if t == nil || t.Status != types.TaskPaused {
		return false
	}
	if m.running != nil {
		if err := guard("resume", func() error { return m.running.Resume(t) }); err != nil {
			m.logger.Printf("[%s] failed to resume task %s: %v", m.bot, t.ID, err)
			return false
		}
	}
	t.Status = types.TaskExecuting
	t.PauseData = nil
	m.publish(types.EventTaskResumed, t, string(types.TaskPaused), "")
	return true
}

// CancelCurrentTask force-terminates the current task. No-op without one.
func (m *Manager) CancelCurrentTask(reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.current
	if t == nil {
		return false
	}
	if m.running != nil {
		if err := guard("cancel", func() error { return m.running.Cancel(t) }); err != nil {
			m.logger.Printf("[%s] executor cancel for task %s: %v", m.bot, t.ID, err)
		}
	}
	if reason == "" {
		reason = "cancelled"
	}
	m.finishLocked(types.TaskCancelled, reason)
	return true
}

// FailCurrentTask marks the current task FAILED. Used by executor error paths
// that run outside the tick.
func (m *Manager) FailCurrentTask(taskID, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.current
	if t == nil || (taskID != "" && t.ID != taskID) {
		return false
	}
	m.finishLocked(types.TaskFailed, reason)
	return true
}

// RemoveTask cancels a queued task that has not started.
func (m *Manager) RemoveTask(id string) bool {
	t, ok := m.queue.Remove(id)
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	t.Status = types.TaskCancelled
	t.CompletedAt = &now
	t.FailureReason = "removed from queue"
	m.archiveLocked(t)
	m.publish(types.EventTaskCancelled, t, string(types.TaskQueued), t.FailureReason)
	return true
}

// ClearQueue drops every queued task and returns how many were dropped.
func (m *Manager) ClearQueue() int {
	dropped := m.queue.Clear()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, t := range dropped {
		t.Status = types.TaskCancelled
		t.CompletedAt = &now
		t.FailureReason = "queue cleared"
		m.archiveLocked(t)
		m.publish(types.EventTaskCancelled, t, string(types.TaskQueued), t.FailureReason)
	}
	return len(dropped)
}

// CurrentTask returns a copy of the current task, or nil.
func (m *Manager) CurrentTask() *types.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current.Clone()
}

// QueueSize returns the number of queued tasks.
func (m *Manager) QueueSize() int {
	return m.queue.Len()
}

// QueuedTasks returns the queued tasks in start order.
func (m *Manager) QueuedTasks() []*types.Task {
	return m.queue.Snapshot()
}

// CompletedTasks returns the terminal history in completion order.
func (m *Manager) CompletedTasks() []*types.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*types.Task, 0, len(m.historyOrder))
	for _, id := range m.historyOrder {
		out = append(out, m.history[id].Clone())
	}
	return out
}

// LookupTask finds a task in the current slot, the queue or the history, in
// that order, so a re-queued task shadows its earlier terminal record.
func (m *Manager) LookupTask(id string) (*types.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.ID == id {
		return m.current.Clone(), true
	}
	if t, ok := m.queue.Find(id); ok {
		return t, true
	}
	if t, ok := m.history[id]; ok {
		return t.Clone(), true
	}
	return nil, false
}

func (m *Manager) publish(eventType types.EventType, t *types.Task, oldStatus, message string) {
	if m.events == nil {
		return
	}
	m.events.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		World:     m.world,
		Bot:       m.bot,
		TaskID:    t.ID,
		JobID:     t.JobID,
		OldStatus: oldStatus,
		NewStatus: string(t.Status),
		Message:   message,
		Timestamp: m.now(),
	})
}

func eventFor(status types.TaskStatus) types.EventType {
	switch status {
	case types.TaskCompleted:
		return types.EventTaskCompleted
	case types.TaskFailed:
		return types.EventTaskFailed
	default:
		return types.EventTaskCancelled
	}
}

// guard runs fn and converts a panic into an error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return fn()
}

func copyParams(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
