package task

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/roea-ai/botmind/pkg/types"
)

type fakeExecutor struct {
	mu         sync.Mutex
	executed   []string
	done       map[string]bool
	failures   map[string]string
	executeErr error
	kindErrs   map[types.CommandKind]error
	pauseErr   error
	cancelled  []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{done: map[string]bool{}, failures: map[string]string{}}
}

func (f *fakeExecutor) Execute(task *types.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.executeErr != nil {
		return f.executeErr
	}
	if err := f.kindErrs[task.Kind]; err != nil {
		return err
	}
	f.executed = append(f.executed, task.ID)
	return nil
}

func (f *fakeExecutor) IsComplete(task *types.Task) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done[task.ID]
}

func (f *fakeExecutor) Failure(task *types.Task) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.failures[task.ID]
	return reason, ok
}

func (f *fakeExecutor) Pause(task *types.Task) error {
	if f.pauseErr != nil {
		return f.pauseErr
	}
	task.PauseData = map[string]string{"progress": "3"}
	return nil
}

func (f *fakeExecutor) Resume(task *types.Task) error { return nil }

func (f *fakeExecutor) Cancel(task *types.Task) error {
	f.cancelled = append(f.cancelled, task.ID)
	return nil
}

func (f *fakeExecutor) finish(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[id] = true
}

type recordingLock struct {
	locked  []string
	unlocks int
	holding bool
}

func (l *recordingLock) LockTask(task *types.Task, owner string) {
	l.locked = append(l.locked, owner)
	l.holding = true
}

func (l *recordingLock) UnlockTask() {
	l.unlocks++
	l.holding = false
}

type recordingFeedback struct {
	outcomes map[string][]bool
}

func (r *recordingFeedback) Record(behavior string, success bool) {
	if r.outcomes == nil {
		r.outcomes = map[string][]bool{}
	}
	r.outcomes[behavior] = append(r.outcomes[behavior], success)
}

func newTestManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Bot == "" {
		opts.Bot = "alex"
	}
	return NewManager(opts)
}

func mine() types.ParsedCommand {
	return types.ParsedCommand{Kind: types.CommandMine, Parameters: map[string]string{"target": "iron_ore"}}
}

func TestManager_AtMostOneCurrentTask(t *testing.T) {
	m := newTestManager(Options{})
	exec := newFakeExecutor()

	a := m.QueueCommand(mine(), "steve")
	b := m.QueueCommand(mine(), "steve")

	m.Tick(exec)
	m.Tick(exec)
	m.Tick(exec)

	if cur := m.CurrentTask(); cur == nil || cur.ID != a.ID {
		t.Fatalf("current = %v, want %s", cur, a.ID)
	}
	if len(exec.executed) != 1 {
		t.Fatalf("executed %d tasks, want 1", len(exec.executed))
	}
	if m.QueueSize() != 1 {
		t.Fatalf("QueueSize = %d, want 1", m.QueueSize())
	}

	exec.finish(a.ID)
	m.Tick(exec)

	if cur := m.CurrentTask(); cur == nil || cur.ID != b.ID {
		t.Fatalf("current after completion = %v, want %s", cur, b.ID)
	}
	done := m.CompletedTasks()
	if len(done) != 1 || done[0].Status != types.TaskCompleted {
		t.Fatalf("completed = %+v", done)
	}
	if done[0].StartedAt == nil || done[0].CompletedAt == nil {
		t.Fatal("expected start and completion timestamps")
	}
}

func TestManager_CriticalJumpsAheadOfQueue(t *testing.T) {
	m := newTestManager(Options{})
	exec := newFakeExecutor()

	m.QueueCommand(mine(), "steve")
	m.QueueCommand(types.ParsedCommand{Kind: types.CommandExplore}, "steve")
	attack := m.QueueCommand(types.ParsedCommand{Kind: types.CommandAttack}, "steve")

	m.Tick(exec)
	if cur := m.CurrentTask(); cur == nil || cur.ID != attack.ID {
		t.Fatalf("current = %v, want attack", cur)
	}
	if cur := m.CurrentTask(); cur.Priority != types.PriorityCritical {
		t.Fatalf("priority = %v, want critical", cur.Priority)
	}
}

func TestManager_PauseResumeScenario(t *testing.T) {
	lock := &recordingLock{}
	m := newTestManager(Options{Lock: lock})
	exec := newFakeExecutor()

	task := m.QueueCommand(mine(), "steve")
	m.Tick(exec)

	if !lock.holding || lock.locked[0] != "steve" {
		t.Fatalf("expected lock held by steve, got %+v", lock)
	}

	if !m.PauseCurrentTask() {
		t.Fatal("pause returned false")
	}
	cur := m.CurrentTask()
	if cur.Status != types.TaskPaused || cur.PauseData["progress"] != "3" {
		t.Fatalf("after pause = %+v", cur)
	}
	if m.PauseCurrentTask() {
		t.Fatal("second pause should be a no-op")
	}

	// A paused task is not checked for completion.
	exec.finish(task.ID)
	m.Tick(exec)
	if cur := m.CurrentTask(); cur == nil || cur.Status != types.TaskPaused {
		t.Fatalf("paused task advanced: %+v", cur)
	}

	if !m.ResumeCurrentTask() {
		t.Fatal("resume returned false")
	}
	if m.ResumeCurrentTask() {
		t.Fatal("second resume should be a no-op")
	}
	m.Tick(exec)

	if cur := m.CurrentTask(); cur != nil {
		t.Fatalf("expected no current task, got %+v", cur)
	}
	if lock.holding || lock.unlocks != 1 {
		t.Fatalf("expected lock released once, got %+v", lock)
	}
	got, ok := m.LookupTask(task.ID)
	if !ok || got.Status != types.TaskCompleted {
		t.Fatalf("lookup = %+v", got)
	}
}

func TestManager_PauseErrorLeavesTaskExecuting(t *testing.T) {
	m := newTestManager(Options{})
	exec := newFakeExecutor()
	exec.pauseErr = errors.New("pathfinder busy")

	m.QueueCommand(mine(), "steve")
	m.Tick(exec)

	if m.PauseCurrentTask() {
		t.Fatal("pause should fail")
	}
	if cur := m.CurrentTask(); cur.Status != types.TaskExecuting {
		t.Fatalf("status = %s, want executing", cur.Status)
	}
}

func TestManager_ExecuteErrorRequeuesInPlace(t *testing.T) {
	lock := &recordingLock{}
	m := newTestManager(Options{Lock: lock})
	exec := newFakeExecutor()
	exec.executeErr = errors.New("no pickaxe")

	a := m.QueueCommand(mine(), "steve")
	m.QueueCommand(mine(), "steve")
	m.Tick(exec)

	if cur := m.CurrentTask(); cur != nil {
		t.Fatalf("expected no current task, got %+v", cur)
	}
	queued := m.QueuedTasks()
	if len(queued) != 2 || queued[0].ID != a.ID || queued[0].Status != types.TaskQueued {
		t.Fatalf("queue = %v", ids(queued))
	}
	if lock.holding {
		t.Fatal("lock should be released after failed start")
	}

	exec.executeErr = nil
	m.Tick(exec)
	if cur := m.CurrentTask(); cur == nil || cur.ID != a.ID {
		t.Fatalf("current = %v, want %s", cur, a.ID)
	}
}

func TestManager_BrokenTaskFailsAfterStartAttempts(t *testing.T) {
	lock := &recordingLock{}
	fb := &recordingFeedback{}
	m := newTestManager(Options{Lock: lock, Feedback: fb})
	exec := newFakeExecutor()
	exec.kindErrs = map[types.CommandKind]error{types.CommandBuild: errors.New("build needs a target")}

	build := m.QueueCommand(types.ParsedCommand{Kind: types.CommandBuild}, "steve")
	next := m.QueueCommand(mine(), "steve")

	for i := 0; i < defaultStartAttempts-1; i++ {
		m.Tick(exec)
		if m.CurrentTask() != nil || m.QueueSize() != 2 {
			t.Fatalf("tick %d: current=%v queue=%d", i, m.CurrentTask(), m.QueueSize())
		}
	}
	queued := m.QueuedTasks()
	if queued[0].ID != build.ID || queued[0].StartAttempts != defaultStartAttempts-1 {
		t.Fatalf("broken task lost its place: %+v", queued[0])
	}

	m.Tick(exec)
	got, _ := m.LookupTask(build.ID)
	if got.Status != types.TaskFailed || got.FailureReason != "failed to start: build needs a target" {
		t.Fatalf("broken task = %+v", got)
	}
	if lock.holding {
		t.Fatal("lock held after failed start")
	}
	if outcomes := fb.outcomes[string(types.CommandBuild)]; len(outcomes) != 1 || outcomes[0] {
		t.Fatalf("feedback = %v", fb.outcomes)
	}

	m.Tick(exec)
	cur := m.CurrentTask()
	if cur == nil || cur.ID != next.ID || cur.Status != types.TaskExecuting {
		t.Fatalf("current = %+v, want %s executing", cur, next.ID)
	}
	if len(exec.executed) != 1 || exec.executed[0] != next.ID {
		t.Fatalf("executed = %v", exec.executed)
	}
}

func TestManager_ExecutorPanicIsContained(t *testing.T) {
	m := newTestManager(Options{})
	m.QueueCommand(mine(), "steve")

	m.Tick(panicExecutor{})

	if cur := m.CurrentTask(); cur != nil {
		t.Fatalf("expected no current task, got %+v", cur)
	}
	if m.QueueSize() != 1 {
		t.Fatalf("QueueSize = %d, want 1", m.QueueSize())
	}
}

type panicExecutor struct{}

func (panicExecutor) Execute(*types.Task) error   { panic("boom") }
func (panicExecutor) IsComplete(*types.Task) bool { return false }
func (panicExecutor) Pause(*types.Task) error     { return nil }
func (panicExecutor) Resume(*types.Task) error    { return nil }
func (panicExecutor) Cancel(*types.Task) error    { return nil }

func TestManager_FailureAndFeedback(t *testing.T) {
	fb := &recordingFeedback{}
	m := newTestManager(Options{Feedback: fb})
	exec := newFakeExecutor()

	a := m.QueueCommand(mine(), "steve")
	m.Tick(exec)
	exec.failures[a.ID] = "lava"
	m.Tick(exec)

	got, ok := m.LookupTask(a.ID)
	if !ok || got.Status != types.TaskFailed || got.FailureReason != "lava" {
		t.Fatalf("lookup = %+v", got)
	}

	b := m.QueueCommand(mine(), "steve")
	m.Tick(exec)
	exec.finish(b.ID)
	m.Tick(exec)

	outcomes := fb.outcomes[string(types.CommandMine)]
	if len(outcomes) != 2 || outcomes[0] || !outcomes[1] {
		t.Fatalf("feedback = %v, want [false true]", outcomes)
	}
}

func TestManager_CancelAndFail(t *testing.T) {
	fb := &recordingFeedback{}
	m := newTestManager(Options{Feedback: fb})
	exec := newFakeExecutor()

	if m.CancelCurrentTask("nothing") {
		t.Fatal("cancel without current task should be a no-op")
	}

	a := m.QueueCommand(mine(), "steve")
	m.Tick(exec)
	m.PauseCurrentTask()
	if !m.CancelCurrentTask("owner changed plans") {
		t.Fatal("cancel returned false")
	}
	if len(exec.cancelled) != 1 || exec.cancelled[0] != a.ID {
		t.Fatalf("executor cancel calls = %v", exec.cancelled)
	}
	got, _ := m.LookupTask(a.ID)
	if got.Status != types.TaskCancelled || got.FailureReason != "owner changed plans" {
		t.Fatalf("after cancel = %+v", got)
	}
	if len(fb.outcomes) != 0 {
		t.Fatalf("cancel should not report feedback: %v", fb.outcomes)
	}
	history := len(m.CompletedTasks())
	if m.CancelCurrentTask("again") {
		t.Fatal("second cancel should be a no-op")
	}
	if m.CurrentTask() != nil || len(m.CompletedTasks()) != history || len(exec.cancelled) != 1 {
		t.Fatalf("second cancel changed state: history=%d cancels=%v", len(m.CompletedTasks()), exec.cancelled)
	}
	got, _ = m.LookupTask(a.ID)
	if got.FailureReason != "owner changed plans" {
		t.Fatalf("second cancel rewrote the reason: %+v", got)
	}

	b := m.QueueCommand(mine(), "steve")
	m.Tick(exec)
	if m.FailCurrentTask("other-id", "x") {
		t.Fatal("fail with mismatched id should be a no-op")
	}
	if !m.FailCurrentTask(b.ID, "worker crashed") {
		t.Fatal("fail returned false")
	}
	got, _ = m.LookupTask(b.ID)
	if got.Status != types.TaskFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestManager_RemoveAndClear(t *testing.T) {
	m := newTestManager(Options{})
	exec := newFakeExecutor()

	cur := m.QueueCommand(mine(), "steve")
	m.Tick(exec)
	a := m.QueueCommand(mine(), "steve")
	m.QueueCommand(mine(), "steve")
	m.QueueCommand(mine(), "steve")

	if m.RemoveTask(cur.ID) {
		t.Fatal("RemoveTask must not touch the current task")
	}
	if !m.RemoveTask(a.ID) {
		t.Fatal("RemoveTask returned false")
	}
	got, _ := m.LookupTask(a.ID)
	if got.Status != types.TaskCancelled {
		t.Fatalf("removed task status = %s", got.Status)
	}
	if n := m.ClearQueue(); n != 2 {
		t.Fatalf("ClearQueue = %d, want 2", n)
	}
	if m.QueueSize() != 0 {
		t.Fatalf("QueueSize = %d", m.QueueSize())
	}
	if c := m.CurrentTask(); c == nil || c.ID != cur.ID {
		t.Fatal("ClearQueue must not touch the current task")
	}
}

func TestManager_HistoryIsBounded(t *testing.T) {
	m := newTestManager(Options{HistoryLimit: 3})
	exec := newFakeExecutor()

	var first string
	for i := 0; i < 5; i++ {
		task := m.QueueCommand(mine(), "steve")
		if i == 0 {
			first = task.ID
		}
		m.Tick(exec)
		exec.finish(task.ID)
		m.Tick(exec)
	}

	if n := len(m.CompletedTasks()); n != 3 {
		t.Fatalf("history size = %d, want 3", n)
	}
	if _, ok := m.LookupTask(first); ok {
		t.Fatal("oldest task should have been evicted")
	}
}

func TestManager_EnqueueTaskDefaults(t *testing.T) {
	m := newTestManager(Options{})

	if err := m.EnqueueTask(nil); err == nil {
		t.Fatal("expected error for nil task")
	}
	task := &types.Task{ID: "sub-1", Kind: types.CommandGather, Status: types.TaskCompleted}
	if err := m.EnqueueTask(task); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	if err := m.EnqueueTask(task); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("duplicate enqueue err = %v", err)
	}

	got, ok := m.LookupTask("sub-1")
	if !ok {
		t.Fatal("expected queued task")
	}
	if got.Status != types.TaskQueued || got.Priority != types.PriorityNormal || got.CreatedAt.IsZero() {
		t.Fatalf("enqueued task = %+v", got)
	}
	if task.Status != types.TaskCompleted {
		t.Fatal("EnqueueTask must not mutate the caller's task")
	}

	m.Tick(newFakeExecutor())
	if cur := m.CurrentTask(); cur == nil || cur.ID != "sub-1" {
		t.Fatalf("current = %+v", cur)
	}
	if err := m.EnqueueTask(task); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("enqueue of the executing task's ID: err = %v", err)
	}
	if m.QueueSize() != 0 {
		t.Fatalf("queue size = %d, want 0", m.QueueSize())
	}
}

func TestManager_PauseCountTracksEveryPause(t *testing.T) {
	m := newTestManager(Options{})
	exec := newFakeExecutor()
	m.QueueCommand(mine(), "steve")
	m.Tick(exec)

	m.PauseCurrentTask()
	m.PauseCurrentTask() // already paused: no-op
	m.ResumeCurrentTask()
	m.PauseCurrentTask()

	if cur := m.CurrentTask(); cur.PauseCount != 2 || cur.Status != types.TaskPaused {
		t.Fatalf("current = %+v, want 2 pauses", cur)
	}
}
