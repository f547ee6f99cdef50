// Package dispatch splits jobs into subtasks and delegates them across bots.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/pkg/types"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrSubtaskNotFound = errors.New("subtask not found")
	ErrWorldNotFound   = errors.New("world not loaded")
	ErrJobClosed       = errors.New("job already finished")
	ErrInvalidSubtask  = errors.New("invalid subtask")
)

// Directory is the bot lookup a dispatcher needs. *agent.Registry implements it.
type Directory interface {
	Get(name string) (*agent.Bot, bool)
	FindAvailableBotsForRole(owner, role string) []*agent.Bot
	DelegateSubtask(from, to string, t *types.Task) bool
}

var _ Directory = (*agent.Registry)(nil)

// Resolver returns the directory of a world.
type Resolver func(world string) (Directory, bool)

// JobStore persists job snapshots. Optional.
type JobStore interface {
	SaveJob(job *types.MultiTaskJob) error
}

// Options configures a Dispatcher.
type Options struct {
	Resolve Resolver
	Store   JobStore
	Events  task.Publisher
	Logger  *log.Logger
	Now     func() time.Time
}

type jobState struct {
	job        *types.MultiTaskJob
	cursor     int
	requested  types.JobStatus
	dispatched bool
}

// Dispatcher owns all jobs across worlds.
type Dispatcher struct {
	resolve Resolver
	store   JobStore
	events  task.Publisher
	logger  *log.Logger
	now     func() time.Time

	mu   sync.Mutex
	jobs map[string]*jobState
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		resolve: opts.Resolve,
		store:   opts.Store,
		events:  opts.Events,
		logger:  opts.Logger,
		now:     opts.Now,
		jobs:    make(map[string]*jobState),
	}
}

// RoleFor maps a job type to the bot role that serves it.
func RoleFor(jobType string) string {
	switch types.CommandKind(strings.ToUpper(jobType)) {
	case types.CommandMine, types.CommandGather, types.CommandFarm, types.CommandFish:
		return "gatherer"
	case types.CommandBuild, types.CommandCraft:
		return "builder"
	case types.CommandAttack, types.CommandDefend, types.CommandGuard:
		return "guard"
	}
	return ""
}

// SubtaskToTask converts a subtask into the task delegated to a bot.
func SubtaskToTask(job *types.MultiTaskJob, st types.SubTask) *types.Task {
	kind := types.CommandKind(strings.ToUpper(st.Type))
	return &types.Task{
		ID:       st.TaskID,
		Kind:     kind,
		Priority: task.PriorityFor(kind),
		Parameters: map[string]string{
			"target":     st.Target,
			"quantity":   strconv.Itoa(st.Quantity),
			"job_id":     job.JobID,
			"subtask_id": st.TaskID,
		},
		Status:   types.TaskQueued,
		IssuedBy: job.Owner,
		JobID:    job.JobID,
	}
}

// AggregateStatus derives a job's status from its subtasks.
func AggregateStatus(subtasks []types.SubTask, requested types.JobStatus, dispatched bool) types.JobStatus {
	if len(subtasks) == 0 {
		return types.JobPending
	}

	completed, failed, terminal := 0, 0, 0
	for _, st := range subtasks {
		if st.Status.IsTerminal() {
			terminal++
		}
		switch st.Status {
		case types.SubTaskCompleted:
			completed++
		case types.SubTaskFailed:
			failed++
		}
	}

	switch {
	case completed == len(subtasks):
		return types.JobCompleted
	case terminal == len(subtasks) && failed > 0:
		return types.JobFailed
	case terminal == len(subtasks):
		return types.JobCancelled
	case requested == types.JobCancelled:
		return types.JobCancelled
	case requested == types.JobPaused:
		return types.JobPaused
	case !dispatched:
		return types.JobPending
	}
	return types.JobExecuting
}

// CreateJob opens a new job owned by owner in world.
func (d *Dispatcher) CreateJob(owner, world, jobType string) (*types.MultiTaskJob, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: job needs an owner", agent.ErrUnauthorized)
	}
	if _, ok := d.directory(world); !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorldNotFound, world)
	}

	now := d.now()
	job := &types.MultiTaskJob{
		JobID:       uuid.NewString(),
		JobType:     jobType,
		World:       world,
		Owner:       owner,
		Assignments: make(map[string]*types.SubTaskAssignment),
		Status:      types.JobPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	d.mu.Lock()
	d.jobs[job.JobID] = &jobState{job: job}
	d.mu.Unlock()

	d.persist(job)
	return job.Clone(), nil
}

// AddSubtask appends a pending subtask to a job.
func (d *Dispatcher) AddSubtask(principal, jobID, subtaskType, target string, quantity int) (types.SubTask, error) {
	if subtaskType == "" {
		return types.SubTask{}, fmt.Errorf("%w: type is required", ErrInvalidSubtask)
	}
	if quantity < 0 {
		return types.SubTask{}, fmt.Errorf("%w: negative quantity", ErrInvalidSubtask)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	st, err := d.ownedLocked(principal, jobID)
	if err != nil {
		return types.SubTask{}, err
	}
	if st.job.Status.IsClosed() {
		return types.SubTask{}, fmt.Errorf("%w: %s", ErrJobClosed, jobID)
	}

	sub := types.SubTask{
		TaskID:   uuid.NewString(),
		Type:     strings.ToUpper(subtaskType),
		Target:   target,
		Quantity: quantity,
		Status:   types.SubTaskPending,
	}
	st.job.Subtasks = append(st.job.Subtasks, sub)
	d.recomputeLocked(st)
	return sub, nil
}

// DispatchSubtasks assigns every pending subtask round-robin across the
// owner's available bots. Subtasks whose delegation fails stay pending.
func (d *Dispatcher) DispatchSubtasks(principal, jobID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, err := d.ownedLocked(principal, jobID)
	if err != nil {
		return 0, err
	}
	job := st.job
	if job.Status.IsClosed() {
		return 0, fmt.Errorf("%w: %s", ErrJobClosed, jobID)
	}
	dir, ok := d.directory(job.World)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrWorldNotFound, job.World)
	}

	st.dispatched = true
	bots := dir.FindAvailableBotsForRole(job.Owner, RoleFor(job.JobType))
	if len(bots) == 0 {
		d.logger.Printf("job %s: no available bots for %s", job.JobID, job.Owner)
		d.recomputeLocked(st)
		return 0, nil
	}

	assigned := 0
	for i := range job.Subtasks {
		sub := &job.Subtasks[i]
		if sub.Status != types.SubTaskPending {
			continue
		}
		bot := bots[st.cursor%len(bots)]
		st.cursor++

		t := SubtaskToTask(job, *sub)
		if !dir.DelegateSubtask(job.Owner, bot.Name(), t) {
			d.logger.Printf("job %s: subtask %s left pending, %s rejected it", job.JobID, sub.TaskID, bot.Name())
			continue
		}
		sub.Status = types.SubTaskAssigned
		job.Assignments[sub.TaskID] = &types.SubTaskAssignment{
			SubtaskID:  sub.TaskID,
			BotName:    bot.Name(),
			TaskID:     t.ID,
			AssignedAt: d.now(),
		}
		assigned++
	}

	d.recomputeLocked(st)
	return assigned, nil
}

// Refresh pulls subtask state from the assigned bots for every open job.
func (d *Dispatcher) Refresh() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, st := range d.jobs {
		if st.job.Status.IsClosed() {
			continue
		}
		d.refreshLocked(st)
	}
}

// RefreshJob pulls subtask state for one job.
func (d *Dispatcher) RefreshJob(jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	d.refreshLocked(st)
	return nil
}

func (d *Dispatcher) refreshLocked(st *jobState) {
	job := st.job
	dir, ok := d.directory(job.World)
	if !ok {
		return
	}

	for i := range job.Subtasks {
		sub := &job.Subtasks[i]
		if sub.Status.IsTerminal() {
			continue
		}
		a, ok := job.Assignments[sub.TaskID]
		if !ok {
			continue
		}
		bot, ok := dir.Get(a.BotName)
		if !ok {
			continue
		}
		t, ok := bot.Tasks().LookupTask(a.TaskID)
		if !ok {
			continue
		}
		sub.Status = subtaskStatus(t.Status)

		if st.requested == types.JobPaused && t.Status == types.TaskExecuting {
			if cur := bot.Tasks().CurrentTask(); cur != nil && cur.ID == t.ID {
				bot.Tasks().PauseCurrentTask()
			}
		}
	}
	d.recomputeLocked(st)
}

func subtaskStatus(s types.TaskStatus) types.SubTaskStatus {
	switch s {
	case types.TaskExecuting, types.TaskPaused:
		return types.SubTaskInProgress
	case types.TaskCompleted:
		return types.SubTaskCompleted
	case types.TaskFailed:
		return types.SubTaskFailed
	case types.TaskCancelled:
		return types.SubTaskCancelled
	}
	return types.SubTaskAssigned
}

// PauseJob pauses every assigned subtask that is running.
func (d *Dispatcher) PauseJob(principal, jobID string) error {
	return d.fanOut(principal, jobID, types.JobPaused, func(bot *agent.Bot, taskID string) {
		if cur := bot.Tasks().CurrentTask(); cur != nil && cur.ID == taskID {
			bot.Tasks().PauseCurrentTask()
		}
	})
}

// ResumeJob resumes every assigned subtask that is paused.
func (d *Dispatcher) ResumeJob(principal, jobID string) error {
	return d.fanOut(principal, jobID, "", func(bot *agent.Bot, taskID string) {
		if cur := bot.Tasks().CurrentTask(); cur != nil && cur.ID == taskID {
			bot.Tasks().ResumeCurrentTask()
		}
	})
}

// CancelJob cancels every open subtask, running or queued.
func (d *Dispatcher) CancelJob(principal, jobID string) error {
	err := d.fanOut(principal, jobID, types.JobCancelled, cancelOnBot)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.jobs[jobID]
	for i := range st.job.Subtasks {
		if st.job.Subtasks[i].Status == types.SubTaskPending {
			st.job.Subtasks[i].Status = types.SubTaskCancelled
		}
	}
	d.refreshLocked(st)
	return nil
}

func cancelOnBot(bot *agent.Bot, taskID string) {
	if cur := bot.Tasks().CurrentTask(); cur != nil && cur.ID == taskID {
		bot.Tasks().CancelCurrentTask("job cancelled")
		return
	}
	bot.Tasks().RemoveTask(taskID)
}

func (d *Dispatcher) fanOut(principal, jobID string, requested types.JobStatus, apply func(*agent.Bot, string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, err := d.ownedLocked(principal, jobID)
	if err != nil {
		return err
	}
	if st.job.Status.IsClosed() {
		return fmt.Errorf("%w: %s", ErrJobClosed, jobID)
	}
	st.requested = requested

	dir, ok := d.directory(st.job.World)
	if ok {
		for _, sub := range st.job.Subtasks {
			if sub.Status.IsTerminal() {
				continue
			}
			a, assigned := st.job.Assignments[sub.TaskID]
			if !assigned {
				continue
			}
			if bot, found := dir.Get(a.BotName); found {
				apply(bot, a.TaskID)
			}
		}
	}
	d.refreshLocked(st)
	return nil
}

// RedispatchSubtask returns a subtask to pending so the next dispatch
// assigns it again. Any copy still open on a bot is cancelled first.
func (d *Dispatcher) RedispatchSubtask(principal, jobID, subtaskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, err := d.ownedLocked(principal, jobID)
	if err != nil {
		return err
	}
	job := st.job

	idx := -1
	for i := range job.Subtasks {
		if job.Subtasks[i].TaskID == subtaskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrSubtaskNotFound, subtaskID)
	}
	sub := &job.Subtasks[idx]

	if a, ok := job.Assignments[subtaskID]; ok {
		if !sub.Status.IsTerminal() {
			if dir, found := d.directory(job.World); found {
				if bot, present := dir.Get(a.BotName); present {
					cancelOnBot(bot, a.TaskID)
				}
			}
		}
		delete(job.Assignments, subtaskID)
	}
	sub.Status = types.SubTaskPending
	if st.requested == types.JobCancelled {
		st.requested = ""
	}
	d.logger.Printf("job %s: subtask %s reset to pending by %s", jobID, subtaskID, principal)
	d.recomputeLocked(st)
	return nil
}

// Job returns a snapshot of a job.
func (d *Dispatcher) Job(jobID string) (*types.MultiTaskJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return st.job.Clone(), nil
}

// Jobs returns snapshots of the jobs in world, oldest first. An empty world
// lists every job.
func (d *Dispatcher) Jobs(world string) []*types.MultiTaskJob {
	d.mu.Lock()
	out := make([]*types.MultiTaskJob, 0, len(d.jobs))
	for _, st := range d.jobs {
		if world == "" || fold(st.job.World) == fold(world) {
			out = append(out, st.job.Clone())
		}
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Restore loads finished jobs from a previous run. Open jobs are skipped
// since their tasks did not survive the restart.
func (d *Dispatcher) Restore(jobs []*types.MultiTaskJob) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, job := range jobs {
		if job == nil || !job.Status.IsClosed() {
			continue
		}
		if _, ok := d.jobs[job.JobID]; ok {
			continue
		}
		d.jobs[job.JobID] = &jobState{job: job.Clone(), requested: job.Status, dispatched: true}
		n++
	}
	return n
}

// Run refreshes every open job each interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Refresh()
		}
	}
}

func (d *Dispatcher) ownedLocked(principal, jobID string) (*jobState, error) {
	st, ok := d.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if principal == "" || fold(principal) != fold(st.job.Owner) {
		return nil, fmt.Errorf("%w: %s does not own job %s", agent.ErrUnauthorized, principal, jobID)
	}
	return st, nil
}

func (d *Dispatcher) recomputeLocked(st *jobState) {
	job := st.job
	status := AggregateStatus(job.Subtasks, st.requested, st.dispatched)
	job.UpdatedAt = d.now()
	if status == job.Status {
		return
	}
	old := job.Status
	job.Status = status
	d.logger.Printf("job %s: %s -> %s", job.JobID, old, status)
	d.persist(job)
	if d.events != nil {
		d.events.Publish(&types.Event{
			ID:        uuid.NewString(),
			Type:      types.EventJobUpdated,
			World:     job.World,
			JobID:     job.JobID,
			OldStatus: string(old),
			NewStatus: string(status),
			Timestamp: job.UpdatedAt,
		})
	}
}

func (d *Dispatcher) persist(job *types.MultiTaskJob) {
	if d.store == nil {
		return
	}
	if err := d.store.SaveJob(job.Clone()); err != nil {
		d.logger.Printf("failed to save job %s: %v", job.JobID, err)
	}
}

func (d *Dispatcher) directory(world string) (Directory, bool) {
	if d.resolve == nil {
		return nil, false
	}
	return d.resolve(world)
}

func fold(s string) string {
	return cases.Fold().String(s)
}
