// Package agent provides bot instances, the per-world bot registry and the
// tick runner.
package agent

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/internal/core/lock"
	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/pkg/types"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBotNotFound  = errors.New("bot not found")
	ErrBotExists    = errors.New("bot already registered")
)

// Scheduler is the task lifecycle surface of one bot. *task.Manager
// implements it.
type Scheduler interface {
	QueueTask(cmd types.ParsedCommand, priority types.TaskPriority, issuedBy string) *types.Task
	EnqueueTask(t *types.Task) error
	CurrentTask() *types.Task
	QueueSize() int
	QueuedTasks() []*types.Task
	CompletedTasks() []*types.Task
	LookupTask(id string) (*types.Task, bool)
	PauseCurrentTask() bool
	ResumeCurrentTask() bool
	CancelCurrentTask(reason string) bool
	FailCurrentTask(taskID, reason string) bool
	RemoveTask(id string) bool
	ClearQueue() int
}

var _ Scheduler = (*task.Manager)(nil)

// BotOptions describes a bot instance.
type BotOptions struct {
	Name   string
	Owner  string
	World  string
	Roles  []string
	Tasks  Scheduler
	Engine *decision.Engine
	Lock   *lock.Manager
	Logger *log.Logger
}

// Bot is one registered agent and its scheduler.
type Bot struct {
	name         string
	owner        string
	world        string
	roles        []string
	registeredAt time.Time
	active       atomic.Bool

	tasks  Scheduler
	engine *decision.Engine
	lock   *lock.Manager
	logger *log.Logger
}

// NewBot creates an active Bot. A nil Lock admits only the owner.
func NewBot(opts BotOptions) *Bot {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Lock == nil {
		opts.Lock = lock.NewManager(opts.Name, opts.Owner, nil, opts.Logger)
	}
	b := &Bot{
		name:         opts.Name,
		owner:        opts.Owner,
		world:        opts.World,
		roles:        append([]string(nil), opts.Roles...),
		registeredAt: time.Now(),
		tasks:        opts.Tasks,
		engine:       opts.Engine,
		lock:         opts.Lock,
		logger:       opts.Logger,
	}
	b.active.Store(true)
	return b
}

func (b *Bot) Name() string  { return b.name }
func (b *Bot) Owner() string { return b.owner }
func (b *Bot) World() string { return b.world }

// Roles returns the declared roles.
func (b *Bot) Roles() []string { return append([]string(nil), b.roles...) }

// HasRole reports whether the bot serves role. Bots without declared roles
// serve every role.
func (b *Bot) HasRole(role string) bool {
	if len(b.roles) == 0 || role == "" {
		return true
	}
	for _, r := range b.roles {
		if fold(r) == fold(role) {
			return true
		}
	}
	return false
}

func (b *Bot) Active() bool         { return b.active.Load() }
func (b *Bot) SetActive(active bool) { b.active.Store(active) }

// Tasks returns the bot's scheduler.
func (b *Bot) Tasks() Scheduler { return b.tasks }

// Engine returns the bot's decision engine, if any.
func (b *Bot) Engine() *decision.Engine { return b.engine }

// Lock returns the bot's lock manager.
func (b *Bot) Lock() *lock.Manager { return b.lock }

// Tick advances the bot's scheduler by one step.
func (b *Bot) Tick() {
	if b.engine != nil && b.Active() {
		b.engine.Tick()
	}
}

func (b *Bot) authorize(principal, command string) error {
	if !b.lock.AuthorizeCommand(principal, command) {
		return fmt.Errorf("%w: %s may not %s on %s", ErrUnauthorized, principal, command, b.name)
	}
	return nil
}

// QueueTask queues a command for principal. A zero priority uses the
// command kind's priority.
func (b *Bot) QueueTask(principal string, cmd types.ParsedCommand, priority types.TaskPriority) (*types.Task, error) {
	if err := b.authorize(principal, "queue"); err != nil {
		return nil, err
	}
	if priority == 0 {
		priority = task.PriorityFor(cmd.Kind)
	}
	return b.tasks.QueueTask(cmd, priority, principal), nil
}

// PauseCurrentTask pauses the current task. The bool is false for a no-op.
func (b *Bot) PauseCurrentTask(principal string) (bool, error) {
	if err := b.authorize(principal, "pause"); err != nil {
		return false, err
	}
	return b.tasks.PauseCurrentTask(), nil
}

// ResumeCurrentTask resumes the current task.
func (b *Bot) ResumeCurrentTask(principal string) (bool, error) {
	if err := b.authorize(principal, "resume"); err != nil {
		return false, err
	}
	return b.tasks.ResumeCurrentTask(), nil
}

// CancelCurrentTask cancels the current task.
func (b *Bot) CancelCurrentTask(principal, reason string) (bool, error) {
	if err := b.authorize(principal, "cancel"); err != nil {
		return false, err
	}
	return b.tasks.CancelCurrentTask(reason), nil
}

// RemoveTask cancels a queued task.
func (b *Bot) RemoveTask(principal, id string) (bool, error) {
	if err := b.authorize(principal, "remove"); err != nil {
		return false, err
	}
	return b.tasks.RemoveTask(id), nil
}

// ClearQueue drops all queued tasks.
func (b *Bot) ClearQueue(principal string) (int, error) {
	if err := b.authorize(principal, "clear"); err != nil {
		return 0, err
	}
	return b.tasks.ClearQueue(), nil
}

// EnableMode switches the bot's passive mode.
func (b *Bot) EnableMode(principal string, mode types.Mode) error {
	if err := b.authorize(principal, "mode"); err != nil {
		return err
	}
	if b.engine == nil {
		return fmt.Errorf("bot %s has no decision engine", b.name)
	}
	return b.engine.EnableMode(mode)
}

// ForceUnlock clears the task lock. Primary owner only.
func (b *Bot) ForceUnlock(principal string) error {
	if !b.lock.ForceUnlock(principal) {
		return fmt.Errorf("%w: only %s may force-unlock %s", ErrUnauthorized, b.owner, b.name)
	}
	return nil
}

// Info returns a snapshot of the bot.
func (b *Bot) Info() types.BotInfo {
	info := types.BotInfo{
		Name:         b.name,
		Owner:        b.owner,
		World:        b.world,
		Roles:        b.Roles(),
		Active:       b.Active(),
		RegisteredAt: b.registeredAt,
		CurrentTask:  b.tasks.CurrentTask(),
		QueueSize:    b.tasks.QueueSize(),
		Mode:         types.ModeStasis,
	}
	if b.engine != nil {
		info.Mode = b.engine.Mode()
		info.LastPassiveMode = b.engine.LastPassiveMode()
	}
	if l, ok := b.lock.CurrentLock(); ok {
		info.LockOwner = l.Owner
	}
	return info
}
