// Package decision implements the per-bot mode arbitration state machine.
package decision

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roea-ai/botmind/internal/core/coordinator"
	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/pkg/types"
)

// Sampler reads the environment once per tick.
type Sampler interface {
	Sample() types.Signals
}

// Behavior is a passive mode's per-tick body.
type Behavior interface {
	Name() string
	Tick(sig types.Signals) bool
}

// CombatModule carries out one reactive module action.
type CombatModule interface {
	Execute(action string, sig types.Signals) bool
}

// Recorder receives one record per tick.
type Recorder interface {
	Write(rec types.DecisionRecord) error
}

// Tasks is the slice of the task manager the engine drives.
type Tasks interface {
	Tick(exec task.Executor)
	CurrentTask() *types.Task
	PauseCurrentTask() bool
	ResumeCurrentTask() bool
}

// Flags mirrors which module group is enabled.
type Flags struct {
	Combat   bool `json:"combat"`
	Builder  bool `json:"builder"`
	Gatherer bool `json:"gatherer"`
	Stasis   bool `json:"stasis"`
}

// Config wires an Engine to its collaborators.
type Config struct {
	World       string
	Bot         string
	Sampler     Sampler
	Tasks       Tasks
	Executor    task.Executor
	Coordinator *coordinator.Coordinator
	Behaviors   map[types.Mode]Behavior
	Modules     map[coordinator.ModuleKind]CombatModule
	Feedback    task.FeedbackSink
	Recorder    Recorder
	Events      task.Publisher
	Logger      *log.Logger
	Now         func() time.Time
}

// Engine arbitrates between combat and the passive modes every tick.
type Engine struct {
	cfg Config

	mu          sync.Mutex
	mode        types.Mode
	lastPassive types.Mode
	flags       Flags
	autoPaused  *types.Task // snapshot of the task combat paused, nil if none
	ticks       uint64
	last        types.DecisionRecord
}

// NewEngine creates an Engine in stasis mode.
func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Coordinator == nil {
		cfg.Coordinator = coordinator.New(0)
	}
	return &Engine{
		cfg:         cfg,
		mode:        types.ModeStasis,
		lastPassive: types.ModeNone,
		flags:       Flags{Stasis: true},
	}
}

// Tick samples the environment, arbitrates the mode and runs one dispatch.
func (e *Engine) Tick() types.DecisionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks++
	var sig types.Signals
	if e.cfg.Sampler != nil {
		sig = e.cfg.Sampler.Sample()
	}

	rec := types.DecisionRecord{Tick: e.ticks, Bot: e.cfg.Bot}

	if !sig.HasActiveSubject {
		if e.mode != types.ModeStasis {
			e.leaveCombatLocked()
			e.setPassiveLocked(types.ModeStasis, "no active subject")
		}
		rec.Forced = true
		rec.Behavior, rec.Success = e.runBehaviorLocked(types.ModeStasis, sig)
		return e.finishLocked(rec)
	}

	switch {
	case sig.ThreatActive && e.mode != types.ModeCombat:
		e.enterCombatLocked()
	case !sig.ThreatActive && e.mode == types.ModeCombat:
		restore := e.lastPassive
		if restore == types.ModeNone {
			restore = types.ModeStasis
		}
		e.leaveCombatLocked()
		e.setPassiveLocked(restore, "threat cleared")
	}

	if e.mode == types.ModeCombat {
		rec.Behavior, rec.Success = e.combatTickLocked(sig)
	} else {
		if e.cfg.Tasks != nil {
			e.cfg.Tasks.Tick(e.cfg.Executor)
		}
		rec.Behavior, rec.Success = e.runBehaviorLocked(e.mode, sig)
	}
	return e.finishLocked(rec)
}

func (e *Engine) finishLocked(rec types.DecisionRecord) types.DecisionRecord {
	rec.Mode = e.mode
	rec.LastPassiveMode = e.lastPassive
	rec.Timestamp = e.cfg.Now()
	e.last = rec

	if rec.Behavior != "" {
		e.report(rec.Behavior, rec.Success)
	}
	if e.cfg.Recorder != nil {
		if err := e.cfg.Recorder.Write(rec); err != nil {
			e.cfg.Logger.Printf("[%s] failed to record decision: %v", e.cfg.Bot, err)
		}
	}
	return rec
}

func (e *Engine) enterCombatLocked() {
	old := e.mode
	e.lastPassive = old
	e.mode = types.ModeCombat
	e.flags = Flags{Combat: true}
	e.cfg.Coordinator.Reset()

	if e.cfg.Tasks != nil {
		if cur := e.cfg.Tasks.CurrentTask(); cur != nil && cur.Status == types.TaskExecuting {
			if e.cfg.Tasks.PauseCurrentTask() {
				e.autoPaused = e.cfg.Tasks.CurrentTask()
			}
		}
	}
	e.cfg.Logger.Printf("[%s] mode %s -> combat (saved %s)", e.cfg.Bot, old, e.lastPassive)
	e.publishMode(old, types.ModeCombat, "threat detected")
}

// leaveCombatLocked resumes whatever combat paused. Mode is set by the caller.
func (e *Engine) leaveCombatLocked() {
	if e.mode != types.ModeCombat {
		return
	}
	e.cfg.Coordinator.Reset()
	if e.autoPaused != nil && e.cfg.Tasks != nil && e.stillOwnPause(e.cfg.Tasks.CurrentTask()) {
		e.cfg.Tasks.ResumeCurrentTask()
	}
	e.autoPaused = nil
}

// stillOwnPause reports whether cur is the task combat paused, untouched
// since. A resume by someone else changes Status; pausing again bumps
// PauseCount.
func (e *Engine) stillOwnPause(cur *types.Task) bool {
	return cur != nil &&
		cur.ID == e.autoPaused.ID &&
		cur.Status == types.TaskPaused &&
		cur.PauseCount == e.autoPaused.PauseCount
}

func (e *Engine) setPassiveLocked(mode types.Mode, reason string) {
	old := e.mode
	e.mode = mode
	e.lastPassive = mode
	e.flags = Flags{
		Builder:  mode == types.ModeBuilder,
		Gatherer: mode == types.ModeGatherer,
		Stasis:   mode == types.ModeStasis,
	}
	if old != mode {
		e.cfg.Logger.Printf("[%s] mode %s -> %s (%s)", e.cfg.Bot, old, mode, reason)
		e.publishMode(old, mode, reason)
	}
}

func (e *Engine) combatTickLocked(sig types.Signals) (string, bool) {
	c := e.cfg.Coordinator
	c.Reset()

	queueReactive(c, sig)
	tactic := SelectTactic(sig)
	c.QueueExecution(coordinator.ModulePressure, tactic.Name, tactic.Bonus)

	exec, ok := c.MarkExecuted()
	if !ok {
		return "", false
	}
	module, ok := e.cfg.Modules[exec.Kind]
	if !ok {
		return exec.Action, false
	}
	success, err := safeBool(func() bool { return module.Execute(exec.Action, sig) })
	if err != nil {
		e.cfg.Logger.Printf("[%s] combat module %s/%s: %v", e.cfg.Bot, exec.Kind, exec.Action, err)
	}
	return exec.Action, success
}

func (e *Engine) runBehaviorLocked(mode types.Mode, sig types.Signals) (string, bool) {
	b, ok := e.cfg.Behaviors[mode]
	if !ok {
		return "", false
	}
	success, err := safeBool(func() bool { return b.Tick(sig) })
	if err != nil {
		e.cfg.Logger.Printf("[%s] behavior %s: %v", e.cfg.Bot, b.Name(), err)
	}
	return b.Name(), success
}

func (e *Engine) report(behavior string, success bool) {
	if e.cfg.Feedback == nil {
		return
	}
	if _, err := safeBool(func() bool {
		e.cfg.Feedback.Record(behavior, success)
		return true
	}); err != nil {
		e.cfg.Logger.Printf("[%s] feedback sink: %v", e.cfg.Bot, err)
	}
}

func (e *Engine) publishMode(old, mode types.Mode, reason string) {
	if e.cfg.Events == nil {
		return
	}
	e.cfg.Events.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      types.EventModeChanged,
		World:     e.cfg.World,
		Bot:       e.cfg.Bot,
		OldStatus: string(old),
		NewStatus: string(mode),
		Message:   reason,
		Timestamp: e.cfg.Now(),
	})
}

// EnableBuilderMode switches to builder mode.
func (e *Engine) EnableBuilderMode() { e.EnableMode(types.ModeBuilder) }

// EnableGathererMode switches to gatherer mode.
func (e *Engine) EnableGathererMode() { e.EnableMode(types.ModeGatherer) }

// EnableStasisMode switches to stasis mode.
func (e *Engine) EnableStasisMode() { e.EnableMode(types.ModeStasis) }

// EnableMode activates a passive mode and clears combat. Enabling the active
// mode again is a no-op. Combat cannot be enabled directly.
func (e *Engine) EnableMode(mode types.Mode) error {
	if !mode.IsPassive() {
		return fmt.Errorf("mode %q cannot be enabled directly", mode)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.leaveCombatLocked()
	e.setPassiveLocked(mode, "enabled")
	return nil
}

// Mode returns the active mode.
func (e *Engine) Mode() types.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// LastPassiveMode returns the mode combat will restore.
func (e *Engine) LastPassiveMode() types.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPassive
}

// Flags returns the module group flags.
func (e *Engine) Flags() Flags {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags
}

// LastDecision returns the most recent tick's record.
func (e *Engine) LastDecision() types.DecisionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Coordinator exposes the combat module queue.
func (e *Engine) Coordinator() *coordinator.Coordinator {
	return e.cfg.Coordinator
}

func safeBool(fn func() bool) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return fn(), nil
}
