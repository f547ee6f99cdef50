package agent

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/pkg/types"
)

func fold(name string) string {
	return cases.Fold().String(name)
}

// Registry is the directory of live bots in one world. It is safe for
// concurrent use from any bot's tick.
type Registry struct {
	world  string
	runner *Runner
	events task.Publisher
	logger *log.Logger

	mu   sync.RWMutex
	bots map[string]*Bot
}

// NewRegistry creates an empty Registry. runner and events may be nil.
func NewRegistry(world string, runner *Runner, events task.Publisher, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		world:  world,
		runner: runner,
		events: events,
		logger: logger,
		bots:   make(map[string]*Bot),
	}
}

// World returns the world name.
func (r *Registry) World() string {
	return r.world
}

// RegisterBot adds a bot and starts ticking it if a runner is attached.
func (r *Registry) RegisterBot(b *Bot) error {
	key := fold(b.Name())

	r.mu.Lock()
	if _, exists := r.bots[key]; exists {
		r.mu.Unlock()
		return ErrBotExists
	}
	r.bots[key] = b
	r.mu.Unlock()

	if r.runner != nil {
		r.runner.Start(b)
	}
	r.logger.Printf("[%s] registered bot %s (owner %s)", r.world, b.Name(), b.Owner())
	r.publish(types.EventBotRegistered, b.Name())
	return nil
}

// UnregisterBot removes a bot and stops ticking it.
func (r *Registry) UnregisterBot(name string) bool {
	key := fold(name)

	r.mu.Lock()
	b, ok := r.bots[key]
	delete(r.bots, key)
	r.mu.Unlock()

	if !ok {
		return false
	}
	b.SetActive(false)
	if r.runner != nil {
		r.runner.Stop(b.Name())
	}
	r.logger.Printf("[%s] unregistered bot %s", r.world, b.Name())
	r.publish(types.EventBotRemoved, b.Name())
	return true
}

// Get looks up a bot by name, case-insensitively.
func (r *Registry) Get(name string) (*Bot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bots[fold(name)]
	return b, ok
}

// Bots returns all bots sorted by name.
func (r *Registry) Bots() []*Bot {
	r.mu.RLock()
	out := make([]*Bot, 0, len(r.bots))
	for _, b := range r.bots {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return fold(out[i].Name()) < fold(out[j].Name()) })
	return out
}

// FindAvailableBotsForRole returns owner's active bots serving role that have
// no current task or whose current task has not started.
func (r *Registry) FindAvailableBotsForRole(owner, role string) []*Bot {
	var out []*Bot
	for _, b := range r.Bots() {
		if !b.Active() || fold(b.Owner()) != fold(owner) || !b.HasRole(role) {
			continue
		}
		cur := b.Tasks().CurrentTask()
		if cur == nil || cur.Status == types.TaskQueued {
			out = append(out, b)
		}
	}
	return out
}

// DelegateSubtask pushes t onto the target bot's queue. It returns false if
// the target is missing or inactive, or rejects the task.
func (r *Registry) DelegateSubtask(from, to string, t *types.Task) bool {
	target, ok := r.Get(to)
	if !ok || !target.Active() {
		r.logger.Printf("[%s] delegation %s -> %s failed: target unavailable", r.world, from, to)
		return false
	}
	if err := target.Tasks().EnqueueTask(t); err != nil {
		r.logger.Printf("[%s] delegation %s -> %s failed: %v", r.world, from, to, err)
		return false
	}
	return true
}

// PruneInactive unregisters every inactive bot and returns their names.
func (r *Registry) PruneInactive() []string {
	var pruned []string
	for _, b := range r.Bots() {
		if !b.Active() && r.UnregisterBot(b.Name()) {
			pruned = append(pruned, b.Name())
		}
	}
	return pruned
}

// Close unregisters every bot.
func (r *Registry) Close() {
	for _, b := range r.Bots() {
		r.UnregisterBot(b.Name())
	}
}

func (r *Registry) publish(eventType types.EventType, bot string) {
	if r.events == nil {
		return
	}
	r.events.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		World:     r.world,
		Bot:       bot,
		Timestamp: time.Now(),
	})
}
