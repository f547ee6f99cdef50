package agent

import (
	"log"
	"sort"
	"sync"

	"github.com/roea-ai/botmind/internal/core/task"
)

// Worlds holds one Registry per loaded world.
type Worlds struct {
	runner *Runner
	events task.Publisher
	logger *log.Logger

	mu         sync.RWMutex
	registries map[string]*Registry
}

// NewWorlds creates an empty world set. Registries it opens share runner.
func NewWorlds(runner *Runner, events task.Publisher, logger *log.Logger) *Worlds {
	if logger == nil {
		logger = log.Default()
	}
	return &Worlds{
		runner:     runner,
		events:     events,
		logger:     logger,
		registries: make(map[string]*Registry),
	}
}

// Open returns the registry for world, creating it on first use.
func (w *Worlds) Open(world string) *Registry {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := fold(world)
	if r, ok := w.registries[key]; ok {
		return r
	}
	r := NewRegistry(world, w.runner, w.events, w.logger)
	w.registries[key] = r
	w.logger.Printf("opened world %s", world)
	return r
}

// Get returns an already opened registry.
func (w *Worlds) Get(world string) (*Registry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	r, ok := w.registries[fold(world)]
	return r, ok
}

// Names returns the loaded world names.
func (w *Worlds) Names() []string {
	w.mu.RLock()
	out := make([]string, 0, len(w.registries))
	for _, r := range w.registries {
		out = append(out, r.World())
	}
	w.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Unload stops every bot of world and forgets its registry.
func (w *Worlds) Unload(world string) bool {
	w.mu.Lock()
	key := fold(world)
	r, ok := w.registries[key]
	delete(w.registries, key)
	w.mu.Unlock()

	if !ok {
		return false
	}
	r.Close()
	w.logger.Printf("unloaded world %s", world)
	return true
}

// Close unloads every world.
func (w *Worlds) Close() {
	for _, name := range w.Names() {
		w.Unload(name)
	}
}
