// Package sensor holds the environment snapshot each bot's decision engine
// samples. World sensing happens outside the daemon and is pushed in through
// the API.
package sensor

import (
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/roea-ai/botmind/pkg/types"
)

// Static returns whatever signals were last set.
type Static struct {
	mu        sync.RWMutex
	sig       types.Signals
	updatedAt time.Time
}

// NewStatic creates a sampler that starts with sig.
func NewStatic(sig types.Signals) *Static {
	return &Static{sig: sig}
}

// Sample returns the current signals.
func (s *Static) Sample() types.Signals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sig
}

// Set replaces the signals.
func (s *Static) Set(sig types.Signals) {
	s.mu.Lock()
	s.sig = sig
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Update edits the signals in place.
func (s *Static) Update(fn func(sig *types.Signals)) {
	s.mu.Lock()
	fn(&s.sig)
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// UpdatedAt returns when the signals last changed, zero if never.
func (s *Static) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Board keeps one sampler per bot.
type Board struct {
	defaults types.Signals

	mu       sync.Mutex
	samplers map[string]*Static
}

// NewBoard creates a Board whose new samplers start with defaults.
func NewBoard(defaults types.Signals) *Board {
	return &Board{defaults: defaults, samplers: make(map[string]*Static)}
}

func key(world, bot string) string {
	fold := cases.Fold()
	return fold.String(world) + "/" + fold.String(bot)
}

// For returns the sampler of a bot, creating it on first use.
func (b *Board) For(world, bot string) *Static {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(world, bot)
	s, ok := b.samplers[k]
	if !ok {
		s = NewStatic(b.defaults)
		b.samplers[k] = s
	}
	return s
}

// Get returns the signals of a known bot.
func (b *Board) Get(world, bot string) (types.Signals, bool) {
	b.mu.Lock()
	s, ok := b.samplers[key(world, bot)]
	b.mu.Unlock()
	if !ok {
		return types.Signals{}, false
	}
	return s.Sample(), true
}

// Forget drops a bot's sampler.
func (b *Board) Forget(world, bot string) {
	b.mu.Lock()
	delete(b.samplers, key(world, bot))
	b.mu.Unlock()
}
