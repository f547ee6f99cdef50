// Package behavior provides the daemon's default mode behaviors and combat
// modules. They judge success from the sampled signals and log what the bot
// would do; moving an actual body is left to the world client.
package behavior

import (
	"log"
	"sync"

	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/pkg/types"
)

// Passive is a passive mode behavior.
type Passive struct {
	name   string
	bot    string
	ready  func(sig types.Signals) bool
	logger *log.Logger

	mu    sync.Mutex
	ticks uint64
	last  *bool
}

var _ decision.Behavior = (*Passive)(nil)

func newPassive(name, bot string, ready func(types.Signals) bool, logger *log.Logger) *Passive {
	if logger == nil {
		logger = log.Default()
	}
	return &Passive{name: name, bot: bot, ready: ready, logger: logger}
}

// Builder succeeds while a building phase is active.
func Builder(bot string, logger *log.Logger) *Passive {
	return newPassive("builder", bot, func(s types.Signals) bool { return s.BuildingPhaseActive }, logger)
}

// Gatherer succeeds while resources are needed.
func Gatherer(bot string, logger *log.Logger) *Passive {
	return newPassive("gatherer", bot, func(s types.Signals) bool { return s.ResourcesNeeded }, logger)
}

// Stasis idles and always succeeds.
func Stasis(bot string, logger *log.Logger) *Passive {
	return newPassive("stasis", bot, func(types.Signals) bool { return true }, logger)
}

// Name returns the behavior name.
func (p *Passive) Name() string { return p.name }

// Tick runs one step and logs when the outcome flips.
func (p *Passive) Tick(sig types.Signals) bool {
	ok := p.ready(sig)

	p.mu.Lock()
	p.ticks++
	changed := p.last == nil || *p.last != ok
	p.last = &ok
	p.mu.Unlock()

	if changed {
		if ok {
			p.logger.Printf("[%s] %s: working", p.bot, p.name)
		} else {
			p.logger.Printf("[%s] %s: nothing to do", p.bot, p.name)
		}
	}
	return ok
}

// Ticks returns how often the behavior ran.
func (p *Passive) Ticks() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

// Defaults returns the passive behaviors of one bot.
func Defaults(bot string, logger *log.Logger) map[types.Mode]decision.Behavior {
	return map[types.Mode]decision.Behavior{
		types.ModeBuilder:  Builder(bot, logger),
		types.ModeGatherer: Gatherer(bot, logger),
		types.ModeStasis:   Stasis(bot, logger),
	}
}
