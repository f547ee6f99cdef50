package behavior

import (
	"log"
	"sync"

	"github.com/roea-ai/botmind/internal/core/coordinator"
	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/pkg/types"
)

// Module is a combat module. Each action has a precondition on the signals;
// unknown actions fail.
type Module struct {
	kind    coordinator.ModuleKind
	bot     string
	actions map[string]func(types.Signals) bool
	logger  *log.Logger

	mu   sync.Mutex
	last string
}

var _ decision.CombatModule = (*Module)(nil)

func always(types.Signals) bool { return true }

// Escape flees on low health.
func Escape(bot string, logger *log.Logger) *Module {
	return newModule(coordinator.ModuleEscape, bot, logger, map[string]func(types.Signals) bool{
		"pearl_escape": func(s types.Signals) bool { return s.HasPearls },
		"retreat":      always,
	})
}

// Shield answers incoming projectiles.
func Shield(bot string, logger *log.Logger) *Module {
	return newModule(coordinator.ModuleShield, bot, logger, map[string]func(types.Signals) bool{
		"block":  func(s types.Signals) bool { return s.HasShield },
		"strafe": always,
	})
}

// Pressure carries out the selected tactic.
func Pressure(bot string, logger *log.Logger) *Module {
	return newModule(coordinator.ModulePressure, bot, logger, map[string]func(types.Signals) bool{
		"opportunity":  func(s types.Signals) bool { return s.HasMeleeWeapon },
		"aerial_combo": func(s types.Signals) bool { return s.HasMace },
		"engage":       func(s types.Signals) bool { return s.TargetInRange },
		"disrupt":      always,
	})
}

func newModule(kind coordinator.ModuleKind, bot string, logger *log.Logger, actions map[string]func(types.Signals) bool) *Module {
	if logger == nil {
		logger = log.Default()
	}
	return &Module{kind: kind, bot: bot, actions: actions, logger: logger}
}

// Kind returns the module kind.
func (m *Module) Kind() coordinator.ModuleKind { return m.kind }

// Execute performs action and reports whether its precondition held.
func (m *Module) Execute(action string, sig types.Signals) bool {
	check, ok := m.actions[action]
	if !ok {
		m.logger.Printf("[%s] %s: unknown action %q", m.bot, m.kind, action)
		return false
	}

	m.mu.Lock()
	changed := m.last != action
	m.last = action
	m.mu.Unlock()
	if changed {
		m.logger.Printf("[%s] %s: %s", m.bot, m.kind, action)
	}
	return check(sig)
}

// DefaultModules returns the combat modules of one bot.
func DefaultModules(bot string, logger *log.Logger) map[coordinator.ModuleKind]decision.CombatModule {
	return map[coordinator.ModuleKind]decision.CombatModule{
		coordinator.ModuleEscape:   Escape(bot, logger),
		coordinator.ModuleShield:   Shield(bot, logger),
		coordinator.ModulePressure: Pressure(bot, logger),
	}
}
