package decision

import (
	"github.com/roea-ai/botmind/internal/core/coordinator"
	"github.com/roea-ai/botmind/pkg/types"
)

// Tactic is one entry of the combat rule list.
type Tactic struct {
	Name  string
	Bonus int
	Match func(sig types.Signals) bool
}

// tactics is evaluated top to bottom and the first match wins, even when a
// later rule would also match.
var tactics = []Tactic{
	{
		Name:  "opportunity",
		Bonus: 40,
		Match: func(s types.Signals) bool { return s.OpportunityWindow && s.HasMeleeWeapon },
	},
	{
		Name:  "aerial_combo",
		Bonus: 20,
		Match: func(s types.Signals) bool { return s.TargetAirborne && s.HasMace },
	},
	{
		Name:  "engage",
		Bonus: 10,
		Match: func(s types.Signals) bool { return s.TargetInRange && (s.HasMeleeWeapon || s.HasRangedWeapon) },
	},
	{
		Name:  "disrupt",
		Bonus: 0,
		Match: func(types.Signals) bool { return true },
	},
}

// SelectTactic returns the first tactic whose condition holds.
func SelectTactic(sig types.Signals) Tactic {
	for _, t := range tactics {
		if t.Match(sig) {
			return t
		}
	}
	return tactics[len(tactics)-1]
}

// queueReactive queues the defensive modules the signals call for.
func queueReactive(c *coordinator.Coordinator, sig types.Signals) {
	if sig.LowHealth {
		action := "retreat"
		if sig.HasPearls {
			action = "pearl_escape"
		}
		c.QueueExecution(coordinator.ModuleEscape, action, 0)
	}
	if sig.IncomingProjectile {
		action := "strafe"
		if sig.HasShield {
			action = "block"
		}
		c.QueueExecution(coordinator.ModuleShield, action, 0)
	}
}
