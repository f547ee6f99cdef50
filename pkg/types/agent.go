package types

import "time"

// Mode is the exclusive top-level behavior category of a bot.
type Mode string

const (
	ModeCombat   Mode = "combat"
	ModeBuilder  Mode = "builder"
	ModeGatherer Mode = "gatherer"
	ModeStasis   Mode = "stasis"
	ModeNone     Mode = "" // Only valid as a last passive mode
)

// IsPassive reports whether the mode is one of the non-combat modes.
func (m Mode) IsPassive() bool {
	return m == ModeBuilder || m == ModeGatherer || m == ModeStasis
}

// ParseMode maps a mode name to a Mode.
func ParseMode(name string) (Mode, bool) {
	switch Mode(name) {
	case ModeCombat, ModeBuilder, ModeGatherer, ModeStasis:
		return Mode(name), true
	}
	return ModeNone, false
}

// Signals is the per-tick environment snapshot consumed by the decision engine.
type Signals struct {
	HasActiveSubject    bool `json:"has_active_subject"`
	ThreatActive        bool `json:"threat_active"`
	BuildingPhaseActive bool `json:"building_phase_active"`
	ResourcesNeeded     bool `json:"resources_needed"`

	// Combat detail
	OpportunityWindow  bool    `json:"opportunity_window"`  // Target stunned, eating or turned away
	TargetAirborne     bool    `json:"target_airborne"`
	TargetInRange      bool    `json:"target_in_range"`
	IncomingProjectile bool    `json:"incoming_projectile"`
	LowHealth          bool    `json:"low_health"`
	ThreatCount        int     `json:"threat_count"`
	ThreatDistance     float64 `json:"threat_distance"`

	// Equipment
	HasMeleeWeapon  bool `json:"has_melee_weapon"`
	HasRangedWeapon bool `json:"has_ranged_weapon"`
	HasMace         bool `json:"has_mace"`
	HasShield       bool `json:"has_shield"`
	HasPearls       bool `json:"has_pearls"`
}

// BotInfo is a read-only snapshot of a registered bot.
type BotInfo struct {
	Name            string    `json:"name"`
	Owner           string    `json:"owner"`
	World           string    `json:"world"`
	Roles           []string  `json:"roles,omitempty"`
	Active          bool      `json:"active"`
	RegisteredAt    time.Time `json:"registered_at"`
	Mode            Mode      `json:"mode"`
	LastPassiveMode Mode      `json:"last_passive_mode"`
	CurrentTask     *Task     `json:"current_task,omitempty"`
	QueueSize       int       `json:"queue_size"`
	LockOwner       string    `json:"lock_owner,omitempty"`
}

// DecisionRecord is one tick's arbitration outcome, written to the decision log.
type DecisionRecord struct {
	Tick            uint64    `json:"tick"`
	Bot             string    `json:"bot"`
	Mode            Mode      `json:"mode"`
	LastPassiveMode Mode      `json:"last_passive_mode"`
	Behavior        string    `json:"behavior,omitempty"`
	Success         bool      `json:"success"`
	Forced          bool      `json:"forced,omitempty"` // No active subject, stasis forced
	Timestamp       time.Time `json:"timestamp"`
}
