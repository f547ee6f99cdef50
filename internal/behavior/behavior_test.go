package behavior

import (
	"io"
	"log"
	"testing"

	"github.com/roea-ai/botmind/internal/core/coordinator"
	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/pkg/types"
)

var quiet = log.New(io.Discard, "", 0)

func TestPassive_SuccessFollowsSignals(t *testing.T) {
	behaviors := Defaults("alex", quiet)

	if behaviors[types.ModeBuilder].Tick(types.Signals{}) {
		t.Fatalf("builder succeeded without a building phase")
	}
	if !behaviors[types.ModeBuilder].Tick(types.Signals{BuildingPhaseActive: true}) {
		t.Fatalf("builder failed during a building phase")
	}
	if !behaviors[types.ModeGatherer].Tick(types.Signals{ResourcesNeeded: true}) {
		t.Fatalf("gatherer failed while resources are needed")
	}
	if !behaviors[types.ModeStasis].Tick(types.Signals{}) {
		t.Fatalf("stasis failed")
	}
	if got := behaviors[types.ModeBuilder].(*Passive).Ticks(); got != 2 {
		t.Fatalf("builder ticks = %d", got)
	}
}

func TestModules_Preconditions(t *testing.T) {
	modules := DefaultModules("alex", quiet)

	cases := []struct {
		kind   coordinator.ModuleKind
		action string
		sig    types.Signals
		want   bool
	}{
		{coordinator.ModuleEscape, "pearl_escape", types.Signals{HasPearls: true}, true},
		{coordinator.ModuleEscape, "pearl_escape", types.Signals{}, false},
		{coordinator.ModuleEscape, "retreat", types.Signals{}, true},
		{coordinator.ModuleShield, "block", types.Signals{}, false},
		{coordinator.ModuleShield, "strafe", types.Signals{}, true},
		{coordinator.ModulePressure, "engage", types.Signals{TargetInRange: true}, true},
		{coordinator.ModulePressure, "disrupt", types.Signals{}, true},
		{coordinator.ModulePressure, "dance", types.Signals{}, false},
	}
	for _, c := range cases {
		if got := modules[c.kind].Execute(c.action, c.sig); got != c.want {
			t.Errorf("%s/%s = %v, want %v", c.kind, c.action, got, c.want)
		}
	}
}

func TestModules_DriveEngineCombatTick(t *testing.T) {
	sig := types.Signals{HasActiveSubject: true, ThreatActive: true, LowHealth: true, HasPearls: true}
	e := decision.NewEngine(decision.Config{
		Bot:       "alex",
		Sampler:   staticSampler(sig),
		Behaviors: Defaults("alex", quiet),
		Modules:   DefaultModules("alex", quiet),
		Logger:    quiet,
	})

	rec := e.Tick()
	if rec.Mode != types.ModeCombat || rec.Behavior != "pearl_escape" || !rec.Success {
		t.Fatalf("record = %+v", rec)
	}
}

type staticSampler types.Signals

func (s staticSampler) Sample() types.Signals { return types.Signals(s) }
