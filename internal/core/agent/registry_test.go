package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/pkg/types"
)

var quiet = log.New(io.Discard, "", 0)

// stubScheduler lets tests pin the current task to any status.
type stubScheduler struct {
	*task.Manager
	current *types.Task
}

func (s *stubScheduler) CurrentTask() *types.Task { return s.current.Clone() }

func newStubBot(name, owner string, current *types.Task, roles ...string) *Bot {
	return NewBot(BotOptions{
		Name:   name,
		Owner:  owner,
		World:  "overworld",
		Roles:  roles,
		Tasks:  &stubScheduler{Manager: task.NewManager(task.Options{Bot: name, Logger: quiet}), current: current},
		Logger: quiet,
	})
}

func newTestBot(name, owner string, trusted ...string) *Bot {
	f := &Factory{Logger: quiet}
	return f.NewBot(types.BotConfig{Name: name, Owner: owner, World: "overworld", Trusted: trusted})
}

func TestRegistry_FindAvailableCountsQueuedCurrentAsIdle(t *testing.T) {
	r := NewRegistry("overworld", nil, nil, quiet)
	mustRegister(t, r, newStubBot("alpha", "Alice", &types.Task{ID: "q", Status: types.TaskQueued}))
	mustRegister(t, r, newStubBot("bravo", "Alice", nil))
	mustRegister(t, r, newStubBot("charlie", "alice", nil))
	mustRegister(t, r, newStubBot("delta", "Alice", &types.Task{ID: "x", Status: types.TaskExecuting}))
	mustRegister(t, r, newStubBot("echo", "Bob", nil))

	got := r.FindAvailableBotsForRole("Alice", "gatherer")
	if len(got) != 3 {
		t.Fatalf("available = %v, want alpha bravo charlie", names(got))
	}
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if got[i].Name() != want {
			t.Fatalf("available[%d] = %s, want %s", i, got[i].Name(), want)
		}
	}
}

func TestRegistry_RolesFilterAvailability(t *testing.T) {
	r := NewRegistry("overworld", nil, nil, quiet)
	mustRegister(t, r, newStubBot("miner", "Alice", nil, "gatherer"))
	mustRegister(t, r, newStubBot("mason", "Alice", nil, "builder"))
	mustRegister(t, r, newStubBot("generalist", "Alice", nil))

	got := r.FindAvailableBotsForRole("Alice", "Builder")
	if len(got) != 2 || got[0].Name() != "generalist" || got[1].Name() != "mason" {
		t.Fatalf("available = %v", names(got))
	}

	mason, _ := r.Get("MASON")
	mason.SetActive(false)
	if got := r.FindAvailableBotsForRole("Alice", "builder"); len(got) != 1 {
		t.Fatalf("inactive bot listed: %v", names(got))
	}
}

func TestRegistry_RegisterIsCaseInsensitive(t *testing.T) {
	r := NewRegistry("overworld", nil, nil, quiet)
	mustRegister(t, r, newTestBot("Alex", "Steve"))

	if err := r.RegisterBot(newTestBot("alex", "Steve")); !errors.Is(err, ErrBotExists) {
		t.Fatalf("duplicate register err = %v", err)
	}
	if _, ok := r.Get("ALEX"); !ok {
		t.Fatal("lookup should ignore case")
	}
	if !r.UnregisterBot("aLeX") {
		t.Fatal("unregister failed")
	}
	if r.UnregisterBot("alex") {
		t.Fatal("second unregister should fail")
	}
}

func TestRegistry_DelegateSubtask(t *testing.T) {
	r := NewRegistry("overworld", nil, nil, quiet)
	target := newTestBot("zed", "Alice")
	mustRegister(t, r, target)

	sub := &types.Task{ID: "sub-1", Kind: types.CommandGather, Parameters: map[string]string{"target": "oak_log"}}
	if r.DelegateSubtask("alpha", "nobody", sub) {
		t.Fatal("delegation to a missing bot must fail")
	}
	if !r.DelegateSubtask("alpha", "ZED", sub) {
		t.Fatal("delegation to a registered bot failed")
	}
	if target.Tasks().QueueSize() != 1 {
		t.Fatalf("QueueSize = %d, want 1", target.Tasks().QueueSize())
	}

	target.SetActive(false)
	if r.DelegateSubtask("alpha", "zed", &types.Task{ID: "sub-2", Kind: types.CommandMine}) {
		t.Fatal("delegation to an inactive bot must fail")
	}
	if pruned := r.PruneInactive(); len(pruned) != 1 || pruned[0] != "zed" {
		t.Fatalf("pruned = %v", pruned)
	}
}

func TestBot_LifecycleCommandsAreGated(t *testing.T) {
	b := newTestBot("alex", "Steve", "Alice", "Bob")

	if _, err := b.QueueTask("mallory", types.ParsedCommand{Kind: types.CommandMine}, 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("untrusted queue err = %v", err)
	}
	queued, err := b.QueueTask("Alice", types.ParsedCommand{Kind: types.CommandMine}, 0)
	if err != nil {
		t.Fatalf("QueueTask: %v", err)
	}
	if queued.Priority != types.PriorityNormal || queued.IssuedBy != "Alice" {
		t.Fatalf("queued = %+v", queued)
	}

	// Alice's task starts and locks the bot to her.
	b.Lock().LockTask(queued, "Alice")

	if _, err := b.PauseCurrentTask("Bob"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("trusted non-holder pause err = %v", err)
	}
	if _, err := b.CancelCurrentTask("alice", "done"); err != nil {
		t.Fatalf("holder cancel err = %v", err)
	}
	if err := b.ForceUnlock("Alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner force unlock err = %v", err)
	}
	if err := b.ForceUnlock("steve"); err != nil {
		t.Fatalf("owner force unlock err = %v", err)
	}
	if _, err := b.ClearQueue("Bob"); err != nil {
		t.Fatalf("trusted clear after unlock err = %v", err)
	}
	if err := b.EnableMode("Steve", types.ModeBuilder); err != nil {
		t.Fatalf("EnableMode: %v", err)
	}
	if info := b.Info(); info.Mode != types.ModeBuilder || info.Owner != "Steve" {
		t.Fatalf("info = %+v", info)
	}
}

type countingTicker struct {
	ticks atomic.Int64
}

func (c *countingTicker) Sample() types.Signals {
	c.ticks.Add(1)
	return types.Signals{HasActiveSubject: true}
}

func TestRunner_TicksRegisteredBots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := NewRunner(ctx, 5*time.Millisecond, quiet)
	worlds := NewWorlds(runner, nil, quiet)
	sampler := &countingTicker{}
	f := &Factory{Logger: quiet}
	f.Sampler = func(world, bot string) decision.Sampler { return sampler }

	r := worlds.Open("overworld")
	mustRegister(t, r, f.NewBot(types.BotConfig{Name: "alex", Owner: "Steve", World: "overworld"}))
	if runner.Running() != 1 {
		t.Fatalf("Running = %d, want 1", runner.Running())
	}

	deadline := time.Now().Add(2 * time.Second)
	for sampler.ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sampler.ticks.Load() < 3 {
		t.Fatalf("bot ticked %d times, want at least 3", sampler.ticks.Load())
	}

	if !worlds.Unload("OVERWORLD") {
		t.Fatal("unload failed")
	}
	if runner.Running() != 0 {
		t.Fatalf("Running after unload = %d", runner.Running())
	}
	if len(worlds.Names()) != 0 {
		t.Fatalf("worlds = %v", worlds.Names())
	}
	cancel()
	runner.Wait()
}

func mustRegister(t *testing.T, r *Registry, b *Bot) {
	t.Helper()
	if err := r.RegisterBot(b); err != nil {
		t.Fatalf("RegisterBot(%s): %v", b.Name(), err)
	}
}

func names(bots []*Bot) []string {
	out := make([]string, 0, len(bots))
	for _, b := range bots {
		out = append(out, b.Name())
	}
	return out
}
