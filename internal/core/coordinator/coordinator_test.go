package coordinator

import "testing"

func TestCoordinator_OrdersByFinalPriority(t *testing.T) {
	c := New(8)
	c.QueueExecution(ModulePressure, "engage", 10)
	c.QueueExecution(ModuleShield, "block", 0)
	c.QueueExecution(ModuleEscape, "retreat", 0)
	c.QueueExecution(ModulePressure, "disrupt", 10)

	want := []string{"retreat", "block", "engage", "disrupt"}
	for i, action := range want {
		next, ok := c.PeekNext()
		if !ok || next.Action != action {
			t.Fatalf("peek %d = %+v, want %s", i, next, action)
		}
		got, ok := c.MarkExecuted()
		if !ok || got.Action != action || !got.Executed {
			t.Fatalf("pop %d = %+v, want %s", i, got, action)
		}
	}
	if _, ok := c.MarkExecuted(); ok {
		t.Fatal("expected empty coordinator")
	}

	last, ok := c.LastExecution()
	if !ok || last.Action != "disrupt" {
		t.Fatalf("LastExecution = %+v", last)
	}
}

func TestCoordinator_PriorityBonus(t *testing.T) {
	c := New(4)
	c.QueueExecution(ModuleShield, "block", 0)
	c.QueueExecution(ModulePressure, "opportunity", 40)

	got, _ := c.MarkExecuted()
	if got.Action != "opportunity" || got.Priority != Baseline(ModulePressure)+40 {
		t.Fatalf("first = %+v, want boosted pressure", got)
	}
}

func TestCoordinator_BoundedCapacity(t *testing.T) {
	c := New(2)
	if !c.QueueExecution(ModulePressure, "a", 0) || !c.QueueExecution(ModulePressure, "b", 0) {
		t.Fatal("expected inserts under capacity to succeed")
	}
	if c.QueueExecution(ModulePressure, "c", 0) {
		t.Fatal("equal-priority insert into a full coordinator should be rejected")
	}
	if !c.QueueExecution(ModuleEscape, "flee", 0) {
		t.Fatal("higher-priority insert should evict the lowest entry")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	first, _ := c.MarkExecuted()
	second, _ := c.MarkExecuted()
	if first.Action != "flee" || second.Action != "a" {
		t.Fatalf("order = %s, %s; want flee, a", first.Action, second.Action)
	}
}

func TestCoordinator_Reset(t *testing.T) {
	c := New(0)
	c.QueueExecution(ModuleShield, "block", 0)
	c.MarkExecuted()
	c.QueueExecution(ModuleEscape, "retreat", 0)
	c.Reset()

	if c.Len() != 0 {
		t.Fatalf("Len after reset = %d", c.Len())
	}
	if last, ok := c.LastExecution(); !ok || last.Action != "block" {
		t.Fatalf("reset must keep last execution, got %+v", last)
	}
}
