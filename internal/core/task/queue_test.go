package task

import (
	"testing"

	"github.com/roea-ai/botmind/pkg/types"
)

func TestQueue_PriorityThenInsertionOrder(t *testing.T) {
	q := NewQueue()
	q.Push(&types.Task{ID: "mine-1", Priority: types.PriorityNormal})
	q.Push(&types.Task{ID: "explore", Priority: types.PriorityDeferred})
	q.Push(&types.Task{ID: "mine-2", Priority: types.PriorityNormal})
	q.Push(&types.Task{ID: "attack", Priority: types.PriorityCritical})
	q.Push(&types.Task{ID: "mine-3", Priority: types.PriorityNormal})

	want := []string{"attack", "mine-1", "mine-2", "mine-3", "explore"}
	for i, id := range want {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if got.ID != id {
			t.Fatalf("pop %d = %s, want %s", i, got.ID, id)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueue_PushWithSeqKeepsPosition(t *testing.T) {
	q := NewQueue()
	q.Push(&types.Task{ID: "a", Priority: types.PriorityNormal})
	q.Push(&types.Task{ID: "b", Priority: types.PriorityNormal})

	first, seq, ok := q.pop()
	if !ok || first.ID != "a" {
		t.Fatalf("pop = %v, want a", first)
	}
	q.Push(&types.Task{ID: "c", Priority: types.PriorityNormal})
	q.pushWithSeq(first, seq)

	snap := q.Snapshot()
	if len(snap) != 3 || snap[0].ID != "a" || snap[1].ID != "b" || snap[2].ID != "c" {
		t.Fatalf("snapshot order = %v", ids(snap))
	}
}

func TestQueue_RemoveFindClear(t *testing.T) {
	q := NewQueue()
	q.Push(&types.Task{ID: "a", Priority: types.PriorityLow})
	q.Push(&types.Task{ID: "b", Priority: types.PriorityHigh})

	if _, ok := q.Find("a"); !ok {
		t.Fatal("expected to find a")
	}
	if _, ok := q.Remove("a"); !ok {
		t.Fatal("expected to remove a")
	}
	if _, ok := q.Remove("a"); ok {
		t.Fatal("second remove should fail")
	}
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
	if dropped := q.Clear(); len(dropped) != 1 || dropped[0].ID != "b" {
		t.Fatalf("Clear dropped %v", ids(dropped))
	}
	if q.Len() != 0 {
		t.Fatalf("Len after clear = %d", q.Len())
	}
}

func TestPriorityFor(t *testing.T) {
	cases := map[types.CommandKind]types.TaskPriority{
		types.CommandAttack:  types.PriorityCritical,
		types.CommandFollow:  types.PriorityHigh,
		types.CommandMine:    types.PriorityNormal,
		types.CommandTrade:   types.PriorityLow,
		types.CommandExplore: types.PriorityDeferred,
		"DANCE":              types.PriorityNormal,
	}
	for kind, want := range cases {
		if got := PriorityFor(kind); got != want {
			t.Errorf("PriorityFor(%s) = %v, want %v", kind, got, want)
		}
	}
}

func ids(tasks []*types.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
