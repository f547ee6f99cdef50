package events

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/roea-ai/botmind/pkg/types"
)

type failingStore struct {
	calls int
}

func (s *failingStore) StoreEvent(*types.Event) error {
	s.calls++
	return errors.New("disk full")
}

func TestHub_PublishSubscribe(t *testing.T) {
	store := &failingStore{}
	h := NewHub(store, log.New(io.Discard, "", 0))

	ch := h.Subscribe("ws-1")
	h.Publish(&types.Event{ID: "e1", Type: types.EventTaskQueued})

	select {
	case ev := <-ch:
		if ev.ID != "e1" {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("expected event on subscriber channel")
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.calls)
	}

	h.Unsubscribe("ws-1")
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil, nil)
	h.Subscribe("slow")

	for i := 0; i < subscriberBuffer*2; i++ {
		h.Publish(&types.Event{Type: types.EventTaskStarted})
	}
	if got := len(h.Recent(0)); got != subscriberBuffer*2 {
		t.Fatalf("recent = %d, want %d", got, subscriberBuffer*2)
	}
}

func TestHub_RecentIsBounded(t *testing.T) {
	h := NewHub(nil, nil)
	for i := 0; i < defaultRecent+10; i++ {
		h.Publish(&types.Event{Type: types.EventModeChanged})
	}
	if got := len(h.Recent(0)); got != defaultRecent {
		t.Fatalf("recent = %d, want %d", got, defaultRecent)
	}
	if got := len(h.Recent(5)); got != 5 {
		t.Fatalf("recent(5) = %d", got)
	}
}
