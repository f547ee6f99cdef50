package sensor

import (
	"testing"

	"github.com/roea-ai/botmind/pkg/types"
)

func TestBoard_SamplerPerBot(t *testing.T) {
	b := NewBoard(types.Signals{HasActiveSubject: true})

	alex := b.For("Overworld", "Alex")
	if alex != b.For("overworld", "alex") {
		t.Fatalf("lookup is not case-insensitive")
	}
	if !alex.Sample().HasActiveSubject {
		t.Fatalf("defaults not applied")
	}

	alex.Update(func(sig *types.Signals) {
		sig.ThreatActive = true
		sig.LowHealth = true
	})
	got, ok := b.Get("overworld", "ALEX")
	if !ok || !got.ThreatActive || !got.LowHealth || !got.HasActiveSubject {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if alex.UpdatedAt().IsZero() {
		t.Fatalf("UpdatedAt not set")
	}

	if b.For("overworld", "bea").Sample().ThreatActive {
		t.Fatalf("signals leaked between bots")
	}

	b.Forget("overworld", "alex")
	if _, ok := b.Get("overworld", "alex"); ok {
		t.Fatalf("sampler kept after Forget")
	}
}
