package event

import (
	"testing"
	"time"
)

func TestChainHashIsDeterministic(t *testing.T) {
	t.Parallel()

	evt, err := New(TypeMissileLaunched, "player-1", "clan-1", "missile-1", map[string]string{"warhead_type": "fission"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	evt.Seq = 1
	evt.CreatedAt = time.Date(2026, time.March, 5, 8, 0, 0, 0, time.UTC)

	first := ChainHash(evt, "")
	second := ChainHash(evt, "")
	if first != second {
		t.Fatalf("hash not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(first))
	}

	evt.Seq = 2
	if ChainHash(evt, "") == first {
		t.Fatal("hash must change with the sequence")
	}
}

func TestVerifyChain(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2026, time.March, 5, 8, 0, 0, 0, time.UTC)
	events := make([]Event, 0, 3)
	prev := ""
	for i, eventType := range []Type{TypeVoteCreated, TypeVoteCast, TypeVotePassed} {
		evt, err := New(eventType, "player-1", "clan-1", "vote-1", map[string]int{"n": i})
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		evt.Seq = uint64(i + 1)
		evt.CreatedAt = createdAt.Add(time.Duration(i) * time.Second)
		evt.ChainHash = ChainHash(evt, prev)
		prev = evt.ChainHash
		events = append(events, evt)
	}

	if broken := VerifyChain(events); broken != 0 {
		t.Fatalf("chain broken at seq %d", broken)
	}

	events[1].Payload = []byte(`{"n":99}`)
	if broken := VerifyChain(events); broken != 2 {
		t.Fatalf("broken seq = %d, want 2", broken)
	}
}
