package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/brink.zone/internal/testkit/wmdfakes"
	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequentialIDs() func() (string, error) {
	next := 0
	return func() (string, error) {
		next++
		return fmt.Sprintf("id-%03d", next), nil
	}
}

// newTestService wires a Service onto the in-memory store with a fixed
// clock and deterministic ids. Tests reassign s.now or s.roll directly when
// they need to move time or force a roll.
func newTestService(t *testing.T, store *wmdfakes.Store, at time.Time) *Service {
	t.Helper()
	store.Now = testClock(at)
	svc, err := New(Config{
		Store:  store,
		Roster: store,
		Now:    testClock(at),
		NewID:  sequentialIDs(),
		Roll:   func() (int64, float64) { return 42, 0.5 },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedMember(store *wmdfakes.Store, clanID, playerID string, role roster.Role, joinedAt time.Time) {
	store.Memberships[clanID+":"+playerID] = roster.Membership{
		ClanID:   clanID,
		PlayerID: playerID,
		Role:     role,
		JoinedAt: joinedAt,
	}
}

func grantTechs(store *wmdfakes.Store, playerID string, at time.Time, techIDs ...string) {
	completed := make(map[string]struct{}, len(techIDs))
	for _, id := range techIDs {
		completed[id] = struct{}{}
	}
	store.Ledgers[playerID] = storage.LedgerRecord{
		Ledger: domain.Ledger{
			PlayerID:  playerID,
			Completed: completed,
			CreatedAt: at,
			UpdatedAt: at,
		},
		Version: 1,
	}
}

func fundWallet(store *wmdfakes.Store, playerID string, amount uint, at time.Time) {
	store.Wallets[playerID] = storage.Wallet{
		PlayerID:  playerID,
		Resources: amount,
		Version:   1,
		UpdatedAt: at,
	}
}

func eventTypes(store *wmdfakes.Store) []event.Type {
	types := make([]event.Type, 0, len(store.Events))
	for _, evt := range store.Events {
		types = append(types, evt.Type)
	}
	return types
}

func lastEventType(t *testing.T, store *wmdfakes.Store) event.Type {
	t.Helper()
	if len(store.Events) == 0 {
		t.Fatal("no events journaled")
	}
	return store.Events[len(store.Events)-1].Type
}
