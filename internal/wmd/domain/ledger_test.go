package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
)

func testClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustLedger(t *testing.T, playerID string, at time.Time) Ledger {
	t.Helper()
	ledger, err := NewLedger(playerID, testClock(at))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger
}

var (
	techBasic = catalog.TechDefinition{
		ID:                      "rocketry",
		Category:                catalog.TechCategoryMissile,
		RPCost:                  200,
		ResearchDurationSeconds: 600,
	}
	techAdvanced = catalog.TechDefinition{
		ID:                      "fission_warheads",
		Category:                catalog.TechCategoryMissile,
		PrerequisiteIDs:         []string{"rocketry"},
		RPCost:                  800,
		ResearchDurationSeconds: 1200,
	}
)

func TestNewLedgerRequiresPlayerID(t *testing.T) {
	t.Parallel()

	if _, err := NewLedger("", nil); !errors.Is(err, ErrEmptyPlayerID) {
		t.Fatalf("err = %v, want %v", err, ErrEmptyPlayerID)
	}
}

func TestStartTimedResearch(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)

	if err := ledger.StartTimedResearch(techBasic, now); err != nil {
		t.Fatalf("start research: %v", err)
	}
	if ledger.ActiveResearch == nil {
		t.Fatal("expected active research")
	}
	if ledger.ActiveResearch.TechID != techBasic.ID {
		t.Fatalf("active tech = %q, want %q", ledger.ActiveResearch.TechID, techBasic.ID)
	}
	wantCompletes := now.Add(600 * time.Second)
	if !ledger.ActiveResearch.CompletesAt.Equal(wantCompletes) {
		t.Fatalf("completes at = %v, want %v", ledger.ActiveResearch.CompletesAt, wantCompletes)
	}
}

func TestStartTimedResearchFailsWhileResearching(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)
	if err := ledger.StartTimedResearch(techBasic, now); err != nil {
		t.Fatalf("start research: %v", err)
	}

	// Any second start is rejected, including for the same tech.
	err := ledger.StartTimedResearch(techBasic, now)
	if !errors.Is(err, ErrAlreadyResearching) {
		t.Fatalf("err = %v, want %v", err, ErrAlreadyResearching)
	}
	other := catalog.TechDefinition{ID: "radar_network", Category: catalog.TechCategoryDefense, ResearchDurationSeconds: 60}
	if err := ledger.StartTimedResearch(other, now); !errors.Is(err, ErrAlreadyResearching) {
		t.Fatalf("err = %v, want %v", err, ErrAlreadyResearching)
	}
}

func TestStartTimedResearchChecksPrerequisitesAndCompletion(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	ledger := mustLedger(t, "player-1", now)
	if err := ledger.StartTimedResearch(techAdvanced, now); !errors.Is(err, ErrPrerequisitesUnmet) {
		t.Fatalf("err = %v, want %v", err, ErrPrerequisitesUnmet)
	}

	ledger.Completed[techBasic.ID] = struct{}{}
	if err := ledger.StartTimedResearch(techBasic, now); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("err = %v, want %v", err, ErrAlreadyCompleted)
	}
}

func TestCompleteResearchWithRP(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)
	ledger.RP = 250

	if err := ledger.CompleteResearchWithRP(techBasic, now); err != nil {
		t.Fatalf("complete with rp: %v", err)
	}
	if ledger.RP != 50 {
		t.Fatalf("rp = %d, want 50", ledger.RP)
	}
	if !ledger.HasCompleted(techBasic.ID) {
		t.Fatal("expected tech completed")
	}
}

func TestCompleteResearchWithRPInsufficientRPLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)
	ledger.RP = 500
	ledger.Completed[techBasic.ID] = struct{}{}

	err := ledger.CompleteResearchWithRP(techAdvanced, now)
	if !apperrors.IsCode(err, apperrors.CodeInsufficientRP) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeInsufficientRP)
	}
	if ledger.RP != 500 {
		t.Fatalf("rp = %d, want 500 unchanged", ledger.RP)
	}
	if ledger.HasCompleted(techAdvanced.ID) {
		t.Fatal("tech must not be completed on failure")
	}
}

func TestCompleteResearchWithRPIsIndependentOfTimedTrack(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)
	ledger.RP = 1000
	ledger.Completed[techBasic.ID] = struct{}{}

	defense := catalog.TechDefinition{ID: "radar_network", Category: catalog.TechCategoryDefense, RPCost: 150, ResearchDurationSeconds: 600}
	if err := ledger.StartTimedResearch(defense, now); err != nil {
		t.Fatalf("start timed research: %v", err)
	}

	// Instant completion of a different tech leaves the timed job running.
	if err := ledger.CompleteResearchWithRP(techAdvanced, now); err != nil {
		t.Fatalf("complete with rp: %v", err)
	}
	if ledger.ActiveResearch == nil || ledger.ActiveResearch.TechID != defense.ID {
		t.Fatal("timed research job must survive instant completion of another tech")
	}
}

func TestCompleteResearchWithRPFoldsActiveSameTech(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)
	ledger.RP = 200
	if err := ledger.StartTimedResearch(techBasic, now); err != nil {
		t.Fatalf("start timed research: %v", err)
	}

	if err := ledger.CompleteResearchWithRP(techBasic, now); err != nil {
		t.Fatalf("complete with rp: %v", err)
	}
	if ledger.ActiveResearch != nil {
		t.Fatal("expected active research cleared")
	}
	if !ledger.HasCompleted(techBasic.ID) {
		t.Fatal("expected tech completed")
	}
}

func TestCompleteDueResearch(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)
	if err := ledger.StartTimedResearch(techBasic, now); err != nil {
		t.Fatalf("start research: %v", err)
	}

	if _, done := ledger.CompleteDueResearch(now.Add(599 * time.Second)); done {
		t.Fatal("research must not complete before its deadline")
	}

	techID, done := ledger.CompleteDueResearch(now.Add(600 * time.Second))
	if !done {
		t.Fatal("expected research completion")
	}
	if techID != techBasic.ID {
		t.Fatalf("completed tech = %q, want %q", techID, techBasic.ID)
	}
	if ledger.ActiveResearch != nil {
		t.Fatal("expected active research cleared")
	}

	// Sweeping again is a no-op.
	if _, done := ledger.CompleteDueResearch(now.Add(700 * time.Second)); done {
		t.Fatal("second sweep must be a no-op")
	}
}

func TestAvailableTechs(t *testing.T) {
	t.Parallel()

	c := catalog.Default()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)

	available := ledger.AvailableTechs(c)
	for _, tech := range available {
		if len(tech.PrerequisiteIDs) != 0 {
			t.Fatalf("tech %q with prerequisites must not be available on a fresh ledger", tech.ID)
		}
	}

	ledger.Completed["rocketry"] = struct{}{}
	ledger.Completed["guidance_systems"] = struct{}{}
	available = ledger.AvailableTechs(c)
	found := false
	for _, tech := range available {
		if tech.ID == "rocketry" {
			t.Fatal("completed tech must not be available")
		}
		if tech.ID == "fission_warheads" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected fission_warheads to become available")
	}
}

func TestCompletedSetAlwaysContainsPrerequisites(t *testing.T) {
	t.Parallel()

	c := catalog.Default()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)
	ledger.RP = 100000

	// Greedily complete whatever is available until nothing is left; the
	// prerequisite invariant must hold at every step.
	for {
		available := ledger.AvailableTechs(c)
		if len(available) == 0 {
			break
		}
		if err := ledger.CompleteResearchWithRP(available[0], now); err != nil {
			t.Fatalf("complete %q: %v", available[0].ID, err)
		}
		for completedID := range ledger.Completed {
			tech, ok := c.Tech(completedID)
			if !ok {
				t.Fatalf("completed unknown tech %q", completedID)
			}
			for _, prereq := range tech.PrerequisiteIDs {
				if !ledger.HasCompleted(prereq) {
					t.Fatalf("tech %q completed without prerequisite %q", completedID, prereq)
				}
			}
		}
	}
}

func TestAddRP(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := mustLedger(t, "player-1", now)

	if err := ledger.AddRP(0, now); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidAmount)
	}
	if err := ledger.AddRP(300, now); err != nil {
		t.Fatalf("add rp: %v", err)
	}
	if ledger.RP != 300 {
		t.Fatalf("rp = %d, want 300", ledger.RP)
	}
}
