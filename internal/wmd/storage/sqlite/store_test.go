package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "wmd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func mustEvent(t *testing.T, eventType event.Type, actorID, clanID, entityID string) event.Event {
	t.Helper()
	evt, err := event.New(eventType, actorID, clanID, entityID, map[string]string{"entity": entityID})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	return evt
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestLedgerRoundTripAndVersionConflict(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	ledger := domain.Ledger{
		PlayerID:  "p1",
		RP:        500,
		Completed: map[string]struct{}{"rocketry": {}},
		ActiveResearch: &domain.ActiveResearch{
			TechID:      "guidance_systems",
			StartedAt:   now,
			CompletesAt: now.Add(time.Hour),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateLedger(ctx, ledger, nil); err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	if err := store.CreateLedger(ctx, ledger, nil); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create = %v, want ErrAlreadyExists", err)
	}

	got, err := store.GetLedger(ctx, "p1")
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}
	if got.Ledger.RP != 500 {
		t.Fatalf("rp = %d, want 500", got.Ledger.RP)
	}
	if !got.Ledger.HasCompleted("rocketry") {
		t.Fatal("expected rocketry completed")
	}
	if got.Ledger.ActiveResearch == nil || got.Ledger.ActiveResearch.TechID != "guidance_systems" {
		t.Fatalf("active research = %+v", got.Ledger.ActiveResearch)
	}

	updated := got.Ledger
	updated.RP = 300
	updated.UpdatedAt = now.Add(time.Minute)
	if err := store.UpdateLedger(ctx, updated, 99, nil); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale update = %v, want ErrVersionConflict", err)
	}
	if err := store.UpdateLedger(ctx, updated, 1, nil); err != nil {
		t.Fatalf("update ledger: %v", err)
	}

	got, err = store.GetLedger(ctx, "p1")
	if err != nil {
		t.Fatalf("get ledger after update: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}
	if got.Ledger.RP != 300 {
		t.Fatalf("rp = %d, want 300", got.Ledger.RP)
	}

	if _, err := store.GetLedger(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing ledger = %v, want ErrNotFound", err)
	}
}

func TestDueResearchSelectsPastDeadlines(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	due := domain.Ledger{
		PlayerID:  "due",
		Completed: map[string]struct{}{},
		ActiveResearch: &domain.ActiveResearch{
			TechID:      "rocketry",
			StartedAt:   now.Add(-2 * time.Hour),
			CompletesAt: now.Add(-time.Minute),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	pending := domain.Ledger{
		PlayerID:  "pending",
		Completed: map[string]struct{}{},
		ActiveResearch: &domain.ActiveResearch{
			TechID:      "rocketry",
			StartedAt:   now,
			CompletesAt: now.Add(time.Hour),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	idle := domain.Ledger{PlayerID: "idle", Completed: map[string]struct{}{}, CreatedAt: now, UpdatedAt: now}
	for _, ledger := range []domain.Ledger{due, pending, idle} {
		if err := store.CreateLedger(ctx, ledger, nil); err != nil {
			t.Fatalf("create ledger %s: %v", ledger.PlayerID, err)
		}
	}

	records, err := store.DueResearch(ctx, now, 10)
	if err != nil {
		t.Fatalf("due research: %v", err)
	}
	if len(records) != 1 || records[0].Ledger.PlayerID != "due" {
		t.Fatalf("due research records = %+v, want exactly player due", records)
	}
}

func TestWalletInsertAndConditionalUpdate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 11, 8, 0, 0, 0, time.UTC)

	wallet := storage.Wallet{PlayerID: "p1", Resources: 1000, UpdatedAt: now}
	if err := store.PutWallet(ctx, wallet, 0); err != nil {
		t.Fatalf("insert wallet: %v", err)
	}
	if err := store.PutWallet(ctx, wallet, 0); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate insert = %v, want ErrAlreadyExists", err)
	}

	wallet.Resources = 400
	if err := store.PutWallet(ctx, wallet, 2); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale update = %v, want ErrVersionConflict", err)
	}
	if err := store.PutWallet(ctx, wallet, 1); err != nil {
		t.Fatalf("update wallet: %v", err)
	}

	got, err := store.GetWallet(ctx, "p1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if got.Resources != 400 || got.Version != 2 {
		t.Fatalf("wallet = %+v, want resources 400 version 2", got)
	}
}

func launchVoteFixture(voteID, clanID string, now time.Time) domain.Vote {
	return domain.Vote{
		ID:         voteID,
		ClanID:     clanID,
		Type:       domain.VoteTypeLaunchAuthorization,
		ProposerID: "leader",
		Payload: domain.VotePayload{Launch: &domain.LaunchAuthorizationPayload{
			WarheadType: "thermonuclear",
		}},
		For:           map[string]struct{}{},
		Against:       map[string]struct{}{},
		RequiredVotes: 2,
		Status:        domain.VoteStatusActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(24 * time.Hour),
	}
}

func TestVoteRoundTripPersistsBallots(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)

	vote := launchVoteFixture("v1", "clan-1", now)
	if err := store.CreateVote(ctx, vote, nil); err != nil {
		t.Fatalf("create vote: %v", err)
	}

	vote.For["leader"] = struct{}{}
	vote.Against["skeptic"] = struct{}{}
	if err := store.UpdateVote(ctx, vote, 1, nil); err != nil {
		t.Fatalf("update vote: %v", err)
	}

	got, err := store.GetVote(ctx, "v1")
	if err != nil {
		t.Fatalf("get vote: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}
	if _, ok := got.Vote.For["leader"]; !ok {
		t.Fatal("expected leader in for set")
	}
	if _, ok := got.Vote.Against["skeptic"]; !ok {
		t.Fatal("expected skeptic in against set")
	}
	if got.Vote.Payload.Launch == nil || got.Vote.Payload.Launch.WarheadType != "thermonuclear" {
		t.Fatalf("payload = %+v", got.Vote.Payload)
	}

	if err := store.UpdateVote(ctx, vote, 1, nil); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale update = %v, want ErrVersionConflict", err)
	}
}

func TestCreateVoteRejectsDuplicateActiveProposal(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 12, 11, 0, 0, 0, time.UTC)

	first := launchVoteFixture("v1", "clan-1", now)
	if err := store.CreateVote(ctx, first, nil); err != nil {
		t.Fatalf("create first vote: %v", err)
	}

	second := launchVoteFixture("v2", "clan-1", now.Add(time.Minute))
	if err := store.CreateVote(ctx, second, nil); !errors.Is(err, storage.ErrDuplicateActiveVote) {
		t.Fatalf("duplicate active = %v, want ErrDuplicateActiveVote", err)
	}

	// A terminal vote frees the dedup slot.
	resolvedAt := now.Add(time.Hour)
	first.Status = domain.VoteStatusPassed
	first.ResolvedAt = &resolvedAt
	if err := store.UpdateVote(ctx, first, 1, nil); err != nil {
		t.Fatalf("resolve first vote: %v", err)
	}
	if err := store.CreateVote(ctx, second, nil); err != nil {
		t.Fatalf("create after resolution: %v", err)
	}

	other := launchVoteFixture("v3", "clan-2", now)
	if err := store.CreateVote(ctx, other, nil); err != nil {
		t.Fatalf("create in other clan: %v", err)
	}
}

func TestFindAuthorization(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 13, 9, 0, 0, 0, time.UTC)

	vote := launchVoteFixture("v1", "clan-1", now)
	if err := store.CreateVote(ctx, vote, nil); err != nil {
		t.Fatalf("create vote: %v", err)
	}
	resolvedAt := now.Add(30 * time.Minute)
	vote.Status = domain.VoteStatusPassed
	vote.ResolvedAt = &resolvedAt
	if err := store.UpdateVote(ctx, vote, 1, nil); err != nil {
		t.Fatalf("pass vote: %v", err)
	}

	got, err := store.FindAuthorization(ctx, "clan-1", "thermonuclear", now)
	if err != nil {
		t.Fatalf("find authorization: %v", err)
	}
	if got.Vote.ID != "v1" {
		t.Fatalf("authorization = %q, want v1", got.Vote.ID)
	}

	// Cutoff after resolution ages the authorization out.
	if _, err := store.FindAuthorization(ctx, "clan-1", "thermonuclear", resolvedAt.Add(time.Second)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("aged authorization = %v, want ErrNotFound", err)
	}
	if _, err := store.FindAuthorization(ctx, "clan-1", "fission", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("wrong warhead = %v, want ErrNotFound", err)
	}

	consumedAt := resolvedAt.Add(time.Minute)
	vote.ConsumedAt = &consumedAt
	vote.ConsumedBy = "m1"
	if err := store.UpdateVote(ctx, vote, 2, nil); err != nil {
		t.Fatalf("consume vote: %v", err)
	}
	if _, err := store.FindAuthorization(ctx, "clan-1", "thermonuclear", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("consumed authorization = %v, want ErrNotFound", err)
	}
}

func TestListVotesPaginatesNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

	ids := []string{"v1", "v2", "v3"}
	for i, id := range ids {
		vote := launchVoteFixture(id, "clan-1", now.Add(time.Duration(i)*time.Minute))
		// Distinct dedup terms keep all three ACTIVE at once.
		vote.Payload.Launch.WarheadType = "warhead-" + id
		if err := store.CreateVote(ctx, vote, nil); err != nil {
			t.Fatalf("create vote %s: %v", id, err)
		}
	}

	page, err := store.ListVotes(ctx, storage.VoteQuery{ClanID: "clan-1", PageSize: 2})
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(page.Votes) != 2 || page.Votes[0].Vote.ID != "v3" || page.Votes[1].Vote.ID != "v2" {
		t.Fatalf("first page = %+v, want v3 then v2", page.Votes)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected next page token")
	}

	rest, err := store.ListVotes(ctx, storage.VoteQuery{ClanID: "clan-1", PageSize: 2, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list votes page 2: %v", err)
	}
	if len(rest.Votes) != 1 || rest.Votes[0].Vote.ID != "v1" {
		t.Fatalf("second page = %+v, want v1", rest.Votes)
	}
	if rest.NextPageToken != "" {
		t.Fatalf("unexpected token %q on final page", rest.NextPageToken)
	}

	filtered, err := store.ListVotes(ctx, storage.VoteQuery{
		ClanID:   "clan-1",
		Filter:   `warhead_type = "warhead-v2"`,
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list filtered votes: %v", err)
	}
	if len(filtered.Votes) != 1 || filtered.Votes[0].Vote.ID != "v2" {
		t.Fatalf("filtered votes = %+v, want only v2", filtered.Votes)
	}

	if _, err := store.ListVotes(ctx, storage.VoteQuery{ClanID: "clan-1", PageToken: "bogus"}); err == nil {
		t.Fatal("expected invalid page token error")
	}
}

func TestDueExpiriesSelectsClosedWindows(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

	expired := launchVoteFixture("v1", "clan-1", now.Add(-48*time.Hour))
	open := launchVoteFixture("v2", "clan-2", now)
	if err := store.CreateVote(ctx, expired, nil); err != nil {
		t.Fatalf("create expired vote: %v", err)
	}
	if err := store.CreateVote(ctx, open, nil); err != nil {
		t.Fatalf("create open vote: %v", err)
	}

	records, err := store.DueExpiries(ctx, now, 10)
	if err != nil {
		t.Fatalf("due expiries: %v", err)
	}
	if len(records) != 1 || records[0].Vote.ID != "v1" {
		t.Fatalf("due expiries = %+v, want only v1", records)
	}
}

func missileFixture(missileID, ownerID string, now time.Time) domain.Missile {
	return domain.Missile{
		ID:             missileID,
		OwnerID:        ownerID,
		WarheadType:    "thermonuclear",
		Status:         domain.MissileStatusReady,
		TargetPlayerID: "enemy",
		Target:         domain.Coordinates{X: 12, Y: -7},
		BuiltAt:        now,
	}
}

func TestCreateMissileDebitRollsBackTogether(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)

	if err := store.PutWallet(ctx, storage.Wallet{PlayerID: "p1", Resources: 1000, UpdatedAt: now}, 0); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	missile := missileFixture("m1", "p1", now)
	debited := storage.Wallet{PlayerID: "p1", Resources: 200, UpdatedAt: now}
	if err := store.CreateMissile(ctx, missile, debited, 9, nil); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale wallet debit = %v, want ErrVersionConflict", err)
	}
	if _, err := store.GetMissile(ctx, "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missile after rollback = %v, want ErrNotFound", err)
	}

	if err := store.CreateMissile(ctx, missile, debited, 1, nil); err != nil {
		t.Fatalf("create missile: %v", err)
	}
	got, err := store.GetMissile(ctx, "m1")
	if err != nil {
		t.Fatalf("get missile: %v", err)
	}
	if got.Missile.Target != (domain.Coordinates{X: 12, Y: -7}) {
		t.Fatalf("target = %+v", got.Missile.Target)
	}
	wallet, err := store.GetWallet(ctx, "p1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.Resources != 200 || wallet.Version != 2 {
		t.Fatalf("wallet = %+v, want resources 200 version 2", wallet)
	}
}

func TestLaunchWithAuthorizationConsumesVoteOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 17, 9, 0, 0, 0, time.UTC)

	vote := launchVoteFixture("v1", "clan-1", now)
	if err := store.CreateVote(ctx, vote, nil); err != nil {
		t.Fatalf("create vote: %v", err)
	}
	resolvedAt := now.Add(10 * time.Minute)
	vote.Status = domain.VoteStatusPassed
	vote.ResolvedAt = &resolvedAt
	if err := store.UpdateVote(ctx, vote, 1, nil); err != nil {
		t.Fatalf("pass vote: %v", err)
	}

	if err := store.PutWallet(ctx, storage.Wallet{PlayerID: "p1", Resources: 500, UpdatedAt: now}, 0); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	for _, id := range []string{"m1", "m2"} {
		missile := missileFixture(id, "p1", now)
		wallet, err := store.GetWallet(ctx, "p1")
		if err != nil {
			t.Fatalf("get wallet: %v", err)
		}
		wallet.Resources -= 100
		if err := store.CreateMissile(ctx, missile, wallet, wallet.Version, nil); err != nil {
			t.Fatalf("create missile %s: %v", id, err)
		}
	}

	launchedAt := resolvedAt.Add(5 * time.Minute)
	impactAt := launchedAt.Add(30 * time.Minute)
	consumedAt := launchedAt
	launched := missileFixture("m1", "p1", now)
	launched.Status = domain.MissileStatusLaunched
	launched.AuthVoteID = "v1"
	launched.LaunchedAt = &launchedAt
	launched.ImpactAt = &impactAt
	vote.ConsumedAt = &consumedAt
	vote.ConsumedBy = "p1"
	if err := store.LaunchWithAuthorization(ctx, launched, 1, vote, 2, nil); err != nil {
		t.Fatalf("launch with authorization: %v", err)
	}

	gotVote, err := store.GetVote(ctx, "v1")
	if err != nil {
		t.Fatalf("get vote: %v", err)
	}
	if gotVote.Vote.ConsumedAt == nil || gotVote.Vote.ConsumedBy != "p1" {
		t.Fatalf("vote not consumed: %+v", gotVote.Vote)
	}

	// A second launch against the same authorization loses the version race
	// and leaves the second missile READY.
	second := missileFixture("m2", "p1", now)
	second.Status = domain.MissileStatusLaunched
	second.AuthVoteID = "v1"
	second.LaunchedAt = &launchedAt
	second.ImpactAt = &impactAt
	if err := store.LaunchWithAuthorization(ctx, second, 1, vote, 2, nil); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("second launch = %v, want ErrVersionConflict", err)
	}
	gotSecond, err := store.GetMissile(ctx, "m2")
	if err != nil {
		t.Fatalf("get second missile: %v", err)
	}
	if gotSecond.Missile.Status != domain.MissileStatusReady {
		t.Fatalf("second missile status = %s, want READY", gotSecond.Missile.Status)
	}
}

func TestDeleteBatteryIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 18, 9, 0, 0, 0, time.UTC)

	if err := store.PutWallet(ctx, storage.Wallet{PlayerID: "p1", Resources: 900, UpdatedAt: now}, 0); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	battery := domain.Battery{
		ID:         "b1",
		OwnerID:    "p1",
		Type:       "interceptor_battery",
		Status:     domain.BatteryStatusIdle,
		HP:         100,
		DeployedAt: now,
		UpdatedAt:  now,
	}
	if err := store.CreateBattery(ctx, battery, storage.Wallet{PlayerID: "p1", Resources: 600, UpdatedAt: now}, 1, nil); err != nil {
		t.Fatalf("create battery: %v", err)
	}

	deleted, err := store.DeleteBattery(ctx, "b1", nil)
	if err != nil {
		t.Fatalf("delete battery: %v", err)
	}
	if !deleted {
		t.Fatal("expected first delete to report true")
	}
	deleted, err = store.DeleteBattery(ctx, "b1", nil)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("expected second delete to report false")
	}
	if _, err := store.GetBattery(ctx, "b1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("battery after delete = %v, want ErrNotFound", err)
	}
}

func TestDueImpactsSelectsOverdueFlights(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 19, 9, 0, 0, 0, time.UTC)

	if err := store.PutWallet(ctx, storage.Wallet{PlayerID: "p1", Resources: 1000, UpdatedAt: now}, 0); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	launchedAt := now.Add(-time.Hour)
	overdueImpact := now.Add(-time.Minute)
	futureImpact := now.Add(time.Hour)

	overdue := missileFixture("m1", "p1", now.Add(-2*time.Hour))
	overdue.Status = domain.MissileStatusLaunched
	overdue.LaunchedAt = &launchedAt
	overdue.ImpactAt = &overdueImpact

	inFlight := missileFixture("m2", "p1", now.Add(-2*time.Hour))
	inFlight.Status = domain.MissileStatusLaunched
	inFlight.LaunchedAt = &launchedAt
	inFlight.ImpactAt = &futureImpact

	ready := missileFixture("m3", "p1", now)

	version := uint64(1)
	for _, missile := range []domain.Missile{overdue, inFlight, ready} {
		wallet := storage.Wallet{PlayerID: "p1", Resources: 1000 - 100*uint(version), UpdatedAt: now}
		if err := store.CreateMissile(ctx, missile, wallet, version, nil); err != nil {
			t.Fatalf("create missile %s: %v", missile.ID, err)
		}
		version++
	}

	records, err := store.DueImpacts(ctx, now, 10)
	if err != nil {
		t.Fatalf("due impacts: %v", err)
	}
	if len(records) != 1 || records[0].Missile.ID != "m1" {
		t.Fatalf("due impacts = %+v, want only m1", records)
	}
}

func TestEventJournalChainsAndPages(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 20, 9, 0, 0, 0, time.UTC)

	ledger := domain.Ledger{PlayerID: "p1", Completed: map[string]struct{}{}, CreatedAt: now, UpdatedAt: now}
	events := []event.Event{
		mustEvent(t, event.TypeResearchStarted, "p1", "clan-1", "rocketry"),
		mustEvent(t, event.TypeResearchCompleted, "p1", "clan-1", "rocketry"),
	}
	if err := store.CreateLedger(ctx, ledger, events[:1]); err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	updated := ledger
	updated.Completed["rocketry"] = struct{}{}
	if err := store.UpdateLedger(ctx, updated, 1, events[1:]); err != nil {
		t.Fatalf("update ledger: %v", err)
	}

	page, err := store.ListEvents(ctx, storage.EventQuery{PageSize: 1})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Seq != 1 {
		t.Fatalf("first page = %+v, want seq 1", page.Events)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected next page token")
	}
	rest, err := store.ListEvents(ctx, storage.EventQuery{PageSize: 10, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list events page 2: %v", err)
	}
	if len(rest.Events) != 1 || rest.Events[0].Seq != 2 {
		t.Fatalf("second page = %+v, want seq 2", rest.Events)
	}

	all, err := store.ListEvents(ctx, storage.EventQuery{PageSize: 10})
	if err != nil {
		t.Fatalf("list all events: %v", err)
	}
	if broken := event.VerifyChain(all.Events); broken != 0 {
		t.Fatalf("chain broken at seq %d", broken)
	}

	filtered, err := store.ListEvents(ctx, storage.EventQuery{
		Filter:   `event_type = "research.completed"`,
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list filtered events: %v", err)
	}
	if len(filtered.Events) != 1 || filtered.Events[0].Type != event.TypeResearchCompleted {
		t.Fatalf("filtered events = %+v", filtered.Events)
	}
}

func TestOutboxLeaseAndAckCycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 21, 9, 0, 0, 0, time.UTC)

	ledger := domain.Ledger{PlayerID: "p1", Completed: map[string]struct{}{}, CreatedAt: now, UpdatedAt: now}
	evt := mustEvent(t, event.TypeResearchStarted, "p1", "clan-1", "rocketry")
	evt.CreatedAt = now
	if err := store.CreateLedger(ctx, ledger, []event.Event{evt}); err != nil {
		t.Fatalf("create ledger: %v", err)
	}

	leased, err := store.LeaseDueOutbox(ctx, now.Add(time.Second), time.Minute, 10)
	if err != nil {
		t.Fatalf("lease outbox: %v", err)
	}
	if len(leased) != 1 {
		t.Fatalf("leased %d rows, want 1", len(leased))
	}
	if leased[0].Row.Status != storage.OutboxStatusProcessing || leased[0].Row.AttemptCount != 1 {
		t.Fatalf("leased row = %+v", leased[0].Row)
	}
	if leased[0].Event.Type != event.TypeResearchStarted {
		t.Fatalf("leased event type = %s", leased[0].Event.Type)
	}

	// A processing row with a live lease is not claimable.
	again, err := store.LeaseDueOutbox(ctx, now.Add(2*time.Second), time.Minute, 10)
	if err != nil {
		t.Fatalf("second lease: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("leased %d rows under live lease, want 0", len(again))
	}

	// An expired lease makes the row claimable again.
	expired, err := store.LeaseDueOutbox(ctx, now.Add(2*time.Minute), time.Minute, 10)
	if err != nil {
		t.Fatalf("expired lease claim: %v", err)
	}
	if len(expired) != 1 || expired[0].Row.AttemptCount != 2 {
		t.Fatalf("expired lease rows = %+v, want one row on attempt 2", expired)
	}

	// Retry outcome schedules a future attempt.
	retryAt := now.Add(10 * time.Minute)
	if err := store.AckOutbox(ctx, expired[0].Row.Seq, storage.OutboxOutcomeRetry, retryAt, "sink unavailable"); err != nil {
		t.Fatalf("ack retry: %v", err)
	}
	if rows, err := store.LeaseDueOutbox(ctx, retryAt.Add(-time.Second), time.Minute, 10); err != nil || len(rows) != 0 {
		t.Fatalf("before retry window: rows=%d err=%v, want none", len(rows), err)
	}
	due, err := store.LeaseDueOutbox(ctx, retryAt.Add(time.Second), time.Minute, 10)
	if err != nil {
		t.Fatalf("lease after retry window: %v", err)
	}
	if len(due) != 1 || due[0].Row.LastError != "sink unavailable" {
		t.Fatalf("retried rows = %+v", due)
	}

	if err := store.AckOutbox(ctx, due[0].Row.Seq, storage.OutboxOutcomeSucceeded, retryAt, ""); err != nil {
		t.Fatalf("ack success: %v", err)
	}
	if rows, err := store.LeaseDueOutbox(ctx, now.Add(24*time.Hour), time.Minute, 10); err != nil || len(rows) != 0 {
		t.Fatalf("after success: rows=%d err=%v, want none", len(rows), err)
	}

	if err := store.AckOutbox(ctx, 999, storage.OutboxOutcomeSucceeded, now, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ack missing row = %v, want ErrNotFound", err)
	}
}

func TestRosterMembership(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 22, 9, 0, 0, 0, time.UTC)

	members := []roster.Membership{
		{ClanID: "clan-1", PlayerID: "leader", Role: roster.RoleLeader, JoinedAt: now},
		{ClanID: "clan-1", PlayerID: "scout", Role: roster.RoleMember, JoinedAt: now.Add(time.Minute)},
	}
	for _, membership := range members {
		if err := store.PutMembership(ctx, membership); err != nil {
			t.Fatalf("put membership %s: %v", membership.PlayerID, err)
		}
	}

	got, err := store.Member(ctx, "clan-1", "leader")
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if got.Role != roster.RoleLeader {
		t.Fatalf("role = %s, want LEADER", got.Role)
	}

	all, err := store.Members(ctx, "clan-1")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("roster size = %d, want 2", len(all))
	}

	home, err := store.MemberOf(ctx, "scout")
	if err != nil {
		t.Fatalf("member of: %v", err)
	}
	if home.ClanID != "clan-1" {
		t.Fatalf("clan = %s, want clan-1", home.ClanID)
	}

	// Promotion updates the existing row.
	promoted := members[1]
	promoted.Role = roster.RoleCoLeader
	if err := store.PutMembership(ctx, promoted); err != nil {
		t.Fatalf("promote: %v", err)
	}
	got, err = store.Member(ctx, "clan-1", "scout")
	if err != nil {
		t.Fatalf("member after promotion: %v", err)
	}
	if got.Role != roster.RoleCoLeader {
		t.Fatalf("role = %s, want CO_LEADER", got.Role)
	}

	if err := store.RemoveMembership(ctx, "clan-1", "scout"); err != nil {
		t.Fatalf("remove membership: %v", err)
	}
	if _, err := store.Member(ctx, "clan-1", "scout"); !errors.Is(err, roster.ErrNoMembership) {
		t.Fatalf("removed member = %v, want ErrNoMembership", err)
	}
	if err := store.RemoveMembership(ctx, "clan-1", "scout"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}
