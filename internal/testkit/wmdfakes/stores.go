// Package wmdfakes provides in-memory fakes for the WMD core's storage and
// roster interfaces. The Store fake honors version counters and the
// journal/outbox coupling, and serializes every call under one mutex, so
// service-level concurrency paths are testable without a database.
package wmdfakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/filter"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

// Store is an in-memory storage.Store fake for tests. Methods lock mu;
// tests touching the exported state directly must not race with them.
type Store struct {
	mu sync.Mutex

	Ledgers   map[string]storage.LedgerRecord
	Wallets   map[string]storage.Wallet
	Votes     map[string]storage.VoteRecord
	VoteOrder []string
	Missiles  map[string]storage.MissileRecord
	Batteries map[string]storage.BatteryRecord
	Events      []event.Event
	Outbox      map[uint64]storage.OutboxRow
	Memberships map[string]roster.Membership

	// Now stamps appended events; defaults to time.Now.
	Now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// NewStore constructs a Store fake with initialized state maps.
func NewStore() *Store {
	return &Store{
		Ledgers:   make(map[string]storage.LedgerRecord),
		Wallets:   make(map[string]storage.Wallet),
		Votes:     make(map[string]storage.VoteRecord),
		Missiles:  make(map[string]storage.MissileRecord),
		Batteries: make(map[string]storage.BatteryRecord),
		Outbox:      make(map[uint64]storage.OutboxRow),
		Memberships: make(map[string]roster.Membership),
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// appendEvents mirrors the transactional journal: contiguous sequence,
// chained hashes, one pending outbox row per event.
func (s *Store) appendEvents(events []event.Event) {
	prev := ""
	if len(s.Events) > 0 {
		prev = s.Events[len(s.Events)-1].ChainHash
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	for _, evt := range events {
		evt.Seq = uint64(len(s.Events)) + 1
		evt.CreatedAt = now
		evt.ChainHash = event.ChainHash(evt, prev)
		prev = evt.ChainHash
		s.Events = append(s.Events, evt)
		s.Outbox[evt.Seq] = storage.OutboxRow{
			Seq:           evt.Seq,
			EventType:     evt.Type,
			Status:        storage.OutboxStatusPending,
			NextAttemptAt: now,
			UpdatedAt:     now,
		}
	}
}

func copyLedger(record storage.LedgerRecord) storage.LedgerRecord {
	out := record
	out.Ledger.Completed = make(map[string]struct{}, len(record.Ledger.Completed))
	for id := range record.Ledger.Completed {
		out.Ledger.Completed[id] = struct{}{}
	}
	if record.Ledger.ActiveResearch != nil {
		active := *record.Ledger.ActiveResearch
		out.Ledger.ActiveResearch = &active
	}
	return out
}

func copyVote(record storage.VoteRecord) storage.VoteRecord {
	out := record
	out.Vote.For = make(map[string]struct{}, len(record.Vote.For))
	for id := range record.Vote.For {
		out.Vote.For[id] = struct{}{}
	}
	out.Vote.Against = make(map[string]struct{}, len(record.Vote.Against))
	for id := range record.Vote.Against {
		out.Vote.Against[id] = struct{}{}
	}
	if record.Vote.ResolvedAt != nil {
		t := *record.Vote.ResolvedAt
		out.Vote.ResolvedAt = &t
	}
	if record.Vote.ConsumedAt != nil {
		t := *record.Vote.ConsumedAt
		out.Vote.ConsumedAt = &t
	}
	return out
}

func copyMissile(record storage.MissileRecord) storage.MissileRecord {
	out := record
	if record.Missile.LaunchedAt != nil {
		t := *record.Missile.LaunchedAt
		out.Missile.LaunchedAt = &t
	}
	if record.Missile.ImpactAt != nil {
		t := *record.Missile.ImpactAt
		out.Missile.ImpactAt = &t
	}
	if record.Missile.ResolvedAt != nil {
		t := *record.Missile.ResolvedAt
		out.Missile.ResolvedAt = &t
	}
	return out
}

func copyBattery(record storage.BatteryRecord) storage.BatteryRecord {
	out := record
	if record.Battery.CooldownUntil != nil {
		t := *record.Battery.CooldownUntil
		out.Battery.CooldownUntil = &t
	}
	return out
}

func (s *Store) GetLedger(_ context.Context, playerID string) (storage.LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Ledgers[playerID]
	if !ok {
		return storage.LedgerRecord{}, storage.ErrNotFound
	}
	return copyLedger(record), nil
}

func (s *Store) CreateLedger(_ context.Context, ledger domain.Ledger, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Ledgers[ledger.PlayerID]; ok {
		return storage.ErrAlreadyExists
	}
	s.Ledgers[ledger.PlayerID] = copyLedger(storage.LedgerRecord{Ledger: ledger, Version: 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) UpdateLedger(_ context.Context, ledger domain.Ledger, expectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Ledgers[ledger.PlayerID]
	if !ok || record.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	s.Ledgers[ledger.PlayerID] = copyLedger(storage.LedgerRecord{Ledger: ledger, Version: expectedVersion + 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) DueResearch(_ context.Context, now time.Time, limit int) ([]storage.LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]storage.LedgerRecord, 0)
	for _, record := range s.Ledgers {
		active := record.Ledger.ActiveResearch
		if active == nil || active.CompletesAt.After(now) {
			continue
		}
		due = append(due, copyLedger(record))
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Ledger.ActiveResearch.CompletesAt.Before(due[j].Ledger.ActiveResearch.CompletesAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) GetWallet(_ context.Context, playerID string) (storage.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.Wallets[playerID]
	if !ok {
		return storage.Wallet{}, storage.ErrNotFound
	}
	return wallet, nil
}

func (s *Store) PutWallet(_ context.Context, wallet storage.Wallet, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putWallet(wallet, expectedVersion)
}

// putWallet is the lock-held wallet write shared with the combined
// asset+wallet operations.
func (s *Store) putWallet(wallet storage.Wallet, expectedVersion uint64) error {
	current, ok := s.Wallets[wallet.PlayerID]
	if expectedVersion == 0 {
		if ok {
			return storage.ErrAlreadyExists
		}
		wallet.Version = 1
		s.Wallets[wallet.PlayerID] = wallet
		return nil
	}
	if !ok || current.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	wallet.Version = expectedVersion + 1
	s.Wallets[wallet.PlayerID] = wallet
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (storage.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Votes[voteID]
	if !ok {
		return storage.VoteRecord{}, storage.ErrNotFound
	}
	return copyVote(record), nil
}

func (s *Store) CreateVote(_ context.Context, vote domain.Vote, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Votes {
		if existing.Vote.ClanID == vote.ClanID &&
			existing.Vote.Type == vote.Type &&
			existing.Vote.Status == domain.VoteStatusActive &&
			existing.Vote.Payload.DedupTerm() == vote.Payload.DedupTerm() {
			return storage.ErrDuplicateActiveVote
		}
	}
	s.Votes[vote.ID] = copyVote(storage.VoteRecord{Vote: vote, Version: 1})
	s.VoteOrder = append(s.VoteOrder, vote.ID)
	s.appendEvents(events)
	return nil
}

func (s *Store) UpdateVote(_ context.Context, vote domain.Vote, expectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Votes[vote.ID]
	if !ok || record.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	s.Votes[vote.ID] = copyVote(storage.VoteRecord{Vote: vote, Version: expectedVersion + 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) FindAuthorization(_ context.Context, clanID, warheadType string, resolvedAfter time.Time) (storage.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *storage.VoteRecord
	for id := range s.Votes {
		record := s.Votes[id]
		vote := record.Vote
		if vote.ClanID != clanID ||
			vote.Type != domain.VoteTypeLaunchAuthorization ||
			vote.Status != domain.VoteStatusPassed ||
			vote.Payload.DedupTerm() != warheadType ||
			vote.ConsumedAt != nil ||
			vote.ResolvedAt == nil ||
			!vote.ResolvedAt.After(resolvedAfter) {
			continue
		}
		if found == nil || vote.ResolvedAt.Before(*found.Vote.ResolvedAt) {
			copied := copyVote(record)
			found = &copied
		}
	}
	if found == nil {
		return storage.VoteRecord{}, storage.ErrNotFound
	}
	return *found, nil
}

func (s *Store) ListVotes(_ context.Context, query storage.VoteQuery) (storage.VotePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	condition, err := filter.ParseVoteFilter(query.Filter)
	if err != nil {
		return storage.VotePage{}, err
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := 0
	if query.PageToken != "" {
		offset, err = strconv.Atoi(query.PageToken)
		if err != nil {
			return storage.VotePage{}, fmt.Errorf("invalid page token")
		}
	}

	matched := make([]storage.VoteRecord, 0)
	for i := len(s.VoteOrder) - 1; i >= 0; i-- {
		record := s.Votes[s.VoteOrder[i]]
		if record.Vote.ClanID != query.ClanID {
			continue
		}
		if !voteMatchesFilter(record.Vote, condition) {
			continue
		}
		matched = append(matched, copyVote(record))
	}

	if offset > len(matched) {
		offset = len(matched)
	}
	page := matched[offset:]
	next := ""
	if len(page) > pageSize {
		page = page[:pageSize]
		next = strconv.Itoa(offset + pageSize)
	}
	return storage.VotePage{Votes: page, NextPageToken: next}, nil
}

// voteMatchesFilter evaluates the translated clause against one vote. Only
// the equality conjunctions service tests use are recognized.
func voteMatchesFilter(vote domain.Vote, condition filter.SQLCondition) bool {
	if strings.TrimSpace(condition.Clause) == "" {
		return true
	}
	fields := map[string]string{
		"status":      string(vote.Status),
		"vote_type":   string(vote.Type),
		"proposer_id": vote.ProposerID,
		"dedup_term":  vote.Payload.DedupTerm(),
	}
	// Clause params are positional; walk the recognized columns in clause
	// order and consume one param per marker.
	paramIndex := 0
	for _, column := range []string{"status", "vote_type", "proposer_id", "dedup_term"} {
		marker := column + " = ?"
		if !strings.Contains(condition.Clause, marker) {
			continue
		}
		if paramIndex >= len(condition.Params) {
			return false
		}
		want, ok := condition.Params[paramIndex].(string)
		paramIndex++
		if !ok {
			continue
		}
		if fields[column] != want {
			return false
		}
	}
	return true
}

func (s *Store) DueExpiries(_ context.Context, now time.Time, limit int) ([]storage.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]storage.VoteRecord, 0)
	for _, id := range s.VoteOrder {
		record := s.Votes[id]
		if record.Vote.Status != domain.VoteStatusActive || record.Vote.ExpiresAt.After(now) {
			continue
		}
		due = append(due, copyVote(record))
		if limit > 0 && len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (s *Store) GetMissile(_ context.Context, missileID string) (storage.MissileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Missiles[missileID]
	if !ok {
		return storage.MissileRecord{}, storage.ErrNotFound
	}
	return copyMissile(record), nil
}

func (s *Store) GetBattery(_ context.Context, batteryID string) (storage.BatteryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Batteries[batteryID]
	if !ok {
		return storage.BatteryRecord{}, storage.ErrNotFound
	}
	return copyBattery(record), nil
}

func (s *Store) ListMissiles(_ context.Context, ownerID string) ([]storage.MissileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]storage.MissileRecord, 0)
	for id := range s.Missiles {
		record := s.Missiles[id]
		if record.Missile.OwnerID == ownerID {
			result = append(result, copyMissile(record))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Missile.BuiltAt.Equal(result[j].Missile.BuiltAt) {
			return result[i].Missile.BuiltAt.Before(result[j].Missile.BuiltAt)
		}
		return result[i].Missile.ID < result[j].Missile.ID
	})
	return result, nil
}

func (s *Store) ListBatteries(_ context.Context, ownerID string) ([]storage.BatteryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]storage.BatteryRecord, 0)
	for id := range s.Batteries {
		record := s.Batteries[id]
		if record.Battery.OwnerID == ownerID {
			result = append(result, copyBattery(record))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Battery.DeployedAt.Equal(result[j].Battery.DeployedAt) {
			return result[i].Battery.DeployedAt.Before(result[j].Battery.DeployedAt)
		}
		return result[i].Battery.ID < result[j].Battery.ID
	})
	return result, nil
}

func (s *Store) CreateMissile(_ context.Context, missile domain.Missile, wallet storage.Wallet, walletExpectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putWallet(wallet, walletExpectedVersion); err != nil {
		return err
	}
	s.Missiles[missile.ID] = copyMissile(storage.MissileRecord{Missile: missile, Version: 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) CreateBattery(_ context.Context, battery domain.Battery, wallet storage.Wallet, walletExpectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putWallet(wallet, walletExpectedVersion); err != nil {
		return err
	}
	s.Batteries[battery.ID] = copyBattery(storage.BatteryRecord{Battery: battery, Version: 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) UpdateMissile(_ context.Context, missile domain.Missile, expectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Missiles[missile.ID]
	if !ok || record.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	s.Missiles[missile.ID] = copyMissile(storage.MissileRecord{Missile: missile, Version: expectedVersion + 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) UpdateBattery(_ context.Context, battery domain.Battery, expectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Batteries[battery.ID]
	if !ok || record.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	s.Batteries[battery.ID] = copyBattery(storage.BatteryRecord{Battery: battery, Version: expectedVersion + 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) UpdateBatteryAndWallet(_ context.Context, battery domain.Battery, expectedVersion uint64, wallet storage.Wallet, walletExpectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Batteries[battery.ID]
	if !ok || record.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	if err := s.putWallet(wallet, walletExpectedVersion); err != nil {
		return err
	}
	s.Batteries[battery.ID] = copyBattery(storage.BatteryRecord{Battery: battery, Version: expectedVersion + 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) UpdateMissileAndBattery(_ context.Context, missile domain.Missile, missileExpectedVersion uint64, battery domain.Battery, batteryExpectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	missileRecord, ok := s.Missiles[missile.ID]
	if !ok || missileRecord.Version != missileExpectedVersion {
		return storage.ErrVersionConflict
	}
	batteryRecord, ok := s.Batteries[battery.ID]
	if !ok || batteryRecord.Version != batteryExpectedVersion {
		return storage.ErrVersionConflict
	}
	s.Missiles[missile.ID] = copyMissile(storage.MissileRecord{Missile: missile, Version: missileExpectedVersion + 1})
	s.Batteries[battery.ID] = copyBattery(storage.BatteryRecord{Battery: battery, Version: batteryExpectedVersion + 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) LaunchWithAuthorization(_ context.Context, missile domain.Missile, missileExpectedVersion uint64, vote domain.Vote, voteExpectedVersion uint64, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	missileRecord, ok := s.Missiles[missile.ID]
	if !ok || missileRecord.Version != missileExpectedVersion {
		return storage.ErrVersionConflict
	}
	voteRecord, ok := s.Votes[vote.ID]
	if !ok || voteRecord.Version != voteExpectedVersion || voteRecord.Vote.ConsumedAt != nil {
		return storage.ErrVersionConflict
	}
	s.Missiles[missile.ID] = copyMissile(storage.MissileRecord{Missile: missile, Version: missileExpectedVersion + 1})
	s.Votes[vote.ID] = copyVote(storage.VoteRecord{Vote: vote, Version: voteExpectedVersion + 1})
	s.appendEvents(events)
	return nil
}

func (s *Store) DeleteBattery(_ context.Context, batteryID string, events []event.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Batteries[batteryID]; !ok {
		return false, nil
	}
	delete(s.Batteries, batteryID)
	s.appendEvents(events)
	return true, nil
}

func (s *Store) DueImpacts(_ context.Context, now time.Time, limit int) ([]storage.MissileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]storage.MissileRecord, 0)
	for id := range s.Missiles {
		record := s.Missiles[id]
		if record.Missile.Status != domain.MissileStatusLaunched {
			continue
		}
		if record.Missile.ImpactAt == nil || record.Missile.ImpactAt.After(now) {
			continue
		}
		due = append(due, copyMissile(record))
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Missile.ImpactAt.Before(*due[j].Missile.ImpactAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ListEvents(_ context.Context, query storage.EventQuery) (storage.EventPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := filter.ParseEventFilter(query.Filter); err != nil {
		return storage.EventPage{}, err
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	afterSeq := uint64(0)
	if query.PageToken != "" {
		parsed, err := strconv.ParseUint(query.PageToken, 10, 64)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("invalid page token")
		}
		afterSeq = parsed
	}

	page := storage.EventPage{Events: make([]event.Event, 0)}
	for _, evt := range s.Events {
		if evt.Seq <= afterSeq {
			continue
		}
		page.Events = append(page.Events, evt)
		if len(page.Events) > pageSize {
			page.Events = page.Events[:pageSize]
			page.NextPageToken = strconv.FormatUint(page.Events[pageSize-1].Seq, 10)
			break
		}
	}
	return page, nil
}

func (s *Store) LeaseDueOutbox(_ context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]storage.LeasedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	if leaseTTL <= 0 {
		leaseTTL = time.Minute
	}
	leased := make([]storage.LeasedEvent, 0)
	for _, evt := range s.Events {
		row, ok := s.Outbox[evt.Seq]
		if !ok {
			continue
		}
		due := false
		switch row.Status {
		case storage.OutboxStatusPending, storage.OutboxStatusFailed:
			due = !row.NextAttemptAt.After(now)
		case storage.OutboxStatusProcessing:
			due = !row.LeaseExpiresAt.After(now)
		}
		if !due {
			continue
		}
		row.Status = storage.OutboxStatusProcessing
		row.AttemptCount++
		row.LeaseExpiresAt = now.Add(leaseTTL)
		row.UpdatedAt = now
		s.Outbox[evt.Seq] = row
		leased = append(leased, storage.LeasedEvent{Row: row, Event: evt})
		if len(leased) >= limit {
			break
		}
	}
	return leased, nil
}

func (s *Store) AckOutbox(_ context.Context, seq uint64, outcome storage.OutboxOutcome, nextAttemptAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.Outbox[seq]
	if !ok {
		return storage.ErrNotFound
	}
	switch outcome {
	case storage.OutboxOutcomeSucceeded:
		row.Status = storage.OutboxStatusSucceeded
	case storage.OutboxOutcomeRetry:
		row.Status = storage.OutboxStatusFailed
		row.NextAttemptAt = nextAttemptAt
	case storage.OutboxOutcomeDead:
		row.Status = storage.OutboxStatusDead
	}
	row.LeaseExpiresAt = time.Time{}
	row.LastError = lastError
	s.Outbox[seq] = row
	return nil
}

func membershipKey(clanID, playerID string) string {
	return clanID + ":" + playerID
}

func (s *Store) Member(_ context.Context, clanID, playerID string) (roster.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.Memberships[membershipKey(clanID, playerID)]
	if !ok {
		return roster.Membership{}, roster.ErrNoMembership
	}
	return member, nil
}

func (s *Store) Members(_ context.Context, clanID string) ([]roster.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]roster.Membership, 0)
	for _, member := range s.Memberships {
		if member.ClanID == clanID {
			result = append(result, member)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].JoinedAt.Equal(result[j].JoinedAt) {
			return result[i].JoinedAt.Before(result[j].JoinedAt)
		}
		return result[i].PlayerID < result[j].PlayerID
	})
	return result, nil
}

func (s *Store) MemberOf(_ context.Context, playerID string) (roster.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, member := range s.Memberships {
		if member.PlayerID == playerID {
			return member, nil
		}
	}
	return roster.Membership{}, roster.ErrNoMembership
}

func (s *Store) PutMembership(_ context.Context, membership roster.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memberships[membershipKey(membership.ClanID, membership.PlayerID)] = membership
	return nil
}

func (s *Store) RemoveMembership(_ context.Context, clanID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Memberships, membershipKey(clanID, playerID))
	return nil
}
