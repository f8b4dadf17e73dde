// Package storage defines persistence contracts for the WMD core.
//
// Every mutable record carries a version counter. Mutations are conditional
// on the caller's expected version; a mismatch returns ErrVersionConflict
// and applies nothing. Mutating operations accept the journal events that
// belong to the state change and must commit record, events, and outbox rows
// in one transaction.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates a conditional update lost a concurrent race.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrDuplicateActiveVote indicates an ACTIVE vote already exists for the
	// clan's (vote type, dedup term) key.
	ErrDuplicateActiveVote = errors.New("active vote already exists for proposal")
	// ErrDuplicateBallot indicates the member already has a ballot row on the
	// vote. The domain check catches this first; the store-level unique index
	// is the backstop under concurrent casts.
	ErrDuplicateBallot = errors.New("ballot already recorded for member")
)

// LedgerRecord is a stored research ledger with its version counter.
type LedgerRecord struct {
	Ledger  domain.Ledger
	Version uint64
}

// VoteRecord is a stored clan vote with its version counter.
type VoteRecord struct {
	Vote    domain.Vote
	Version uint64
}

// MissileRecord is a stored missile with its version counter.
type MissileRecord struct {
	Missile domain.Missile
	Version uint64
}

// BatteryRecord is a stored defense battery with its version counter.
type BatteryRecord struct {
	Battery domain.Battery
	Version uint64
}

// Wallet is a player's spendable resource balance.
type Wallet struct {
	PlayerID  string
	Resources uint
	Version   uint64
	UpdatedAt time.Time
}

// LedgerStore persists research ledgers.
type LedgerStore interface {
	// GetLedger returns one ledger, or ErrNotFound.
	GetLedger(ctx context.Context, playerID string) (LedgerRecord, error)
	// CreateLedger inserts a new ledger at version 1.
	CreateLedger(ctx context.Context, ledger domain.Ledger, events []event.Event) error
	// UpdateLedger applies a conditional update.
	UpdateLedger(ctx context.Context, ledger domain.Ledger, expectedVersion uint64, events []event.Event) error
	// DueResearch returns up to limit ledgers whose active research deadline
	// has passed.
	DueResearch(ctx context.Context, now time.Time, limit int) ([]LedgerRecord, error)
}

// WalletStore persists player resource balances.
type WalletStore interface {
	// GetWallet returns one wallet, or ErrNotFound.
	GetWallet(ctx context.Context, playerID string) (Wallet, error)
	// PutWallet inserts (expectedVersion 0) or conditionally updates a wallet.
	PutWallet(ctx context.Context, wallet Wallet, expectedVersion uint64) error
}

// VoteQuery selects a page of votes for a clan.
type VoteQuery struct {
	ClanID string
	// Filter is an AIP-160 expression over status, vote_type, proposer_id,
	// and warhead_type. Empty selects everything.
	Filter    string
	PageSize  int
	PageToken string
}

// VotePage is one page of vote records ordered by creation.
type VotePage struct {
	Votes         []VoteRecord
	NextPageToken string
}

// VoteStore persists clan votes and their ballots.
type VoteStore interface {
	// GetVote returns one vote with its ballots, or ErrNotFound.
	GetVote(ctx context.Context, voteID string) (VoteRecord, error)
	// CreateVote inserts an ACTIVE vote; ErrDuplicateActiveVote when the
	// clan already has an ACTIVE vote for the same (type, dedup term).
	CreateVote(ctx context.Context, vote domain.Vote, events []event.Event) error
	// UpdateVote conditionally updates the vote and reconciles its ballot
	// rows in the same transaction.
	UpdateVote(ctx context.Context, vote domain.Vote, expectedVersion uint64, events []event.Event) error
	// FindAuthorization returns the oldest PASSED, unconsumed launch
	// authorization for the warhead type resolved after the cutoff, or
	// ErrNotFound.
	FindAuthorization(ctx context.Context, clanID, warheadType string, resolvedAfter time.Time) (VoteRecord, error)
	// ListVotes returns one page of a clan's votes, newest first.
	ListVotes(ctx context.Context, query VoteQuery) (VotePage, error)
	// DueExpiries returns up to limit ACTIVE votes past their window.
	DueExpiries(ctx context.Context, now time.Time, limit int) ([]VoteRecord, error)
}

// ArsenalStore persists missiles and batteries, including the composite
// transitions that must commit with a wallet debit or a vote consumption.
type ArsenalStore interface {
	// GetMissile returns one missile, or ErrNotFound.
	GetMissile(ctx context.Context, missileID string) (MissileRecord, error)
	// GetBattery returns one battery, or ErrNotFound.
	GetBattery(ctx context.Context, batteryID string) (BatteryRecord, error)
	// ListMissiles returns a player's missiles ordered by build time.
	ListMissiles(ctx context.Context, ownerID string) ([]MissileRecord, error)
	// ListBatteries returns a player's batteries ordered by deploy time.
	ListBatteries(ctx context.Context, ownerID string) ([]BatteryRecord, error)

	// CreateMissile inserts a missile and conditionally debits the owner's
	// wallet in one transaction.
	CreateMissile(ctx context.Context, missile domain.Missile, wallet Wallet, walletExpectedVersion uint64, events []event.Event) error
	// CreateBattery inserts a battery and conditionally debits the owner's
	// wallet in one transaction.
	CreateBattery(ctx context.Context, battery domain.Battery, wallet Wallet, walletExpectedVersion uint64, events []event.Event) error
	// UpdateMissile applies a conditional missile update.
	UpdateMissile(ctx context.Context, missile domain.Missile, expectedVersion uint64, events []event.Event) error
	// UpdateBattery applies a conditional battery update.
	UpdateBattery(ctx context.Context, battery domain.Battery, expectedVersion uint64, events []event.Event) error
	// UpdateBatteryAndWallet commits a battery update and a wallet debit in
	// one transaction (repair).
	UpdateBatteryAndWallet(ctx context.Context, battery domain.Battery, expectedVersion uint64, wallet Wallet, walletExpectedVersion uint64, events []event.Event) error
	// UpdateMissileAndBattery commits a missile transition and a battery
	// state change in one transaction (interception).
	UpdateMissileAndBattery(ctx context.Context, missile domain.Missile, missileExpectedVersion uint64, battery domain.Battery, batteryExpectedVersion uint64, events []event.Event) error
	// LaunchWithAuthorization commits a missile launch and the consumption
	// of its authorizing vote in one transaction.
	LaunchWithAuthorization(ctx context.Context, missile domain.Missile, missileExpectedVersion uint64, vote domain.Vote, voteExpectedVersion uint64, events []event.Event) error
	// DeleteBattery removes a battery; missing ids report false, nil so
	// dismantle retries stay idempotent.
	DeleteBattery(ctx context.Context, batteryID string, events []event.Event) (bool, error)
	// DueImpacts returns up to limit LAUNCHED missiles past their flight
	// deadline.
	DueImpacts(ctx context.Context, now time.Time, limit int) ([]MissileRecord, error)
}

// EventQuery selects a page of journal events.
type EventQuery struct {
	// Filter is an AIP-160 expression over event_type, clan_id, and
	// actor_id. Empty selects everything.
	Filter    string
	PageSize  int
	PageToken string
}

// EventPage is one page of journal events in sequence order.
type EventPage struct {
	Events        []event.Event
	NextPageToken string
}

// OutboxStatus is the delivery state of one outbox row.
type OutboxStatus string

const (
	// OutboxStatusPending indicates the event awaits its first delivery.
	OutboxStatusPending OutboxStatus = "pending"
	// OutboxStatusProcessing indicates a worker holds the delivery lease.
	OutboxStatusProcessing OutboxStatus = "processing"
	// OutboxStatusSucceeded indicates the event was delivered.
	OutboxStatusSucceeded OutboxStatus = "succeeded"
	// OutboxStatusFailed indicates delivery failed and a retry is scheduled.
	OutboxStatusFailed OutboxStatus = "failed"
	// OutboxStatusDead indicates delivery exhausted its attempts.
	OutboxStatusDead OutboxStatus = "dead"
)

// OutboxOutcome acknowledges one delivery attempt.
type OutboxOutcome string

const (
	// OutboxOutcomeSucceeded marks the row delivered.
	OutboxOutcomeSucceeded OutboxOutcome = "succeeded"
	// OutboxOutcomeRetry schedules another attempt.
	OutboxOutcomeRetry OutboxOutcome = "retry"
	// OutboxOutcomeDead dead-letters the row.
	OutboxOutcomeDead OutboxOutcome = "dead"
)

// OutboxRow tracks delivery state for one journal event.
type OutboxRow struct {
	Seq            uint64
	EventType      event.Type
	Status         OutboxStatus
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseExpiresAt time.Time
	LastError      string
	UpdatedAt      time.Time
}

// LeasedEvent pairs an outbox row with its journal event for dispatch.
type LeasedEvent struct {
	Row   OutboxRow
	Event event.Event
}

// EventStore reads the journal and drives outbox delivery.
type EventStore interface {
	// ListEvents returns one page of journal events in sequence order.
	ListEvents(ctx context.Context, query EventQuery) (EventPage, error)
	// LeaseDueOutbox atomically claims up to limit due rows (pending or
	// failed with next_attempt_at <= now, or processing with an expired
	// lease) and returns them with their events.
	LeaseDueOutbox(ctx context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]LeasedEvent, error)
	// AckOutbox finishes one delivery attempt.
	AckOutbox(ctx context.Context, seq uint64, outcome OutboxOutcome, nextAttemptAt time.Time, lastError string) error
}

// RosterStore is the reference clan roster implementation: the read side
// satisfies roster.Oracle, the write side exists for membership management
// and seeding.
type RosterStore interface {
	roster.Oracle
	// PutMembership inserts or updates a membership.
	PutMembership(ctx context.Context, membership roster.Membership) error
	// RemoveMembership deletes a membership; missing rows are a no-op.
	RemoveMembership(ctx context.Context, clanID, playerID string) error
}

// Store is the full WMD persistence surface backed by one database.
type Store interface {
	LedgerStore
	WalletStore
	VoteStore
	ArsenalStore
	EventStore
	RosterStore
}
