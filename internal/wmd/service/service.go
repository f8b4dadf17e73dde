// Package service orchestrates the WMD core: research ledgers, clan launch
// authorizations, and the missile/battery arsenal, on top of the versioned
// store.
//
// Every read-modify-write loads a record with its version, applies the
// domain transition, and commits conditionally. Lost races retry a bounded
// number of times before surfacing CONFLICT.
package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mathrand "math/rand"
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/id"
	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

// casRetries bounds how many times an operation replays after losing a
// version race before surfacing CONFLICT.
const casRetries = 3

// ErrConflict indicates an operation kept losing version races.
var ErrConflict = apperrors.New(apperrors.CodeConflict, "record was modified concurrently")

// Config assembles a Service.
type Config struct {
	Store   storage.Store
	Roster  roster.Oracle
	Catalog *catalog.Catalog
	// Policy controls quorum, voting windows, and authorization validity.
	// Zero fields fall back to domain.DefaultVotePolicy.
	Policy domain.VotePolicy
	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() (string, error)
	// Roll produces one interception roll: a seed for auditability and the
	// uniform value derived from it. Defaults to a crypto-seeded roll.
	Roll func() (seed int64, value float64)
}

// Service is the WMD core application service.
type Service struct {
	store   storage.Store
	roster  roster.Oracle
	catalog *catalog.Catalog
	policy  domain.VotePolicy
	now     func() time.Time
	newID   func() (string, error)
	roll    func() (int64, float64)
}

// New builds a Service from cfg.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Roster == nil {
		return nil, fmt.Errorf("roster oracle is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	policy := cfg.Policy
	if policy.QuorumFraction <= 0 {
		policy.QuorumFraction = domain.DefaultVotePolicy.QuorumFraction
	}
	if policy.VotingWindow <= 0 {
		policy.VotingWindow = domain.DefaultVotePolicy.VotingWindow
	}
	if policy.AuthorizationTTL <= 0 {
		policy.AuthorizationTTL = domain.DefaultVotePolicy.AuthorizationTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.Roll == nil {
		cfg.Roll = cryptoRoll
	}
	return &Service{
		store:   cfg.Store,
		roster:  cfg.Roster,
		catalog: cfg.Catalog,
		policy:  policy,
		now:     cfg.Now,
		newID:   cfg.NewID,
		roll:    cfg.Roll,
	}, nil
}

// cryptoRoll draws a crypto-random seed and derives one uniform value from
// it, so the seed recorded in the result event reproduces the roll.
func cryptoRoll() (int64, float64) {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		// crypto/rand failing is unrecoverable process state.
		panic(fmt.Sprintf("read random seed: %v", err))
	}
	seed := int64(binary.BigEndian.Uint64(raw[:]))
	return seed, mathrand.New(mathrand.NewSource(seed)).Float64()
}

// membership resolves the caller's membership in clanID, mapping a missing
// row to NOT_A_MEMBER.
func (s *Service) membership(ctx context.Context, clanID, playerID string) (roster.Membership, error) {
	member, err := s.roster.Member(ctx, clanID, playerID)
	if err != nil {
		if errors.Is(err, roster.ErrNoMembership) {
			return roster.Membership{}, domain.ErrNotAMember
		}
		return roster.Membership{}, apperrors.Wrap(apperrors.CodeInternal, "look up membership", err)
	}
	return member, nil
}

// clanOf returns the clan the player belongs to, or empty for clanless
// players. Used only to scope events for fan-out.
func (s *Service) clanOf(ctx context.Context, playerID string) string {
	member, err := s.roster.MemberOf(ctx, playerID)
	if err != nil {
		return ""
	}
	return member.ClanID
}

// wallet returns the player's wallet; players without a wallet row get a
// zero balance at version zero, which PutWallet treats as an insert.
func (s *Service) wallet(ctx context.Context, playerID string) (storage.Wallet, error) {
	wallet, err := s.store.GetWallet(ctx, playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Wallet{PlayerID: playerID}, nil
		}
		return storage.Wallet{}, apperrors.Wrap(apperrors.CodeInternal, "load wallet", err)
	}
	return wallet, nil
}

// debit subtracts cost from the wallet or reports INSUFFICIENT_RESOURCES.
func debit(wallet *storage.Wallet, cost uint, now time.Time) error {
	if wallet.Resources < cost {
		return apperrors.WithMetadata(apperrors.CodeInsufficientResources, "not enough resources", map[string]string{
			"Required": fmt.Sprintf("%d", cost),
			"Current":  fmt.Sprintf("%d", wallet.Resources),
		})
	}
	wallet.Resources -= cost
	wallet.UpdatedAt = now
	return nil
}

// retryConflicts replays fn on version conflicts. Any other error, or
// success, returns immediately.
func retryConflicts(fn func() error) error {
	var err error
	for attempt := 0; attempt <= casRetries; attempt++ {
		err = fn()
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
	}
	return ErrConflict
}
