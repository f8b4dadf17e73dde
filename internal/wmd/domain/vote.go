package domain

import (
	"math"
	"strings"
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/id"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
)

// VoteType identifies the kind of clan proposal.
type VoteType string

const (
	// VoteTypeLaunchAuthorization proposes authorizing a restricted warhead launch.
	VoteTypeLaunchAuthorization VoteType = "LAUNCH_AUTHORIZATION"
	// VoteTypeResourceCommitment proposes committing clan resources.
	VoteTypeResourceCommitment VoteType = "RESOURCE_COMMITMENT"
	// VoteTypeMemberAction proposes an action against a clan member.
	VoteTypeMemberAction VoteType = "MEMBER_ACTION"
)

// VoteStatus is the lifecycle state of a clan vote.
type VoteStatus string

const (
	// VoteStatusActive indicates the vote is collecting ballots.
	VoteStatusActive VoteStatus = "ACTIVE"
	// VoteStatusPassed indicates the vote reached quorum.
	VoteStatusPassed VoteStatus = "PASSED"
	// VoteStatusFailed indicates quorum became mathematically unreachable.
	VoteStatusFailed VoteStatus = "FAILED"
	// VoteStatusVetoed indicates a leader vetoed the vote.
	VoteStatusVetoed VoteStatus = "VETOED"
	// VoteStatusExpired indicates the voting window closed without resolution.
	VoteStatusExpired VoteStatus = "EXPIRED"
)

// Terminal reports whether the status is a terminal state.
func (s VoteStatus) Terminal() bool {
	switch s {
	case VoteStatusPassed, VoteStatusFailed, VoteStatusVetoed, VoteStatusExpired:
		return true
	}
	return false
}

var (
	// ErrEmptyClanID indicates a missing clan id.
	ErrEmptyClanID = apperrors.New(apperrors.CodeEmptyClanID, "clan id is required")
	// ErrEmptyVoteID indicates a missing vote id.
	ErrEmptyVoteID = apperrors.New(apperrors.CodeEmptyVoteID, "vote id is required")
	// ErrInvalidVoteType indicates an unknown vote type.
	ErrInvalidVoteType = apperrors.New(apperrors.CodeInvalidVoteType, "vote type is not recognized")
	// ErrInvalidVotePayload indicates a payload that does not match its vote type.
	ErrInvalidVotePayload = apperrors.New(apperrors.CodeInvalidVotePayload, "vote payload does not match the vote type")
	// ErrVoteNotActive indicates the vote has already reached a terminal state.
	ErrVoteNotActive = apperrors.New(apperrors.CodeVoteNotActive, "vote is no longer active")
	// ErrAlreadyVoted indicates the member already cast a ballot on this vote.
	ErrAlreadyVoted = apperrors.New(apperrors.CodeAlreadyVoted, "member has already voted")
	// ErrNotAMember indicates the actor is not a current clan member.
	ErrNotAMember = apperrors.New(apperrors.CodeNotAMember, "actor is not a clan member")
	// ErrInsufficientPermission indicates the actor lacks the required clan role.
	ErrInsufficientPermission = apperrors.New(apperrors.CodeInsufficientPermission, "actor role does not permit this action")
)

// VotePayload is the tagged union of per-type proposal payloads. Exactly one
// variant must be set, and it must match the vote type.
type VotePayload struct {
	Launch   *LaunchAuthorizationPayload
	Resource *ResourceCommitmentPayload
	Member   *MemberActionPayload
}

// LaunchAuthorizationPayload proposes authorizing one restricted warhead launch.
type LaunchAuthorizationPayload struct {
	WarheadType string
}

// ResourceCommitmentPayload proposes committing clan resources to a purpose.
type ResourceCommitmentPayload struct {
	Amount  uint
	Purpose string
}

// MemberActionPayload proposes an action targeting a clan member.
type MemberActionPayload struct {
	TargetID       string
	TargetUsername string
	Action         string
}

// Type returns the vote type implied by the set payload variant.
func (p VotePayload) Type() (VoteType, error) {
	set := 0
	var voteType VoteType
	if p.Launch != nil {
		set++
		voteType = VoteTypeLaunchAuthorization
	}
	if p.Resource != nil {
		set++
		voteType = VoteTypeResourceCommitment
	}
	if p.Member != nil {
		set++
		voteType = VoteTypeMemberAction
	}
	if set != 1 {
		return "", ErrInvalidVotePayload
	}
	return voteType, nil
}

// DedupTerm returns the value that, together with the vote type, identifies
// duplicate ACTIVE proposals for a clan.
func (p VotePayload) DedupTerm() string {
	switch {
	case p.Launch != nil:
		return p.Launch.WarheadType
	case p.Resource != nil:
		return p.Resource.Purpose
	case p.Member != nil:
		return p.Member.TargetID
	}
	return ""
}

func (p VotePayload) validate() error {
	voteType, err := p.Type()
	if err != nil {
		return err
	}
	switch voteType {
	case VoteTypeLaunchAuthorization:
		if strings.TrimSpace(p.Launch.WarheadType) == "" {
			return ErrInvalidVotePayload
		}
	case VoteTypeResourceCommitment:
		if p.Resource.Amount == 0 || strings.TrimSpace(p.Resource.Purpose) == "" {
			return ErrInvalidVotePayload
		}
	case VoteTypeMemberAction:
		if strings.TrimSpace(p.Member.TargetID) == "" || strings.TrimSpace(p.Member.Action) == "" {
			return ErrInvalidVotePayload
		}
	}
	return nil
}

// Vote is one clan proposal and its ballots.
//
// Invariants: a member appears in at most one of For/Against; Status moves
// from ACTIVE to exactly one terminal state and never reverts; RequiredVotes
// is snapshotted at creation and immune to later roster churn.
type Vote struct {
	ID            string
	ClanID        string
	Type          VoteType
	ProposerID    string
	Payload       VotePayload
	For           map[string]struct{}
	Against       map[string]struct{}
	RequiredVotes uint
	Status        VoteStatus
	VetoReason    string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ResolvedAt    *time.Time
	ConsumedAt    *time.Time
	ConsumedBy    string
}

// VotePolicy parameterizes quorum and windows for vote creation.
type VotePolicy struct {
	// QuorumFraction is the roster fraction that must vote in favor; quorum
	// is floor(rosterSize*fraction)+1 capped at the roster size.
	QuorumFraction float64
	// VotingWindow is how long a vote collects ballots before expiring.
	VotingWindow time.Duration
	// AuthorizationTTL bounds how long a PASSED launch authorization
	// remains usable after resolution.
	AuthorizationTTL time.Duration
}

// DefaultVotePolicy is a simple majority with a 24h window and 1h
// authorization validity.
var DefaultVotePolicy = VotePolicy{
	QuorumFraction:   0.5,
	VotingWindow:     24 * time.Hour,
	AuthorizationTTL: time.Hour,
}

// Quorum computes the required "for" ballots for a roster size.
func (p VotePolicy) Quorum(rosterSize int) uint {
	if rosterSize <= 0 {
		return 1
	}
	fraction := p.QuorumFraction
	if fraction <= 0 {
		fraction = DefaultVotePolicy.QuorumFraction
	}
	quorum := uint(math.Floor(float64(rosterSize)*fraction)) + 1
	if quorum > uint(rosterSize) {
		quorum = uint(rosterSize)
	}
	return quorum
}

// NewVote creates an ACTIVE vote with the quorum snapshotted from the
// current roster size.
func NewVote(clanID, proposerID string, payload VotePayload, rosterSize int, policy VotePolicy, now func() time.Time, idGenerator func() (string, error)) (Vote, error) {
	if clanID == "" {
		return Vote{}, ErrEmptyClanID
	}
	if proposerID == "" {
		return Vote{}, ErrEmptyPlayerID
	}
	voteType, err := payload.Type()
	if err != nil {
		return Vote{}, err
	}
	if err := payload.validate(); err != nil {
		return Vote{}, err
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	voteID, err := idGenerator()
	if err != nil {
		return Vote{}, apperrors.Wrap(apperrors.CodeInternal, "generate vote id", err)
	}

	window := policy.VotingWindow
	if window <= 0 {
		window = DefaultVotePolicy.VotingWindow
	}
	createdAt := now().UTC()
	return Vote{
		ID:            voteID,
		ClanID:        clanID,
		Type:          voteType,
		ProposerID:    proposerID,
		Payload:       payload,
		For:           make(map[string]struct{}),
		Against:       make(map[string]struct{}),
		RequiredVotes: policy.Quorum(rosterSize),
		Status:        VoteStatusActive,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(window),
	}, nil
}

// HasVoted reports whether the member already appears in either ballot set.
func (v *Vote) HasVoted(memberID string) bool {
	if _, ok := v.For[memberID]; ok {
		return true
	}
	_, ok := v.Against[memberID]
	return ok
}

// CastBallot records one ballot and evaluates termination in the same step.
//
// The vote PASSES when the "for" count reaches the quorum snapshot, and
// FAILS as soon as the remaining eligible voters cannot bring the "for"
// count up to quorum. eligibleVoters is the current clan roster size.
func (v *Vote) CastBallot(memberID string, inFavor bool, eligibleVoters int, now time.Time) error {
	if memberID == "" {
		return ErrEmptyPlayerID
	}
	if v.Status != VoteStatusActive {
		return ErrVoteNotActive
	}
	if v.HasVoted(memberID) {
		return ErrAlreadyVoted
	}

	if inFavor {
		v.For[memberID] = struct{}{}
	} else {
		v.Against[memberID] = struct{}{}
	}

	forCount := uint(len(v.For))
	if forCount >= v.RequiredVotes {
		v.resolve(VoteStatusPassed, now)
		return nil
	}

	remaining := eligibleVoters - len(v.For) - len(v.Against)
	if remaining < 0 {
		remaining = 0
	}
	if forCount+uint(remaining) < v.RequiredVotes {
		v.resolve(VoteStatusFailed, now)
	}
	return nil
}

// ApplyVeto marks the vote VETOED. Only leader and co-leader roles may veto.
func (v *Vote) ApplyVeto(role roster.Role, reason string, now time.Time) error {
	if role != roster.RoleLeader && role != roster.RoleCoLeader {
		return ErrInsufficientPermission
	}
	if v.Status != VoteStatusActive {
		return ErrVoteNotActive
	}
	v.VetoReason = strings.TrimSpace(reason)
	v.resolve(VoteStatusVetoed, now)
	return nil
}

// Expire marks an ACTIVE vote past its window EXPIRED. Expiring a terminal
// vote is a no-op so concurrent sweepers cannot double-apply.
func (v *Vote) Expire(now time.Time) bool {
	if v.Status != VoteStatusActive {
		return false
	}
	if v.ExpiresAt.After(now) {
		return false
	}
	v.resolve(VoteStatusExpired, now)
	return true
}

// Authorizes reports whether this vote currently authorizes launching the
// given warhead type: a PASSED launch authorization that has not been
// consumed and is still within its validity window.
func (v *Vote) Authorizes(warheadType string, ttl time.Duration, now time.Time) bool {
	if v.Status != VoteStatusPassed || v.Type != VoteTypeLaunchAuthorization {
		return false
	}
	if v.Payload.Launch == nil || v.Payload.Launch.WarheadType != warheadType {
		return false
	}
	if v.ConsumedAt != nil {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultVotePolicy.AuthorizationTTL
	}
	return v.ResolvedAt != nil && v.ResolvedAt.Add(ttl).After(now)
}

// Consume claims a PASSED launch authorization for a single gated launch.
func (v *Vote) Consume(consumerID string, now time.Time) error {
	if v.Status != VoteStatusPassed || v.ConsumedAt != nil {
		return ErrVoteNotActive
	}
	consumedAt := now.UTC()
	v.ConsumedAt = &consumedAt
	v.ConsumedBy = consumerID
	return nil
}

func (v *Vote) resolve(status VoteStatus, now time.Time) {
	resolvedAt := now.UTC()
	v.Status = status
	v.ResolvedAt = &resolvedAt
}
