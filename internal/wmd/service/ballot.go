package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/filter"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

var (
	// ErrDuplicateProposal indicates the clan already has an ACTIVE vote for
	// the same proposal.
	ErrDuplicateProposal = apperrors.New(apperrors.CodeDuplicateProposal, "an equivalent proposal is already being voted on")
	// ErrVoteNotFound indicates the vote id does not exist.
	ErrVoteNotFound = apperrors.New(apperrors.CodeNotFound, "vote not found")
)

type voteEventPayload struct {
	VoteType     string `json:"vote_type"`
	Status       string `json:"status"`
	ForCount     int    `json:"for_count"`
	AgainstCount int    `json:"against_count"`
	Required     uint   `json:"required"`
	VetoReason   string `json:"veto_reason,omitempty"`
}

func votePayloadFor(vote domain.Vote) voteEventPayload {
	return voteEventPayload{
		VoteType:     string(vote.Type),
		Status:       string(vote.Status),
		ForCount:     len(vote.For),
		AgainstCount: len(vote.Against),
		Required:     vote.RequiredVotes,
		VetoReason:   vote.VetoReason,
	}
}

// voteEvent builds one journal event scoped to the vote's clan.
func voteEvent(eventType event.Type, actorID string, vote domain.Vote) (event.Event, error) {
	evt, err := event.New(eventType, actorID, vote.ClanID, vote.ID, votePayloadFor(vote))
	if err != nil {
		return event.Event{}, apperrors.Wrap(apperrors.CodeInternal, "build event", err)
	}
	return evt, nil
}

// resolutionEventType maps a terminal vote status to its journal event.
func resolutionEventType(status domain.VoteStatus) (event.Type, bool) {
	switch status {
	case domain.VoteStatusPassed:
		return event.TypeVotePassed, true
	case domain.VoteStatusFailed:
		return event.TypeVoteFailed, true
	case domain.VoteStatusVetoed:
		return event.TypeVoteVetoed, true
	case domain.VoteStatusExpired:
		return event.TypeVoteExpired, true
	}
	return "", false
}

// CreateVote opens a clan proposal. The quorum is snapshotted from the
// current roster size and never changes afterward. The proposer does not
// auto-ballot.
func (s *Service) CreateVote(ctx context.Context, clanID, proposerID string, payload domain.VotePayload) (domain.Vote, error) {
	if _, err := s.membership(ctx, clanID, proposerID); err != nil {
		return domain.Vote{}, err
	}
	members, err := s.roster.Members(ctx, clanID)
	if err != nil {
		return domain.Vote{}, apperrors.Wrap(apperrors.CodeInternal, "load roster", err)
	}

	vote, err := domain.NewVote(clanID, proposerID, payload, len(members), s.policy, s.now, s.newID)
	if err != nil {
		return domain.Vote{}, err
	}

	evt, err := voteEvent(event.TypeVoteCreated, proposerID, vote)
	if err != nil {
		return domain.Vote{}, err
	}
	if err := s.store.CreateVote(ctx, vote, []event.Event{evt}); err != nil {
		if errors.Is(err, storage.ErrDuplicateActiveVote) {
			return domain.Vote{}, ErrDuplicateProposal
		}
		return domain.Vote{}, apperrors.Wrap(apperrors.CodeInternal, "create vote", err)
	}
	return vote, nil
}

// CastVote records one member ballot and evaluates termination in the same
// conditional update: the vote PASSES at quorum and FAILS the moment quorum
// becomes unreachable. The returned vote reflects the post-ballot status
// immediately.
func (s *Service) CastVote(ctx context.Context, voteID, memberID string, inFavor bool) (domain.Vote, error) {
	var result domain.Vote
	err := retryConflicts(func() error {
		record, err := s.vote(ctx, voteID)
		if err != nil {
			return err
		}
		if _, err := s.membership(ctx, record.Vote.ClanID, memberID); err != nil {
			return err
		}
		members, err := s.roster.Members(ctx, record.Vote.ClanID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "load roster", err)
		}

		now := s.now()
		if err := record.Vote.CastBallot(memberID, inFavor, len(members), now); err != nil {
			return err
		}

		events := make([]event.Event, 0, 2)
		evt, err := voteEvent(event.TypeVoteCast, memberID, record.Vote)
		if err != nil {
			return err
		}
		events = append(events, evt)
		if eventType, ok := resolutionEventType(record.Vote.Status); ok {
			resolved, err := voteEvent(eventType, memberID, record.Vote)
			if err != nil {
				return err
			}
			events = append(events, resolved)
		}

		if err := s.store.UpdateVote(ctx, record.Vote, record.Version, events); err != nil {
			if errors.Is(err, storage.ErrDuplicateBallot) {
				return domain.ErrAlreadyVoted
			}
			return err
		}
		result = record.Vote
		return nil
	})
	if err != nil {
		return domain.Vote{}, err
	}
	return result, nil
}

// VetoVote lets a leader or co-leader kill an ACTIVE vote.
func (s *Service) VetoVote(ctx context.Context, voteID, actorID, reason string) (domain.Vote, error) {
	var result domain.Vote
	err := retryConflicts(func() error {
		record, err := s.vote(ctx, voteID)
		if err != nil {
			return err
		}
		member, err := s.membership(ctx, record.Vote.ClanID, actorID)
		if err != nil {
			return err
		}
		if err := record.Vote.ApplyVeto(member.Role, reason, s.now()); err != nil {
			return err
		}

		evt, err := voteEvent(event.TypeVoteVetoed, actorID, record.Vote)
		if err != nil {
			return err
		}
		if err := s.store.UpdateVote(ctx, record.Vote, record.Version, []event.Event{evt}); err != nil {
			return err
		}
		result = record.Vote
		return nil
	})
	if err != nil {
		return domain.Vote{}, err
	}
	return result, nil
}

// HasAuthorization reports whether the clan currently holds a usable launch
// authorization for the warhead type: PASSED, unconsumed, and within the
// authorization validity window.
func (s *Service) HasAuthorization(ctx context.Context, clanID, warheadType string) (bool, error) {
	now := s.now()
	_, err := s.store.FindAuthorization(ctx, clanID, warheadType, now.Add(-s.policy.AuthorizationTTL))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeInternal, "find authorization", err)
	}
	return true, nil
}

// GetVote returns one vote with its ballots.
func (s *Service) GetVote(ctx context.Context, voteID string) (domain.Vote, error) {
	record, err := s.vote(ctx, voteID)
	if err != nil {
		return domain.Vote{}, err
	}
	return record.Vote, nil
}

// ListVotes returns one page of a clan's votes, newest first. filterStr is
// an AIP-160 expression over status, vote_type, proposer_id, and
// warhead_type.
func (s *Service) ListVotes(ctx context.Context, clanID, filterStr string, pageSize int, pageToken string) ([]domain.Vote, string, error) {
	if clanID == "" {
		return nil, "", domain.ErrEmptyClanID
	}
	if _, err := filter.ParseVoteFilter(filterStr); err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInvalidFilter, "parse vote filter", err)
	}

	page, err := s.store.ListVotes(ctx, storage.VoteQuery{
		ClanID:    clanID,
		Filter:    filterStr,
		PageSize:  pageSize,
		PageToken: pageToken,
	})
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, "list votes", err)
	}
	votes := make([]domain.Vote, 0, len(page.Votes))
	for _, record := range page.Votes {
		votes = append(votes, record.Vote)
	}
	return votes, page.NextPageToken, nil
}

// ExpireDueVotes marks every ACTIVE vote past its window EXPIRED. It
// returns how many expiries this sweep applied; votes another sweeper
// already resolved are skipped.
func (s *Service) ExpireDueVotes(ctx context.Context, now time.Time, limit int) (int, error) {
	records, err := s.store.DueExpiries(ctx, now, limit)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "list due expiries", err)
	}

	expired := 0
	for _, record := range records {
		if !record.Vote.Expire(now) {
			continue
		}
		evt, err := voteEvent(event.TypeVoteExpired, "", record.Vote)
		if err != nil {
			return expired, err
		}
		err = s.store.UpdateVote(ctx, record.Vote, record.Version, []event.Event{evt})
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return expired, apperrors.Wrap(apperrors.CodeInternal, "expire vote", err)
		}
		expired++
	}
	return expired, nil
}

func (s *Service) vote(ctx context.Context, voteID string) (storage.VoteRecord, error) {
	if voteID == "" {
		return storage.VoteRecord{}, domain.ErrEmptyVoteID
	}
	record, err := s.store.GetVote(ctx, voteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.VoteRecord{}, ErrVoteNotFound
		}
		return storage.VoteRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load vote", err)
	}
	return record, nil
}
