package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/brink.zone/internal/platform/grpc/pagination"
	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/filter"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

const voteColumns = `vote_id, clan_id, vote_type, proposer_id, payload_json, required_votes, status, veto_reason, created_at, expires_at, resolved_at, consumed_at, consumed_by, version`

// votePayloadJSON is the storage form of the payload union. The vote_type
// column decides which fields are read back.
type votePayloadJSON struct {
	WarheadType    string `json:"warhead_type,omitempty"`
	Amount         uint   `json:"amount,omitempty"`
	Purpose        string `json:"purpose,omitempty"`
	TargetID       string `json:"target_id,omitempty"`
	TargetUsername string `json:"target_username,omitempty"`
	Action         string `json:"action,omitempty"`
}

func marshalVotePayload(payload domain.VotePayload) (string, error) {
	var stored votePayloadJSON
	switch {
	case payload.Launch != nil:
		stored.WarheadType = payload.Launch.WarheadType
	case payload.Resource != nil:
		stored.Amount = payload.Resource.Amount
		stored.Purpose = payload.Resource.Purpose
	case payload.Member != nil:
		stored.TargetID = payload.Member.TargetID
		stored.TargetUsername = payload.Member.TargetUsername
		stored.Action = payload.Member.Action
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal vote payload: %w", err)
	}
	return string(raw), nil
}

func unmarshalVotePayload(voteType domain.VoteType, raw string) (domain.VotePayload, error) {
	var stored votePayloadJSON
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return domain.VotePayload{}, fmt.Errorf("unmarshal vote payload: %w", err)
	}
	switch voteType {
	case domain.VoteTypeLaunchAuthorization:
		return domain.VotePayload{Launch: &domain.LaunchAuthorizationPayload{
			WarheadType: stored.WarheadType,
		}}, nil
	case domain.VoteTypeResourceCommitment:
		return domain.VotePayload{Resource: &domain.ResourceCommitmentPayload{
			Amount:  stored.Amount,
			Purpose: stored.Purpose,
		}}, nil
	case domain.VoteTypeMemberAction:
		return domain.VotePayload{Member: &domain.MemberActionPayload{
			TargetID:       stored.TargetID,
			TargetUsername: stored.TargetUsername,
			Action:         stored.Action,
		}}, nil
	default:
		return domain.VotePayload{}, fmt.Errorf("unknown vote type %q", voteType)
	}
}

// GetVote returns one vote with its ballots.
func (s *Store) GetVote(ctx context.Context, voteID string) (storage.VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.VoteRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.VoteRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM clan_votes WHERE vote_id = ?`, voteID)
	record, err := scanVote(row, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.VoteRecord{}, storage.ErrNotFound
		}
		return storage.VoteRecord{}, fmt.Errorf("get vote: %w", err)
	}
	if err := s.loadBallots(ctx, []*storage.VoteRecord{&record}); err != nil {
		return storage.VoteRecord{}, err
	}
	return record, nil
}

// CreateVote inserts an ACTIVE vote at version 1 together with the
// proposer's implicit ballots, if any.
func (s *Store) CreateVote(ctx context.Context, vote domain.Vote, events []event.Event) error {
	payload, err := marshalVotePayload(vote.Payload)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clan_votes (vote_id, clan_id, vote_type, proposer_id, payload_json, dedup_term, required_votes, status, veto_reason, created_at, expires_at, resolved_at, consumed_at, consumed_by, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			vote.ID, vote.ClanID, string(vote.Type), vote.ProposerID, payload, vote.Payload.DedupTerm(),
			vote.RequiredVotes, string(vote.Status), vote.VetoReason,
			toMillis(vote.CreatedAt), toMillis(vote.ExpiresAt),
			toMillisPtr(vote.ResolvedAt), toMillisPtr(vote.ConsumedAt), vote.ConsumedBy,
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrDuplicateActiveVote
			}
			return fmt.Errorf("create vote: %w", err)
		}
		if err := insertBallots(ctx, tx, vote, nil, time.Now()); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// UpdateVote conditionally updates the vote row and appends any ballots the
// domain value gained since it was loaded.
func (s *Store) UpdateVote(ctx context.Context, vote domain.Vote, expectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE clan_votes
			    SET status = ?, veto_reason = ?, resolved_at = ?, consumed_at = ?, consumed_by = ?, version = version + 1
			  WHERE vote_id = ? AND version = ?`,
			string(vote.Status), vote.VetoReason,
			toMillisPtr(vote.ResolvedAt), toMillisPtr(vote.ConsumedAt), vote.ConsumedBy,
			vote.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update vote: %w", err)
		}
		if err := requireOneRow(result, "update vote"); err != nil {
			return err
		}

		existing, err := existingBallotMembers(ctx, tx, vote.ID)
		if err != nil {
			return err
		}
		if err := insertBallots(ctx, tx, vote, existing, time.Now()); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// FindAuthorization returns the oldest usable launch authorization for the
// warhead type, or ErrNotFound.
func (s *Store) FindAuthorization(ctx context.Context, clanID, warheadType string, resolvedAfter time.Time) (storage.VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.VoteRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.VoteRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM clan_votes
		  WHERE clan_id = ? AND vote_type = ? AND status = ? AND dedup_term = ?
		    AND consumed_at IS NULL AND resolved_at > ?
		  ORDER BY resolved_at ASC
		  LIMIT 1`,
		clanID, string(domain.VoteTypeLaunchAuthorization), string(domain.VoteStatusPassed),
		warheadType, toMillis(resolvedAfter),
	)
	record, err := scanVote(row, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.VoteRecord{}, storage.ErrNotFound
		}
		return storage.VoteRecord{}, fmt.Errorf("find authorization: %w", err)
	}
	if err := s.loadBallots(ctx, []*storage.VoteRecord{&record}); err != nil {
		return storage.VoteRecord{}, err
	}
	return record, nil
}

// ListVotes returns one page of a clan's votes, newest first.
func (s *Store) ListVotes(ctx context.Context, query storage.VoteQuery) (storage.VotePage, error) {
	if err := ctx.Err(); err != nil {
		return storage.VotePage{}, err
	}
	if err := s.ready(); err != nil {
		return storage.VotePage{}, err
	}
	if strings.TrimSpace(query.ClanID) == "" {
		return storage.VotePage{}, fmt.Errorf("clan id is required")
	}

	pageSize := pagination.ClampPageSize(int32(query.PageSize), pagination.PageSizeConfig{Default: 50, Max: 200})

	whereParts := []string{"clan_id = ?"}
	args := []any{query.ClanID}
	condition, err := filter.ParseVoteFilter(query.Filter)
	if err != nil {
		return storage.VotePage{}, fmt.Errorf("vote filter: %w", err)
	}
	if condition.Clause != "" {
		whereParts = append(whereParts, condition.Clause)
		args = append(args, condition.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		tokenValue, parseErr := strconv.ParseInt(token, 10, 64)
		if parseErr != nil || tokenValue <= 0 {
			return storage.VotePage{}, fmt.Errorf("invalid page token")
		}
		whereParts = append(whereParts, "rowid < ?")
		args = append(args, tokenValue)
	}
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, fmt.Sprintf(
		`SELECT rowid, %s FROM clan_votes WHERE %s ORDER BY rowid DESC LIMIT ?`,
		voteColumns, strings.Join(whereParts, " AND ")), args...)
	if err != nil {
		return storage.VotePage{}, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var page storage.VotePage
	var lastRowID int64
	for rows.Next() {
		var rowID int64
		record, err := scanVote(rows, &rowID)
		if err != nil {
			return storage.VotePage{}, fmt.Errorf("list votes: %w", err)
		}
		if len(page.Votes) == pageSize {
			page.NextPageToken = strconv.FormatInt(lastRowID, 10)
			break
		}
		page.Votes = append(page.Votes, record)
		lastRowID = rowID
	}
	if err := rows.Err(); err != nil {
		return storage.VotePage{}, fmt.Errorf("list votes: %w", err)
	}

	refs := make([]*storage.VoteRecord, len(page.Votes))
	for i := range page.Votes {
		refs[i] = &page.Votes[i]
	}
	if err := s.loadBallots(ctx, refs); err != nil {
		return storage.VotePage{}, err
	}
	return page, nil
}

// DueExpiries returns ACTIVE votes whose window has closed.
func (s *Store) DueExpiries(ctx context.Context, now time.Time, limit int) ([]storage.VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM clan_votes
		  WHERE status = ? AND expires_at <= ?
		  ORDER BY expires_at ASC
		  LIMIT ?`,
		string(domain.VoteStatusActive), toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due expiries: %w", err)
	}
	defer rows.Close()

	var records []storage.VoteRecord
	for rows.Next() {
		record, err := scanVote(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("due expiries: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("due expiries: %w", err)
	}

	refs := make([]*storage.VoteRecord, len(records))
	for i := range records {
		refs[i] = &records[i]
	}
	if err := s.loadBallots(ctx, refs); err != nil {
		return nil, err
	}
	return records, nil
}

// scanVote decodes one clan_votes row. When rowID is non-nil the query is
// expected to select rowid as its first column.
func scanVote(row rowScanner, rowID *int64) (storage.VoteRecord, error) {
	var record storage.VoteRecord
	var voteType, status, payload string
	var createdAt, expiresAt int64
	var resolvedAt, consumedAt sql.NullInt64

	dests := make([]any, 0, 15)
	if rowID != nil {
		dests = append(dests, rowID)
	}
	dests = append(dests,
		&record.Vote.ID, &record.Vote.ClanID, &voteType, &record.Vote.ProposerID, &payload,
		&record.Vote.RequiredVotes, &status, &record.Vote.VetoReason,
		&createdAt, &expiresAt, &resolvedAt, &consumedAt, &record.Vote.ConsumedBy,
		&record.Version,
	)
	if err := row.Scan(dests...); err != nil {
		return storage.VoteRecord{}, err
	}
	record.Vote.Type = domain.VoteType(voteType)
	record.Vote.Status = domain.VoteStatus(status)
	record.Vote.CreatedAt = fromMillis(createdAt)
	record.Vote.ExpiresAt = fromMillis(expiresAt)
	record.Vote.ResolvedAt = fromMillisPtr(resolvedAt)
	record.Vote.ConsumedAt = fromMillisPtr(consumedAt)

	decoded, err := unmarshalVotePayload(record.Vote.Type, payload)
	if err != nil {
		return storage.VoteRecord{}, err
	}
	record.Vote.Payload = decoded
	record.Vote.For = make(map[string]struct{})
	record.Vote.Against = make(map[string]struct{})
	return record, nil
}

// loadBallots fills the For/Against sets for the given records.
func (s *Store) loadBallots(ctx context.Context, records []*storage.VoteRecord) error {
	for _, record := range records {
		rows, err := s.sqlDB.QueryContext(ctx,
			`SELECT member_id, in_favor FROM vote_ballots WHERE vote_id = ?`, record.Vote.ID)
		if err != nil {
			return fmt.Errorf("load ballots: %w", err)
		}
		for rows.Next() {
			var memberID string
			var inFavor bool
			if err := rows.Scan(&memberID, &inFavor); err != nil {
				rows.Close()
				return fmt.Errorf("load ballots: %w", err)
			}
			if inFavor {
				record.Vote.For[memberID] = struct{}{}
			} else {
				record.Vote.Against[memberID] = struct{}{}
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("load ballots: %w", err)
		}
		rows.Close()
	}
	return nil
}

func existingBallotMembers(ctx context.Context, tx *sql.Tx, voteID string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT member_id FROM vote_ballots WHERE vote_id = ?`, voteID)
	if err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("read ballots: %w", err)
		}
		existing[memberID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}
	return existing, nil
}

// insertBallots persists ballots present on the domain value but absent from
// the existing set. The primary key is the backstop against double casts.
func insertBallots(ctx context.Context, tx *sql.Tx, vote domain.Vote, existing map[string]struct{}, now time.Time) error {
	castAt := toMillis(now)
	insert := func(memberID string, inFavor bool) error {
		if _, ok := existing[memberID]; ok {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vote_ballots (vote_id, member_id, in_favor, cast_at) VALUES (?, ?, ?, ?)`,
			vote.ID, memberID, inFavor, castAt,
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrDuplicateBallot
			}
			return fmt.Errorf("insert ballot: %w", err)
		}
		return nil
	}
	for memberID := range vote.For {
		if err := insert(memberID, true); err != nil {
			return err
		}
	}
	for memberID := range vote.Against {
		if err := insert(memberID, false); err != nil {
			return err
		}
	}
	return nil
}
