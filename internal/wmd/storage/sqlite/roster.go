package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/brink.zone/internal/wmd/roster"
)

// Member returns the membership for one player in one clan.
func (s *Store) Member(ctx context.Context, clanID, playerID string) (roster.Membership, error) {
	if err := ctx.Err(); err != nil {
		return roster.Membership{}, err
	}
	if err := s.ready(); err != nil {
		return roster.Membership{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT clan_id, player_id, role, joined_at FROM clan_members WHERE clan_id = ? AND player_id = ?`,
		clanID, playerID)
	membership, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roster.Membership{}, roster.ErrNoMembership
		}
		return roster.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return membership, nil
}

// Members returns the full current roster of a clan.
func (s *Store) Members(ctx context.Context, clanID string) ([]roster.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT clan_id, player_id, role, joined_at FROM clan_members WHERE clan_id = ? ORDER BY joined_at, player_id`,
		clanID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var memberships []roster.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return memberships, nil
}

// MemberOf returns the membership for the clan the player belongs to. The
// schema enforces one clan per player.
func (s *Store) MemberOf(ctx context.Context, playerID string) (roster.Membership, error) {
	if err := ctx.Err(); err != nil {
		return roster.Membership{}, err
	}
	if err := s.ready(); err != nil {
		return roster.Membership{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT clan_id, player_id, role, joined_at FROM clan_members WHERE player_id = ?`, playerID)
	membership, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roster.Membership{}, roster.ErrNoMembership
		}
		return roster.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return membership, nil
}

// PutMembership inserts or updates a membership.
func (s *Store) PutMembership(ctx context.Context, membership roster.Membership) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clan_members (clan_id, player_id, role, joined_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (clan_id, player_id) DO UPDATE SET role = excluded.role`,
			membership.ClanID, membership.PlayerID, string(membership.Role), toMillis(membership.JoinedAt),
		); err != nil {
			return fmt.Errorf("put membership: %w", err)
		}
		return nil
	})
}

// RemoveMembership deletes a membership. Missing rows are a no-op.
func (s *Store) RemoveMembership(ctx context.Context, clanID, playerID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM clan_members WHERE clan_id = ? AND player_id = ?`, clanID, playerID,
		); err != nil {
			return fmt.Errorf("remove membership: %w", err)
		}
		return nil
	})
}

func scanMembership(row rowScanner) (roster.Membership, error) {
	var membership roster.Membership
	var role string
	var joinedAt int64
	if err := row.Scan(&membership.ClanID, &membership.PlayerID, &role, &joinedAt); err != nil {
		return roster.Membership{}, err
	}
	membership.Role = roster.Role(role)
	membership.JoinedAt = fromMillis(joinedAt)
	return membership, nil
}
