package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

const ledgerColumns = `player_id, rp, completed_tech_ids, active_tech_id, active_started_at, active_completes_at, version, created_at, updated_at`

// GetLedger returns one research ledger.
func (s *Store) GetLedger(ctx context.Context, playerID string) (storage.LedgerRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.LedgerRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.LedgerRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM research_ledgers WHERE player_id = ?`, playerID)
	record, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LedgerRecord{}, storage.ErrNotFound
		}
		return storage.LedgerRecord{}, fmt.Errorf("get ledger: %w", err)
	}
	return record, nil
}

// CreateLedger inserts a new ledger at version 1.
func (s *Store) CreateLedger(ctx context.Context, ledger domain.Ledger, events []event.Event) error {
	completed, err := marshalCompleted(ledger)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		activeTechID, startedAt, completesAt := activeColumns(ledger)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO research_ledgers (`+ledgerColumns+`) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			ledger.PlayerID, ledger.RP, completed, activeTechID, startedAt, completesAt,
			toMillis(ledger.CreatedAt), toMillis(ledger.UpdatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("create ledger: %w", err)
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// UpdateLedger applies a conditional ledger update.
func (s *Store) UpdateLedger(ctx context.Context, ledger domain.Ledger, expectedVersion uint64, events []event.Event) error {
	completed, err := marshalCompleted(ledger)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		activeTechID, startedAt, completesAt := activeColumns(ledger)
		result, err := tx.ExecContext(ctx,
			`UPDATE research_ledgers
			    SET rp = ?, completed_tech_ids = ?, active_tech_id = ?, active_started_at = ?,
			        active_completes_at = ?, version = version + 1, updated_at = ?
			  WHERE player_id = ? AND version = ?`,
			ledger.RP, completed, activeTechID, startedAt, completesAt,
			toMillis(ledger.UpdatedAt), ledger.PlayerID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update ledger: %w", err)
		}
		if err := requireOneRow(result, "update ledger"); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// DueResearch returns ledgers whose active research deadline has passed.
func (s *Store) DueResearch(ctx context.Context, now time.Time, limit int) ([]storage.LedgerRecord, error) {
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
		`SELECT `+ledgerColumns+` FROM research_ledgers
		  WHERE active_completes_at IS NOT NULL AND active_completes_at <= ?
		  ORDER BY active_completes_at ASC
		  LIMIT ?`,
		toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due research: %w", err)
	}
	defer rows.Close()

	var records []storage.LedgerRecord
	for rows.Next() {
		record, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("due research: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("due research: %w", err)
	}
	return records, nil
}

func marshalCompleted(ledger domain.Ledger) (string, error) {
	raw, err := json.Marshal(ledger.CompletedIDs())
	if err != nil {
		return "", fmt.Errorf("marshal completed techs: %w", err)
	}
	return string(raw), nil
}

func activeColumns(ledger domain.Ledger) (any, any, any) {
	if ledger.ActiveResearch == nil {
		return nil, nil, nil
	}
	return ledger.ActiveResearch.TechID,
		toMillis(ledger.ActiveResearch.StartedAt),
		toMillis(ledger.ActiveResearch.CompletesAt)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (storage.LedgerRecord, error) {
	var record storage.LedgerRecord
	var completed string
	var activeTechID sql.NullString
	var startedAt, completesAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(
		&record.Ledger.PlayerID, &record.Ledger.RP, &completed,
		&activeTechID, &startedAt, &completesAt,
		&record.Version, &createdAt, &updatedAt,
	); err != nil {
		return storage.LedgerRecord{}, err
	}

	var completedIDs []string
	if err := json.Unmarshal([]byte(completed), &completedIDs); err != nil {
		return storage.LedgerRecord{}, fmt.Errorf("unmarshal completed techs: %w", err)
	}
	record.Ledger.Completed = make(map[string]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		record.Ledger.Completed[id] = struct{}{}
	}
	if activeTechID.Valid {
		record.Ledger.ActiveResearch = &domain.ActiveResearch{
			TechID:      activeTechID.String,
			StartedAt:   fromMillis(startedAt.Int64),
			CompletesAt: fromMillis(completesAt.Int64),
		}
	}
	record.Ledger.CreatedAt = fromMillis(createdAt)
	record.Ledger.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
