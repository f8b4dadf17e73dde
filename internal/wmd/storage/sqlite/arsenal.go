package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

const missileColumns = `missile_id, owner_id, warhead_type, status, target_player_id, target_x, target_y, auth_vote_id, built_at, launched_at, impact_at, resolved_at, version`

const batteryColumns = `battery_id, owner_id, battery_type, status, hp, cooldown_until, deployed_at, updated_at, version`

// GetMissile returns one missile.
func (s *Store) GetMissile(ctx context.Context, missileID string) (storage.MissileRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MissileRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.MissileRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+missileColumns+` FROM missiles WHERE missile_id = ?`, missileID)
	record, err := scanMissile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MissileRecord{}, storage.ErrNotFound
		}
		return storage.MissileRecord{}, fmt.Errorf("get missile: %w", err)
	}
	return record, nil
}

// GetBattery returns one defense battery.
func (s *Store) GetBattery(ctx context.Context, batteryID string) (storage.BatteryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.BatteryRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.BatteryRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+batteryColumns+` FROM defense_batteries WHERE battery_id = ?`, batteryID)
	record, err := scanBattery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.BatteryRecord{}, storage.ErrNotFound
		}
		return storage.BatteryRecord{}, fmt.Errorf("get battery: %w", err)
	}
	return record, nil
}

// ListMissiles returns a player's missiles ordered by build time.
func (s *Store) ListMissiles(ctx context.Context, ownerID string) ([]storage.MissileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+missileColumns+` FROM missiles WHERE owner_id = ? ORDER BY built_at, missile_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list missiles: %w", err)
	}
	defer rows.Close()

	var records []storage.MissileRecord
	for rows.Next() {
		record, err := scanMissile(rows)
		if err != nil {
			return nil, fmt.Errorf("list missiles: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list missiles: %w", err)
	}
	return records, nil
}

// ListBatteries returns a player's batteries ordered by deploy time.
func (s *Store) ListBatteries(ctx context.Context, ownerID string) ([]storage.BatteryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+batteryColumns+` FROM defense_batteries WHERE owner_id = ? ORDER BY deployed_at, battery_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list batteries: %w", err)
	}
	defer rows.Close()

	var records []storage.BatteryRecord
	for rows.Next() {
		record, err := scanBattery(rows)
		if err != nil {
			return nil, fmt.Errorf("list batteries: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batteries: %w", err)
	}
	return records, nil
}

// CreateMissile inserts a missile and debits the owner's wallet in one
// transaction.
func (s *Store) CreateMissile(ctx context.Context, missile domain.Missile, wallet storage.Wallet, walletExpectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertMissile(ctx, tx, missile); err != nil {
			return err
		}
		if err := putWallet(ctx, tx, wallet, walletExpectedVersion); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// CreateBattery inserts a battery and debits the owner's wallet in one
// transaction.
func (s *Store) CreateBattery(ctx context.Context, battery domain.Battery, wallet storage.Wallet, walletExpectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO defense_batteries (`+batteryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			battery.ID, battery.OwnerID, battery.Type, string(battery.Status), battery.HP,
			toMillisPtr(battery.CooldownUntil), toMillis(battery.DeployedAt), toMillis(battery.UpdatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("create battery: %w", err)
		}
		if err := putWallet(ctx, tx, wallet, walletExpectedVersion); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// UpdateMissile applies a conditional missile update.
func (s *Store) UpdateMissile(ctx context.Context, missile domain.Missile, expectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateMissile(ctx, tx, missile, expectedVersion); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// UpdateBattery applies a conditional battery update.
func (s *Store) UpdateBattery(ctx context.Context, battery domain.Battery, expectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateBattery(ctx, tx, battery, expectedVersion); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// UpdateBatteryAndWallet commits a battery update and a wallet debit
// together.
func (s *Store) UpdateBatteryAndWallet(ctx context.Context, battery domain.Battery, expectedVersion uint64, wallet storage.Wallet, walletExpectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateBattery(ctx, tx, battery, expectedVersion); err != nil {
			return err
		}
		if err := putWallet(ctx, tx, wallet, walletExpectedVersion); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// UpdateMissileAndBattery commits a missile transition and a battery state
// change together. Interception resolves both sides or neither.
func (s *Store) UpdateMissileAndBattery(ctx context.Context, missile domain.Missile, missileExpectedVersion uint64, battery domain.Battery, batteryExpectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateMissile(ctx, tx, missile, missileExpectedVersion); err != nil {
			return err
		}
		if err := updateBattery(ctx, tx, battery, batteryExpectedVersion); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// LaunchWithAuthorization commits the missile launch and the consumption of
// its authorizing vote in one transaction, so an authorization can back at
// most one launch.
func (s *Store) LaunchWithAuthorization(ctx context.Context, missile domain.Missile, missileExpectedVersion uint64, vote domain.Vote, voteExpectedVersion uint64, events []event.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateMissile(ctx, tx, missile, missileExpectedVersion); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE clan_votes
			    SET consumed_at = ?, consumed_by = ?, version = version + 1
			  WHERE vote_id = ? AND version = ? AND consumed_at IS NULL`,
			toMillisPtr(vote.ConsumedAt), vote.ConsumedBy, vote.ID, voteExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("consume authorization: %w", err)
		}
		if err := requireOneRow(result, "consume authorization"); err != nil {
			return err
		}
		return appendEvents(ctx, tx, events, time.Now())
	})
}

// DeleteBattery removes a battery. Missing ids report false, nil so
// dismantle retries stay idempotent.
func (s *Store) DeleteBattery(ctx context.Context, batteryID string, events []event.Event) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM defense_batteries WHERE battery_id = ?`, batteryID)
		if err != nil {
			return fmt.Errorf("delete battery: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete battery rows affected: %w", err)
		}
		if affected == 0 {
			return nil
		}
		deleted = true
		return appendEvents(ctx, tx, events, time.Now())
	})
	return deleted, err
}

// DueImpacts returns LAUNCHED missiles whose flight deadline has passed.
func (s *Store) DueImpacts(ctx context.Context, now time.Time, limit int) ([]storage.MissileRecord, error) {
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
		`SELECT `+missileColumns+` FROM missiles
		  WHERE status = ? AND impact_at IS NOT NULL AND impact_at <= ?
		  ORDER BY impact_at ASC
		  LIMIT ?`,
		string(domain.MissileStatusLaunched), toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due impacts: %w", err)
	}
	defer rows.Close()

	var records []storage.MissileRecord
	for rows.Next() {
		record, err := scanMissile(rows)
		if err != nil {
			return nil, fmt.Errorf("due impacts: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("due impacts: %w", err)
	}
	return records, nil
}

func insertMissile(ctx context.Context, tx *sql.Tx, missile domain.Missile) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO missiles (`+missileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		missile.ID, missile.OwnerID, missile.WarheadType, string(missile.Status),
		missile.TargetPlayerID, missile.Target.X, missile.Target.Y, missile.AuthVoteID,
		toMillis(missile.BuiltAt), toMillisPtr(missile.LaunchedAt),
		toMillisPtr(missile.ImpactAt), toMillisPtr(missile.ResolvedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create missile: %w", err)
	}
	return nil
}

func updateMissile(ctx context.Context, tx *sql.Tx, missile domain.Missile, expectedVersion uint64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE missiles
		    SET status = ?, target_player_id = ?, target_x = ?, target_y = ?, auth_vote_id = ?,
		        launched_at = ?, impact_at = ?, resolved_at = ?, version = version + 1
		  WHERE missile_id = ? AND version = ?`,
		string(missile.Status), missile.TargetPlayerID, missile.Target.X, missile.Target.Y,
		missile.AuthVoteID, toMillisPtr(missile.LaunchedAt), toMillisPtr(missile.ImpactAt),
		toMillisPtr(missile.ResolvedAt), missile.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update missile: %w", err)
	}
	return requireOneRow(result, "update missile")
}

func updateBattery(ctx context.Context, tx *sql.Tx, battery domain.Battery, expectedVersion uint64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE defense_batteries
		    SET status = ?, hp = ?, cooldown_until = ?, updated_at = ?, version = version + 1
		  WHERE battery_id = ? AND version = ?`,
		string(battery.Status), battery.HP, toMillisPtr(battery.CooldownUntil),
		toMillis(battery.UpdatedAt), battery.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update battery: %w", err)
	}
	return requireOneRow(result, "update battery")
}

func scanMissile(row rowScanner) (storage.MissileRecord, error) {
	var record storage.MissileRecord
	var status string
	var builtAt int64
	var launchedAt, impactAt, resolvedAt sql.NullInt64
	if err := row.Scan(
		&record.Missile.ID, &record.Missile.OwnerID, &record.Missile.WarheadType, &status,
		&record.Missile.TargetPlayerID, &record.Missile.Target.X, &record.Missile.Target.Y,
		&record.Missile.AuthVoteID, &builtAt, &launchedAt, &impactAt, &resolvedAt,
		&record.Version,
	); err != nil {
		return storage.MissileRecord{}, err
	}
	record.Missile.Status = domain.MissileStatus(status)
	record.Missile.BuiltAt = fromMillis(builtAt)
	record.Missile.LaunchedAt = fromMillisPtr(launchedAt)
	record.Missile.ImpactAt = fromMillisPtr(impactAt)
	record.Missile.ResolvedAt = fromMillisPtr(resolvedAt)
	return record, nil
}

func scanBattery(row rowScanner) (storage.BatteryRecord, error) {
	var record storage.BatteryRecord
	var status string
	var cooldownUntil sql.NullInt64
	var deployedAt, updatedAt int64
	if err := row.Scan(
		&record.Battery.ID, &record.Battery.OwnerID, &record.Battery.Type, &status,
		&record.Battery.HP, &cooldownUntil, &deployedAt, &updatedAt,
		&record.Version,
	); err != nil {
		return storage.BatteryRecord{}, err
	}
	record.Battery.Status = domain.BatteryStatus(status)
	record.Battery.CooldownUntil = fromMillisPtr(cooldownUntil)
	record.Battery.DeployedAt = fromMillis(deployedAt)
	record.Battery.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
