package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

// GetWallet returns one player wallet.
func (s *Store) GetWallet(ctx context.Context, playerID string) (storage.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return storage.Wallet{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Wallet{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT player_id, resources, version, updated_at FROM wallets WHERE player_id = ?`, playerID)
	wallet, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Wallet{}, storage.ErrNotFound
		}
		return storage.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	return wallet, nil
}

// PutWallet inserts the wallet when expectedVersion is zero, otherwise
// applies a conditional update.
func (s *Store) PutWallet(ctx context.Context, wallet storage.Wallet, expectedVersion uint64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return putWallet(ctx, tx, wallet, expectedVersion)
	})
}

func putWallet(ctx context.Context, tx *sql.Tx, wallet storage.Wallet, expectedVersion uint64) error {
	if expectedVersion == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wallets (player_id, resources, version, updated_at) VALUES (?, ?, 1, ?)`,
			wallet.PlayerID, wallet.Resources, toMillis(wallet.UpdatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert wallet: %w", err)
		}
		return nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE wallets SET resources = ?, version = version + 1, updated_at = ?
		  WHERE player_id = ? AND version = ?`,
		wallet.Resources, toMillis(wallet.UpdatedAt), wallet.PlayerID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return requireOneRow(result, "update wallet")
}

func scanWallet(row rowScanner) (storage.Wallet, error) {
	var wallet storage.Wallet
	var updatedAt int64
	if err := row.Scan(&wallet.PlayerID, &wallet.Resources, &wallet.Version, &updatedAt); err != nil {
		return storage.Wallet{}, err
	}
	wallet.UpdatedAt = fromMillis(updatedAt)
	return wallet, nil
}
