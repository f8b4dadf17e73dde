// Package sqlite provides the SQLite-backed WMD core store.
//
// Mutations run as single transactions: the record change, the journal
// append (with chain hashing), and the outbox enqueue commit together or not
// at all. Conditional updates guard on the row version and report
// storage.ErrVersionConflict on a lost race.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/brink.zone/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
	"github.com/louisbranch/brink.zone/internal/wmd/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists WMD core state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite WMD store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	// modernc.org/sqlite only honors pragmas in the _pragma=name(value)
	// form; the mattn-style _journal_mode=... parameters are ignored.
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toMillisPtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

func fromMillisPtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// inTx runs fn inside one transaction, committing on nil error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// appendEvents assigns sequences, extends the hash chain, and enqueues an
// outbox row per event, all within the caller's transaction.
func appendEvents(ctx context.Context, tx *sql.Tx, events []event.Event, now time.Time) error {
	if len(events) == 0 {
		return nil
	}

	var lastSeq uint64
	var prevHash string
	row := tx.QueryRowContext(ctx, `SELECT seq, chain_hash FROM events ORDER BY seq DESC LIMIT 1`)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read chain head: %w", err)
	}

	createdAt := now.UTC().Truncate(time.Millisecond)
	for i := range events {
		evt := events[i]
		evt.Seq = lastSeq + 1
		if evt.CreatedAt.IsZero() {
			evt.CreatedAt = createdAt
		}
		evt.ChainHash = event.ChainHash(evt, prevHash)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (seq, event_type, actor_id, clan_id, entity_id, payload_json, chain_hash, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.Seq, string(evt.Type), evt.ActorID, evt.ClanID, evt.EntityID, string(evt.Payload), evt.ChainHash, toMillis(evt.CreatedAt),
		); err != nil {
			return fmt.Errorf("append event %s: %w", evt.Type, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outbox (seq, event_type, status, attempt_count, next_attempt_at, updated_at)
			 VALUES (?, ?, 'pending', 0, ?, ?)`,
			evt.Seq, string(evt.Type), toMillis(evt.CreatedAt), toMillis(evt.CreatedAt),
		); err != nil {
			return fmt.Errorf("enqueue outbox %d: %w", evt.Seq, err)
		}

		lastSeq = evt.Seq
		prevHash = evt.ChainHash
	}
	return nil
}

// requireOneRow converts an UPDATE result into a version-conflict check.
func requireOneRow(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
