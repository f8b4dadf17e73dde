package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/brink.zone/internal/platform/grpc/pagination"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/filter"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

// ListEvents returns one page of journal events in sequence order.
func (s *Store) ListEvents(ctx context.Context, query storage.EventQuery) (storage.EventPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventPage{}, err
	}
	if err := s.ready(); err != nil {
		return storage.EventPage{}, err
	}

	pageSize := pagination.ClampPageSize(int32(query.PageSize), pagination.PageSizeConfig{Default: 100, Max: 500})

	var whereParts []string
	var args []any
	condition, err := filter.ParseEventFilter(query.Filter)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("event filter: %w", err)
	}
	if condition.Clause != "" {
		whereParts = append(whereParts, condition.Clause)
		args = append(args, condition.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		tokenValue, parseErr := strconv.ParseUint(token, 10, 64)
		if parseErr != nil || tokenValue == 0 {
			return storage.EventPage{}, fmt.Errorf("invalid page token")
		}
		whereParts = append(whereParts, "seq > ?")
		args = append(args, tokenValue)
	}
	where := ""
	if len(whereParts) > 0 {
		where = " WHERE " + strings.Join(whereParts, " AND ")
	}
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT seq, event_type, actor_id, clan_id, entity_id, payload_json, chain_hash, created_at
		   FROM events`+where+` ORDER BY seq LIMIT ?`, args...)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var page storage.EventPage
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("list events: %w", err)
		}
		if len(page.Events) == pageSize {
			page.NextPageToken = strconv.FormatUint(page.Events[pageSize-1].Seq, 10)
			break
		}
		page.Events = append(page.Events, evt)
	}
	if err := rows.Err(); err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	return page, nil
}

// LeaseDueOutbox claims up to limit due outbox rows for delivery. Claimed
// rows move to processing with a fresh lease and an incremented attempt
// count, so a crashed worker's rows become claimable again once the lease
// lapses.
func (s *Store) LeaseDueOutbox(ctx context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]storage.LeasedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if leaseTTL <= 0 {
		leaseTTL = time.Minute
	}
	nowMillis := toMillis(now)
	leaseExpiry := toMillis(now.Add(leaseTTL))

	var leased []storage.LeasedEvent
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT o.seq, o.event_type, o.status, o.attempt_count, o.next_attempt_at, o.lease_expires_at, o.last_error, o.updated_at,
			        e.seq, e.event_type, e.actor_id, e.clan_id, e.entity_id, e.payload_json, e.chain_hash, e.created_at
			   FROM outbox o
			   JOIN events e ON e.seq = o.seq
			  WHERE (o.status IN (?, ?) AND o.next_attempt_at <= ?)
			     OR (o.status = ? AND o.lease_expires_at <= ?)
			  ORDER BY o.next_attempt_at, o.seq
			  LIMIT ?`,
			string(storage.OutboxStatusPending), string(storage.OutboxStatusFailed), nowMillis,
			string(storage.OutboxStatusProcessing), nowMillis,
			limit,
		)
		if err != nil {
			return fmt.Errorf("select due outbox: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var item storage.LeasedEvent
			var rowStatus string
			var nextAttemptAt, updatedAt int64
			var leaseExpiresAt sql.NullInt64
			var eventType, payload string
			var createdAt int64
			if err := rows.Scan(
				&item.Row.Seq, &item.Row.EventType, &rowStatus, &item.Row.AttemptCount,
				&nextAttemptAt, &leaseExpiresAt, &item.Row.LastError, &updatedAt,
				&item.Event.Seq, &eventType, &item.Event.ActorID, &item.Event.ClanID,
				&item.Event.EntityID, &payload, &item.Event.ChainHash, &createdAt,
			); err != nil {
				return fmt.Errorf("scan due outbox: %w", err)
			}
			item.Row.Status = storage.OutboxStatus(rowStatus)
			item.Row.NextAttemptAt = fromMillis(nextAttemptAt)
			item.Row.UpdatedAt = fromMillis(updatedAt)
			if leaseExpiresAt.Valid {
				item.Row.LeaseExpiresAt = fromMillis(leaseExpiresAt.Int64)
			}
			item.Event.Type = event.Type(eventType)
			item.Event.Payload = json.RawMessage(payload)
			item.Event.CreatedAt = fromMillis(createdAt)
			leased = append(leased, item)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("scan due outbox: %w", err)
		}

		for i := range leased {
			if _, err := tx.ExecContext(ctx,
				`UPDATE outbox
				    SET status = ?, attempt_count = attempt_count + 1, lease_expires_at = ?, updated_at = ?
				  WHERE seq = ?`,
				string(storage.OutboxStatusProcessing), leaseExpiry, nowMillis, leased[i].Row.Seq,
			); err != nil {
				return fmt.Errorf("lease outbox %d: %w", leased[i].Row.Seq, err)
			}
			leased[i].Row.Status = storage.OutboxStatusProcessing
			leased[i].Row.AttemptCount++
			leased[i].Row.LeaseExpiresAt = fromMillis(leaseExpiry)
			leased[i].Row.UpdatedAt = fromMillis(nowMillis)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leased, nil
}

// AckOutbox finishes one delivery attempt.
func (s *Store) AckOutbox(ctx context.Context, seq uint64, outcome storage.OutboxOutcome, nextAttemptAt time.Time, lastError string) error {
	var status storage.OutboxStatus
	switch outcome {
	case storage.OutboxOutcomeSucceeded:
		status = storage.OutboxStatusSucceeded
	case storage.OutboxOutcomeRetry:
		status = storage.OutboxStatusFailed
	case storage.OutboxOutcomeDead:
		status = storage.OutboxStatusDead
	default:
		return fmt.Errorf("unknown outbox outcome %q", outcome)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE outbox
			    SET status = ?, next_attempt_at = ?, lease_expires_at = NULL, last_error = ?, updated_at = ?
			  WHERE seq = ?`,
			string(status), toMillis(nextAttemptAt), lastError, toMillis(time.Now()), seq,
		)
		if err != nil {
			return fmt.Errorf("ack outbox: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("ack outbox rows affected: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func scanEvent(row rowScanner) (event.Event, error) {
	var evt event.Event
	var eventType, payload string
	var createdAt int64
	if err := row.Scan(
		&evt.Seq, &eventType, &evt.ActorID, &evt.ClanID, &evt.EntityID,
		&payload, &evt.ChainHash, &createdAt,
	); err != nil {
		return event.Event{}, err
	}
	evt.Type = event.Type(eventType)
	evt.Payload = json.RawMessage(payload)
	evt.CreatedAt = fromMillis(createdAt)
	return evt, nil
}
