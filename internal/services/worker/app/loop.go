// Package app hosts the WMD worker runtime: the timed sweeps over the core
// and the outbox dispatcher that pushes journal events to delivery sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultLeaseTTL      = 30 * time.Second
	defaultBatchSize     = 50
	defaultMaxAttempts   = 8
	defaultRetryBackoff  = 5 * time.Second
	defaultRetryMaxDelay = 5 * time.Minute
	defaultSweepLimit    = 100
)

// Config tunes the worker loop. Zero fields fall back to defaults.
type Config struct {
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	SweepLimit    int
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = defaultSweepLimit
	}
	return c
}

// Core exposes the timed sweeps the worker drives each tick. Each sweep
// returns how many records it resolved.
type Core interface {
	CompleteDueResearch(ctx context.Context, now time.Time, limit int) (int, error)
	ExpireDueVotes(ctx context.Context, now time.Time, limit int) (int, error)
	ResolveDueImpacts(ctx context.Context, now time.Time, limit int) (int, error)
}

// Sink delivers one journal event to a downstream surface. A returned
// error schedules a retry for the whole row.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt event.Event) error
}

// Loop is the worker's poll loop over the sweeps and the outbox.
type Loop struct {
	store  storage.EventStore
	core   Core
	sinks  []Sink
	config Config
	now    func() time.Time
}

// NewLoop assembles a worker loop. The store and core are required; an
// empty sink list means leased rows are acked without delivery.
func NewLoop(store storage.EventStore, core Core, sinks []Sink, config Config) (*Loop, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	if core == nil {
		return nil, errors.New("core is required")
	}
	return &Loop{
		store:  store,
		core:   core,
		sinks:  sinks,
		config: config.normalized(),
		now:    time.Now,
	}, nil
}

// Run ticks the loop at the poll interval until the context ends. The
// first tick runs immediately.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		l.tick(ctx, l.now().UTC())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs one pass: the three sweeps, then one leased outbox batch.
// Sweep failures are logged and never stop dispatch.
func (l *Loop) tick(ctx context.Context, now time.Time) {
	l.runSweeps(ctx, now)
	if err := l.drainOutbox(ctx, now); err != nil {
		log.Printf("worker: outbox dispatch: %v", err)
	}
}

func (l *Loop) runSweeps(ctx context.Context, now time.Time) {
	sweeps := []struct {
		name string
		run  func(context.Context, time.Time, int) (int, error)
	}{
		{"research completion", l.core.CompleteDueResearch},
		{"vote expiry", l.core.ExpireDueVotes},
		{"missile impact", l.core.ResolveDueImpacts},
	}
	for _, sweep := range sweeps {
		resolved, err := sweep.run(ctx, now, l.config.SweepLimit)
		if err != nil {
			log.Printf("worker: %s sweep: %v", sweep.name, err)
			continue
		}
		if resolved > 0 {
			log.Printf("worker: %s sweep resolved %d record(s)", sweep.name, resolved)
		}
	}
}

// drainOutbox leases one batch of due rows and dispatches each to every
// sink. All sinks succeeding acks the row; any failure schedules a retry
// with exponential backoff, or dead-letters once attempts are exhausted.
func (l *Loop) drainOutbox(ctx context.Context, now time.Time) error {
	leased, err := l.store.LeaseDueOutbox(ctx, now, l.config.LeaseTTL, l.config.BatchSize)
	if err != nil {
		return fmt.Errorf("lease outbox rows: %w", err)
	}

	for _, item := range leased {
		deliverErr := l.deliver(ctx, item.Event)
		if deliverErr == nil {
			if err := l.store.AckOutbox(ctx, item.Row.Seq, storage.OutboxOutcomeSucceeded, time.Time{}, ""); err != nil {
				log.Printf("worker: ack seq %d: %v", item.Row.Seq, err)
			}
			continue
		}

		if item.Row.AttemptCount >= l.config.MaxAttempts {
			log.Printf("worker: dead-lettering seq %d after %d attempts: %v", item.Row.Seq, item.Row.AttemptCount, deliverErr)
			if err := l.store.AckOutbox(ctx, item.Row.Seq, storage.OutboxOutcomeDead, time.Time{}, deliverErr.Error()); err != nil {
				log.Printf("worker: ack seq %d: %v", item.Row.Seq, err)
			}
			continue
		}

		nextAttemptAt := now.Add(l.retryDelay(item.Row.AttemptCount))
		if err := l.store.AckOutbox(ctx, item.Row.Seq, storage.OutboxOutcomeRetry, nextAttemptAt, deliverErr.Error()); err != nil {
			log.Printf("worker: ack seq %d: %v", item.Row.Seq, err)
		}
	}
	return nil
}

// deliver fans evt out to every sink, collecting failures so one bad sink
// does not starve the others of the event.
func (l *Loop) deliver(ctx context.Context, evt event.Event) error {
	var failures []error
	for _, sink := range l.sinks {
		if err := sink.Deliver(ctx, evt); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(failures...)
}

// retryDelay doubles the base backoff per completed attempt, capped at
// the configured max delay.
func (l *Loop) retryDelay(attempts int) time.Duration {
	delay := l.config.RetryBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= l.config.RetryMaxDelay {
			return l.config.RetryMaxDelay
		}
	}
	if delay > l.config.RetryMaxDelay {
		return l.config.RetryMaxDelay
	}
	return delay
}
