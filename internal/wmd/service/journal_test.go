package service

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/testkit/wmdfakes"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
)

func TestListEventsPagesInSequenceOrder(t *testing.T) {
	store := wmdfakes.NewStore()
	svc := newTestService(t, store, testStart)
	for seq := uint64(1); seq <= 3; seq++ {
		store.Events = append(store.Events, event.Event{
			Seq:       seq,
			Type:      event.TypeResearchStarted,
			ActorID:   "player-1",
			EntityID:  "player-1",
			CreatedAt: testStart,
		})
	}

	events, next, err := svc.ListEvents(context.Background(), "", 2, "")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("first page = %+v", events)
	}
	if next == "" {
		t.Fatal("expected a next page token")
	}

	events, next, err = svc.ListEvents(context.Background(), "", 2, next)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(events) != 1 || events[0].Seq != 3 {
		t.Fatalf("second page = %+v", events)
	}
	if next != "" {
		t.Fatalf("unexpected token on final page: %q", next)
	}
}

func TestListEventsRejectsBadFilter(t *testing.T) {
	store := wmdfakes.NewStore()
	svc := newTestService(t, store, testStart)

	_, _, err := svc.ListEvents(context.Background(), `event_type = `, 10, "")
	if err == nil {
		t.Fatal("expected filter parse error")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidFilter {
		t.Fatalf("error = %v, want INVALID_FILTER", err)
	}
}
