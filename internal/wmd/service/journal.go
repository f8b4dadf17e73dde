package service

import (
	"context"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/filter"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

// ListEvents returns one page of journal events in sequence order.
// filterStr is an AIP-160 expression over event_type, clan_id, and
// actor_id.
func (s *Service) ListEvents(ctx context.Context, filterStr string, pageSize int, pageToken string) ([]event.Event, string, error) {
	if _, err := filter.ParseEventFilter(filterStr); err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInvalidFilter, "parse event filter", err)
	}

	page, err := s.store.ListEvents(ctx, storage.EventQuery{
		Filter:    filterStr,
		PageSize:  pageSize,
		PageToken: pageToken,
	})
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, "list events", err)
	}
	return page.Events, page.NextPageToken, nil
}
