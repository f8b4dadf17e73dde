package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

// ErrUnknownTech indicates a tech id missing from the catalog.
var ErrUnknownTech = apperrors.New(apperrors.CodeUnknownTech, "tech is not in the catalog")

type researchStartedPayload struct {
	TechID      string    `json:"tech_id"`
	CompletesAt time.Time `json:"completes_at"`
}

type researchCompletedPayload struct {
	TechID  string `json:"tech_id"`
	Instant bool   `json:"instant"`
}

// GetLedger returns the player's research ledger, creating an empty one on
// first touch.
func (s *Service) GetLedger(ctx context.Context, playerID string) (domain.Ledger, error) {
	record, err := s.ledger(ctx, playerID)
	if err != nil {
		return domain.Ledger{}, err
	}
	return record.Ledger, nil
}

// GetAvailableTechs returns the techs the player could research next: not
// yet completed, with every prerequisite completed.
func (s *Service) GetAvailableTechs(ctx context.Context, playerID string) ([]catalog.TechDefinition, error) {
	record, err := s.ledger(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return record.Ledger.AvailableTechs(s.catalog), nil
}

// CanStartResearch reports, without mutating anything, whether the player
// could start timed research on the tech right now.
func (s *Service) CanStartResearch(ctx context.Context, playerID, techID string) error {
	tech, ok := s.catalog.Tech(techID)
	if !ok {
		return ErrUnknownTech
	}
	record, err := s.ledger(ctx, playerID)
	if err != nil {
		return err
	}
	return record.Ledger.CanStartTimedResearch(tech)
}

// StartResearch begins the timed research track for the tech. No RP is
// deducted; the deadline sweep completes the job.
func (s *Service) StartResearch(ctx context.Context, playerID, techID string) (domain.Ledger, error) {
	tech, ok := s.catalog.Tech(techID)
	if !ok {
		return domain.Ledger{}, ErrUnknownTech
	}

	var ledger domain.Ledger
	err := retryConflicts(func() error {
		record, err := s.ledger(ctx, playerID)
		if err != nil {
			return err
		}
		if err := record.Ledger.StartTimedResearch(tech, s.now()); err != nil {
			return err
		}

		evt, err := event.New(event.TypeResearchStarted, playerID, s.clanOf(ctx, playerID), tech.ID, researchStartedPayload{
			TechID:      tech.ID,
			CompletesAt: record.Ledger.ActiveResearch.CompletesAt,
		})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "build event", err)
		}
		if err := s.store.UpdateLedger(ctx, record.Ledger, record.Version, []event.Event{evt}); err != nil {
			return err
		}
		ledger = record.Ledger
		return nil
	})
	if err != nil {
		return domain.Ledger{}, err
	}
	return ledger, nil
}

// SpendRPOnResearch is the instant completion track: it debits the tech's
// RP cost and marks it completed in one step. A timed job on the same tech
// is folded into the completion; a timed job on a different tech is left
// running.
func (s *Service) SpendRPOnResearch(ctx context.Context, playerID, techID string) (domain.Ledger, error) {
	tech, ok := s.catalog.Tech(techID)
	if !ok {
		return domain.Ledger{}, ErrUnknownTech
	}

	var ledger domain.Ledger
	err := retryConflicts(func() error {
		record, err := s.ledger(ctx, playerID)
		if err != nil {
			return err
		}
		if err := record.Ledger.CompleteResearchWithRP(tech, s.now()); err != nil {
			return err
		}

		evt, err := event.New(event.TypeResearchCompleted, playerID, s.clanOf(ctx, playerID), tech.ID, researchCompletedPayload{
			TechID:  tech.ID,
			Instant: true,
		})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "build event", err)
		}
		if err := s.store.UpdateLedger(ctx, record.Ledger, record.Version, []event.Event{evt}); err != nil {
			return err
		}
		ledger = record.Ledger
		return nil
	})
	if err != nil {
		return domain.Ledger{}, err
	}
	return ledger, nil
}

// AddResearchPoints credits RP to the player's ledger. This is the accrual
// entry point the wider game and the seeder call into.
func (s *Service) AddResearchPoints(ctx context.Context, playerID string, amount uint) (domain.Ledger, error) {
	var ledger domain.Ledger
	err := retryConflicts(func() error {
		record, err := s.ledger(ctx, playerID)
		if err != nil {
			return err
		}
		if err := record.Ledger.AddRP(amount, s.now()); err != nil {
			return err
		}
		if err := s.store.UpdateLedger(ctx, record.Ledger, record.Version, nil); err != nil {
			return err
		}
		ledger = record.Ledger
		return nil
	})
	if err != nil {
		return domain.Ledger{}, err
	}
	return ledger, nil
}

// CompleteDueResearch folds every timed research job whose deadline has
// passed into its ledger's completed set. It returns how many completions
// this sweep applied; records another sweeper already completed are skipped.
func (s *Service) CompleteDueResearch(ctx context.Context, now time.Time, limit int) (int, error) {
	records, err := s.store.DueResearch(ctx, now, limit)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "list due research", err)
	}

	completed := 0
	for _, record := range records {
		techID, ok := record.Ledger.CompleteDueResearch(now)
		if !ok {
			continue
		}
		evt, err := event.New(event.TypeResearchCompleted, record.Ledger.PlayerID, s.clanOf(ctx, record.Ledger.PlayerID), techID, researchCompletedPayload{
			TechID: techID,
		})
		if err != nil {
			return completed, apperrors.Wrap(apperrors.CodeInternal, "build event", err)
		}
		err = s.store.UpdateLedger(ctx, record.Ledger, record.Version, []event.Event{evt})
		if errors.Is(err, storage.ErrVersionConflict) {
			// Another worker got there first.
			continue
		}
		if err != nil {
			return completed, apperrors.Wrap(apperrors.CodeInternal, "complete due research", err)
		}
		completed++
	}
	return completed, nil
}

// ledger loads the player's ledger record, creating an empty one on first
// touch.
func (s *Service) ledger(ctx context.Context, playerID string) (storage.LedgerRecord, error) {
	if playerID == "" {
		return storage.LedgerRecord{}, domain.ErrEmptyPlayerID
	}
	record, err := s.store.GetLedger(ctx, playerID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.LedgerRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load ledger", err)
	}

	ledger, err := domain.NewLedger(playerID, s.now)
	if err != nil {
		return storage.LedgerRecord{}, err
	}
	switch err := s.store.CreateLedger(ctx, ledger, nil); {
	case err == nil:
		return storage.LedgerRecord{Ledger: ledger, Version: 1}, nil
	case errors.Is(err, storage.ErrAlreadyExists):
		// Lost the first-touch race; the other writer's ledger wins.
		record, err := s.store.GetLedger(ctx, playerID)
		if err != nil {
			return storage.LedgerRecord{}, apperrors.Wrap(apperrors.CodeInternal, "reload ledger", err)
		}
		return record, nil
	default:
		return storage.LedgerRecord{}, apperrors.Wrap(apperrors.CodeInternal, "create ledger", err)
	}
}
