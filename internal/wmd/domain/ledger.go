package domain

import (
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
)

var (
	// ErrEmptyPlayerID indicates a missing player id.
	ErrEmptyPlayerID = apperrors.New(apperrors.CodeEmptyPlayerID, "player id is required")
	// ErrEmptyTechID indicates a missing tech id.
	ErrEmptyTechID = apperrors.New(apperrors.CodeEmptyTechID, "tech id is required")
	// ErrAlreadyResearching indicates a ledger already has an in-flight research job.
	ErrAlreadyResearching = apperrors.New(apperrors.CodeAlreadyResearching, "another research is already in progress")
	// ErrPrerequisitesUnmet indicates missing prerequisite techs.
	ErrPrerequisitesUnmet = apperrors.New(apperrors.CodePrerequisitesUnmet, "tech prerequisites are not completed")
	// ErrAlreadyCompleted indicates the tech is already owned.
	ErrAlreadyCompleted = apperrors.New(apperrors.CodeAlreadyCompleted, "tech is already completed")
	// ErrInvalidAmount indicates a zero or otherwise unusable amount.
	ErrInvalidAmount = apperrors.New(apperrors.CodeInvalidAmount, "amount must be greater than zero")
)

// ActiveResearch is a ledger's single in-flight timed research job.
type ActiveResearch struct {
	TechID      string
	StartedAt   time.Time
	CompletesAt time.Time
}

// Ledger is one player's research progress record.
//
// Invariants: at most one ActiveResearch at a time; a tech enters Completed
// only once; every completed tech has all of its prerequisites completed.
type Ledger struct {
	PlayerID       string
	RP             uint
	Completed      map[string]struct{}
	ActiveResearch *ActiveResearch
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewLedger creates an empty ledger for a player.
func NewLedger(playerID string, now func() time.Time) (Ledger, error) {
	if playerID == "" {
		return Ledger{}, ErrEmptyPlayerID
	}
	if now == nil {
		now = time.Now
	}
	createdAt := now().UTC()
	return Ledger{
		PlayerID:  playerID,
		Completed: make(map[string]struct{}),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// HasCompleted reports whether the ledger owns the given tech.
func (l *Ledger) HasCompleted(techID string) bool {
	_, ok := l.Completed[techID]
	return ok
}

// PrerequisitesMet reports whether every prerequisite of tech is completed.
func (l *Ledger) PrerequisitesMet(tech catalog.TechDefinition) bool {
	for _, prereq := range tech.PrerequisiteIDs {
		if !l.HasCompleted(prereq) {
			return false
		}
	}
	return true
}

// AvailableTechs returns catalog techs not yet completed whose full
// prerequisite set is completed.
func (l *Ledger) AvailableTechs(c *catalog.Catalog) []catalog.TechDefinition {
	var available []catalog.TechDefinition
	for _, tech := range c.Techs() {
		if l.HasCompleted(tech.ID) {
			continue
		}
		if !l.PrerequisitesMet(tech) {
			continue
		}
		available = append(available, tech)
	}
	return available
}

// CanStartTimedResearch validates the timed-research preconditions without
// mutating the ledger. It returns nil when StartTimedResearch would succeed.
func (l *Ledger) CanStartTimedResearch(tech catalog.TechDefinition) error {
	if l.ActiveResearch != nil {
		return ErrAlreadyResearching
	}
	if l.HasCompleted(tech.ID) {
		return ErrAlreadyCompleted
	}
	if !l.PrerequisitesMet(tech) {
		return ErrPrerequisitesUnmet
	}
	return nil
}

// StartTimedResearch begins the timed research track for tech. No RP is
// deducted; completion is driven by the deadline sweep.
func (l *Ledger) StartTimedResearch(tech catalog.TechDefinition, now time.Time) error {
	if err := l.CanStartTimedResearch(tech); err != nil {
		return err
	}
	startedAt := now.UTC()
	l.ActiveResearch = &ActiveResearch{
		TechID:      tech.ID,
		StartedAt:   startedAt,
		CompletesAt: startedAt.Add(time.Duration(tech.ResearchDurationSeconds) * time.Second),
	}
	l.UpdatedAt = startedAt
	return nil
}

// CompleteResearchWithRP is the instant completion track: it debits the
// tech's RP cost and marks the tech completed in one step.
//
// The instant track is independent of a timed job on a different tech. When
// the same tech is also being researched on the timed track, the timed job
// is folded into the instant completion and cleared.
func (l *Ledger) CompleteResearchWithRP(tech catalog.TechDefinition, now time.Time) error {
	if l.HasCompleted(tech.ID) {
		return ErrAlreadyCompleted
	}
	if !l.PrerequisitesMet(tech) {
		return ErrPrerequisitesUnmet
	}
	if l.RP < tech.RPCost {
		return apperrors.WithMetadata(apperrors.CodeInsufficientRP, "not enough research points", map[string]string{
			"Required": formatUint(tech.RPCost),
			"Current":  formatUint(l.RP),
		})
	}
	updatedAt := now.UTC()
	l.RP -= tech.RPCost
	l.Completed[tech.ID] = struct{}{}
	if l.ActiveResearch != nil && l.ActiveResearch.TechID == tech.ID {
		l.ActiveResearch = nil
	}
	l.UpdatedAt = updatedAt
	return nil
}

// CompleteDueResearch folds the active job into the completed set when its
// deadline has passed. It reports whether a completion occurred, so callers
// can sweep repeatedly without double-applying effects.
func (l *Ledger) CompleteDueResearch(now time.Time) (string, bool) {
	if l.ActiveResearch == nil {
		return "", false
	}
	if l.ActiveResearch.CompletesAt.After(now) {
		return "", false
	}
	techID := l.ActiveResearch.TechID
	l.Completed[techID] = struct{}{}
	l.ActiveResearch = nil
	l.UpdatedAt = now.UTC()
	return techID, true
}

// AddRP credits research points to the ledger.
func (l *Ledger) AddRP(amount uint, now time.Time) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.RP += amount
	l.UpdatedAt = now.UTC()
	return nil
}

// CompletedIDs returns the completed tech ids in unspecified order.
func (l *Ledger) CompletedIDs() []string {
	ids := make([]string, 0, len(l.Completed))
	for id := range l.Completed {
		ids = append(ids, id)
	}
	return ids
}
