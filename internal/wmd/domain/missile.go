package domain

import (
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/id"
	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
)

// MissileStatus is the lifecycle state of a missile.
type MissileStatus string

const (
	// MissileStatusReady indicates the missile is built and launchable.
	MissileStatusReady MissileStatus = "READY"
	// MissileStatusLaunched indicates the missile is in flight.
	MissileStatusLaunched MissileStatus = "LAUNCHED"
	// MissileStatusIntercepted indicates a defense battery destroyed the missile.
	MissileStatusIntercepted MissileStatus = "INTERCEPTED"
	// MissileStatusImpacted indicates the missile reached its target.
	MissileStatusImpacted MissileStatus = "IMPACTED"
)

// Terminal reports whether the status is a terminal state.
func (s MissileStatus) Terminal() bool {
	return s == MissileStatusIntercepted || s == MissileStatusImpacted
}

var (
	// ErrEmptyMissileID indicates a missing missile id.
	ErrEmptyMissileID = apperrors.New(apperrors.CodeEmptyMissileID, "missile id is required")
	// ErrWrongStatus indicates the entity's status does not allow the operation.
	ErrWrongStatus = apperrors.New(apperrors.CodeWrongStatus, "status does not allow this operation")
	// ErrMissileNotInFlight indicates an interception attempt against a
	// missile that is not LAUNCHED.
	ErrMissileNotInFlight = apperrors.New(apperrors.CodeMissileNotInFlight, "missile is not in flight")
	// ErrNotOwner indicates the actor does not own the entity.
	ErrNotOwner = apperrors.New(apperrors.CodeNotOwner, "actor does not own this asset")
)

// Coordinates is a missile's target location on the world map.
type Coordinates struct {
	X int
	Y int
}

// Missile is one owned, consumable, one-shot combat asset.
//
// Status only moves forward along READY -> LAUNCHED -> {INTERCEPTED |
// IMPACTED}; a missile is consumed exactly once and never re-enters the
// READY pool.
type Missile struct {
	ID             string
	OwnerID        string
	WarheadType    string
	Status         MissileStatus
	TargetPlayerID string
	Target         Coordinates
	AuthVoteID     string
	BuiltAt        time.Time
	LaunchedAt     *time.Time
	ImpactAt       *time.Time
	ResolvedAt     *time.Time
}

// NewMissile builds a READY missile for a player.
func NewMissile(ownerID string, warhead catalog.WarheadDefinition, targetPlayerID string, target Coordinates, now func() time.Time, idGenerator func() (string, error)) (Missile, error) {
	if ownerID == "" {
		return Missile{}, ErrEmptyPlayerID
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	missileID, err := idGenerator()
	if err != nil {
		return Missile{}, apperrors.Wrap(apperrors.CodeInternal, "generate missile id", err)
	}
	return Missile{
		ID:             missileID,
		OwnerID:        ownerID,
		WarheadType:    warhead.Type,
		Status:         MissileStatusReady,
		TargetPlayerID: targetPlayerID,
		Target:         target,
		BuiltAt:        now().UTC(),
	}, nil
}

// Launch transitions READY -> LAUNCHED and stamps the flight deadline. The
// transition is irreversible; any non-READY missile is rejected.
func (m *Missile) Launch(flightDuration time.Duration, now time.Time) error {
	if m.Status != MissileStatusReady {
		return ErrWrongStatus
	}
	launchedAt := now.UTC()
	impactAt := launchedAt.Add(flightDuration)
	m.Status = MissileStatusLaunched
	m.LaunchedAt = &launchedAt
	m.ImpactAt = &impactAt
	return nil
}

// Intercept transitions LAUNCHED -> INTERCEPTED.
func (m *Missile) Intercept(now time.Time) error {
	if m.Status != MissileStatusLaunched {
		return ErrMissileNotInFlight
	}
	resolvedAt := now.UTC()
	m.Status = MissileStatusIntercepted
	m.ResolvedAt = &resolvedAt
	return nil
}

// Impact transitions LAUNCHED -> IMPACTED once the flight deadline passes.
// It reports whether the transition occurred, so the impact sweep is
// idempotent against already-terminal missiles.
func (m *Missile) Impact(now time.Time) bool {
	if m.Status != MissileStatusLaunched {
		return false
	}
	if m.ImpactAt == nil || m.ImpactAt.After(now) {
		return false
	}
	resolvedAt := now.UTC()
	m.Status = MissileStatusImpacted
	m.ResolvedAt = &resolvedAt
	return true
}
