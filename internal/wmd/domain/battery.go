package domain

import (
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/id"
	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
)

// BatteryStatus is the operational state of a defense battery.
type BatteryStatus string

const (
	// BatteryStatusIdle indicates an operable battery that is not cooling down.
	BatteryStatusIdle BatteryStatus = "IDLE"
	// BatteryStatusActive indicates an operable battery cooling down after a shot.
	BatteryStatusActive BatteryStatus = "ACTIVE"
	// BatteryStatusDamaged indicates the battery is below half strength.
	BatteryStatusDamaged BatteryStatus = "DAMAGED"
	// BatteryStatusDestroyed indicates the battery is out of action.
	BatteryStatusDestroyed BatteryStatus = "DESTROYED"
)

// ErrEmptyBatteryID indicates a missing battery id.
var ErrEmptyBatteryID = apperrors.New(apperrors.CodeEmptyBatteryID, "battery id is required")

// Battery is one owned, reusable defense asset.
//
// HP is monotonically non-increasing outside of Repair; Status is derived
// deterministically from HP thresholds and the cooldown deadline.
type Battery struct {
	ID            string
	OwnerID       string
	Type          string
	Status        BatteryStatus
	HP            uint
	CooldownUntil *time.Time
	DeployedAt    time.Time
	UpdatedAt     time.Time
}

// NewBattery deploys a battery at full strength.
func NewBattery(ownerID string, def catalog.BatteryDefinition, now func() time.Time, idGenerator func() (string, error)) (Battery, error) {
	if ownerID == "" {
		return Battery{}, ErrEmptyPlayerID
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	batteryID, err := idGenerator()
	if err != nil {
		return Battery{}, apperrors.Wrap(apperrors.CodeInternal, "generate battery id", err)
	}
	deployedAt := now().UTC()
	battery := Battery{
		ID:         batteryID,
		OwnerID:    ownerID,
		Type:       def.Type,
		HP:         def.MaxHP,
		DeployedAt: deployedAt,
		UpdatedAt:  deployedAt,
	}
	battery.recomputeStatus(def, deployedAt)
	return battery, nil
}

// Operable reports whether the battery can attempt an interception now: it
// must not be destroyed and must not be cooling down.
func (b *Battery) Operable(now time.Time) bool {
	if b.HP == 0 {
		return false
	}
	if b.CooldownUntil != nil && b.CooldownUntil.After(now) {
		return false
	}
	return true
}

// BeginCooldown puts the battery on its tier cooldown after a shot.
func (b *Battery) BeginCooldown(def catalog.BatteryDefinition, now time.Time) {
	until := now.UTC().Add(time.Duration(def.CooldownSeconds) * time.Second)
	b.CooldownUntil = &until
	b.UpdatedAt = now.UTC()
	b.recomputeStatus(def, now)
}

// ApplyDamage reduces HP by amount, flooring at zero, and recomputes status.
func (b *Battery) ApplyDamage(def catalog.BatteryDefinition, amount uint, now time.Time) {
	if amount >= b.HP {
		b.HP = 0
	} else {
		b.HP -= amount
	}
	b.UpdatedAt = now.UTC()
	b.recomputeStatus(def, now)
}

// Repair restores HP to the tier maximum. Destroyed batteries cannot be
// repaired; they must be dismantled and redeployed.
func (b *Battery) Repair(def catalog.BatteryDefinition, now time.Time) error {
	if b.HP == 0 {
		return ErrWrongStatus
	}
	b.HP = def.MaxHP
	b.UpdatedAt = now.UTC()
	b.recomputeStatus(def, now)
	return nil
}

// EffectiveInterceptChance derives this battery's single-roll interception
// probability against a warhead: the tier base chance scaled by the damage
// state and the warhead's evasion.
func (b *Battery) EffectiveInterceptChance(def catalog.BatteryDefinition, warhead catalog.WarheadDefinition) float64 {
	if b.HP == 0 || def.MaxHP == 0 {
		return 0
	}
	hpFactor := float64(b.HP) / float64(def.MaxHP)
	chance := def.InterceptChance * hpFactor * (1 - warhead.Evasion)
	if chance < 0 {
		return 0
	}
	if chance > 1 {
		return 1
	}
	return chance
}

// recomputeStatus derives Status from HP thresholds and the cooldown clock:
// zero HP is DESTROYED, below half of tier max is DAMAGED, cooling down is
// ACTIVE, otherwise IDLE.
func (b *Battery) recomputeStatus(def catalog.BatteryDefinition, now time.Time) {
	switch {
	case b.HP == 0:
		b.Status = BatteryStatusDestroyed
	case def.MaxHP > 0 && b.HP*2 < def.MaxHP:
		b.Status = BatteryStatusDamaged
	case b.CooldownUntil != nil && b.CooldownUntil.After(now):
		b.Status = BatteryStatusActive
	default:
		b.Status = BatteryStatusIdle
	}
}
