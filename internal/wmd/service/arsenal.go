package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/brink.zone/internal/platform/errors"
	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
)

var (
	// ErrUnknownWarhead indicates the warhead type is not in the catalog.
	ErrUnknownWarhead = apperrors.New(apperrors.CodeUnknownWarhead, "unknown warhead type")
	// ErrUnknownBattery indicates the battery type is not in the catalog.
	ErrUnknownBattery = apperrors.New(apperrors.CodeUnknownBattery, "unknown battery type")
	// ErrMissileNotFound indicates the missile id does not exist.
	ErrMissileNotFound = apperrors.New(apperrors.CodeNotFound, "missile not found")
	// ErrBatteryNotFound indicates the battery id does not exist.
	ErrBatteryNotFound = apperrors.New(apperrors.CodeNotFound, "battery not found")
	// ErrAuthorizationRequired indicates a restricted launch has no usable
	// clan authorization.
	ErrAuthorizationRequired = apperrors.New(apperrors.CodeAuthorizationRequired, "launch authorization required")
)

// Arsenal is a player's combat assets.
type Arsenal struct {
	Missiles  []domain.Missile
	Batteries []domain.Battery
}

// InterceptionResult reports one interception attempt. Seed reproduces the
// roll for audit.
type InterceptionResult struct {
	Intercepted bool
	Chance      float64
	Roll        float64
	Seed        int64
	Missile     domain.Missile
	Battery     domain.Battery
}

type missileEventPayload struct {
	WarheadType    string `json:"warhead_type"`
	Status         string `json:"status"`
	TargetPlayerID string `json:"target_player_id,omitempty"`
	ImpactAt       int64  `json:"impact_at,omitempty"`
	AuthVoteID     string `json:"auth_vote_id,omitempty"`
	Damage         uint   `json:"damage,omitempty"`
}

type batteryEventPayload struct {
	BatteryType string `json:"battery_type"`
	Status      string `json:"status"`
	HP          uint   `json:"hp"`
	MissileID   string `json:"missile_id,omitempty"`
}

type interceptionEventPayload struct {
	BatteryID   string  `json:"battery_id"`
	WarheadType string  `json:"warhead_type"`
	Chance      float64 `json:"chance"`
	Roll        float64 `json:"roll"`
	Seed        int64   `json:"seed"`
}

func missileEvent(eventType event.Type, actorID, clanID string, missile domain.Missile) (event.Event, error) {
	payload := missileEventPayload{
		WarheadType:    missile.WarheadType,
		Status:         string(missile.Status),
		TargetPlayerID: missile.TargetPlayerID,
		AuthVoteID:     missile.AuthVoteID,
	}
	if missile.ImpactAt != nil {
		payload.ImpactAt = missile.ImpactAt.UnixMilli()
	}
	evt, err := event.New(eventType, actorID, clanID, missile.ID, payload)
	if err != nil {
		return event.Event{}, apperrors.Wrap(apperrors.CodeInternal, "build event", err)
	}
	return evt, nil
}

func batteryEvent(eventType event.Type, actorID, clanID string, battery domain.Battery) (event.Event, error) {
	evt, err := event.New(eventType, actorID, clanID, battery.ID, batteryEventPayload{
		BatteryType: battery.Type,
		Status:      string(battery.Status),
		HP:          battery.HP,
	})
	if err != nil {
		return event.Event{}, apperrors.Wrap(apperrors.CodeInternal, "build event", err)
	}
	return evt, nil
}

// DeployBattery builds a defense battery for the player, debiting its build
// cost in the same transaction.
func (s *Service) DeployBattery(ctx context.Context, playerID, batteryType string) (domain.Battery, error) {
	def, ok := s.catalog.Battery(batteryType)
	if !ok {
		return domain.Battery{}, ErrUnknownBattery
	}
	if err := s.requireTech(ctx, playerID, def.RequiredTechID); err != nil {
		return domain.Battery{}, err
	}

	var result domain.Battery
	err := retryConflicts(func() error {
		wallet, err := s.wallet(ctx, playerID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := debit(&wallet, def.BuildCost, now); err != nil {
			return err
		}
		battery, err := domain.NewBattery(playerID, def, s.now, s.newID)
		if err != nil {
			return err
		}

		evt, err := batteryEvent(event.TypeBatteryDeployed, playerID, s.clanOf(ctx, playerID), battery)
		if err != nil {
			return err
		}
		if err := s.store.CreateBattery(ctx, battery, wallet, wallet.Version, []event.Event{evt}); err != nil {
			return err
		}
		result = battery
		return nil
	})
	if err != nil {
		return domain.Battery{}, err
	}
	return result, nil
}

// RepairBattery restores a damaged battery to full hit points for its
// repair cost. Destroyed batteries cannot be repaired.
func (s *Service) RepairBattery(ctx context.Context, batteryID, playerID string) (domain.Battery, error) {
	var result domain.Battery
	err := retryConflicts(func() error {
		record, err := s.battery(ctx, batteryID)
		if err != nil {
			return err
		}
		if record.Battery.OwnerID != playerID {
			return domain.ErrNotOwner
		}
		def, ok := s.catalog.Battery(record.Battery.Type)
		if !ok {
			return ErrUnknownBattery
		}

		wallet, err := s.wallet(ctx, playerID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := record.Battery.Repair(def, now); err != nil {
			return err
		}
		if err := debit(&wallet, def.RepairCost, now); err != nil {
			return err
		}

		evt, err := batteryEvent(event.TypeBatteryRepaired, playerID, s.clanOf(ctx, playerID), record.Battery)
		if err != nil {
			return err
		}
		if err := s.store.UpdateBatteryAndWallet(ctx, record.Battery, record.Version, wallet, wallet.Version, []event.Event{evt}); err != nil {
			return err
		}
		result = record.Battery
		return nil
	})
	if err != nil {
		return domain.Battery{}, err
	}
	return result, nil
}

// DismantleBattery removes a battery. Missing ids are success, so retries
// are idempotent.
func (s *Service) DismantleBattery(ctx context.Context, batteryID string) error {
	if batteryID == "" {
		return domain.ErrEmptyBatteryID
	}
	record, err := s.store.GetBattery(ctx, batteryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeInternal, "load battery", err)
	}

	evt, err := batteryEvent(event.TypeBatteryDismantled, record.Battery.OwnerID, s.clanOf(ctx, record.Battery.OwnerID), record.Battery)
	if err != nil {
		return err
	}
	if _, err := s.store.DeleteBattery(ctx, batteryID, []event.Event{evt}); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "delete battery", err)
	}
	return nil
}

// BuildMissile assembles a READY missile, debiting the warhead's build cost
// in the same transaction.
func (s *Service) BuildMissile(ctx context.Context, ownerID, warheadType, targetPlayerID string, target domain.Coordinates) (domain.Missile, error) {
	def, ok := s.catalog.Warhead(warheadType)
	if !ok {
		return domain.Missile{}, ErrUnknownWarhead
	}
	if err := s.requireTech(ctx, ownerID, def.RequiredTechID); err != nil {
		return domain.Missile{}, err
	}

	var result domain.Missile
	err := retryConflicts(func() error {
		wallet, err := s.wallet(ctx, ownerID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := debit(&wallet, def.BuildCost, now); err != nil {
			return err
		}
		missile, err := domain.NewMissile(ownerID, def, targetPlayerID, target, s.now, s.newID)
		if err != nil {
			return err
		}

		evt, err := missileEvent(event.TypeMissileBuilt, ownerID, s.clanOf(ctx, ownerID), missile)
		if err != nil {
			return err
		}
		if err := s.store.CreateMissile(ctx, missile, wallet, wallet.Version, []event.Event{evt}); err != nil {
			return err
		}
		result = missile
		return nil
	})
	if err != nil {
		return domain.Missile{}, err
	}
	return result, nil
}

// LaunchMissile moves a READY missile into flight. Restricted warheads
// require a usable clan authorization, consumed atomically with the launch:
// when two launches race for one authorization, exactly one wins.
func (s *Service) LaunchMissile(ctx context.Context, missileID, ownerID string) (domain.Missile, error) {
	var result domain.Missile
	err := retryConflicts(func() error {
		record, err := s.missile(ctx, missileID)
		if err != nil {
			return err
		}
		if record.Missile.OwnerID != ownerID {
			return domain.ErrNotOwner
		}
		def, ok := s.catalog.Warhead(record.Missile.WarheadType)
		if !ok {
			return ErrUnknownWarhead
		}

		now := s.now()
		flight := time.Duration(def.FlightDurationSeconds) * time.Second
		if !def.Restricted {
			if err := record.Missile.Launch(flight, now); err != nil {
				return err
			}
			evt, err := missileEvent(event.TypeMissileLaunched, ownerID, s.clanOf(ctx, ownerID), record.Missile)
			if err != nil {
				return err
			}
			if err := s.store.UpdateMissile(ctx, record.Missile, record.Version, []event.Event{evt}); err != nil {
				return err
			}
			result = record.Missile
			return nil
		}

		member, err := s.roster.MemberOf(ctx, ownerID)
		if err != nil {
			if errors.Is(err, roster.ErrNoMembership) {
				return ErrAuthorizationRequired
			}
			return apperrors.Wrap(apperrors.CodeInternal, "look up membership", err)
		}
		authorization, err := s.store.FindAuthorization(ctx, member.ClanID, record.Missile.WarheadType, now.Add(-s.policy.AuthorizationTTL))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrAuthorizationRequired
			}
			return apperrors.Wrap(apperrors.CodeInternal, "find authorization", err)
		}

		if err := authorization.Vote.Consume(ownerID, now); err != nil {
			return err
		}
		if err := record.Missile.Launch(flight, now); err != nil {
			return err
		}
		record.Missile.AuthVoteID = authorization.Vote.ID

		evt, err := missileEvent(event.TypeMissileLaunched, ownerID, member.ClanID, record.Missile)
		if err != nil {
			return err
		}
		if err := s.store.LaunchWithAuthorization(ctx, record.Missile, record.Version, authorization.Vote, authorization.Version, []event.Event{evt}); err != nil {
			return err
		}
		result = record.Missile
		return nil
	})
	if err != nil {
		return domain.Missile{}, err
	}
	return result, nil
}

// AttemptInterception rolls one interception attempt by the caller's
// battery against a missile in flight. The battery enters cooldown whether
// or not the roll succeeds; a miss leaves the missile LAUNCHED for other
// batteries to try.
func (s *Service) AttemptInterception(ctx context.Context, missileID, batteryID, batteryOwnerID string) (InterceptionResult, error) {
	var result InterceptionResult
	err := retryConflicts(func() error {
		missileRecord, err := s.missile(ctx, missileID)
		if err != nil {
			return err
		}
		if missileRecord.Missile.Status != domain.MissileStatusLaunched {
			return domain.ErrMissileNotInFlight
		}
		batteryRecord, err := s.battery(ctx, batteryID)
		if err != nil {
			return err
		}
		if batteryRecord.Battery.OwnerID != batteryOwnerID {
			return domain.ErrNotOwner
		}
		batteryDef, ok := s.catalog.Battery(batteryRecord.Battery.Type)
		if !ok {
			return ErrUnknownBattery
		}
		warheadDef, ok := s.catalog.Warhead(missileRecord.Missile.WarheadType)
		if !ok {
			return ErrUnknownWarhead
		}

		now := s.now()
		if !batteryRecord.Battery.Operable(now) {
			return domain.ErrWrongStatus
		}

		chance := batteryRecord.Battery.EffectiveInterceptChance(batteryDef, warheadDef)
		seed, roll := s.roll()
		intercepted := roll < chance
		clanID := s.clanOf(ctx, batteryOwnerID)
		payload := interceptionEventPayload{
			BatteryID:   batteryRecord.Battery.ID,
			WarheadType: missileRecord.Missile.WarheadType,
			Chance:      chance,
			Roll:        roll,
			Seed:        seed,
		}

		batteryRecord.Battery.BeginCooldown(batteryDef, now)
		if !intercepted {
			evt, err := event.New(event.TypeInterceptionMissed, batteryOwnerID, clanID, missileRecord.Missile.ID, payload)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, "build event", err)
			}
			if err := s.store.UpdateBattery(ctx, batteryRecord.Battery, batteryRecord.Version, []event.Event{evt}); err != nil {
				return err
			}
			result = InterceptionResult{
				Chance:  chance,
				Roll:    roll,
				Seed:    seed,
				Missile: missileRecord.Missile,
				Battery: batteryRecord.Battery,
			}
			return nil
		}

		if err := missileRecord.Missile.Intercept(now); err != nil {
			return err
		}
		evt, err := event.New(event.TypeMissileIntercepted, batteryOwnerID, clanID, missileRecord.Missile.ID, payload)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "build event", err)
		}
		if err := s.store.UpdateMissileAndBattery(ctx, missileRecord.Missile, missileRecord.Version, batteryRecord.Battery, batteryRecord.Version, []event.Event{evt}); err != nil {
			return err
		}
		result = InterceptionResult{
			Intercepted: true,
			Chance:      chance,
			Roll:        roll,
			Seed:        seed,
			Missile:     missileRecord.Missile,
			Battery:     batteryRecord.Battery,
		}
		return nil
	})
	if err != nil {
		return InterceptionResult{}, err
	}
	return result, nil
}

// GetArsenal returns the player's missiles and batteries.
func (s *Service) GetArsenal(ctx context.Context, playerID string) (Arsenal, error) {
	if playerID == "" {
		return Arsenal{}, domain.ErrEmptyPlayerID
	}
	missileRecords, err := s.store.ListMissiles(ctx, playerID)
	if err != nil {
		return Arsenal{}, apperrors.Wrap(apperrors.CodeInternal, "list missiles", err)
	}
	batteryRecords, err := s.store.ListBatteries(ctx, playerID)
	if err != nil {
		return Arsenal{}, apperrors.Wrap(apperrors.CodeInternal, "list batteries", err)
	}

	arsenal := Arsenal{
		Missiles:  make([]domain.Missile, 0, len(missileRecords)),
		Batteries: make([]domain.Battery, 0, len(batteryRecords)),
	}
	for _, record := range missileRecords {
		arsenal.Missiles = append(arsenal.Missiles, record.Missile)
	}
	for _, record := range batteryRecords {
		arsenal.Batteries = append(arsenal.Batteries, record.Battery)
	}
	return arsenal, nil
}

// ResolveDueImpacts resolves LAUNCHED missiles past their flight deadline.
// Warhead damage lands on the target player's strongest standing battery.
// It returns how many impacts this sweep applied; missiles another sweeper
// or a racing interception already resolved are skipped.
func (s *Service) ResolveDueImpacts(ctx context.Context, now time.Time, limit int) (int, error) {
	records, err := s.store.DueImpacts(ctx, now, limit)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "list due impacts", err)
	}

	resolved := 0
	for _, record := range records {
		if !record.Missile.Impact(now) {
			continue
		}
		err := s.resolveImpact(ctx, record, now)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

// resolveImpact commits one impact: the missile transition, damage to the
// target's strongest battery when one stands, and the journal events.
func (s *Service) resolveImpact(ctx context.Context, record storage.MissileRecord, now time.Time) error {
	def, ok := s.catalog.Warhead(record.Missile.WarheadType)
	if !ok {
		return ErrUnknownWarhead
	}
	clanID := s.clanOf(ctx, record.Missile.OwnerID)

	impactEvent, err := missileEvent(event.TypeMissileImpacted, record.Missile.OwnerID, clanID, record.Missile)
	if err != nil {
		return err
	}

	target, err := s.impactTarget(ctx, record.Missile.TargetPlayerID)
	if err != nil {
		return err
	}
	if target == nil {
		return s.store.UpdateMissile(ctx, record.Missile, record.Version, []event.Event{impactEvent})
	}

	batteryDef, ok := s.catalog.Battery(target.Battery.Type)
	if !ok {
		return ErrUnknownBattery
	}
	target.Battery.ApplyDamage(batteryDef, def.Damage, now)

	events := []event.Event{impactEvent}
	if target.Battery.Status == domain.BatteryStatusDestroyed {
		destroyed, err := event.New(event.TypeBatteryDestroyed, record.Missile.OwnerID, s.clanOf(ctx, target.Battery.OwnerID), target.Battery.ID, batteryEventPayload{
			BatteryType: target.Battery.Type,
			Status:      string(target.Battery.Status),
			HP:          target.Battery.HP,
			MissileID:   record.Missile.ID,
		})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "build event", err)
		}
		events = append(events, destroyed)
	}
	return s.store.UpdateMissileAndBattery(ctx, record.Missile, record.Version, target.Battery, target.Version, events)
}

// impactTarget picks the target player's highest-hp non-destroyed battery,
// or nil when none stands.
func (s *Service) impactTarget(ctx context.Context, targetPlayerID string) (*storage.BatteryRecord, error) {
	if targetPlayerID == "" {
		return nil, nil
	}
	batteries, err := s.store.ListBatteries(ctx, targetPlayerID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "list target batteries", err)
	}
	var target *storage.BatteryRecord
	for i := range batteries {
		candidate := &batteries[i]
		if candidate.Battery.Status == domain.BatteryStatusDestroyed {
			continue
		}
		if target == nil || candidate.Battery.HP > target.Battery.HP {
			target = candidate
		}
	}
	return target, nil
}

// requireTech enforces catalog tech gating for builds.
func (s *Service) requireTech(ctx context.Context, playerID, techID string) error {
	if techID == "" {
		return nil
	}
	record, err := s.ledger(ctx, playerID)
	if err != nil {
		return err
	}
	if !record.Ledger.HasCompleted(techID) {
		return apperrors.WithMetadata(apperrors.CodeTechLocked, "required technology is not researched", map[string]string{
			"TechID": techID,
		})
	}
	return nil
}

func (s *Service) missile(ctx context.Context, missileID string) (storage.MissileRecord, error) {
	if missileID == "" {
		return storage.MissileRecord{}, domain.ErrEmptyMissileID
	}
	record, err := s.store.GetMissile(ctx, missileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.MissileRecord{}, ErrMissileNotFound
		}
		return storage.MissileRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load missile", err)
	}
	return record, nil
}

func (s *Service) battery(ctx context.Context, batteryID string) (storage.BatteryRecord, error) {
	if batteryID == "" {
		return storage.BatteryRecord{}, domain.ErrEmptyBatteryID
	}
	record, err := s.store.GetBattery(ctx, batteryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.BatteryRecord{}, ErrBatteryNotFound
		}
		return storage.BatteryRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load battery", err)
	}
	return record, nil
}
