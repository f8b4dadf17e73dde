package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
)

var batteryFlak = catalog.BatteryDefinition{
	Type:            "flak_battery",
	MaxHP:           50,
	InterceptChance: 0.4,
	CooldownSeconds: 120,
	RepairCost:      150,
}

func mustBattery(t *testing.T, at time.Time) Battery {
	t.Helper()
	battery, err := NewBattery("player-1", batteryFlak, testClock(at), nil)
	if err != nil {
		t.Fatalf("new battery: %v", err)
	}
	return battery
}

func TestNewBatteryStartsIdleAtFullHP(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	battery := mustBattery(t, now)
	if battery.HP != batteryFlak.MaxHP {
		t.Fatalf("hp = %d, want %d", battery.HP, batteryFlak.MaxHP)
	}
	if battery.Status != BatteryStatusIdle {
		t.Fatalf("status = %q, want %q", battery.Status, BatteryStatusIdle)
	}
	if !battery.Operable(now) {
		t.Fatal("expected fresh battery to be operable")
	}
}

func TestBeginCooldownMakesBatteryActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	battery := mustBattery(t, now)

	battery.BeginCooldown(batteryFlak, now)
	if battery.Status != BatteryStatusActive {
		t.Fatalf("status = %q, want %q", battery.Status, BatteryStatusActive)
	}
	if battery.Operable(now.Add(time.Minute)) {
		t.Fatal("cooling battery must not be operable")
	}
	if !battery.Operable(now.Add(121 * time.Second)) {
		t.Fatal("battery must become operable after cooldown")
	}
}

func TestApplyDamageDerivesStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		damage uint
		wantHP uint
		want   BatteryStatus
	}{
		{name: "scratch", damage: 10, wantHP: 40, want: BatteryStatusIdle},
		{name: "below half", damage: 26, wantHP: 24, want: BatteryStatusDamaged},
		{name: "destroyed", damage: 50, wantHP: 0, want: BatteryStatusDestroyed},
		{name: "overkill floors at zero", damage: 200, wantHP: 0, want: BatteryStatusDestroyed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			battery := mustBattery(t, now)
			battery.ApplyDamage(batteryFlak, tc.damage, now)
			if battery.HP != tc.wantHP {
				t.Fatalf("hp = %d, want %d", battery.HP, tc.wantHP)
			}
			if battery.Status != tc.want {
				t.Fatalf("status = %q, want %q", battery.Status, tc.want)
			}
		})
	}
}

func TestRepairRestoresToTierMax(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	battery := mustBattery(t, now)
	battery.ApplyDamage(batteryFlak, 30, now)

	if err := battery.Repair(batteryFlak, now.Add(time.Minute)); err != nil {
		t.Fatalf("repair: %v", err)
	}
	if battery.HP != batteryFlak.MaxHP {
		t.Fatalf("hp = %d, want %d", battery.HP, batteryFlak.MaxHP)
	}
	if battery.Status != BatteryStatusIdle {
		t.Fatalf("status = %q, want %q", battery.Status, BatteryStatusIdle)
	}
}

func TestRepairRejectsDestroyedBattery(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	battery := mustBattery(t, now)
	battery.ApplyDamage(batteryFlak, 50, now)

	if err := battery.Repair(batteryFlak, now); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("err = %v, want %v", err, ErrWrongStatus)
	}
	if battery.HP != 0 {
		t.Fatalf("hp = %d, want 0", battery.HP)
	}
}

func TestEffectiveInterceptChance(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	warhead := catalog.WarheadDefinition{Type: "fission", Evasion: 0.2}

	battery := mustBattery(t, now)
	got := battery.EffectiveInterceptChance(batteryFlak, warhead)
	want := 0.4 * 1.0 * 0.8
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("chance = %v, want %v", got, want)
	}

	battery.ApplyDamage(batteryFlak, 25, now)
	got = battery.EffectiveInterceptChance(batteryFlak, warhead)
	want = 0.4 * 0.5 * 0.8
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("damaged chance = %v, want %v", got, want)
	}

	battery.ApplyDamage(batteryFlak, 25, now)
	if got := battery.EffectiveInterceptChance(batteryFlak, warhead); got != 0 {
		t.Fatalf("destroyed chance = %v, want 0", got)
	}
}
