package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
)

var warheadFission = catalog.WarheadDefinition{
	Type:                  "fission",
	Restricted:            true,
	Damage:                80,
	FlightDurationSeconds: 300,
	Evasion:               0.2,
}

func mustMissile(t *testing.T, at time.Time) Missile {
	t.Helper()
	missile, err := NewMissile("player-1", warheadFission, "player-2", Coordinates{X: 4, Y: 9}, testClock(at), nil)
	if err != nil {
		t.Fatalf("new missile: %v", err)
	}
	return missile
}

func TestLaunchSetsFlightDeadline(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 3, 6, 0, 0, 0, time.UTC)
	missile := mustMissile(t, now)

	if err := missile.Launch(5*time.Minute, now); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if missile.Status != MissileStatusLaunched {
		t.Fatalf("status = %q, want %q", missile.Status, MissileStatusLaunched)
	}
	if missile.LaunchedAt == nil || !missile.LaunchedAt.Equal(now) {
		t.Fatalf("launched at = %v, want %v", missile.LaunchedAt, now)
	}
	if missile.ImpactAt == nil || !missile.ImpactAt.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("impact at = %v, want %v", missile.ImpactAt, now.Add(5*time.Minute))
	}
}

func TestLaunchIsExactlyOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 3, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		prepare func(*Missile)
	}{
		{
			name: "already launched",
			prepare: func(m *Missile) {
				if err := m.Launch(time.Minute, now); err != nil {
					t.Fatalf("launch: %v", err)
				}
			},
		},
		{
			name: "intercepted",
			prepare: func(m *Missile) {
				if err := m.Launch(time.Minute, now); err != nil {
					t.Fatalf("launch: %v", err)
				}
				if err := m.Intercept(now); err != nil {
					t.Fatalf("intercept: %v", err)
				}
			},
		},
		{
			name: "impacted",
			prepare: func(m *Missile) {
				if err := m.Launch(time.Minute, now); err != nil {
					t.Fatalf("launch: %v", err)
				}
				if !m.Impact(now.Add(2 * time.Minute)) {
					t.Fatal("impact")
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			missile := mustMissile(t, now)
			tc.prepare(&missile)
			before := missile.Status
			err := missile.Launch(time.Minute, now)
			if !errors.Is(err, ErrWrongStatus) {
				t.Fatalf("err = %v, want %v", err, ErrWrongStatus)
			}
			if missile.Status != before {
				t.Fatalf("status changed from %q to %q", before, missile.Status)
			}
		})
	}
}

func TestInterceptRequiresInFlight(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 3, 6, 0, 0, 0, time.UTC)
	missile := mustMissile(t, now)

	if err := missile.Intercept(now); !errors.Is(err, ErrMissileNotInFlight) {
		t.Fatalf("err = %v, want %v", err, ErrMissileNotInFlight)
	}

	if err := missile.Launch(time.Minute, now); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := missile.Intercept(now.Add(30 * time.Second)); err != nil {
		t.Fatalf("intercept: %v", err)
	}
	if missile.Status != MissileStatusIntercepted {
		t.Fatalf("status = %q, want %q", missile.Status, MissileStatusIntercepted)
	}

	// Terminal states never regress or flip.
	if err := missile.Intercept(now.Add(time.Minute)); !errors.Is(err, ErrMissileNotInFlight) {
		t.Fatalf("err = %v, want %v", err, ErrMissileNotInFlight)
	}
	if missile.Impact(now.Add(2 * time.Minute)) {
		t.Fatal("intercepted missile must not impact")
	}
	if missile.Status != MissileStatusIntercepted {
		t.Fatalf("status regressed to %q", missile.Status)
	}
}

func TestImpactAtDeadline(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 3, 6, 0, 0, 0, time.UTC)
	missile := mustMissile(t, now)
	if err := missile.Launch(time.Minute, now); err != nil {
		t.Fatalf("launch: %v", err)
	}

	if missile.Impact(now.Add(30 * time.Second)) {
		t.Fatal("missile must not impact before its deadline")
	}
	if !missile.Impact(now.Add(time.Minute)) {
		t.Fatal("expected impact at the deadline")
	}
	if missile.Status != MissileStatusImpacted {
		t.Fatalf("status = %q, want %q", missile.Status, MissileStatusImpacted)
	}
	// Idempotent sweep.
	if missile.Impact(now.Add(2 * time.Minute)) {
		t.Fatal("impacting a terminal missile must be a no-op")
	}
}
