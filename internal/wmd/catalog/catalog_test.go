package catalog

import (
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	t.Parallel()

	c := Default()
	if len(c.Techs()) == 0 {
		t.Fatal("expected embedded techs")
	}

	tech, ok := c.Tech("fission_warheads")
	if !ok {
		t.Fatal("expected fission_warheads tech")
	}
	if tech.Category != TechCategoryMissile {
		t.Fatalf("category = %q, want %q", tech.Category, TechCategoryMissile)
	}

	warhead, ok := c.Warhead("fission")
	if !ok {
		t.Fatal("expected fission warhead")
	}
	if !warhead.Restricted {
		t.Fatal("expected fission warhead to be restricted")
	}
	if warhead.RequiredTechID != "fission_warheads" {
		t.Fatalf("required tech = %q, want fission_warheads", warhead.RequiredTechID)
	}

	battery, ok := c.Battery("flak_battery")
	if !ok {
		t.Fatal("expected flak_battery")
	}
	if battery.MaxHP == 0 {
		t.Fatal("expected positive battery max hp")
	}
}

func TestLoadRejectsUnknownPrerequisite(t *testing.T) {
	t.Parallel()

	input := `{
	  "techs": [
	    {"id": "a", "name": "A", "category": "MISSILE", "prerequisite_ids": ["missing"], "rp_cost": 1, "research_duration_seconds": 1}
	  ]
	}`
	if _, err := Load(strings.NewReader(input)); err == nil {
		t.Fatal("expected unknown prerequisite error")
	}
}

func TestLoadRejectsPrerequisiteCycle(t *testing.T) {
	t.Parallel()

	input := `{
	  "techs": [
	    {"id": "a", "name": "A", "category": "MISSILE", "prerequisite_ids": ["b"], "rp_cost": 1, "research_duration_seconds": 1},
	    {"id": "b", "name": "B", "category": "MISSILE", "prerequisite_ids": ["a"], "rp_cost": 1, "research_duration_seconds": 1}
	  ]
	}`
	_, err := Load(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("error = %v, want prerequisite cycle", err)
	}
}

func TestLoadRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	input := `{
	  "techs": [
	    {"id": "a", "name": "A", "category": "NAVAL", "prerequisite_ids": [], "rp_cost": 1, "research_duration_seconds": 1}
	  ]
	}`
	if _, err := Load(strings.NewReader(input)); err == nil {
		t.Fatal("expected unknown category error")
	}
}

func TestLoadRejectsOutOfRangeProbabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{
			name: "warhead evasion at one",
			input: `{
			  "warheads": [
			    {"type": "w", "name": "W", "restricted": false, "build_cost": 1, "damage": 1, "flight_duration_seconds": 60, "evasion": 1.0}
			  ]
			}`,
		},
		{
			name: "battery chance above one",
			input: `{
			  "batteries": [
			    {"type": "b", "name": "B", "build_cost": 1, "repair_cost": 1, "max_hp": 10, "intercept_chance": 1.5, "cooldown_seconds": 60}
			  ]
			}`,
		},
		{
			name: "negative battery chance",
			input: `{
			  "batteries": [
			    {"type": "b", "name": "B", "build_cost": 1, "repair_cost": 1, "max_hp": 10, "intercept_chance": -0.1, "cooldown_seconds": 60}
			  ]
			}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Load(strings.NewReader(tc.input)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTechsPreservesFileOrder(t *testing.T) {
	t.Parallel()

	input := `{
	  "techs": [
	    {"id": "z", "name": "Z", "category": "DEFENSE", "prerequisite_ids": [], "rp_cost": 1, "research_duration_seconds": 1},
	    {"id": "a", "name": "A", "category": "MISSILE", "prerequisite_ids": [], "rp_cost": 1, "research_duration_seconds": 1}
	  ]
	}`
	c, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	techs := c.Techs()
	if len(techs) != 2 {
		t.Fatalf("len(techs) = %d, want 2", len(techs))
	}
	if techs[0].ID != "z" || techs[1].ID != "a" {
		t.Fatalf("order = [%s %s], want [z a]", techs[0].ID, techs[1].ID)
	}
}
