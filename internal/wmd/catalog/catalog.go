// Package catalog loads and validates the static WMD definitions: research
// technologies, warhead tiers, and defense battery tiers.
//
// The catalog is immutable after Load. Services hold a single *Catalog for
// the process lifetime and treat lookups as pure reads.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/louisbranch/brink.zone/internal/wmd/catalog/defs"
)

// TechCategory classifies a research technology.
type TechCategory string

const (
	// TechCategoryMissile unlocks offensive missile tiers.
	TechCategoryMissile TechCategory = "MISSILE"
	// TechCategoryDefense unlocks defense battery tiers.
	TechCategoryDefense TechCategory = "DEFENSE"
	// TechCategoryIntelligence unlocks intelligence capabilities.
	TechCategoryIntelligence TechCategory = "INTELLIGENCE"
)

// TechDefinition describes one researchable technology.
type TechDefinition struct {
	ID                      string       `json:"id"`
	Name                    string       `json:"name"`
	Category                TechCategory `json:"category"`
	PrerequisiteIDs         []string     `json:"prerequisite_ids"`
	RPCost                  uint         `json:"rp_cost"`
	ResearchDurationSeconds uint         `json:"research_duration_seconds"`
}

// WarheadDefinition describes one missile warhead tier.
type WarheadDefinition struct {
	Type                  string  `json:"type"`
	Name                  string  `json:"name"`
	RequiredTechID        string  `json:"required_tech_id"`
	Restricted            bool    `json:"restricted"`
	BuildCost             uint    `json:"build_cost"`
	Damage                uint    `json:"damage"`
	FlightDurationSeconds uint    `json:"flight_duration_seconds"`
	Evasion               float64 `json:"evasion"`
}

// BatteryDefinition describes one defense battery tier.
type BatteryDefinition struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	RequiredTechID  string  `json:"required_tech_id"`
	BuildCost       uint    `json:"build_cost"`
	RepairCost      uint    `json:"repair_cost"`
	MaxHP           uint    `json:"max_hp"`
	InterceptChance float64 `json:"intercept_chance"`
	CooldownSeconds uint    `json:"cooldown_seconds"`
}

// Catalog holds the validated WMD definitions keyed for lookup.
type Catalog struct {
	techs     map[string]TechDefinition
	techOrder []string
	warheads  map[string]WarheadDefinition
	batteries map[string]BatteryDefinition
}

type catalogFile struct {
	Techs     []TechDefinition    `json:"techs"`
	Warheads  []WarheadDefinition `json:"warheads"`
	Batteries []BatteryDefinition `json:"batteries"`
}

// Load reads catalog JSON from r and validates it.
func Load(r io.Reader) (*Catalog, error) {
	if r == nil {
		return nil, fmt.Errorf("catalog reader is required")
	}
	var file catalogFile
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return build(file)
}

// Default returns the catalog embedded in the binary.
// The embedded definitions are validated at startup; a corrupt embed is a
// build defect, so Default panics rather than returning an error.
func Default() *Catalog {
	c, err := Load(strings.NewReader(defs.CatalogJSON))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

func build(file catalogFile) (*Catalog, error) {
	c := &Catalog{
		techs:     make(map[string]TechDefinition, len(file.Techs)),
		warheads:  make(map[string]WarheadDefinition, len(file.Warheads)),
		batteries: make(map[string]BatteryDefinition, len(file.Batteries)),
	}

	for _, tech := range file.Techs {
		tech.ID = strings.TrimSpace(tech.ID)
		if tech.ID == "" {
			return nil, fmt.Errorf("tech id is required")
		}
		if _, ok := c.techs[tech.ID]; ok {
			return nil, fmt.Errorf("duplicate tech id %q", tech.ID)
		}
		switch tech.Category {
		case TechCategoryMissile, TechCategoryDefense, TechCategoryIntelligence:
		default:
			return nil, fmt.Errorf("tech %q has unknown category %q", tech.ID, tech.Category)
		}
		c.techs[tech.ID] = tech
		c.techOrder = append(c.techOrder, tech.ID)
	}

	for id, tech := range c.techs {
		for _, prereq := range tech.PrerequisiteIDs {
			if _, ok := c.techs[prereq]; !ok {
				return nil, fmt.Errorf("tech %q requires unknown prerequisite %q", id, prereq)
			}
		}
	}
	if cycle := findPrerequisiteCycle(c.techs); cycle != "" {
		return nil, fmt.Errorf("prerequisite cycle through tech %q", cycle)
	}

	for _, warhead := range file.Warheads {
		warhead.Type = strings.TrimSpace(warhead.Type)
		if warhead.Type == "" {
			return nil, fmt.Errorf("warhead type is required")
		}
		if _, ok := c.warheads[warhead.Type]; ok {
			return nil, fmt.Errorf("duplicate warhead type %q", warhead.Type)
		}
		if warhead.RequiredTechID != "" {
			if _, ok := c.techs[warhead.RequiredTechID]; !ok {
				return nil, fmt.Errorf("warhead %q requires unknown tech %q", warhead.Type, warhead.RequiredTechID)
			}
		}
		if warhead.Evasion < 0 || warhead.Evasion >= 1 {
			return nil, fmt.Errorf("warhead %q evasion %v is outside [0,1)", warhead.Type, warhead.Evasion)
		}
		if warhead.FlightDurationSeconds == 0 {
			return nil, fmt.Errorf("warhead %q flight duration is required", warhead.Type)
		}
		c.warheads[warhead.Type] = warhead
	}

	for _, battery := range file.Batteries {
		battery.Type = strings.TrimSpace(battery.Type)
		if battery.Type == "" {
			return nil, fmt.Errorf("battery type is required")
		}
		if _, ok := c.batteries[battery.Type]; ok {
			return nil, fmt.Errorf("duplicate battery type %q", battery.Type)
		}
		if battery.RequiredTechID != "" {
			if _, ok := c.techs[battery.RequiredTechID]; !ok {
				return nil, fmt.Errorf("battery %q requires unknown tech %q", battery.Type, battery.RequiredTechID)
			}
		}
		if battery.InterceptChance < 0 || battery.InterceptChance > 1 {
			return nil, fmt.Errorf("battery %q intercept chance %v is outside [0,1]", battery.Type, battery.InterceptChance)
		}
		if battery.MaxHP == 0 {
			return nil, fmt.Errorf("battery %q max hp is required", battery.Type)
		}
		c.batteries[battery.Type] = battery
	}

	return c, nil
}

// findPrerequisiteCycle returns the id of a tech on a prerequisite cycle,
// or the empty string when the graph is acyclic.
func findPrerequisiteCycle(techs map[string]TechDefinition) string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(techs))

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, prereq := range techs[id].PrerequisiteIDs {
			if found := visit(prereq); found != "" {
				return found
			}
		}
		state[id] = done
		return ""
	}

	ids := make([]string, 0, len(techs))
	for id := range techs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if found := visit(id); found != "" {
			return found
		}
	}
	return ""
}

// Tech returns one tech definition by id.
func (c *Catalog) Tech(id string) (TechDefinition, bool) {
	tech, ok := c.techs[id]
	return tech, ok
}

// Warhead returns one warhead definition by type.
func (c *Catalog) Warhead(warheadType string) (WarheadDefinition, bool) {
	warhead, ok := c.warheads[warheadType]
	return warhead, ok
}

// Battery returns one battery definition by type.
func (c *Catalog) Battery(batteryType string) (BatteryDefinition, bool) {
	battery, ok := c.batteries[batteryType]
	return battery, ok
}

// Techs returns all tech definitions in catalog file order.
func (c *Catalog) Techs() []TechDefinition {
	techs := make([]TechDefinition, 0, len(c.techOrder))
	for _, id := range c.techOrder {
		techs = append(techs, c.techs[id])
	}
	return techs
}
