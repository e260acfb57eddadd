// Package combat computes the outcome of a single battle from two revealed
// plans. Everything here is pure: no state is read beyond the Input and
// nothing is written.
package combat

import "github.com/arrakis-sim/dune-server-go/internal/game/state"

// KwisatzHaderachBonus is added to a side whose leader survives with the Kwisatz Haderach.
const KwisatzHaderachBonus = 2

// Plan is one faction's secret battle commitment. A plan is never modified once
// revealed; a rejected plan is replaced by a new submission.
type Plan struct {
	Faction         state.Faction `json:"faction" mapstructure:"-"`
	LeaderID        string        `json:"leader_id,omitempty" mapstructure:"leader_id"`
	CheapHeroID     string        `json:"cheap_hero_id,omitempty" mapstructure:"cheap_hero_id"`
	Forces          int           `json:"forces" mapstructure:"forces"`
	EliteForces     int           `json:"elite_forces,omitempty" mapstructure:"elite_forces"`
	Spice           int           `json:"spice,omitempty" mapstructure:"spice"`
	WeaponID        string        `json:"weapon_id,omitempty" mapstructure:"weapon_id"`
	DefenseID       string        `json:"defense_id,omitempty" mapstructure:"defense_id"`
	KwisatzHaderach bool          `json:"kwisatz_haderach,omitempty" mapstructure:"kwisatz_haderach"`
}

// Tokens returns the number of force tokens dialed.
func (p Plan) Tokens() int { return p.Forces + p.EliteForces }

// CardIDs lists the treachery cards the plan commits, in slot order.
func (p Plan) CardIDs() []string {
	var ids []string
	for _, id := range []string{p.CheapHeroID, p.WeaponID, p.DefenseID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Side is everything the engine needs to know about one combatant.
type Side struct {
	Faction state.Faction
	Plan    Plan
	// LeaderStrength is zero when a cheap hero or no leader is committed.
	LeaderStrength int
	CheapHero      state.Card
	Weapon         state.Card
	Defense        state.Card
	RegularPresent int
	ElitePresent   int
	EliteValue     int
	// NeedsSpice is false for factions whose forces count full without spice support.
	NeedsSpice bool
}

// HasLeader reports whether a named leader (not a cheap hero) is committed.
func (s Side) HasLeader() bool { return s.Plan.LeaderID != "" }

// Cards returns the played cards.
func (s Side) Cards() []state.Card {
	var out []state.Card
	for _, c := range []state.Card{s.CheapHero, s.Weapon, s.Defense} {
		if c.ID != "" {
			out = append(out, c)
		}
	}
	return out
}

// Traitors records which sides successfully revealed a traitor.
type Traitors struct {
	AggressorCalled bool
	DefenderCalled  bool
}

// Rules toggles optional rules.
type Rules struct {
	AdvancedCombat bool
}

// Input is the full description of one conflict.
type Input struct {
	Territory state.TerritoryID
	Sector    int
	Aggressor Side
	Defender  Side
	Traitors  Traitors
	Rules     Rules
}
