package state

import "fmt"

// Faction identifies one of the playable houses.
type Faction string

const (
	FactionNone         Faction = ""
	FactionAtreides     Faction = "ATREIDES"
	FactionBeneGesserit Faction = "BENE_GESSERIT"
	FactionEmperor      Faction = "EMPEROR"
	FactionFremen       Faction = "FREMEN"
	FactionHarkonnen    Faction = "HARKONNEN"
	FactionSpacingGuild Faction = "SPACING_GUILD"
)

// AllFactions lists the factions in canonical order.
func AllFactions() []Faction {
	return []Faction{
		FactionAtreides,
		FactionBeneGesserit,
		FactionEmperor,
		FactionFremen,
		FactionHarkonnen,
		FactionSpacingGuild,
	}
}

// ParseFaction validates a faction identifier.
func ParseFaction(value string) (Faction, error) {
	for _, f := range AllFactions() {
		if string(f) == value {
			return f, nil
		}
	}
	return FactionNone, fmt.Errorf("unknown faction %q", value)
}

func (f Faction) String() string {
	if f == FactionNone {
		return "NONE"
	}
	return string(f)
}

// HasVoice reports whether the faction can command an opponent's card choice.
func (f Faction) HasVoice() bool { return f == FactionBeneGesserit }

// HasPrescience reports whether the faction can preview an element of the opponent's plan.
func (f Faction) HasPrescience() bool { return f == FactionAtreides }

// CapturesLeaders reports whether the faction may take a leader after winning a battle.
func (f Faction) CapturesLeaders() bool { return f == FactionHarkonnen }

// SharesTraitors reports whether the faction's traitor cards may be used for an ally.
func (f Faction) SharesTraitors() bool { return f == FactionHarkonnen }

// NeedsSpiceSupport reports whether the faction's forces count half without spice under advanced combat.
func (f Faction) NeedsSpiceSupport() bool { return f != FactionFremen }

// EliteValue returns the combat value of one elite force against the given opponent.
// Sardaukar are worth only one against Fremen; Fedaykin are always worth two.
func (f Faction) EliteValue(opponent Faction) int {
	if f == FactionEmperor && opponent == FactionFremen {
		return 1
	}
	return 2
}
