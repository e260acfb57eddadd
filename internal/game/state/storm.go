package state

import (
	"math"
	"sort"
)

// StormDistance returns how many sectors counter-clockwise from the storm the sector lies;
// the sector just past the storm is 0 and the storm sector itself is last.
// Sectorless locations (negative sector) sort after every real sector.
func StormDistance(storm, sector int) int {
	if sector < 0 {
		return math.MaxInt32
	}
	return ((sector-storm-1)%Sectors + Sectors) % Sectors
}

// StormOrder returns the factions in play ordered by their seat position relative to the storm.
func StormOrder(g GameState) []Faction {
	factions := make([]Faction, 0, len(g.Factions))
	for f := range g.Factions {
		factions = append(factions, f)
	}
	SortByStorm(g, factions)
	return factions
}

// SortByStorm orders the given factions in place by storm order. Factions without a
// recorded seat sort last, by name.
func SortByStorm(g GameState, factions []Faction) {
	distance := func(f Faction) int {
		pos, ok := g.PlayerPositions[f]
		if !ok {
			return math.MaxInt32
		}
		return StormDistance(g.StormSector, pos)
	}
	sort.SliceStable(factions, func(i, j int) bool {
		di, dj := distance(factions[i]), distance(factions[j])
		if di != dj {
			return di < dj
		}
		return factions[i] < factions[j]
	})
}
