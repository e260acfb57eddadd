package battle

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// NoSector marks a battle in a territory without storm sectors.
const NoSector = -1

// PendingBattle is one territory conflict waiting to be fought. Factions are
// kept in storm order and the set only ever shrinks once queued.
type PendingBattle struct {
	Territory state.TerritoryID `json:"territory"`
	Sector    int               `json:"sector"`
	Factions  []state.Faction   `json:"factions"`
}

// Includes reports whether the faction takes part in the battle.
func (pb PendingBattle) Includes(f state.Faction) bool {
	return slices.Contains(pb.Factions, f)
}

// Key renders the battle as territory/sector:faction,faction.
func (pb PendingBattle) Key() string {
	names := make([]string, len(pb.Factions))
	for i, f := range pb.Factions {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s/%d:%s", pb.Territory, pb.Sector, strings.Join(names, ","))
}

// BuildQueue scans the board for territories holding fighters of two or more
// factions and returns the conflicts in canonical storm order.
func BuildQueue(g state.GameState, board *state.Board) ([]PendingBattle, error) {
	if board == nil {
		return nil, fmt.Errorf("build queue: %w", state.ErrUnknownTerritory)
	}
	for _, fs := range g.Factions {
		for _, stack := range fs.Forces.OnBoard {
			if err := board.ValidLocation(stack.Territory, stack.Sector); err != nil {
				return nil, fmt.Errorf("build queue: %s forces: %w", fs.Faction, err)
			}
		}
	}

	var queue []PendingBattle
	for _, territory := range board.Territories() {
		pb, ok := participants(g, territory, nil)
		if ok {
			queue = append(queue, pb)
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		di := StormDistanceOf(g, queue[i])
		dj := StormDistanceOf(g, queue[j])
		if di != dj {
			return di < dj
		}
		return queue[i].Territory < queue[j].Territory
	})
	return queue, nil
}

// StormDistanceOf returns the ordering key of a battle.
func StormDistanceOf(g state.GameState, pb PendingBattle) int {
	return state.StormDistance(g.StormSector, pb.Sector)
}

// Recompute returns the battle as it stands on the current board, limited to
// the factions already in it. The second result is false once fewer than two remain.
func Recompute(g state.GameState, board *state.Board, pb PendingBattle) (PendingBattle, bool, error) {
	territory, err := board.Territory(pb.Territory)
	if err != nil {
		return PendingBattle{}, false, fmt.Errorf("%w: %w", ErrInvalidBattle, err)
	}
	next, ok := participants(g, territory, pb.Factions)
	return next, ok, nil
}

// participants collects factions with fighters outside the storm. When restrict
// is non-nil only those factions are considered.
func participants(g state.GameState, territory state.Territory, restrict []state.Faction) (PendingBattle, bool) {
	pb := PendingBattle{Territory: territory.ID, Sector: NoSector}
	bestSector := -1
	for _, f := range state.StormOrder(g) {
		if restrict != nil && !slices.Contains(restrict, f) {
			continue
		}
		fs := g.Factions[f]
		present := false
		for _, stack := range fs.Forces.OnBoard {
			if stack.Territory != territory.ID || stack.Advisors || stack.Total() == 0 {
				continue
			}
			if territory.InStorm(stack.Sector, g.StormSector) {
				continue
			}
			present = true
			if len(territory.Sectors) == 0 {
				continue
			}
			if bestSector < 0 || state.StormDistance(g.StormSector, stack.Sector) < state.StormDistance(g.StormSector, bestSector) {
				bestSector = stack.Sector
			}
		}
		if present {
			pb.Factions = append(pb.Factions, f)
		}
	}
	if bestSector >= 0 {
		pb.Sector = bestSector
	}
	return pb, len(pb.Factions) >= 2
}
