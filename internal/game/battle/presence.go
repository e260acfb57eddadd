package battle

import (
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// battleSectors returns the sectors of the territory that take part in the
// battle. A nil result means the whole territory.
func (h *Handler) battleSectors(g state.GameState, territory state.TerritoryID) []int {
	t, err := h.opts.Board.Territory(territory)
	if err != nil || len(t.Sectors) == 0 {
		return nil
	}
	sectors := make([]int, 0, len(t.Sectors))
	for _, sector := range t.Sectors {
		if !t.InStorm(sector, g.StormSector) {
			sectors = append(sectors, sector)
		}
	}
	return sectors
}

// presence returns the faction's fighters that can be dialed in the battle.
func (h *Handler) presence(g state.GameState, ctx *BattleContext, f state.Faction) (regular, elite int) {
	fs, ok := g.Faction(f)
	if !ok {
		return 0, 0
	}
	return fs.ForcesIn(ctx.Battle.Territory, h.battleSectors(g, ctx.Battle.Territory)...)
}

// abilityHolder finds the faction that may use an ability for one side: the
// side itself, or its ally when the ally is not fighting. The target is the
// opposing side.
func abilityHolder(g state.GameState, ctx *BattleContext, has func(state.Faction) bool) (holder, target state.Faction, ok bool) {
	for _, side := range ctx.Sides() {
		if has(side) {
			return side, ctx.Opponent(side), true
		}
	}
	for _, side := range ctx.Sides() {
		ally := g.AllyOf(side)
		if ally == state.FactionNone || ctx.IsSide(ally) || !has(ally) {
			continue
		}
		if _, inGame := g.Faction(ally); inGame {
			return ally, ctx.Opponent(side), true
		}
	}
	return state.FactionNone, state.FactionNone, false
}
