package battle

import (
	"slices"

	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// enterAggressor fixes the aggressor as the participant first in storm order.
// With three or more participants the sub-phase waits for the aggressor to
// pick which of the others it fights; the rest are requeued afterwards.
func (h *Handler) enterAggressor(st *step) (bool, error) {
	ctx := st.s.Current
	if len(ctx.AggressorOrder) < 2 {
		return false, ErrInvalidBattle
	}
	ctx.Aggressor = ctx.AggressorOrder[0]
	st.emit(battleEvent(ctx, rules.EventAggressorChosen, ctx.Aggressor,
		"%s is the aggressor in %s", ctx.Aggressor, ctx.Battle.Territory))

	candidates := slices.DeleteFunc(slices.Clone(ctx.AggressorOrder), func(f state.Faction) bool {
		return f == ctx.Aggressor
	})
	if len(candidates) == 1 {
		h.setDefender(st, candidates[0])
		return false, nil
	}
	ctx.Phase = AggressorChoosing{Aggressor: ctx.Aggressor, Candidates: candidates}
	return true, nil
}

func (h *Handler) aggressorRequest(ctx *BattleContext, p AggressorChoosing) rules.Request {
	return rules.Request{
		FactionID:   p.Aggressor,
		RequestType: rules.RequestChooseOpponent,
		Prompt: "You are the aggressor in " + string(ctx.Battle.Territory) +
			" as first in storm order. Choose the faction to battle",
		Context: map[string]any{
			"territory":      string(ctx.Battle.Territory),
			"aggressor":      string(p.Aggressor),
			"storm_order":    factionNames(ctx.AggressorOrder),
			"candidates":     factionNames(p.Candidates),
			"aggressor_rule": "storm_order",
		},
		AvailableActions: []rules.ActionType{rules.ActionChooseOpponent, rules.ActionPass},
	}
}

func (h *Handler) respondAggressor(st *step, p AggressorChoosing, matched map[state.Faction]rules.Response) error {
	resp, ok := matched[p.Aggressor]
	if !ok {
		return nil
	}
	opponent := p.Candidates[0]
	if !resp.Passed {
		var payload opponentPayload
		err := decodeData(resp.Data, &payload)
		choice := state.Faction(payload.Opponent)
		switch {
		case err != nil:
			h.ignore(st, resp, err.Error())
		case !slices.Contains(p.Candidates, choice):
			h.ignore(st, resp, "opponent "+payload.Opponent+" is not in this battle")
		default:
			opponent = choice
		}
	}
	h.setDefender(st, opponent)
	return h.advance(st, NameAggressorChoosing)
}

func (h *Handler) setDefender(st *step, defender state.Faction) {
	ctx := st.s.Current
	ctx.Defender = defender
	st.emit(battleEvent(ctx, rules.EventOpponentChosen, ctx.Aggressor,
		"%s battles %s in %s", ctx.Aggressor, defender, ctx.Battle.Territory).
		With("defender", string(defender)))
}
