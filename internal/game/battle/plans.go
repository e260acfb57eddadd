package battle

import (
	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

func (h *Handler) enterPlans(st *step) (bool, error) {
	ctx := st.s.Current
	ctx.AggressorPlan, ctx.DefenderPlan = nil, nil
	ctx.Phase = CreatingBattlePlans{Awaiting: ctx.Sides()}
	return true, nil
}

func (h *Handler) planRequests(g state.GameState, ctx *BattleContext, p CreatingBattlePlans) []rules.Request {
	requests := make([]rules.Request, 0, len(p.Awaiting))
	for _, f := range p.Awaiting {
		regular, elite := h.presence(g, ctx, f)
		fs, _ := g.Faction(f)
		leaders := make([]string, 0, len(fs.Leaders))
		for _, l := range fs.AvailableLeaders(ctx.Battle.Territory) {
			leaders = append(leaders, l.ID)
		}
		cards := make([]string, 0, len(fs.Hand))
		for _, c := range fs.Hand {
			cards = append(cards, c.ID)
		}
		reqCtx := map[string]any{
			"territory":        string(ctx.Battle.Territory),
			"sector":           ctx.Battle.Sector,
			"opponent":         string(ctx.Opponent(f)),
			"aggressor":        f == ctx.Aggressor,
			"forces_available": regular,
			"elite_available":  elite,
			"spice_available":  fs.Spice,
			"leaders":          leaders,
			"cards":            cards,
			"advanced_combat":  h.opts.AdvancedCombat,
			"kwisatz_haderach": fs.KwisatzHaderachActive(h.opts.KwisatzHaderachThreshold),
		}
		if v := ctx.Voice; v != nil && v.Target == f {
			reqCtx["voice"] = map[string]any{"mode": string(v.Mode), "card": v.Card}
		}
		if b := ctx.Prescience; b != nil && b.Target == f && b.Bound {
			reqCtx["prescience"] = map[string]any{"element": string(b.Element), "revealed": elementSummary(*b)}
		}
		requests = append(requests, rules.Request{
			FactionID:        f,
			RequestType:      rules.RequestCreateBattlePlan,
			Prompt:           "Submit your battle plan against " + ctx.Opponent(f).String(),
			Context:          reqCtx,
			AvailableActions: []rules.ActionType{rules.ActionSubmitBattlePlan, rules.ActionPass},
		})
	}
	return requests
}

func (h *Handler) respondPlans(st *step, p CreatingBattlePlans, matched map[state.Faction]rules.Response) error {
	ctx := st.s.Current
	var awaiting []state.Faction
	for _, f := range p.Awaiting {
		resp, ok := matched[f]
		if !ok {
			awaiting = append(awaiting, f)
			continue
		}
		if !resp.Passed {
			var plan combat.Plan
			if err := decodeData(resp.Data, &plan); err != nil {
				h.ignore(st, resp, err.Error())
			} else {
				plan.Faction = f
				if err := h.validatePlan(st.s.Game, ctx, plan); err != nil {
					h.reject(st, f, err)
					awaiting = append(awaiting, f)
					continue
				}
				ctx.setPlan(f, plan)
				st.emit(battleEvent(ctx, rules.EventPlanSubmitted, f, "%s submitted a battle plan", f))
				continue
			}
		}
		plan := h.defaultPlan(st.s.Game, ctx, f)
		ctx.setPlan(f, plan)
		st.emit(battleEvent(ctx, rules.EventPlanDefaulted, f, "%s passed; a default plan was used", f))
	}

	if len(awaiting) > 0 {
		ctx.Phase = CreatingBattlePlans{Awaiting: awaiting}
		return nil
	}
	return h.advance(st, NameCreatingBattlePlans)
}
