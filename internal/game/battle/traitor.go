package battle

import (
	"slices"

	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// enterReveal shows both plans and looks for traitors. It never waits.
func (h *Handler) enterReveal(st *step) (bool, error) {
	ctx := st.s.Current
	ctx.Phase = RevealingPlans{}
	if ctx.AggressorPlan == nil || ctx.DefenderPlan == nil {
		return false, ErrNoCurrentBattle
	}
	st.emit(battleEvent(ctx, rules.EventPlansRevealed, state.FactionNone, "battle plans revealed in %s", ctx.Battle.Territory).
		With("aggressor_plan", planSummary(*ctx.AggressorPlan)).
		With("defender_plan", planSummary(*ctx.DefenderPlan)))

	ctx.Traitors = h.detectTraitors(st, ctx)
	return false, nil
}

// detectTraitors lists, per side, the traitor card that names the opposing
// leader: the side's own card first, else one held by a non-fighting
// Harkonnen ally. Leaders with the Kwisatz Haderach cannot be betrayed.
func (h *Handler) detectTraitors(st *step, ctx *BattleContext) []TraitorOpportunity {
	g := st.s.Game
	var out []TraitorOpportunity
	for _, side := range ctx.Sides() {
		opponentPlan := ctx.Plan(ctx.Opponent(side))
		if opponentPlan == nil || opponentPlan.LeaderID == "" {
			continue
		}
		leaderID := opponentPlan.LeaderID

		caller := state.FactionNone
		if fs, ok := g.Faction(side); ok && fs.HasTraitor(leaderID) {
			caller = side
		} else if ally := g.AllyOf(side); ally.SharesTraitors() && !ctx.IsSide(ally) {
			if fs, ok := g.Faction(ally); ok && fs.HasTraitor(leaderID) {
				caller = ally
			}
		}
		if caller == state.FactionNone {
			continue
		}
		if opponentPlan.KwisatzHaderach {
			st.emit(battleEvent(ctx, rules.EventTraitorBlocked, caller,
				"%s holds a traitor for %s but the Kwisatz Haderach protects the leader", caller, leaderID).
				With("traitor_id", leaderID))
			continue
		}
		st.emit(battleEvent(ctx, rules.EventTraitorOpportunity, caller,
			"%s may reveal %s as a traitor", caller, leaderID).
			With("traitor_id", leaderID).
			With("beneficiary", string(side)))
		out = append(out, TraitorOpportunity{Caller: caller, Beneficiary: side, LeaderID: leaderID})
	}
	return out
}

func (h *Handler) enterTraitorCall(st *step) (bool, error) {
	ctx := st.s.Current
	if len(ctx.Traitors) == 0 {
		return false, nil
	}
	awaiting := make([]state.Faction, 0, len(ctx.Traitors))
	for _, o := range ctx.Traitors {
		awaiting = append(awaiting, o.Caller)
	}
	ctx.Phase = TraitorCall{Opportunities: ctx.Traitors, Awaiting: awaiting}
	return true, nil
}

func (h *Handler) traitorRequests(ctx *BattleContext, p TraitorCall) []rules.Request {
	var out []rules.Request
	for _, o := range p.Opportunities {
		if !slices.Contains(p.Awaiting, o.Caller) {
			continue
		}
		out = append(out, rules.Request{
			FactionID:   o.Caller,
			RequestType: rules.RequestCallTraitor,
			Prompt:      "Reveal " + o.LeaderID + " as your traitor?",
			Context: map[string]any{
				"territory":   string(ctx.Battle.Territory),
				"traitor_id":  o.LeaderID,
				"beneficiary": string(o.Beneficiary),
			},
			AvailableActions: []rules.ActionType{rules.ActionCallTraitor, rules.ActionPass},
		})
	}
	return out
}

func (h *Handler) respondTraitor(st *step, p TraitorCall, matched map[state.Faction]rules.Response) error {
	ctx := st.s.Current
	opportunities := make([]TraitorOpportunity, len(p.Opportunities))
	copy(opportunities, p.Opportunities)

	var awaiting []state.Faction
	for i, o := range opportunities {
		if !slices.Contains(p.Awaiting, o.Caller) {
			continue
		}
		resp, ok := matched[o.Caller]
		if !ok {
			awaiting = append(awaiting, o.Caller)
			continue
		}
		if resp.Passed {
			st.emit(battleEvent(ctx, rules.EventTraitorDeclined, o.Caller,
				"%s keeps its traitor card hidden", o.Caller).With("traitor_id", o.LeaderID))
			continue
		}
		if plan := ctx.Plan(ctx.Opponent(o.Beneficiary)); plan != nil && plan.KwisatzHaderach {
			st.emit(battleEvent(ctx, rules.EventTraitorBlocked, o.Caller,
				"%s cannot be named a traitor while protected", o.LeaderID).With("traitor_id", o.LeaderID))
			continue
		}
		opportunities[i].Called = true
		st.emit(battleEvent(ctx, rules.EventTraitorCalled, o.Caller,
			"%s reveals %s as a traitor for %s", o.Caller, o.LeaderID, o.Beneficiary).
			With("traitor_id", o.LeaderID).
			With("beneficiary", string(o.Beneficiary)))
	}

	ctx.Traitors = opportunities
	if len(awaiting) > 0 {
		ctx.Phase = TraitorCall{Opportunities: opportunities, Awaiting: awaiting}
		return nil
	}
	return h.advance(st, NameTraitorCall)
}

// traitorsCalled reports which sides are credited with a traitor.
func traitorsCalled(ctx *BattleContext) combat.Traitors {
	var t combat.Traitors
	for _, o := range ctx.Traitors {
		if !o.Called {
			continue
		}
		if o.Beneficiary == ctx.Aggressor {
			t.AggressorCalled = true
		} else if o.Beneficiary == ctx.Defender {
			t.DefenderCalled = true
		}
	}
	return t
}

func planSummary(p combat.Plan) map[string]any {
	return map[string]any{
		"leader_id":        p.LeaderID,
		"cheap_hero_id":    p.CheapHeroID,
		"forces":           p.Forces,
		"elite_forces":     p.EliteForces,
		"spice":            p.Spice,
		"weapon_id":        p.WeaponID,
		"defense_id":       p.DefenseID,
		"kwisatz_haderach": p.KwisatzHaderach,
	}
}
