package battle

import (
	"fmt"

	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"go.uber.org/zap"
)

// enterResolution computes the combat result once and applies it. It never waits.
func (h *Handler) enterResolution(st *step) (bool, error) {
	ctx := st.s.Current
	ctx.Phase = BattleResolution{}
	if ctx.Result != nil {
		return false, nil
	}
	in, err := h.combatInput(st.s.Game, ctx)
	if err != nil {
		return false, err
	}
	res := combat.Resolve(in)
	ctx.Result = &res

	h.logger.Debug("battle resolved",
		zap.String("territory", string(res.Territory)),
		zap.String("outcome", string(res.Outcome)),
		zap.String("winner", res.Winner.String()),
		zap.Float64("aggressor_total", res.Aggressor.Total),
		zap.Float64("defender_total", res.Defender.Total))

	if err := h.applyResult(st, ctx, in, res); err != nil {
		return false, err
	}
	return false, nil
}

func (h *Handler) combatInput(g state.GameState, ctx *BattleContext) (combat.Input, error) {
	aggressor, err := h.combatSide(g, ctx, ctx.Aggressor)
	if err != nil {
		return combat.Input{}, err
	}
	defender, err := h.combatSide(g, ctx, ctx.Defender)
	if err != nil {
		return combat.Input{}, err
	}
	return combat.Input{
		Territory: ctx.Battle.Territory,
		Sector:    ctx.Battle.Sector,
		Aggressor: aggressor,
		Defender:  defender,
		Traitors:  traitorsCalled(ctx),
		Rules:     combat.Rules{AdvancedCombat: h.opts.AdvancedCombat},
	}, nil
}

func (h *Handler) combatSide(g state.GameState, ctx *BattleContext, f state.Faction) (combat.Side, error) {
	plan := ctx.Plan(f)
	if plan == nil {
		return combat.Side{}, fmt.Errorf("%w: no plan for %s", ErrNoCurrentBattle, f)
	}
	fs, err := g.MustFaction(f)
	if err != nil {
		return combat.Side{}, err
	}
	side := combat.Side{
		Faction:    f,
		Plan:       *plan,
		EliteValue: f.EliteValue(ctx.Opponent(f)),
		NeedsSpice: f.NeedsSpiceSupport(),
	}
	side.RegularPresent, side.ElitePresent = h.presence(g, ctx, f)
	if plan.LeaderID != "" {
		if leader, ok := fs.Leader(plan.LeaderID); ok {
			side.LeaderStrength = leader.Strength
		}
	}
	side.CheapHero, _ = fs.Card(plan.CheapHeroID)
	side.Weapon, _ = fs.Card(plan.WeaponID)
	side.Defense, _ = fs.Card(plan.DefenseID)
	return side, nil
}

// applyResult writes the combat result into the game state.
func (h *Handler) applyResult(st *step, ctx *BattleContext, in combat.Input, res combat.Result) error {
	territory := ctx.Battle.Territory
	sectors := h.battleSectors(st.s.Game, territory)
	threshold := h.opts.KwisatzHaderachThreshold

	st.emit(battleEvent(ctx, rules.EventBattleResolved, res.Winner, "%s", resolutionMessage(res)).
		With("outcome", string(res.Outcome)).
		With("winner", string(res.Winner)).
		With("loser", string(res.Loser)).
		With("aggressor_total", res.Aggressor.Total).
		With("defender_total", res.Defender.Total))
	if res.Outcome == combat.OutcomeLasgunExplosion {
		st.emit(battleEvent(ctx, rules.EventLasgunExplosion, state.FactionNone,
			"lasgun and shield explode in %s", territory))
	}

	g := st.s.Game
	for i, sr := range []combat.SideResult{res.Aggressor, res.Defender} {
		side := in.Aggressor
		if i == 1 {
			side = in.Defender
		}
		fs, err := g.MustFaction(sr.Faction)
		if err != nil {
			return err
		}
		awakeBefore := fs.KwisatzHaderachActive(threshold)

		var regular, elite int
		fs, regular, elite = fs.RemoveForces(territory, sr.RegularLost, sr.EliteLost, sectors...)
		if regular+elite > 0 {
			st.emit(battleEvent(ctx, rules.EventForcesLost, sr.Faction,
				"%s loses %d forces", sr.Faction, regular+elite).
				With("count", regular+elite).
				With("regular", regular).
				With("elite", elite))
		}

		if sr.SpicePaid > 0 {
			paid := min(sr.SpicePaid, fs.Spice)
			fs.Spice -= paid
			st.emit(battleEvent(ctx, rules.EventSpicePaid, sr.Faction,
				"%s pays %d spice", sr.Faction, paid).With("amount", paid))
		}
		if sr.SpiceReceived > 0 {
			fs.Spice += sr.SpiceReceived
			st.emit(battleEvent(ctx, rules.EventSpiceCollected, sr.Faction,
				"%s collects %d spice for leaders killed", sr.Faction, sr.SpiceReceived).
				With("amount", sr.SpiceReceived))
		}

		var discarded []state.Card
		ids := make([]string, 0, len(sr.Discard))
		for _, c := range sr.Discard {
			ids = append(ids, c.ID)
		}
		fs, discarded = fs.WithoutCards(ids...)
		for _, c := range discarded {
			st.emit(battleEvent(ctx, rules.EventCardDiscarded, sr.Faction,
				"%s discards %s", sr.Faction, c.Name).With("card_id", c.ID))
		}

		if sr.KwisatzHaderachKilled {
			fs.KwisatzHaderachDead = true
		}
		if side.HasLeader() && !sr.LeaderKilled {
			if leader, ok := fs.Leader(side.Plan.LeaderID); ok {
				leader.UsedIn = territory
				fs = fs.WithLeader(leader)
			}
		}
		if !awakeBefore && fs.KwisatzHaderachActive(threshold) {
			st.emit(battleEvent(ctx, rules.EventKwisatzHaderach, sr.Faction,
				"the Kwisatz Haderach awakens for %s", sr.Faction))
		}

		g = g.WithFaction(fs).Discard(discarded...)
	}

	for _, id := range res.KilledLeaders() {
		var owner state.Faction
		g, owner = killLeader(g, id, false)
		st.emit(battleEvent(ctx, rules.EventLeaderKilled, owner, "%s leader %s is killed", owner, id).
			With("leader_id", id))
	}

	// Captured leaders that survive go home.
	for _, side := range []combat.Side{in.Aggressor, in.Defender} {
		if !side.HasLeader() {
			continue
		}
		leader, holder, ok := g.FindLeader(side.Plan.LeaderID)
		if !ok || !leader.Alive() || leader.Faction == holder {
			continue
		}
		g = returnLeader(g, leader, holder)
		st.emit(battleEvent(ctx, rules.EventLeaderReturned, leader.Faction,
			"%s returns to %s", leader.Name, leader.Faction).With("leader_id", leader.ID))
	}

	if res.Outcome == combat.OutcomeLasgunExplosion {
		g = g.WithSpiceOnBoard(territory, 0)
	}
	st.s.Game = g
	return nil
}

// killLeader sends a leader to its owner's tanks, wherever it currently is.
func killLeader(g state.GameState, id string, faceDown bool) (state.GameState, state.Faction) {
	leader, holder, ok := g.FindLeader(id)
	if !ok {
		return g, state.FactionNone
	}
	leader.Status = state.LeaderDead
	leader.CapturedBy = state.FactionNone
	leader.UsedIn = ""
	leader.FaceDown = faceDown
	if holder != leader.Faction {
		g = g.WithFaction(g.Factions[holder].WithoutLeader(id))
	}
	owner, ok := g.Faction(leader.Faction)
	if !ok {
		return g, leader.Faction
	}
	return g.WithFaction(owner.WithLeader(leader)), leader.Faction
}

// returnLeader moves a captured leader back to its owner's pool.
func returnLeader(g state.GameState, leader state.Leader, holder state.Faction) state.GameState {
	g = g.WithFaction(g.Factions[holder].WithoutLeader(leader.ID))
	leader.Status = state.LeaderAvailable
	leader.CapturedBy = state.FactionNone
	owner, ok := g.Faction(leader.Faction)
	if !ok {
		return g
	}
	return g.WithFaction(owner.WithLeader(leader))
}

func resolutionMessage(res combat.Result) string {
	switch res.Outcome {
	case combat.OutcomeTwoTraitors:
		return fmt.Sprintf("both leaders in %s are traitors; no winner", res.Territory)
	case combat.OutcomeLasgunExplosion:
		return fmt.Sprintf("explosion in %s destroys both sides", res.Territory)
	case combat.OutcomeTraitor:
		return fmt.Sprintf("%s wins in %s by treachery", res.Winner, res.Territory)
	}
	return fmt.Sprintf("%s defeats %s in %s (%.1f to %.1f)", res.Winner, res.Loser, res.Territory,
		winnerTotal(res), loserTotal(res))
}

func winnerTotal(res combat.Result) float64 {
	s, _ := res.WinnerSide()
	return s.Total
}

func loserTotal(res combat.Result) float64 {
	s, _ := res.LoserSide()
	return s.Total
}
