package battle

import (
	"sort"

	"github.com/arrakis-sim/dune-server-go/internal/game/random"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// captureCandidates lists the loser's own leaders the captor may draw from.
func captureCandidates(g state.GameState, loser state.Faction, territory state.TerritoryID) []string {
	fs, ok := g.Faction(loser)
	if !ok {
		return nil
	}
	var ids []string
	for _, l := range fs.Leaders {
		if l.Faction != loser || l.Status != state.LeaderAvailable {
			continue
		}
		if l.UsedIn != "" && l.UsedIn != territory {
			continue
		}
		ids = append(ids, l.ID)
	}
	sort.Strings(ids)
	return ids
}

func (h *Handler) enterCapture(st *step) (bool, error) {
	ctx := st.s.Current
	res := ctx.Result
	if res == nil || !res.HasWinner() || !res.Winner.CapturesLeaders() {
		return false, nil
	}
	candidates := captureCandidates(st.s.Game, res.Loser, ctx.Battle.Territory)
	if len(candidates) == 0 {
		return false, nil
	}
	var leaderID string
	leaderID, st.s.RNG = random.Pick(st.s.RNG, candidates)
	ctx.Phase = HarkonnenCapture{Captor: res.Winner, Loser: res.Loser, LeaderID: leaderID}
	return true, nil
}

func (h *Handler) captureRequest(g state.GameState, ctx *BattleContext, p HarkonnenCapture) rules.Request {
	reqCtx := map[string]any{
		"territory":    string(ctx.Battle.Territory),
		"leader_id":    p.LeaderID,
		"loser":        string(p.Loser),
		"spice_reward": h.opts.CaptureSpiceReward,
	}
	if leader, _, ok := g.FindLeader(p.LeaderID); ok {
		reqCtx["leader_name"] = leader.Name
		reqCtx["leader_strength"] = leader.Strength
	}
	return rules.Request{
		FactionID:        p.Captor,
		RequestType:      rules.RequestCaptureLeader,
		Prompt:           "Kill or capture " + p.LeaderID,
		Context:          reqCtx,
		AvailableActions: []rules.ActionType{rules.ActionKillLeader, rules.ActionCaptureLeader, rules.ActionPass},
	}
}

func (h *Handler) respondCapture(st *step, p HarkonnenCapture, matched map[state.Faction]rules.Response) error {
	resp, ok := matched[p.Captor]
	if !ok {
		return nil
	}
	ctx := st.s.Current
	g := st.s.Game

	switch {
	case resp.Passed:
		st.emit(battleEvent(ctx, rules.EventCaptureDeclined, p.Captor,
			"%s leaves %s with %s", p.Captor, p.LeaderID, p.Loser).With("leader_id", p.LeaderID))

	case resp.ActionType == rules.ActionKillLeader:
		g, _ = killLeader(g, p.LeaderID, true)
		captor := g.Factions[p.Captor]
		captor.Spice += h.opts.CaptureSpiceReward
		g = g.WithFaction(captor)
		st.emit(battleEvent(ctx, rules.EventCapturedLeaderKilled, p.Loser,
			"%s kills %s", p.Captor, p.LeaderID).
			With("leader_id", p.LeaderID).
			With("captor", string(p.Captor)))
		st.emit(battleEvent(ctx, rules.EventSpiceCollected, p.Captor,
			"%s collects %d spice", p.Captor, h.opts.CaptureSpiceReward).
			With("amount", h.opts.CaptureSpiceReward))

	case resp.ActionType == rules.ActionCaptureLeader:
		leader, holder, found := g.FindLeader(p.LeaderID)
		if !found {
			return ErrInvalidBattle
		}
		g = g.WithFaction(g.Factions[holder].WithoutLeader(leader.ID))
		leader.Status = state.LeaderCaptured
		leader.CapturedBy = p.Captor
		g = g.WithFaction(g.Factions[p.Captor].WithLeader(leader))
		st.emit(battleEvent(ctx, rules.EventLeaderCaptured, p.Captor,
			"%s captures %s", p.Captor, leader.Name).
			With("leader_id", leader.ID).
			With("owner", string(leader.Faction)))
	}

	st.s.Game = g
	return h.advance(st, NameHarkonnenCapture)
}
