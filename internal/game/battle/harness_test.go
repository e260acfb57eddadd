package battle

import (
	"testing"

	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testStorm places the storm so that seat N is N sectors from it.
const testStorm = 17

type gameBuilder struct {
	g state.GameState
}

func newGameBuilder() *gameBuilder {
	return &gameBuilder{g: state.NewGameState(1, testStorm)}
}

func (b *gameBuilder) faction(f state.Faction, seat, spice int) *gameBuilder {
	b.g = b.g.WithFaction(state.NewFactionState(f, spice))
	b.g.PlayerPositions[f] = seat
	return b
}

func (b *gameBuilder) forces(f state.Faction, territory state.TerritoryID, sector, regular, elite int) *gameBuilder {
	fs := b.g.Factions[f]
	fs.Forces.OnBoard = append(fs.Forces.OnBoard, state.ForceStack{
		Territory: territory, Sector: sector, Regular: regular, Elite: elite,
	})
	b.g = b.g.WithFaction(fs)
	return b
}

func (b *gameBuilder) advisors(f state.Faction, territory state.TerritoryID, sector, count int) *gameBuilder {
	fs := b.g.Factions[f]
	fs.Forces.OnBoard = append(fs.Forces.OnBoard, state.ForceStack{
		Territory: territory, Sector: sector, Regular: count, Advisors: true,
	})
	b.g = b.g.WithFaction(fs)
	return b
}

func (b *gameBuilder) cards(f state.Faction, cards ...state.Card) *gameBuilder {
	fs := b.g.Factions[f]
	fs.Hand = append(fs.Hand, cards...)
	b.g = b.g.WithFaction(fs)
	return b
}

func (b *gameBuilder) traitors(f state.Faction, leaderIDs ...string) *gameBuilder {
	fs := b.g.Factions[f]
	fs.Traitors = append(fs.Traitors, leaderIDs...)
	b.g = b.g.WithFaction(fs)
	return b
}

func (b *gameBuilder) ally(a, c state.Faction) *gameBuilder {
	fa, fc := b.g.Factions[a], b.g.Factions[c]
	fa.Ally, fc.Ally = c, a
	b.g = b.g.WithFaction(fa).WithFaction(fc)
	return b
}

func (b *gameBuilder) update(f state.Faction, fn func(*state.FactionState)) *gameBuilder {
	fs := b.g.Factions[f]
	fn(&fs)
	b.g = b.g.WithFaction(fs)
	return b
}

func (b *gameBuilder) build() state.GameState { return b.g }

// harness drives a Handler step by step and keeps every event.
type harness struct {
	t       *testing.T
	handler *Handler
	res     rules.StepResult[State]
	events  []rules.Event
	// roundTrip encodes and decodes the state between steps.
	roundTrip bool
}

func newHarness(t *testing.T, opts Options, g state.GameState) *harness {
	t.Helper()
	h := NewHandler(opts, zaptest.NewLogger(t))
	res, err := h.Initialize(g)
	require.NoError(t, err)
	hs := &harness{t: t, handler: h, res: res}
	hs.events = append(hs.events, res.Events...)
	return hs
}

func (hs *harness) state() State { return hs.res.State }

func (hs *harness) game() state.GameState { return hs.res.State.Game }

func (hs *harness) respond(responses ...rules.Response) {
	hs.t.Helper()
	current := hs.res.State
	if hs.roundTrip {
		data, err := Encode(current)
		require.NoError(hs.t, err)
		current, err = Decode(data)
		require.NoError(hs.t, err)
	}
	res, err := hs.handler.ProcessStep(current, responses)
	require.NoError(hs.t, err)
	hs.res = res
	hs.events = append(hs.events, res.Events...)
}

// request returns the pending request for the faction, failing if there is none.
func (hs *harness) request(f state.Faction, typ rules.RequestType) rules.Request {
	hs.t.Helper()
	for _, req := range hs.res.PendingRequests {
		if req.FactionID == f && req.RequestType == typ {
			return req
		}
	}
	require.Failf(hs.t, "missing request", "no %s request for %s in %+v", typ, f, hs.res.PendingRequests)
	return rules.Request{}
}

func (hs *harness) requestTypes() []rules.RequestType {
	out := make([]rules.RequestType, 0, len(hs.res.PendingRequests))
	for _, req := range hs.res.PendingRequests {
		out = append(out, req.RequestType)
	}
	return out
}

// passAll answers every pending request with a pass.
func (hs *harness) passAll() {
	hs.t.Helper()
	var responses []rules.Response
	for _, req := range hs.res.PendingRequests {
		responses = append(responses, rules.Pass(req.FactionID))
	}
	hs.respond(responses...)
}

func (hs *harness) eventsOf(t rules.EventType) []rules.Event {
	var out []rules.Event
	for _, e := range hs.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (hs *harness) eventTypes() []rules.EventType {
	out := make([]rules.EventType, 0, len(hs.events))
	for _, e := range hs.events {
		out = append(out, e.Type)
	}
	return out
}

func planResponse(p combat.Plan) rules.Response {
	data := map[string]any{"forces": p.Forces}
	if p.LeaderID != "" {
		data["leader_id"] = p.LeaderID
	}
	if p.CheapHeroID != "" {
		data["cheap_hero_id"] = p.CheapHeroID
	}
	if p.EliteForces != 0 {
		data["elite_forces"] = p.EliteForces
	}
	if p.Spice != 0 {
		data["spice"] = p.Spice
	}
	if p.WeaponID != "" {
		data["weapon_id"] = p.WeaponID
	}
	if p.DefenseID != "" {
		data["defense_id"] = p.DefenseID
	}
	if p.KwisatzHaderach {
		data["kwisatz_haderach"] = true
	}
	return rules.Response{FactionID: p.Faction, ActionType: rules.ActionSubmitBattlePlan, Data: data}
}

func action(f state.Faction, a rules.ActionType, data map[string]any) rules.Response {
	return rules.Response{FactionID: f, ActionType: a, Data: data}
}

func leader(f state.Faction, name string) string { return state.LeaderID(f, name) }

func forcesIn(g state.GameState, f state.Faction, territory state.TerritoryID) int {
	regular, elite := g.Factions[f].ForcesIn(territory)
	return regular + elite
}
