package battle

import (
	"testing"

	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (hs *harness) passUntilComplete() {
	hs.t.Helper()
	for i := 0; !hs.res.PhaseComplete; i++ {
		require.Less(hs.t, i, 20, "battle phase did not terminate")
		hs.passAll()
	}
}

func beneGesseritVsEmperor() *gameBuilder {
	return newGameBuilder().
		faction(state.FactionBeneGesserit, 1, 5).
		faction(state.FactionEmperor, 5, 10).
		forces(state.FactionBeneGesserit, "the-great-flat", 14, 3, 0).
		forces(state.FactionEmperor, "the-great-flat", 14, 6, 0).
		cards(state.FactionEmperor, state.NewCard("c1", "Crysknife"))
}

func TestVoiceNotPlayRejectsForbiddenCard(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), beneGesseritVsEmperor().build())

	req := hs.request(state.FactionBeneGesserit, rules.RequestUseVoice)
	assert.Equal(t, string(state.FactionEmperor), req.Context["target"])
	hs.respond(action(state.FactionBeneGesserit, rules.ActionUseVoice, map[string]any{
		"mode": string(VoiceNotPlay), "card": string(state.CardProjectileWeapon),
	}))
	require.Len(t, hs.eventsOf(rules.EventVoiceUsed), 1)

	planReq := hs.request(state.FactionEmperor, rules.RequestCreateBattlePlan)
	assert.Equal(t, map[string]any{"mode": string(VoiceNotPlay), "card": string(state.CardProjectileWeapon)}, planReq.Context["voice"])

	caid := leader(state.FactionEmperor, "Caid")
	hs.respond(
		rules.Pass(state.FactionBeneGesserit),
		planResponse(combat.Plan{Faction: state.FactionEmperor, LeaderID: caid, Forces: 2, WeaponID: "c1"}),
	)
	require.Len(t, hs.eventsOf(rules.EventPlanRejected), 1)
	hs.request(state.FactionEmperor, rules.RequestCreateBattlePlan)

	hs.respond(planResponse(combat.Plan{Faction: state.FactionEmperor, LeaderID: caid, Forces: 2}))
	assert.True(t, hs.res.PhaseComplete)
	// 5 against 5; the aggressor wins ties.
	resolved := hs.eventsOf(rules.EventBattleResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, string(state.FactionBeneGesserit), resolved[0].Data["winner"])
}

func TestVoicePlayShapesDefaultPlan(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), beneGesseritVsEmperor().build())

	hs.respond(action(state.FactionBeneGesserit, rules.ActionUseVoice, map[string]any{
		"mode": string(VoicePlay), "card": VoiceClassWeapon,
	}))
	hs.passAll()

	revealed := hs.eventsOf(rules.EventPlansRevealed)
	require.Len(t, revealed, 1)
	defenderPlan := revealed[0].Data["defender_plan"].(map[string]any)
	assert.Equal(t, "c1", defenderPlan["weapon_id"])

	// The crysknife kills the undefended Bene Gesserit leader and is kept by the winner.
	discardReq := hs.request(state.FactionEmperor, rules.RequestChooseCardDiscard)
	assert.Len(t, discardReq.Context["cards"], 1)
	assert.Len(t, hs.eventsOf(rules.EventLeaderKilled), 1)

	hs.passAll()
	require.True(t, hs.res.PhaseComplete)
	_, held := hs.game().Factions[state.FactionEmperor].Card("c1")
	assert.True(t, held)
	assert.Len(t, hs.eventsOf(rules.EventCardKept), 1)
}

func TestVoicePlayEnforcedOnSubmittedPlan(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), beneGesseritVsEmperor().build())
	hs.respond(action(state.FactionBeneGesserit, rules.ActionUseVoice, map[string]any{
		"mode": string(VoicePlay), "card": string(state.CardProjectileWeapon),
	}))

	caid := leader(state.FactionEmperor, "Caid")
	hs.respond(
		rules.Pass(state.FactionBeneGesserit),
		planResponse(combat.Plan{Faction: state.FactionEmperor, LeaderID: caid, Forces: 2}),
	)
	require.Len(t, hs.eventsOf(rules.EventPlanRejected), 1)
	assert.Contains(t, hs.eventsOf(rules.EventPlanRejected)[0].Data["reason"], "requires playing")
}

func TestGarbledVoiceIsDeclined(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), beneGesseritVsEmperor().build())
	hs.respond(action(state.FactionBeneGesserit, rules.ActionUseVoice, map[string]any{"mode": "SING", "card": "LASGUN"}))

	assert.Len(t, hs.eventsOf(rules.EventResponseIgnored), 1)
	assert.Len(t, hs.eventsOf(rules.EventVoiceDeclined), 1)
	assert.Nil(t, hs.state().Current.Voice)
	hs.request(state.FactionEmperor, rules.RequestCreateBattlePlan)
}

func TestVoiceFromNonFightingAlly(t *testing.T) {
	g := emperorVsFremen().
		faction(state.FactionBeneGesserit, 9, 5).
		ally(state.FactionBeneGesserit, state.FactionFremen).
		build()
	hs := newHarness(t, DefaultOptions(), g)

	req := hs.request(state.FactionBeneGesserit, rules.RequestUseVoice)
	assert.Equal(t, string(state.FactionEmperor), req.Context["target"])
}

func atreidesVsHarkonnen() *gameBuilder {
	return newGameBuilder().
		faction(state.FactionAtreides, 1, 5).
		faction(state.FactionHarkonnen, 5, 10).
		forces(state.FactionAtreides, "the-great-flat", 14, 3, 0).
		forces(state.FactionHarkonnen, "the-great-flat", 14, 3, 0).
		cards(state.FactionHarkonnen, state.NewCard("k1", "Crysknife"))
}

func TestPrescienceBindsRevealedElement(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), atreidesVsHarkonnen().build())

	hs.request(state.FactionAtreides, rules.RequestUsePrescience)
	hs.respond(action(state.FactionAtreides, rules.ActionUsePrescience, map[string]any{"element": string(ElementWeapon)}))

	req := hs.request(state.FactionHarkonnen, rules.RequestRevealPrescience)
	assert.Equal(t, string(ElementWeapon), req.Context["element"])

	// Revealing a card that is not held is refused and asked again.
	hs.respond(action(state.FactionHarkonnen, rules.ActionRevealPrescience, map[string]any{"weapon_id": "nope"}))
	require.Len(t, hs.eventsOf(rules.EventPlanRejected), 1)
	hs.request(state.FactionHarkonnen, rules.RequestRevealPrescience)

	hs.respond(action(state.FactionHarkonnen, rules.ActionRevealPrescience, map[string]any{"weapon_id": "k1", "forces": 3}))
	require.Len(t, hs.eventsOf(rules.EventPrescienceRevealed), 1)
	binding := hs.state().Current.Prescience
	require.NotNil(t, binding)
	assert.True(t, binding.Bound)
	assert.Equal(t, "k1", binding.Revealed.WeaponID)
	assert.Zero(t, binding.Revealed.Forces, "only the chosen element is revealed")

	feyd := leader(state.FactionHarkonnen, "Feyd-Rautha")
	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionAtreides, LeaderID: leader(state.FactionAtreides, "Thufir Hawat"), Forces: 1}),
		planResponse(combat.Plan{Faction: state.FactionHarkonnen, LeaderID: feyd, Forces: 2}),
	)
	rejected := hs.eventsOf(rules.EventPlanRejected)
	require.Len(t, rejected, 2)
	assert.Contains(t, rejected[1].Data["reason"], "contradicts")
	require.Len(t, hs.res.PendingRequests, 1)

	hs.respond(planResponse(combat.Plan{Faction: state.FactionHarkonnen, LeaderID: feyd, Forces: 2, WeaponID: "k1"}))
	thufir, _ := hs.game().Factions[state.FactionAtreides].Leader(leader(state.FactionAtreides, "Thufir Hawat"))
	assert.False(t, thufir.Alive())

	hs.passUntilComplete()
	assert.Len(t, hs.eventsOf(rules.EventCaptureDeclined), 1)
	assert.Len(t, hs.eventsOf(rules.EventCardKept), 1)
}

func TestPrescienceDeclinedLeavesPlanFree(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), atreidesVsHarkonnen().build())
	hs.respond(action(state.FactionAtreides, rules.ActionUsePrescience, map[string]any{"element": string(ElementForces)}))
	hs.passAll()

	binding := hs.state().Current.Prescience
	require.NotNil(t, binding)
	assert.False(t, binding.Bound)
	assert.Len(t, hs.eventsOf(rules.EventPrescienceDeclined), 1)
	assert.Len(t, hs.res.PendingRequests, 2)
}

// voicedSeer pits an Atreides aggressor, voiced for by its Bene Gesserit ally,
// against an Emperor holding the given cards.
func voicedSeer(cards ...state.Card) state.GameState {
	return newGameBuilder().
		faction(state.FactionAtreides, 1, 5).
		faction(state.FactionEmperor, 5, 10).
		faction(state.FactionBeneGesserit, 9, 5).
		ally(state.FactionBeneGesserit, state.FactionAtreides).
		forces(state.FactionAtreides, "the-great-flat", 14, 3, 0).
		forces(state.FactionEmperor, "the-great-flat", 14, 6, 0).
		cards(state.FactionEmperor, cards...).
		build()
}

func voiceThenAskWeapon(hs *harness, card string) {
	hs.t.Helper()
	req := hs.request(state.FactionBeneGesserit, rules.RequestUseVoice)
	require.Equal(hs.t, string(state.FactionEmperor), req.Context["target"])
	hs.respond(action(state.FactionBeneGesserit, rules.ActionUseVoice, map[string]any{
		"mode": string(VoicePlay), "card": card,
	}))
	hs.request(state.FactionAtreides, rules.RequestUsePrescience)
	hs.respond(action(state.FactionAtreides, rules.ActionUsePrescience, map[string]any{"element": string(ElementWeapon)}))
	hs.request(state.FactionEmperor, rules.RequestRevealPrescience)
}

func TestRevealCannotContradictVoice(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), voicedSeer(state.NewCard("c1", "Crysknife")))
	voiceThenAskWeapon(hs, string(state.CardProjectileWeapon))

	// No weapon would leave the voiced crysknife nowhere to go.
	hs.respond(action(state.FactionEmperor, rules.ActionRevealPrescience, map[string]any{}))
	rejected := hs.eventsOf(rules.EventPlanRejected)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Data["reason"], "requires playing")
	assert.Empty(t, hs.eventsOf(rules.EventPrescienceRevealed))
	hs.request(state.FactionEmperor, rules.RequestRevealPrescience)

	hs.respond(action(state.FactionEmperor, rules.ActionRevealPrescience, map[string]any{"weapon_id": "c1"}))
	require.Len(t, hs.eventsOf(rules.EventPrescienceRevealed), 1)

	hs.passAll()
	revealed := hs.eventsOf(rules.EventPlansRevealed)
	require.Len(t, revealed, 1)
	assert.Equal(t, "c1", revealed[0].Data["defender_plan"].(map[string]any)["weapon_id"])
}

func TestDefaultPlanObeysVoiceAroundBinding(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), voicedSeer(state.NewCard("w1", "Baliset")))
	voiceThenAskWeapon(hs, string(state.CardWorthless))

	// The worthless card can still be played as a defense.
	hs.respond(action(state.FactionEmperor, rules.ActionRevealPrescience, map[string]any{}))
	assert.Empty(t, hs.eventsOf(rules.EventPlanRejected))
	require.Len(t, hs.eventsOf(rules.EventPrescienceRevealed), 1)

	hs.passAll()
	revealed := hs.eventsOf(rules.EventPlansRevealed)
	require.Len(t, revealed, 1)
	defender := revealed[0].Data["defender_plan"].(map[string]any)
	assert.Equal(t, "", defender["weapon_id"])
	assert.Equal(t, "w1", defender["defense_id"])
}

// harkonnenTraitorBattle sets up a Harkonnen aggressor holding a traitor for Duncan Idaho.
func harkonnenTraitorBattle() *gameBuilder {
	return newGameBuilder().
		faction(state.FactionHarkonnen, 1, 10).
		faction(state.FactionAtreides, 5, 5).
		forces(state.FactionHarkonnen, "the-great-flat", 14, 5, 0).
		forces(state.FactionAtreides, "the-great-flat", 14, 6, 0).
		traitors(state.FactionHarkonnen, leader(state.FactionAtreides, "Duncan Idaho"))
}

func playTraitorAndKill(hs *harness) string {
	hs.t.Helper()
	hs.respond(rules.Pass(state.FactionAtreides))
	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionHarkonnen, LeaderID: leader(state.FactionHarkonnen, "Feyd-Rautha"), Forces: 2}),
		planResponse(combat.Plan{Faction: state.FactionAtreides, LeaderID: leader(state.FactionAtreides, "Duncan Idaho"), Forces: 4}),
	)
	hs.request(state.FactionHarkonnen, rules.RequestCallTraitor)
	hs.respond(action(state.FactionHarkonnen, rules.ActionCallTraitor, nil))

	req := hs.request(state.FactionHarkonnen, rules.RequestCaptureLeader)
	captured := req.Context["leader_id"].(string)
	hs.respond(action(state.FactionHarkonnen, rules.ActionKillLeader, nil))
	return captured
}

func TestTraitorThenCaptureKill(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), harkonnenTraitorBattle().build())
	captured := playTraitorAndKill(hs)

	require.True(t, hs.res.PhaseComplete)
	g := hs.game()
	harkonnen := g.Factions[state.FactionHarkonnen]
	atreides := g.Factions[state.FactionAtreides]

	assert.Equal(t, 14, harkonnen.Spice, "2 for the traitor leader and 2 for the kill")
	assert.Equal(t, 5, forcesIn(g, state.FactionHarkonnen, "the-great-flat"), "the traitor caller loses nothing")
	assert.Equal(t, 0, forcesIn(g, state.FactionAtreides, "the-great-flat"))

	duncan, _ := atreides.Leader(leader(state.FactionAtreides, "Duncan Idaho"))
	assert.False(t, duncan.Alive())
	assert.False(t, duncan.FaceDown)

	assert.NotEqual(t, duncan.ID, captured)
	killed, ok := atreides.Leader(captured)
	require.True(t, ok)
	assert.Equal(t, state.LeaderDead, killed.Status)
	assert.True(t, killed.FaceDown)

	resolved := hs.eventsOf(rules.EventBattleResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, string(combat.OutcomeTraitor), resolved[0].Data["outcome"])
	assert.Len(t, hs.eventsOf(rules.EventCapturedLeaderKilled), 1)
}

func TestCaptureLeaderJoinsCaptorPool(t *testing.T) {
	hs := newHarness(t, DefaultOptions(), harkonnenTraitorBattle().build())
	hs.respond(rules.Pass(state.FactionAtreides))
	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionHarkonnen, LeaderID: leader(state.FactionHarkonnen, "Feyd-Rautha"), Forces: 2}),
		planResponse(combat.Plan{Faction: state.FactionAtreides, LeaderID: leader(state.FactionAtreides, "Duncan Idaho"), Forces: 4}),
	)
	hs.respond(rules.Pass(state.FactionHarkonnen))
	assert.Len(t, hs.eventsOf(rules.EventTraitorDeclined), 1)

	// Feyd-Rautha (6 + 2) beats Duncan Idaho (2 + 4).
	req := hs.request(state.FactionHarkonnen, rules.RequestCaptureLeader)
	id := req.Context["leader_id"].(string)
	hs.respond(action(state.FactionHarkonnen, rules.ActionCaptureLeader, nil))
	require.True(t, hs.res.PhaseComplete)

	g := hs.game()
	l, ok := g.Factions[state.FactionHarkonnen].Leader(id)
	require.True(t, ok)
	assert.Equal(t, state.LeaderCaptured, l.Status)
	assert.Equal(t, state.FactionAtreides, l.Faction)
	assert.Equal(t, state.FactionHarkonnen, l.CapturedBy)
	_, stillHome := g.Factions[state.FactionAtreides].Leader(id)
	assert.False(t, stillHome)
}

func TestKwisatzHaderachBlocksTraitor(t *testing.T) {
	g := newGameBuilder().
		faction(state.FactionAtreides, 1, 5).
		faction(state.FactionHarkonnen, 5, 10).
		forces(state.FactionAtreides, "the-great-flat", 14, 3, 0).
		forces(state.FactionHarkonnen, "the-great-flat", 14, 2, 0).
		traitors(state.FactionHarkonnen, leader(state.FactionAtreides, "Duncan Idaho")).
		update(state.FactionAtreides, func(fs *state.FactionState) { fs.ForcesLost = DefaultKwisatzHaderachThreshold }).
		build()
	hs := newHarness(t, DefaultOptions(), g)

	hs.respond(rules.Pass(state.FactionAtreides))
	req := hs.request(state.FactionAtreides, rules.RequestCreateBattlePlan)
	assert.Equal(t, true, req.Context["kwisatz_haderach"])

	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionAtreides, LeaderID: leader(state.FactionAtreides, "Duncan Idaho"), Forces: 3, KwisatzHaderach: true}),
		planResponse(combat.Plan{Faction: state.FactionHarkonnen, LeaderID: leader(state.FactionHarkonnen, "Umman Kudu"), Forces: 2}),
	)

	require.True(t, hs.res.PhaseComplete)
	assert.Len(t, hs.eventsOf(rules.EventTraitorBlocked), 1)
	assert.Empty(t, hs.eventsOf(rules.EventTraitorCalled))
	resolved := hs.eventsOf(rules.EventBattleResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, 7.0, resolved[0].Data["aggressor_total"])
}

func TestAllyTraitorFromHarkonnen(t *testing.T) {
	g := emperorVsFremen().
		faction(state.FactionHarkonnen, 3, 0).
		ally(state.FactionHarkonnen, state.FactionEmperor).
		traitors(state.FactionHarkonnen, leader(state.FactionFremen, "Jamis")).
		build()
	hs := newHarness(t, DefaultOptions(), g)

	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionEmperor, LeaderID: leader(state.FactionEmperor, "Bashar"), Forces: 1}),
		planResponse(combat.Plan{Faction: state.FactionFremen, LeaderID: leader(state.FactionFremen, "Jamis"), Forces: 6}),
	)
	req := hs.request(state.FactionHarkonnen, rules.RequestCallTraitor)
	assert.Equal(t, string(state.FactionEmperor), req.Context["beneficiary"])

	hs.respond(action(state.FactionHarkonnen, rules.ActionCallTraitor, nil))
	require.True(t, hs.res.PhaseComplete)

	resolved := hs.eventsOf(rules.EventBattleResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, string(state.FactionEmperor), resolved[0].Data["winner"])
	assert.Equal(t, 12, hs.game().Factions[state.FactionEmperor].Spice)
	assert.Equal(t, 10, forcesIn(hs.game(), state.FactionEmperor, "the-great-flat"))
	assert.Empty(t, hs.eventsOf(rules.EventLeaderCaptured), "the Emperor does not capture leaders")
}

func TestTwoTraitors(t *testing.T) {
	g := emperorVsFremen().
		traitors(state.FactionEmperor, leader(state.FactionFremen, "Jamis")).
		traitors(state.FactionFremen, leader(state.FactionEmperor, "Caid")).
		build()
	hs := newHarness(t, DefaultOptions(), g)

	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionEmperor, LeaderID: leader(state.FactionEmperor, "Caid"), Forces: 5}),
		planResponse(combat.Plan{Faction: state.FactionFremen, LeaderID: leader(state.FactionFremen, "Jamis"), Forces: 3}),
	)
	require.True(t, hs.res.SimultaneousRequests)
	require.Len(t, hs.res.PendingRequests, 2)

	hs.respond(
		action(state.FactionEmperor, rules.ActionCallTraitor, nil),
		action(state.FactionFremen, rules.ActionCallTraitor, nil),
	)
	require.True(t, hs.res.PhaseComplete)

	resolved := hs.eventsOf(rules.EventBattleResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, string(combat.OutcomeTwoTraitors), resolved[0].Data["outcome"])
	assert.Len(t, hs.eventsOf(rules.EventLeaderKilled), 2)
	assert.Equal(t, 0, forcesIn(hs.game(), state.FactionEmperor, "the-great-flat"))
	assert.Equal(t, 0, forcesIn(hs.game(), state.FactionFremen, "the-great-flat"))
}

func TestWinnerChoosesDiscards(t *testing.T) {
	g := emperorVsFremen().
		cards(state.FactionEmperor, state.NewCard("w1", "Crysknife"), state.NewCard("b1", "Baliset")).
		build()
	hs := newHarness(t, DefaultOptions(), g)

	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionEmperor, LeaderID: leader(state.FactionEmperor, "Caid"), Forces: 5, WeaponID: "w1", DefenseID: "b1"}),
		planResponse(combat.Plan{Faction: state.FactionFremen, LeaderID: leader(state.FactionFremen, "Jamis"), Forces: 3}),
	)

	// The worthless card is discarded right away; the crysknife is the winner's choice.
	discardPile := hs.game().TreacheryDiscard
	require.Len(t, discardPile, 1)
	assert.Equal(t, "b1", discardPile[0].ID)
	hs.request(state.FactionEmperor, rules.RequestChooseCardDiscard)
	assert.Equal(t, 12, hs.game().Factions[state.FactionEmperor].Spice, "paid for the killed leader")

	hs.respond(action(state.FactionEmperor, rules.ActionDiscardCards, map[string]any{"card_ids": []any{"w1", "zz"}}))
	require.True(t, hs.res.PhaseComplete)
	assert.Len(t, hs.game().TreacheryDiscard, 2)
	assert.Empty(t, hs.game().Factions[state.FactionEmperor].Hand)
}

func TestLasgunShieldExplosion(t *testing.T) {
	g := emperorVsFremen().
		cards(state.FactionEmperor, state.NewCard("l1", "Lasgun")).
		cards(state.FactionFremen, state.NewCard("s1", "Shield")).
		build().
		WithSpiceOnBoard("the-great-flat", 6)
	hs := newHarness(t, DefaultOptions(), g)

	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionEmperor, LeaderID: leader(state.FactionEmperor, "Caid"), Forces: 5, WeaponID: "l1"}),
		planResponse(combat.Plan{Faction: state.FactionFremen, LeaderID: leader(state.FactionFremen, "Jamis"), Forces: 3, DefenseID: "s1"}),
	)

	require.True(t, hs.res.PhaseComplete)
	assert.Len(t, hs.eventsOf(rules.EventLasgunExplosion), 1)
	assert.Len(t, hs.eventsOf(rules.EventLeaderKilled), 2)
	gs := hs.game()
	assert.Equal(t, 0, forcesIn(gs, state.FactionEmperor, "the-great-flat"))
	assert.Equal(t, 0, forcesIn(gs, state.FactionFremen, "the-great-flat"))
	assert.NotContains(t, gs.SpiceOnBoard, state.TerritoryID("the-great-flat"))
	assert.Len(t, gs.TreacheryDiscard, 2)
}

func TestCapturedLeaderReturnsAfterBattle(t *testing.T) {
	gurneyID := leader(state.FactionAtreides, "Gurney Halleck")
	g := newGameBuilder().
		faction(state.FactionHarkonnen, 1, 10).
		faction(state.FactionFremen, 5, 10).
		faction(state.FactionAtreides, 9, 10).
		forces(state.FactionHarkonnen, "the-great-flat", 14, 3, 0).
		forces(state.FactionFremen, "the-great-flat", 14, 3, 0).
		build()
	gurney, _ := g.Factions[state.FactionAtreides].Leader(gurneyID)
	gurney.Status, gurney.CapturedBy = state.LeaderCaptured, state.FactionHarkonnen
	g = g.WithFaction(g.Factions[state.FactionAtreides].WithoutLeader(gurneyID)).
		WithFaction(g.Factions[state.FactionHarkonnen].WithLeader(gurney))
	hs := newHarness(t, DefaultOptions(), g)

	hs.respond(
		planResponse(combat.Plan{Faction: state.FactionHarkonnen, LeaderID: gurneyID, Forces: 2}),
		planResponse(combat.Plan{Faction: state.FactionFremen, LeaderID: leader(state.FactionFremen, "Jamis"), Forces: 1}),
	)
	assert.Len(t, hs.eventsOf(rules.EventLeaderReturned), 1)
	hs.passUntilComplete()

	gs := hs.game()
	_, held := gs.Factions[state.FactionHarkonnen].Leader(gurneyID)
	assert.False(t, held)
	back, ok := gs.Factions[state.FactionAtreides].Leader(gurneyID)
	require.True(t, ok)
	assert.Equal(t, state.LeaderAvailable, back.Status)
	assert.Equal(t, state.FactionNone, back.CapturedBy)
}

func TestStateRoundTripResumesIdentically(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 42

	direct := newHarness(t, opts, harkonnenTraitorBattle().build())
	directCaptured := playTraitorAndKill(direct)

	resumed := newHarness(t, opts, harkonnenTraitorBattle().build())
	resumed.roundTrip = true
	resumedCaptured := playTraitorAndKill(resumed)

	assert.Equal(t, directCaptured, resumedCaptured, "the random draw is part of the state")
	assert.Equal(t, direct.eventTypes(), resumed.eventTypes())
	assert.Equal(t, normalize(t, direct.state()), normalize(t, resumed.state()))
}

func TestSeedChangesCaptureDraw(t *testing.T) {
	seen := map[string]bool{}
	for seed := int64(0); seed < 16; seed++ {
		opts := DefaultOptions()
		opts.Seed = seed
		hs := newHarness(t, opts, harkonnenTraitorBattle().build())
		seen[playTraitorAndKill(hs)] = true
	}
	assert.Greater(t, len(seen), 1)
	for id := range seen {
		assert.NotEqual(t, leader(state.FactionAtreides, "Duncan Idaho"), id, "dead leaders cannot be captured")
	}
}

func normalize(t *testing.T, s State) State {
	t.Helper()
	data, err := Encode(s)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	return out
}
