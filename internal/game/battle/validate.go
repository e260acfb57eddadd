package battle

import (
	"fmt"
	"slices"
	"sort"

	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, args...))
}

// validatePlan checks a submitted plan against the faction's holdings and any
// voice command or prescience binding on it.
func (h *Handler) validatePlan(g state.GameState, ctx *BattleContext, p combat.Plan) error {
	fs, err := g.MustFaction(p.Faction)
	if err != nil {
		return err
	}
	if err := h.checkForces(g, ctx, fs, p); err != nil {
		return err
	}
	if err := h.checkSpice(fs, p); err != nil {
		return err
	}
	if err := checkLeader(ctx, fs, p); err != nil {
		return err
	}
	if err := checkCards(fs, p); err != nil {
		return err
	}
	if err := h.checkKwisatzHaderach(fs, p); err != nil {
		return err
	}
	if err := checkVoice(ctx, fs, p, true); err != nil {
		return err
	}
	if b := ctx.Prescience; b != nil && b.Target == p.Faction && !b.Binds(p) {
		return invalid("plan contradicts the %s revealed to %s", b.Element, b.Seer)
	}
	return nil
}

// validateElement checks a single element revealed through prescience.
func (h *Handler) validateElement(g state.GameState, ctx *BattleContext, b PrescienceBinding) error {
	fs, err := g.MustFaction(b.Target)
	if err != nil {
		return err
	}
	p := b.Revealed
	switch b.Element {
	case ElementLeader:
		if err := checkLeader(ctx, fs, p); err != nil {
			return err
		}
	case ElementForces:
		if err := h.checkForces(g, ctx, fs, p); err != nil {
			return err
		}
		return nil
	}
	if err := checkCards(fs, p); err != nil {
		return err
	}
	if err := checkVoice(ctx, fs, p, false); err != nil {
		return err
	}
	return checkVoiceReachable(ctx, fs, b)
}

// checkVoiceReachable rejects a revealed element that leaves no slot in which
// a voice PLAY command can still be obeyed.
func checkVoiceReachable(ctx *BattleContext, fs state.FactionState, b PrescienceBinding) error {
	v := ctx.Voice
	if v == nil || v.Target != b.Target || v.Mode != VoicePlay || b.Element == ElementForces {
		return nil
	}
	var pinned string
	var fits func(state.CardKind) bool
	switch b.Element {
	case ElementLeader:
		pinned = b.Revealed.CheapHeroID
		fits = func(k state.CardKind) bool { return k.CanPlayAsWeapon() || k.CanPlayAsDefense() }
	case ElementWeapon:
		pinned = b.Revealed.WeaponID
		fits = func(k state.CardKind) bool { return k.CanPlayAsDefense() || k == state.CardCheapHero }
	case ElementDefense:
		pinned = b.Revealed.DefenseID
		fits = func(k state.CardKind) bool { return k.CanPlayAsWeapon() || k == state.CardCheapHero }
	}
	if card, ok := fs.Card(pinned); ok && v.Matches(card.Kind) {
		return nil
	}
	held := false
	for _, card := range fs.Hand {
		if !v.Matches(card.Kind) {
			continue
		}
		held = true
		if card.ID != pinned && fits(card.Kind) {
			return nil
		}
	}
	if held {
		return invalid("the Voice requires playing %s, which the revealed %s rules out", v.Card, b.Element)
	}
	return nil
}

func (h *Handler) checkForces(g state.GameState, ctx *BattleContext, fs state.FactionState, p combat.Plan) error {
	if p.Forces < 0 || p.EliteForces < 0 || p.Spice < 0 {
		return invalid("negative values are not allowed")
	}
	regular, elite := h.presence(g, ctx, fs.Faction)
	if p.Forces > regular {
		return invalid("dialed %d forces but only %d are present", p.Forces, regular)
	}
	if p.EliteForces > elite {
		return invalid("dialed %d elite forces but only %d are present", p.EliteForces, elite)
	}
	return nil
}

func (h *Handler) checkSpice(fs state.FactionState, p combat.Plan) error {
	if p.Spice == 0 {
		return nil
	}
	if !h.opts.AdvancedCombat {
		return invalid("spice may only be dialed under advanced combat")
	}
	if p.Spice > fs.Spice {
		return invalid("dialed %d spice but only %d held", p.Spice, fs.Spice)
	}
	if p.Spice > p.Tokens() {
		return invalid("dialed %d spice for %d forces", p.Spice, p.Tokens())
	}
	return nil
}

func checkLeader(ctx *BattleContext, fs state.FactionState, p combat.Plan) error {
	territory := ctx.Battle.Territory
	if p.LeaderID != "" && p.CheapHeroID != "" {
		return invalid("a leader and a cheap hero cannot both be played")
	}
	if p.LeaderID != "" {
		leader, ok := fs.Leader(p.LeaderID)
		switch {
		case !ok:
			return invalid("leader %s is not available to %s", p.LeaderID, fs.Faction)
		case !leader.Alive():
			return invalid("leader %s is dead", leader.Name)
		case leader.UsedIn != "" && leader.UsedIn != territory:
			return invalid("leader %s already fought in %s this turn", leader.Name, leader.UsedIn)
		}
		return nil
	}
	if p.CheapHeroID != "" {
		card, ok := fs.Card(p.CheapHeroID)
		if !ok {
			return invalid("card %s is not held", p.CheapHeroID)
		}
		if card.Kind != state.CardCheapHero {
			return invalid("card %s is not a cheap hero", card.Name)
		}
		return nil
	}
	if len(fs.AvailableLeaders(territory)) > 0 || fs.HasCardKind(state.CardCheapHero) {
		return invalid("a leader or cheap hero must be played")
	}
	return nil
}

func checkCards(fs state.FactionState, p combat.Plan) error {
	if p.WeaponID != "" {
		card, ok := fs.Card(p.WeaponID)
		if !ok {
			return invalid("card %s is not held", p.WeaponID)
		}
		if !card.Kind.CanPlayAsWeapon() {
			return invalid("%s cannot be played as a weapon", card.Name)
		}
	}
	if p.DefenseID != "" {
		card, ok := fs.Card(p.DefenseID)
		if !ok {
			return invalid("card %s is not held", p.DefenseID)
		}
		if !card.Kind.CanPlayAsDefense() {
			return invalid("%s cannot be played as a defense", card.Name)
		}
	}
	ids := p.CardIDs()
	slices.Sort(ids)
	if len(slices.Compact(ids)) != len(p.CardIDs()) {
		return invalid("a card may only be played once")
	}
	return nil
}

func (h *Handler) checkKwisatzHaderach(fs state.FactionState, p combat.Plan) error {
	if !p.KwisatzHaderach {
		return nil
	}
	if !fs.KwisatzHaderachActive(h.opts.KwisatzHaderachThreshold) {
		return invalid("the Kwisatz Haderach is not available to %s", fs.Faction)
	}
	if p.LeaderID == "" && p.CheapHeroID == "" {
		return invalid("the Kwisatz Haderach must accompany a leader")
	}
	return nil
}

// checkVoice enforces a voice command. The PLAY half only applies to complete
// plans; a single revealed element cannot show whether the command is obeyed.
func checkVoice(ctx *BattleContext, fs state.FactionState, p combat.Plan, complete bool) error {
	v := ctx.Voice
	if v == nil || v.Target != p.Faction {
		return nil
	}
	played := playedCards(fs, p)
	obeyed := slices.ContainsFunc(played, func(c state.Card) bool { return v.Matches(c.Kind) })
	switch v.Mode {
	case VoiceNotPlay:
		if obeyed {
			return invalid("the Voice forbids playing %s", v.Card)
		}
	case VoicePlay:
		if !complete || obeyed {
			return nil
		}
		if slices.ContainsFunc(fs.Hand, func(c state.Card) bool { return v.Matches(c.Kind) }) {
			return invalid("the Voice requires playing %s", v.Card)
		}
	}
	return nil
}

func playedCards(fs state.FactionState, p combat.Plan) []state.Card {
	var out []state.Card
	for _, id := range p.CardIDs() {
		if card, ok := fs.Card(id); ok {
			out = append(out, card)
		}
	}
	return out
}

// defaultPlan is used when a faction passes: its strongest leader (or a cheap
// hero), no forces, and only the cards a voice command or prescience demands.
func (h *Handler) defaultPlan(g state.GameState, ctx *BattleContext, f state.Faction) combat.Plan {
	p := combat.Plan{Faction: f}
	fs, ok := g.Faction(f)
	if !ok {
		return p
	}

	leaders := fs.AvailableLeaders(ctx.Battle.Territory)
	sort.SliceStable(leaders, func(i, j int) bool {
		if leaders[i].Strength != leaders[j].Strength {
			return leaders[i].Strength > leaders[j].Strength
		}
		return leaders[i].ID < leaders[j].ID
	})
	if len(leaders) > 0 {
		p.LeaderID = leaders[0].ID
	} else if hero, ok := firstCard(fs, func(k state.CardKind) bool { return k == state.CardCheapHero }); ok {
		p.CheapHeroID = hero.ID
	}

	binding := ctx.Prescience
	if binding != nil && binding.Target == f {
		p = binding.Apply(p)
	} else {
		binding = nil
	}
	if v := ctx.Voice; v != nil && v.Target == f && v.Mode == VoicePlay {
		p = placeVoiceCard(fs, *v, binding, p)
	}
	if p.WeaponID != "" && p.WeaponID == p.DefenseID {
		p.DefenseID = ""
	}
	return p
}

// placeVoiceCard puts a card the voice demands into a slot the prescience
// binding leaves free. A plan that already obeys is returned unchanged.
func placeVoiceCard(fs state.FactionState, v VoiceCommand, binding *PrescienceBinding, p combat.Plan) combat.Plan {
	if slices.ContainsFunc(playedCards(fs, p), func(c state.Card) bool { return v.Matches(c.Kind) }) {
		return p
	}
	free := func(e PrescienceElement) bool {
		return binding == nil || !binding.Bound || binding.Element != e
	}
	for _, card := range fs.Hand {
		if !v.Matches(card.Kind) || slices.Contains(p.CardIDs(), card.ID) {
			continue
		}
		switch {
		case card.Kind == state.CardCheapHero && free(ElementLeader):
			p.LeaderID, p.CheapHeroID = "", card.ID
			return p
		case card.Kind.CanPlayAsWeapon() && free(ElementWeapon) && p.WeaponID == "":
			p.WeaponID = card.ID
			return p
		case card.Kind.CanPlayAsDefense() && free(ElementDefense) && p.DefenseID == "":
			p.DefenseID = card.ID
			return p
		}
	}
	return p
}

func firstCard(fs state.FactionState, match func(state.CardKind) bool) (state.Card, bool) {
	for _, card := range fs.Hand {
		if match(card.Kind) {
			return card, true
		}
	}
	return state.Card{}, false
}
