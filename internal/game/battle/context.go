package battle

import (
	"slices"

	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/random"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// VoiceMode is the direction of a voice command.
type VoiceMode string

const (
	VoicePlay    VoiceMode = "PLAY"
	VoiceNotPlay VoiceMode = "NOT_PLAY"
)

// Voice card classes accepted alongside the concrete card kinds.
const (
	VoiceClassWeapon  = "WEAPON"
	VoiceClassDefense = "DEFENSE"
)

// VoiceCommand constrains the target's plan.
type VoiceCommand struct {
	Voicer state.Faction `json:"voicer"`
	Target state.Faction `json:"target"`
	Mode   VoiceMode     `json:"mode"`
	// Card is a card kind or one of the WEAPON / DEFENSE classes.
	Card string `json:"card"`
}

// Matches reports whether a card of the kind is covered by the command.
func (v VoiceCommand) Matches(kind state.CardKind) bool {
	switch v.Card {
	case VoiceClassWeapon:
		return kind.IsWeapon()
	case VoiceClassDefense:
		return kind.IsDefense()
	}
	return string(kind) == v.Card
}

func validVoiceCard(card string) bool {
	switch state.CardKind(card) {
	case state.CardProjectileWeapon, state.CardPoisonWeapon, state.CardLasgun,
		state.CardShield, state.CardSnooper, state.CardCheapHero, state.CardWorthless:
		return true
	}
	return card == VoiceClassWeapon || card == VoiceClassDefense
}

// PrescienceElement names the part of a plan revealed by prescience.
type PrescienceElement string

const (
	ElementLeader  PrescienceElement = "LEADER"
	ElementWeapon  PrescienceElement = "WEAPON"
	ElementDefense PrescienceElement = "DEFENSE"
	ElementForces  PrescienceElement = "FORCES"
)

func validElement(e PrescienceElement) bool {
	switch e {
	case ElementLeader, ElementWeapon, ElementDefense, ElementForces:
		return true
	}
	return false
}

// PrescienceBinding records a revealed plan element the target must honour.
type PrescienceBinding struct {
	Seer    state.Faction     `json:"seer"`
	Target  state.Faction     `json:"target"`
	Element PrescienceElement `json:"element"`
	// Bound is false when the target declined to reveal.
	Bound bool `json:"bound"`
	// Revealed holds only the fields for Element.
	Revealed combat.Plan `json:"revealed"`
}

// Binds reports whether the plan agrees with the revealed element.
func (b PrescienceBinding) Binds(p combat.Plan) bool {
	if !b.Bound {
		return true
	}
	switch b.Element {
	case ElementLeader:
		return p.LeaderID == b.Revealed.LeaderID && p.CheapHeroID == b.Revealed.CheapHeroID
	case ElementWeapon:
		return p.WeaponID == b.Revealed.WeaponID
	case ElementDefense:
		return p.DefenseID == b.Revealed.DefenseID
	case ElementForces:
		return p.Forces == b.Revealed.Forces && p.EliteForces == b.Revealed.EliteForces
	}
	return true
}

// Apply copies the revealed element onto the plan.
func (b PrescienceBinding) Apply(p combat.Plan) combat.Plan {
	if !b.Bound {
		return p
	}
	switch b.Element {
	case ElementLeader:
		p.LeaderID, p.CheapHeroID = b.Revealed.LeaderID, b.Revealed.CheapHeroID
	case ElementWeapon:
		p.WeaponID = b.Revealed.WeaponID
	case ElementDefense:
		p.DefenseID = b.Revealed.DefenseID
	case ElementForces:
		p.Forces, p.EliteForces = b.Revealed.Forces, b.Revealed.EliteForces
	}
	return p
}

// TraitorOpportunity is one faction's chance to reveal a traitor. Caller holds
// the card; Beneficiary is the side in the battle credited with the win.
type TraitorOpportunity struct {
	Caller      state.Faction `json:"caller"`
	Beneficiary state.Faction `json:"beneficiary"`
	LeaderID    string        `json:"leader_id"`
	Called      bool          `json:"called"`
}

// BattleContext is the working state of the conflict being fought.
type BattleContext struct {
	Battle         PendingBattle
	Aggressor      state.Faction
	Defender       state.Faction
	// AggressorOrder is the participants in storm order. The first is the
	// aggressor; a requeued battle starts a fresh order from the survivors.
	AggressorOrder []state.Faction
	Voice          *VoiceCommand
	Prescience     *PrescienceBinding
	AggressorPlan  *combat.Plan
	DefenderPlan   *combat.Plan
	Traitors       []TraitorOpportunity
	// Result is computed once and reused by every post-resolution step.
	Result *combat.Result
	Phase  SubPhase
}

func newContext(pb PendingBattle) *BattleContext {
	order := slices.Clone(pb.Factions)
	return &BattleContext{
		Battle:         pb,
		AggressorOrder: order,
		Aggressor:      order[0],
	}
}

// Sides returns the aggressor and defender.
func (c *BattleContext) Sides() []state.Faction {
	return []state.Faction{c.Aggressor, c.Defender}
}

// IsSide reports whether the faction is aggressor or defender.
func (c *BattleContext) IsSide(f state.Faction) bool {
	return f != state.FactionNone && (f == c.Aggressor || f == c.Defender)
}

// Opponent returns the other side of the faction.
func (c *BattleContext) Opponent(f state.Faction) state.Faction {
	if f == c.Aggressor {
		return c.Defender
	}
	return c.Aggressor
}

// Plan returns the submitted plan for a side.
func (c *BattleContext) Plan(f state.Faction) *combat.Plan {
	if f == c.Aggressor {
		return c.AggressorPlan
	}
	return c.DefenderPlan
}

func (c *BattleContext) setPlan(f state.Faction, p combat.Plan) {
	if f == c.Aggressor {
		c.AggressorPlan = &p
		return
	}
	c.DefenderPlan = &p
}

func (c *BattleContext) clone() *BattleContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Battle.Factions = slices.Clone(c.Battle.Factions)
	out.AggressorOrder = slices.Clone(c.AggressorOrder)
	out.Traitors = slices.Clone(c.Traitors)
	if c.Voice != nil {
		v := *c.Voice
		out.Voice = &v
	}
	if c.Prescience != nil {
		p := *c.Prescience
		out.Prescience = &p
	}
	if c.AggressorPlan != nil {
		p := *c.AggressorPlan
		out.AggressorPlan = &p
	}
	if c.DefenderPlan != nil {
		p := *c.DefenderPlan
		out.DefenderPlan = &p
	}
	if c.Result != nil {
		r := *c.Result
		out.Result = &r
	}
	return &out
}

// State is everything needed to resume the battle phase.
type State struct {
	Game     state.GameState
	Queue    []PendingBattle
	Current  *BattleContext
	RNG      random.Stream
	Resolved int
}

// Complete reports whether every conflict has been fought.
func (s State) Complete() bool {
	return s.Current == nil && len(s.Queue) == 0
}

func (s State) clone() State {
	out := s
	out.Game = s.Game.Clone()
	out.Queue = slices.Clone(s.Queue)
	out.Current = s.Current.clone()
	return out
}
