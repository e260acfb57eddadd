package battle

import (
	"encoding/gob"

	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// SubPhaseName identifies a step of a single conflict.
type SubPhaseName string

const (
	NameAggressorChoosing     SubPhaseName = "AGGRESSOR_CHOOSING"
	NameVoiceOpportunity      SubPhaseName = "VOICE_OPPORTUNITY"
	NamePrescienceOpportunity SubPhaseName = "PRESCIENCE_OPPORTUNITY"
	NameCreatingBattlePlans   SubPhaseName = "CREATING_BATTLE_PLANS"
	NameRevealingPlans        SubPhaseName = "REVEALING_PLANS"
	NameTraitorCall           SubPhaseName = "TRAITOR_CALL"
	NameBattleResolution      SubPhaseName = "BATTLE_RESOLUTION"
	NameHarkonnenCapture      SubPhaseName = "HARKONNEN_CAPTURE"
	NameWinnerCardDiscard     SubPhaseName = "WINNER_CARD_DISCARD"
)

// subPhaseOrder is the fixed relative order of sub-phases. A sub-phase may be
// skipped but the order of those entered never changes.
var subPhaseOrder = []SubPhaseName{
	NameAggressorChoosing,
	NameVoiceOpportunity,
	NamePrescienceOpportunity,
	NameCreatingBattlePlans,
	NameRevealingPlans,
	NameTraitorCall,
	NameBattleResolution,
	NameHarkonnenCapture,
	NameWinnerCardDiscard,
}

// SubPhase is the sealed set of sub-phase variants. Each variant carries only
// the data its step needs.
type SubPhase interface {
	Name() SubPhaseName
	sealed()
}

// AggressorChoosing waits for the aggressor to pick an opponent among the candidates.
type AggressorChoosing struct {
	Aggressor  state.Faction
	Candidates []state.Faction
}

// VoiceOpportunity waits for the voicer to command the target.
type VoiceOpportunity struct {
	Voicer state.Faction
	Target state.Faction
}

// PrescienceOpportunity waits for the seer to pick an element, then for the
// target to reveal it. Element is empty while the seer is choosing.
type PrescienceOpportunity struct {
	Seer    state.Faction
	Target  state.Faction
	Element PrescienceElement
}

// CreatingBattlePlans waits for every faction still in Awaiting to submit a plan.
type CreatingBattlePlans struct {
	Awaiting []state.Faction
}

// RevealingPlans is transient; plans are shown and traitors detected inline.
type RevealingPlans struct{}

// TraitorCall waits for every holder of a matching traitor card.
type TraitorCall struct {
	Opportunities []TraitorOpportunity
	Awaiting      []state.Faction
}

// BattleResolution is transient; the combat result is computed inline.
type BattleResolution struct{}

// HarkonnenCapture waits for the captor to kill or capture the drawn leader.
type HarkonnenCapture struct {
	Captor   state.Faction
	Loser    state.Faction
	LeaderID string
}

// WinnerCardDiscard waits for the winner to choose which played cards to discard.
type WinnerCardDiscard struct {
	Winner state.Faction
	Cards  []state.Card
}

func (AggressorChoosing) Name() SubPhaseName     { return NameAggressorChoosing }
func (VoiceOpportunity) Name() SubPhaseName      { return NameVoiceOpportunity }
func (PrescienceOpportunity) Name() SubPhaseName { return NamePrescienceOpportunity }
func (CreatingBattlePlans) Name() SubPhaseName   { return NameCreatingBattlePlans }
func (RevealingPlans) Name() SubPhaseName        { return NameRevealingPlans }
func (TraitorCall) Name() SubPhaseName           { return NameTraitorCall }
func (BattleResolution) Name() SubPhaseName      { return NameBattleResolution }
func (HarkonnenCapture) Name() SubPhaseName      { return NameHarkonnenCapture }
func (WinnerCardDiscard) Name() SubPhaseName     { return NameWinnerCardDiscard }

func (AggressorChoosing) sealed()     {}
func (VoiceOpportunity) sealed()      {}
func (PrescienceOpportunity) sealed() {}
func (CreatingBattlePlans) sealed()   {}
func (RevealingPlans) sealed()        {}
func (TraitorCall) sealed()           {}
func (BattleResolution) sealed()      {}
func (HarkonnenCapture) sealed()      {}
func (WinnerCardDiscard) sealed()     {}

// Only waiting variants are registered; transient ones are never at rest in a State.
func init() {
	gob.Register(AggressorChoosing{})
	gob.Register(VoiceOpportunity{})
	gob.Register(PrescienceOpportunity{})
	gob.Register(CreatingBattlePlans{})
	gob.Register(TraitorCall{})
	gob.Register(HarkonnenCapture{})
	gob.Register(WinnerCardDiscard{})
}
