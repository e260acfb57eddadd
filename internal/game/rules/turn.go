package rules

import "fmt"

// Phase represents the phases of a game turn, in play order.
type Phase int

const (
	PhaseStorm Phase = iota
	PhaseSpiceBlow
	PhaseChoamCharity
	PhaseBidding
	PhaseRevival
	PhaseShipmentAndMovement
	PhaseBattle
	PhaseSpiceCollection
	PhaseMentatPause
)

var phaseNames = map[Phase]string{
	PhaseStorm:               "STORM",
	PhaseSpiceBlow:           "SPICE_BLOW",
	PhaseChoamCharity:        "CHOAM_CHARITY",
	PhaseBidding:             "BIDDING",
	PhaseRevival:             "REVIVAL",
	PhaseShipmentAndMovement: "SHIPMENT_AND_MOVEMENT",
	PhaseBattle:              "BATTLE",
	PhaseSpiceCollection:     "SPICE_COLLECTION",
	PhaseMentatPause:         "MENTAT_PAUSE",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

var turnSequence = []Phase{
	PhaseStorm,
	PhaseSpiceBlow,
	PhaseChoamCharity,
	PhaseBidding,
	PhaseRevival,
	PhaseShipmentAndMovement,
	PhaseBattle,
	PhaseSpiceCollection,
	PhaseMentatPause,
}

// TurnManager tracks turn progression through the fixed phase sequence.
type TurnManager struct {
	orderIndex int
	turnNumber int
	maxTurns   int
}

// NewTurnManager creates a turn manager positioned at the given turn and phase.
func NewTurnManager(turn int, phase Phase, maxTurns int) *TurnManager {
	if turn < 1 {
		turn = 1
	}
	tm := &TurnManager{turnNumber: turn, maxTurns: maxTurns}
	for i, p := range turnSequence {
		if p == phase {
			tm.orderIndex = i
		}
	}
	return tm
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return turnSequence[tm.orderIndex]
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// GameOver reports whether the final turn has been played out.
func (tm *TurnManager) GameOver() bool {
	return tm.maxTurns > 0 && tm.turnNumber > tm.maxTurns
}

// AdvancePhase moves to the next phase, wrapping to the storm of the next turn.
func (tm *TurnManager) AdvancePhase() Phase {
	tm.orderIndex++
	if tm.orderIndex >= len(turnSequence) {
		tm.orderIndex = 0
		tm.turnNumber++
	}
	return tm.CurrentPhase()
}
