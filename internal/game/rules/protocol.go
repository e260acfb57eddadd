package rules

import "github.com/arrakis-sim/dune-server-go/internal/game/state"

// RequestType names the decision an agent is asked to make.
type RequestType string

const (
	RequestChooseOpponent    RequestType = "CHOOSE_OPPONENT"
	RequestUseVoice          RequestType = "USE_VOICE"
	RequestUsePrescience     RequestType = "USE_PRESCIENCE"
	RequestRevealPrescience  RequestType = "REVEAL_PRESCIENCE"
	RequestCreateBattlePlan  RequestType = "CREATE_BATTLE_PLAN"
	RequestCallTraitor       RequestType = "CALL_TRAITOR"
	RequestCaptureLeader     RequestType = "CAPTURE_LEADER"
	RequestChooseCardDiscard RequestType = "CHOOSE_CARDS_TO_DISCARD"
)

// ActionType names the answer an agent gives.
type ActionType string

const (
	ActionPass              ActionType = "PASS"
	ActionChooseOpponent    ActionType = "CHOOSE_OPPONENT"
	ActionUseVoice          ActionType = "USE_VOICE"
	ActionUsePrescience     ActionType = "USE_PRESCIENCE"
	ActionRevealPrescience  ActionType = "REVEAL_PRESCIENCE"
	ActionSubmitBattlePlan  ActionType = "SUBMIT_BATTLE_PLAN"
	ActionCallTraitor       ActionType = "CALL_TRAITOR"
	ActionKillLeader        ActionType = "KILL_LEADER"
	ActionCaptureLeader     ActionType = "CAPTURE_LEADER"
	ActionDiscardCards      ActionType = "DISCARD_CARDS"
	ActionKeepCards         ActionType = "KEEP_CARDS"
)

// Request asks one faction for a decision.
type Request struct {
	FactionID        state.Faction  `json:"faction_id"`
	RequestType      RequestType    `json:"request_type"`
	Prompt           string         `json:"prompt"`
	Context          map[string]any `json:"context,omitempty"`
	AvailableActions []ActionType   `json:"available_actions"`
}

// Offers reports whether the action is one the request accepts.
func (r Request) Offers(action ActionType) bool {
	for _, a := range r.AvailableActions {
		if a == action {
			return true
		}
	}
	return false
}

// Response is one faction's answer to a Request.
type Response struct {
	FactionID  state.Faction  `json:"faction_id"`
	ActionType ActionType     `json:"action_type"`
	Data       map[string]any `json:"data,omitempty"`
	Passed     bool           `json:"passed,omitempty"`
}

// Pass builds a passing response for the faction.
func Pass(f state.Faction) Response {
	return Response{FactionID: f, ActionType: ActionPass, Passed: true}
}

// StepResult is returned by every phase step. When PhaseComplete is false the
// caller must gather answers to PendingRequests and feed them to the next step;
// with SimultaneousRequests set every requested faction must answer first.
type StepResult[S any] struct {
	State                S         `json:"state"`
	PhaseComplete        bool      `json:"phase_complete"`
	PendingRequests      []Request `json:"pending_requests"`
	SimultaneousRequests bool      `json:"simultaneous_requests"`
	Events               []Event   `json:"events"`
}

// PhaseHandler is the contract implemented by each phase of the turn.
type PhaseHandler[S any] interface {
	Initialize(game state.GameState) (StepResult[S], error)
	ProcessStep(current S, responses []Response) (StepResult[S], error)
	Cleanup(current S) state.GameState
}

// MatchResponses keeps, per requested faction, the first response it sent and
// reports which responses were dropped because the faction was not asked.
// A response whose action is not offered is converted to a pass.
func MatchResponses(requests []Request, responses []Response) (map[state.Faction]Response, []Response) {
	byFaction := make(map[state.Faction]Request, len(requests))
	for _, req := range requests {
		byFaction[req.FactionID] = req
	}
	matched := make(map[state.Faction]Response, len(requests))
	var ignored []Response
	for _, resp := range responses {
		req, ok := byFaction[resp.FactionID]
		if !ok {
			ignored = append(ignored, resp)
			continue
		}
		if _, seen := matched[resp.FactionID]; seen {
			ignored = append(ignored, resp)
			continue
		}
		if resp.Passed || resp.ActionType == ActionPass || !req.Offers(resp.ActionType) {
			resp = Pass(resp.FactionID)
		}
		matched[resp.FactionID] = resp
	}
	return matched, ignored
}
