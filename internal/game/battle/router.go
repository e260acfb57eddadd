// Package battle implements the battle phase: the pending battle queue, the
// per-conflict sub-phase state machine and the post-resolution handlers.
//
// The Handler never blocks. Every step returns the requests it needs answered
// and a State value that fully describes where the phase stands, so callers may
// persist the state and resume later with the same responses.
package battle

import (
	"fmt"
	"slices"

	"github.com/arrakis-sim/dune-server-go/internal/game/random"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"go.uber.org/zap"
)

// Default rule values.
const (
	DefaultCaptureSpiceReward       = 2
	DefaultKwisatzHaderachThreshold = 7
)

// Options configures the battle rules.
type Options struct {
	Board                    *state.Board
	AdvancedCombat           bool
	CaptureSpiceReward       int
	KwisatzHaderachThreshold int
	Seed                     int64
}

// DefaultOptions returns the basic-game rules on the embedded board.
func DefaultOptions() Options {
	return Options{
		Board:                    state.DefaultBoard(),
		CaptureSpiceReward:       DefaultCaptureSpiceReward,
		KwisatzHaderachThreshold: DefaultKwisatzHaderachThreshold,
	}
}

// Handler runs the battle phase.
type Handler struct {
	opts   Options
	logger *zap.Logger
}

var _ rules.PhaseHandler[State] = (*Handler)(nil)

// NewHandler creates a battle phase handler. Zero option values fall back to defaults.
func NewHandler(opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Board == nil {
		opts.Board = state.DefaultBoard()
	}
	if opts.CaptureSpiceReward <= 0 {
		opts.CaptureSpiceReward = DefaultCaptureSpiceReward
	}
	if opts.KwisatzHaderachThreshold <= 0 {
		opts.KwisatzHaderachThreshold = DefaultKwisatzHaderachThreshold
	}
	return &Handler{opts: opts, logger: logger}
}

// Options returns the effective options.
func (h *Handler) Options() Options { return h.opts }

// step accumulates the state and events of one call.
type step struct {
	s      State
	events []rules.Event
}

func (st *step) emit(e rules.Event) {
	st.events = append(st.events, e)
}

// Initialize builds the queue and runs until the first decision is needed.
func (h *Handler) Initialize(game state.GameState) (rules.StepResult[State], error) {
	queue, err := BuildQueue(game, h.opts.Board)
	if err != nil {
		return rules.StepResult[State]{}, err
	}
	st := &step{s: State{Game: game.Clone(), Queue: queue, RNG: random.NewStream(h.opts.Seed)}}

	st.emit(rules.NewEvent(rules.EventPhaseStarted, state.FactionNone,
		fmt.Sprintf("battle phase started on turn %d", game.Turn)))
	st.emit(rules.NewEvent(rules.EventQueueBuilt, state.FactionNone,
		fmt.Sprintf("%d battles pending", len(queue))).With("battles", len(queue)))
	h.logger.Debug("battle queue built", zap.Int("battles", len(queue)), zap.Int("turn", game.Turn))

	if err := h.startNext(st); err != nil {
		return rules.StepResult[State]{}, err
	}
	return h.result(st)
}

// ProcessStep applies responses to the waiting sub-phase and runs until the
// next decision is needed or the phase is complete.
func (h *Handler) ProcessStep(current State, responses []rules.Response) (rules.StepResult[State], error) {
	if current.Current == nil {
		return rules.StepResult[State]{}, ErrNoCurrentBattle
	}
	requests, _, err := h.Pending(current)
	if err != nil {
		return rules.StepResult[State]{}, err
	}

	st := &step{s: current.clone()}
	matched, ignored := rules.MatchResponses(requests, responses)
	for _, resp := range ignored {
		h.ignore(st, resp, "duplicate or unrequested response")
	}
	for _, req := range requests {
		m, ok := matched[req.FactionID]
		if !ok || !m.Passed {
			continue
		}
		if first := firstResponse(responses, req.FactionID); !first.Passed && first.ActionType != rules.ActionPass {
			h.ignore(st, first, fmt.Sprintf("action %s not offered, treated as pass", first.ActionType))
		}
	}

	if err := h.respond(st, matched); err != nil {
		return rules.StepResult[State]{}, err
	}
	return h.result(st)
}

// Cleanup returns the game state with per-turn battle markers cleared.
func (h *Handler) Cleanup(current State) state.GameState {
	g := current.Game.Clone()
	for f, fs := range g.Factions {
		for i := range fs.Leaders {
			fs.Leaders[i].UsedIn = ""
		}
		g.Factions[f] = fs
	}
	return g
}

// Pending re-derives the outstanding requests from a state.
func (h *Handler) Pending(s State) ([]rules.Request, bool, error) {
	ctx := s.Current
	if ctx == nil {
		return nil, false, nil
	}
	switch p := ctx.Phase.(type) {
	case AggressorChoosing:
		return []rules.Request{h.aggressorRequest(ctx, p)}, false, nil
	case VoiceOpportunity:
		return []rules.Request{h.voiceRequest(ctx, p)}, false, nil
	case PrescienceOpportunity:
		return []rules.Request{h.prescienceRequest(ctx, p)}, false, nil
	case CreatingBattlePlans:
		return h.planRequests(s.Game, ctx, p), true, nil
	case TraitorCall:
		return h.traitorRequests(ctx, p), true, nil
	case HarkonnenCapture:
		return []rules.Request{h.captureRequest(s.Game, ctx, p)}, false, nil
	case WinnerCardDiscard:
		return []rules.Request{h.discardRequest(ctx, p)}, false, nil
	case nil:
		return nil, false, fmt.Errorf("%w: battle in %s has no sub-phase", ErrUnknownSubPhase, ctx.Battle.Territory)
	default:
		return nil, false, fmt.Errorf("%w: %s is not waiting for responses", ErrUnknownSubPhase, p.Name())
	}
}

// respond dispatches matched responses to the waiting sub-phase.
func (h *Handler) respond(st *step, matched map[state.Faction]rules.Response) error {
	switch p := st.s.Current.Phase.(type) {
	case AggressorChoosing:
		return h.respondAggressor(st, p, matched)
	case VoiceOpportunity:
		return h.respondVoice(st, p, matched)
	case PrescienceOpportunity:
		return h.respondPrescience(st, p, matched)
	case CreatingBattlePlans:
		return h.respondPlans(st, p, matched)
	case TraitorCall:
		return h.respondTraitor(st, p, matched)
	case HarkonnenCapture:
		return h.respondCapture(st, p, matched)
	case WinnerCardDiscard:
		return h.respondDiscard(st, p, matched)
	case nil:
		return fmt.Errorf("%w: battle has no sub-phase", ErrUnknownSubPhase)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSubPhase, p.Name())
	}
}

// advance enters the sub-phases that follow after, stopping at the first one
// that waits for responses. When none remain the conflict is finished.
func (h *Handler) advance(st *step, after SubPhaseName) error {
	start := 0
	if after != "" {
		i := slices.Index(subPhaseOrder, after)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownSubPhase, after)
		}
		start = i + 1
	}
	for _, name := range subPhaseOrder[start:] {
		waiting, err := h.enter(st, name)
		if err != nil {
			return err
		}
		if waiting {
			h.logger.Debug("battle waiting",
				zap.String("sub_phase", string(name)),
				zap.String("territory", string(st.s.Current.Battle.Territory)))
			return nil
		}
	}
	return h.finishBattle(st)
}

// enter runs a sub-phase's entry logic and reports whether it now waits.
func (h *Handler) enter(st *step, name SubPhaseName) (bool, error) {
	switch name {
	case NameAggressorChoosing:
		return h.enterAggressor(st)
	case NameVoiceOpportunity:
		return h.enterVoice(st)
	case NamePrescienceOpportunity:
		return h.enterPrescience(st)
	case NameCreatingBattlePlans:
		return h.enterPlans(st)
	case NameRevealingPlans:
		return h.enterReveal(st)
	case NameTraitorCall:
		return h.enterTraitorCall(st)
	case NameBattleResolution:
		return h.enterResolution(st)
	case NameHarkonnenCapture:
		return h.enterCapture(st)
	case NameWinnerCardDiscard:
		return h.enterDiscard(st)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownSubPhase, name)
	}
}

// startNext selects the next queued conflict, or completes the phase.
func (h *Handler) startNext(st *step) error {
	for len(st.s.Queue) > 0 {
		pb := st.s.Queue[0]
		st.s.Queue = slices.Clone(st.s.Queue[1:])

		current, ok, err := Recompute(st.s.Game, h.opts.Board, pb)
		if err != nil {
			return err
		}
		if !ok {
			h.logger.Warn("dropping stale battle", zap.String("territory", string(pb.Territory)))
			continue
		}

		st.s.Current = newContext(current)
		st.emit(rules.NewEvent(rules.EventBattleStarted, state.FactionNone,
			fmt.Sprintf("battle in %s between %v", current.Territory, current.Factions)).
			In(current.Territory).
			With("factions", factionNames(current.Factions)).
			With("sector", current.Sector))
		return h.advance(st, "")
	}

	st.s.Current = nil
	st.emit(rules.NewEvent(rules.EventPhaseCompleted, state.FactionNone,
		fmt.Sprintf("battle phase complete after %d battles", st.s.Resolved)).
		With("resolved", st.s.Resolved))
	return nil
}

// finishBattle closes the current conflict and requeues what remains of it.
func (h *Handler) finishBattle(st *step) error {
	ctx := st.s.Current
	if ctx == nil {
		return ErrNoCurrentBattle
	}
	st.s.Resolved++
	st.emit(rules.NewEvent(rules.EventBattleFinished, state.FactionNone,
		fmt.Sprintf("battle in %s finished", ctx.Battle.Territory)).In(ctx.Battle.Territory))

	next, ok, err := Recompute(st.s.Game, h.opts.Board, ctx.Battle)
	if err != nil {
		return err
	}
	if ok {
		st.s.Queue = append([]PendingBattle{next}, st.s.Queue...)
		st.emit(rules.NewEvent(rules.EventBattleRequeued, state.FactionNone,
			fmt.Sprintf("battle in %s continues between %v", next.Territory, next.Factions)).
			In(next.Territory).
			With("factions", factionNames(next.Factions)))
	}
	st.s.Current = nil
	return h.startNext(st)
}

func (h *Handler) result(st *step) (rules.StepResult[State], error) {
	requests, simultaneous, err := h.Pending(st.s)
	if err != nil {
		return rules.StepResult[State]{}, err
	}
	return rules.StepResult[State]{
		State:                st.s,
		PhaseComplete:        st.s.Complete(),
		PendingRequests:      requests,
		SimultaneousRequests: simultaneous,
		Events:               st.events,
	}, nil
}

// ignore records a response that could not be used.
func (h *Handler) ignore(st *step, resp rules.Response, reason string) {
	h.logger.Warn("response ignored",
		zap.String("faction", resp.FactionID.String()),
		zap.String("action", string(resp.ActionType)),
		zap.String("reason", reason))
	e := rules.NewEvent(rules.EventResponseIgnored, resp.FactionID, reason).
		With("action", string(resp.ActionType))
	if st.s.Current != nil {
		e = e.In(st.s.Current.Battle.Territory)
	}
	st.emit(e)
}

func firstResponse(responses []rules.Response, f state.Faction) rules.Response {
	for _, r := range responses {
		if r.FactionID == f {
			return r
		}
	}
	return rules.Response{}
}

func factionNames(factions []state.Faction) []string {
	out := make([]string, len(factions))
	for i, f := range factions {
		out[i] = string(f)
	}
	return out
}

// battleEvent creates an event located in the current battle's territory.
func battleEvent(ctx *BattleContext, t rules.EventType, f state.Faction, format string, args ...any) rules.Event {
	return rules.NewEvent(t, f, fmt.Sprintf(format, args...)).In(ctx.Battle.Territory)
}
