package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arrakis-sim/dune-server-go/internal/game/battle"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/arrakis-sim/dune-server-go/internal/game/watchers"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for an unknown battle session id.
	ErrSessionNotFound = errors.New("battle session not found")
	// ErrSessionComplete is returned when responses arrive after the phase ended.
	ErrSessionComplete = errors.New("battle session complete")
	// ErrSessionExists is returned when resuming a session that is already loaded.
	ErrSessionExists = errors.New("battle session already loaded")
	// ErrSessionPending is returned when finishing a session that still waits on requests.
	ErrSessionPending = errors.New("battle session has pending requests")
)

// Notification types emitted by the engine.
const (
	NotificationEvent         = "BATTLE_EVENT"
	NotificationPending       = "PENDING_REQUESTS"
	NotificationPhaseComplete = "PHASE_COMPLETE"
)

// Notification is pushed to the registered handler after every step.
type Notification struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Event     *rules.Event    `json:"event,omitempty"`    // set for NotificationEvent
	Requests  []rules.Request `json:"requests,omitempty"` // set for NotificationPending
}

// NotificationHandler receives engine notifications.
type NotificationHandler func(Notification)

// CurrentBattleView describes the conflict being fought.
type CurrentBattleView struct {
	Territory state.TerritoryID   `json:"territory"`
	Sector    int                 `json:"sector"`
	Factions  []state.Faction     `json:"factions"`
	Aggressor state.Faction       `json:"aggressor"`
	Defender  state.Faction       `json:"defender,omitempty"`
	SubPhase  battle.SubPhaseName `json:"sub_phase,omitempty"`
}

// SessionView is a read-only summary of a battle session.
type SessionView struct {
	SessionID    string                 `json:"session_id"`
	Sequence     int                    `json:"sequence"`
	Turn         int                    `json:"turn"`
	Complete     bool                   `json:"complete"`
	Simultaneous bool                   `json:"simultaneous"`
	Pending      []rules.Request        `json:"pending"`
	Queue        []battle.PendingBattle `json:"queue"`
	Current      *CurrentBattleView     `json:"current,omitempty"`
	Resolved     int                    `json:"resolved"`
	EventCount   int                    `json:"event_count"`
	StartedAt    time.Time              `json:"started_at"`
}

// SessionStats are the watcher tallies of a session.
type SessionStats struct {
	ForcesLost     map[state.Faction]int      `json:"forces_lost"`
	LeadersKilled  map[state.Faction][]string `json:"leaders_killed"`
	TraitorsCalled map[state.Faction][]string `json:"traitors_called"`
	TotalForces    int                        `json:"total_forces"`
}

type battleSession struct {
	id           string
	mu           sync.Mutex
	state        battle.State
	pending      []rules.Request
	simultaneous bool
	complete     bool
	events       []rules.Event
	sequence     int
	watchers     *rules.WatcherRegistry
	createdAt    time.Time

	// outbox holds committed steps not yet published, oldest first. Only
	// the caller that set delivering publishes from it.
	outbox     []delivery
	delivering bool
}

type delivery struct {
	events []rules.Event
	notes  []Notification
}

// BattleEngine runs battle phases as resumable sessions. Each call to Submit
// advances one session by one step; the session's state is snapshotted after
// every step so a restarted engine can pick it up with Resume.
type BattleEngine struct {
	logger              *zap.Logger
	handler             *battle.Handler
	store               SnapshotStore
	recorder            *ReplayRecorder
	bus                 *rules.EventBus
	mu                  sync.RWMutex
	sessions            map[string]*battleSession
	notificationHandler NotificationHandler
}

// EngineOption customises a BattleEngine.
type EngineOption func(*BattleEngine)

// WithSnapshotStore persists a snapshot after every step.
func WithSnapshotStore(store SnapshotStore) EngineOption {
	return func(e *BattleEngine) { e.store = store }
}

// WithReplayRecorder records every snapshot into a replay.
func WithReplayRecorder(recorder *ReplayRecorder) EngineOption {
	return func(e *BattleEngine) { e.recorder = recorder }
}

// WithEventBus publishes step events on an existing bus.
func WithEventBus(bus *rules.EventBus) EngineOption {
	return func(e *BattleEngine) { e.bus = bus }
}

// NewBattleEngine creates an engine around a battle handler.
func NewBattleEngine(logger *zap.Logger, handler *battle.Handler, opts ...EngineOption) *BattleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = battle.NewHandler(battle.DefaultOptions(), logger)
	}
	e := &BattleEngine{
		logger:   logger,
		handler:  handler,
		store:    NewMemorySnapshotStore(),
		sessions: make(map[string]*battleSession),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = rules.NewEventBus()
	}
	return e
}

// Bus returns the bus every step's events are published on.
func (e *BattleEngine) Bus() *rules.EventBus { return e.bus }

// SetNotificationHandler registers the handler for engine notifications. The
// handler runs without the session lock held and sees each session's steps
// in order. A step submitted from inside the handler is delivered after the
// current one.
func (e *BattleEngine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

func newBattleSession(id string) *battleSession {
	return &battleSession{
		id:        id,
		watchers:  watchers.NewRegistry(),
		createdAt: time.Now().UTC(),
	}
}

// StartBattle opens a session for the game's battle phase and runs it to the
// first decision.
func (e *BattleEngine) StartBattle(ctx context.Context, g state.GameState) (*SessionView, error) {
	result, err := e.handler.Initialize(g)
	if err != nil {
		return nil, fmt.Errorf("start battle: %w", err)
	}

	sess := newBattleSession(uuid.NewString())
	sess.mu.Lock()

	e.mu.Lock()
	e.sessions[sess.id] = sess
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.Begin(sess.id)
	}
	e.logger.Info("battle session started",
		zap.String("session_id", sess.id),
		zap.Int("turn", g.Turn),
		zap.Int("battles", len(result.State.Queue)+btoi(result.State.Current != nil)),
	)

	if err := e.apply(ctx, sess, result); err != nil {
		sess.mu.Unlock()
		e.mu.Lock()
		delete(e.sessions, sess.id)
		e.mu.Unlock()
		if e.recorder != nil {
			e.recorder.Discard(sess.id)
		}
		return nil, err
	}
	view := sess.view()
	sess.mu.Unlock()

	e.flush(sess)
	return view, nil
}

// Submit feeds responses to a session's pending requests. A structural error
// or a failed snapshot save leaves the session at its previous step.
func (e *BattleEngine) Submit(ctx context.Context, sessionID string, responses []rules.Response) (*SessionView, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.complete {
		sess.mu.Unlock()
		return nil, fmt.Errorf("submit to %s: %w", sessionID, ErrSessionComplete)
	}
	result, err := e.handler.ProcessStep(sess.state, responses)
	if err != nil {
		sess.mu.Unlock()
		e.logger.Warn("battle step failed",
			zap.String("session_id", sessionID),
			zap.Int("responses", len(responses)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("submit to %s: %w", sessionID, err)
	}
	if err := e.apply(ctx, sess, result); err != nil {
		sess.mu.Unlock()
		e.logger.Warn("battle step not committed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	view := sess.view()
	sess.mu.Unlock()

	e.flush(sess)
	return view, nil
}

// apply persists a step result and then commits it to the session. A failed
// save leaves the session untouched. Caller holds sess.mu.
func (e *BattleEngine) apply(ctx context.Context, sess *battleSession, result rules.StepResult[battle.State]) error {
	snapshot := NewSnapshot(sess.id, sess.sequence+1, result.State)
	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("save snapshot for %s: %w", sess.id, err)
		}
	}

	sess.state = result.State
	sess.pending = result.PendingRequests
	sess.simultaneous = result.SimultaneousRequests
	sess.complete = result.PhaseComplete
	sess.events = append(sess.events, result.Events...)
	sess.sequence = snapshot.Sequence
	for _, ev := range result.Events {
		sess.watchers.NotifyWatchers(ev)
	}
	if e.recorder != nil {
		e.recorder.Record(snapshot)
	}
	sess.outbox = append(sess.outbox, delivery{events: result.Events, notes: sess.notifications(result.Events)})

	e.logger.Debug("battle step applied",
		zap.String("session_id", sess.id),
		zap.Int("sequence", sess.sequence),
		zap.Int("events", len(result.Events)),
		zap.Int("pending", len(sess.pending)),
		zap.Bool("complete", sess.complete),
	)
	return nil
}

// Resume reloads a session from the snapshot store and re-derives the
// requests it was waiting on.
func (e *BattleEngine) Resume(ctx context.Context, sessionID string) (*SessionView, error) {
	if e.store == nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, ErrSnapshotNotFound)
	}
	e.mu.RLock()
	_, loaded := e.sessions[sessionID]
	e.mu.RUnlock()
	if loaded {
		return nil, fmt.Errorf("resume %s: %w", sessionID, ErrSessionExists)
	}

	snapshot, err := e.store.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}
	pending, simultaneous, err := e.handler.Pending(snapshot.State)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}

	sess := newBattleSession(sessionID)
	sess.state = snapshot.State
	sess.pending = pending
	sess.simultaneous = simultaneous
	sess.complete = snapshot.State.Complete()
	sess.sequence = snapshot.Sequence

	e.mu.Lock()
	if _, loaded := e.sessions[sessionID]; loaded {
		e.mu.Unlock()
		return nil, fmt.Errorf("resume %s: %w", sessionID, ErrSessionExists)
	}
	e.sessions[sessionID] = sess
	e.mu.Unlock()

	e.logger.Info("battle session resumed",
		zap.String("session_id", sessionID),
		zap.Int("sequence", snapshot.Sequence),
		zap.Int("pending", len(pending)),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Finish clears per-turn battle markers, saves the replay and drops the
// session. It returns the game state handed to the next phase.
func (e *BattleEngine) Finish(ctx context.Context, sessionID string) (state.GameState, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return state.GameState{}, err
	}

	sess.mu.Lock()
	if !sess.complete {
		sess.mu.Unlock()
		return state.GameState{}, fmt.Errorf("finish %s: %w (%d)", sessionID, ErrSessionPending, len(sess.pending))
	}
	g := e.handler.Cleanup(sess.state)
	sess.mu.Unlock()

	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	if e.recorder != nil {
		if _, err := e.recorder.Flush(sessionID); err != nil && !errors.Is(err, ErrNoReplay) {
			e.logger.Warn("failed to save replay", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	e.logger.Info("battle session finished", zap.String("session_id", sessionID))
	return g, nil
}

// GetView returns the current view of a session.
func (e *BattleEngine) GetView(sessionID string) (*SessionView, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// State returns a session's current battle state.
func (e *BattleEngine) State(sessionID string) (battle.State, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return battle.State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, nil
}

// Events returns the session's event log from index since onward.
func (e *BattleEngine) Events(sessionID string, since int) ([]rules.Event, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if since < 0 {
		since = 0
	}
	if since >= len(sess.events) {
		return nil, nil
	}
	return append([]rules.Event(nil), sess.events[since:]...), nil
}

// Stats returns the watcher tallies of a session.
func (e *BattleEngine) Stats(sessionID string) (SessionStats, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return SessionStats{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	stats := SessionStats{
		ForcesLost:     make(map[state.Faction]int),
		LeadersKilled:  make(map[state.Faction][]string),
		TraitorsCalled: make(map[state.Faction][]string),
	}
	forces, _ := sess.watchers.GetWatcher(watchers.KeyForcesLost).(*watchers.ForcesLost)
	leaders, _ := sess.watchers.GetWatcher(watchers.KeyLeadersKilled).(*watchers.LeadersKilled)
	traitors, _ := sess.watchers.GetWatcher(watchers.KeyTraitorsCalled).(*watchers.TraitorsCalled)

	if forces != nil {
		stats.ForcesLost = forces.ByFaction()
		stats.TotalForces = forces.Total()
	}
	for f := range sess.state.Game.Factions {
		if leaders != nil && leaders.Count(f) > 0 {
			stats.LeadersKilled[f] = leaders.Leaders(f)
		}
		if traitors != nil {
			if ids := traitors.Traitors(f); len(ids) > 0 {
				stats.TraitorsCalled[f] = ids
			}
		}
	}
	return stats, nil
}

// Sessions lists loaded session ids in sorted order.
func (e *BattleEngine) Sessions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *BattleEngine) session(sessionID string) (*battleSession, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sess, ok := e.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	return sess, nil
}

// flush publishes the session's queued steps in order. A caller that finds
// another delivery in progress leaves its step to that caller, so handlers
// may call back into the engine.
func (e *BattleEngine) flush(sess *battleSession) {
	sess.mu.Lock()
	if sess.delivering {
		sess.mu.Unlock()
		return
	}
	sess.delivering = true
	for {
		if len(sess.outbox) == 0 {
			sess.delivering = false
			sess.mu.Unlock()
			return
		}
		next := sess.outbox[0]
		sess.outbox = sess.outbox[1:]
		sess.mu.Unlock()
		e.publish(next.events, next.notes)
		sess.mu.Lock()
	}
}

// publish sends a step's events to the bus and its notifications to the
// handler. Called without any session lock held.
func (e *BattleEngine) publish(events []rules.Event, notes []Notification) {
	e.bus.PublishBatch(events)

	e.mu.RLock()
	handler := e.notificationHandler
	e.mu.RUnlock()
	if handler == nil {
		return
	}
	for _, n := range notes {
		handler(n)
	}
}

// notifications builds the notifications for a step. Caller holds sess.mu.
func (s *battleSession) notifications(events []rules.Event) []Notification {
	now := time.Now().UTC()
	notes := make([]Notification, 0, len(events)+1)
	for i := range events {
		ev := events[i]
		notes = append(notes, Notification{Type: NotificationEvent, SessionID: s.id, Timestamp: now, Event: &ev})
	}
	if s.complete {
		notes = append(notes, Notification{Type: NotificationPhaseComplete, SessionID: s.id, Timestamp: now})
	} else {
		notes = append(notes, Notification{
			Type:      NotificationPending,
			SessionID: s.id,
			Timestamp: now,
			Requests:  append([]rules.Request(nil), s.pending...),
		})
	}
	return notes
}

// view builds a SessionView. Caller holds s.mu.
func (s *battleSession) view() *SessionView {
	v := &SessionView{
		SessionID:    s.id,
		Sequence:     s.sequence,
		Turn:         s.state.Game.Turn,
		Complete:     s.complete,
		Simultaneous: s.simultaneous,
		Pending:      append([]rules.Request(nil), s.pending...),
		Queue:        append([]battle.PendingBattle(nil), s.state.Queue...),
		Resolved:     s.state.Resolved,
		EventCount:   len(s.events),
		StartedAt:    s.createdAt,
	}
	if ctx := s.state.Current; ctx != nil {
		cur := &CurrentBattleView{
			Territory: ctx.Battle.Territory,
			Sector:    ctx.Battle.Sector,
			Factions:  append([]state.Faction(nil), ctx.Battle.Factions...),
			Aggressor: ctx.Aggressor,
			Defender:  ctx.Defender,
		}
		if ctx.Phase != nil {
			cur.SubPhase = ctx.Phase.Name()
		}
		v.Current = cur
	}
	return v
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
