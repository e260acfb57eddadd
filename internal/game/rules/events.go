package rules

import (
	"slices"
	"sync"
	"time"

	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/google/uuid"
)

// EventType indicates the category of a battle event.
type EventType string

const (
	// Phase events
	EventPhaseStarted   EventType = "BATTLE_PHASE_STARTED"
	EventPhaseCompleted EventType = "BATTLE_PHASE_COMPLETED"
	EventQueueBuilt     EventType = "BATTLE_QUEUE_BUILT"
	EventBattleStarted  EventType = "BATTLE_STARTED"
	EventBattleFinished EventType = "BATTLE_FINISHED"
	EventBattleRequeued EventType = "BATTLE_REQUEUED"

	// Sub-phase events
	EventAggressorChosen    EventType = "AGGRESSOR_CHOSEN"
	EventOpponentChosen     EventType = "OPPONENT_CHOSEN"
	EventVoiceUsed          EventType = "VOICE_USED"
	EventVoiceDeclined      EventType = "VOICE_DECLINED"
	EventPrescienceUsed     EventType = "PRESCIENCE_USED"
	EventPrescienceRevealed EventType = "PRESCIENCE_REVEALED"
	EventPrescienceDeclined EventType = "PRESCIENCE_DECLINED"
	EventPlanSubmitted      EventType = "PLAN_SUBMITTED"
	EventPlanRejected       EventType = "PLAN_REJECTED"
	EventPlanDefaulted      EventType = "PLAN_DEFAULTED"
	EventPlansRevealed      EventType = "PLANS_REVEALED"

	// Traitor events
	EventTraitorOpportunity EventType = "TRAITOR_OPPORTUNITY"
	EventTraitorCalled      EventType = "TRAITOR_CALLED"
	EventTraitorDeclined    EventType = "TRAITOR_DECLINED"
	EventTraitorBlocked     EventType = "TRAITOR_BLOCKED"

	// Resolution events
	EventBattleResolved   EventType = "BATTLE_RESOLVED"
	EventLasgunExplosion  EventType = "LASGUN_EXPLOSION"
	EventLeaderKilled     EventType = "LEADER_KILLED"
	EventForcesLost       EventType = "FORCES_LOST"
	EventSpicePaid        EventType = "SPICE_PAID"
	EventSpiceCollected   EventType = "SPICE_COLLECTED"
	EventCardDiscarded    EventType = "CARD_DISCARDED"
	EventCardKept         EventType = "CARD_KEPT"
	EventLeaderReturned   EventType = "LEADER_RETURNED"
	EventKwisatzHaderach  EventType = "KWISATZ_HADERACH_AWAKENED"

	// Capture events
	EventLeaderCaptured       EventType = "LEADER_CAPTURED"
	EventCapturedLeaderKilled EventType = "CAPTURED_LEADER_KILLED"
	EventCaptureDeclined      EventType = "CAPTURE_DECLINED"

	// Protocol events
	EventResponseIgnored EventType = "RESPONSE_IGNORED"
)

// Event represents a state change that observers may react to. Events are
// append-only and never modified after creation.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Message   string            `json:"message"`
	Faction   state.Faction     `json:"faction,omitempty"`
	Territory state.TerritoryID `json:"territory,omitempty"`
	Data      map[string]any    `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, faction state.Faction, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Faction:   faction,
		Data:      make(map[string]any),
		Timestamp: time.Now(),
	}
}

// In sets the territory the event occurred in.
func (e Event) In(territory state.TerritoryID) Event {
	e.Territory = territory
	return e
}

// With adds a payload field.
func (e Event) With(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// Listener receives published events.
type Listener func(Event)

type subscription struct {
	handle int
	types  []EventType
	fn     Listener
}

func (s subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// EventBus delivers events synchronously to listeners in subscription order.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	handle int
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a listener for every event. It returns -1 for a nil
// listener.
func (bus *EventBus) Subscribe(listener Listener) int {
	return bus.SubscribeTyped("", listener)
}

// SubscribeTyped registers a listener for one event type. An empty type
// matches every event.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	var types []EventType
	if eventType != "" {
		types = []EventType{eventType}
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handle++
	bus.subs = append(bus.subs, subscription{handle: bus.handle, types: types, fn: listener})
	return bus.handle
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs = slices.DeleteFunc(bus.subs, func(s subscription) bool { return s.handle == handle })
}

// Publish delivers one event. Listeners must not subscribe or unsubscribe
// from inside a callback.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	for _, s := range bus.subs {
		if s.wants(event.Type) {
			s.fn(event)
		}
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
