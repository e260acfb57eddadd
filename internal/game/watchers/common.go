// Package watchers holds event watchers that tally battle outcomes across a
// battle phase.
package watchers

import (
	"maps"
	"slices"

	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// Registry keys.
const (
	KeyLeadersKilled  = "leaders_killed"
	KeyForcesLost     = "forces_lost"
	KeyTraitorsCalled = "traitors_called"
)

// Payload keys read by the watchers.
const (
	DataLeaderID = "leader_id"
	DataCount    = "count"
	DataTraitor  = "traitor_id"
)

// LeadersKilled records leaders sent to the tanks, by owning faction.
type LeadersKilled struct {
	*rules.BaseWatcher
	killed map[state.Faction][]string
}

// NewLeadersKilled watches both regular and captured leader deaths.
func NewLeadersKilled() *LeadersKilled {
	return &LeadersKilled{
		BaseWatcher: rules.NewBaseWatcher(KeyLeadersKilled, rules.EventLeaderKilled, rules.EventCapturedLeaderKilled),
		killed:      make(map[state.Faction][]string),
	}
}

func (w *LeadersKilled) Watch(event rules.Event) {
	leaderID, _ := event.Data[DataLeaderID].(string)
	if !w.Interested(event.Type) || leaderID == "" || event.Faction == state.FactionNone {
		return
	}
	w.killed[event.Faction] = append(w.killed[event.Faction], leaderID)
	w.MarkTriggered()
}

func (w *LeadersKilled) Reset() {
	w.BaseWatcher.Reset()
	clear(w.killed)
}

// Leaders returns the leader ids a faction lost, in order of death.
func (w *LeadersKilled) Leaders(f state.Faction) []string {
	return slices.Clone(w.killed[f])
}

// Count returns how many leaders a faction lost.
func (w *LeadersKilled) Count(f state.Faction) int {
	return len(w.killed[f])
}

func (w *LeadersKilled) Copy() rules.Watcher {
	c := &LeadersKilled{BaseWatcher: w.CopyBase(), killed: make(map[state.Faction][]string, len(w.killed))}
	for f, ids := range w.killed {
		c.killed[f] = slices.Clone(ids)
	}
	return c
}

// ForcesLost sums forces sent to the tanks in battle.
type ForcesLost struct {
	*rules.BaseWatcher
	lost map[state.Faction]int
}

func NewForcesLost() *ForcesLost {
	return &ForcesLost{
		BaseWatcher: rules.NewBaseWatcher(KeyForcesLost, rules.EventForcesLost),
		lost:        make(map[state.Faction]int),
	}
}

func (w *ForcesLost) Watch(event rules.Event) {
	count := intValue(event.Data[DataCount])
	if !w.Interested(event.Type) || count <= 0 {
		return
	}
	w.lost[event.Faction] += count
	w.MarkTriggered()
}

func (w *ForcesLost) Reset() {
	w.BaseWatcher.Reset()
	clear(w.lost)
}

// Lost returns the forces a faction lost.
func (w *ForcesLost) Lost(f state.Faction) int {
	return w.lost[f]
}

// Total returns the forces lost across every faction.
func (w *ForcesLost) Total() int {
	total := 0
	for _, n := range w.lost {
		total += n
	}
	return total
}

// ByFaction returns a copy of the per-faction totals.
func (w *ForcesLost) ByFaction() map[state.Faction]int {
	return maps.Clone(w.lost)
}

func (w *ForcesLost) Copy() rules.Watcher {
	return &ForcesLost{BaseWatcher: w.CopyBase(), lost: maps.Clone(w.lost)}
}

// TraitorsCalled records revealed traitors by calling faction. Declined
// traitor calls are not this watcher's concern.
type TraitorsCalled struct {
	*rules.BaseWatcher
	called map[state.Faction][]string
}

func NewTraitorsCalled() *TraitorsCalled {
	return &TraitorsCalled{
		BaseWatcher: rules.NewBaseWatcher(KeyTraitorsCalled, rules.EventTraitorCalled),
		called:      make(map[state.Faction][]string),
	}
}

func (w *TraitorsCalled) Watch(event rules.Event) {
	traitorID, _ := event.Data[DataTraitor].(string)
	if !w.Interested(event.Type) || traitorID == "" {
		return
	}
	w.called[event.Faction] = append(w.called[event.Faction], traitorID)
	w.MarkTriggered()
}

func (w *TraitorsCalled) Reset() {
	w.BaseWatcher.Reset()
	clear(w.called)
}

// Traitors returns the traitor leader ids a faction revealed.
func (w *TraitorsCalled) Traitors(f state.Faction) []string {
	return slices.Clone(w.called[f])
}

func (w *TraitorsCalled) Copy() rules.Watcher {
	c := &TraitorsCalled{BaseWatcher: w.CopyBase(), called: make(map[state.Faction][]string, len(w.called))}
	for f, ids := range w.called {
		c.called[f] = slices.Clone(ids)
	}
	return c
}

// NewRegistry returns a registry holding one of each watcher.
func NewRegistry() *rules.WatcherRegistry {
	registry := rules.NewWatcherRegistry()
	registry.AddWatcher(NewLeadersKilled())
	registry.AddWatcher(NewForcesLost())
	registry.AddWatcher(NewTraitorsCalled())
	return registry
}

// intValue accepts in-process ints and JSON-decoded numbers.
func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
