package rules

import (
	"slices"
	"testing"
)

// countingWatcher counts the events it receives.
type countingWatcher struct {
	*BaseWatcher
	seen int
}

func newCountingWatcher(key string, types ...EventType) *countingWatcher {
	return &countingWatcher{BaseWatcher: NewBaseWatcher(key, types...)}
}

func (c *countingWatcher) Watch(Event) {
	c.seen++
	c.MarkTriggered()
}

func (c *countingWatcher) Reset() {
	c.BaseWatcher.Reset()
	c.seen = 0
}

func (c *countingWatcher) Copy() Watcher {
	return &countingWatcher{BaseWatcher: c.CopyBase(), seen: c.seen}
}

func TestRegistryRoutesByEventType(t *testing.T) {
	registry := NewWatcherRegistry()
	traitors := newCountingWatcher("traitors", EventTraitorCalled)
	deaths := newCountingWatcher("deaths", EventLeaderKilled, EventCapturedLeaderKilled)
	all := newCountingWatcher("all")
	registry.AddWatcher(traitors)
	registry.AddWatcher(deaths)
	registry.AddWatcher(all)

	if n := registry.NotifyWatchers(NewEvent(EventTraitorCalled, "HARKONNEN", "traitor")); n != 2 {
		t.Fatalf("traitor call reached %d watchers, want 2", n)
	}
	registry.NotifyWatchers(NewEvent(EventCapturedLeaderKilled, "HARKONNEN", "killed"))
	registry.NotifyWatchers(NewEvent(EventSpicePaid, "HARKONNEN", "paid"))

	if traitors.seen != 1 || deaths.seen != 1 || all.seen != 3 {
		t.Fatalf("seen traitors=%d deaths=%d all=%d, want 1 1 3", traitors.seen, deaths.seen, all.seen)
	}
	if got := registry.Triggered(); !slices.Equal(got, []string{"all", "deaths", "traitors"}) {
		t.Fatalf("triggered %v", got)
	}

	registry.ResetWatchers()
	if got := registry.Triggered(); len(got) != 0 {
		t.Fatalf("triggered after reset %v", got)
	}
	if all.seen != 0 {
		t.Fatalf("reset left %d events on the wildcard watcher", all.seen)
	}
}

func TestRegistryReplaceAndRemove(t *testing.T) {
	registry := NewWatcherRegistry()
	first := newCountingWatcher("w", EventForcesLost)
	second := newCountingWatcher("w", EventSpicePaid)
	registry.AddWatcher(first)
	registry.AddWatcher(second)
	registry.AddWatcher(nil)

	if got := registry.Watchers(); len(got) != 1 || got[0] != Watcher(second) {
		t.Fatalf("expected only the replacement watcher, got %v", got)
	}
	if n := registry.NotifyWatchers(NewEvent(EventForcesLost, "FREMEN", "lost")); n != 0 {
		t.Fatalf("replaced watcher still indexed, %d notified", n)
	}

	registry.RemoveWatcher("w")
	if registry.GetWatcher("w") != nil {
		t.Fatal("watcher should be removed")
	}
	if n := registry.NotifyWatchers(NewEvent(EventSpicePaid, "FREMEN", "paid")); n != 0 {
		t.Fatalf("removed watcher notified, %d", n)
	}
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	registry := NewWatcherRegistry()
	registry.AddWatcher(newCountingWatcher("forces", EventForcesLost))
	registry.NotifyWatchers(NewEvent(EventForcesLost, "ATREIDES", "lost"))

	clone := registry.Clone()
	clone.NotifyWatchers(NewEvent(EventForcesLost, "ATREIDES", "lost"))

	orig := registry.GetWatcher("forces").(*countingWatcher)
	copied := clone.GetWatcher("forces").(*countingWatcher)
	if orig.seen != 1 || copied.seen != 2 {
		t.Fatalf("orig=%d clone=%d, want 1 and 2", orig.seen, copied.seen)
	}
	if !copied.Triggered() {
		t.Fatal("clone lost the trigger flag")
	}
}

func TestBaseWatcherInterest(t *testing.T) {
	bw := NewBaseWatcher("k", EventLeaderKilled)
	if bw.Key() != "k" {
		t.Fatalf("key %q", bw.Key())
	}
	if !bw.Interested(EventLeaderKilled) || bw.Interested(EventForcesLost) {
		t.Fatal("interest set not honoured")
	}
	types := bw.EventTypes()
	types[0] = EventForcesLost
	if bw.Interested(EventForcesLost) {
		t.Fatal("EventTypes must return a copy")
	}
	if !NewBaseWatcher("any").Interested(EventForcesLost) {
		t.Fatal("empty interest set should match every type")
	}

	bw.MarkTriggered()
	c := bw.CopyBase()
	bw.Reset()
	if bw.Triggered() || !c.Triggered() {
		t.Fatal("copy should keep its own trigger flag")
	}
}

func TestRegistryFedByEventBus(t *testing.T) {
	registry := NewWatcherRegistry()
	bus := NewEventBus()
	bus.Subscribe(func(event Event) { registry.NotifyWatchers(event) })

	w := newCountingWatcher("traitors", EventTraitorCalled)
	registry.AddWatcher(w)

	bus.Publish(NewEvent(EventLeaderKilled, "ATREIDES", "leader killed"))
	if w.Triggered() {
		t.Fatal("unrelated event should not trigger the watcher")
	}
	bus.Publish(NewEvent(EventTraitorCalled, "ATREIDES", "traitor"))
	if !w.Triggered() {
		t.Fatal("traitor call should trigger the watcher")
	}
}
