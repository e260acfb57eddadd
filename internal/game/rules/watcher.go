package rules

import (
	"slices"
	"sort"
	"sync"
)

// Watcher tallies something across the events of a battle phase.
type Watcher interface {
	// Key identifies the watcher inside a registry.
	Key() string

	// EventTypes lists the event types the watcher wants. Empty means all.
	EventTypes() []EventType

	// Watch receives one event the watcher is interested in.
	Watch(event Event)

	// Triggered reports whether any watched event has been tallied.
	Triggered() bool

	// Reset clears the tally.
	Reset()

	// Copy returns an independent copy including its tally.
	Copy() Watcher
}

// BaseWatcher carries the key, interest set and trigger flag shared by all watchers.
type BaseWatcher struct {
	key       string
	types     []EventType
	triggered bool
}

// NewBaseWatcher creates a base watcher interested in the given event types.
func NewBaseWatcher(key string, types ...EventType) *BaseWatcher {
	return &BaseWatcher{key: key, types: slices.Clone(types)}
}

// Key returns the registry key.
func (bw *BaseWatcher) Key() string { return bw.key }

// EventTypes returns the interest set.
func (bw *BaseWatcher) EventTypes() []EventType { return slices.Clone(bw.types) }

// Interested reports whether an event type is in the interest set.
func (bw *BaseWatcher) Interested(t EventType) bool {
	return len(bw.types) == 0 || slices.Contains(bw.types, t)
}

// Triggered reports whether MarkTriggered was called since the last reset.
func (bw *BaseWatcher) Triggered() bool { return bw.triggered }

// MarkTriggered records that an event was tallied.
func (bw *BaseWatcher) MarkTriggered() { bw.triggered = true }

// Reset clears the trigger flag.
func (bw *BaseWatcher) Reset() { bw.triggered = false }

// CopyBase returns a copy of the base state for a watcher's Copy.
func (bw *BaseWatcher) CopyBase() *BaseWatcher {
	return &BaseWatcher{key: bw.key, types: slices.Clone(bw.types), triggered: bw.triggered}
}

// WatcherRegistry routes events to the watchers interested in them.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	byType   map[EventType][]string
	wildcard []string
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
		byType:   make(map[EventType][]string),
	}
}

// AddWatcher registers a watcher, replacing any with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	wr.watchers[watcher.Key()] = watcher
	wr.reindex()
}

// RemoveWatcher drops a watcher.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	delete(wr.watchers, key)
	wr.reindex()
}

// reindex rebuilds the type index. Caller holds wr.mu.
func (wr *WatcherRegistry) reindex() {
	wr.byType = make(map[EventType][]string)
	wr.wildcard = wr.wildcard[:0]
	for _, key := range wr.keys() {
		types := wr.watchers[key].EventTypes()
		if len(types) == 0 {
			wr.wildcard = append(wr.wildcard, key)
			continue
		}
		for _, t := range types {
			wr.byType[t] = append(wr.byType[t], key)
		}
	}
}

func (wr *WatcherRegistry) keys() []string {
	keys := make([]string, 0, len(wr.watchers))
	for key := range wr.watchers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetWatcher returns the watcher registered under key, or nil.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// Watchers returns every watcher sorted by key.
func (wr *WatcherRegistry) Watchers() []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	result := make([]Watcher, 0, len(wr.watchers))
	for _, key := range wr.keys() {
		result = append(result, wr.watchers[key])
	}
	return result
}

// Triggered returns the keys of triggered watchers in key order.
func (wr *WatcherRegistry) Triggered() []string {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	var keys []string
	for _, key := range wr.keys() {
		if wr.watchers[key].Triggered() {
			keys = append(keys, key)
		}
	}
	return keys
}

// ResetWatchers clears every tally.
func (wr *WatcherRegistry) ResetWatchers() {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, watcher := range wr.watchers {
		watcher.Reset()
	}
}

// NotifyWatchers delivers an event to interested watchers in key order and
// returns how many received it.
func (wr *WatcherRegistry) NotifyWatchers(event Event) int {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	targets := append(slices.Clone(wr.byType[event.Type]), wr.wildcard...)
	sort.Strings(targets)
	for _, key := range targets {
		wr.watchers[key].Watch(event)
	}
	return len(targets)
}

// Clone returns a registry holding copies of every watcher.
func (wr *WatcherRegistry) Clone() *WatcherRegistry {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	c := NewWatcherRegistry()
	for key, watcher := range wr.watchers {
		c.watchers[key] = watcher.Copy()
	}
	c.reindex()
	return c
}
