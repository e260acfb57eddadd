package game

import (
	"context"
	"errors"
	"sync"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a session.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists the latest snapshot of each battle session.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	LoadSnapshot(ctx context.Context, sessionID string) (*Snapshot, error)
}

// MemorySnapshotStore keeps encoded snapshots in memory. Snapshots are stored
// encoded so later mutations by the caller never leak in.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySnapshotStore creates an empty in-memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{data: make(map[string][]byte)}
}

// SaveSnapshot replaces the session's snapshot.
func (m *MemorySnapshotStore) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	data, err := snapshot.SerializeToBytes()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[snapshot.SessionID] = data
	return nil
}

// LoadSnapshot returns the latest snapshot of the session.
func (m *MemorySnapshotStore) LoadSnapshot(_ context.Context, sessionID string) (*Snapshot, error) {
	m.mu.RLock()
	data, ok := m.data[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return DeserializeSnapshot(data)
}

// Delete removes a session's snapshot.
func (m *MemorySnapshotStore) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
}
