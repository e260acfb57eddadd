package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	replayFormat  = "dune-battle-replay"
	replayVersion = 2
	replayExt     = ".replay"
)

var (
	// ErrNoReplay is returned when a session has no active recording.
	ErrNoReplay = errors.New("no replay recording for session")
	// ErrReplayCorrupt is returned when a replay file fails its integrity checks.
	ErrReplayCorrupt = errors.New("replay file is corrupt")
)

// Replay is the ordered list of snapshots a battle session went through.
type Replay struct {
	SessionID string

	mu        sync.RWMutex
	snapshots []*Snapshot
}

func NewReplay(sessionID string) *Replay {
	return &Replay{SessionID: sessionID}
}

// Append adds a snapshot. Snapshots whose sequence does not advance past the
// last one are dropped and Append reports false.
func (r *Replay) Append(s *Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.snapshots); n > 0 && s.Sequence <= r.snapshots[n-1].Sequence {
		return false
	}
	r.snapshots = append(r.snapshots, s)
	return true
}

func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots)
}

// At returns the snapshot at index i, or nil when out of range.
func (r *Replay) At(i int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.snapshots) {
		return nil
	}
	return r.snapshots[i]
}

func (r *Replay) Last() *Snapshot {
	return r.At(r.Len() - 1)
}

// Verify checks that every snapshot survives a gob round trip unchanged.
func (r *Replay) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, s := range r.snapshots {
		if err := ValidateSerializationRoundtrip(s); err != nil {
			return fmt.Errorf("snapshot %d: %w", i, err)
		}
	}
	return nil
}

// Cursor returns a cursor over the snapshots recorded so far.
func (r *Replay) Cursor() *ReplayCursor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &ReplayCursor{snapshots: append([]*Snapshot(nil), r.snapshots...)}
}

// ReplayCursor steps through a fixed list of snapshots. Pos is the index Next
// will return.
type ReplayCursor struct {
	snapshots []*Snapshot
	pos       int
}

func (c *ReplayCursor) Pos() int { return c.pos }

func (c *ReplayCursor) Rewind() { c.pos = 0 }

// Next returns the snapshot at the cursor and advances, or nil at the end.
func (c *ReplayCursor) Next() *Snapshot {
	if c.pos >= len(c.snapshots) {
		return nil
	}
	c.pos++
	return c.snapshots[c.pos-1]
}

// Prev steps back and returns that snapshot, or nil at the start.
func (c *ReplayCursor) Prev() *Snapshot {
	if c.pos == 0 {
		return nil
	}
	c.pos--
	return c.snapshots[c.pos]
}

// Skip moves the cursor by n, clamped to the recorded range, and returns the
// snapshot it lands on.
func (c *ReplayCursor) Skip(n int) *Snapshot {
	if len(c.snapshots) == 0 {
		return nil
	}
	c.pos = max(0, min(c.pos+n, len(c.snapshots)-1))
	return c.snapshots[c.pos]
}

// replayHeader leads every replay stream. Hashes holds one snapshot checksum
// per recorded snapshot, in order.
type replayHeader struct {
	Format    string
	Version   int
	SessionID string
	SavedAt   time.Time
	Hashes    []string
}

// WriteReplay encodes a replay as a gzipped gob stream: header then snapshots.
func WriteReplay(w io.Writer, r *Replay) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	header := replayHeader{
		Format:    replayFormat,
		Version:   replayVersion,
		SessionID: r.SessionID,
		SavedAt:   time.Now().UTC(),
		Hashes:    make([]string, len(r.snapshots)),
	}
	for i, s := range r.snapshots {
		sum, err := s.ComputeChecksum()
		if err != nil {
			return fmt.Errorf("checksum snapshot %d: %w", i, err)
		}
		header.Hashes[i] = sum.Hash
	}

	zw := gzip.NewWriter(w)
	enc := gob.NewEncoder(zw)
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("encode replay header: %w", err)
	}
	for i, s := range r.snapshots {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode snapshot %d: %w", i, err)
		}
	}
	return zw.Close()
}

// ReadReplay decodes a stream written by WriteReplay and checks every
// snapshot against the recorded checksums.
func ReadReplay(rd io.Reader) (*Replay, error) {
	zr, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplayCorrupt, err)
	}
	defer zr.Close()
	dec := gob.NewDecoder(zr)

	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrReplayCorrupt, err)
	}
	if header.Format != replayFormat {
		return nil, fmt.Errorf("%w: unexpected format %q", ErrReplayCorrupt, header.Format)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version %d", header.Version)
	}

	replay := NewReplay(header.SessionID)
	for i, want := range header.Hashes {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("%w: snapshot %d: %v", ErrReplayCorrupt, i, err)
		}
		sum, err := s.ComputeChecksum()
		if err != nil {
			return nil, err
		}
		if sum.Hash != want {
			return nil, fmt.Errorf("%w: snapshot %d checksum mismatch", ErrReplayCorrupt, i)
		}
		replay.snapshots = append(replay.snapshots, &s)
	}
	return replay, nil
}

func replayPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+replayExt)
}

// SaveReplayFile writes the replay into dir and returns the file path. The
// file is written under a temporary name and renamed into place.
func SaveReplayFile(dir string, r *Replay) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create replay dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+r.SessionID+"-*")
	if err != nil {
		return "", fmt.Errorf("create replay file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteReplay(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close replay file: %w", err)
	}
	path := replayPath(dir, r.SessionID)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install replay file: %w", err)
	}
	return path, nil
}

// LoadReplayFromFile reads the replay of a session from dir.
func LoadReplayFromFile(dir, sessionID string) (*Replay, error) {
	f, err := os.Open(replayPath(dir, sessionID))
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	return ReadReplay(f)
}

// ReplayRecorder records replays of running sessions and writes each one to
// disk when its session finishes.
type ReplayRecorder struct {
	logger *zap.Logger
	dir    string

	mu     sync.Mutex
	active map[string]*Replay
}

func NewReplayRecorder(logger *zap.Logger, dir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger: logger,
		dir:    dir,
		active: make(map[string]*Replay),
	}
}

// Begin starts a fresh recording, discarding any earlier one for the session.
func (rr *ReplayRecorder) Begin(sessionID string) {
	rr.mu.Lock()
	rr.active[sessionID] = NewReplay(sessionID)
	rr.mu.Unlock()
	rr.logger.Debug("replay recording started", zap.String("session_id", sessionID))
}

// Record appends a snapshot to its session's recording, if there is one.
func (rr *ReplayRecorder) Record(s *Snapshot) {
	rr.mu.Lock()
	replay := rr.active[s.SessionID]
	rr.mu.Unlock()
	if replay == nil {
		return
	}
	if !replay.Append(s) {
		rr.logger.Warn("stale snapshot not recorded",
			zap.String("session_id", s.SessionID),
			zap.Int("sequence", s.Sequence),
		)
	}
}

// Active reports whether a session is being recorded.
func (rr *ReplayRecorder) Active(sessionID string) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	_, ok := rr.active[sessionID]
	return ok
}

// Replay returns the in-progress recording of a session.
func (rr *ReplayRecorder) Replay(sessionID string) (*Replay, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	replay, ok := rr.active[sessionID]
	return replay, ok
}

// Discard drops a recording without writing it.
func (rr *ReplayRecorder) Discard(sessionID string) {
	rr.mu.Lock()
	delete(rr.active, sessionID)
	rr.mu.Unlock()
}

// Flush ends a recording and writes it to disk. It returns ErrNoReplay when
// the session was not being recorded.
func (rr *ReplayRecorder) Flush(sessionID string) (string, error) {
	rr.mu.Lock()
	replay, ok := rr.active[sessionID]
	delete(rr.active, sessionID)
	rr.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("flush %s: %w", sessionID, ErrNoReplay)
	}

	path, err := SaveReplayFile(rr.dir, replay)
	if err != nil {
		return "", fmt.Errorf("flush %s: %w", sessionID, err)
	}
	rr.logger.Info("replay written",
		zap.String("session_id", sessionID),
		zap.Int("snapshots", replay.Len()),
		zap.String("path", path),
	)
	return path, nil
}

// Load reads a written replay from the recorder's directory.
func (rr *ReplayRecorder) Load(sessionID string) (*Replay, error) {
	return LoadReplayFromFile(rr.dir, sessionID)
}
