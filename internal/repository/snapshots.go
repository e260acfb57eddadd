package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS battle_snapshots (
	session_id  TEXT PRIMARY KEY,
	sequence    INTEGER NOT NULL,
	checksum    TEXT NOT NULL,
	payload     BYTEA NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`

const upsertSnapshot = `
INSERT INTO battle_snapshots (session_id, sequence, checksum, payload, recorded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO UPDATE
SET sequence = EXCLUDED.sequence,
	checksum = EXCLUDED.checksum,
	payload = EXCLUDED.payload,
	recorded_at = EXCLUDED.recorded_at
WHERE battle_snapshots.sequence < EXCLUDED.sequence`

const selectSnapshot = `SELECT checksum, payload FROM battle_snapshots WHERE session_id = $1`

// ErrChecksumMismatch is returned when a stored payload no longer hashes to its checksum.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// SnapshotRepository stores the latest snapshot of each session.
type SnapshotRepository struct {
	db *DB
}

var _ game.SnapshotStore = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a repository on the pool.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// EnsureSchema creates the snapshot table when missing.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the session's snapshot. Older sequences never replace newer ones.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *game.Snapshot) error {
	checksum, err := snapshot.ComputeChecksum()
	if err != nil {
		return err
	}
	payload, err := snapshot.SerializeToBytes()
	if err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, upsertSnapshot,
		snapshot.SessionID, snapshot.Sequence, checksum.Hash, payload, snapshot.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s/%d: %w", snapshot.SessionID, snapshot.Sequence, err)
	}
	if tag.RowsAffected() == 0 {
		r.db.logger.Debug("stale snapshot ignored",
			zap.String("session_id", snapshot.SessionID),
			zap.Int("sequence", snapshot.Sequence),
		)
	}
	return nil
}

// LoadSnapshot returns the session's latest snapshot after checking its checksum.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, sessionID string) (*game.Snapshot, error) {
	var (
		checksum string
		payload  []byte
	)
	err := r.db.Pool.QueryRow(ctx, selectSnapshot, sessionID).Scan(&checksum, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", sessionID, err)
	}

	snapshot, err := game.DeserializeSnapshot(payload)
	if err != nil {
		return nil, err
	}
	ok, err := snapshot.VerifyChecksum(&game.SerializationChecksum{Hash: checksum})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrChecksumMismatch)
	}
	return snapshot, nil
}

// DeleteSnapshot removes a finished session's snapshot.
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context, sessionID string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM battle_snapshots WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", sessionID, err)
	}
	return nil
}
