package game

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arrakis-sim/dune-server-go/internal/game/battle"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"golang.org/x/crypto/blake2b"
)

// snapshotVersion is bumped whenever the deterministic representation changes.
const snapshotVersion = 2

// Snapshot is one persisted point of a battle session.
type Snapshot struct {
	SessionID string
	Sequence  int
	Timestamp time.Time
	State     battle.State
}

// NewSnapshot captures a battle state for a session.
func NewSnapshot(sessionID string, sequence int, s battle.State) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     s,
	}
}

// SerializationChecksum guards against divergent battle states across
// replays, restarts and network transmission.
type SerializationChecksum struct {
	Hash      string // BLAKE2b-256 of the deterministic representation
	Timestamp string
	Version   int
}

// ComputeChecksum hashes the snapshot's deterministic representation. The
// timestamp and event ids are excluded.
func (s *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create hash: %w", err)
	}
	if _, err := hash.Write([]byte(s.deterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		Version:   snapshotVersion,
	}, nil
}

// deterministicRepresentation renders the state with every map sorted.
func (s *Snapshot) deterministicRepresentation() string {
	var buf bytes.Buffer
	g := s.State.Game

	fmt.Fprintf(&buf, "SESSION:%s|%d\n", s.SessionID, s.Sequence)
	fmt.Fprintf(&buf, "GAME:%d|%d\n", g.Turn, g.StormSector)

	factions := make([]string, 0, len(g.Factions))
	for f := range g.Factions {
		factions = append(factions, string(f))
	}
	sort.Strings(factions)

	for _, name := range factions {
		fs := g.Factions[state.Faction(name)]
		fmt.Fprintf(&buf, "FACTION:%s|%d|%s|%d|%t|%d|%d|%d|%d\n",
			name, fs.Spice, fs.Ally, fs.ForcesLost, fs.KwisatzHaderachDead,
			fs.Forces.ReserveRegular, fs.Forces.ReserveElite,
			fs.Forces.TanksRegular, fs.Forces.TanksElite)

		stacks := make([]string, 0, len(fs.Forces.OnBoard))
		for _, st := range fs.Forces.OnBoard {
			stacks = append(stacks, fmt.Sprintf("%s/%d:%d+%d:%t",
				st.Territory, st.Sector, st.Regular, st.Elite, st.Advisors))
		}
		sort.Strings(stacks)
		buf.WriteString("  FORCES:" + strings.Join(stacks, ",") + "\n")

		// Hand order is not meaningful.
		hand := make([]string, 0, len(fs.Hand))
		for _, c := range fs.Hand {
			hand = append(hand, c.ID)
		}
		sort.Strings(hand)
		buf.WriteString("  HAND:" + strings.Join(hand, ",") + "\n")

		traitors := append([]string(nil), fs.Traitors...)
		sort.Strings(traitors)
		buf.WriteString("  TRAITORS:" + strings.Join(traitors, ",") + "\n")

		leaders := make([]string, 0, len(fs.Leaders))
		for _, l := range fs.Leaders {
			leaders = append(leaders, fmt.Sprintf("%s|%s|%d|%s|%t|%s|%s",
				l.ID, l.Faction, l.Strength, l.Status, l.FaceDown, l.CapturedBy, l.UsedIn))
		}
		sort.Strings(leaders)
		for _, l := range leaders {
			buf.WriteString("  LEADER:" + l + "\n")
		}
	}

	spice := make([]string, 0, len(g.SpiceOnBoard))
	for t, amount := range g.SpiceOnBoard {
		spice = append(spice, fmt.Sprintf("%s=%d", t, amount))
	}
	sort.Strings(spice)
	buf.WriteString("SPICE:" + strings.Join(spice, ",") + "\n")

	positions := make([]string, 0, len(g.PlayerPositions))
	for f, seat := range g.PlayerPositions {
		positions = append(positions, fmt.Sprintf("%s=%d", f, seat))
	}
	sort.Strings(positions)
	buf.WriteString("POSITIONS:" + strings.Join(positions, ",") + "\n")

	// Discard pile and queue are ordered, so don't sort
	discard := make([]string, 0, len(g.TreacheryDiscard))
	for _, c := range g.TreacheryDiscard {
		discard = append(discard, c.ID)
	}
	buf.WriteString("DISCARD:" + strings.Join(discard, ",") + "\n")

	buf.WriteString("QUEUE:\n")
	for i, pb := range s.State.Queue {
		fmt.Fprintf(&buf, "  %d:%s\n", i, pb.Key())
	}

	if ctx := s.State.Current; ctx != nil {
		phase := ""
		if ctx.Phase != nil {
			phase = string(ctx.Phase.Name())
		}
		fmt.Fprintf(&buf, "CURRENT:%s|%s|%s|%s|%v|%t|%t|%d\n",
			ctx.Battle.Key(), ctx.Aggressor, ctx.Defender, phase, ctx.AggressorOrder,
			ctx.AggressorPlan != nil, ctx.DefenderPlan != nil, len(ctx.Traitors))
	}

	fmt.Fprintf(&buf, "RNG:%d|%d\n", s.State.RNG.Seed, s.State.RNG.Draws)
	fmt.Fprintf(&buf, "RESOLVED:%d\n", s.State.Resolved)
	return buf.String()
}

// VerifyChecksum reports whether the snapshot still hashes to expected.
func (s *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes gob-encodes the snapshot. This is the format used by replay
// files and the snapshot store.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes bytes produced by SerializeToBytes.
func DeserializeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// ValidateSerializationRoundtrip checks that encoding and decoding the
// snapshot preserves its checksum.
func ValidateSerializationRoundtrip(s *Snapshot) error {
	original, err := s.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := s.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeSnapshot(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundTrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundTrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundTrip.Hash)
	}
	return nil
}
