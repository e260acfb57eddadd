package game

import (
	"testing"

	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotChecksumDeterministic(t *testing.T) {
	s := initialState(t, twoBattleScenario)

	first, err := NewSnapshot("session-1", 1, s).ComputeChecksum()
	require.NoError(t, err)
	second, err := NewSnapshot("session-1", 1, s).ComputeChecksum()
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash, "timestamps are excluded from the hash")
	assert.Len(t, first.Hash, 64, "BLAKE2b-256 hex digest")
	assert.Equal(t, snapshotVersion, first.Version)
}

func TestSnapshotChecksumIgnoresMapAndHandOrder(t *testing.T) {
	a := initialState(t, twoWayScenario)
	b := initialState(t, twoWayScenario)

	fs := a.Game.Factions[state.FactionEmperor]
	fs.Hand = []state.Card{state.NewCard("c1", "Shield"), state.NewCard("c2", "Lasgun")}
	a.Game = a.Game.WithFaction(fs)
	fs = b.Game.Factions[state.FactionEmperor]
	fs.Hand = []state.Card{state.NewCard("c2", "Lasgun"), state.NewCard("c1", "Shield")}
	b.Game = b.Game.WithFaction(fs)

	a.Game = a.Game.WithSpiceOnBoard("arrakeen", 4).WithSpiceOnBoard("carthag", 2)
	b.Game = b.Game.WithSpiceOnBoard("carthag", 2).WithSpiceOnBoard("arrakeen", 4)

	ca, err := NewSnapshot("s", 1, a).ComputeChecksum()
	require.NoError(t, err)
	cb, err := NewSnapshot("s", 1, b).ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, ca.Hash, cb.Hash)
}

func TestSnapshotChecksumDetectsChanges(t *testing.T) {
	s := initialState(t, twoWayScenario)
	base, err := NewSnapshot("s", 1, s).ComputeChecksum()
	require.NoError(t, err)

	changes := map[string]func(){
		"spice": func() {
			fs := s.Game.Factions[state.FactionFremen]
			fs.Spice++
			s.Game = s.Game.WithFaction(fs)
		},
		"rng": func() { s.RNG.Draws++ },
		"discard": func() {
			s.Game = s.Game.Discard(state.NewCard("x", "Baliset"))
		},
		"resolved": func() { s.Resolved++ },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			s = initialState(t, twoWayScenario)
			change()
			got, err := NewSnapshot("s", 1, s).ComputeChecksum()
			require.NoError(t, err)
			assert.NotEqual(t, base.Hash, got.Hash)
		})
	}

	other, err := NewSnapshot("s", 2, initialState(t, twoWayScenario)).ComputeChecksum()
	require.NoError(t, err)
	assert.NotEqual(t, base.Hash, other.Hash, "sequence is part of the hash")
}

func TestVerifyChecksum(t *testing.T) {
	snapshot := NewSnapshot("s", 3, initialState(t, twoWayScenario))
	checksum, err := snapshot.ComputeChecksum()
	require.NoError(t, err)

	ok, err := snapshot.VerifyChecksum(checksum)
	require.NoError(t, err)
	assert.True(t, ok)

	snapshot.State.Resolved = 9
	ok, err = snapshot.VerifyChecksum(checksum)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSerializationRoundtrip(t *testing.T) {
	snapshot := NewSnapshot("s", 1, initialState(t, twoBattleScenario))
	require.NotNil(t, snapshot.State.Current, "a battle should be waiting on a decision")
	require.NoError(t, ValidateSerializationRoundtrip(snapshot))

	data, err := snapshot.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, snapshot.SessionID, decoded.SessionID)
	assert.Equal(t, snapshot.Sequence, decoded.Sequence)
	assert.True(t, snapshot.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, snapshot.State.Current.Phase.Name(), decoded.State.Current.Phase.Name())
	assert.Equal(t, snapshot.State.Queue, decoded.State.Queue)
}

func TestDeserializeSnapshotRejectsGarbage(t *testing.T) {
	_, err := DeserializeSnapshot([]byte("not a snapshot"))
	assert.Error(t, err)
}
