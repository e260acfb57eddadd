package game

import (
	"testing"

	"github.com/arrakis-sim/dune-server-go/internal/game/battle"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// twoWayScenario is a single Emperor vs Fremen battle in the-great-flat.
const twoWayScenario = `
turn: 2
storm: 17
factions:
  - faction: EMPEROR
    seat: 1
    spice: 10
    forces:
      - {territory: the-great-flat, sector: 14, regular: 10}
  - faction: FREMEN
    seat: 5
    spice: 10
    forces:
      - {territory: the-great-flat, sector: 14, regular: 7}
`

// twoBattleScenario adds an Atreides vs Harkonnen battle in arrakeen.
const twoBattleScenario = twoWayScenario + `
  - faction: ATREIDES
    seat: 9
    spice: 5
    forces:
      - {territory: arrakeen, sector: 9, regular: 4}
  - faction: HARKONNEN
    seat: 12
    spice: 5
    forces:
      - {territory: arrakeen, sector: 9, regular: 3}
`

func loadScenario(t *testing.T, doc string) state.GameState {
	t.Helper()
	g, err := state.LoadScenario([]byte(doc), state.DefaultBoard())
	require.NoError(t, err)
	return g
}

func newTestHandler(t *testing.T) *battle.Handler {
	t.Helper()
	opts := battle.DefaultOptions()
	opts.Seed = 7
	return battle.NewHandler(opts, zaptest.NewLogger(t))
}

// initialState runs Initialize and returns the resulting battle state.
func initialState(t *testing.T, doc string) battle.State {
	t.Helper()
	res, err := newTestHandler(t).Initialize(loadScenario(t, doc))
	require.NoError(t, err)
	return res.State
}

func planFor(f state.Faction, leaderName string, forces int) rules.Response {
	return rules.Response{
		FactionID:  f,
		ActionType: rules.ActionSubmitBattlePlan,
		Data: map[string]any{
			"leader_id": state.LeaderID(f, leaderName),
			"forces":    forces,
		},
	}
}
