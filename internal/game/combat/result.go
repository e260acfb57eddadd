package combat

import "github.com/arrakis-sim/dune-server-go/internal/game/state"

// Outcome names the resolution path taken.
type Outcome string

const (
	OutcomeNormal          Outcome = "NORMAL"
	OutcomeTraitor         Outcome = "TRAITOR"
	OutcomeTwoTraitors     Outcome = "TWO_TRAITORS"
	OutcomeLasgunExplosion Outcome = "LASGUN_EXPLOSION"
)

// SideResult is the consequence of a battle for one side.
type SideResult struct {
	Faction      state.Faction `json:"faction"`
	Total        float64       `json:"total"`
	LeaderID     string        `json:"leader_id,omitempty"`
	LeaderKilled bool          `json:"leader_killed"`
	RegularLost  int           `json:"regular_lost"`
	EliteLost    int           `json:"elite_lost"`
	// SpicePaid goes to the bank; SpiceReceived comes from it.
	SpicePaid             int          `json:"spice_paid"`
	SpiceReceived         int          `json:"spice_received"`
	Discard               []state.Card `json:"discard,omitempty"`
	Keep                  []state.Card `json:"keep,omitempty"`
	KwisatzHaderachKilled bool         `json:"kwisatz_haderach_killed,omitempty"`
}

// ForcesLost returns the total tokens lost.
func (r SideResult) ForcesLost() int { return r.RegularLost + r.EliteLost }

// Result is the complete outcome of one conflict.
type Result struct {
	Outcome   Outcome           `json:"outcome"`
	Territory state.TerritoryID `json:"territory"`
	Sector    int               `json:"sector"`
	Winner    state.Faction     `json:"winner,omitempty"`
	Loser     state.Faction     `json:"loser,omitempty"`
	Aggressor SideResult        `json:"aggressor"`
	Defender  SideResult        `json:"defender"`
	// TraitorLeaderID is set for a single-traitor outcome.
	TraitorLeaderID string `json:"traitor_leader_id,omitempty"`
}

// HasWinner reports whether the battle produced a winner.
func (r Result) HasWinner() bool { return r.Winner != state.FactionNone }

// Side returns the result for the given faction.
func (r Result) Side(f state.Faction) (SideResult, bool) {
	switch f {
	case r.Aggressor.Faction:
		return r.Aggressor, true
	case r.Defender.Faction:
		return r.Defender, true
	}
	return SideResult{}, false
}

// WinnerSide returns the winner's result.
func (r Result) WinnerSide() (SideResult, bool) {
	if !r.HasWinner() {
		return SideResult{}, false
	}
	return r.Side(r.Winner)
}

// LoserSide returns the loser's result.
func (r Result) LoserSide() (SideResult, bool) {
	if !r.HasWinner() {
		return SideResult{}, false
	}
	return r.Side(r.Loser)
}

// KilledLeaders lists the leader ids killed on both sides.
func (r Result) KilledLeaders() []string {
	var ids []string
	for _, s := range []SideResult{r.Aggressor, r.Defender} {
		if s.LeaderKilled && s.LeaderID != "" {
			ids = append(ids, s.LeaderID)
		}
	}
	return ids
}
