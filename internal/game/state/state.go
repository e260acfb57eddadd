// Package state holds the immutable game snapshot shared by every phase.
//
// Values in this package are never mutated in place once they are part of a
// GameState. Every mutator returns a fresh copy so a previous snapshot stays
// valid for replay, persistence and comparison.
package state

import (
	"fmt"
	"slices"
)

// TerritoryID identifies a territory on the board.
type TerritoryID string

// ForceStack is a group of one faction's forces in a single territory sector.
type ForceStack struct {
	Territory TerritoryID `json:"territory" yaml:"territory"`
	Sector    int         `json:"sector" yaml:"sector"`
	Regular   int         `json:"regular" yaml:"regular"`
	Elite     int         `json:"elite,omitempty" yaml:"elite"`
	// Advisors marks a non-combat posture; such stacks never take part in battles.
	Advisors bool `json:"advisors,omitempty" yaml:"advisors"`
}

// Total returns the number of force tokens in the stack.
func (s ForceStack) Total() int { return s.Regular + s.Elite }

// Forces tracks a faction's tokens on and off the board.
type Forces struct {
	OnBoard        []ForceStack `json:"on_board"`
	ReserveRegular int          `json:"reserve_regular"`
	ReserveElite   int          `json:"reserve_elite,omitempty"`
	TanksRegular   int          `json:"tanks_regular"`
	TanksElite     int          `json:"tanks_elite,omitempty"`
}

// FactionState is everything one faction owns.
type FactionState struct {
	Faction  Faction  `json:"faction"`
	Spice    int      `json:"spice"`
	Forces   Forces   `json:"forces"`
	Hand     []Card   `json:"hand"`
	Traitors []string `json:"traitors"`
	Leaders  []Leader `json:"leaders"`
	Ally     Faction  `json:"ally,omitempty"`
	// ForcesLost counts forces sent to the tanks in battle over the whole game.
	ForcesLost          int  `json:"forces_lost"`
	KwisatzHaderachDead bool `json:"kwisatz_haderach_dead,omitempty"`
}

// NewFactionState creates a faction with its catalog leaders and the given spice.
func NewFactionState(f Faction, spice int) FactionState {
	return FactionState{
		Faction:  f,
		Spice:    spice,
		Hand:     []Card{},
		Traitors: []string{},
		Leaders:  DefaultLeaders(f),
	}
}

// Clone returns a deep copy.
func (fs FactionState) Clone() FactionState {
	out := fs
	out.Forces.OnBoard = slices.Clone(fs.Forces.OnBoard)
	out.Hand = slices.Clone(fs.Hand)
	out.Traitors = slices.Clone(fs.Traitors)
	out.Leaders = slices.Clone(fs.Leaders)
	return out
}

// ForcesIn returns the regular and elite forces the faction has in the territory,
// limited to the given sectors when any are provided. Advisors are excluded.
func (fs FactionState) ForcesIn(territory TerritoryID, sectors ...int) (regular, elite int) {
	for _, stack := range fs.Forces.OnBoard {
		if stack.Territory != territory || stack.Advisors {
			continue
		}
		if len(sectors) > 0 && !slices.Contains(sectors, stack.Sector) {
			continue
		}
		regular += stack.Regular
		elite += stack.Elite
	}
	return regular, elite
}

// RemoveForces sends forces from the territory to the tanks, limited to the given
// sectors when any are provided. It returns the updated state and the counts
// actually removed.
func (fs FactionState) RemoveForces(territory TerritoryID, regular, elite int, sectors ...int) (FactionState, int, int) {
	out := fs.Clone()
	removedRegular, removedElite := 0, 0
	stacks := make([]ForceStack, 0, len(out.Forces.OnBoard))
	for _, stack := range out.Forces.OnBoard {
		inBattle := len(sectors) == 0 || slices.Contains(sectors, stack.Sector)
		if stack.Territory == territory && !stack.Advisors && inBattle {
			take := min(regular-removedRegular, stack.Regular)
			stack.Regular -= take
			removedRegular += take
			takeElite := min(elite-removedElite, stack.Elite)
			stack.Elite -= takeElite
			removedElite += takeElite
		}
		if stack.Total() > 0 {
			stacks = append(stacks, stack)
		}
	}
	out.Forces.OnBoard = stacks
	out.Forces.TanksRegular += removedRegular
	out.Forces.TanksElite += removedElite
	out.ForcesLost += removedRegular + removedElite
	return out, removedRegular, removedElite
}

// Card returns the held card with the given id.
func (fs FactionState) Card(id string) (Card, bool) {
	for _, card := range fs.Hand {
		if card.ID == id {
			return card, true
		}
	}
	return Card{}, false
}

// HasCardKind reports whether any held card is of one of the kinds.
func (fs FactionState) HasCardKind(kinds ...CardKind) bool {
	for _, card := range fs.Hand {
		if slices.Contains(kinds, card.Kind) {
			return true
		}
	}
	return false
}

// WithoutCards removes the cards with the given ids from the hand.
func (fs FactionState) WithoutCards(ids ...string) (FactionState, []Card) {
	out := fs.Clone()
	removed := make([]Card, 0, len(ids))
	kept := make([]Card, 0, len(out.Hand))
	for _, card := range out.Hand {
		if slices.Contains(ids, card.ID) {
			removed = append(removed, card)
			continue
		}
		kept = append(kept, card)
	}
	out.Hand = kept
	return out, removed
}

// Leader returns a leader currently in the faction's pool, own or captured.
func (fs FactionState) Leader(id string) (Leader, bool) {
	for _, leader := range fs.Leaders {
		if leader.ID == id {
			return leader, true
		}
	}
	return Leader{}, false
}

// WithLeader replaces the leader record with the same id.
func (fs FactionState) WithLeader(leader Leader) FactionState {
	out := fs.Clone()
	for i := range out.Leaders {
		if out.Leaders[i].ID == leader.ID {
			out.Leaders[i] = leader
			return out
		}
	}
	out.Leaders = append(out.Leaders, leader)
	return out
}

// WithoutLeader removes the leader from the pool.
func (fs FactionState) WithoutLeader(id string) FactionState {
	out := fs.Clone()
	out.Leaders = slices.DeleteFunc(out.Leaders, func(l Leader) bool { return l.ID == id })
	return out
}

// AvailableLeaders returns alive leaders that may fight in the territory this turn.
func (fs FactionState) AvailableLeaders(territory TerritoryID) []Leader {
	var out []Leader
	for _, leader := range fs.Leaders {
		if leader.Status == LeaderDead {
			continue
		}
		if leader.UsedIn != "" && leader.UsedIn != territory {
			continue
		}
		out = append(out, leader)
	}
	return out
}

// HasTraitor reports whether the faction holds a traitor card for the leader.
func (fs FactionState) HasTraitor(leaderID string) bool {
	return slices.Contains(fs.Traitors, leaderID)
}

// KwisatzHaderachActive reports whether the Kwisatz Haderach has awakened.
func (fs FactionState) KwisatzHaderachActive(threshold int) bool {
	return fs.Faction == FactionAtreides && !fs.KwisatzHaderachDead && fs.ForcesLost >= threshold
}

// GameState is an immutable snapshot of the whole game.
type GameState struct {
	Turn             int                      `json:"turn"`
	StormSector      int                      `json:"storm_sector"`
	Factions         map[Faction]FactionState `json:"factions"`
	SpiceOnBoard     map[TerritoryID]int      `json:"spice_on_board"`
	PlayerPositions  map[Faction]int          `json:"player_positions"`
	TreacheryDiscard []Card                   `json:"treachery_discard"`
}

// NewGameState creates an empty game on the given turn.
func NewGameState(turn, storm int) GameState {
	return GameState{
		Turn:             turn,
		StormSector:      storm,
		Factions:         make(map[Faction]FactionState),
		SpiceOnBoard:     make(map[TerritoryID]int),
		PlayerPositions:  make(map[Faction]int),
		TreacheryDiscard: []Card{},
	}
}

// Clone returns a deep copy of the snapshot.
func (g GameState) Clone() GameState {
	out := g
	out.Factions = make(map[Faction]FactionState, len(g.Factions))
	for f, fs := range g.Factions {
		out.Factions[f] = fs.Clone()
	}
	out.SpiceOnBoard = make(map[TerritoryID]int, len(g.SpiceOnBoard))
	for t, v := range g.SpiceOnBoard {
		out.SpiceOnBoard[t] = v
	}
	out.PlayerPositions = make(map[Faction]int, len(g.PlayerPositions))
	for f, pos := range g.PlayerPositions {
		out.PlayerPositions[f] = pos
	}
	out.TreacheryDiscard = slices.Clone(g.TreacheryDiscard)
	return out
}

// Faction returns the state of one faction.
func (g GameState) Faction(f Faction) (FactionState, bool) {
	fs, ok := g.Factions[f]
	return fs, ok
}

// MustFaction returns the faction state or an error naming the missing faction.
func (g GameState) MustFaction(f Faction) (FactionState, error) {
	fs, ok := g.Factions[f]
	if !ok {
		return FactionState{}, fmt.Errorf("faction %s not in game", f)
	}
	return fs, nil
}

// WithFaction returns a new snapshot with the faction state replaced.
func (g GameState) WithFaction(fs FactionState) GameState {
	out := g.Clone()
	out.Factions[fs.Faction] = fs.Clone()
	return out
}

// WithSpiceOnBoard returns a new snapshot with the territory's spice set.
func (g GameState) WithSpiceOnBoard(territory TerritoryID, amount int) GameState {
	out := g.Clone()
	if amount <= 0 {
		delete(out.SpiceOnBoard, territory)
	} else {
		out.SpiceOnBoard[territory] = amount
	}
	return out
}

// Discard returns a new snapshot with the cards appended to the treachery discard pile.
func (g GameState) Discard(cards ...Card) GameState {
	out := g.Clone()
	out.TreacheryDiscard = append(out.TreacheryDiscard, cards...)
	return out
}

// Allies reports whether two distinct factions are allied.
func (g GameState) Allies(a, b Faction) bool {
	if a == b || a == FactionNone || b == FactionNone {
		return false
	}
	fa, ok := g.Factions[a]
	return ok && fa.Ally == b
}

// AllyOf returns the faction's ally, if any.
func (g GameState) AllyOf(f Faction) Faction {
	if fs, ok := g.Factions[f]; ok {
		return fs.Ally
	}
	return FactionNone
}

// FindLeader locates a leader by permanent id in whichever pool currently holds it.
func (g GameState) FindLeader(id string) (Leader, Faction, bool) {
	for f, fs := range g.Factions {
		if leader, ok := fs.Leader(id); ok {
			return leader, f, true
		}
	}
	return Leader{}, FactionNone, false
}
