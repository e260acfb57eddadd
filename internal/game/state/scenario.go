package state

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type scenarioFile struct {
	Turn         int               `yaml:"turn"`
	Storm        int               `yaml:"storm"`
	Factions     []scenarioFaction `yaml:"factions"`
	SpiceOnBoard map[string]int    `yaml:"spice_on_board"`
}

type scenarioFaction struct {
	Faction    string          `yaml:"faction"`
	Seat       int             `yaml:"seat"`
	Spice      int             `yaml:"spice"`
	Ally       string          `yaml:"ally"`
	ForcesLost int             `yaml:"forces_lost"`
	Reserve    scenarioReserve `yaml:"reserve"`
	Forces     []ForceStack    `yaml:"forces"`
	Hand       []scenarioCard  `yaml:"hand"`
	Traitors   []string        `yaml:"traitors"`
}

type scenarioReserve struct {
	Regular int `yaml:"regular"`
	Elite   int `yaml:"elite"`
}

type scenarioCard struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoadScenario builds a game state from a YAML scenario. Locations are checked
// against the board when one is given.
func LoadScenario(data []byte, board *Board) (GameState, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return GameState{}, fmt.Errorf("decode scenario: %w", err)
	}
	if file.Storm < 0 || file.Storm >= Sectors {
		return GameState{}, fmt.Errorf("scenario storm sector %d out of range", file.Storm)
	}
	turn := file.Turn
	if turn == 0 {
		turn = 1
	}

	g := NewGameState(turn, file.Storm)
	for _, sf := range file.Factions {
		f, err := ParseFaction(sf.Faction)
		if err != nil {
			return GameState{}, fmt.Errorf("scenario: %w", err)
		}
		if _, dup := g.Factions[f]; dup {
			return GameState{}, fmt.Errorf("scenario: faction %s listed twice", f)
		}
		fs := NewFactionState(f, sf.Spice)
		fs.ForcesLost = sf.ForcesLost
		fs.Forces.ReserveRegular = sf.Reserve.Regular
		fs.Forces.ReserveElite = sf.Reserve.Elite
		for _, stack := range sf.Forces {
			if board != nil {
				if err := board.ValidLocation(stack.Territory, stack.Sector); err != nil {
					return GameState{}, fmt.Errorf("scenario: %s forces: %w", f, err)
				}
			}
			fs.Forces.OnBoard = append(fs.Forces.OnBoard, stack)
		}
		for _, c := range sf.Hand {
			fs.Hand = append(fs.Hand, NewCard(c.ID, c.Name))
		}
		fs.Traitors = append(fs.Traitors, sf.Traitors...)
		if sf.Ally != "" {
			ally, err := ParseFaction(sf.Ally)
			if err != nil {
				return GameState{}, fmt.Errorf("scenario: %s ally: %w", f, err)
			}
			fs.Ally = ally
		}
		g = g.WithFaction(fs)
		g.PlayerPositions[f] = sf.Seat
	}
	for f, fs := range g.Factions {
		if fs.Ally == FactionNone {
			continue
		}
		other, ok := g.Factions[fs.Ally]
		if !ok || other.Ally != f {
			return GameState{}, fmt.Errorf("scenario: alliance %s/%s is not mutual", f, fs.Ally)
		}
	}
	for t, amount := range file.SpiceOnBoard {
		g = g.WithSpiceOnBoard(TerritoryID(t), amount)
	}
	return g, nil
}
