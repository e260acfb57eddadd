package state

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Sectors is the number of storm sectors around the board.
const Sectors = 18

// ErrUnknownTerritory indicates a territory reference that does not exist on the board.
var ErrUnknownTerritory = errors.New("unknown territory")

//go:embed board.yaml
var defaultBoardYAML []byte

// Territory describes a board region.
type Territory struct {
	ID         TerritoryID `yaml:"id" json:"id"`
	Name       string      `yaml:"name" json:"name"`
	Sectors    []int       `yaml:"sectors" json:"sectors"`
	Stronghold bool        `yaml:"stronghold" json:"stronghold"`
	// Protected territories are never affected by the storm.
	Protected bool `yaml:"protected" json:"protected"`
}

// InStorm reports whether the sector of this territory is currently under the storm.
func (t Territory) InStorm(sector, storm int) bool {
	if t.Protected || len(t.Sectors) == 0 {
		return false
	}
	return sector == storm
}

// Board is the static territory table.
type Board struct {
	order       []TerritoryID
	territories map[TerritoryID]Territory
}

type boardFile struct {
	Territories []Territory `yaml:"territories"`
}

// ParseBoard decodes a board definition.
func ParseBoard(data []byte) (*Board, error) {
	var file boardFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	board := &Board{territories: make(map[TerritoryID]Territory, len(file.Territories))}
	for _, t := range file.Territories {
		if t.ID == "" {
			return nil, fmt.Errorf("territory %q has no id", t.Name)
		}
		if _, dup := board.territories[t.ID]; dup {
			return nil, fmt.Errorf("duplicate territory %s", t.ID)
		}
		for _, sector := range t.Sectors {
			if sector < 0 || sector >= Sectors {
				return nil, fmt.Errorf("territory %s: sector %d out of range", t.ID, sector)
			}
		}
		board.territories[t.ID] = t
		board.order = append(board.order, t.ID)
	}
	return board, nil
}

// DefaultBoard returns the embedded board definition.
func DefaultBoard() *Board {
	board, err := ParseBoard(defaultBoardYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded board is invalid: %v", err))
	}
	return board
}

// Territory looks up a territory by id.
func (b *Board) Territory(id TerritoryID) (Territory, error) {
	t, ok := b.territories[id]
	if !ok {
		return Territory{}, fmt.Errorf("%w: %s", ErrUnknownTerritory, id)
	}
	return t, nil
}

// Territories returns all territories in definition order.
func (b *Board) Territories() []Territory {
	out := make([]Territory, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.territories[id])
	}
	return out
}

// ValidLocation reports whether the sector belongs to the territory.
func (b *Board) ValidLocation(id TerritoryID, sector int) error {
	t, err := b.Territory(id)
	if err != nil {
		return err
	}
	if len(t.Sectors) == 0 {
		return nil
	}
	if !slices.Contains(t.Sectors, sector) {
		return fmt.Errorf("%w: %s has no sector %d", ErrUnknownTerritory, id, sector)
	}
	return nil
}
