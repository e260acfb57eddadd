package state

import "strings"

// LeaderStatus tracks where a leader currently is.
type LeaderStatus string

const (
	LeaderAvailable LeaderStatus = "AVAILABLE"
	LeaderDead      LeaderStatus = "DEAD"
	LeaderCaptured  LeaderStatus = "CAPTURED"
)

// Leader is a named leader disc. Faction is the permanent owner and ID is the
// permanent identity printed on traitor cards; both survive capture.
type Leader struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Faction    Faction      `json:"faction"`
	Strength   int          `json:"strength"`
	Status     LeaderStatus `json:"status"`
	FaceDown   bool         `json:"face_down,omitempty"`
	CapturedBy Faction      `json:"captured_by,omitempty"`
	UsedIn     TerritoryID  `json:"used_in,omitempty"`
}

// Alive reports whether the leader is out of the tanks.
func (l Leader) Alive() bool { return l.Status != LeaderDead }

type leaderSeed struct {
	name     string
	strength int
}

var leaderCatalog = map[Faction][]leaderSeed{
	FactionAtreides: {
		{"Thufir Hawat", 5}, {"Lady Jessica", 5}, {"Gurney Halleck", 4},
		{"Duncan Idaho", 2}, {"Dr. Wellington Yueh", 1},
	},
	FactionBeneGesserit: {
		{"Alia", 5}, {"Margot Lady Fenring", 5}, {"Mother Ramallo", 5},
		{"Princess Irulan", 5}, {"Wanna Yueh", 5},
	},
	FactionEmperor: {
		{"Hasimir Fenring", 6}, {"Captain Aramsham", 5}, {"Caid", 3},
		{"Burseg", 3}, {"Bashar", 2},
	},
	FactionFremen: {
		{"Stilgar", 7}, {"Chani", 6}, {"Otheym", 5},
		{"Shadout Mapes", 3}, {"Jamis", 2},
	},
	FactionHarkonnen: {
		{"Feyd-Rautha", 6}, {"Beast Rabban", 4}, {"Piter de Vries", 3},
		{"Captain Iakin Nefud", 2}, {"Umman Kudu", 1},
	},
	FactionSpacingGuild: {
		{"Staban Tuek", 5}, {"Master Bewt", 3}, {"Esmar Tuek", 3},
		{"Soo-Soo Sook", 2}, {"Guild Rep.", 1},
	},
}

// LeaderID derives the permanent identifier for a catalog leader.
func LeaderID(f Faction, name string) string {
	slug := strings.ToLower(name)
	slug = strings.NewReplacer(" ", "-", ".", "", "'", "").Replace(slug)
	return strings.ToLower(string(f)) + ":" + slug
}

// DefaultLeaders returns the starting leader pool for a faction.
func DefaultLeaders(f Faction) []Leader {
	seeds := leaderCatalog[f]
	leaders := make([]Leader, 0, len(seeds))
	for _, seed := range seeds {
		leaders = append(leaders, Leader{
			ID:       LeaderID(f, seed.name),
			Name:     seed.name,
			Faction:  f,
			Strength: seed.strength,
			Status:   LeaderAvailable,
		})
	}
	return leaders
}
