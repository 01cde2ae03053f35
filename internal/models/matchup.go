package models

// Matchup describes the opposing pitcher a team's hitters face today.
// A team with no scheduled game has no Matchup and its players are
// excluded from ranking.
type Matchup struct {
	Team              string  `json:"team"`
	OpponentTeam      string  `json:"opponent_team"`
	OpposingPitcher   string  `json:"opposing_pitcher"`
	OpposingPitcherID int     `json:"opposing_pitcher_id,omitempty"`
	PitcherHand       string  `json:"pitcher_hand,omitempty"` // "L", "R", or "" when unknown
	PitcherOBA        float64 `json:"pitcher_oba,omitempty"`  // 0 when unknown
	IsHome            bool    `json:"is_home"`
}

// Lineup is a team's confirmed starting lineup: player id to batting-order
// slot (1-9). Matching is id-based; names collide across rosters, ids do not.
type Lineup struct {
	Team  string      `json:"team"`
	Slots map[int]int `json:"slots"`
}

// Confirmed reports whether the lineup names any starters at all.
func (l Lineup) Confirmed() bool {
	return len(l.Slots) > 0
}
