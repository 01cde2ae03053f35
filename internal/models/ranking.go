package models

import (
	"sort"
	"time"
)

// RankedRow is one scored hitter: the stat and matchup inputs used for the
// score are retained alongside it for auditability.
type RankedRow struct {
	PlayerID   int    `json:"player_id"`
	PlayerName string `json:"player_name"`
	Team       string `json:"team"`
	Position   string `json:"position"`

	BattingAvg  float64 `json:"batting_avg"`
	GamesPlayed int     `json:"games_played"`
	HitsLast5   int     `json:"hits_last_5"`
	HitsLast10  int     `json:"hits_last_10"`
	HitsLast20  int     `json:"hits_last_20"`
	VsLeft      float64 `json:"vs_left,omitempty"`
	VsRight     float64 `json:"vs_right,omitempty"`

	OpposingPitcher string  `json:"opposing_pitcher"`
	OpponentTeam    string  `json:"opponent_team"`
	PitcherHand     string  `json:"pitcher_hand,omitempty"`
	PitcherOBA      float64 `json:"pitcher_oba,omitempty"`
	IsHome          bool    `json:"is_home"`
	BattingOrder    int     `json:"batting_order,omitempty"` // 0 = unknown

	HitScore float64 `json:"hit_score"`
}

// Table is a day's ranked hitters, highest score first.
type Table struct {
	Rows        []RankedRow `json:"rows"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Sort orders rows by score descending; ties break on player id ascending so
// identical inputs always produce identical tables.
func (t *Table) Sort() {
	sort.Slice(t.Rows, func(i, j int) bool {
		if t.Rows[i].HitScore != t.Rows[j].HitScore {
			return t.Rows[i].HitScore > t.Rows[j].HitScore
		}
		return t.Rows[i].PlayerID < t.Rows[j].PlayerID
	})
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}
