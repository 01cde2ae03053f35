package models

// PlayerStats holds a hitter's season and trailing-window numbers for one day.
// The trailing windows are cumulative when data is complete
// (HitsLast20 >= HitsLast10 >= HitsLast5) but are treated as independent
// counters so partial game logs never break scoring.
type PlayerStats struct {
	PlayerID   int    `json:"player_id"`
	PlayerName string `json:"player_name"`
	Team       string `json:"team"`
	Position   string `json:"position"`

	BattingAvg   float64 `json:"batting_avg"`
	GamesPlayed  int     `json:"games_played"`
	SeasonHits   int     `json:"season_hits"`
	SeasonAtBats int     `json:"season_at_bats"`

	HitsLast5  int `json:"hits_last_5"`
	HitsLast10 int `json:"hits_last_10"`
	HitsLast20 int `json:"hits_last_20"`

	// Split averages against pitcher handedness. Zero means unknown; the
	// scoring engine falls back to the season average, then the league
	// baseline.
	VsLeft  float64 `json:"vs_left,omitempty"`
	VsRight float64 `json:"vs_right,omitempty"`
}
