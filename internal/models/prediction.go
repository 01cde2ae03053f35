package models

// PredictionEntry is the snapshot of a ranked row at the moment it crossed
// the elite threshold, plus outcome fields filled in by reconciliation.
// Entries are created once per (date, player) and never recreated; outcome
// fields stay nil until a box score confirms or removes the entry.
type PredictionEntry struct {
	PlayerName      string  `json:"player_name"`
	Team            string  `json:"team"`
	Position        string  `json:"position"`
	HitScore        float64 `json:"hit_score"`
	BattingAvg      float64 `json:"batting_avg"`
	OpposingPitcher string  `json:"opposing_pitcher"`
	PitcherHand     string  `json:"pitcher_hand"`
	PredictedDate   string  `json:"predicted_date"`

	ActualHits   *int  `json:"actual_hits"`
	ActualAtBats *int  `json:"actual_at_bats"`
	GotHit       *bool `json:"got_hit"`
}

// Reconciled reports whether outcome fields have been filled in.
func (e PredictionEntry) Reconciled() bool {
	return e.ActualAtBats != nil
}

// TopPick is a rank-labeled prediction entry in a date's top-3 view.
type TopPick struct {
	PredictionEntry
	Rank int `json:"rank"`
}

// GameResult is a player's actual batting line for one date, as reported by
// a box-score provider. Played is false when no game record names the player.
type GameResult struct {
	AtBats int  `json:"at_bats"`
	Hits   int  `json:"hits"`
	Played bool `json:"played"`
}
