// Package verify corrects the prediction ledger against actual box-score
// outcomes: a prediction about a player who never batted must not remain on
// record as a real prediction.
package verify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"mlbhits/pipeline/internal/ledger"
	"mlbhits/pipeline/internal/metrics"
	"mlbhits/pipeline/internal/models"
)

// BoxScoreProvider answers whether a player batted on a given date.
type BoxScoreProvider interface {
	// PlayerGameResult returns the player's batting line for the date.
	// A result with Played=false means no game record names the player.
	PlayerGameResult(ctx context.Context, playerID int, date string) (models.GameResult, error)
}

// Report summarizes one reconciliation pass.
type Report struct {
	Date    string          `json:"date"`
	Kept    int             `json:"kept"`
	Removed int             `json:"removed"`
	Dropped []RemovedPlayer `json:"dropped,omitempty"`
}

// RemovedPlayer names an entry dropped for having no at-bats.
type RemovedPlayer struct {
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Team       string  `json:"team"`
	HitScore   float64 `json:"hit_score"`
}

// Service reconciles ledgered predictions against box scores.
type Service struct {
	ledger    *ledger.Ledger
	boxscores BoxScoreProvider
}

// NewService creates a reconciliation service.
func NewService(l *ledger.Ledger, boxscores BoxScoreProvider) *Service {
	return &Service{ledger: l, boxscores: boxscores}
}

// Reconcile verifies every ledgered player for the date: at-bats > 0 keeps
// the entry and fills its outcome fields, anything else drops it. Safe to
// re-run; the same verified subset in produces the same ledger state out.
func (s *Service) Reconcile(ctx context.Context, date string) (Report, error) {
	report := Report{Date: date}

	entries, found, err := s.ledger.Day(ctx, date)
	if err != nil {
		return report, err
	}
	if !found {
		return report, fmt.Errorf("no predictions recorded for %s", date)
	}

	verified := make(map[string]models.PredictionEntry)
	for id, entry := range entries {
		playerID, err := parsePlayerID(id)
		if err != nil {
			log.Warn().Str("player_id", id).Str("date", date).Msg("Malformed player id in ledger, dropping")
			report.Removed++
			continue
		}

		result, err := s.boxscores.PlayerGameResult(ctx, playerID, date)
		if err != nil {
			// A lookup failure is not evidence the player sat out. Keep the
			// entry untouched rather than invent an outcome.
			log.Warn().Err(err).Int("player_id", playerID).Str("date", date).Msg("Box score lookup failed, keeping entry unverified")
			verified[id] = entry
			report.Kept++
			continue
		}

		if !result.Played || result.AtBats == 0 {
			log.Info().
				Str("player", entry.PlayerName).
				Str("team", entry.Team).
				Str("date", date).
				Msg("Removing prediction, no at-bats")
			report.Removed++
			report.Dropped = append(report.Dropped, RemovedPlayer{
				PlayerID:   id,
				PlayerName: entry.PlayerName,
				Team:       entry.Team,
				HitScore:   entry.HitScore,
			})
			continue
		}

		hits, atBats, gotHit := result.Hits, result.AtBats, result.Hits > 0
		entry.ActualHits = &hits
		entry.ActualAtBats = &atBats
		entry.GotHit = &gotHit
		verified[id] = entry
		report.Kept++
	}

	if err := s.ledger.ApplyReconciliation(ctx, date, verified); err != nil {
		return report, err
	}

	metrics.RecordReconciliation(report.Kept, report.Removed)
	log.Info().
		Str("date", date).
		Int("kept", report.Kept).
		Int("removed", report.Removed).
		Msg("Reconciliation complete")
	return report, nil
}

func parsePlayerID(id string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(id, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid player id %q: %w", id, err)
	}
	return n, nil
}
