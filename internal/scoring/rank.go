package scoring

import (
	"time"

	"mlbhits/pipeline/internal/models"
)

// BuildTable joins hitters to their team's matchup, scores each joined row
// and returns the ranked table. Players whose team has no matchup today are
// dropped; players with zero games played are never scored.
func BuildTable(players []models.PlayerStats, matchups map[string]models.Matchup, now time.Time) models.Table {
	table := models.Table{GeneratedAt: now}

	for _, p := range players {
		if p.GamesPlayed == 0 {
			continue
		}
		m, ok := matchups[p.Team]
		if !ok {
			continue
		}

		factors := Score(p, m)
		table.Rows = append(table.Rows, models.RankedRow{
			PlayerID:        p.PlayerID,
			PlayerName:      p.PlayerName,
			Team:            p.Team,
			Position:        p.Position,
			BattingAvg:      p.BattingAvg,
			GamesPlayed:     p.GamesPlayed,
			HitsLast5:       p.HitsLast5,
			HitsLast10:      p.HitsLast10,
			HitsLast20:      p.HitsLast20,
			VsLeft:          p.VsLeft,
			VsRight:         p.VsRight,
			OpposingPitcher: m.OpposingPitcher,
			OpponentTeam:    m.OpponentTeam,
			PitcherHand:     m.PitcherHand,
			PitcherOBA:      m.PitcherOBA,
			IsHome:          m.IsHome,
			HitScore:        factors.HitScore(),
		})
	}

	table.Sort()
	return table
}

// FilterStarters keeps only rows whose player id appears in their team's
// confirmed lineup, annotating batting-order slots. If filtering would empty
// the table (lineups still pending, or id mismatches), the unfiltered table
// is returned: never show zero rows merely because confirmation is pending.
func FilterStarters(table models.Table, lineups map[string]models.Lineup) models.Table {
	if len(lineups) == 0 {
		return table
	}

	filtered := models.Table{GeneratedAt: table.GeneratedAt}
	for _, row := range table.Rows {
		lineup, ok := lineups[row.Team]
		if !ok || !lineup.Confirmed() {
			// No confirmed lineup for this team yet; keep its players.
			filtered.Rows = append(filtered.Rows, row)
			continue
		}
		slot, starting := lineup.Slots[row.PlayerID]
		if !starting {
			continue
		}
		row.BattingOrder = slot
		filtered.Rows = append(filtered.Rows, row)
	}

	if filtered.Empty() {
		return table
	}
	return filtered
}
