// Package scoring turns a hitter's stats and matchup into a single hit score.
// It is pure computation: no I/O, no state.
package scoring

import (
	"math"

	"mlbhits/pipeline/internal/models"
)

const (
	// LeagueAvgBA is the league-average batting average every factor is
	// normalized against.
	LeagueAvgBA = 0.238

	// DefaultPitcherOBA stands in when a pitcher's opponent batting average
	// is unknown. It pulls the pitcher factor toward neutral (~1.05), never
	// toward zero: a data gap must not bury a hot hitter.
	DefaultPitcherOBA = 0.250

	// AvgHitsPerGame is the expected hits per game for an average hitter.
	AvgHitsPerGame = 0.75

	// ExpectedWeightedHits is the hotness denominator: summing the trailing
	// 5/10/20 windows gives the last 5 games 3x weight, games 6-10 2x and
	// games 11-20 1x, for 35 weighted games. 35 * 0.75 = 26.25.
	ExpectedWeightedHits = 35 * AvgHitsPerGame
)

// Factors breaks a hit score into its three multiplicative components.
type Factors struct {
	Hotness       float64
	PitcherFactor float64
	SkillFactor   float64
}

// Score computes the factors for one hitter against one matchup.
func Score(p models.PlayerStats, m models.Matchup) Factors {
	weightedHits := float64(p.HitsLast5 + p.HitsLast10 + p.HitsLast20)
	hotness := weightedHits / ExpectedWeightedHits

	oba := m.PitcherOBA
	if oba <= 0 {
		oba = DefaultPitcherOBA
	}
	pitcherFactor := oba / LeagueAvgBA

	skillFactor := skillAverage(p, m.PitcherHand) / LeagueAvgBA

	return Factors{
		Hotness:       hotness,
		PitcherFactor: pitcherFactor,
		SkillFactor:   skillFactor,
	}
}

// HitScore is the product of the three factors, rounded to 3 decimals.
func (f Factors) HitScore() float64 {
	return round3(f.Hotness * f.PitcherFactor * f.SkillFactor)
}

// skillAverage prefers the split against the pitcher's hand, falls back to
// the season average, and finally to the league baseline so a missing stat
// reads as neutral rather than a penalty.
func skillAverage(p models.PlayerStats, hand string) float64 {
	switch hand {
	case "L":
		if p.VsLeft > 0 {
			return p.VsLeft
		}
	case "R":
		if p.VsRight > 0 {
			return p.VsRight
		}
	}
	if p.BattingAvg > 0 {
		return p.BattingAvg
	}
	return LeagueAvgBA
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
