// Package ledger is the append-only, date-keyed record of elite predictions
// and the derived top-3 view. The first write for a calendar day wins; later
// ranking cycles observe a no-op so outcome data under reconciliation is
// never clobbered.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"mlbhits/pipeline/internal/metrics"
	"mlbhits/pipeline/internal/models"
	"mlbhits/pipeline/internal/store"
)

const (
	predictionsPrefix = "predictions/"
	topPicksPrefix    = "toppicks/"

	// TopPickCount is the size of the derived top-picks view.
	TopPickCount = 3

	// DefaultThreshold is the minimum hit score for a player to enter the
	// ledger.
	DefaultThreshold = 2.5
)

// Ledger persists elite predictions per calendar date. Dates are ISO
// YYYY-MM-DD strings; player ids are stringified for the document keys.
type Ledger struct {
	store     store.Store
	threshold float64

	// mu serializes the read-modify-write of reconciliation updates. The
	// per-date first write needs no lock: the store's WriteIfAbsent is the
	// serialization point.
	mu sync.Mutex
}

// New creates a ledger. A threshold of 0 selects DefaultThreshold.
func New(st store.Store, threshold float64) *Ledger {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Ledger{store: st, threshold: threshold}
}

// Threshold returns the elite threshold in force.
func (l *Ledger) Threshold() float64 {
	return l.threshold
}

// RecordIfAbsent snapshots every row at or above the elite threshold as the
// day's predictions, if no document exists for the date yet. It returns the
// number of entries written and whether this call performed the write. A day
// with no elite rows writes nothing, so re-runs later the same day can still
// record a first real result.
func (l *Ledger) RecordIfAbsent(ctx context.Context, date string, table models.Table) (int, bool, error) {
	entries := make(map[string]models.PredictionEntry)
	for _, row := range table.Rows {
		if row.HitScore < l.threshold {
			continue
		}
		entries[strconv.Itoa(row.PlayerID)] = models.PredictionEntry{
			PlayerName:      row.PlayerName,
			Team:            row.Team,
			Position:        row.Position,
			HitScore:        row.HitScore,
			BattingAvg:      row.BattingAvg,
			OpposingPitcher: row.OpposingPitcher,
			PitcherHand:     row.PitcherHand,
			PredictedDate:   date,
		}
	}
	if len(entries) == 0 {
		log.Debug().Str("date", date).Msg("No elite players to record")
		return 0, false, nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return 0, false, fmt.Errorf("failed to marshal predictions for %s: %w", date, err)
	}
	created, err := l.store.WriteIfAbsent(ctx, predictionsPrefix+date, data)
	if err != nil {
		return 0, false, fmt.Errorf("failed to record predictions for %s: %w", date, err)
	}
	if !created {
		log.Debug().Str("date", date).Msg("Predictions already recorded, skipping")
		metrics.RecordPredictions("duplicate", 0)
		return 0, false, nil
	}

	if err := l.writeTopPicks(ctx, date, deriveTopPicks(entries)); err != nil {
		return len(entries), true, err
	}

	metrics.RecordPredictions("recorded", len(entries))
	log.Info().Str("date", date).Int("count", len(entries)).Msg("Recorded elite predictions")
	return len(entries), true, nil
}

// ApplyReconciliation replaces the day's entries with exactly the verified
// subset, then repairs the top-picks view: surviving members keep their
// relative order and vacated slots backfill by descending score.
// Applying the same verified subset twice yields the same state.
func (l *Ledger) ApplyReconciliation(ctx context.Context, date string, verified map[string]models.PredictionEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(verified)
	if err != nil {
		return fmt.Errorf("failed to marshal verified predictions for %s: %w", date, err)
	}
	if err := l.store.Overwrite(ctx, predictionsPrefix+date, data); err != nil {
		return fmt.Errorf("failed to update predictions for %s: %w", date, err)
	}

	current, found, err := l.readTopPicks(ctx, date)
	if err != nil {
		return err
	}
	var picks map[string]models.TopPick
	if found {
		picks = repairTopPicks(current, verified)
	} else {
		picks = deriveTopPicks(verified)
	}
	if err := l.writeTopPicks(ctx, date, picks); err != nil {
		return err
	}

	log.Info().Str("date", date).Int("count", len(verified)).Msg("Ledger reconciled")
	return nil
}

// Day returns the date's entries. found is false when the date was never
// recorded, which is distinct from a recorded day that reconciled to zero.
func (l *Ledger) Day(ctx context.Context, date string) (map[string]models.PredictionEntry, bool, error) {
	data, err := l.store.Read(ctx, predictionsPrefix+date)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read predictions for %s: %w", date, err)
	}
	var entries map[string]models.PredictionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("corrupt predictions document for %s: %w", date, err)
	}
	return entries, true, nil
}

// TopPicks returns the date's top picks sorted by rank.
func (l *Ledger) TopPicks(ctx context.Context, date string) ([]models.TopPick, bool, error) {
	picks, found, err := l.readTopPicks(ctx, date)
	if err != nil || !found {
		return nil, found, err
	}

	ordered := make([]models.TopPick, 0, len(picks))
	for _, p := range picks {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })
	return ordered, true, nil
}

func (l *Ledger) readTopPicks(ctx context.Context, date string) (map[string]models.TopPick, bool, error) {
	data, err := l.store.Read(ctx, topPicksPrefix+date)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read top picks for %s: %w", date, err)
	}
	var picks map[string]models.TopPick
	if err := json.Unmarshal(data, &picks); err != nil {
		return nil, false, fmt.Errorf("corrupt top picks document for %s: %w", date, err)
	}
	return picks, true, nil
}

// Dates returns every recorded date in ascending order.
func (l *Ledger) Dates(ctx context.Context) ([]string, error) {
	keys, err := l.store.List(ctx, predictionsPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger dates: %w", err)
	}
	dates := make([]string, 0, len(keys))
	for _, key := range keys {
		dates = append(dates, strings.TrimPrefix(key, predictionsPrefix))
	}
	sort.Strings(dates)
	return dates, nil
}

func (l *Ledger) writeTopPicks(ctx context.Context, date string, picks map[string]models.TopPick) error {
	data, err := json.Marshal(picks)
	if err != nil {
		return fmt.Errorf("failed to marshal top picks for %s: %w", date, err)
	}
	if err := l.store.Overwrite(ctx, topPicksPrefix+date, data); err != nil {
		return fmt.Errorf("failed to write top picks for %s: %w", date, err)
	}
	return nil
}

// deriveTopPicks selects the highest-scoring entries, rank-labeled 1..3.
func deriveTopPicks(entries map[string]models.PredictionEntry) map[string]models.TopPick {
	ids := sortedByScore(entries)
	picks := make(map[string]models.TopPick)
	for i, id := range ids {
		if i == TopPickCount {
			break
		}
		picks[id] = models.TopPick{PredictionEntry: entries[id], Rank: i + 1}
	}
	return picks
}

// repairTopPicks keeps verified members of the current view in their relative
// order, then backfills open slots from the verified pool by descending score
// until the view holds three picks or the pool runs dry.
func repairTopPicks(current map[string]models.TopPick, verified map[string]models.PredictionEntry) map[string]models.TopPick {
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return current[ids[i]].Rank < current[ids[j]].Rank })

	picks := make(map[string]models.TopPick)
	taken := make(map[string]bool)
	rank := 1
	for _, id := range ids {
		entry, survived := verified[id]
		if !survived {
			continue
		}
		picks[id] = models.TopPick{PredictionEntry: entry, Rank: rank}
		taken[id] = true
		rank++
	}

	for _, id := range sortedByScore(verified) {
		if rank > TopPickCount {
			break
		}
		if taken[id] {
			continue
		}
		picks[id] = models.TopPick{PredictionEntry: verified[id], Rank: rank}
		taken[id] = true
		rank++
	}
	return picks
}

func sortedByScore(entries map[string]models.PredictionEntry) []string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := entries[ids[i]], entries[ids[j]]
		if a.HitScore != b.HitScore {
			return a.HitScore > b.HitScore
		}
		return ids[i] < ids[j]
	})
	return ids
}
