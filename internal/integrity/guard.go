// Package integrity audits the prediction ledger for missing or suspicious
// days and drives one bounded round of automatic repair.
package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"mlbhits/pipeline/internal/backup"
	"mlbhits/pipeline/internal/cache"
	"mlbhits/pipeline/internal/ledger"
	"mlbhits/pipeline/internal/metrics"
)

// Severity classifies an issue found during a sweep.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

const (
	// DefaultDailyFloor is the expected minimum number of ledgered players
	// on a game day.
	DefaultDailyFloor = 10

	// DefaultBackupMaxAge is how stale the newest snapshot may be before the
	// sweep flags it.
	DefaultBackupMaxAge = 24 * time.Hour

	lookbackDays = 7
	recentDays   = 3
	dateForm     = "2006-01-02"
)

// Issue is a single finding from a sweep.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the outcome of one sweep, including the re-check after repair.
type Report struct {
	SweptAt   time.Time `json:"swept_at"`
	Issues    []Issue   `json:"issues"`
	Repaired  bool      `json:"repaired"`
	Remaining []Issue   `json:"remaining,omitempty"`
}

// Healthy reports whether the final state of the sweep is issue free.
func (r Report) Healthy() bool {
	if r.Repaired {
		return len(r.Remaining) == 0
	}
	return len(r.Issues) == 0
}

// Config tunes the sweep.
type Config struct {
	Location     *time.Location
	BoundaryHour int
	DailyFloor   int
	BackupMaxAge time.Duration

	// Now is the reference clock; defaults to time.Now.
	Now func() time.Time
}

// Guard runs integrity sweeps over the ledger.
type Guard struct {
	ledger  *ledger.Ledger
	cache   *cache.TieredCache
	backups *backup.Manager
	cfg     Config
}

// NewGuard creates an integrity guard.
func NewGuard(l *ledger.Ledger, c *cache.TieredCache, b *backup.Manager, cfg Config) *Guard {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DailyFloor <= 0 {
		cfg.DailyFloor = DefaultDailyFloor
	}
	if cfg.BackupMaxAge <= 0 {
		cfg.BackupMaxAge = DefaultBackupMaxAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Guard{ledger: l, cache: c, backups: b, cfg: cfg}
}

// Sweep audits the ledger. When issues are found it snapshots the store,
// attempts one repair pass, then re-checks once. It never loops.
func (g *Guard) Sweep(ctx context.Context) (Report, error) {
	now := g.cfg.Now().In(g.cfg.Location)
	report := Report{SweptAt: now}

	report.Issues = g.check(ctx, now)
	for _, issue := range report.Issues {
		metrics.RecordIntegrityIssue(string(issue.Severity))
		log.Warn().Str("severity", string(issue.Severity)).Msg(issue.Message)
	}
	if len(report.Issues) == 0 {
		log.Info().Msg("Integrity sweep clean")
		return report, nil
	}

	if _, err := g.backups.Snapshot(ctx); err != nil {
		log.Error().Err(err).Msg("Pre-repair snapshot failed")
	}
	g.repair(ctx, now, report.Issues)
	report.Repaired = true

	report.Remaining = g.check(ctx, now)
	if len(report.Remaining) == 0 {
		log.Info().Int("fixed", len(report.Issues)).Msg("Integrity sweep repaired all issues")
	} else {
		log.Error().
			Int("found", len(report.Issues)).
			Int("remaining", len(report.Remaining)).
			Msg("Integrity sweep left unresolved issues")
	}
	return report, nil
}

func (g *Guard) check(ctx context.Context, now time.Time) []Issue {
	var issues []Issue
	issues = append(issues, g.checkToday(ctx, now)...)
	issues = append(issues, g.checkGaps(ctx, now)...)
	issues = append(issues, g.checkRecentScores(ctx, now)...)
	issues = append(issues, g.checkBackups()...)
	return issues
}

// checkToday verifies today's day document exists and is plausibly sized.
// Before the boundary hour the day legitimately may not exist yet.
func (g *Guard) checkToday(ctx context.Context, now time.Time) []Issue {
	today := now.Format(dateForm)
	entries, found, err := g.ledger.Day(ctx, today)
	if err != nil {
		return []Issue{{SeverityCritical, fmt.Sprintf("Reading today's predictions failed: %v", err)}}
	}

	afterBoundary := now.Hour() >= g.cfg.BoundaryHour
	switch {
	case !found && afterBoundary:
		return []Issue{{SeverityCritical, fmt.Sprintf("No predictions recorded for %s", today)}}
	case !found:
		return nil
	case len(entries) == 0:
		return []Issue{{SeverityWarning, fmt.Sprintf("Predictions for %s are empty", today)}}
	case len(entries) < g.cfg.DailyFloor:
		return []Issue{{SeverityWarning, fmt.Sprintf("Only %d predictions for %s, expected at least %d", len(entries), today, g.cfg.DailyFloor)}}
	}
	return nil
}

// checkGaps looks for missing days in the last week, skipping Sunday and
// Monday which are treated as scheduled off-days.
func (g *Guard) checkGaps(ctx context.Context, now time.Time) []Issue {
	recorded, err := g.ledger.Dates(ctx)
	if err != nil {
		return []Issue{{SeverityCritical, fmt.Sprintf("Listing ledger dates failed: %v", err)}}
	}
	have := make(map[string]bool, len(recorded))
	for _, d := range recorded {
		have[d] = true
	}

	var issues []Issue
	for i := 1; i <= lookbackDays; i++ {
		day := now.AddDate(0, 0, -i)
		if wd := day.Weekday(); wd == time.Sunday || wd == time.Monday {
			continue
		}
		if !have[day.Format(dateForm)] {
			issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("No predictions recorded for %s", day.Format(dateForm))})
		}
	}
	return issues
}

// checkRecentScores verifies every entry from the last few days cleared the
// elite threshold. A sub-threshold entry means the filter misfired.
func (g *Guard) checkRecentScores(ctx context.Context, now time.Time) []Issue {
	threshold := g.ledger.Threshold()

	var issues []Issue
	for i := 0; i < recentDays; i++ {
		date := now.AddDate(0, 0, -i).Format(dateForm)
		entries, found, err := g.ledger.Day(ctx, date)
		if err != nil || !found {
			continue
		}
		for id, entry := range entries {
			if entry.HitScore < threshold {
				issues = append(issues, Issue{SeverityWarning, fmt.Sprintf(
					"Player %s (%s) recorded on %s with score %.3f below threshold %.2f",
					entry.PlayerName, id, date, entry.HitScore, threshold)})
			}
		}
	}
	return issues
}

func (g *Guard) checkBackups() []Issue {
	age, found, err := g.backups.LatestAge()
	if err != nil {
		return []Issue{{SeverityWarning, fmt.Sprintf("Inspecting backups failed: %v", err)}}
	}
	if !found {
		return []Issue{{SeverityCritical, "No ledger backups exist"}}
	}
	if age > g.cfg.BackupMaxAge {
		return []Issue{{SeverityWarning, fmt.Sprintf("Newest backup is %s old", age.Round(time.Minute))}}
	}
	return nil
}

// repair makes one attempt per issue class: regenerate today's predictions
// when today is absent or empty, and restore gap days from snapshots.
func (g *Guard) repair(ctx context.Context, now time.Time, issues []Issue) {
	today := now.Format(dateForm)

	for _, issue := range issues {
		switch {
		case issue.Message == fmt.Sprintf("No predictions recorded for %s", today),
			issue.Message == fmt.Sprintf("Predictions for %s are empty", today):
			g.regenerateToday(ctx, today)
		}
	}

	// Snapshot recovery for any missing prior day.
	recorded, err := g.ledger.Dates(ctx)
	if err != nil {
		return
	}
	have := make(map[string]bool, len(recorded))
	for _, d := range recorded {
		have[d] = true
	}
	for i := 1; i <= lookbackDays; i++ {
		day := now.AddDate(0, 0, -i)
		if wd := day.Weekday(); wd == time.Sunday || wd == time.Monday {
			continue
		}
		date := day.Format(dateForm)
		if have[date] {
			continue
		}
		restored, err := g.backups.Recover(ctx, date)
		if err != nil {
			log.Error().Err(err).Str("date", date).Msg("Snapshot recovery failed")
			continue
		}
		if restored {
			log.Info().Str("date", date).Msg("Missing day restored from snapshot")
		}
	}
}

// regenerateToday forces a full ranking cycle and records whatever elite
// players it produces. RecordIfAbsent keeps this safe against a concurrent
// writer landing first.
func (g *Guard) regenerateToday(ctx context.Context, today string) {
	table, err := g.cache.RankedTable(ctx, true, true)
	if err != nil {
		log.Error().Err(err).Msg("Forced ranking cycle failed during repair")
		return
	}
	count, created, err := g.ledger.RecordIfAbsent(ctx, today, table)
	if err != nil {
		log.Error().Err(err).Msg("Recording repaired predictions failed")
		return
	}
	log.Info().Int("players", count).Bool("created", created).Msg("Regenerated today's predictions")
}
