// Package cache owns the two-tier ranked-table cache: a slow partition of
// season stats refreshed at most once per calendar day, and a fast partition
// of matchups and lineups refreshed on hourly boundaries. Staleness is
// evaluated lazily on read; there is no background refresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"mlbhits/pipeline/internal/metrics"
	"mlbhits/pipeline/internal/models"
	"mlbhits/pipeline/internal/scoring"
	"mlbhits/pipeline/internal/store"
)

// ErrUnavailable is returned only when no data of any age exists: no partition
// has ever been populated and the provider is down. Once any refresh has
// succeeded, reads degrade to stale data instead.
var ErrUnavailable = errors.New("cache: no ranked data available")

const (
	slowKey = "cache/slow"
	fastKey = "cache/fast"
)

// StatProvider supplies the upstream data the cache refreshes from. Both
// methods are fallible and retryable; failures degrade to cached payloads.
type StatProvider interface {
	// ListTodayPlayers returns season and trailing-window stats for every
	// hitter whose team has a scheduled game today.
	ListTodayPlayers(ctx context.Context) ([]models.PlayerStats, error)

	// TodayMatchups returns each playing team's pitcher matchup and, where
	// already published, its confirmed starting lineup.
	TodayMatchups(ctx context.Context) (map[string]models.Matchup, map[string]models.Lineup, error)
}

// Config holds the staleness rules. The boundary hour and grace window are
// configuration rather than literals so the reference clock can be tuned per
// deployment.
type Config struct {
	Location     *time.Location
	BoundaryHour int           // daily refresh boundary for the slow partition
	Grace        time.Duration // propagation grace after the hourly boundary

	// Now is the reference clock; defaults to time.Now. Tests inject a fixed
	// clock here.
	Now func() time.Time
}

// TieredCache answers "give me today's ranked table" while minimizing
// provider calls and never returning nothing when any usable payload exists.
type TieredCache struct {
	store    store.Store
	provider StatProvider
	cfg      Config
}

type slowPayload struct {
	Players     []models.PlayerStats `json:"players"`
	LastRefresh time.Time            `json:"last_refresh"`
}

type fastPayload struct {
	Matchups    map[string]models.Matchup `json:"matchups"`
	Lineups     map[string]models.Lineup  `json:"lineups"`
	LastRefresh time.Time                 `json:"last_refresh"`
}

// New creates a tiered cache over the given store and provider.
func New(st store.Store, provider StatProvider, cfg Config) *TieredCache {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TieredCache{store: st, provider: provider, cfg: cfg}
}

// RankedTable returns today's ranked table, refreshing whichever partitions
// are expired or forced. A failed refresh never discards previously good
// data; ErrUnavailable is returned only when there is no payload of any age.
func (c *TieredCache) RankedTable(ctx context.Context, forceSlow, forceFast bool) (models.Table, error) {
	now := c.cfg.Now()

	slow := c.loadSlow(ctx)
	if slow == nil || forceSlow || c.slowExpired(slow.LastRefresh, now) {
		if fresh, err := c.refreshSlow(ctx, now); err == nil {
			slow = fresh
		} else {
			log.Warn().Err(err).Msg("Season stats refresh failed, keeping cached payload")
			metrics.RecordCacheRefresh("slow", "failure")
			if slow != nil {
				metrics.RecordCacheFallback()
			}
		}
	}

	fast := c.loadFast(ctx)
	if fast == nil || forceFast || c.fastExpired(fast.LastRefresh, now) {
		if fresh, err := c.refreshFast(ctx, now); err == nil {
			fast = fresh
		} else {
			log.Warn().Err(err).Msg("Matchup refresh failed, keeping cached payload")
			metrics.RecordCacheRefresh("fast", "failure")
			if fast != nil {
				metrics.RecordCacheFallback()
			}
		}
	}

	// "System broken" is only the total absence of data; an empty slate of
	// games with working providers merges to an empty table below.
	if slow == nil && fast == nil {
		return models.Table{}, ErrUnavailable
	}

	var players []models.PlayerStats
	if slow != nil {
		players = slow.Players
	}
	matchups := map[string]models.Matchup{}
	lineups := map[string]models.Lineup{}
	if fast != nil {
		matchups = fast.Matchups
		lineups = fast.Lineups
	}

	table := scoring.BuildTable(players, matchups, now)
	table = scoring.FilterStarters(table, lineups)
	metrics.RankedPlayers.Set(float64(len(table.Rows)))
	return table, nil
}

func (c *TieredCache) refreshSlow(ctx context.Context, now time.Time) (*slowPayload, error) {
	players, err := c.provider.ListTodayPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch season stats: %w", err)
	}
	payload := &slowPayload{Players: players, LastRefresh: now}
	if err := c.save(ctx, slowKey, payload); err != nil {
		return nil, err
	}
	metrics.RecordCacheRefresh("slow", "success")
	log.Info().Int("players", len(players)).Msg("Season stats refreshed")
	return payload, nil
}

func (c *TieredCache) refreshFast(ctx context.Context, now time.Time) (*fastPayload, error) {
	matchups, lineups, err := c.provider.TodayMatchups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch matchups: %w", err)
	}
	payload := &fastPayload{Matchups: matchups, Lineups: lineups, LastRefresh: now}
	if err := c.save(ctx, fastKey, payload); err != nil {
		return nil, err
	}
	metrics.RecordCacheRefresh("fast", "success")
	log.Info().Int("matchups", len(matchups)).Int("lineups", len(lineups)).Msg("Matchups refreshed")
	return payload, nil
}

func (c *TieredCache) save(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", key, err)
	}
	if err := c.store.Overwrite(ctx, key, data); err != nil {
		return fmt.Errorf("failed to persist %s payload: %w", key, err)
	}
	return nil
}

func (c *TieredCache) loadSlow(ctx context.Context) *slowPayload {
	data, err := c.store.Read(ctx, slowKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("Failed to load season stats payload")
		}
		return nil
	}
	var payload slowPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("Corrupt season stats payload, ignoring")
		return nil
	}
	return &payload
}

func (c *TieredCache) loadFast(ctx context.Context) *fastPayload {
	data, err := c.store.Read(ctx, fastKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("Failed to load matchup payload")
		}
		return nil
	}
	var payload fastPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("Corrupt matchup payload, ignoring")
		return nil
	}
	return &payload
}

// slowExpired reports whether the daily boundary has passed since the last
// refresh: "now" sits on a later calendar date in the reference timezone AND
// today's boundary hour has been reached. At most one refresh per day.
func (c *TieredCache) slowExpired(last, now time.Time) bool {
	nowLocal := now.In(c.cfg.Location)
	lastLocal := last.In(c.cfg.Location)

	if !laterDate(nowLocal, lastLocal) {
		return false
	}
	boundary := time.Date(
		nowLocal.Year(), nowLocal.Month(), nowLocal.Day(),
		c.cfg.BoundaryHour, 0, 0, 0, c.cfg.Location,
	)
	return !nowLocal.Before(boundary)
}

// fastExpired reports whether the top of the hour after the last refresh,
// plus the grace window, has passed.
func (c *TieredCache) fastExpired(last, now time.Time) bool {
	nextHour := last.Truncate(time.Hour).Add(time.Hour)
	return !now.Before(nextHour.Add(c.cfg.Grace))
}

func laterDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
