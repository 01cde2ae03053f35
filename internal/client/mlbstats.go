// Package client wraps the MLB Stats API endpoints the pipeline consumes:
// schedule, rosters, hitting stats, game logs, probable pitchers and box
// scores.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mlbhits/pipeline/internal/metrics"
	"mlbhits/pipeline/internal/models"
	"mlbhits/pipeline/internal/retry"
)

// DefaultBaseURL is the public MLB Stats API root.
const DefaultBaseURL = "https://statsapi.mlb.com/api/v1"

const maxConcurrentRequests = 10

// Client is the MLB Stats API client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore
	maxRetries  int
	retryDelay  time.Duration
	location    *time.Location
	now         func() time.Time

	mu        sync.Mutex
	teamAbbr  map[int]string
	boxScores map[string]map[int]models.GameResult // date -> player id -> line
}

// New creates an MLB Stats API client. The location fixes which calendar
// date counts as "today"; now defaults to time.Now.
func New(baseURL string, timeout time.Duration, location *time.Location, now func() time.Time) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}

	rateLimiter := make(chan struct{}, maxConcurrentRequests)
	for i := 0; i < maxConcurrentRequests; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:     baseURL,
		rateLimiter: rateLimiter,
		maxRetries:  3,
		retryDelay:  1 * time.Second,
		location:    location,
		now:         now,
		teamAbbr:    make(map[int]string),
		boxScores:   make(map[string]map[int]models.GameResult),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs a GET request with rate limiting and bounded retry. Only 429,
// 503 and 504 responses are retried; auth and client errors fail immediately.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	var body []byte
	start := time.Now()
	err := retry.Do(ctx, c.maxRetries, c.retryDelay, func() error {
		select {
		case <-ctx.Done():
			return retry.Permanent{Err: ctx.Err()}
		case <-c.rateLimiter:
		}
		defer func() { c.rateLimiter <- struct{}{} }()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent{Err: fmt.Errorf("failed to create request: %w", err)}
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "mlbhits-pipeline/1.0")

		if len(params) > 0 {
			q := req.URL.Query()
			for key, value := range params {
				q.Add(key, value)
			}
			req.URL.RawQuery = q.Encode()
		}

		log.Debug().Str("url", url).Msg("Making API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("API request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body = data
			return nil
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Received retryable error, will retry")
			return fmt.Errorf("API returned retryable status %d", resp.StatusCode)
		default:
			return retry.Permanent{Err: fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))}
		}
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordProviderCall(path, status, time.Since(start).Seconds())
	return body, err
}

func (c *Client) today() string {
	return c.now().In(c.location).Format("2006-01-02")
}

func (c *Client) season() string {
	return strconv.Itoa(c.now().In(c.location).Year())
}

// teams builds (once) the team id to abbreviation lookup.
func (c *Client) teams(ctx context.Context) (map[int]string, error) {
	c.mu.Lock()
	if len(c.teamAbbr) > 0 {
		lookup := c.teamAbbr
		c.mu.Unlock()
		return lookup, nil
	}
	c.mu.Unlock()

	body, err := c.get(ctx, "teams", map[string]string{"sportId": "1"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch teams: %w", err)
	}

	var payload struct {
		Teams []struct {
			ID           int    `json:"id"`
			Abbreviation string `json:"abbreviation"`
		} `json:"teams"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal teams: %w", err)
	}

	lookup := make(map[int]string, len(payload.Teams))
	for _, t := range payload.Teams {
		lookup[t.ID] = t.Abbreviation
	}

	c.mu.Lock()
	c.teamAbbr = lookup
	c.mu.Unlock()
	return lookup, nil
}

type scheduleGame struct {
	GamePk int `json:"gamePk"`
	Teams  struct {
		Away scheduleSide `json:"away"`
		Home scheduleSide `json:"home"`
	} `json:"teams"`
	Lineups struct {
		AwayPlayers []struct {
			ID int `json:"id"`
		} `json:"awayPlayers"`
		HomePlayers []struct {
			ID int `json:"id"`
		} `json:"homePlayers"`
	} `json:"lineups"`
}

type scheduleSide struct {
	Team struct {
		ID int `json:"id"`
	} `json:"team"`
	ProbablePitcher *probablePitcher `json:"probablePitcher"`
}

type probablePitcher struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
}

// schedule fetches the day's games, optionally hydrated with probable
// pitchers and lineups.
func (c *Client) schedule(ctx context.Context, date string, hydrate bool) ([]scheduleGame, error) {
	params := map[string]string{"sportId": "1", "date": date}
	if hydrate {
		params["hydrate"] = "probablePitcher,lineups"
	}

	body, err := c.get(ctx, "schedule", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}

	var payload struct {
		Dates []struct {
			Games []scheduleGame `json:"games"`
		} `json:"dates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	if len(payload.Dates) == 0 {
		return nil, nil
	}
	return payload.Dates[0].Games, nil
}

type rosterEntry struct {
	PlayerID   int
	PlayerName string
	Position   string
}

// roster fetches a team's active roster, excluding pitchers.
func (c *Client) roster(ctx context.Context, teamID int) ([]rosterEntry, error) {
	path := fmt.Sprintf("teams/%d/roster", teamID)
	body, err := c.get(ctx, path, map[string]string{"rosterType": "active"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	var payload struct {
		Roster []struct {
			Person struct {
				ID       int    `json:"id"`
				FullName string `json:"fullName"`
			} `json:"person"`
			Position struct {
				Abbreviation string `json:"abbreviation"`
			} `json:"position"`
		} `json:"roster"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster: %w", err)
	}

	var hitters []rosterEntry
	for _, r := range payload.Roster {
		switch r.Position.Abbreviation {
		case "P", "LHP", "RHP":
			continue
		}
		hitters = append(hitters, rosterEntry{
			PlayerID:   r.Person.ID,
			PlayerName: r.Person.FullName,
			Position:   r.Position.Abbreviation,
		})
	}
	return hitters, nil
}

type statSplit struct {
	Date string `json:"date"`
	Stat struct {
		Avg         string `json:"avg"`
		Hits        int    `json:"hits"`
		AtBats      int    `json:"atBats"`
		GamesPlayed int    `json:"gamesPlayed"`
	} `json:"stat"`
	Split struct {
		Code string `json:"code"`
	} `json:"split"`
}

func (c *Client) playerStats(ctx context.Context, playerID int, params map[string]string) ([]statSplit, error) {
	path := fmt.Sprintf("people/%d/stats", playerID)
	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player stats: %w", err)
	}

	var payload struct {
		Stats []struct {
			Splits []statSplit `json:"splits"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player stats: %w", err)
	}
	if len(payload.Stats) == 0 {
		return nil, nil
	}
	return payload.Stats[0].Splits, nil
}

// seasonHitting fills season batting fields. Missing stats leave the zero
// values in place; the scoring engine supplies neutral defaults.
func (c *Client) seasonHitting(ctx context.Context, p *models.PlayerStats) error {
	splits, err := c.playerStats(ctx, p.PlayerID, map[string]string{
		"stats":  "season",
		"group":  "hitting",
		"season": c.season(),
	})
	if err != nil {
		return err
	}
	if len(splits) == 0 {
		return nil
	}

	stat := splits[0].Stat
	p.BattingAvg = parseAvg(stat.Avg)
	p.SeasonHits = stat.Hits
	p.SeasonAtBats = stat.AtBats
	p.GamesPlayed = stat.GamesPlayed
	return nil
}

// recentHits sums hits over the player's last 5, 10 and 20 game logs.
func (c *Client) recentHits(ctx context.Context, p *models.PlayerStats) error {
	splits, err := c.playerStats(ctx, p.PlayerID, map[string]string{
		"stats":  "gameLog",
		"group":  "hitting",
		"season": c.season(),
	})
	if err != nil {
		return err
	}

	sort.Slice(splits, func(i, j int) bool { return splits[i].Date > splits[j].Date })
	for i, s := range splits {
		if i < 5 {
			p.HitsLast5 += s.Stat.Hits
		}
		if i < 10 {
			p.HitsLast10 += s.Stat.Hits
		}
		if i < 20 {
			p.HitsLast20 += s.Stat.Hits
		}
	}
	return nil
}

// handSplits fills batting averages versus left and right handed pitching.
func (c *Client) handSplits(ctx context.Context, p *models.PlayerStats) error {
	splits, err := c.playerStats(ctx, p.PlayerID, map[string]string{
		"stats":    "statSplits",
		"group":    "hitting",
		"season":   c.season(),
		"sitCodes": "vl,vr",
	})
	if err != nil {
		return err
	}

	for _, s := range splits {
		switch s.Split.Code {
		case "vl":
			p.VsLeft = parseAvg(s.Stat.Avg)
		case "vr":
			p.VsRight = parseAvg(s.Stat.Avg)
		}
	}
	return nil
}

// pitcherProfile returns a probable pitcher's opponent batting average and
// throwing hand. Failures degrade to unknowns rather than failing the
// matchup refresh.
func (c *Client) pitcherProfile(ctx context.Context, pitcherID int) (oba float64, hand string) {
	splits, err := c.playerStats(ctx, pitcherID, map[string]string{
		"stats":  "season",
		"group":  "pitching",
		"season": c.season(),
	})
	if err != nil {
		log.Warn().Err(err).Int("pitcher_id", pitcherID).Msg("Pitcher stats unavailable")
	} else if len(splits) > 0 {
		oba = parseAvg(splits[0].Stat.Avg)
	}

	body, err := c.get(ctx, fmt.Sprintf("people/%d", pitcherID), nil)
	if err != nil {
		log.Warn().Err(err).Int("pitcher_id", pitcherID).Msg("Pitcher profile unavailable")
		return oba, ""
	}
	var payload struct {
		People []struct {
			PitchHand struct {
				Code string `json:"code"`
			} `json:"pitchHand"`
		} `json:"people"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.People) > 0 {
		hand = payload.People[0].PitchHand.Code
	}
	return oba, hand
}

// ListTodayPlayers returns hitters on the active rosters of every team
// playing today, with season stats, trailing hit counts and hand splits.
func (c *Client) ListTodayPlayers(ctx context.Context) ([]models.PlayerStats, error) {
	lookup, err := c.teams(ctx)
	if err != nil {
		return nil, err
	}
	games, err := c.schedule(ctx, c.today(), false)
	if err != nil {
		return nil, err
	}

	teamIDs := make(map[int]bool)
	for _, g := range games {
		teamIDs[g.Teams.Away.Team.ID] = true
		teamIDs[g.Teams.Home.Team.ID] = true
	}

	var players []models.PlayerStats
	for teamID := range teamIDs {
		hitters, err := c.roster(ctx, teamID)
		if err != nil {
			return nil, err
		}
		for _, h := range hitters {
			p := models.PlayerStats{
				PlayerID:   h.PlayerID,
				PlayerName: h.PlayerName,
				Team:       lookup[teamID],
				Position:   h.Position,
			}
			if err := c.seasonHitting(ctx, &p); err != nil {
				return nil, err
			}
			if err := c.recentHits(ctx, &p); err != nil {
				return nil, err
			}
			if err := c.handSplits(ctx, &p); err != nil {
				log.Warn().Err(err).Int("player_id", p.PlayerID).Msg("Hand splits unavailable")
			}
			players = append(players, p)
		}
	}

	log.Info().Int("players", len(players)).Int("teams", len(teamIDs)).Msg("Fetched today's player pool")
	return players, nil
}

// TodayMatchups returns, per team abbreviation, the opposing probable
// pitcher and any confirmed starting lineup. A team whose opponent has no
// probable pitcher still gets a matchup with unknown pitcher fields.
func (c *Client) TodayMatchups(ctx context.Context) (map[string]models.Matchup, map[string]models.Lineup, error) {
	lookup, err := c.teams(ctx)
	if err != nil {
		return nil, nil, err
	}
	games, err := c.schedule(ctx, c.today(), true)
	if err != nil {
		return nil, nil, err
	}

	matchups := make(map[string]models.Matchup)
	lineups := make(map[string]models.Lineup)
	for _, g := range games {
		away, home := lookup[g.Teams.Away.Team.ID], lookup[g.Teams.Home.Team.ID]

		matchups[away] = c.buildMatchup(ctx, away, home, g.Teams.Home.ProbablePitcher, false)
		matchups[home] = c.buildMatchup(ctx, home, away, g.Teams.Away.ProbablePitcher, true)

		awaySlots := make(map[int]int, len(g.Lineups.AwayPlayers))
		for i, p := range g.Lineups.AwayPlayers {
			awaySlots[p.ID] = i + 1
		}
		homeSlots := make(map[int]int, len(g.Lineups.HomePlayers))
		for i, p := range g.Lineups.HomePlayers {
			homeSlots[p.ID] = i + 1
		}
		lineups[away] = models.Lineup{Team: away, Slots: awaySlots}
		lineups[home] = models.Lineup{Team: home, Slots: homeSlots}
	}

	log.Info().Int("matchups", len(matchups)).Msg("Fetched today's matchups")
	return matchups, lineups, nil
}

func (c *Client) buildMatchup(ctx context.Context, team, opponent string, pitcher *probablePitcher, isHome bool) models.Matchup {
	m := models.Matchup{Team: team, OpponentTeam: opponent, IsHome: isHome}
	if pitcher == nil {
		return m
	}
	m.OpposingPitcher = pitcher.FullName
	m.OpposingPitcherID = pitcher.ID
	m.PitcherOBA, m.PitcherHand = c.pitcherProfile(ctx, pitcher.ID)
	return m
}

// PlayerGameResult returns the player's batting line for the date. Box
// scores for the whole slate are fetched once per date and memoized, so
// reconciling a full ledger day costs one pass over the games.
func (c *Client) PlayerGameResult(ctx context.Context, playerID int, date string) (models.GameResult, error) {
	c.mu.Lock()
	lines, ok := c.boxScores[date]
	c.mu.Unlock()

	if !ok {
		var err error
		lines, err = c.dateBoxScores(ctx, date)
		if err != nil {
			return models.GameResult{}, err
		}
		c.mu.Lock()
		c.boxScores[date] = lines
		c.mu.Unlock()
	}

	line, found := lines[playerID]
	if !found {
		return models.GameResult{Played: false}, nil
	}
	return line, nil
}

// dateBoxScores collects every batter's line across the date's games.
func (c *Client) dateBoxScores(ctx context.Context, date string) (map[int]models.GameResult, error) {
	games, err := c.schedule(ctx, date, false)
	if err != nil {
		return nil, err
	}

	lines := make(map[int]models.GameResult)
	for _, g := range games {
		body, err := c.get(ctx, fmt.Sprintf("game/%d/boxscore", g.GamePk), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch box score for game %d: %w", g.GamePk, err)
		}

		var payload struct {
			Teams map[string]struct {
				Players map[string]struct {
					Person struct {
						ID int `json:"id"`
					} `json:"person"`
					Stats struct {
						Batting struct {
							AtBats int `json:"atBats"`
							Hits   int `json:"hits"`
						} `json:"batting"`
					} `json:"stats"`
				} `json:"players"`
			} `json:"teams"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal box score: %w", err)
		}

		for _, team := range payload.Teams {
			for _, p := range team.Players {
				b := p.Stats.Batting
				lines[p.Person.ID] = models.GameResult{
					AtBats: b.AtBats,
					Hits:   b.Hits,
					Played: b.AtBats > 0,
				}
			}
		}
	}
	return lines, nil
}

// parseAvg converts the API's string batting averages (".271") to float.
func parseAvg(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
