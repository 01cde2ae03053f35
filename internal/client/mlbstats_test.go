package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestGet_RetriesRetryableStatuses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"teams":[{"id":147,"abbreviation":"NYY"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.UTC, fixedClock())
	c.httpClient = srv.Client()
	c.retryDelay = time.Millisecond

	lookup, err := c.teams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NYY", lookup[147])
	assert.EqualValues(t, 3, calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.UTC, fixedClock())
	c.httpClient = srv.Client()

	_, err := c.teams(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestPlayerGameResult_MemoizesBoxScoresPerDate(t *testing.T) {
	var boxScoreCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/schedule":
			w.Write([]byte(`{"dates":[{"games":[{"gamePk":717715}]}]}`))
		case "/game/717715/boxscore":
			boxScoreCalls.Add(1)
			w.Write([]byte(`{"teams":{"away":{"players":{
				"ID100":{"person":{"id":100},"stats":{"batting":{"atBats":4,"hits":2}}},
				"ID101":{"person":{"id":101},"stats":{"batting":{"atBats":0,"hits":0}}}
			}},"home":{"players":{}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.UTC, fixedClock())
	c.httpClient = srv.Client()
	ctx := context.Background()

	got, err := c.PlayerGameResult(ctx, 100, "2026-06-14")
	require.NoError(t, err)
	assert.True(t, got.Played)
	assert.Equal(t, 4, got.AtBats)
	assert.Equal(t, 2, got.Hits)

	// A roster body with zero at-bats is not a played game.
	benched, err := c.PlayerGameResult(ctx, 101, "2026-06-14")
	require.NoError(t, err)
	assert.False(t, benched.Played)

	// Unknown id: did not play.
	missing, err := c.PlayerGameResult(ctx, 999, "2026-06-14")
	require.NoError(t, err)
	assert.False(t, missing.Played)

	// One box-score fetch covered all three lookups.
	assert.EqualValues(t, 1, boxScoreCalls.Load())
}

func TestTodayMatchups_UnknownPitcherStillYieldsMatchup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/teams":
			w.Write([]byte(`{"teams":[{"id":147,"abbreviation":"NYY"},{"id":111,"abbreviation":"BOS"}]}`))
		case "/schedule":
			// Only the away side has a probable pitcher published.
			w.Write([]byte(`{"dates":[{"games":[{"gamePk":1,
				"teams":{
					"away":{"team":{"id":147},"probablePitcher":{"id":500,"fullName":"Lefty Jones"}},
					"home":{"team":{"id":111}}
				},
				"lineups":{"awayPlayers":[{"id":100},{"id":101}],"homePlayers":[]}}]}]}`))
		case "/people/500/stats":
			w.Write([]byte(`{"stats":[{"splits":[{"stat":{"avg":".270"}}]}]}`))
		case "/people/500":
			w.Write([]byte(`{"people":[{"pitchHand":{"code":"L"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.UTC, fixedClock())
	c.httpClient = srv.Client()

	matchups, lineups, err := c.TodayMatchups(context.Background())
	require.NoError(t, err)
	require.Len(t, matchups, 2)

	// BOS faces the away pitcher.
	bos := matchups["BOS"]
	assert.Equal(t, "Lefty Jones", bos.OpposingPitcher)
	assert.Equal(t, "L", bos.PitcherHand)
	assert.InDelta(t, 0.270, bos.PitcherOBA, 1e-9)
	assert.True(t, bos.IsHome)

	// NYY's opposing pitcher is unpublished: matchup exists with unknowns.
	nyy := matchups["NYY"]
	assert.Equal(t, "", nyy.OpposingPitcher)
	assert.Equal(t, 0.0, nyy.PitcherOBA)
	assert.False(t, nyy.IsHome)

	require.Contains(t, lineups, "NYY")
	assert.Equal(t, 1, lineups["NYY"].Slots[100])
	assert.Equal(t, 2, lineups["NYY"].Slots[101])
	assert.False(t, lineups["BOS"].Confirmed())
}

func TestParseAvg(t *testing.T) {
	assert.Equal(t, 0.271, parseAvg(".271"))
	assert.Equal(t, 0.0, parseAvg(""))
	assert.Equal(t, 0.0, parseAvg("---"))
}
