package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlbhits/pipeline/internal/ledger"
	"mlbhits/pipeline/internal/models"
	"mlbhits/pipeline/internal/store"
)

type memStore struct {
	docs map[string][]byte
}

func newMemStore() *memStore { return &memStore{docs: make(map[string][]byte)} }

func (m *memStore) Read(_ context.Context, key string) ([]byte, error) {
	data, ok := m.docs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (m *memStore) WriteIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	if _, ok := m.docs[key]; ok {
		return false, nil
	}
	m.docs[key] = value
	return true, nil
}

func (m *memStore) Overwrite(_ context.Context, key string, value []byte) error {
	m.docs[key] = value
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// fakeBoxScores maps player id to batting line; missing ids did not play.
type fakeBoxScores struct {
	lines map[int]models.GameResult
	err   error
}

func (f *fakeBoxScores) PlayerGameResult(_ context.Context, playerID int, _ string) (models.GameResult, error) {
	if f.err != nil {
		return models.GameResult{}, f.err
	}
	line, ok := f.lines[playerID]
	if !ok {
		return models.GameResult{Played: false}, nil
	}
	return line, nil
}

func seedLedger(t *testing.T, l *ledger.Ledger, date string, scores map[int]float64) {
	t.Helper()
	table := models.Table{GeneratedAt: time.Now()}
	for id, score := range scores {
		table.Rows = append(table.Rows, models.RankedRow{PlayerID: id, PlayerName: "P", Team: "NYY", HitScore: score})
	}
	table.Sort()
	_, created, err := l.RecordIfAbsent(context.Background(), date, table)
	require.NoError(t, err)
	require.True(t, created)
}

func TestReconcile_KeepsBattersDropsNonPlayers(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(newMemStore(), 2.5)
	seedLedger(t, l, "2026-06-15", map[int]float64{1: 3.5, 2: 3.0, 3: 2.8})

	boxes := &fakeBoxScores{lines: map[int]models.GameResult{
		1: {AtBats: 4, Hits: 2, Played: true},
		2: {AtBats: 3, Hits: 0, Played: true},
		// Player 3 never appeared.
	}}

	report, err := NewService(l, boxes).Reconcile(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 1, report.Removed)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "3", report.Dropped[0].PlayerID)

	entries, found, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, entries, 2)

	require.True(t, entries["1"].Reconciled())
	assert.Equal(t, 2, *entries["1"].ActualHits)
	assert.Equal(t, 4, *entries["1"].ActualAtBats)
	assert.True(t, *entries["1"].GotHit)

	// An 0-for-3 is a verified miss, not a removal.
	assert.Equal(t, 0, *entries["2"].ActualHits)
	assert.False(t, *entries["2"].GotHit)
}

func TestReconcile_ZeroAtBatsIsRemoved(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(newMemStore(), 2.5)
	seedLedger(t, l, "2026-06-15", map[int]float64{1: 3.5})

	// Pinch runner: in the game record but never batted.
	boxes := &fakeBoxScores{lines: map[int]models.GameResult{
		1: {AtBats: 0, Hits: 0, Played: true},
	}}

	report, err := NewService(l, boxes).Reconcile(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Kept)
	assert.Equal(t, 1, report.Removed)
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(newMemStore(), 2.5)
	seedLedger(t, l, "2026-06-15", map[int]float64{1: 3.5, 2: 3.0})

	boxes := &fakeBoxScores{lines: map[int]models.GameResult{
		1: {AtBats: 4, Hits: 1, Played: true},
	}}
	svc := NewService(l, boxes)

	first, err := svc.Reconcile(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Kept)
	assert.Equal(t, 1, first.Removed)

	second, err := svc.Reconcile(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Kept)
	assert.Equal(t, 0, second.Removed)

	entries, _, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReconcile_UnrecordedDateErrors(t *testing.T) {
	l := ledger.New(newMemStore(), 2.5)
	_, err := NewService(l, &fakeBoxScores{}).Reconcile(context.Background(), "2026-06-15")
	assert.Error(t, err)
}

func TestReconcile_LookupFailureKeepsEntryUnverified(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(newMemStore(), 2.5)
	seedLedger(t, l, "2026-06-15", map[int]float64{1: 3.5})

	boxes := &fakeBoxScores{err: errors.New("api down")}
	report, err := NewService(l, boxes).Reconcile(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 0, report.Removed)

	entries, _, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries["1"].Reconciled())
}
