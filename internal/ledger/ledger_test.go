package ledger

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func tableWith(scores map[int]float64) models.Table {
	t := models.Table{GeneratedAt: time.Now()}
	for id, score := range scores {
		t.Rows = append(t.Rows, models.RankedRow{
			PlayerID:   id,
			PlayerName: "Player " + strconv.Itoa(id),
			Team:       "NYY",
			HitScore:   score,
		})
	}
	t.Sort()
	return t
}

func TestRecordIfAbsent_FiltersAndWritesOnce(t *testing.T) {
	ctx := context.Background()
	l := New(newMemStore(), 2.5)

	table := tableWith(map[int]float64{1: 3.1, 2: 2.5, 3: 2.4})
	count, created, err := l.RecordIfAbsent(ctx, "2026-06-15", table)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, count)

	entries, found, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, entries, 2)
	assert.Equal(t, 3.1, entries["1"].HitScore)
	assert.Equal(t, "2026-06-15", entries["1"].PredictedDate)

	// A later cycle with different scores must not replace the first write.
	count, created, err = l.RecordIfAbsent(ctx, "2026-06-15", tableWith(map[int]float64{9: 4.0}))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, count)

	entries, _, err = l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.NotContains(t, entries, "9")
}

func TestRecordIfAbsent_EmptyEliteSetWritesNothing(t *testing.T) {
	ctx := context.Background()
	l := New(newMemStore(), 2.5)

	count, created, err := l.RecordIfAbsent(ctx, "2026-06-15", tableWith(map[int]float64{1: 1.0}))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, count)

	_, found, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.False(t, found)

	// A later cycle the same day can still land the first real write.
	_, created, err = l.RecordIfAbsent(ctx, "2026-06-15", tableWith(map[int]float64{1: 2.9}))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRecordIfAbsent_DerivesTopPicks(t *testing.T) {
	ctx := context.Background()
	l := New(newMemStore(), 2.5)

	table := tableWith(map[int]float64{1: 3.5, 2: 3.2, 3: 2.9, 4: 2.6})
	_, _, err := l.RecordIfAbsent(ctx, "2026-06-15", table)
	require.NoError(t, err)

	picks, found, err := l.TopPicks(ctx, "2026-06-15")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, picks, 3)
	assert.Equal(t, 1, picks[0].Rank)
	assert.Equal(t, 3.5, picks[0].HitScore)
	assert.Equal(t, 3, picks[2].Rank)
	assert.Equal(t, 2.9, picks[2].HitScore)
}

func TestApplyReconciliation_RepairsTopPicks(t *testing.T) {
	ctx := context.Background()
	l := New(newMemStore(), 2.5)

	table := tableWith(map[int]float64{1: 3.5, 2: 3.2, 3: 2.9, 4: 2.6})
	_, _, err := l.RecordIfAbsent(ctx, "2026-06-15", table)
	require.NoError(t, err)

	entries, _, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)

	// Player 2 (rank 2) never batted; everyone else is verified.
	verified := make(map[string]models.PredictionEntry)
	for id, e := range entries {
		if id == "2" {
			continue
		}
		hits, atBats, gotHit := 1, 4, true
		e.ActualHits, e.ActualAtBats, e.GotHit = &hits, &atBats, &gotHit
		verified[id] = e
	}
	require.NoError(t, l.ApplyReconciliation(ctx, "2026-06-15", verified))

	// Survivors close ranks; player 4 backfills rank 3.
	picks, found, err := l.TopPicks(ctx, "2026-06-15")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, picks, 3)
	assert.Equal(t, 3.5, picks[0].HitScore)
	assert.Equal(t, 2.9, picks[1].HitScore)
	assert.Equal(t, 2.6, picks[2].HitScore)

	day, _, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Len(t, day, 3)
	assert.True(t, day["1"].Reconciled())
}

func TestApplyReconciliation_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	l := New(st, 2.5)

	_, _, err := l.RecordIfAbsent(ctx, "2026-06-15", tableWith(map[int]float64{1: 3.5, 2: 3.2}))
	require.NoError(t, err)

	entries, _, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	verified := map[string]models.PredictionEntry{"1": entries["1"]}

	require.NoError(t, l.ApplyReconciliation(ctx, "2026-06-15", verified))
	firstDay := string(st.docs["predictions/2026-06-15"])
	firstPicks := string(st.docs["toppicks/2026-06-15"])

	require.NoError(t, l.ApplyReconciliation(ctx, "2026-06-15", verified))
	assert.JSONEq(t, firstDay, string(st.docs["predictions/2026-06-15"]))
	assert.JSONEq(t, firstPicks, string(st.docs["toppicks/2026-06-15"]))
}

func TestApplyReconciliation_AllRemoved(t *testing.T) {
	ctx := context.Background()
	l := New(newMemStore(), 2.5)

	_, _, err := l.RecordIfAbsent(ctx, "2026-06-15", tableWith(map[int]float64{1: 3.5}))
	require.NoError(t, err)

	require.NoError(t, l.ApplyReconciliation(ctx, "2026-06-15", map[string]models.PredictionEntry{}))

	// Recorded-but-empty is distinct from never recorded.
	entries, found, err := l.Day(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, entries)

	picks, found, err := l.TopPicks(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, picks)
}

func TestDates(t *testing.T) {
	ctx := context.Background()
	l := New(newMemStore(), 2.5)

	for _, date := range []string{"2026-06-17", "2026-06-15", "2026-06-16"} {
		_, _, err := l.RecordIfAbsent(ctx, date, tableWith(map[int]float64{1: 3.0}))
		require.NoError(t, err)
	}

	dates, err := l.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-06-15", "2026-06-16", "2026-06-17"}, dates)
}
