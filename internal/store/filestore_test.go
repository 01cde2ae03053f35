package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_ReadWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Read(ctx, "predictions/2026-06-15")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := fs.WriteIfAbsent(ctx, "predictions/2026-06-15", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.True(t, created)

	data, err := fs.Read(ctx, "predictions/2026-06-15")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestFileStore_WriteIfAbsentFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	created, err := fs.WriteIfAbsent(ctx, "predictions/2026-06-15", []byte(`{"winner":true}`))
	require.NoError(t, err)
	require.True(t, created)

	created, err = fs.WriteIfAbsent(ctx, "predictions/2026-06-15", []byte(`{"winner":false}`))
	require.NoError(t, err)
	assert.False(t, created)

	data, err := fs.Read(ctx, "predictions/2026-06-15")
	require.NoError(t, err)
	assert.JSONEq(t, `{"winner":true}`, string(data))
}

func TestFileStore_ConcurrentFirstWrite(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := fs.WriteIfAbsent(ctx, "cache/slow", []byte(`{}`))
			assert.NoError(t, err)
			wins <- created
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for created := range wins {
		if created {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestFileStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Overwrite(ctx, "cache/fast", []byte(`{"v":1}`)))
	require.NoError(t, fs.Overwrite(ctx, "cache/fast", []byte(`{"v":2}`)))

	data, err := fs.Read(ctx, "cache/fast")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))
}

func TestFileStore_List(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"predictions/2026-06-15", "predictions/2026-06-16", "toppicks/2026-06-15", "cache/slow"} {
		_, err := fs.WriteIfAbsent(ctx, key, []byte(`{}`))
		require.NoError(t, err)
	}

	keys, err := fs.List(ctx, "predictions/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"predictions/2026-06-15", "predictions/2026-06-16"}, keys)
}

func TestFileStore_RejectsTraversalKeys(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Read(ctx, "../etc/passwd")
	assert.Error(t, err)
	_, err = fs.WriteIfAbsent(ctx, "", []byte(`{}`))
	assert.Error(t, err)
}
