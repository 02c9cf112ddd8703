package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

func snapshotsAt(chapters ...int) []entities.WikiSnapshot {
	out := make([]entities.WikiSnapshot, len(chapters))
	for i, ch := range chapters {
		out[i] = entities.WikiSnapshot{ID: "s", EntryID: "e1", ValidFromChapter: ch}
	}
	return out
}

func TestSnapshots_CachesLoad(t *testing.T) {
	c := NewSnapshots(8)
	var loads int
	load := func(context.Context) ([]entities.WikiSnapshot, error) {
		loads++
		return snapshotsAt(1, 16), nil
	}

	for range 3 {
		got, err := c.GetOrLoad(context.Background(), "e1", load)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.Equal(t, 1, loads)
	assert.Equal(t, int64(2), c.Stats().Hits)
}

func TestSnapshots_LoadErrorNotCached(t *testing.T) {
	c := NewSnapshots(8)
	boom := errors.New("boom")

	_, err := c.GetOrLoad(context.Background(), "e1", func(context.Context) ([]entities.WikiSnapshot, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := c.GetOrLoad(context.Background(), "e1", func(context.Context) ([]entities.WikiSnapshot, error) {
		return snapshotsAt(0), nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSnapshots_Invalidate(t *testing.T) {
	c := NewSnapshots(8)
	current := snapshotsAt(1)
	load := func(context.Context) ([]entities.WikiSnapshot, error) {
		return current, nil
	}

	got, err := c.GetOrLoad(context.Background(), "e1", load)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	current = snapshotsAt(1, 51)
	c.Invalidate("e1")

	got, err = c.GetOrLoad(context.Background(), "e1", load)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSnapshots_FillOverlappingInvalidateIsNotCached(t *testing.T) {
	c := NewSnapshots(8)

	got, err := c.GetOrLoad(context.Background(), "e1", func(context.Context) ([]entities.WikiSnapshot, error) {
		// An append lands while this load is reading.
		c.Invalidate("e1")
		return snapshotsAt(1), nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = c.GetOrLoad(context.Background(), "e1", func(context.Context) ([]entities.WikiSnapshot, error) {
		return snapshotsAt(1, 51), nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSnapshots_ConcurrentMissesShareLoad(t *testing.T) {
	c := NewSnapshots(8)
	var loads atomic.Int32
	loading := make(chan struct{})
	release := make(chan struct{})
	load := func(context.Context) ([]entities.WikiSnapshot, error) {
		if loads.Add(1) == 1 {
			close(loading)
		}
		<-release
		return snapshotsAt(1), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.GetOrLoad(context.Background(), "e1", load)
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}

	<-loading
	// Let the other callers reach the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

func TestSnapshots_CanceledCallerDoesNotFailOthers(t *testing.T) {
	c := NewSnapshots(8)
	started := make(chan struct{})
	release := make(chan struct{})
	var loads atomic.Int32
	load := func(ctx context.Context) ([]entities.WikiSnapshot, error) {
		if loads.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return snapshotsAt(3), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(ctx, "e1", load)
		firstErr <- err
	}()
	<-started

	secondDone := make(chan struct{})
	var second []entities.WikiSnapshot
	var secondErr error
	go func() {
		defer close(secondDone)
		second, secondErr = c.GetOrLoad(context.Background(), "e1", load)
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)
	<-secondDone

	require.NoError(t, secondErr)
	assert.Len(t, second, 1)
	assert.Equal(t, int32(1), loads.Load())

	cached, err := c.GetOrLoad(context.Background(), "e1", load)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}
