package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elainedb.dev/geotube/metrics"
	"elainedb.dev/geotube/model"
	"elainedb.dev/geotube/storage"
)

type fakeRunner struct {
	store  storage.VideoStore
	videos []model.Video
	err    error
	runs   int
}

func (f *fakeRunner) Run(_ context.Context) ([]model.Video, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	if f.store != nil {
		if err := f.store.UpsertAll(f.videos, time.Now()); err != nil {
			return nil, err
		}
	}
	return f.videos, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(f float64) *float64 { return &f }

func sampleVideos() []model.Video {
	return []model.Video{
		{
			ID:                "vid-1",
			Title:             "Street food tour",
			ChannelName:       "Channel A",
			PublishedAt:       "2024-05-01T10:00:00Z",
			Tags:              []string{"food"},
			LocationCity:      "Bangkok",
			LocationCountry:   "Thailand",
			LocationLatitude:  ptr(13.7563),
			LocationLongitude: ptr(100.5018),
		},
		{
			ID:          "vid-2",
			Title:       "Night walk",
			ChannelName: "Channel B",
			PublishedAt: "2024-06-01T10:00:00Z",
			Tags:        []string{},
		},
	}
}

func TestGetLatestServesFreshCache(t *testing.T) {
	store := storage.NewMemory()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	// Cached 23 hours ago: inside the 24h window.
	require.NoError(t, store.UpsertAll(sampleVideos(), now.Add(-23*time.Hour)))

	runner := &fakeRunner{}
	repo := New(store, runner, metrics.NewUnregistered(), testLogger(),
		WithClock(func() time.Time { return now }))

	videos, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Len(t, videos, 2)
	assert.Zero(t, runner.runs)
}

func TestGetLatestRefreshesExpiredCache(t *testing.T) {
	store := storage.NewMemory()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	// Cached 25 hours ago: past the 24h window.
	require.NoError(t, store.UpsertAll(sampleVideos(), now.Add(-25*time.Hour)))

	runner := &fakeRunner{store: store, videos: sampleVideos()}
	repo := New(store, runner, metrics.NewUnregistered(), testLogger(),
		WithClock(func() time.Time { return now }))

	videos, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Len(t, videos, 2)
	assert.Equal(t, 1, runner.runs)
}

func TestGetLatestEmptyStoreRunsPipeline(t *testing.T) {
	store := storage.NewMemory()
	runner := &fakeRunner{store: store, videos: sampleVideos()}
	repo := New(store, runner, metrics.NewUnregistered(), testLogger())

	videos, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Len(t, videos, 2)
	assert.Equal(t, 1, runner.runs)
}

func TestGetLatestPipelineFailureSurfaces(t *testing.T) {
	store := storage.NewMemory()
	runner := &fakeRunner{err: errors.New("all sources down")}
	repo := New(store, runner, metrics.NewUnregistered(), testLogger())

	_, err := repo.GetLatest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all sources down")
}

func TestRefreshIgnoresCacheState(t *testing.T) {
	store := storage.NewMemory()
	now := time.Now()
	require.NoError(t, store.UpsertAll(sampleVideos(), now))

	runner := &fakeRunner{store: store, videos: sampleVideos()}
	repo := New(store, runner, metrics.NewUnregistered(), testLogger())

	_, err := repo.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runs)
}

func TestRefreshPrunesOldRecords(t *testing.T) {
	store := storage.NewMemory()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	stale := []model.Video{{ID: "stale-1", PublishedAt: "2024-01-01T00:00:00Z", Tags: []string{}}}
	require.NoError(t, store.UpsertAll(stale, now.Add(-10*24*time.Hour)))

	runner := &fakeRunner{store: store, videos: sampleVideos()}
	repo := New(store, runner, metrics.NewUnregistered(), testLogger(),
		WithClock(func() time.Time { return now }),
		WithRetention(7*24*time.Hour))

	_, err := repo.Refresh(context.Background())
	require.NoError(t, err)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	all, err := store.List(model.FilterOptions{}, model.SortPublishedNewest)
	require.NoError(t, err)
	for _, v := range all {
		assert.NotEqual(t, "stale-1", v.ID)
	}
}

func TestCustomTTL(t *testing.T) {
	store := storage.NewMemory()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertAll(sampleVideos(), now.Add(-2*time.Hour)))

	runner := &fakeRunner{store: store, videos: sampleVideos()}
	repo := New(store, runner, metrics.NewUnregistered(), testLogger(),
		WithClock(func() time.Time { return now }),
		WithTTL(time.Hour))

	_, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runs)
}

func TestStateEmptyVersusSuccess(t *testing.T) {
	store := storage.NewMemory()
	repo := New(store, &fakeRunner{}, metrics.NewUnregistered(), testLogger())

	state := repo.State(model.FilterOptions{}, model.SortPublishedNewest)
	assert.Equal(t, model.PhaseEmpty, state.Phase)

	require.NoError(t, store.UpsertAll(sampleVideos(), time.Now()))

	state = repo.State(model.FilterOptions{}, model.SortPublishedNewest)
	assert.Equal(t, model.PhaseSuccess, state.Phase)
	assert.Len(t, state.Videos, 2)
	assert.Equal(t, 2, state.TotalCount)
}

func TestStateFilteredEmptyKeepsTotal(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.UpsertAll(sampleVideos(), time.Now()))
	repo := New(store, &fakeRunner{}, metrics.NewUnregistered(), testLogger())

	state := repo.State(model.FilterOptions{ChannelName: "Nobody"}, model.SortPublishedNewest)
	assert.Equal(t, model.PhaseEmpty, state.Phase)
}

func TestFacetPassthrough(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.UpsertAll(sampleVideos(), time.Now()))
	repo := New(store, &fakeRunner{}, metrics.NewUnregistered(), testLogger())

	channels, err := repo.DistinctChannels()
	require.NoError(t, err)
	assert.Equal(t, []string{"Channel A", "Channel B"}, channels)

	countries, err := repo.DistinctCountries()
	require.NoError(t, err)
	assert.Equal(t, []string{"Thailand"}, countries)

	total, err := repo.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestWatchEmitsOnStoreChange(t *testing.T) {
	store := storage.NewMemory()
	repo := New(store, &fakeRunner{}, metrics.NewUnregistered(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watch := repo.Watch(ctx, model.FilterOptions{}, model.SortPublishedNewest)

	select {
	case state := <-watch:
		assert.Equal(t, model.PhaseEmpty, state.Phase)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, store.UpsertAll(sampleVideos(), time.Now()))

	select {
	case state := <-watch:
		assert.Equal(t, model.PhaseSuccess, state.Phase)
		assert.Len(t, state.Videos, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after store change")
	}

	cancel()
	select {
	case _, open := <-watch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
