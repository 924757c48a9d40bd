// Package repository fronts the video store for consumers. It owns the
// cache-or-fetch decision (a strict TTL gate, no refresh-ahead) and the
// read-only query surface: filtered and sorted listings, facet discovery,
// and watch subscriptions that re-emit a full snapshot on every store
// change.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"elainedb.dev/geotube/metrics"
	"elainedb.dev/geotube/model"
	"elainedb.dev/geotube/storage"
)

const DefaultTTL = 24 * time.Hour

// Runner is the enrichment pipeline as the coordinator sees it: one full
// refresh that persists its own output.
type Runner interface {
	Run(ctx context.Context) ([]model.Video, error)
}

type Repository struct {
	store      storage.VideoStore
	pipeline   Runner
	ttl        time.Duration
	retention  time.Duration
	now        func() time.Time
	refreshing atomic.Bool
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option tweaks a Repository. The zero configuration uses the 24h TTL,
// keeps records forever, and reads the wall clock.
type Option func(*Repository)

func WithTTL(ttl time.Duration) Option {
	return func(r *Repository) { r.ttl = ttl }
}

func WithRetention(retention time.Duration) Option {
	return func(r *Repository) { r.retention = retention }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func New(store storage.VideoStore, pipeline Runner, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		pipeline: pipeline,
		ttl:      DefaultTTL,
		now:      time.Now,
		metrics:  m,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetLatest serves the video set from the store when any record is fresher
// than now-TTL and runs the pipeline otherwise. A non-empty fresh cache
// always short-circuits the network path.
func (r *Repository) GetLatest(ctx context.Context) ([]model.Video, error) {
	threshold := r.now().Add(-r.ttl)
	cached, err := r.store.FindNewerThan(threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	if len(cached) > 0 {
		r.metrics.CacheHits.Inc()
		r.logger.Info("serving cached videos", slog.Int("count", len(cached)))
		return cached, nil
	}

	r.metrics.CacheMisses.Inc()
	r.logger.Info("cache expired or empty, running pipeline")

	return r.Refresh(ctx)
}

// Refresh runs the pipeline unconditionally, ignoring cache state. After a
// successful run, records older than the retention horizon are pruned.
func (r *Repository) Refresh(ctx context.Context) ([]model.Video, error) {
	r.refreshing.Store(true)
	defer r.refreshing.Store(false)

	videos, err := r.pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}

	if r.retention > 0 {
		if err := r.store.DeleteOlderThan(r.now().Add(-r.retention)); err != nil {
			r.logger.Error("failed to prune old records", slog.String("error", err.Error()))
		}
	}

	return videos, nil
}

// List returns one filtered, sorted snapshot.
func (r *Repository) List(filter model.FilterOptions, sort model.SortOption) ([]model.Video, error) {
	return r.store.List(filter, sort)
}

func (r *Repository) DistinctChannels() ([]string, error) {
	return r.store.DistinctChannels()
}

func (r *Repository) DistinctCountries() ([]string, error) {
	return r.store.DistinctCountries()
}

func (r *Repository) TotalCount() (int, error) {
	return r.store.Count()
}

// State reports the current phase of the video set: loading while a refresh
// is in flight, otherwise empty, success, or error from a full read.
func (r *Repository) State(filter model.FilterOptions, sort model.SortOption) model.VideoSetState {
	if r.refreshing.Load() {
		return model.LoadingState()
	}
	return r.snapshot(filter, sort)
}

// Watch emits a full snapshot immediately and again after every store
// change, until the context is done. The channel is closed on return.
func (r *Repository) Watch(ctx context.Context, filter model.FilterOptions, sort model.SortOption) <-chan model.VideoSetState {
	out := make(chan model.VideoSetState, 1)
	changes, cancel := r.store.Subscribe()

	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case out <- r.snapshot(filter, sort):
			case <-ctx.Done():
				return
			}
			select {
			case <-changes:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (r *Repository) snapshot(filter model.FilterOptions, sort model.SortOption) model.VideoSetState {
	videos, err := r.store.List(filter, sort)
	if err != nil {
		return model.ErrorState(err.Error())
	}
	total, err := r.store.Count()
	if err != nil {
		return model.ErrorState(err.Error())
	}
	return model.SuccessState(videos, total)
}
