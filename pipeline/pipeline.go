// Package pipeline orchestrates the full enrichment run: concurrent
// per-source pagination, batched detail fetching, merging, per-item
// geocoding, sorting, and the final bulk upsert. Partial failures are
// absorbed at the unit that produced them; only a run that gets no usable
// source data at all fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"elainedb.dev/geotube/fetch"
	"elainedb.dev/geotube/geocode"
	"elainedb.dev/geotube/metrics"
	"elainedb.dev/geotube/model"
	"elainedb.dev/geotube/storage"
)

// ErrNoSourceData is the total-failure case: every source's pagination
// failed and not a single item was collected.
var ErrNoSourceData = errors.New("no usable data from any source")

const geocodeConcurrency = 4

type SourceLister interface {
	ListPage(ctx context.Context, sourceID, pageToken string) ([]model.Video, string, error)
}

type DetailFetcher interface {
	FetchDetails(ctx context.Context, ids []string) (map[string]fetch.Detail, error)
}

type Pipeline struct {
	sources  []string
	lister   SourceLister
	details  DetailFetcher
	geocoder geocode.Geocoder
	store    storage.VideoStore
	maxPages int
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(sources []string, lister SourceLister, details DetailFetcher, geocoder geocode.Geocoder, store storage.VideoStore, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sources:  sources,
		lister:   lister,
		details:  details,
		geocoder: geocoder,
		store:    store,
		maxPages: fetch.MaxPages,
		now:      time.Now,
		metrics:  m,
		logger:   logger,
	}
}

// Run executes one full refresh and returns the enriched, sorted video set.
// The result is persisted before returning unless the context was canceled,
// in which case nothing is written.
func (p *Pipeline) Run(ctx context.Context) ([]model.Video, error) {
	p.metrics.PipelineRuns.Inc()
	logger := p.logger.With(slog.String("run", uuid.New().String()))
	logger.Info("starting pipeline run", slog.Int("sources", len(p.sources)))

	videos, err := p.listPhase(ctx, logger)
	if err != nil {
		p.metrics.PipelineFailures.Inc()
		return nil, err
	}
	if len(videos) == 0 {
		logger.Info("all sources empty, nothing to enrich")
		return []model.Video{}, nil
	}

	videos, err = p.detailPhase(ctx, logger, videos)
	if err != nil {
		p.metrics.PipelineFailures.Inc()
		return nil, err
	}

	if err := p.geocodePhase(ctx, logger, videos); err != nil {
		p.metrics.PipelineFailures.Inc()
		return nil, err
	}

	sortByPublished(videos)

	if err := ctx.Err(); err != nil {
		// Abandoned runs must not persist a partial result set.
		p.metrics.PipelineFailures.Inc()
		return nil, err
	}
	if err := p.store.UpsertAll(videos, p.now()); err != nil {
		p.metrics.PipelineFailures.Inc()
		return nil, fmt.Errorf("failed to persist videos: %w", err)
	}
	p.metrics.VideosUpserted.Add(float64(len(videos)))

	logger.Info("pipeline run complete", slog.Int("count", len(videos)))

	return videos, nil
}

// listPhase paginates every source concurrently. A source's failure stops
// that source only; what it gathered before failing is kept.
func (p *Pipeline) listPhase(ctx context.Context, logger *slog.Logger) ([]model.Video, error) {
	var (
		mu     sync.Mutex
		all    []model.Video
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, sourceID := range p.sources {
		sourceID := sourceID
		g.Go(func() error {
			videos, err := p.collectSource(gctx, logger, sourceID)
			if err != nil && gctx.Err() != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			}
			all = append(all, videos...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(all) == 0 && failed == len(p.sources) && failed > 0 {
		return nil, ErrNoSourceData
	}
	logger.Info("list phase complete", slog.Int("count", len(all)), slog.Int("failed_sources", failed))

	return all, nil
}

// collectSource pages through one source until the token runs out or the
// page cap is hit. On error the videos gathered so far are returned along
// with the error so the caller can count the source as failed without
// discarding its partial results.
func (p *Pipeline) collectSource(ctx context.Context, logger *slog.Logger, sourceID string) ([]model.Video, error) {
	videos := []model.Video{}
	token := ""
	for page := 1; page <= p.maxPages; page++ {
		pageVideos, nextToken, err := p.lister.ListPage(ctx, sourceID, token)
		if err != nil {
			logger.Error("failed to fetch source page, stopping pagination",
				slog.String("source", sourceID), slog.Int("page", page),
				slog.String("error", err.Error()))
			return videos, err
		}
		videos = append(videos, pageVideos...)
		if nextToken == "" {
			break
		}
		token = nextToken
	}
	logger.Info("fetched source", slog.String("source", sourceID), slog.Int("count", len(videos)))

	return videos, nil
}

// detailPhase overlays the batched detail payloads onto the listed videos.
// A failed detail phase degrades to the unenriched videos.
func (p *Pipeline) detailPhase(ctx context.Context, logger *slog.Logger, videos []model.Video) ([]model.Video, error) {
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}

	details, err := p.details.FetchDetails(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Error("detail phase failed, continuing without enrichment", slog.String("error", err.Error()))
		return videos, nil
	}

	for i := range videos {
		if d, ok := details[videos[i].ID]; ok {
			videos[i] = mergeDetail(videos[i], d)
		}
	}
	logger.Info("detail phase complete", slog.Int("details", len(details)))

	return videos, nil
}

// geocodePhase resolves city and country for every video that carries
// coordinates. Individual lookups fail silently; the phase itself fails
// only on context cancelation.
func (p *Pipeline) geocodePhase(ctx context.Context, logger *slog.Logger, videos []model.Video) error {
	if !p.geocoder.Available() {
		logger.Warn("geocoder unavailable, skipping geocode phase")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(geocodeConcurrency)
	for i := range videos {
		if !videos[i].HasCoordinates() {
			continue
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			loc := p.geocoder.Resolve(gctx, *videos[i].LocationLatitude, *videos[i].LocationLongitude)
			if loc.IsEmpty() {
				p.metrics.GeocodeMisses.Inc()
				return nil
			}
			videos[i].LocationCity = loc.City
			videos[i].LocationCountry = loc.Country
			return nil
		})
	}

	return g.Wait()
}
