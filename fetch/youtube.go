// Package fetch talks to the upstream content API. It issues paginated
// "list items by source" requests and batched "item detail" requests, and
// holds no local state beyond a client and a rate limiter.
package fetch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/youtube/v3"

	"elainedb.dev/geotube/model"
)

const (
	// PageSize is the upstream maximum for a single list request.
	PageSize = 50
	// MaxIDsPerRequest is the upstream cap on comma-joined ids in one
	// detail request.
	MaxIDsPerRequest = 50
	// MaxPages bounds pagination per source so a source that always
	// returns a next-page token cannot run away.
	MaxPages = 5

	requestsPerSecond = 5
)

// Detail is the enrichment payload for one video id.
type Detail struct {
	Tags      []string
	Recording *Recording
}

// Recording mirrors the upstream recording-details block. Latitude and
// Longitude are either both set or both nil.
type Recording struct {
	Date      string
	Latitude  *float64
	Longitude *float64
}

type Youtube struct {
	client  *youtube.Service
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewYoutube(client *youtube.Service, logger *slog.Logger) *Youtube {
	return &Youtube{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:  logger,
	}
}

// ListPage fetches one page of videos for a channel, newest first. It
// returns the page's videos and the next-page token, empty when the channel
// is exhausted.
func (y *Youtube) ListPage(ctx context.Context, channelID, pageToken string) ([]model.Video, string, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	call := y.client.Search.
		List([]string{"snippet"}).
		MaxResults(PageSize).
		Type("video").
		Order("date").
		ChannelId(channelID).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	response, err := call.Do()
	if err != nil {
		return nil, "", err
	}

	videos := make([]model.Video, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		videos = append(videos, model.Video{
			ID:           item.Id.VideoId,
			Title:        item.Snippet.Title,
			ChannelName:  item.Snippet.ChannelTitle,
			ChannelID:    item.Snippet.ChannelId,
			PublishedAt:  item.Snippet.PublishedAt,
			ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails),
			Description:  item.Snippet.Description,
			Tags:         []string{},
		})
	}

	return videos, response.NextPageToken, nil
}

// FetchDetails fetches the detail payloads for the given ids, chunked into
// batches of at most MaxIDsPerRequest. Batches run concurrently and fail
// independently: a failed batch contributes no entries and is logged, the
// rest continue. The returned error is non-nil only when the context is
// done.
func (y *Youtube) FetchDetails(ctx context.Context, ids []string) (map[string]Detail, error) {
	details := make(map[string]Detail, len(ids))
	if len(ids) == 0 {
		return details, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range chunk(ids, MaxIDsPerRequest) {
		batch := batch
		g.Go(func() error {
			mds, err := y.fetchBatch(gctx, batch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				y.logger.Error("failed to fetch detail batch",
					slog.Int("size", len(batch)), slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			for id, md := range mds {
				details[id] = md
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return details, nil
}

func (y *Youtube) fetchBatch(ctx context.Context, ids []string) (map[string]Detail, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := y.client.Videos.
		List([]string{"snippet", "recordingDetails"}).
		Id(strings.Join(ids, ",")).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return nil, err
	}

	mds := make(map[string]Detail, len(response.Items))
	for _, item := range response.Items {
		md := Detail{}
		if item.Snippet != nil {
			md.Tags = item.Snippet.Tags
		}
		if item.RecordingDetails != nil {
			rec := &Recording{Date: item.RecordingDetails.RecordingDate}
			if loc := item.RecordingDetails.Location; loc != nil {
				lat, lon := loc.Latitude, loc.Longitude
				rec.Latitude = &lat
				rec.Longitude = &lon
			}
			md.Recording = rec
		}
		mds[item.Id] = md
	}

	return mds, nil
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	switch {
	case t.High != nil && t.High.Url != "":
		return t.High.Url
	case t.Medium != nil && t.Medium.Url != "":
		return t.Medium.Url
	case t.Default != nil && t.Default.Url != "":
		return t.Default.Url
	}
	return ""
}

func chunk(ids []string, size int) [][]string {
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		batches = append(batches, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		batches = append(batches, ids)
	}
	return batches
}
