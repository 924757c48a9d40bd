package storage

import (
	"sort"
	"sync"
	"time"

	"elainedb.dev/geotube/model"
)

// Memory is an in-process VideoStore used in tests and when no database is
// configured. Semantics match the Postgres implementation: upsert-by-id,
// empty-string optionals treated as absent, recording-date sorts put
// missing values last.
type Memory struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	notifier
}

type memoryRecord struct {
	video    model.Video
	cachedAt time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]memoryRecord)}
}

func (m *Memory) UpsertAll(videos []model.Video, cachedAt time.Time) error {
	m.mu.Lock()
	for _, v := range videos {
		m.records[v.ID] = memoryRecord{video: copyVideo(v), cachedAt: cachedAt}
	}
	m.mu.Unlock()
	m.notify()

	return nil
}

func (m *Memory) FindNewerThan(threshold time.Time) ([]model.Video, error) {
	m.mu.RLock()
	videos := []model.Video{}
	for _, rec := range m.records {
		if rec.cachedAt.After(threshold) {
			videos = append(videos, copyVideo(rec.video))
		}
	}
	m.mu.RUnlock()

	sortVideos(videos, model.SortPublishedNewest)

	return videos, nil
}

func (m *Memory) List(filter model.FilterOptions, sortBy model.SortOption) ([]model.Video, error) {
	m.mu.RLock()
	videos := []model.Video{}
	for _, rec := range m.records {
		if filter.Matches(rec.video) {
			videos = append(videos, copyVideo(rec.video))
		}
	}
	m.mu.RUnlock()

	sortVideos(videos, sortBy)

	return videos, nil
}

func (m *Memory) DistinctChannels() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.distinct(func(v model.Video) string { return v.ChannelName }, false), nil
}

func (m *Memory) DistinctCountries() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.distinct(func(v model.Video) string { return v.LocationCountry }, true), nil
}

func (m *Memory) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records), nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
	m.notify()

	return nil
}

func (m *Memory) DeleteAll() error {
	m.mu.Lock()
	m.records = make(map[string]memoryRecord)
	m.mu.Unlock()
	m.notify()

	return nil
}

func (m *Memory) DeleteOlderThan(threshold time.Time) error {
	m.mu.Lock()
	for id, rec := range m.records {
		if rec.cachedAt.Before(threshold) {
			delete(m.records, id)
		}
	}
	m.mu.Unlock()
	m.notify()

	return nil
}

func (m *Memory) distinct(value func(model.Video) string, skipBlank bool) []string {
	seen := map[string]bool{}
	values := []string{}
	for _, rec := range m.records {
		v := value(rec.video)
		if skipBlank && v == "" {
			continue
		}
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Strings(values)

	return values
}

// sortVideos applies the same total order the SQL store produces. Dates are
// compared in their RFC 3339 textual form, id breaks ties.
func sortVideos(videos []model.Video, sortBy model.SortOption) {
	sort.SliceStable(videos, func(i, j int) bool {
		a, b := videos[i], videos[j]
		switch sortBy {
		case model.SortPublishedOldest:
			if a.PublishedAt != b.PublishedAt {
				return a.PublishedAt < b.PublishedAt
			}
		case model.SortRecordedNewest:
			if less, decided := recordingLess(a, b, true); decided {
				return less
			}
		case model.SortRecordedOldest:
			if less, decided := recordingLess(a, b, false); decided {
				return less
			}
		default:
			if a.PublishedAt != b.PublishedAt {
				return a.PublishedAt > b.PublishedAt
			}
		}
		return a.ID < b.ID
	})
}

// recordingLess orders by recording date with missing values last in both
// directions. The second return is false when the two records tie.
func recordingLess(a, b model.Video, newestFirst bool) (bool, bool) {
	switch {
	case a.RecordingDate == "" && b.RecordingDate == "":
		return false, false
	case a.RecordingDate == "":
		return false, true
	case b.RecordingDate == "":
		return true, true
	case a.RecordingDate == b.RecordingDate:
		return false, false
	case newestFirst:
		return a.RecordingDate > b.RecordingDate, true
	default:
		return a.RecordingDate < b.RecordingDate, true
	}
}

func copyVideo(v model.Video) model.Video {
	out := v
	out.Tags = append([]string{}, v.Tags...)
	if v.HasCoordinates() {
		lat, lon := *v.LocationLatitude, *v.LocationLongitude
		out.LocationLatitude = &lat
		out.LocationLongitude = &lon
	}
	return out
}
