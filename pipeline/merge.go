package pipeline

import (
	"sort"
	"time"

	"elainedb.dev/geotube/fetch"
	"elainedb.dev/geotube/model"
)

// mergeDetail overlays a detail payload onto a listed video. The detail's
// tags win only when present; the recording block replaces date and
// coordinates wholesale when present.
func mergeDetail(v model.Video, d fetch.Detail) model.Video {
	if len(d.Tags) > 0 {
		v.Tags = append([]string{}, d.Tags...)
	}
	if d.Recording != nil {
		v.RecordingDate = d.Recording.Date
		v.LocationLatitude = d.Recording.Latitude
		v.LocationLongitude = d.Recording.Longitude
	}
	return v
}

// sortByPublished stably sorts newest publication first. An unparsable
// publication date sorts as the epoch, i.e. oldest.
func sortByPublished(videos []model.Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		return publishedTime(videos[i]).After(publishedTime(videos[j]))
	})
}

func publishedTime(v model.Video) time.Time {
	t, err := time.Parse(time.RFC3339, v.PublishedAt)
	if err != nil {
		return time.Unix(0, 0)
	}
	return t
}
