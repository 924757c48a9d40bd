package model

// Video is the canonical enriched entity produced by the pipeline. The list
// phase fills the snippet fields, the merge phase overlays tags and the
// recording block, and the geocoding phase resolves city and country.
//
// LocationLatitude and LocationLongitude are either both set or both nil.
// Optional string fields use the empty string for "absent".
type Video struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	ChannelName       string   `json:"channelName"`
	ChannelID         string   `json:"channelId"`
	PublishedAt       string   `json:"publishedAt"`
	ThumbnailURL      string   `json:"thumbnailUrl"`
	Description       string   `json:"description"`
	Tags              []string `json:"tags"`
	LocationCity      string   `json:"locationCity,omitempty"`
	LocationCountry   string   `json:"locationCountry,omitempty"`
	LocationLatitude  *float64 `json:"locationLatitude,omitempty"`
	LocationLongitude *float64 `json:"locationLongitude,omitempty"`
	RecordingDate     string   `json:"recordingDate,omitempty"`
}

func (v Video) HasCoordinates() bool {
	return v.LocationLatitude != nil && v.LocationLongitude != nil
}

// FilterOptions narrows a listing. An empty field places no constraint on
// that dimension. Both constraints AND together.
type FilterOptions struct {
	ChannelName string
	Country     string
}

func (f FilterOptions) Matches(v Video) bool {
	if f.ChannelName != "" && v.ChannelName != f.ChannelName {
		return false
	}
	if f.Country != "" && v.LocationCountry != f.Country {
		return false
	}
	return true
}

type SortOption string

const (
	SortPublishedNewest SortOption = "publication_date_newest"
	SortPublishedOldest SortOption = "publication_date_oldest"
	SortRecordedNewest  SortOption = "recording_date_newest"
	SortRecordedOldest  SortOption = "recording_date_oldest"
)

// ParseSortOption maps a textual sort name to a SortOption. Unknown or empty
// input falls back to newest publication date first.
func ParseSortOption(s string) SortOption {
	switch SortOption(s) {
	case SortPublishedOldest, SortRecordedNewest, SortRecordedOldest:
		return SortOption(s)
	default:
		return SortPublishedNewest
	}
}
