package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestHasCoordinates(t *testing.T) {
	assert.False(t, Video{}.HasCoordinates())
	assert.False(t, Video{LocationLatitude: ptr(1)}.HasCoordinates())
	assert.True(t, Video{LocationLatitude: ptr(1), LocationLongitude: ptr(2)}.HasCoordinates())
}

func TestFilterMatches(t *testing.T) {
	video := Video{ChannelName: "Channel A", LocationCountry: "Portugal"}

	for _, tc := range []struct {
		name   string
		filter FilterOptions
		want   bool
	}{
		{name: "unconstrained", filter: FilterOptions{}, want: true},
		{name: "channelMatch", filter: FilterOptions{ChannelName: "Channel A"}, want: true},
		{name: "channelMismatch", filter: FilterOptions{ChannelName: "Channel B"}, want: false},
		{name: "countryMatch", filter: FilterOptions{Country: "Portugal"}, want: true},
		{name: "countryMismatch", filter: FilterOptions{Country: "Spain"}, want: false},
		{name: "bothMustMatch", filter: FilterOptions{ChannelName: "Channel A", Country: "Spain"}, want: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(video))
		})
	}
}

func TestParseSortOption(t *testing.T) {
	assert.Equal(t, SortPublishedNewest, ParseSortOption(""))
	assert.Equal(t, SortPublishedNewest, ParseSortOption("bogus"))
	assert.Equal(t, SortPublishedNewest, ParseSortOption(string(SortPublishedNewest)))
	assert.Equal(t, SortPublishedOldest, ParseSortOption("publication_date_oldest"))
	assert.Equal(t, SortRecordedNewest, ParseSortOption("recording_date_newest"))
	assert.Equal(t, SortRecordedOldest, ParseSortOption("recording_date_oldest"))
}

func TestVideoSetStates(t *testing.T) {
	assert.Equal(t, PhaseLoading, LoadingState().Phase)
	assert.Equal(t, PhaseEmpty, EmptyState().Phase)
	assert.Equal(t, PhaseError, ErrorState("boom").Phase)
	assert.Equal(t, "boom", ErrorState("boom").Message)

	empty := SuccessState(nil, 0)
	assert.Equal(t, PhaseEmpty, empty.Phase)

	populated := SuccessState([]Video{{ID: "v1"}}, 5)
	assert.Equal(t, PhaseSuccess, populated.Phase)
	assert.Equal(t, 5, populated.TotalCount)
}
