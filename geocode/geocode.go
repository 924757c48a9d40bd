// Package geocode resolves GPS coordinates to human-readable place names.
// Resolution is best effort: an unavailable resolver, a lookup error, or a
// coordinate with no match all yield an empty Location, never an error, so
// geocoding can never abort a pipeline run.
package geocode

import "context"

// Location is the resolved place for a coordinate pair. Empty fields mean
// the resolver had no answer for that component.
type Location struct {
	City    string
	Country string
}

func (l Location) IsEmpty() bool {
	return l.City == "" && l.Country == ""
}

// Geocoder is the single calling convention all resolver backends collapse
// to: an availability probe and a context-bound direct call.
type Geocoder interface {
	Available() bool
	Resolve(ctx context.Context, lat, lon float64) Location
}

// Unavailable is the null resolver used when no geocoding capability is
// configured.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Resolve(context.Context, float64, float64) Location { return Location{} }
