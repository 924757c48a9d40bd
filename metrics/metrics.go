// Package metrics defines the Prometheus instrumentation for the pipeline
// and the cache coordinator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PipelineRuns     prometheus.Counter
	PipelineFailures prometheus.Counter
	VideosUpserted   prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	GeocodeMisses    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PipelineRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "geotube_pipeline_runs_total",
			Help: "Number of enrichment pipeline runs started.",
		}),
		PipelineFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "geotube_pipeline_failures_total",
			Help: "Number of enrichment pipeline runs that failed entirely.",
		}),
		VideosUpserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "geotube_videos_upserted_total",
			Help: "Number of video records written to the store.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "geotube_cache_hits_total",
			Help: "Number of getLatest calls served from the store.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "geotube_cache_misses_total",
			Help: "Number of getLatest calls that triggered a pipeline run.",
		}),
		GeocodeMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "geotube_geocode_misses_total",
			Help: "Number of located items the geocoder could not resolve.",
		}),
	}
}

// NewUnregistered returns a Metrics set backed by a throwaway registry,
// for callers that do not expose metrics (tests, library use).
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
