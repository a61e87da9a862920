// Package metrics holds the Prometheus collectors shared by the viewport engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geoview"

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Completed coalesced fetches by outcome.",
		},
		[]string{"outcome"},
	)

	fetchRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Bounds and key updates received by fetch coalescers.",
		},
	)

	fetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of external fetch calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
	)

	bufferRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_refresh_total",
			Help:      "Viewport buffer refresh decisions by result.",
		},
		[]string{"result"},
	)

	hitTestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hittest_total",
			Help:      "Hit tests by result.",
		},
		[]string{"result"},
	)

	layerFeaturesIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layer_features_indexed",
			Help:      "Features in the most recently built layer index.",
		},
	)

	layerFeaturesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_features_skipped_total",
			Help:      "Features left out of a layer index because their bounds could not be computed.",
		},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_results_total",
			Help:      "Resource cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

// Fetch outcomes
const (
	OutcomeOK    = "ok"
	OutcomeSkip  = "skip"
	OutcomeError = "error"
)

func ObserveFetch(outcome string, d time.Duration) {
	fetchTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.Observe(d.Seconds())
}

func IncFetchRequest() {
	fetchRequestsTotal.Inc()
}

func ObserveBufferRefresh(rerender bool) {
	if rerender {
		bufferRefreshTotal.WithLabelValues("rerender").Inc()
		return
	}
	bufferRefreshTotal.WithLabelValues("reuse").Inc()
}

func ObserveHitTest(hit bool) {
	if hit {
		hitTestTotal.WithLabelValues("hit").Inc()
		return
	}
	hitTestTotal.WithLabelValues("miss").Inc()
}

func SetLayerFeaturesIndexed(n int) {
	layerFeaturesIndexed.Set(float64(n))
}

func AddLayerFeaturesSkipped(n int) {
	if n > 0 {
		layerFeaturesSkipped.Add(float64(n))
	}
}

func IncCacheHit()    { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss()   { cacheResults.WithLabelValues("miss").Inc() }
func IncCacheMerged() { cacheResults.WithLabelValues("merged").Inc() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
