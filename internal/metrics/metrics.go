package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "relay",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ResolveAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "resolve_attempts_total",
		Help:      "Source resolution attempts by strategy and result.",
	}, []string{"strategy", "result"})

	ResolveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "relay",
		Name:      "resolve_duration_seconds",
		Help:      "Source resolution duration in seconds by strategy.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"strategy"})

	StreamSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "stream_sessions_active",
		Help:      "Number of in-flight stream sessions.",
	})

	StreamSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "stream_sessions_total",
		Help:      "Finished stream sessions by source kind and outcome.",
	}, []string{"kind", "outcome"})

	StreamBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "stream_bytes_total",
		Help:      "Bytes relayed to clients by source kind.",
	}, []string{"kind"})

	MaterializationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "materializations_total",
		Help:      "Local cache downloads by result.",
	}, []string{"result"})

	MaterializeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay",
		Name:      "materialize_duration_seconds",
		Help:      "Duration of local cache downloads in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	LocalCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "local_cache_hits_total",
		Help:      "Total number of local media cache hits.",
	})

	LocalCacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "local_cache_size_bytes",
		Help:      "Current total size of the local media cache in bytes.",
	})

	DurationProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "duration_probes_total",
		Help:      "Duration probe invocations by probe and result.",
	}, []string{"probe", "result"})

	DurationCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "duration_cache_hits_total",
		Help:      "Total number of duration cache hits.",
	})

	SearchCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "search_cache_hits_total",
		Help:      "Total number of search cache hits.",
	})

	SearchCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "search_cache_misses_total",
		Help:      "Total number of search cache misses.",
	})

	BrowserSessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay",
		Name:      "browser_session_duration_seconds",
		Help:      "Lifetime of scripted browser sessions in seconds.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60},
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ResolveAttemptsTotal,
		ResolveDuration,
		StreamSessionsActive,
		StreamSessionsTotal,
		StreamBytesTotal,
		MaterializationsTotal,
		MaterializeDuration,
		LocalCacheHitsTotal,
		LocalCacheSizeBytes,
		DurationProbesTotal,
		DurationCacheHitsTotal,
		SearchCacheHitsTotal,
		SearchCacheMissesTotal,
		BrowserSessionDuration,
	)
}
