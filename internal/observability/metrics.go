package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_clusters"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Archive retrieval metrics.
	FetchRequests   *prometheus.CounterVec // labels: outcome={downloaded,cached,error}
	FetchDuration   prometheus.Histogram
	RecordsLoaded   prometheus.Counter
	RetrievalErrors prometheus.Counter

	// Clustering metrics.
	ClusterRuns     *prometheus.CounterVec   // labels: algorithm={density,brute}
	ClusterDuration *prometheus.HistogramVec // labels: algorithm
	ClusterPoints   prometheus.Histogram
	ClustersFound   prometheus.Histogram

	// Time zone lookup metrics.
	TZLookupRequests    *prometheus.CounterVec // labels: outcome={success,error}
	TZLookupCache       *prometheus.CounterVec // labels: layer={memory,disk}, result={hit,miss}
	TZLookupAPIDuration prometheus.Histogram
	TZLookupEnabled     prometheus.Gauge

	// Sink and lifecycle metrics.
	MessagesProduced prometheus.Counter
	ServiceReady     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Archive file retrievals by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single archive file download.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Event records returned by load queries.",
		}),
		RetrievalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_errors_total",
			Help:      "Archive years that could not be fetched or parsed.",
		}),
		ClusterRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_runs_total",
			Help:      "Clustering runs by algorithm.",
		}, []string{"algorithm"}),
		ClusterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_duration_seconds",
			Help:      "Duration of label assignment by algorithm.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"algorithm"}),
		ClusterPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_points",
			Help:      "Number of discretized points per clustering run.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}),
		ClustersFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clusters_found",
			Help:      "Number of non-noise clusters per clustering run.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		TZLookupRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tz_lookup_requests_total",
			Help:      "Time zone API requests by outcome.",
		}, []string{"outcome"}),
		TZLookupCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tz_lookup_cache_total",
			Help:      "Time zone cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		TZLookupAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tz_lookup_api_duration_seconds",
			Help:      "Time zone API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TZLookupEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tz_lookup_enabled",
			Help:      "1 when the coordinate time zone fallback is enabled, 0 otherwise.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Cluster summaries written to the sink topic.",
		}),
		ServiceReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_ready",
			Help:      "1 once the archive listing has been reached, 0 before.",
		}),
	}

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.RecordsLoaded,
		m.RetrievalErrors,
		m.ClusterRuns,
		m.ClusterDuration,
		m.ClusterPoints,
		m.ClustersFound,
		m.TZLookupRequests,
		m.TZLookupCache,
		m.TZLookupAPIDuration,
		m.TZLookupEnabled,
		m.MessagesProduced,
		m.ServiceReady,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_requests_total"}, []string{"outcome"}),
		FetchDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "fetch_duration_seconds"}),
		RecordsLoaded:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "records_loaded_total"}),
		RetrievalErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "retrieval_errors_total"}),
		ClusterRuns:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cluster_runs_total"}, []string{"algorithm"}),
		ClusterDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "cluster_duration_seconds"}, []string{"algorithm"}),
		ClusterPoints:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "cluster_points"}),
		ClustersFound:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "clusters_found"}),
		TZLookupRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "tz_lookup_requests_total"}, []string{"outcome"}),
		TZLookupCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "tz_lookup_cache_total"}, []string{"layer", "result"}),
		TZLookupAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "tz_lookup_api_duration_seconds"}),
		TZLookupEnabled:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "tz_lookup_enabled"}),
		MessagesProduced:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_produced_total"}),
		ServiceReady:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "service_ready"}),
	}
}
