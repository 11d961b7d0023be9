package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	indexTotal      *prometheus.CounterVec
	indexDuration   *prometheus.HistogramVec
	indexInFlight   prometheus.Gauge
	indexedSegments *prometheus.HistogramVec
	queueLag        *prometheus.HistogramVec
	embedCacheTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Subsystem: "worker",
			Name:      "trial_index_total",
			Help:      "Total indexed trials by status.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "worker",
			Name:      "trial_index_duration_seconds",
			Help:      "Trial indexing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trialmatch",
			Subsystem: "worker",
			Name:      "trial_index_in_flight",
			Help:      "Number of in-flight trial indexing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	indexedSegments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "worker",
			Name:      "trial_segments",
			Help:      "Distribution of segments produced per indexed trial.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between trial registration and indexing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	embedCacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Subsystem: "embedding",
			Name:      "cache_requests_total",
			Help:      "Embedding cache lookups by result.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"result"},
	)

	registry.MustRegister(indexTotal, indexDuration, indexInFlight, indexedSegments, queueLag, embedCacheTotal)

	return &WorkerMetrics{
		registry:        registry,
		indexTotal:      indexTotal,
		indexDuration:   indexDuration,
		indexInFlight:   indexInFlight,
		indexedSegments: indexedSegments,
		queueLag:        queueLag,
		embedCacheTotal: embedCacheTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartTrial() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishTrial(service string, duration time.Duration, err error) {
	m.indexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.indexTotal.WithLabelValues(service, status).Inc()
	m.indexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveSegments(service string, segments int) {
	if segments <= 0 {
		return
	}
	m.indexedSegments.WithLabelValues(service).Observe(float64(segments))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) EmbedCacheCounter() *prometheus.CounterVec {
	return m.embedCacheTotal
}
