package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal          *prometheus.CounterVec
	searchNoResultsTotal *prometheus.CounterVec
	searchRetrievedSize  *prometheus.HistogramVec
	searchDuration       *prometheus.HistogramVec
	evaluationPatients   *prometheus.HistogramVec
	evaluationEligible   *prometheus.HistogramVec
	evaluationDuration   *prometheus.HistogramVec
	feasibilityTierTotal *prometheus.CounterVec
	patientMatchTotal    *prometheus.CounterVec
	embedCacheTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trialmatch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total successful corpus searches.",
		},
		[]string{"service", "endpoint"},
	)
	searchNoResultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Subsystem: "search",
			Name:      "no_results_total",
			Help:      "Total searches returning no trials.",
		},
		[]string{"service", "endpoint"},
	)
	searchRetrievedSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "search",
			Name:      "retrieved_trials",
			Help:      "Distribution of trials returned per successful search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Corpus search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	evaluationPatients := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "evaluation",
			Name:      "patients",
			Help:      "Distribution of patients evaluated per request.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"service", "endpoint"},
	)
	evaluationEligible := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "evaluation",
			Name:      "eligible_patients",
			Help:      "Distribution of eligible patients per request.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"service", "endpoint"},
	)
	evaluationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Population evaluation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	feasibilityTierTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Subsystem: "feasibility",
			Name:      "tier_total",
			Help:      "Total feasibility reports by tier.",
		},
		[]string{"service", "endpoint", "tier"},
	)
	patientMatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Subsystem: "matching",
			Name:      "patient_match_total",
			Help:      "Total patient-to-trial match requests by status.",
		},
		[]string{"service", "status"},
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

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchNoResultsTotal,
		searchRetrievedSize,
		searchDuration,
		evaluationPatients,
		evaluationEligible,
		evaluationDuration,
		feasibilityTierTotal,
		patientMatchTotal,
		embedCacheTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchTotal:          searchTotal,
		searchNoResultsTotal: searchNoResultsTotal,
		searchRetrievedSize:  searchRetrievedSize,
		searchDuration:       searchDuration,
		evaluationPatients:   evaluationPatients,
		evaluationEligible:   evaluationEligible,
		evaluationDuration:   evaluationDuration,
		feasibilityTierTotal: feasibilityTierTotal,
		patientMatchTotal:    patientMatchTotal,
		embedCacheTotal:      embedCacheTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/trials/"):
		return "/v1/trials/{trial_id}"
	case strings.HasPrefix(path, "/v1/patients/"):
		return "/v1/patients/{patient_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearchObservation(service, endpoint string, trialCount int, duration time.Duration) {
	m.searchTotal.WithLabelValues(service, endpoint).Inc()
	m.searchRetrievedSize.WithLabelValues(service, endpoint).Observe(float64(trialCount))
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if trialCount == 0 {
		m.searchNoResultsTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordEvaluation(service, endpoint string, evaluated, eligible int, duration time.Duration) {
	m.evaluationPatients.WithLabelValues(service, endpoint).Observe(float64(evaluated))
	m.evaluationEligible.WithLabelValues(service, endpoint).Observe(float64(eligible))
	m.evaluationDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordFeasibilityTier(service, endpoint, tier string) {
	if tier == "" {
		tier = "unknown"
	}
	m.feasibilityTierTotal.WithLabelValues(service, endpoint, tier).Inc()
}

func (m *HTTPServerMetrics) RecordPatientMatch(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.patientMatchTotal.WithLabelValues(service, status).Inc()
}

// EmbedCacheCounter is handed to the embedding cache decorator; label
// "result" takes "hit" or "miss".
func (m *HTTPServerMetrics) EmbedCacheCounter() *prometheus.CounterVec {
	return m.embedCacheTotal
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
