package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the API process registry: HTTP surface
// counters plus the engine observations behind them.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answersTotal       *prometheus.CounterVec
	answerConfidence   *prometheus.HistogramVec
	fusedEvidence      *prometheus.HistogramVec
	generationFallback *prometheus.CounterVec
	engineDuration     *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trupharma",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trupharma",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trupharma",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trupharma",
			Subsystem: "engine",
			Name:      "answers_total",
			Help:      "Total answers by synthesis method and retrieval mode.",
		},
		[]string{"service", "method", "mode"},
	)
	answerConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trupharma",
			Subsystem: "engine",
			Name:      "answer_confidence",
			Help:      "Distribution of answer confidence scores.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	fusedEvidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trupharma",
			Subsystem: "engine",
			Name:      "fused_evidence_chunks",
			Help:      "Distribution of fused evidence chunks per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	generationFallback := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trupharma",
			Subsystem: "engine",
			Name:      "generation_fallbacks_total",
			Help:      "Total answers that fell back from generation to extraction.",
		},
		[]string{"service"},
	)
	engineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trupharma",
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "End-to-end engine duration per question in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answersTotal,
		answerConfidence,
		fusedEvidence,
		generationFallback,
		engineDuration,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		answersTotal:       answersTotal,
		answerConfidence:   answerConfidence,
		fusedEvidence:      fusedEvidence,
		generationFallback: generationFallback,
		engineDuration:     engineDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordAnswer captures one completed engine pass.
func (m *HTTPServerMetrics) RecordAnswer(service, method, mode string, confidence float64, evidenceCount int, duration time.Duration) {
	if method == "" {
		method = "unknown"
	}
	if mode == "" {
		mode = "unknown"
	}
	m.answersTotal.WithLabelValues(service, method, mode).Inc()
	m.answerConfidence.WithLabelValues(service).Observe(confidence)
	m.fusedEvidence.WithLabelValues(service).Observe(float64(evidenceCount))
	m.engineDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordGenerationFallback(service string) {
	m.generationFallback.WithLabelValues(service).Inc()
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
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
