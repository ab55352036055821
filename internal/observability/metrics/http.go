package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	returnsTotal        *prometheus.CounterVec
	returnDuration      *prometheus.HistogramVec
	documentsTotal      *prometheus.CounterVec
	documentsPerRequest *prometheus.HistogramVec
	returnsInFlight     prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxagent",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxagent",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taxagent",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	returnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxagent",
			Subsystem: "pipeline",
			Name:      "returns_total",
			Help:      "Total processed return requests by status.",
		},
		[]string{"service", "status"},
	)
	returnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxagent",
			Subsystem: "pipeline",
			Name:      "return_duration_seconds",
			Help:      "End-to-end return processing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxagent",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Total processed documents by status and document type.",
		},
		[]string{"service", "status", "document_type"},
	)
	documentsPerRequest := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxagent",
			Subsystem: "pipeline",
			Name:      "documents_per_request",
			Help:      "Distribution of uploaded documents per return request.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"service"},
	)
	returnsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taxagent",
			Subsystem: "pipeline",
			Name:      "returns_in_flight",
			Help:      "Number of return requests currently in the pipeline.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		returnsTotal,
		returnDuration,
		documentsTotal,
		documentsPerRequest,
		returnsInFlight,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		returnsTotal:        returnsTotal,
		returnDuration:      returnDuration,
		documentsTotal:      documentsTotal,
		documentsPerRequest: documentsPerRequest,
		returnsInFlight:     returnsInFlight,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
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
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
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
