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

const namespace = "portal"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	submissionsCreatedTotal *prometheus.CounterVec
	statusChangesTotal      *prometheus.CounterVec
	documentsUploadedTotal  *prometheus.CounterVec
	uploadBytes             *prometheus.HistogramVec
	bookingsTotal           *prometheus.CounterVec
	loginsTotal             *prometheus.CounterVec
	trafficRejectedTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	submissionsCreatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submissions",
			Name:      "created_total",
			Help:      "Total draft submissions created.",
		},
		[]string{"service"},
	)
	statusChangesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submissions",
			Name:      "status_changes_total",
			Help:      "Total submission status changes by target status.",
		},
		[]string{"service", "status"},
	)
	documentsUploadedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "added_total",
			Help:      "Total documents added by category and kind.",
		},
		[]string{"service", "category", "kind"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "upload_bytes",
			Help:      "Size of accepted file uploads in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
		[]string{"service"},
	)
	bookingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "bookings_total",
			Help:      "Total slot booking attempts by result.",
		},
		[]string{"service", "result"},
	)
	loginsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Total login attempts by realm and result.",
		},
		[]string{"service", "realm", "result"},
	)
	trafficRejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control before reaching a handler.",
		},
		[]string{"service", "reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		submissionsCreatedTotal,
		statusChangesTotal,
		documentsUploadedTotal,
		uploadBytes,
		bookingsTotal,
		loginsTotal,
		trafficRejectedTotal,
	)

	return &HTTPServerMetrics{
		registry:                registry,
		requestTotal:            requestTotal,
		requestDuration:         requestDuration,
		requestInFlight:         requestInFlight,
		submissionsCreatedTotal: submissionsCreatedTotal,
		statusChangesTotal:      statusChangesTotal,
		documentsUploadedTotal:  documentsUploadedTotal,
		uploadBytes:             uploadBytes,
		bookingsTotal:           bookingsTotal,
		loginsTotal:             loginsTotal,
		trafficRejectedTotal:    trafficRejectedTotal,
	}
}

// Handler serves this registry plus any extra gatherers, such as the in-process janitor's.
func (m *HTTPServerMetrics) Handler(extra ...prometheus.Gatherer) http.Handler {
	gatherers := prometheus.Gatherers{m.registry}
	gatherers = append(gatherers, extra...)
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

// Middleware must wrap the ServeMux directly: the path label is the matched route
// pattern, which the mux writes into the request it was handed.
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

		path := routeLabel(r)
		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel keeps label cardinality bounded: slugs and ids never become label values.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

func (m *HTTPServerMetrics) RecordSubmissionCreated(service string) {
	m.submissionsCreatedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordStatusChange(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.statusChangesTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordDocumentAdded(service, category, kind string, size int64) {
	m.documentsUploadedTotal.WithLabelValues(service, category, kind).Inc()
	if size > 0 {
		m.uploadBytes.WithLabelValues(service).Observe(float64(size))
	}
}

func (m *HTTPServerMetrics) RecordBooking(service, result string) {
	m.bookingsTotal.WithLabelValues(service, result).Inc()
}

func (m *HTTPServerMetrics) RecordLogin(service, realm, result string) {
	m.loginsTotal.WithLabelValues(service, realm, result).Inc()
}

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.trafficRejectedTotal.WithLabelValues(service, reason).Inc()
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
