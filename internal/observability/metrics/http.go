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

	briefInvocationsTotal *prometheus.CounterVec
	briefDuration         *prometheus.HistogramVec
	briefSections         *prometheus.HistogramVec
	reportExportsTotal    *prometheus.CounterVec
	evidenceUploadsTotal  *prometheus.CounterVec
	evidenceUploadBytes   *prometheus.HistogramVec
	loginsTotal           *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siw",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siw",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siw",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	briefInvocationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siw",
			Subsystem: "brief",
			Name:      "invocations_total",
			Help:      "Total synthesizer invocations.",
		},
		[]string{"service", "status"},
	)
	briefDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siw",
			Subsystem: "brief",
			Name:      "invocation_duration_seconds",
			Help:      "Synthesizer invocation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	briefSections := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siw",
			Subsystem: "brief",
			Name:      "report_sections",
			Help:      "Distribution of report section counts after an invocation.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	reportExportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siw",
			Subsystem: "report",
			Name:      "exports_total",
			Help:      "Total report exports by format.",
		},
		[]string{"service", "format"},
	)
	evidenceUploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siw",
			Subsystem: "evidence",
			Name:      "uploads_total",
			Help:      "Total evidence uploads accepted.",
		},
		[]string{"service"},
	)
	evidenceUploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siw",
			Subsystem: "evidence",
			Name:      "upload_bytes",
			Help:      "Distribution of uploaded evidence sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)
	loginsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siw",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Total login attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		briefInvocationsTotal,
		briefDuration,
		briefSections,
		reportExportsTotal,
		evidenceUploadsTotal,
		evidenceUploadBytes,
		loginsTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		briefInvocationsTotal: briefInvocationsTotal,
		briefDuration:         briefDuration,
		briefSections:         briefSections,
		reportExportsTotal:    reportExportsTotal,
		evidenceUploadsTotal:  evidenceUploadsTotal,
		evidenceUploadBytes:   evidenceUploadBytes,
		loginsTotal:           loginsTotal,
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

// normalizePath collapses identifier segments so label cardinality
// stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/tasks/"):
		rest := strings.TrimPrefix(path, "/v1/tasks/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return "/v1/tasks/{task_id}/" + rest[idx+1:]
		}
		return "/v1/tasks/{task_id}"
	case strings.HasPrefix(path, "/v1/documents/"):
		rest := strings.TrimPrefix(path, "/v1/documents/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return "/v1/documents/{document_id}/" + rest[idx+1:]
		}
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordBriefInvocation(service string, err error, sections int, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.briefInvocationsTotal.WithLabelValues(service, status).Inc()
	m.briefDuration.WithLabelValues(service).Observe(duration.Seconds())
	if err == nil && sections > 0 {
		m.briefSections.WithLabelValues(service).Observe(float64(sections))
	}
}

func (m *HTTPServerMetrics) RecordReportExport(service, format string) {
	if format == "" {
		format = "unknown"
	}
	m.reportExportsTotal.WithLabelValues(service, format).Inc()
}

func (m *HTTPServerMetrics) RecordEvidenceUpload(service string, size int64) {
	m.evidenceUploadsTotal.WithLabelValues(service).Inc()
	if size > 0 {
		m.evidenceUploadBytes.WithLabelValues(service).Observe(float64(size))
	}
}

func (m *HTTPServerMetrics) RecordLogin(service string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.loginsTotal.WithLabelValues(service, outcome).Inc()
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
