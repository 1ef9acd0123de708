package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. All observer
// methods are nil-safe so callers never need to guard.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	occurrencesGenerated prometheus.Counter
	templateSkips        prometheus.Counter
	pausesApproved       prometheus.Counter
	rescheduleExhausted  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	occurrencesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_occurrences_generated_total",
		Help: "Total session occurrences created by the scheduler",
	})

	templateSkips := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_template_entries_skipped_total",
		Help: "Template slots skipped because the weekday or time could not be parsed",
	})

	pausesApproved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_pauses_approved_total",
		Help: "Total approved pause requests",
	})

	rescheduleExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_reschedule_exhausted_total",
		Help: "Pauses left without a replacement because no free slot was found within the search horizon",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		occurrencesGenerated, templateSkips, pausesApproved, rescheduleExhausted, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		occurrencesGenerated: occurrencesGenerated,
		templateSkips:        templateSkips,
		pausesApproved:       pausesApproved,
		rescheduleExhausted:  rescheduleExhausted,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordOccurrencesGenerated counts occurrences written by the scheduler.
func (m *MetricsService) RecordOccurrencesGenerated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.occurrencesGenerated.Add(float64(count))
}

// RecordTemplateEntrySkipped counts an unusable template slot.
func (m *MetricsService) RecordTemplateEntrySkipped() {
	if m == nil {
		return
	}
	m.templateSkips.Inc()
}

// RecordPauseApproved counts an approved pause request.
func (m *MetricsService) RecordPauseApproved() {
	if m == nil {
		return
	}
	m.pausesApproved.Inc()
}

// RecordRescheduleExhausted counts a pause left without a replacement.
func (m *MetricsService) RecordRescheduleExhausted() {
	if m == nil {
		return
	}
	m.rescheduleExhausted.Inc()
}
