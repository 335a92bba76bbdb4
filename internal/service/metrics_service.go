package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/famtime/rewards-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides
// lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	validationDuration prometheus.Observer
	sessionsValidated  *prometheus.CounterVec
	patternsDetected   *prometheus.CounterVec
	pointsAwarded      prometheus.Counter
	pointsSpent        prometheus.Counter
	redemptionOutcomes *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	sessionCount         uint64
	pointsAwardedTotal   uint64
	pointsSpentTotal     uint64
	redemptionCount      uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_duration_seconds",
		Help:    "Duration of cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	validationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_validation_duration_seconds",
		Help:    "Duration of the session validation pipeline",
		Buckets: prometheus.DefBuckets,
	})

	sessionsValidated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_validated_total",
		Help: "Sessions run through the validation pipeline by verdict",
	}, []string{"result"})

	patternsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaming_patterns_detected_total",
		Help: "Gaming patterns detected by validator name",
	}, []string{"validator"})

	pointsAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "points_awarded_total",
		Help: "Points credited to children",
	})

	pointsSpent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "points_spent_total",
		Help: "Points spent on redemptions",
	})

	redemptionOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_outcomes_total",
		Help: "Redemption attempts by economic outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		validationDuration, sessionsValidated, patternsDetected, pointsAwarded, pointsSpent, redemptionOutcomes, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		validationDuration: validationDuration,
		sessionsValidated:  sessionsValidated,
		patternsDetected:   patternsDetected,
		pointsAwarded:      pointsAwarded,
		pointsSpent:        pointsSpent,
		redemptionOutcomes: redemptionOutcomes,
	}
}

// RegisterActiveRedemptionsGauge installs a gauge backed by the provided
// count function. Call once during wiring, before the handler is served.
func (m *MetricsService) RegisterActiveRedemptionsGauge(count func() float64) {
	if m == nil || count == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "active_redemptions",
		Help: "Currently active, unexpired redemptions",
	}, count))
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite records the duration of a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveValidation records one pipeline run and any detected patterns.
func (m *MetricsService) ObserveValidation(result *models.ValidationResult, duration time.Duration) {
	if m == nil || result == nil {
		return
	}
	if m.validationDuration != nil {
		m.validationDuration.Observe(duration.Seconds())
	}
	verdict := "valid"
	if !result.IsValid {
		verdict = "invalid"
	}
	m.sessionsValidated.WithLabelValues(verdict).Inc()
	for _, pattern := range result.Patterns {
		m.patternsDetected.WithLabelValues(pattern.Validator).Inc()
	}
	atomic.AddUint64(&m.sessionCount, 1)
}

// RecordPointsAwarded tracks credited points.
func (m *MetricsService) RecordPointsAwarded(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.Add(float64(points))
	atomic.AddUint64(&m.pointsAwardedTotal, uint64(points))
}

// RecordRedemption tracks a redemption attempt by outcome.
func (m *MetricsService) RecordRedemption(outcome models.RedemptionOutcome, pointsSpent int) {
	if m == nil {
		return
	}
	m.redemptionOutcomes.WithLabelValues(string(outcome)).Inc()
	atomic.AddUint64(&m.redemptionCount, 1)
	if outcome == models.OutcomeSuccess && pointsSpent > 0 {
		m.pointsSpent.Add(float64(pointsSpent))
		atomic.AddUint64(&m.pointsSpentTotal, uint64(pointsSpent))
	}
}

// Snapshot returns aggregated metrics suitable for status endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SessionsValidated:        atomic.LoadUint64(&m.sessionCount),
		PointsAwarded:            atomic.LoadUint64(&m.pointsAwardedTotal),
		PointsSpent:              atomic.LoadUint64(&m.pointsSpentTotal),
		RedemptionAttempts:       atomic.LoadUint64(&m.redemptionCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
