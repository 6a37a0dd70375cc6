package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	mentorReplies    *prometheus.CounterVec
	mentorAttempts   prometheus.Histogram
	phaseTransitions *prometheus.CounterVec
	ledgerPoints     prometheus.Counter

	codegenRequests *prometheus.CounterVec

	transcriptEvents *prometheus.CounterVec

	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry so tests and multiple
// app instances never collide on the default one.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentor_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "mentor_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_llm_requests_total",
			Help: "Upstream LLM attempts by model/endpoint/status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentor_llm_request_duration_seconds",
			Help:    "Upstream LLM attempt latency in seconds by model/endpoint/status.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model", "endpoint", "status"}),
		mentorReplies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_replies_total",
			Help: "Mentor replies by outcome.",
		}, []string{"outcome"}),
		mentorAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mentor_reply_attempts",
			Help:    "Upstream attempts spent per mentor reply.",
			Buckets: []float64{0, 1, 2, 3, 5},
		}),
		phaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_phase_transitions_total",
			Help: "Phase transitions by from/to phase.",
		}, []string{"from", "to"}),
		ledgerPoints: f.NewCounter(prometheus.CounterOpts{
			Name: "mentor_ledger_points_awarded_total",
			Help: "Points awarded across all sessions.",
		}),
		codegenRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_codegen_requests_total",
			Help: "Code generation requests by language/status.",
		}, []string{"language", "status"}),
		transcriptEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_transcript_events_total",
			Help: "Transcript events by result (written/dropped/failed).",
		}, []string{"result"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "mentor_redis_up",
			Help: "1 when the session redis answered the last ping.",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Name: "mentor_redis_ping_seconds",
			Help: "Latency of the last session redis ping.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveLLMRequest records one upstream attempt. status is an HTTP code or a short
// classification such as "empty", "malformed" or "transport".
func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "unknown"
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "0"
	}
	m.llmRequests.WithLabelValues(model, endpoint, status).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, endpoint, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveMentorReply(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.mentorReplies.WithLabelValues(outcome).Inc()
	m.mentorAttempts.Observe(float64(attempts))
}

func (m *Metrics) IncPhaseTransition(from, to string) {
	if m == nil {
		return
	}
	m.phaseTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) AddLedgerPoints(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.ledgerPoints.Add(float64(points))
}

func (m *Metrics) IncCodegen(language string, ok bool) {
	if m == nil {
		return
	}
	m.codegenRequests.WithLabelValues(language, strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) IncTranscript(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.transcriptEvents.WithLabelValues(result).Add(float64(n))
}

// StartRedisCollector pings rdb every interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil && ctx.Err() == nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
