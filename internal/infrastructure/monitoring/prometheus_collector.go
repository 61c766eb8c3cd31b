package monitoring

import (
	"time"

	"synccode/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Counters
	sessionsIssuedTotal *prometheus.CounterVec
	invitesIssuedTotal  prometheus.Counter
	executionsTotal     *prometheus.CounterVec
	rateLimitedTotal    prometheus.Counter

	// Histograms
	executionDuration prometheus.Histogram

	// Sync hub gauges
	syncRooms   prometheus.Gauge
	syncClients prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synccode_sessions_issued_total",
			Help: "Total number of sessions issued, by resolved role",
		}, []string{"role"}),

		invitesIssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synccode_invites_issued_total",
			Help: "Total number of interviewer invite tokens issued",
		}),

		executionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synccode_executions_total",
			Help: "Total number of sandbox executions, by language and outcome",
		}, []string{"language", "status"}),

		rateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synccode_rate_limited_total",
			Help: "Total number of requests rejected by the execute rate limiter",
		}),

		executionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synccode_execution_duration_seconds",
			Help:    "Duration of sandbox executions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		syncRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synccode_sync_rooms",
			Help: "Number of rooms materialized by the sync hub",
		}),

		syncClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synccode_sync_clients",
			Help: "Number of clients connected to the sync hub",
		}),
	}
}

func (p *PrometheusCollector) RecordSessionIssued(role domain.Role) {
	p.sessionsIssuedTotal.WithLabelValues(string(role)).Inc()
}

func (p *PrometheusCollector) RecordInviteIssued() {
	p.invitesIssuedTotal.Inc()
}

func (p *PrometheusCollector) RecordExecution(language string, result *domain.ExecutionResult, duration time.Duration) {
	status := "ok"
	if result != nil && result.Error != "" {
		status = "error"
	}
	p.executionsTotal.WithLabelValues(language, status).Inc()
	p.executionDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordRateLimited() {
	p.rateLimitedTotal.Inc()
}

func (p *PrometheusCollector) UpdateSyncGauges(rooms, clients int) {
	p.syncRooms.Set(float64(rooms))
	p.syncClients.Set(float64(clients))
}
