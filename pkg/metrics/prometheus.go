package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Database Metrics
	dbQueryDuration     *prometheus.HistogramVec
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge
	dbQueryErrorsTotal  *prometheus.CounterVec

	// Redis Metrics
	redisCommandsTotal   *prometheus.CounterVec
	redisCommandDuration *prometheus.HistogramVec
	redisErrorsTotal     *prometheus.CounterVec

	// Queue Metrics
	queueJoinsTotal  *prometheus.CounterVec
	queueLeavesTotal prometheus.Counter
	queueWaiting     *prometheus.GaugeVec

	// Session Metrics
	sessionsActive     prometheus.Gauge
	sessionsEndedTotal *prometheus.CounterVec
	sessionDuration    prometheus.Histogram

	// Report Metrics
	reportsTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics on a dedicated registry so
// repeated construction in tests never collides with the default one
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: registry,

		// HTTP Request Metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "db_query_duration_seconds",
				Help:        "Database query latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		dbConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "db_connections_active",
				Help:        "Number of active database connections",
				ConstLabels: labels,
			},
		),
		dbConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "db_connections_idle",
				Help:        "Number of idle database connections",
				ConstLabels: labels,
			},
		),
		dbQueryErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "db_query_errors_total",
				Help:        "Total number of database query errors",
				ConstLabels: labels,
			},
			[]string{"operation", "table"},
		),

		// Redis Metrics
		redisCommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "redis_commands_total",
				Help:        "Total number of Redis commands",
				ConstLabels: labels,
			},
			[]string{"command"},
		),
		redisCommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "redis_command_duration_seconds",
				Help:        "Redis command latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		redisErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "redis_errors_total",
				Help:        "Total number of Redis errors",
				ConstLabels: labels,
			},
			[]string{"command"},
		),

		// Queue Metrics
		queueJoinsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "queue_joins_total",
				Help:        "Total number of queue join attempts",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		queueLeavesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "queue_leaves_total",
				Help:        "Total number of queue leave requests",
				ConstLabels: labels,
			},
		),
		queueWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "queue_waiting",
				Help:        "Number of users currently waiting in the queue",
				ConstLabels: labels,
			},
			[]string{"gender"},
		),

		// Session Metrics
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "sessions_active",
				Help:        "Number of active match sessions",
				ConstLabels: labels,
			},
		),
		sessionsEndedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sessions_ended_total",
				Help:        "Total number of ended match sessions",
				ConstLabels: labels,
			},
			[]string{"trigger"},
		),
		sessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "session_duration_seconds",
				Help:        "Match session duration in seconds",
				ConstLabels: labels,
				Buckets:     []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
			},
		),

		// Report Metrics
		reportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "reports_total",
				Help:        "Total number of user reports filed",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
	}
}

// GetRegistry returns the registry backing these metrics, for the /metrics handler
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// HTTP Metrics Methods

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the number of in-flight HTTP requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the number of in-flight HTTP requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// Database Metrics Methods

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		m.dbQueryErrorsTotal.WithLabelValues(operation, table).Inc()
	}
}

// SetDBConnections sets the number of database connections
func (m *Metrics) SetDBConnections(active, idle int) {
	m.dbConnectionsActive.Set(float64(active))
	m.dbConnectionsIdle.Set(float64(idle))
}

// Redis Metrics Methods

// RecordRedisCommand records a Redis command
func (m *Metrics) RecordRedisCommand(command string, duration time.Duration, err error) {
	m.redisCommandsTotal.WithLabelValues(command).Inc()
	m.redisCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
	if err != nil {
		m.redisErrorsTotal.WithLabelValues(command).Inc()
	}
}

// Queue Metrics Methods

// RecordQueueJoin records a queue join attempt; outcome is one of
// matched, waiting, rejected
func (m *Metrics) RecordQueueJoin(outcome string) {
	m.queueJoinsTotal.WithLabelValues(outcome).Inc()
}

// RecordQueueLeave records a queue leave request
func (m *Metrics) RecordQueueLeave() {
	m.queueLeavesTotal.Inc()
}

// SetQueueWaiting sets the waiting pool size for a gender
func (m *Metrics) SetQueueWaiting(gender string, count int64) {
	m.queueWaiting.WithLabelValues(gender).Set(float64(count))
}

// Session Metrics Methods

// IncrementActiveSessions increments the active session gauge
func (m *Metrics) IncrementActiveSessions() {
	m.sessionsActive.Inc()
}

// DecrementActiveSessions decrements the active session gauge
func (m *Metrics) DecrementActiveSessions() {
	m.sessionsActive.Dec()
}

// RecordSessionEnded records a session ending; trigger is one of
// end, next, report. A zero duration means the caller did not know it
// and keeps the histogram clean.
func (m *Metrics) RecordSessionEnded(trigger string, duration time.Duration) {
	m.sessionsEndedTotal.WithLabelValues(trigger).Inc()
	if duration > 0 {
		m.sessionDuration.Observe(duration.Seconds())
	}
}

// Report Metrics Methods

// RecordReport records a user report
func (m *Metrics) RecordReport(reason string) {
	m.reportsTotal.WithLabelValues(reason).Inc()
}
