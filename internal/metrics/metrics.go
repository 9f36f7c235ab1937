package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HammerMeetNail/socialreact/internal/database"
	"github.com/HammerMeetNail/socialreact/internal/models"
	"github.com/HammerMeetNail/socialreact/internal/services"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	// Reaction transactions
	ReactionTxTotal    *prometheus.CounterVec
	ReactionTxDuration *prometheus.HistogramVec
	ReactionRollbacks  *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Rate limiting
	RateLimitExceededTotal *prometheus.CounterVec
	RateLimitErrorsTotal   prometheus.Counter
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ReactionTxTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaction_transactions_total",
				Help: "Reaction transactions by target, operation and outcome",
			},
			[]string{"target", "op", "outcome"},
		),
		ReactionTxDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reaction_transaction_duration_seconds",
				Help:    "Reaction transaction latency in seconds, including lock waits",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"target", "op"},
		),
		ReactionRollbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaction_rollbacks_total",
				Help: "Reaction transactions rolled back, by the stage that failed",
			},
			[]string{"target", "op", "stage"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		RateLimitExceededTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_exceeded_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"key_prefix"},
		),
		RateLimitErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_errors_total",
				Help: "Rate limiter backend errors",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveReactionTx implements services.ReactionObserver.
func (m *Metrics) ObserveReactionTx(target models.TargetKind, op string, outcome services.TxOutcome, stage services.TxStage, elapsed time.Duration) {
	m.ReactionTxTotal.WithLabelValues(string(target), op, string(outcome)).Inc()
	m.ReactionTxDuration.WithLabelValues(string(target), op).Observe(elapsed.Seconds())
	if outcome == services.OutcomeRolledBack {
		m.ReactionRollbacks.WithLabelValues(string(target), op, string(stage)).Inc()
	}
}

// ObserveHTTP records one finished request. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimitExceeded(keyPrefix string) {
	m.RateLimitExceededTotal.WithLabelValues(keyPrefix).Inc()
}

func (m *Metrics) RateLimitError() {
	m.RateLimitErrorsTotal.Inc()
}

// ObservePool exports gauges for a connection pool. stats is called on every
// scrape. Registering the same pool name twice panics.
func (m *Metrics) ObservePool(name string, stats func() database.PoolStats) {
	gauge := func(metric, help string, value func(database.PoolStats) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        metric,
				Help:        help,
				ConstLabels: prometheus.Labels{"pool": name},
			},
			func() float64 { return float64(value(stats())) },
		)
	}

	m.registry.MustRegister(
		gauge("pool_connections_total", "Open connections in the pool",
			func(s database.PoolStats) int64 { return s.Total }),
		gauge("pool_connections_idle", "Idle connections in the pool",
			func(s database.PoolStats) int64 { return s.Idle }),
		gauge("pool_connections_in_use", "Connections currently checked out",
			func(s database.PoolStats) int64 { return s.InUse }),
		gauge("pool_connection_waits", "Acquires that had to wait for a connection",
			func(s database.PoolStats) int64 { return s.Waits }),
	)
}

var _ services.ReactionObserver = (*Metrics)(nil)
