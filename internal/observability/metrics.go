// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Resolver metrics
	ResolverPasses   *prometheus.CounterVec
	ResolverDuration prometheus.Histogram
	TokensSkipped    prometheus.Counter
	TokensOwned      prometheus.Gauge

	// Refresh metrics
	RefreshCycles    *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	TokenRefreshErrs prometheus.Counter
	ArtworkChanges   prometheus.Counter

	// Mint metrics
	MintPhases   *prometheus.CounterVec
	MintDuration prometheus.Histogram

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
	WSLogsReceived prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulResolve prometheus.Gauge
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "timeshift_nft"
	}

	return &Metrics{
		// Resolver metrics
		ResolverPasses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "passes_total",
			Help:      "Total number of ownership resolution passes by status",
		}, []string{"status"}),
		ResolverDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Ownership resolution pass duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		TokensSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "tokens_skipped_total",
			Help:      "Total number of token ids skipped because a read failed",
		}),
		TokensOwned: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "tokens_owned",
			Help:      "Number of tokens in the latest ownership set",
		}),

		// Refresh metrics
		RefreshCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Total number of metadata refresh cycles by status",
		}, []string{"status"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Metadata refresh cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokenRefreshErrs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "token_errors_total",
			Help:      "Total number of per-token refresh failures",
		}),
		ArtworkChanges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "artwork_changes_total",
			Help:      "Total number of observed artwork changes",
		}),

		// Mint metrics
		MintPhases: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "phase_transitions_total",
			Help:      "Total number of mint phase transitions by phase",
		}, []string{"phase"}),
		MintDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "duration_seconds",
			Help:      "Time from mint submission to terminal phase in seconds",
			Buckets:   []float64{1, 5, 10, 15, 30, 60, 120, 300},
		}),

		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ethereum JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Ethereum JSON-RPC calls",
		}, []string{"method"}),
		WSLogsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "ws_logs_received_total",
			Help:      "Total number of contract logs received over WebSocket",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulResolve: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_resolve_timestamp",
			Help:      "Unix timestamp of last successful ownership resolution",
		}),
		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last completed refresh cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordResolverPass records a completed ownership resolution pass.
func RecordResolverPass(seconds float64, owned, skipped int, err error) {
	DefaultMetrics.ResolverPasses.WithLabelValues(statusLabel(err)).Inc()
	DefaultMetrics.ResolverDuration.Observe(seconds)
	if skipped > 0 {
		DefaultMetrics.TokensSkipped.Add(float64(skipped))
	}
	if err == nil {
		DefaultMetrics.TokensOwned.Set(float64(owned))
		DefaultMetrics.LastSuccessfulResolve.Set(float64(time.Now().Unix()))
	}
}

// RecordRefreshCycle records a refresh cycle and its per-token failures.
func RecordRefreshCycle(seconds float64, failed int, err error) {
	DefaultMetrics.RefreshCycles.WithLabelValues(statusLabel(err)).Inc()
	DefaultMetrics.RefreshDuration.Observe(seconds)
	if failed > 0 {
		DefaultMetrics.TokenRefreshErrs.Add(float64(failed))
	}
	if err == nil {
		DefaultMetrics.LastSuccessfulRefresh.Set(float64(time.Now().Unix()))
	}
}

// RecordArtworkChange increments the artwork change counter.
func RecordArtworkChange() {
	DefaultMetrics.ArtworkChanges.Inc()
}

// RecordMintPhase records a mint phase transition.
func RecordMintPhase(phase string) {
	DefaultMetrics.MintPhases.WithLabelValues(phase).Inc()
}

// RecordMintDuration records the submission-to-terminal duration of a mint.
func RecordMintDuration(seconds float64) {
	DefaultMetrics.MintDuration.Observe(seconds)
}

// RecordRPCCall records RPC call latency and failures.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordWSLog increments the WebSocket log counter.
func RecordWSLog() {
	DefaultMetrics.WSLogsReceived.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
