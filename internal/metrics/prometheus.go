package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the hit-score pipeline

var (
	// Provider metrics
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbhits_provider_calls_total",
			Help: "Total number of MLB Stats API calls",
		},
		[]string{"endpoint", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlbhits_provider_call_duration_seconds",
			Help:    "Duration of MLB Stats API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Cache metrics
	CacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbhits_cache_refreshes_total",
			Help: "Total number of cache partition refreshes",
		},
		[]string{"partition", "status"},
	)

	CacheFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlbhits_cache_fallbacks_total",
			Help: "Total number of times stale cached data was served after a failed refresh",
		},
	)

	RankedPlayers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mlbhits_ranked_players",
			Help: "Number of players in the most recent ranked table",
		},
	)

	// Ledger metrics
	PredictionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbhits_predictions_recorded_total",
			Help: "Total number of elite predictions written to the ledger",
		},
		[]string{"status"},
	)

	// Reconciliation metrics
	ReconciliationPlayers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbhits_reconciliation_players_total",
			Help: "Total number of ledgered players processed by reconciliation",
		},
		[]string{"outcome"},
	)

	// Integrity metrics
	IntegrityIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbhits_integrity_issues_total",
			Help: "Total number of issues found by integrity sweeps",
		},
		[]string{"severity"},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbhits_backups_total",
			Help: "Total number of ledger snapshots taken",
		},
		[]string{"status"},
	)

	LastSuccessfulRefresh = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mlbhits_last_successful_refresh_timestamp",
			Help: "Timestamp of the last successful refresh per cache partition",
		},
		[]string{"partition"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mlbhits_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)
)

// RecordProviderCall records an upstream API call metric
func RecordProviderCall(endpoint, status string, duration float64) {
	ProviderCallsTotal.WithLabelValues(endpoint, status).Inc()
	ProviderCallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordCacheRefresh records a cache partition refresh attempt
func RecordCacheRefresh(partition, status string) {
	CacheRefreshesTotal.WithLabelValues(partition, status).Inc()
	if status == "success" {
		LastSuccessfulRefresh.WithLabelValues(partition).SetToCurrentTime()
	}
}

// RecordCacheFallback records a stale-data fallback
func RecordCacheFallback() {
	CacheFallbacksTotal.Inc()
}

// RecordPredictions records a ledger write attempt
func RecordPredictions(status string, count int) {
	PredictionsRecorded.WithLabelValues(status).Add(float64(count))
}

// RecordReconciliation records reconciliation outcomes for one date
func RecordReconciliation(kept, removed int) {
	ReconciliationPlayers.WithLabelValues("kept").Add(float64(kept))
	ReconciliationPlayers.WithLabelValues("removed").Add(float64(removed))
}

// RecordIntegrityIssue records one integrity sweep finding
func RecordIntegrityIssue(severity string) {
	IntegrityIssues.WithLabelValues(severity).Inc()
}

// RecordBackup records a snapshot attempt
func RecordBackup(status string) {
	BackupsTotal.WithLabelValues(status).Inc()
}
