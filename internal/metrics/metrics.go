// Package metrics exposes Prometheus collectors for the reserve tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotRuns counts daily snapshot runs by outcome
	SnapshotRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_snapshot_runs_total",
			Help: "Total number of daily snapshot runs",
		},
		[]string{"outcome"},
	)

	// SnapshotRunDuration tracks wall time of a daily run
	SnapshotRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reserves_snapshot_run_duration_seconds",
			Help:    "Daily snapshot run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		},
	)

	// CompanyReconciliations counts per-company reconciliations by trigger and outcome
	CompanyReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_company_reconciliations_total",
			Help: "Total number of per-company snapshot reconciliations",
		},
		[]string{"trigger", "outcome"},
	)

	// AggregateReserve is the total ETH held by eligible companies in the latest aggregate
	AggregateReserve = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reserves_aggregate_eth",
			Help: "Total ETH reserve of eligible companies in the latest aggregate snapshot",
		},
	)

	// ETHPrice is the price used by the latest aggregate
	ETHPrice = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reserves_eth_price_usd",
			Help: "ETH/USD price used by the latest aggregate snapshot",
		},
	)

	// ProviderRequests counts external provider calls
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_provider_requests_total",
			Help: "Total number of external data provider requests",
		},
		[]string{"provider", "status"},
	)

	// ProviderLatency tracks external provider call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reserves_provider_latency_seconds",
			Help:    "External data provider latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// CacheLookups counts market data cache lookups
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_cache_lookups_total",
			Help: "Total number of market data cache lookups",
		},
		[]string{"kind", "result"},
	)

	// AlertsSent counts change alert deliveries
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_alerts_total",
			Help: "Total number of reserve change alerts",
		},
		[]string{"status"},
	)

	// WalletRefreshes counts wallet balance refreshes
	WalletRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_wallet_refreshes_total",
			Help: "Total number of wallet balance refreshes",
		},
		[]string{"status"},
	)

	// PurchasesRecorded counts recorded purchases by type
	PurchasesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_purchases_total",
			Help: "Total number of recorded purchases",
		},
		[]string{"type"},
	)

	// HTTPRequests counts API requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reserves_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks API request latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reserves_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
