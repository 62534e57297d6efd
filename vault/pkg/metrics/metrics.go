package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feevault_build_info",
			Help: "Build information of the fee vault service",
		},
		[]string{"version", "commit", "date"},
	)

	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feevault_operations_total",
			Help: "Total number of vault operations",
		},
		[]string{"vault", "operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feevault_operation_duration_seconds",
			Help:    "Duration of vault operations, including storage and pool calls",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"vault", "operation"},
	)

	// Vault gauges are set from the state committed by the last successful mutation.
	BRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feevault_b_rate",
			Help: "Last observed b-rate of the vault",
		},
		[]string{"vault"},
	)

	TotalShares = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feevault_total_shares",
			Help: "Total shares issued by the vault",
		},
		[]string{"vault"},
	)

	TotalBTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feevault_total_b_tokens",
			Help: "Total b-tokens owned by depositors",
		},
		[]string{"vault"},
	)

	AdminBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feevault_admin_balance_b_tokens",
			Help: "Admin b-token balance, negative when the admin owes depositors",
		},
		[]string{"vault"},
	)

	FeesAccruedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feevault_fee_refreshes_total",
			Help: "Total number of refreshes by fee outcome",
		},
		[]string{"vault", "outcome"},
	)

	PoolRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feevault_pool_requests_total",
			Help: "Total number of lending pool gateway requests",
		},
		[]string{"method", "status"},
	)

	PoolRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feevault_pool_request_duration_seconds",
			Help:    "Duration of lending pool gateway requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
		[]string{"method"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feevault_events_published_total",
			Help: "Total number of vault events handed to sinks",
		},
		[]string{"sink", "status"},
	)
)
