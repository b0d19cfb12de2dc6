package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed tracks blocks walked by the forward sync, by result
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addrindex_blocks_processed_total",
			Help: "Total number of blocks attempted by the forward sync",
		},
		[]string{"result"},
	)

	// BlockDuration tracks the time to resolve and persist one block
	BlockDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addrindex_block_duration_seconds",
			Help:    "Time to resolve and persist one block",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"result"},
	)

	// CheckpointBlock tracks the last synced block
	CheckpointBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "addrindex_checkpoint_block",
			Help: "Last block fully attempted by the forward sync",
		},
	)

	// SyncProgress tracks the fraction of the current range already walked
	SyncProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "addrindex_sync_progress_ratio",
			Help: "Fraction of the current sync range already walked",
		},
	)

	// AddressesUpserted tracks address records written
	AddressesUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "addrindex_addresses_upserted_total",
			Help: "Total number of address records inserted or updated",
		},
	)

	// RetriesTotal tracks failed block retries by result
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addrindex_retries_total",
			Help: "Total number of failed block retries",
		},
		[]string{"result"},
	)

	// SourceRequestsTotal tracks requests to external sources
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addrindex_source_requests_total",
			Help: "Total number of requests to external sources",
		},
		[]string{"provider", "method", "status"},
	)

	// SourceLatency tracks external source latency
	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addrindex_source_latency_seconds",
			Help:    "External source request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// SourceAvailable is 1 while a provider's recent error rate is acceptable
	SourceAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "addrindex_source_available",
			Help: "Whether the external source is considered available (1) or not (0)",
		},
		[]string{"provider"},
	)

	// SourceErrorRate tracks the rolling error rate of a provider
	SourceErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "addrindex_source_error_rate",
			Help: "Rolling error rate of the external source",
		},
		[]string{"provider"},
	)

	// DBConnectionPoolUsage tracks the percentage of open connections in use
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "addrindex_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the pool limit",
		},
	)
)
