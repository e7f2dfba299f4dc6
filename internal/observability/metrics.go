package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// --- Core Processing ---
	CoreEventsApplied   *prometheus.CounterVec
	CoreEventsSkipped   *prometheus.CounterVec
	CoreEventsFailed    *prometheus.CounterVec
	CoreEventDuration   *prometheus.HistogramVec
	CoreLastBlock       prometheus.Gauge
	TransactionsCreated prometheus.Counter
	TxMemoHits          *prometheus.CounterVec

	// --- Ledger & Action Log ---
	LedgerTransitions *prometheus.CounterVec
	ActionsRecorded   *prometheus.CounterVec
	CorrelationMisses prometheus.Counter

	// --- Pricing ---
	PriceResolutions *prometheus.CounterVec
	PriceFeedUpdates *prometheus.CounterVec

	// --- Stats Projection ---
	StatsUpdates *prometheus.CounterVec

	// --- Ingestion & Output ---
	IngestMessages *prometheus.CounterVec
	ParseErrors    *prometheus.CounterVec
	PublishDrops   prometheus.Counter
	PublishErrors  prometheus.Counter

	// --- Store ---
	StoreOpDuration *prometheus.HistogramVec
	StoreErrors     *prometheus.CounterVec

	// --- Event Archive ---
	ArchiveBatchDur      prometheus.Histogram
	ArchiveBatchSize     prometheus.Histogram
	ArchiveEventsWritten prometheus.Counter
	ArchiveLastBlock     prometheus.Gauge
	ArchiveErrors        *prometheus.CounterVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	latencyBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
	}

	return &Metrics{
		CoreEventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_core_events_applied_total",
			Help: "Events fully processed by the core",
		}, []string{"event_type"}),

		CoreEventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_core_events_skipped_total",
			Help: "Events skipped as redeliveries at or before the checkpoint",
		}, []string{"event_type"}),

		CoreEventsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_core_events_failed_total",
			Help: "Events that raised a fatal fault",
		}, []string{"event_type", "reason"}),

		CoreEventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_core_event_duration_seconds",
			Help:    "Time to process a single event including store writes",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreLastBlock: factory.NewGauge(prometheus.GaugeOpts{
			Name: "indexer_core_last_block",
			Help: "Block number of the last processed event",
		}),

		TransactionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "indexer_transactions_created_total",
			Help: "Transaction summaries created",
		}),

		TxMemoHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_tx_memo_lookups_total",
			Help: "Transaction memoizer lookups by tier (lru, store, miss)",
		}, []string{"tier"}),

		LedgerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_ledger_transitions_total",
			Help: "Position ledger transitions",
		}, []string{"transition"}),

		ActionsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_actions_recorded_total",
			Help: "Order actions appended to the action log",
		}, []string{"action"}),

		CorrelationMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "indexer_correlation_misses_total",
			Help: "Ledger rows created without a sibling increase record",
		}),

		PriceResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_price_resolutions_total",
			Help: "Price resolutions by fallback tier (oracle, amm, default, unsupported)",
		}, []string{"tier"}),

		PriceFeedUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_price_feed_updates_total",
			Help: "Price snapshots applied by the feed writer",
		}, []string{"source"}),

		StatsUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_stats_updates_total",
			Help: "Stats bucket updates",
		}, []string{"stat", "period"}),

		IngestMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_ingest_messages_total",
			Help: "Messages received from NATS",
		}, []string{"subject"}),

		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_ingest_parse_errors_total",
			Help: "Messages that failed to parse",
		}, []string{"event_type"}),

		PublishDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "indexer_publish_drops_total",
			Help: "Outputs dropped because the publish channel was full",
		}),

		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "indexer_publish_errors_total",
			Help: "Outputs that failed to publish to NATS",
		}),

		StoreOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_store_op_duration_seconds",
			Help:    "Entity store operation latency",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_store_errors_total",
			Help: "Entity store operation errors",
		}, []string{"op"}),

		ArchiveBatchDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexer_archive_batch_duration_seconds",
			Help:    "Time to write one archive batch",
			Buckets: prometheus.DefBuckets,
		}),

		ArchiveBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexer_archive_batch_size",
			Help:    "Events per archive batch",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
		}),

		ArchiveEventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "indexer_archive_events_written_total",
			Help: "Events written to the archive table",
		}),

		ArchiveLastBlock: factory.NewGauge(prometheus.GaugeOpts{
			Name: "indexer_archive_last_block",
			Help: "Block number of the last archived event",
		}),

		ArchiveErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_archive_errors_total",
			Help: "Archive write failures by stage",
		}, []string{"stage"}),

		QueryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_query_requests_total",
			Help: "Query API requests",
		}, []string{"route", "status"}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
