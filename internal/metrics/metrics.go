package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Throughput metrics - Track ingestion volume
var (
	DigestsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laminar_digests_fetched_total",
		Help: "Total number of digests fetched from RPC",
	})

	DigestsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laminar_digests_inserted_total",
		Help: "Total number of digests inserted into the store",
	})

	DigestsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laminar_digests_processed_total",
		Help: "Total number of digests classified and marked processed by the puller",
	})

	BodiesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laminar_bodies_persisted_total",
			Help: "Total number of fetched transaction bodies classified, by relevance; only of_interest=true bodies are persisted",
		},
		[]string{"of_interest"},
	)

	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laminar_promotions_total",
		Help: "Total number of support-to-leader promotions",
	})
)

// Performance metrics - Track processing speed and latency
var (
	LeaderIterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "laminar_leader_iteration_duration_seconds",
		Help:    "Time taken to complete one leader loop iteration",
		Buckets: prometheus.DefBuckets,
	})

	SupportDrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "laminar_support_drain_duration_seconds",
		Help:    "Time taken to complete one reconciliation drain step",
		Buckets: prometheus.DefBuckets,
	})

	PullerIterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "laminar_puller_iteration_duration_seconds",
		Help:    "Time taken to complete one puller claim-fetch-classify-commit cycle",
		Buckets: prometheus.DefBuckets,
	})

	RPCCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "laminar_rpc_call_duration_seconds",
			Help:    "Time taken by a single (possibly retried) RPC adapter call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// State metrics - Track current system state
var (
	NextFetchSeqnum = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "laminar_next_fetch_seqnum",
		Help: "Next seqnum this node will fetch from RPC",
	})

	IsLeader = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "laminar_is_leader",
		Help: "1 if this node is currently the leader, 0 otherwise",
	})

	PendingSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "laminar_pending_set_size",
		Help: "Number of digests in the support reconciliation engine's pending set",
	})

	RPCOnlySetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "laminar_rpc_only_set_size",
		Help: "Number of digests observed on RPC but not yet confirmed in the store",
	})

	DBOnlySetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "laminar_db_only_set_size",
		Help: "Number of digests observed in the store but not yet confirmed on RPC",
	})
)

// Error metrics - Track failures
var (
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laminar_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"component"},
	)
)
