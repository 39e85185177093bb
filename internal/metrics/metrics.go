// Package metrics exports the operator-facing Prometheus instrumentation
// for the game-execution core: tick/action latency, pot distributions,
// wallet bridge health, and event-queue backpressure.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TableTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poker_table_tick_duration_seconds",
		Help:    "Time spent driving a table actor's periodic tick",
		Buckets: prometheus.DefBuckets,
	}, []string{"table_id"})

	ActionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poker_table_action_latency_seconds",
		Help:    "Round-trip latency of JoinTable/Action/LeaveTable messages",
		Buckets: prometheus.DefBuckets,
	}, []string{"message_type"})

	PotDistributionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poker_pot_distributions_total",
		Help: "Total number of DistributePot runs",
	})

	WalletBridgeCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poker_wallet_bridge_call_duration_seconds",
		Help:    "Latency of wallet bridge calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	WalletBridgeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poker_wallet_bridge_errors_total",
		Help: "Total number of wallet bridge call failures",
	}, []string{"operation"})

	EventQueueDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poker_event_queue_drops_total",
		Help: "Total number of events dropped from a table's bounded event queue",
	}, []string{"table_id"})

	RegistryPlayerCountCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poker_registry_player_count_cache_size",
		Help: "Number of tables tracked in the registry player-count cache",
	})

	ActorInboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poker_actor_inbox_depth",
		Help: "Sampled depth of a table actor's inbox channel",
	}, []string{"table_id"})
)

// RecordTickDuration records the time spent driving one table tick.
func RecordTickDuration(tableID string, seconds float64) {
	TableTickDuration.WithLabelValues(tableID).Observe(seconds)
}

// RecordActionLatency records the round-trip time of a table message.
func RecordActionLatency(messageType string, seconds float64) {
	ActionLatency.WithLabelValues(messageType).Observe(seconds)
}

// RecordPotDistribution increments the DistributePot counter.
func RecordPotDistribution() { PotDistributionsTotal.Inc() }

// RecordWalletCall records a wallet bridge call's duration and, if err is
// non-nil, increments the per-operation error counter.
func RecordWalletCall(operation string, seconds float64, err error) {
	WalletBridgeCallDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		WalletBridgeErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// RecordEventDrops adds the delta of newly dropped events for a table.
func RecordEventDrops(tableID string, delta int) {
	if delta <= 0 {
		return
	}
	EventQueueDropsTotal.WithLabelValues(tableID).Add(float64(delta))
}

// SetPlayerCountCacheSize reports the registry cache's current size.
func SetPlayerCountCacheSize(n int) { RegistryPlayerCountCacheSize.Set(float64(n)) }

// SetInboxDepth reports a table actor's sampled inbox depth.
func SetInboxDepth(tableID string, depth int) {
	ActorInboxDepth.WithLabelValues(tableID).Set(float64(depth))
}
