// Package metrics registers Prometheus counters/gauges for the agent
// runtime, room event bus, and chat service with the default registry;
// no route in this server serves them as a /metrics scrape endpoint.
// Snapshot is the JSON shape returned by the /api/statistics endpoint.
// Wiring follows chidi150c-coinbase's client_golang/promauto usage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_agent_cycles_total",
		Help: "Total agent runtime cycles executed, by trader.",
	}, []string{"trader_id"})

	CycleFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_agent_cycle_failures_total",
		Help: "Total agent runtime cycles that panicked or errored, by trader.",
	}, []string{"trader_id"})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_decisions_total",
		Help: "Total decisions recorded, by trader and action.",
	}, []string{"trader_id", "action"})

	OrdersExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_orders_executed_total",
		Help: "Total executed order legs, by trader and action.",
	}, []string{"trader_id", "action"})

	PositionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roomserver_position_count",
		Help: "Current open position count, by trader.",
	}, []string{"trader_id"})

	PacketBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_packet_builds_total",
		Help: "Total stream packet builds actually executed (not coalesced), by room.",
	}, []string{"room_id"})

	PacketBuildsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_packet_builds_skipped_total",
		Help: "Total stream packet builds skipped because one was already in flight, by room.",
	}, []string{"room_id"})

	SSESubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roomserver_sse_subscribers",
		Help: "Current live SSE subscriber count, by room.",
	}, []string{"room_id"})

	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_chat_messages_total",
		Help: "Total chat messages appended, by room, sender_type and kind.",
	}, []string{"room_id", "sender_type", "kind"})

	ChatRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_chat_rate_limited_total",
		Help: "Total chat posts rejected for exceeding the per-session rate limit, by room.",
	}, []string{"room_id"})

	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_llm_calls_total",
		Help: "Total LLM calls attempted, by caller and outcome.",
	}, []string{"caller", "outcome"})

	BetsPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomserver_bets_placed_total",
		Help: "Total bets placed, by market.",
	}, []string{"market"})
)

// Snapshot is a point-in-time read used by GET /api/statistics, avoiding
// a dependency on the Prometheus registry's text format for callers that
// just want numbers in JSON.
type Snapshot struct {
	CyclesByTrader         map[string]float64 `json:"cycles_by_trader"`
	CycleFailuresByTrader  map[string]float64 `json:"cycle_failures_by_trader"`
	PositionCountByTrader  map[string]int     `json:"position_count_by_trader"`
	TotalPositionCount     int                `json:"total_position_count"`
}
