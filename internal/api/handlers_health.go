package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"uptime_ms": s.clk.Now().Sub(s.startedAt).Milliseconds(),
		"data_mode": s.cfg.RuntimeDataMode,
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		body["cpu_pct"] = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		body["mem_used_pct"] = vm.UsedPercent
		body["mem_used_bytes"] = vm.Used
	}

	c.JSON(http.StatusOK, body)
}

// handleConfig exposes a fixed subset of Config for dashboards: the data
// mode and the cadence/threshold knobs listed below, with secrets
// (OPENAI_API_KEY, CONTROL_API_TOKEN) excluded. Config fields not listed
// here are not exposed.
func (s *Server) handleConfig(c *gin.Context) {
	cfg := s.cfg
	ok(c, gin.H{
		"runtime_data_mode":         cfg.RuntimeDataMode,
		"strict_live_mode":          cfg.StrictLiveMode,
		"agent_runtime_cycle_ms":    cfg.AgentRuntimeCycleMs,
		"agent_decision_every_bars": cfg.AgentDecisionEveryBars,
		"replay_speed":              cfg.ReplaySpeed,
		"chat_max_text_len":         cfg.ChatMaxTextLen,
		"chat_rate_limit_per_min":   cfg.ChatRateLimitPerMin,
		"room_events_keepalive_ms":  cfg.RoomEventsKeepaliveMs,
		"room_events_packet_min_ms": cfg.RoomEventsPacketMinMs,
		"room_events_packet_max_ms": cfg.RoomEventsPacketMaxMs,
		"chat_tts_provider":         cfg.ChatTTSProvider,
		"bets_house_edge":           cfg.BetsHouseEdge,
	})
}
