// Package config loads the Config struct every component is constructed
// from. Loading itself is intentionally thin, leaving env/dotenv
// loading to godotenv.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DataMode string

const (
	DataModeLiveFile DataMode = "live_file"
	DataModeReplay   DataMode = "replay"
	DataModeMock     DataMode = "mock"
)

type Config struct {
	// Runtime data source
	RuntimeDataMode  DataMode
	StrictLiveMode   bool
	LiveFramesPathCN string
	LiveFramesPathUS string

	// Agent runtime
	AgentRuntimeCycleMs    int
	AgentDecisionEveryBars int
	ReplaySpeed            float64
	ReplayWarmupBars       int
	ReplayTickMs           int
	ReplayLoop             bool

	AgentSessionGuardEnabled          bool
	AgentSessionGuardCheckMs          int
	AgentSessionGuardRequireFreshLive bool

	// LLM
	OpenAIAPIKey            string
	AgentOpenAIModel        string
	ChatOpenAIModel         string
	AgentLLMTimeoutMs       int
	AgentLLMMaxOutputTokens int
	DevTokenSaver           bool

	// Portfolio / decision context
	CommissionRate                     float64
	PortfolioMaxPositionCount          int
	PortfolioMaxSymbolConcentrationPct float64
	PortfolioMinCashReservePct         float64
	PortfolioTurnoverThrottlePct       float64
	CandidateSymbolLimit               int
	StrictSymbolLoop                   bool

	DataReadinessFreshWarnMs  int64
	DataReadinessFreshErrorMs int64
	DataReadinessMinIntraday  int
	DataReadinessMinDaily     int
	OpeningPhaseMaxLots       int
	OpeningPhaseMaxConfidence float64

	// Room events
	RoomEventsKeepaliveMs int
	RoomEventsPacketMinMs int
	RoomEventsPacketMaxMs int
	RoomEventsBufferSize  int
	RoomEventsBufferTTLMs int

	// Chat
	ChatMaxTextLen            int
	ChatRateLimitPerMin       int
	ChatProactiveViewerTickMs int
	ChatRoomsPerInterval      int
	ChatMinRoomIntervalMs     int
	ChatActivityWindowMs      int
	ChatProactiveIntervalMs   int
	ChatBurstIntervalMs       int
	ChatBurstDurationMs       int
	ChatCooldownMs            int
	ChatMaxConcurrency        int
	ChatPublicPlainReplyRate  float64

	// TTS
	ChatTTSProvider string
	ChatTTSMaxChars int

	// Betting
	BetsHouseEdge float64

	// Control
	ControlAPIToken string

	// Misc
	Port                string
	DataDir             string
	AgentManifestPollMs int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		RuntimeDataMode:  DataMode(getEnv("RUNTIME_DATA_MODE", string(DataModeLiveFile))),
		StrictLiveMode:   getBool("STRICT_LIVE_MODE", false),
		LiveFramesPathCN: getEnv("LIVE_FRAMES_PATH_CN", "data/live/cn.json"),
		LiveFramesPathUS: getEnv("LIVE_FRAMES_PATH_US", "data/live/us.json"),

		AgentRuntimeCycleMs:    getInt("AGENT_RUNTIME_CYCLE_MS", 30000),
		AgentDecisionEveryBars: getInt("AGENT_DECISION_EVERY_BARS", 5),
		ReplaySpeed:            getFloat("REPLAY_SPEED", 1.0),
		ReplayWarmupBars:       getInt("REPLAY_WARMUP_BARS", 180),
		ReplayTickMs:           getInt("REPLAY_TICK_MS", 1000),
		ReplayLoop:             getBool("REPLAY_LOOP", false),

		AgentSessionGuardEnabled:          getBool("AGENT_SESSION_GUARD_ENABLED", true),
		AgentSessionGuardCheckMs:          getInt("AGENT_SESSION_GUARD_CHECK_MS", 15000),
		AgentSessionGuardRequireFreshLive: getBool("AGENT_SESSION_GUARD_REQUIRE_FRESH_LIVE_DATA", true),

		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		AgentOpenAIModel:        getEnv("AGENT_OPENAI_MODEL", "gpt-4o-mini"),
		ChatOpenAIModel:         getEnv("CHAT_OPENAI_MODEL", "gpt-4o-mini"),
		AgentLLMTimeoutMs:       getInt("AGENT_LLM_TIMEOUT_MS", 8000),
		AgentLLMMaxOutputTokens: getInt("AGENT_LLM_MAX_OUTPUT_TOKENS", 400),
		DevTokenSaver:           getBool("DEV_TOKEN_SAVER", false),

		CommissionRate:                     getFloat("AGENT_COMMISSION_RATE", 0.0003),
		PortfolioMaxPositionCount:          getInt("AGENT_PORTFOLIO_MAX_POSITION_COUNT", 8),
		PortfolioMaxSymbolConcentrationPct: getFloat("AGENT_PORTFOLIO_MAX_SYMBOL_CONCENTRATION_PCT", 35),
		PortfolioMinCashReservePct:         getFloat("AGENT_PORTFOLIO_MIN_CASH_RESERVE_PCT", 5),
		PortfolioTurnoverThrottlePct:       getFloat("AGENT_PORTFOLIO_TURNOVER_THROTTLE_PCT", 40),
		CandidateSymbolLimit:               getInt("AGENT_CANDIDATE_SYMBOL_LIMIT", 12),
		StrictSymbolLoop:                   getBool("AGENT_STRICT_SYMBOL_LOOP", false),

		DataReadinessFreshWarnMs:  getInt64("DATA_READINESS_FRESH_WARN_MS", 120000),
		DataReadinessFreshErrorMs: getInt64("DATA_READINESS_FRESH_ERROR_MS", 300000),
		DataReadinessMinIntraday:  getInt("DATA_READINESS_MIN_INTRADAY", 30),
		DataReadinessMinDaily:     getInt("DATA_READINESS_MIN_DAILY", 60),
		OpeningPhaseMaxLots:       getInt("OPENING_PHASE_MAX_LOTS", 1),
		OpeningPhaseMaxConfidence: getFloat("OPENING_PHASE_MAX_CONFIDENCE", 0.6),

		RoomEventsKeepaliveMs: getInt("ROOM_EVENTS_KEEPALIVE_MS", 15000),
		RoomEventsPacketMinMs: getInt("ROOM_EVENTS_PACKET_MIN_MS", 2000),
		RoomEventsPacketMaxMs: getInt("ROOM_EVENTS_PACKET_MAX_MS", 60000),
		RoomEventsBufferSize:  getInt("ROOM_EVENTS_BUFFER_SIZE", 200),
		RoomEventsBufferTTLMs: getInt("ROOM_EVENTS_BUFFER_TTL_MS", 60000),

		ChatMaxTextLen:            getInt("CHAT_MAX_TEXT_LEN", 600),
		ChatRateLimitPerMin:       getInt("CHAT_RATE_LIMIT_PER_MIN", 10),
		ChatProactiveViewerTickMs: getInt("CHAT_PROACTIVE_VIEWER_TICK_MS", 2000),
		ChatRoomsPerInterval:      getInt("CHAT_ROOMS_PER_INTERVAL", 3),
		ChatMinRoomIntervalMs:     getInt("CHAT_MIN_ROOM_INTERVAL_MS", 4000),
		ChatActivityWindowMs:      getInt("CHAT_ACTIVITY_WINDOW_MS", 600000),
		ChatProactiveIntervalMs:   getInt("CHAT_PROACTIVE_INTERVAL_MS", 18000),
		ChatBurstIntervalMs:       getInt("CHAT_BURST_INTERVAL_MS", 9000),
		ChatBurstDurationMs:       getInt("CHAT_BURST_DURATION_MS", 120000),
		ChatCooldownMs:            getInt("CHAT_COOLDOWN_MS", 60000),
		ChatMaxConcurrency:        getInt("CHAT_MAX_CONCURRENCY", 2),
		ChatPublicPlainReplyRate:  getFloat("CHAT_PUBLIC_PLAIN_REPLY_RATE", 0.15),

		ChatTTSProvider: getEnv("CHAT_TTS_PROVIDER", "openai"),
		ChatTTSMaxChars: getInt("CHAT_TTS_MAX_CHARS", 280),

		BetsHouseEdge: getFloat("BETS_HOUSE_EDGE", 0.08),

		ControlAPIToken: getEnv("CONTROL_API_TOKEN", ""),

		Port:                getEnv("PORT", "8080"),
		DataDir:             getEnv("RUNTIME_DATA_DIR", "data"),
		AgentManifestPollMs: getInt("AGENT_MANIFEST_POLL_MS", 30000),
	}, nil
}

func (c *Config) CycleDuration() time.Duration {
	return time.Duration(c.AgentRuntimeCycleMs) * time.Millisecond
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}
