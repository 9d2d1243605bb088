package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/middleware"
)

// NewEngine builds the gin.Engine and registers every endpoint. CORS is
// wide open (this is a read-mostly public dashboard API; the mutating
// surface is gated separately by the control token).
func (s *Server) NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization", "X-Control-Token", "Last-Event-ID"},
		MaxAge:          12 * time.Hour,
	}))
	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r *gin.Engine) {
	control := middleware.ControlToken(s.cfg.ControlAPIToken)
	chatLimit := middleware.ChatRateLimit(s.cfg.ChatRateLimitPerMin*4, s.cfg.ChatRateLimitPerMin)

	r.GET("/health", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	r.GET("/api/traders", s.handleTraders)
	r.GET("/api/competition", s.handleCompetition)
	r.GET("/api/top-traders", s.handleTopTraders)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/account", s.handleAccount)
	r.GET("/api/positions", s.handlePositions)
	r.GET("/api/positions/history", s.handlePositionsHistory)
	r.GET("/api/symbols", s.handleSymbols)
	r.GET("/api/equity-history", s.handleEquityHistory)
	r.POST("/api/equity-history-batch", s.handleEquityHistoryBatch)

	r.GET("/api/decisions/latest", s.handleDecisionsLatest)
	r.GET("/api/agents/:id/decision-audit/latest", s.handleDecisionAuditLatest)
	r.GET("/api/statistics", s.handleStatistics)
	r.GET("/api/agent/market-context", s.handleMarketContextDebug)

	r.GET("/api/market/frames", s.handleMarketFrames)
	r.GET("/api/klines", s.handleKlines)
	r.GET("/api/market/stream", s.handleMarketStream)

	r.GET("/api/agent/runtime/status", s.handleAgentRuntimeStatus)
	r.POST("/api/agent/runtime/control", control, s.handleAgentRuntimeControl)
	r.POST("/api/agent/runtime/kill-switch", control, s.handleKillSwitchControl)
	r.GET("/api/replay/runtime/status", s.handleReplayRuntimeStatus)
	r.POST("/api/replay/runtime/control", control, s.handleReplayRuntimeControl)
	r.GET("/api/ops/live-preflight", s.handleLivePreflight)

	r.GET("/api/chat/rooms/:id/public", s.handleChatPublic)
	r.GET("/api/chat/rooms/:id/private", s.handleChatPrivate)
	r.POST("/api/chat/session/bootstrap", s.handleChatBootstrap)
	r.POST("/api/chat/rooms/:id/messages", chatLimit, s.handleChatPostMessage)
	r.GET("/api/chat/tts/config", s.handleTTSConfig)
	r.GET("/api/chat/rooms/:id/tts/profile", s.handleTTSProfileGet)
	r.POST("/api/chat/rooms/:id/tts/profile", control, s.handleTTSProfilePut)
	r.DELETE("/api/chat/rooms/:id/tts/profile", control, s.handleTTSProfileDelete)
	r.POST("/api/chat/rooms/:id/tts", s.handleTTSSpeak)

	r.GET("/api/rooms/:id/stream-packet", s.handleRoomStreamPacket)
	r.GET("/api/rooms/:id/events", s.handleRoomEvents)

	r.GET("/api/bets/market", s.handleBetsMarket)
	r.GET("/api/bets/credits", s.handleBetsCredits)
	r.POST("/api/bets/place", s.handleBetsPlace)

	r.GET("/api/agents/available", s.handleAgentsAvailable)
	r.GET("/api/agents/registered", s.handleAgentsRegistered)
	r.GET("/api/agents/:id/assets/:file", s.handleAgentAsset)
	r.POST("/api/agents/:id/register", control, s.handleAgentRegister)
	r.POST("/api/agents/:id/unregister", control, s.handleAgentUnregister)
	r.POST("/api/agents/:id/start", control, s.handleAgentStart)
	r.POST("/api/agents/:id/stop", control, s.handleAgentStop)

	r.POST("/api/dev/factory-reset", control, s.handleFactoryReset)
	r.POST("/api/dev/reset-agent/:id", control, s.handleResetAgent)
}
