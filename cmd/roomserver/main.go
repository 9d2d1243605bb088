package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/onlytrade/room-server/internal/agentmemory"
	"github.com/onlytrade/room-server/internal/api"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/betting"
	"github.com/onlytrade/room-server/internal/chatservice"
	"github.com/onlytrade/room-server/internal/clock"
	"github.com/onlytrade/room-server/internal/common"
	"github.com/onlytrade/room-server/internal/config"
	"github.com/onlytrade/room-server/internal/decisionlog"
	"github.com/onlytrade/room-server/internal/llm"
	"github.com/onlytrade/room-server/internal/llmdecider"
	"github.com/onlytrade/room-server/internal/marketdata"
	"github.com/onlytrade/room-server/internal/tts"
)

// exitCode maps a startup failure to one of the machine-readable reasons
// ops tooling greps for, rather than a bare stack trace.
func exitCode(reason string, err error) {
	log.Printf("startup failed: %s: %v", reason, err)
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		exitCode("config_load_failed", err)
	}

	if cfg.StrictLiveMode && cfg.RuntimeDataMode != config.DataModeLiveFile {
		exitCode("strict_live_mode_requires_runtime_data_mode_live_file", fmt.Errorf("runtime_data_mode=%s", cfg.RuntimeDataMode))
	}

	appLog := applog.New("roomserver")
	auditLog := applog.NewAuditLog(cfg.DataDir + "/audit/control.log")
	clk := clock.Real{}

	adapter, replay := buildMarketAdapter(cfg, clk)

	var openai *llm.OpenAIClient
	if cfg.OpenAIAPIKey != "" {
		openai = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	}
	decider := llmdecider.New(openai, cfg.AgentOpenAIModel, cfg.AgentLLMTimeoutMs, cfg.AgentLLMMaxOutputTokens, cfg.DevTokenSaver)

	memoryStore := agentmemory.NewStore(cfg.DataDir+"/agents/memory", appLog)
	decisionLog := decisionlog.NewStore(cfg.DataDir + "/decisions")
	auditTrail := decisionlog.NewStore(cfg.DataDir + "/audit/decision_audit")

	bettingStore := betting.NewStore(cfg.DataDir + "/bets/ledger.json")
	bettingMgr, err := betting.NewManager(bettingStore, cfg.BetsHouseEdge, betCutoffs())
	if err != nil {
		exitCode("betting_ledger_load_failed", err)
	}

	chatStore := chatservice.NewStore(cfg.DataDir + "/chat")
	chatGen := chatservice.NewGenerator(openai, chatservice.GenConfig{
		LLMEnabled:     openai != nil,
		MaxConcurrency: cfg.ChatMaxConcurrency,
		Model:          cfg.ChatOpenAIModel,
		Timeout:        time.Duration(cfg.AgentLLMTimeoutMs) * time.Millisecond,
		PlainReplyRate: cfg.ChatPublicPlainReplyRate,
	})
	chatCfg := chatservice.Config{
		MaxTextLen:        cfg.ChatMaxTextLen,
		RateLimitPerMin:   cfg.ChatRateLimitPerMin,
		AgentReplyTimeout: time.Duration(cfg.AgentLLMTimeoutMs) * time.Millisecond,
		PlainReplyRate:    cfg.ChatPublicPlainReplyRate,
	}
	proactCfg := chatservice.ProactiveConfig{
		TickMs:            cfg.ChatProactiveViewerTickMs,
		RoomsPerInterval:  cfg.ChatRoomsPerInterval,
		MinRoomIntervalMs: int64(cfg.ChatMinRoomIntervalMs),
		ActivityWindowMs:  int64(cfg.ChatActivityWindowMs),
		DefaultIntervalMs: int64(cfg.ChatProactiveIntervalMs),
		BurstIntervalMs:   int64(cfg.ChatBurstIntervalMs),
		BurstDurationMs:   int64(cfg.ChatBurstDurationMs),
		CooldownMs:        int64(cfg.ChatCooldownMs),
	}
	narrateCfg := chatservice.NarrationConfig{
		HoldIntervalMs:    60000,
		NonHoldIntervalMs: 15000,
	}

	ttsDispatcher := tts.NewDispatcher(tts.Config{
		Enabled:         cfg.ChatTTSProvider != "",
		DefaultProvider: tts.Provider(cfg.ChatTTSProvider),
		DefaultFallback: tts.ProviderOpenAI,
		DefaultVoice:    "alloy",
		DefaultSpeed:    1.0,
		MaxChars:        cfg.ChatTTSMaxChars,
		OpenAIModel:     "tts-1",
		ResponseFormat:  "mp3",
	}, openai, cfg.DataDir+"/chat/tts_profiles.json")

	manifestDir := cfg.DataDir + "/agents/manifests"
	registryStatePath := cfg.DataDir + "/agents/registry_state.json"

	srv := api.NewServer(cfg, appLog, auditLog, clk, adapter, replay, decider,
		memoryStore, decisionLog, auditTrail, bettingMgr, betCutoffs(),
		chatStore, chatGen, chatCfg, proactCfg, narrateCfg, ttsDispatcher,
		manifestDir, registryStatePath)

	srv.Start()

	engine := srv.NewEngine()
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		appLog.Info("listening", "addr", httpServer.Addr, "data_mode", string(cfg.RuntimeDataMode))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			exitCode("http_listen_failed", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	srv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown error", err)
	}
}

// betCutoffs is the close-minus-30 freeze schedule per market: CN-A
// closes 15:00 Asia/Shanghai, US closes 16:00 America/New_York.
func betCutoffs() map[string]betting.CloseCutoff {
	cn, _ := time.LoadLocation("Asia/Shanghai")
	if cn == nil {
		cn = time.UTC
	}
	us, _ := time.LoadLocation("America/New_York")
	if us == nil {
		us = time.UTC
	}
	return map[string]betting.CloseCutoff{
		string(marketdata.MarketCNA): {Location: cn, CloseHour: 15, CloseMinute: 0},
		string(marketdata.MarketUS):  {Location: us, CloseHour: 16, CloseMinute: 0},
	}
}

// symbolMarket classifies a symbol into its market by ticker shape:
// CN-A symbols carry a .SH/.SZ suffix, everything else is treated as US.
func symbolMarket(symbol string) marketdata.Market {
	upper := strings.ToUpper(symbol)
	if strings.HasSuffix(upper, ".SH") || strings.HasSuffix(upper, ".SZ") {
		return marketdata.MarketCNA
	}
	return marketdata.MarketUS
}

// buildMarketAdapter wires the adapter per RUNTIME_DATA_MODE: live_file
// tails the two live JSON snapshots, replay drives a pre-recorded
// session off the clock, mock leaves both backends nil so the adapter's
// fallback chain reaches the upstream provider only.
func buildMarketAdapter(cfg *config.Config, clk clock.Clock) (*marketdata.Adapter, *marketdata.ReplayEngine) {
	var replayEngine *marketdata.ReplayEngine
	liveFiles := map[marketdata.Market]*marketdata.LiveFileProvider{}

	switch cfg.RuntimeDataMode {
	case config.DataModeLiveFile:
		staleAfterMs := cfg.DataReadinessFreshErrorMs
		liveFiles[marketdata.MarketCNA] = marketdata.NewLiveFileProvider(cfg.LiveFramesPathCN, 1000, staleAfterMs, clk)
		liveFiles[marketdata.MarketUS] = marketdata.NewLiveFileProvider(cfg.LiveFramesPathUS, 1000, staleAfterMs, clk)
	case config.DataModeReplay:
		var frames map[string]map[string][]marketdata.Frame
		replayPath := cfg.DataDir + "/replay/session.json"
		if err := common.ReadJSON(replayPath, &frames); err != nil {
			frames = map[string]map[string][]marketdata.Frame{}
		}
		replayEngine = marketdata.NewReplayEngine(frames, cfg.ReplaySpeed, cfg.ReplayTickMs, cfg.ReplayWarmupBars, cfg.ReplayLoop)
	}

	upstream := marketdata.NewUpstreamProvider("")
	adapter := marketdata.NewAdapter(string(cfg.RuntimeDataMode), cfg.StrictLiveMode, liveFiles, replayEngine, upstream, symbolMarket)
	return adapter, replayEngine
}
