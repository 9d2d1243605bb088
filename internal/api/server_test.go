package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/agentmemory"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/betting"
	"github.com/onlytrade/room-server/internal/chatservice"
	"github.com/onlytrade/room-server/internal/clock"
	"github.com/onlytrade/room-server/internal/config"
	"github.com/onlytrade/room-server/internal/decisionlog"
	"github.com/onlytrade/room-server/internal/llmdecider"
	"github.com/onlytrade/room-server/internal/marketdata"
	"github.com/onlytrade/room-server/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer wires a Server against a scratch data directory, one
// trader manifest (available, not yet registered), and a mock-mode market
// adapter: enough to exercise
// every handler without touching the network or the real filesystem.
func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		RuntimeDataMode:                    config.DataModeMock,
		AgentRuntimeCycleMs:                60000,
		AgentSessionGuardCheckMs:           60000,
		AgentSessionGuardRequireFreshLive:  false,
		AgentDecisionEveryBars:             1,
		CommissionRate:                     0.0003,
		PortfolioMaxPositionCount:          8,
		PortfolioMaxSymbolConcentrationPct: 35,
		PortfolioMinCashReservePct:         5,
		PortfolioTurnoverThrottlePct:       50,
		CandidateSymbolLimit:               12,
		ChatMaxTextLen:                     500,
		ChatRateLimitPerMin:                100,
		BetsHouseEdge:                      0.08,
		ControlAPIToken:                    "test-token",
		DataDir:                            dir,
		AgentManifestPollMs:                60000,
	}

	log := applog.New("room-server-test")
	audit := applog.NewAuditLog(filepath.Join(dir, "audit.jsonl"))
	clk := clock.Real{}

	adapter := marketdata.NewAdapter(string(config.DataModeMock), false, nil, nil, nil, func(string) marketdata.Market {
		return marketdata.MarketCNA
	})

	decider := llmdecider.New(nil, "gpt-4o-mini", 5000, 400, false)

	memory := agentmemory.NewStore(filepath.Join(dir, "memory"), log)
	decisionLog := decisionlog.NewStore(filepath.Join(dir, "decisions"))
	auditLog := decisionlog.NewStore(filepath.Join(dir, "decision_audit"))

	bettingStore := betting.NewStore(filepath.Join(dir, "ledger.json"))
	bettingMgr, err := betting.NewManager(bettingStore, cfg.BetsHouseEdge, map[string]betting.CloseCutoff{})
	if err != nil {
		t.Fatalf("betting.NewManager: %v", err)
	}

	chatStore := chatservice.NewStore(filepath.Join(dir, "chat"))
	chatGen := chatservice.NewGenerator(nil, chatservice.GenConfig{})
	chatCfg := chatservice.Config{MaxTextLen: cfg.ChatMaxTextLen, RateLimitPerMin: cfg.ChatRateLimitPerMin, AgentReplyTimeout: 5 * time.Second}
	proactCfg := chatservice.ProactiveConfig{TickMs: 60000, DefaultIntervalMs: 60000}
	narrateCfg := chatservice.NarrationConfig{HoldIntervalMs: 60000, NonHoldIntervalMs: 60000, ConservativeMultiplier: 1}

	manifestDir := filepath.Join(dir, "manifests")
	if err := os.MkdirAll(manifestDir, 0o755); err != nil {
		t.Fatalf("mkdir manifests: %v", err)
	}
	writeManifest(t, manifestDir, models.Trader{
		TraderID:     "trader-alpha",
		TraderName:   "Alpha",
		ExchangeID:   models.ExchangeCNA,
		TradingStyle: models.StyleMomentum,
		RiskProfile:  models.RiskBalanced,
		StockPool:    []string{"600000.SH"},
	})

	srv := NewServer(cfg, log, audit, clk, adapter, nil, decider,
		memory, decisionLog, auditLog,
		bettingMgr, map[string]betting.CloseCutoff{},
		chatStore, chatGen, chatCfg,
		proactCfg, narrateCfg,
		nil, manifestDir, filepath.Join(dir, "registry_state.json"))

	srv.registry.Start(time.Hour)
	t.Cleanup(srv.registry.Stop)

	return srv, srv.NewEngine()
}

func writeManifest(t *testing.T, dir string, trader models.Trader) {
	t.Helper()
	body := "trader_id: " + trader.TraderID + "\n" +
		"trader_name: " + trader.TraderName + "\n" +
		"exchange_id: " + string(trader.ExchangeID) + "\n" +
		"trading_style: " + string(trader.TradingStyle) + "\n" +
		"risk_profile: " + string(trader.RiskProfile) + "\n" +
		"stock_pool:\n"
	for _, sym := range trader.StockPool {
		body += "  - " + sym + "\n"
	}
	path := filepath.Join(dir, trader.TraderID+".yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v, body=%s", err, rec.Body.String())
	}
	return env
}

func TestHealthReturnsOK(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
}

func TestTradersReturnsRegisteredManifestTrader(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/traders", nil)
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
	data, _ := json.Marshal(env.Data)
	var traders []models.Trader
	if err := json.Unmarshal(data, &traders); err != nil {
		t.Fatalf("unmarshal traders: %v", err)
	}
	if len(traders) != 1 || traders[0].TraderID != "trader-alpha" {
		t.Fatalf("expected exactly trader-alpha, got %+v", traders)
	}
}

func TestAccountReturnsEmptySnapshotForUnseenTrader(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/account?trader_id=trader-alpha", nil)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
}

func TestAccountRejectsMissingTraderID(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure for missing trader_id, got %+v", env)
	}
}

func TestBetsPlaceRequiresSessionID(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/bets/place", nil)
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure for missing body, got %+v", env)
	}
}

func TestChatPostMessageRequiresSessionID(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	body := `{"text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat/rooms/trader-alpha/messages", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure for missing session_id, got %+v", env)
	}
}

func TestChatPostThenListRoundTrips(t *testing.T) {
	_, engine := newTestServer(t)

	postRec := httptest.NewRecorder()
	postBody := `{"session_id":"sess-1","nickname":"Viewer","text":"hi there"}`
	postReq := httptest.NewRequest(http.MethodPost, "/api/chat/rooms/trader-alpha/messages", jsonBody(postBody))
	postReq.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(postRec, postReq)
	if postRec.Code != http.StatusCreated {
		t.Fatalf("post status = %d, body=%s", postRec.Code, postRec.Body.String())
	}

	listRec := httptest.NewRecorder()
	listReq := httptest.NewRequest(http.MethodGet, "/api/chat/rooms/trader-alpha/public", nil)
	engine.ServeHTTP(listRec, listReq)
	env := decodeEnvelope(t, listRec)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
	data, _ := json.Marshal(env.Data)
	var msgs []models.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		t.Fatalf("unmarshal messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hi there" {
		t.Fatalf("expected one round-tripped message, got %+v", msgs)
	}
}

func TestAgentRuntimeControlRejectsWithoutControlToken(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agent/runtime/control", jsonBody(`{"action":"pause"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected rejection without control token, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAgentRuntimeControlAcceptsMatchingControlToken(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agent/runtime/control", jsonBody(`{"action":"pause"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Control-Token", "test-token")
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
}

func TestAgentsRegisterStartStopLifecycle(t *testing.T) {
	srv, engine := newTestServer(t)
	_ = srv

	registerRec := httptest.NewRecorder()
	registerReq := httptest.NewRequest(http.MethodPost, "/api/agents/trader-alpha/register", nil)
	registerReq.Header.Set("X-Control-Token", "test-token")
	engine.ServeHTTP(registerRec, registerReq)
	if env := decodeEnvelope(t, registerRec); !env.Success {
		t.Fatalf("register failed: %+v", env)
	}

	startRec := httptest.NewRecorder()
	startReq := httptest.NewRequest(http.MethodPost, "/api/agents/trader-alpha/start", nil)
	startReq.Header.Set("X-Control-Token", "test-token")
	engine.ServeHTTP(startRec, startReq)
	if env := decodeEnvelope(t, startRec); !env.Success {
		t.Fatalf("start failed: %+v", env)
	}

	statusRec := httptest.NewRecorder()
	statusReq := httptest.NewRequest(http.MethodGet, "/api/status?trader_id=trader-alpha", nil)
	engine.ServeHTTP(statusRec, statusReq)
	env := decodeEnvelope(t, statusRec)
	if !env.Success {
		t.Fatalf("status failed: %+v", env)
	}

	stopRec := httptest.NewRecorder()
	stopReq := httptest.NewRequest(http.MethodPost, "/api/agents/trader-alpha/stop", nil)
	stopReq.Header.Set("X-Control-Token", "test-token")
	engine.ServeHTTP(stopRec, stopReq)
	if env := decodeEnvelope(t, stopRec); !env.Success {
		t.Fatalf("stop failed: %+v", env)
	}
}

func TestRoomStreamPacketReturnsNotFoundForUnknownRoom(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/does-not-exist/stream-packet", nil)
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure for unknown room, got %+v", env)
	}
}

func TestFactoryResetRequiresConfirmPhrase(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/dev/factory-reset", jsonBody(`{"confirm":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Control-Token", "test-token")
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure for wrong confirm phrase, got %+v", env)
	}
}

func TestMarketFramesRequiresSymbol(t *testing.T) {
	_, engine := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/market/frames", nil)
	engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure for missing symbol, got %+v", env)
	}
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}
