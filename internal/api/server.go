package api

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/agentmemory"
	"github.com/onlytrade/room-server/internal/agentruntime"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/betting"
	"github.com/onlytrade/room-server/internal/book"
	"github.com/onlytrade/room-server/internal/chatservice"
	"github.com/onlytrade/room-server/internal/clock"
	"github.com/onlytrade/room-server/internal/config"
	"github.com/onlytrade/room-server/internal/decisioncontext"
	"github.com/onlytrade/room-server/internal/decisionlog"
	"github.com/onlytrade/room-server/internal/llmdecider"
	"github.com/onlytrade/room-server/internal/marketdata"
	"github.com/onlytrade/room-server/internal/metrics"
	"github.com/onlytrade/room-server/internal/models"
	"github.com/onlytrade/room-server/internal/registry"
	"github.com/onlytrade/room-server/internal/roomevents"
	"github.com/onlytrade/room-server/internal/tts"
)

var cnaLocation = mustLoadLocation("Asia/Shanghai")
var usLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Server holds every wired component and exposes the HTTP handler
// methods routes.go registers onto a gin.Engine: an explicit runtime
// container constructed at boot with injected dependencies.
type Server struct {
	cfg   *config.Config
	log   *applog.Logger
	audit *applog.AuditLog
	clk   clock.Clock

	startedAt time.Time

	adapter *marketdata.Adapter
	replay  *marketdata.ReplayEngine // nil outside replay mode

	decider *llmdecider.Decider

	runtime     *agentruntime.Runtime
	killSwitch  *agentruntime.KillSwitch
	sessionGate *agentruntime.SessionGate
	cadence     *agentruntime.DecisionCadence

	memory      *agentmemory.Store
	decisionLog *decisionlog.Store // data/decisions
	auditLog    *decisionlog.Store // data/audit/decision_audit

	bettingMgr *betting.Manager
	betCutoffs map[string]betting.CloseCutoff

	registry *registry.Registry

	bus       *roomevents.Bus
	chat      *chatservice.Service
	chatGen   *chatservice.Generator
	proactive *chatservice.Proactive
	narrator  *chatservice.Narrator
	tts       *tts.Dispatcher

	mu      sync.RWMutex
	traders map[string]models.Trader // cache populated from registry.Hooks.OnRegister/OnUnregister

	newsCue func(roomID string) chatservice.NewsCue
}

// NewServer wires the remaining per-process singletons that must be
// constructed after Server itself exists (registry, agent runtime,
// session gate, chat proactive/narrator, room event bus) because their
// hooks close over Server methods. Two-phase construction: Server is
// allocated first with a nil runtime/registry, hooks are built from
// s's methods (which only dereference those fields at call time, long
// after New returns), then the fields are assigned.
func NewServer(cfg *config.Config, log *applog.Logger, audit *applog.AuditLog, clk clock.Clock,
	adapter *marketdata.Adapter, replay *marketdata.ReplayEngine, decider *llmdecider.Decider,
	memory *agentmemory.Store, decisionLog, auditLog *decisionlog.Store,
	bettingMgr *betting.Manager, betCutoffs map[string]betting.CloseCutoff,
	chatStore *chatservice.Store, chatGen *chatservice.Generator, chatCfg chatservice.Config,
	proactCfg chatservice.ProactiveConfig, narrateCfg chatservice.NarrationConfig,
	ttsDispatcher *tts.Dispatcher, manifestDir, registryStatePath string) *Server {

	s := &Server{
		cfg:         cfg,
		log:         log,
		audit:       audit,
		clk:         clk,
		startedAt:   clk.Now(),
		adapter:     adapter,
		replay:      replay,
		decider:     decider,
		memory:      memory,
		decisionLog: decisionLog,
		auditLog:    auditLog,
		bettingMgr:  bettingMgr,
		betCutoffs:  betCutoffs,
		tts:         ttsDispatcher,
		traders:     make(map[string]models.Trader),
		cadence:     agentruntime.NewDecisionCadence(cfg.AgentDecisionEveryBars),
	}

	s.killSwitch = agentruntime.NewKillSwitch(cfg.DataDir+"/runtime/kill-switch.json", audit)
	s.runtime = agentruntime.New(log, clk, cfg.AgentRuntimeCycleMs, s.killSwitch, s.runtimeHooks())
	s.sessionGate = agentruntime.NewSessionGate(s.runtime, clk, adapter, cfg.AgentSessionGuardRequireFreshLive, s.marketOf, s.registeredTraderIDs)

	s.bus = roomevents.NewBus(clk, func(roomID string) roomevents.BuildFunc {
		return func(ctx context.Context, decisionLimit int) (any, error) {
			return s.buildStreamPacket(ctx, roomID, decisionLimit)
		}
	})

	s.chat = chatservice.New(chatStore, s.bus, chatGen, chatCfg, log, s.traderNameOf)
	s.chatGen = chatGen
	s.narrator = chatservice.NewNarrator(s.chat, narrateCfg)
	s.proactive = chatservice.NewProactive(proactCfg, chatGen, s.chat, s.roomIDs, s.subscriberCountOf, s.agentRunningOf, s.lastActivityOf, s.newsCueOf)

	s.registry = registry.New(manifestDir, registryStatePath, log, registry.Hooks{
		OnRegister:   s.onManifestDiscovered,
		OnUnregister: s.onManifestRemoved,
		OnStart:      s.onAgentStart,
		OnStop:       s.onAgentStop,
	})

	return s
}

func (s *Server) Start() {
	s.registry.Start(time.Duration(s.cfg.AgentManifestPollMs) * time.Millisecond)
	s.sessionGate.Start(time.Duration(s.cfg.AgentSessionGuardCheckMs) * time.Millisecond)
	if s.cfg.RuntimeDataMode == config.DataModeLiveFile {
		s.runtime.StartLiveTimer()
	}
	if s.replay != nil {
		s.cadence.SetEveryBars(s.cfg.AgentDecisionEveryBars)
		s.replay.OnAdvance(func(cursor int) {
			if s.cadence.Tick() {
				s.runtime.EnqueueReplayStep()
			}
		})
		s.replay.Start()
	}
	s.bus.StartGC(30 * time.Second)
	s.proactive.Start()
}

func (s *Server) Stop() {
	s.proactive.Stop()
	s.bus.StopGC()
	if s.replay != nil {
		s.replay.Pause()
	}
	s.runtime.StopLiveTimer()
	s.sessionGate.Stop()
	s.registry.Stop()
}

// --- registry hooks -------------------------------------------------

func (s *Server) onManifestDiscovered(trader models.Trader) {
	s.mu.Lock()
	s.traders[trader.TraderID] = trader
	s.mu.Unlock()
}

func (s *Server) onManifestRemoved(traderID string) {
	s.mu.Lock()
	delete(s.traders, traderID)
	s.mu.Unlock()
	s.runtime.UnregisterTrader(traderID)
	s.memory.Delete(traderID)
}

func (s *Server) onAgentStart(traderID string) {
	trader, ok := s.traderByID(traderID)
	if !ok {
		return
	}
	trader.Status = models.TraderRunning
	s.runtime.RegisterTrader(trader)
}

func (s *Server) onAgentStop(traderID string) {
	s.runtime.UnregisterTrader(traderID)
}

func (s *Server) traderByID(id string) (models.Trader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traders[id]
	return t, ok
}

func (s *Server) allTraders() []models.Trader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Trader, 0, len(s.traders))
	for _, t := range s.traders {
		out = append(out, t)
	}
	return out
}

func (s *Server) traderNameOf(traderID string) string {
	t, ok := s.traderByID(traderID)
	if !ok {
		return ""
	}
	return t.TraderName
}

func (s *Server) marketOf(traderID string) marketdata.Market {
	t, ok := s.traderByID(traderID)
	if ok && t.ExchangeID == models.ExchangeUS {
		return marketdata.MarketUS
	}
	return marketdata.MarketCNA
}

func (s *Server) registeredTraderIDs() []string {
	return s.registry.Registered()
}

func (s *Server) roomIDs() []string {
	return s.registry.Registered()
}

func (s *Server) subscriberCountOf(roomID string) int {
	return s.bus.Room(roomID).SubscriberCount()
}

func (s *Server) agentRunningOf(roomID string) bool {
	status, ok := s.registry.Status(roomID)
	return ok && status == models.TraderRunning
}

var lastActivityMu sync.Mutex
var lastActivityByRoom = map[string]int64{}

func (s *Server) lastActivityOf(roomID string) int64 {
	lastActivityMu.Lock()
	defer lastActivityMu.Unlock()
	return lastActivityByRoom[roomID]
}

func (s *Server) touchActivity(roomID string) {
	lastActivityMu.Lock()
	defer lastActivityMu.Unlock()
	lastActivityByRoom[roomID] = s.clk.Now().UnixMilli()
}

func (s *Server) newsCueOf(roomID string) chatservice.NewsCue {
	if s.newsCue != nil {
		return s.newsCue(roomID)
	}
	return chatservice.NewsCue{}
}

// --- agent runtime hooks ---------------------------------------------

const openingPhaseWindowMs = 15 * 60 * 1000

func (s *Server) runtimeHooks() agentruntime.Hooks {
	return agentruntime.Hooks{
		BuildContext:   s.buildDecisionContext,
		Decide:         s.decide,
		ApplyAndRecord: s.applyAndRecord,
		OnDecision:     s.onDecision,
	}
}

func (s *Server) buildDecisionContext(ctx context.Context, trader models.Trader, cycleNumber int) decisioncontext.Context {
	snap := s.memory.Load(trader.TraderID)
	positions := make(map[string]int64, len(snap.Holdings))
	for sym, h := range snap.Holdings {
		positions[sym] = h.Shares
	}

	market := s.marketOf(trader.TraderID)
	phase := agentruntime.Calendar(market, s.clk.Now())
	isOpening := phase == agentruntime.PhasePreOpen

	limits := decisioncontext.Limits{
		CandidateSymbolLimit: s.cfg.CandidateSymbolLimit,
		StrictSymbolLoop:     s.cfg.StrictSymbolLoop,
		StrictLiveMode:       s.cfg.StrictLiveMode,
		FreshWarnMs:          s.cfg.DataReadinessFreshWarnMs,
		FreshErrorMs:         s.cfg.DataReadinessFreshErrorMs,
		MinIntraday:          s.cfg.DataReadinessMinIntraday,
		MinDaily:             s.cfg.DataReadinessMinDaily,
		OpeningPhaseMaxLots:  s.cfg.OpeningPhaseMaxLots,
		OpeningPhaseMaxConf:  s.cfg.OpeningPhaseMaxConfidence,
		OpeningPhaseWindowMs: openingPhaseWindowMs,
		IsOpeningPhase:       isOpening,
	}

	return decisioncontext.Build(ctx, s.adapter, trader, trader.StockPool, cycleNumber, positions, limits, s.clk.Now().UnixMilli())
}

func (s *Server) decide(ctx context.Context, trader models.Trader, cycleNumber int, dctx decisioncontext.Context) models.Decision {
	snap := s.memory.Load(trader.TraderID)
	portfolio := llmdecider.PortfolioLimits{
		MaxPositionCount:          s.cfg.PortfolioMaxPositionCount,
		CurrentPositionCount:      snap.Account.PositionCount,
		MaxSymbolConcentrationPct: s.cfg.PortfolioMaxSymbolConcentrationPct,
		MinCashReservePct:         s.cfg.PortfolioMinCashReservePct,
		TurnoverThrottlePct:       s.cfg.PortfolioTurnoverThrottlePct,
	}
	return s.decider.Decide(ctx, trader.TraderID, cycleNumber, dctx, portfolio)
}

func (s *Server) applyAndRecord(trader models.Trader, decision models.Decision) models.Decision {
	snap := s.memory.Load(trader.TraderID)
	holding := snap.Holdings[decision.Symbol]
	market := s.marketOf(trader.TraderID)
	now := s.clk.Now()
	tradingDay := tradingDayFor(market, now)

	fillPrice := latestClose(context.Background(), s.adapter, decision.Symbol)

	result := book.Apply(decision, book.Input{
		Account:        snap.Account,
		Holding:        holding,
		FillPrice:      fillPrice,
		Now:            now,
		TradingDay:     tradingDay,
		Market:         market,
		CommissionRate: s.cfg.CommissionRate,
		LotSize:        100,
	})

	final := decision
	final.Executed = result.Effect.Executed
	if result.RejectCode != "" {
		final.ExecutionLog = append(final.ExecutionLog, result.RejectCode)
	}

	if err := s.memory.RecordSnapshot(trader.TraderID, final, result.Effect, tradingDay, now); err != nil {
		s.log.Error("record snapshot failed", err, "trader_id", trader.TraderID)
	}
	metrics.PositionCount.WithLabelValues(trader.TraderID).Set(float64(s.memory.Load(trader.TraderID).Account.PositionCount))

	dayKey := now.UTC().Format("2006-01-02")
	if err := s.decisionLog.Append(trader.TraderID, dayKey, final); err != nil {
		s.log.Error("decision log append failed", err, "trader_id", trader.TraderID)
	}

	audit := models.DecisionAudit{
		Timestamp:              now,
		CycleNumber:            decision.CycleNumber,
		TraderID:               trader.TraderID,
		Symbol:                 decision.Symbol,
		ReadinessLevel:         string(decisioncontext.ReadinessOK),
		OrderExecuted:          result.Effect.Executed,
		PositionSharesOnSymbol: holding.Shares,
		SavedTsMs:              now.UnixMilli(),
	}
	if decision.Source == models.SourceReadinessGate {
		audit.ReadinessLevel = string(decisioncontext.ReadinessERROR)
		audit.ForcedHold = true
	}
	if err := s.auditLog.Append(trader.TraderID, dayKey, audit); err != nil {
		s.log.Error("decision audit append failed", err, "trader_id", trader.TraderID)
	}

	return final
}

func (s *Server) onDecision(trader models.Trader, decision models.Decision) {
	s.bus.Publish(trader.TraderID, "decision", decision)
	s.touchActivity(trader.TraderID)
	if s.narrator != nil {
		snap := s.memory.Load(trader.TraderID)
		s.narrator.OnDecision(trader.TraderID, decision, trader.RiskProfile, snap.Account.TotalEquity.String())
	}
}

func tradingDayFor(market marketdata.Market, now time.Time) string {
	loc := cnaLocation
	if market == marketdata.MarketUS {
		loc = usLocation
	}
	return now.In(loc).Format("2006-01-02")
}

func latestClose(ctx context.Context, adapter *marketdata.Adapter, symbol string) decimal.Decimal {
	b, err := adapter.GetFrames(ctx, symbol, marketdata.Interval1m, 1)
	if err != nil || len(b.Frames) == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(b.Frames[len(b.Frames)-1].Close)
}
