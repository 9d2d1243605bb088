// Package agentmemory maintains one durable snapshot per trader: account
// stats, holdings, open lots, recent trade events, equity curve, daily
// journal, and a recent-actions ring. Grounded on
// internal/common/filesystem.go's path-safety pattern, extended into an
// atomic, per-trader JSON store via internal/common.WriteJSONAtomic.
package agentmemory

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/common"
	"github.com/onlytrade/room-server/internal/models"
)

const recentActionsCap = 64

// Snapshot is the whole persisted state for one trader.
type Snapshot struct {
	TraderID       string                      `json:"trader_id"`
	Account        models.Account              `json:"account"`
	Holdings       map[string]models.Holding   `json:"holdings"`
	ClosedTrades   []models.ClosedTrade        `json:"closed_trades"`
	TradeEvents    []models.TradeEvent         `json:"trade_events"`
	EquityCurve    []models.EquityPoint        `json:"equity_curve"`
	Journal        []models.DailyJournalEntry  `json:"journal"`
	RecentActions  []models.Decision           `json:"recent_actions"`
}

func defaultSnapshot(traderID string) Snapshot {
	return Snapshot{
		TraderID: traderID,
		Account: models.Account{
			TraderID:         traderID,
			InitialBalance:   models.InitialBalance,
			TotalEquity:      models.InitialBalance,
			AvailableBalance: models.InitialBalance,
			DailyStartEquity: models.InitialBalance,
		},
		Holdings: make(map[string]models.Holding),
	}
}

// ReplayStatus carries just enough of the replay engine's state for
// RecordSnapshot to detect a trading-day rollover in replay mode.
type ReplayStatus struct {
	TradingDay string
}

type traderLock struct {
	mu sync.Mutex
}

// Store owns every trader's Snapshot and serializes RecordSnapshot calls
// per trader ("two concurrent RecordSnapshot for the same trader
// are serialized").
type Store struct {
	baseDir string
	log     *applog.Logger

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	locks     map[string]*traderLock
}

func NewStore(baseDir string, log *applog.Logger) *Store {
	return &Store{
		baseDir:   baseDir,
		log:       log,
		snapshots: make(map[string]*Snapshot),
		locks:     make(map[string]*traderLock),
	}
}

func (s *Store) path(traderID string) string {
	return filepath.Join(s.baseDir, "agents", "memory", traderID+".json")
}

func (s *Store) lockFor(traderID string) *traderLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[traderID]
	if !ok {
		l = &traderLock{}
		s.locks[traderID] = l
	}
	return l
}

// Load reads the trader's snapshot from disk, falling back to a fresh
// default snapshot on any read/parse error.
func (s *Store) Load(traderID string) *Snapshot {
	s.mu.RLock()
	if snap, ok := s.snapshots[traderID]; ok {
		s.mu.RUnlock()
		return snap
	}
	s.mu.RUnlock()

	var snap Snapshot
	if err := common.ReadJSON(s.path(traderID), &snap); err != nil {
		snap = defaultSnapshot(traderID)
	}
	if snap.Holdings == nil {
		snap.Holdings = make(map[string]models.Holding)
	}

	s.mu.Lock()
	s.snapshots[traderID] = &snap
	s.mu.Unlock()
	return &snap
}

// BookEffect describes what book.Apply produced for one cycle, as
// input to RecordSnapshot.
type BookEffect struct {
	Executed          bool
	TradeEvent        *models.TradeEvent
	ClosedTrade       *models.ClosedTrade
	UpdatedHoldings   map[string]models.Holding
	UpdatedAccount    models.Account
}

// RecordSnapshot applies the effect of one decision cycle to the
// trader's persisted state.
func (s *Store) RecordSnapshot(traderID string, decision models.Decision, effect BookEffect, tradingDay string, now time.Time) error {
	lock := s.lockFor(traderID)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	snap := s.Load(traderID)

	snap.RecentActions = append(snap.RecentActions, decision)
	if len(snap.RecentActions) > recentActionsCap {
		snap.RecentActions = snap.RecentActions[len(snap.RecentActions)-recentActionsCap:]
	}

	for sym, h := range effect.UpdatedHoldings {
		snap.Holdings[sym] = h
	}
	snap.Account = effect.UpdatedAccount

	if effect.Executed && effect.TradeEvent != nil {
		snap.TradeEvents = append(snap.TradeEvents, *effect.TradeEvent)
	}
	if effect.ClosedTrade != nil {
		snap.ClosedTrades = append(snap.ClosedTrades, *effect.ClosedTrade)
	}

	snap.EquityCurve = append(snap.EquityCurve, models.EquityPoint{Timestamp: now, Equity: snap.Account.TotalEquity})

	if snap.Account.DailyKey != "" && snap.Account.DailyKey != tradingDay {
		s.finalizeDay(snap, snap.Account.DailyKey)
		snap.Account.DailyStartEquity = snap.Account.TotalEquity
	}
	snap.Account.DailyKey = tradingDay

	if err := common.WriteJSONAtomic(s.path(traderID), snap); err != nil {
		s.log.Error("failed to persist trader snapshot", err, "trader_id", traderID)
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func (s *Store) finalizeDay(snap *Snapshot, dayKey string) {
	start := snap.Account.DailyStartEquity
	end := snap.Account.TotalEquity
	pnl := end.Sub(start)
	pnlPct := decimal.Zero
	if !start.IsZero() {
		pnlPct = pnl.Div(start).Mul(decimal.NewFromInt(100))
	}
	closed := 0
	for range snap.ClosedTrades {
		closed++
	}
	snap.Journal = append(snap.Journal, models.DailyJournalEntry{
		TradingDay:   dayKey,
		StartEquity:  start,
		EndEquity:    end,
		PnL:          pnl,
		PnLPct:       pnlPct,
		TradesClosed: closed,
	})
}

// ResetScope selects which parts of a trader's state ResetTrader wipes.
type ResetScope struct {
	ResetMemory    bool
	ResetPositions bool
	ResetStats     bool
}

// ResetTrader wipes only the selected scopes.
func (s *Store) ResetTrader(traderID string, scope ResetScope) error {
	lock := s.lockFor(traderID)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	snap := s.Load(traderID)

	if scope.ResetMemory {
		snap.RecentActions = nil
		snap.TradeEvents = nil
		snap.Journal = nil
	}
	if scope.ResetPositions {
		snap.Holdings = make(map[string]models.Holding)
		snap.ClosedTrades = nil
	}
	if scope.ResetStats {
		snap.Account = models.Account{
			TraderID:         traderID,
			InitialBalance:   models.InitialBalance,
			TotalEquity:      models.InitialBalance,
			AvailableBalance: models.InitialBalance,
			DailyStartEquity: models.InitialBalance,
		}
		snap.EquityCurve = nil
	}

	return common.WriteJSONAtomic(s.path(traderID), snap)
}

func (s *Store) Delete(traderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, traderID)
	delete(s.locks, traderID)
}
