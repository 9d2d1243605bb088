package betting

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/models"
)

// CloseCutoff describes one market's close time, used to derive the
// freeze window (close_minute - 30) and the settlement point (close).
type CloseCutoff struct {
	Location    *time.Location
	CloseHour   int
	CloseMinute int
}

func (c CloseCutoff) closeMinutesOfDay() int {
	return c.CloseHour*60 + c.CloseMinute
}

// Manager owns the single ledger document and every mutation on it.
type Manager struct {
	mu        sync.Mutex
	store     *Store
	ledger    *models.Ledger
	houseEdge float64
	cutoffs   map[string]CloseCutoff // by market
}

func NewManager(store *Store, houseEdge float64, cutoffs map[string]CloseCutoff) (*Manager, error) {
	ledger, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, ledger: ledger, houseEdge: houseEdge, cutoffs: cutoffs}, nil
}

func StateID(market, dayKey string) string {
	return market + "::" + dayKey
}

func (m *Manager) dayState(stateID, market, dayKey string) *models.DayState {
	st, ok := m.ledger.Days[stateID]
	if !ok {
		st = &models.DayState{
			StateID:          stateID,
			Market:           market,
			DayKey:           dayKey,
			Pools:            make(map[string]*models.BetPool),
			UserBets:         make(map[string]*models.UserBet),
			SettlementStatus: models.SettlementPending,
		}
		m.ledger.Days[stateID] = st
	}
	return st
}

// IsFrozen reports whether market's local time of day has crossed
// close_minute-30 as of now. Markets without a cutoff are never frozen.
func (m *Manager) IsFrozen(market string, now time.Time) bool {
	cutoff, ok := m.cutoffs[market]
	if !ok {
		return false
	}
	local := now.In(cutoff.Location)
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= cutoff.closeMinutesOfDay()-30
}

// PlaceBet atomically moves a session's stake from its prior trader pool
// (if any) to the new one within a single ledger save ("Bet
// placement").
func (m *Manager) PlaceBet(market, dayKey, session, nickname, traderID string, stake int64, availableTraders map[string]bool, now time.Time) (*models.DayState, error) {
	if stake < 1 {
		stake = 1
	}
	if stake > 100000 {
		stake = 100000
	}
	if availableTraders != nil && !availableTraders[traderID] {
		return nil, apperr.Validation(apperr.CodeTraderNotAvailableForBet)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsFrozen(market, now) {
		return nil, apperr.Validation(apperr.CodeBettingClosedBefore30m)
	}

	stateID := StateID(market, dayKey)
	state := m.dayState(stateID, market, dayKey)

	if old, ok := state.UserBets[session]; ok {
		if pool, ok := state.Pools[old.TraderID]; ok {
			pool.Amount = pool.Amount.Sub(old.StakeAmount)
			pool.Tickets--
			if pool.Tickets < 0 {
				pool.Tickets = 0
			}
		}
	}

	pool, ok := state.Pools[traderID]
	if !ok {
		pool = &models.BetPool{Amount: decimal.Zero}
		state.Pools[traderID] = pool
	}
	stakeDec := decimal.NewFromInt(stake)
	pool.Amount = pool.Amount.Add(stakeDec)
	pool.Tickets++

	state.UserBets[session] = &models.UserBet{
		TraderID:    traderID,
		StakeAmount: stakeDec,
		PlacedTsMs:  now.UnixMilli(),
	}

	if _, ok := m.ledger.CreditsBySession[session]; !ok {
		m.ledger.CreditsBySession[session] = &models.CreditRecord{UserNickname: nickname}
	} else if nickname != "" {
		m.ledger.CreditsBySession[session].UserNickname = nickname
	}

	if err := m.store.Save(m.ledger); err != nil {
		return nil, apperr.Internal("bets_place_failed", err)
	}
	return state, nil
}

// Freeze snapshots returns for a market/day once close_minute-30 has been
// reached, at most once: it is a no-op before that cutoff and when the
// day has already been frozen.
func (m *Manager) Freeze(market, dayKey string, currentReturns map[string]decimal.Decimal, now time.Time) error {
	if !m.IsFrozen(market, now) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stateID := StateID(market, dayKey)
	state := m.dayState(stateID, market, dayKey)
	if state.FreezeTsMs != 0 {
		return nil
	}
	state.FreezeReturnsByTrader = currentReturns
	state.FreezeTsMs = now.UnixMilli()
	return m.store.Save(m.ledger)
}

// Settle determines winners from live (not frozen) returns and pays out
// credit points; idempotent once settled.
func (m *Manager) Settle(market, dayKey string, liveReturns map[string]decimal.Decimal, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stateID := StateID(market, dayKey)
	state := m.dayState(stateID, market, dayKey)
	if state.SettlementStatus == models.SettlementSettled {
		return nil
	}

	maxRet, hasAny := math.Inf(-1), false
	for _, ret := range liveReturns {
		f := toFloat(ret)
		if !hasAny || f > maxRet {
			maxRet = f
			hasAny = true
		}
	}
	if !hasAny {
		return nil
	}

	var winners []string
	for traderID, ret := range liveReturns {
		if toFloat(ret) == maxRet {
			winners = append(winners, traderID)
		}
	}
	winnerSet := make(map[string]bool, len(winners))
	for _, w := range winners {
		winnerSet[w] = true
	}

	returns := make([]TraderReturn, 0, len(liveReturns))
	for traderID, ret := range liveReturns {
		returns = append(returns, TraderReturn{TraderID: traderID, RetPct: toFloat(ret)})
	}
	poolAmounts := make(map[string]decimal.Decimal, len(state.Pools))
	for traderID, pool := range state.Pools {
		poolAmounts[traderID] = pool.Amount
	}
	oddsEntries := ComputeOdds(returns, poolAmounts, m.houseEdge)
	oddsByTrader := make(map[string]float64, len(oddsEntries))
	for _, e := range oddsEntries {
		oddsByTrader[e.TraderID] = e.Odds
	}

	payouts := make(map[string]models.SessionPayout, len(state.UserBets))
	for session, bet := range state.UserBets {
		won := winnerSet[bet.TraderID]
		odds := oddsByTrader[bet.TraderID]
		record, ok := m.ledger.CreditsBySession[session]
		if !ok {
			record = &models.CreditRecord{}
			m.ledger.CreditsBySession[session] = record
		}
		record.SettledBets++
		record.UpdatedTsMs = now.UnixMilli()

		var credits int64
		if won {
			stake := toFloat(bet.StakeAmount)
			credits = int64(math.Max(1, math.Round(stake*odds)))
			record.CreditPoints += credits
			record.WinCount++
			record.LastAwardTsMs = now.UnixMilli()
		}

		payouts[session] = models.SessionPayout{
			TraderID:       bet.TraderID,
			Won:            won,
			StakeAmount:    bet.StakeAmount,
			SettledOdds:    decimal.NewFromFloat(odds),
			CreditsAwarded: credits,
		}
	}

	state.Settlement = &models.Settlement{
		SettledTsMs:    now.UnixMilli(),
		WinningTraders: winners,
		Payouts:        payouts,
	}
	state.SettlementStatus = models.SettlementSettled

	return m.store.Save(m.ledger)
}

func (m *Manager) DayState(market, dayKey string) (*models.DayState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.ledger.Days[StateID(market, dayKey)]
	return st, ok
}

func (m *Manager) Credits(session string) (*models.CreditRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ledger.CreditsBySession[session]
	return rec, ok
}

func (m *Manager) CreditsTop(limit int) []struct {
	Session string
	Record  models.CreditRecord
} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]struct {
		Session string
		Record  models.CreditRecord
	}, 0, len(m.ledger.CreditsBySession))
	for session, rec := range m.ledger.CreditsBySession {
		out = append(out, struct {
			Session string
			Record  models.CreditRecord
		}{Session: session, Record: *rec})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
