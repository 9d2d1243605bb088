package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/marketdata"
	"github.com/onlytrade/room-server/internal/metrics"
)

// currentReturnsByMarket builds each registered trader's live total P&L
// pct, keyed by trader ID, for the given market (used both to answer
// /api/bets/market and to feed Freeze/Settle).
func (s *Server) currentReturnsByMarket(market marketdata.Market) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, t := range s.allTraders() {
		if s.marketOf(t.TraderID) != market {
			continue
		}
		snap := s.memory.Load(t.TraderID)
		out[t.TraderID] = snap.Account.TotalPnLPct()
	}
	return out
}

func (s *Server) handleBetsMarket(c *gin.Context) {
	marketParam := c.Query("market")
	if marketParam == "" {
		marketParam = string(marketdata.MarketCNA)
	}
	market := marketdata.Market(marketParam)
	dayKey := c.Query("day_key")
	if dayKey == "" {
		dayKey = tradingDayFor(market, s.clk.Now())
	}

	returns := s.currentReturnsByMarket(market)
	frozen := s.bettingMgr.IsFrozen(string(market), s.clk.Now())
	state, found := s.bettingMgr.DayState(string(market), dayKey)

	resp := gin.H{
		"market":  string(market),
		"day_key": dayKey,
		"frozen":  frozen,
		"returns": returns,
	}
	if found {
		resp["state"] = state
	}
	ok(c, resp)
}

func (s *Server) handleBetsCredits(c *gin.Context) {
	session := c.Query("session_id")
	if session != "" {
		rec, found := s.bettingMgr.Credits(session)
		if !found {
			fail(c, apperr.NotFound(apperr.CodeInvalidUserSessionID), apperr.CodeInvalidUserSessionID)
			return
		}
		ok(c, rec)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	ok(c, s.bettingMgr.CreditsTop(limit))
}

type betsPlaceRequest struct {
	Market    string `json:"market"`
	SessionID string `json:"session_id"`
	Nickname  string `json:"nickname"`
	TraderID  string `json:"trader_id"`
	Stake     int64  `json:"stake"`
}

func (s *Server) handleBetsPlace(c *gin.Context) {
	var req betsPlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(apperr.CodeInvalidUserSessionID), apperr.CodeInvalidUserSessionID)
		return
	}
	if req.SessionID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidUserSessionID), apperr.CodeInvalidUserSessionID)
		return
	}
	market := marketdata.Market(req.Market)
	if market == "" {
		market = marketdata.MarketCNA
	}
	now := s.clk.Now()
	dayKey := tradingDayFor(market, now)

	available := make(map[string]bool)
	for _, t := range s.allTraders() {
		if s.marketOf(t.TraderID) == market {
			available[t.TraderID] = true
		}
	}

	state, err := s.bettingMgr.PlaceBet(string(market), dayKey, req.SessionID, req.Nickname, req.TraderID, req.Stake, available, now)
	s.writeAudit(c, "bets_place", req.TraderID, resultOf(err), err)
	if err != nil {
		fail(c, err, apperr.CodeBetsPlaceFailed)
		return
	}
	metrics.BetsPlacedTotal.WithLabelValues(string(market)).Inc()
	ok(c, state)
}
