package api

import (
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/models"
)

func durationHours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}

func (s *Server) handleTraders(c *gin.Context) {
	ok(c, s.allTraders())
}

// competitionRow is one trader's standing, ranked by total P&L pct.
type competitionRow struct {
	Trader      models.Trader   `json:"trader"`
	Account     models.Account  `json:"account"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	TotalPnLPct decimal.Decimal `json:"total_pnl_pct"`
}

func (s *Server) competitionRows() []competitionRow {
	traders := s.allTraders()
	rows := make([]competitionRow, 0, len(traders))
	for _, t := range traders {
		snap := s.memory.Load(t.TraderID)
		rows = append(rows, competitionRow{
			Trader:      t,
			Account:     snap.Account,
			TotalPnL:    snap.Account.TotalPnL(),
			TotalPnLPct: snap.Account.TotalPnLPct(),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalPnLPct.GreaterThan(rows[j].TotalPnLPct)
	})
	return rows
}

func (s *Server) handleCompetition(c *gin.Context) {
	ok(c, s.competitionRows())
}

func (s *Server) handleTopTraders(c *gin.Context) {
	rows := s.competitionRows()
	limit := 5
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > len(rows) {
		limit = len(rows)
	}
	ok(c, rows[:limit])
}

func (s *Server) traderIDParam(c *gin.Context) (string, bool) {
	id := c.Query("trader_id")
	if id == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidTraderID), apperr.CodeInvalidTraderID)
		return "", false
	}
	return id, true
}

func (s *Server) handleStatus(c *gin.Context) {
	traderID, okID := s.traderIDParam(c)
	if !okID {
		return
	}
	trader, found := s.traderByID(traderID)
	if !found {
		fail(c, apperr.NotFound(apperr.CodeTraderNotFound), apperr.CodeTraderNotFound)
		return
	}
	status, _ := s.registry.Status(traderID)
	ok(c, gin.H{"trader": trader, "status": status})
}

func (s *Server) handleAccount(c *gin.Context) {
	traderID, okID := s.traderIDParam(c)
	if !okID {
		return
	}
	snap := s.memory.Load(traderID)
	ok(c, snap.Account)
}

func (s *Server) handlePositions(c *gin.Context) {
	traderID, okID := s.traderIDParam(c)
	if !okID {
		return
	}
	snap := s.memory.Load(traderID)
	holdings := make([]models.Holding, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		holdings = append(holdings, h)
	}
	ok(c, holdings)
}

func (s *Server) handlePositionsHistory(c *gin.Context) {
	traderID, okID := s.traderIDParam(c)
	if !okID {
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	snap := s.memory.Load(traderID)
	trades := snap.ClosedTrades
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	ok(c, trades)
}

func (s *Server) handleSymbols(c *gin.Context) {
	traderID := c.Query("trader_id")
	if traderID == "" {
		ok(c, []models.Symbol{})
		return
	}
	trader, found := s.traderByID(traderID)
	if !found {
		fail(c, apperr.NotFound(apperr.CodeTraderNotFound), apperr.CodeTraderNotFound)
		return
	}
	out := make([]models.Symbol, 0, len(trader.StockPool))
	for _, sym := range trader.StockPool {
		out = append(out, models.Symbol{Symbol: sym, Category: string(trader.ExchangeID)})
	}
	ok(c, out)
}

func (s *Server) handleEquityHistory(c *gin.Context) {
	traderID, okID := s.traderIDParam(c)
	if !okID {
		return
	}
	ok(c, s.equityHistoryFor(traderID, c.Query("hours")))
}

func (s *Server) equityHistoryFor(traderID, hoursParam string) []models.EquityPoint {
	snap := s.memory.Load(traderID)
	points := snap.EquityCurve
	hours := 0
	if hoursParam != "" {
		if n, err := strconv.Atoi(hoursParam); err == nil && n > 0 {
			hours = n
		}
	}
	if hours <= 0 {
		return points
	}
	cutoff := s.clk.Now().Add(-durationHours(hours)).UnixMilli()
	out := make([]models.EquityPoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp.UnixMilli() >= cutoff {
			out = append(out, p)
		}
	}
	return out
}

type equityHistoryBatchRequest struct {
	TraderIDs []string `json:"trader_ids"`
	Hours     int      `json:"hours"`
}

func (s *Server) handleEquityHistoryBatch(c *gin.Context) {
	var req equityHistoryBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(apperr.CodeInvalidTraderID), apperr.CodeInvalidTraderID)
		return
	}
	out := make(map[string][]models.EquityPoint, len(req.TraderIDs))
	for _, id := range req.TraderIDs {
		out[id] = s.equityHistoryFor(id, strconv.Itoa(req.Hours))
	}
	ok(c, out)
}
