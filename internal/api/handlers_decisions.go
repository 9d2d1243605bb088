package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/metrics"
	"github.com/onlytrade/room-server/internal/models"
)

func (s *Server) handleDecisionsLatest(c *gin.Context) {
	traderID, okID := s.traderIDParam(c)
	if !okID {
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	ok(c, s.runtime.RecentDecisions(traderID, limit))
}

func auditInto() any { return &models.DecisionAudit{} }
func auditSortKey(r any) int64 { return r.(*models.DecisionAudit).SavedTsMs }

func (s *Server) handleDecisionAuditLatest(c *gin.Context) {
	traderID := c.Param("id")
	if traderID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidTraderID), apperr.CodeInvalidTraderID)
		return
	}

	if dayKey := c.Query("day_key"); dayKey != "" {
		records, err := s.auditLog.ListDay(traderID, dayKey, auditInto)
		if err != nil {
			fail(c, err, apperr.CodeDecisionAuditDayFailed)
			return
		}
		ok(c, records)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.auditLog.ListLatest(traderID, limit, auditInto, auditSortKey)
	if err != nil {
		fail(c, err, apperr.CodeDecisionAuditLatestFailed)
		return
	}
	ok(c, records)
}

func (s *Server) handleStatistics(c *gin.Context) {
	traders := s.allTraders()
	cycles, failures := s.runtime.TraderCycleCounts()
	snap := metrics.Snapshot{
		CyclesByTrader:        make(map[string]float64, len(traders)),
		CycleFailuresByTrader: make(map[string]float64, len(traders)),
		PositionCountByTrader: make(map[string]int, len(traders)),
	}
	for _, t := range traders {
		snap.CyclesByTrader[t.TraderID] = float64(cycles[t.TraderID])
		snap.CycleFailuresByTrader[t.TraderID] = float64(failures[t.TraderID])
		account := s.memory.Load(t.TraderID).Account
		snap.PositionCountByTrader[t.TraderID] = account.PositionCount
		snap.TotalPositionCount += account.PositionCount
	}
	ok(c, snap)
}

func (s *Server) handleMarketContextDebug(c *gin.Context) {
	traderID, okID := s.traderIDParam(c)
	if !okID {
		return
	}
	trader, found := s.traderByID(traderID)
	if !found {
		fail(c, apperr.NotFound(apperr.CodeTraderNotFound), apperr.CodeTraderNotFound)
		return
	}
	ok(c, s.buildDecisionContext(c.Request.Context(), trader, 0))
}
