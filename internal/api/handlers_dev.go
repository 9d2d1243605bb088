package api

import (
	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/agentmemory"
	"github.com/onlytrade/room-server/internal/apperr"
)

type factoryResetRequest struct {
	Confirm string `json:"confirm"`
}

// handleFactoryReset wipes every registered trader's memory, positions
// and stats in one call, gated behind an explicit confirm phrase.
func (s *Server) handleFactoryReset(c *gin.Context) {
	var req factoryResetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Confirm != "RESET" {
		err := apperr.Validation(apperr.CodeResetConfirmationRequired)
		s.writeAudit(c, "factory_reset", "all", "error", err)
		fail(c, err, apperr.CodeResetConfirmationRequired)
		return
	}

	scope := agentmemory.ResetScope{ResetMemory: true, ResetPositions: true, ResetStats: true}
	var firstErr error
	for _, id := range s.registeredTraderIDs() {
		if err := s.memory.ResetTrader(id, scope); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.writeAudit(c, "factory_reset", "all", resultOf(firstErr), firstErr)
	if firstErr != nil {
		fail(c, apperr.Internal(apperr.CodeFactoryResetFailed, firstErr), apperr.CodeFactoryResetFailed)
		return
	}
	ok(c, gin.H{"reset": true})
}

type resetAgentRequest struct {
	Confirm        string `json:"confirm"`
	ResetMemory    bool   `json:"reset_memory"`
	ResetPositions bool   `json:"reset_positions"`
	ResetStats     bool   `json:"reset_stats"`
}

// handleResetAgent wipes one trader's selected scopes, gated behind the
// trader ID itself as the confirm phrase and at least one scope chosen.
func (s *Server) handleResetAgent(c *gin.Context) {
	traderID := c.Param("id")
	var req resetAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Confirm != traderID {
		err := apperr.Validation(apperr.CodeResetConfirmationRequired)
		s.writeAudit(c, "reset_agent", traderID, "error", err)
		fail(c, err, apperr.CodeResetConfirmationRequired)
		return
	}
	if !req.ResetMemory && !req.ResetPositions && !req.ResetStats {
		err := apperr.Validation(apperr.CodeNoResetScopeSelected)
		s.writeAudit(c, "reset_agent", traderID, "error", err)
		fail(c, err, apperr.CodeNoResetScopeSelected)
		return
	}

	scope := agentmemory.ResetScope{
		ResetMemory:    req.ResetMemory,
		ResetPositions: req.ResetPositions,
		ResetStats:     req.ResetStats,
	}
	err := s.memory.ResetTrader(traderID, scope)
	s.writeAudit(c, "reset_agent", traderID, resultOf(err), err)
	if err != nil {
		fail(c, apperr.Internal(apperr.CodeResetAgentFailed, err), apperr.CodeResetAgentFailed)
		return
	}
	ok(c, gin.H{"trader_id": traderID, "reset": true})
}
