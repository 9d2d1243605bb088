package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/marketdata"
)

func parseInterval(c *gin.Context) marketdata.Interval {
	if c.Query("interval") == string(marketdata.Interval1d) {
		return marketdata.Interval1d
	}
	return marketdata.Interval1m
}

func parseLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (s *Server) handleMarketFrames(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidTraderID), "symbol_required")
		return
	}
	batch, err := s.adapter.GetFrames(c.Request.Context(), symbol, parseInterval(c), parseLimit(c, 200))
	if err != nil {
		fail(c, err, apperr.CodeMarketProxyError)
		return
	}
	ok(c, batch)
}

func (s *Server) handleKlines(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidTraderID), "symbol_required")
		return
	}
	klines, err := s.adapter.GetKlines(c.Request.Context(), symbol, parseInterval(c), parseLimit(c, 200))
	if err != nil {
		fail(c, err, apperr.CodeMarketProxyError)
		return
	}
	ok(c, klines)
}

// handleMarketStream is a debug SSE feed that re-polls GetFrames every
// poll_ms and re-emits the batch, independent of the room event bus.
func (s *Server) handleMarketStream(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidTraderID), "symbol_required")
		return
	}
	pollMs := 2000
	if v := c.Query("poll_ms"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pollMs = n
		}
	}

	sseHeaders(c)
	sseWrite(c, 0, "ready", gin.H{"symbol": symbol})

	ticker := time.NewTicker(time.Duration(pollMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			batch, err := s.adapter.GetFrames(c.Request.Context(), symbol, parseInterval(c), parseLimit(c, 200))
			if err != nil {
				sseWrite(c, 0, "error", gin.H{"code": apperr.As(err, apperr.CodeMarketProxyError).Code})
				continue
			}
			if !sseWrite(c, 0, "frames", batch) {
				return
			}
		}
	}
}
