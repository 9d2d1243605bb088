package api

import (
	"context"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/decisioncontext"
	"github.com/onlytrade/room-server/internal/metrics"
	"github.com/onlytrade/room-server/internal/models"
)

// StreamPacket is the per-room document broadcast as the "stream_packet"
// SSE event and returned by GET /api/rooms/{roomId}/stream-packet: a
// single coalesced read of everything a viewer's dashboard needs.
type StreamPacket struct {
	Trader        models.Trader           `json:"trader"`
	Account       models.Account          `json:"account"`
	Holdings      []models.Holding        `json:"holdings"`
	Decisions     []models.Decision       `json:"decisions"`
	ChatPreview   []models.ChatMessage    `json:"chat_preview"`
	MarketContext decisioncontext.Context `json:"market_context"`
	GeneratedTsMs int64                   `json:"generated_ts_ms"`
}

const chatPreviewLimit = 20

func (s *Server) buildStreamPacket(ctx context.Context, roomID string, decisionLimit int) (any, error) {
	trader, ok := s.traderByID(roomID)
	if !ok {
		return nil, apperr.NotFound(apperr.CodeTraderNotFound)
	}

	snap := s.memory.Load(roomID)
	holdings := make([]models.Holding, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		holdings = append(holdings, h)
	}

	decisions := s.runtime.RecentDecisions(roomID, decisionLimit)
	chatPreview, _ := s.chat.ListPublic(roomID, chatPreviewLimit, 0)
	cycleNumber := 0
	if n := len(decisions); n > 0 {
		cycleNumber = decisions[n-1].CycleNumber
	}
	mctx := s.buildDecisionContext(ctx, trader, cycleNumber)

	metrics.PacketBuildsTotal.WithLabelValues(roomID).Inc()

	return StreamPacket{
		Trader:        trader,
		Account:       snap.Account,
		Holdings:      holdings,
		Decisions:     decisions,
		ChatPreview:   chatPreview,
		MarketContext: mctx,
		GeneratedTsMs: s.clk.Now().UnixMilli(),
	}, nil
}
