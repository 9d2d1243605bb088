package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/metrics"
	"github.com/onlytrade/room-server/internal/roomevents"
)

func (s *Server) handleRoomStreamPacket(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidRoomID), apperr.CodeInvalidRoomID)
		return
	}
	limit := 20
	if v := c.Query("decision_limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	packet, err := s.bus.Room(roomID).BuildPacket(c.Request.Context(), limit)
	if err != nil {
		fail(c, err, apperr.CodeStreamPacketFailed)
		return
	}
	ok(c, packet)
}

// handleRoomEvents serves the per-room SSE feed: replays anything since
// Last-Event-ID, then streams every subsequently published event until
// the client disconnects.
func (s *Server) handleRoomEvents(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidRoomID), apperr.CodeInvalidRoomID)
		return
	}

	var lastEventID int64
	if v := c.GetHeader("Last-Event-ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastEventID = n
		}
	}

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		fail(c, apperr.Internal("streaming_unsupported", nil), "streaming_unsupported")
		return
	}

	sseHeaders(c)

	sub := &roomevents.Subscriber{
		ID:               uuid.NewString(),
		Writer:           c.Writer,
		Flusher:          flusher,
		DecisionLimit:    20,
		PacketIntervalMs: 5000,
		ConnectedTsMs:    s.clk.Now().UnixMilli(),
		Done:             make(chan struct{}),
	}

	_, replay := s.bus.Subscribe(roomID, sub, lastEventID)
	defer s.bus.Unsubscribe(roomID, sub.ID)

	metrics.SSESubscribers.WithLabelValues(roomID).Inc()
	defer metrics.SSESubscribers.WithLabelValues(roomID).Dec()

	for _, be := range replay {
		if err := sub.WriteEvent(be.ID, be.Event, be.Data); err != nil {
			return
		}
	}

	select {
	case <-c.Request.Context().Done():
	case <-sub.Done:
	}
}
