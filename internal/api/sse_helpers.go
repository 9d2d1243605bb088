package api

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/roomevents"
)

func sseHeaders(c *gin.Context) {
	roomevents.SetHeaders(c.Writer)
	c.Status(200)
	c.Writer.Flush()
}

// sseWrite frames one SSE event directly onto the gin response writer,
// for the debug /api/market/stream feed that lives outside the room
// event bus.
func sseWrite(c *gin.Context, id int64, event string, data any) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		return false
	}
	if id > 0 {
		if _, err := fmt.Fprintf(c.Writer, "id:%d\n", id); err != nil {
			return false
		}
	}
	if event != "" {
		if _, err := fmt.Fprintf(c.Writer, "event:%s\n", event); err != nil {
			return false
		}
	}
	if _, err := fmt.Fprintf(c.Writer, "data:%s\n\n", payload); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
