package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/catena-api/internal/broadcast"
	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/logging"
)

// EventHandler streams the principal's task events as server-sent events.
type EventHandler struct {
	hub       *broadcast.Hub
	log       logging.Logger
	keepAlive time.Duration
}

func NewEventHandler(hub *broadcast.Hub, log logging.Logger) *EventHandler {
	return &EventHandler{hub: hub, log: log, keepAlive: 30 * time.Second}
}

// Stream holds the connection open until the client leaves. Events of
// other users are skipped.
func (h *EventHandler) Stream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	sub := h.hub.Subscribe(constants.BroadcastTopic)
	defer sub.Close()

	ctx := c.Request.Context()
	h.log.Debug(ctx, "event stream opened", "user_id", userID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, open := <-sub.Events():
			if !open {
				return false
			}
			if ev.OwnerID == userID {
				c.SSEvent(ev.Name, ev)
			}
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})

	h.log.Debug(ctx, "event stream closed", "user_id", userID)
}
