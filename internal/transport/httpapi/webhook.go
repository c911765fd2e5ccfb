package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/transport/evolution"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

// webhook accepts Evolution events. Handling is asynchronous: the reply
// only says how many events were queued. defaultEvent names the event for
// per-event webhook URLs whose payload omits it.
func (s *Server) webhook(defaultEvent string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload evolution.WebhookPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid JSON"})
			return
		}
		if payload.Event == "" {
			payload.Event = defaultEvent
		}

		events, err := evolution.Normalize(payload)
		if err != nil {
			logger.Warn("Malformed webhook payload", "event", payload.Event, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid event data"})
			return
		}
		if len(events) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": payload.Event})
			return
		}

		accepted := 0
		for _, ev := range events {
			if ev.Kind == models.EventMessage && s.dedup.Seen(ev.MessageID) {
				logger.Debug("Duplicate webhook message", "message_id", ev.MessageID)
				continue
			}
			if s.mgr.Dispatcher.Dispatch(c.Request.Context(), ev) {
				accepted++
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "processing", "event": payload.Event, "accepted": accepted})
	}
}
