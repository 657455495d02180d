package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/herbtrace/herbtrace-backend/internal/notify"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

// EventsHandler streams batch updates to open portal sessions over SSE.
type EventsHandler struct {
	log *logger.Logger
	hub *notify.Hub
}

func NewEventsHandler(log *logger.Logger, hub *notify.Hub) *EventsHandler {
	return &EventsHandler{
		log: log.With("handler", "EventsHandler"),
		hub: hub,
	}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", nil)
		return
	}

	// Buffered so a slow consumer drops updates instead of stalling the
	// publisher; a dropped update is recovered by the next full snapshot.
	updates := make(chan notify.BatchUpdate, 10)
	unsubscribe := h.hub.Subscribe(func(u notify.BatchUpdate) {
		select {
		case updates <- u:
		default:
			h.log.Warn("dropping batch update; SSE buffer full")
		}
	})
	defer unsubscribe()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case update := <-updates:
			raw, err := json.Marshal(update)
			if err != nil {
				h.log.Warn("failed to marshal batch update", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: batch_update\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}
