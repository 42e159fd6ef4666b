package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/actionable-app/actionable/internal/realtime"
)

// RealtimeHandler upgrades authenticated clients onto the change-event feed.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Serve upgrades the connection. Initial subscriptions come from the comma
// separated `streams` query parameter, defaulting to the tasks stream.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	streams := []string{realtime.StreamTasks}
	if raw := strings.TrimSpace(c.Query("streams")); raw != "" {
		streams = strings.Split(raw, ",")
	}

	h.hub.Serve(currentUserID(c), streams, c.Writer, c.Request)
}
