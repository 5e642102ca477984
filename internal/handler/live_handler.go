package handler

import (
	"github.com/yourorg/pairs-analytics/internal/live"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LiveHandler upgrades clients to the live websocket stream
type LiveHandler struct {
	hub    *live.Hub
	logger *zap.Logger
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(hub *live.Hub, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{hub: hub, logger: logger}
}

// Stream handles the websocket upgrade
// GET /ws/live
func (h *LiveHandler) Stream(c *gin.Context) {
	// the upgrader has already written the error response
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
	}
}
