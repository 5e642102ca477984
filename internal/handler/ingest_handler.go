package handler

import (
	"net/http"

	"github.com/yourorg/pairs-analytics/internal/feed"
	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IngestRequest selects the live source and its symbols
type IngestRequest struct {
	Mode    string   `json:"mode"`
	Symbols []string `json:"symbols"`
}

// IngestHandler handles live feed control requests
type IngestHandler struct {
	runner      *feed.Runner
	defaultMode string
	logger      *zap.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(runner *feed.Runner, defaultMode string, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		runner:      runner,
		defaultMode: defaultMode,
		logger:      logger,
	}
}

// Start handles starting a live feed
// POST /api/v1/ingest/start
func (h *IngestHandler) Start(c *gin.Context) {
	var request IngestRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if request.Mode == "" {
		request.Mode = h.defaultMode
	}

	symbols := make([]string, 0, len(request.Symbols))
	for _, s := range request.Symbols {
		if s = model.NormalizeSymbol(s); s != "" {
			symbols = append(symbols, s)
		}
	}

	if err := h.runner.Start(request.Mode, symbols); err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Failed to start feed", zap.String("mode", request.Mode), zap.Error(err))
		}
		utils.SendErrorResponse(c, status, err.Error())
		return
	}

	c.JSON(http.StatusOK, h.runner.Status())
}

// Stop handles stopping the live feed
// POST /api/v1/ingest/stop
func (h *IngestHandler) Stop(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stopped": h.runner.Stop()})
}

// Status handles reporting the live feed state
// GET /api/v1/ingest/status
func (h *IngestHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status())
}
