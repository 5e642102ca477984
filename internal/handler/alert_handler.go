package handler

import (
	"net/http"
	"strconv"

	"github.com/yourorg/pairs-analytics/internal/alert"
	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AlertHandler handles alert rule HTTP requests
type AlertHandler struct {
	engine *alert.Engine
	logger *zap.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(engine *alert.Engine, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		engine: engine,
		logger: logger,
	}
}

// CreateRule handles registering a threshold rule
// POST /api/v1/alerts
func (h *AlertHandler) CreateRule(c *gin.Context) {
	var rule model.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.engine.AddRule(rule)
	if err != nil {
		utils.SendErrorResponse(c, statusFor(err), err.Error())
		return
	}

	h.logger.Info("Alert rule added",
		zap.Int("id", created.ID),
		zap.String("x", created.SymbolX),
		zap.String("y", created.SymbolY),
		zap.String("metric", created.Metric))

	c.JSON(http.StatusCreated, created)
}

// ListRules handles listing rules in insertion order with pagination
// GET /api/v1/alerts
func (h *AlertHandler) ListRules(c *gin.Context) {
	utils.SendPage(c, h.engine.ListRules(), utils.PageFromQuery(c, 50, 500))
}

// DeleteRule handles removing a rule by id
// DELETE /api/v1/alerts/:id
func (h *AlertHandler) DeleteRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	_, removed := h.engine.RemoveRule(id)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
