package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/service"
	"github.com/yourorg/pairs-analytics/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyticsHandler handles pair analytics HTTP requests
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// GetPairAnalytics handles the hedge, spread, z-score, ADF, correlation and
// backtest computation for one pair
// GET /api/v1/analytics/pair
func (h *AnalyticsHandler) GetPairAnalytics(c *gin.Context) {
	var query model.PairAnalyticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.analyticsService.PairAnalytics(c.Request.Context(), &query)
	if err != nil {
		h.respondError(c, err, "Failed to compute pair analytics",
			zap.String("x", query.SymbolX),
			zap.String("y", query.SymbolY))
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportPairCSV handles downloading the spread, z-score and correlation series
// GET /api/v1/analytics/pair/export
func (h *AnalyticsHandler) ExportPairCSV(c *gin.Context) {
	var query model.PairAnalyticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := h.analyticsService.ExportPairCSV(&buf, &query); err != nil {
		h.respondError(c, err, "Failed to export pair analytics",
			zap.String("x", query.SymbolX),
			zap.String("y", query.SymbolY))
		return
	}

	filename := fmt.Sprintf("%s_%s_pair.csv", model.NormalizeSymbol(query.SymbolY), model.NormalizeSymbol(query.SymbolX))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// GetCorrelationMatrix handles the close-price correlation matrix
// GET /api/v1/analytics/corr-matrix
func (h *AnalyticsHandler) GetCorrelationMatrix(c *gin.Context) {
	var query model.CorrelationMatrixQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	matrix, err := h.analyticsService.CorrelationMatrix(&query)
	if err != nil {
		h.respondError(c, err, "Failed to compute correlation matrix", zap.String("symbols", query.Symbols))
		return
	}

	c.JSON(http.StatusOK, matrix)
}

func (h *AnalyticsHandler) respondError(c *gin.Context, err error, msg string, fields ...zap.Field) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
	utils.SendErrorResponse(c, status, err.Error())
}
