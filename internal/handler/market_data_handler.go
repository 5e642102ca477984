package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/service"
	"github.com/yourorg/pairs-analytics/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MarketDataHandler handles tick and bar HTTP requests
type MarketDataHandler struct {
	marketDataService *service.MarketDataService
	logger            *zap.Logger
}

// NewMarketDataHandler creates a new market data handler
func NewMarketDataHandler(marketDataService *service.MarketDataService, logger *zap.Logger) *MarketDataHandler {
	return &MarketDataHandler{
		marketDataService: marketDataService,
		logger:            logger,
	}
}

// GetSymbols handles listing the symbols held in the store
// GET /api/v1/symbols
func (h *MarketDataHandler) GetSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": h.marketDataService.Symbols()})
}

// GetResampled handles retrieving resampled bars with pagination. An unknown
// symbol yields an empty page.
// GET /api/v1/resampled/:symbol
func (h *MarketDataHandler) GetResampled(c *gin.Context) {
	symbol := c.Param("symbol")

	minVolume, err := parseMinVolume(c)
	if err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	page := utils.PageFromQuery(c, 1000, 5000)

	bars, err := h.marketDataService.Resampled(symbol, c.Query("timeframe"), minVolume)
	if errors.Is(err, service.ErrNoData) {
		bars, err = []model.Bar{}, nil
	}
	if err != nil {
		h.respondError(c, err, "Failed to resample", zap.String("symbol", symbol))
		return
	}

	utils.SendPage(c, bars, page)
}

// ExportCSV handles downloading resampled bars as CSV
// GET /api/v1/export/:symbol
func (h *MarketDataHandler) ExportCSV(c *gin.Context) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	tf, err := h.marketDataService.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var buf strings.Builder
	if err := h.marketDataService.ExportCSV(&buf, symbol, tf.String()); err != nil {
		h.respondError(c, err, "Failed to export bars", zap.String("symbol", symbol))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s.csv", symbol, tf))
	c.Data(http.StatusOK, "text/csv", []byte(buf.String()))
}

// UploadNDJSON handles loading a newline-delimited JSON tick batch, sent as
// a multipart "file" field or as the raw body
// POST /api/v1/upload/ndjson
func (h *MarketDataHandler) UploadNDJSON(c *gin.Context) {
	body, err := uploadBody(c)
	if err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	count, err := h.marketDataService.UploadNDJSON(c.Request.Context(), body)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "loaded": count})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "loaded": count})
}

// UploadBars handles installing a CSV bar table for one symbol and timeframe
// POST /api/v1/upload/bars?symbol=...&timeframe=...
func (h *MarketDataHandler) UploadBars(c *gin.Context) {
	var query struct {
		Symbol    string `form:"symbol" binding:"required"`
		Timeframe string `form:"timeframe" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	body, err := uploadBody(c)
	if err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	count, err := h.marketDataService.UploadBars(c.Request.Context(), query.Symbol, query.Timeframe, body)
	if err != nil {
		h.respondError(c, err, "Failed to load bars",
			zap.String("symbol", query.Symbol),
			zap.String("timeframe", query.Timeframe))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "loaded": count})
}

// AppendTicks handles ticks pushed by another service
// POST /api/v1/service/ticks
func (h *MarketDataHandler) AppendTicks(c *gin.Context) {
	var request struct {
		Ticks []model.TickInput `json:"ticks" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.marketDataService.AppendTicks(c.Request.Context(), request.Ticks)
	if err != nil {
		h.logger.Error("Failed to append service ticks", zap.Error(err), zap.Int("appended", count))
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "appended": count})
		return
	}

	c.JSON(http.StatusOK, gin.H{"appended": count})
}

func (h *MarketDataHandler) respondError(c *gin.Context, err error, msg string, fields ...zap.Field) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
	utils.SendErrorResponse(c, status, err.Error())
}

// uploadBody returns the multipart "file" part when present, else the body
func uploadBody(c *gin.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("file field is required: %w", err)
		}
		return header.Open()
	}
	if c.Request.Body == nil {
		return nil, errors.New("request body is empty")
	}
	return c.Request.Body, nil
}

func parseMinVolume(c *gin.Context) (float64, error) {
	raw := c.Query("min_volume")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid min_volume %q", raw)
	}
	return v, nil
}
