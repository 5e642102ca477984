package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/store"

	"go.uber.org/zap"
)

// ErrNoData is returned when the store holds nothing for a requested symbol
var ErrNoData = errors.New("no data")

var barCSVHeader = []string{"ts", "open", "high", "low", "close", "volume"}

// MarketDataService handles tick and bar operations on the store
type MarketDataService struct {
	store            *store.Store
	defaultTimeframe string
	logger           *zap.Logger
}

// NewMarketDataService creates a new market data service
func NewMarketDataService(st *store.Store, defaultTimeframe string, logger *zap.Logger) *MarketDataService {
	return &MarketDataService{
		store:            st,
		defaultTimeframe: defaultTimeframe,
		logger:           logger,
	}
}

// Symbols returns every symbol the store knows about
func (s *MarketDataService) Symbols() []string {
	return s.store.KnownSymbols()
}

// ParseTimeframe parses raw, falling back to the configured default when empty
func (s *MarketDataService) ParseTimeframe(raw string) (model.Timeframe, error) {
	return parseTimeframe(raw, s.defaultTimeframe)
}

// Resampled returns the bars for symbol at timeframe, dropping bars traded
// below minVolume
func (s *MarketDataService) Resampled(symbol, timeframe string, minVolume float64) ([]model.Bar, error) {
	tf, err := s.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	bars, ok := s.store.ExportResampled(symbol, tf)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoData, model.NormalizeSymbol(symbol))
	}

	return model.FilterMinVolume(bars, minVolume), nil
}

// ExportCSV writes the resampled bars for symbol as a CSV table with the
// same columns the bar upload accepts
func (s *MarketDataService) ExportCSV(w io.Writer, symbol, timeframe string) error {
	bars, err := s.Resampled(symbol, timeframe, 0)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w for %s", ErrNoData, model.NormalizeSymbol(symbol))
	}

	return writeBarsCSV(w, bars)
}

// UploadNDJSON appends a newline-delimited JSON tick batch
func (s *MarketDataService) UploadNDJSON(ctx context.Context, r io.Reader) (int, error) {
	count, err := s.store.LoadRawBatch(ctx, r)
	if err != nil {
		s.logger.Warn("NDJSON batch stopped early",
			zap.Error(err),
			zap.Int("applied", count))
	}
	return count, err
}

// UploadBars installs a CSV bar table for symbol and timeframe
func (s *MarketDataService) UploadBars(ctx context.Context, symbol, timeframe string, r io.Reader) (int, error) {
	tf, err := s.ParseTimeframe(timeframe)
	if err != nil {
		return 0, err
	}
	return s.store.LoadBars(ctx, symbol, tf, r)
}

// AppendTicks appends ticks pushed by another service in order. It stops at
// the first tick the store rejects and returns how many were appended.
func (s *MarketDataService) AppendTicks(ctx context.Context, ticks []model.TickInput) (int, error) {
	for i, t := range ticks {
		if err := s.store.Append(ctx, t.Symbol, t.Time, t.Price, t.Size); err != nil {
			return i, fmt.Errorf("tick %d: %w", i, err)
		}
	}
	return len(ticks), nil
}

func parseTimeframe(raw, fallback string) (model.Timeframe, error) {
	if raw == "" {
		raw = fallback
	}
	return model.ParseTimeframe(raw)
}

func writeBarsCSV(w io.Writer, bars []model.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(barCSVHeader); err != nil {
		return err
	}
	for _, b := range bars {
		record := []string{
			b.Time.UTC().Format(time.RFC3339Nano),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat renders missing values as empty cells
func formatFloat(v float64) string {
	if model.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
