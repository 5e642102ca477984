package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/pairs-analytics/internal/metrics"
	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultBinanceURL is the futures trade stream endpoint
const DefaultBinanceURL = "wss://fstream.binance.com/ws"

const (
	binanceReadLimit   = 1 << 20
	binanceReadTimeout = 60 * time.Second
)

var errNotTrade = errors.New("not a trade event")

// tradeEvent is the Binance trade stream payload
type tradeEvent struct {
	Event     string `json:"e" validate:"required"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s" validate:"required"`
	Price     string `json:"p" validate:"required,numeric"`
	Quantity  string `json:"q" validate:"required,numeric"`
	TradeTime int64  `json:"T"`
}

// BinanceFeed streams trades for each symbol over its own websocket
type BinanceFeed struct {
	baseURL  string
	symbols  []string
	dialer   *websocket.Dialer
	validate *validator.Validate
	logger   *zap.Logger

	// newBackOff is replaced in tests
	newBackOff func() backoff.BackOff
}

// NewBinanceFeed creates a new Binance feed
func NewBinanceFeed(baseURL string, symbols []string, logger *zap.Logger) (*BinanceFeed, error) {
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}

	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = model.NormalizeSymbol(s); s != "" {
			normalized = append(normalized, s)
		}
	}
	if len(normalized) == 0 {
		return nil, ErrNoSymbols
	}

	return &BinanceFeed{
		baseURL:  strings.TrimRight(baseURL, "/"),
		symbols:  normalized,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		validate: validator.New(),
		logger:   logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}, nil
}

// Run implements Source. It returns once every symbol stream has stopped.
func (f *BinanceFeed) Run(ctx context.Context, sink Sink) error {
	var wg sync.WaitGroup
	for _, sym := range f.symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			f.runSymbol(ctx, sym, sink)
		}(sym)
	}
	wg.Wait()
	return ctx.Err()
}

// runSymbol keeps one stream connected until ctx is cancelled
func (f *BinanceFeed) runSymbol(ctx context.Context, symbol string, sink Sink) {
	url := fmt.Sprintf("%s/%s@trade", f.baseURL, symbol)
	logger := f.logger.With(zap.String("symbol", symbol), zap.String("url", url))

	operation := func() error {
		err := f.stream(ctx, url, sink, logger)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Trade stream disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(f.newBackOff(), ctx), notify); err != nil && ctx.Err() == nil {
		logger.Error("Trade stream stopped", zap.Error(err))
	}
}

// stream reads one connection until it fails or ctx is cancelled
func (f *BinanceFeed) stream(ctx context.Context, url string, sink Sink, logger *zap.Logger) error {
	conn, _, err := f.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(binanceReadLimit)
	logger.Info("Trade stream connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(binanceReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.handleMessage(ctx, data, sink, logger)
	}
}

func (f *BinanceFeed) handleMessage(ctx context.Context, data []byte, sink Sink, logger *zap.Logger) {
	tick, err := f.parseTradeMessage(data)
	if errors.Is(err, errNotTrade) {
		return
	}
	if err != nil {
		metrics.FeedMessagesDropped.WithLabelValues("binance").Inc()
		logger.Debug("Dropped malformed trade message", zap.Error(err))
		return
	}

	if err := sink.Append(ctx, tick.Symbol, tick.Time, tick.Price, tick.Size); err != nil {
		logger.Warn("Failed to append trade", zap.Error(err))
	}
}

// parseTradeMessage converts one stream payload into a tick
func (f *BinanceFeed) parseTradeMessage(data []byte) (model.Tick, error) {
	var ev tradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Tick{}, err
	}
	if ev.Event != "" && ev.Event != "trade" {
		return model.Tick{}, errNotTrade
	}
	if err := f.validate.Struct(&ev); err != nil {
		return model.Tick{}, err
	}

	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return model.Tick{}, fmt.Errorf("price: %w", err)
	}
	qty, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		return model.Tick{}, fmt.Errorf("quantity: %w", err)
	}
	if !price.IsPositive() || qty.IsNegative() {
		return model.Tick{}, fmt.Errorf("non-positive price %s", ev.Price)
	}

	ms := ev.TradeTime
	if ms <= 0 {
		ms = ev.EventTime
	}
	ts := time.Now().UTC()
	if ms > 0 {
		ts = time.UnixMilli(ms).UTC()
	}

	return model.Tick{
		Symbol: model.NormalizeSymbol(ev.Symbol),
		Time:   ts,
		Price:  price.InexactFloat64(),
		Size:   qty.InexactFloat64(),
	}, nil
}
