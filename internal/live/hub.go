// Package live pushes heartbeats and triggered alerts to websocket clients.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// PriceSource reports the latest trade price per symbol
type PriceSource interface {
	LatestPrices() map[string]float64
}

// SymbolPrice is one entry of a heartbeat
type SymbolPrice struct {
	Price float64 `json:"price"`
}

// Heartbeat is sent to every client once per interval
type Heartbeat struct {
	Type    string                 `json:"type"`
	TS      float64                `json:"ts"`
	Symbols map[string]SymbolPrice `json:"symbols"`
}

// AlertEvent carries alerts raised by an analytics request
type AlertEvent struct {
	Type   string                 `json:"type"`
	Alerts []model.TriggeredAlert `json:"alerts"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and broadcasts to them. Slow clients whose
// buffer fills up are disconnected.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	prices   PriceSource
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a new hub
func NewHub(prices PriceSource, interval time.Duration, logger *zap.Logger) *Hub {
	if interval <= 0 {
		interval = time.Second
	}
	return &Hub{
		clients:  make(map[*client]struct{}),
		prices:   prices,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run sends heartbeats until ctx is cancelled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case now := <-ticker.C:
			h.broadcast(h.heartbeat(now))
		}
	}
}

func (h *Hub) heartbeat(now time.Time) Heartbeat {
	hb := Heartbeat{
		Type:    "heartbeat",
		TS:      float64(now.UnixNano()) / 1e9,
		Symbols: make(map[string]SymbolPrice),
	}
	for sym, p := range h.prices.LatestPrices() {
		hb.Symbols[sym] = SymbolPrice{Price: p}
	}
	return hb
}

// Notify broadcasts alerts to every client
func (h *Hub) Notify(_ context.Context, alerts []model.TriggeredAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	h.broadcast(AlertEvent{Type: "alert", Alerts: alerts})
	return nil
}

// ServeWS upgrades the request and registers the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Live client connected", zap.String("remote", r.RemoteAddr))

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal live payload", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.dropLocked(c)
		}
	}
}

// writeLoop is the only writer on c.conn
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// readLoop discards client input and notices disconnects
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}
