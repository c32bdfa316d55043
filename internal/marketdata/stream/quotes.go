// Package stream maintains a live view of last traded prices over a
// websocket quote feed. The feed is advisory: portfolio valuation falls back
// to average cost when a symbol has no live quote yet.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config configures the quote feed connection.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
}

// quoteMessage is one price update from the feed.
type quoteMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// subscribeRequest asks the feed to stream a set of symbols.
type subscribeRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// QuoteFeed holds the latest observed price per subscribed symbol.
type QuoteFeed struct {
	cfg Config
	log *slog.Logger

	mu      sync.RWMutex
	symbols []string
	prices  map[string]float64
}

// New creates a quote feed for the given endpoint.
func New(cfg Config, log *slog.Logger) *QuoteFeed {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &QuoteFeed{
		cfg:    cfg,
		log:    log,
		prices: make(map[string]float64),
	}
}

// Subscribe registers symbols to stream. Takes effect on the next
// (re)connection.
func (f *QuoteFeed) Subscribe(symbols ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbols...)
}

// Latest returns the last observed price for a symbol.
func (f *QuoteFeed) Latest(symbol string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[symbol]
	return p, ok
}

// Prices returns a snapshot of all observed prices.
func (f *QuoteFeed) Prices() map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := make(map[string]float64, len(f.prices))
	for k, v := range f.prices {
		cp[k] = v
	}
	return cp
}

// Run connects to the feed and consumes quotes until ctx is cancelled,
// reconnecting with a fixed delay after any connection failure.
func (f *QuoteFeed) Run(ctx context.Context) error {
	for {
		if err := f.consume(ctx); err != nil {
			f.log.Warn("quote feed disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

func (f *QuoteFeed) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the connection when ctx is cancelled to unblock ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	f.mu.RLock()
	req := subscribeRequest{Op: "subscribe", Symbols: append([]string(nil), f.symbols...)}
	f.mu.RUnlock()
	if err := conn.WriteJSON(req); err != nil {
		return err
	}
	f.log.Info("quote feed connected", "url", f.cfg.URL, "symbols", len(req.Symbols))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg quoteMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Symbol == "" {
			continue // ignore heartbeats and unknown frames
		}

		f.mu.Lock()
		f.prices[msg.Symbol] = msg.Price
		f.mu.Unlock()
	}
}
