// Package feed connects to the Binance spot WebSocket stream and delivers
// typed depth and trade updates to the pipeline in arrival order.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

var errShortLevel = errors.New("level entry has fewer than two fields")

const (
	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// pongWait is the time allowed to read the next pong from the exchange.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// writeWait bounds control-frame writes.
	writeWait = 10 * time.Second

	// reconnectDelay is the fixed backoff between connection attempts. Book
	// state is kept across reconnects; there is no snapshot resync, so a
	// dropped diff leaves the book desynchronized until levels churn.
	reconnectDelay = 5 * time.Second
)

// DepthHandler is called for each well-formed depth diff.
type DepthHandler func(ctx context.Context, update domain.DepthUpdate)

// TradeHandler is called for each well-formed trade.
type TradeHandler func(ctx context.Context, trade domain.TradeEvent)

// BinanceFeed subscribes to <symbol>@depth and <symbol>@trade for the
// configured symbols and invokes the handlers sequentially, in arrival order.
// Malformed messages are dropped whole and logged; they never reach the book.
type BinanceFeed struct {
	wsURL     string
	symbols   []string
	onDepth   DepthHandler
	onTrade   TradeHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewBinanceFeed creates a feed for the given stream endpoint and symbols
// (e.g. "btcusdt").
func NewBinanceFeed(wsURL string, symbols []string, onDepth DepthHandler, onTrade TradeHandler, logger *slog.Logger) *BinanceFeed {
	return &BinanceFeed{
		wsURL:   wsURL,
		symbols: symbols,
		onDepth: onDepth,
		onTrade: onTrade,
		logger:  logger.With(slog.String("component", "binance_feed")),
		done:    make(chan struct{}),
	}
}

// subscribeCmd is the Binance stream subscription frame.
type subscribeCmd struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Run connects and processes messages until ctx is cancelled or Close is
// called. Transport failures trigger a fixed-delay reconnect; in-memory book
// state owned by the handlers is retained as-is across reconnects.
func (f *BinanceFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols configured, feed exiting")
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("binance ws disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("delay", reconnectDelay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// Close stops the feed after the current message.
func (f *BinanceFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *BinanceFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	params := make([]string, 0, 2*len(f.symbols))
	for _, sym := range f.symbols {
		s := strings.ToLower(strings.TrimSpace(sym))
		params = append(params, s+"@depth", s+"@trade")
	}
	if err := conn.WriteJSON(subscribeCmd{Method: "SUBSCRIBE", Params: params, ID: 1}); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("binance ws subscribed", slog.Int("streams", len(params)))

	// Keepalive pings and cancellation both unblock the reader by closing
	// the connection.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-f.done:
				conn.Close()
				return
			case <-stop:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", domain.ErrWSDisconnect)
		}
		f.handleMessage(ctx, data)
	}
}

// handleMessage parses and dispatches one frame. Parse failures drop the
// message whole; book state is never touched by a bad frame.
func (f *BinanceFeed) handleMessage(ctx context.Context, data []byte) {
	msg, err := parseMessage(data)
	if err != nil {
		f.logger.Warn("dropping malformed message",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(data)),
		)
		return
	}

	switch msg.Kind {
	case eventDepthUpdate:
		if f.onDepth != nil {
			f.onDepth(ctx, msg.Depth)
		}
	case eventTrade:
		if f.onTrade != nil {
			f.onTrade(ctx, msg.Trade)
		}
	}
}
