// Package ws implements the Analysis Bridge over a WebSocket connection to
// the risk-analysis engine.
//
// The wire protocol is a stream of JSON text messages with a "type"
// discriminator. Inbound: "risk" and "ai_result". Outbound:
// "recording_started" and "recording_stopped". Unknown message types are
// logged and skipped so the engine can evolve independently.
//
// The client reconnects automatically with exponential backoff when the
// connection drops; inbound results simply stop flowing while disconnected,
// which the core tolerates (analysis is best-effort during a call).
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/riskguard/pkg/bridge"
)

// Default reconnection parameters.
const (
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ErrNotConnected is returned by outbound notifications while the client has
// no live connection to the analysis engine.
var ErrNotConnected = errors.New("bridge: not connected")

// event is the JSON envelope shared by inbound and outbound messages.
type event struct {
	Type string `json:"type"`

	// risk
	Score       int    `json:"score,omitempty"`
	Level       string `json:"level,omitempty"`
	Explanation string `json:"explanation,omitempty"`

	// ai_result
	Probability float64 `json:"probability,omitempty"`
	IsSynthetic bool    `json:"is_synthetic,omitempty"`

	// recording_started / recording_stopped
	Path string `json:"path,omitempty"`
}

// Client is a WebSocket-backed [bridge.Bridge]. Obtain one via [New], then
// call [Client.Run] to maintain the connection. All methods are safe for
// concurrent use.
type Client struct {
	url      string
	handlers bridge.Handlers
	backoff  time.Duration
	maxBack  time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	stopOnce sync.Once
}

// Config configures a [Client].
type Config struct {
	// URL is the websocket endpoint of the analysis engine
	// (e.g. "ws://127.0.0.1:8800/ws/analysis").
	URL string

	// Handlers receives inbound risk and AI results.
	Handlers bridge.Handlers

	// Backoff is the initial reconnect delay. Doubles per attempt up to
	// MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff caps the reconnect delay. Defaults to 30s if zero.
	MaxBackoff time.Duration
}

// New creates a [Client]. Call [Client.Run] to start it.
func New(cfg Config) *Client {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBack := cfg.MaxBackoff
	if maxBack <= 0 {
		maxBack = defaultMaxBackoff
	}
	return &Client{
		url:      cfg.URL,
		handlers: cfg.Handlers,
		backoff:  backoff,
		maxBack:  maxBack,
		done:     make(chan struct{}),
	}
}

// Run connects to the analysis engine and processes inbound messages until
// ctx is cancelled or [Client.Close] is called. Connection drops trigger
// reconnection with exponential backoff; Run only returns on shutdown.
func (c *Client) Run(ctx context.Context) {
	backoff := c.backoff
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			slog.Warn("bridge: dial failed, retrying", "url", c.url, "backoff", backoff, "err", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
			backoff = min(backoff*2, c.maxBack)
			continue
		}

		c.mu.Lock()
		select {
		case <-c.done:
			// Close won the race with this dial; it never saw the fresh
			// connection, so it is closed here.
			c.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "client shutdown")
			return
		default:
		}
		c.conn = conn
		c.mu.Unlock()
		slog.Info("bridge: connected", "url", c.url)
		backoff = c.backoff

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}
}

// Close stops the client and closes any live connection. Safe to call
// multiple times.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client shutdown")
		}
	})
}

// readLoop reads and dispatches inbound events until the connection fails.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("bridge: connection lost", "err", err)
			}
			return
		}

		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("bridge: malformed message, skipping", "err", err)
			continue
		}

		switch ev.Type {
		case "risk":
			if c.handlers.OnRisk != nil {
				c.handlers.OnRisk(ctx, bridge.RiskUpdate{
					Score:       ev.Score,
					Level:       ev.Level,
					Explanation: ev.Explanation,
				})
			}
		case "ai_result":
			if c.handlers.OnAIResult != nil {
				c.handlers.OnAIResult(ctx, bridge.AIResult{
					Probability: ev.Probability,
					IsSynthetic: ev.IsSynthetic,
				})
			}
		default:
			slog.Debug("bridge: unknown message type", "type", ev.Type)
		}
	}
}

// RecordingStarted implements [bridge.Bridge].
func (c *Client) RecordingStarted(ctx context.Context, path string) error {
	return c.writeJSON(ctx, event{Type: "recording_started", Path: path})
}

// RecordingStopped implements [bridge.Bridge].
func (c *Client) RecordingStopped(ctx context.Context, path string) error {
	return c.writeJSON(ctx, event{Type: "recording_stopped", Path: path})
}

// writeJSON marshals v and writes it as a text WebSocket message on the
// current connection.
func (c *Client) writeJSON(ctx context.Context, v event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bridge: marshal: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("bridge: write %s: %w", v.Type, err)
	}
	return nil
}
