package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Inbound event types delivered by the chat gateway.
const (
	TypeCommand = "command"
	TypeText    = "text"
)

// Inbound is one chat event received from the gateway.
type Inbound struct {
	Type   string    `json:"type"`
	Name   string    `json:"name,omitempty"`
	Body   string    `json:"body,omitempty"`
	UserID string    `json:"user_id"`
	Time   time.Time `json:"time"`
}

// Outbound is a plain-text reply keyed to a user.
type Outbound struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Gateway is a websocket connection to the chat transport. It is thin
// I/O: every decision about an event belongs to the bot core.
type Gateway struct {
	url    string
	conn   *websocket.Conn
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// Dial connects to the chat gateway at the given websocket URL.
func Dial(url string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	logger.Info("connected to chat gateway", "url", url)
	return &Gateway{url: url, conn: conn, logger: logger}, nil
}

// Listen reads inbound events until the connection closes or ctx is done,
// passing each to handle and relaying any non-empty reply to the sender.
func (g *Gateway) Listen(ctx context.Context, handle func(ctx context.Context, in Inbound) string) error {
	// ReadJSON blocks until a frame arrives; closing the connection is the
	// only way to interrupt it when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			g.Close()
		case <-done:
		}
	}()

	for {
		var in Inbound
		if err := g.conn.ReadJSON(&in); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if g.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("failed to read inbound event: %w", err)
		}
		if in.Time.IsZero() {
			in.Time = time.Now()
		}

		if reply := handle(ctx, in); reply != "" {
			if err := g.Send(in.UserID, reply); err != nil {
				return err
			}
		}
	}
}

// Send writes one reply to the gateway.
func (g *Gateway) Send(userID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("gateway is closed")
	}
	if err := g.conn.WriteJSON(Outbound{UserID: userID, Text: text}); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if g.conn != nil {
		// Send close message
		g.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		g.conn.Close()
	}

	g.logger.Info("closed gateway connection", "url", g.url)
	return nil
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
