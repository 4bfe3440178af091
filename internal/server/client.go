// Package server manages individual relay connections: history replay,
// read/write pumps, rate limiting, and heartbeats for each client.
package server

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a single frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next frame or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is one relay connection. The hub owns its send queue and is the only
// goroutine that closes it.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan Message
	hub            *Hub
	addr           string
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	logger         *slog.Logger
}

// NewClient wraps conn for use with hub. The outbound queue is sized by the
// hub's send buffer; read limits and rate limits come from cfg.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg *Config) *Client {
	if cfg == nil {
		cfg = NewConfig()
	}
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan Message, hub.sendBuffer),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		logger:         hub.logger.With("client", id, "addr", addr),
	}
}

// ID returns the client's log label.
func (c *Client) ID() string {
	return c.id
}

// GetSendChan returns the client's outbound queue.
func (c *Client) GetSendChan() <-chan Message {
	return c.send
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", "err", err)
		}
		return nil
	})
}

// handleReadError logs a read failure at a level matching how expected it
// is. Every read error ends the connection.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), isExpectedCloseError(err):
		c.logger.Info("client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warn("unexpected websocket close", "err", err)
	default:
		c.logger.Info("websocket read ended", "err", err)
	}
}

// checkRateLimit reports whether the next frame may be relayed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter.allow() {
		return true
	}
	c.logger.Warn("rate limit exceeded; discarding message",
		"burst", c.rateLimit.Burst,
		"interval", c.rateLimit.RefillInterval)
	return false
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		if _, err := c.hub.publishFrom(c, Message{Type: messageType, Data: data}); err != nil {
			c.logger.Info("dropping message", "err", err)
			return
		}
	}
}

// writePump sends the replayed history, then live messages until the hub
// closes the queue or a write fails.
func (c *Client) writePump(replay []Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for _, msg := range replay {
		if !c.writeMessage(msg) {
			return
		}
	}

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case msg, ok := <-c.send:
		if !ok {
			return c.writeCloseMessage()
		}
		return c.writeMessage(msg)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection closes the socket, ignoring errors from a second close.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error closing connection", "err", err)
	}
}

func (c *Client) writeCloseMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error writing close message", "err", err)
	}
	return false
}

// writeMessage writes msg as a single frame of its original type.
func (c *Client) writeMessage(msg Message) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline", "err", err)
		return false
	}
	if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing message", "seq", msg.Seq, "err", err)
		}
		return false
	}
	return true
}

// handlePing sends a ping to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline for ping", "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn("error writing ping", "err", err)
		return false
	}
	return true
}
