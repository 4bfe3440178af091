// Package server defines the relayed message type, broadcast outcome types,
// and small helpers shared by the hub and client code.
package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrHubClosed is returned by hub operations after Shutdown.
	ErrHubClosed = errors.New("hub closed")

	// ErrSendBufferFull reports a recipient whose outbound queue could not take
	// another message. The recipient is evicted.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrClientClosed is returned when a client that has already left the
	// active set tries to publish.
	ErrClientClosed = errors.New("client closed")
)

// Message is one entry of the message log. Type and Data are relayed
// verbatim; Seq and ReceivedAt are server-side bookkeeping only.
type Message struct {
	Seq        uint64
	Type       int
	Data       []byte
	ReceivedAt time.Time
}

// NewTextMessage builds an unsequenced text message.
func NewTextMessage(text string) Message {
	return Message{Type: websocket.TextMessage, Data: []byte(text)}
}

// Delivery records one recipient's dispatch failure.
type Delivery struct {
	ClientID string
	Addr     string
	Err      error
}

// BroadcastReport collects the per-recipient outcome of one broadcast.
type BroadcastReport struct {
	Seq        uint64
	Recipients int
	Delivered  int
	Failures   []Delivery
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	ActiveConnections int           `json:"active_connections"`
	LoggedMessages    int           `json:"logged_messages"`
	Uptime            time.Duration `json:"-"`
	UptimeSeconds     float64       `json:"uptime_seconds"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
