package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Relay ties the hub to its HTTP surface: the WebSocket upgrader, the origin
// policy, and the per-connection settings.
type Relay struct {
	cfg      *Config
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewRelay builds a Relay from cfg. A nil cfg means defaults and a nil logger
// means slog.Default(). Call Start before serving requests.
func NewRelay(cfg *Config, logger *slog.Logger) *Relay {
	if cfg == nil {
		cfg = NewConfig()
	}
	cfg.sanitize()
	if logger == nil {
		logger = slog.Default()
	}

	origins := newOriginPolicy(cfg.AllowedOrigins, logger)
	return &Relay{
		cfg: cfg,
		hub: NewHub(cfg.SendBufferSize, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		logger: logger,
	}
}

// Start runs the hub in its own goroutine.
func (r *Relay) Start() {
	go r.hub.Run()
	r.logger.Info("hub started and ready to relay messages")
}

// Shutdown stops the hub and closes every connection.
func (r *Relay) Shutdown(timeout time.Duration) error {
	return r.hub.Shutdown(timeout)
}

// Hub returns the relay's hub.
func (r *Relay) Hub() *Hub {
	return r.hub
}

// serveWebSocket upgrades the request and hands the connection to the hub.
func (r *Relay) serveWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "addr", req.RemoteAddr, "err", err)
		return
	}

	client := NewClient(conn, r.hub, req.RemoteAddr, r.cfg)
	if err := r.hub.Register(client); err != nil {
		client.logger.Info("rejecting connection", "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}
