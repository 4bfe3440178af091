// Package server constructs and starts the relay's HTTP service with helpers
// that apply production defaults.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server for addr and handler with timeouts
// suited to production use. Upgraded connections clear these deadlines and
// manage their own.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Listen binds the TCP listener for addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// StartServer announces the listening address and serves on ln until the
// server is shut down. A clean shutdown returns nil.
func StartServer(server *http.Server, ln net.Listener) error {
	fmt.Printf("Relay server running on ws://%s\n", announceAddr(server, ln))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ShutdownServer stops accepting new connections and waits for in-flight
// HTTP requests until timeout.
func ShutdownServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
		return err
	}

	logger.Info("HTTP server shutdown completed")
	return nil
}

// announceAddr prefers the configured address and falls back to the bound one
// when the port was chosen by the kernel.
func announceAddr(server *http.Server, ln net.Listener) string {
	if _, port, err := net.SplitHostPort(server.Addr); err == nil && port != "0" {
		return server.Addr
	}
	return ln.Addr().String()
}
