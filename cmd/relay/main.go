package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/wsrelay/internal/server"
)

func main() {
	cfg := server.NewConfigFromEnv()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ln, err := server.Listen(cfg.Addr())
	if err != nil {
		logger.Error("failed to start relay", "addr", cfg.Addr(), "err", err)
		os.Exit(1)
	}

	relay := server.NewRelay(cfg, logger)
	relay.Start()

	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(relay))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, ln)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("relay server stopped", "err", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger)
	}

	if err := relay.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("relay shutdown incomplete", "err", err)
	}
	stop()
	os.Exit(exitCode)
}
