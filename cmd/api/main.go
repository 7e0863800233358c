package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/policy-upload-portal/internal/adapters/http"
	"github.com/kirillkom/policy-upload-portal/internal/bootstrap"
	"github.com/kirillkom/policy-upload-portal/internal/config"
	"github.com/kirillkom/policy-upload-portal/internal/observability/logging"
	"github.com/kirillkom/policy-upload-portal/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger, logCloser := logging.NewJSONLoggerWithFile("api", cfg.LogLevel, logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.JanitorEnabled {
		go app.Janitor.Run(ctx)
	}

	router := httpadapter.NewRouter(cfg, app.Services, metrics.NewHTTPServerMetrics("api"), app.Sweeps.Registry()).Handler()
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		slog.Error("api_listen_failed", "addr", cfg.ListenAddr(), "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	go func() {
		slog.Info("api_listening",
			"addr", cfg.ListenAddr(),
			"environment", cfg.Environment,
			"janitor_enabled", cfg.JanitorEnabled,
			"max_connections", cfg.MaxConnections,
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_failed", "error", err)
	}
}
