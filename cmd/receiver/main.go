package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/config"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/display"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/metrics"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/server"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "asbplayer-subtitle-streamer"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration; a missing file falls back to defaults so the
	// receiver runs with no arguments at all.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.String("listen_address", cfg.Server.ListenAddr()),
		slog.String("path", cfg.Server.Path),
		slog.Bool("http_enabled", cfg.HTTP.Enabled),
		slog.Bool("show_heartbeats", cfg.Display.ShowHeartbeats),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Subtitle output goes to stdout; logs go wherever the config says
	// (stderr by default) so the two streams never interleave.
	renderer := display.NewRenderer(os.Stdout, display.Options{
		ShowHeartbeats:   cfg.Display.ShowHeartbeats,
		ShowVideoDetails: cfg.Display.ShowVideoDetails,
	})

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	sessions := session.NewManager(logger)

	wsServer := server.NewWSServer(&cfg.Server, logger, renderer, sessions, appMetrics)
	if err := wsServer.Start(); err != nil {
		logger.Error("Failed to start WebSocket server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, sessions, wsServer, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP monitoring server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for connections",
		slog.String("websocket_address", wsServer.Addr()),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := wsServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping WebSocket server", slog.String("error", err.Error()))
	}

	stats := wsServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("messages_received", stats.MessagesReceived),
		slog.Uint64("messages_processed", stats.MessagesProcessed),
		slog.Uint64("decode_errors", stats.DecodeErrors),
		slog.Uint64("unknown_types", stats.UnknownTypes),
	)

	renderer.Goodbye()
	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
