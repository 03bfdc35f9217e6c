package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskmux/internal/api"
	"github.com/btouchard/taskmux/internal/config"
	"github.com/btouchard/taskmux/internal/gateway"
	"github.com/btouchard/taskmux/internal/ingest"
	taskmcp "github.com/btouchard/taskmux/internal/mcp"
	"github.com/btouchard/taskmux/internal/service"
	"github.com/btouchard/taskmux/internal/store"
	"github.com/btouchard/taskmux/internal/track"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("taskmux %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: taskmux <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the Taskmux server\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting taskmux",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	_, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- SQLite archive ---
	db, err := store.NewSQLiteStore(cfg.Database.Path, cfg.Database.RetentionDays)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("database opened", "path", cfg.Database.Path)

	// --- Gateway ---
	var gw gateway.Gateway
	if cfg.Upstream.BaseURL != "" {
		gw = gateway.NewHTTPGateway(cfg.Upstream.BaseURL, cfg.Upstream.Token)
		slog.Info("using upstream runtime", "base_url", cfg.Upstream.BaseURL)
	} else {
		gw = gateway.NewLoopback()
		slog.Warn("no upstream configured, using loopback runtime")
	}

	// --- Tracker + ingest ---
	tr := track.New(cfg.Tracker.MaxFinished)
	ing := ingest.New(gw, tr)
	ing.ReconnectMin = cfg.Upstream.ReconnectMin
	ing.ReconnectMax = cfg.Upstream.ReconnectMax

	// --- Task service ---
	svc := service.New(gw, tr, ing, db)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting task service: %w", err)
	}
	defer svc.Stop()

	// --- Archive cleanup loop ---
	go cleanupLoop(ctx, db)

	// --- MCP Server ---
	mcpServer := taskmcp.NewServer(&taskmcp.Deps{
		Tasks:   svc,
		Version: version,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpServer)

	// --- HTTP Server ---
	router := api.NewRouter(svc, cfg.Server.AuthToken, mcpHTTP)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("taskmux is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// cleanupLoop prunes archived tasks past the retention window once a day.
func cleanupLoop(ctx context.Context, db *store.SQLiteStore) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.Cleanup(); err != nil {
				slog.Warn("archive cleanup failed", "error", err)
			}
		}
	}
}
