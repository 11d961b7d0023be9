package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/athreya-m/trialmatch/internal/adapters/mcp"
	"github.com/athreya-m/trialmatch/internal/bootstrap"
	"github.com/athreya-m/trialmatch/internal/config"
	"github.com/athreya-m/trialmatch/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol stream; everything else goes to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, cfg.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(
		cfg,
		app.SearchUC,
		app.EvaluateUC,
		app.AnalyzeUC,
		app.MatchUC,
		app.Registry,
		app.Catalog,
	)

	slog.Info("mcp server serving on stdio")
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
