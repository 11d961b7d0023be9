package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/athreya-m/trialmatch/internal/adapters/http"
	"github.com/athreya-m/trialmatch/internal/bootstrap"
	"github.com/athreya-m/trialmatch/internal/config"
	"github.com/athreya-m/trialmatch/internal/observability/logging"
	"github.com/athreya-m/trialmatch/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(cfg.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		EmbedCacheCounter: httpMetrics.EmbedCacheCounter(),
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		cfg,
		app.SearchUC,
		app.EvaluateUC,
		app.AnalyzeUC,
		app.MatchUC,
		app.Registry,
		app.Catalog,
		httpMetrics,
	)
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
