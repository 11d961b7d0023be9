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

	"github.com/athreya-m/trialmatch/internal/bootstrap"
	"github.com/athreya-m/trialmatch/internal/config"
	"github.com/athreya-m/trialmatch/internal/observability/logging"
	"github.com/athreya-m/trialmatch/internal/observability/metrics"
)

const indexTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(cfg.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(cfg.ServiceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		EmbedCacheCounter: workerMetrics.EmbedCacheCounter(),
		OnQueueLag: func(lag time.Duration) {
			workerMetrics.ObserveQueueLag(cfg.ServiceName, lag)
		},
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeTrialIndexRequested(ctx, func(handlerCtx context.Context, trialID string) error {
		indexCtx, cancel := context.WithTimeout(handlerCtx, indexTimeout)
		defer cancel()

		workerMetrics.StartTrial()
		start := time.Now()
		segments, err := app.IndexUC.IndexTrialByID(indexCtx, trialID)
		workerMetrics.FinishTrial(cfg.ServiceName, time.Since(start), err)
		if err != nil {
			return err
		}
		workerMetrics.ObserveSegments(cfg.ServiceName, segments)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("worker metrics shutdown error: %v", err)
	}
}
