package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/athreya-m/trialmatch/internal/bootstrap"
	"github.com/athreya-m/trialmatch/internal/config"
	"github.com/athreya-m/trialmatch/internal/ingest"
	"github.com/athreya-m/trialmatch/internal/observability/logging"
)

func main() {
	manifestPath := flag.String("manifest", "", "path to the dataset manifest (yaml)")
	flag.Parse()
	if *manifestPath == "" {
		log.Fatal("usage: loader -manifest <path>")
	}

	cfg := config.Load()
	logger := logging.NewJSONLogger(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manifest, err := ingest.LoadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("load manifest: %v", err)
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	loader := ingest.NewLoader(app.Registry, app.Catalog, app.Queue, logger)
	stats, err := loader.Run(ctx, manifest)
	if err != nil {
		log.Fatalf("dataset load failed: %v", err)
	}

	log.Printf("loaded %d patients, %d conditions (%d orphaned), %d trials, %d index requests published",
		stats.Patients, stats.Conditions, stats.OrphanConditions, stats.Trials, stats.Published)
}
