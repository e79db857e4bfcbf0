package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photoevents/internal/config"
	"github.com/your-org/photoevents/internal/face"
	"github.com/your-org/photoevents/internal/observability"
	"github.com/your-org/photoevents/internal/queue"
	"github.com/your-org/photoevents/internal/storage"
	"github.com/your-org/photoevents/internal/worker"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting photoevents encode worker",
		"encode_workers", cfg.Worker.EncodeConcurrency,
		"cpu_cores", runtime.NumCPU(),
	)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// The worker has no degraded mode. Without a queue there is nothing to
	// consume, so an unreachable queue is fatal here.
	client, err := queue.NewNATSClient(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure queue streams", "error", err)
	}

	// Probe the external encoder once; fall back to the hash encoder so the
	// pipeline keeps draining even without the embedding command installed.
	encoder := face.NewFromProbe(cfg.Face)
	slog.Info("face encoder selected", "encoder", encoder.Name())

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.New(db, minioStore, encoder, client, cfg.Upload.TempDir)
	err = consumer.ConsumeEncode(ctx, "encode-workers", w.EncodeHandler(), cfg.Worker.EncodeConcurrency)
	if err != nil {
		slog.Error("start encode consumer", "error", err)
		os.Exit(1)
	}

	cleaner := worker.NewCleaner(db, minioStore, cfg.Upload.TempDir, cfg.Worker.PendingTTL)
	err = consumer.ConsumeCleanup(ctx, "cleanup-workers", cleaner.CleanupHandler(), cfg.Worker.CleanupConcurrency)
	if err != nil {
		slog.Error("start cleanup consumer", "error", err)
		os.Exit(1)
	}

	go worker.ScheduleCleanup(ctx, client, cfg.Worker.CleanupInterval, cfg.Upload.TempDir)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats, err := client.Stats(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(stats.EncodePending))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
