package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoevents/internal/api"
	"github.com/your-org/photoevents/internal/api/ws"
	"github.com/your-org/photoevents/internal/config"
	"github.com/your-org/photoevents/internal/face"
	"github.com/your-org/photoevents/internal/models"
	"github.com/your-org/photoevents/internal/observability"
	"github.com/your-org/photoevents/internal/queue"
	"github.com/your-org/photoevents/internal/storage"
	"github.com/your-org/photoevents/pkg/dto"
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

	slog.Info("starting photoevents API service", "port", cfg.Server.Port)

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
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to the queue. The API tolerates an unreachable queue: uploads
	// still work, encoding is just not triggered.
	queueClient := queue.Connect(cfg.NATS.URL)
	defer queueClient.Close()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broadcast processing notifications over WebSocket. Skipped entirely in
	// degraded mode: there is nothing to consume.
	if !queueClient.Degraded() {
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Warn("create notification consumer", "error", err)
		} else {
			defer consumer.Close()
			err = consumer.ConsumeProcessed(ctx, "api-notifications", func(ctx context.Context, msg jetstream.Msg) error {
				var ev models.ProcessedEvent
				if err := json.Unmarshal(msg.Data(), &ev); err != nil {
					slog.Error("unmarshal processed event", "error", err)
					return nil // don't retry malformed payloads
				}

				hub.BroadcastEvent(&dto.WSEvent{
					Type:    "photo_processed",
					EventID: ev.EventID,
					Data:    ev,
				})
				return nil
			})
			if err != nil {
				slog.Warn("start notification consumer", "error", err)
			}
		}
	}

	// The selfie search endpoint needs its own encoder. Probe once at
	// startup, same as the worker.
	encoder := face.NewFromProbe(cfg.Face)
	slog.Info("face encoder selected", "encoder", encoder.Name())

	router := api.NewRouter(api.RouterConfig{
		APIKey:  cfg.Server.APIKey,
		DB:      db,
		MinIO:   minioStore,
		Queue:   queueClient,
		Hub:     hub,
		Encoder: encoder,
		Upload:  cfg.Upload,
		Face:    cfg.Face,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}

	slog.Info("API server stopped")
}
