package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoevents/internal/models"
	"github.com/your-org/photoevents/internal/observability"
	"github.com/your-org/photoevents/internal/queue"
)

// CleanupStore is the slice of the record store the cleanup worker reads.
type CleanupStore interface {
	DeleteStalePending(ctx context.Context, ttl time.Duration) ([]string, error)
	ListObjectKeys(ctx context.Context) (map[string]bool, error)
}

// CleanupObjects is the object-store surface cleanup needs.
type CleanupObjects interface {
	DeleteObjects(ctx context.Context, keys []string) error
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Cleaner handles maintenance jobs: temp-file sweeps, photos wedged in a
// non-terminal status past their TTL, and stored objects no record points at.
type Cleaner struct {
	store      CleanupStore
	objects    CleanupObjects
	tempDir    string
	pendingTTL time.Duration
}

func NewCleaner(store CleanupStore, objects CleanupObjects, tempDir string, pendingTTL time.Duration) *Cleaner {
	if pendingTTL == 0 {
		pendingTTL = 24 * time.Hour
	}
	return &Cleaner{
		store:      store,
		objects:    objects,
		tempDir:    tempDir,
		pendingTTL: pendingTTL,
	}
}

// CleanupHandler adapts Run to the queue consumer.
func (c *Cleaner) CleanupHandler() queue.MessageHandler {
	return func(ctx context.Context, msg jetstream.Msg) error {
		var job models.CleanupJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			slog.Error("unmarshal cleanup job", "error", err)
			return nil
		}
		return c.Run(ctx, job)
	}
}

func (c *Cleaner) Run(ctx context.Context, job models.CleanupJob) error {
	slog.Info("cleanup job started", "type", job.Type)

	switch job.Type {
	case models.CleanupTemp:
		dir := job.Directory
		if dir == "" {
			dir = c.tempDir
		}
		maxAge := job.MaxAge
		if maxAge == 0 {
			maxAge = 24 * time.Hour
		}
		n, err := sweepTempFiles(dir, maxAge)
		if err != nil {
			return err
		}
		observability.FilesCleaned.WithLabelValues(string(job.Type)).Add(float64(n))
		slog.Info("temp sweep done", "removed", n)
		return nil

	case models.CleanupStale:
		keys, err := c.store.DeleteStalePending(ctx, c.pendingTTL)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.objects.DeleteObjects(ctx, keys); err != nil {
				return fmt.Errorf("delete stale objects: %w", err)
			}
		}
		observability.FilesCleaned.WithLabelValues(string(job.Type)).Add(float64(len(keys)))
		slog.Info("stale pending sweep done", "removed", len(keys))
		return nil

	case models.CleanupOrphans:
		return c.sweepOrphans(ctx, job.Type)

	default:
		slog.Error("unknown cleanup type", "type", job.Type)
		return nil // don't retry what we can't interpret
	}
}

func (c *Cleaner) sweepOrphans(ctx context.Context, jobType models.CleanupType) error {
	stored, err := c.objects.ListObjects(ctx, "photos/")
	if err != nil {
		return err
	}
	known, err := c.store.ListObjectKeys(ctx)
	if err != nil {
		return err
	}

	var orphans []string
	for _, key := range stored {
		if !known[key] {
			orphans = append(orphans, key)
		}
	}
	if len(orphans) > 0 {
		if err := c.objects.DeleteObjects(ctx, orphans); err != nil {
			return fmt.Errorf("delete orphan objects: %w", err)
		}
	}
	observability.FilesCleaned.WithLabelValues(string(jobType)).Add(float64(len(orphans)))
	slog.Info("orphan sweep done", "removed", len(orphans))
	return nil
}

func sweepTempFiles(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Only touch files this service wrote.
		name := entry.Name()
		if !strings.HasPrefix(name, "upload_") && !strings.HasPrefix(name, "encode_") &&
			!strings.HasPrefix(name, "optimized_") && !strings.HasPrefix(name, "selfie_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// ScheduleCleanup periodically enqueues the three sweep jobs. Runs until the
// context is cancelled.
func ScheduleCleanup(ctx context.Context, client queue.Client, interval time.Duration, tempDir string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			jobs := []models.CleanupJob{
				{Type: models.CleanupTemp, Directory: tempDir, MaxAge: 24 * time.Hour, Timestamp: now},
				{Type: models.CleanupStale, Timestamp: now},
				{Type: models.CleanupOrphans, Timestamp: now},
			}
			for _, job := range jobs {
				if _, err := client.EnqueueCleanup(ctx, job); err != nil {
					slog.Warn("enqueue cleanup job", "type", job.Type, "error", err)
				}
			}
		}
	}
}
