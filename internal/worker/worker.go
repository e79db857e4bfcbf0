package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoevents/internal/face"
	"github.com/your-org/photoevents/internal/models"
	"github.com/your-org/photoevents/internal/observability"
	"github.com/your-org/photoevents/internal/queue"
	"github.com/your-org/photoevents/internal/storage"
)

// PhotoStore is the slice of the record store the encode worker mutates.
type PhotoStore interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, embeddings [][]float32, model models.FaceModel, facesDetected int) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ObjectStore fetches stored photo files for encoding.
type ObjectStore interface {
	FetchToFile(ctx context.Context, key, path string) error
}

// Notifier publishes processing lifecycle events.
type Notifier interface {
	PublishProcessed(ctx context.Context, ev models.ProcessedEvent) error
}

// Worker turns queued encode jobs into stored embeddings.
type Worker struct {
	store   PhotoStore
	objects ObjectStore
	encoder face.Encoder
	notify  Notifier
	tempDir string
}

func New(store PhotoStore, objects ObjectStore, encoder face.Encoder, notify Notifier, tempDir string) *Worker {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Worker{
		store:   store,
		objects: objects,
		encoder: encoder,
		notify:  notify,
		tempDir: tempDir,
	}
}

// EncodeHandler adapts ProcessEncode to the queue consumer. Delivery count
// comes from the message metadata so the final attempt can be told apart
// from intermediate ones.
func (w *Worker) EncodeHandler() queue.MessageHandler {
	return func(ctx context.Context, msg jetstream.Msg) error {
		var job models.EncodeJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			slog.Error("unmarshal encode job", "error", err)
			return nil // malformed payloads never become valid, don't retry
		}

		attempt := 1
		if meta, err := msg.Metadata(); err == nil {
			attempt = int(meta.NumDelivered)
		}

		return w.ProcessEncode(ctx, job, attempt, queue.MaxDeliver)
	}
}

// ProcessEncode runs one delivery of an encode job:
// mark processing → fetch image → encode → mark completed/failed.
// A retryable failure on a non-final attempt returns the error so the queue
// redelivers; the photo stays processing until the attempt budget decides
// its terminal state.
func (w *Worker) ProcessEncode(ctx context.Context, job models.EncodeJob, attempt, maxAttempts int) error {
	log := slog.With("photo_id", job.PhotoID, "attempt", attempt)
	log.Info("encode job started")

	if err := w.store.MarkProcessing(ctx, job.PhotoID); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			// Already completed or failed (duplicate delivery), or deleted.
			log.Warn("photo not in an encodable state, skipping")
			observability.EncodeJobs.WithLabelValues("skipped").Inc()
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}

	result, err := w.encodeFromObject(ctx, job)
	if err != nil {
		final := attempt >= maxAttempts || !face.Retryable(err)
		if !final {
			observability.EncodeJobs.WithLabelValues("retried").Inc()
			return fmt.Errorf("encode photo %s: %w", job.PhotoID, err)
		}

		log.Error("encode job failed permanently", "error", err)
		observability.EncodeJobs.WithLabelValues("failed").Inc()
		if markErr := w.store.MarkFailed(ctx, job.PhotoID, err.Error()); markErr != nil {
			log.Error("mark failed", "error", markErr)
		}
		w.publishProcessed(ctx, job, models.StatusFailed, nil, err.Error())
		return nil // terminal state reached, don't redeliver
	}

	if err := w.store.MarkCompleted(ctx, job.PhotoID, result.Embeddings, result.Model, result.FacesDetected); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			log.Warn("photo left processing state before completion")
			return nil
		}
		return fmt.Errorf("mark completed: %w", err)
	}

	log.Info("encode job completed", "faces", result.FacesDetected, "model", result.Model)
	observability.EncodeJobs.WithLabelValues("completed").Inc()
	w.publishProcessed(ctx, job, models.StatusCompleted, result, "")
	return nil
}

func (w *Worker) encodeFromObject(ctx context.Context, job models.EncodeJob) (*face.Result, error) {
	localPath := filepath.Join(w.tempDir, fmt.Sprintf("encode_%s%s", job.PhotoID, filepath.Ext(job.ObjectKey)))
	if err := w.objects.FetchToFile(ctx, job.ObjectKey, localPath); err != nil {
		return nil, fmt.Errorf("fetch photo object: %w", err)
	}
	defer os.Remove(localPath)

	start := time.Now()
	result, err := w.encoder.Encode(ctx, localPath)
	observability.EncodeDuration.WithLabelValues(w.encoder.Name()).Observe(time.Since(start).Seconds())
	return result, err
}

func (w *Worker) publishProcessed(ctx context.Context, job models.EncodeJob, status models.ProcessingStatus, result *face.Result, errMsg string) {
	ev := models.ProcessedEvent{
		PhotoID:   job.PhotoID,
		EventID:   job.EventID,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
	if result != nil {
		ev.FacesDetected = result.FacesDetected
		ev.Model = result.Model
	}
	if err := w.notify.PublishProcessed(ctx, ev); err != nil {
		slog.Warn("publish processed event", "photo_id", job.PhotoID, "error", err)
	}
}
