package queue

import (
	"context"

	"github.com/your-org/photoevents/internal/models"
)

// Stats reports queue occupancy for the system endpoint.
type Stats struct {
	EncodePending  uint64 `json:"encode_pending"`
	CleanupPending uint64 `json:"cleanup_pending"`
	Degraded       bool   `json:"degraded"`
}

// Client hands jobs from the request path to the background workers.
// Exactly one implementation is selected at startup: the NATS-backed client
// when the backing store answers the initial probe, otherwise the inert
// no-op client (degraded mode, for the process lifetime).
type Client interface {
	// EnqueueEncode publishes a face-encode job and returns a job handle.
	EnqueueEncode(ctx context.Context, job models.EncodeJob) (string, error)
	// EnqueueCleanup publishes a maintenance job and returns a job handle.
	EnqueueCleanup(ctx context.Context, job models.CleanupJob) (string, error)
	// PublishProcessed emits a processing lifecycle notification.
	PublishProcessed(ctx context.Context, ev models.ProcessedEvent) error
	Stats(ctx context.Context) (*Stats, error)
	Ping() error
	Degraded() bool
	Close()
}
