package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/your-org/photoevents/internal/models"
)

// NoopClient is the degraded-mode queue: every enqueue succeeds immediately
// with a synthetic handle and performs no work. Uploads keep working when the
// backing store is down; the photos simply stay pending until the cleanup
// TTL removes them or they are re-uploaded.
type NoopClient struct {
	seq atomic.Uint64
}

func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

func (c *NoopClient) EnqueueEncode(_ context.Context, job models.EncodeJob) (string, error) {
	slog.Debug("degraded queue: encode job dropped", "photo_id", job.PhotoID)
	return c.handle(), nil
}

func (c *NoopClient) EnqueueCleanup(_ context.Context, job models.CleanupJob) (string, error) {
	slog.Debug("degraded queue: cleanup job dropped", "type", job.Type)
	return c.handle(), nil
}

func (c *NoopClient) PublishProcessed(context.Context, models.ProcessedEvent) error {
	return nil
}

func (c *NoopClient) Stats(context.Context) (*Stats, error) {
	return &Stats{Degraded: true}, nil
}

func (c *NoopClient) Ping() error {
	return fmt.Errorf("queue in degraded mode")
}

func (c *NoopClient) Degraded() bool { return true }

func (c *NoopClient) Close() {}

func (c *NoopClient) handle() string {
	return fmt.Sprintf("noop:%d", c.seq.Add(1))
}
