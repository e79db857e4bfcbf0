package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoevents/internal/models"
	"github.com/your-org/photoevents/internal/observability"
)

const (
	EncodeStreamName   = "ENCODE"
	EncodeSubjectBase  = "encode"
	CleanupStreamName  = "CLEANUP"
	CleanupSubjectBase = "cleanup"
	EventsStreamName   = "EVENTS"
	EventsSubjectBase  = "processed"

	// MaxDeliver bounds encode attempts: one initial delivery plus two
	// redeliveries, matching the 3-attempt budget.
	MaxDeliver = 3

	// DuplicateWindow is how long a re-enqueued photo id is deduplicated.
	DuplicateWindow = 2 * time.Minute
)

// EncodeBackoff spaces redeliveries of failed encode jobs (2s base,
// exponential).
var EncodeBackoff = []time.Duration{2 * time.Second, 4 * time.Second}

// NATSClient is the durable queue implementation backed by JetStream.
type NATSClient struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect probes the queue backing store once and selects the client
// implementation for the process lifetime. An unreachable store yields the
// no-op client: uploads keep succeeding, photos stay pending.
func Connect(natsURL string) Client {
	client, err := NewNATSClient(natsURL)
	if err != nil {
		slog.Warn("queue backing store unreachable, entering degraded mode", "error", err)
		observability.QueueDegraded.Set(1)
		return NewNoopClient()
	}

	if err := client.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure queue streams", "error", err)
	}
	observability.QueueDegraded.Set(0)
	return client
}

// NewNATSClient connects to NATS without the degraded-mode fallback.
// Workers use this directly: without a queue they have nothing to do.
func NewNATSClient(natsURL string) (*NATSClient, error) {
	nc, err := nats.Connect(natsURL,
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &NATSClient{nc: nc, js: js}, nil
}

// EnsureStreams creates the JetStream streams if they don't exist.
func (c *NATSClient) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        EncodeStreamName,
			Subjects:    []string{EncodeSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  DuplicateWindow,
			Description: "Face encode jobs",
		},
		{
			Name:        CleanupStreamName,
			Subjects:    []string{CleanupSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxMsgs:     10000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Description: "File maintenance jobs",
		},
		{
			Name:        EventsStreamName,
			Subjects:    []string{EventsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Description: "Photo processing notifications",
		},
	}

	for _, cfg := range streams {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := c.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		slog.Info("ensured queue stream", "name", cfg.Name)
	}
	return nil
}

// EnqueueEncode publishes an encode job keyed by photo id. The photo id
// doubles as the idempotency key: duplicate enqueues inside the stream's
// duplicate window collapse into one job.
func (c *NATSClient) EnqueueEncode(ctx context.Context, job models.EncodeJob) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal encode job: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", EncodeSubjectBase, job.PhotoID)
	ack, err := c.js.Publish(ctx, subject, payload,
		jetstream.WithMsgID(job.PhotoID.String()))
	if err != nil {
		return "", fmt.Errorf("publish encode job: %w", err)
	}
	return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
}

func (c *NATSClient) EnqueueCleanup(ctx context.Context, job models.CleanupJob) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal cleanup job: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", CleanupSubjectBase, job.Type)
	ack, err := c.js.Publish(ctx, subject, payload)
	if err != nil {
		return "", fmt.Errorf("publish cleanup job: %w", err)
	}
	return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
}

func (c *NATSClient) PublishProcessed(ctx context.Context, ev models.ProcessedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal processed event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", EventsSubjectBase, ev.EventID)
	if _, err := c.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish processed event: %w", err)
	}
	return nil
}

func (c *NATSClient) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	encode, err := c.js.Stream(ctx, EncodeStreamName)
	if err != nil {
		return nil, fmt.Errorf("get encode stream: %w", err)
	}
	info, err := encode.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode stream info: %w", err)
	}
	stats.EncodePending = info.State.Msgs

	cleanup, err := c.js.Stream(ctx, CleanupStreamName)
	if err != nil {
		return nil, fmt.Errorf("get cleanup stream: %w", err)
	}
	info, err = cleanup.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("cleanup stream info: %w", err)
	}
	stats.CleanupPending = info.State.Msgs

	return stats, nil
}

func (c *NATSClient) Ping() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (c *NATSClient) Degraded() bool { return false }

func (c *NATSClient) Close() {
	c.nc.Close()
}
