package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

// Consumer pulls jobs from the JetStream streams for the worker process and
// the API's notification fan-out.
type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
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

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeEncode starts consuming encode jobs with a bounded worker pool.
// A handler error triggers Nak so the queue's retry/backoff policy applies;
// retries are capped at MaxDeliver with EncodeBackoff spacing.
func (c *Consumer) ConsumeEncode(ctx context.Context, consumerName string, handler MessageHandler, workerCount int) error {
	return c.consume(ctx, EncodeStreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       6 * time.Minute, // above the encoder's hard timeout
		MaxDeliver:    MaxDeliver,
		BackOff:       EncodeBackoff,
		FilterSubject: EncodeSubjectBase + ".>",
	}, handler, workerCount)
}

// ConsumeCleanup starts consuming maintenance jobs. Cleanup runs at
// concurrency 1 so disk-heavy sweeps never starve encode throughput.
func (c *Consumer) ConsumeCleanup(ctx context.Context, consumerName string, handler MessageHandler, workerCount int) error {
	return c.consume(ctx, CleanupStreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Minute,
		MaxDeliver:    2,
		FilterSubject: CleanupSubjectBase + ".>",
	}, handler, workerCount)
}

// ConsumeProcessed starts consuming processing notifications (for the API to
// broadcast over WebSocket).
func (c *Consumer) ConsumeProcessed(ctx context.Context, consumerName string, handler MessageHandler) error {
	return c.consume(ctx, EventsStreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    MaxDeliver,
		FilterSubject: EventsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}, handler, 1)
}

func (c *Consumer) consume(ctx context.Context, streamName string, cfg jetstream.ConsumerConfig, handler MessageHandler, workerCount int) error {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", streamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.Name, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	// Fetch loop
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(msgCh)
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					close(msgCh)
					return
				}
				slog.Warn("fetch jobs error", "stream", streamName, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					close(msgCh)
					return
				}
			}
		}
	}()

	// Workers
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				if err := handler(ctx, msg); err != nil {
					slog.Error("process job error",
						"stream", streamName, "worker", workerID,
						"subject", msg.Subject(), "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}(i)
	}

	slog.Info("consumer started", "stream", streamName, "consumer", cfg.Name, "workers", workerCount)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
