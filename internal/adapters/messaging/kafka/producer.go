package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"checkout-engine/internal/core/domain"
)

// Broker is an implementation of the MessageBroker port for Kafka.
type Broker struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewBroker creates a new Kafka broker instance.
func NewBroker(ctx context.Context, bootstrapServers []string, topic string, logger *slog.Logger) (*Broker, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(bootstrapServers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	// Checking the connection
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}

	return &Broker{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

// PublishPaymentCompleted publishes the event keyed by order id so all events
// of one order land on one partition.
func (b *Broker) PublishPaymentCompleted(ctx context.Context, event domain.PaymentEvent) error {
	payload, err := EncodePaymentEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.OrderID),
		Value: payload,
	}

	b.wg.Add(1)
	// Produce sends a record asynchronously; the caller's context may already
	// be finished when delivery completes.
	b.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		defer b.wg.Done()
		if err != nil {
			b.logger.Error("failed to deliver payment event", "topic", r.Topic, "order_id", event.OrderID, "error", err)
			return
		}
		b.logger.Debug("payment event delivered", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset)
	})

	return nil
}

// Close gracefully stops the producer.
func (b *Broker) Close() {
	b.logger.Info("waiting for pending kafka deliveries...")
	b.wg.Wait()
	b.client.Close()
	b.logger.Info("kafka client stopped")
}
