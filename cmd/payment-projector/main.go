package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"checkout-engine/internal/adapters/messaging/kafka"
	"checkout-engine/internal/adapters/storage/clickhouse"
	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
	"checkout-engine/internal/observability"
)

func main() {
	var (
		configPath string
		group      string
	)

	rootCmd := &cobra.Command{
		Use:   "payment-projector",
		Short: "Project payment.completed events into ClickHouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, group)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to the config file")
	rootCmd.Flags().StringVar(&group, "group", "payment-projector", "Kafka consumer group")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, group string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("payment projector starting", "env", cfg.App.Env, "topic", cfg.Kafka.Topic)

	brokers := strings.Split(cfg.Kafka.BootstrapServers, ",")

	// Kafka producer for the DLQ
	dlqProducer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		logger.Error("failed to create Kafka producer for DLQ", "error", err)
		return err
	}
	defer dlqProducer.Close()

	store, err := clickhouse.Open(ctx, cfg.ClickHouse)
	if err != nil {
		logger.Error("failed to connect to ClickHouse", "error", err)
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close ClickHouse connection", "error", err)
		}
	}()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare ClickHouse schema", "error", err)
		return err
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(cfg.Kafka.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		logger.Error("failed to create Kafka consumer", "error", err)
		return err
	}
	defer consumer.Close()

	logger.Info("payment projector ready")

	for {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(t string, p int32, err error) {
			logger.Error("error reading from kafka", "topic", t, "partition", p, "error", err)
		})

		var (
			events []domain.PaymentEvent
			dlqErr error
		)
		fetches.EachRecord(func(record *kgo.Record) {
			event, err := kafka.DecodePaymentEvent(record.Value)
			if err != nil {
				logger.Warn("undecodable payment event, sending to DLQ", "offset", record.Offset, "error", err)
				if err := kafka.SendToDLQ(ctx, dlqProducer, cfg.Kafka.DLQTopic, record, "unmarshal_error", err.Error()); err != nil {
					dlqErr = err
				}
				return
			}
			events = append(events, event)
		})

		// Stopping without committing makes the group redeliver the batch on
		// restart; inserts are deduplicated on event_id.
		if dlqErr != nil {
			logger.Error("failed to dead-letter record", "error", dlqErr)
			return dlqErr
		}
		if err := store.InsertPaymentEvents(ctx, events); err != nil {
			logger.Error("failed to insert into ClickHouse", "events", len(events), "error", err)
			return err
		}

		if err := consumer.CommitUncommittedOffsets(ctx); err != nil {
			logger.Error("error committing offsets", "error", err)
			continue
		}
		if len(events) > 0 {
			logger.Info("payment events projected", "count", len(events))
		}
	}

	logger.Info("payment projector stopping")
	return nil
}
