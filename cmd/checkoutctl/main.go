package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"checkout-engine/internal/adapters/messaging/kafka"
	"checkout-engine/internal/adapters/provider/hostedcheckout"
	"checkout-engine/internal/adapters/storage/clickhouse"
	"checkout-engine/internal/adapters/storage/postgres"
	"checkout-engine/internal/adapters/storage/redis"
	"checkout-engine/internal/app"
	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
	"checkout-engine/internal/core/ports"
	"checkout-engine/internal/observability"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "Operate the hosted checkout engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to the config file")

	loadConfig := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg, observability.SetupLogger(cfg.App.Env), nil
	}

	rootCmd.AddCommand(
		payloadCmd(loadConfig),
		reconcileCmd(loadConfig),
		paymentsCmd(loadConfig),
		dlqCmd(loadConfig),
	)

	if err := rootCmd.Execute(); err != nil {
		failColor.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, *slog.Logger, error)

// newService wires the checkout service against the configured Postgres
// store and provider. Redis and Kafka are used when configured.
func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.CheckoutService, func(), error) {
	repo, err := postgres.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){repo.Close}

	opts := []app.Option{}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		opts = append(opts, app.WithLocker(redis.NewLocker(rdb, cfg.Gateway.LockTTL)))
	}
	if cfg.Kafka.BootstrapServers != "" {
		broker, err := kafka.NewBroker(ctx, strings.Split(cfg.Kafka.BootstrapServers, ","), cfg.Kafka.Topic, logger)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, err
		}
		// Flush pending events before the connections go away.
		closers = append([]func(){broker.Close}, closers...)
		opts = append(opts, app.WithBroker(broker))
	}

	svc := app.NewCheckoutService(cfg.Gateway, hostedcheckout.NewClient(cfg.Gateway, logger),
		repo.Orders(), repo.Payments(), logger, opts...)
	return svc, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func payloadCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "payload [order-id]",
		Short: "Print the compiled transaction payload for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			svc, closeFn, err := newService(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			payload, err := svc.CompilePayload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
}

func reconcileCmd(load configLoader) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "reconcile [order-id...]",
		Short: "Re-run completion for orders whose notifications were lost",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			svc, closeFn, err := newService(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			failures := 0
			for _, orderID := range args {
				var err error
				switch path {
				case "return":
					_, err = svc.OnReturn(cmd.Context(), orderID)
				default:
					err = svc.OnNotify(cmd.Context(), orderID)
				}
				printOutcome(cmd.OutOrStdout(), orderID, err)
				if err != nil {
					failures++
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d orders not reconciled", failures, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "notify", "Completion path to run: notify or return")
	return cmd
}

func printOutcome(w io.Writer, orderID string, err error) {
	switch {
	case err == nil:
		okColor.Fprintf(w, "%-12s OK\n", orderID)
	case errors.Is(err, domain.ErrAcknowledgementPending), errors.Is(err, domain.ErrValidation):
		warnColor.Fprintf(w, "%-12s PENDING  %v\n", orderID, err)
	default:
		failColor.Fprintf(w, "%-12s FAILED   %v\n", orderID, err)
	}
}

func paymentsCmd(load configLoader) *cobra.Command {
	paymentsCmd := &cobra.Command{Use: "payments", Short: "Query projected payment events"}

	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List the latest completed payments from ClickHouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			store, err := clickhouse.Open(cmd.Context(), cfg.ClickHouse)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.RecentPayments(cmd.Context(), cfg.Gateway.ID, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ORDER\tREMOTE ID\tSTATE\tAMOUNT\tMODE\tOCCURRED AT")
			for _, r := range rows {
				mode := "live"
				if r.Test {
					mode = "test"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
					r.OrderID, r.RemoteID, r.State, r.Amount.StringFixed(2), r.Currency, mode, r.OccurredAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	recentCmd.Flags().IntVar(&limit, "limit", 20, "Number of rows")

	paymentsCmd.AddCommand(recentCmd)
	return paymentsCmd
}

func dlqCmd(load configLoader) *cobra.Command {
	dlq := &cobra.Command{Use: "dlq", Short: "Inspect and retry dead-lettered payment events"}

	var limit int
	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Show messages in the DLQ",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			client, err := kgo.NewClient(
				kgo.SeedBrokers(strings.Split(cfg.Kafka.BootstrapServers, ",")...),
				kgo.ConsumeTopics(cfg.Kafka.DLQTopic),
				kgo.FetchMaxWait(5*time.Second),
				kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
			)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}
			defer client.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTITION:OFFSET\tKEY\tERROR_TYPE\tERROR_STRING")

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			seen := 0
			for seen < limit {
				fetches := client.PollFetches(ctx)
				if fetches.IsClientClosed() || ctx.Err() != nil || len(fetches.Records()) == 0 {
					break
				}
				fetches.EachRecord(func(r *kgo.Record) {
					if seen >= limit {
						return
					}
					errorType, errorString := kafka.ErrorHeaders(r.Headers)
					fmt.Fprintf(w, "%d:%d\t%s\t%s\t%s\n", r.Partition, r.Offset, r.Key, errorType, errorString)
					seen++
				})
			}
			logger.Debug("dlq view finished", "topic", cfg.Kafka.DLQTopic, "records", seen)
			return w.Flush()
		},
	}
	viewCmd.Flags().IntVar(&limit, "limit", 10, "Number of messages to show")

	retryCmd := &cobra.Command{
		Use:   "retry [partition:offset]",
		Short: "Republish one DLQ message to the payment topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			partition, offset, err := kafka.ParsePartitionOffset(args[0])
			if err != nil {
				return err
			}
			brokers := strings.Split(cfg.Kafka.BootstrapServers, ",")

			consumer, err := kgo.NewClient(
				kgo.SeedBrokers(brokers...),
				kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
					cfg.Kafka.DLQTopic: {partition: kgo.NewOffset().At(offset)},
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}
			defer consumer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			fetches := consumer.PollRecords(ctx, 1)
			if err := fetches.Err(); err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}
			records := fetches.Records()
			if len(records) == 0 || records[0].Offset != offset {
				return fmt.Errorf("no message at %s in %s", args[0], cfg.Kafka.DLQTopic)
			}

			producer, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
			if err != nil {
				return fmt.Errorf("failed to create producer: %w", err)
			}
			defer producer.Close()

			retry := &kgo.Record{Topic: cfg.Kafka.Topic, Key: records[0].Key, Value: records[0].Value}
			if err := producer.ProduceSync(cmd.Context(), retry).FirstErr(); err != nil {
				return fmt.Errorf("failed to republish: %w", err)
			}

			logger.Info("message republished", "from", cfg.Kafka.DLQTopic, "to", cfg.Kafka.Topic, "partition", partition, "offset", offset)
			okColor.Fprintln(cmd.OutOrStdout(), "republished")
			return nil
		},
	}

	dlq.AddCommand(viewCmd, retryCmd)
	return dlq
}
