package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"checkout-engine/internal/adapters/storage/clickhouse"
	"checkout-engine/internal/adapters/storage/redis"
	"checkout-engine/internal/config"
	"checkout-engine/internal/observability"
)

var errSkipped = errors.New("not configured")

// Check describes one diagnostic check
type Check struct {
	Name     string
	Func     func(ctx context.Context) error
	Error    error
	Duration time.Duration
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the config file")
	engineURL := flag.String("engine", "http://localhost:8080", "Base URL of the running checkout engine")
	flag.Parse()

	logger := observability.SetupLogger("development")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	checks := []Check{
		{Name: "Gateway config", Func: func(context.Context) error {
			return cfg.Gateway.Validate()
		}},
		{Name: "Checkout engine", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, *engineURL+"/health", logger)
		}},
		{Name: "Checkout provider", Func: func(ctx context.Context) error {
			if cfg.Gateway.Provider == "mock" {
				return errSkipped
			}
			return checkReachable(ctx, cfg.Gateway.APIURI(), logger)
		}},
		{Name: "PostgreSQL", Func: func(ctx context.Context) error {
			if cfg.Storage.Driver == "memory" {
				return errSkipped
			}
			return checkPostgres(ctx, cfg.Postgres.DSN, logger)
		}},
		{Name: "Redis", Func: func(ctx context.Context) error {
			if cfg.Redis.Addr == "" {
				return errSkipped
			}
			rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
			if err != nil {
				return err
			}
			return rdb.Close()
		}},
		{Name: "Kafka cluster", Func: func(ctx context.Context) error {
			if cfg.Kafka.BootstrapServers == "" {
				return errSkipped
			}
			return checkKafka(ctx, strings.Split(cfg.Kafka.BootstrapServers, ","))
		}},
		{Name: "ClickHouse", Func: func(ctx context.Context) error {
			if cfg.ClickHouse.Addr == "" {
				return errSkipped
			}
			store, err := clickhouse.Open(ctx, cfg.ClickHouse)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Ping(ctx)
		}},
		{Name: "Keycloak", Func: func(ctx context.Context) error {
			if cfg.OIDC.URL == "" {
				return errSkipped
			}
			return checkHTTPHealth(ctx, cfg.OIDC.URL+"/.well-known/openid-configuration", logger)
		}},
		{Name: "Open Policy Agent", Func: func(ctx context.Context) error {
			if cfg.OPA.URL == "" {
				return errSkipped
			}
			return checkHTTPHealth(ctx, opaHealthURL(cfg.OPA.URL), logger)
		}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Println("Running checkout engine diagnostics...")

	// Checks report through their own slot; the group only bounds concurrency.
	var g errgroup.Group
	g.SetLimit(4)
	for i := range checks {
		c := &checks[i]
		g.Go(func() error {
			start := time.Now()
			c.Error = c.Func(ctx)
			c.Duration = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println("\n--- Diagnostics report ---")
	hasErrors := false
	for _, c := range checks {
		took := c.Duration.Round(time.Millisecond)
		switch {
		case c.Error == nil:
			color.Green("[ OK ] %-20s (%v)", c.Name, took)
		case errors.Is(c.Error, errSkipped):
			color.Yellow("[SKIP] %-20s %v", c.Name, c.Error)
		default:
			hasErrors = true
			color.Red("[FAIL] %-20s (%v) %v", c.Name, took, c.Error)
		}
	}

	if hasErrors {
		color.Red("\nDiagnostics found problems.")
		os.Exit(1)
	}
	color.Green("\nAll systems healthy.")
}

// opaHealthURL turns a policy decision URL into the server's /health endpoint.
func opaHealthURL(decisionURL string) string {
	if i := strings.Index(decisionURL, "/v1/"); i >= 0 {
		return decisionURL[:i] + "/health"
	}
	return strings.TrimSuffix(decisionURL, "/") + "/health"
}

func checkHTTPHealth(ctx context.Context, url string, logger *slog.Logger) error {
	resp, err := get(ctx, url, logger)
	if err != nil {
		return err
	}
	if resp < 200 || resp >= 300 {
		return fmt.Errorf("unexpected status: %d", resp)
	}
	return nil
}

// checkReachable only requires an HTTP answer; provider APIs reject
// unauthenticated requests.
func checkReachable(ctx context.Context, url string, logger *slog.Logger) error {
	resp, err := get(ctx, url, logger)
	if err != nil {
		return err
	}
	if resp >= 500 {
		return fmt.Errorf("unexpected status: %d", resp)
	}
	return nil
}

func get(ctx context.Context, url string, logger *slog.Logger) (int, error) {
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()
	return resp.StatusCode, nil
}

func checkPostgres(ctx context.Context, dsn string, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			logger.Error("failed to close Postgres connection", "error", err)
		}
	}()
	return conn.Ping(ctx)
}

func checkKafka(ctx context.Context, brokers []string) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DialTimeout(5*time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}
