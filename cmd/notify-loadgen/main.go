package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"checkout-engine/internal/app"
	"checkout-engine/internal/observability"
)

// tally counts response codes across workers.
type tally struct {
	mu     sync.Mutex
	counts map[int]int
	errors int
}

func (t *tally) add(status int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.errors++
		return
	}
	t.counts[status]++
}

func main() {
	target := flag.String("target", "http://localhost:8080", "Base URL of the checkout engine")
	gateway := flag.String("gateway", "hosted_checkout", "Payment gateway id")
	orders := flag.String("orders", "", "Comma-separated order ids to notify for")
	rps := flag.Float64("rps", 20, "Requests per second")
	duplicates := flag.Int("duplicates", 3, "Concurrent copies of each notification")
	duration := flag.Duration("duration", 30*time.Second, "How long to run")
	flag.Parse()

	logger := observability.SetupLogger("development")

	orderIDs := splitNonEmpty(*orders)
	if len(orderIDs) == 0 {
		logger.Error("at least one order id is required", "flag", "-orders")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	logger.Info("starting notify load", "target", *target, "rps", *rps, "duplicates", *duplicates, "orders", len(orderIDs))

	limiter := rate.NewLimiter(rate.Limit(*rps), *duplicates)
	client := &http.Client{Timeout: 10 * time.Second}
	results := &tally{counts: map[int]int{}}

	var wg sync.WaitGroup
	for i := 0; ; i++ {
		orderID := orderIDs[i%len(orderIDs)]
		// One burst of identical notifications per tick mimics provider retries racing.
		if err := limiter.WaitN(ctx, *duplicates); err != nil {
			break
		}
		for range *duplicates {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status, err := sendNotify(ctx, client, *target, *gateway, orderID)
				if err != nil && ctx.Err() == nil {
					logger.Warn("notify request failed", "order_id", orderID, "error", err)
				}
				results.add(status, err)
			}()
		}
	}
	wg.Wait()

	report(results)
}

func sendNotify(ctx context.Context, client *http.Client, target, gateway, orderID string) (int, error) {
	q := url.Values{}
	q.Set(app.QueryOrder, orderID)
	q.Set(app.QueryStep, app.StepComplete)
	endpoint := strings.TrimSuffix(target, "/") + "/payment/notify/" + url.PathEscape(gateway) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Default().Warn("failed to close response body", "error", err)
		}
	}()
	return resp.StatusCode, nil
}

func report(t *tally) {
	t.mu.Lock()
	defer t.mu.Unlock()

	codes := make([]int, 0, len(t.counts))
	for code := range t.counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Println("\n--- Notify responses ---")
	for _, code := range codes {
		fmt.Printf("%d %-22s %d\n", code, http.StatusText(code), t.counts[code])
	}
	if t.errors > 0 {
		fmt.Printf("transport errors           %d\n", t.errors)
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
