// Package clickhouse stores the analytical projection of payment events.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_events (
    event_id     UUID,
    payment_id   UUID,
    order_id     String,
    gateway_id   LowCardinality(String),
    remote_id    String,
    state        LowCardinality(String),
    amount       Decimal(18, 6),
    currency     LowCardinality(String),
    test         UInt8,
    occurred_at  DateTime64(3, 'UTC'),
    projected_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(projected_at)
ORDER BY (gateway_id, order_id, event_id)
`

// Store writes and queries payment events.
type Store struct {
	conn driver.Conn
}

// Open connects with the configured credentials.
func Open(ctx context.Context, cfg config.ClickHouseConfig) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse address is not configured")
	}
	conn, err := ch.Open(&ch.Options{
		Addr: []string{cfg.Addr},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping checks the connection and authentication.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create payment_events: %w", err)
	}
	return nil
}

// InsertPaymentEvents writes a batch. Replayed events collapse on event_id.
func (s *Store) InsertPaymentEvents(ctx context.Context, events []domain.PaymentEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO payment_events`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	now := time.Now().UTC()
	for _, e := range events {
		test := uint8(0)
		if e.Test {
			test = 1
		}
		if err := batch.Append(
			e.EventID, e.PaymentID, e.OrderID, e.GatewayID, e.RemoteID, string(e.State),
			e.Amount.Number, e.Amount.Currency, test, e.OccurredAt, now,
		); err != nil {
			return fmt.Errorf("failed to append event %s: %w", e.EventID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// PaymentRow is one projected event as shown to operators.
type PaymentRow struct {
	OrderID    string
	RemoteID   string
	State      string
	Amount     decimal.Decimal
	Currency   string
	Test       bool
	OccurredAt time.Time
}

// RecentPayments lists the latest projected events, newest first.
func (s *Store) RecentPayments(ctx context.Context, gatewayID string, limit int) ([]PaymentRow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT order_id, remote_id, state, amount, currency, test, occurred_at
		FROM payment_events FINAL
		WHERE gateway_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?`, gatewayID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment_events: %w", err)
	}
	defer rows.Close()

	var out []PaymentRow
	for rows.Next() {
		var (
			r    PaymentRow
			test uint8
		)
		if err := rows.Scan(&r.OrderID, &r.RemoteID, &r.State, &r.Amount, &r.Currency, &test, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		r.Test = test == 1
		out = append(out, r)
	}
	return out, rows.Err()
}
