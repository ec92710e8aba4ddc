package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"checkout-engine/internal/core/domain"
)

// schema holds the tables this adapter owns. Orders are stored as JSON
// documents because the order subsystem owns their shape.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id         TEXT PRIMARY KEY,
    document   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS payments (
    id            UUID PRIMARY KEY,
    order_id      TEXT NOT NULL,
    gateway_id    TEXT NOT NULL,
    state         TEXT NOT NULL,
    amount        NUMERIC(19, 6) NOT NULL,
    currency      CHAR(3) NOT NULL,
    remote_id     TEXT NOT NULL,
    remote_state  TEXT NOT NULL,
    test          BOOLEAN NOT NULL,
    authorized_at TIMESTAMPTZ NOT NULL,
    completed_at  TIMESTAMPTZ,
    CONSTRAINT payments_order_gateway_key UNIQUE (order_id, gateway_id)
);
`

// Repository implements the OrderRepository and PaymentRepository ports for PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
// Accepts a DSN (Data Source Name) to connect to.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Let's check that the connection to the database actually works.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Orders returns the order repository view.
func (r *Repository) Orders() *OrderStore { return &OrderStore{pool: r.pool} }

// Payments returns the payment repository view.
func (r *Repository) Payments() *PaymentStore { return &PaymentStore{pool: r.pool} }

type OrderStore struct {
	pool *pgxpool.Pool
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM orders WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	var order domain.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return &order, nil
}

func (s *OrderStore) Save(ctx context.Context, order *domain.Order) error {
	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}

	const sql = `
		INSERT INTO orders (id, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, sql, order.ID, doc); err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	return nil
}

type PaymentStore struct {
	pool *pgxpool.Pool
}

const paymentColumns = `id, order_id, gateway_id, state, amount, currency, remote_id, remote_state, test, authorized_at, completed_at`

func (s *PaymentStore) FindForOrder(ctx context.Context, orderID, gatewayID string) (*domain.Payment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 AND gateway_id = $2`,
		orderID, gatewayID)

	var (
		p      domain.Payment
		amount decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.GatewayID, &p.State, &amount, &p.Amount.Currency,
		&p.RemoteID, &p.RemoteState, &p.Test, &p.AuthorizedAt, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, domain.ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment for order %s: %w", orderID, err)
	}
	p.Amount.Number = amount
	return &p, nil
}

// Create inserts the payment. The (order_id, gateway_id) constraint turns a
// concurrent duplicate into domain.ErrPaymentExists.
func (s *PaymentStore) Create(ctx context.Context, p domain.Payment) error {
	const sql = `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ON CONSTRAINT payments_order_gateway_key DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, sql,
		p.ID, p.OrderID, p.GatewayID, p.State, p.Amount.Number.String(), p.Amount.Currency,
		p.RemoteID, p.RemoteState, p.Test, p.AuthorizedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s gateway %s: %w", p.OrderID, p.GatewayID, domain.ErrPaymentExists)
	}
	return nil
}

func (s *PaymentStore) Save(ctx context.Context, p domain.Payment) error {
	const sql = `
		UPDATE payments
		SET state = $2, remote_state = $3, completed_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, sql, p.ID, p.State, p.RemoteState, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save payment %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrPaymentNotFound)
	}
	return nil
}
