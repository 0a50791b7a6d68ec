// Package postgres implements the domain repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// OrderRepository implements domain.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db DBTX
}

// Compile-time check that OrderRepository implements domain.OrderRepository.
var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const createOrder = `-- name: CreateOrder
INSERT INTO orders (id, session_id, ingredients, price, order_data, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6)
RETURNING created_at`

// CreateOrder inserts the order. ID and CreatedAt are filled in when zero.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	const op = "order.save"

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	ingredients, err := json.Marshal(order.Ingredients)
	if err != nil {
		return domain.Internal(err, op, "failed to encode ingredients")
	}
	orderData, err := json.Marshal(order.OrderData)
	if err != nil {
		return domain.Internal(err, op, "failed to encode order data")
	}

	var createdAt pgtype.Timestamptz
	err = r.db.QueryRow(ctx, createOrder,
		pgUUID(order.ID),
		pgUUID(order.SessionID),
		ingredients,
		order.Price.String(),
		orderData,
		pgtype.Timestamptz{Time: order.CreatedAt, Valid: true},
	).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Conflict(op, "order already exists")
		}
		return fmt.Errorf("insert order: %w", err)
	}

	order.CreatedAt = createdAt.Time.UTC()
	return nil
}

const getOrder = `-- name: GetOrder
SELECT id, session_id, ingredients, price::text, order_data, created_at
FROM orders
WHERE id = $1`

// GetOrder retrieves a single order by ID.
func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, getOrder, pgUUID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

const listOrders = `-- name: ListOrders
SELECT id, session_id, ingredients, price::text, order_data, created_at
FROM orders
ORDER BY created_at DESC, id DESC
LIMIT $1`

// ListOrders returns the most recent orders, newest first.
func (r *OrderRepository) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, listOrders, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		id          pgtype.UUID
		sessionID   pgtype.UUID
		ingredients []byte
		price       string
		orderData   []byte
		createdAt   pgtype.Timestamptz
	)
	if err := row.Scan(&id, &sessionID, &ingredients, &price, &orderData, &createdAt); err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:        fromPgUUID(id),
		SessionID: fromPgUUID(sessionID),
		CreatedAt: createdAt.Time.UTC(),
	}

	var err error
	if order.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("decode price %q: %w", price, err)
	}
	if err := json.Unmarshal(ingredients, &order.Ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	if err := json.Unmarshal(orderData, &order.OrderData); err != nil {
		return nil, fmt.Errorf("decode order data: %w", err)
	}
	return order, nil
}
