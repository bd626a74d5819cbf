package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	log.Printf("connected to postgres at %s:%d", cred.Host, cred.Port)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, idempotency_key, user_id, basket_id, status, currency, items, totals,
	total_amount, charge_amount, payment_id, payment_method_id, client_secret, failure_reason,
	failure_code, created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, order *d.Order, event *OutboxEvent) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	totalsJSON, err := json.Marshal(order.Totals)
	if err != nil {
		return fmt.Errorf("failed to marshal order totals: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
	          RETURNING created_at, updated_at`

	insertErr := tx.QueryRowContext(ctx, query,
		order.ID,
		order.IdempotencyKey,
		order.UserID,
		order.BasketID,
		order.Status,
		order.Currency,
		itemsJSON,
		totalsJSON,
		order.Totals.Total.Decimal(),
		order.Totals.ChargeTotal.Decimal(),
		order.PaymentID,
		order.PaymentMethod,
		order.ClientSecret,
		order.FailureReason,
		order.FailureCode,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, userID)
}

func (r *Repository) GetPendingOrders(ctx context.Context, updatedBefore time.Time, limit int) ([]*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE status = $1 AND updated_at < $2
	          ORDER BY updated_at
	          LIMIT $3`
	return r.queryOrders(ctx, query, d.OrderStatusPendingAuthentication, updatedBefore, limit)
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, upd *StatusUpdate) error {
	if !upd.From.CanTransitionTo(upd.To) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusConflict, upd.From, upd.To)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE orders
	          SET status = $1, failure_reason = $2, failure_code = $3, client_secret = '',
	              payment_id = COALESCE(NULLIF($4::text, ''), payment_id),
	              updated_at = NOW()
	          WHERE id = $5 AND status = $6`
	res, err := tx.ExecContext(ctx, query, upd.To, upd.FailureReason, upd.FailureCode, upd.PaymentID, upd.ID, upd.From)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		return ErrStatusConflict
	}

	if upd.Event != nil {
		if err := insertEvent(ctx, tx, upd.Event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order status: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d: %w", id, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*d.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*d.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*d.Order, error) {
	var order d.Order
	var itemsJSON, totalsJSON []byte
	var total, charge decimal.Decimal
	err := row.Scan(
		&order.ID,
		&order.IdempotencyKey,
		&order.UserID,
		&order.BasketID,
		&order.Status,
		&order.Currency,
		&itemsJSON,
		&totalsJSON,
		&total,
		&charge,
		&order.PaymentID,
		&order.PaymentMethod,
		&order.ClientSecret,
		&order.FailureReason,
		&order.FailureCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(totalsJSON, &order.Totals); err != nil {
		return nil, fmt.Errorf("unmarshal order totals: %w", err)
	}
	// The NUMERIC columns are what reporting reads; they must agree with the JSON.
	if order.Totals.Total, err = d.MoneyFromDecimal(total); err != nil {
		return nil, fmt.Errorf("order %v total: %w", order.ID, err)
	}
	if order.Totals.ChargeTotal, err = d.MoneyFromDecimal(charge); err != nil {
		return nil, fmt.Errorf("order %v charge total: %w", order.ID, err)
	}
	return &order, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, event *OutboxEvent) error {
	query := `INSERT INTO outbox (aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, NOW())
	          RETURNING id, created_at`
	if err := tx.QueryRowContext(ctx, query, event.AggregateID, event.EventType, event.Payload).
		Scan(&event.ID, &event.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
