package repository

import (
	"context"
	"errors"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order with this idempotency key already exists")
	ErrStatusConflict = errors.New("order is no longer in the expected status")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Order event types written to the outbox.
const (
	EventOrderConfirmed = "order.confirmed"
	EventOrderFailed    = "order.failed"
)

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// StatusUpdate moves an order out of From. Event, when set, is written to the
// outbox in the same transaction.
type StatusUpdate struct {
	ID            uuid.UUID
	From          d.OrderStatus
	To            d.OrderStatus
	PaymentID     string
	FailureReason string
	FailureCode   string
	Event         *OutboxEvent
}

type OrderRepository interface {
	// CreateOrder inserts an order, and event if not nil, atomically.
	CreateOrder(ctx context.Context, order *d.Order, event *OutboxEvent) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*d.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*d.Order, error)
	UpdateOrderStatus(ctx context.Context, upd *StatusUpdate) error
	GetPendingOrders(ctx context.Context, updatedBefore time.Time, limit int) ([]*d.Order, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	RunMigrations(*Credentials) error
	Close() error
}
