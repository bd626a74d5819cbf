package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/gateway"
	r "github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/google/uuid"
)

// MockRepository implements r.OrderRepository in memory for testing
type MockRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*d.Order
	Events []*r.OutboxEvent

	CreateErr error
	GetErr    error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{orders: make(map[uuid.UUID]*d.Order)}
}

func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) RunMigrations(*r.Credentials) error {
	return nil
}

func (m *MockRepository) CreateOrder(_ context.Context, order *d.Order, event *r.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, o := range m.orders {
		if o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey {
			return r.ErrDuplicateOrder
		}
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	m.orders[order.ID] = &stored
	if event != nil {
		m.Events = append(m.Events, event)
	}
	return nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, r.ErrOrderNotFound
	}
	out := *o
	return &out, nil
}

func (m *MockRepository) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			out := *o
			return &out, nil
		}
	}
	return nil, r.ErrOrderNotFound
}

func (m *MockRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*d.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockRepository) UpdateOrderStatus(_ context.Context, upd *r.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[upd.ID]
	if !ok || o.Status != upd.From || !upd.From.CanTransitionTo(upd.To) {
		return r.ErrStatusConflict
	}
	o.Status = upd.To
	o.FailureReason = upd.FailureReason
	o.FailureCode = upd.FailureCode
	o.ClientSecret = ""
	if upd.Event != nil {
		m.Events = append(m.Events, upd.Event)
	}
	return nil
}

func (m *MockRepository) GetPendingOrders(_ context.Context, updatedBefore time.Time, limit int) ([]*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*d.Order
	for _, o := range m.orders {
		if o.Status == d.OrderStatusPendingAuthentication && o.UpdatedAt.Before(updatedBefore) && len(out) < limit {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	return nil, nil
}

func (m *MockRepository) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

func (m *MockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// MockGateway implements gateway.Client for testing
type MockGateway struct {
	mu sync.Mutex

	Auth      *gateway.Authorization
	AuthErr   error
	Status    gateway.PaymentStatus
	StatusErr error

	Requests []gateway.AuthorizeRequest
}

func (m *MockGateway) ListPaymentMethods(context.Context) ([]d.PaymentMethod, error) {
	return nil, nil
}

func (m *MockGateway) CreatePaymentMethod(context.Context, string, *d.Address, bool) (*d.PaymentMethod, error) {
	return nil, nil
}

func (m *MockGateway) Authorize(_ context.Context, req *gateway.AuthorizeRequest) (*gateway.Authorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, *req)
	if m.AuthErr != nil {
		return nil, m.AuthErr
	}
	a := *m.Auth
	return &a, nil
}

func (m *MockGateway) ConfirmAuthentication(context.Context, string) error {
	return nil
}

func (m *MockGateway) PaymentStatus(context.Context, string) (gateway.PaymentStatus, error) {
	return m.Status, m.StatusErr
}
