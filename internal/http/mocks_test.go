package http

import (
	"context"
	"sync"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

type MockOrderService struct {
	mu sync.Mutex

	Result   *d.PlaceOrderResult
	PlaceErr error
	Order    *d.Order
	FetchErr error
	Orders   []*d.Order
	ListErr  error

	Users    []string
	Requests []d.PlaceOrderRequest
	Fetched  []string
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, authToken string, req *d.PlaceOrderRequest) (*d.PlaceOrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, authToken)
	m.Requests = append(m.Requests, *req)
	if m.PlaceErr != nil {
		return nil, m.PlaceErr
	}
	return m.Result, nil
}

func (m *MockOrderService) FetchOrder(ctx context.Context, authToken string, orderID string) (*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, authToken)
	m.Fetched = append(m.Fetched, orderID)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Order, nil
}

func (m *MockOrderService) ListOrders(ctx context.Context, authToken string) ([]*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, authToken)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Orders, nil
}

func (m *MockOrderService) lastRequest() d.PlaceOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[len(m.Requests)-1]
}
