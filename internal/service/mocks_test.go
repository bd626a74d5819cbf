package service

import (
	"context"
	"sync"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

// MockGateway implements PaymentGateway for testing
type MockGateway struct {
	mu sync.Mutex

	Methods    []d.PaymentMethod
	ListErr    error
	Created    *d.PaymentMethod
	CreateErr  error
	ConfirmErr error

	ListCalls    int
	CreateCalls  int
	ConfirmCalls int
	Secrets      []string

	// Block, when set, holds ListPaymentMethods until it is closed.
	Block chan struct{}
}

func (m *MockGateway) ListPaymentMethods(_ context.Context) ([]d.PaymentMethod, error) {
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]d.PaymentMethod, len(m.Methods))
	copy(out, m.Methods)
	return out, nil
}

func (m *MockGateway) CreatePaymentMethod(_ context.Context, _ string, billing *d.Address, setAsDefault bool) (*d.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.Created == nil {
		return nil, nil
	}
	pm := *m.Created
	pm.BillingAddress = billing
	pm.IsDefault = setAsDefault
	return &pm, nil
}

func (m *MockGateway) ConfirmAuthentication(_ context.Context, clientSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmCalls++
	m.Secrets = append(m.Secrets, clientSecret)
	return m.ConfirmErr
}

// CachingMockGateway serves the method list it first read from MockGateway
// until Invalidate is called.
type CachingMockGateway struct {
	*MockGateway

	cached        []d.PaymentMethod
	Invalidations int
}

func (m *CachingMockGateway) ListPaymentMethods(ctx context.Context) ([]d.PaymentMethod, error) {
	if m.cached == nil {
		methods, err := m.MockGateway.ListPaymentMethods(ctx)
		if err != nil {
			return nil, err
		}
		m.cached = methods
	}
	out := make([]d.PaymentMethod, len(m.cached))
	copy(out, m.cached)
	return out, nil
}

func (m *CachingMockGateway) Invalidate(_ context.Context) error {
	m.Invalidations++
	m.cached = nil
	return nil
}

// MockOrderService implements OrderService for testing. Results are served in
// order; the last one repeats.
type MockOrderService struct {
	mu sync.Mutex

	Results  []*d.PlaceOrderResult
	Errs     []error
	Fetched  *d.Order
	FetchErr error

	Requests   []d.PlaceOrderRequest
	FetchCalls int

	// Entered receives a value when PlaceOrder starts; Release unblocks it.
	Entered chan struct{}
	Release chan struct{}
}

func (m *MockOrderService) PlaceOrder(_ context.Context, _ string, req *d.PlaceOrderRequest) (*d.PlaceOrderResult, error) {
	if m.Entered != nil {
		m.Entered <- struct{}{}
	}
	if m.Release != nil {
		<-m.Release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.Requests)
	m.Requests = append(m.Requests, *req)

	var err error
	if len(m.Errs) > 0 {
		err = m.Errs[min(n, len(m.Errs)-1)]
	}
	if err != nil {
		return nil, err
	}
	return m.Results[min(n, len(m.Results)-1)], nil
}

func (m *MockOrderService) FetchOrder(_ context.Context, _ string, _ string) (*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Fetched == nil {
		return nil, nil
	}
	o := *m.Fetched
	return &o, nil
}

func (m *MockOrderService) ListOrders(_ context.Context, _ string) ([]*d.Order, error) {
	return nil, nil
}

func (m *MockOrderService) requests() []d.PlaceOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]d.PlaceOrderRequest(nil), m.Requests...)
}
