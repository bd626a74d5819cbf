package gateway

import (
	"context"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

// MockClient implements Client for testing
type MockClient struct {
	Methods   []d.PaymentMethod
	Created   *d.PaymentMethod
	Err       error
	ListCalls int
}

func (m *MockClient) ListPaymentMethods(_ context.Context) ([]d.PaymentMethod, error) {
	m.ListCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Methods, nil
}

func (m *MockClient) CreatePaymentMethod(_ context.Context, _ string, _ *d.Address, _ bool) (*d.PaymentMethod, error) {
	return m.Created, m.Err
}

func (m *MockClient) Authorize(_ context.Context, _ *AuthorizeRequest) (*Authorization, error) {
	return &Authorization{PaymentID: "pi_1", Status: PaymentStatusSucceeded}, m.Err
}

func (m *MockClient) ConfirmAuthentication(_ context.Context, _ string) error {
	return m.Err
}

func (m *MockClient) PaymentStatus(_ context.Context, _ string) (PaymentStatus, error) {
	return PaymentStatusSucceeded, m.Err
}
