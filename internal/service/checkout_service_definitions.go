package service

import (
	"context"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

// PaymentGateway is the part of the payment processor the checkout flow talks
// to directly. Implementations report failures as *domain.PaymentError and
// own their own timeouts.
type PaymentGateway interface {
	ListPaymentMethods(ctx context.Context) ([]d.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, token string, billing *d.Address, setAsDefault bool) (*d.PaymentMethod, error)
	ConfirmAuthentication(ctx context.Context, clientSecret string) error
}

// methodCacheInvalidator is implemented by gateways that cache the method
// list. RefreshPaymentMethods invalidates before listing.
type methodCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// OrderService persists orders. PlaceOrder must be idempotent per
// IdempotencyKey: a repeated key returns the outcome of the first request.
type OrderService interface {
	PlaceOrder(ctx context.Context, authToken string, req *d.PlaceOrderRequest) (*d.PlaceOrderResult, error)
	FetchOrder(ctx context.Context, authToken string, orderID string) (*d.Order, error)
	ListOrders(ctx context.Context, authToken string) ([]*d.Order, error)
}

// CheckoutService is the surface the checkout screens drive.
type CheckoutService interface {
	InitializeCheckout(ctx context.Context, basket d.Basket) error
	NextStep() error
	PreviousStep() error
	SelectPaymentMethod(method d.PaymentMethod) error
	UpdateBillingAddress(address d.Address) error
	AddPaymentMethod(ctx context.Context, gatewayToken string, billing *d.Address, setAsDefault bool) (*d.PaymentMethod, error)
	ProcessPayment(ctx context.Context, authToken string) (PaymentOutcome, error)
	Complete3DSAuthentication(ctx context.Context, clientSecret string) error
	ConfirmOrder(ctx context.Context, authToken string) (*d.Order, error)
	RefreshPaymentMethods(ctx context.Context) error
	Retry(ctx context.Context) error
	Reset()

	State() State
	Subscribe(buffer int) *Subscription
}

// PaymentOutcome tells the caller whether a submitted payment is done, needs
// step-up authentication first, or was accepted and awaits confirmation.
type PaymentOutcome int

const (
	PaymentNotCompleted PaymentOutcome = iota
	PaymentCompleted
	PaymentRequiresAction
	// PaymentPending means the order exists but the gateway has not settled
	// the charge; ConfirmOrder re-queries it.
	PaymentPending
)

func (o PaymentOutcome) String() string {
	switch o {
	case PaymentCompleted:
		return "completed"
	case PaymentRequiresAction:
		return "requires_action"
	case PaymentPending:
		return "pending"
	default:
		return "not_completed"
	}
}
