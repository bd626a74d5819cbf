package gateway

import (
	"context"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

// Client is the payment gateway as seen by the checkout engine and the order
// service. Every error it returns is a *domain.PaymentError, so callers can
// tell transport failures from declines.
type Client interface {
	ListPaymentMethods(ctx context.Context) ([]d.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, token string, billing *d.Address, setAsDefault bool) (*d.PaymentMethod, error)
	Authorize(ctx context.Context, req *AuthorizeRequest) (*Authorization, error)
	ConfirmAuthentication(ctx context.Context, clientSecret string) error
	PaymentStatus(ctx context.Context, paymentID string) (PaymentStatus, error)
}

type PaymentStatus string

const (
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
	PaymentStatusProcessing     PaymentStatus = "processing"
	PaymentStatusFailed         PaymentStatus = "failed"
)

// AuthorizeRequest charges Amount against PaymentMethodID. Requests with the
// same IdempotencyKey are charged once.
type AuthorizeRequest struct {
	IdempotencyKey  string
	OrderID         string
	Amount          d.Money
	Currency        string
	PaymentMethodID string
	Description     string
}

type Authorization struct {
	PaymentID string
	Status    PaymentStatus
	// ClientSecret is set when Status is PaymentStatusRequiresAction.
	ClientSecret string
}

var ErrInvalidAuthorizeRequest = errors.New("invalid authorize request")

func (r *AuthorizeRequest) Validate() error {
	switch {
	case r.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidAuthorizeRequest)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAuthorizeRequest)
	case r.Currency == "":
		return fmt.Errorf("%w: currency is required", ErrInvalidAuthorizeRequest)
	case r.PaymentMethodID == "":
		return fmt.Errorf("%w: payment method is required", ErrInvalidAuthorizeRequest)
	}
	return nil
}
