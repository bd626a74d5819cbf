package service

import (
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

var (
	ErrEmptyBasket             = errors.New("basket is empty, nothing to checkout")
	ErrInvalidBasket           = errors.New("basket is invalid")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrPaymentDeclined         = errors.New("payment declined")
	ErrAuthenticationFailed    = errors.New("payment authentication failed")
	ErrOrderRejected           = errors.New("order rejected")
	ErrInvalidSessionOperation = errors.New("invalid checkout session operation")
	ErrCannotProceed           = errors.New("checkout cannot proceed to payment")
	ErrNoPendingAuthentication = errors.New("no payment authentication pending")
	ErrAuthenticationPending   = errors.New("payment authentication pending")
	ErrUnknownPaymentMethod    = errors.New("payment method is not available in this checkout")
	ErrSessionDiscarded        = errors.New("checkout session discarded before the result arrived")
)

// InvalidOperationError is returned when an operation is called from a state
// that does not allow it. It is a programming error, not a user-facing one.
type InvalidOperationError struct {
	Op    string
	State StateName
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("%s is not allowed in state %s", e.Op, e.State)
}

func (e *InvalidOperationError) Unwrap() error {
	return ErrInvalidSessionOperation
}

const (
	msgEmptyBasket       = "Your basket is empty."
	msgInvalidBasket     = "Your basket contains an item that can't be booked. Please return to your basket."
	msgGatewayLoad       = "We couldn't load your payment methods. Please try again."
	msgGatewayTransport  = "We couldn't reach the payment service. Please try again."
	msgDeclined          = "Your payment was declined. Please try a different payment method."
	msgAuthentication    = "We couldn't verify your payment. Please try again or use a different payment method."
	msgOrderRejected     = "We couldn't place your order."
	msgAddPaymentMethod  = "We couldn't add that payment method."
	msgOrderNotConfirmed = "Your order could not be confirmed."
)

// failure converts an error from a collaborator into the Error state shown to
// the user. The returned state carries the session so a retry keeps the
// user's selections.
func failure(err error, session *CheckoutSession) ErrorState {
	st := ErrorState{Err: err, Retryable: true, Session: session}

	pe, ok := d.AsPaymentError(err)
	if !ok {
		st.Message = msgGatewayTransport
		st.Err = fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		return st
	}

	st.Code = pe.Code
	switch pe.Kind {
	case d.PaymentErrorDeclined, d.PaymentErrorInvalidInstrument:
		st.Message = messageOr(pe.Message, msgDeclined)
		st.Err = fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
	case d.PaymentErrorAuthentication:
		st.Message = msgAuthentication
		st.Err = fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	case d.PaymentErrorInvalidRequest:
		st.Message = messageOr(pe.Message, msgOrderRejected)
		st.Err = fmt.Errorf("%w: %w", ErrOrderRejected, err)
	default:
		st.Message = msgGatewayTransport
		st.Err = fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	return st
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
