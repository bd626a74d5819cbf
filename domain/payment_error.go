package domain

import (
	"errors"
	"fmt"
)

// PaymentErrorKind separates failures that are worth retrying as-is from
// those that need the user to change something.
type PaymentErrorKind string

const (
	PaymentErrorTransport         PaymentErrorKind = "transport"
	PaymentErrorDeclined          PaymentErrorKind = "declined"
	PaymentErrorInvalidInstrument PaymentErrorKind = "invalid_instrument"
	PaymentErrorAuthentication    PaymentErrorKind = "authentication"
	PaymentErrorInvalidRequest    PaymentErrorKind = "invalid_request"
)

// PaymentError is a failure reported by the payment gateway or the order
// service. Code is the machine-readable reason supplied by the gateway, e.g.
// "card_declined".
type PaymentError struct {
	Kind    PaymentErrorKind
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s payment error (%s): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s payment error: %s", e.Kind, msg)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the same request may succeed if sent again.
func (e *PaymentError) IsTransient() bool {
	return e.Kind == PaymentErrorTransport
}

func NewTransportError(err error) *PaymentError {
	return &PaymentError{Kind: PaymentErrorTransport, Message: "payment service unavailable", Err: err}
}

// AsPaymentError extracts a PaymentError from an error chain.
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
