package service

import d "github.com/fjod/go_cart/checkout-engine/domain"

// Checkout steps.
const (
	StepReview       = 1
	StepPayment      = 2
	StepConfirmation = 3
)

// CheckoutSession is the in-progress state of one checkout attempt.
type CheckoutSession struct {
	Basket                  d.Basket
	AvailablePaymentMethods []d.PaymentMethod
	SelectedPaymentMethod   *d.PaymentMethod
	BillingAddress          *d.Address
	CurrentStep             int
	// ClientSecret is set only while step-up authentication is pending.
	ClientSecret   string
	PendingOrderID string
	Authenticated  bool
	IsProcessing   bool
	// IdempotencyKey is sent with every order placement of this attempt.
	IdempotencyKey string

	epoch uint64
}

// RequiresPayment reports whether anything is charged now.
func (s *CheckoutSession) RequiresPayment() bool {
	return s.Basket.Totals.ChargeTotal > 0
}

// HasBillingAddress reports whether a charge has an address, either entered
// for this checkout or carried by the selected method.
func (s *CheckoutSession) HasBillingAddress() bool {
	if s.BillingAddress.IsComplete() {
		return true
	}
	return s.SelectedPaymentMethod != nil && s.SelectedPaymentMethod.HasBillingAddress()
}

// CanProceedToPayment reports whether the session can be submitted. The basket
// must not be empty. When nothing is charged now, no payment method or
// billing address is needed.
func (s *CheckoutSession) CanProceedToPayment() bool {
	if s.Basket.IsEmpty() {
		return false
	}
	if !s.RequiresPayment() {
		return true
	}
	return s.SelectedPaymentMethod != nil && s.HasBillingAddress()
}

func (s *CheckoutSession) authenticationPending() bool {
	return s.ClientSecret != "" || s.PendingOrderID != ""
}

func (s *CheckoutSession) findPaymentMethod(id string) *d.PaymentMethod {
	for i := range s.AvailablePaymentMethods {
		if s.AvailablePaymentMethods[i].ID == id {
			m := s.AvailablePaymentMethods[i]
			return &m
		}
	}
	return nil
}

// clearAuthentication drops a pending step-up so the next submission starts
// a new order attempt.
func (s *CheckoutSession) clearAuthentication(newKey string) {
	s.ClientSecret = ""
	s.PendingOrderID = ""
	s.Authenticated = false
	s.IsProcessing = false
	s.IdempotencyKey = newKey
}

func (s CheckoutSession) clone() CheckoutSession {
	out := s
	out.Basket = s.Basket.Clone()
	if s.AvailablePaymentMethods != nil {
		out.AvailablePaymentMethods = make([]d.PaymentMethod, len(s.AvailablePaymentMethods))
		for i, m := range s.AvailablePaymentMethods {
			out.AvailablePaymentMethods[i] = clonePaymentMethod(m)
		}
	}
	if s.SelectedPaymentMethod != nil {
		m := clonePaymentMethod(*s.SelectedPaymentMethod)
		out.SelectedPaymentMethod = &m
	}
	if s.BillingAddress != nil {
		a := *s.BillingAddress
		out.BillingAddress = &a
	}
	return out
}

func clonePaymentMethod(m d.PaymentMethod) d.PaymentMethod {
	if m.BillingAddress != nil {
		a := *m.BillingAddress
		m.BillingAddress = &a
	}
	return m
}
