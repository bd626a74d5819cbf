package service

import (
	"context"
	"fmt"
	"log"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

// ProcessPayment submits the session's basket to the order service. At most
// one submission is in flight: a second call while Processing is rejected.
// PaymentRequiresAction means the state is back to Loaded with a pending
// client secret that must go through Complete3DSAuthentication. PaymentPending
// leaves only the order id, for ConfirmOrder.
func (s *CheckoutServiceImpl) ProcessPayment(ctx context.Context, authToken string) (PaymentOutcome, error) {
	s.mu.Lock()
	sess, err := s.loadedSessionLocked("ProcessPayment")
	if err != nil {
		s.mu.Unlock()
		return PaymentNotCompleted, err
	}
	if sess.authenticationPending() {
		s.mu.Unlock()
		return PaymentNotCompleted, ErrAuthenticationPending
	}
	if !sess.CanProceedToPayment() {
		s.mu.Unlock()
		return PaymentNotCompleted, ErrCannotProceed
	}

	req := &d.PlaceOrderRequest{
		IdempotencyKey: sess.IdempotencyKey,
		Basket:         sess.Basket.Clone(),
	}
	if sess.SelectedPaymentMethod != nil && sess.RequiresPayment() {
		req.PaymentMethodID = sess.SelectedPaymentMethod.ID
	}
	if sess.BillingAddress != nil {
		a := *sess.BillingAddress
		req.BillingAddress = &a
	}
	epoch := sess.epoch
	s.setStateLocked(ProcessingState{Session: sess.clone()})
	s.mu.Unlock()

	res, err := s.orders.PlaceOrder(ctx, authToken, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		log.Printf("dropping order result for discarded checkout, idempotency_key = %v", req.IdempotencyKey)
		return PaymentNotCompleted, ErrSessionDiscarded
	}

	switch {
	case err != nil:
		log.Printf("failed to place order, idempotency_key = %v: %v", req.IdempotencyKey, err)
		return PaymentNotCompleted, s.failLocked(err, sess)
	case res == nil:
		return PaymentNotCompleted, s.failLocked(fmt.Errorf("order service returned no result"), sess)
	case res.RequiresAction:
		if res.ClientSecret == "" {
			return PaymentNotCompleted, s.failLocked(&d.PaymentError{
				Kind:    d.PaymentErrorInvalidRequest,
				Message: msgOrderNotConfirmed,
				Err:     fmt.Errorf("requires_action without client secret"),
			}, sess)
		}
		sess.ClientSecret = res.ClientSecret
		sess.PendingOrderID = res.OrderID
		sess.CurrentStep = StepConfirmation
		sess.IsProcessing = true
		s.setStateLocked(LoadedState{Session: sess.clone()})
		return PaymentRequiresAction, nil
	case res.Order == nil:
		return PaymentNotCompleted, s.failLocked(fmt.Errorf("order service returned no order"), sess)
	case res.Order.Status == d.OrderStatusPendingAuthentication:
		sess.PendingOrderID = res.Order.ID.String()
		sess.CurrentStep = StepConfirmation
		sess.IsProcessing = true
		s.setStateLocked(LoadedState{Session: sess.clone()})
		return PaymentPending, nil
	}

	return s.settleLocked(*res.Order, sess)
}

// Complete3DSAuthentication resolves the pending step-up challenge. The order
// is not assumed to be finalized afterwards: ConfirmOrder re-queries it.
func (s *CheckoutServiceImpl) Complete3DSAuthentication(ctx context.Context, clientSecret string) error {
	s.mu.Lock()
	sess, err := s.loadedSessionLocked("Complete3DSAuthentication")
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if sess.ClientSecret == "" {
		s.mu.Unlock()
		return ErrNoPendingAuthentication
	}
	if clientSecret != sess.ClientSecret {
		s.mu.Unlock()
		return &InvalidOperationError{Op: "Complete3DSAuthentication with a foreign client secret", State: StateLoaded}
	}
	epoch := sess.epoch
	s.setStateLocked(ProcessingState{Session: sess.clone()})
	s.mu.Unlock()

	err = s.gateway.ConfirmAuthentication(ctx, clientSecret)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSessionDiscarded
	}
	if err != nil {
		log.Printf("failed to confirm payment authentication, order_id = %v: %v", sess.PendingOrderID, err)
		if !isAmbiguous(err) {
			sess.clearAuthentication(s.newKey())
		}
		st := failure(authenticationError(err), nil)
		c := sess.clone()
		st.Session = &c
		s.setStateLocked(st)
		return st.Err
	}

	sess.ClientSecret = ""
	sess.Authenticated = true
	s.setStateLocked(LoadedState{Session: sess.clone()})
	return nil
}

// ConfirmOrder re-queries the order left pending by a step-up challenge.
// A confirmed order moves to Success; one still pending leaves the state at
// Loaded; a failed one moves to Error and the next submission starts over.
func (s *CheckoutServiceImpl) ConfirmOrder(ctx context.Context, authToken string) (*d.Order, error) {
	s.mu.Lock()
	sess, err := s.loadedSessionLocked("ConfirmOrder")
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess.PendingOrderID == "" {
		s.mu.Unlock()
		return nil, ErrNoPendingAuthentication
	}
	if sess.ClientSecret != "" {
		s.mu.Unlock()
		return nil, ErrAuthenticationPending
	}
	orderID := sess.PendingOrderID
	epoch := sess.epoch
	s.setStateLocked(ProcessingState{Session: sess.clone()})
	s.mu.Unlock()

	order, err := s.orders.FetchOrder(ctx, authToken, orderID)
	if err == nil && order == nil {
		err = fmt.Errorf("order service returned no order")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil, ErrSessionDiscarded
	}
	if err != nil {
		log.Printf("failed to fetch order, order_id = %v: %v", orderID, err)
		return nil, s.failLocked(err, sess)
	}
	if order.Status == d.OrderStatusPendingAuthentication {
		s.setStateLocked(LoadedState{Session: sess.clone()})
		o := *order
		return &o, nil
	}
	if _, err := s.settleLocked(*order, sess); err != nil {
		return nil, err
	}
	o := *order
	return &o, nil
}

// settleLocked applies an order in a terminal status.
func (s *CheckoutServiceImpl) settleLocked(order d.Order, sess *CheckoutSession) (PaymentOutcome, error) {
	if order.Status != d.OrderStatusConfirmed {
		msg := messageOr(order.FailureReason, msgOrderNotConfirmed)
		return PaymentNotCompleted, s.failLocked(&d.PaymentError{
			Kind:    d.PaymentErrorDeclined,
			Message: msg,
			Err:     fmt.Errorf("order %v is %v", order.ID, order.Status),
		}, sess)
	}
	s.session = nil
	s.basket = nil
	s.setStateLocked(SuccessState{Order: order})
	return PaymentCompleted, nil
}

// failLocked moves to Error keeping the session. Unless the outcome of the
// failed call is unknown, the pending attempt is dropped and the next one
// uses a new idempotency key.
func (s *CheckoutServiceImpl) failLocked(err error, sess *CheckoutSession) error {
	if !isAmbiguous(err) {
		sess.clearAuthentication(s.newKey())
	}
	st := failure(err, nil)
	c := sess.clone()
	st.Session = &c
	s.setStateLocked(st)
	return st.Err
}

// isAmbiguous reports whether a failed call may still have taken effect.
func isAmbiguous(err error) bool {
	pe, ok := d.AsPaymentError(err)
	return !ok || pe.IsTransient()
}

// authenticationError reports a non-transport step-up failure as an
// authentication failure whatever the gateway called it.
func authenticationError(err error) error {
	if isAmbiguous(err) {
		return err
	}
	pe, _ := d.AsPaymentError(err)
	return &d.PaymentError{Kind: d.PaymentErrorAuthentication, Code: pe.Code, Message: pe.Message, Err: err}
}
