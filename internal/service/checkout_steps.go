package service

import (
	"context"
	"fmt"
	"log"

	d "github.com/fjod/go_cart/checkout-engine/domain"
)

func (s *CheckoutServiceImpl) NextStep() error {
	return s.moveStep("NextStep", 1)
}

func (s *CheckoutServiceImpl) PreviousStep() error {
	return s.moveStep("PreviousStep", -1)
}

func (s *CheckoutServiceImpl) moveStep(op string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadedSessionLocked(op)
	if err != nil {
		return err
	}
	step := min(max(sess.CurrentStep+delta, StepReview), StepConfirmation)
	if step == sess.CurrentStep {
		return nil
	}
	sess.CurrentStep = step
	s.setStateLocked(LoadedState{Session: sess.clone()})
	return nil
}

// SelectPaymentMethod selects one of the session's available methods.
func (s *CheckoutServiceImpl) SelectPaymentMethod(method d.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadedSessionLocked("SelectPaymentMethod")
	if err != nil {
		return err
	}
	if sess.authenticationPending() {
		return ErrAuthenticationPending
	}
	found := sess.findPaymentMethod(method.ID)
	if found == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPaymentMethod, method.ID)
	}
	sess.SelectedPaymentMethod = found
	s.setStateLocked(LoadedState{Session: sess.clone()})
	return nil
}

func (s *CheckoutServiceImpl) UpdateBillingAddress(address d.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadedSessionLocked("UpdateBillingAddress")
	if err != nil {
		return err
	}
	if sess.authenticationPending() {
		return ErrAuthenticationPending
	}
	sess.BillingAddress = &address
	s.setStateLocked(LoadedState{Session: sess.clone()})
	return nil
}

// AddPaymentMethod registers a tokenized instrument with the gateway and adds
// it to the session. The new method is selected when setAsDefault is set or
// when nothing was selected yet.
func (s *CheckoutServiceImpl) AddPaymentMethod(ctx context.Context, gatewayToken string, billing *d.Address, setAsDefault bool) (*d.PaymentMethod, error) {
	s.mu.Lock()
	sess, err := s.loadedSessionLocked("AddPaymentMethod")
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess.authenticationPending() {
		s.mu.Unlock()
		return nil, ErrAuthenticationPending
	}
	epoch := sess.epoch
	s.setStateLocked(ProcessingState{Session: sess.clone()})
	s.mu.Unlock()

	method, err := s.gateway.CreatePaymentMethod(ctx, gatewayToken, billing, setAsDefault)
	if err == nil && method == nil {
		err = fmt.Errorf("gateway returned no payment method")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil, ErrSessionDiscarded
	}
	if err != nil {
		log.Printf("failed to add payment method: %v", err)
		st := failure(err, nil)
		if pe, ok := d.AsPaymentError(err); ok && !pe.IsTransient() && pe.Message == "" {
			st.Message = msgAddPaymentMethod
		}
		c := sess.clone()
		st.Session = &c
		s.setStateLocked(st)
		return nil, st.Err
	}

	added := clonePaymentMethod(*method)
	if setAsDefault {
		for i := range sess.AvailablePaymentMethods {
			sess.AvailablePaymentMethods[i].IsDefault = false
		}
		added.IsDefault = true
	}
	sess.AvailablePaymentMethods = append(sess.AvailablePaymentMethods, added)
	if setAsDefault || sess.SelectedPaymentMethod == nil {
		m := clonePaymentMethod(added)
		sess.SelectedPaymentMethod = &m
	}
	s.setStateLocked(LoadedState{Session: sess.clone()})
	out := clonePaymentMethod(added)
	return &out, nil
}

// RefreshPaymentMethods re-fetches the method list, dropping any cached copy
// first. It is best effort: a failure is logged and returned but leaves the
// state as it was.
func (s *CheckoutServiceImpl) RefreshPaymentMethods(ctx context.Context) error {
	s.mu.Lock()
	sess, err := s.loadedSessionLocked("RefreshPaymentMethods")
	if err != nil {
		s.mu.Unlock()
		return err
	}
	epoch := sess.epoch
	s.mu.Unlock()

	if inv, ok := s.gateway.(methodCacheInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			log.Printf("failed to invalidate payment method cache: %v", err)
		}
	}
	methods, err := s.gateway.ListPaymentMethods(ctx)
	if err != nil {
		log.Printf("failed to refresh payment methods: %v", err)
		return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSessionDiscarded
	}
	// A submission may have started while the list was in flight.
	if _, ok := s.state.(LoadedState); !ok || s.session == nil {
		return nil
	}
	sess = s.session
	sess.AvailablePaymentMethods = methods
	if sess.SelectedPaymentMethod != nil {
		sess.SelectedPaymentMethod = sess.findPaymentMethod(sess.SelectedPaymentMethod.ID)
	}
	if sess.SelectedPaymentMethod == nil {
		sess.SelectedPaymentMethod = d.DefaultPaymentMethod(methods)
	}
	s.setStateLocked(LoadedState{Session: sess.clone()})
	return nil
}
