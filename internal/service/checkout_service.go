package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/google/uuid"
)

// CheckoutServiceImpl is the checkout state machine. It has a single writer,
// the checkout UI, which owns the instance for the lifetime of the checkout
// screens. Network calls run without the lock held; their results are
// dropped if the session they were started for has since been discarded.
type CheckoutServiceImpl struct {
	gateway PaymentGateway
	orders  OrderService

	now    func() time.Time
	newKey func() string

	mu          sync.Mutex
	state       State
	session     *CheckoutSession
	basket      *d.Basket // kept so a failed initialization can be retried
	epoch       uint64
	subscribers map[*Subscription]struct{}
}

func NewCheckoutService(gateway PaymentGateway, orders OrderService) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		gateway:     gateway,
		orders:      orders,
		now:         time.Now,
		newKey:      func() string { return uuid.New().String() },
		state:       InitialState{},
		subscribers: make(map[*Subscription]struct{}),
	}
}

// InitializeCheckout starts a checkout for a snapshot of basket and loads the
// user's payment methods.
func (s *CheckoutServiceImpl) InitializeCheckout(ctx context.Context, basket d.Basket) error {
	snapshot := basket.Clone()

	s.mu.Lock()
	switch s.state.(type) {
	case LoadingState, ProcessingState:
		st := s.state.Name()
		s.mu.Unlock()
		return &InvalidOperationError{Op: "InitializeCheckout", State: st}
	}

	s.epoch++
	s.session = nil
	s.basket = nil

	if snapshot.IsEmpty() {
		s.setStateLocked(ErrorState{Message: msgEmptyBasket, Err: ErrEmptyBasket})
		s.mu.Unlock()
		return ErrEmptyBasket
	}
	if err := snapshot.Validate(); err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrInvalidBasket, err)
		s.setStateLocked(ErrorState{Message: msgInvalidBasket, Err: wrapped})
		s.mu.Unlock()
		return wrapped
	}
	snapshot.Recalculate(s.now())

	epoch := s.epoch
	s.basket = &snapshot
	s.setStateLocked(LoadingState{})
	s.mu.Unlock()

	methods, err := s.gateway.ListPaymentMethods(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSessionDiscarded
	}
	if err != nil {
		log.Printf("failed to load payment methods for basket %v: %v", snapshot.ID, err)
		wrapped := fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		s.setStateLocked(ErrorState{Message: msgGatewayLoad, Err: wrapped, Retryable: true})
		return wrapped
	}

	s.session = &CheckoutSession{
		Basket:                  snapshot.Clone(),
		AvailablePaymentMethods: methods,
		SelectedPaymentMethod:   d.DefaultPaymentMethod(methods),
		CurrentStep:             StepReview,
		IdempotencyKey:          s.newKey(),
		epoch:                   epoch,
	}
	s.setStateLocked(LoadedState{Session: s.session.clone()})
	return nil
}

// Retry leaves a retryable Error state. With a preserved session it returns
// to Loaded; when the failure happened while loading, initialization runs
// again for the same basket.
func (s *CheckoutServiceImpl) Retry(ctx context.Context) error {
	s.mu.Lock()
	es, ok := s.state.(ErrorState)
	if !ok || !es.Retryable {
		st := s.state.Name()
		s.mu.Unlock()
		return &InvalidOperationError{Op: "Retry", State: st}
	}
	if s.session != nil {
		s.setStateLocked(LoadedState{Session: s.session.clone()})
		s.mu.Unlock()
		return nil
	}
	basket := s.basket
	s.mu.Unlock()

	if basket == nil {
		return &InvalidOperationError{Op: "Retry", State: StateError}
	}
	return s.InitializeCheckout(ctx, *basket)
}

// Reset discards the session and returns to Initial. Results of calls still
// in flight are ignored when they arrive.
func (s *CheckoutServiceImpl) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.session = nil
	s.basket = nil
	s.setStateLocked(InitialState{})
}

func (s *CheckoutServiceImpl) setStateLocked(st State) {
	s.state = st
	s.publishLocked(st)
}

// loadedSessionLocked returns the live session when the machine is Loaded.
func (s *CheckoutServiceImpl) loadedSessionLocked(op string) (*CheckoutSession, error) {
	if _, ok := s.state.(LoadedState); !ok || s.session == nil {
		return nil, &InvalidOperationError{Op: op, State: s.state.Name()}
	}
	return s.session, nil
}

// State returns the current state. Sessions it carries are copies.
func (s *CheckoutServiceImpl) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return detached(s.state)
}

// Session returns a copy of the current session, or nil.
func (s *CheckoutServiceImpl) Session() *CheckoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := sessionOf(s.state)
	if sess == nil {
		return nil
	}
	c := sess.clone()
	return &c
}

func (s *CheckoutServiceImpl) IsLoading() bool {
	switch s.State().(type) {
	case LoadingState, ProcessingState:
		return true
	}
	return false
}

func (s *CheckoutServiceImpl) ErrorMessage() string {
	if es, ok := s.State().(ErrorState); ok {
		return es.Message
	}
	return ""
}

func (s *CheckoutServiceImpl) ErrorCode() string {
	if es, ok := s.State().(ErrorState); ok {
		return es.Code
	}
	return ""
}

// Err returns the error behind the Error state.
func (s *CheckoutServiceImpl) Err() error {
	if es, ok := s.State().(ErrorState); ok {
		return es.Err
	}
	return nil
}

// Order returns the confirmed order once the checkout succeeded.
func (s *CheckoutServiceImpl) Order() *d.Order {
	if ss, ok := s.State().(SuccessState); ok {
		o := ss.Order
		return &o
	}
	return nil
}

func (s *CheckoutServiceImpl) AvailablePaymentMethods() []d.PaymentMethod {
	if sess := s.Session(); sess != nil {
		return sess.AvailablePaymentMethods
	}
	return nil
}

func (s *CheckoutServiceImpl) SelectedPaymentMethod() *d.PaymentMethod {
	if sess := s.Session(); sess != nil {
		return sess.SelectedPaymentMethod
	}
	return nil
}

// CurrentStep is 0 when there is no session.
func (s *CheckoutServiceImpl) CurrentStep() int {
	if sess := s.Session(); sess != nil {
		return sess.CurrentStep
	}
	return 0
}

// CanProceedToPayment reports whether ProcessPayment would submit. It needs
// Loaded with a non-empty basket and no pending step-up. A zero charge skips
// the payment method and billing address checks.
func (s *CheckoutServiceImpl) CanProceedToPayment() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.(LoadedState); !ok || s.session == nil {
		return false
	}
	return s.session.CanProceedToPayment() && !s.session.authenticationPending()
}

func (s *CheckoutServiceImpl) RequiresPayment() bool {
	if sess := s.Session(); sess != nil {
		return sess.RequiresPayment()
	}
	return false
}

// IsTerminal reports whether err leaves nothing to retry without a new basket.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrEmptyBasket) || errors.Is(err, ErrInvalidBasket)
}
