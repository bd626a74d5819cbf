package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/gateway"
	r "github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("user is not authenticated")
	ErrOrderNotFound   = errors.New("order not found")
)

// orderNamespace scopes order ids derived from idempotency keys.
var orderNamespace = uuid.MustParse("6f1c2f4e-2a8e-4d0b-9f43-3c1f0a7b5e21")

// Service places orders for priced baskets. It is idempotent per user and
// idempotency key: a repeated key returns the outcome of the first request.
type Service struct {
	repo    r.OrderRepository
	gateway gateway.Client
	now     func() time.Time
}

func NewService(repo r.OrderRepository, gw gateway.Client) *Service {
	return &Service{repo: repo, gateway: gw, now: time.Now}
}

func (s *Service) PlaceOrder(ctx context.Context, userID string, req *d.PlaceOrderRequest) (*d.PlaceOrderResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if req.IdempotencyKey == "" {
		return nil, invalidRequest("missing_idempotency_key", "An idempotency key is required.", nil)
	}

	existing, err := s.repo.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
	switch {
	case err == nil:
		log.Printf("replaying order %v for idempotency_key = %v", existing.ID, req.IdempotencyKey)
		return resultFor(existing)
	case !errors.Is(err, r.ErrOrderNotFound):
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}

	order, err := s.priceOrder(userID, req)
	if err != nil {
		return nil, err
	}

	if order.Totals.ChargeTotal > 0 {
		if err := s.authorize(ctx, order, req); err != nil {
			return nil, err
		}
	} else {
		order.Status = d.OrderStatusConfirmed
	}

	if err := s.save(ctx, order); err != nil {
		if errors.Is(err, r.ErrDuplicateOrder) {
			// A concurrent request with the same key won.
			existing, getErr := s.repo.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrent order: %w", getErr)
			}
			return resultFor(existing)
		}
		return nil, err
	}

	log.Printf("order %v placed, status = %v, charge = %v", order.ID, order.Status, order.Totals.ChargeTotal.Format(order.Currency))
	return resultFor(order)
}

// priceOrder re-prices the basket and refuses totals that differ from what
// the customer was shown.
func (s *Service) priceOrder(userID string, req *d.PlaceOrderRequest) (*d.Order, error) {
	basket := req.Basket.Clone()
	if basket.IsEmpty() {
		return nil, invalidRequest("empty_basket", "Your basket is empty.", nil)
	}
	if err := basket.Validate(); err != nil {
		return nil, invalidRequest("invalid_basket", "Your basket contains an item that can't be booked.", err)
	}
	shown := basket.Totals
	basket.Recalculate(s.now())
	if shown != basket.Totals {
		return nil, invalidRequest("totals_mismatch", "Your basket has changed. Please review it before paying.",
			fmt.Errorf("shown total %v, priced %v", shown.Total, basket.Totals.Total))
	}

	return &d.Order{
		ID:             uuid.NewSHA1(orderNamespace, []byte(userID+"\x00"+req.IdempotencyKey)),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         userID,
		BasketID:       basket.ID,
		Currency:       basket.Currency,
		Items:          d.OrderItemsFromBasket(basket),
		Totals:         basket.Totals,
		PaymentMethod:  req.PaymentMethodID,
	}, nil
}

// authorize charges the order and sets its status from the outcome. A
// definitive failure is recorded as a FAILED order and returned; a transport
// failure is returned without recording anything.
func (s *Service) authorize(ctx context.Context, order *d.Order, req *d.PlaceOrderRequest) error {
	if req.PaymentMethodID == "" {
		return invalidRequest("missing_payment_method", "Please choose a payment method.", nil)
	}

	auth, err := s.gateway.Authorize(ctx, &gateway.AuthorizeRequest{
		IdempotencyKey:  req.IdempotencyKey,
		OrderID:         order.ID.String(),
		Amount:          order.Totals.ChargeTotal,
		Currency:        order.Currency,
		PaymentMethodID: req.PaymentMethodID,
		Description:     fmt.Sprintf("Order %s", order.ID),
	})
	if err != nil {
		pe, ok := d.AsPaymentError(err)
		if !ok || pe.IsTransient() {
			log.Printf("authorization outcome unknown, order = %v: %v", order.ID, err)
			return err
		}
		order.Status = d.OrderStatusFailed
		order.FailureReason = pe.Message
		order.FailureCode = pe.Code
		if saveErr := s.save(ctx, order); saveErr != nil && !errors.Is(saveErr, r.ErrDuplicateOrder) {
			log.Printf("failed to record declined order %v: %v", order.ID, saveErr)
		}
		return err
	}

	order.PaymentID = auth.PaymentID
	switch auth.Status {
	case gateway.PaymentStatusSucceeded:
		order.Status = d.OrderStatusConfirmed
	case gateway.PaymentStatusRequiresAction:
		order.Status = d.OrderStatusPendingAuthentication
		order.ClientSecret = auth.ClientSecret
	default:
		order.Status = d.OrderStatusPendingAuthentication
	}
	return nil
}

func (s *Service) save(ctx context.Context, order *d.Order) error {
	var event *r.OutboxEvent
	if order.Status.IsTerminal() {
		ev, err := newOutboxEvent(order, s.now())
		if err != nil {
			return err
		}
		event = ev
	}
	if err := s.repo.CreateOrder(ctx, order, event); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// FetchOrder returns one of the user's orders. A pending order is first
// reconciled against the gateway.
func (s *Service) FetchOrder(ctx context.Context, userID string, orderID string) (*d.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if errors.Is(err, r.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	if order.Status == d.OrderStatusPendingAuthentication {
		reconciled, err := s.reconcile(ctx, order)
		if err != nil {
			log.Printf("failed to reconcile order %v: %v", order.ID, err)
			return order, nil
		}
		return reconciled, nil
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]*d.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	orders, err := s.repo.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []*d.Order{}
	}
	return orders, nil
}

// ReconcilePending settles orders left pending for longer than olderThan and
// returns how many changed status.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	pending, err := s.repo.GetPendingOrders(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending orders: %w", err)
	}

	settled := 0
	for _, order := range pending {
		updated, err := s.reconcile(ctx, order)
		if err != nil {
			log.Printf("failed to reconcile order %v: %v", order.ID, err)
			continue
		}
		if updated.Status != d.OrderStatusPendingAuthentication {
			log.Printf("order %v reconciled to %v", order.ID, updated.Status)
			settled++
		}
	}
	return settled, nil
}

// reconcile asks the gateway how the order's payment ended. Orders whose
// payment is still open are returned unchanged.
func (s *Service) reconcile(ctx context.Context, order *d.Order) (*d.Order, error) {
	if order.PaymentID == "" {
		return order, nil
	}
	status, err := s.gateway.PaymentStatus(ctx, order.PaymentID)
	if err != nil {
		return nil, err
	}

	next := *order
	switch status {
	case gateway.PaymentStatusSucceeded:
		next.Status = d.OrderStatusConfirmed
	case gateway.PaymentStatusFailed:
		next.Status = d.OrderStatusFailed
		next.FailureReason = "Payment authentication failed."
		next.FailureCode = "authentication_failed"
	default:
		return order, nil
	}
	next.ClientSecret = ""

	event, err := newOutboxEvent(&next, s.now())
	if err != nil {
		return nil, err
	}
	err = s.repo.UpdateOrderStatus(ctx, &r.StatusUpdate{
		ID:            order.ID,
		From:          order.Status,
		To:            next.Status,
		FailureReason: next.FailureReason,
		FailureCode:   next.FailureCode,
		Event:         event,
	})
	if errors.Is(err, r.ErrStatusConflict) {
		return s.repo.GetOrderByID(ctx, order.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	next.UpdatedAt = s.now()
	return &next, nil
}

// resultFor describes a stored order as a placement result.
func resultFor(order *d.Order) (*d.PlaceOrderResult, error) {
	switch {
	case order.Status == d.OrderStatusFailed:
		return nil, &d.PaymentError{Kind: d.PaymentErrorDeclined, Code: order.FailureCode, Message: order.FailureReason}
	case order.Status == d.OrderStatusPendingAuthentication && order.ClientSecret != "":
		return &d.PlaceOrderResult{RequiresAction: true, ClientSecret: order.ClientSecret, OrderID: order.ID.String()}, nil
	default:
		return &d.PlaceOrderResult{Order: order}, nil
	}
}

func invalidRequest(code, msg string, err error) *d.PaymentError {
	return &d.PaymentError{Kind: d.PaymentErrorInvalidRequest, Code: code, Message: msg, Err: err}
}
