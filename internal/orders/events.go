package orders

import (
	"encoding/json"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	r "github.com/fjod/go_cart/checkout-engine/internal/repository"
)

// OrderEvent is the payload published for an order that reached a terminal
// status. Amounts are decimal strings in major units.
type OrderEvent struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	BasketID      string        `json:"basket_id,omitempty"`
	Status        string        `json:"status"`
	Currency      string        `json:"currency"`
	Total         string        `json:"total"`
	ChargeTotal   string        `json:"charge_total"`
	PayLater      string        `json:"pay_later"`
	PaymentID     string        `json:"payment_id,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Items         []d.OrderItem `json:"items"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func newOutboxEvent(order *d.Order, at time.Time) (*r.OutboxEvent, error) {
	eventType := r.EventOrderConfirmed
	if order.Status == d.OrderStatusFailed {
		eventType = r.EventOrderFailed
	}

	payload, err := json.Marshal(OrderEvent{
		OrderID:       order.ID.String(),
		UserID:        order.UserID,
		BasketID:      order.BasketID,
		Status:        order.Status.String(),
		Currency:      order.Currency,
		Total:         order.Totals.Total.String(),
		ChargeTotal:   order.Totals.ChargeTotal.String(),
		PayLater:      order.Totals.PayLater.String(),
		PaymentID:     order.PaymentID,
		FailureReason: order.FailureReason,
		Items:         order.Items,
		OccurredAt:    at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return &r.OutboxEvent{AggregateID: order.ID.String(), EventType: eventType, Payload: payload}, nil
}
