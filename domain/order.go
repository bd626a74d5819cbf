package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderItem struct {
	CourseID      string  `json:"course_id"`
	CourseName    string  `json:"course_name"`
	SessionID     *string `json:"session_id,omitempty"`
	IsTaster      bool    `json:"is_taster,omitempty"`
	Price         Money   `json:"price"`
	DiscountTotal Money   `json:"discount_total"`
	TotalPrice    Money   `json:"total_price"`
	PayLater      Money   `json:"pay_later,omitempty"`
}

// Order is the server-assigned record of a placed checkout. It does not
// change once it reaches a terminal status.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	IdempotencyKey string      `json:"-"`
	UserID         string      `json:"user_id"`
	BasketID       string      `json:"basket_id,omitempty"`
	Status         OrderStatus `json:"status"`
	Currency       string      `json:"currency"`
	Items          []OrderItem `json:"items"`
	Totals         Totals      `json:"totals"`
	PaymentID      string      `json:"payment_id,omitempty"`
	PaymentMethod  string      `json:"payment_method_id,omitempty"`
	ClientSecret   string      `json:"-"`
	FailureReason  string      `json:"failure_reason,omitempty"`
	FailureCode    string      `json:"failure_code,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// OrderItemsFromBasket captures the priced lines of a basket for an order.
func OrderItemsFromBasket(b Basket) []OrderItem {
	items := make([]OrderItem, 0, len(b.Items))
	for _, i := range b.Items {
		items = append(items, OrderItem{
			CourseID:      i.CourseID,
			CourseName:    i.CourseName,
			SessionID:     i.SessionID,
			IsTaster:      i.IsTaster,
			Price:         i.Price,
			DiscountTotal: i.TotalDiscount(),
			TotalPrice:    i.TotalPrice(),
			PayLater:      i.PayLaterValue(),
		})
	}
	return items
}
