package domain

type OrderStatus string

const (
	OrderStatusPendingAuthentication OrderStatus = "PENDING_AUTHENTICATION"
	OrderStatusConfirmed             OrderStatus = "CONFIRMED"
	OrderStatusFailed                OrderStatus = "FAILED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusFailed
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPendingAuthentication && next.IsTerminal()
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPendingAuthentication, OrderStatusConfirmed, OrderStatusFailed:
		return true
	}
	return false
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}
