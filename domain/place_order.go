package domain

type PlaceOrderRequest struct {
	IdempotencyKey  string   `json:"-"`
	Basket          Basket   `json:"basket"`
	PaymentMethodID string   `json:"payment_method_id,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
}

// PlaceOrderResult is either a created order, or a step-up challenge for the
// pending order identified by OrderID.
type PlaceOrderResult struct {
	Order          *Order `json:"order,omitempty"`
	RequiresAction bool   `json:"requires_action"`
	ClientSecret   string `json:"client_secret,omitempty"`
	OrderID        string `json:"order_id,omitempty"`
}
