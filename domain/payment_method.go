package domain

import "strings"

// Address is a billing address.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	County     string `json:"county,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IsComplete reports whether the address has enough detail to charge against.
func (a *Address) IsComplete() bool {
	if a == nil {
		return false
	}
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.PostalCode) != "" &&
		strings.TrimSpace(a.Country) != ""
}

// PaymentMethod is an instrument registered with the payment gateway.
type PaymentMethod struct {
	ID             string   `json:"id"`
	IsDefault      bool     `json:"is_default"`
	Brand          string   `json:"brand,omitempty"`
	Last4          string   `json:"last4,omitempty"`
	ExpMonth       int      `json:"exp_month,omitempty"`
	ExpYear        int      `json:"exp_year,omitempty"`
	BillingAddress *Address `json:"billing_address,omitempty"`
}

func (p PaymentMethod) HasBillingAddress() bool {
	return p.BillingAddress.IsComplete()
}

// DefaultPaymentMethod picks the gateway-flagged default. When several are
// flagged the first one wins; when none is flagged there is no default.
func DefaultPaymentMethod(methods []PaymentMethod) *PaymentMethod {
	for i := range methods {
		if methods[i].IsDefault {
			m := methods[i]
			return &m
		}
	}
	return nil
}
