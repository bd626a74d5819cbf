package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidBasketItem = errors.New("invalid basket item")
	ErrInvalidCredit     = errors.New("invalid credit item")
	ErrInvalidFee        = errors.New("invalid fee item")
	ErrAmountTooLarge    = errors.New("amount exceeds the supported maximum")
)

// maxTaxRateBasisPoints is a 100% rate.
const maxTaxRateBasisPoints = basisPointsDivisor

// BasketItem is one purchasable line of a basket: a course, or a single
// session of a course when SessionID is set.
type BasketItem struct {
	ID                     string  `json:"id"`
	CourseID               string  `json:"course_id"`
	CourseName             string  `json:"course_name"`
	Price                  Money   `json:"price"`
	DiscountValue          Money   `json:"discount_value,omitempty"`
	PromoCodeDiscountValue Money   `json:"promo_code_discount_value,omitempty"`
	IsTaster               bool    `json:"is_taster,omitempty"`
	SessionID              *string `json:"session_id,omitempty"`
	// DepositValue is the part of TotalPrice charged now for deposit bookings.
	// The remainder is deferred.
	DepositValue *Money `json:"deposit_value,omitempty"`
}

// TotalPrice is the price of the line after its discounts.
func (i BasketItem) TotalPrice() Money {
	return i.Price - i.DiscountValue - i.PromoCodeDiscountValue
}

// TotalDiscount is the sum of every discount applied to the line.
func (i BasketItem) TotalDiscount() Money {
	return i.DiscountValue + i.PromoCodeDiscountValue
}

func (i BasketItem) HasDiscount() bool {
	return i.TotalDiscount() > 0
}

// IsSingleSession reports whether the item books one session rather than the whole course.
func (i BasketItem) IsSingleSession() bool {
	return i.SessionID != nil && *i.SessionID != ""
}

// PayLaterValue is the deferred part of the line.
func (i BasketItem) PayLaterValue() Money {
	if i.DepositValue == nil {
		return 0
	}
	deposit := *i.DepositValue
	if deposit >= i.TotalPrice() {
		return 0
	}
	return i.TotalPrice() - deposit
}

func (i BasketItem) Validate() error {
	switch {
	case i.Price > MaxMoney || i.DiscountValue > MaxMoney || i.PromoCodeDiscountValue > MaxMoney ||
		(i.DepositValue != nil && *i.DepositValue > MaxMoney):
		return fmt.Errorf("%w: item %q", ErrAmountTooLarge, i.ID)
	case i.Price < 0:
		return fmt.Errorf("%w: item %q has negative price %d", ErrInvalidBasketItem, i.ID, i.Price)
	case i.DiscountValue < 0 || i.PromoCodeDiscountValue < 0:
		return fmt.Errorf("%w: item %q has a negative discount", ErrInvalidBasketItem, i.ID)
	case i.TotalPrice() < 0:
		return fmt.Errorf("%w: item %q discounts %d exceed price %d", ErrInvalidBasketItem, i.ID, i.TotalDiscount(), i.Price)
	case i.DepositValue != nil && *i.DepositValue < 0:
		return fmt.Errorf("%w: item %q has a negative deposit", ErrInvalidBasketItem, i.ID)
	}
	return nil
}

// CreditItem is an account credit that reduces the amount charged now.
type CreditItem struct {
	ID          string     `json:"id"`
	Value       Money      `json:"value"`
	Description string     `json:"description"`
	Code        string     `json:"code,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (c CreditItem) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// FeeItem is an extra charge such as a registration fee. Optional fees only
// apply once Selected.
type FeeItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Value       Money  `json:"value"`
	Optional    bool   `json:"optional,omitempty"`
	Selected    bool   `json:"selected,omitempty"`
}

func (f FeeItem) Applies() bool {
	return !f.Optional || f.Selected
}

// BasketDiscount is a discount applied to the basket as a whole.
type BasketDiscount struct {
	Description string `json:"description"`
	Value       Money  `json:"value"`
}

// Totals are the computed aggregate fields of a basket.
type Totals struct {
	DiscountValue          Money `json:"discount_value"`
	DiscountTotal          Money `json:"discount_total"`
	PromoCodeDiscountValue Money `json:"promo_code_discount_value"`
	CreditTotal            Money `json:"credit_total"`
	FeeTotal               Money `json:"fee_total"`
	SubTotal               Money `json:"sub_total"`
	Tax                    Money `json:"tax"`
	Total                  Money `json:"total"`
	ChargeTotal            Money `json:"charge_total"`
	PayLater               Money `json:"pay_later"`
}

// Basket is the priced collection of items a user intends to purchase.
type Basket struct {
	ID                 string           `json:"id"`
	Currency           string           `json:"currency"`
	Items              []BasketItem     `json:"items"`
	Credits            []CreditItem     `json:"credits,omitempty"`
	Fees               []FeeItem        `json:"fees,omitempty"`
	Discounts          []BasketDiscount `json:"discounts,omitempty"`
	TaxRateBasisPoints int64            `json:"tax_rate_bps,omitempty"`
	Totals             Totals           `json:"totals"`
}

func (b *Basket) IsEmpty() bool {
	return b == nil || len(b.Items) == 0
}

// Validate checks every line, credit and fee of the basket, and that no
// aggregate exceeds MaxMoney.
func (b *Basket) Validate() error {
	var prices, discounts, credits, fees Money
	for _, item := range b.Items {
		if err := item.Validate(); err != nil {
			return err
		}
		prices += item.Price
		discounts += item.TotalDiscount()
	}
	for _, c := range b.Credits {
		if c.Value < 0 {
			return fmt.Errorf("%w: credit %q has negative value", ErrInvalidCredit, c.ID)
		}
		if c.Value > MaxMoney {
			return fmt.Errorf("%w: credit %q", ErrAmountTooLarge, c.ID)
		}
		credits += c.Value
	}
	for _, f := range b.Fees {
		if f.Value < 0 {
			return fmt.Errorf("%w: fee %q has negative value", ErrInvalidFee, f.ID)
		}
		if f.Value > MaxMoney {
			return fmt.Errorf("%w: fee %q", ErrAmountTooLarge, f.ID)
		}
		fees += f.Value
	}
	for _, d := range b.Discounts {
		if d.Value < 0 {
			return fmt.Errorf("%w: basket discount %q is negative", ErrInvalidBasketItem, d.Description)
		}
		if d.Value > MaxMoney {
			return fmt.Errorf("%w: basket discount %q", ErrAmountTooLarge, d.Description)
		}
		discounts += d.Value
	}
	if b.TaxRateBasisPoints < 0 || b.TaxRateBasisPoints > maxTaxRateBasisPoints {
		return fmt.Errorf("%w: tax rate %d bps out of range", ErrInvalidBasketItem, b.TaxRateBasisPoints)
	}
	if prices > MaxMoney || discounts > MaxMoney || credits > MaxMoney || fees > MaxMoney {
		return fmt.Errorf("%w: basket %q totals", ErrAmountTooLarge, b.ID)
	}
	return nil
}

// Clone returns a deep copy, so a snapshot cannot be changed through the original.
func (b Basket) Clone() Basket {
	out := b
	if b.Items != nil {
		out.Items = make([]BasketItem, len(b.Items))
		for i, item := range b.Items {
			if item.SessionID != nil {
				id := *item.SessionID
				item.SessionID = &id
			}
			if item.DepositValue != nil {
				d := *item.DepositValue
				item.DepositValue = &d
			}
			out.Items[i] = item
		}
	}
	if b.Credits != nil {
		out.Credits = make([]CreditItem, len(b.Credits))
		for i, c := range b.Credits {
			if c.ExpiresAt != nil {
				t := *c.ExpiresAt
				c.ExpiresAt = &t
			}
			out.Credits[i] = c
		}
	}
	if b.Fees != nil {
		out.Fees = append([]FeeItem{}, b.Fees...)
	}
	if b.Discounts != nil {
		out.Discounts = append([]BasketDiscount{}, b.Discounts...)
	}
	return out
}
