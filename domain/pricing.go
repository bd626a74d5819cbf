package domain

import "time"

const basisPointsDivisor = 10000

// CalculateTotals prices a basket. It is pure: the same basket and clock
// always produce the same totals. Every subtraction is clamped at zero.
func CalculateTotals(b Basket, now time.Time) Totals {
	var t Totals
	if len(b.Items) == 0 {
		return t
	}

	for _, item := range b.Items {
		t.SubTotal += item.Price
		t.DiscountValue += item.DiscountValue
		t.PromoCodeDiscountValue += item.PromoCodeDiscountValue
	}

	t.DiscountTotal = t.DiscountValue
	for _, d := range b.Discounts {
		t.DiscountTotal += d.Value
	}

	for _, f := range b.Fees {
		if f.Applies() {
			t.FeeTotal += f.Value
		}
	}

	running := t.SubTotal + t.FeeTotal
	running = clampZero(running - t.DiscountTotal)
	running = clampZero(running - t.PromoCodeDiscountValue)

	var credit Money
	for _, c := range b.Credits {
		if !c.IsExpired(now) {
			credit += c.Value
		}
	}
	if credit > running {
		credit = running
	}
	t.CreditTotal = credit
	running -= credit

	t.Tax = taxOn(running, b.TaxRateBasisPoints)
	t.Total = running + t.Tax

	var payLater Money
	for _, item := range b.Items {
		payLater += item.PayLaterValue()
	}
	if payLater > t.Total {
		payLater = t.Total
	}
	t.PayLater = payLater
	t.ChargeTotal = t.Total - payLater
	return t
}

// Recalculate refreshes the computed totals. It has to run after any change
// to items, discounts, credits or fees.
func (b *Basket) Recalculate(now time.Time) {
	b.Totals = CalculateTotals(*b, now)
}

// taxOn applies a basis point rate, rounding half up to the nearest minor
// unit. The whole and fractional parts are scaled separately so the product
// cannot overflow for any rate up to 100%.
func taxOn(taxable Money, bps int64) Money {
	if taxable <= 0 || bps <= 0 {
		return 0
	}
	t := int64(taxable)
	return Money(t/basisPointsDivisor*bps + (t%basisPointsDivisor*bps+basisPointsDivisor/2)/basisPointsDivisor)
}
