package usecase

import (
	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

// CheckoutPolicy carries the pricing knobs that are configuration, not
// data: tax presentation mode, tax rate, and shipping policy.
type CheckoutPolicy struct {
	Currency                   string
	TaxMode                    domain.TaxMode
	TaxRateBps                 int64 // basis points, 800 = 8%
	FreeShippingThresholdCents int64
	DefaultShippingCents       int64
}

// TotalsCalculator is the single source of truth for the chargeable
// amount. No other code path derives a total.
type TotalsCalculator struct {
	policy CheckoutPolicy
	eval   *CouponEvaluator
}

func NewTotalsCalculator(policy CheckoutPolicy, eval *CouponEvaluator) *TotalsCalculator {
	return &TotalsCalculator{policy: policy, eval: eval}
}

// Compute builds a fresh totals snapshot: subtotal, coupon discount,
// shipping, tax, total, in that order. Pure; identical inputs yield an
// identical snapshot. Findings, if given, are attached to their lines
// for display only and do not change the arithmetic.
func (t *TotalsCalculator) Compute(lines []domain.CartLine, coupon *domain.Coupon, method *domain.ShippingMethod, findings []domain.StockFinding) domain.OrderTotals {
	byProduct := make(map[string]*domain.StockFinding, len(findings))
	for i := range findings {
		byProduct[findings[i].ProductID] = &findings[i]
	}

	out := domain.OrderTotals{
		Currency:      t.policy.Currency,
		AppliedCoupon: coupon,
		Lines:         make([]domain.TotalsLine, 0, len(lines)),
	}
	for _, l := range lines {
		out.SubtotalCents += l.LineTotalCents()
		out.Lines = append(out.Lines, domain.TotalsLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitCents:   l.UnitCents,
			Quantity:    l.Quantity,
			TotalCents:  l.LineTotalCents(),
			StockIssue:  byProduct[l.ProductID],
		})
	}

	out.DiscountCents = t.eval.Discount(coupon, out.SubtotalCents)
	out.ShippingCents = t.shipping(out.SubtotalCents, coupon, method)

	taxable := out.SubtotalCents - out.DiscountCents
	switch t.policy.TaxMode {
	case domain.TaxInclusive:
		// Prices already contain tax; report the contained amount for
		// display, contribute nothing to the total.
		out.TaxIncluded = true
		out.TaxCents = taxable * t.policy.TaxRateBps / (10000 + t.policy.TaxRateBps)
		out.TotalCents = taxable + out.ShippingCents
	default:
		out.TaxCents = taxable * t.policy.TaxRateBps / 10000
		out.TotalCents = taxable + out.ShippingCents + out.TaxCents
	}
	return out
}

func (t *TotalsCalculator) shipping(subtotalCents int64, coupon *domain.Coupon, method *domain.ShippingMethod) int64 {
	if subtotalCents >= t.policy.FreeShippingThresholdCents && t.policy.FreeShippingThresholdCents > 0 {
		return 0
	}
	if coupon != nil && coupon.FreeShipping() {
		return 0
	}
	if method != nil {
		return method.FlatCents
	}
	return t.policy.DefaultShippingCents
}
