package usecase

import (
	"context"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

// CouponEvaluator validates codes against the backend and computes the
// discount a valid coupon yields for a given subtotal.
type CouponEvaluator struct {
	gw StorefrontGateway
}

func NewCouponEvaluator(gw StorefrontGateway) *CouponEvaluator {
	return &CouponEvaluator{gw: gw}
}

// Validate fetches and checks the coupon for the given subtotal.
// Rejections come back as *domain.CouponError. Eligibility is not
// cached: BELOW_MINIMUM can flip whenever the subtotal moves, so this
// runs again on every subtotal change.
func (e *CouponEvaluator) Validate(ctx context.Context, code string, subtotalCents int64) (*domain.Coupon, error) {
	c, err := e.gw.ValidateCoupon(ctx, code, subtotalCents)
	if err != nil {
		return nil, err
	}
	if c.MinSubtotalCents > 0 && subtotalCents < c.MinSubtotalCents {
		return nil, &domain.CouponError{Code: code, Reason: domain.CouponBelowMinimum}
	}
	return c, nil
}

// Discount computes the cents a coupon takes off the subtotal.
// Never exceeds the subtotal, never negative.
func (e *CouponEvaluator) Discount(c *domain.Coupon, subtotalCents int64) int64 {
	if c == nil || subtotalCents <= 0 {
		return 0
	}
	var d int64
	switch c.Kind {
	case domain.CouponPercentage:
		d = subtotalCents * c.Value / 100
		if c.MaxDiscountCents > 0 && d > c.MaxDiscountCents {
			d = c.MaxDiscountCents
		}
	case domain.CouponFixedAmount:
		d = c.Value
	case domain.CouponFreeShipping:
		return 0
	}
	if d > subtotalCents {
		d = subtotalCents
	}
	if d < 0 {
		d = 0
	}
	return d
}
