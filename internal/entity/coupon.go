package domain

import "fmt"

type CouponKind string

const (
	CouponPercentage   CouponKind = "PERCENTAGE"
	CouponFixedAmount  CouponKind = "FIXED_AMOUNT"
	CouponFreeShipping CouponKind = "FREE_SHIPPING"
)

// Coupon is immutable once fetched for a given code. Eligibility is not:
// MinSubtotalCents can flip whenever the subtotal moves, so callers
// re-validate on every subtotal change instead of caching the verdict.
type Coupon struct {
	Code             string     `json:"code"`
	Kind             CouponKind `json:"kind"`
	Value            int64      `json:"value"` // percent for PERCENTAGE, cents for FIXED_AMOUNT
	MinSubtotalCents int64      `json:"minSubtotalCents,omitempty"`
	MaxDiscountCents int64      `json:"maxDiscountCents,omitempty"` // 0 = uncapped
	UsageLimit       int        `json:"usageLimit,omitempty"`
}

func (c Coupon) FreeShipping() bool { return c.Kind == CouponFreeShipping }

type InvalidCouponReason string

const (
	CouponNotFound          InvalidCouponReason = "NOT_FOUND"
	CouponExpired           InvalidCouponReason = "EXPIRED"
	CouponBelowMinimum      InvalidCouponReason = "BELOW_MINIMUM"
	CouponUsageLimitReached InvalidCouponReason = "USAGE_LIMIT_REACHED"
	CouponInactive          InvalidCouponReason = "INACTIVE"
)

// CouponError carries the rejection reason for a coupon code.
type CouponError struct {
	Code   string
	Reason InvalidCouponReason
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q rejected: %s", e.Code, e.Reason)
}
