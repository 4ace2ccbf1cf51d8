package usecase

import (
	"context"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

// CreateOrderRequest is what the storefront backend needs to cut an order.
type CreateOrderRequest struct {
	Items         []domain.StockQuery `json:"items"`
	AddressID     string              `json:"shippingAddressId,omitempty"`
	Address       *domain.Address     `json:"shippingAddress,omitempty"`
	ShippingID    string              `json:"shippingMethodId,omitempty"`
	CouponCode    string              `json:"couponCode,omitempty"`
	CustomerNotes string              `json:"customerNotes,omitempty"`
}

type CreateOrderResponse struct {
	OrderID         string
	OrderNumber     string
	TotalCents      int64
	RequiresPayment bool
}

// StorefrontGateway is the backend contract consumed over the session
// client. Implementations never retry expired-credential errors here;
// that is the session client's job.
type StorefrontGateway interface {
	// VerifyStock returns one finding per item whose available stock is
	// below the requested quantity (including zero).
	VerifyStock(ctx context.Context, items []domain.StockQuery) ([]domain.StockFinding, error)
	// ValidateCoupon returns the coupon or a *domain.CouponError.
	ValidateCoupon(ctx context.Context, code string, subtotalCents int64) (*domain.Coupon, error)
	// QuoteTotal returns the server's total for the given items, coupon
	// and shipping method, used as a cross-check before order creation.
	// The method ID is required input: the server cannot reproduce a
	// shipping cost it was never told about.
	QuoteTotal(ctx context.Context, items []domain.StockQuery, couponCode, shippingMethodID string) (int64, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type EventPublisher interface {
	PublishCompleted(ctx context.Context, msg CheckoutCompletedMsg) error
}
