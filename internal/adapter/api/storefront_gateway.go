package api

import (
	"context"
	"net/http"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
	"github.com/javieralejandro89/beztshop-checkout/internal/usecase"
)

// Caller is the request surface the gateway needs; satisfied by
// *SessionClient.
type Caller interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// StorefrontGateway speaks the backend's checkout endpoints through the
// session client. It never inspects or retries 401s itself.
type StorefrontGateway struct {
	c Caller
}

func NewStorefrontGateway(c Caller) *StorefrontGateway {
	return &StorefrontGateway{c: c}
}

func (g *StorefrontGateway) VerifyStock(ctx context.Context, items []domain.StockQuery) ([]domain.StockFinding, error) {
	req := struct {
		Items []domain.StockQuery `json:"items"`
	}{Items: items}
	var resp struct {
		Valid           bool                  `json:"valid"`
		OutOfStockItems []domain.StockFinding `json:"outOfStockItems"`
	}
	if err := g.c.Do(ctx, http.MethodPost, "/api/checkout/verify-stock", req, &resp); err != nil {
		return nil, err
	}
	return resp.OutOfStockItems, nil
}

func (g *StorefrontGateway) ValidateCoupon(ctx context.Context, code string, subtotalCents int64) (*domain.Coupon, error) {
	req := struct {
		Code          string `json:"code"`
		SubtotalCents int64  `json:"subtotalCents"`
	}{Code: code, SubtotalCents: subtotalCents}
	var resp struct {
		Valid  bool           `json:"valid"`
		Coupon *domain.Coupon `json:"coupon,omitempty"`
		Error  string         `json:"error,omitempty"`
	}
	if err := g.c.Do(ctx, http.MethodPost, "/api/coupons/validate", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid || resp.Coupon == nil {
		return nil, &domain.CouponError{Code: code, Reason: couponReason(resp.Error)}
	}
	return resp.Coupon, nil
}

func couponReason(s string) domain.InvalidCouponReason {
	switch domain.InvalidCouponReason(s) {
	case domain.CouponExpired, domain.CouponBelowMinimum,
		domain.CouponUsageLimitReached, domain.CouponInactive:
		return domain.InvalidCouponReason(s)
	}
	return domain.CouponNotFound
}

func (g *StorefrontGateway) QuoteTotal(ctx context.Context, items []domain.StockQuery, couponCode, shippingMethodID string) (int64, error) {
	req := struct {
		Items            []domain.StockQuery `json:"items"`
		CouponCode       string              `json:"couponCode,omitempty"`
		ShippingMethodID string              `json:"shippingMethodId,omitempty"`
	}{Items: items, CouponCode: couponCode, ShippingMethodID: shippingMethodID}
	var resp struct {
		TotalCents int64 `json:"totalCents"`
	}
	if err := g.c.Do(ctx, http.MethodPost, "/api/checkout/calculate-totals", req, &resp); err != nil {
		return 0, err
	}
	return resp.TotalCents, nil
}

func (g *StorefrontGateway) CreateOrder(ctx context.Context, req usecase.CreateOrderRequest) (usecase.CreateOrderResponse, error) {
	var resp struct {
		Order struct {
			ID          string `json:"id"`
			OrderNumber string `json:"orderNumber"`
			TotalCents  int64  `json:"totalCents"`
		} `json:"order"`
		RequiresPayment bool `json:"requiresPayment"`
	}
	if err := g.c.Do(ctx, http.MethodPost, "/api/orders", req, &resp); err != nil {
		return usecase.CreateOrderResponse{}, err
	}
	return usecase.CreateOrderResponse{
		OrderID:         resp.Order.ID,
		OrderNumber:     resp.Order.OrderNumber,
		TotalCents:      resp.Order.TotalCents,
		RequiresPayment: resp.RequiresPayment,
	}, nil
}

var _ usecase.StorefrontGateway = (*StorefrontGateway)(nil)
