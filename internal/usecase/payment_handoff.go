package usecase

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

var (
	ErrDuplicate     = errors.New("duplicate payment submission")
	ErrTotalMismatch = errors.New("server total does not match computed total")
)

// SubmitInput packages the finalized draft and totals for order creation.
type SubmitInput struct {
	SessionID      string
	UserID         string
	IdempotencyKey string
	Lines          []domain.CartLine
	Draft          domain.CheckoutDraft
	Totals         domain.OrderTotals
}

// PaymentHandoff creates the order upstream and hands the shopper to the
// payment collector. It guards against double submission with the
// idempotency store and refuses to charge an amount the server would
// not accept.
type PaymentHandoff struct {
	gw   StorefrontGateway
	idem IdempotencyStore
}

func NewPaymentHandoff(gw StorefrontGateway, idem IdempotencyStore) *PaymentHandoff {
	return &PaymentHandoff{gw: gw, idem: idem}
}

func (p *PaymentHandoff) Submit(ctx context.Context, in SubmitInput) (domain.PaymentOutcome, error) {
	// Fast path: a retried submit after a blip returns the order already cut.
	if orderID, ok, _ := p.idem.Recall(ctx, in.SessionID, in.IdempotencyKey); ok {
		return domain.PaymentOutcome{Success: true, OrderID: orderID}, nil
	}
	ok, err := p.idem.TryLock(ctx, in.SessionID, in.IdempotencyKey)
	if err != nil {
		return domain.PaymentOutcome{}, err
	}
	if !ok {
		return domain.PaymentOutcome{}, ErrDuplicate
	}

	items := make([]domain.StockQuery, 0, len(in.Lines))
	for _, l := range in.Lines {
		items = append(items, domain.StockQuery{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	couponCode := ""
	if in.Draft.Coupon != nil {
		couponCode = in.Draft.Coupon.Code
	}
	shippingID := ""
	if in.Draft.ShippingMethod != nil {
		shippingID = in.Draft.ShippingMethod.ID
	}

	// The charged amount must match what the server will accept.
	serverTotal, err := p.gw.QuoteTotal(ctx, items, couponCode, shippingID)
	if err != nil {
		p.release(ctx, in)
		return domain.PaymentOutcome{}, err
	}
	if serverTotal != in.Totals.TotalCents {
		p.release(ctx, in)
		return domain.PaymentOutcome{}, fmt.Errorf("%w: server=%d computed=%d", ErrTotalMismatch, serverTotal, in.Totals.TotalCents)
	}

	req := CreateOrderRequest{
		Items:         items,
		AddressID:     in.Draft.AddressID,
		Address:       in.Draft.NewAddress,
		ShippingID:    shippingID,
		CouponCode:    couponCode,
		CustomerNotes: in.Draft.CustomerNotes,
	}
	resp, err := p.gw.CreateOrder(ctx, req)
	if err != nil {
		p.release(ctx, in)
		return domain.PaymentOutcome{}, err
	}

	_ = p.idem.Remember(ctx, in.SessionID, in.IdempotencyKey, resp.OrderID)
	if resp.RequiresPayment {
		// The collector settles asynchronously; the order status event
		// closes the loop.
		return domain.PaymentOutcome{Pending: true, OrderID: resp.OrderID, OrderNumber: resp.OrderNumber}, nil
	}
	return domain.PaymentOutcome{Success: true, OrderID: resp.OrderID, OrderNumber: resp.OrderNumber}, nil
}

// ReleaseKey frees the submission lock so the shopper can retry after a
// failed or declined payment without waiting out the TTL.
func (p *PaymentHandoff) ReleaseKey(ctx context.Context, sessionID, key string) {
	_ = p.idem.Release(ctx, sessionID, key)
}

func (p *PaymentHandoff) release(ctx context.Context, in SubmitInput) {
	_ = p.idem.Release(ctx, in.SessionID, in.IdempotencyKey)
}
