package usecase

import (
	"context"
	"sync"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

// fakeGateway lets each test plug in just the behavior it needs.
type fakeGateway struct {
	verifyFn   func(items []domain.StockQuery) ([]domain.StockFinding, error)
	validateFn func(code string, subtotalCents int64) (*domain.Coupon, error)
	quoteFn    func(items []domain.StockQuery, couponCode, shippingMethodID string) (int64, error)
	createFn   func(req CreateOrderRequest) (CreateOrderResponse, error)

	mu            sync.Mutex
	lastCreate    *CreateOrderRequest
	lastQuoteShip string
}

func (g *fakeGateway) VerifyStock(_ context.Context, items []domain.StockQuery) ([]domain.StockFinding, error) {
	if g.verifyFn == nil {
		return nil, nil
	}
	return g.verifyFn(items)
}

func (g *fakeGateway) ValidateCoupon(_ context.Context, code string, subtotalCents int64) (*domain.Coupon, error) {
	if g.validateFn == nil {
		return nil, &domain.CouponError{Code: code, Reason: domain.CouponNotFound}
	}
	return g.validateFn(code, subtotalCents)
}

func (g *fakeGateway) QuoteTotal(_ context.Context, items []domain.StockQuery, couponCode, shippingMethodID string) (int64, error) {
	g.mu.Lock()
	g.lastQuoteShip = shippingMethodID
	g.mu.Unlock()
	if g.quoteFn == nil {
		return 0, nil
	}
	return g.quoteFn(items, couponCode, shippingMethodID)
}

func (g *fakeGateway) CreateOrder(_ context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	g.mu.Lock()
	g.lastCreate = &req
	g.mu.Unlock()
	if g.createFn == nil {
		return CreateOrderResponse{OrderID: "order-1", OrderNumber: "BZ-1"}, nil
	}
	return g.createFn(req)
}

// stockGateway builds a verifyFn from an availability table; products
// missing from the table have unlimited stock.
func stockGateway(avail map[string]int) func(items []domain.StockQuery) ([]domain.StockFinding, error) {
	return func(items []domain.StockQuery) ([]domain.StockFinding, error) {
		var out []domain.StockFinding
		for _, it := range items {
			if a, ok := avail[it.ProductID]; ok && a < it.Quantity {
				out = append(out, domain.StockFinding{
					ProductID: it.ProductID,
					Requested: it.Quantity,
					Available: a,
				})
			}
		}
		return out, nil
	}
}

// serverQuote recomputes the total the way the backend would for the
// test catalog: line prices plus the chosen method's flat rate.
func serverQuote(items []domain.StockQuery, shippingMethodID string) int64 {
	prices := map[string]int64{"p1": 2000, "p2": 1000}
	var sum int64
	for _, it := range items {
		sum += prices[it.ProductID] * int64(it.Quantity)
	}
	if shippingMethodID != "" {
		sum += 1500
	}
	return sum
}

type fakeIdem struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{locks: map[string]bool{}, values: map[string]string{}}
}

func (f *fakeIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[scope+":"+key] {
		return false, nil
	}
	f.locks[scope+":"+key] = true
	return true, nil
}

func (f *fakeIdem) Release(_ context.Context, scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, scope+":"+key)
	return nil
}

func (f *fakeIdem) Remember(_ context.Context, scope, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[scope+":"+key] = value
	return nil
}

func (f *fakeIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[scope+":"+key]
	return v, ok, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []CheckoutCompletedMsg
}

func (f *fakePublisher) PublishCompleted(_ context.Context, msg CheckoutCompletedMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) published() []CheckoutCompletedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CheckoutCompletedMsg(nil), f.msgs...)
}

var testPolicy = CheckoutPolicy{
	Currency:                   "USD",
	TaxMode:                    domain.TaxExclusive,
	TaxRateBps:                 0,
	FreeShippingThresholdCents: 10000,
	DefaultShippingCents:       1500,
}

func newTestEngine(g *fakeGateway) (*Engine, *fakePublisher, *fakeIdem) {
	pub := &fakePublisher{}
	idem := newFakeIdem()
	coupons := NewCouponEvaluator(g)
	engine := NewEngine(
		NewStockReconciler(g),
		coupons,
		NewTotalsCalculator(testPolicy, coupons),
		NewPaymentHandoff(g, idem),
		pub,
		testPolicy,
		0,
	)
	return engine, pub, idem
}

func twoLines() []domain.CartLine {
	return []domain.CartLine{
		{ProductID: "p1", ProductName: "Keyboard", UnitCents: 2000, Quantity: 2},
		{ProductID: "p2", ProductName: "Mouse", UnitCents: 1000, Quantity: 4},
	}
}
