package usecase

import (
	"context"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

// StockReconciler compares requested cart quantities against
// server-reported availability. Verify never mutates the cart;
// ApplyRemediation is the only write, and it goes through the cart
// store's single mutation entry point.
type StockReconciler struct {
	gw StorefrontGateway
}

func NewStockReconciler(gw StorefrontGateway) *StockReconciler {
	return &StockReconciler{gw: gw}
}

// Verify returns one finding per line whose available stock is below the
// requested quantity. A network failure means "stock unknown": the
// checkout proceeds optimistically and the caller surfaces the error
// for logging, since the server re-checks stock at order creation.
func (r *StockReconciler) Verify(ctx context.Context, lines []domain.CartLine) ([]domain.StockFinding, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	items := make([]domain.StockQuery, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.StockQuery{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	findings, err := r.gw.VerifyStock(ctx, items)
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// ApplyRemediation removes zero-stock lines and clamps the rest.
// Totals computed before this call are stale afterwards; callers must
// re-verify and recompute, never reuse them.
func (r *StockReconciler) ApplyRemediation(cart *CartStore, findings []domain.StockFinding) {
	muts := make([]CartMutation, 0, len(findings))
	for _, f := range findings {
		if f.MustRemove() {
			muts = append(muts, CartMutation{ProductID: f.ProductID, Quantity: 0})
		} else {
			muts = append(muts, CartMutation{ProductID: f.ProductID, Quantity: f.Available})
		}
	}
	cart.Apply(muts...)
}
