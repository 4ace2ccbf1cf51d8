package domain

// TaxMode selects how the catalog presents prices. It is a configuration
// input; the calculator never infers it from the data.
type TaxMode string

const (
	// TaxExclusive adds tax on top of (subtotal - discount).
	TaxExclusive TaxMode = "exclusive"
	// TaxInclusive reports the tax contained in the prices; it contributes
	// nothing to the total.
	TaxInclusive TaxMode = "inclusive"
)

// TotalsLine mirrors a cart line inside a totals snapshot, with its
// stock issue (if any) attached for display.
type TotalsLine struct {
	ProductID   string        `json:"productId"`
	ProductName string        `json:"productName"`
	UnitCents   int64         `json:"unitCents"`
	Quantity    int           `json:"quantity"`
	TotalCents  int64         `json:"totalCents"`
	StockIssue  *StockFinding `json:"stockIssue,omitempty"`
}

// OrderTotals is a derived snapshot. It is always replaced wholesale,
// never mutated, so every observer sees one consistent computation.
type OrderTotals struct {
	SubtotalCents int64        `json:"subtotalCents"`
	DiscountCents int64        `json:"discountCents"`
	ShippingCents int64        `json:"shippingCents"`
	TaxCents      int64        `json:"taxCents"`
	TaxIncluded   bool         `json:"taxIncluded"`
	TotalCents    int64        `json:"totalCents"`
	Currency      string       `json:"currency"`
	AppliedCoupon *Coupon      `json:"appliedCoupon,omitempty"`
	Lines         []TotalsLine `json:"lines"`
}
