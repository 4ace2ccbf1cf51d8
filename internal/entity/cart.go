package domain

import "errors"

var ErrInvalidQuantity = errors.New("invalid quantity")

type Money struct {
	Cents    int64
	Currency string
}

// CartLine is one product entry in the checkout's cart snapshot.
// Quantity is mutated only through the cart store, never in place.
type CartLine struct {
	ProductID   string
	ProductName string
	Variant     string
	UnitCents   int64
	Quantity    int
}

func (l CartLine) LineTotalCents() int64 {
	return l.UnitCents * int64(l.Quantity)
}

// StockQuery is the request shape for an inventory check.
type StockQuery struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// StockFinding reports one line whose available stock is below the
// requested quantity. Available == 0 means the line must be removed;
// 0 < Available < Requested means it must be clamped.
type StockFinding struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Requested   int    `json:"requestedQuantity"`
	Available   int    `json:"availableQuantity"`
}

func (f StockFinding) MustRemove() bool { return f.Available <= 0 }
