package usecase

import (
	"sync"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

// CartMutation sets one line's quantity. Quantity <= 0 removes the line.
type CartMutation struct {
	ProductID string
	Quantity  int
}

// CartStore owns the checkout's cart snapshot. Stock remediation and
// direct shopper edits both go through Apply; there is no second write
// path.
type CartStore struct {
	mu    sync.Mutex
	lines []domain.CartLine
}

func NewCartStore(lines []domain.CartLine) *CartStore {
	s := &CartStore{lines: make([]domain.CartLine, len(lines))}
	copy(s.lines, lines)
	return s
}

// Apply runs all mutations atomically, in order. Unknown product IDs
// are ignored; the server re-validates at order creation anyway.
func (s *CartStore) Apply(muts ...CartMutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range muts {
		s.applyOne(m)
	}
}

func (s *CartStore) applyOne(m CartMutation) {
	for i := range s.lines {
		if s.lines[i].ProductID != m.ProductID {
			continue
		}
		if m.Quantity <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		} else {
			s.lines[i].Quantity = m.Quantity
		}
		return
	}
}

// Snapshot returns a copy; callers may hold it across upstream calls
// without observing later writes.
func (s *CartStore) Snapshot() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *CartStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

func (s *CartStore) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}
