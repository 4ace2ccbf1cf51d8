package usecase

import (
	"sync"
	"testing"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

func TestCartSnapshotIsolation(t *testing.T) {
	cart := NewCartStore([]domain.CartLine{{ProductID: "p1", UnitCents: 1000, Quantity: 2}})
	snap := cart.Snapshot()

	cart.Apply(CartMutation{ProductID: "p1", Quantity: 9})

	if snap[0].Quantity != 2 {
		t.Fatalf("snapshot observed a later write: %+v", snap)
	}
	if got := cart.Snapshot()[0].Quantity; got != 9 {
		t.Fatalf("expected quantity 9; got %d", got)
	}
}

func TestCartZeroQuantityRemoves(t *testing.T) {
	cart := NewCartStore(twoLines())
	cart.Apply(CartMutation{ProductID: "p1", Quantity: 0})

	lines := cart.Snapshot()
	if len(lines) != 1 || lines[0].ProductID != "p2" {
		t.Fatalf("expected p1 removed; got %+v", lines)
	}
}

func TestCartUnknownProductIgnored(t *testing.T) {
	cart := NewCartStore(twoLines())
	cart.Apply(CartMutation{ProductID: "nope", Quantity: 7})
	if len(cart.Snapshot()) != 2 {
		t.Fatal("unknown product mutation changed the cart")
	}
}

func TestCartConcurrentWritesSerialize(t *testing.T) {
	cart := NewCartStore([]domain.CartLine{{ProductID: "p1", UnitCents: 1000, Quantity: 1}})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			cart.Apply(CartMutation{ProductID: "p1", Quantity: q})
		}(i)
	}
	wg.Wait()

	got := cart.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one line; got %+v", got)
	}
	// last writer wins; any of the written quantities is acceptable,
	// a torn value is not
	if got[0].Quantity < 1 || got[0].Quantity > 50 {
		t.Fatalf("torn quantity %d", got[0].Quantity)
	}
}
