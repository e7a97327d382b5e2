package dex

import (
	"encoding/json"
	"fmt"
)

// Book holds every live order, partitioned by ICO id. Orders within an ICO
// keep insertion order (oldest first). A global id index enforces order-id
// uniqueness across all markets, not just within one bucket.
//
// Book itself is not goroutine-safe; the Gateway serializes access.
type Book struct {
	markets map[string][]*Order
	index   map[string]string // order id -> ico id
}

func NewBook() *Book {
	return &Book{
		markets: make(map[string][]*Order),
		index:   make(map[string]string),
	}
}

// Insert appends the order to its ICO bucket. The id must be unused
// anywhere in the book.
func (b *Book) Insert(o *Order) error {
	if _, ok := b.index[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, o.ID)
	}
	b.markets[o.IcoID] = append(b.markets[o.IcoID], o)
	b.index[o.ID] = o.IcoID
	return nil
}

// Get returns a copy of the order, so callers can hold it outside the
// gateway's critical section without observing later mutations.
func (b *Book) Get(icoID, orderID string) (Order, error) {
	for _, o := range b.markets[icoID] {
		if o.ID == orderID {
			return *o, nil
		}
	}
	return Order{}, fmt.Errorf("%w: %s in ico %s", ErrNotFound, orderID, icoID)
}

// Remove deletes the order after checking ownership and returns it.
func (b *Book) Remove(icoID, orderID, owner string) (Order, error) {
	orders := b.markets[icoID]
	for i, o := range orders {
		if o.ID != orderID {
			continue
		}
		if o.Owner != owner {
			return Order{}, fmt.Errorf("%w: order %s belongs to %s", ErrNotOwner, orderID, o.Owner)
		}
		removed := *o
		b.markets[icoID] = append(orders[:i], orders[i+1:]...)
		if len(b.markets[icoID]) == 0 {
			delete(b.markets, icoID)
		}
		delete(b.index, orderID)
		return removed, nil
	}
	return Order{}, fmt.Errorf("%w: %s in ico %s", ErrNotFound, orderID, icoID)
}

// Reduce subtracts delta from the order's amount, deleting the order when
// it reaches zero. Returns the post-state (amount 0 means fully filled and
// removed).
func (b *Book) Reduce(icoID, orderID string, delta int64) (Order, error) {
	orders := b.markets[icoID]
	for i, o := range orders {
		if o.ID != orderID {
			continue
		}
		if delta > o.Amount {
			return Order{}, fmt.Errorf("%w: have %d, want %d", ErrInsufficientAmount, o.Amount, delta)
		}
		o.Amount -= delta
		post := *o
		if o.Amount == 0 {
			b.markets[icoID] = append(orders[:i], orders[i+1:]...)
			if len(b.markets[icoID]) == 0 {
				delete(b.markets, icoID)
			}
			delete(b.index, orderID)
		}
		return post, nil
	}
	return Order{}, fmt.Errorf("%w: %s in ico %s", ErrNotFound, orderID, icoID)
}

// List returns up to limit orders for the ICO in insertion order. An
// unknown ICO or non-positive limit yields an empty slice, never an error.
func (b *Book) List(icoID string, limit int) []Order {
	orders := b.markets[icoID]
	if limit <= 0 || len(orders) == 0 {
		return []Order{}
	}
	if limit > len(orders) {
		limit = len(orders)
	}
	out := make([]Order, limit)
	for i := 0; i < limit; i++ {
		out[i] = *orders[i]
	}
	return out
}

// TotalAmount sums the remaining amount across all live orders for an ICO.
func (b *Book) TotalAmount(icoID string) int64 {
	var total int64
	for _, o := range b.markets[icoID] {
		total += o.Amount
	}
	return total
}

// Len returns the number of live orders across all ICOs.
func (b *Book) Len() int { return len(b.index) }

// MarshalJSON serializes the book as {ico_id: [order, ...]}, the on-disk
// layout.
func (b *Book) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.markets)
}

// UnmarshalJSON rebuilds the book from the on-disk layout, restoring the id
// index and rejecting state that violates book invariants (duplicate ids,
// non-positive amounts or prices, bucket/order ico mismatch).
func (b *Book) UnmarshalJSON(data []byte) error {
	var markets map[string][]*Order
	if err := json.Unmarshal(data, &markets); err != nil {
		return err
	}
	b.markets = make(map[string][]*Order, len(markets))
	b.index = make(map[string]string)
	for icoID, orders := range markets {
		if len(orders) == 0 {
			continue
		}
		for _, o := range orders {
			if o.ID == "" {
				return fmt.Errorf("order without id in ico %s", icoID)
			}
			if o.IcoID == "" {
				o.IcoID = icoID
			}
			if o.IcoID != icoID {
				return fmt.Errorf("order %s filed under ico %s but labeled %s", o.ID, icoID, o.IcoID)
			}
			if o.Amount <= 0 || o.Price <= 0 {
				return fmt.Errorf("order %s has invalid amount=%d price=%v", o.ID, o.Amount, o.Price)
			}
			if _, ok := b.index[o.ID]; ok {
				return fmt.Errorf("duplicate order id %s", o.ID)
			}
			b.index[o.ID] = icoID
		}
		b.markets[icoID] = orders
	}
	return nil
}
