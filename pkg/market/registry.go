package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OrderRegistry is the mapping from order id to open order. Membership is
// the custody record: an id is present iff its asset is escrowed under an
// open order. An insertion-order index backs the listing queries.
//
// The registry itself is not locked; the owning Market serializes access.
type OrderRegistry struct {
	orders map[uint64]*Order
	// open ids in insertion order; relative order of still-open entries is
	// preserved across removals
	index []uint64
}

// NewOrderRegistry creates an empty registry.
func NewOrderRegistry() *OrderRegistry {
	return &OrderRegistry{
		orders: make(map[uint64]*Order),
	}
}

// Create opens an order for assetID at the given price. The order id is the
// asset id.
func (r *OrderRegistry) Create(seller common.Address, assetID uint64, price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	if _, exists := r.orders[assetID]; exists {
		return fmt.Errorf("%w: asset %d", ErrAlreadyListed, assetID)
	}

	r.orders[assetID] = &Order{
		ID:      assetID,
		Seller:  seller,
		AssetID: assetID,
		Price:   new(big.Int).Set(price),
	}
	r.index = append(r.index, assetID)
	return nil
}

// Cancel removes the order after checking existence and ownership. It
// returns the popped order (carrying the asset id for custody release) and
// its index position so a failed release can restore it in place.
func (r *OrderRegistry) Cancel(caller common.Address, id uint64) (*Order, int, error) {
	ord, ok := r.orders[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if ord.Seller != caller {
		return nil, 0, fmt.Errorf("%w: order %d belongs to %s", ErrNotOwner, id, ord.Seller.Hex())
	}

	pos := r.indexOf(id)
	r.deleteLocked(id)
	return ord, pos, nil
}

// Reprice mutates the order's price in place. Seller identity and asset
// binding are untouched.
func (r *OrderRegistry) Reprice(caller common.Address, id uint64, newPrice *big.Int) error {
	ord, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if ord.Seller != caller {
		return fmt.Errorf("%w: order %d belongs to %s", ErrNotOwner, id, ord.Seller.Hex())
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return ErrInvalidPrice
	}

	ord.Price = new(big.Int).Set(newPrice)
	return nil
}

// Remove atomically pops an order for settlement. It returns the order and
// its position in the insertion index so a failed settlement can restore it
// in place.
func (r *OrderRegistry) Remove(id uint64) (*Order, int, error) {
	ord, ok := r.orders[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}

	pos := r.indexOf(id)
	r.deleteLocked(id)
	return ord, pos, nil
}

// Restore re-inserts a popped order at its original index position. Used to
// roll back the settlement pop when the payment pull fails.
func (r *OrderRegistry) Restore(ord *Order, pos int) {
	if ord == nil {
		return
	}
	if _, exists := r.orders[ord.ID]; exists {
		return
	}

	r.orders[ord.ID] = ord
	if pos < 0 {
		pos = 0
	}
	if pos >= len(r.index) {
		r.index = append(r.index, ord.ID)
		return
	}
	r.index = append(r.index[:pos], append([]uint64{ord.ID}, r.index[pos:]...)...)
}

// Get returns a copy of the order, if open.
func (r *OrderRegistry) Get(id uint64) (*Order, bool) {
	ord, ok := r.orders[id]
	if !ok {
		return nil, false
	}
	return ord.Clone(), true
}

// IsListed reports whether id has an open order.
func (r *OrderRegistry) IsListed(id uint64) bool {
	_, ok := r.orders[id]
	return ok
}

// Count returns the number of open orders.
func (r *OrderRegistry) Count() int {
	return len(r.orders)
}

// ListAll returns copies of all open orders in insertion order.
func (r *OrderRegistry) ListAll() []*Order {
	out := make([]*Order, 0, len(r.index))
	for _, id := range r.index {
		if ord, ok := r.orders[id]; ok {
			out = append(out, ord.Clone())
		}
	}
	return out
}

// ListByOwner returns copies of the owner's open orders in insertion order.
func (r *OrderRegistry) ListByOwner(owner common.Address) []*Order {
	var out []*Order
	for _, id := range r.index {
		if ord, ok := r.orders[id]; ok && ord.Seller == owner {
			out = append(out, ord.Clone())
		}
	}
	return out
}

func (r *OrderRegistry) indexOf(id uint64) int {
	for i, v := range r.index {
		if v == id {
			return i
		}
	}
	return -1
}

func (r *OrderRegistry) deleteLocked(id uint64) {
	delete(r.orders, id)
	if pos := r.indexOf(id); pos >= 0 {
		r.index = append(r.index[:pos], r.index[pos+1:]...)
	}
}
