package market

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Error kinds surfaced by the market. Every failure from a collaborator is
// wrapped into exactly one of these; callers match with errors.Is.
var (
	// ErrInvalidPrice rejects zero or negative listing prices.
	ErrInvalidPrice = errors.New("market: price must be positive")
	// ErrOrderNotFound covers unknown ids and orders already closed by a
	// cancel or a sale.
	ErrOrderNotFound = errors.New("market: order not found")
	// ErrNotOwner rejects mutation attempts by anyone but the seller.
	ErrNotOwner = errors.New("market: caller is not the order seller")
	// ErrAlreadyListed guards against a duplicate deposit for an asset that
	// already has an open order.
	ErrAlreadyListed = errors.New("market: asset already listed")
	// ErrInvalidPayload rejects deposit payloads that do not decode to a
	// nonzero big-endian price.
	ErrInvalidPayload = errors.New("market: invalid price payload")
	// ErrPaymentFailed wraps payment-token failures during settlement.
	ErrPaymentFailed = errors.New("market: payment failed")
	// ErrAssetTransferFailed wraps custody-release failures from the asset
	// registry.
	ErrAssetTransferFailed = errors.New("market: asset transfer failed")
)

// Order is a listed sale record binding an escrowed asset to a price and a
// seller. The order id equals the escrowed asset's id, which is what keeps
// "at most one open order per asset" enforceable by map-key uniqueness.
type Order struct {
	ID      uint64         `json:"id"`
	Seller  common.Address `json:"seller"`
	AssetID uint64         `json:"assetId"`
	Price   *big.Int       `json:"price"` // smallest payment-token units
}

// Clone returns a deep copy so callers can hold the result without racing
// the registry's stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}
