package market

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func unixMilliNow() int64 { return time.Now().UnixMilli() }

// PaymentToken is the fungible-token collaborator used to settle purchases.
// TransferFrom pulls pre-authorized funds; Transfer is the direct ledger
// move used only to unwind a settlement whose custody release failed.
type PaymentToken interface {
	BalanceOf(addr common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// AssetRegistry is the unique-asset collaborator holding ownership records.
// SafeTransferFrom may invoke a receipt hook on the recipient, which means
// it can transfer control to external code.
type AssetRegistry interface {
	OwnerOf(assetID uint64) (common.Address, error)
	SafeTransferFrom(operator, from, to common.Address, assetID uint64, payload []byte) error
}

// OrderStore persists open orders for warm restarts. The in-memory registry
// stays authoritative; persistence failures are logged, not surfaced.
type OrderStore interface {
	SaveOrder(ord *Order) error
	DeleteOrder(id uint64) error
}

// Config wires a Market to its collaborators.
type Config struct {
	// Address is the market's own principal: the custody holder of every
	// escrowed asset and the payment spender during settlement.
	Address  common.Address
	Payments PaymentToken
	Assets   AssetRegistry
	// Store is optional; nil disables persistence.
	Store  OrderStore
	Logger *zap.SugaredLogger
	// Now supplies event timestamps in Unix milliseconds. Defaults to the
	// wall clock.
	Now func() int64
}

// Market is the order registry and settlement engine. Deposits arrive
// through the asset collaborator's receipt hook; sellers cancel or reprice
// their listings; buyers exchange payment tokens for custody release.
//
// Every public operation runs as a single serialized unit: mu guards all
// registry and payment mutation, and the asset-release call-out only
// happens after that state is final. The
// release may re-enter the market through a recipient hook; by then the
// order is already gone, so nested operations on the same id fail with
// ErrOrderNotFound.
type Market struct {
	addr     common.Address
	payments PaymentToken
	assets   AssetRegistry
	store    OrderStore
	log      *zap.SugaredLogger
	now      func() int64

	mu       sync.Mutex
	registry *OrderRegistry
	events   *EventLog
}

// New creates a market. Payments and Assets are required.
func New(cfg Config) (*Market, error) {
	if cfg.Payments == nil {
		return nil, fmt.Errorf("market: payment token not configured")
	}
	if cfg.Assets == nil {
		return nil, fmt.Errorf("market: asset registry not configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	now := cfg.Now
	if now == nil {
		now = unixMilliNow
	}

	return &Market{
		addr:     cfg.Address,
		payments: cfg.Payments,
		assets:   cfg.Assets,
		store:    cfg.Store,
		log:      logger,
		now:      now,
		registry: NewOrderRegistry(),
		events:   NewEventLog(),
	}, nil
}

// Address returns the market's custody principal.
func (m *Market) Address() common.Address { return m.addr }

// Events exposes the market's event log for subscribers.
func (m *Market) Events() *EventLog { return m.events }

// OnAssetReceived is the deposit hook. The asset collaborator invokes it
// during a safe transfer to the market address, after custody has moved,
// with the sale price encoded in the payload as a big-endian unsigned
// integer. Returning an error makes the collaborator revert the transfer,
// so a rejected deposit leaves no state behind.
func (m *Market) OnAssetReceived(operator, from common.Address, assetID uint64, payload []byte) error {
	price, err := decodePrice(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.registry.Create(from, assetID, price); err != nil {
		m.mu.Unlock()
		return err
	}
	m.persist(assetID)
	m.mu.Unlock()

	m.log.Infow("order_created", "id", assetID, "seller", from.Hex(), "price", price.String())
	m.events.Emit(newOrderEvent(from, assetID, price, m.now()))
	return nil
}

// CancelOrder closes the caller's order and returns the asset to them.
// Fails with ErrOrderNotFound or ErrNotOwner. The registry entry is removed
// before the custody release call-out; if the release is rejected the order
// is restored and ErrAssetTransferFailed returned, leaving state as before.
func (m *Market) CancelOrder(caller common.Address, id uint64) error {
	m.mu.Lock()
	ord, pos, err := m.registry.Cancel(caller, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.unpersist(id)
	m.mu.Unlock()

	if err := m.release(caller, ord.AssetID); err != nil {
		m.mu.Lock()
		m.registry.Restore(ord, pos)
		m.persist(id)
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}

	m.log.Infow("order_cancelled", "id", id, "seller", caller.Hex())
	m.events.Emit(cancelOrderEvent(id, m.now()))
	return nil
}

// ChangePrice sets a new positive price on the caller's order. Seller and
// asset binding are unchanged.
func (m *Market) ChangePrice(caller common.Address, id uint64, newPrice *big.Int) error {
	m.mu.Lock()
	if err := m.registry.Reprice(caller, id, newPrice); err != nil {
		m.mu.Unlock()
		return err
	}
	m.persist(id)
	m.mu.Unlock()

	m.log.Infow("order_repriced", "id", id, "price", newPrice.String())
	m.events.Emit(changePriceEvent(id, newPrice, m.now()))
	return nil
}

// Buy settles the order: pulls the price from the buyer to the seller, then
// releases custody of the asset to the buyer. The order is popped before
// any external call so concurrent and re-entrant callers see it gone; on
// payment failure the pop is rolled back and ErrPaymentFailed returned. A
// seller may buy their own listing.
func (m *Market) Buy(buyer common.Address, id uint64) error {
	m.mu.Lock()
	ord, pos, err := m.registry.Remove(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	// Pull payment while the pop is still private to this operation, so
	// pop + payment form one atomic unit.
	if err := m.payments.TransferFrom(m.addr, buyer, ord.Seller, ord.Price); err != nil {
		m.registry.Restore(ord, pos)
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	m.unpersist(id)
	m.mu.Unlock()

	// Interactions last: custody release may run attacker-controlled code.
	if err := m.release(buyer, ord.AssetID); err != nil {
		m.mu.Lock()
		if rbErr := m.payments.Transfer(ord.Seller, buyer, ord.Price); rbErr != nil {
			m.log.Errorw("payment_rollback_failed", "id", id, "err", rbErr)
		}
		m.registry.Restore(ord, pos)
		m.persist(id)
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}

	m.log.Infow("deal",
		"id", id,
		"buyer", buyer.Hex(),
		"seller", ord.Seller.Hex(),
		"price", ord.Price.String())
	m.events.Emit(dealEvent(id, buyer, ord.Seller, ord.Price, m.now()))
	return nil
}

// IsListed reports whether id has an open order.
func (m *Market) IsListed(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.IsListed(id)
}

// OrderCount returns the number of open orders.
func (m *Market) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Count()
}

// GetOrder returns a copy of an open order.
func (m *Market) GetOrder(id uint64) (*Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Get(id)
}

// AllOrders returns all open orders in insertion order.
func (m *Market) AllOrders() []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.ListAll()
}

// OrdersOf returns the owner's open orders in insertion order.
func (m *Market) OrdersOf(owner common.Address) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.ListByOwner(owner)
}

// Preload seeds the registry from persisted orders at startup. No events
// are emitted; the orders were announced when first created.
func (m *Market) Preload(orders []*Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ord := range orders {
		if ord == nil || m.registry.IsListed(ord.ID) {
			continue
		}
		m.registry.Restore(ord.Clone(), m.registry.Count())
	}
}

// release transfers custody of the asset out of the market. This is the
// re-entrancy boundary: the recipient's receipt hook, if any, runs inside
// this call.
func (m *Market) release(to common.Address, assetID uint64) error {
	return m.assets.SafeTransferFrom(m.addr, m.addr, to, assetID, nil)
}

func (m *Market) persist(id uint64) {
	if m.store == nil {
		return
	}
	if ord, ok := m.registry.Get(id); ok {
		if err := m.store.SaveOrder(ord); err != nil {
			m.log.Warnw("order_persist_failed", "id", id, "err", err)
		}
	}
}

func (m *Market) unpersist(id uint64) {
	if m.store == nil {
		return
	}
	if err := m.store.DeleteOrder(id); err != nil {
		m.log.Warnw("order_delete_failed", "id", id, "err", err)
	}
}

// decodePrice parses a big-endian unsigned integer from the deposit
// payload. Empty or zero payloads are rejected.
func decodePrice(payload []byte) (*big.Int, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	price := new(big.Int).SetBytes(payload)
	if price.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero price", ErrInvalidPayload)
	}
	return price, nil
}
