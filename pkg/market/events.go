package market

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind discriminates market notifications.
type EventKind string

const (
	EventNewOrder    EventKind = "NewOrder"
	EventCancelOrder EventKind = "CancelOrder"
	EventChangePrice EventKind = "ChangePrice"
	EventDeal        EventKind = "Deal"
)

// Event is a structured notification of a completed state transition.
// Exactly one event is emitted per successful create/cancel/reprice/buy,
// after the transition is final, never speculatively.
type Event struct {
	Kind      EventKind      `json:"kind"`
	ID        uint64         `json:"id"`
	Seller    common.Address `json:"seller,omitempty"`
	Buyer     common.Address `json:"buyer,omitempty"`
	Price     *big.Int       `json:"price,omitempty"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
}

func newOrderEvent(seller common.Address, assetID uint64, price *big.Int, ts int64) Event {
	return Event{Kind: EventNewOrder, ID: assetID, Seller: seller, Price: new(big.Int).Set(price), Timestamp: ts}
}

func cancelOrderEvent(id uint64, ts int64) Event {
	return Event{Kind: EventCancelOrder, ID: id, Timestamp: ts}
}

func changePriceEvent(id uint64, newPrice *big.Int, ts int64) Event {
	return Event{Kind: EventChangePrice, ID: id, Price: new(big.Int).Set(newPrice), Timestamp: ts}
}

func dealEvent(id uint64, buyer, seller common.Address, price *big.Int, ts int64) Event {
	return Event{Kind: EventDeal, ID: id, Buyer: buyer, Seller: seller, Price: new(big.Int).Set(price), Timestamp: ts}
}

// EventLog fans events out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full misses the event rather than blocking a
// market operation.
type EventLog struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewEventLog creates an event log with no subscribers.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Subscribe returns a buffered channel receiving all subsequent events.
func (l *EventLog) Subscribe() <-chan Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, 64)
	l.subs = append(l.subs, ch)
	return ch
}

// Emit delivers the event to every subscriber without blocking.
func (l *EventLog) Emit(evt Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, ch := range l.subs {
		select {
		case ch <- evt:
		default:
			// Subscriber too slow, drop.
		}
	}
}
