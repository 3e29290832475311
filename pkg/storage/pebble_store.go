package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/parkgb/nftmarket/pkg/market"
)

// PebbleStore persists open orders so a restarted service can resume with
// its listings intact. Values are JSON, keys are "o:" + big-endian order id
// so iteration yields ids in ascending order.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens (or creates) the database at path.
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the underlying database.
func (s *PebbleStore) Close() error { return s.db.Close() }

func orderKey(id uint64) []byte {
	key := make([]byte, 2+8)
	copy(key, "o:")
	binary.BigEndian.PutUint64(key[2:], id)
	return key
}

func orderPrefix() []byte { return []byte("o:") }

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// SaveOrder writes (or overwrites) an open order.
func (s *PebbleStore) SaveOrder(ord *market.Order) error {
	if ord == nil {
		return fmt.Errorf("storage: nil order")
	}
	data, err := json.Marshal(ord)
	if err != nil {
		return fmt.Errorf("storage: marshal order %d: %w", ord.ID, err)
	}
	if err := s.db.Set(orderKey(ord.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save order %d: %w", ord.ID, err)
	}
	return nil
}

// DeleteOrder removes a closed order. Deleting an absent key is a no-op.
func (s *PebbleStore) DeleteOrder(id uint64) error {
	if err := s.db.Delete(orderKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("storage: delete order %d: %w", id, err)
	}
	return nil
}

// LoadOpenOrders returns every persisted order in ascending id order.
// Entries that fail to decode are skipped.
func (s *PebbleStore) LoadOpenOrders() ([]*market.Order, error) {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: iterate orders: %w", err)
	}
	defer iter.Close()

	var orders []*market.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var ord market.Order
		if err := json.Unmarshal(iter.Value(), &ord); err != nil {
			continue
		}
		orders = append(orders, &ord)
	}
	return orders, nil
}

var _ market.OrderStore = (*PebbleStore)(nil)
