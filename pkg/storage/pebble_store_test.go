package storage

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parkgb/nftmarket/pkg/market"
)

func openTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	store, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPebbleStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seller := common.BytesToAddress([]byte{0x5a})

	// Write out of id order; loading must come back ascending.
	orders := []*market.Order{
		{ID: 7, Seller: seller, AssetID: 7, Price: big.NewInt(700)},
		{ID: 1, Seller: seller, AssetID: 1, Price: big.NewInt(100)},
		{ID: 3, Seller: seller, AssetID: 3, Price: big.NewInt(300)},
	}
	for _, ord := range orders {
		if err := store.SaveOrder(ord); err != nil {
			t.Fatalf("save order %d: %v", ord.ID, err)
		}
	}

	loaded, err := store.LoadOpenOrders()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d orders, want 3", len(loaded))
	}
	wantIDs := []uint64{1, 3, 7}
	for i, ord := range loaded {
		if ord.ID != wantIDs[i] {
			t.Errorf("loaded[%d].ID = %d, want %d", i, ord.ID, wantIDs[i])
		}
		if ord.Seller != seller {
			t.Errorf("loaded[%d].Seller = %s, want %s", i, ord.Seller.Hex(), seller.Hex())
		}
	}
	if loaded[0].Price.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("loaded[0].Price = %s, want 100", loaded[0].Price)
	}
}

func TestPebbleStoreOverwrite(t *testing.T) {
	store := openTestStore(t)
	seller := common.BytesToAddress([]byte{0x5a})

	ord := &market.Order{ID: 2, Seller: seller, AssetID: 2, Price: big.NewInt(10)}
	if err := store.SaveOrder(ord); err != nil {
		t.Fatalf("save: %v", err)
	}
	ord.Price = big.NewInt(20)
	if err := store.SaveOrder(ord); err != nil {
		t.Fatalf("resave: %v", err)
	}

	loaded, err := store.LoadOpenOrders()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d orders, want 1", len(loaded))
	}
	if loaded[0].Price.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("price = %s, want 20", loaded[0].Price)
	}
}

func TestPebbleStoreDelete(t *testing.T) {
	store := openTestStore(t)
	seller := common.BytesToAddress([]byte{0x5a})

	for id := uint64(0); id < 2; id++ {
		ord := &market.Order{ID: id, Seller: seller, AssetID: id, Price: big.NewInt(int64(id + 1))}
		if err := store.SaveOrder(ord); err != nil {
			t.Fatalf("save order %d: %v", id, err)
		}
	}

	if err := store.DeleteOrder(0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting an absent key is fine.
	if err := store.DeleteOrder(99); err != nil {
		t.Fatalf("delete absent: %v", err)
	}

	loaded, err := store.LoadOpenOrders()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != 1 {
		t.Fatalf("loaded = %+v, want only order 1", loaded)
	}

	if err := store.SaveOrder(nil); err == nil {
		t.Error("expected error saving nil order, got nil")
	}
}
