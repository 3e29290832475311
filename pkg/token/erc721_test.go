package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type recordingReceiver struct {
	got    []uint64
	reject error
}

func (r *recordingReceiver) OnAssetReceived(operator, from common.Address, assetID uint64, payload []byte) error {
	r.got = append(r.got, assetID)
	return r.reject
}

func TestERC721MintAndOwnership(t *testing.T) {
	nft := NewERC721("NFT Market Token", "NFTM")

	id0 := nft.Mint(alice)
	id1 := nft.Mint(alice)
	if id0 != 0 || id1 != 1 {
		t.Fatalf("ids = %d,%d, want 0,1", id0, id1)
	}
	if nft.BalanceOf(alice) != 2 {
		t.Errorf("alice balance = %d, want 2", nft.BalanceOf(alice))
	}

	owner, err := nft.OwnerOf(id0)
	if err != nil {
		t.Fatalf("ownerOf: %v", err)
	}
	if owner != alice {
		t.Errorf("owner = %s, want %s", owner.Hex(), alice.Hex())
	}

	if _, err := nft.OwnerOf(99); err == nil {
		t.Error("expected error for unknown asset, got nil")
	}
}

func TestERC721TransferAuthorization(t *testing.T) {
	nft := NewERC721("NFT Market Token", "NFTM")
	id := nft.Mint(alice)

	// Unauthorized operator
	if err := nft.Transfer(bob, alice, bob, id); err == nil {
		t.Error("expected error for unauthorized transfer, got nil")
	}

	// Per-asset approval
	if err := nft.Approve(alice, bob, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := nft.Transfer(bob, alice, bob, id); err != nil {
		t.Fatalf("approved transfer failed: %v", err)
	}
	owner, _ := nft.OwnerOf(id)
	if owner != bob {
		t.Errorf("owner = %s, want %s", owner.Hex(), bob.Hex())
	}

	// Approval cleared by transfer
	if err := nft.Transfer(alice, bob, alice, id); err == nil {
		t.Error("expected stale approval to be rejected, got nil")
	}
}

func TestERC721OperatorApproval(t *testing.T) {
	nft := NewERC721("NFT Market Token", "NFTM")
	id := nft.Mint(alice)

	nft.SetApprovalForAll(alice, carol, true)
	if !nft.IsApprovedForAll(alice, carol) {
		t.Fatal("operator approval not recorded")
	}
	if err := nft.Transfer(carol, alice, bob, id); err != nil {
		t.Fatalf("operator transfer failed: %v", err)
	}

	nft.SetApprovalForAll(alice, carol, false)
	if nft.IsApprovedForAll(alice, carol) {
		t.Error("operator approval not revoked")
	}
}

func TestERC721SafeTransferInvokesHook(t *testing.T) {
	nft := NewERC721("NFT Market Token", "NFTM")
	id := nft.Mint(alice)

	recv := &recordingReceiver{}
	nft.RegisterReceiver(bob, recv)

	if err := nft.SafeTransferFrom(alice, alice, bob, id, []byte{0x01}); err != nil {
		t.Fatalf("safe transfer failed: %v", err)
	}
	if len(recv.got) != 1 || recv.got[0] != id {
		t.Errorf("hook calls = %v, want [%d]", recv.got, id)
	}
	owner, _ := nft.OwnerOf(id)
	if owner != bob {
		t.Errorf("owner = %s, want %s", owner.Hex(), bob.Hex())
	}
}

func TestERC721SafeTransferHookRejection(t *testing.T) {
	nft := NewERC721("NFT Market Token", "NFTM")
	id := nft.Mint(alice)

	rejection := errors.New("not accepting deposits")
	nft.RegisterReceiver(bob, &recordingReceiver{reject: rejection})

	err := nft.SafeTransferFrom(alice, alice, bob, id, nil)
	if !errors.Is(err, rejection) {
		t.Fatalf("err = %v, want wrapped %v", err, rejection)
	}

	// Ownership rolled back
	owner, _ := nft.OwnerOf(id)
	if owner != alice {
		t.Errorf("owner = %s, want %s after rollback", owner.Hex(), alice.Hex())
	}
	if nft.BalanceOf(bob) != 0 {
		t.Errorf("bob balance = %d, want 0", nft.BalanceOf(bob))
	}
}
