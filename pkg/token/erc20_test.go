package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.BytesToAddress([]byte{0xa1})
	bob   = common.BytesToAddress([]byte{0xb0})
	carol = common.BytesToAddress([]byte{0xc0})
)

func TestERC20Supply(t *testing.T) {
	supply := big.NewInt(1_000_000)
	usdt := NewERC20("chain USDT", "cUSDT", alice, supply)

	if usdt.TotalSupply().Cmp(supply) != 0 {
		t.Errorf("total supply = %s, want %s", usdt.TotalSupply(), supply)
	}
	if usdt.BalanceOf(alice).Cmp(supply) != 0 {
		t.Errorf("deployer balance = %s, want %s", usdt.BalanceOf(alice), supply)
	}
	if usdt.BalanceOf(bob).Sign() != 0 {
		t.Errorf("unknown account balance = %s, want 0", usdt.BalanceOf(bob))
	}
}

func TestERC20Transfer(t *testing.T) {
	usdt := NewERC20("chain USDT", "cUSDT", alice, big.NewInt(100))

	if err := usdt.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := usdt.BalanceOf(alice); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("alice balance = %s, want 60", got)
	}
	if got := usdt.BalanceOf(bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("bob balance = %s, want 40", got)
	}

	// Overdraw
	if err := usdt.Transfer(bob, carol, big.NewInt(41)); err == nil {
		t.Error("expected error for insufficient balance, got nil")
	}
}

func TestERC20TransferFrom(t *testing.T) {
	usdt := NewERC20("chain USDT", "cUSDT", alice, big.NewInt(100))

	// No allowance yet
	if err := usdt.TransferFrom(carol, alice, bob, big.NewInt(10)); err == nil {
		t.Error("expected error without allowance, got nil")
	}

	if err := usdt.Approve(alice, carol, big.NewInt(50)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if got := usdt.Allowance(alice, carol); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("allowance = %s, want 50", got)
	}

	if err := usdt.TransferFrom(carol, alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if got := usdt.BalanceOf(bob); got.Cmp(big.NewInt(30)) != 0 {
		t.Errorf("bob balance = %s, want 30", got)
	}
	if got := usdt.Allowance(alice, carol); got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("remaining allowance = %s, want 20", got)
	}

	// Exceed remaining allowance
	if err := usdt.TransferFrom(carol, alice, bob, big.NewInt(21)); err == nil {
		t.Error("expected error beyond allowance, got nil")
	}
}
