package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is an in-process fungible token ledger with ERC-20 semantics:
// balances, spender allowances and controlled transfers. All amounts are
// in the token's smallest unit (big.Int, 256-bit range).
//
// Caller identity is passed explicitly on every mutating call; nothing here
// infers who the caller is.
type ERC20 struct {
	mu sync.RWMutex

	name   string
	symbol string

	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	// owner -> spender -> remaining allowance
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewERC20 creates a token and mints the full initial supply to the deployer.
func NewERC20(name, symbol string, deployer common.Address, supply *big.Int) *ERC20 {
	t := &ERC20{
		name:        name,
		symbol:      symbol,
		totalSupply: big.NewInt(0),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
	if supply != nil && supply.Sign() > 0 {
		t.totalSupply = new(big.Int).Set(supply)
		t.balances[deployer] = new(big.Int).Set(supply)
	}
	return t
}

func (t *ERC20) Name() string   { return t.name }
func (t *ERC20) Symbol() string { return t.symbol }

// TotalSupply returns the fixed supply minted at deployment.
func (t *ERC20) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns the balance of addr (zero for unknown accounts).
func (t *ERC20) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bal, ok := t.balances[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// Transfer moves amount from the caller's balance to the recipient.
func (t *ERC20) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("erc20: invalid transfer amount")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(from, to, amount)
}

// Approve sets spender's allowance over the owner's balance, replacing any
// prior allowance.
func (t *ERC20) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("erc20: invalid approval amount")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		t.allowances[owner] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the remaining amount spender may move on behalf of owner.
func (t *ERC20) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if spenders, ok := t.allowances[owner]; ok {
		if a, ok := spenders[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return big.NewInt(0)
}

// TransferFrom moves amount from `from` to `to` using spender's allowance.
// Fails if the allowance or the payer balance is insufficient.
func (t *ERC20) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("erc20: invalid transfer amount")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := big.NewInt(0)
	if spenders, ok := t.allowances[from]; ok {
		if a, ok := spenders[spender]; ok {
			allowance = a
		}
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("erc20: allowance %s below transfer amount %s", allowance, amount)
	}

	if err := t.transferLocked(from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (t *ERC20) transferLocked(from, to common.Address, amount *big.Int) error {
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		have := big.NewInt(0)
		if ok {
			have = bal
		}
		return fmt.Errorf("erc20: insufficient balance: have %s, need %s", have, amount)
	}

	bal.Sub(bal, amount)
	dst, ok := t.balances[to]
	if !ok {
		dst = big.NewInt(0)
		t.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}
