package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// AssetReceiver is the receipt hook invoked when an asset is transferred to
// a registered recipient via SafeTransferFrom. Returning an error rejects
// the transfer; ownership is rolled back before SafeTransferFrom returns.
//
// The hook runs outside the registry lock and may call back into the
// registry (or into whoever registered it). Recipients must be written with
// that re-entrancy in mind.
type AssetReceiver interface {
	OnAssetReceived(operator, from common.Address, assetID uint64, payload []byte) error
}

// ERC721 is an in-process unique-asset registry with ERC-721 semantics:
// per-asset ownership, per-asset approvals, operator approvals, and a
// safe-transfer path that notifies registered receivers.
type ERC721 struct {
	mu sync.Mutex

	name   string
	symbol string

	nextID   uint64
	owners   map[uint64]common.Address
	balances map[common.Address]uint64

	// per-asset approvals, cleared on transfer
	approvals map[uint64]common.Address
	// owner -> operator -> approved for all
	operators map[common.Address]map[common.Address]bool

	// recipients that want the receipt hook (contract-like principals)
	receivers map[common.Address]AssetReceiver
}

// NewERC721 creates an empty asset registry. IDs are assigned sequentially
// from zero by Mint.
func NewERC721(name, symbol string) *ERC721 {
	return &ERC721{
		name:      name,
		symbol:    symbol,
		owners:    make(map[uint64]common.Address),
		balances:  make(map[common.Address]uint64),
		approvals: make(map[uint64]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
		receivers: make(map[common.Address]AssetReceiver),
	}
}

func (n *ERC721) Name() string   { return n.name }
func (n *ERC721) Symbol() string { return n.symbol }

// RegisterReceiver attaches a receipt hook to addr. Transfers to addr via
// SafeTransferFrom will invoke the hook after ownership moves.
func (n *ERC721) RegisterReceiver(addr common.Address, r AssetReceiver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receivers[addr] = r
}

// Mint creates a new asset owned by `to` and returns its id.
func (n *ERC721) Mint(to common.Address) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.owners[id] = to
	n.balances[to]++
	return id
}

// OwnerOf returns the current owner of the asset.
func (n *ERC721) OwnerOf(assetID uint64) (common.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	owner, ok := n.owners[assetID]
	if !ok {
		return common.Address{}, fmt.Errorf("erc721: asset %d does not exist", assetID)
	}
	return owner, nil
}

// BalanceOf returns how many assets addr owns.
func (n *ERC721) BalanceOf(addr common.Address) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balances[addr]
}

// Approve grants `spender` the right to move a single asset.
func (n *ERC721) Approve(owner, spender common.Address, assetID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	current, ok := n.owners[assetID]
	if !ok {
		return fmt.Errorf("erc721: asset %d does not exist", assetID)
	}
	if current != owner && !n.operators[current][owner] {
		return fmt.Errorf("erc721: %s is not owner or operator of asset %d", owner.Hex(), assetID)
	}
	n.approvals[assetID] = spender
	return nil
}

// SetApprovalForAll grants or revokes operator rights over all of the
// owner's assets.
func (n *ERC721) SetApprovalForAll(owner, operator common.Address, approved bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ops, ok := n.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		n.operators[owner] = ops
	}
	ops[operator] = approved
}

// IsApprovedForAll reports whether operator may move all of owner's assets.
func (n *ERC721) IsApprovedForAll(owner, operator common.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.operators[owner][operator]
}

// Transfer moves an asset without invoking the receipt hook.
func (n *ERC721) Transfer(operator, from, to common.Address, assetID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transferLocked(operator, from, to, assetID)
}

// SafeTransferFrom moves an asset and, when the recipient has a registered
// receiver, invokes its receipt hook with the supplied payload. If the hook
// returns an error the ownership change is rolled back and the error is
// returned to the caller.
func (n *ERC721) SafeTransferFrom(operator, from, to common.Address, assetID uint64, payload []byte) error {
	n.mu.Lock()
	if err := n.transferLocked(operator, from, to, assetID); err != nil {
		n.mu.Unlock()
		return err
	}
	receiver := n.receivers[to]
	n.mu.Unlock()

	if receiver == nil {
		return nil
	}

	// Hook runs unlocked: it may legitimately call back into this registry.
	if err := receiver.OnAssetReceived(operator, from, assetID, payload); err != nil {
		n.mu.Lock()
		n.revertLocked(from, to, assetID)
		n.mu.Unlock()
		return fmt.Errorf("erc721: transfer of asset %d rejected by recipient: %w", assetID, err)
	}
	return nil
}

func (n *ERC721) transferLocked(operator, from, to common.Address, assetID uint64) error {
	owner, ok := n.owners[assetID]
	if !ok {
		return fmt.Errorf("erc721: asset %d does not exist", assetID)
	}
	if owner != from {
		return fmt.Errorf("erc721: asset %d not owned by %s", assetID, from.Hex())
	}
	if operator != owner && n.approvals[assetID] != operator && !n.operators[owner][operator] {
		return fmt.Errorf("erc721: %s not authorized to move asset %d", operator.Hex(), assetID)
	}

	delete(n.approvals, assetID)
	n.owners[assetID] = to
	n.balances[from]--
	n.balances[to]++
	return nil
}

// revertLocked undoes a transfer whose receipt hook rejected it.
func (n *ERC721) revertLocked(from, to common.Address, assetID uint64) {
	n.owners[assetID] = from
	n.balances[to]--
	n.balances[from]++
}
