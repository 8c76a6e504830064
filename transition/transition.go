// Package transition implements the deterministic state transition of
// spec.md §4.3: one pure clause per update kind. Grounded on lnwallet's
// evaluateHTLCView/processAddEntry/processRemoveEntry
// (lnwallet/channel.go:2590+), which apply balance-mutating pure functions
// keyed by HTLC event kind — generalized here to the channel's four update
// kinds.
package transition

import (
	"fmt"
	"math/big"

	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/merkle"
)

// Result is the outcome of applying an update: the next core state and,
// where relevant, the transfer that was created or removed.
type Result struct {
	State           *chantypes.CoreChannelState
	CreatedTransfer *chantypes.TransferState
	RemovedTransfer *chantypes.TransferState
}

// Apply runs the transition clause for update.Kind. previous must be nil
// iff update.Kind == Setup. transfers is the active-transfer set belonging
// to previous's channel; Apply never mutates it in place — it returns a
// clone with the relevant change applied as its second result.
//
// Apply is pure: identical inputs always produce identical outputs, no I/O
// (spec.md §4.3, tested by §8 property 1).
func Apply(
	previous *chantypes.CoreChannelState,
	transfers *chantypes.ActiveTransferSet,
	update *chantypes.ChannelUpdate,
) (*Result, *chantypes.ActiveTransferSet, error) {
	switch update.Kind {
	case chantypes.Setup:
		return applySetup(update)
	case chantypes.Deposit:
		return applyDeposit(previous, transfers, update)
	case chantypes.Create:
		return applyCreate(previous, transfers, update)
	case chantypes.Resolve:
		return applyResolve(previous, transfers, update)
	default:
		return nil, nil, fmt.Errorf("transition: unknown update kind %v", update.Kind)
	}
}

func applySetup(update *chantypes.ChannelUpdate) (*Result, *chantypes.ActiveTransferSet, error) {
	d := update.Details.Setup
	if d == nil {
		return nil, nil, fmt.Errorf("transition: setup requires details")
	}
	state := &chantypes.CoreChannelState{
		ChannelAddress:     update.ChannelAddress,
		Participants:       d.Participants,
		Timeout:            d.Timeout,
		AssetIDs:           nil,
		Balances:           nil,
		LockedBalance:      nil,
		Nonce:              1,
		LatestDepositNonce: 0,
		MerkleRoot:         merkle.EmptyRoot,
	}
	return &Result{State: state}, chantypes.NewActiveTransferSet(), nil
}

func applyDeposit(
	previous *chantypes.CoreChannelState,
	transfers *chantypes.ActiveTransferSet,
	update *chantypes.ChannelUpdate,
) (*Result, *chantypes.ActiveTransferSet, error) {
	d := update.Details.Deposit
	if d == nil {
		return nil, nil, fmt.Errorf("transition: deposit requires details")
	}
	next := previous.Clone()
	idx := next.EnsureAsset(d.AssetID)
	next.Balances[idx] = [2]*big.Int{
		new(big.Int).Set(update.Balance[0]),
		new(big.Int).Set(update.Balance[1]),
	}
	next.LatestDepositNonce = d.LatestDepositNonce
	next.Nonce = previous.Nonce + 1
	return &Result{State: next}, transfers.Clone(), nil
}

func applyCreate(
	previous *chantypes.CoreChannelState,
	transfers *chantypes.ActiveTransferSet,
	update *chantypes.ChannelUpdate,
) (*Result, *chantypes.ActiveTransferSet, error) {
	d := update.Details.Create
	if d == nil {
		return nil, nil, fmt.Errorf("transition: create requires details")
	}
	if _, exists := transfers.Get(d.TransferID); exists {
		return nil, nil, chantypes.ErrTransferExists
	}

	// Exactly one participant locks balance into a Create; Balance
	// carries the locked amount at that participant's own index and
	// zero at the other (see DESIGN.md's Create/Resolve Balance
	// convention).
	proposerIdx, err := lockingParticipant(update.Balance)
	if err != nil {
		return nil, nil, err
	}
	next := previous.Clone()
	idx := next.EnsureAsset(update.AssetID)

	locked := new(big.Int).Set(update.Balance[proposerIdx])

	remaining := new(big.Int).Sub(next.Balances[idx][proposerIdx], locked)
	if remaining.Sign() < 0 {
		return nil, nil, fmt.Errorf("transition: insufficient free balance")
	}
	next.Balances[idx][proposerIdx] = remaining
	next.LockedBalance[idx] = new(big.Int).Add(next.LockedBalance[idx], locked)

	next.Nonce = previous.Nonce + 1

	newTransfers := transfers.Clone()
	transfer := &chantypes.TransferState{
		TransferID:     d.TransferID,
		ChannelAddress: previous.ChannelAddress,
		Definition:     d.TransferDefinition,
		Encodings:      d.TransferEncodings,
		InitialState:   d.TransferInitialState,
		Timeout:        d.TransferTimeout,
		AssetID:        update.AssetID,
		LockedAmount:   locked,
		InitialBalance: [2]*big.Int{new(big.Int), new(big.Int)},
	}
	transfer.InitialBalance[proposerIdx] = new(big.Int).Set(locked)
	newTransfers.Add(transfer)

	next.MerkleRoot = merkle.Root(merkle.SortLeaves(newTransfers.Leaves()))

	return &Result{State: next, CreatedTransfer: transfer}, newTransfers, nil
}

// BalanceCredit is the balance split a resolved transfer's condition
// program returned, indexed by participant slot (not by "to" address) —
// package driver (mapSplitToBalance) maps the program's {to[],amount[]}
// result onto this representation.
type BalanceCredit [2]*big.Int

func applyResolve(
	previous *chantypes.CoreChannelState,
	transfers *chantypes.ActiveTransferSet,
	update *chantypes.ChannelUpdate,
) (*Result, *chantypes.ActiveTransferSet, error) {
	d := update.Details.Resolve
	if d == nil {
		return nil, nil, fmt.Errorf("transition: resolve requires details")
	}
	transfer, exists := transfers.Get(d.TransferID)
	if !exists {
		return nil, nil, chantypes.ErrTransferNotFound
	}

	next := previous.Clone()
	idx := next.AssetIndex(transfer.AssetID)
	if idx < 0 {
		return nil, nil, chantypes.ErrUnknownAsset
	}

	next.LockedBalance[idx] = new(big.Int).Sub(next.LockedBalance[idx], transfer.LockedAmount)
	if next.LockedBalance[idx].Sign() < 0 {
		return nil, nil, fmt.Errorf("transition: locked balance underflow")
	}

	next.Balances[idx][0] = new(big.Int).Add(next.Balances[idx][0], update.Balance[0])
	next.Balances[idx][1] = new(big.Int).Add(next.Balances[idx][1], update.Balance[1])

	next.Nonce = previous.Nonce + 1

	newTransfers := transfers.Clone()
	removed, _ := newTransfers.Remove(d.TransferID)
	next.MerkleRoot = merkle.Root(merkle.SortLeaves(newTransfers.Leaves()))

	return &Result{State: next, RemovedTransfer: removed}, newTransfers, nil
}

// lockingParticipant returns the single participant index whose Balance
// entry is non-zero — the one locking balance into a new transfer. Exactly
// one entry must be non-zero and non-negative.
func lockingParticipant(balance [2]*big.Int) (int, error) {
	zero := big.NewInt(0)
	a, b := balance[0], balance[1]
	if a.Sign() < 0 || b.Sign() < 0 {
		return 0, fmt.Errorf("transition: negative locked amount")
	}
	aNonZero := a.Cmp(zero) != 0
	bNonZero := b.Cmp(zero) != 0
	switch {
	case aNonZero && !bNonZero:
		return 0, nil
	case bNonZero && !aNonZero:
		return 1, nil
	default:
		return 0, fmt.Errorf("transition: create must lock balance from exactly one participant")
	}
}
