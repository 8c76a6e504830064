package driver

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredolopez80/vector/chainreader"
	"github.com/alfredolopez80/vector/chantypes"
)

// ReconcileDeposit implements spec.md §4.5's precondition builder for a
// deposit update: it reads the on-chain balance and latest deposit record
// for asset, and derives the exact {balance, latestDepositNonce} a deposit
// update for this channel must carry.
//
// If chain.nonce == state.latestDepositNonce there is no new deposit to
// reconcile — the Open Question named in spec.md §9 is resolved here by
// returning ErrNoNewDeposit rather than a spurious no-op update (DESIGN.md).
func ReconcileDeposit(
	ctx context.Context,
	reader chainreader.ChainReader,
	state *chantypes.CoreChannelState,
	asset common.Address,
) (balance [2]*big.Int, latestDepositNonce uint64, err error) {
	onchainBalance, err := reader.GetChannelOnchainBalance(ctx, state.ChannelAddress, asset)
	if err != nil {
		return [2]*big.Int{}, 0, classifyChainErr(err)
	}

	deposit, err := reader.GetLatestDepositByAsset(ctx, state.ChannelAddress, asset, state.LatestDepositNonce)
	if err != nil {
		return [2]*big.Int{}, 0, classifyChainErr(err)
	}

	if deposit.Nonce == state.LatestDepositNonce {
		return [2]*big.Int{}, 0, ErrNoNewDeposit
	}

	idx := state.AssetIndex(asset)
	prevBalance0 := big.NewInt(0)
	lockedForAsset := big.NewInt(0)
	if idx >= 0 {
		prevBalance0 = state.Balances[idx][0]
		lockedForAsset = state.LockedBalance[idx]
	}

	var newBalance0 *big.Int
	if deposit.Nonce > state.LatestDepositNonce {
		newBalance0 = new(big.Int).Add(deposit.Amount, prevBalance0)
	} else {
		newBalance0 = new(big.Int).Set(prevBalance0)
	}

	newBalance1 := new(big.Int).Sub(onchainBalance, newBalance0)
	newBalance1.Sub(newBalance1, lockedForAsset)

	return [2]*big.Int{newBalance0, newBalance1}, deposit.Nonce, nil
}
