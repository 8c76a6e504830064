// Package chainreader implements the chain reader collaborator interface of
// spec.md §6: on-chain balance, deposit-record, code and gas-price reads.
// Grounded on lnd's chainntfs.ChainNotifier interface/backend split
// (chainntfs/ package), retargeted from a Bitcoin full node to an EVM JSON-RPC
// node per SPEC_FULL.md §3.
package chainreader

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Deposit is a single recognized on-chain deposit record.
type Deposit struct {
	Amount *big.Int
	Nonce  uint64
}

// ChainReader is the read-only on-chain collaborator the driver's deposit
// reconciliation (spec.md §4.5) and vm's on-chain fallback (§4.6) depend on.
type ChainReader interface {
	// GetChannelOnchainBalance returns the adjudicator-held balance of
	// asset in channel.
	GetChannelOnchainBalance(ctx context.Context, channel, asset common.Address) (*big.Int, error)
	// GetLatestDepositByAsset returns the most recent deposit record for
	// asset in channel with nonce > sinceNonce.
	GetLatestDepositByAsset(ctx context.Context, channel, asset common.Address, sinceNonce uint64) (Deposit, error)
	// GetCode returns the bytecode deployed at addr; an empty slice
	// means undeployed.
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)
	// GetGasPrice returns the network's current suggested gas price.
	GetGasPrice(ctx context.Context) (*big.Int, error)
	// CallContract performs a read-only ABI call, used by vm's on-chain
	// program execution fallback.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}
