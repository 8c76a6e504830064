package chainreader

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// adjudicatorABI names the two read methods an adjudicator contract is
// expected to expose for reconciliation and balance reads. A real
// deployment's ABI would be generated (abigen); this hand-written subset is
// all the driver needs.
var adjudicatorABI = mustAdjudicatorABI(`[
	{"name":"getChannelBalance","type":"function","stateMutability":"view",
	 "inputs":[{"name":"channel","type":"address"},{"name":"asset","type":"address"}],
	 "outputs":[{"name":"balance","type":"uint256"}]},
	{"name":"getLatestDeposit","type":"function","stateMutability":"view",
	 "inputs":[{"name":"channel","type":"address"},{"name":"asset","type":"address"},{"name":"sinceNonce","type":"uint256"}],
	 "outputs":[{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"}]}
]`)

func mustAdjudicatorABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chainreader: invalid adjudicator abi: %v", err))
	}
	return parsed
}

// EthReader is the ethclient-backed ChainReader: every query either reads
// chain state directly (code, gas price) or makes a read-only call into the
// adjudicator contract (balance, deposit record).
type EthReader struct {
	client      *ethclient.Client
	adjudicator common.Address
}

// NewEthReader wires an ethclient.Client (dialed by the caller, e.g. from
// config.ChainRPCEndpoint) against the given adjudicator contract address.
func NewEthReader(client *ethclient.Client, adjudicator common.Address) *EthReader {
	return &EthReader{client: client, adjudicator: adjudicator}
}

var _ ChainReader = (*EthReader)(nil)

func (r *EthReader) GetChannelOnchainBalance(ctx context.Context, channel, asset common.Address) (*big.Int, error) {
	data, err := adjudicatorABI.Pack("getChannelBalance", channel, asset)
	if err != nil {
		return nil, fmt.Errorf("chainreader: pack getChannelBalance: %w", err)
	}
	out, err := r.CallContract(ctx, r.adjudicator, data)
	if err != nil {
		return nil, err
	}
	vals, err := adjudicatorABI.Unpack("getChannelBalance", out)
	if err != nil {
		return nil, fmt.Errorf("chainreader: unpack getChannelBalance: %w", err)
	}
	return vals[0].(*big.Int), nil
}

func (r *EthReader) GetLatestDepositByAsset(ctx context.Context, channel, asset common.Address, sinceNonce uint64) (Deposit, error) {
	data, err := adjudicatorABI.Pack("getLatestDeposit", channel, asset, new(big.Int).SetUint64(sinceNonce))
	if err != nil {
		return Deposit{}, fmt.Errorf("chainreader: pack getLatestDeposit: %w", err)
	}
	out, err := r.CallContract(ctx, r.adjudicator, data)
	if err != nil {
		return Deposit{}, err
	}
	vals, err := adjudicatorABI.Unpack("getLatestDeposit", out)
	if err != nil {
		return Deposit{}, fmt.Errorf("chainreader: unpack getLatestDeposit: %w", err)
	}
	return Deposit{
		Amount: vals[0].(*big.Int),
		Nonce:  vals[1].(*big.Int).Uint64(),
	}, nil
}

func (r *EthReader) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := r.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chainreader: code at %s: %w", addr.Hex(), err)
	}
	return code, nil
}

func (r *EthReader) GetGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainreader: gas price: %w", err)
	}
	return price, nil
}

func (r *EthReader) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chainreader: call %s: %w", to.Hex(), err)
	}
	return out, nil
}
