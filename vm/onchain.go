package vm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller is the subset of chainreader.ChainReader that on-chain
// program execution needs: a read-only ABI call against a deployed
// contract. Declared here (rather than imported from chainreader) so that
// package vm does not depend on package chainreader's concrete backends —
// only the thin capability it actually consumes.
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

var onchainABI = mustABI(`[
	{"name":"create","type":"function","stateMutability":"view",
	 "inputs":[{"name":"initialState","type":"bytes"}],
	 "outputs":[{"name":"valid","type":"bool"}]},
	{"name":"resolve","type":"function","stateMutability":"view",
	 "inputs":[{"name":"initialState","type":"bytes"},{"name":"resolver","type":"bytes"}],
	 "outputs":[{"name":"to","type":"address[2]"},{"name":"amount","type":"uint256[2]"}]}
]`)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("vm: invalid onchain program abi: %v", err))
	}
	return parsed
}

// OnchainProgram is the "on-chain read mode" fallback of spec.md §4.6: it
// invokes the same create/resolve methods on the deployed contract via the
// chain reader, used when the channel has no local copy of the program's
// bytecode.
type OnchainProgram struct {
	Addr   common.Address
	Caller ContractCaller
}

var _ Program = (*OnchainProgram)(nil)

func (p *OnchainProgram) Create(initialState []byte) (bool, error) {
	data, err := onchainABI.Pack("create", initialState)
	if err != nil {
		return false, fmt.Errorf("vm: pack create call: %w", err)
	}
	out, err := p.Caller.CallContract(context.Background(), p.Addr, data)
	if err != nil {
		return false, fmt.Errorf("vm: onchain create call: %w", err)
	}
	vals, err := onchainABI.Unpack("create", out)
	if err != nil {
		return false, fmt.Errorf("vm: unpack create result: %w", err)
	}
	return vals[0].(bool), nil
}

func (p *OnchainProgram) Resolve(initialState, resolver []byte) (BalanceSplit, error) {
	data, err := onchainABI.Pack("resolve", initialState, resolver)
	if err != nil {
		return BalanceSplit{}, fmt.Errorf("vm: pack resolve call: %w", err)
	}
	out, err := p.Caller.CallContract(context.Background(), p.Addr, data)
	if err != nil {
		return BalanceSplit{}, fmt.Errorf("vm: onchain resolve call: %w", err)
	}
	vals, err := onchainABI.Unpack("resolve", out)
	if err != nil {
		return BalanceSplit{}, fmt.Errorf("vm: unpack resolve result: %w", err)
	}
	to := vals[0].([2]common.Address)
	amount := vals[1].([2]*big.Int)
	return BalanceSplit{To: to, Amount: amount}, nil
}
