package chainreader

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Mock is an in-memory ChainReader for tests and for cmd/vectord when no
// chain RPC endpoint is configured. Grounded on lnd's use of lightweight in-package mocks
// alongside each collaborator interface (e.g. htlcswitch/mock.go).
type Mock struct {
	mu       sync.Mutex
	balances map[[2]common.Address]*big.Int
	deposits map[[2]common.Address][]Deposit
	code     map[common.Address][]byte
	gasPrice *big.Int
}

// NewMock returns an empty Mock with a default gas price of 1 gwei.
func NewMock() *Mock {
	return &Mock{
		balances: make(map[[2]common.Address]*big.Int),
		deposits: make(map[[2]common.Address][]Deposit),
		code:     make(map[common.Address][]byte),
		gasPrice: big.NewInt(1_000_000_000),
	}
}

func key(channel, asset common.Address) [2]common.Address {
	return [2]common.Address{channel, asset}
}

// SetBalance fixes the on-chain balance of asset in channel.
func (m *Mock) SetBalance(channel, asset common.Address, balance *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[key(channel, asset)] = balance
}

// AddDeposit appends a new recognized deposit record for asset in channel.
func (m *Mock) AddDeposit(channel, asset common.Address, d Deposit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(channel, asset)
	m.deposits[k] = append(m.deposits[k], d)
}

// SetCode fixes the bytecode reported for addr.
func (m *Mock) SetCode(addr common.Address, code []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code[addr] = code
}

var _ ChainReader = (*Mock)(nil)

func (m *Mock) GetChannelOnchainBalance(_ context.Context, channel, asset common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[key(channel, asset)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(b), nil
}

func (m *Mock) GetLatestDepositByAsset(_ context.Context, channel, asset common.Address, sinceNonce uint64) (Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deposits := m.deposits[key(channel, asset)]
	var latest Deposit
	for _, d := range deposits {
		if d.Nonce > sinceNonce && d.Nonce >= latest.Nonce {
			latest = d
		}
	}
	if latest.Amount == nil {
		latest.Amount = big.NewInt(0)
	}
	return latest, nil
}

func (m *Mock) GetCode(_ context.Context, addr common.Address) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.code[addr]...), nil
}

func (m *Mock) GetGasPrice(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.gasPrice), nil
}

func (m *Mock) CallContract(_ context.Context, _ common.Address, _ []byte) ([]byte, error) {
	return nil, nil
}
