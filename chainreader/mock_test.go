package chainreader

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestMockBalanceDefaultsToZero(t *testing.T) {
	m := NewMock()
	bal, err := m.GetChannelOnchainBalance(context.Background(), common.HexToAddress("0x1"), common.HexToAddress("0x2"))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), bal)
}

func TestMockSetBalanceRoundTrip(t *testing.T) {
	m := NewMock()
	channel, asset := common.HexToAddress("0x1"), common.HexToAddress("0x2")
	m.SetBalance(channel, asset, big.NewInt(500))
	bal, err := m.GetChannelOnchainBalance(context.Background(), channel, asset)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), bal)
}

func TestMockLatestDepositByAssetFiltersByNonce(t *testing.T) {
	m := NewMock()
	channel, asset := common.HexToAddress("0x1"), common.HexToAddress("0x2")
	m.AddDeposit(channel, asset, Deposit{Amount: big.NewInt(10), Nonce: 1})
	m.AddDeposit(channel, asset, Deposit{Amount: big.NewInt(20), Nonce: 2})

	latest, err := m.GetLatestDepositByAsset(context.Background(), channel, asset, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), latest.Nonce)
	require.Equal(t, big.NewInt(20), latest.Amount)
}

func TestMockLatestDepositByAssetNoneSinceNonce(t *testing.T) {
	m := NewMock()
	channel, asset := common.HexToAddress("0x1"), common.HexToAddress("0x2")
	m.AddDeposit(channel, asset, Deposit{Amount: big.NewInt(10), Nonce: 1})

	latest, err := m.GetLatestDepositByAsset(context.Background(), channel, asset, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(0), latest.Nonce)
	require.Equal(t, big.NewInt(0), latest.Amount)
}

func TestMockCodeRoundTrip(t *testing.T) {
	m := NewMock()
	addr := common.HexToAddress("0x1")
	m.SetCode(addr, []byte{0xde, 0xad, 0xbe, 0xef})
	code, err := m.GetCode(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, code)
}
