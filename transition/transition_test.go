package transition

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/merkle"
)

var (
	alice = common.HexToAddress("0x1")
	bob   = common.HexToAddress("0x2")
	asset = common.HexToAddress("0xa5")
)

func TestApplySetup(t *testing.T) {
	update := &chantypes.ChannelUpdate{
		Kind:           chantypes.Setup,
		ChannelAddress: common.HexToAddress("0xc0ffee"),
		Details: chantypes.Details{Setup: &chantypes.SetupDetails{
			Timeout:      3600,
			Participants: [2]common.Address{alice, bob},
		}},
	}
	result, transfers, err := Apply(nil, nil, update)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.State.Nonce)
	require.Equal(t, merkle.EmptyRoot, result.State.MerkleRoot)
	require.Equal(t, 0, transfers.Len())
}

func setupState() *chantypes.CoreChannelState {
	s := &chantypes.CoreChannelState{
		ChannelAddress: common.HexToAddress("0xc0ffee"),
		Participants:   [2]common.Address{alice, bob},
		Timeout:        3600,
		Nonce:          1,
	}
	idx := s.EnsureAsset(asset)
	s.Balances[idx] = [2]*big.Int{big.NewInt(1000), big.NewInt(1000)}
	return s
}

func TestApplyDepositExtendsBalanceAndBumpsNonce(t *testing.T) {
	prev := setupState()
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Deposit,
		Balance: [2]*big.Int{big.NewInt(1500), big.NewInt(1000)},
		Details: chantypes.Details{Deposit: &chantypes.DepositDetails{
			AssetID:            asset,
			LatestDepositNonce: 1,
		}},
	}
	result, transfers, err := Apply(prev, chantypes.NewActiveTransferSet(), update)
	require.NoError(t, err)
	require.Equal(t, uint64(2), result.State.Nonce)
	require.Equal(t, uint64(1), result.State.LatestDepositNonce)
	idx := result.State.AssetIndex(asset)
	require.Equal(t, big.NewInt(1500), result.State.Balances[idx][0])
	require.Equal(t, 0, transfers.Len())
}

func TestApplyCreateLocksBalanceFromProposer(t *testing.T) {
	prev := setupState()
	transferID := uuid.New()
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Create,
		AssetID: asset,
		Balance: [2]*big.Int{big.NewInt(200), big.NewInt(0)},
		Details: chantypes.Details{Create: &chantypes.CreateDetails{
			TransferID:           transferID,
			TransferDefinition:   common.HexToAddress("0xdef"),
			TransferInitialState: []byte("state"),
			TransferTimeout:      600,
		}},
	}
	result, transfers, err := Apply(prev, chantypes.NewActiveTransferSet(), update)
	require.NoError(t, err)
	idx := result.State.AssetIndex(asset)
	require.Equal(t, big.NewInt(800), result.State.Balances[idx][0])
	require.Equal(t, big.NewInt(200), result.State.LockedBalance[idx])
	require.Equal(t, uint64(2), result.State.Nonce)
	require.NotEqual(t, merkle.EmptyRoot, result.State.MerkleRoot)
	require.Equal(t, 1, transfers.Len())
	require.NotNil(t, result.CreatedTransfer)
	require.Equal(t, transferID, result.CreatedTransfer.TransferID)
}

func TestApplyCreateRejectsDuplicateTransferID(t *testing.T) {
	prev := setupState()
	transferID := uuid.New()
	existing := chantypes.NewActiveTransferSet()
	existing.Add(&chantypes.TransferState{TransferID: transferID, AssetID: asset, LockedAmount: big.NewInt(1)})

	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Create,
		AssetID: asset,
		Balance: [2]*big.Int{big.NewInt(200), big.NewInt(0)},
		Details: chantypes.Details{Create: &chantypes.CreateDetails{TransferID: transferID}},
	}
	_, _, err := Apply(prev, existing, update)
	require.ErrorIs(t, err, chantypes.ErrTransferExists)
}

func TestApplyCreateRejectsInsufficientBalance(t *testing.T) {
	prev := setupState()
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Create,
		AssetID: asset,
		Balance: [2]*big.Int{big.NewInt(5000), big.NewInt(0)},
		Details: chantypes.Details{Create: &chantypes.CreateDetails{TransferID: uuid.New()}},
	}
	_, _, err := Apply(prev, chantypes.NewActiveTransferSet(), update)
	require.Error(t, err)
}

func TestApplyCreateRejectsBothSidesLocking(t *testing.T) {
	prev := setupState()
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Create,
		AssetID: asset,
		Balance: [2]*big.Int{big.NewInt(100), big.NewInt(100)},
		Details: chantypes.Details{Create: &chantypes.CreateDetails{TransferID: uuid.New()}},
	}
	_, _, err := Apply(prev, chantypes.NewActiveTransferSet(), update)
	require.Error(t, err)
}

func TestApplyResolveUnlocksAndRemovesTransfer(t *testing.T) {
	prev := setupState()
	idx := prev.EnsureAsset(asset)
	prev.LockedBalance[idx] = big.NewInt(200)

	transferID := uuid.New()
	transfers := chantypes.NewActiveTransferSet()
	transfer := &chantypes.TransferState{
		TransferID:   transferID,
		AssetID:      asset,
		LockedAmount: big.NewInt(200),
	}
	transfers.Add(transfer)

	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Resolve,
		Balance: [2]*big.Int{big.NewInt(0), big.NewInt(200)},
		Details: chantypes.Details{Resolve: &chantypes.ResolveDetails{TransferID: transferID}},
	}
	result, remaining, err := Apply(prev, transfers, update)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), result.State.LockedBalance[idx])
	require.Equal(t, big.NewInt(1200), result.State.Balances[idx][1])
	require.Equal(t, 0, remaining.Len())
	require.NotNil(t, result.RemovedTransfer)
	require.Equal(t, merkle.EmptyRoot, result.State.MerkleRoot)
}

func TestApplyResolveUnknownTransferErrors(t *testing.T) {
	prev := setupState()
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Resolve,
		Balance: [2]*big.Int{big.NewInt(0), big.NewInt(0)},
		Details: chantypes.Details{Resolve: &chantypes.ResolveDetails{TransferID: uuid.New()}},
	}
	_, _, err := Apply(prev, chantypes.NewActiveTransferSet(), update)
	require.ErrorIs(t, err, chantypes.ErrTransferNotFound)
}

func TestApplyUnknownKindErrors(t *testing.T) {
	_, _, err := Apply(setupState(), chantypes.NewActiveTransferSet(), &chantypes.ChannelUpdate{Kind: chantypes.UpdateKind(99)})
	require.Error(t, err)
}
