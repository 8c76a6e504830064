package boltstore

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channel.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fixtureState(addr common.Address) *chantypes.FullChannelState {
	return &chantypes.FullChannelState{
		CoreChannelState: chantypes.CoreChannelState{
			ChannelAddress: addr,
			Participants:   [2]common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")},
			Nonce:          1,
			AssetIDs:       []common.Address{common.HexToAddress("0xa5")},
			Balances:       [][2]*big.Int{{big.NewInt(100), big.NewInt(200)}},
			LockedBalance:  []*big.Int{big.NewInt(0)},
		},
		PublicIdentifiers: [2]string{"alice", "bob"},
	}
}

func TestLoadChannelMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)
	state, err := store.LoadChannel(common.HexToAddress("0xdead"))
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestSaveAndLoadChannelRoundTrip(t *testing.T) {
	store := openTestStore(t)
	addr := common.HexToAddress("0xc0ffee")
	state := fixtureState(addr)
	commit := &chantypes.Commitment{State: &state.CoreChannelState}

	require.NoError(t, store.SaveChannel(state, commit))

	loaded, err := store.LoadChannel(addr)
	require.NoError(t, err)
	require.Equal(t, state.Nonce, loaded.Nonce)
	require.Equal(t, state.Balances[0][0], loaded.Balances[0][0])
	require.Equal(t, state.PublicIdentifiers, loaded.PublicIdentifiers)
}

func TestSaveChannelAppendsCommitmentLog(t *testing.T) {
	store := openTestStore(t)
	addr := common.HexToAddress("0xc0ffee")
	state := fixtureState(addr)

	for i := 0; i < 3; i++ {
		state.Nonce = uint64(i + 1)
		commit := &chantypes.Commitment{State: &state.CoreChannelState}
		require.NoError(t, store.SaveChannel(state, commit))
	}

	log, err := store.CommitmentLog(addr)
	require.NoError(t, err)
	require.Len(t, log, 3)
	require.Equal(t, uint64(3), log[2].State.Nonce)
}

func TestTransferSaveLoadRemove(t *testing.T) {
	store := openTestStore(t)
	addr := common.HexToAddress("0xc0ffee")
	id := uuid.New()
	transfer := &chantypes.TransferState{TransferID: id, LockedAmount: big.NewInt(10)}

	require.NoError(t, store.SaveTransfer(addr, transfer))

	set, err := store.LoadActiveTransfers(addr)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	require.NoError(t, store.RemoveTransfer(addr, id))
	set, err = store.LoadActiveTransfers(addr)
	require.NoError(t, err)
	require.Equal(t, 0, set.Len())
}

func TestRemoveUnknownTransferErrors(t *testing.T) {
	store := openTestStore(t)
	err := store.RemoveTransfer(common.HexToAddress("0x1"), uuid.New())
	require.ErrorIs(t, err, storage.ErrTransferNotFound)
}
