package chantypes

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestActiveTransferSetAddGetRemove(t *testing.T) {
	set := NewActiveTransferSet()
	id := uuid.New()
	transfer := &TransferState{TransferID: id, LockedAmount: big.NewInt(10)}

	set.Add(transfer)
	require.Equal(t, 1, set.Len())

	got, ok := set.Get(id)
	require.True(t, ok)
	require.Equal(t, transfer, got)

	removed, ok := set.Remove(id)
	require.True(t, ok)
	require.Equal(t, transfer, removed)
	require.Equal(t, 0, set.Len())

	_, ok = set.Get(id)
	require.False(t, ok)
}

func TestActiveTransferSetLeavesOrderedByID(t *testing.T) {
	set := NewActiveTransferSet()
	a := &TransferState{TransferID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), LockedAmount: big.NewInt(1)}
	b := &TransferState{TransferID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), LockedAmount: big.NewInt(1)}
	set.Add(a)
	set.Add(b)

	leaves := set.Leaves()
	require.Len(t, leaves, 2)
	require.Equal(t, b.CommitmentLeaf(), leaves[0])
	require.Equal(t, a.CommitmentLeaf(), leaves[1])
}

func TestActiveTransferSetCloneIsIndependent(t *testing.T) {
	set := NewActiveTransferSet()
	id := uuid.New()
	set.Add(&TransferState{TransferID: id, LockedAmount: big.NewInt(10)})

	clone := set.Clone()
	clone.Remove(id)

	require.Equal(t, 1, set.Len())
	require.Equal(t, 0, clone.Len())
}

func TestCoreChannelStateEnsureAssetIsIdempotent(t *testing.T) {
	s := &CoreChannelState{}
	asset := common.HexToAddress("0xa5")

	idx1 := s.EnsureAsset(asset)
	idx2 := s.EnsureAsset(asset)
	require.Equal(t, idx1, idx2)
	require.Len(t, s.AssetIDs, 1)
}

func TestCoreChannelStateCloneDeepCopies(t *testing.T) {
	s := &CoreChannelState{}
	asset := common.HexToAddress("0xa5")
	idx := s.EnsureAsset(asset)
	s.Balances[idx] = [2]*big.Int{big.NewInt(1), big.NewInt(2)}

	clone := s.Clone()
	clone.Balances[idx][0].SetInt64(999)

	require.Equal(t, big.NewInt(1), s.Balances[idx][0])
}

func TestChannelUpdateSignatureCount(t *testing.T) {
	u := &ChannelUpdate{Signatures: [2]Signature{[]byte("sig"), nil}}
	require.Equal(t, 1, u.SignatureCount())
}

func TestChannelUpdateCloneIndependentBalance(t *testing.T) {
	u := &ChannelUpdate{Balance: [2]*big.Int{big.NewInt(1), big.NewInt(2)}}
	clone := u.Clone()
	clone.Balance[0].SetInt64(100)
	require.Equal(t, big.NewInt(1), u.Balance[0])
}
