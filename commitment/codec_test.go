package commitment

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/alfredolopez80/vector/chantypes"
)

func fixtureCommitment() *chantypes.Commitment {
	state := &chantypes.CoreChannelState{
		ChannelAddress:     common.HexToAddress("0xabc"),
		Participants:       [2]common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")},
		Timeout:            3600,
		AssetIDs:           []common.Address{common.HexToAddress("0xa5")},
		Balances:           [][2]*big.Int{{big.NewInt(100), big.NewInt(200)}},
		LockedBalance:      []*big.Int{big.NewInt(0)},
		Nonce:              1,
		LatestDepositNonce: 0,
		MerkleRoot:         common.Hash{},
	}
	return &chantypes.Commitment{
		ChainID:            big.NewInt(1337),
		State:              state,
		AdjudicatorAddress: common.HexToAddress("0xdead"),
	}
}

func TestHashCommitmentDeterministic(t *testing.T) {
	c := fixtureCommitment()
	h1, err := HashCommitment(c)
	require.NoError(t, err)
	h2, err := HashCommitment(c)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestHashCommitmentChangesWithNonce(t *testing.T) {
	c := fixtureCommitment()
	h1, err := HashCommitment(c)
	require.NoError(t, err)

	c.State.Nonce = 2
	h2, err := HashCommitment(c)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}

func TestHashCommitmentIgnoresSignatures(t *testing.T) {
	c := fixtureCommitment()
	h1, err := HashCommitment(c)
	require.NoError(t, err)

	c.Signatures = [2]chantypes.Signature{[]byte("not a real sig"), nil}
	h2, err := HashCommitment(c)
	require.NoError(t, err)

	require.Equal(t, h1, h2)
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	c := fixtureCommitment()
	digest, err := HashCommitment(c)
	require.NoError(t, err)

	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	require.Equal(t, addr, recovered)
}

func TestRecoverSignerRejectsWrongLength(t *testing.T) {
	_, err := RecoverSigner(common.Hash{}, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestRecoverSignerRejectsTamperedDigest(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	c := fixtureCommitment()
	digest, err := HashCommitment(c)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	c.State.Nonce = 99
	tamperedDigest, err := HashCommitment(c)
	require.NoError(t, err)

	recovered, err := RecoverSigner(tamperedDigest, sig)
	require.NoError(t, err)
	require.NotEqual(t, addr, recovered)
}
