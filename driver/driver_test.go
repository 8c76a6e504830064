package driver_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alfredolopez80/vector/chainreader"
	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/internal/testutils"
	"github.com/alfredolopez80/vector/messaging"
	"github.com/alfredolopez80/vector/vm"
)

var hashlockAddr = common.HexToAddress("0x1")

func TestDriverSetupDepositCreateResolveLifecycle(t *testing.T) {
	pair := testutils.NewDriverPair(t, hashlockAddr)
	defer pair.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channelAddr := common.HexToAddress("0xc0ffee")

	full, err := pair.AliceDrv.Setup(ctx, channelAddr, [2]common.Address{pair.Alice.Address, pair.Bob.Address}, 3600, pair.Bob.Identifier)
	require.NoError(t, err)
	require.Equal(t, uint64(1), full.Nonce)

	pair.Chain.SetBalance(channelAddr, testutils.AssetID, big.NewInt(1000))
	pair.Chain.AddDeposit(channelAddr, testutils.AssetID, chainreader.Deposit{Amount: big.NewInt(1000), Nonce: 1})

	full, err = pair.AliceDrv.Deposit(ctx, channelAddr, testutils.AssetID, pair.Bob.Identifier)
	require.NoError(t, err)
	require.Equal(t, uint64(2), full.Nonce)
	idx := full.AssetIndex(testutils.AssetID)
	require.Equal(t, big.NewInt(1000), full.Balances[idx][0])

	preimage := crypto.Keccak256Hash([]byte("the-secret-preimage"))
	lockHash := crypto.Keccak256Hash(preimage.Bytes())
	initialState, err := vm.EncodeHashlockState(vm.HashlockState{
		LockHash: lockHash, Amount: big.NewInt(100), Sender: pair.Alice.Address, Receiver: pair.Bob.Address,
	})
	require.NoError(t, err)

	full, transfer, err := pair.AliceDrv.Create(ctx, channelAddr, testutils.AssetID, big.NewInt(100), hashlockAddr, initialState, []string{"hashlock"}, 600, pair.Bob.Identifier)
	require.NoError(t, err)
	require.Equal(t, uint64(3), full.Nonce)
	require.NotNil(t, transfer)

	resolver, err := vm.EncodeHashlockResolver(preimage)
	require.NoError(t, err)

	full, err = pair.AliceDrv.Resolve(ctx, channelAddr, transfer.TransferID, resolver, pair.Bob.Identifier)
	require.NoError(t, err)
	require.Equal(t, uint64(4), full.Nonce)

	bobState, err := pair.BobDrv.Store.LoadChannel(channelAddr)
	require.NoError(t, err)
	require.Equal(t, full.Nonce, bobState.Nonce)
	require.Equal(t, full.MerkleRoot, bobState.MerkleRoot)
}

func TestDriverResolveUnknownTransferIsRejected(t *testing.T) {
	pair := testutils.NewDriverPair(t, hashlockAddr)
	defer pair.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channelAddr := common.HexToAddress("0xc0ffee")
	_, err := pair.AliceDrv.Setup(ctx, channelAddr, [2]common.Address{pair.Alice.Address, pair.Bob.Address}, 3600, pair.Bob.Identifier)
	require.NoError(t, err)

	_, err = pair.AliceDrv.Resolve(ctx, channelAddr, uuid.New(), []byte("resolver"), pair.Bob.Identifier)
	require.Error(t, err)
}

// forgeResolve builds the locked-transfer fixture common to both mismatch
// tests below: a real Setup/Deposit/Create round over the pair, returning
// the created transfer.
func forgeResolve(t *testing.T, pair *testutils.DriverPair, channelAddr common.Address, lockHash common.Hash, amount *big.Int) *chantypes.TransferState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pair.AliceDrv.Setup(ctx, channelAddr, [2]common.Address{pair.Alice.Address, pair.Bob.Address}, 3600, pair.Bob.Identifier)
	require.NoError(t, err)

	pair.Chain.SetBalance(channelAddr, testutils.AssetID, big.NewInt(1000))
	pair.Chain.AddDeposit(channelAddr, testutils.AssetID, chainreader.Deposit{Amount: big.NewInt(1000), Nonce: 1})
	_, err = pair.AliceDrv.Deposit(ctx, channelAddr, testutils.AssetID, pair.Bob.Identifier)
	require.NoError(t, err)

	initialState, err := vm.EncodeHashlockState(vm.HashlockState{
		LockHash: lockHash, Amount: amount, Sender: pair.Alice.Address, Receiver: pair.Bob.Address,
	})
	require.NoError(t, err)

	_, transfer, err := pair.AliceDrv.Create(ctx, channelAddr, testutils.AssetID, amount, hashlockAddr, initialState, []string{"hashlock"}, 600, pair.Bob.Identifier)
	require.NoError(t, err)
	return transfer
}

// TestDriverResolveInflatedPayoutIsRejected simulates a counterparty
// proposing a Resolve update whose Balance credits far more than the
// condition program's own verdict would ever produce for a correct
// preimage. The responder must re-execute the program itself and reject
// the proposal rather than trust the wire-supplied Balance.
func TestDriverResolveInflatedPayoutIsRejected(t *testing.T) {
	pair := testutils.NewDriverPair(t, hashlockAddr)
	defer pair.Close()

	channelAddr := common.HexToAddress("0xc0ffee")
	preimage := crypto.Keccak256Hash([]byte("inflated-payout-preimage"))
	lockHash := crypto.Keccak256Hash(preimage.Bytes())
	transfer := forgeResolve(t, pair, channelAddr, lockHash, big.NewInt(100))

	before, err := pair.BobDrv.Store.LoadChannel(channelAddr)
	require.NoError(t, err)

	resolver, err := vm.EncodeHashlockResolver(preimage)
	require.NoError(t, err)

	// The correct payout for a matching preimage is {alice: 0, bob: 100}.
	// Propose a payout ten times larger instead.
	forged := &chantypes.ChannelUpdate{
		Kind:           chantypes.Resolve,
		ChannelAddress: channelAddr,
		FromIdentifier: pair.Alice.Identifier,
		ToIdentifier:   pair.Bob.Identifier,
		Nonce:          before.Nonce + 1,
		Balance:        [2]*big.Int{big.NewInt(0), big.NewInt(1000)},
		AssetID:        testutils.AssetID,
		Details: chantypes.Details{Resolve: &chantypes.ResolveDetails{
			TransferID:       transfer.TransferID,
			TransferResolver: resolver,
		}},
	}
	pair.BobDrv.HandleInbound(context.Background(), messaging.Message{
		To:     pair.Bob.Identifier,
		From:   pair.Alice.Identifier,
		Inbox:  messaging.NewInbox(),
		SentBy: pair.Alice.Identifier,
		Data:   messaging.Data{Update: forged},
	})

	after, err := pair.BobDrv.Store.LoadChannel(channelAddr)
	require.NoError(t, err)
	require.Equal(t, before.Nonce, after.Nonce, "bob must reject a resolve payout larger than the condition program's verdict")
}

// TestDriverResolveWrongPreimagePayoutIsRejected simulates a counterparty
// presenting a resolver whose preimage does not match the lock hash (so the
// program's actual verdict refunds the sender) while still proposing a
// Balance that pays the receiver in full.
func TestDriverResolveWrongPreimagePayoutIsRejected(t *testing.T) {
	pair := testutils.NewDriverPair(t, hashlockAddr)
	defer pair.Close()

	channelAddr := common.HexToAddress("0xc0ffee")
	realPreimage := crypto.Keccak256Hash([]byte("real-preimage"))
	lockHash := crypto.Keccak256Hash(realPreimage.Bytes())
	transfer := forgeResolve(t, pair, channelAddr, lockHash, big.NewInt(100))

	before, err := pair.BobDrv.Store.LoadChannel(channelAddr)
	require.NoError(t, err)

	wrongPreimage := crypto.Keccak256Hash([]byte("wrong-preimage"))
	resolver, err := vm.EncodeHashlockResolver(wrongPreimage)
	require.NoError(t, err)

	// A wrong preimage resolves to refunding alice, not paying bob.
	forged := &chantypes.ChannelUpdate{
		Kind:           chantypes.Resolve,
		ChannelAddress: channelAddr,
		FromIdentifier: pair.Alice.Identifier,
		ToIdentifier:   pair.Bob.Identifier,
		Nonce:          before.Nonce + 1,
		Balance:        [2]*big.Int{big.NewInt(0), big.NewInt(100)},
		AssetID:        testutils.AssetID,
		Details: chantypes.Details{Resolve: &chantypes.ResolveDetails{
			TransferID:       transfer.TransferID,
			TransferResolver: resolver,
		}},
	}
	pair.BobDrv.HandleInbound(context.Background(), messaging.Message{
		To:     pair.Bob.Identifier,
		From:   pair.Alice.Identifier,
		Inbox:  messaging.NewInbox(),
		SentBy: pair.Alice.Identifier,
		Data:   messaging.Data{Update: forged},
	})

	after, err := pair.BobDrv.Store.LoadChannel(channelAddr)
	require.NoError(t, err)
	require.Equal(t, before.Nonce, after.Nonce, "bob must reject a resolve payout that contradicts the hashlock preimage check")
}
