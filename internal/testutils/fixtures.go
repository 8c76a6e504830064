// Package testutils builds the fixture participants, channels and wired
// drivers that every other package's tests need, the way
// lnwallet/common_test.go's CreateTestChannels built a funded pair of
// channel.LightningChannels for its test suite. Nothing here is exercised
// by non-test code.
package testutils

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/alfredolopez80/vector/chainreader"
	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/commitment"
	"github.com/alfredolopez80/vector/driver"
	"github.com/alfredolopez80/vector/messaging"
	"github.com/alfredolopez80/vector/signer"
	"github.com/alfredolopez80/vector/storage"
	"github.com/alfredolopez80/vector/storage/memstore"
	"github.com/alfredolopez80/vector/vm"
)

// Side is one participant's keypair and public identifier, the unit both
// NewParticipants and NewDriverPair hand out.
type Side struct {
	Identifier string
	Signer     *signer.Local
	Address    common.Address
}

// NewParticipants returns two funded-nowhere sides, "alice" and "bob", each
// with a freshly generated signing key.
func NewParticipants(t *testing.T) (alice, bob Side) {
	t.Helper()
	aliceKey, err := signer.GenerateLocal()
	require.NoError(t, err)
	bobKey, err := signer.GenerateLocal()
	require.NoError(t, err)
	return Side{Identifier: "alice", Signer: aliceKey, Address: aliceKey.Address()},
		Side{Identifier: "bob", Signer: bobKey, Address: bobKey.Address()}
}

// NetworkContext returns a fixed chain id / adjudicator pair, stable across
// a test file so HashCommitment digests are reproducible.
func NetworkContext() chantypes.NetworkContext {
	return chantypes.NetworkContext{
		ChainID:            big.NewInt(1337),
		AdjudicatorAddress: common.HexToAddress("0x00000000000000000000000000000000000bad"),
	}
}

// AssetID is the single ERC20-style asset address fixtures default to.
var AssetID = common.HexToAddress("0x000000000000000000000000000000000000a5")

// NewCoreChannelState returns a just-opened (nonce 1) core state funding
// asset with balance/balance split between the two participants, no locked
// transfers and an empty Merkle root.
func NewCoreChannelState(alice, bob Side, balanceAlice, balanceBob *big.Int) *chantypes.CoreChannelState {
	s := &chantypes.CoreChannelState{
		ChannelAddress:     common.HexToAddress("0x00000000000000000000000000000000c0ffee"),
		Participants:       [2]common.Address{alice.Address, bob.Address},
		Timeout:            3600,
		Nonce:              1,
		LatestDepositNonce: 0,
	}
	idx := s.EnsureAsset(AssetID)
	s.Balances[idx] = [2]*big.Int{new(big.Int).Set(balanceAlice), new(big.Int).Set(balanceBob)}
	return s
}

// SignBoth signs state's commitment digest with both participants' keys and
// returns the Commitment carrying both signature slots.
func SignBoth(t *testing.T, network chantypes.NetworkContext, state *chantypes.CoreChannelState, alice, bob Side) *chantypes.Commitment {
	t.Helper()
	c := &chantypes.Commitment{
		ChainID:            network.ChainID,
		State:              state,
		AdjudicatorAddress: network.AdjudicatorAddress,
	}
	digest, err := commitment.HashCommitment(c)
	require.NoError(t, err)
	sigA, err := alice.Signer.SignMessage(digest)
	require.NoError(t, err)
	sigB, err := bob.Signer.SignMessage(digest)
	require.NoError(t, err)
	c.Signatures = [2]chantypes.Signature{sigA, sigB}
	return c
}

// NewTransfer returns an active hashlock-style transfer fixture locked
// against lockedAmount of AssetID, not yet resolved.
func NewTransfer(lockedAmount *big.Int, initialState []byte) *chantypes.TransferState {
	return &chantypes.TransferState{
		TransferID:   uuid.New(),
		Definition:   common.HexToAddress("0x0000000000000000000000000000000000001"),
		Encodings:    []string{"hashlock"},
		InitialState: initialState,
		Timeout:      600,
		AssetID:      AssetID,
		LockedAmount: new(big.Int).Set(lockedAmount),
	}
}

// DriverPair is two fully wired Drivers sharing one loopback messaging.Bus
// and in-memory chain/storage backends, the test-sized analogue of
// cmd/vectorctl's buildPair.
type DriverPair struct {
	Alice, Bob Side
	AliceDrv   *driver.Driver
	BobDrv     *driver.Driver
	Chain      *chainreader.Mock
	unsub      []func()
}

// NewDriverPair wires two Drivers for alice and bob over one Bus, each with
// its own memstore.Store and both sharing one chainreader.Mock. The
// registry is pre-populated with the bundled Hashlock program at
// hashlockAddr so Create/Resolve round-trip without a real chain.
func NewDriverPair(t *testing.T, hashlockAddr common.Address) *DriverPair {
	t.Helper()
	alice, bob := NewParticipants(t)
	network := NetworkContext()
	chain := chainreader.NewMock()
	bus := messaging.NewBus()

	buildSide := func(side Side) *driver.Driver {
		store := memstore.New()
		mess := messaging.New(bus, clock.NewDefaultClock(), side.Identifier)
		registry := vm.NewLocalRegistry()
		registry.Register(hashlockAddr, vm.Hashlock{})
		vmExec := &vm.Executor{Local: registry, Caller: chain}
		return driver.New(side.Identifier, network, store, chain, side.Signer, mess, vmExec, 5*time.Second, 2)
	}

	aliceDrv := buildSide(alice)
	bobDrv := buildSide(bob)

	pair := &DriverPair{Alice: alice, Bob: bob, AliceDrv: aliceDrv, BobDrv: bobDrv, Chain: chain}
	pair.unsub = append(pair.unsub,
		aliceDrv.Messaging.OnReceiveProtocol(alice.Identifier, func(msg messaging.Message) {
			aliceDrv.HandleInbound(context.Background(), msg)
		}),
		bobDrv.Messaging.OnReceiveProtocol(bob.Identifier, func(msg messaging.Message) {
			bobDrv.HandleInbound(context.Background(), msg)
		}),
	)
	return pair
}

// Close unsubscribes both sides from the shared bus.
func (p *DriverPair) Close() {
	for _, u := range p.unsub {
		u()
	}
}

var _ storage.Store = (*memstore.Store)(nil)
