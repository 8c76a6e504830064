package vm

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashlockState is the ABI-encoded initial state of a hashlock transfer:
// the recipient and the hash the resolver's preimage must match.
type HashlockState struct {
	LockHash common.Hash
	Amount   *big.Int
	Sender   common.Address
	Receiver common.Address
}

var hashlockStateArgs = abi.Arguments{
	{Name: "lockHash", Type: mustType("bytes32")},
	{Name: "amount", Type: mustType("uint256")},
	{Name: "sender", Type: mustType("address")},
	{Name: "receiver", Type: mustType("address")},
}

var hashlockResolverArgs = abi.Arguments{
	{Name: "preimage", Type: mustType("bytes32")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("vm: bad abi type %q: %v", t, err))
	}
	return typ
}

// EncodeHashlockState ABI-encodes s for use as a transfer's InitialState.
func EncodeHashlockState(s HashlockState) ([]byte, error) {
	return hashlockStateArgs.Pack(s.LockHash, s.Amount, s.Sender, s.Receiver)
}

func decodeHashlockState(data []byte) (HashlockState, error) {
	vals, err := hashlockStateArgs.Unpack(data)
	if err != nil {
		return HashlockState{}, fmt.Errorf("vm: decode hashlock state: %w", err)
	}
	return HashlockState{
		LockHash: vals[0].(common.Hash),
		Amount:   vals[1].(*big.Int),
		Sender:   vals[2].(common.Address),
		Receiver: vals[3].(common.Address),
	}, nil
}

// EncodeHashlockResolver ABI-encodes the preimage witness for use as a
// Resolve update's TransferResolver.
func EncodeHashlockResolver(preimage [32]byte) ([]byte, error) {
	return hashlockResolverArgs.Pack(preimage)
}

// Hashlock is the built-in condition program backing spec.md §8 scenarios
// (c)/(d): lock an amount for Receiver, released on presentation of a
// preimage hashing to LockHash.
type Hashlock struct{}

var _ Program = Hashlock{}

// Create accepts any well-formed hashlock state: it only checks that the
// state decodes. The state's Amount, Sender and Receiver are not compared
// with the transfer's locked amount or the channel's participants, here or
// in package transition or package validate.
func (Hashlock) Create(initialState []byte) (bool, error) {
	_, err := decodeHashlockState(initialState)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Resolve checks the resolver's preimage against the locked hash and, if it
// matches, pays the full locked amount to Receiver; otherwise returns the
// amount to Sender (a timeout/cancellation path would be driven by the same
// resolver format with a zero preimage — left to the caller to decide when
// to invoke Resolve at all, since spec.md §4.3 only fires Resolve on an
// accepted update).
func (Hashlock) Resolve(initialState, resolver []byte) (BalanceSplit, error) {
	state, err := decodeHashlockState(initialState)
	if err != nil {
		return BalanceSplit{}, err
	}
	vals, err := hashlockResolverArgs.Unpack(resolver)
	if err != nil {
		return BalanceSplit{}, fmt.Errorf("vm: decode hashlock resolver: %w", err)
	}
	preimage := vals[0].(common.Hash)

	if bytes.Equal(crypto.Keccak256(preimage.Bytes()), state.LockHash.Bytes()) {
		return BalanceSplit{
			To:     [2]common.Address{state.Receiver},
			Amount: [2]*big.Int{new(big.Int).Set(state.Amount)},
		}, nil
	}
	return BalanceSplit{
		To:     [2]common.Address{state.Sender},
		Amount: [2]*big.Int{new(big.Int).Set(state.Amount)},
	}, nil
}
