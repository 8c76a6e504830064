// Package chantypes holds the pure value types that make up a two-party
// state channel: participants, network context, the signed core state, and
// the transfers locked within it. None of the types in this package carry
// behavior beyond construction and equality helpers; the state machine that
// operates on them lives in transition, validate and commitment.
package chantypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Participant pairs a long-lived routing identifier with the on-chain
// address used for signature recovery. The public identifier survives key
// rotation; the address does not.
type Participant struct {
	PublicIdentifier string
	Address          common.Address
}

// NetworkContext names the chain and adjudicator contract a channel's
// commitments can be enforced against. Immutable for the life of the
// channel.
type NetworkContext struct {
	ChainID            *big.Int
	AdjudicatorAddress common.Address
}

// CoreChannelState is the subset of channel state that is actually signed.
// Field order matches spec.md §3 and is part of the commitment encoding —
// see commitment.HashCommitment.
type CoreChannelState struct {
	ChannelAddress      common.Address
	Participants        [2]common.Address
	Timeout             uint64
	AssetIDs            []common.Address
	Balances            [][2]*big.Int
	LockedBalance       []*big.Int
	Nonce               uint64
	LatestDepositNonce  uint64
	MerkleRoot          common.Hash
}

// Clone returns a deep copy so that transition functions never mutate the
// state they were handed.
func (s *CoreChannelState) Clone() *CoreChannelState {
	out := &CoreChannelState{
		ChannelAddress:     s.ChannelAddress,
		Participants:       s.Participants,
		Timeout:            s.Timeout,
		Nonce:              s.Nonce,
		LatestDepositNonce: s.LatestDepositNonce,
		MerkleRoot:         s.MerkleRoot,
	}
	out.AssetIDs = append([]common.Address(nil), s.AssetIDs...)
	out.Balances = make([][2]*big.Int, len(s.Balances))
	for i, b := range s.Balances {
		out.Balances[i] = [2]*big.Int{new(big.Int).Set(b[0]), new(big.Int).Set(b[1])}
	}
	out.LockedBalance = make([]*big.Int, len(s.LockedBalance))
	for i, l := range s.LockedBalance {
		out.LockedBalance[i] = new(big.Int).Set(l)
	}
	return out
}

// AssetIndex returns the index of assetID in AssetIDs, or -1 if unknown.
func (s *CoreChannelState) AssetIndex(assetID common.Address) int {
	for i, a := range s.AssetIDs {
		if a == assetID {
			return i
		}
	}
	return -1
}

// EnsureAsset returns the index of assetID, appending a zero balance/locked
// entry to the parallel arrays if the asset is not yet known. Grounded on
// spec.md §4.3: "assetId and asset-indexed fields extend the assetIds array
// if the asset is not yet known".
func (s *CoreChannelState) EnsureAsset(assetID common.Address) int {
	if idx := s.AssetIndex(assetID); idx >= 0 {
		return idx
	}
	s.AssetIDs = append(s.AssetIDs, assetID)
	s.Balances = append(s.Balances, [2]*big.Int{big.NewInt(0), big.NewInt(0)})
	s.LockedBalance = append(s.LockedBalance, big.NewInt(0))
	return len(s.AssetIDs) - 1
}

// FullChannelState extends CoreChannelState with fields that are not part
// of the commitment but are useful to a running node.
type FullChannelState struct {
	CoreChannelState

	PublicIdentifiers [2]string
	NetworkContext    NetworkContext
	LatestUpdate      *ChannelUpdate
}

// Core returns the signed subset of the state. The returned value shares no
// memory with the receiver's CoreChannelState beyond what Clone produces.
func (s *FullChannelState) Core() *CoreChannelState {
	return s.CoreChannelState.Clone()
}
