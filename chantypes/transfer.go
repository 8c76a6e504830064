package chantypes

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// TransferState is the full record of a conditionally locked sub-balance.
// Created by a Create update, removed by the matching Resolve update.
type TransferState struct {
	TransferID           uuid.UUID
	ChannelAddress       common.Address
	Definition           common.Address
	Encodings            []string
	InitialState         []byte
	Resolver             []byte // nil until resolved
	Timeout              uint64
	AssetID              common.Address
	LockedAmount         *big.Int
	// InitialBalance is the expected payout balance at creation time,
	// keyed the same way as CoreChannelState.Balances: index 0/1 match
	// participant order.
	InitialBalance [2]*big.Int
}

// CommitmentLeaf returns the deterministic bytes hashed into the active
// transfer set's Merkle tree (merkle.Root). Grounded on spec.md §3's
// "leaf = transfer's own commitment hash".
func (t *TransferState) CommitmentLeaf() []byte {
	buf := make([]byte, 0, 20+20+8+len(t.InitialState))
	buf = append(buf, t.TransferID[:]...)
	buf = append(buf, t.Definition.Bytes()...)
	buf = append(buf, t.AssetID.Bytes()...)
	buf = append(buf, t.InitialState...)
	return buf
}

// ActiveTransferSet is the set of transfers currently locked in a channel,
// indexed both by id and by insertion order. Grounded on lnwallet's
// updateLog (logIndex + per-id lookup) so the merkle root used by
// transition is always reproducible by replaying Create/Resolve updates in
// order (spec.md §6: "reconstructing a channel from the log must reproduce
// the current state").
type ActiveTransferSet struct {
	byID  map[uuid.UUID]*TransferState
	order []uuid.UUID
}

// NewActiveTransferSet returns an empty set.
func NewActiveTransferSet() *ActiveTransferSet {
	return &ActiveTransferSet{byID: make(map[uuid.UUID]*TransferState)}
}

// Add inserts t, which must not already be present.
func (a *ActiveTransferSet) Add(t *TransferState) {
	a.byID[t.TransferID] = t
	a.order = append(a.order, t.TransferID)
}

// Remove deletes the transfer with the given id, if present.
func (a *ActiveTransferSet) Remove(id uuid.UUID) (*TransferState, bool) {
	t, ok := a.byID[id]
	if !ok {
		return nil, false
	}
	delete(a.byID, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return t, true
}

// Get returns the transfer with the given id, if active.
func (a *ActiveTransferSet) Get(id uuid.UUID) (*TransferState, bool) {
	t, ok := a.byID[id]
	return t, ok
}

// Len returns the number of active transfers.
func (a *ActiveTransferSet) Len() int { return len(a.order) }

// Leaves returns the commitment leaves of every active transfer, ordered
// deterministically (by transfer id) so that Merkle root computation does
// not depend on insertion order.
func (a *ActiveTransferSet) Leaves() [][]byte {
	ids := append([]uuid.UUID(nil), a.order...)
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	leaves := make([][]byte, 0, len(ids))
	for _, id := range ids {
		leaves = append(leaves, a.byID[id].CommitmentLeaf())
	}
	return leaves
}

// Clone copies the set and each TransferState struct in it; the big.Int and
// slice fields of the copied transfers are shared with the original.
func (a *ActiveTransferSet) Clone() *ActiveTransferSet {
	out := NewActiveTransferSet()
	for _, id := range a.order {
		t := *a.byID[id]
		out.Add(&t)
	}
	return out
}
