// Package merkle computes the root over a channel's active-transfer
// commitments (spec.md §3's merkleRoot invariant). No library in the
// retrieval pack exposes a general binary Merkle tree over arbitrary leaves
// — go-ethereum's trie package is a Merkle-Patricia trie built for
// account/storage tries, not this narrow a primitive — so the tree walk is
// hand-written; the hash primitive itself is still the real ecosystem one
// (see DESIGN.md).
package merkle

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EmptyRoot is the root of a channel with no active transfers.
var EmptyRoot = common.Hash{}

// Root computes a deterministic Merkle root over leaves. Leaves are hashed
// pairwise bottom-up; an odd node out is duplicated, matching the common
// adjudicator-contract convention (e.g. OpenZeppelin's MerkleProof layout).
// An empty leaf set returns EmptyRoot.
func Root(leaves [][]byte) common.Hash {
	if len(leaves) == 0 {
		return EmptyRoot
	}

	level := make([]common.Hash, len(leaves))
	for i, l := range leaves {
		level[i] = crypto.Keccak256Hash(l)
	}

	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, hashPair(level[i], level[i]))
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

func hashPair(a, b common.Hash) common.Hash {
	// Canonical ordering keeps the root independent of leaf insertion
	// order beyond what sorting already guarantees at the caller.
	if bytesLess(b.Bytes(), a.Bytes()) {
		a, b = b, a
	}
	return crypto.Keccak256Hash(append(append([]byte{}, a.Bytes()...), b.Bytes()...))
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// SortLeaves returns a copy of leaves sorted by byte value, so callers that
// assemble leaves from a map (no stable order) can still feed Root
// deterministically.
func SortLeaves(leaves [][]byte) [][]byte {
	out := append([][]byte(nil), leaves...)
	sort.Slice(out, func(i, j int) bool { return bytesLess(out[i], out[j]) })
	return out
}
