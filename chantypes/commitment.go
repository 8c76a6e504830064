package chantypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Commitment is the triple that both participants sign: the chain id, the
// core channel state, and the adjudicator that will enforce it on a
// dispute. Signatures are attached alongside but are never part of the
// signed preimage (spec.md §3, §4.1).
type Commitment struct {
	ChainID            *big.Int
	State              *CoreChannelState
	AdjudicatorAddress common.Address
	Signatures         [2]Signature
}

// SignatureCount returns the number of non-empty signature slots.
func (c *Commitment) SignatureCount() int {
	n := 0
	for _, s := range c.Signatures {
		if s.present() {
			n++
		}
	}
	return n
}
